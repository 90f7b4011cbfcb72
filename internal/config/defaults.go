package config

import (
	"github.com/spf13/viper"

	"github.com/XavTo/Blockchain/internal/api"
	"github.com/XavTo/Blockchain/internal/funds"
	"github.com/XavTo/Blockchain/internal/ledger"
	"github.com/XavTo/Blockchain/internal/offer"
	"github.com/XavTo/Blockchain/internal/storage/relationaldb"
	"github.com/XavTo/Blockchain/internal/wallet"
)

// DefaultFaucetURL is the public test network faucet
const DefaultFaucetURL = "https://faucet.altnet.rippletest.net/accounts"

// setDefaults registers every key with its default. Environment overrides
// only apply to registered keys.
func setDefaults(v *viper.Viper) {
	srv := api.DefaultConfig()
	v.SetDefault("server.address", srv.Address)
	v.SetDefault("server.request_timeout", srv.RequestTimeout)
	v.SetDefault("server.read_timeout", srv.ReadTimeout)
	v.SetDefault("server.shutdown_timeout", srv.ShutdownTimeout)
	v.SetDefault("server.rate_limit", srv.RateLimit)
	v.SetDefault("server.rate_burst", srv.RateBurst)
	v.SetDefault("server.debug", false)

	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.issuer", "")

	lc := ledger.DefaultConfig()
	v.SetDefault("ledger.url", lc.URL)
	v.SetDefault("ledger.request_timeout", lc.RequestTimeout)
	v.SetDefault("ledger.rate_limit", lc.RateLimit)
	v.SetDefault("ledger.burst", lc.Burst)
	v.SetDefault("ledger.poll_interval", lc.PollInterval)
	v.SetDefault("ledger.max_poll_interval", lc.MaxPollInterval)
	v.SetDefault("ledger.last_ledger_offset", lc.LastLedgerOffset)
	v.SetDefault("ledger.max_fee_drops", lc.MaxFeeDrops)
	v.SetDefault("ledger.faucet_url", DefaultFaucetURL)

	// SQLite for local runs. The remaining keys carry the PostgreSQL
	// defaults so switching the driver alone yields a usable pool; the
	// loader clamps SQLite to a single connection.
	lite := relationaldb.SQLiteConfig("./data/nftmarket.db")
	db := relationaldb.PostgresConfig()
	v.SetDefault("database.driver", lite.Driver)
	v.SetDefault("database.database", lite.Database)
	v.SetDefault("database.connection_string", "")
	v.SetDefault("database.host", db.Host)
	v.SetDefault("database.port", db.Port)
	v.SetDefault("database.username", db.Username)
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", db.SSLMode)
	v.SetDefault("database.max_open_conns", db.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", db.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", db.ConnMaxLifetime)
	v.SetDefault("database.conn_max_idle_time", db.ConnMaxIdleTime)
	v.SetDefault("database.default_timeout", db.DefaultTimeout)
	v.SetDefault("database.max_retries", db.MaxRetries)
	v.SetDefault("database.retry_delay", db.RetryDelay)
	v.SetDefault("database.retry_max_delay", db.RetryMaxDelay)
	v.SetDefault("database.enable_wal_mode", db.EnableWALMode)
	v.SetDefault("database.busy_timeout_ms", db.BusyTimeoutMS)

	jc := offer.DefaultJournalConfig()
	v.SetDefault("journal.dir", jc.Dir)
	v.SetDefault("journal.segment_threshold", jc.SegmentThreshold)
	v.SetDefault("journal.max_segments", jc.MaxSegments)
	v.SetDefault("journal.sync", jc.Sync)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.color", false)

	v.SetDefault("offers.fee_buffer_drops", funds.FeeBufferDrops)
	v.SetDefault("offers.follow_up_timeout", "2m")
	v.SetDefault("offers.follow_up_interval", "2s")
	v.SetDefault("offers.fan_out", offer.DefaultFanOut)
	v.SetDefault("offers.wallet_cache_size", wallet.DefaultCacheSize)
	v.SetDefault("offers.recover_on_start", true)
}
