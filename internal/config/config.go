package config

import (
	"time"

	"github.com/XavTo/Blockchain/internal/api"
	"github.com/XavTo/Blockchain/internal/ledger"
	"github.com/XavTo/Blockchain/internal/logging"
	"github.com/XavTo/Blockchain/internal/offer"
	"github.com/XavTo/Blockchain/internal/storage/relationaldb"
)

// Config represents the complete nftmarketd configuration
type Config struct {
	Server   api.Config          `toml:"server" mapstructure:"server"`
	Auth     api.AuthConfig      `toml:"auth" mapstructure:"auth"`
	Ledger   LedgerConfig        `toml:"ledger" mapstructure:"ledger"`
	Database relationaldb.Config `toml:"database" mapstructure:"database"`
	Journal  offer.JournalConfig `toml:"journal" mapstructure:"journal"`
	Log      logging.Config      `toml:"log" mapstructure:"log"`
	Offers   OffersConfig        `toml:"offers" mapstructure:"offers"`

	// Internal fields
	configPath string
}

// LedgerConfig is the ledger client configuration plus the faucet used to
// provision wallets
type LedgerConfig struct {
	ledger.Config `mapstructure:",squash"`
	FaucetURL     string `toml:"faucet_url" mapstructure:"faucet_url"`
}

// OffersConfig tunes the offer engine and the query layer
type OffersConfig struct {
	FeeBufferDrops   int64         `toml:"fee_buffer_drops" mapstructure:"fee_buffer_drops"`
	FollowUpTimeout  time.Duration `toml:"follow_up_timeout" mapstructure:"follow_up_timeout"`
	FollowUpInterval time.Duration `toml:"follow_up_interval" mapstructure:"follow_up_interval"`
	FanOut           int           `toml:"fan_out" mapstructure:"fan_out"`
	WalletCacheSize  int           `toml:"wallet_cache_size" mapstructure:"wallet_cache_size"`
	RecoverOnStart   bool          `toml:"recover_on_start" mapstructure:"recover_on_start"`
}

// ConfigPaths holds paths to configuration files
type ConfigPaths struct {
	Main string // optional main config file (toml, yaml or json)
	Env  string // optional dotenv file, defaults to .env
}

// GetConfigPath returns the path of the loaded config file, if any
func (c *Config) GetConfigPath() string {
	return c.configPath
}

// IsSQLite reports whether the mirror runs on SQLite
func (c *Config) IsSQLite() bool {
	return c.Database.Driver == relationaldb.DriverSQLite
}
