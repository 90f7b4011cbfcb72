// Package sqldb implements the relationaldb repositories on database/sql for
// PostgreSQL (lib/pq) and SQLite (modernc.org/sqlite).
package sqldb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/XavTo/Blockchain/internal/storage/relationaldb"
)

// RepositoryManager implements relationaldb.RepositoryManager
type RepositoryManager struct {
	db     *sql.DB
	config *relationaldb.Config
	d      dialect

	walletRepo *WalletRepository
	offerRepo  *SellOfferRepository
	eventRepo  *OfferEventRepository
	systemRepo *SystemRepository
}

// NewRepositoryManager validates the configuration and returns an unopened manager
func NewRepositoryManager(config *relationaldb.Config) (*RepositoryManager, error) {
	if err := config.Validate(); err != nil {
		return nil, relationaldb.NewConfigurationError("new_repository_manager", "invalid configuration", err)
	}

	return &RepositoryManager{
		config: config,
		d:      dialect{driver: config.Driver},
	}, nil
}

func (rm *RepositoryManager) Open(ctx context.Context) error {
	connStr, err := rm.config.BuildConnectionString()
	if err != nil {
		return relationaldb.NewConfigurationError("open", "failed to build connection string", err)
	}

	sqlDB, err := sql.Open(rm.config.Driver, connStr)
	if err != nil {
		return relationaldb.NewConnectionError("open", "failed to open database connection", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(rm.config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(rm.config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(rm.config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(rm.config.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, rm.config.DefaultTimeout)
	defer cancel()

	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return relationaldb.NewConnectionError("open", "failed to ping database", err).
			WithCode(relationaldb.CodeConnectionFailed)
	}

	rm.db = sqlDB

	if err := rm.initSchema(ctx); err != nil {
		rm.db.Close()
		rm.db = nil
		return err
	}

	rm.walletRepo = newWalletRepository(rm.db, rm.d)
	rm.offerRepo = newSellOfferRepository(rm.db, rm.d)
	rm.eventRepo = newOfferEventRepository(rm.db, rm.d)
	rm.systemRepo = newSystemRepository(rm.db, rm.d)

	return nil
}

func (rm *RepositoryManager) Close(ctx context.Context) error {
	if rm.db == nil {
		return nil
	}

	err := rm.db.Close()
	rm.db = nil

	if err != nil {
		return relationaldb.NewConnectionError("close", "failed to close database connection", err)
	}

	return nil
}

func (rm *RepositoryManager) Wallets() relationaldb.WalletRepository {
	return rm.walletRepo
}

func (rm *RepositoryManager) Offers() relationaldb.SellOfferRepository {
	return rm.offerRepo
}

func (rm *RepositoryManager) Events() relationaldb.OfferEventRepository {
	return rm.eventRepo
}

func (rm *RepositoryManager) System() relationaldb.SystemRepository {
	return rm.systemRepo
}

// WithTransaction runs fn in a transaction, committing on nil and rolling
// back on error or panic. fn must only use the repositories of tc.
func (rm *RepositoryManager) WithTransaction(ctx context.Context, fn func(relationaldb.TransactionContext) error) error {
	if rm.systemRepo == nil {
		return relationaldb.ErrDatabaseClosed
	}

	tx, err := rm.systemRepo.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	return tx.Commit(ctx)
}

func (rm *RepositoryManager) initSchema(ctx context.Context) error {
	pk := rm.d.primaryKey()
	queries := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS wallets (
			id %s,
			account_id BIGINT NOT NULL,
			address VARCHAR(64) NOT NULL UNIQUE,
			public_key VARCHAR(128) NOT NULL,
			private_key VARCHAR(128) NOT NULL,
			created_at BIGINT NOT NULL
		)`, pk),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS sell_offers (
			id %s,
			nftoken_id VARCHAR(64) NOT NULL,
			seller_account_id BIGINT NOT NULL,
			amount VARCHAR(40) NOT NULL,
			destination VARCHAR(64),
			offer_index VARCHAR(64) NOT NULL UNIQUE,
			status VARCHAR(20) NOT NULL,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`, pk),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS offer_events (
			id %s,
			offer_index VARCHAR(64) NOT NULL UNIQUE,
			nftoken_id VARCHAR(64) NOT NULL,
			kind VARCHAR(20) NOT NULL,
			actor_account_id BIGINT NOT NULL,
			tx_hash VARCHAR(64) NOT NULL,
			amount VARCHAR(40) NOT NULL,
			created_at BIGINT NOT NULL
		)`, pk),

		`CREATE INDEX IF NOT EXISTS idx_wallets_account ON wallets(account_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sell_offers_status ON sell_offers(status)`,
		`CREATE INDEX IF NOT EXISTS idx_sell_offers_destination ON sell_offers(destination)`,
		`CREATE INDEX IF NOT EXISTS idx_offer_events_kind ON offer_events(kind)`,
	}

	for _, query := range queries {
		if _, err := rm.db.ExecContext(ctx, query); err != nil {
			return relationaldb.NewSchemaError("init_schema", "failed to execute schema query", err)
		}
	}

	return nil
}
