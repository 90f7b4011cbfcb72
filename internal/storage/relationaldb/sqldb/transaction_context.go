package sqldb

import (
	"context"
	"database/sql"

	"github.com/XavTo/Blockchain/internal/storage/relationaldb"
)

// SystemRepository implements relationaldb.SystemRepository
type SystemRepository struct {
	db *sql.DB
	d  dialect
}

func newSystemRepository(db *sql.DB, d dialect) *SystemRepository {
	return &SystemRepository{db: db, d: d}
}

func (r *SystemRepository) Ping(ctx context.Context) error {
	if r.db == nil {
		return relationaldb.ErrDatabaseClosed
	}

	if err := r.db.PingContext(ctx); err != nil {
		return relationaldb.NewConnectionError("ping", "database ping failed", err)
	}

	return nil
}

func (r *SystemRepository) Begin(ctx context.Context) (relationaldb.TransactionContext, error) {
	if r.db == nil {
		return nil, relationaldb.ErrDatabaseClosed
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, relationaldb.NewTransactionError("begin", "failed to begin transaction", err)
	}

	return newTransactionContext(tx, r.d), nil
}

// TransactionContext implements relationaldb.TransactionContext
type TransactionContext struct {
	tx *sql.Tx

	walletRepo *WalletRepository
	offerRepo  *SellOfferRepository
	eventRepo  *OfferEventRepository
}

func newTransactionContext(tx *sql.Tx, d dialect) *TransactionContext {
	return &TransactionContext{
		tx:         tx,
		walletRepo: newWalletRepositoryWithTx(tx, d),
		offerRepo:  newSellOfferRepositoryWithTx(tx, d),
		eventRepo:  newOfferEventRepositoryWithTx(tx, d),
	}
}

func (tc *TransactionContext) Commit(ctx context.Context) error {
	if tc.tx == nil {
		return relationaldb.NewTransactionError("commit", "transaction is closed", nil).
			WithCode(relationaldb.CodeTxClosed)
	}

	err := tc.tx.Commit()
	tc.tx = nil

	if err != nil {
		return relationaldb.NewTransactionError("commit", "failed to commit transaction", err)
	}

	return nil
}

func (tc *TransactionContext) Rollback(ctx context.Context) error {
	if tc.tx == nil {
		return nil // Already rolled back or committed
	}

	err := tc.tx.Rollback()
	tc.tx = nil

	if err != nil {
		return relationaldb.NewTransactionError("rollback", "failed to rollback transaction", err)
	}

	return nil
}

func (tc *TransactionContext) Wallets() relationaldb.WalletRepository {
	return tc.walletRepo
}

func (tc *TransactionContext) Offers() relationaldb.SellOfferRepository {
	return tc.offerRepo
}

func (tc *TransactionContext) Events() relationaldb.OfferEventRepository {
	return tc.eventRepo
}
