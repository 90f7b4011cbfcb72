package sqldb

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/XavTo/Blockchain/internal/storage/relationaldb"
)

// WalletRepository implements relationaldb.WalletRepository
type WalletRepository struct {
	db *sql.DB
	tx *sql.Tx // Optional transaction context
	d  dialect
}

// newWalletRepository creates a wallet repository on the connection pool
func newWalletRepository(db *sql.DB, d dialect) *WalletRepository {
	return &WalletRepository{db: db, d: d}
}

// newWalletRepositoryWithTx creates a wallet repository within a transaction
func newWalletRepositoryWithTx(tx *sql.Tx, d dialect) *WalletRepository {
	return &WalletRepository{tx: tx, d: d}
}

func (r *WalletRepository) getExecutor() executor {
	if r.tx != nil {
		return boundExecutor{exec: r.tx, d: r.d}
	}
	return boundExecutor{exec: r.db, d: r.d}
}

func (r *WalletRepository) CreateWallet(ctx context.Context, w *relationaldb.Wallet) error {
	now := time.Now().UTC()
	err := r.getExecutor().QueryRowContext(ctx,
		`INSERT INTO wallets (account_id, address, public_key, private_key, created_at)
		 VALUES (?, ?, ?, ?, ?) RETURNING id`,
		w.AccountID, w.Address, w.PublicKey, w.PrivateKey, now.UnixMilli(),
	).Scan(&w.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return relationaldb.NewConstraintError("create_wallet", "wallet address already stored", err).
				WithCode(relationaldb.CodeDuplicateEntry)
		}
		return relationaldb.NewQueryError("create_wallet", "failed to insert wallet", err)
	}

	w.CreatedAt = time.UnixMilli(now.UnixMilli()).UTC()
	return nil
}

func (r *WalletRepository) GetWalletByAccount(ctx context.Context, accountID int64) (*relationaldb.Wallet, error) {
	row := r.getExecutor().QueryRowContext(ctx,
		`SELECT id, account_id, address, public_key, private_key, created_at
		 FROM wallets WHERE account_id = ? ORDER BY id LIMIT 1`, accountID)

	w, err := scanWallet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, relationaldb.NewDataError("get_wallet_by_account", "no wallet for account", nil).
				WithCode(relationaldb.CodeWalletNotFound).
				WithDetail("account_id", accountID)
		}
		return nil, relationaldb.NewQueryError("get_wallet_by_account", "failed to query wallet", err)
	}
	return w, nil
}

func (r *WalletRepository) ListWalletsByAccount(ctx context.Context, accountID int64) ([]relationaldb.Wallet, error) {
	rows, err := r.getExecutor().QueryContext(ctx,
		`SELECT id, account_id, address, public_key, private_key, created_at
		 FROM wallets WHERE account_id = ? ORDER BY id`, accountID)
	if err != nil {
		return nil, relationaldb.NewQueryError("list_wallets_by_account", "failed to query wallets", err)
	}
	defer rows.Close()

	var wallets []relationaldb.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, relationaldb.NewQueryError("list_wallets_by_account", "failed to scan wallet", err)
		}
		wallets = append(wallets, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, relationaldb.NewQueryError("list_wallets_by_account", "failed to iterate wallets", err)
	}
	return wallets, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanWallet(s scanner) (*relationaldb.Wallet, error) {
	var (
		w         relationaldb.Wallet
		createdAt int64
	)
	if err := s.Scan(&w.ID, &w.AccountID, &w.Address, &w.PublicKey, &w.PrivateKey, &createdAt); err != nil {
		return nil, err
	}
	w.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &w, nil
}
