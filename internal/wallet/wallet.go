// Package wallet maps local accounts to their custodial ledger wallets.
package wallet

import (
	"context"
	"encoding/json"
	"fmt"

	addresscodec "github.com/Peersyst/xrpl-go/address-codec"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/XavTo/Blockchain/internal/ledger"
	"github.com/XavTo/Blockchain/internal/storage/relationaldb"
)

var (
	// ErrWalletNotFound is returned when an account has no wallet
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrWalletExists is returned when provisioning an account that has one
	ErrWalletExists = errors.New("wallet already exists")

	// ErrProvisioningDisabled is returned when no faucet is configured
	ErrProvisioningDisabled = errors.New("wallet provisioning disabled")
)

// DefaultCacheSize is the number of accounts kept by the resolver cache
const DefaultCacheSize = 1024

// Credentials are the keys of one wallet. The private key never leaves the
// value through String, JSON or zap encoding.
type Credentials struct {
	AccountID  int64
	Address    string
	PublicKey  string
	privateKey string
}

// NewCredentials builds credentials from stored keys
func NewCredentials(accountID int64, address, publicKey, privateKey string) *Credentials {
	return &Credentials{
		AccountID:  accountID,
		Address:    address,
		PublicKey:  publicKey,
		privateKey: privateKey,
	}
}

func fromRow(w *relationaldb.Wallet) *Credentials {
	return NewCredentials(w.AccountID, w.Address, w.PublicKey, w.PrivateKey)
}

// Signer returns a transaction signer for the wallet
func (c *Credentials) Signer() (ledger.Signer, error) {
	return ledger.NewWalletSigner(c.Address, c.PublicKey, c.privateKey)
}

func (c *Credentials) String() string {
	return fmt.Sprintf("wallet{account=%d address=%s}", c.AccountID, c.Address)
}

func (c *Credentials) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		AccountID int64  `json:"account_id"`
		Address   string `json:"address"`
		PublicKey string `json:"public_key"`
	}{c.AccountID, c.Address, c.PublicKey})
}

func (c *Credentials) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt64("account_id", c.AccountID)
	enc.AddString("address", c.Address)
	return nil
}

// IsValidAddress reports whether s is a classic ledger address
func IsValidAddress(s string) bool {
	return addresscodec.IsValidClassicAddress(s)
}

// Resolver looks wallets up by account. Wallets never change once created,
// so successful lookups are cached.
type Resolver struct {
	repo   relationaldb.WalletRepository
	cache  *lru.Cache[int64, *relationaldb.Wallet]
	logger *zap.Logger
}

// NewResolver creates a resolver over repo
func NewResolver(repo relationaldb.WalletRepository, cacheSize int, logger *zap.Logger) (*Resolver, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cache, err := lru.New[int64, *relationaldb.Wallet](cacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "wallet cache")
	}
	return &Resolver{repo: repo, cache: cache, logger: logger}, nil
}

// Resolve returns the first wallet of accountID
func (r *Resolver) Resolve(ctx context.Context, accountID int64) (*Credentials, error) {
	if w, ok := r.cache.Get(accountID); ok {
		return fromRow(w), nil
	}

	w, err := r.repo.GetWalletByAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, relationaldb.ErrWalletNotFound) {
			return nil, errors.Wrapf(ErrWalletNotFound, "account %d", accountID)
		}
		return nil, errors.Wrapf(err, "resolve wallet of account %d", accountID)
	}

	r.cache.Add(accountID, w)
	return fromRow(w), nil
}

// ListForAccount returns every wallet of accountID, oldest first
func (r *Resolver) ListForAccount(ctx context.Context, accountID int64) ([]*Credentials, error) {
	rows, err := r.repo.ListWalletsByAccount(ctx, accountID)
	if err != nil {
		return nil, errors.Wrapf(err, "list wallets of account %d", accountID)
	}
	out := make([]*Credentials, 0, len(rows))
	for i := range rows {
		out = append(out, fromRow(&rows[i]))
	}
	return out, nil
}
