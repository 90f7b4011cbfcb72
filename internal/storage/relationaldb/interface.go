package relationaldb

import (
	"context"
	"strings"
	"time"
)

// Wallet is a custodial ledger key pair bound to a local account.
type Wallet struct {
	ID         int64     `json:"id"`
	AccountID  int64     `json:"account_id"`
	Address    string    `json:"address"`
	PublicKey  string    `json:"public_key"`
	PrivateKey string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// OfferStatus is the mirror state of a sell offer. Accepted and cancelled
// offers are not stored as a status: their rows are deleted.
type OfferStatus string

const (
	OfferStatusActive        OfferStatus = "active"
	OfferStatusPendingAccept OfferStatus = "pending_accept"
	OfferStatusPendingCancel OfferStatus = "pending_cancel"
)

// SellOffer mirrors a ledger NFTokenOffer created through this service.
type SellOffer struct {
	ID              int64       `json:"id"`
	NFTokenID       string      `json:"nftoken_id"`
	SellerAccountID int64       `json:"seller_account_id"`
	Amount          string      `json:"amount"`
	Destination     string      `json:"destination,omitempty"`
	OfferIndex      string      `json:"offer_index"`
	Status          OfferStatus `json:"status"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// OfferEventKind names the terminal transition an offer went through.
type OfferEventKind string

const (
	OfferEventAccepted  OfferEventKind = "accepted"
	OfferEventCancelled OfferEventKind = "cancelled"
)

// OfferEvent records a settled offer after its mirror row is gone.
type OfferEvent struct {
	ID             int64          `json:"id"`
	OfferIndex     string         `json:"offer_index"`
	NFTokenID      string         `json:"nftoken_id"`
	Kind           OfferEventKind `json:"kind"`
	ActorAccountID int64          `json:"actor_account_id"`
	TxHash         string         `json:"tx_hash"`
	Amount         string         `json:"amount"`
	CreatedAt      time.Time      `json:"created_at"`
}

// OfferStats aggregates mirror and event counts.
type OfferStats struct {
	Active    int64 `json:"active"`
	Accepted  int64 `json:"accepted"`
	Cancelled int64 `json:"cancelled"`
}

// NormalizeHex returns the canonical (upper-case, trimmed) form of a ledger
// hex identifier such as an NFTokenID or an offer index.
func NormalizeHex(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// WalletRepository provides access to custodial wallets
type WalletRepository interface {
	// CreateWallet inserts w and sets its ID and CreatedAt
	CreateWallet(ctx context.Context, w *Wallet) error

	// GetWalletByAccount returns the first wallet of the account
	GetWalletByAccount(ctx context.Context, accountID int64) (*Wallet, error)

	ListWalletsByAccount(ctx context.Context, accountID int64) ([]Wallet, error)
}

// SellOfferRepository provides access to the sell offer mirror
type SellOfferRepository interface {
	// InsertOffer fails with ErrDuplicateEntry when the offer index exists
	InsertOffer(ctx context.Context, offer *SellOffer) error

	GetOfferByIndex(ctx context.Context, offerIndex string) (*SellOffer, error)

	ListOffersByStatus(ctx context.Context, status OfferStatus) ([]SellOffer, error)

	// ListActiveOffersForDestination matches the destination exactly; classic
	// addresses are case-sensitive
	ListActiveOffersForDestination(ctx context.Context, destination string) ([]SellOffer, error)

	// TransitionOfferStatus moves a row from one status to another only if it
	// is currently in the expected status (and owned by seller when seller is
	// non-nil). It reports whether a row was updated.
	TransitionOfferStatus(ctx context.Context, offerIndex string, from, to OfferStatus, seller *int64) (bool, error)

	// DeleteOffer removes the row only if it is in the expected status and
	// reports whether a row was deleted.
	DeleteOffer(ctx context.Context, offerIndex string, expected OfferStatus) (bool, error)

	CountOffersByStatus(ctx context.Context, status OfferStatus) (int64, error)
}

// OfferEventRepository provides access to settled offer history
type OfferEventRepository interface {
	RecordEvent(ctx context.Context, event *OfferEvent) error

	// EventExists reports whether the offer already has a settled event
	EventExists(ctx context.Context, offerIndex string) (bool, error)

	CountEvents(ctx context.Context, kind OfferEventKind) (int64, error)
}

// SystemRepository provides system-level database operations
type SystemRepository interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (TransactionContext, error)
}

// TransactionContext exposes repositories bound to one database transaction
type TransactionContext interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	Wallets() WalletRepository
	Offers() SellOfferRepository
	Events() OfferEventRepository
}

// RepositoryManager provides access to all repositories
type RepositoryManager interface {
	Wallets() WalletRepository
	Offers() SellOfferRepository
	Events() OfferEventRepository
	System() SystemRepository

	// Connection management
	Open(ctx context.Context) error
	Close(ctx context.Context) error

	// Transaction management
	WithTransaction(ctx context.Context, fn func(TransactionContext) error) error
}
