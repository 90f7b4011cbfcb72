package offer

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/XavTo/Blockchain/internal/ledger"
	"github.com/XavTo/Blockchain/internal/nft"
	"github.com/XavTo/Blockchain/internal/storage/relationaldb"
	"github.com/XavTo/Blockchain/internal/wallet"
)

// Query defaults
const (
	DefaultFanOut        = 4
	DefaultMetadataCache = 4096
)

// TokenReader reads ledger holdings
type TokenReader interface {
	AccountNFTs(ctx context.Context, address string) ([]ledger.NFToken, error)
	AccountNFTOffers(ctx context.Context, address string) ([]ledger.OfferEntry, error)
}

// WalletLister lists the wallets of an account
type WalletLister interface {
	ListForAccount(ctx context.Context, accountID int64) ([]*wallet.Credentials, error)
}

// Stats are the dashboard counters
type Stats struct {
	ForSale   int64 `json:"assets_for_sale"`
	Exchanged int64 `json:"assets_exchanged"`
	Cancelled int64 `json:"offers_cancelled"`
}

// Drift lists differences between the mirror and the ledger for one seller
type Drift struct {
	Address         string   `json:"address"`
	MissingOnLedger []string `json:"missing_on_ledger"`
	UnknownLocally  []string `json:"unknown_locally"`
}

// InSync reports whether no difference was found
func (d *Drift) InSync() bool {
	return len(d.MissingOnLedger) == 0 && len(d.UnknownLocally) == 0
}

type decoded struct {
	name, description, image string
}

// Query answers read requests from the mirror and the ledger
type Query struct {
	repo    relationaldb.RepositoryManager
	wallets WalletLister
	ledger  TokenReader
	cache   *lru.Cache[string, decoded]
	fanOut  int
	logger  *zap.Logger
}

// NewQuery creates a query layer. fanOut bounds concurrent seller lookups.
func NewQuery(repo relationaldb.RepositoryManager, wallets WalletLister, reader TokenReader, fanOut int, logger *zap.Logger) (*Query, error) {
	if fanOut <= 0 {
		fanOut = DefaultFanOut
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cache, err := lru.New[string, decoded](DefaultMetadataCache)
	if err != nil {
		return nil, errors.Wrap(err, "metadata cache")
	}
	return &Query{repo: repo, wallets: wallets, ledger: reader, cache: cache, fanOut: fanOut, logger: logger}, nil
}

// ListForUser returns the active offers reserved for the wallet's address
func (q *Query) ListForUser(ctx context.Context, creds *wallet.Credentials) ([]relationaldb.SellOffer, error) {
	offers, err := q.repo.Offers().ListActiveOffersForDestination(ctx, creds.Address)
	if err != nil {
		return nil, errors.Wrap(err, "list offers for user")
	}
	return nonNil(offers), nil
}

// ListAll returns every active mirrored offer. The ledger is not consulted.
func (q *Query) ListAll(ctx context.Context) ([]relationaldb.SellOffer, error) {
	offers, err := q.repo.Offers().ListOffersByStatus(ctx, relationaldb.OfferStatusActive)
	if err != nil {
		return nil, errors.Wrap(err, "list active offers")
	}
	return nonNil(offers), nil
}

func nonNil(offers []relationaldb.SellOffer) []relationaldb.SellOffer {
	if offers == nil {
		return []relationaldb.SellOffer{}
	}
	return offers
}

// ResolveTokens finds the requested tokens among the holdings of the given
// sellers. Identifiers match case-insensitively; the result follows the
// order of tokenIDs and holds each token once.
func (q *Query) ResolveTokens(ctx context.Context, tokenIDs []string, sellerAccountIDs []int64) ([]nft.TokenRecord, error) {
	wanted := make(map[string]struct{}, len(tokenIDs))
	for _, id := range tokenIDs {
		wanted[relationaldb.NormalizeHex(id)] = struct{}{}
	}

	var (
		mu    sync.Mutex
		found = make(map[string]nft.TokenRecord)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(q.fanOut)

	for _, sellerID := range uniqueIDs(sellerAccountIDs) {
		g.Go(func() error {
			records, err := q.sellerTokens(gctx, sellerID, wanted)
			if err != nil {
				return err
			}
			mu.Lock()
			for _, r := range records {
				if _, dup := found[r.NFTokenID]; !dup {
					found[r.NFTokenID] = r
				}
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]nft.TokenRecord, 0, len(found))
	seen := make(map[string]struct{}, len(found))
	for _, id := range tokenIDs {
		key := relationaldb.NormalizeHex(id)
		if _, done := seen[key]; done {
			continue
		}
		if r, ok := found[key]; ok {
			out = append(out, r)
			seen[key] = struct{}{}
		}
	}
	return out, nil
}

func (q *Query) sellerTokens(ctx context.Context, sellerID int64, wanted map[string]struct{}) ([]nft.TokenRecord, error) {
	wallets, err := q.wallets.ListForAccount(ctx, sellerID)
	if err != nil {
		return nil, errors.Wrapf(err, "wallets of seller %d", sellerID)
	}

	var out []nft.TokenRecord
	for _, w := range wallets {
		tokens, err := q.ledger.AccountNFTs(ctx, w.Address)
		if ledger.IsRPCError(err, ledger.ErrNameActNotFound) {
			q.logger.Debug("seller wallet not on ledger", zap.String("address", w.Address))
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "tokens of %s", w.Address)
		}

		for _, t := range tokens {
			id := relationaldb.NormalizeHex(t.NFTokenID)
			if _, ok := wanted[id]; !ok {
				continue
			}
			md := q.decode(id, t.URI)
			out = append(out, nft.TokenRecord{
				NFTokenID:   id,
				Issuer:      t.Issuer,
				Owner:       w.Address,
				URI:         t.URI,
				Name:        md.name,
				Description: md.description,
				Image:       md.image,
			})
		}
	}
	return out, nil
}

func (q *Query) decode(id, uri string) decoded {
	key := id + "|" + uri
	if md, ok := q.cache.Get(key); ok {
		return md
	}
	var md decoded
	md.name, md.description, md.image = nft.DecodeMetadata(uri)
	q.cache.Add(key, md)
	return md
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Stats counts offers for sale and settled offers
func (q *Query) Stats(ctx context.Context) (*Stats, error) {
	var (
		s   Stats
		err error
	)
	if s.ForSale, err = q.repo.Offers().CountOffersByStatus(ctx, relationaldb.OfferStatusActive); err != nil {
		return nil, errors.Wrap(err, "count offers for sale")
	}
	if s.Exchanged, err = q.repo.Events().CountEvents(ctx, relationaldb.OfferEventAccepted); err != nil {
		return nil, errors.Wrap(err, "count accepted offers")
	}
	if s.Cancelled, err = q.repo.Events().CountEvents(ctx, relationaldb.OfferEventCancelled); err != nil {
		return nil, errors.Wrap(err, "count cancelled offers")
	}
	return &s, nil
}

// Reconcile compares the seller's active mirrored offers with the sell
// offers the ledger holds for the seller's address.
func (q *Query) Reconcile(ctx context.Context, seller *wallet.Credentials) (*Drift, error) {
	onLedger, err := q.ledger.AccountNFTOffers(ctx, seller.Address)
	if err != nil {
		return nil, errors.Wrapf(err, "ledger offers of %s", seller.Address)
	}
	active, err := q.repo.Offers().ListOffersByStatus(ctx, relationaldb.OfferStatusActive)
	if err != nil {
		return nil, errors.Wrap(err, "list active offers")
	}

	ledgerSet := make(map[string]struct{}, len(onLedger))
	for _, o := range onLedger {
		if o.IsSellOffer() {
			ledgerSet[relationaldb.NormalizeHex(o.Index)] = struct{}{}
		}
	}

	drift := &Drift{Address: seller.Address, MissingOnLedger: []string{}, UnknownLocally: []string{}}
	local := make(map[string]struct{})
	for _, row := range active {
		if row.SellerAccountID != seller.AccountID {
			continue
		}
		local[row.OfferIndex] = struct{}{}
		if _, ok := ledgerSet[row.OfferIndex]; !ok {
			drift.MissingOnLedger = append(drift.MissingOnLedger, row.OfferIndex)
		}
	}
	for _, o := range onLedger {
		idx := relationaldb.NormalizeHex(o.Index)
		if _, ok := ledgerSet[idx]; !ok {
			continue
		}
		if _, ok := local[idx]; !ok {
			drift.UnknownLocally = append(drift.UnknownLocally, idx)
		}
	}

	if !drift.InSync() {
		q.logger.Warn("mirror drift",
			zap.String("address", seller.Address),
			zap.Strings("missing_on_ledger", drift.MissingOnLedger),
			zap.Strings("unknown_locally", drift.UnknownLocally))
	}
	return drift, nil
}
