// Package offer drives sell offers through the ledger and keeps the local
// offer mirror in step with it.
//
// Every operation runs in two phases. The ledger phase prepares, journals and
// submits a transaction and waits for a validated result. The local phase
// then applies that result to the mirror. The phases meet at LedgerOutcome,
// which crash recovery also produces from the journal, so a result that was
// validated but never applied is applied exactly the same way after restart.
package offer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/XavTo/Blockchain/internal/funds"
	"github.com/XavTo/Blockchain/internal/ledger"
	"github.com/XavTo/Blockchain/internal/metrics"
	"github.com/XavTo/Blockchain/internal/storage/relationaldb"
	"github.com/XavTo/Blockchain/internal/wallet"
)

// FundsChecker is the buyer balance precheck
type FundsChecker interface {
	EnsureCanPay(ctx context.Context, address string, price decimal.Decimal) error
}

// CreateRequest describes a new sell offer
type CreateRequest struct {
	NFTokenID   string
	Amount      string
	Destination string
}

// Receipt is returned by successful operations
type Receipt struct {
	OfferIndex string `json:"offer_index,omitempty"`
	TxHash     string `json:"transaction_hash"`
}

// LedgerOutcome carries a validated successful transaction from the ledger
// phase to the local phase.
type LedgerOutcome struct {
	Intent *Intent
	Final  *ledger.FinalResult
}

// UnknownOutcomeError is returned when the wait for a submitted transaction
// ended before it was final. The intent stays pending.
type UnknownOutcomeError struct {
	Hash string
	Err  error
}

func (e *UnknownOutcomeError) Error() string {
	return fmt.Sprintf("transaction %s outcome unknown: %v", e.Hash, e.Err)
}

func (e *UnknownOutcomeError) Unwrap() error { return e.Err }

func (e *UnknownOutcomeError) Is(target error) bool { return target == ErrOutcomeUnknown }

// Engine runs the offer lifecycle
type Engine struct {
	ledger  ledger.API
	db      *relationaldb.Manager
	funds   FundsChecker
	journal *Journal
	metrics *metrics.Collectors
	logger  *zap.Logger

	followUpTimeout  time.Duration
	followUpInterval time.Duration

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithMetrics sets the metrics collectors
func WithMetrics(m *metrics.Collectors) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithFollowUp makes the engine keep resolving intents whose outcome was
// unknown when the request returned, for up to timeout. Zero disables it and
// leaves such intents to Recover.
func WithFollowUp(timeout, interval time.Duration) Option {
	return func(e *Engine) {
		e.followUpTimeout = timeout
		e.followUpInterval = interval
	}
}

// NewEngine creates an engine
func NewEngine(api ledger.API, db *relationaldb.Manager, checker FundsChecker, journal *Journal, opts ...Option) *Engine {
	e := &Engine{
		ledger:           api,
		db:               db,
		funds:            checker,
		journal:          journal,
		logger:           zap.NewNop(),
		followUpInterval: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.baseCtx, e.cancel = context.WithCancel(context.Background())
	return e
}

// Close stops background follow-ups and waits for them
func (e *Engine) Close() {
	e.cancel()
	e.wg.Wait()
}

func offerKey(offerIndex string) string { return "offer:" + offerIndex }

func tokenKey(nftokenID string) string { return "nft:" + nftokenID }

// Create lists a token for sale. The mirror row is inserted only after the
// ledger validated the offer and its index was read from the metadata.
func (e *Engine) Create(ctx context.Context, seller *wallet.Credentials, req CreateRequest) (*Receipt, error) {
	nftID := relationaldb.NormalizeHex(req.NFTokenID)
	if nftID == "" {
		return nil, errors.Wrap(ErrInvalidRequest, "nftoken id is required")
	}
	amount, err := funds.ParseDrops(req.Amount)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidRequest, err.Error())
	}

	intent := &Intent{
		Kind:        IntentCreate,
		Key:         tokenKey(nftID),
		AccountID:   seller.AccountID,
		Account:     seller.Address,
		NFTokenID:   nftID,
		Amount:      amount.String(),
		Destination: req.Destination,
	}
	if err := e.journal.Begin(intent); err != nil {
		return nil, err
	}

	tx := ledger.NewNFTokenCreateSellOffer(seller.Address, nftID, intent.Amount, req.Destination)
	return e.execute(ctx, seller, intent, tx)
}

// Transfer gives a token to destination through a free sell offer that only
// destination can accept.
func (e *Engine) Transfer(ctx context.Context, seller *wallet.Credentials, nftokenID, destination string) (*Receipt, error) {
	nftID := relationaldb.NormalizeHex(nftokenID)
	if nftID == "" || destination == "" {
		return nil, errors.Wrap(ErrInvalidRequest, "nftoken id and destination are required")
	}
	if destination == seller.Address {
		return nil, errors.Wrap(ErrInvalidRequest, "cannot transfer to the same account")
	}

	intent := &Intent{
		Kind:        IntentTransfer,
		Key:         tokenKey(nftID),
		AccountID:   seller.AccountID,
		Account:     seller.Address,
		NFTokenID:   nftID,
		Amount:      "0",
		Destination: destination,
	}
	if err := e.journal.Begin(intent); err != nil {
		return nil, err
	}

	tx := ledger.NewNFTokenCreateSellOffer(seller.Address, nftID, "0", destination)
	return e.execute(ctx, seller, intent, tx)
}

// Accept buys the token of a sell offer. The mirrored offer must be active
// and is claimed before the ledger is contacted; a missing or claimed row
// fails locally.
func (e *Engine) Accept(ctx context.Context, buyer *wallet.Credentials, offerIndex string) (*Receipt, error) {
	idx := relationaldb.NormalizeHex(offerIndex)
	if idx == "" {
		return nil, errors.Wrap(ErrInvalidRequest, "offer index is required")
	}

	if err := e.claimForAccept(ctx, idx); err != nil {
		e.metrics.ObserveOffer(string(IntentAccept), "rejected")
		return nil, err
	}

	intent := &Intent{
		Kind:       IntentAccept,
		Key:        offerKey(idx),
		AccountID:  buyer.AccountID,
		Account:    buyer.Address,
		OfferIndex: idx,
	}
	if err := e.journal.Begin(intent); err != nil {
		e.release(ctx, intent)
		return nil, err
	}

	entry, price, err := e.precheck(ctx, buyer, idx)
	if err != nil {
		return nil, e.abandon(ctx, intent, err)
	}
	intent.NFTokenID = relationaldb.NormalizeHex(entry.NFTokenID)
	intent.Amount = price.String()

	return e.execute(ctx, buyer, intent, ledger.NewNFTokenAcceptSellOffer(buyer.Address, idx))
}

// Cancel withdraws one of the caller's active offers. Ownership and status
// are checked and the row claimed by a single conditional update before the
// ledger is contacted.
func (e *Engine) Cancel(ctx context.Context, seller *wallet.Credentials, offerIndex string) (*Receipt, error) {
	idx := relationaldb.NormalizeHex(offerIndex)
	if idx == "" {
		return nil, errors.Wrap(ErrInvalidRequest, "offer index is required")
	}

	var claimed bool
	sellerID := seller.AccountID
	err := e.db.ExecuteWithRetry(ctx, func() error {
		var err error
		claimed, err = e.offers().TransitionOfferStatus(ctx, idx,
			relationaldb.OfferStatusActive, relationaldb.OfferStatusPendingCancel, &sellerID)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "claim offer")
	}
	if !claimed {
		e.metrics.ObserveOffer(string(IntentCancel), "rejected")
		return nil, errors.Wrapf(ErrOfferNotFoundOrProcessed, "offer %s", idx)
	}

	intent := &Intent{
		Kind:       IntentCancel,
		Key:        offerKey(idx),
		AccountID:  seller.AccountID,
		Account:    seller.Address,
		OfferIndex: idx,
	}

	row, err := e.offers().GetOfferByIndex(ctx, idx)
	if err != nil {
		e.release(ctx, intent)
		return nil, errors.Wrap(err, "load offer")
	}
	intent.NFTokenID = row.NFTokenID
	intent.Amount = row.Amount

	if err := e.journal.Begin(intent); err != nil {
		e.release(ctx, intent)
		return nil, err
	}

	return e.execute(ctx, seller, intent, ledger.NewNFTokenCancelOffer(seller.Address, idx))
}

func (e *Engine) offers() relationaldb.SellOfferRepository {
	return e.db.Repositories().Offers()
}

// claimForAccept moves an active row to pending_accept. Any other state,
// including a missing row, is ErrOfferNotFoundOrProcessed.
func (e *Engine) claimForAccept(ctx context.Context, idx string) error {
	var claimed bool
	err := e.db.ExecuteWithRetry(ctx, func() error {
		var err error
		claimed, err = e.offers().TransitionOfferStatus(ctx, idx,
			relationaldb.OfferStatusActive, relationaldb.OfferStatusPendingAccept, nil)
		return err
	})
	if err != nil {
		return errors.Wrap(err, "claim offer")
	}
	if !claimed {
		return errors.Wrapf(ErrOfferNotFoundOrProcessed, "offer %s", idx)
	}
	return nil
}

// precheck reads the offer from the ledger and checks the buyer can pay for it
func (e *Engine) precheck(ctx context.Context, buyer *wallet.Credentials, idx string) (*ledger.OfferEntry, decimal.Decimal, error) {
	entry, err := e.ledger.LedgerEntryOffer(ctx, idx)
	if err != nil {
		if ledger.IsRPCError(err, ledger.ErrNameEntryNotFound) || ledger.IsRPCError(err, ledger.ErrNameObjectNotFound) {
			return nil, decimal.Zero, errors.Wrapf(ErrOfferNotFoundOrProcessed, "offer %s is not on the ledger", idx)
		}
		return nil, decimal.Zero, errors.Wrap(err, "fetch offer")
	}

	switch {
	case !entry.IsSellOffer():
		return nil, decimal.Zero, errors.Wrap(ErrInvalidRequest, ledger.ErrNotSellOffer.Error())
	case !entry.Amount.IsNative():
		return nil, decimal.Zero, errors.Wrap(ErrInvalidRequest, "offer is not priced in drops")
	case entry.Owner == buyer.Address:
		return nil, decimal.Zero, errors.Wrap(ErrInvalidRequest, "cannot accept own offer")
	case entry.Destination != "" && entry.Destination != buyer.Address:
		return nil, decimal.Zero, errors.Wrap(ErrInvalidRequest, "offer is reserved for another account")
	}

	price, err := funds.ParseDrops(entry.Amount.Drops)
	if err != nil {
		return nil, decimal.Zero, errors.Wrap(err, "offer amount")
	}
	if err := e.funds.EnsureCanPay(ctx, buyer.Address, price); err != nil {
		return nil, decimal.Zero, err
	}
	return entry, price, nil
}

// execute is the ledger phase followed by the local phase
func (e *Engine) execute(ctx context.Context, actor *wallet.Credentials, intent *Intent, tx ledger.Transaction) (*Receipt, error) {
	logger := e.logger.With(zap.String("intent", intent.ID), zap.String("kind", string(intent.Kind)))

	signer, err := actor.Signer()
	if err != nil {
		return nil, e.abandon(ctx, intent, errors.Wrap(err, "signer"))
	}

	prepared, err := e.ledger.Prepare(ctx, tx, signer)
	if err != nil {
		return nil, e.abandon(ctx, intent, errors.Wrap(err, "prepare transaction"))
	}

	intent.TxHash = prepared.Hash
	intent.LastLedgerSequence = prepared.LastLedgerSequence
	if err := e.journal.Update(intent); err != nil {
		return nil, e.abandon(ctx, intent, err)
	}

	final, err := e.ledger.SubmitAndWait(ctx, prepared)
	if err != nil {
		if !isDefinite(err) {
			logger.Warn("submission outcome unknown, intent kept pending",
				zap.String("hash", prepared.Hash), zap.Error(err))
			e.metrics.ObserveOffer(string(intent.Kind), "unknown")
			e.followUp(intent)
			return nil, &UnknownOutcomeError{Hash: prepared.Hash, Err: err}
		}
		return nil, e.abandon(ctx, intent, err)
	}

	receipt, err := e.settle(ctx, &LedgerOutcome{Intent: intent, Final: final})
	if err != nil {
		if !errors.Is(err, ErrIdentifierExtraction) {
			e.followUp(intent)
		}
		return nil, err
	}
	e.metrics.ObserveOffer(string(intent.Kind), "ok")
	return receipt, nil
}

// settle runs the local phase and closes the intent. A storage failure
// leaves the intent pending so the outcome is applied later.
func (e *Engine) settle(ctx context.Context, outcome *LedgerOutcome) (*Receipt, error) {
	intent := outcome.Intent
	receipt, err := e.apply(ctx, outcome)
	if err != nil {
		if errors.Is(err, ErrIdentifierExtraction) {
			e.logger.Error("validated transaction without offer identifier",
				zap.String("hash", intent.TxHash), zap.String("nftoken_id", intent.NFTokenID))
			e.metrics.ObserveOffer(string(intent.Kind), "extraction_failed")
			if jerr := e.journal.MarkFailed(intent, err); jerr != nil {
				e.logger.Error("journal update failed", zap.String("intent", intent.ID), zap.Error(jerr))
			}
			return nil, err
		}
		e.logger.Error("local phase failed, intent kept pending",
			zap.String("intent", intent.ID), zap.String("hash", intent.TxHash), zap.Error(err))
		e.metrics.ObserveOffer(string(intent.Kind), "local_failed")
		return nil, errors.Wrap(err, "apply ledger outcome")
	}

	if err := e.journal.MarkDone(intent); err != nil {
		e.logger.Error("journal update failed", zap.String("intent", intent.ID), zap.Error(err))
	}
	return receipt, nil
}

// apply mirrors a validated successful transaction. It is idempotent: an
// offer already inserted or an event already recorded counts as applied.
func (e *Engine) apply(ctx context.Context, outcome *LedgerOutcome) (*Receipt, error) {
	intent := outcome.Intent
	receipt := &Receipt{TxHash: outcome.Final.Hash, OfferIndex: intent.OfferIndex}

	switch intent.Kind {
	case IntentCreate, IntentTransfer:
		idx, err := ExtractOfferIndex(outcome.Final.Meta)
		if err != nil {
			return nil, err
		}
		intent.OfferIndex = idx
		receipt.OfferIndex = idx

		row := &relationaldb.SellOffer{
			NFTokenID:       intent.NFTokenID,
			SellerAccountID: intent.AccountID,
			Amount:          intent.Amount,
			Destination:     intent.Destination,
			OfferIndex:      idx,
			Status:          relationaldb.OfferStatusActive,
		}
		err = e.db.ExecuteWithRetry(ctx, func() error {
			return e.offers().InsertOffer(ctx, row)
		})
		if errors.Is(err, relationaldb.ErrDuplicateEntry) {
			e.logger.Info("offer already mirrored", zap.String("offer_index", idx))
			return receipt, nil
		}
		if err != nil {
			return nil, err
		}
		e.logger.Info("offer mirrored", zap.String("offer_index", idx), zap.String("nftoken_id", intent.NFTokenID))
		return receipt, nil

	case IntentAccept, IntentCancel:
		kind, claim := relationaldb.OfferEventAccepted, relationaldb.OfferStatusPendingAccept
		if intent.Kind == IntentCancel {
			kind, claim = relationaldb.OfferEventCancelled, relationaldb.OfferStatusPendingCancel
		}

		err := e.db.ExecuteInTransaction(ctx, func(tc relationaldb.TransactionContext) error {
			deleted := false
			for _, st := range []relationaldb.OfferStatus{claim, relationaldb.OfferStatusActive} {
				ok, err := tc.Offers().DeleteOffer(ctx, intent.OfferIndex, st)
				if err != nil {
					return err
				}
				if ok {
					deleted = true
					break
				}
			}
			if !deleted {
				e.logger.Warn("no mirror row to settle", zap.String("offer_index", intent.OfferIndex), zap.String("kind", string(kind)))
			}

			exists, err := tc.Events().EventExists(ctx, intent.OfferIndex)
			if err != nil || exists {
				return err
			}
			return tc.Events().RecordEvent(ctx, &relationaldb.OfferEvent{
				OfferIndex:     intent.OfferIndex,
				NFTokenID:      intent.NFTokenID,
				Kind:           kind,
				ActorAccountID: intent.AccountID,
				TxHash:         outcome.Final.Hash,
				Amount:         intent.Amount,
			})
		})
		if err != nil {
			return nil, err
		}
		e.logger.Info("offer settled", zap.String("offer_index", intent.OfferIndex), zap.String("kind", string(kind)))
		return receipt, nil
	}

	return nil, errors.Errorf("unknown intent kind %q", intent.Kind)
}

// abandon closes an intent that can no longer succeed and releases its claim
func (e *Engine) abandon(ctx context.Context, intent *Intent, cause error) error {
	e.release(ctx, intent)
	if err := e.journal.MarkFailed(intent, cause); err != nil {
		e.logger.Error("journal update failed", zap.String("intent", intent.ID), zap.Error(err))
	}
	e.metrics.ObserveOffer(string(intent.Kind), "failed")
	e.logger.Info("offer operation failed",
		zap.String("kind", string(intent.Kind)),
		zap.String("offer_index", intent.OfferIndex),
		zap.String("nftoken_id", intent.NFTokenID),
		zap.Error(cause))
	return cause
}

// release returns a claimed row to active. It runs even when ctx is done.
func (e *Engine) release(ctx context.Context, intent *Intent) {
	var (
		from   relationaldb.OfferStatus
		seller *int64
	)
	switch intent.Kind {
	case IntentAccept:
		from = relationaldb.OfferStatusPendingAccept
	case IntentCancel:
		from = relationaldb.OfferStatusPendingCancel
		id := intent.AccountID
		seller = &id
	default:
		return
	}

	ctx = context.WithoutCancel(ctx)
	err := e.db.ExecuteWithRetry(ctx, func() error {
		_, err := e.offers().TransitionOfferStatus(ctx, intent.OfferIndex, from, relationaldb.OfferStatusActive, seller)
		return err
	})
	if err != nil {
		e.logger.Error("failed to release offer claim", zap.String("offer_index", intent.OfferIndex), zap.Error(err))
	}
}

// isDefinite reports whether a submission error means the transaction can
// never be applied.
func isDefinite(err error) bool {
	var subErr *ledger.SubmissionError
	if !errors.As(err, &subErr) {
		return false
	}
	if subErr.Result != nil {
		return true
	}
	if errors.Is(subErr.Err, ledger.ErrRejected) || errors.Is(subErr.Err, ledger.ErrExpired) {
		return true
	}
	var rpcErr *ledger.RPCError
	return errors.As(subErr.Err, &rpcErr)
}

var errStillPending = errors.New("intent still pending")

// followUp keeps resolving a pending intent in the background
func (e *Engine) followUp(intent *Intent) {
	if e.followUpTimeout <= 0 {
		return
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		ctx, cancel := context.WithTimeout(e.baseCtx, e.followUpTimeout)
		defer cancel()

		b := backoff.NewExponentialBackOff()
		b.InitialInterval = e.followUpInterval
		b.MaxElapsedTime = 0

		op := func() error {
			outcome, err := e.resolve(ctx, intent)
			if err != nil {
				return err
			}
			if outcome == RecoveryPending {
				return errStillPending
			}
			return nil
		}
		if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
			e.logger.Warn("intent left for recovery", zap.String("intent", intent.ID), zap.Error(err))
		}
	}()
}
