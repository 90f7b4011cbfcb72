package offer

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/XavTo/Blockchain/internal/storage/relationaldb"
)

// Recovery outcomes of one intent
const (
	RecoveryApplied = "applied"
	RecoveryFailed  = "failed"
	RecoveryPending = "pending"
)

// RecoveryReport summarises a Recover run
type RecoveryReport struct {
	Applied  int `json:"applied"`
	Failed   int `json:"failed"`
	Pending  int `json:"pending"`
	Released int `json:"released"`
}

// Recover resolves the journal's pending intents against the ledger, then
// returns claimed rows that no pending intent covers to active. It must run
// before the engine serves requests.
func (e *Engine) Recover(ctx context.Context) (*RecoveryReport, error) {
	report := &RecoveryReport{}

	for _, intent := range e.journal.Pending() {
		outcome, err := e.resolve(ctx, intent)
		if err != nil {
			e.logger.Warn("intent not resolved", zap.String("intent", intent.ID), zap.Error(err))
		}
		e.metrics.ObserveRecovery(outcome)

		switch outcome {
		case RecoveryApplied:
			report.Applied++
		case RecoveryFailed:
			report.Failed++
		default:
			report.Pending++
		}
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
	}

	released, err := e.releaseOrphanClaims(ctx)
	report.Released = released
	if err != nil {
		return report, err
	}

	e.logger.Info("recovery finished",
		zap.Int("applied", report.Applied),
		zap.Int("failed", report.Failed),
		zap.Int("pending", report.Pending),
		zap.Int("released", report.Released))
	return report, nil
}

// resolve decides a pending intent from the ledger's view of its transaction.
// It never resubmits.
func (e *Engine) resolve(ctx context.Context, intent *Intent) (string, error) {
	logger := e.logger.With(zap.String("intent", intent.ID), zap.String("kind", string(intent.Kind)))

	if !intent.Submitted() {
		e.abandon(ctx, intent, errors.New("interrupted before submission"))
		return RecoveryFailed, nil
	}

	st, err := e.ledger.Status(ctx, intent.TxHash, intent.LastLedgerSequence)
	if err != nil {
		return RecoveryPending, errors.Wrapf(err, "status of %s", intent.TxHash)
	}

	switch {
	case st.Validated && st.Result.Successful():
		if _, err := e.settle(ctx, &LedgerOutcome{Intent: intent, Final: st.Result}); err != nil {
			if errors.Is(err, ErrIdentifierExtraction) {
				return RecoveryFailed, nil
			}
			return RecoveryPending, err
		}
		logger.Info("recovered validated transaction", zap.String("hash", intent.TxHash))
		return RecoveryApplied, nil

	case st.Validated:
		e.abandon(ctx, intent, errors.Errorf("transaction %s validated with %s", intent.TxHash, st.Result.EngineResult))
		return RecoveryFailed, nil

	case st.Expired:
		e.abandon(ctx, intent, errors.Errorf("transaction %s expired", intent.TxHash))
		return RecoveryFailed, nil
	}

	logger.Debug("transaction not final yet", zap.String("hash", intent.TxHash))
	return RecoveryPending, nil
}

// releaseOrphanClaims returns pending rows without a pending intent to
// active. Such rows are left by a crash between claiming a row and
// journaling the intent.
func (e *Engine) releaseOrphanClaims(ctx context.Context) (int, error) {
	released := 0
	for _, status := range []relationaldb.OfferStatus{
		relationaldb.OfferStatusPendingAccept,
		relationaldb.OfferStatusPendingCancel,
	} {
		rows, err := e.offers().ListOffersByStatus(ctx, status)
		if err != nil {
			return released, errors.Wrapf(err, "list %s offers", status)
		}
		for _, row := range rows {
			if e.journal.InFlight(offerKey(row.OfferIndex)) {
				continue
			}
			ok, err := e.offers().TransitionOfferStatus(ctx, row.OfferIndex, status, relationaldb.OfferStatusActive, nil)
			if err != nil {
				return released, errors.Wrapf(err, "release %s", row.OfferIndex)
			}
			if ok {
				released++
				e.logger.Warn("released orphan claim", zap.String("offer_index", row.OfferIndex), zap.String("status", string(status)))
			}
		}
	}
	return released, nil
}
