package ledger

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// PreparedTx is a signed transaction that has not been submitted yet. Hash
// and LastLedgerSequence identify it for the rest of its life: the hash is
// the lookup key and the sequence bounds how long it can still land.
type PreparedTx struct {
	Hash               string
	Blob               string
	Account            string
	TransactionType    string
	Sequence           uint32
	LastLedgerSequence uint32
	FeeDrops           uint64
}

// FinalResult is the outcome of a transaction in a validated ledger
type FinalResult struct {
	Hash         string
	LedgerIndex  uint32
	EngineResult EngineResult
	Meta         *TxMeta
}

// Successful reports whether the validated result is tesSUCCESS
func (r *FinalResult) Successful() bool {
	return r != nil && r.EngineResult.IsSuccess()
}

// TxStatus is what the node currently knows about a transaction
type TxStatus struct {
	Hash      string
	Found     bool
	Validated bool
	Expired   bool
	Result    *FinalResult
}

// Final reports whether the status can no longer change
func (s *TxStatus) Final() bool {
	return s.Validated || s.Expired
}

// Prepare autofills Sequence, Fee and LastLedgerSequence and signs tx. No
// request that could change ledger state is made.
func (c *Client) Prepare(ctx context.Context, tx Transaction, signer Signer) (*PreparedTx, error) {
	if tx.Type() == "" {
		return nil, errors.New("prepare: missing TransactionType")
	}
	if acct := tx.Account(); acct == "" {
		tx["Account"] = signer.Address()
	} else if acct != signer.Address() {
		return nil, errors.Errorf("prepare: transaction account %s does not match signer %s", acct, signer.Address())
	}

	info, err := c.accountInfo(ctx, signer.Address(), "current")
	if err != nil {
		return nil, errors.Wrap(err, "prepare: account sequence")
	}
	fee, err := c.feeDrops(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "prepare: fee")
	}
	current, err := c.LedgerCurrent(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "prepare: current ledger")
	}

	lastLedger := current + c.cfg.LastLedgerOffset
	tx["Sequence"] = info.AccountData.Sequence
	tx["Fee"] = strconv.FormatUint(fee, 10)
	tx["LastLedgerSequence"] = lastLedger

	blob, hash, err := signer.Sign(tx)
	if err != nil {
		return nil, errors.Wrap(err, "prepare: sign")
	}

	return &PreparedTx{
		Hash:               strings.ToUpper(hash),
		Blob:               blob,
		Account:            signer.Address(),
		TransactionType:    tx.Type(),
		Sequence:           info.AccountData.Sequence,
		LastLedgerSequence: lastLedger,
		FeeDrops:           fee,
	}, nil
}

// SubmitAndWait submits a prepared transaction and blocks until it is in a
// validated ledger, can no longer be, or ctx ends. A transport failure on
// submit does not abort: the transaction may have reached the node, so its
// hash is still polled until LastLedgerSequence passes.
func (c *Client) SubmitAndWait(ctx context.Context, p *PreparedTx) (*FinalResult, error) {
	logger := c.logger.With(zap.String("hash", p.Hash), zap.String("tx_type", p.TransactionType))

	res, err := c.Submit(ctx, p.Blob)
	switch {
	case err == nil:
		logger.Debug("submitted", zap.String("engine_result", res.EngineResult.String()))
		if res.EngineResult.IsRejected() {
			c.metrics.ObserveSubmission(p.TransactionType, res.EngineResult.String())
			return nil, &SubmissionError{
				Hash:         p.Hash,
				EngineResult: res.EngineResult,
				Reason:       res.EngineResultMessage,
				Err:          ErrRejected,
			}
		}
	case isRequestRejected(err):
		c.metrics.ObserveSubmission(p.TransactionType, "rpc_error")
		return nil, &SubmissionError{Hash: p.Hash, Reason: "submit request rejected", Err: err}
	default:
		if ctx.Err() != nil {
			return nil, &SubmissionError{Hash: p.Hash, Reason: "submit interrupted", Err: ctx.Err()}
		}
		logger.Warn("submit outcome unknown, polling by hash", zap.Error(err))
	}

	status, err := c.waitFinal(ctx, p)
	if err != nil {
		c.metrics.ObserveSubmission(p.TransactionType, "unknown")
		return nil, &SubmissionError{Hash: p.Hash, Reason: "waiting for validation", Err: err}
	}

	if status.Expired {
		c.metrics.ObserveSubmission(p.TransactionType, "expired")
		return nil, &SubmissionError{Hash: p.Hash, Reason: "not included before LastLedgerSequence", Err: ErrExpired}
	}

	final := status.Result
	c.metrics.ObserveSubmission(p.TransactionType, final.EngineResult.String())
	if !final.Successful() {
		return final, &SubmissionError{
			Hash:         p.Hash,
			EngineResult: final.EngineResult,
			Reason:       final.EngineResult.Message(),
			Result:       final,
		}
	}

	logger.Info("transaction validated", zap.Uint32("ledger_index", final.LedgerIndex))
	return final, nil
}

var errNotFinal = errors.New("transaction not final yet")

func (c *Client) waitFinal(ctx context.Context, p *PreparedTx) (*TxStatus, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.PollInterval
	b.MaxInterval = c.cfg.MaxPollInterval
	b.MaxElapsedTime = 0

	var status *TxStatus
	op := func() error {
		st, err := c.Status(ctx, p.Hash, p.LastLedgerSequence)
		if err != nil {
			return err
		}
		if !st.Final() {
			return errNotFinal
		}
		status = st
		return nil
	}
	notify := func(err error, next time.Duration) {
		if !errors.Is(err, errNotFinal) {
			c.logger.Debug("status poll failed", zap.String("hash", p.Hash), zap.Error(err), zap.Duration("next", next))
		}
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return status, nil
}

// Status reports whether hash is validated, still pending, or can no longer
// be included because the validated ledger passed lastLedgerSequence. The
// validated index is read before the transaction so that a transaction
// validated in between is never reported as expired.
func (c *Client) Status(ctx context.Context, hash string, lastLedgerSequence uint32) (*TxStatus, error) {
	st := &TxStatus{Hash: strings.ToUpper(hash)}

	var validatedBefore uint32
	if lastLedgerSequence > 0 {
		v, err := c.ValidatedLedger(ctx)
		if err != nil {
			return nil, err
		}
		validatedBefore = v
	}

	tx, err := c.Tx(ctx, hash)
	switch {
	case err == nil:
		if !sameID(tx.Hash, hash) {
			return nil, errors.Wrapf(ErrMalformedResponse, "tx: asked for %s, got %s", hash, tx.Hash)
		}
		st.Found = true
		if tx.Validated {
			st.Validated = true
			st.Result = &FinalResult{
				Hash:         st.Hash,
				LedgerIndex:  uint32(tx.LedgerIndex),
				EngineResult: tx.Meta.TransactionResult,
				Meta:         tx.Meta,
			}
			return st, nil
		}
	case IsRPCError(err, ErrNameTxnNotFound):
	default:
		return nil, err
	}

	st.Expired = lastLedgerSequence > 0 && validatedBefore > lastLedgerSequence
	return st, nil
}

// isRequestRejected reports node-side request errors. An *RPCError means the
// node answered, so the blob was not accepted for relay.
func isRequestRejected(err error) bool {
	var rpcErr *RPCError
	return errors.As(err, &rpcErr)
}
