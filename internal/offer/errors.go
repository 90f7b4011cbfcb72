package offer

import "github.com/pkg/errors"

var (
	// ErrIdentifierExtraction means a transaction succeeded on the ledger but
	// its metadata holds no created offer. Nothing is stored locally.
	ErrIdentifierExtraction = errors.New("offer identifier not found in transaction metadata")

	// ErrOfferNotFoundOrProcessed means the local precondition failed: the
	// offer is unknown, not active, not the caller's, or already claimed.
	ErrOfferNotFoundOrProcessed = errors.New("offer not found or already processed")

	// ErrOperationInFlight means a submission for the same token or offer is
	// still pending.
	ErrOperationInFlight = errors.New("operation already in flight")

	// ErrInvalidRequest is returned for malformed input
	ErrInvalidRequest = errors.New("invalid request")

	// ErrOutcomeUnknown means the transaction may still land. Its intent
	// stays pending and recovery resolves it.
	ErrOutcomeUnknown = errors.New("transaction outcome unknown")
)
