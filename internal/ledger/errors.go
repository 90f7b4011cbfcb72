package ledger

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error names returned by the node in the "error" field of a failed request.
const (
	ErrNameActNotFound    = "actNotFound"
	ErrNameTxnNotFound    = "txnNotFound"
	ErrNameEntryNotFound  = "entryNotFound"
	ErrNameObjectNotFound = "objectNotFound"
	ErrNameLgrNotFound    = "lgrNotFound"
	ErrNameTooBusy        = "tooBusy"
	ErrNameSlowDown       = "slowDown"
)

var (
	// ErrExpired means the validated ledger passed the transaction's
	// LastLedgerSequence without including it; it can never succeed.
	ErrExpired = errors.New("transaction expired before validation")

	// ErrMalformedResponse is returned when a response misses required fields.
	ErrMalformedResponse = errors.New("malformed ledger response")

	// ErrRejected is returned when the node refuses a transaction outright.
	ErrRejected = errors.New("transaction rejected by node")

	// ErrNotSellOffer is returned when an offer index names a buy offer.
	ErrNotSellOffer = errors.New("offer is not a sell offer")
)

// RPCError is a failed request as reported by the node
type RPCError struct {
	Code    int    `json:"error_code"`
	Name    string `json:"error"`
	Message string `json:"error_message,omitempty"`
	Method  string `json:"-"`
}

func (e *RPCError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Name
	}
	return fmt.Sprintf("%s: %s (%s)", e.Method, msg, e.Name)
}

// IsRPCError reports whether err is an RPCError with the given name
func IsRPCError(err error, name string) bool {
	var rpcErr *RPCError
	return errors.As(err, &rpcErr) && rpcErr.Name == name
}

// SubmissionError is returned when a transaction did not succeed. Result is
// set when the transaction reached a validated ledger with a non-success code.
type SubmissionError struct {
	Hash         string
	EngineResult EngineResult
	Reason       string
	Result       *FinalResult
	Err          error
}

func (e *SubmissionError) Error() string {
	switch {
	case e.EngineResult != "" && e.Err != nil:
		return fmt.Sprintf("submission %s failed with %s: %s: %v", e.Hash, e.EngineResult, e.Reason, e.Err)
	case e.EngineResult != "":
		return fmt.Sprintf("submission %s failed with %s: %s", e.Hash, e.EngineResult, e.Reason)
	case e.Err != nil:
		return fmt.Sprintf("submission %s failed: %s: %v", e.Hash, e.Reason, e.Err)
	}
	return fmt.Sprintf("submission %s failed: %s", e.Hash, e.Reason)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// IsSubmissionError reports whether err carries a SubmissionError
func IsSubmissionError(err error) bool {
	var subErr *SubmissionError
	return errors.As(err, &subErr)
}
