package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/XavTo/Blockchain/internal/funds"
	"github.com/XavTo/Blockchain/internal/ledger"
	"github.com/XavTo/Blockchain/internal/offer"
	"github.com/XavTo/Blockchain/internal/wallet"
)

var (
	errUnauthorized = errors.New("unauthorized")
	errBadRequest   = errors.New("bad request")
	errRateLimited  = errors.New("too many requests")
)

// Error codes of the JSON error payload
const (
	CodeUnauthorized      = "unauthorized"
	CodeInvalidRequest    = "invalid_request"
	CodeWalletNotFound    = "wallet_not_found"
	CodeWalletExists      = "wallet_exists"
	CodeOfferNotFound     = "offer_not_found"
	CodeInsufficientFunds = "insufficient_funds"
	CodeInFlight          = "operation_in_flight"
	CodeOutcomeUnknown    = "outcome_unknown"
	CodeExtraction        = "identifier_extraction"
	CodeLedger            = "ledger_error"
	CodeMintFailed        = "mint_failed"
	CodeTimeout           = "timeout"
	CodeRateLimited       = "rate_limited"
	CodeUnavailable       = "unavailable"
	CodeInternal          = "internal"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error           string `json:"error"`
	Code            string `json:"code"`
	TransactionHash string `json:"transaction_hash,omitempty"`
	EngineResult    string `json:"engine_result,omitempty"`
}

// classify maps an error to its HTTP status and payload code
func classify(err error) (int, string) {
	var rpcErr *ledger.RPCError
	switch {
	case errors.Is(err, errUnauthorized):
		return http.StatusUnauthorized, CodeUnauthorized
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests, CodeRateLimited
	case errors.Is(err, errBadRequest), errors.Is(err, offer.ErrInvalidRequest):
		return http.StatusBadRequest, CodeInvalidRequest
	case errors.Is(err, wallet.ErrWalletNotFound):
		return http.StatusNotFound, CodeWalletNotFound
	case errors.Is(err, wallet.ErrWalletExists):
		return http.StatusConflict, CodeWalletExists
	case errors.Is(err, wallet.ErrProvisioningDisabled):
		return http.StatusServiceUnavailable, CodeUnavailable
	case errors.Is(err, offer.ErrOfferNotFoundOrProcessed):
		return http.StatusNotFound, CodeOfferNotFound
	case errors.Is(err, funds.ErrInsufficientFunds):
		return http.StatusPaymentRequired, CodeInsufficientFunds
	case errors.Is(err, offer.ErrOperationInFlight):
		return http.StatusConflict, CodeInFlight
	case errors.Is(err, offer.ErrOutcomeUnknown):
		return http.StatusGatewayTimeout, CodeOutcomeUnknown
	case errors.Is(err, offer.ErrIdentifierExtraction):
		return http.StatusInternalServerError, CodeExtraction
	case errors.Is(err, funds.ErrAccountLookup), ledger.IsSubmissionError(err), errors.As(err, &rpcErr):
		return http.StatusBadGateway, CodeLedger
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, CodeTimeout
	}
	return http.StatusInternalServerError, CodeInternal
}

// fail writes the error payload for err and logs it
func fail(c *gin.Context, err error) {
	status, code := classify(err)
	resp := ErrorResponse{Error: err.Error(), Code: code}

	var subErr *ledger.SubmissionError
	if errors.As(err, &subErr) {
		resp.TransactionHash = subErr.Hash
		resp.EngineResult = string(subErr.EngineResult)
	}
	var unknown *offer.UnknownOutcomeError
	if errors.As(err, &unknown) {
		resp.TransactionHash = unknown.Hash
	}

	logger := requestLogger(c)
	if status >= http.StatusInternalServerError && code == CodeInternal {
		logger.Error("request failed", zap.Error(err))
		resp.Error = "internal error"
	} else {
		logger.Info("request rejected", zap.Int("status", status), zap.String("code", code), zap.Error(err))
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, resp)
}
