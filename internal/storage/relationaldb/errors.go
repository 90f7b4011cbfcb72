package relationaldb

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Error types for different categories of database errors
var (
	// Configuration errors
	ErrMissingHost            = errors.New("database host is required")
	ErrMissingDatabase        = errors.New("database name is required")
	ErrMissingUsername        = errors.New("database username is required")
	ErrInvalidPort            = errors.New("invalid database port")
	ErrInvalidMaxOpenConns    = errors.New("max open connections must be >= 0")
	ErrInvalidMaxIdleConns    = errors.New("max idle connections must be >= 0")
	ErrMaxIdleExceedsMaxOpen  = errors.New("max idle connections cannot exceed max open connections")
	ErrInvalidTimeout         = errors.New("timeout must be positive")
	ErrInvalidConnMaxLifetime = errors.New("connection max lifetime must be >= 0")
	ErrInvalidConnMaxIdleTime = errors.New("connection max idle time must be >= 0")
	ErrInvalidMaxRetries      = errors.New("max retries must be >= 0")
	ErrInvalidRetryDelay      = errors.New("retry delay must be >= 0")
	ErrInvalidRetryMaxDelay   = errors.New("retry max delay must be >= retry delay")

	// Connection errors
	ErrDatabaseClosed   = errors.New("database connection is closed")
	ErrConnectionFailed = errors.New("failed to connect to database")

	// Transaction errors
	ErrTransactionClosed = errors.New("transaction is closed")

	// Data errors
	ErrWalletNotFound = errors.New("wallet not found")
	ErrOfferNotFound  = errors.New("sell offer not found")
	ErrDuplicateEntry = errors.New("duplicate entry")
)

// ErrorType represents different categories of database errors
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeConfiguration
	ErrorTypeConnection
	ErrorTypeTransaction
	ErrorTypeData
	ErrorTypeConstraint
	ErrorTypeQuery
	ErrorTypeSchema
)

// Error codes attached to DatabaseError for matching against sentinels.
const (
	CodeDuplicateEntry   = "DUPLICATE_ENTRY"
	CodeWalletNotFound   = "WALLET_NOT_FOUND"
	CodeOfferNotFound    = "OFFER_NOT_FOUND"
	CodeConnectionFailed = "CONNECTION_FAILED"
	CodeTxClosed         = "TRANSACTION_CLOSED"
)

// DatabaseError provides detailed information about database errors
type DatabaseError struct {
	Type      ErrorType      `json:"type"`
	Operation string         `json:"operation"`
	Message   string         `json:"message"`
	Cause     error          `json:"cause,omitempty"`
	Code      string         `json:"code,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Retryable bool           `json:"retryable"`
}

// Error implements the error interface
func (e *DatabaseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Operation, e.Message)
}

// Unwrap returns the underlying cause error
func (e *DatabaseError) Unwrap() error {
	return e.Cause
}

// Is reports whether the error matches target, either another DatabaseError
// with the same type and message or one of the data sentinels through Code.
func (e *DatabaseError) Is(target error) bool {
	if target == nil {
		return false
	}

	if dbErr, ok := target.(*DatabaseError); ok {
		return e.Message == dbErr.Message && e.Type == dbErr.Type
	}

	switch target {
	case ErrDuplicateEntry:
		return e.Type == ErrorTypeConstraint && e.Code == CodeDuplicateEntry
	case ErrWalletNotFound:
		return e.Type == ErrorTypeData && e.Code == CodeWalletNotFound
	case ErrOfferNotFound:
		return e.Type == ErrorTypeData && e.Code == CodeOfferNotFound
	case ErrConnectionFailed:
		return e.Type == ErrorTypeConnection && e.Code == CodeConnectionFailed
	case ErrTransactionClosed:
		return e.Type == ErrorTypeTransaction && e.Code == CodeTxClosed
	}

	return false
}

// WithDetail adds a detail to the error
func (e *DatabaseError) WithDetail(key string, value any) *DatabaseError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCode sets the error code
func (e *DatabaseError) WithCode(code string) *DatabaseError {
	e.Code = code
	return e
}

// IsRetryable returns whether the error is retryable
func (e *DatabaseError) IsRetryable() bool {
	return e.Retryable
}

// NewDatabaseError creates a new DatabaseError
func NewDatabaseError(errorType ErrorType, operation, message string, cause error) *DatabaseError {
	return &DatabaseError{
		Type:      errorType,
		Operation: operation,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryableError(errorType, cause),
	}
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(operation, message string, cause error) *DatabaseError {
	return NewDatabaseError(ErrorTypeConfiguration, operation, message, cause)
}

// NewConnectionError creates a connection error
func NewConnectionError(operation, message string, cause error) *DatabaseError {
	return NewDatabaseError(ErrorTypeConnection, operation, message, cause)
}

// NewTransactionError creates a transaction error
func NewTransactionError(operation, message string, cause error) *DatabaseError {
	return NewDatabaseError(ErrorTypeTransaction, operation, message, cause)
}

// NewDataError creates a data error
func NewDataError(operation, message string, cause error) *DatabaseError {
	return NewDatabaseError(ErrorTypeData, operation, message, cause)
}

// NewConstraintError creates a constraint error
func NewConstraintError(operation, message string, cause error) *DatabaseError {
	return NewDatabaseError(ErrorTypeConstraint, operation, message, cause)
}

// NewQueryError creates a query error
func NewQueryError(operation, message string, cause error) *DatabaseError {
	return NewDatabaseError(ErrorTypeQuery, operation, message, cause)
}

// NewSchemaError creates a schema error
func NewSchemaError(operation, message string, cause error) *DatabaseError {
	return NewDatabaseError(ErrorTypeSchema, operation, message, cause)
}

// isRetryableError determines if an error is retryable based on its type and cause
func isRetryableError(errorType ErrorType, cause error) bool {
	switch errorType {
	case ErrorTypeConnection:
		return true
	case ErrorTypeTransaction, ErrorTypeQuery:
		return cause != nil && hasAny(cause.Error(), "deadlock", "timeout", "connection", "temporary", "database is locked", "busy")
	default:
		return false
	}
}

var retryablePatterns = []string{
	"connection refused",
	"connection reset",
	"connection timeout",
	"database is locked",
	"temporary failure",
	"deadlock",
	"timeout",
	"busy",
}

func hasAny(s string, patterns ...string) bool {
	s = strings.ToLower(s)
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var dbErr *DatabaseError
	if errors.As(err, &dbErr) {
		return dbErr.Retryable
	}
	return hasAny(err.Error(), retryablePatterns...)
}

// WrapError wraps an existing error with database error context
func WrapError(err error, operation string) error {
	if err == nil {
		return nil
	}

	var dbErr *DatabaseError
	if errors.As(err, &dbErr) {
		newErr := *dbErr
		newErr.Operation = operation
		return &newErr
	}

	errStr := err.Error()
	var errorType ErrorType
	var retryable bool

	switch {
	case hasAny(errStr, "connection", "connect"):
		errorType = ErrorTypeConnection
		retryable = true
	case hasAny(errStr, "transaction", "deadlock"):
		errorType = ErrorTypeTransaction
		retryable = hasAny(errStr, "deadlock", "timeout")
	case hasAny(errStr, "constraint", "duplicate", "unique"):
		errorType = ErrorTypeConstraint
	case hasAny(errStr, "not found", "no rows"):
		errorType = ErrorTypeData
	case hasAny(errStr, "syntax", "invalid"):
		errorType = ErrorTypeQuery
	case hasAny(errStr, "table", "column", "schema"):
		errorType = ErrorTypeSchema
	default:
		errorType = ErrorTypeUnknown
	}

	return &DatabaseError{
		Type:      errorType,
		Operation: operation,
		Message:   errStr,
		Cause:     err,
		Retryable: retryable,
	}
}
