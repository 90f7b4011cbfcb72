// Package funds checks whether an account can afford a purchase before a
// transaction is submitted. The ledger still enforces settlement; the check
// only avoids paying fees for transactions that would fail.
package funds

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/XavTo/Blockchain/internal/ledger"
)

// FeeBufferDrops is the margin kept on top of the price for fees
const FeeBufferDrops = 1000

var (
	// ErrInsufficientFunds is returned when balance < price + fee buffer
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrAccountLookup is returned when the balance cannot be read
	ErrAccountLookup = errors.New("account lookup failed")
)

// LookupError carries the ledger error behind ErrAccountLookup
type LookupError struct {
	Address string
	Err     error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("account lookup for %s failed: %v", e.Address, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

func (e *LookupError) Is(target error) bool { return target == ErrAccountLookup }

// AccountReader reads account roots from the validated ledger
type AccountReader interface {
	AccountInfo(ctx context.Context, address string) (*ledger.AccountInfo, error)
}

// Checker performs balance prechecks
type Checker struct {
	accounts AccountReader
	buffer   decimal.Decimal
	logger   *zap.Logger
}

// NewChecker creates a checker. A non-positive buffer uses FeeBufferDrops.
func NewChecker(accounts AccountReader, bufferDrops int64, logger *zap.Logger) *Checker {
	if bufferDrops <= 0 {
		bufferDrops = FeeBufferDrops
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{accounts: accounts, buffer: decimal.NewFromInt(bufferDrops), logger: logger}
}

// GetBalance returns the validated balance of address in drops
func (c *Checker) GetBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	info, err := c.accounts.AccountInfo(ctx, address)
	if err != nil {
		return decimal.Zero, &LookupError{Address: address, Err: err}
	}
	balance, err := decimal.NewFromString(info.AccountData.Balance)
	if err != nil {
		return decimal.Zero, &LookupError{Address: address, Err: errors.Wrapf(err, "balance %q", info.AccountData.Balance)}
	}
	return balance, nil
}

// CanPay reports whether balance covers price plus the fee buffer
func (c *Checker) CanPay(balance, price decimal.Decimal) bool {
	return balance.GreaterThanOrEqual(price.Add(c.buffer))
}

// EnsureCanPay fails with ErrInsufficientFunds when address cannot cover price
func (c *Checker) EnsureCanPay(ctx context.Context, address string, price decimal.Decimal) error {
	balance, err := c.GetBalance(ctx, address)
	if err != nil {
		return err
	}
	if !c.CanPay(balance, price) {
		c.logger.Info("funds precheck failed",
			zap.String("address", address),
			zap.String("balance", balance.String()),
			zap.String("price", price.String()))
		return errors.Wrapf(ErrInsufficientFunds, "balance %s drops, need %s plus %s", balance, price, c.buffer)
	}
	return nil
}

// ParseDrops parses a non-negative integer amount of drops
func ParseDrops(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "amount %q", s)
	}
	if d.IsNegative() || !d.Equal(d.Truncate(0)) {
		return decimal.Zero, errors.Errorf("amount %q must be a non-negative whole number of drops", s)
	}
	return d, nil
}
