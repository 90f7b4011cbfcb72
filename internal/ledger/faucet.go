package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// FundedAccount is a new account created and funded by a test-net faucet
type FundedAccount struct {
	Address string
	Seed    string
	Balance float64
}

type faucetResponse struct {
	Account struct {
		ClassicAddress string `json:"classicAddress"`
		Address        string `json:"address"`
		Secret         string `json:"secret"`
		Seed           string `json:"seed"`
	} `json:"account"`
	Seed    string  `json:"seed"`
	Balance float64 `json:"balance"`
}

// Faucet requests funded accounts from a test-net faucet
type Faucet struct {
	url     string
	http    *http.Client
	ledger  *Client
	timeout time.Duration
	logger  *zap.Logger
}

// NewFaucet creates a faucet client. The ledger client is used to wait for
// the new account to appear in a validated ledger.
func NewFaucet(url string, ledger *Client, logger *zap.Logger) *Faucet {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Faucet{
		url:     url,
		http:    &http.Client{Timeout: 30 * time.Second},
		ledger:  ledger,
		timeout: 60 * time.Second,
		logger:  logger,
	}
}

// Fund creates a funded account and waits until it is visible on the ledger
func (f *Faucet) Fund(ctx context.Context) (*FundedAccount, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader([]byte(`{}`)))
	if err != nil {
		return nil, errors.Wrap(err, "faucet: build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "faucet: transport")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, "faucet: read response")
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, errors.Errorf("faucet: unexpected http status %d: %s", resp.StatusCode, truncate(raw, 256))
	}

	var fr faucetResponse
	if err := json.Unmarshal(raw, &fr); err != nil {
		return nil, errors.Wrapf(ErrMalformedResponse, "faucet: %v", err)
	}

	acct := &FundedAccount{Balance: fr.Balance}
	acct.Address = firstNonEmpty(fr.Account.ClassicAddress, fr.Account.Address)
	acct.Seed = firstNonEmpty(fr.Account.Seed, fr.Account.Secret, fr.Seed)
	if acct.Address == "" || acct.Seed == "" {
		return nil, errors.Wrap(ErrMalformedResponse, "faucet: missing address or seed")
	}

	f.logger.Info("faucet funded account", zap.String("address", acct.Address))

	if err := f.waitForAccount(ctx, acct.Address); err != nil {
		return nil, err
	}
	return acct, nil
}

func (f *Faucet) waitForAccount(ctx context.Context, address string) error {
	if f.ledger == nil {
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.ledger.cfg.PollInterval
	b.MaxInterval = f.ledger.cfg.MaxPollInterval
	b.MaxElapsedTime = f.timeout

	op := func() error {
		_, err := f.ledger.AccountInfo(ctx, address)
		if err != nil && !IsRPCError(err, ErrNameActNotFound) {
			f.logger.Debug("waiting for funded account", zap.String("address", address), zap.Error(err))
		}
		return err
	}
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return errors.Wrapf(err, "faucet: account %s not visible", address)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
