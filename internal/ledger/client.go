// Package ledger is the marketplace's only path to the ledger node. It speaks
// the node's JSON-RPC dialect over HTTP, decodes responses into explicit
// schemas and offers a two-step (prepare, then submit and wait) submission
// flow whose transaction hash is known before anything is sent.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/XavTo/Blockchain/internal/metrics"
)

// Config holds the ledger client settings
type Config struct {
	URL              string        `mapstructure:"url"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	RateLimit        float64       `mapstructure:"rate_limit"` // requests per second, 0 disables limiting
	Burst            int           `mapstructure:"burst"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	MaxPollInterval  time.Duration `mapstructure:"max_poll_interval"`
	LastLedgerOffset uint32        `mapstructure:"last_ledger_offset"`
	MaxFeeDrops      uint64        `mapstructure:"max_fee_drops"`
}

// DefaultConfig returns settings suitable for the public test network
func DefaultConfig() Config {
	return Config{
		URL:              "https://s.altnet.rippletest.net:51234",
		RequestTimeout:   10 * time.Second,
		RateLimit:        20,
		Burst:            10,
		PollInterval:     time.Second,
		MaxPollInterval:  4 * time.Second,
		LastLedgerOffset: 20,
		MaxFeeDrops:      2000,
	}
}

// Validate checks the configuration for common errors
func (c Config) Validate() error {
	u, err := url.Parse(c.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid ledger url: %q", c.URL)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate limit must be >= 0, got %v", c.RateLimit)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.MaxPollInterval < c.PollInterval {
		return fmt.Errorf("max poll interval must be >= poll interval")
	}
	if c.LastLedgerOffset == 0 {
		return fmt.Errorf("last ledger offset must be positive")
	}
	return nil
}

// Client is a JSON-RPC client for a single ledger node. It is safe for
// concurrent use and is meant to be shared by the whole process.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
	metrics *metrics.Collectors
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the pooled HTTP client
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithMetrics sets the metrics collectors
func WithMetrics(m *metrics.Collectors) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient creates a client for cfg.URL
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		cfg: cfg,
		http: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Inf, 0),
		logger:  zap.NewNop(),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the client configuration
func (c *Client) Config() Config {
	return c.cfg
}

type rpcRequest struct {
	Method string `json:"method"`
	Params []any  `json:"params"`
}

type rpcEnvelope struct {
	Result json.RawMessage `json:"result"`
}

type rpcStatus struct {
	Status       string `json:"status"`
	Error        string `json:"error"`
	ErrorCode    int    `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// Call performs one JSON-RPC request and decodes its result into out. A
// result with status "error" is returned as *RPCError.
func (c *Client) Call(ctx context.Context, method string, params any, out any) (err error) {
	start := time.Now()
	defer func() {
		c.metrics.ObserveLedgerCall(method, outcome(err), time.Since(start))
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrapf(err, "%s: rate limiter", method)
	}

	if c.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}

	if params == nil {
		params = map[string]any{}
	}
	body, err := json.Marshal(rpcRequest{Method: method, Params: []any{params}})
	if err != nil {
		return errors.Wrapf(err, "%s: encode request", method)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return errors.Wrapf(err, "%s: build request", method)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s: transport", method)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return errors.Wrapf(err, "%s: read response", method)
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("%s: unexpected http status %d: %s", method, resp.StatusCode, truncate(raw, 256))
	}

	var env rpcEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return errors.Wrapf(ErrMalformedResponse, "%s: %v", method, err)
	}
	if len(env.Result) == 0 {
		return errors.Wrapf(ErrMalformedResponse, "%s: missing result", method)
	}

	var st rpcStatus
	if err := json.Unmarshal(env.Result, &st); err != nil {
		return errors.Wrapf(ErrMalformedResponse, "%s: %v", method, err)
	}
	if st.Status == "error" || st.Error != "" {
		return &RPCError{Code: st.ErrorCode, Name: st.Error, Message: st.ErrorMessage, Method: method}
	}

	c.logger.Debug("ledger call", zap.String("method", method), zap.Duration("took", time.Since(start)))

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return errors.Wrapf(ErrMalformedResponse, "%s: decode result: %v", method, err)
	}
	return nil
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.Name
	}
	return "error"
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
