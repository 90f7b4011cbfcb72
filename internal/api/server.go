// Package api exposes the marketplace over HTTP. Handlers authenticate the
// caller, resolve their wallet and delegate to the offer, mint and query
// components; all error to status mapping lives in errors.go.
package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/XavTo/Blockchain/internal/ledger"
	"github.com/XavTo/Blockchain/internal/metrics"
	"github.com/XavTo/Blockchain/internal/nft"
	"github.com/XavTo/Blockchain/internal/offer"
	"github.com/XavTo/Blockchain/internal/storage/relationaldb"
	"github.com/XavTo/Blockchain/internal/wallet"
)

// Config holds the HTTP server settings
type Config struct {
	Address         string        `mapstructure:"address"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimit       float64       `mapstructure:"rate_limit"` // requests per second per client, 0 disables
	RateBurst       int           `mapstructure:"rate_burst"`
	Debug           bool          `mapstructure:"debug"`
	Auth            AuthConfig    `mapstructure:"-"` // loaded from the auth section
}

// AuthConfig holds bearer token validation settings
type AuthConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

// DefaultConfig returns the default server settings. Request timeout must
// cover a full ledger wait.
func DefaultConfig() Config {
	return Config{
		Address:         ":8080",
		RequestTimeout:  120 * time.Second,
		ReadTimeout:     15 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		RateLimit:       10,
		RateBurst:       20,
	}
}

// Validate checks the configuration for common errors
func (c Config) Validate() error {
	if c.Address == "" {
		return errors.New("server address is required")
	}
	if len(c.Auth.Secret) < 16 {
		return errors.New("auth secret must be at least 16 bytes")
	}
	if c.RateLimit < 0 {
		return errors.Errorf("rate limit must be >= 0, got %v", c.RateLimit)
	}
	if c.RequestTimeout < 0 || c.ReadTimeout < 0 || c.ShutdownTimeout < 0 {
		return errors.New("timeouts must be >= 0")
	}
	return nil
}

// Wallets resolves the caller's custodial wallet
type Wallets interface {
	Resolve(ctx context.Context, accountID int64) (*wallet.Credentials, error)
}

// Provisioner creates custodial wallets
type Provisioner interface {
	Provision(ctx context.Context, accountID int64) (*wallet.Credentials, error)
}

// Balances reads validated balances
type Balances interface {
	GetBalance(ctx context.Context, address string) (decimal.Decimal, error)
}

// Minter mints tokens
type Minter interface {
	Mint(ctx context.Context, signer ledger.Signer, uri string) *nft.MintResult
}

// Offers runs the offer lifecycle
type Offers interface {
	Create(ctx context.Context, seller *wallet.Credentials, req offer.CreateRequest) (*offer.Receipt, error)
	Transfer(ctx context.Context, seller *wallet.Credentials, nftokenID, destination string) (*offer.Receipt, error)
	Accept(ctx context.Context, buyer *wallet.Credentials, offerIndex string) (*offer.Receipt, error)
	Cancel(ctx context.Context, seller *wallet.Credentials, offerIndex string) (*offer.Receipt, error)
}

// Listings answers read queries
type Listings interface {
	ListForUser(ctx context.Context, creds *wallet.Credentials) ([]relationaldb.SellOffer, error)
	ListAll(ctx context.Context) ([]relationaldb.SellOffer, error)
	ResolveTokens(ctx context.Context, tokenIDs []string, sellerAccountIDs []int64) ([]nft.TokenRecord, error)
	Stats(ctx context.Context) (*offer.Stats, error)
}

// HealthChecker reports whether a dependency is usable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Services are the components the handlers delegate to
type Services struct {
	Wallets     Wallets
	Provisioner Provisioner
	Balances    Balances
	Minter      Minter
	Offers      Offers
	Listings    Listings
	Health      HealthChecker
}

// Server is the HTTP front of the marketplace
type Server struct {
	cfg      Config
	svc      Services
	logger   *zap.Logger
	metrics  *metrics.Collectors
	gatherer prometheus.Gatherer
	engine   *gin.Engine
	http     *http.Server
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithMetrics sets the collectors and the gatherer served on /metrics
func WithMetrics(m *metrics.Collectors, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = g
	}
}

// NewServer builds the router
func NewServer(cfg Config, svc Services, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		svc:      svc,
		logger:   zap.NewNop(),
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(requestID(), accessLog(s.logger, s.metrics), recovery())

	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	if cfg.RateLimit > 0 {
		limiter, err := newClientLimiter(cfg.RateLimit, cfg.RateBurst, 10000)
		if err != nil {
			return nil, errors.Wrap(err, "rate limiter")
		}
		api.Use(limiter.middleware())
	}
	auth := &authenticator{secret: []byte(cfg.Auth.Secret), issuer: cfg.Auth.Issuer}
	api.Use(auth.middleware(), deadline(cfg.RequestTimeout))

	api.POST("/wallet", s.provisionWallet)
	api.GET("/wallet", s.getWallet)
	api.POST("/mint", s.mint)
	api.POST("/create_sell_offer", s.createSellOffer)
	api.POST("/accept_sell_offer", s.acceptSellOffer)
	api.POST("/cancel_sell_offer", s.cancelSellOffer)
	api.POST("/trade_nft", s.tradeNFT)
	api.GET("/sell_offers_for_me", s.sellOffersForMe)
	api.GET("/all_sell_offers", s.allSellOffers)
	api.POST("/get_nfts", s.getNFTs)
	api.GET("/dashboard", s.dashboard)

	s.engine = r
	return s, nil
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", s.cfg.Address)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.http = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("address", ln.Addr().String()))
		errCh <- s.http.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "http shutdown")
	}
	return nil
}
