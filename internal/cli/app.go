package cli

import (
	"context"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/XavTo/Blockchain/internal/api"
	"github.com/XavTo/Blockchain/internal/config"
	"github.com/XavTo/Blockchain/internal/funds"
	"github.com/XavTo/Blockchain/internal/ledger"
	"github.com/XavTo/Blockchain/internal/logging"
	"github.com/XavTo/Blockchain/internal/metrics"
	"github.com/XavTo/Blockchain/internal/nft"
	"github.com/XavTo/Blockchain/internal/offer"
	"github.com/XavTo/Blockchain/internal/storage/relationaldb"
	"github.com/XavTo/Blockchain/internal/storage/relationaldb/sqldb"
	"github.com/XavTo/Blockchain/internal/wallet"
)

// app holds the wired components shared by the commands
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Collectors

	ledger      *ledger.Client
	db          *relationaldb.Manager
	journal     *offer.Journal
	funds       *funds.Checker
	wallets     *wallet.Resolver
	provisioner *wallet.Provisioner
	minter      *nft.Minter
	engine      *offer.Engine
	query       *offer.Query
}

// newApp wires every component from cfg. The caller must call close.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, errors.Wrap(err, "logger")
	}

	a := &app{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if a.metrics, err = metrics.New(a.registry); err != nil {
		return nil, errors.Wrap(err, "metrics")
	}

	a.ledger, err = ledger.NewClient(cfg.Ledger.Config,
		ledger.WithLogger(logger.Named("ledger")),
		ledger.WithMetrics(a.metrics))
	if err != nil {
		return nil, errors.Wrap(err, "ledger client")
	}

	repos, err := sqldb.NewRepositoryManager(&cfg.Database)
	if err != nil {
		return nil, errors.Wrap(err, "repository manager")
	}
	a.db = relationaldb.NewManager(repos, &cfg.Database,
		relationaldb.WithLogger(logger.Named("db")),
		relationaldb.WithMetrics(a.metrics.DB()))
	if err := a.db.Open(ctx); err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	if a.journal, err = offer.OpenJournal(cfg.Journal, logger.Named("journal")); err != nil {
		a.close()
		return nil, err
	}

	a.funds = funds.NewChecker(a.ledger, cfg.Offers.FeeBufferDrops, logger.Named("funds"))
	if a.wallets, err = wallet.NewResolver(a.db.Repositories().Wallets(), cfg.Offers.WalletCacheSize, logger.Named("wallet")); err != nil {
		a.close()
		return nil, err
	}

	var funder wallet.Funder
	if cfg.Ledger.FaucetURL != "" {
		funder = ledger.NewFaucet(cfg.Ledger.FaucetURL, a.ledger, logger.Named("faucet"))
	}
	a.provisioner = wallet.NewProvisioner(a.db.Repositories().Wallets(), funder, nil, logger.Named("wallet"))
	a.minter = nft.NewMinter(a.ledger, logger.Named("nft"))

	a.engine = offer.NewEngine(a.ledger, a.db, a.funds, a.journal,
		offer.WithLogger(logger.Named("offer")),
		offer.WithMetrics(a.metrics),
		offer.WithFollowUp(cfg.Offers.FollowUpTimeout, cfg.Offers.FollowUpInterval))

	if a.query, err = offer.NewQuery(a.db.Repositories(), a.wallets, a.ledger, cfg.Offers.FanOut, logger.Named("query")); err != nil {
		a.close()
		return nil, err
	}

	return a, nil
}

// services exposes the components to the HTTP layer
func (a *app) services() api.Services {
	return api.Services{
		Wallets:     a.wallets,
		Provisioner: a.provisioner,
		Balances:    a.funds,
		Minter:      a.minter,
		Offers:      a.engine,
		Listings:    a.query,
		Health:      a.db,
	}
}

// recoverJournal resolves journaled submissions left pending by a previous run
func (a *app) recoverJournal(ctx context.Context) error {
	report, err := a.engine.Recover(ctx)
	if err != nil {
		return errors.Wrap(err, "recover offer journal")
	}
	a.logger.Info("offer journal recovered",
		zap.Int("applied", report.Applied),
		zap.Int("failed", report.Failed),
		zap.Int("pending", report.Pending),
		zap.Int("released", report.Released))
	return nil
}

func (a *app) close() {
	if a.engine != nil {
		a.engine.Close()
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.logger.Warn("close journal", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(context.Background()); err != nil {
			a.logger.Warn("close database", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
