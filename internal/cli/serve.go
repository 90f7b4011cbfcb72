package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/XavTo/Blockchain/internal/api"
)

var skipRecover bool

// serveCmd starts the HTTP API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the marketplace API server",
	Long: `Start the nftmarketd HTTP API. Before accepting requests the offer
journal is recovered: submissions left pending by a previous run are resolved
against the ledger and stale offer claims are released.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&skipRecover, "skip-recover", false, "do not recover the offer journal at startup")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if cfg.Offers.RecoverOnStart && !skipRecover {
		if err := a.recoverJournal(ctx); err != nil {
			return err
		}
	}

	srv, err := api.NewServer(cfg.Server, a.services(),
		api.WithLogger(a.logger.Named("api")),
		api.WithMetrics(a.metrics, a.registry))
	if err != nil {
		return errors.Wrap(err, "api server")
	}

	a.logger.Info("nftmarketd starting",
		zap.String("version", rootCmd.Version),
		zap.String("address", cfg.Server.Address),
		zap.String("ledger", cfg.Ledger.URL),
		zap.String("database", cfg.Database.Driver))

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.logger.Info("nftmarketd stopped")
	return nil
}
