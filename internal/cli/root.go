package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/XavTo/Blockchain/internal/config"
)

var (
	// Global flags
	configFile string
	envFile    string
	debugMode  bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "nftmarketd",
	Short: "nftmarketd - NFT marketplace backend on the XRP Ledger",
	Long: `nftmarketd mints NFTs for registered users, lists them for sale and
runs sell offers through their lifecycle on the ledger while keeping a local
mirror of offer state for fast queries.`,
	Version:       "0.1.0-dev",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "conf", "", "configuration file path (toml, yaml or json)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "dotenv file path (default .env when present)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging and gin debug mode")
}

// loadConfig loads the configuration named by the global flags
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(config.ConfigPaths{Main: configFile, Env: envFile})
	if err != nil {
		return nil, err
	}
	if debugMode {
		cfg.Log.Level = "debug"
		cfg.Server.Debug = true
	}
	return cfg, nil
}
