package cli

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/XavTo/Blockchain/internal/api"
)

var (
	walletAccount int64
	tokenTTL      time.Duration
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Manage custodial wallets",
}

var walletProvisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Create and fund the wallet of an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		if walletAccount <= 0 {
			return errors.New("--account is required")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.close()

		creds, err := a.provisioner.Provision(cmd.Context(), walletAccount)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "account %d: %s\n", creds.AccountID, creds.Address)
		return nil
	},
}

// tokenCmd signs a bearer token for local testing against the API
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API bearer token for an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		if walletAccount <= 0 {
			return errors.New("--account is required")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		token, err := api.IssueToken(cfg.Auth.Secret, cfg.Auth.Issuer, walletAccount, tokenTTL)
		if err != nil {
			return errors.Wrap(err, "sign token")
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	walletProvisionCmd.Flags().Int64Var(&walletAccount, "account", 0, "account id")
	walletCmd.AddCommand(walletProvisionCmd)
	rootCmd.AddCommand(walletCmd)

	tokenCmd.Flags().Int64Var(&walletAccount, "account", 0, "account id")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
