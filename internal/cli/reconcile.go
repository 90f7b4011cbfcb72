package cli

import (
	"encoding/json"
	"sort"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/XavTo/Blockchain/internal/offer"
	"github.com/XavTo/Blockchain/internal/storage/relationaldb"
)

var reconcileAccount int64

// reconcileCmd recovers the journal and compares the mirror with the ledger.
// It opens the journal, so it must not run next to a serving instance.
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Recover the offer journal and report mirror drift",
	Long: `Resolve journaled offer submissions against the ledger, release stale
claims, then compare every seller's active mirror rows with the sell offers the
ledger holds for their wallets. Drift is reported as JSON; nothing is repaired
automatically.`,
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
	reconcileCmd.Flags().Int64Var(&reconcileAccount, "account", 0, "only check this account (default: every seller with active offers)")
}

// reconcileReport is printed by the reconcile command
type reconcileReport struct {
	Recovery *offer.RecoveryReport `json:"recovery"`
	Drift    []*offer.Drift        `json:"drift"`
	InSync   bool                  `json:"in_sync"`
}

func runReconcile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	recovery, err := a.engine.Recover(ctx)
	if err != nil {
		return errors.Wrap(err, "recover offer journal")
	}

	accounts := []int64{reconcileAccount}
	if reconcileAccount == 0 {
		if accounts, err = sellerAccounts(cmd, a); err != nil {
			return err
		}
	}

	report := &reconcileReport{Recovery: recovery, Drift: []*offer.Drift{}, InSync: true}
	for _, id := range accounts {
		wallets, err := a.wallets.ListForAccount(ctx, id)
		if err != nil {
			return errors.Wrapf(err, "wallets of account %d", id)
		}
		for _, w := range wallets {
			drift, err := a.query.Reconcile(ctx, w)
			if err != nil {
				return err
			}
			if !drift.InSync() {
				report.InSync = false
				report.Drift = append(report.Drift, drift)
			}
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// sellerAccounts lists the accounts that own active mirror rows
func sellerAccounts(cmd *cobra.Command, a *app) ([]int64, error) {
	rows, err := a.db.Repositories().Offers().ListOffersByStatus(cmd.Context(), relationaldb.OfferStatusActive)
	if err != nil {
		return nil, errors.Wrap(err, "list active offers")
	}
	seen := make(map[int64]struct{})
	var ids []int64
	for _, r := range rows {
		if _, ok := seen[r.SellerAccountID]; ok {
			continue
		}
		seen[r.SellerAccountID] = struct{}{}
		ids = append(ids, r.SellerAccountID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
