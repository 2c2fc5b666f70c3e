package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/budgetpool/budgetpool/internal/domain"
	"github.com/budgetpool/budgetpool/internal/infra/sqlite"
	"github.com/budgetpool/budgetpool/internal/ledger"
)

// ─── Inspection commands ────────────────────────────────────────────────────
// Read-only views over the local store, for poking at state without the
// server running. Mutations go through the HTTP API.

func init() {
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(accountsCmd)
	rootCmd.AddCommand(poolCmd)
	rootCmd.AddCommand(historyCmd)
}

// openEngine opens the configured sqlite store for local inspection.
func openEngine(cmd *cobra.Command) (*ledger.Engine, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Store.Backend == "memory" {
		return nil, nil, errors.New("inspection commands need the sqlite backend")
	}

	db, err := sqlite.Open(cfg.Store.Dir)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return ledger.New(cfg.EngineConfig(), db, nil), func() { db.Close() }, nil
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show the pool-wide budget summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, cleanup, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		sum, err := eng.Summary(context.Background())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "Total funds:\t%s\n", sum.TotalFunds)
		fmt.Fprintf(w, "Allocated:\t%s\n", sum.TotalAllocated)
		fmt.Fprintf(w, "Used:\t%s\n", sum.TotalUsed)
		fmt.Fprintf(w, "Remaining:\t%s\n", sum.TotalRemaining)
		fmt.Fprintf(w, "Accounts:\t%d\n", sum.AccountCount)
		return w.Flush()
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance ACCOUNT_ID",
	Short: "Show one account's balance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, cleanup, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		bal, err := eng.GetBalance(context.Background(), args[0])
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "Account:\t%s\n", bal.AccountID)
		fmt.Fprintf(w, "Allocated:\t%s\n", bal.TotalAllocated)
		fmt.Fprintf(w, "Used:\t%s\n", bal.Used)
		fmt.Fprintf(w, "Remaining:\t%s\n", bal.Remaining)
		fmt.Fprintf(w, "Usage:\t%d%%\n", bal.UsagePercent)
		return w.Flush()
	},
}

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List all accounts with their balances",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, cleanup, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		ctx := context.Background()
		ids, err := eng.Accounts(ctx)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Fprintln(os.Stdout, "No accounts yet.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ACCOUNT\tALLOCATED\tUSED\tREMAINING\tUSAGE")
		for _, id := range ids {
			bal, err := eng.GetBalance(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d%%\n",
				bal.AccountID, bal.TotalAllocated, bal.Used, bal.Remaining, bal.UsagePercent)
		}
		return w.Flush()
	},
}

var poolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Show the global pool budget",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, cleanup, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		pool, err := eng.PoolBudget(context.Background())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "Total added:\t%s\n", pool.TotalAdded)
		fmt.Fprintf(w, "Allocated:\t%s\n", pool.TotalAllocated)
		fmt.Fprintf(w, "Available:\t%s\n", pool.Remaining)
		return w.Flush()
	},
}

var historyCmd = &cobra.Command{
	Use:   "history ACCOUNT_ID",
	Short: "Show one account's ledger history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, cleanup, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer cleanup()

		entries, err := eng.History(context.Background(), args[0])
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "WHEN\tKIND\tAMOUNT\tACTOR\tNOTE")
		for _, e := range entries {
			note := e.Note
			if e.Kind == domain.EntryReversal {
				note = "reverses " + e.RefID
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				e.Timestamp.Local().Format(time.DateTime), e.Kind, e.Amount, e.Actor.ID, note)
		}
		return w.Flush()
	},
}
