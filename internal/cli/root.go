// Package cli implements the budgetpool command line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "budgetpool",
	Short: "Shared budget pool with allocation and purchase tracking",
	Long: `budgetpool manages a shared pool of funds: admins allocate budgets
to accounts, sub-admins record purchases against them, and every balance
is derived from an append-only ledger so the numbers always reconcile.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default ~/.budgetpool/config.toml)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the budgetpool version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(os.Stdout, "budgetpool %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
