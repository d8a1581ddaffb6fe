package cmd

import (
	"github.com/spf13/cobra"
)

var dropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Suspend subscribers with unpaid invoices",
	Long: `Move every subscriber with a pending or postponed invoice in the period onto
the suspension profile and terminate their active session.

A router failure on one subscriber is reported and does not stop the others.`,
	Example: `  netbill drop
  netbill drop --month 2 --year 2025`,
	RunE: runDrop,
}

func init() {
	rootCmd.AddCommand(dropCmd)
	addPeriodFlags(dropCmd)
}

func runDrop(cmd *cobra.Command, args []string) error {
	period, err := periodFromFlags(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{router: true})
	if err != nil {
		return err
	}
	defer a.close()

	result, err := a.enforcer().CheckAndDrop(ctx, period)
	if result != nil {
		if werr := writeResult(cmd, result); werr != nil && err == nil {
			err = werr
		}
	}
	return err
}
