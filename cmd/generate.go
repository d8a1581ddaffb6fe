package cmd

import (
	"github.com/spf13/cobra"

	"netbill/internal/logger"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate pending invoices for a billing period",
	Long: `Generate one pending invoice per billable subscriber for the period.

Unpaid invoices of earlier periods are merged into the new invoice. Running the
command again for the same period creates nothing new.`,
	Example: `  # Current month
  netbill generate

  # A specific period
  netbill generate --month 2 --year 2025`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	addPeriodFlags(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("generate")

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

	log.Info().Str("period", period.String()).Msg("Starting invoice generation")

	result, err := a.generator().Generate(ctx, period)
	if err != nil {
		return err
	}
	return writeResult(cmd, result)
}
