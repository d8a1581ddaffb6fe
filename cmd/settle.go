package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"netbill/internal/logger"
	"netbill/internal/report"
	"netbill/internal/sheets"
)

var settleCmd = &cobra.Command{
	Use:   "settle",
	Short: "Settle partner commissions for a billing period",
	Long: `Compute per-partner revenue, agent and technician commission and paid/unpaid
counts for a period, plus grand totals.

A partner who is both agent and technician for a customer earns both
commissions while the customer's revenue is counted once.`,
	Example: `  netbill settle --month 2 --year 2025
  netbill settle --month 2 --year 2025 --xlsx settlement-2025-02.xlsx
  netbill settle --month 2 --year 2025 --sheet`,
	RunE: runSettle,
}

var settleYearCmd = &cobra.Command{
	Use:     "settle-year",
	Short:   "Monthly revenue and commission aggregates for a year",
	Example: `  netbill settle-year --year 2025 --xlsx 2025.xlsx`,
	RunE:    runSettleYear,
}

func init() {
	rootCmd.AddCommand(settleCmd, settleYearCmd)

	addPeriodFlags(settleCmd)
	settleCmd.Flags().String("xlsx", "", "Also export the settlement to this xlsx file")
	settleCmd.Flags().Bool("sheet", false, "Also export the settlement to GOOGLE_SHEET_URL")

	settleYearCmd.Flags().Int("year", 0, "Year (default: current year)")
	settleYearCmd.Flags().String("xlsx", "", "Also export the aggregates to this xlsx file")
	settleYearCmd.Flags().Bool("sheet", false, "Also export the aggregates to GOOGLE_SHEET_URL")
}

func runSettle(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("settle")

	period, err := periodFromFlags(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	settlement, err := a.calculator().Settle(ctx, period)
	if err != nil {
		return err
	}

	log.Info().
		Str("period", period.String()).
		Int("partners", len(settlement.Partners)).
		Str("revenue", settlement.GrandTotal.Revenue.String()).
		Str("commission", settlement.GrandTotal.Commission.String()).
		Msg("Settlement computed")

	if err := exportTables(ctx, cmd, report.SettlementTables(settlement)); err != nil {
		return err
	}
	return writeResult(cmd, settlement)
}

func runSettleYear(cmd *cobra.Command, args []string) error {
	year, _ := cmd.Flags().GetInt("year")
	if year == 0 {
		year = time.Now().Year()
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	aggregate, err := a.calculator().SettleYear(ctx, year)
	if err != nil {
		return err
	}

	if err := exportTables(ctx, cmd, report.YearTables(aggregate)); err != nil {
		return err
	}
	return writeResult(cmd, aggregate)
}

// exportTables honors the --xlsx and --sheet flags.
func exportTables(ctx context.Context, cmd *cobra.Command, tables []report.Table) error {
	xlsxPath, _ := cmd.Flags().GetString("xlsx")
	toSheet, _ := cmd.Flags().GetBool("sheet")

	if xlsxPath != "" {
		if err := report.WriteWorkbook(xlsxPath, tables...); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Workbook written to %s\n", xlsxPath)
	}

	if toSheet {
		if appConfig.GoogleSheetURL == "" {
			return fmt.Errorf("GOOGLE_SHEET_URL environment variable is required for --sheet")
		}
		svc, err := sheets.NewSheetsService(ctx, appConfig.GoogleSheetURL)
		if err != nil {
			return fmt.Errorf("failed to initialize Google Sheets service: %w", err)
		}
		if err := svc.WriteTables(ctx, tables...); err != nil {
			return err
		}
	}
	return nil
}
