package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"netbill/internal/logger"
	"netbill/internal/reconciliation"
	"netbill/internal/sheets"
)

var paymentsCmd = &cobra.Command{
	Use:   "payments",
	Short: "Bulk payment operations",
}

var paymentsImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Record payments from a Payments sheet",
	Long: `Record every row of a Payments sheet as a payment.

Columns: A=Subscriber, B=Amount, C=Method, D=Paid date, E=Notes, F=Period (YYYY-MM).
The first row is a header. Rows are read from GOOGLE_SHEET_URL unless --xlsx is given.
Invalid rows and periods that are already paid are skipped and reported.

Required environment variables for Google Sheets:
  GOOGLE_APPLICATION_CREDENTIALS - Path to service account JSON file, OR
  GOOGLE_CREDENTIALS - Inline JSON credentials string
  GOOGLE_SHEET_URL - Google Sheets URL containing the Payments sheet`,
	Example: `  netbill payments import
  netbill payments import --xlsx march.xlsx --dry-run`,
	RunE: runPaymentsImport,
}

func init() {
	rootCmd.AddCommand(paymentsCmd)
	paymentsCmd.AddCommand(paymentsImportCmd)

	paymentsImportCmd.Flags().String("sheet-name", reconciliation.DefaultSheet, "Sheet to read")
	paymentsImportCmd.Flags().String("xlsx", "", "Read from this xlsx file instead of Google Sheets")
	paymentsImportCmd.Flags().Bool("dry-run", false, "Parse and report without recording")
}

func runPaymentsImport(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("payments-import")

	sheetName, _ := cmd.Flags().GetString("sheet-name")
	xlsxPath, _ := cmd.Flags().GetString("xlsx")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	ctx := cmd.Context()
	source, err := paymentSource(ctx, xlsxPath)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	log.Info().
		Str("sheet", sheetName).
		Str("xlsx", xlsxPath).
		Bool("dry_run", dryRun).
		Msg("Starting payment import")

	importer := reconciliation.NewImporter(reconciliation.NewDataReader(source), a.payments())
	result, err := importer.Import(ctx, sheetName, dryRun)
	if result != nil {
		if werr := writeResult(cmd, result); werr != nil && err == nil {
			err = werr
		}
	}
	return err
}

func paymentSource(ctx context.Context, xlsxPath string) (reconciliation.RangeReader, error) {
	if xlsxPath != "" {
		return reconciliation.NewWorkbook(xlsxPath), nil
	}
	if appConfig.GoogleSheetURL == "" {
		return nil, fmt.Errorf("GOOGLE_SHEET_URL environment variable is required unless --xlsx is given")
	}
	svc, err := sheets.NewSheetsService(ctx, appConfig.GoogleSheetURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets service: %w", err)
	}
	return svc, nil
}
