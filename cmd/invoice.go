package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"netbill/internal/ledger"
	"netbill/internal/report"
	"netbill/pkg/models"
)

var invoiceCmd = &cobra.Command{
	Use:   "invoice",
	Short: "Inspect and update ledger invoices",
}

var invoiceStatusCmd = &cobra.Command{
	Use:   "status <id|invoice-number> <pending|completed|postponed>",
	Short: "Change the status of an invoice",
	Example: `  netbill invoice status INV/25/02/001/0002 completed --paid-at 2025-02-10
  netbill invoice status 0b6f0c1e-8e0f-4b8e-9b2a-3d0c4e2f1a77 postponed`,
	Args: cobra.ExactArgs(2),
	RunE: runInvoiceStatus,
}

var invoiceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List invoices",
	Example: `  netbill invoice list --month 2 --year 2025
  netbill invoice list --subscriber alice --status pending
  netbill invoice list --month 2 --year 2025 --xlsx invoices.xlsx`,
	RunE: runInvoiceList,
}

func init() {
	rootCmd.AddCommand(invoiceCmd)
	invoiceCmd.AddCommand(invoiceStatusCmd, invoiceListCmd)

	invoiceStatusCmd.Flags().String("paid-at", "", "Payment date YYYY-MM-DD when completing (default: now)")

	invoiceListCmd.Flags().String("subscriber", "", "Only this subscriber")
	invoiceListCmd.Flags().Int("month", 0, "Only this period month (requires --year)")
	invoiceListCmd.Flags().Int("year", 0, "Only this period year (requires --month)")
	invoiceListCmd.Flags().StringSlice("status", nil, "Only these statuses")
	invoiceListCmd.Flags().Bool("active", false, "Hide merged invoices")
	invoiceListCmd.Flags().String("xlsx", "", "Also export the list to this xlsx file")
}

func runInvoiceStatus(cmd *cobra.Command, args []string) error {
	status, err := models.ParseInvoiceStatus(args[1])
	if err != nil {
		return err
	}
	paidAtStr, _ := cmd.Flags().GetString("paid-at")
	paidAt, err := parseDay(paidAtStr)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	id, err := resolveInvoiceID(cmd, a, args[0])
	if err != nil {
		return err
	}

	rec, err := a.payments().UpdateInvoiceStatus(ctx, id, status, paidAt)
	if err != nil {
		return err
	}
	return writeResult(cmd, rec)
}

// resolveInvoiceID accepts either a record id or an invoice number.
func resolveInvoiceID(cmd *cobra.Command, a *app, ref string) (string, error) {
	all, err := a.store.All(cmd.Context())
	if err != nil {
		return "", err
	}
	for _, r := range all {
		if r.ID == ref || r.InvoiceNumber == ref {
			return r.ID, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ledger.ErrInvoiceNotFound, ref)
}

func runInvoiceList(cmd *cobra.Command, args []string) error {
	subscriber, _ := cmd.Flags().GetString("subscriber")
	statuses, _ := cmd.Flags().GetStringSlice("status")
	active, _ := cmd.Flags().GetBool("active")
	xlsxPath, _ := cmd.Flags().GetString("xlsx")

	filter := ledger.Filter{SubscriberID: subscriber, ActiveOnly: active}
	for _, s := range statuses {
		st, err := models.ParseInvoiceStatus(s)
		if err != nil {
			return err
		}
		filter.Statuses = append(filter.Statuses, st)
	}
	if cmd.Flags().Changed("month") || cmd.Flags().Changed("year") {
		month, _ := cmd.Flags().GetInt("month")
		year, _ := cmd.Flags().GetInt("year")
		p, err := models.NewPeriod(month, year)
		if err != nil {
			return fmt.Errorf("--month and --year must be given together: %w", err)
		}
		filter.Period = &p
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	invoices, err := a.store.Find(ctx, filter)
	if err != nil {
		return err
	}

	if xlsxPath != "" {
		if err := report.WriteWorkbook(xlsxPath, report.InvoiceTable("Invoices", invoices)); err != nil {
			return err
		}
	}
	return writeResult(cmd, invoices)
}
