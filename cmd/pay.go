package cmd

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"netbill/internal/billing"
	"netbill/pkg/models"
)

var payCmd = &cobra.Command{
	Use:   "pay",
	Short: "Record a payment",
	Long: `Record a payment for a subscriber.

An unpaid invoice for the payment period is marked completed; otherwise a new
completed invoice is created. Commissions are computed from the current partner
assignment and stored with the invoice.`,
	Example: `  netbill pay --subscriber alice --amount 150000 --method cash
  netbill pay --subscriber bob --amount 250000 --method transfer --paid-at 2025-02-03 --month 2 --year 2025`,
	RunE: runPay,
}

func init() {
	rootCmd.AddCommand(payCmd)

	payCmd.Flags().String("subscriber", "", "Subscriber (PPP secret name)")
	payCmd.Flags().String("amount", "", "Amount paid")
	payCmd.Flags().String("method", "cash", "Payment method")
	payCmd.Flags().String("notes", "", "Free-text notes")
	payCmd.Flags().String("paid-at", "", "Payment date YYYY-MM-DD (default: now)")
	payCmd.Flags().Int("month", 0, "Period month the payment settles (default: month of payment)")
	payCmd.Flags().Int("year", 0, "Period year the payment settles (default: year of payment)")
}

func runPay(cmd *cobra.Command, args []string) error {
	subscriber, _ := cmd.Flags().GetString("subscriber")
	amountStr, _ := cmd.Flags().GetString("amount")
	method, _ := cmd.Flags().GetString("method")
	notes, _ := cmd.Flags().GetString("notes")
	paidAtStr, _ := cmd.Flags().GetString("paid-at")

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return &billing.ValidationError{Field: "amount", Value: amountStr, Message: "not a number"}
	}
	paidAt, err := parseDay(paidAtStr)
	if err != nil {
		return err
	}

	in := billing.PaymentInput{
		SubscriberID: subscriber,
		Amount:       amount,
		Method:       method,
		Notes:        notes,
		PaidAt:       paidAt,
	}
	if cmd.Flags().Changed("month") || cmd.Flags().Changed("year") {
		month, _ := cmd.Flags().GetInt("month")
		year, _ := cmd.Flags().GetInt("year")
		p, err := models.NewPeriod(month, year)
		if err != nil {
			return fmt.Errorf("--month and --year must be given together: %w", err)
		}
		in.Period = &p
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	rec, err := a.payments().RecordPayment(ctx, in)
	if err != nil {
		return err
	}
	return writeResult(cmd, rec)
}
