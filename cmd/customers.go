package cmd

import (
	"github.com/spf13/cobra"

	"netbill/internal/logger"
	"netbill/pkg/models"
)

var customersCmd = &cobra.Command{
	Use:   "customers",
	Short: "Manage the customer directory",
}

var customersSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Create customer records for new router subscribers",
	Long: `Create a customer record, with the next customer number, for every router
subscriber that has none. Existing records and numbers are never changed.`,
	RunE: runCustomersSync,
}

var customersSetCmd = &cobra.Command{
	Use:     "set",
	Short:   "Create or edit a customer record",
	Example: `  netbill customers set --subscriber alice --name "Alice" --phone 0812000111 --agent p1 --technician p2`,
	RunE:    runCustomersSet,
}

var customersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List customers by customer number",
	RunE:  runCustomersList,
}

func init() {
	rootCmd.AddCommand(customersCmd)
	customersCmd.AddCommand(customersSyncCmd, customersSetCmd, customersListCmd)

	customersSetCmd.Flags().String("subscriber", "", "Subscriber (PPP secret name)")
	customersSetCmd.Flags().String("name", "", "Customer name")
	customersSetCmd.Flags().String("address", "", "Address")
	customersSetCmd.Flags().String("phone", "", "Phone number")
	customersSetCmd.Flags().String("agent", "", "Agent partner id")
	customersSetCmd.Flags().String("technician", "", "Technician partner id")
}

func runCustomersSync(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("customers")

	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{router: true})
	if err != nil {
		return err
	}
	defer a.close()

	subscribers, err := a.source().ListSubscribers(ctx)
	if err != nil {
		return err
	}

	result, err := a.customers.Sync(ctx, subscribers)
	if err != nil {
		return err
	}

	log.Info().Int("created", len(result.Created)).Int("total", result.Total).Msg("Customer directory synced")
	return writeResult(cmd, result)
}

func runCustomersSet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	subscriber, _ := cmd.Flags().GetString("subscriber")
	existing, err := a.customers.Customers(ctx)
	if err != nil {
		return err
	}

	// unset flags keep the stored value
	rec := existing[subscriber]
	rec.SubscriberID = subscriber
	setString(cmd, "name", &rec.Name)
	setString(cmd, "address", &rec.Address)
	setString(cmd, "phone", &rec.Phone)
	setString(cmd, "agent", &rec.AgentID)
	setString(cmd, "technician", &rec.TechnicianID)

	saved, err := a.customers.Upsert(ctx, rec)
	if err != nil {
		return err
	}
	return writeResult(cmd, saved)
}

func runCustomersList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	records, err := a.customers.List(ctx)
	if err != nil {
		return err
	}
	if records == nil {
		records = []models.CustomerRecord{}
	}
	return writeResult(cmd, records)
}

func setString(cmd *cobra.Command, flag string, dst *string) {
	if cmd.Flags().Changed(flag) {
		*dst, _ = cmd.Flags().GetString(flag)
	}
}
