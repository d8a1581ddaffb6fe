package cmd

import (
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"netbill/internal/billing"
	"netbill/pkg/models"
)

var partnersCmd = &cobra.Command{
	Use:   "partners",
	Short: "Manage agents and technicians",
}

var partnersSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Create or edit a partner",
	Example: `  # Agent only
  netbill partners set --id p1 --username budi --agent-rate 10

  # Agent and technician
  netbill partners set --id p2 --username sari --agent-rate 10 --technician-rate 5`,
	RunE: runPartnersSet,
}

var partnersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List partners",
	RunE:  runPartnersList,
}

func init() {
	rootCmd.AddCommand(partnersCmd)
	partnersCmd.AddCommand(partnersSetCmd, partnersListCmd)

	partnersSetCmd.Flags().String("id", "", "Partner id")
	partnersSetCmd.Flags().String("username", "", "Partner username")
	partnersSetCmd.Flags().String("agent-rate", "", "Agent commission percent; empty removes the agent role")
	partnersSetCmd.Flags().String("technician-rate", "", "Technician commission percent; empty removes the technician role")
}

func runPartnersSet(cmd *cobra.Command, args []string) error {
	id, _ := cmd.Flags().GetString("id")
	username, _ := cmd.Flags().GetString("username")

	rec := models.PartnerRecord{PartnerID: id, Username: username}
	var err error
	if rec.IsAgent, rec.AgentRate, err = rateFlag(cmd, "agent-rate"); err != nil {
		return err
	}
	if rec.IsTechnician, rec.TechnicianRate, err = rateFlag(cmd, "technician-rate"); err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	saved, err := a.partners.Upsert(ctx, rec)
	if err != nil {
		return err
	}
	return writeResult(cmd, saved)
}

func rateFlag(cmd *cobra.Command, flag string) (bool, decimal.Decimal, error) {
	v, _ := cmd.Flags().GetString(flag)
	if v == "" {
		return false, decimal.Zero, nil
	}
	rate, err := decimal.NewFromString(v)
	if err != nil {
		return false, decimal.Zero, &billing.ValidationError{Field: flag, Value: v, Message: "not a number"}
	}
	return true, rate, nil
}

func runPartnersList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	records, err := a.partners.List(ctx)
	if err != nil {
		return err
	}
	if records == nil {
		records = []models.PartnerRecord{}
	}
	return writeResult(cmd, records)
}
