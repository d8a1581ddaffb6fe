package cmd

import (
	"github.com/spf13/cobra"

	"netbill/internal/scheduler"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the daily auto-generate and auto-drop jobs",
	Long: `Run in the foreground and evaluate the daily jobs on AUTO_DROP_SCHEDULE.

Invoices for the current month are generated once the day of month reaches
AUTO_GENERATE_DAY. Unpaid subscribers are suspended once per day when the day
of month is at or past AUTO_DROP_DAY, but never on the day invoices were
issued. A failed job is retried on the next tick. A zero day disables the job.`,
	RunE: runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{router: true})
	if err != nil {
		return err
	}
	defer a.close()

	s := scheduler.New(scheduler.Config{
		Schedule:    appConfig.AutoDropSchedule,
		DropDay:     appConfig.AutoDropDay,
		GenerateDay: appConfig.AutoGenerateDay,
	}, a.generator(), a.enforcer())

	return s.Run(ctx)
}
