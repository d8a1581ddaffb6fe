package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"netbill/pkg/models"
)

// writeResult prints v as indented JSON to stdout or the --output file.
func writeResult(cmd *cobra.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	data = append(data, '\n')

	path, _ := cmd.Flags().GetString("output")
	if path == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Result written to %s\n", path)
	return nil
}

func addPeriodFlags(cmd *cobra.Command) {
	cmd.Flags().Int("month", 0, "Billing month 1-12 (default: current month)")
	cmd.Flags().Int("year", 0, "Billing year (default: current year)")
}

// periodFromFlags reads --month/--year, defaulting each to today.
func periodFromFlags(cmd *cobra.Command) (models.Period, error) {
	now := time.Now()
	month, _ := cmd.Flags().GetInt("month")
	year, _ := cmd.Flags().GetInt("year")
	if month == 0 {
		month = int(now.Month())
	}
	if year == 0 {
		year = now.Year()
	}
	return models.NewPeriod(month, year)
}

// parseDay accepts YYYY-MM-DD; empty yields nil.
func parseDay(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, use YYYY-MM-DD: %w", s, err)
	}
	return &t, nil
}
