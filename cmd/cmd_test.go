package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netbill/internal/billing"
	"netbill/internal/config"
	"netbill/internal/ledger"
	"netbill/pkg/models"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		DataDir:          dir,
		LedgerBackend:    "json",
		LedgerFile:       filepath.Join(dir, "payments.json"),
		LedgerSQLitePath: filepath.Join(dir, "ledger.db"),
		CustomersFile:    filepath.Join(dir, "customers.json"),
		PartnersFile:     filepath.Join(dir, "partners.json"),
		SuspendProfile:   "isolir",
		DropWorkers:      2,
		RouterTimeout:    time.Second,
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestPayThenSettleThroughCLI(t *testing.T) {
	for _, backend := range []string{"json", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			appConfig = testConfig(t)
			appConfig.LedgerBackend = backend
			configErr = nil

			_, err := run(t, "partners", "set", "--id", "p1", "--username", "budi", "--agent-rate", "10", "--technician-rate", "5")
			require.NoError(t, err)
			_, err = run(t, "customers", "set", "--subscriber", "alice", "--name", "Alice", "--agent", "p1", "--technician", "p1")
			require.NoError(t, err)

			out, err := run(t, "pay", "--subscriber", "alice", "--amount", "100000", "--paid-at", "2025-02-10")
			require.NoError(t, err)
			var rec models.InvoiceRecord
			require.NoError(t, json.Unmarshal([]byte(out), &rec))
			assert.Equal(t, models.StatusCompleted, rec.Status)
			assert.Len(t, rec.Commissions, 2)

			out, err = run(t, "settle", "--month", "2", "--year", "2025")
			require.NoError(t, err)
			var s billing.Settlement
			require.NoError(t, json.Unmarshal([]byte(out), &s))
			assert.Equal(t, "100000", s.GrandTotal.Revenue.String())
			assert.Equal(t, "15000", s.GrandTotal.Commission.String())
			require.Len(t, s.Partners, 1)
			assert.Equal(t, "100000", s.Partners[0].Revenue.String())
		})
	}
}

func TestConfigErrorStopsCommands(t *testing.T) {
	appConfig = nil
	configErr = errors.New("LEDGER_BACKEND must be json or sqlite")

	_, err := run(t, "invoice", "list")
	assert.ErrorContains(t, err, "configuration invalid")
	configErr = nil
}

func TestDescribeError(t *testing.T) {
	jan := models.Period{Year: 2025, Month: time.January}
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			"duplicate",
			fmt.Errorf("wrapped: %w", &ledger.DuplicatePeriodError{SubscriberID: "alice", Period: jan, ExistingID: "x1"}),
			"alice already has an active invoice for 2025-01 (x1)",
		},
		{
			"not found",
			fmt.Errorf("%w: INV/1", ledger.ErrInvoiceNotFound),
			"invoice not found",
		},
		{
			"validation",
			&billing.ValidationError{Field: "amount", Value: "x", Message: "not a number"},
			`invalid amount "x": not a number`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, describeError(tt.err))
		})
	}
}

func TestPeriodFromFlags(t *testing.T) {
	c := &cobra.Command{}
	addPeriodFlags(c)
	require.NoError(t, c.Flags().Set("month", "2"))
	require.NoError(t, c.Flags().Set("year", "2025"))

	p, err := periodFromFlags(c)
	require.NoError(t, err)
	assert.Equal(t, models.Period{Year: 2025, Month: time.February}, p)

	require.NoError(t, c.Flags().Set("month", "13"))
	_, err = periodFromFlags(c)
	assert.Error(t, err)
}
