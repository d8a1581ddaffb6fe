package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"netbill/internal/config"
	"netbill/internal/logger"
)

var version = "1.0.0"

var (
	appConfig *config.Config
	configErr error
)

var rootCmd = &cobra.Command{
	Use:   "netbill",
	Short: "netbill - PPPoE subscriber billing back office",
	Long: `netbill settles billing for PPPoE subscribers terminated on a RouterOS device.

It generates monthly invoices with arrears carried forward, records payments,
settles agent and technician commissions, and suspends subscribers with
unpaid invoices.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configErr != nil {
			return fmt.Errorf("configuration invalid: %w", configErr)
		}
		return nil
	},
}

// Execute runs the CLI with the loaded configuration.
func Execute(cfg *config.Config, cfgErr error) {
	log := logger.WithComponent("cmd")

	appConfig = cfg
	configErr = cfgErr

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %s\n", describeError(err))
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("output", "o", "", "Write JSON result to this file instead of stdout")
}
