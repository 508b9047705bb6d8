// Package cli wires cobra subcommands for the quakefusion binary. Grounded
// on cli/cmd/root.go's rootCmd/Execute/persistent-flag shape, generalized
// from a multi-domain SIEM CLI to the two process modes spec.md §5 names.
package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/seismic-fusion/quakefusion/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:     "quakefusion",
	Short:   "Seismic event ingestion, normalization, clustering, and fusion pipeline",
	Version: "0.1.0",
}

// Execute runs the CLI; returns a non-nil error on any subcommand failure.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to YAML config file")
	rootCmd.AddCommand(workerCmd, batchCmd)
}

func loadConfig() *config.Config {
	return config.MustLoad(cfgFile)
}

// signalContext returns a context canceled on SIGINT/SIGTERM, matching
// core/cmd/core/main.go's graceful-shutdown signal handling.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func fatalf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}
