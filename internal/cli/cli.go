package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chitechevents/eventsync/internal/config"
)

const (
	ExitSuccess = 0
	ExitError   = 1
	// ExitNothingProduced means the run finished but no URL yielded a record.
	ExitNothingProduced = 2
)

var (
	flagConfig   string
	flagLogLevel string
	flagVerbose  bool
)

// exitError carries an exit code other than ExitError out of a command.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eventsync",
		Short: "Scrape and normalize Chicago tech events",
		Long: `A CLI tool that scrapes event pages from meetup.com, mhubchicago.com,
community.1871.com, eventbrite and lu.ma, normalizes them into one table
and optionally publishes, saves and announces the result.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default $HOME/.eventsync.yaml or ./.eventsync.yaml)")
	cmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn or error (overrides config)")
	cmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable verbose logging")

	cmd.AddCommand(newScrapeCmd(), newServeCmd())
	return cmd
}

// loadConfig reads the config file and applies the logging flags on top.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if flagVerbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// exitCode maps a command error to the process exit code.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitError
}

// Execute runs the CLI
func Execute() {
	err := NewRootCmd().Execute()
	if err != nil && err.Error() != "" {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(exitCode(err))
}
