// ABOUTME: Root cobra command and shared state for every subcommand
// ABOUTME: Loads configuration and builds the logger before any subcommand runs

package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/2389/coven-research/internal/config"
	"github.com/2389/coven-research/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

// app carries what subcommands share once the root pre-run has loaded it.
type app struct {
	configPath string
	debug      bool

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "coven-research",
		Short: "Research assistant that asks before it digs",
		Long: `coven-research runs research conversations against a research backend.

It asks a few clarifying questions about your prompt, folds your answers into
a single query, streams progress while the backend works, and prints the final
report. Finished sessions are archived locally for later review.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default $COVEN_RESEARCH_CONFIG or ~/.config/coven-research/config.yaml)")
	cmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging")
	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadOrDefault(a.configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		a.cfg = cfg
		a.logger = setupLogger(cfg.Logging, a.debug, cmd.ErrOrStderr())
		return nil
	}

	cmd.AddCommand(newChatCommand(a))
	cmd.AddCommand(newHistoryCommand(a))
	cmd.AddCommand(newShowCommand(a))
	cmd.AddCommand(newDeleteCommand(a))
	cmd.AddCommand(newVersionCommand())

	return cmd
}

// openArchive opens the session archive named by the config, whether or
// not new sessions are being archived.
func (a *app) openArchive() (*store.SQLiteStore, error) {
	st, err := store.NewSQLiteStore(a.cfg.Archive.Path)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	return st, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "coven-research %s\n", version)
		},
	}
}
