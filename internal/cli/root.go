// Package cli implements the contestlens command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/contestlens/internal/config"
	"github.com/okian/contestlens/pkg/logger"
)

// globals holds state shared by every subcommand once the root command has
// loaded configuration.
type globals struct {
	cfgFile  string
	logLevel string

	cfg *config.Config
	log logger.Logger
}

// NewRootCommand builds the contestlens command tree.
func NewRootCommand() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:   "contestlens",
		Short: "LeetCode contest history analytics",
		Long: `contestlens fetches a user's contest history from LeetCode, derives the
rating change of every attended contest and summarizes the results.

It runs either as an HTTP service with a live dashboard (serve) or as a
one-shot terminal report (history).`,
		SilenceUsage:      true,
		PersistentPreRunE: g.load,
	}

	root.PersistentFlags().StringVar(&g.cfgFile, "config", "", "config file (default: $"+config.EnvConfig+")")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level override: debug, info, warn, error")

	root.AddCommand(newServeCommand(g))
	root.AddCommand(newHistoryCommand(g))
	root.AddCommand(newVersionCommand())
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (g *globals) load(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cmd.Context(), g.cfgFile)
	if err != nil {
		return err
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}

	// Logs go to stderr so report output on stdout stays clean.
	if err := logger.InitWithFormat(cfg.LogFormat, cmd.ErrOrStderr()); err != nil {
		return fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}
	g.log = logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		g.log.Warn(cmd.Context(), "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	g.cfg = cfg
	return nil
}
