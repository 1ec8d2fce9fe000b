package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/fxfer/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// errCancelled marks a run the user interrupted. main maps it to exit 130.
var errCancelled = errors.New("cancelled")

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
	flagNoJournal  bool
)

// CLIFlags is the snapshot of global output flags a command runs with.
type CLIFlags struct {
	JSON    bool
	Verbose bool
	Quiet   bool
}

// CLIContext carries everything PersistentPreRunE resolved to the
// subcommand. Retrieved with mustCLIContext.
type CLIContext struct {
	Cfg    *config.Resolved
	Logger *slog.Logger
	Flags  CLIFlags
}

type cliContextKey struct{}

// mustCLIContext returns the CLIContext installed by the root pre-run. A
// missing context is a programming error.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cc == nil {
		panic("fxfer: command ran without CLI context")
	}

	return cc
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "fxfer",
		Short:   "Journaled file copy, move and replace",
		Long:    "Copy, move and replace files atomically, with undo journaling, for Linux and macOS.",
		Version: version,
		// Silence Cobra's default error/usage printing; main handles it.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := loadCLIContext()
			if err != nil {
				return err
			}

			ctx := context.WithValue(cmd.Context(), cliContextKey{}, cc)
			cmd.SetContext(shutdownContext(ctx, cc.Logger))

			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")
	cmd.PersistentFlags().BoolVar(&flagNoJournal, "no-journal", false, "do not record transfers in the undo journal")

	cmd.AddCommand(newCpCmd())
	cmd.AddCommand(newMvCmd())
	cmd.AddCommand(newReplaceCmd())
	cmd.AddCommand(newStatCmd())
	cmd.AddCommand(newResolveCmd())
	cmd.AddCommand(newJournalCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// loadCLIContext resolves the effective configuration from the four-layer
// override chain and builds the logger from it.
func loadCLIContext() (*CLIContext, error) {
	cli := config.CLIOverrides{
		ConfigPath: flagConfigPath,
		NoJournal:  flagNoJournal,
	}

	// CLI verbosity flags override the configured log level.
	switch {
	case flagQuiet:
		level := "error"
		cli.LogLevel = &level
	case flagVerbose:
		level := "debug"
		cli.LogLevel = &level
	}

	resolved, err := config.Resolve(config.ReadEnvOverrides(), cli)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	return &CLIContext{
		Cfg:    resolved,
		Logger: buildLogger(resolved.Logging.LogLevel),
		Flags: CLIFlags{
			JSON:    flagJSON,
			Verbose: flagVerbose,
			Quiet:   flagQuiet,
		},
	}, nil
}

// buildLogger creates a text slog.Logger on stderr at the given level name.
// Unknown names fall back to warn.
func buildLogger(level string) *slog.Logger {
	lvl := slog.LevelWarn

	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "error":
		lvl = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
