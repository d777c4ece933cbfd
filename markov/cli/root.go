// Package cli implements the dada command line.
package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/wbrown/dadacore/markov/annotations"
	"github.com/wbrown/dadacore/markov/brain"
	"github.com/wbrown/dadacore/markov/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	Backend    string
	Path       string
	Order      int
	Seed       int64
	Verbose    bool
	Trace      bool // print model and cache events
}

// NewRootCommand creates the root command for the dada CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "dada",
		Short: "dada - a bidirectional Markov chain babbler",
		Long: `Learn lines of text into a persistent bidirectional Markov chain and
generate new lines from it, either at random or around a given word.

Settings are read from an optional YAML file (--config), then from DADA_*
environment variables, then from flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.ConfigFile, "config", "c", "", "path to a YAML config file")
	flags.StringVar(&opts.Backend, "backend", "", "storage backend (badger|sqlite|postgres|memory)")
	flags.StringVarP(&opts.Path, "path", "d", "", "store location: directory, file or connection URL")
	flags.IntVar(&opts.Order, "order", 0, "context window size for a new model")
	flags.Int64Var(&opts.Seed, "seed", 0, "random seed (0 seeds from the clock)")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.BoolVar(&opts.Trace, "trace", false, "print model and cache events to stderr")

	cmd.AddCommand(NewLearnCommand(opts))
	cmd.AddCommand(NewGenerateCommand(opts))
	cmd.AddCommand(NewReplyCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}

// loadConfig merges the config file, environment and changed flags
func loadConfig(opts *RootOptions, cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Backend = opts.Backend
	}
	if flags.Changed("path") {
		cfg.Path = opts.Path
	}
	if flags.Changed("order") {
		cfg.Order = opts.Order
	}
	if flags.Changed("seed") {
		cfg.Seed = opts.Seed
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	return cfg, nil
}

// setupLogging installs the process logger
func setupLogging(opts *RootOptions, cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// openBrain opens the configured store; extra handlers receive events
// alongside the --trace console output
func openBrain(ctx context.Context, opts *RootOptions, cmd *cobra.Command, cfg config.Config, extra ...annotations.Handler) (*brain.Brain, error) {
	handlers := append([]annotations.Handler(nil), extra...)
	if opts.Trace {
		formatter := annotations.NewOutputFormatter(cmd.ErrOrStderr())
		formatter.ShowCacheTraffic = opts.Verbose
		handlers = append(handlers, formatter.Handle)
	}

	b, err := brain.Open(ctx, cfg.BrainOptions(annotations.Fanout(handlers...)))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open model", err)
	}
	slog.Debug("model opened", "backend", cfg.Backend, "order", b.Order())
	return b, nil
}

// closeBrain closes b, reporting a close failure unless err is already set
func closeBrain(b *brain.Brain, err *error) {
	if closeErr := b.Close(); closeErr != nil {
		slog.Error("error closing model", "error", closeErr)
		if *err == nil {
			*err = WrapExitError(ExitFailure, "failed to close model", closeErr)
		}
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
