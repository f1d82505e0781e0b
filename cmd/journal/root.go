package main

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-journal/config"
	"github.com/wippyai/wasm-journal/effector"
	"github.com/wippyai/wasm-journal/engine"
	"github.com/wippyai/wasm-journal/host"
	"github.com/wippyai/wasm-journal/journal"
	"github.com/wippyai/wasm-journal/storage"
	"github.com/wippyai/wasm-journal/thread"
)

var validFormats = []string{"text", "json", "yaml", "msgpack"}

// rootOptions holds the global flags and the state they produce.
type rootOptions struct {
	ConfigPath string
	Journal    string
	Format     string
	Verbose    bool

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "journal",
		Short:         "Inspect and replay wasm execution journals",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (yaml or toml)")
	cmd.PersistentFlags().StringVarP(&opts.Journal, "journal", "j", "", "journal file, overrides the configured backend")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml|msgpack)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(newInspectCommand(opts))
	cmd.AddCommand(newVerifyCommand(opts))
	cmd.AddCommand(newTailCommand(opts))
	cmd.AddCommand(newBrowseCommand(opts))
	cmd.AddCommand(newExportCommand(opts))
	cmd.AddCommand(newReplayCommand(opts))
	return cmd
}

func (o *rootOptions) setup() error {
	if !slices.Contains(validFormats, o.Format) {
		return newExitError(exitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, validFormats), nil)
	}
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return newExitError(exitCommandError, "load config", err)
	}
	if o.Journal != "" {
		cfg.Storage.Backend = string(storage.KindFile)
		cfg.Storage.Path = o.Journal
	}
	o.cfg = cfg

	logger, err := newLogger(cfg, o.Verbose)
	if err != nil {
		return newExitError(exitCommandError, "create logger", err)
	}
	o.logger = logger
	journal.SetLogger(logger.Named("journal"))
	storage.SetLogger(logger.Named("storage"))
	effector.SetLogger(logger.Named("effector"))
	thread.SetLogger(logger.Named("thread"))
	engine.SetLogger(logger.Named("engine"))
	host.SetLogger(logger.Named("host"))
	return nil
}

func newLogger(cfg *config.Config, verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if verbose {
		zc = zap.NewDevelopmentConfig()
	}
	lvl, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	if verbose {
		lvl = zap.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	if cfg.Log.Format != "" {
		zc.Encoding = cfg.Log.Format
	}
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}

// openBackend opens the configured storage read-only where the backend
// supports it.
func (o *rootOptions) openBackend(ctx context.Context, readOnly bool) (storage.Backend, error) {
	sc := o.cfg.StorageConfig()
	if readOnly {
		sc.ReadOnly = true
	}
	b, err := storage.Open(ctx, sc)
	if err != nil {
		return nil, newExitError(exitCommandError, "open journal", err)
	}
	return b, nil
}
