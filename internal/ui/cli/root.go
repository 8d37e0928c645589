// Package cli implements the depmatrix command-line interface.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	coreapp "depmatrix/internal/core/app"
	"depmatrix/internal/core/config"
	"depmatrix/internal/data/history"
	"depmatrix/internal/shared/observability"
	"depmatrix/internal/shared/version"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

type globalOptions struct {
	configPath  string
	verbose     bool
	searchPaths []string
	history     bool
}

// Run executes the command line and returns the process exit code.
func Run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand()
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}

func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}
	var closeLogs func()

	root := &cobra.Command{
		Use:          "depmatrix",
		Short:        "depmatrix builds dependency structure matrices for Python packages",
		Long:         `depmatrix discovers the modules of one or more Python packages, resolves their imports and rolls them up into one dependency matrix per package depth.`,
		Version:      version.Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger, closeFn := configureLogging(cmd.ErrOrStderr(), cmd.Name() == "ui", opts.verbose)
			closeLogs = closeFn
			cmd.SetContext(withLogger(cmd.Context(), logger))
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if closeLogs != nil {
				closeLogs()
			}
		},
	}

	root.SetVersionTemplate(fmt.Sprintf("depmatrix %s\ncommit: %s\n", version.Version, version.Commit))
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultFile, "path to config file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringSliceVar(&opts.searchPaths, "search", nil, "directories package roots are looked up in (overrides paths.search)")
	root.PersistentFlags().BoolVar(&opts.history, "history", false, "save every build to the history database")

	root.AddCommand(newMatrixCmd(opts))
	root.AddCommand(newAnalyzeCmd(opts))
	root.AddCommand(newChainCmd(opts))
	root.AddCommand(newWatchCmd(opts))
	root.AddCommand(newUICmd(opts))
	root.AddCommand(newHistoryCmd(opts))
	return root
}

// runtime is everything a command needs after configuration is loaded.
type runtime struct {
	cfg      *config.Config
	app      *coreapp.App
	logger   *charmlog.Logger
	shutdown observability.ShutdownFunc
}

// open loads configuration, applies command-line overrides and wires the
// application. packages replaces the configured package roots when given.
func (o *globalOptions) open(cmd *cobra.Command, packages []string, forceHistory bool) (*runtime, error) {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	cfg, err := config.LoadOrDefault(o.configPath)
	if err != nil {
		return nil, err
	}
	if len(packages) > 0 {
		cfg.Packages = packages
		cfg.Groups = nil
	}
	if len(o.searchPaths) > 0 {
		cfg.Paths.Search = o.searchPaths
	}
	if o.history {
		cfg.History.Enabled = true
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		return nil, errs[0]
	}

	shutdown, err := observability.InitTracing(ctx, cfg.Observability.OTLPEndpoint)
	if err != nil {
		return nil, err
	}

	appOpts := []coreapp.Option{coreapp.WithLogger(slog.Default())}
	var store *history.Store
	if cfg.History.Enabled || forceHistory {
		store, err = history.Open(historyPath(cfg))
		if err != nil {
			_ = shutdown(ctx)
			return nil, err
		}
		appOpts = append(appOpts, coreapp.WithStore(store))
	}

	a, err := coreapp.New(cfg, appOpts...)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		_ = shutdown(ctx)
		return nil, err
	}
	logger.Debug("configuration loaded", "config", o.configPath, "packages", cfg.Packages, "search", cfg.Paths.Search)
	return &runtime{cfg: cfg, app: a, logger: logger, shutdown: shutdown}, nil
}

func (r *runtime) Close(ctx context.Context) {
	if err := r.app.Close(); err != nil {
		r.logger.Warn("close failed", "error", err)
	}
	if err := r.shutdown(context.WithoutCancel(ctx)); err != nil {
		r.logger.Warn("tracing shutdown failed", "error", err)
	}
}

// historyPath places relative database paths under the state directory.
func historyPath(cfg *config.Config) string {
	if filepath.IsAbs(cfg.History.Path) {
		return cfg.History.Path
	}
	return filepath.Join(cfg.Paths.StateDir, cfg.History.Path)
}
