// Package app wires configuration, the build pipeline, analysis, history
// and outputs into the operations the CLI exposes.
package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"depmatrix/internal/core/config"
	"depmatrix/internal/core/errors"
	"depmatrix/internal/core/ports"
	"depmatrix/internal/core/watcher"
	"depmatrix/internal/engine/analysis"
	"depmatrix/internal/engine/builder"
	"depmatrix/internal/engine/discovery"
	"depmatrix/internal/engine/matrix"
	"depmatrix/internal/engine/parser"
	"depmatrix/internal/engine/resolver"
	"depmatrix/internal/shared/observability"
	"depmatrix/internal/shared/util"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Update describes the outcome of one build.
type Update struct {
	RunID      string
	Summary    string
	Modules    int
	Packages   int
	Statements int
	Edges      int
	External   []string
	MaxDepth   int
	Depth      int
	Cycles     [][]string
	Duration   time.Duration
	Err        error
}

type App struct {
	Config *config.Config

	logger  *slog.Logger
	modules ports.ModuleSource
	imports ports.ImportSource
	rules   *analysis.LayerRuleEngine
	store   ports.RunStore
	limiter *util.Limiter

	mu      sync.RWMutex
	current *builder.Builder
	last    Update

	updateMu sync.RWMutex
	onUpdate func(Update)

	watchMu       sync.Mutex
	activeWatcher *watcher.Watcher
	watchCtx      context.Context
}

type Option func(*App)

func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithStore persists every successful build to store.
func WithStore(store ports.RunStore) Option {
	return func(a *App) { a.store = store }
}

// WithSources replaces filesystem discovery and tree-sitter parsing.
func WithSources(modules ports.ModuleSource, imports ports.ImportSource) Option {
	return func(a *App) {
		a.modules = modules
		a.imports = imports
	}
}

func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New(errors.CodeInvalidInput, "config is required")
	}

	a := &App{
		Config:  cfg,
		logger:  slog.Default(),
		limiter: util.NewLimiter(cfg.Watch.MinInterval, 1),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.modules == nil {
		finder, err := discovery.New(discovery.Options{
			SearchPaths:  cfg.Paths.Search,
			ExcludeDirs:  cfg.Exclude.Dirs,
			ExcludeFiles: cfg.Exclude.Files,
			Logger:       a.logger,
		})
		if err != nil {
			return nil, err
		}
		a.modules = finder
	}
	if a.imports == nil {
		a.imports = parser.New(parser.Options{Logger: a.logger})
	}

	rules, err := analysis.NewLayerRuleEngine(cfg.ArchitectureModel())
	if err != nil {
		return nil, err
	}
	a.rules = rules
	return a, nil
}

func (a *App) SetUpdateHandler(handler func(Update)) {
	a.updateMu.Lock()
	defer a.updateMu.Unlock()
	a.onUpdate = handler
}

func (a *App) emitUpdate(update Update) {
	a.updateMu.RLock()
	handler := a.onUpdate
	a.updateMu.RUnlock()
	if handler != nil {
		handler(update)
	}
}

// Build runs the whole pipeline and publishes the result. A failed build
// leaves the previous result in place.
func (a *App) Build(ctx context.Context) (*builder.Builder, error) {
	ctx, span := observability.Tracer.Start(ctx, "App.Build")
	defer span.End()

	start := time.Now()
	spec, err := a.Config.Spec()
	if err != nil {
		return nil, err
	}
	a.logger.Debug("building", "spec", spec.Kind(), "groups", len(spec.Groups()))
	b, err := builder.New(builder.Options{
		Spec:    spec,
		Modules: a.modules,
		Imports: a.imports,
		Resolver: resolver.Options{
			SubmoduleImports: a.Config.Resolver.SubmoduleImports,
			Logger:           a.logger,
		},
		Parallel: a.Config.Build.IsParallel(),
		Workers:  a.Config.Build.Workers,
		Logger:   a.logger,
	})
	if err != nil {
		return nil, err
	}
	if err := b.Build(ctx); err != nil {
		return nil, err
	}

	var runID string
	if a.store != nil {
		runID, err = a.store.SaveRun(ctx, a.Config.History.Project, b.Matrices())
		if err != nil {
			return nil, errors.AddContext(err, errors.CtxOperation, "save_run")
		}
	}

	update := a.summarize(b, runID, time.Since(start))
	span.SetAttributes(
		attribute.Int("modules", update.Modules),
		attribute.Int("edges", update.Edges),
	)

	a.mu.Lock()
	a.current = b
	a.last = update
	a.mu.Unlock()

	a.logger.Info("build complete", "summary", update.Summary, "cycles", len(update.Cycles), "duration", update.Duration, "run_id", runID, "heap_mb", util.HeapAllocMB())
	return b, nil
}

func (a *App) summarize(b *builder.Builder, runID string, took time.Duration) Update {
	update := Update{
		RunID:      runID,
		Summary:    b.Summary(),
		Modules:    len(b.Modules()),
		Statements: len(b.Statements()),
		Edges:      len(b.Edges()),
		External:   b.External(),
		MaxDepth:   b.MaxDepth(),
		Duration:   took,
	}
	for _, m := range b.Modules() {
		if m.IsPackageSelf() {
			update.Packages++
		}
	}
	if m, err := b.Matrix(a.Config.Output.Depth); err == nil {
		update.Depth = m.Depth
		update.Cycles = analysis.Cycles(m)
	}
	return update
}

// Current returns the last successful build, or nil.
func (a *App) Current() *builder.Builder {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.current
}

// CurrentUpdate returns the summary of the last build attempt.
func (a *App) CurrentUpdate() Update {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.last
}

func (a *App) built() (*builder.Builder, error) {
	b := a.Current()
	if b == nil {
		return nil, errors.New(errors.CodeNotBuilt, "no build has completed")
	}
	return b, nil
}

// Matrix returns a private, sorted copy of the matrix at req.Depth.
func (a *App) Matrix(ctx context.Context, req ports.MatrixRequest) (*matrix.Matrix, error) {
	_, span := observability.Tracer.Start(ctx, "App.Matrix", trace.WithAttributes(attribute.Int("depth", req.Depth)))
	defer span.End()

	b, err := a.built()
	if err != nil {
		return nil, err
	}
	published, err := b.Matrix(req.Depth)
	if err != nil {
		return nil, err
	}
	m := published.Clone()
	criterion := req.Sort
	if criterion == "" {
		criterion = matrix.ByName
	}
	if err := m.Sort(criterion, req.Reverse); err != nil {
		return nil, err
	}
	return m, nil
}

// Analyze runs the architecture checks on the matrix at depth.
func (a *App) Analyze(ctx context.Context, depth int) (analysis.Report, error) {
	_, span := observability.Tracer.Start(ctx, "App.Analyze")
	defer span.End()

	b, err := a.built()
	if err != nil {
		return analysis.Report{}, err
	}
	m, err := b.Matrix(depth)
	if err != nil {
		return analysis.Report{}, err
	}
	return analysis.Analyze(m, a.rules, a.Config.Architecture.GodModuleScore), nil
}

// ImportChain finds the shortest dependency path between two nodes at depth.
func (a *App) ImportChain(depth int, from, to string) ([]string, error) {
	b, err := a.built()
	if err != nil {
		return nil, err
	}
	m, err := b.Matrix(depth)
	if err != nil {
		return nil, err
	}
	for _, name := range []string{from, to} {
		if _, ok := m.Nodes[name]; !ok {
			de := &errors.DomainError{Code: errors.CodeNotFound, Message: "unknown node"}
			return nil, de.WithContext(errors.CtxModule, name).WithContext(errors.CtxDepth, m.Depth)
		}
	}
	chain, ok := analysis.ImportChain(m, from, to)
	if !ok {
		return nil, errors.Newf(errors.CodeNotFound, "no dependency path from %s to %s", from, to)
	}
	return chain, nil
}

// History returns the run store, or nil when history is disabled.
func (a *App) History() ports.RunStore {
	return a.store
}

func (a *App) Close() error {
	a.watchMu.Lock()
	w := a.activeWatcher
	a.activeWatcher = nil
	a.watchMu.Unlock()

	var firstErr error
	if w != nil {
		firstErr = w.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
