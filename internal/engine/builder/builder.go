// Package builder runs the staged pipeline from module discovery to
// published matrices.
package builder

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"sync"
	"time"

	"depmatrix/internal/core/errors"
	"depmatrix/internal/core/ports"
	"depmatrix/internal/engine/matrix"
	"depmatrix/internal/engine/registry"
	"depmatrix/internal/engine/resolver"
	"depmatrix/internal/shared/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	Spec     registry.Spec
	Modules  ports.ModuleSource
	Imports  ports.ImportSource
	Resolver resolver.Options
	// Parallel aggregates the matrices of each depth concurrently.
	Parallel bool
	// Workers bounds concurrent import parsing. Zero means GOMAXPROCS.
	Workers int
	Logger  *slog.Logger
}

// Builder owns every piece of state for one build. Each stage publishes its
// output once; later stages never modify it. Stage methods called before
// their prerequisite return nil and leave the builder unchanged.
//
// A Builder is safe for concurrent use. Published slices and matrices are
// shared and must be treated as read-only; Clone a matrix before sorting it.
type Builder struct {
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	stage    Stage
	reg      *registry.Registry
	modules  []registry.Module
	raws     []resolver.RawImport
	edges    []resolver.Edge
	memo     map[string]bool
	external []string
	matrices []*matrix.Matrix
}

func New(opts Options) (*Builder, error) {
	if opts.Spec.IsZero() {
		return nil, errors.New(errors.CodeInvalidInput, "package spec is required")
	}
	if opts.Modules == nil || opts.Imports == nil {
		return nil, errors.New(errors.CodeInvalidInput, "module and import sources are required")
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Resolver.Logger == nil {
		opts.Resolver.Logger = logger
	}
	return &Builder{opts: opts, logger: logger}, nil
}

func (b *Builder) Stage() Stage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stage
}

// Build runs every remaining stage in order.
func (b *Builder) Build(ctx context.Context) error {
	ctx, span := observability.Tracer.Start(ctx, "builder.Build")
	defer span.End()

	err := b.build(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.BuildsTotal.WithLabelValues("error").Inc()
		return err
	}
	observability.BuildsTotal.WithLabelValues("ok").Inc()
	return nil
}

func (b *Builder) build(ctx context.Context) error {
	if _, err := b.BuildModules(ctx); err != nil {
		return err
	}
	if _, err := b.BuildImports(ctx); err != nil {
		return err
	}
	_, err := b.BuildMatrices(ctx)
	return err
}

// BuildModules discovers the modules of the spec and freezes the registry.
func (b *Builder) BuildModules(ctx context.Context) ([]registry.Module, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stage >= StageModules {
		return b.modules, nil
	}

	defer observeStage(StageModules, time.Now())
	ctx, span := observability.Tracer.Start(ctx, "builder.BuildModules")
	defer span.End()

	found, err := b.opts.Modules.Discover(ctx, b.opts.Spec)
	if err != nil {
		span.RecordError(err)
		return nil, errors.AddContext(err, errors.CtxOperation, "discover")
	}
	reg, err := registry.New(b.opts.Spec, found)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	b.reg = reg
	b.modules = reg.Modules()
	b.stage = StageModules
	observability.ModulesTotal.Set(float64(reg.Len()))
	span.SetAttributes(attribute.Int("modules", reg.Len()), attribute.Int("max_depth", reg.MaxDepth()))
	b.logger.Debug("modules built", "modules", reg.Len(), "max_depth", reg.MaxDepth())
	return b.modules, nil
}

// BuildImports parses every module and resolves the statements into edges.
// Nothing is published when any statement is rejected.
func (b *Builder) BuildImports(ctx context.Context) ([]resolver.Edge, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stage < StageModules {
		return nil, nil
	}
	if b.stage >= StageImports {
		return b.edges, nil
	}

	defer observeStage(StageImports, time.Now())
	ctx, span := observability.Tracer.Start(ctx, "builder.BuildImports")
	defer span.End()

	raws, err := b.parseAll(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	res := resolver.New(b.reg, b.opts.Resolver)
	edges, err := res.Resolve(raws)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	b.raws = raws
	b.edges = edges
	b.memo = res.Memo().Snapshot()
	b.external = nil
	for _, name := range res.Memo().Keys() {
		if !b.memo[name] {
			b.external = append(b.external, name)
		}
	}
	b.stage = StageImports
	span.SetAttributes(attribute.Int("statements", len(raws)), attribute.Int("edges", len(edges)))
	b.logger.Debug("imports built", "statements", len(raws), "edges", len(edges), "memo", len(b.memo), "external", len(b.external))
	return b.edges, nil
}

// parseAll fans parsing out over the registry and concatenates the results
// in registry order.
func (b *Builder) parseAll(ctx context.Context) ([]resolver.RawImport, error) {
	perModule := make([][]resolver.RawImport, len(b.modules))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Workers)
	for i, mod := range b.modules {
		g.Go(func() error {
			start := time.Now()
			raws, err := b.opts.Imports.ParseImports(gctx, mod)
			observability.ParsingDuration.Observe(time.Since(start).Seconds())
			if err != nil {
				return errors.AddContext(err, errors.CtxModule, mod.Name)
			}
			perModule[i] = raws
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []resolver.RawImport
	for _, raws := range perModule {
		all = append(all, raws...)
	}
	return all, nil
}

// BuildMatrices aggregates one matrix per depth from 1 to the registry's
// maximum depth.
func (b *Builder) BuildMatrices(ctx context.Context) ([]*matrix.Matrix, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stage < StageImports {
		return nil, nil
	}
	if b.stage >= StageMatrices {
		return b.matrices, nil
	}

	defer observeStage(StageMatrices, time.Now())
	ctx, span := observability.Tracer.Start(ctx, "builder.BuildMatrices")
	defer span.End()

	maxDepth := b.reg.MaxDepth()
	out := make([]*matrix.Matrix, maxDepth)
	aggregate := func(depth int) {
		m := matrix.Aggregate(b.reg, b.edges, depth)
		observability.MatrixSize.WithLabelValues(strconv.Itoa(depth)).Set(float64(m.Size()))
		out[depth-1] = m
	}

	if b.opts.Parallel && maxDepth > 1 {
		g, gctx := errgroup.WithContext(ctx)
		for depth := 1; depth <= maxDepth; depth++ {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				aggregate(depth)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			span.RecordError(err)
			return nil, errors.Wrap(err, errors.CodeInternal, "aggregate matrices")
		}
	} else {
		for depth := 1; depth <= maxDepth; depth++ {
			aggregate(depth)
		}
	}

	b.matrices = out
	b.stage = StageMatrices
	span.SetAttributes(attribute.Int("matrices", len(out)))
	return b.matrices, nil
}

func observeStage(stage Stage, start time.Time) {
	observability.StageDuration.WithLabelValues(stage.String()).Observe(time.Since(start).Seconds())
}

// Matrix returns the published matrix for depth, clamped like
// Registry.ClampDepth. An empty registry yields an empty depth-0 matrix.
func (b *Builder) Matrix(depth int) (*matrix.Matrix, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stage < StageMatrices {
		err := &errors.DomainError{Code: errors.CodeNotBuilt, Message: "matrices have not been built"}
		return nil, err.WithContext(errors.CtxDepth, depth)
	}
	d := b.reg.ClampDepth(depth)
	if d == 0 {
		return matrix.Aggregate(b.reg, nil, 0), nil
	}
	return b.matrices[d-1], nil
}

// Matrices returns every published matrix, index 0 holding depth 1.
func (b *Builder) Matrices() []*matrix.Matrix {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.matrices
}

func (b *Builder) Modules() []registry.Module {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.modules
}

func (b *Builder) Statements() []resolver.RawImport {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.raws
}

func (b *Builder) Edges() []resolver.Edge {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.edges
}

// Memo returns a copy of the resolution memo of the imports stage.
func (b *Builder) Memo() map[string]bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.memo == nil {
		return nil
	}
	out := make(map[string]bool, len(b.memo))
	for k, v := range b.memo {
		out[k] = v
	}
	return out
}

// External lists, sorted, the probed names that resolved outside the
// registry.
func (b *Builder) External() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.external
}

func (b *Builder) Registry() *registry.Registry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reg
}

// MaxDepth is zero until modules are built.
func (b *Builder) MaxDepth() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.reg == nil {
		return 0
	}
	return b.reg.MaxDepth()
}

// Summary is a one-line description used by logs and the CLI.
func (b *Builder) Summary() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.reg == nil {
		return fmt.Sprintf("stage=%s", b.stage)
	}
	return fmt.Sprintf("stage=%s modules=%d edges=%d max_depth=%d", b.stage, b.reg.Len(), len(b.edges), b.reg.MaxDepth())
}
