package ports

import (
	"context"
	"time"

	"depmatrix/internal/engine/matrix"
	"depmatrix/internal/engine/registry"
	"depmatrix/internal/engine/resolver"
)

// ModuleSource enumerates the modules under the roots of a package spec.
// Modules must carry the group they were found in.
type ModuleSource interface {
	Discover(ctx context.Context, spec registry.Spec) ([]registry.Module, error)
}

// ImportSource extracts the import statements made by one module. Every
// returned statement must have By set to the module's name.
type ImportSource interface {
	ParseImports(ctx context.Context, m registry.Module) ([]resolver.RawImport, error)
}

// RunSummary describes one persisted build.
type RunSummary struct {
	ID        string    `json:"id"`
	Project   string    `json:"project"`
	CreatedAt time.Time `json:"created_at"`
	MaxDepth  int       `json:"max_depth"`
	Modules   int       `json:"modules"`
	Edges     int       `json:"edges"`
}

// RunStore persists the matrices of a build.
type RunStore interface {
	SaveRun(ctx context.Context, project string, matrices []*matrix.Matrix) (string, error)
	ListRuns(ctx context.Context, project string, limit int) ([]RunSummary, error)
	LoadRun(ctx context.Context, runID string) (RunSummary, []*matrix.Matrix, error)
	Close() error
}

// MatrixRequest selects and orders one matrix for presentation.
type MatrixRequest struct {
	Depth   int
	Sort    matrix.Criterion
	Reverse bool
}
