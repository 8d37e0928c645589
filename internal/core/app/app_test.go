package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"depmatrix/internal/core/config"
	"depmatrix/internal/core/errors"
	"depmatrix/internal/core/ports"
	"depmatrix/internal/data/history"
	"depmatrix/internal/engine/matrix"
	"depmatrix/internal/engine/registry"
	"depmatrix/internal/test/fixture"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(searchPath string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Packages = []string{fixture.Root}
	cfg.Paths.Search = []string{searchPath}
	cfg.Watch.MinInterval = 0
	cfg.Watch.Debounce = 50 * time.Millisecond
	return cfg
}

func memoryApp(t *testing.T, cfg *config.Config, opts ...Option) *App {
	t.Helper()
	src := fixture.NewSource("")
	a, err := New(cfg, append([]Option{WithSources(src, src)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

var depth2Cells = [][]int{
	{0, 0, 0, 0},
	{1, 3, 0, 9},
	{0, 1, 1, 0},
	{1, 2, 1, 0},
}

func TestBuild_FromDisk(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, fixture.WriteTree(dir))

	a, err := New(testConfig(dir))
	require.NoError(t, err)
	defer a.Close()

	b, err := a.Build(context.Background())
	require.NoError(t, err)
	assert.Len(t, b.Modules(), len(fixture.ModuleNames))
	assert.Equal(t, 4, b.MaxDepth())

	m, err := a.Matrix(context.Background(), ports.MatrixRequest{Depth: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"internal.__init__",
		"internal.submodule1",
		"internal.submodule2",
		"internal.test",
	}, m.Keys)
	assert.Equal(t, depth2Cells, m.Cells)
	assert.Equal(t, 19, m.Total())

	u := a.CurrentUpdate()
	assert.Equal(t, 9, u.Modules)
	assert.Equal(t, 4, u.Packages, "one __init__ per package")
	assert.Equal(t, 11, u.Statements)
	assert.Equal(t, []string{"external.exists"}, u.External)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidInput))

	cfg := testConfig(t.TempDir())
	cfg.Exclude.Dirs = []string{"[bad"}
	_, err = New(cfg)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidInput))
}

func TestBuild_RequiresPackages(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Packages = nil
	a := memoryApp(t, cfg)

	_, err := a.Build(context.Background())
	assert.True(t, errors.IsCode(err, errors.CodeInvalidInput))
	assert.Nil(t, a.Current())
}

func TestMatrix_NotBuilt(t *testing.T) {
	a := memoryApp(t, testConfig(t.TempDir()))

	_, err := a.Matrix(context.Background(), ports.MatrixRequest{Depth: 1})
	assert.True(t, errors.IsCode(err, errors.CodeNotBuilt))

	_, err = a.Analyze(context.Background(), 1)
	assert.True(t, errors.IsCode(err, errors.CodeNotBuilt))
}

func TestMatrix_SortedCopy(t *testing.T) {
	a := memoryApp(t, testConfig(t.TempDir()))
	b, err := a.Build(context.Background())
	require.NoError(t, err)

	sorted, err := a.Matrix(context.Background(), ports.MatrixRequest{Depth: 2, Sort: matrix.ByImport, Reverse: true})
	require.NoError(t, err)
	assert.Equal(t, "internal.submodule1", sorted.Keys[0], "most imports first")

	published, err := b.Matrix(2)
	require.NoError(t, err)
	assert.Equal(t, "internal.__init__", published.Keys[0], "published matrix keeps name order")
	assert.Equal(t, depth2Cells, published.Cells)

	_, err = a.Matrix(context.Background(), ports.MatrixRequest{Depth: 2, Sort: "size"})
	assert.True(t, errors.IsCode(err, errors.CodeInvalidInput))
}

func TestAnalyze(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Architecture = config.Architecture{
		Layers: []config.ArchitectureLayer{
			{Name: "core", Paths: []string{"internal.submodule1"}},
			{Name: "tests", Paths: []string{"internal.test"}},
		},
		Rules: []config.ArchitectureRule{
			{Name: "core-isolated", From: "core"},
		},
		GodModuleScore: 6,
	}
	a := memoryApp(t, cfg)
	_, err := a.Build(context.Background())
	require.NoError(t, err)

	rep, err := a.Analyze(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"internal.submodule1", "internal.submodule2", "internal.test"}}, rep.Cycles)
	require.Len(t, rep.Violations, 1)
	assert.Equal(t, "internal.test", rep.Violations[0].ToNode)
	assert.Equal(t, 9, rep.Violations[0].Cardinal)
	require.Len(t, rep.GodModules, 1)
	assert.Equal(t, "internal.submodule1", rep.GodModules[0].Name)
	assert.False(t, rep.Clean())
}

func TestImportChain(t *testing.T) {
	a := memoryApp(t, testConfig(t.TempDir()))
	_, err := a.Build(context.Background())
	require.NoError(t, err)

	chain, err := a.ImportChain(2, "internal.submodule2", "internal.__init__")
	require.NoError(t, err)
	assert.Equal(t, []string{"internal.submodule2", "internal.submodule1", "internal.__init__"}, chain)

	_, err = a.ImportChain(2, "internal.__init__", "internal.test")
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))

	_, err = a.ImportChain(2, "internal.nope", "internal.test")
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestBuild_SavesHistory(t *testing.T) {
	store, err := history.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)

	cfg := testConfig(t.TempDir())
	cfg.History.Project = "fixture"
	a := memoryApp(t, cfg, WithStore(store))

	_, err = a.Build(context.Background())
	require.NoError(t, err)
	update := a.CurrentUpdate()
	require.NotEmpty(t, update.RunID)

	runs, err := a.History().ListRuns(context.Background(), "fixture", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, update.RunID, runs[0].ID)

	_, matrices, err := a.History().LoadRun(context.Background(), update.RunID)
	require.NoError(t, err)
	require.Len(t, matrices, 4)
	assert.Equal(t, depth2Cells, matrices[1].Cells)
}

func TestRender(t *testing.T) {
	a := memoryApp(t, testConfig(t.TempDir()))
	_, err := a.Build(context.Background())
	require.NoError(t, err)
	m, err := a.Matrix(context.Background(), ports.MatrixRequest{Depth: 1})
	require.NoError(t, err)

	out, err := a.Render(m, RenderRequest{})
	require.NoError(t, err)
	assert.Equal(t, ",internal\r\ninternal,19", string(out), "defaults to the configured csv format")

	out, err = a.Render(m, RenderRequest{Format: "JSON"})
	require.NoError(t, err)
	assert.Contains(t, string(out), `"depth": 1`)

	out, err = a.Render(m, RenderRequest{Format: FormatDOT})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "digraph depmatrix"))

	rep, err := a.Analyze(context.Background(), 1)
	require.NoError(t, err)
	out, err = a.Render(m, RenderRequest{Format: FormatMarkdown, Report: &rep})
	require.NoError(t, err)
	assert.Contains(t, string(out), "## Circular Dependencies")

	_, err = a.Render(m, RenderRequest{Format: "tsv"})
	assert.True(t, errors.IsCode(err, errors.CodeNotSupported))
}

func TestWriteOutputAndInject(t *testing.T) {
	a := memoryApp(t, testConfig(t.TempDir()))
	_, err := a.Build(context.Background())
	require.NoError(t, err)
	m, err := a.Matrix(context.Background(), ports.MatrixRequest{Depth: 1})
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "out", "matrix.csv")
	require.NoError(t, a.WriteOutput(m, RenderRequest{Format: FormatCSV}, path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, ",internal\r\ninternal,19", string(data), "no trailing terminator on disk")

	readme := filepath.Join(dir, "README.md")
	require.NoError(t, os.WriteFile(readme, []byte("<!-- depmatrix:dsm:start -->\n<!-- depmatrix:dsm:end -->\n"), 0o644))
	require.NoError(t, a.InjectMarkdown(m, readme, "dsm"))
	data, err = os.ReadFile(readme)
	require.NoError(t, err)
	assert.Contains(t, string(data), "| 1 | `internal` | 19 | 19 |")

	err = a.InjectMarkdown(m, readme, "missing")
	assert.True(t, errors.IsCode(err, errors.CodeInvalidInput))
}

type failingSource struct{}

func (failingSource) Discover(context.Context, registry.Spec) ([]registry.Module, error) {
	return nil, errors.New(errors.CodeInternal, "disk on fire")
}

func TestHandleChanges(t *testing.T) {
	a := memoryApp(t, testConfig(t.TempDir()))

	updates := make(chan Update, 2)
	a.SetUpdateHandler(func(u Update) { updates <- u })

	a.HandleChanges([]string{"internal/test.py"})
	u := <-updates
	require.NoError(t, u.Err)
	assert.Equal(t, len(fixture.ModuleNames), u.Modules)
	assert.Equal(t, 4, u.MaxDepth)
	assert.Equal(t, 4, u.Depth, "depth 0 means the deepest matrix")

	previous := a.Current()
	a.modules = failingSource{}
	a.HandleChanges([]string{"internal/test.py"})
	u = <-updates
	assert.Error(t, u.Err)
	assert.Same(t, previous, a.Current(), "a failed rebuild keeps the last good build")

	health := NewHealthService(a).Check(context.Background())
	assert.Equal(t, "degraded", health.Status)
	assert.Contains(t, health.Components["last_rebuild"], "disk on fire")
}

func TestHealth(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.History.Enabled = true
	a := memoryApp(t, cfg)

	status := NewHealthService(a).Check(context.Background())
	assert.Equal(t, "degraded", status.Status)
	assert.Equal(t, "not built", status.Components["build"])
	assert.Equal(t, "missing but enabled in config", status.Components["history"])

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, "down", NewHealthService(a).Check(ctx).Status)
}

func TestStartWatcher(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, fixture.WriteTree(dir))

	a, err := New(testConfig(dir))
	require.NoError(t, err)
	defer a.Close()
	_, err = a.Build(context.Background())
	require.NoError(t, err)

	updates := make(chan Update, 4)
	a.SetUpdateHandler(func(u Update) { updates <- u })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.StartWatcher(ctx))
	assert.True(t, errors.IsCode(a.StartWatcher(ctx), errors.CodeConflict))

	newModule := filepath.Join(dir, "internal", "extra.py")
	require.NoError(t, os.WriteFile(newModule, []byte("from internal import test\n"), 0o644))

	timeout := time.After(5 * time.Second)
	for {
		select {
		case u := <-updates:
			if u.Err == nil && u.Modules == len(fixture.ModuleNames)+1 {
				return
			}
		case <-timeout:
			t.Fatal("timed out waiting for rebuild after file change")
		}
	}
}
