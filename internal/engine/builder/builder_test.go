package builder_test

import (
	"context"
	"testing"

	"depmatrix/internal/core/errors"
	"depmatrix/internal/engine/builder"
	"depmatrix/internal/engine/registry"
	"depmatrix/internal/engine/resolver"
	"depmatrix/internal/test/fixture"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBuilder(t *testing.T, src *fixture.Source, parallel bool) *builder.Builder {
	t.Helper()
	spec, err := registry.Single(fixture.Root)
	require.NoError(t, err)
	b, err := builder.New(builder.Options{
		Spec:     spec,
		Modules:  src,
		Imports:  src,
		Parallel: parallel,
	})
	require.NoError(t, err)
	return b
}

func TestBuilder_OutOfOrderStagesAreNoOps(t *testing.T) {
	ctx := context.Background()
	b := newBuilder(t, fixture.NewSource(""), false)

	edges, err := b.BuildImports(ctx)
	assert.NoError(t, err)
	assert.Nil(t, edges)
	assert.Equal(t, builder.StageEmpty, b.Stage())

	matrices, err := b.BuildMatrices(ctx)
	assert.NoError(t, err)
	assert.Nil(t, matrices)
	assert.Equal(t, builder.StageEmpty, b.Stage())

	_, err = b.BuildModules(ctx)
	require.NoError(t, err)
	assert.Equal(t, builder.StageModules, b.Stage())

	matrices, err = b.BuildMatrices(ctx)
	assert.NoError(t, err)
	assert.Nil(t, matrices)
	assert.Equal(t, builder.StageModules, b.Stage(), "matrices need imports even when modules exist")

	_, err = b.Matrix(2)
	assert.True(t, errors.IsCode(err, errors.CodeNotBuilt))
}

func TestBuilder_PublishedStagesAreStable(t *testing.T) {
	ctx := context.Background()
	b := newBuilder(t, fixture.NewSource(""), false)

	modules, err := b.BuildModules(ctx)
	require.NoError(t, err)
	modulesSnapshot := append([]registry.Module(nil), modules...)

	edges, err := b.BuildImports(ctx)
	require.NoError(t, err)
	edgesSnapshot := resolver.CloneEdges(edges)

	again, err := b.BuildModules(ctx)
	require.NoError(t, err)
	assert.Equal(t, modulesSnapshot, again, "second BuildModules returns published data")

	matrices, err := b.BuildMatrices(ctx)
	require.NoError(t, err)
	require.Len(t, matrices, 4)

	assert.Equal(t, modulesSnapshot, b.Modules())
	assert.Equal(t, edgesSnapshot, b.Edges())

	depth2, err := b.Matrix(2)
	require.NoError(t, err)
	cells := [][]int{{0, 0, 0, 0}, {1, 3, 0, 9}, {0, 1, 1, 0}, {1, 2, 1, 0}}
	assert.Equal(t, cells, depth2.Cells)

	twice, err := b.BuildMatrices(ctx)
	require.NoError(t, err)
	assert.Same(t, matrices[0], twice[0])
	assert.Len(t, twice, 4)
}

func TestBuilder_Build(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		b := newBuilder(t, fixture.NewSource(""), parallel)
		require.NoError(t, b.Build(context.Background()))
		assert.Equal(t, builder.StageMatrices, b.Stage())
		assert.Equal(t, 4, b.MaxDepth())
		assert.Len(t, b.Modules(), 9)
		assert.Len(t, b.Statements(), 11)

		top, err := b.Matrix(1)
		require.NoError(t, err)
		assert.Equal(t, ",internal\r\ninternal,19", top.CSV())
		assert.Equal(t, 19, top.Nodes["internal"].Cardinal.Imports)
		assert.Equal(t, 19, top.Nodes["internal"].Cardinal.Exports)

		memo := b.Memo()
		assert.Len(t, memo, 8)
		assert.False(t, memo["external.exists"])
		assert.True(t, memo["internal"])
		assert.Equal(t, []string{"external.exists"}, b.External())
	}
}

func TestBuilder_MatrixDepthClamping(t *testing.T) {
	b := newBuilder(t, fixture.NewSource(""), true)
	require.NoError(t, b.Build(context.Background()))

	tests := []struct {
		requested, want int
	}{
		{0, 4}, {4, 4}, {9, 4}, {-1, 4}, {-2, 3}, {-4, 1}, {-20, 1}, {1, 1},
	}
	for _, tt := range tests {
		m, err := b.Matrix(tt.requested)
		require.NoError(t, err)
		assert.Equal(t, tt.want, m.Depth, "requested %d", tt.requested)
	}
}

func TestBuilder_EmptyRegistry(t *testing.T) {
	spec, err := registry.Single("elsewhere")
	require.NoError(t, err)
	src := fixture.NewSource("")
	b, err := builder.New(builder.Options{Spec: spec, Modules: src, Imports: src})
	require.NoError(t, err)

	require.NoError(t, b.Build(context.Background()))
	assert.Equal(t, 0, b.MaxDepth())
	m, err := b.Matrix(3)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Size())
	assert.Equal(t, "", m.CSV())
}

type badImporter struct{ *fixture.Source }

func (s badImporter) ParseImports(ctx context.Context, m registry.Module) ([]resolver.RawImport, error) {
	raws, err := s.Source.ParseImports(ctx, m)
	if m.Name == "internal.test" {
		raws = append(raws, resolver.RawImport{By: "internal.ghost", From: "internal", Names: []string{"x"}})
	}
	return raws, err
}

func TestBuilder_UnknownImporterFailsFast(t *testing.T) {
	ctx := context.Background()
	spec, err := registry.Single(fixture.Root)
	require.NoError(t, err)
	src := fixture.NewSource("")
	b, err := builder.New(builder.Options{Spec: spec, Modules: src, Imports: badImporter{src}})
	require.NoError(t, err)

	err = b.Build(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidInput))
	assert.Equal(t, builder.StageModules, b.Stage())
	assert.Nil(t, b.Edges(), "no partial edge list is published")
	assert.Nil(t, b.Memo())
}

func TestNew_RequiresSpecAndSources(t *testing.T) {
	_, err := builder.New(builder.Options{})
	assert.True(t, errors.IsCode(err, errors.CodeInvalidInput))

	spec, _ := registry.Single(fixture.Root)
	_, err = builder.New(builder.Options{Spec: spec})
	assert.True(t, errors.IsCode(err, errors.CodeInvalidInput))
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "empty", builder.StageEmpty.String())
	assert.Equal(t, "matrices", builder.StageMatrices.String())
	assert.Equal(t, "unknown", builder.Stage(42).String())
}
