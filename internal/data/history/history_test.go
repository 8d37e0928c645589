package history

import (
	"context"
	"database/sql"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"depmatrix/internal/core/errors"
	"depmatrix/internal/engine/builder"
	"depmatrix/internal/engine/matrix"
	"depmatrix/internal/engine/registry"
	"depmatrix/internal/test/fixture"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureMatrices(t *testing.T) []*matrix.Matrix {
	t.Helper()
	spec, err := registry.Single(fixture.Root)
	require.NoError(t, err)
	src := fixture.NewSource("")
	b, err := builder.New(builder.Options{Spec: spec, Modules: src, Imports: src})
	require.NoError(t, err)
	require.NoError(t, b.Build(context.Background()))
	return b.Matrices()
}

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_SaveLoadRun(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	matrices := fixtureMatrices(t)

	id, err := store.SaveRun(ctx, "project-a", matrices)
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	require.NoError(t, err, "run ids are UUIDs")

	run, loaded, err := store.LoadRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "project-a", run.Project)
	assert.Equal(t, 4, run.MaxDepth)
	assert.Equal(t, 9, run.Modules)
	assert.Equal(t, 10, run.Edges)

	require.Len(t, loaded, len(matrices))
	for i, m := range matrices {
		assert.Equal(t, m.Keys, loaded[i].Keys)
		assert.Equal(t, m.Cells, loaded[i].Cells)
		assert.Equal(t, m.Dependencies, loaded[i].Dependencies)
	}
}

func TestStore_ListRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	matrices := fixtureMatrices(t)

	base := time.Date(2026, 2, 13, 10, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		store.now = func() time.Time { return at }
		id, err := store.SaveRun(ctx, "project-a", matrices[:i+1])
		require.NoError(t, err)
		ids = append(ids, id)
	}
	_, err := store.SaveRun(ctx, "project-b", matrices)
	require.NoError(t, err)

	runs, err := store.ListRuns(ctx, "project-a", 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[0], runs[2].ID)
	assert.Equal(t, 3, runs[0].MaxDepth)
	assert.Equal(t, base.Add(2*time.Hour), runs[0].CreatedAt)

	limited, err := store.ListRuns(ctx, "project-a", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, ids[2], limited[0].ID)

	other, err := store.ListRuns(ctx, "project-b", 0)
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestStore_ListRunsSameSecond(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	matrices := fixtureMatrices(t)

	base := time.Date(2026, 2, 13, 10, 0, 0, 0, time.UTC)
	var ids []string
	for _, offset := range []time.Duration{100 * time.Millisecond, 120 * time.Millisecond, 0} {
		at := base.Add(offset)
		store.now = func() time.Time { return at }
		id, err := store.SaveRun(ctx, "project-a", matrices)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	runs, err := store.ListRuns(ctx, "project-a", 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []string{ids[1], ids[0], ids[2]}, []string{runs[0].ID, runs[1].ID, runs[2].ID})
	assert.Equal(t, base.Add(120*time.Millisecond), runs[0].CreatedAt)
	assert.Equal(t, base, runs[2].CreatedAt)
}

func TestStore_DefaultProject(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	_, err := store.SaveRun(ctx, "  ", nil)
	require.NoError(t, err)
	runs, err := store.ListRuns(ctx, "default", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 0, runs[0].MaxDepth)
}

func TestStore_LoadRunNotFound(t *testing.T) {
	store := openStore(t)
	_, _, err := store.LoadRun(context.Background(), uuid.NewString())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestStore_OpenRejectsDirectoryPath(t *testing.T) {
	_, err := Open(t.TempDir())
	if err == nil {
		t.Fatal("expected open error for directory path")
	}
	if !strings.Contains(err.Error(), "is a directory") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStore_OpenCorruptDBPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	if err := os.WriteFile(path, []byte("this is not sqlite"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Open(path)
	if err == nil {
		t.Fatal("expected sqlite open error")
	}
	lower := strings.ToLower(err.Error())
	if !strings.Contains(lower, "not a database") && !strings.Contains(lower, "schema") {
		t.Fatalf("expected schema/open error, got: %v", err)
	}
}

func TestEnsureSchema_DetectsNewerVersionDrift(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if _, err := store.db.Exec(`INSERT OR REPLACE INTO schema_migrations(version) VALUES (?)`, SchemaVersion+1); err != nil {
		t.Fatal(err)
	}

	db, err := sql.Open(driverName, "file:"+path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	err = EnsureSchema(db)
	if err == nil {
		t.Fatal("expected drift error")
	}
	if !strings.Contains(err.Error(), "newer than supported") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestIsCorruptError(t *testing.T) {
	if !IsCorruptError(stderrors.New("database disk image is malformed")) {
		t.Fatal("expected malformed sqlite message to be treated as corrupt")
	}
	if IsCorruptError(nil) {
		t.Fatal("nil is not corrupt")
	}
}
