package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"depmatrix/internal/core/errors"
	"depmatrix/internal/engine/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	content := `
packages = ["internal"]

[paths]
search = ["./src", "./lib"]

[exclude]
dirs = [".git"]
files = ["*_pb2.py"]

[resolver]
submodule_imports = true

[build]
parallel = false
workers = 4

[output]
depth = 2
format = "JSON"
sort = "import+export"
reverse = true

[history]
enabled = true
project = "demo"

[watch]
debounce = "1s"
min_interval = "3s"

[[architecture.layers]]
name = "core"
paths = ["internal.s1"]

[[architecture.layers]]
name = "tests"
paths = ["internal.test"]

[[architecture.rules]]
name = "core-isolated"
from = "core"
allow = []
`
	path := filepath.Join(t.TempDir(), "depmatrix.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"internal"}, cfg.Packages)
	assert.Equal(t, []string{"./src", "./lib"}, cfg.Paths.Search)
	assert.Equal(t, ".depmatrix", cfg.Paths.StateDir)
	assert.Equal(t, []string{"*_pb2.py"}, cfg.Exclude.Files)
	assert.True(t, cfg.Resolver.SubmoduleImports)
	assert.False(t, cfg.Build.IsParallel())
	assert.Equal(t, 4, cfg.Build.Workers)
	assert.Equal(t, 2, cfg.Output.Depth)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.Equal(t, "import+export", cfg.Output.Sort)
	assert.True(t, cfg.Output.Reverse)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, "demo", cfg.History.Project)
	assert.Equal(t, "depmatrix.db", cfg.History.Path)
	assert.Equal(t, time.Second, cfg.Watch.Debounce)
	assert.Equal(t, 3*time.Second, cfg.Watch.MinInterval)
	assert.Equal(t, 12, cfg.Architecture.GodModuleScore)

	spec, err := cfg.Spec()
	require.NoError(t, err)
	assert.Equal(t, registry.SpecSingle, spec.Kind())
	assert.Equal(t, []string{"internal"}, spec.Roots())

	model := cfg.ArchitectureModel()
	require.Len(t, model.Layers, 2)
	assert.Equal(t, []string{"internal.s1"}, model.Layers[0].Patterns)
	require.Len(t, model.Rules, 1)
	assert.Equal(t, "core", model.Rules[0].From)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestLoadOrDefault(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, "csv", cfg.Output.Format)
	assert.True(t, cfg.Build.IsParallel())

	_, err = LoadOrDefault("custom.toml")
	assert.Error(t, err, "an explicitly named file must exist")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, []string{"."}, cfg.Paths.Search)
	assert.Equal(t, "name", cfg.Output.Sort)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.Debounce)
	assert.Empty(t, Validate(cfg))
}

func TestGroupsSpec(t *testing.T) {
	cfg, err := Parse(`
[[groups]]
name = "app"
roots = ["svc", "api"]

[[groups]]
roots = ["lib"]
`)
	require.NoError(t, err)

	spec, err := cfg.Spec()
	require.NoError(t, err)
	groups := spec.Groups()
	require.Len(t, groups, 2)
	assert.Equal(t, "app", groups[0].Name)
	assert.Equal(t, []string{"svc", "api"}, groups[0].Roots)
	assert.Equal(t, []string{"svc", "api", "lib"}, spec.Roots())
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad toml", `packages = [`},
		{"unknown key", `grammars_path = "./grammars"`},
		{"bad version", `version = 2`},
		{"packages and groups", "packages = [\"a\"]\n[[groups]]\nroots = [\"b\"]"},
		{"bad root", `packages = ["1abc"]`},
		{"bad format", "[output]\nformat = \"tsv\""},
		{"bad sort", "[output]\nsort = \"size\""},
		{"negative workers", "[build]\nworkers = -1"},
		{"rules without layers", "[[architecture.rules]]\nname = \"r\"\nfrom = \"core\""},
		{"unknown rule layer", "[[architecture.layers]]\nname = \"core\"\npaths = [\"a\"]\n[[architecture.rules]]\nname = \"r\"\nfrom = \"ui\""},
		{"duplicate layer", "[[architecture.layers]]\nname = \"core\"\npaths = [\"a\"]\n[[architecture.layers]]\nname = \"core\"\npaths = [\"b\"]"},
		{"shared pattern", "[[architecture.layers]]\nname = \"core\"\npaths = [\"a\"]\n[[architecture.layers]]\nname = \"ui\"\npaths = [\"a\"]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.content)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.CodeInvalidInput), "got %v", err)
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DEPMATRIX_PACKAGES", "a, b")
	t.Setenv("DEPMATRIX_OUTPUT_DEPTH", "3")
	t.Setenv("DEPMATRIX_OUTPUT_REVERSE", "TRUE")
	t.Setenv("DEPMATRIX_WATCH_DEBOUNCE", "250ms")
	t.Setenv("DEPMATRIX_BUILD_WORKERS", "not-a-number")

	cfg, err := Parse("[build]\nworkers = 2")
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, cfg.Packages)
	assert.Equal(t, 3, cfg.Output.Depth)
	assert.True(t, cfg.Output.Reverse)
	assert.Equal(t, 250*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, 2, cfg.Build.Workers, "unparsable values are ignored")

	spec, err := cfg.Spec()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, spec.Roots())
}
