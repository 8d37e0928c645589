package config

import (
	"strings"
	"time"

	"depmatrix/internal/engine/analysis"
	"depmatrix/internal/engine/registry"
)

// DefaultFile is the config file looked up when no path is given.
const DefaultFile = "depmatrix.toml"

type Config struct {
	Version int `toml:"version"`
	// Packages and Groups are mutually exclusive ways to name the package
	// roots to analyze.
	Packages      []string      `toml:"packages"`
	Groups        []Group       `toml:"groups"`
	Paths         Paths         `toml:"paths"`
	Exclude       Exclude       `toml:"exclude"`
	Resolver      Resolver      `toml:"resolver"`
	Build         Build         `toml:"build"`
	Output        Output        `toml:"output"`
	History       History       `toml:"history"`
	Watch         Watch         `toml:"watch"`
	Observability Observability `toml:"observability"`
	Architecture  Architecture  `toml:"architecture"`
}

type Group struct {
	Name  string   `toml:"name"`
	Roots []string `toml:"roots"`
}

type Paths struct {
	// Search lists the directories package roots are looked up in.
	Search   []string `toml:"search"`
	StateDir string   `toml:"state_dir"`
}

type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

type Resolver struct {
	SubmoduleImports bool `toml:"submodule_imports"`
}

type Build struct {
	Parallel *bool `toml:"parallel"`
	Workers  int   `toml:"workers"`
}

// IsParallel defaults to true when unset.
func (b Build) IsParallel() bool {
	return b.Parallel == nil || *b.Parallel
}

type Output struct {
	Depth   int    `toml:"depth"`
	Format  string `toml:"format"`
	Sort    string `toml:"sort"`
	Reverse bool   `toml:"reverse"`
	Path    string `toml:"path"`
}

type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
	Project string `toml:"project"`
}

type Watch struct {
	Debounce    time.Duration `toml:"debounce"`
	MinInterval time.Duration `toml:"min_interval"`
}

type Observability struct {
	MetricsAddress string `toml:"metrics_address"`
	OTLPEndpoint   string `toml:"otlp_endpoint"`
}

type Architecture struct {
	Layers         []ArchitectureLayer `toml:"layers"`
	Rules          []ArchitectureRule  `toml:"rules"`
	GodModuleScore int                 `toml:"god_module_score"`
}

type ArchitectureLayer struct {
	Name  string   `toml:"name"`
	Paths []string `toml:"paths"`
}

type ArchitectureRule struct {
	Name  string   `toml:"name"`
	From  string   `toml:"from"`
	Allow []string `toml:"allow"`
}

// Spec converts the package settings into a registry spec.
func (c *Config) Spec() (registry.Spec, error) {
	if len(c.Groups) > 0 {
		groups := make([]registry.GroupSpec, 0, len(c.Groups))
		for _, g := range c.Groups {
			groups = append(groups, registry.GroupSpec{Name: g.Name, Roots: g.Roots})
		}
		return registry.Grouped(groups...)
	}
	if len(c.Packages) == 1 {
		return registry.Single(c.Packages[0])
	}
	return registry.Grouped(registry.GroupSpec{Roots: c.Packages})
}

// DefaultConfig is the configuration used when no file exists.
func DefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if len(cfg.Paths.Search) == 0 {
		cfg.Paths.Search = []string{"."}
	}
	if strings.TrimSpace(cfg.Paths.StateDir) == "" {
		cfg.Paths.StateDir = ".depmatrix"
	}
	if len(cfg.Exclude.Dirs) == 0 {
		cfg.Exclude.Dirs = []string{".git", "__pycache__", ".venv", "venv", "node_modules"}
	}
	if strings.TrimSpace(cfg.Output.Format) == "" {
		cfg.Output.Format = "csv"
	}
	if strings.TrimSpace(cfg.Output.Sort) == "" {
		cfg.Output.Sort = "name"
	}
	if strings.TrimSpace(cfg.History.Path) == "" {
		cfg.History.Path = "depmatrix.db"
	}
	if strings.TrimSpace(cfg.History.Project) == "" {
		cfg.History.Project = "default"
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if cfg.Watch.MinInterval == 0 {
		cfg.Watch.MinInterval = time.Second
	}
	if cfg.Architecture.GodModuleScore == 0 {
		cfg.Architecture.GodModuleScore = 12
	}
}

// ArchitectureModel converts the layer settings for the rule engine.
func (c *Config) ArchitectureModel() analysis.Model {
	model := analysis.Model{}
	for _, l := range c.Architecture.Layers {
		model.Layers = append(model.Layers, analysis.Layer{Name: l.Name, Patterns: l.Paths})
	}
	for _, r := range c.Architecture.Rules {
		model.Rules = append(model.Rules, analysis.Rule{Name: r.Name, From: r.From, Allow: r.Allow})
	}
	return model
}
