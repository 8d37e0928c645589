package config

import (
	"fmt"
	"strings"

	"depmatrix/internal/engine/matrix"
)

var outputFormats = map[string]bool{"csv": true, "json": true, "dot": true, "markdown": true}

// Validate returns every problem found in cfg.
func Validate(cfg *Config) []error {
	var errs []error
	for _, check := range []func(*Config) error{
		validateVersion,
		validatePackages,
		validateOutput,
		validateBuild,
		validateWatch,
		validateArchitecture,
	} {
		if err := check(cfg); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validatePackages(cfg *Config) error {
	if len(cfg.Packages) > 0 && len(cfg.Groups) > 0 {
		return fmt.Errorf("packages and groups are mutually exclusive")
	}
	if len(cfg.Packages) == 0 && len(cfg.Groups) == 0 {
		return nil
	}
	if _, err := cfg.Spec(); err != nil {
		return fmt.Errorf("packages: %w", err)
	}
	return nil
}

func validateOutput(cfg *Config) error {
	format := strings.ToLower(strings.TrimSpace(cfg.Output.Format))
	if !outputFormats[format] {
		return fmt.Errorf("output.format must be one of: csv, json, dot, markdown; got %q", cfg.Output.Format)
	}
	cfg.Output.Format = format
	if _, err := matrix.ParseCriterion(cfg.Output.Sort); err != nil {
		return fmt.Errorf("output.sort: %w", err)
	}
	return nil
}

func validateBuild(cfg *Config) error {
	if cfg.Build.Workers < 0 {
		return fmt.Errorf("build.workers must be >= 0, got %d", cfg.Build.Workers)
	}
	return nil
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	if cfg.Watch.MinInterval < 0 {
		return fmt.Errorf("watch.min_interval must not be negative")
	}
	return nil
}

func validateArchitecture(cfg *Config) error {
	arch := cfg.Architecture
	if arch.GodModuleScore < 0 {
		return fmt.Errorf("architecture.god_module_score must be >= 0")
	}
	if len(arch.Rules) > 0 && len(arch.Layers) == 0 {
		return fmt.Errorf("architecture.rules require at least one layer")
	}

	layerNames := make(map[string]bool, len(arch.Layers))
	patternOwner := make(map[string]string)
	for i, layer := range arch.Layers {
		ref := fmt.Sprintf("architecture.layers[%d]", i)
		if strings.TrimSpace(layer.Name) == "" {
			return fmt.Errorf("%s.name must not be empty", ref)
		}
		if layerNames[layer.Name] {
			return fmt.Errorf("duplicate architecture layer name: %q", layer.Name)
		}
		layerNames[layer.Name] = true
		if len(layer.Paths) == 0 {
			return fmt.Errorf("%s (%s) must define at least one module pattern", ref, layer.Name)
		}
		for _, raw := range layer.Paths {
			pattern := strings.Trim(strings.TrimSpace(raw), ".")
			if pattern == "" {
				return fmt.Errorf("layer %q has an empty module pattern", layer.Name)
			}
			if owner, ok := patternOwner[pattern]; ok && owner != layer.Name {
				return fmt.Errorf("module pattern %q is declared in both %q and %q", pattern, owner, layer.Name)
			}
			patternOwner[pattern] = layer.Name
		}
	}

	for i, rule := range arch.Rules {
		ref := fmt.Sprintf("architecture.rules[%d]", i)
		if strings.TrimSpace(rule.Name) == "" {
			return fmt.Errorf("%s.name must not be empty", ref)
		}
		if !layerNames[rule.From] {
			return fmt.Errorf("%s (%s) references unknown layer %q", ref, rule.Name, rule.From)
		}
		for _, allowed := range rule.Allow {
			if !layerNames[allowed] {
				return fmt.Errorf("%s (%s) allows unknown layer %q", ref, rule.Name, allowed)
			}
		}
	}
	return nil
}
