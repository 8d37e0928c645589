package config

import (
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"depmatrix/internal/core/errors"

	"github.com/BurntSushi/toml"
)

// Load reads, defaults and validates the TOML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		de := &errors.DomainError{Code: errors.CodeNotFound, Message: "read config", Err: err}
		return nil, de.WithContext(errors.CtxPath, path)
	}
	return Parse(string(data))
}

// LoadOrDefault loads path, or returns the defaults when path is the
// default file name and it does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultFile
	}
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if filepath.Base(path) == DefaultFile && stderrors.Is(err, fs.ErrNotExist) {
		cfg = DefaultConfig()
		ApplyEnvOverrides(cfg)
		return cfg, nil
	}
	return nil, err
}

// Parse decodes TOML content into a validated Config. Environment
// overrides are applied after defaults.
func Parse(content string) (*Config, error) {
	var cfg Config
	meta, err := toml.Decode(content, &cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidInput, "decode config")
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, errors.Newf(errors.CodeInvalidInput, "unknown config key %q", undecoded[0].String())
	}

	applyDefaults(&cfg)
	ApplyEnvOverrides(&cfg)

	if errs := Validate(&cfg); len(errs) > 0 {
		return nil, errors.Wrap(stderrors.Join(errs...), errors.CodeInvalidInput, "invalid config")
	}
	return &cfg, nil
}
