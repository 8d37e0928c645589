package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: DEPMATRIX_[SECTION]_[KEY] (e.g., DEPMATRIX_OUTPUT_DEPTH).
func ApplyEnvOverrides(cfg *Config) {
	if val, ok := os.LookupEnv("DEPMATRIX_PACKAGES"); ok && strings.TrimSpace(val) != "" {
		slog.Debug("applying env override", "key", "DEPMATRIX_PACKAGES", "value", val)
		cfg.Packages = splitList(val)
		cfg.Groups = nil
	}

	setEnvString(&cfg.Paths.StateDir, "DEPMATRIX_PATHS_STATE_DIR")
	setEnvBool(&cfg.Resolver.SubmoduleImports, "DEPMATRIX_RESOLVER_SUBMODULE_IMPORTS")
	setEnvInt(&cfg.Build.Workers, "DEPMATRIX_BUILD_WORKERS")

	setEnvInt(&cfg.Output.Depth, "DEPMATRIX_OUTPUT_DEPTH")
	setEnvString(&cfg.Output.Format, "DEPMATRIX_OUTPUT_FORMAT")
	setEnvString(&cfg.Output.Sort, "DEPMATRIX_OUTPUT_SORT")
	setEnvBool(&cfg.Output.Reverse, "DEPMATRIX_OUTPUT_REVERSE")

	setEnvBool(&cfg.History.Enabled, "DEPMATRIX_HISTORY_ENABLED")
	setEnvString(&cfg.History.Path, "DEPMATRIX_HISTORY_PATH")
	setEnvString(&cfg.History.Project, "DEPMATRIX_HISTORY_PROJECT")

	setEnvDuration(&cfg.Watch.Debounce, "DEPMATRIX_WATCH_DEBOUNCE")
	setEnvDuration(&cfg.Watch.MinInterval, "DEPMATRIX_WATCH_MIN_INTERVAL")

	setEnvString(&cfg.Observability.MetricsAddress, "DEPMATRIX_OBSERVABILITY_METRICS_ADDRESS")
	setEnvString(&cfg.Observability.OTLPEndpoint, "DEPMATRIX_OBSERVABILITY_OTLP_ENDPOINT")
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(strings.ToLower(val)); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = b
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}
