package resolver

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"depmatrix/internal/core/errors"
	"depmatrix/internal/engine/registry"
	"depmatrix/internal/shared/observability"
)

type Options struct {
	// SubmoduleImports resolves "from pkg import name" to pkg.name whenever
	// pkg.name is itself a module or package. When false the statement always
	// targets pkg (or pkg's package-self module).
	SubmoduleImports bool
	Logger           *slog.Logger
}

// Resolver turns raw import statements into module-to-module edges. A
// Resolver owns its memo; reuse it across calls to share lookups.
type Resolver struct {
	reg    *registry.Registry
	opts   Options
	memo   *Memo
	logger *slog.Logger
}

func New(reg *registry.Registry, opts Options) *Resolver {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		reg:    reg,
		opts:   opts,
		memo:   newMemo(reg),
		logger: logger,
	}
}

func (r *Resolver) Memo() *Memo { return r.memo }

type edgeKey struct {
	source, target int
}

// Resolve validates every statement, then resolves and merges them into edges
// sorted by (source name, target name). A statement whose importer is not in
// the registry fails the whole call and no edges are returned.
func (r *Resolver) Resolve(raws []RawImport) ([]Edge, error) {
	sources := make([]int, len(raws))
	for i, raw := range raws {
		_, idx, ok := r.reg.Lookup(raw.By)
		if !ok {
			err := &errors.DomainError{
				Code:    errors.CodeInvalidInput,
				Message: fmt.Sprintf("import statement %d is by unknown module %q", i, raw.By),
			}
			return nil, err.WithContext(errors.CtxModule, raw.By)
		}
		sources[i] = idx
	}

	edges := make(map[edgeKey]*Edge)
	for i, raw := range raws {
		for _, part := range r.attribute(raw) {
			key := edgeKey{source: sources[i], target: part.target}
			e, ok := edges[key]
			if !ok {
				e = &Edge{
					SourceIndex: key.source,
					SourceName:  r.reg.At(key.source).Name,
					TargetIndex: key.target,
					TargetName:  r.reg.At(key.target).Name,
				}
				edges[key] = e
			}
			e.Cardinal += len(part.names)
			e.Imports = append(e.Imports, RawImport{
				By:    raw.By,
				From:  raw.From,
				Names: part.names,
				Plain: raw.Plain,
			})
		}
	}

	out := make([]Edge, 0, len(edges))
	for _, e := range edges {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SourceName != out[j].SourceName {
			return out[i].SourceName < out[j].SourceName
		}
		return out[i].TargetName < out[j].TargetName
	})

	observability.ResolvedEdgesTotal.Set(float64(len(out)))
	r.logger.Debug("resolved imports", "statements", len(raws), "edges", len(out), "memo", r.memo.Len())
	return out, nil
}

type attribution struct {
	target int
	names  []string
}

// attribute splits one statement into per-target name lists, in the order
// targets are first encountered.
func (r *Resolver) attribute(raw RawImport) []attribution {
	from := strings.TrimSpace(raw.From)
	if from == "" {
		return nil
	}

	if raw.Plain {
		idx, ok := r.target(from)
		if !ok {
			observability.ExternalImportsTotal.Inc()
			return nil
		}
		return []attribution{{target: idx, names: []string{registry.Basename(from)}}}
	}

	if len(raw.Names) == 0 {
		return nil
	}

	var parts []attribution
	add := func(target int, name string) {
		for i := range parts {
			if parts[i].target == target {
				parts[i].names = append(parts[i].names, name)
				return
			}
		}
		parts = append(parts, attribution{target: target, names: []string{name}})
	}

	fromIdx, fromOK := -1, false
	fromResolved := false
	for _, name := range raw.Names {
		if r.opts.SubmoduleImports && name != "*" {
			if idx, ok := r.target(from + "." + name); ok {
				add(idx, name)
				continue
			}
		}
		if !fromResolved {
			fromIdx, fromOK = r.target(from)
			fromResolved = true
		}
		if fromOK {
			add(fromIdx, name)
		}
	}
	if fromResolved && !fromOK {
		observability.ExternalImportsTotal.Inc()
	}
	return parts
}

// target maps a candidate name to the registry index of the module it
// denotes: the module itself, or the package-self module of a package.
func (r *Resolver) target(name string) (int, bool) {
	if !r.memo.Inside(name) {
		return -1, false
	}
	if _, idx, ok := r.reg.Lookup(name); ok {
		return idx, true
	}
	if _, idx, ok := r.reg.Lookup(registry.PackageSelf(name)); ok {
		return idx, true
	}
	return -1, false
}
