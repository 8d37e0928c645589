// Package discovery finds the Python modules under the package roots of a
// spec.
package discovery

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"depmatrix/internal/core/errors"
	"depmatrix/internal/engine/registry"

	"github.com/gobwas/glob"
)

const (
	sourceExt = ".py"
	initFile  = registry.InitSegment + sourceExt
)

type Options struct {
	// SearchPaths are the directories a root such as "a.b" is looked up in,
	// as <search>/a/b. The first match wins.
	SearchPaths  []string
	ExcludeDirs  []string
	ExcludeFiles []string
	Logger       *slog.Logger
}

// Finder walks package directories on disk.
type Finder struct {
	searchPaths []string
	dirGlobs    []glob.Glob
	fileGlobs   []glob.Glob
	logger      *slog.Logger
}

func New(opts Options) (*Finder, error) {
	dirGlobs, err := compileAll(opts.ExcludeDirs)
	if err != nil {
		return nil, err
	}
	fileGlobs, err := compileAll(opts.ExcludeFiles)
	if err != nil {
		return nil, err
	}
	search := opts.SearchPaths
	if len(search) == 0 {
		search = []string{"."}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Finder{
		searchPaths: search,
		dirGlobs:    dirGlobs,
		fileGlobs:   fileGlobs,
		logger:      logger,
	}, nil
}

func compileAll(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInvalidInput, fmt.Sprintf("invalid exclude pattern %q", p))
		}
		out = append(out, g)
	}
	return out, nil
}

// Discover returns every module under the spec's roots, tagged with the group
// of its root. A root that cannot be found contributes no modules.
func (f *Finder) Discover(ctx context.Context, spec registry.Spec) ([]registry.Module, error) {
	var modules []registry.Module
	for _, g := range spec.Groups() {
		ref := registry.GroupRef{Index: g.Index, Name: g.Name}
		for _, root := range g.Roots {
			found, err := f.discoverRoot(ctx, root, ref)
			if err != nil {
				return nil, err
			}
			modules = append(modules, found...)
		}
	}
	return modules, nil
}

func (f *Finder) discoverRoot(ctx context.Context, root string, group registry.GroupRef) ([]registry.Module, error) {
	rel := filepath.Join(strings.Split(root, ".")...)
	for _, search := range f.searchPaths {
		dir := filepath.Join(search, rel)
		if isFile(filepath.Join(dir, initFile)) {
			return f.walkPackage(ctx, dir, root, group)
		}
		if file := dir + sourceExt; isFile(file) {
			return []registry.Module{f.module(root, file, group)}, nil
		}
	}
	f.logger.Debug("package root not found", "root", root, "search", f.searchPaths)
	return nil, nil
}

func (f *Finder) walkPackage(ctx context.Context, dir, root string, group registry.GroupRef) ([]registry.Module, error) {
	var modules []registry.Module
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		base := d.Name()
		if d.IsDir() {
			if path == dir {
				return nil
			}
			if f.excluded(f.dirGlobs, base) || !isFile(filepath.Join(path, initFile)) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(base) != sourceExt || f.excluded(f.fileGlobs, base) {
			return nil
		}

		relPath, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		name, ok := moduleName(root, relPath)
		if !ok {
			f.logger.Debug("skipping file with non-identifier name", "path", path)
			return nil
		}
		modules = append(modules, f.module(name, path, group))
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		de := &errors.DomainError{Code: errors.CodeInternal, Message: "walk package", Err: err}
		return nil, de.WithContext(errors.CtxPath, dir)
	}
	return modules, nil
}

func (f *Finder) module(name, path string, group registry.GroupRef) registry.Module {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return registry.Module{Name: name, Path: path, Group: group, Depth: registry.Depth(name)}
}

func (f *Finder) excluded(globs []glob.Glob, base string) bool {
	for _, g := range globs {
		if g.Match(base) {
			return true
		}
	}
	return false
}

// moduleName maps a path relative to the root package directory onto a
// dotted module name.
func moduleName(root, relPath string) (string, bool) {
	parts := strings.Split(filepath.ToSlash(strings.TrimSuffix(relPath, sourceExt)), "/")
	for _, p := range parts {
		if !isIdentifier(p) {
			return "", false
		}
	}
	return root + "." + strings.Join(parts, "."), true
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
