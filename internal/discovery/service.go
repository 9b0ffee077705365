// Package discovery enumerates the source files under the configured roots,
// records each file's declared dependency names, and reports batched file
// changes for incremental rebuilds.
package discovery

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/vk/merlin/internal/ctxlog"
	"github.com/vk/merlin/internal/jsscan"
)

// defaultIgnoreDirs are never descended into while enumerating.
var defaultIgnoreDirs = []string{".git", ".hg", ".svn", ".cache"}

// Service crawls a fixed set of roots for files with the configured extensions.
type Service struct {
	roots      []string
	extensions []string
	ignoreDirs []string
}

// New creates a discovery service. Extensions are given without the leading
// dot ("js", not ".js"). Roots are made absolute.
func New(roots, extensions, ignoreDirs []string) (*Service, error) {
	if len(roots) == 0 {
		return nil, fmt.Errorf("discovery: at least one root is required")
	}
	if len(extensions) == 0 {
		return nil, fmt.Errorf("discovery: at least one extension is required")
	}
	abs := make([]string, 0, len(roots))
	for _, r := range roots {
		p, err := filepath.Abs(r)
		if err != nil {
			return nil, fmt.Errorf("discovery: resolve root %q: %w", r, err)
		}
		abs = append(abs, p)
	}
	exts := make([]string, 0, len(extensions))
	for _, e := range extensions {
		exts = append(exts, strings.TrimPrefix(e, "."))
	}
	return &Service{
		roots:      abs,
		extensions: exts,
		ignoreDirs: append(slices.Clone(defaultIgnoreDirs), ignoreDirs...),
	}, nil
}

// Roots returns the absolute roots being scanned.
func (s *Service) Roots() []string { return slices.Clone(s.roots) }

// Extensions returns the scanned extensions without leading dots.
func (s *Service) Extensions() []string { return slices.Clone(s.extensions) }

// Scans reports whether ext (with or without a leading dot) is scanned.
func (s *Service) Scans(ext string) bool {
	return slices.Contains(s.extensions, strings.TrimPrefix(ext, "."))
}

// Enumerate walks every root and returns a fresh FileSet. Each file is read
// once to extract its declared dependency names.
func (s *Service) Enumerate(ctx context.Context) (*FileSet, error) {
	logger := ctxlog.FromContext(ctx)
	set := &FileSet{deps: make(map[string][]string)}

	for _, root := range s.roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if d.IsDir() {
				if path != root && slices.Contains(s.ignoreDirs, d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if !s.Scans(filepath.Ext(path)) {
				return nil
			}
			if _, seen := set.deps[path]; seen {
				return nil
			}
			src, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			set.add(path, jsscan.Names(src))
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("discovery: walk %s: %w", root, err)
		}
	}

	logger.Debug("Discovery complete.", "roots", len(s.roots), "files", set.Len())
	return set, nil
}

// FileSet is an immutable snapshot of one crawl.
type FileSet struct {
	paths []string
	deps  map[string][]string
}

// NewFileSet builds a FileSet directly from a path to dependency-names map.
// Paths are listed in the order given by paths.
func NewFileSet(paths []string, deps map[string][]string) *FileSet {
	set := &FileSet{deps: make(map[string][]string, len(paths))}
	for _, p := range paths {
		set.add(p, deps[p])
	}
	return set
}

func (f *FileSet) add(path string, names []string) {
	f.paths = append(f.paths, path)
	f.deps[path] = names
}

// Has reports whether path was discovered.
func (f *FileSet) Has(path string) bool {
	_, ok := f.deps[path]
	return ok
}

// DependenciesOf returns the declared dependency names of path in declaration order.
func (f *FileSet) DependenciesOf(path string) ([]string, error) {
	names, ok := f.deps[path]
	if !ok {
		return nil, fmt.Errorf("discovery: %s is not in the file set", path)
	}
	return slices.Clone(names), nil
}

// Paths returns every discovered path in crawl order.
func (f *FileSet) Paths() []string { return slices.Clone(f.paths) }

// Len returns the number of discovered files.
func (f *FileSet) Len() int { return len(f.paths) }
