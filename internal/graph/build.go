package graph

import (
	"context"
	"fmt"
	"os"

	"github.com/vk/merlin/internal/builderr"
	"github.com/vk/merlin/internal/ctxlog"
)

// FileSet is the discovery snapshot the walk reads declarations from.
type FileSet interface {
	Has(path string) bool
	DependenciesOf(path string) ([]string, error)
}

// Resolver maps a declared name to an absolute path.
type Resolver interface {
	Resolve(containing, name string) (string, error)
}

// Build walks the dependency closure of entry and returns the finished graph.
// It fails with a configuration error if entry is not in files, and with the
// resolver's error if any declared name cannot be resolved.
func Build(ctx context.Context, entry string, files FileSet, r Resolver) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	if !files.Has(entry) {
		return nil, builderr.EntryNotFound(entry)
	}

	g := newGraph()
	visited := make(map[string]bool)
	queue := []string{entry}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := queue[0]
		queue = queue[1:]
		if visited[path] {
			continue
		}
		visited[path] = true

		names, err := files.DependenciesOf(path)
		if err != nil {
			return nil, fmt.Errorf("graph: dependencies of %s: %w", path, err)
		}
		deps := make([]Dependency, 0, len(names))
		for _, name := range names {
			target, err := r.Resolve(path, name)
			if err != nil {
				return nil, err
			}
			deps = append(deps, Dependency{Name: name, Path: target})
		}

		src, err := os.ReadFile(path)
		if err != nil {
			return nil, builderr.Read(path, err)
		}
		m := g.add(path, src, deps)
		logger.Debug("Module discovered.", "id", m.ID, "path", path, "dependencies", len(deps))

		for _, d := range deps {
			if !visited[d.Path] {
				queue = append(queue, d.Path)
			}
		}
	}

	logger.Debug("Dependency graph closed.", "modules", g.Len())
	return g, nil
}
