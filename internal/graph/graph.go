package graph

import (
	"slices"
)

// Dependency is one declared dependency of a module.
type Dependency struct {
	// Name is the dependency string exactly as written in the source.
	Name string
	// Path is the absolute path Name resolved to.
	Path string
}

// ModuleRecord is one discovered file.
type ModuleRecord struct {
	ID        int
	Path      string
	RawSource []byte
	// Dependencies are in declaration order.
	Dependencies []Dependency
}

// Resolved returns the path a declared name resolved to.
func (m *ModuleRecord) Resolved(name string) (string, bool) {
	for _, d := range m.Dependencies {
		if d.Name == name {
			return d.Path, true
		}
	}
	return "", false
}

// Graph owns the module records of one build cycle.
type Graph struct {
	// modules is indexed by id, which is also discovery order.
	modules []*ModuleRecord
	byPath  map[string]*ModuleRecord
}

func newGraph() *Graph {
	return &Graph{byPath: make(map[string]*ModuleRecord)}
}

func (g *Graph) add(path string, src []byte, deps []Dependency) *ModuleRecord {
	m := &ModuleRecord{
		ID:           len(g.modules),
		Path:         path,
		RawSource:    src,
		Dependencies: deps,
	}
	g.modules = append(g.modules, m)
	g.byPath[path] = m
	return m
}

// Entry returns the module with id 0.
func (g *Graph) Entry() *ModuleRecord {
	if len(g.modules) == 0 {
		return nil
	}
	return g.modules[0]
}

// Len returns the number of modules.
func (g *Graph) Len() int { return len(g.modules) }

// Get returns the module at path.
func (g *Graph) Get(path string) (*ModuleRecord, bool) {
	m, ok := g.byPath[path]
	return m, ok
}

// ByID returns the module with the given id.
func (g *Graph) ByID(id int) (*ModuleRecord, bool) {
	if id < 0 || id >= len(g.modules) {
		return nil, false
	}
	return g.modules[id], true
}

// Modules returns every module in discovery order.
func (g *Graph) Modules() []*ModuleRecord { return slices.Clone(g.modules) }

// IDs returns the name to id table of m. Every declared name maps to the id
// of the module it resolved to.
func (g *Graph) IDs(m *ModuleRecord) map[string]int {
	ids := make(map[string]int, len(m.Dependencies))
	for _, d := range m.Dependencies {
		if target, ok := g.byPath[d.Path]; ok {
			ids[d.Name] = target.ID
		}
	}
	return ids
}
