package graph

import (
	"sort"

	gograph "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
)

// Graph is the mutable dependency graph handed to the serializer chain.
// Modules are keyed by absolute path; a stable int64 id per path is mirrored
// into a gonum directed graph so that graph algorithms (cycle detection,
// deterministic ordering) run over standard interfaces.
//
// The graph is not safe for concurrent mutation; one serializer invocation
// owns its graph snapshot for the duration of the pass.
type Graph struct {
	modules map[string]*Module
	ids     map[string]int64
	paths   map[int64]string
	nextID  int64
	g       *simple.DirectedGraph
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		modules: make(map[string]*Module),
		ids:     make(map[string]int64),
		paths:   make(map[int64]string),
		g:       simple.NewDirectedGraph(),
	}
}

// Add registers a module. Ids are assigned in insertion order and are stable
// for the lifetime of the graph, including across removals.
func (g *Graph) Add(m *Module) {
	if m.Dependencies == nil {
		m.Dependencies = make(map[string]Dependency)
	}
	if m.InverseDependencies == nil {
		m.InverseDependencies = make(map[string]bool)
	}
	if _, exists := g.modules[m.Path]; exists {
		g.modules[m.Path] = m
		return
	}
	g.modules[m.Path] = m
	id, seen := g.ids[m.Path]
	if !seen {
		id = g.nextID
		g.ids[m.Path] = id
		g.paths[id] = m.Path
		g.nextID++
	}
	g.g.AddNode(simple.Node(id))
}

// Module returns the module for a path.
func (g *Graph) Module(path string) (*Module, bool) {
	m, ok := g.modules[path]
	return m, ok
}

// Len returns the number of modules currently in the graph.
func (g *Graph) Len() int { return len(g.modules) }

// ID returns the stable numeric id assigned to a path, or -1 if the path
// was never added. Ids survive module removal so repeated builds over the
// same graph produce the same ordering.
func (g *Graph) ID(path string) int64 {
	if id, ok := g.ids[path]; ok {
		return id
	}
	return -1
}

// Paths returns all module paths in lexical order.
func (g *Graph) Paths() []string {
	paths := make([]string, 0, len(g.modules))
	for p := range g.modules {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Modules returns all modules ordered by the given id function.
func (g *Graph) Modules(idFor func(path string) int64) []*Module {
	mods := make([]*Module, 0, len(g.modules))
	for _, m := range g.modules {
		mods = append(mods, m)
	}
	sort.Slice(mods, func(i, j int) bool {
		return idFor(mods[i].Path) < idFor(mods[j].Path)
	})
	return mods
}

// AddEdge records that `from` imports `to` under the written specifier, and
// keeps the inverse index and the gonum mirror in sync. Both modules must
// already be in the graph.
func (g *Graph) AddEdge(from, specifier, to string) {
	src, ok := g.modules[from]
	if !ok {
		return
	}
	dst, ok := g.modules[to]
	if !ok {
		return
	}
	src.Dependencies[specifier] = Dependency{Path: to}
	dst.InverseDependencies[from] = true
	if from != to && !g.g.HasEdgeFromTo(g.ids[from], g.ids[to]) {
		g.g.SetEdge(g.g.NewEdge(simple.Node(g.ids[from]), simple.Node(g.ids[to])))
	}
}

// DetachEdge removes the forward dependency entry for a specifier, removes
// `from` from the target's inverse set, and deletes the target module when
// nothing imports it anymore. Deleting a module cascades through its own
// outgoing edges. Returns the paths of all modules deleted.
func (g *Graph) DetachEdge(from, specifier string) []string {
	src, ok := g.modules[from]
	if !ok {
		return nil
	}
	dep, ok := src.Dependencies[specifier]
	if !ok {
		return nil
	}
	delete(src.Dependencies, specifier)

	var removed []string
	target, ok := g.modules[dep.Path]
	if !ok {
		return nil
	}

	// Another specifier in `from` may still resolve to the same target.
	if !g.hasEdgeTo(src, dep.Path) {
		delete(target.InverseDependencies, from)
		g.syncMirrorEdge(from, dep.Path)
		if len(target.InverseDependencies) == 0 {
			removed = append(removed, g.remove(dep.Path)...)
		}
	}
	return removed
}

// Remove deletes a module and cascades orphan collection through its
// outgoing edges. Returns the paths of all modules deleted.
func (g *Graph) Remove(path string) []string {
	if _, ok := g.modules[path]; !ok {
		return nil
	}
	return g.remove(path)
}

func (g *Graph) remove(path string) []string {
	m := g.modules[path]
	removed := []string{path}
	delete(g.modules, path)
	if node := g.g.Node(g.ids[path]); node != nil {
		g.g.RemoveNode(g.ids[path])
	}

	for _, dep := range m.Dependencies {
		target, ok := g.modules[dep.Path]
		if !ok {
			continue
		}
		delete(target.InverseDependencies, path)
		if len(target.InverseDependencies) == 0 {
			removed = append(removed, g.remove(dep.Path)...)
		}
	}

	// Drop dangling forward entries in any importer that survived. This
	// only happens for modules removed explicitly, not via pruning, where
	// the import statements are rewritten first.
	for importer := range m.InverseDependencies {
		src, ok := g.modules[importer]
		if !ok {
			continue
		}
		for spec, dep := range src.Dependencies {
			if dep.Path == path {
				delete(src.Dependencies, spec)
			}
		}
	}

	return removed
}

// hasEdgeTo reports whether any remaining specifier of src resolves to path.
func (g *Graph) hasEdgeTo(src *Module, path string) bool {
	for _, dep := range src.Dependencies {
		if dep.Path == path {
			return true
		}
	}
	return false
}

func (g *Graph) syncMirrorEdge(from, to string) {
	fid, tid := g.ids[from], g.ids[to]
	if g.g.HasEdgeFromTo(fid, tid) {
		g.g.RemoveEdge(fid, tid)
	}
}

// Directed exposes the gonum view of the graph for algorithm packages.
func (g *Graph) Directed() gograph.Directed { return g.g }

// PathFor translates a gonum node id back to a module path.
func (g *Graph) PathFor(id int64) string { return g.paths[id] }
