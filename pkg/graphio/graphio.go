// Package graphio loads and saves resolver-produced graph snapshots. The
// binary operates on upstream resolver output; it never resolves modules
// itself.
package graphio

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ritzau/treeshake/pkg/graph"
	"github.com/ritzau/treeshake/pkg/logging"
)

// Snapshot is the on-disk form of one resolved bundle request: the entry
// point, the prepended modules, and every module of the graph in
// id-assignment order.
type Snapshot struct {
	EntryPoint string          `json:"entryPoint"`
	PreModules []*graph.Module `json:"preModules,omitempty"`
	Modules    []*graph.Module `json:"modules"`
}

// Load reads a snapshot file and builds the graph. Modules are added in
// file order, so ids are stable across reloads of the same snapshot.
func Load(path string) (string, []*graph.Module, *graph.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, nil, fmt.Errorf("reading graph snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return "", nil, nil, fmt.Errorf("decoding graph snapshot %s: %w", path, err)
	}

	g := graph.New()
	for _, m := range snap.Modules {
		g.Add(m)
	}
	// Re-register edges so the mirror index agrees with the edge maps.
	for _, m := range snap.Modules {
		for spec, dep := range m.Dependencies {
			g.AddEdge(m.Path, spec, dep.Path)
		}
	}

	if err := Validate(snap.EntryPoint, g); err != nil {
		return "", nil, nil, err
	}

	logging.Info("loaded graph snapshot",
		"path", path,
		"modules", g.Len(),
		"preModules", len(snap.PreModules),
	)
	return snap.EntryPoint, snap.PreModules, g, nil
}

// Save writes a snapshot of the current graph, modules in id order.
// Used by the fixture capture mode.
func Save(path, entryPoint string, preModules []*graph.Module, g *graph.Graph) error {
	snap := Snapshot{
		EntryPoint: entryPoint,
		PreModules: preModules,
		Modules:    g.Modules(g.ID),
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding graph snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing graph snapshot: %w", err)
	}
	return nil
}

// Validate checks resolver consistency: the entry point is present, every
// dependency path resolves to a module in the graph, and the inverse edge
// maps mirror the forward maps exactly.
func Validate(entryPoint string, g *graph.Graph) error {
	if entryPoint != "" {
		if _, ok := g.Module(entryPoint); !ok {
			return fmt.Errorf("graph snapshot: entry point %s is not in the graph", entryPoint)
		}
	}

	for _, path := range g.Paths() {
		m, _ := g.Module(path)
		for spec, dep := range m.Dependencies {
			target, ok := g.Module(dep.Path)
			if !ok {
				return fmt.Errorf("graph snapshot: %s depends on %s (%q) which is not in the graph",
					path, dep.Path, spec)
			}
			if !target.InverseDependencies[path] {
				return fmt.Errorf("graph snapshot: edge %s -> %s has no inverse entry", path, dep.Path)
			}
		}
		for importer := range m.InverseDependencies {
			src, ok := g.Module(importer)
			if !ok {
				return fmt.Errorf("graph snapshot: %s lists importer %s which is not in the graph",
					path, importer)
			}
			found := false
			for _, dep := range src.Dependencies {
				if dep.Path == path {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("graph snapshot: inverse edge %s -> %s has no forward entry",
					importer, path)
			}
		}
	}
	return nil
}
