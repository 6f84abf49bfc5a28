// Package cycles detects require cycles in the module graph. Cycles are
// reported as warnings: pruning is correct on cyclic graphs, but orphan
// collection never fires for a dead cycle, so its members survive shaking.
package cycles

import (
	"sort"

	"github.com/ritzau/treeshake/pkg/graph"
)

// ModuleCycle is one circular import chain.
type ModuleCycle struct {
	Modules []string
}

// Find returns every require cycle in the graph, each cycle's members and
// the cycle list itself in lexical order.
func Find(g *graph.Graph) []ModuleCycle {
	sccs := newTarjan(g.Directed()).findSCCs()

	cycles := make([]ModuleCycle, 0, len(sccs))
	for _, scc := range sccs {
		modules := make([]string, 0, len(scc))
		for _, id := range scc {
			if path := g.PathFor(id); path != "" {
				modules = append(modules, path)
			}
		}
		if len(modules) < 2 {
			continue
		}
		sort.Strings(modules)
		cycles = append(cycles, ModuleCycle{Modules: modules})
	}

	sort.Slice(cycles, func(i, j int) bool {
		return cycles[i].Modules[0] < cycles[j].Modules[0]
	})
	return cycles
}
