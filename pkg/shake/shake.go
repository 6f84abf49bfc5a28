// Package shake implements the liveness and pruning engine: cross-module
// export liveness, unused-export and unused-import removal, graph edge
// detachment, and orphan module collection, repeated to a fixpoint.
package shake

import (
	"context"
	"fmt"

	"github.com/ritzau/treeshake/pkg/graph"
	"github.com/ritzau/treeshake/pkg/logging"
	"github.com/ritzau/treeshake/pkg/usage"
)

// DefaultMaxPasses bounds the fixpoint loop. Each full pass either removes
// at least one import binding or terminates the loop, so the total binding
// count is a strictly decreasing measure; the ceiling is hardening against
// that reasoning being violated by a future change, not an expected limit.
const DefaultMaxPasses = 10

// Options configures a pruning run.
type Options struct {
	// AnnotateOnly leaves dead export declarations in place, prefixed with
	// a marker comment. Intended for inspection; never changes behavior.
	AnnotateOnly bool

	// MaxPasses is the fixpoint iteration ceiling; 0 means DefaultMaxPasses.
	MaxPasses int

	// Protected marks modules that are never export-pruned regardless of
	// inverse dependencies: the entry point and pipeline-prepended modules.
	Protected map[string]bool
}

// Report summarizes what a pruning run did.
type Report struct {
	Passes           int
	ExportsRemoved   int
	ExportsAnnotated int
	ImportsRemoved   int
	EdgesDetached    int
	OrphansCollected int
	OrphanPaths      []string
}

// Run prunes the graph to a fixpoint. The graph is mutated in place; Run
// must not be invoked concurrently for the same graph.
func Run(ctx context.Context, g *graph.Graph, opts Options) (*Report, error) {
	maxPasses := opts.MaxPasses
	if maxPasses <= 0 {
		maxPasses = DefaultMaxPasses
	}

	report := &Report{}
	for {
		if report.Passes >= maxPasses {
			return report, fmt.Errorf("pruning did not reach a fixpoint after %d passes", maxPasses)
		}
		report.Passes++

		// Usage is a pure function of the current trees; recompute wholesale
		// at the start of every pass rather than patching incrementally.
		if err := usage.Collect(ctx, g); err != nil {
			return report, err
		}

		live := liveExports(g)

		for _, path := range g.Paths() {
			m, ok := g.Module(path)
			if !ok {
				continue
			}
			if err := pruneExports(ctx, g, m, live[path], opts, report); err != nil {
				return report, err
			}
		}

		removedBefore := report.ImportsRemoved
		for _, path := range g.Paths() {
			m, ok := g.Module(path)
			if !ok {
				// Collected as an orphan earlier in this loop.
				continue
			}
			if err := pruneImports(ctx, g, m, report); err != nil {
				return report, err
			}
		}

		if report.ImportsRemoved == removedBefore {
			break
		}
		// Removing an import binding can make exports further down the chain
		// newly dead; rerun the whole pass.
		logging.Debug("imports removed, rerunning pruning pass",
			"pass", report.Passes,
			"removed", report.ImportsRemoved-removedBefore,
		)
	}

	logging.Info("pruning reached fixpoint",
		"passes", report.Passes,
		"exportsRemoved", report.ExportsRemoved,
		"importsRemoved", report.ImportsRemoved,
		"edgesDetached", report.EdgesDetached,
		"orphans", report.OrphansCollected,
	)
	return report, nil
}

// liveSet captures which exports of one module are referenced by importers.
type liveSet struct {
	all   bool
	names map[string]bool
}

func (l *liveSet) markAll() { l.all = true }

func (l *liveSet) mark(name string) {
	if l.names == nil {
		l.names = make(map[string]bool)
	}
	l.names[name] = true
}

// isLive reports whether any of the given export names is referenced.
func (l *liveSet) isLive(names []string) bool {
	if l == nil {
		return false
	}
	if l.all {
		return true
	}
	for _, n := range names {
		if l.names[n] {
			return true
		}
	}
	return false
}

// liveExports indexes, per target module, the exports kept alive by the
// import records of every module still in the graph. Import records do not
// change during the export phase of a pass, so one index per pass suffices.
func liveExports(g *graph.Graph) map[string]*liveSet {
	index := make(map[string]*liveSet)
	get := func(path string) *liveSet {
		ls, ok := index[path]
		if !ok {
			ls = &liveSet{}
			index[path] = ls
		}
		return ls
	}

	for _, path := range g.Paths() {
		m, _ := g.Module(path)
		for _, unit := range m.Outputs {
			if unit.Usage == nil {
				continue
			}
			for _, rec := range unit.Usage.Imports {
				ls := get(rec.Key)
				if rec.CJS {
					// Opaque edge: every export of the target is live.
					ls.markAll()
					continue
				}
				for _, spec := range rec.Specifiers {
					switch spec.Kind {
					case graph.SpecifierDefault:
						ls.mark("default")
					case graph.SpecifierNamespace:
						// A namespace binding can reach any property.
						ls.markAll()
					case graph.SpecifierNamed:
						ls.mark(spec.Imported)
					}
				}
			}
		}
	}
	return index
}
