package shake

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ritzau/treeshake/pkg/graph"
	"github.com/ritzau/treeshake/pkg/js"
	"github.com/ritzau/treeshake/pkg/logging"
	"github.com/ritzau/treeshake/pkg/usage"
)

// pruneExports removes (or annotates) every export declaration of m that no
// surviving importer references.
func pruneExports(ctx context.Context, g *graph.Graph, m *graph.Module, live *liveSet, opts Options, report *Report) error {
	// True entry points and pipeline-prepended modules have no importers to
	// enumerate; their exports are the bundle's public surface.
	if len(m.InverseDependencies) == 0 || opts.Protected[m.Path] {
		return nil
	}

	for _, unit := range m.Outputs {
		if unit.Usage != nil && unit.Usage.ExportOpacity.Opaque() {
			// CommonJS-shaped exports: consumers cannot be enumerated, keep
			// every declaration.
			continue
		}

		tree, err := unit.Tree(ctx)
		if err != nil {
			return fmt.Errorf("pruning exports of %s: %w", m.Path, err)
		}
		src := []byte(unit.Code)
		root := tree.RootNode()

		// The usage cache may predate a mutation of this unit. If the
		// current tree shows CommonJS export usage the cache missed, skip
		// every removal for the module rather than pruning a subset.
		if op := usage.DetectExportOpacity(root, src); op.Opaque() {
			if unit.Usage == nil || !unit.Usage.ExportOpacity.Opaque() {
				logging.Warn("late CommonJS export detection, skipping export pruning",
					"module", m.Path, "opacity", op.String())
			}
			continue
		}

		var dead []deadExport
		for _, stmt := range js.TopLevelStatements(root) {
			if stmt.Type() != js.NodeExportStatement {
				continue
			}
			if js.ChildOfType(stmt, js.NodeString) != nil {
				// Re-export: the binding belongs to downstream importers of
				// this module; the edge is opaque and the statement stays.
				continue
			}
			names := js.ExportedNames(stmt, src)
			if len(names) == 0 || live.isLive(names) {
				continue
			}
			dead = append(dead, deadExport{span: js.NodeSpan(stmt, src), names: names})
		}
		if len(dead) == 0 {
			continue
		}

		var deadNames []string
		spans := make([]js.Span, 0, len(dead))
		for _, d := range dead {
			spans = append(spans, d.span)
			deadNames = append(deadNames, d.names...)
		}

		if opts.AnnotateOnly {
			unit.SetCode(annotate(src, dead))
			report.ExportsAnnotated += len(deadNames)
		} else {
			unit.SetCode(string(js.Splice(src, spans)))
			report.ExportsRemoved += len(deadNames)
		}
		logging.Debug("pruned exports",
			"module", m.Path,
			"exports", strings.Join(deadNames, ","),
			"annotate", opts.AnnotateOnly,
		)
	}
	return nil
}

// deadExport is one unreferenced export statement and the names it declares.
type deadExport struct {
	span  js.Span
	names []string
}

// annotate prefixes each dead export declaration with a marker comment
// instead of removing it. Inserting comments never changes behavior.
func annotate(src []byte, dead []deadExport) string {
	sorted := make([]deadExport, len(dead))
	copy(sorted, dead)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].span.Start < sorted[j].span.Start })

	var b strings.Builder
	var pos uint32
	for _, d := range sorted {
		b.Write(src[pos:d.span.Start])
		fmt.Fprintf(&b, "/* unused export (%s) */\n", strings.Join(d.names, ", "))
		pos = d.span.Start
	}
	b.Write(src[pos:])
	return b.String()
}
