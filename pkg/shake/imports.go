package shake

import (
	"context"
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/ritzau/treeshake/pkg/graph"
	"github.com/ritzau/treeshake/pkg/js"
	"github.com/ritzau/treeshake/pkg/logging"
	"github.com/ritzau/treeshake/pkg/usage"
)

// edit replaces a byte span with new text; empty text deletes the span.
type edit struct {
	span js.Span
	text string
}

// pruneImports removes import bindings of m that its own body never
// references. When every binding of a declaration is gone, the declaration
// is deleted. A dependency edge is shared by every output unit of m, so it
// is detached only when the last reference to its source across all units
// is removed; modules orphaned by the detachment are collected immediately.
func pruneImports(ctx context.Context, g *graph.Graph, m *graph.Module, report *Report) error {
	sourceRefs, err := countSourceRefs(ctx, m)
	if err != nil {
		return err
	}

	for _, unit := range m.Outputs {
		tree, err := unit.Tree(ctx)
		if err != nil {
			return fmt.Errorf("pruning imports of %s: %w", m.Path, err)
		}
		src := []byte(unit.Code)
		root := tree.RootNode()

		used := js.ReferencedIdentifiers(root, src)

		type declaration struct {
			stmt *sitter.Node
			rec  *graph.ImportRecord
			kept []graph.Specifier
		}
		var decls []declaration

		for _, stmt := range js.TopLevelStatements(root) {
			if stmt.Type() != js.NodeImportStatement {
				continue
			}
			rec, err := usage.Record(m, stmt, src)
			if err != nil {
				return err
			}
			if len(rec.Specifiers) == 0 {
				// Bare side-effect import: nothing to prune.
				continue
			}
			kept := rec.Specifiers[:0:0]
			for _, spec := range rec.Specifiers {
				if used[spec.Local] {
					kept = append(kept, spec)
				}
			}
			decls = append(decls, declaration{stmt: stmt, rec: rec, kept: kept})
		}

		var edits []edit
		for _, d := range decls {
			removed := len(d.rec.Specifiers) - len(d.kept)
			if removed == 0 {
				continue
			}
			report.ImportsRemoved += removed

			if len(d.kept) > 0 {
				edits = append(edits, edit{
					span: js.Span{Start: d.stmt.StartByte(), End: d.stmt.EndByte()},
					text: renderImport(d.kept, d.rec.Source),
				})
				continue
			}

			// Whole declaration is dead.
			edits = append(edits, edit{span: js.NodeSpan(d.stmt, src)})
			sourceRefs[d.rec.Source]--
			if sourceRefs[d.rec.Source] > 0 {
				continue
			}
			report.EdgesDetached++
			orphans := g.DetachEdge(m.Path, d.rec.Source)
			report.OrphansCollected += len(orphans)
			report.OrphanPaths = append(report.OrphanPaths, orphans...)
			logging.Debug("detached edge",
				"module", m.Path,
				"dependency", d.rec.Key,
				"orphans", len(orphans),
			)
		}
		if len(edits) == 0 {
			continue
		}
		unit.SetCode(applyEdits(src, edits))
	}
	return nil
}

// countSourceRefs counts, per import source, the references across all of
// m's output units that keep the edge alive: static import statements,
// re-export sources, and require()/dynamic import() calls. The opaque
// calls count regardless of binding usage, so a dropped static import
// never detaches an edge an opaque call still needs.
func countSourceRefs(ctx context.Context, m *graph.Module) (map[string]int, error) {
	refs := make(map[string]int)
	for _, unit := range m.Outputs {
		tree, err := unit.Tree(ctx)
		if err != nil {
			return nil, fmt.Errorf("scanning imports of %s: %w", m.Path, err)
		}
		src := []byte(unit.Code)
		root := tree.RootNode()

		for _, stmt := range js.TopLevelStatements(root) {
			switch stmt.Type() {
			case js.NodeImportStatement, js.NodeExportStatement:
				if strNode := js.ChildOfType(stmt, js.NodeString); strNode != nil {
					refs[js.StringContent(strNode, src)]++
				}
			}
		}

		js.Walk(root, func(node *sitter.Node) bool {
			if node.Type() != js.NodeCallExpression {
				return true
			}
			if s := js.RequirePath(node, src); s != "" {
				refs[s]++
			} else if s := js.ImportPath(node, src); s != "" {
				refs[s]++
			}
			return true
		})
	}
	return refs, nil
}

// renderImport regenerates an import declaration for the surviving
// specifiers.
func renderImport(specs []graph.Specifier, source string) string {
	var def, ns string
	var named []string
	for _, s := range specs {
		switch s.Kind {
		case graph.SpecifierDefault:
			def = s.Local
		case graph.SpecifierNamespace:
			ns = "* as " + s.Local
		case graph.SpecifierNamed:
			if s.Imported != s.Local {
				named = append(named, s.Imported+" as "+s.Local)
			} else {
				named = append(named, s.Local)
			}
		}
	}

	parts := make([]string, 0, 2)
	if def != "" {
		parts = append(parts, def)
	}
	if ns != "" {
		parts = append(parts, ns)
	}
	if len(named) > 0 {
		parts = append(parts, "{ "+strings.Join(named, ", ")+" }")
	}
	return fmt.Sprintf("import %s from '%s';", strings.Join(parts, ", "), source)
}

// applyEdits rewrites src with all edits applied. Edits must not overlap.
func applyEdits(src []byte, edits []edit) string {
	sorted := make([]edit, len(edits))
	copy(sorted, edits)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].span.Start < sorted[j].span.Start })

	var b strings.Builder
	var pos uint32
	for _, e := range sorted {
		if e.span.Start < pos {
			continue
		}
		b.Write(src[pos:e.span.Start])
		b.WriteString(e.text)
		pos = e.span.End
	}
	if pos < uint32(len(src)) {
		b.Write(src[pos:])
	}
	return b.String()
}
