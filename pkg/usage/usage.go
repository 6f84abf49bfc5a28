// Package usage derives per-output-unit import/export facts from module
// syntax trees. It only reads the graph; edges are never mutated here.
package usage

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/ritzau/treeshake/pkg/graph"
	"github.com/ritzau/treeshake/pkg/js"
	"github.com/ritzau/treeshake/pkg/logging"
)

// ConsistencyError reports an import specifier with no matching resolved
// dependency edge. The graph is assumed resolver-consistent, so this is an
// unexpected-invariant violation and aborts the serialization.
type ConsistencyError struct {
	Module    string
	Specifier string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("graph inconsistency: module %q has no resolved dependency for import %q", e.Module, e.Specifier)
}

// Collect recomputes the usage cache of every output unit in the graph.
// The cache is a pure function of the current tree; callers re-run Collect
// at the start of each pruning pass rather than patching it incrementally.
func Collect(ctx context.Context, g *graph.Graph) error {
	for _, path := range g.Paths() {
		m, _ := g.Module(path)
		for _, unit := range m.Outputs {
			u, err := collectUnit(ctx, m, unit)
			if err != nil {
				return err
			}
			unit.Usage = u
		}
	}
	return nil
}

func collectUnit(ctx context.Context, m *graph.Module, unit *graph.OutputUnit) (*graph.Usage, error) {
	tree, err := unit.Tree(ctx)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", m.Path, err)
	}
	src := []byte(unit.Code)
	root := tree.RootNode()

	u := &graph.Usage{
		ExportOpacity: DetectExportOpacity(root, src),
	}

	for _, stmt := range js.TopLevelStatements(root) {
		switch stmt.Type() {
		case js.NodeImportStatement:
			rec, err := Record(m, stmt, src)
			if err != nil {
				return nil, err
			}
			u.Imports = append(u.Imports, *rec)

		case js.NodeExportStatement:
			exports, rec, err := exportFacts(m, stmt, src)
			if err != nil {
				return nil, err
			}
			u.Exports = append(u.Exports, exports...)
			if rec != nil {
				u.Imports = append(u.Imports, *rec)
			}
		}
	}

	// require() and dynamic import() can appear anywhere in the body, not
	// just at the top level.
	cjs, err := collectOpaqueImports(m, root, src)
	if err != nil {
		return nil, err
	}
	u.Imports = append(u.Imports, cjs...)

	if u.ExportOpacity.Opaque() {
		logging.Debug("module has opaque exports", "module", m.Path, "opacity", u.ExportOpacity.String())
	}
	return u, nil
}

// Record builds the import record for a single static import statement.
// The pruning engine uses it directly when rewriting declarations.
func Record(m *graph.Module, stmt *sitter.Node, src []byte) (*graph.ImportRecord, error) {
	strNode := js.ChildOfType(stmt, js.NodeString)
	if strNode == nil {
		return nil, fmt.Errorf("module %q: import statement without source", m.Path)
	}
	source := js.StringContent(strNode, src)
	dep, ok := m.Dependencies[source]
	if !ok {
		return nil, &ConsistencyError{Module: m.Path, Specifier: source}
	}

	rec := &graph.ImportRecord{Source: source, Key: dep.Path}
	clause := js.ChildOfType(stmt, js.NodeImportClause)
	if clause == nil {
		// Bare side-effect import: no bindings, never pruned.
		return rec, nil
	}

	for i := 0; i < int(clause.ChildCount()); i++ {
		child := clause.Child(i)
		switch child.Type() {
		case js.NodeIdentifier:
			rec.Specifiers = append(rec.Specifiers, graph.Specifier{
				Kind:  graph.SpecifierDefault,
				Local: js.Text(child, src),
			})
		case js.NodeNamespaceImport:
			if ident := js.ChildOfType(child, js.NodeIdentifier); ident != nil {
				rec.Specifiers = append(rec.Specifiers, graph.Specifier{
					Kind:  graph.SpecifierNamespace,
					Local: js.Text(ident, src),
				})
			}
		case js.NodeNamedImports:
			for j := 0; j < int(child.ChildCount()); j++ {
				spec := child.Child(j)
				if spec.Type() != js.NodeImportSpecifier {
					continue
				}
				imported, local := js.SpecifierNames(spec, src)
				if local != "" {
					rec.Specifiers = append(rec.Specifiers, graph.Specifier{
						Kind:     graph.SpecifierNamed,
						Imported: imported,
						Local:    local,
					})
				}
			}
		}
	}
	return rec, nil
}

// exportFacts records the export names declared by an export statement. A
// re-export (`export ... from './m'`) additionally yields an opaque import
// record: the binding is consumed by downstream importers we cannot see from
// here, so the edge stays fully live.
func exportFacts(m *graph.Module, stmt *sitter.Node, src []byte) ([]string, *graph.ImportRecord, error) {
	names := js.ExportedNames(stmt, src)

	var rec *graph.ImportRecord
	if strNode := js.ChildOfType(stmt, js.NodeString); strNode != nil {
		source := js.StringContent(strNode, src)
		dep, ok := m.Dependencies[source]
		if !ok {
			return nil, nil, &ConsistencyError{Module: m.Path, Specifier: source}
		}
		rec = &graph.ImportRecord{Source: source, Key: dep.Path, CJS: true}
	}

	return names, rec, nil
}

// collectOpaqueImports records require() calls and dynamic import() calls.
// Both are legacy/opaque edges: their specifiers cannot be enumerated, so
// tree-shaking is disabled for the edge.
func collectOpaqueImports(m *graph.Module, root *sitter.Node, src []byte) ([]graph.ImportRecord, error) {
	var recs []graph.ImportRecord
	var consistency error

	js.Walk(root, func(node *sitter.Node) bool {
		if consistency != nil {
			return false
		}
		if node.Type() != js.NodeCallExpression {
			return true
		}
		source := js.RequirePath(node, src)
		if source == "" {
			source = js.ImportPath(node, src)
		}
		if source == "" {
			return true
		}
		dep, ok := m.Dependencies[source]
		if !ok {
			consistency = &ConsistencyError{Module: m.Path, Specifier: source}
			return false
		}
		recs = append(recs, graph.ImportRecord{Source: source, Key: dep.Path, CJS: true})
		return true
	})

	if consistency != nil {
		return nil, consistency
	}
	return recs, nil
}
