package regen

import (
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/ritzau/treeshake/pkg/graph"
	"github.com/ritzau/treeshake/pkg/js"
	"github.com/ritzau/treeshake/pkg/usage"
)

// edit replaces a byte span with new text.
type edit struct {
	span js.Span
	text string
}

// lower rewrites every top-level import/export statement of the unit into
// the runtime-call form the module envelope expects.
func lower(m *graph.Module, root *sitter.Node, src []byte, defaultHelper, allHelper string) (string, error) {
	var edits []edit
	for _, stmt := range js.TopLevelStatements(root) {
		switch stmt.Type() {
		case js.NodeImportStatement:
			rec, err := usage.Record(m, stmt, src)
			if err != nil {
				return "", err
			}
			edits = append(edits, edit{
				span: js.Span{Start: stmt.StartByte(), End: stmt.EndByte()},
				text: lowerImport(rec, defaultHelper, allHelper),
			})
		case js.NodeExportStatement:
			text, err := lowerExport(stmt, src, allHelper)
			if err != nil {
				return "", err
			}
			edits = append(edits, edit{
				span: js.Span{Start: stmt.StartByte(), End: stmt.EndByte()},
				text: text,
			})
		}
	}
	if len(edits) == 0 {
		return string(src), nil
	}
	return applyEdits(src, edits), nil
}

// lowerImport turns an import declaration into require-form statements,
// one line per binding group.
func lowerImport(rec *graph.ImportRecord, defaultHelper, allHelper string) string {
	if len(rec.Specifiers) == 0 {
		return fmt.Sprintf("require(%q);", rec.Source)
	}

	var named []string
	var lines []string
	for _, spec := range rec.Specifiers {
		switch spec.Kind {
		case graph.SpecifierDefault:
			lines = append(lines, fmt.Sprintf("const %s = %s(%q);", spec.Local, defaultHelper, rec.Source))
		case graph.SpecifierNamespace:
			lines = append(lines, fmt.Sprintf("const %s = %s(%q);", spec.Local, allHelper, rec.Source))
		case graph.SpecifierNamed:
			if spec.Imported != spec.Local {
				named = append(named, spec.Imported+": "+spec.Local)
			} else {
				named = append(named, spec.Local)
			}
		}
	}
	if len(named) > 0 {
		lines = append(lines, fmt.Sprintf("const { %s } = require(%q);", strings.Join(named, ", "), rec.Source))
	}
	return strings.Join(lines, "\n")
}

// lowerExport turns an export statement into module.exports assignments.
// Re-exports read their source through require so the edge survives as a
// runtime dependency.
func lowerExport(stmt *sitter.Node, src []byte, allHelper string) (string, error) {
	strNode := js.ChildOfType(stmt, js.NodeString)
	clause := js.ChildOfType(stmt, js.NodeExportClause)

	if strNode != nil {
		source := js.StringContent(strNode, src)
		if clause != nil {
			var lines []string
			for i := 0; i < int(clause.ChildCount()); i++ {
				spec := clause.Child(i)
				if spec.Type() != js.NodeExportSpecifier {
					continue
				}
				local, exported := js.SpecifierNames(spec, src)
				lines = append(lines, fmt.Sprintf("module.exports.%s = require(%q).%s;", exported, source, local))
			}
			return strings.Join(lines, "\n"), nil
		}
		if ns := js.ChildOfType(stmt, js.NodeNamespaceExport); ns != nil {
			name := namespaceExportName(ns, src)
			return fmt.Sprintf("module.exports.%s = %s(%q);", name, allHelper, source), nil
		}
		// export * from '...'
		return fmt.Sprintf("Object.assign(module.exports, require(%q));", source), nil
	}

	if js.ChildOfType(stmt, js.NodeDefault) != nil {
		return lowerDefaultExport(stmt, src)
	}

	if decl := stmt.ChildByFieldName("declaration"); decl != nil {
		lines := []string{js.Text(decl, src)}
		if !strings.HasSuffix(lines[0], ";") && !strings.HasSuffix(lines[0], "}") {
			lines[0] += ";"
		}
		for _, name := range js.ExportedNames(stmt, src) {
			lines = append(lines, fmt.Sprintf("module.exports.%s = %s;", name, name))
		}
		return strings.Join(lines, "\n"), nil
	}

	if clause != nil {
		var lines []string
		for i := 0; i < int(clause.ChildCount()); i++ {
			spec := clause.Child(i)
			if spec.Type() != js.NodeExportSpecifier {
				continue
			}
			local, exported := js.SpecifierNames(spec, src)
			lines = append(lines, fmt.Sprintf("module.exports.%s = %s;", exported, local))
		}
		return strings.Join(lines, "\n"), nil
	}

	return "", fmt.Errorf("unrecognized export statement form: %s", js.Text(stmt, src))
}

// lowerDefaultExport handles `export default ...`. Named declarations keep
// their binding so later statements in the module can still reference it.
func lowerDefaultExport(stmt *sitter.Node, src []byte) (string, error) {
	if decl := stmt.ChildByFieldName("declaration"); decl != nil {
		if name := decl.ChildByFieldName("name"); name != nil {
			return fmt.Sprintf("%s\nmodule.exports.default = %s;",
				js.Text(decl, src), js.Text(name, src)), nil
		}
		return fmt.Sprintf("module.exports.default = %s;", js.Text(decl, src)), nil
	}
	if value := stmt.ChildByFieldName("value"); value != nil {
		return fmt.Sprintf("module.exports.default = %s;", js.Text(value, src)), nil
	}
	return "", fmt.Errorf("default export without a value: %s", js.Text(stmt, src))
}

func namespaceExportName(ns *sitter.Node, src []byte) string {
	for i := 0; i < int(ns.ChildCount()); i++ {
		child := ns.Child(i)
		if child.Type() == js.NodeIdentifier || child.Type() == js.NodeModuleExportName {
			return js.Text(child, src)
		}
	}
	return ""
}

// applyEdits rewrites src with all edits applied, sorted by position.
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
