package js

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// Text returns the source text covered by a node.
func Text(node *sitter.Node, src []byte) string {
	if node == nil {
		return ""
	}
	return string(src[node.StartByte():node.EndByte()])
}

// StringContent returns the content of a string literal node without quotes.
func StringContent(node *sitter.Node, src []byte) string {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == NodeStringFragment {
			return Text(child, src)
		}
	}
	// Fallback: strip quotes manually (empty string literals have no fragment)
	text := Text(node, src)
	if len(text) >= 2 {
		return text[1 : len(text)-1]
	}
	return text
}

// Walk visits node and its descendants in preorder. The visitor returns
// false to skip the subtree below the current node.
func Walk(node *sitter.Node, visit func(*sitter.Node) bool) {
	if node == nil {
		return
	}
	if !visit(node) {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		Walk(node.Child(i), visit)
	}
}

// ChildOfType returns the first direct child with the given node type.
func ChildOfType(node *sitter.Node, nodeType string) *sitter.Node {
	if node == nil {
		return nil
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == nodeType {
			return child
		}
	}
	return nil
}

// TopLevelStatements returns the direct children of the program node.
func TopLevelStatements(root *sitter.Node) []*sitter.Node {
	if root == nil {
		return nil
	}
	stmts := make([]*sitter.Node, 0, root.ChildCount())
	for i := 0; i < int(root.ChildCount()); i++ {
		stmts = append(stmts, root.Child(i))
	}
	return stmts
}

// RequirePath returns the module path if callNode is a require('...') call,
// else "". Dynamic require(expr) yields "".
func RequirePath(callNode *sitter.Node, src []byte) string {
	if callNode == nil || callNode.Type() != NodeCallExpression {
		return ""
	}
	fn := callNode.ChildByFieldName("function")
	if fn == nil || fn.Type() != NodeIdentifier || Text(fn, src) != "require" {
		return ""
	}
	args := callNode.ChildByFieldName("arguments")
	if args == nil {
		return ""
	}
	for i := 0; i < int(args.ChildCount()); i++ {
		arg := args.Child(i)
		if arg.Type() == NodeString {
			return StringContent(arg, src)
		}
	}
	return ""
}

// ImportPath returns the module path if callNode is a dynamic import('...')
// call with a string literal argument, else "".
func ImportPath(callNode *sitter.Node, src []byte) string {
	if callNode == nil || callNode.Type() != NodeCallExpression {
		return ""
	}
	fn := callNode.ChildByFieldName("function")
	if fn == nil || fn.Type() != NodeImport {
		return ""
	}
	args := callNode.ChildByFieldName("arguments")
	if args == nil {
		return ""
	}
	for i := 0; i < int(args.ChildCount()); i++ {
		arg := args.Child(i)
		if arg.Type() == NodeString {
			return StringContent(arg, src)
		}
	}
	return ""
}

// ReferencedIdentifiers collects the set of identifier names that appear as
// true read/use sites: identifiers inside import specifiers and identifiers
// in declaration-name position are excluded.
func ReferencedIdentifiers(root *sitter.Node, src []byte) map[string]bool {
	used := make(map[string]bool)
	Walk(root, func(node *sitter.Node) bool {
		if node.Type() == NodeImportStatement {
			// Nothing inside an import statement is a use site
			return false
		}
		if node.Type() == NodeIdentifier && !isDeclarationName(node) {
			used[Text(node, src)] = true
		}
		// property_identifier (obj.prop) and shorthand keys are distinct node
		// types in the grammar, so member accesses never leak in here.
		return true
	})
	return used
}

// isDeclarationName reports whether an identifier node is the name being
// declared by its parent (function/class/variable declarations, parameters).
func isDeclarationName(node *sitter.Node) bool {
	parent := node.Parent()
	if parent == nil {
		return false
	}
	switch parent.Type() {
	case NodeFunctionDeclaration, NodeGeneratorFunction, NodeClassDeclaration:
		name := parent.ChildByFieldName("name")
		return name != nil && name.Equal(node)
	case NodeVariableDeclarator:
		name := parent.ChildByFieldName("name")
		return name != nil && name.Equal(node)
	case NodeFormalParameters:
		return true
	}
	return false
}

// SpecifierNames returns (imported, local) for an import or export
// specifier: `{ a }` yields (a, a), `{ a as b }` yields (a, b).
func SpecifierNames(spec *sitter.Node, src []byte) (string, string) {
	var first, last string
	for i := 0; i < int(spec.ChildCount()); i++ {
		child := spec.Child(i)
		if child.Type() == NodeIdentifier {
			if first == "" {
				first = Text(child, src)
			}
			last = Text(child, src)
		}
	}
	return first, last
}

// ExportedNames returns the export names an export statement declares; the
// default export is reported as "default".
func ExportedNames(stmt *sitter.Node, src []byte) []string {
	var names []string

	if ChildOfType(stmt, NodeDefault) != nil {
		names = append(names, "default")
	}

	for i := 0; i < int(stmt.ChildCount()); i++ {
		child := stmt.Child(i)
		switch child.Type() {
		case NodeFunctionDeclaration, NodeGeneratorFunction, NodeClassDeclaration:
			if name := child.ChildByFieldName("name"); name != nil {
				names = append(names, Text(name, src))
			}
		case NodeLexicalDeclaration, NodeVariableDeclaration:
			for j := 0; j < int(child.ChildCount()); j++ {
				decl := child.Child(j)
				if decl.Type() != NodeVariableDeclarator {
					continue
				}
				if name := decl.ChildByFieldName("name"); name != nil && name.Type() == NodeIdentifier {
					names = append(names, Text(name, src))
				}
			}
		case NodeExportClause:
			for j := 0; j < int(child.ChildCount()); j++ {
				spec := child.Child(j)
				if spec.Type() != NodeExportSpecifier {
					continue
				}
				// `export { a as b }` exports b.
				_, exported := SpecifierNames(spec, src)
				if exported != "" {
					names = append(names, exported)
				}
			}
		}
	}
	return names
}
