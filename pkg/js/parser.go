package js

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

// MaxSourceSize is the largest module source we will parse (10MB).
var MaxSourceSize = 10 * 1024 * 1024

var (
	// ErrSourceTooLarge is returned for module sources above MaxSourceSize.
	ErrSourceTooLarge = errors.New("js: source exceeds maximum size")
	// ErrInvalidSource is returned for sources that are not valid UTF-8.
	ErrInvalidSource = errors.New("js: source is not valid UTF-8")
)

// Tree-sitter node type names for the JavaScript grammar.
const (
	NodeProgram             = "program"
	NodeImportStatement     = "import_statement"
	NodeImportClause        = "import_clause"
	NodeNamespaceImport     = "namespace_import"
	NodeNamedImports        = "named_imports"
	NodeImportSpecifier     = "import_specifier"
	NodeExportStatement     = "export_statement"
	NodeExportClause        = "export_clause"
	NodeExportSpecifier     = "export_specifier"
	NodeNamespaceExport     = "namespace_export"
	NodeModuleExportName    = "module_export_name"
	NodeIdentifier          = "identifier"
	NodePropertyIdentifier  = "property_identifier"
	NodeString              = "string"
	NodeStringFragment      = "string_fragment"
	NodeComment             = "comment"
	NodeCallExpression      = "call_expression"
	NodeArguments           = "arguments"
	NodeMemberExpression    = "member_expression"
	NodeAssignment          = "assignment_expression"
	NodeExpressionStatement = "expression_statement"
	NodeLexicalDeclaration  = "lexical_declaration"
	NodeVariableDeclaration = "variable_declaration"
	NodeVariableDeclarator  = "variable_declarator"
	NodeFunctionDeclaration = "function_declaration"
	NodeGeneratorFunction   = "generator_function_declaration"
	NodeClassDeclaration    = "class_declaration"
	NodeStatementBlock      = "statement_block"
	NodeFormalParameters    = "formal_parameters"
	NodeObjectPattern       = "object_pattern"
	NodePairPattern         = "pair_pattern"
	NodeShorthandPattern    = "shorthand_property_identifier_pattern"
	NodeDefault             = "default"
	NodeImport              = "import"
)

// Parse parses JavaScript source into a tree-sitter tree.
// The caller owns the returned tree and must Close it.
func Parse(ctx context.Context, src []byte) (*sitter.Tree, error) {
	if len(src) > MaxSourceSize {
		return nil, ErrSourceTooLarge
	}
	if !utf8.Valid(src) {
		return nil, ErrInvalidSource
	}

	parser := sitter.NewParser()
	parser.SetLanguage(javascript.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	return tree, nil
}
