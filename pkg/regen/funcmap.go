package regen

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/ritzau/treeshake/pkg/graph"
	"github.com/ritzau/treeshake/pkg/js"
	"github.com/ritzau/treeshake/pkg/sourcemap"
)

// function-bearing node types the map records spans for.
var functionNodeTypes = map[string]bool{
	js.NodeFunctionDeclaration: true,
	js.NodeGeneratorFunction:   true,
	"function_expression":      true,
	"generator_function":       true,
	"arrow_function":           true,
	"method_definition":        true,
}

// computeFunctionMap parses the final module text and records where each
// function begins, so stack traces can name frames inside the bundle.
// Index 0 always covers the module scope.
func computeFunctionMap(ctx context.Context, code string) (*graph.FunctionMap, error) {
	src := []byte(code)
	tree, err := js.Parse(ctx, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	type mark struct {
		line, col int
		name      string
	}
	marks := []mark{{0, 0, "<global>"}}

	js.Walk(tree.RootNode(), func(node *sitter.Node) bool {
		if !functionNodeTypes[node.Type()] {
			return true
		}
		start := node.StartPoint()
		marks = append(marks, mark{
			line: int(start.Row),
			col:  int(start.Column),
			name: functionName(node, src),
		})
		return true
	})

	fm := &graph.FunctionMap{}
	index := make(map[string]int)
	nameIndex := func(name string) int {
		if i, ok := index[name]; ok {
			return i
		}
		i := len(fm.Names)
		index[name] = i
		fm.Names = append(fm.Names, name)
		return i
	}

	var b strings.Builder
	line := 0
	prevCol := 0
	prevName := 0
	lineHasMark := false
	for _, mk := range marks {
		for line < mk.line {
			b.WriteByte(';')
			line++
			prevCol = 0
			lineHasMark = false
		}
		if lineHasMark {
			b.WriteByte(',')
		}
		lineHasMark = true
		i := nameIndex(mk.name)
		b.WriteString(sourcemap.EncodeVLQ(mk.col - prevCol))
		b.WriteString(sourcemap.EncodeVLQ(i - prevName))
		prevCol = mk.col
		prevName = i
	}
	fm.Mappings = b.String()
	return fm, nil
}

// functionName resolves the display name of a function node: its own name,
// the variable or property it is assigned to, or "<anonymous>".
func functionName(node *sitter.Node, src []byte) string {
	if name := node.ChildByFieldName("name"); name != nil {
		return js.Text(name, src)
	}
	parent := node.Parent()
	if parent == nil {
		return "<anonymous>"
	}
	switch parent.Type() {
	case js.NodeVariableDeclarator:
		if name := parent.ChildByFieldName("name"); name != nil && name.Type() == js.NodeIdentifier {
			return js.Text(name, src)
		}
	case js.NodeAssignment:
		if left := parent.ChildByFieldName("left"); left != nil {
			return js.Text(left, src)
		}
	case "pair":
		if key := parent.ChildByFieldName("key"); key != nil {
			return js.Text(key, src)
		}
	}
	return "<anonymous>"
}
