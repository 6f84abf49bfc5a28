package usage

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/ritzau/treeshake/pkg/graph"
	"github.com/ritzau/treeshake/pkg/js"
)

// DetectExportOpacity classifies whether a module's exports can be pruned.
//
// Whole-object CommonJS export mutation makes every consumer invisible to
// static analysis, so pruning must be suppressed. The predicate is
// deliberately tri-state: patterns we recognize are Yes, export-object
// mutations we cannot classify are Unknown, and Unknown is treated as
// opaque by the pruning engine.
func DetectExportOpacity(root *sitter.Node, src []byte) graph.Opacity {
	result := graph.OpacityNo

	js.Walk(root, func(node *sitter.Node) bool {
		if result == graph.OpacityYes {
			return false
		}
		switch node.Type() {
		case js.NodeAssignment:
			left := node.ChildByFieldName("left")
			if left == nil {
				return true
			}
			leftText := js.Text(left, src)
			if leftText == "module.exports" {
				// module.exports = ...
				result = graph.OpacityYes
				return false
			}
			if isExportObjectMember(leftText) {
				// exports.x = ..., module.exports.x = ..., module.exports[k] = ...
				// Named CJS exports are not ESM declarations, but the write
				// proves CJS consumers exist somewhere.
				if result == graph.OpacityNo {
					result = graph.OpacityUnknown
				}
			}
		case js.NodeCallExpression:
			if isWholeObjectExportCall(node, src) {
				result = graph.OpacityYes
				return false
			}
		}
		return true
	})

	return result
}

// isExportObjectMember matches member/subscript writes on the export object.
func isExportObjectMember(leftText string) bool {
	return strings.HasPrefix(leftText, "exports.") ||
		strings.HasPrefix(leftText, "exports[") ||
		strings.HasPrefix(leftText, "module.exports.") ||
		strings.HasPrefix(leftText, "module.exports[")
}

// isWholeObjectExportCall matches Object.assign(module.exports, ...) and
// Object.defineProperties(module.exports, ...), with `exports` accepted in
// place of `module.exports`.
func isWholeObjectExportCall(call *sitter.Node, src []byte) bool {
	fn := call.ChildByFieldName("function")
	if fn == nil || fn.Type() != js.NodeMemberExpression {
		return false
	}
	fnText := js.Text(fn, src)
	if fnText != "Object.assign" && fnText != "Object.defineProperties" {
		return false
	}
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return false
	}
	for i := 0; i < int(args.ChildCount()); i++ {
		arg := args.Child(i)
		switch arg.Type() {
		case js.NodeMemberExpression, js.NodeIdentifier:
			text := js.Text(arg, src)
			return text == "module.exports" || text == "exports"
		case "(", ")", ",":
			continue
		default:
			// First real argument is not the export object
			return false
		}
	}
	return false
}
