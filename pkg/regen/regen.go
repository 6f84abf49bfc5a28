// Package regen re-wraps pruned module trees into the bundler's
// module-function form: import/export statements are lowered to runtime
// calls, the body is wrapped in the module-function envelope, and text,
// line counts, and function maps are regenerated.
package regen

import (
	"context"
	"fmt"

	"github.com/ritzau/treeshake/pkg/graph"
	"github.com/ritzau/treeshake/pkg/js"
	"github.com/ritzau/treeshake/pkg/logging"
)

// helper binding base names; suffixed when a module already uses the name.
const (
	defaultHelperBase = "_$$_IMPORT_DEFAULT"
	allHelperBase     = "_$$_IMPORT_ALL"
)

// Graph regenerates every output unit in the graph. It is called once,
// after pruning has reached its fixpoint.
func Graph(ctx context.Context, g *graph.Graph) error {
	for _, path := range g.Paths() {
		m, _ := g.Module(path)
		for _, unit := range m.Outputs {
			if err := Unit(ctx, m, unit); err != nil {
				return fmt.Errorf("regenerating %s: %w", m.Path, err)
			}
		}
	}
	return nil
}

// Unit lowers one output unit and wraps it in the module-function envelope.
// The envelope carries no dependency-map name and no global prefix; both
// are populated by a later stage.
func Unit(ctx context.Context, m *graph.Module, unit *graph.OutputUnit) error {
	tree, err := unit.Tree(ctx)
	if err != nil {
		return err
	}
	src := []byte(unit.Code)
	root := tree.RootNode()

	used := js.ReferencedIdentifiers(root, src)
	defaultHelper := pickHelperName(defaultHelperBase, used)
	allHelper := pickHelperName(allHelperBase, used)

	lowered, err := lower(m, root, src, defaultHelper, allHelper)
	if err != nil {
		return err
	}

	wrapped := wrapModuleFunction(lowered)
	prevMap := unit.FunctionMap
	unit.SetCode(wrapped)
	unit.MapSegments = nil // minification of shaken output happens downstream

	fm, err := computeFunctionMap(ctx, wrapped)
	if err != nil {
		return err
	}
	switch {
	case fm != nil:
		unit.FunctionMap = fm
	case prevMap != nil:
		// Keep the explicit map the transformer attached earlier.
		unit.FunctionMap = prevMap
	default:
		unit.FunctionMap = nil
	}

	logging.Trace("regenerated module", "module", m.Path, "lines", unit.LineCount)
	return nil
}

// pickHelperName returns base, or base with a numeric suffix when the
// module body already references the name.
func pickHelperName(base string, used map[string]bool) string {
	name := base
	for i := 2; used[name]; i++ {
		name = fmt.Sprintf("%s_%d", base, i)
	}
	return name
}

// wrapModuleFunction puts the lowered body into the bundler's module
// envelope.
func wrapModuleFunction(body string) string {
	if body != "" && body[len(body)-1] != '\n' {
		body += "\n"
	}
	return "__d(function (global, require, module, exports) {\n" + body + "});\n"
}
