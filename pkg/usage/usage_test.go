package usage

import (
	"context"
	"errors"
	"testing"

	"github.com/ritzau/treeshake/pkg/graph"
	"github.com/ritzau/treeshake/pkg/js"
)

func singleModuleGraph(t *testing.T, path, code string, deps map[string]string) *graph.Graph {
	t.Helper()
	g := graph.New()
	m := &graph.Module{
		Path:    path,
		Outputs: []*graph.OutputUnit{{Flavor: "js/module", Code: code}},
	}
	g.Add(m)
	for spec, target := range deps {
		g.Add(&graph.Module{Path: target})
		g.AddEdge(path, spec, target)
	}
	return g
}

func collectOne(t *testing.T, code string, deps map[string]string) *graph.Usage {
	t.Helper()
	g := singleModuleGraph(t, "/app/m.js", code, deps)
	if err := Collect(context.Background(), g); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	m, _ := g.Module("/app/m.js")
	return m.Outputs[0].Usage
}

func TestCollectImportForms(t *testing.T) {
	u := collectOne(t, `import def from './a';
import * as ns from './a';
import { one, two as alias } from './a';
import './a';
`, map[string]string{"./a": "/app/a.js"})

	if len(u.Imports) != 4 {
		t.Fatalf("got %d import records, want 4", len(u.Imports))
	}

	def := u.Imports[0]
	if len(def.Specifiers) != 1 || def.Specifiers[0].Kind != graph.SpecifierDefault || def.Specifiers[0].Local != "def" {
		t.Errorf("default import record = %+v", def)
	}

	ns := u.Imports[1]
	if len(ns.Specifiers) != 1 || ns.Specifiers[0].Kind != graph.SpecifierNamespace || ns.Specifiers[0].Local != "ns" {
		t.Errorf("namespace import record = %+v", ns)
	}

	named := u.Imports[2]
	if len(named.Specifiers) != 2 {
		t.Fatalf("named import has %d specifiers, want 2", len(named.Specifiers))
	}
	if named.Specifiers[0].Imported != "one" || named.Specifiers[0].Local != "one" {
		t.Errorf("specifier[0] = %+v", named.Specifiers[0])
	}
	if named.Specifiers[1].Imported != "two" || named.Specifiers[1].Local != "alias" {
		t.Errorf("specifier[1] = %+v", named.Specifiers[1])
	}

	bare := u.Imports[3]
	if len(bare.Specifiers) != 0 || bare.Key != "/app/a.js" {
		t.Errorf("bare import record = %+v", bare)
	}
}

func TestCollectExportsAndReexports(t *testing.T) {
	u := collectOne(t, `export const x = 1;
export default function main() {}
export { orig as renamed } from './a';
`, map[string]string{"./a": "/app/a.js"})

	want := []string{"x", "default", "main", "renamed"}
	if len(u.Exports) != len(want) {
		t.Fatalf("Exports = %v, want %v", u.Exports, want)
	}
	for i := range want {
		if u.Exports[i] != want[i] {
			t.Errorf("Exports[%d] = %q, want %q", i, u.Exports[i], want[i])
		}
	}

	// The re-export introduces an opaque edge to keep the source live.
	if len(u.Imports) != 1 || !u.Imports[0].CJS || u.Imports[0].Key != "/app/a.js" {
		t.Errorf("re-export edge = %+v, want one CJS record for /app/a.js", u.Imports)
	}
}

func TestCollectRequireAndDynamicImport(t *testing.T) {
	u := collectOne(t, `function load() {
  const legacy = require('./a');
  return import('./b');
}
`, map[string]string{"./a": "/app/a.js", "./b": "/app/b.js"})

	if len(u.Imports) != 2 {
		t.Fatalf("got %d import records, want 2", len(u.Imports))
	}
	for _, rec := range u.Imports {
		if !rec.CJS {
			t.Errorf("record %+v must be opaque", rec)
		}
	}
}

func TestCollectConsistencyError(t *testing.T) {
	g := singleModuleGraph(t, "/app/m.js", `import { x } from './missing';`, nil)

	err := Collect(context.Background(), g)
	var cerr *ConsistencyError
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v, want ConsistencyError", err)
	}
	if cerr.Module != "/app/m.js" || cerr.Specifier != "./missing" {
		t.Errorf("ConsistencyError = %+v", cerr)
	}
}

func TestDetectExportOpacity(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want graph.Opacity
	}{
		{"esm only", `export const x = 1;`, graph.OpacityNo},
		{"module.exports assignment", `module.exports = { a: 1 };`, graph.OpacityYes},
		{"object assign", `Object.assign(module.exports, { a: 1 });`, graph.OpacityYes},
		{"define properties on exports", `Object.defineProperties(exports, {});`, graph.OpacityYes},
		{"named cjs write", `exports.helper = function () {};`, graph.OpacityUnknown},
		{"computed member write", `module.exports[key] = 1;`, graph.OpacityUnknown},
		{"unrelated assign call", `Object.assign(target, source);`, graph.OpacityNo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := js.Parse(context.Background(), []byte(tt.src))
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			defer tree.Close()
			if got := DetectExportOpacity(tree.RootNode(), []byte(tt.src)); got != tt.want {
				t.Errorf("DetectExportOpacity = %v, want %v", got, tt.want)
			}
		})
	}
}
