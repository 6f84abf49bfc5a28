package shake

import (
	"context"
	"strings"
	"testing"

	"github.com/ritzau/treeshake/pkg/graph"
)

type testModule struct {
	path string
	code string
	deps map[string]string
}

func buildGraph(t *testing.T, mods []testModule) *graph.Graph {
	t.Helper()
	g := graph.New()
	for _, tm := range mods {
		g.Add(&graph.Module{
			Path:    tm.path,
			Outputs: []*graph.OutputUnit{{Flavor: "js/module", Code: tm.code}},
		})
	}
	for _, tm := range mods {
		for spec, target := range tm.deps {
			g.AddEdge(tm.path, spec, target)
		}
	}
	return g
}

func unitCode(t *testing.T, g *graph.Graph, path string) string {
	t.Helper()
	m, ok := g.Module(path)
	if !ok {
		t.Fatalf("module %s missing from graph", path)
	}
	return m.Outputs[0].Code
}

func TestRunRemovesUnusedExport(t *testing.T) {
	g := buildGraph(t, []testModule{
		{
			path: "/entry.js",
			code: "import { add } from './util';\nconsole.log(add(1, 2));\n",
			deps: map[string]string{"./util": "/util.js"},
		},
		{
			path: "/util.js",
			code: "export function add(a, b) { return a + b; }\nexport function unusedHelper() { return 42; }\n",
		},
	})

	report, err := Run(context.Background(), g, Options{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	util := unitCode(t, g, "/util.js")
	if strings.Contains(util, "unusedHelper") {
		t.Errorf("unused export survived:\n%s", util)
	}
	if !strings.Contains(util, "add") {
		t.Errorf("live export was removed:\n%s", util)
	}
	if report.ExportsRemoved != 1 {
		t.Errorf("ExportsRemoved = %d, want 1", report.ExportsRemoved)
	}
	if report.Passes != 1 {
		t.Errorf("Passes = %d, want 1 when nothing detaches", report.Passes)
	}
	if got := unitCode(t, g, "/entry.js"); !strings.Contains(got, "import { add }") {
		t.Errorf("entry module was rewritten:\n%s", got)
	}
}

func TestRunDetachesEdgeAndCollectsOrphan(t *testing.T) {
	g := buildGraph(t, []testModule{
		{
			path: "/entry.js",
			code: "import { a } from './a';\nconsole.log(a);\n",
			deps: map[string]string{"./a": "/a.js"},
		},
		{
			path: "/a.js",
			code: "import { b } from './b';\nexport const a = 1;\n",
			deps: map[string]string{"./b": "/b.js"},
		},
		{
			path: "/b.js",
			code: "export const b = 2;\n",
		},
	})

	report, err := Run(context.Background(), g, Options{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if _, ok := g.Module("/b.js"); ok {
		t.Error("orphaned module /b.js still in graph")
	}
	if report.ImportsRemoved != 1 || report.EdgesDetached != 1 {
		t.Errorf("ImportsRemoved = %d, EdgesDetached = %d, want 1 and 1",
			report.ImportsRemoved, report.EdgesDetached)
	}
	if report.OrphansCollected != 1 || len(report.OrphanPaths) != 1 || report.OrphanPaths[0] != "/b.js" {
		t.Errorf("orphans = %d %v, want [/b.js]", report.OrphansCollected, report.OrphanPaths)
	}
	if got := unitCode(t, g, "/a.js"); strings.Contains(got, "import") {
		t.Errorf("dead import declaration survived:\n%s", got)
	}
	if report.Passes != 2 {
		t.Errorf("Passes = %d, want 2 (one detaching pass plus the fixpoint check)", report.Passes)
	}
}

func TestRunCascadesThroughDeadExportChain(t *testing.T) {
	g := buildGraph(t, []testModule{
		{
			path: "/entry.js",
			code: "import { a1 } from './a';\nconsole.log(a1);\n",
			deps: map[string]string{"./a": "/a.js"},
		},
		{
			path: "/a.js",
			code: "import { b1 } from './b';\nexport const a1 = 1;\nexport function a2() { return b1; }\n",
			deps: map[string]string{"./b": "/b.js"},
		},
		{
			path: "/b.js",
			code: "import { c1 } from './c';\nexport const b1 = c1;\n",
			deps: map[string]string{"./c": "/c.js"},
		},
		{
			path: "/c.js",
			code: "export const c1 = 1;\n",
		},
	})

	report, err := Run(context.Background(), g, Options{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Removing a2 kills a's only use of b1, which detaches a -> b and
	// cascades through b -> c.
	if g.Len() != 2 {
		t.Errorf("graph has %d modules, want entry and a only", g.Len())
	}
	if report.OrphansCollected != 2 {
		t.Errorf("OrphansCollected = %d, want 2", report.OrphansCollected)
	}
	if got := unitCode(t, g, "/a.js"); strings.Contains(got, "a2") || strings.Contains(got, "import") {
		t.Errorf("dead chain not fully pruned in /a.js:\n%s", got)
	}
}

func TestRunIsIdempotentAtFixpoint(t *testing.T) {
	g := buildGraph(t, []testModule{
		{
			path: "/entry.js",
			code: "import { a } from './a';\nconsole.log(a);\n",
			deps: map[string]string{"./a": "/a.js"},
		},
		{
			path: "/a.js",
			code: "import { b } from './b';\nexport const a = 1;\n",
			deps: map[string]string{"./b": "/b.js"},
		},
		{
			path: "/b.js",
			code: "export const b = 2;\n",
		},
	})

	if _, err := Run(context.Background(), g, Options{}); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	before := unitCode(t, g, "/a.js")

	report, err := Run(context.Background(), g, Options{})
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if report.ExportsRemoved != 0 || report.ImportsRemoved != 0 || report.EdgesDetached != 0 {
		t.Errorf("second run was not a no-op: %+v", report)
	}
	if report.Passes != 1 {
		t.Errorf("second run Passes = %d, want 1", report.Passes)
	}
	if got := unitCode(t, g, "/a.js"); got != before {
		t.Errorf("second run changed code:\nbefore: %q\nafter:  %q", before, got)
	}
}

func TestRunKeepsOpaqueCommonJSExports(t *testing.T) {
	mixed := "export const used = 1;\nexport const unusedName = 2;\nexports.extra = function () {};\n"
	g := buildGraph(t, []testModule{
		{
			path: "/entry.js",
			code: "import { used } from './mixed';\nconsole.log(used);\n",
			deps: map[string]string{"./mixed": "/mixed.js"},
		},
		{
			path: "/mixed.js",
			code: mixed,
		},
	})

	report, err := Run(context.Background(), g, Options{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.ExportsRemoved != 0 {
		t.Errorf("ExportsRemoved = %d, want 0 for an opaque module", report.ExportsRemoved)
	}
	if got := unitCode(t, g, "/mixed.js"); got != mixed {
		t.Errorf("opaque module was rewritten:\n%s", got)
	}
}

func TestRunKeepsReexports(t *testing.T) {
	g := buildGraph(t, []testModule{
		{
			path: "/entry.js",
			code: "import { a } from './barrel';\nconsole.log(a);\n",
			deps: map[string]string{"./barrel": "/barrel.js"},
		},
		{
			path: "/barrel.js",
			code: "export { a } from './a';\nexport { unusedReexport } from './b';\n",
			deps: map[string]string{"./a": "/a.js", "./b": "/b.js"},
		},
		{
			path: "/a.js",
			code: "export const a = 1;\n",
		},
		{
			path: "/b.js",
			code: "export const unusedReexport = 2;\n",
		},
	})

	report, err := Run(context.Background(), g, Options{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Re-export statements are opaque edges; both stay and keep their
	// sources alive even when no current importer uses the name.
	if report.ExportsRemoved != 0 {
		t.Errorf("ExportsRemoved = %d, want 0", report.ExportsRemoved)
	}
	if g.Len() != 4 {
		t.Errorf("graph has %d modules, want all 4", g.Len())
	}
	if got := unitCode(t, g, "/barrel.js"); !strings.Contains(got, "unusedReexport") {
		t.Errorf("re-export statement removed:\n%s", got)
	}
}

func TestRunAnnotateOnly(t *testing.T) {
	g := buildGraph(t, []testModule{
		{
			path: "/entry.js",
			code: "import { add } from './util';\nconsole.log(add(1, 2));\n",
			deps: map[string]string{"./util": "/util.js"},
		},
		{
			path: "/util.js",
			code: "export function add(a, b) { return a + b; }\nexport function unusedHelper() { return 42; }\n",
		},
	})

	report, err := Run(context.Background(), g, Options{AnnotateOnly: true})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	util := unitCode(t, g, "/util.js")
	if !strings.Contains(util, "/* unused export (unusedHelper) */") {
		t.Errorf("missing annotation marker:\n%s", util)
	}
	if !strings.Contains(util, "function unusedHelper") {
		t.Errorf("annotate mode removed the declaration:\n%s", util)
	}
	if report.ExportsAnnotated != 1 || report.ExportsRemoved != 0 {
		t.Errorf("ExportsAnnotated = %d, ExportsRemoved = %d, want 1 and 0",
			report.ExportsAnnotated, report.ExportsRemoved)
	}
}

func TestRunProtectedModuleKeepsExports(t *testing.T) {
	entry := "export const publicSurface = 1;\nimport './back';\n"
	g := buildGraph(t, []testModule{
		{
			path: "/entry.js",
			code: entry,
			deps: map[string]string{"./back": "/back.js"},
		},
		{
			path: "/back.js",
			code: "import './entry';\n",
			deps: map[string]string{"./entry": "/entry.js"},
		},
	})

	report, err := Run(context.Background(), g, Options{
		Protected: map[string]bool{"/entry.js": true},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// The entry has an importer, so only the protection keeps its unused
	// export in place.
	if report.ExportsRemoved != 0 {
		t.Errorf("ExportsRemoved = %d, want 0 for a protected module", report.ExportsRemoved)
	}
	if got := unitCode(t, g, "/entry.js"); !strings.Contains(got, "publicSurface") {
		t.Errorf("protected export removed:\n%s", got)
	}
}

func TestRunPartialImportRewrite(t *testing.T) {
	g := buildGraph(t, []testModule{
		{
			path: "/entry.js",
			code: "import { used, unused } from './util';\nconsole.log(used);\n",
			deps: map[string]string{"./util": "/util.js"},
		},
		{
			path: "/util.js",
			code: "export const used = 1;\nexport const unused = 2;\n",
		},
	})

	report, err := Run(context.Background(), g, Options{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	entry := unitCode(t, g, "/entry.js")
	if !strings.Contains(entry, "import { used } from './util';") {
		t.Errorf("import not rewritten to surviving specifiers:\n%s", entry)
	}
	if strings.Contains(entry, "unused") {
		t.Errorf("dead specifier survived:\n%s", entry)
	}
	if report.ImportsRemoved != 1 {
		t.Errorf("ImportsRemoved = %d, want 1", report.ImportsRemoved)
	}
	if report.EdgesDetached != 0 {
		t.Errorf("EdgesDetached = %d, want 0 while a specifier survives", report.EdgesDetached)
	}

	// The specifier removal makes util's export dead on the next pass.
	util := unitCode(t, g, "/util.js")
	if strings.Contains(util, "unused") {
		t.Errorf("export made dead by import pruning survived:\n%s", util)
	}
	if report.ExportsRemoved != 1 {
		t.Errorf("ExportsRemoved = %d, want 1", report.ExportsRemoved)
	}
}

func TestRunMultiUnitModuleDetachesOnce(t *testing.T) {
	g := graph.New()
	g.Add(&graph.Module{
		Path: "/entry.js",
		Outputs: []*graph.OutputUnit{
			{Flavor: "js/module", Code: "import { a } from './a';\nconsole.log(a);\n"},
		},
	})
	g.Add(&graph.Module{
		Path: "/a.js",
		Outputs: []*graph.OutputUnit{
			{Flavor: "js/module", Code: "import { b } from './b';\nexport const a = 1;\n"},
			{Flavor: "js/module/optimized", Code: "import { b } from './b';\nexport const a = 1;\n"},
		},
	})
	g.Add(&graph.Module{
		Path: "/b.js",
		Outputs: []*graph.OutputUnit{
			{Flavor: "js/module", Code: "export const b = 2;\n"},
		},
	})
	g.AddEdge("/entry.js", "./a", "/a.js")
	g.AddEdge("/a.js", "./b", "/b.js")

	report, err := Run(context.Background(), g, Options{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	a, _ := g.Module("/a.js")
	for _, unit := range a.Outputs {
		if strings.Contains(unit.Code, "import") {
			t.Errorf("dead import survived in %s unit:\n%s", unit.Flavor, unit.Code)
		}
	}
	if report.ImportsRemoved != 2 {
		t.Errorf("ImportsRemoved = %d, want one per output unit", report.ImportsRemoved)
	}
	if report.EdgesDetached != 1 {
		t.Errorf("EdgesDetached = %d, want a single detachment for the shared edge", report.EdgesDetached)
	}
	if _, ok := g.Module("/b.js"); ok {
		t.Error("orphaned module /b.js still in graph")
	}
}

func TestRunMultiUnitModuleKeepsEdgeUsedBySiblingUnit(t *testing.T) {
	g := graph.New()
	g.Add(&graph.Module{
		Path: "/entry.js",
		Outputs: []*graph.OutputUnit{
			{Flavor: "js/module", Code: "import { a } from './a';\nconsole.log(a);\n"},
		},
	})
	g.Add(&graph.Module{
		Path: "/a.js",
		Outputs: []*graph.OutputUnit{
			{Flavor: "js/module", Code: "import { b } from './b';\nexport const a = 1;\n"},
			{Flavor: "js/module/optimized", Code: "import { b } from './b';\nexport const a = b;\n"},
		},
	})
	g.Add(&graph.Module{
		Path: "/b.js",
		Outputs: []*graph.OutputUnit{
			{Flavor: "js/module", Code: "export const b = 2;\n"},
		},
	})
	g.AddEdge("/entry.js", "./a", "/a.js")
	g.AddEdge("/a.js", "./b", "/b.js")

	report, err := Run(context.Background(), g, Options{})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.EdgesDetached != 0 {
		t.Errorf("EdgesDetached = %d, want 0 while a sibling unit uses the edge", report.EdgesDetached)
	}
	if _, ok := g.Module("/b.js"); !ok {
		t.Error("module /b.js removed while still referenced")
	}
	a, _ := g.Module("/a.js")
	if strings.Contains(a.Outputs[0].Code, "import") {
		t.Errorf("dead import survived in first unit:\n%s", a.Outputs[0].Code)
	}
	if !strings.Contains(a.Outputs[1].Code, "import { b } from './b';") {
		t.Errorf("live import rewritten in second unit:\n%s", a.Outputs[1].Code)
	}
}

func TestRunPassCeiling(t *testing.T) {
	g := buildGraph(t, []testModule{
		{
			path: "/entry.js",
			code: "import { a } from './a';\nconsole.log(a);\n",
			deps: map[string]string{"./a": "/a.js"},
		},
		{
			path: "/a.js",
			code: "import { b } from './b';\nexport const a = 1;\n",
			deps: map[string]string{"./b": "/b.js"},
		},
		{
			path: "/b.js",
			code: "export const b = 2;\n",
		},
	})

	_, err := Run(context.Background(), g, Options{MaxPasses: 1})
	if err == nil {
		t.Fatal("expected an error when the ceiling cuts off a detaching pass")
	}
	if !strings.Contains(err.Error(), "fixpoint") {
		t.Errorf("err = %v, want fixpoint ceiling error", err)
	}
}
