package graphio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ritzau/treeshake/pkg/graph"
)

func writeSnapshot(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "graph.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing snapshot fixture: %v", err)
	}
	return path
}

const validSnapshot = `{
  "entryPoint": "/app/entry.js",
  "preModules": [
    {"path": "__prelude__", "outputs": [{"flavor": "js/script", "code": "prelude", "lineCount": 1}]}
  ],
  "modules": [
    {
      "path": "/app/entry.js",
      "dependencies": {"./util": {"path": "/app/util.js"}},
      "outputs": [{"flavor": "js/module", "code": "import { f } from './util';", "lineCount": 1}]
    },
    {
      "path": "/app/util.js",
      "inverseDependencies": {"/app/entry.js": true},
      "outputs": [{"flavor": "js/module", "code": "export const f = 1;", "lineCount": 1}]
    }
  ]
}`

func TestLoadValidSnapshot(t *testing.T) {
	path := writeSnapshot(t, validSnapshot)

	entry, pre, g, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if entry != "/app/entry.js" {
		t.Errorf("entry = %q", entry)
	}
	if len(pre) != 1 || pre[0].Path != "__prelude__" {
		t.Errorf("pre modules = %v", pre)
	}
	if g.Len() != 2 {
		t.Errorf("Len = %d, want 2", g.Len())
	}
	// Ids follow file order.
	if g.ID("/app/entry.js") != 0 || g.ID("/app/util.js") != 1 {
		t.Errorf("ids = %d, %d; want file order", g.ID("/app/entry.js"), g.ID("/app/util.js"))
	}
	util, _ := g.Module("/app/util.js")
	if !util.InverseDependencies["/app/entry.js"] {
		t.Error("inverse edge missing after load")
	}
}

func TestLoadRoundTrip(t *testing.T) {
	path := writeSnapshot(t, validSnapshot)
	entry, pre, g, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	saved := filepath.Join(t.TempDir(), "saved.json")
	if err := Save(saved, entry, pre, g); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	entry2, pre2, g2, err := Load(saved)
	if err != nil {
		t.Fatalf("reloading saved snapshot: %v", err)
	}
	if entry2 != entry || len(pre2) != len(pre) || g2.Len() != g.Len() {
		t.Errorf("round trip changed shape: entry %q, %d pre, %d modules",
			entry2, len(pre2), g2.Len())
	}
	for _, p := range g.Paths() {
		if g2.ID(p) != g.ID(p) {
			t.Errorf("id of %s changed across round trip: %d vs %d", p, g.ID(p), g2.ID(p))
		}
	}
}

func TestLoadRejectsMissingEntry(t *testing.T) {
	path := writeSnapshot(t, `{"entryPoint": "/missing.js", "modules": []}`)
	_, _, _, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "entry point") {
		t.Fatalf("err = %v, want missing entry point error", err)
	}
}

func TestLoadRejectsDanglingDependency(t *testing.T) {
	path := writeSnapshot(t, `{
  "entryPoint": "/a.js",
  "modules": [
    {"path": "/a.js", "dependencies": {"./gone": {"path": "/gone.js"}}}
  ]
}`)
	_, _, _, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "not in the graph") {
		t.Fatalf("err = %v, want dangling dependency error", err)
	}
}

func TestValidateRejectsAsymmetricEdges(t *testing.T) {
	g := graph.New()
	g.Add(&graph.Module{Path: "/a.js"})
	g.Add(&graph.Module{
		Path:                "/b.js",
		InverseDependencies: map[string]bool{"/a.js": true},
	})

	err := Validate("/a.js", g)
	if err == nil || !strings.Contains(err.Error(), "no forward entry") {
		t.Fatalf("err = %v, want inverse-without-forward error", err)
	}
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := writeSnapshot(t, `{not json`)
	_, _, _, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "decoding graph snapshot") {
		t.Fatalf("err = %v, want decode error", err)
	}
}
