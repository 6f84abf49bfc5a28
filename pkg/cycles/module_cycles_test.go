package cycles

import (
	"testing"

	"github.com/ritzau/treeshake/pkg/graph"
)

func buildGraph(t *testing.T, edges map[string][]string) *graph.Graph {
	t.Helper()
	g := graph.New()
	seen := map[string]bool{}
	add := func(p string) {
		if !seen[p] {
			g.Add(&graph.Module{Path: p})
			seen[p] = true
		}
	}
	for from, targets := range edges {
		add(from)
		for _, to := range targets {
			add(to)
		}
	}
	for from, targets := range edges {
		for _, to := range targets {
			g.AddEdge(from, "./"+to, to)
		}
	}
	return g
}

func TestFindNoCycles(t *testing.T) {
	g := buildGraph(t, map[string][]string{
		"entry": {"a", "b"},
		"a":     {"b"},
	})
	if cycles := Find(g); len(cycles) != 0 {
		t.Errorf("Find on a DAG = %v, want none", cycles)
	}
}

func TestFindSimpleCycle(t *testing.T) {
	g := buildGraph(t, map[string][]string{
		"entry": {"a"},
		"a":     {"b"},
		"b":     {"a"},
	})

	cycles := Find(g)
	if len(cycles) != 1 {
		t.Fatalf("got %d cycles, want 1: %v", len(cycles), cycles)
	}
	got := cycles[0].Modules
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("cycle members = %v, want [a b] in lexical order", got)
	}
}

func TestFindMultipleCyclesDeterministicOrder(t *testing.T) {
	g := buildGraph(t, map[string][]string{
		"entry": {"x", "m"},
		"x":     {"y"},
		"y":     {"x"},
		"m":     {"n", "o"},
		"n":     {"m"},
		"o":     {},
	})

	cycles := Find(g)
	if len(cycles) != 2 {
		t.Fatalf("got %d cycles, want 2: %v", len(cycles), cycles)
	}
	// Cycle list is ordered by first member.
	if cycles[0].Modules[0] != "m" || cycles[1].Modules[0] != "x" {
		t.Errorf("cycle order = %v, want m-cycle before x-cycle", cycles)
	}
}

func TestFindIgnoresSelfLoopFreeNodes(t *testing.T) {
	// A three-node cycle reported once, with all members.
	g := buildGraph(t, map[string][]string{
		"a": {"b"},
		"b": {"c"},
		"c": {"a"},
	})

	cycles := Find(g)
	if len(cycles) != 1 || len(cycles[0].Modules) != 3 {
		t.Fatalf("cycles = %v, want one three-member cycle", cycles)
	}
}
