package graph

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/ritzau/treeshake/pkg/js"
)

// Dependency is a resolved forward edge: the absolute path of the module a
// local import specifier points at.
type Dependency struct {
	Path string `json:"path"`
}

// Module represents a single source file's compiled representation plus its
// graph edges. Identity is the absolute path.
type Module struct {
	Path string `json:"path"`

	// Dependencies maps the written import/require specifier to the
	// resolved dependency. Populated by the upstream resolver; entries are
	// removed only by the pruning engine.
	Dependencies map[string]Dependency `json:"dependencies"`

	// InverseDependencies is the set of paths of modules importing this one.
	InverseDependencies map[string]bool `json:"inverseDependencies"`

	// Outputs holds one compiled artifact per target runtime flavor.
	Outputs []*OutputUnit `json:"outputs"`
}

// OutputUnit is one per-flavor compiled artifact of a module: source text,
// positional metadata, and the derived usage cache.
type OutputUnit struct {
	// Flavor names the target runtime flavor, e.g. "js/module".
	Flavor string `json:"flavor"`

	// Code is the current source text of this unit. The pruning engine and
	// the regenerator replace it wholesale.
	Code string `json:"code"`

	// LineCount is the number of lines in Code.
	LineCount int `json:"lineCount"`

	// MapSegments is the decoded source-map segment list for Code. Emptied
	// by regeneration (minification of shaken output happens downstream).
	MapSegments []MapSegment `json:"map,omitempty"`

	// FunctionMap positions function boundaries inside Code, or nil.
	FunctionMap *FunctionMap `json:"functionMap,omitempty"`

	// Usage caches the import/export facts derived from the current tree.
	// It is a pure function of Code: any mutation of Code must nil it.
	Usage *Usage `json:"-"`

	tree *sitter.Tree
}

// MapSegment is one decoded source-map segment:
// generated line, generated column, original line, original column.
type MapSegment [4]int

// FunctionMap is the compact function-location map attached to a unit.
type FunctionMap struct {
	Names    []string `json:"names"`
	Mappings string   `json:"mappings"`
}

// Tree returns the unit's syntax tree, parsing Code on demand.
func (u *OutputUnit) Tree(ctx context.Context) (*sitter.Tree, error) {
	if u.tree != nil {
		return u.tree, nil
	}
	tree, err := js.Parse(ctx, []byte(u.Code))
	if err != nil {
		return nil, err
	}
	u.tree = tree
	return tree, nil
}

// SetCode replaces the unit's source text and invalidates everything derived
// from it: the parsed tree, the usage cache, and the line count.
func (u *OutputUnit) SetCode(code string) {
	u.Code = code
	u.LineCount = countLines(code)
	u.Usage = nil
	if u.tree != nil {
		u.tree.Close()
		u.tree = nil
	}
}

func countLines(code string) int {
	if code == "" {
		return 0
	}
	n := 1
	for i := 0; i < len(code); i++ {
		if code[i] == '\n' {
			n++
		}
	}
	return n
}

// SpecifierKind distinguishes the binding forms of an import specifier.
type SpecifierKind string

const (
	SpecifierDefault   SpecifierKind = "default"   // import a from 'm'
	SpecifierNamespace SpecifierKind = "namespace" // import * as a from 'm'
	SpecifierNamed     SpecifierKind = "named"     // import { a } from 'm'
)

// Specifier is one binding introduced by an import declaration.
type Specifier struct {
	Kind SpecifierKind `json:"kind"`
	// Imported is the exported name being bound; empty for default and
	// namespace specifiers.
	Imported string `json:"imported,omitempty"`
	// Local is the binding name in the importing module.
	Local string `json:"local"`
}

// ImportRecord is one import/require edge discovered in a module's tree.
type ImportRecord struct {
	// Source is the specifier string as written.
	Source string `json:"source"`
	// Key is the resolved graph key (absolute path) of the target module.
	Key string `json:"key"`
	// Specifiers lists the bindings introduced; empty for bare imports.
	Specifiers []Specifier `json:"specifiers,omitempty"`
	// CJS marks legacy require()/dynamic-import edges. Their consumers
	// cannot be enumerated, so the edge is always fully live.
	CJS bool `json:"cjs,omitempty"`
}

// Opacity classifies whether a module's exports can be enumerated
// statically. Unknown must be treated as opaque.
type Opacity int

const (
	// OpacityNo: no whole-object export mutation was found.
	OpacityNo Opacity = iota
	// OpacityYes: a known CommonJS export pattern was found.
	OpacityYes
	// OpacityUnknown: an export mutation we cannot classify was found.
	OpacityUnknown
)

// Opaque reports whether export pruning must be suppressed.
func (o Opacity) Opaque() bool { return o != OpacityNo }

func (o Opacity) String() string {
	switch o {
	case OpacityNo:
		return "no"
	case OpacityYes:
		return "yes"
	default:
		return "unknown"
	}
}

// Usage is the derived import/export summary of one output unit.
type Usage struct {
	Imports []ImportRecord
	// Exports lists the export names this unit declares; the default export
	// is recorded as "default".
	Exports []string
	// ExportOpacity is the CommonJS-pattern classification for this unit.
	ExportOpacity Opacity
}
