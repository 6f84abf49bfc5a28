package serializer

import (
	"context"
	"strings"

	"github.com/ritzau/treeshake/pkg/graph"
	"github.com/ritzau/treeshake/pkg/sourcemap"
)

// PreludePath is the synthetic path of the injected prelude module. It is
// the one map source never rewritten relative to the server root.
const PreludePath = "__prelude__"

// Bundle is the stringified whole-graph output.
type Bundle struct {
	Code string
	Map  string
}

// orderedModules returns the bundle's modules in output order: prepended
// modules first, then graph modules sorted by their assigned ids, with the
// request filter applied.
func orderedModules(p *Params) []*graph.Module {
	idFor := p.Options.ModuleID
	if idFor == nil {
		idFor = p.Graph.ID
	}

	modules := make([]*graph.Module, 0, len(p.PreModules)+p.Graph.Len())
	modules = append(modules, p.PreModules...)
	for _, m := range p.Graph.Modules(idFor) {
		if p.Options.Filter != nil && !p.Options.Filter(m.Path) {
			continue
		}
		modules = append(modules, m)
	}
	return modules
}

// baseBundle runs the standard whole-bundle stringifier: module codes in
// output order joined by newlines, plus a composed source map when the
// request asks for one.
func baseBundle(ctx context.Context, p *Params) (Bundle, error) {
	modules := orderedModules(p)

	var code strings.Builder
	entries := make([]sourcemap.Entry, 0, len(modules))
	for _, m := range modules {
		for _, unit := range m.Outputs {
			if code.Len() > 0 {
				code.WriteByte('\n')
			}
			code.WriteString(unit.Code)
			entries = append(entries, sourcemap.Entry{
				Path:      m.Path,
				Code:      unit.Code,
				LineCount: unit.LineCount,
				Segments:  unit.MapSegments,
			})
		}
	}

	b := Bundle{Code: code.String()}
	if p.Options.IncludeMaps {
		m, err := sourcemap.Compose(entries, sourcemap.Options{
			RewritePath:    mapSourceRewriter(p.Options),
			IncludeContent: p.Options.Dev,
		})
		if err != nil {
			return Bundle{}, err
		}
		b.Map = m
	}
	return b, nil
}

// DefaultSerializer is the default final emission step: the plain bundle
// string, or the static-export asset manifest when the request asks for it.
func DefaultSerializer(ctx context.Context, p *Params) (string, error) {
	b, err := baseBundle(ctx, p)
	if err != nil {
		return "", err
	}
	if !p.Options.StaticExport() {
		return b.Code, nil
	}
	return emitStaticExport(p, b)
}
