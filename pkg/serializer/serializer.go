// Package serializer hosts the composable serializer chain: an ordered
// pipeline of stages, each consuming and producing the same parameter
// tuple, terminated by a final emission step that turns the graph into a
// bundle string or a static-export asset manifest.
package serializer

import (
	"context"
	"fmt"

	"github.com/ritzau/treeshake/pkg/graph"
	"github.com/ritzau/treeshake/pkg/shake"
)

// Params is the tuple every pipeline stage consumes and produces:
// entry point, prepended modules, the graph, and the request options.
type Params struct {
	EntryPoint string
	PreModules []*graph.Module
	Graph      *graph.Graph
	Options    Options

	// Report is attached by the pruning stage for downstream consumers
	// (console report, web handlers). Stages must tolerate nil.
	Report *shake.Report
}

// Plugin is one chain stage. Stages run strictly in list order; each
// stage's output tuple feeds the next. A stage returning an error aborts
// the whole serialization with no partial output.
type Plugin func(ctx context.Context, p *Params) (*Params, error)

// Final is the terminal emission step of a chain.
type Final func(ctx context.Context, p *Params) (string, error)

// NewChain composes plugins and a final serializer into one serializer
// function. Nil plugins are skipped. A nil final uses DefaultSerializer.
func NewChain(plugins []Plugin, final Final) Final {
	if final == nil {
		final = DefaultSerializer
	}
	return func(ctx context.Context, p *Params) (string, error) {
		for i, plugin := range plugins {
			if plugin == nil {
				continue
			}
			next, err := plugin(ctx, p)
			if err != nil {
				return "", fmt.Errorf("serializer stage %d: %w", i, err)
			}
			p = next
		}
		return final(ctx, p)
	}
}
