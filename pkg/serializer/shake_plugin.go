package serializer

import (
	"context"

	"github.com/ritzau/treeshake/pkg/logging"
	"github.com/ritzau/treeshake/pkg/regen"
	"github.com/ritzau/treeshake/pkg/shake"
)

// ShakePlugin is the tree-shaking chain stage: it prunes the graph to a
// fixpoint and regenerates the surviving modules. The entry point and all
// prepended modules are protected from export pruning.
func ShakePlugin(ctx context.Context, p *Params) (*Params, error) {
	if p.Options.SkipShaking {
		logging.Debug("tree shaking disabled for request", "url", p.Options.SourceURL)
		return p, nil
	}

	protected := map[string]bool{p.EntryPoint: true}
	for _, m := range p.PreModules {
		protected[m.Path] = true
	}

	report, err := shake.Run(ctx, p.Graph, shake.Options{
		AnnotateOnly: p.Options.AnnotateOnly,
		Protected:    protected,
	})
	if err != nil {
		return nil, err
	}
	p.Report = report

	if p.Options.AnnotateOnly {
		// Annotate mode is for inspection; trees keep their original form.
		return p, nil
	}
	if err := regen.Graph(ctx, p.Graph); err != nil {
		return nil, err
	}
	return p, nil
}
