package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"

	"github.com/ritzau/treeshake/pkg/config"
	"github.com/ritzau/treeshake/pkg/cycles"
	"github.com/ritzau/treeshake/pkg/graphio"
	"github.com/ritzau/treeshake/pkg/logging"
	"github.com/ritzau/treeshake/pkg/output"
	"github.com/ritzau/treeshake/pkg/serializer"
	"github.com/ritzau/treeshake/pkg/watcher"
	"github.com/ritzau/treeshake/pkg/web"
)

func main() {
	flags := pflag.NewFlagSet("treeshake", pflag.ExitOnError)
	flags.String("graph", "graph.json", "Path to the resolver's graph snapshot")
	flags.String("root", ".", "Project root (watched in web mode)")
	flags.String("server-root", "", "Root that source-map paths are made relative to")
	flags.String("platform", "web", "Target platform")
	flags.Bool("dev", true, "Development mode (unhashed asset names, embedded sources)")
	flags.String("output", "", "Bundle file, or directory in static mode (default: stdout)")
	flags.Bool("static", false, "Emit the static-export asset manifest")
	flags.Bool("maps", false, "Include source maps")
	flags.Bool("no-shake", false, "Disable tree shaking")
	flags.Bool("annotate", false, "Annotate dead exports instead of removing them")
	flags.Bool("web", false, "Serve bundles over HTTP instead of writing one")
	flags.Int("port", 8081, "Port for the bundle server (only used with --web)")
	flags.Bool("watch", false, "Watch for changes and rebundle (only used with --web)")
	flags.CountP("verbose", "v", "Increase verbosity (-v debug, -vv trace)")
	if err := flags.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	applyVerbosity(cfg)

	if cfg.WebMode {
		if err := runServer(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := runOnce(context.Background(), cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func applyVerbosity(cfg *config.Config) {
	switch {
	case cfg.Verbosity == "trace" || cfg.VerboseCnt >= 2:
		logging.SetLevel(slog.LevelDebug - 4)
	case cfg.Verbosity == "debug" || cfg.VerboseCnt == 1:
		logging.SetLevel(slog.LevelDebug)
	}
}

// requestURL renders the config as the URL the serializer options are
// parsed from, so CLI and web requests go through the same path.
func requestURL(cfg *config.Config) string {
	q := url.Values{}
	q.Set("platform", cfg.Platform)
	if cfg.Static {
		q.Set("serializer.output", serializer.OutputModeStatic)
	}
	if cfg.Maps {
		q.Set("serializer.map", "true")
	}
	q.Set("dev", fmt.Sprintf("%t", cfg.Dev))
	return "/bundle?" + q.Encode()
}

func baseOptions(cfg *config.Config) serializer.Options {
	return serializer.Options{
		ProjectRoot:  cfg.Root,
		ServerRoot:   cfg.ServerRoot,
		SkipShaking:  cfg.NoShake,
		AnnotateOnly: cfg.Annotate,
	}
}

// serialize loads a fresh graph snapshot and runs the chain for one
// request. before is the module count prior to shaking.
func serialize(ctx context.Context, cfg *config.Config, rawURL string) (out string, p *serializer.Params, before int, err error) {
	entry, pre, g, err := graphio.Load(cfg.Graph)
	if err != nil {
		return "", nil, 0, err
	}
	before = g.Len()

	if found := cycles.Find(g); len(found) > 0 {
		output.PrintCycleWarnings(found)
	}

	opts, err := baseOptions(cfg).ParseURL(rawURL)
	if err != nil {
		return "", nil, 0, err
	}

	p = &serializer.Params{
		EntryPoint: entry,
		PreModules: pre,
		Graph:      g,
		Options:    opts,
	}
	chain := serializer.NewChain([]serializer.Plugin{serializer.ShakePlugin}, nil)
	out, err = chain(ctx, p)
	if err != nil {
		return "", nil, 0, err
	}
	return out, p, before, nil
}

func runOnce(ctx context.Context, cfg *config.Config) error {
	out, p, before, err := serialize(ctx, cfg, requestURL(cfg))
	if err != nil {
		return err
	}

	if p.Options.StaticExport() {
		if err := writeAssets(cfg.Output, out); err != nil {
			return err
		}
	} else if cfg.Output == "" {
		fmt.Println(out)
	} else if err := os.WriteFile(cfg.Output, []byte(out), 0o644); err != nil {
		return fmt.Errorf("writing bundle: %w", err)
	}

	if p.Report != nil && (cfg.Output != "" || p.Options.StaticExport()) {
		output.PrintShakeReport(p.EntryPoint, before, p.Graph.Len(), p.Report)
	}
	return nil
}

// writeAssets unpacks the static-export manifest into files under dir.
// An empty dir prints the manifest JSON to stdout instead.
func writeAssets(dir, manifest string) error {
	if dir == "" {
		fmt.Println(manifest)
		return nil
	}

	var assets []serializer.Asset
	if err := json.Unmarshal([]byte(manifest), &assets); err != nil {
		return fmt.Errorf("decoding asset manifest: %w", err)
	}

	for _, asset := range assets {
		path := filepath.Join(dir, asset.Filename)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("creating asset directory: %w", err)
		}
		if err := os.WriteFile(path, []byte(asset.Source), 0o644); err != nil {
			return fmt.Errorf("writing asset %s: %w", asset.Filename, err)
		}
		logging.Info("wrote asset", "path", path, "type", asset.Type)
	}
	return nil
}

func runServer(cfg *config.Config) error {
	server := web.NewServer()

	server.SetBundleFunc(func(ctx context.Context, rawURL string) (string, bool, error) {
		out, p, _, err := serialize(ctx, cfg, rawURL)
		if err != nil {
			return "", false, err
		}
		server.SetReport(p.Report)
		return out, p.Options.StaticExport(), nil
	})

	if err := server.PublishBuildStatus("watching", "waiting for requests"); err != nil {
		logging.Warn("failed to publish status", "error", err)
	}

	if cfg.Watch {
		go watchAndRebuild(cfg, server)
	}

	return server.Start(cfg.Port)
}

// watchAndRebuild rebundles eagerly on snapshot or source changes so SSE
// subscribers see fresh stats without polling /bundle.
func watchAndRebuild(cfg *config.Config, server *web.Server) {
	ctx := context.Background()

	fw, err := watcher.NewFileWatcher(cfg.Root, cfg.Graph)
	if err != nil {
		logging.Error("failed to create watcher", "error", err)
		return
	}
	if err := fw.Start(ctx); err != nil {
		logging.Error("failed to start watcher", "error", err)
		return
	}

	debouncer := watcher.NewDebouncer(fw.Events(), 200*time.Millisecond, 2*time.Second)
	debouncer.Start(ctx)

	for event := range debouncer.Output() {
		analysis := watcher.AnalyzeChanges(event)
		if !analysis.NeedSnapshotReload && !analysis.NeedRebundle {
			continue
		}

		logging.Info("change detected, rebundling", "files", len(analysis.ChangedFiles))
		if err := server.PublishBuildStatus("rebuilding", "change detected"); err != nil {
			logging.Warn("failed to publish status", "error", err)
		}

		_, p, _, err := serialize(ctx, cfg, requestURL(cfg))
		if err != nil {
			logging.Error("rebundle failed", "error", err)
			server.PublishBuildStatus("failed", err.Error())
			continue
		}

		server.SetReport(p.Report)
		server.PublishBuildStatus("ready", "bundle up to date")
		server.PublishBundle(p.EntryPoint, p.Graph.Len(), p.Report)
	}
}
