package serializer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
)

// emitStaticExport produces the JSON asset manifest for a static-export
// request: the script, optionally its map, and any style assets supplied by
// the external extractor.
func emitStaticExport(p *Params, b Bundle) (string, error) {
	scriptName, mapName := assetNames(p.Options, b.Code)

	assets := []Asset{{
		Filename:       scriptName,
		OriginFilename: "index.js",
		Type:           "js",
		Metadata:       map[string]any{},
		Source:         b.Code,
	}}

	if p.Options.IncludeMaps && b.Map != "" {
		assets = append(assets, Asset{
			Filename:       mapName,
			OriginFilename: "index.map",
			Type:           "map",
			Metadata:       map[string]any{},
			Source:         b.Map,
		})
	}

	if p.Options.Styles != nil {
		styles, err := p.Options.Styles(orderedModules(p), p.Options)
		if err != nil {
			return "", fmt.Errorf("extracting style assets: %w", err)
		}
		assets = append(assets, styles...)
	}

	out, err := json.Marshal(assets)
	if err != nil {
		return "", fmt.Errorf("encoding asset manifest: %w", err)
	}
	return string(out), nil
}

// assetNames computes the script and map filenames: a fixed dev scheme and
// a content-hashed production scheme, so identical builds get identical
// names.
func assetNames(opts Options, code string) (script, mapFile string) {
	if opts.Dev {
		return "index.js", "index.map"
	}
	hash := contentHash(code)
	return fmt.Sprintf("_expo/static/js/web/%s.js", hash),
		fmt.Sprintf("_expo/static/js/web/%s.js.map", hash)
}

// contentHash returns the hex digest used for production asset names.
func contentHash(src string) string {
	sum := sha256.Sum256([]byte(src))
	return hex.EncodeToString(sum[:])[:20]
}

// mapSourceRewriter rewrites absolute module paths in the composed map to
// be relative to the server root, so the map leaks no local filesystem
// layout. The synthetic prelude entry is kept as-is.
func mapSourceRewriter(opts Options) func(string) string {
	root := opts.ServerRoot
	if root == "" {
		root = opts.ProjectRoot
	}
	if root == "" {
		return nil
	}
	return func(path string) string {
		if path == PreludePath || !filepath.IsAbs(path) {
			return path
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return path
		}
		return rel
	}
}
