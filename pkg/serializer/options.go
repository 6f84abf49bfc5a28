package serializer

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ritzau/treeshake/pkg/graph"
)

// output mode values carried by the serializer.output query parameter.
const (
	OutputModeBundle = ""
	OutputModeStatic = "static"
)

// Asset is one entry of the static-export manifest.
type Asset struct {
	Filename       string         `json:"filename"`
	OriginFilename string         `json:"originFilename"`
	Type           string         `json:"type"`
	Metadata       map[string]any `json:"metadata"`
	Source         string         `json:"source"`
}

// StyleExtractor supplies style assets for the static-export manifest. It
// receives the bundle's modules in output order.
type StyleExtractor func(modules []*graph.Module, opts Options) ([]Asset, error)

// Options carries the per-request serialization parameters.
type Options struct {
	// SourceURL is the normalized request URL the options were parsed from.
	SourceURL string

	// Platform is the target platform query parameter.
	Platform string
	// OutputMode is the serializer.output query parameter.
	OutputMode string
	// IncludeMaps reflects serializer.map=true.
	IncludeMaps bool

	Dev         bool
	ProjectRoot string
	ServerRoot  string

	// ModuleID assigns the stable numeric id used for output ordering.
	ModuleID func(path string) int64
	// Filter excludes modules from the bundle when it returns false.
	// nil keeps everything.
	Filter func(path string) bool

	// SkipShaking disables the pruning stage for this request.
	SkipShaking bool
	// SkipEnvInjection disables client-visible environment-variable
	// injection. Honored by a sibling stage, carried here for parity.
	SkipEnvInjection bool
	// AnnotateOnly switches the pruning stage to marker comments.
	AnnotateOnly bool

	// Styles supplies style assets in static-export mode; nil means none.
	Styles StyleExtractor
}

// StaticExport reports whether the request asks for the static asset
// manifest instead of a plain bundle string.
func (o Options) StaticExport() bool {
	return o.Platform == "web" && o.OutputMode == OutputModeStatic
}

// NormalizeURL undoes the transport-safe wrapping some clients apply to the
// request URL: a fully percent-encoded URL is decoded once before parsing.
func NormalizeURL(raw string) string {
	if strings.Contains(raw, "?") {
		return raw
	}
	if !strings.Contains(raw, "%3F") && !strings.Contains(raw, "%3f") {
		return raw
	}
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ParseURL populates the request-derived fields of o from a source URL.
func (o Options) ParseURL(raw string) (Options, error) {
	normalized := NormalizeURL(raw)
	u, err := url.Parse(normalized)
	if err != nil {
		return o, fmt.Errorf("parsing serializer source url: %w", err)
	}
	q := u.Query()
	o.SourceURL = normalized
	if v := q.Get("platform"); v != "" {
		o.Platform = v
	}
	if q.Has("serializer.output") {
		o.OutputMode = q.Get("serializer.output")
	}
	if q.Has("serializer.map") {
		o.IncludeMaps = q.Get("serializer.map") == "true"
	}
	if v := q.Get("dev"); v != "" {
		o.Dev = v == "true"
	}
	return o, nil
}
