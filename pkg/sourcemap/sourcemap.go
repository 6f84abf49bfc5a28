// Package sourcemap composes per-module source-map segments into one
// version-3 source map covering a concatenated bundle.
package sourcemap

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ritzau/treeshake/pkg/graph"
)

// Entry is one module's contribution to the composed map, in bundle order.
type Entry struct {
	// Path is the source path recorded in the map's `sources` array.
	Path string
	// Code is the module's generated text; it occupies LineCount lines of
	// the bundle.
	Code string
	// LineCount is the number of bundle lines the module occupies.
	LineCount int
	// Segments are the module-local decoded segments.
	Segments []graph.MapSegment
}

// Options configures composition.
type Options struct {
	// RewritePath maps a module path to the path recorded in `sources`.
	// nil keeps paths as-is.
	RewritePath func(path string) string
	// IncludeContent embeds each module's code in `sourcesContent`.
	IncludeContent bool
}

type rawMap struct {
	Version        int      `json:"version"`
	Sources        []string `json:"sources"`
	SourcesContent []string `json:"sourcesContent,omitempty"`
	Names          []string `json:"names"`
	Mappings       string   `json:"mappings"`
}

// Compose builds the version-3 JSON map for a sequence of modules laid out
// one after another in the bundle.
func Compose(entries []Entry, opts Options) (string, error) {
	m := rawMap{
		Version: 3,
		Sources: make([]string, 0, len(entries)),
		Names:   []string{},
	}

	var mappings strings.Builder
	line := 0    // current generated line the mappings string is at
	prevCol := 0 // VLQ fields are deltas within the whole mappings string
	prevSrc := 0
	prevSrcLine := 0
	prevSrcCol := 0
	offset := 0 // bundle line offset of the current module
	lineHasSegment := false

	for i, e := range entries {
		path := e.Path
		if opts.RewritePath != nil {
			path = opts.RewritePath(e.Path)
		}
		m.Sources = append(m.Sources, path)
		if opts.IncludeContent {
			m.SourcesContent = append(m.SourcesContent, e.Code)
		}

		for _, seg := range e.Segments {
			genLine := seg[0] + offset
			if genLine < line {
				return "", fmt.Errorf("source map segments out of order in %s", e.Path)
			}
			for line < genLine {
				mappings.WriteByte(';')
				line++
				prevCol = 0
				lineHasSegment = false
			}
			if lineHasSegment {
				mappings.WriteByte(',')
			}
			lineHasSegment = true
			mappings.WriteString(EncodeVLQ(seg[1] - prevCol))
			mappings.WriteString(EncodeVLQ(i - prevSrc))
			mappings.WriteString(EncodeVLQ(seg[2] - prevSrcLine))
			mappings.WriteString(EncodeVLQ(seg[3] - prevSrcCol))
			prevCol = seg[1]
			prevSrc = i
			prevSrcLine = seg[2]
			prevSrcCol = seg[3]
		}
		offset += e.LineCount
	}
	m.Mappings = mappings.String()

	out, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encoding source map: %w", err)
	}
	return string(out), nil
}

const base64Chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// EncodeVLQ encodes one value in base64 VLQ as used by source maps.
func EncodeVLQ(value int) string {
	vlq := value << 1
	if value < 0 {
		vlq = (-value << 1) | 1
	}

	var b strings.Builder
	for {
		digit := vlq & 0x1f
		vlq >>= 5
		if vlq > 0 {
			digit |= 0x20
		}
		b.WriteByte(base64Chars[digit])
		if vlq == 0 {
			break
		}
	}
	return b.String()
}
