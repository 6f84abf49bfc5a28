package js

import (
	"sort"

	sitter "github.com/smacker/go-tree-sitter"
)

// Span is a half-open byte range [Start, End) in a module's source text.
type Span struct {
	Start uint32
	End   uint32
}

// NodeSpan returns the byte span covered by a node, extended over one
// trailing newline so that removing a whole statement removes its line.
func NodeSpan(node *sitter.Node, src []byte) Span {
	span := Span{Start: node.StartByte(), End: node.EndByte()}
	if int(span.End) < len(src) && src[span.End] == '\n' {
		span.End++
	}
	return span
}

// Splice returns a copy of src with all spans removed. Overlapping or
// adjacent spans are merged first; spans may be given in any order.
func Splice(src []byte, spans []Span) []byte {
	if len(spans) == 0 {
		return src
	}

	sorted := make([]Span, len(spans))
	copy(sorted, spans)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	merged := sorted[:1]
	for _, s := range sorted[1:] {
		last := &merged[len(merged)-1]
		if s.Start <= last.End {
			if s.End > last.End {
				last.End = s.End
			}
			continue
		}
		merged = append(merged, s)
	}

	out := make([]byte, 0, len(src))
	var pos uint32
	for _, s := range merged {
		if s.Start > uint32(len(src)) {
			break
		}
		out = append(out, src[pos:s.Start]...)
		pos = s.End
		if pos > uint32(len(src)) {
			pos = uint32(len(src))
		}
	}
	out = append(out, src[pos:]...)
	return out
}
