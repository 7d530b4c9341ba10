// Package chunker splits extracted text into overlapping, bounded-size
// spans suitable for embedding.
package chunker

import "strings"

// Span is one chunk of the input: the half-open byte range [Start, End)
// and the text it covers.
type Span struct {
	Start int
	End   int
	Text  string
}

// Chunker produces overlapping character windows over raw text.
type Chunker struct {
	size    int
	overlap int
	minSize int
}

// New creates a chunker. Overlap must be smaller than size; values are
// clamped to keep the window advancing.
func New(size, overlap, minSize int) *Chunker {
	if size <= 0 {
		size = 500
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 2
	}
	if minSize < 0 {
		minSize = 0
	}
	return &Chunker{size: size, overlap: overlap, minSize: minSize}
}

// Split covers text with ordered spans. Consecutive spans overlap by
// exactly the configured overlap, except possibly the final pair, which
// may overlap more when the tail is short. Trailing text is never dropped.
// Input at or below the minimum size yields a single span; empty or
// whitespace-only input yields none.
func (c *Chunker) Split(text string) []Span {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	n := len(text)
	if n <= c.minSize || n <= c.size {
		return []Span{{Start: 0, End: n, Text: text}}
	}

	var spans []Span
	start := 0
	for {
		end := start + c.size
		if end >= n {
			spans = append(spans, Span{Start: start, End: n, Text: text[start:n]})
			break
		}
		spans = append(spans, Span{Start: start, End: end, Text: text[start:end]})
		start = end - c.overlap
	}
	return spans
}

// Reassemble concatenates spans back into the original text by trimming
// each span's leading overlap with its predecessor. Inverse of Split for
// spans produced by it.
func Reassemble(spans []Span) string {
	var b strings.Builder
	prevEnd := 0
	for _, s := range spans {
		skip := prevEnd - s.Start
		if skip < 0 {
			skip = 0
		}
		if skip < len(s.Text) {
			b.WriteString(s.Text[skip:])
		}
		prevEnd = s.End
	}
	return b.String()
}
