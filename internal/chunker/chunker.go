// Package chunker splits oversized file content into bounded-size segments
// at heuristic structural boundaries. It treats content as opaque text: the
// boundary markers are best-effort keywords spanning several source styles,
// not a parse of the language.
package chunker

import "strings"

const (
	// DefaultMaxChunkSize is the largest text segment submitted as one
	// analysis unit.
	DefaultMaxChunkSize = 8000

	// DefaultHeaderWindow is how many leading lines are inspected for
	// import/include-like context shared across chunks.
	DefaultHeaderWindow = 50
)

// boundaryMarkers start a new fragment when found at the beginning of a
// line (after indentation). Covers the common declaration keywords of Go,
// Python, JS/TS, Java/C#, Rust, Ruby and C-family sources.
var boundaryMarkers = []string{
	"func ",
	"def ",
	"class ",
	"function ",
	"fn ",
	"pub fn ",
	"impl ",
	"interface ",
	"public ",
	"private ",
	"protected ",
	"static ",
	"module ",
	"sub ",
}

// headerMarkers identify import/include-like lines for the shared context
// header.
var headerMarkers = []string{
	"import ",
	"import(",
	"import (",
	"from ",
	"#include",
	"include ",
	"use ",
	"using ",
	"require ",
	"require(",
	"package ",
	"namespace ",
}

// Chunk is one contiguous text segment of a file plus the shared context
// header. Chunks are ephemeral: they are an implementation detail of
// analysis and are never persisted.
type Chunk struct {
	Text          string
	Index         int
	Total         int
	ContextHeader string
}

// Chunker splits content into chunks no larger than maxSize.
type Chunker struct {
	maxSize      int
	headerWindow int
}

// New creates a Chunker. Non-positive sizes fall back to the defaults.
func New(maxSize int) *Chunker {
	if maxSize <= 0 {
		maxSize = DefaultMaxChunkSize
	}
	return &Chunker{
		maxSize:      maxSize,
		headerWindow: DefaultHeaderWindow,
	}
}

// MaxSize returns the configured chunk size bound.
func (c *Chunker) MaxSize() int {
	return c.maxSize
}

// Split returns the analysis units for content, in original order. Content
// within the size bound comes back as a single chunk equal to the input;
// otherwise fragments delimited by boundary markers are greedily packed into
// chunks not exceeding the bound, and concatenating the chunk texts
// reproduces the input exactly.
func (c *Chunker) Split(content string) []Chunk {
	if len(content) <= c.maxSize {
		return []Chunk{{Text: content, Index: 0, Total: 1}}
	}

	header := c.contextHeader(content)

	var texts []string
	var cur strings.Builder
	for _, frag := range c.fragments(content) {
		if cur.Len() > 0 && cur.Len()+len(frag) > c.maxSize {
			texts = append(texts, cur.String())
			cur.Reset()
		}
		if len(frag) > c.maxSize {
			// A single fragment can exceed the bound (no markers, or one
			// giant definition). Hard-split at raw length boundaries.
			if cur.Len() > 0 {
				texts = append(texts, cur.String())
				cur.Reset()
			}
			for len(frag) > c.maxSize {
				texts = append(texts, frag[:c.maxSize])
				frag = frag[c.maxSize:]
			}
			if frag != "" {
				cur.WriteString(frag)
			}
			continue
		}
		cur.WriteString(frag)
	}
	if cur.Len() > 0 {
		texts = append(texts, cur.String())
	}

	chunks := make([]Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = Chunk{
			Text:          text,
			Index:         i,
			Total:         len(texts),
			ContextHeader: header,
		}
	}
	return chunks
}

// fragments splits content at boundary-marker lines, preserving every byte:
// joining the fragments yields content unchanged.
func (c *Chunker) fragments(content string) []string {
	lines := strings.SplitAfter(content, "\n")

	var frags []string
	var cur strings.Builder
	for _, line := range lines {
		if cur.Len() > 0 && isBoundary(line) {
			frags = append(frags, cur.String())
			cur.Reset()
		}
		cur.WriteString(line)
	}
	if cur.Len() > 0 {
		frags = append(frags, cur.String())
	}
	return frags
}

func isBoundary(line string) bool {
	trimmed := strings.TrimLeft(line, " \t")
	for _, marker := range boundaryMarkers {
		if strings.HasPrefix(trimmed, marker) {
			return true
		}
	}
	return false
}

// contextHeader harvests import/include-like lines from the file's leading
// window so every chunk carries the same minimal context.
func (c *Chunker) contextHeader(content string) string {
	lines := strings.Split(content, "\n")
	if len(lines) > c.headerWindow {
		lines = lines[:c.headerWindow]
	}

	var header []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		for _, marker := range headerMarkers {
			if strings.HasPrefix(trimmed, marker) {
				header = append(header, line)
				break
			}
		}
	}
	return strings.Join(header, "\n")
}
