package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_NoOpUnderLimit(t *testing.T) {
	content := "package main\n\nfunc main() {}\n"
	c := New(1000)

	chunks := c.Split(content)

	require.Len(t, chunks, 1)
	assert.Equal(t, content, chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, 1, chunks[0].Total)
}

func TestSplit_NoOpAtExactLimit(t *testing.T) {
	content := strings.Repeat("a", 64)
	chunks := New(64).Split(content)

	require.Len(t, chunks, 1)
	assert.Equal(t, content, chunks[0].Text)
}

func TestSplit_CoverageAndBounds(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("func handler() {\n\tdoWork()\n\tdoMoreWork()\n}\n\n")
	}
	content := b.String()
	c := New(200)

	chunks := c.Split(content)

	require.Greater(t, len(chunks), 1)
	var joined strings.Builder
	for i, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Text), 200)
		assert.Equal(t, i, ch.Index)
		assert.Equal(t, len(chunks), ch.Total)
		joined.WriteString(ch.Text)
	}
	assert.Equal(t, content, joined.String())
}

func TestSplit_FallbackWithoutMarkers(t *testing.T) {
	// No boundary keywords at all: splitter must still produce well-formed
	// chunks at raw length boundaries.
	content := strings.Repeat("x", 1050)
	chunks := New(100).Split(content)

	require.Len(t, chunks, 11)
	var joined strings.Builder
	for _, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Text), 100)
		joined.WriteString(ch.Text)
	}
	assert.Equal(t, content, joined.String())
}

func TestSplit_PreservesOrder(t *testing.T) {
	content := "func first() {\n\t// aaaa\n}\n" +
		"func second() {\n\t// bbbb\n}\n" +
		"func third() {\n\t// cccc\n}\n"
	chunks := New(30).Split(content)

	require.Greater(t, len(chunks), 1)
	joined := ""
	for _, ch := range chunks {
		joined += ch.Text
	}
	assert.Equal(t, content, joined)
	assert.Less(t, strings.Index(joined, "first"), strings.Index(joined, "second"))
	assert.Less(t, strings.Index(joined, "second"), strings.Index(joined, "third"))
}

func TestSplit_ContextHeader(t *testing.T) {
	content := "package demo\n" +
		"import \"fmt\"\n" +
		"import \"os\"\n\n" +
		strings.Repeat("func f() {\n\tfmt.Println(1)\n}\n", 30)
	chunks := New(150).Split(content)

	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		assert.Contains(t, ch.ContextHeader, `import "fmt"`)
		assert.Contains(t, ch.ContextHeader, `import "os"`)
		assert.Contains(t, ch.ContextHeader, "package demo")
	}
}

func TestSplit_MixedSourceStyles(t *testing.T) {
	content := "from os import path\n\n" +
		"class Loader:\n    def load(self):\n        pass\n\n" +
		"def main():\n    Loader().load()\n"
	chunks := New(40).Split(content)

	require.Greater(t, len(chunks), 1)
	joined := ""
	for _, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Text), 40)
		joined += ch.Text
	}
	assert.Equal(t, content, joined)
}

func TestSplit_EmptyContent(t *testing.T) {
	chunks := New(100).Split("")
	require.Len(t, chunks, 1)
	assert.Equal(t, "", chunks[0].Text)
}
