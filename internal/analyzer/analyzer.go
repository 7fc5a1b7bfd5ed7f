// Package analyzer issues per-chunk analysis requests against a remote
// completion endpoint and converts every reply, however malformed, into a
// classified Outcome. Nothing in this package panics across its boundary or
// returns an unhandled error to the traversal loop.
package analyzer

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/codescan-mcp/pkg/types"
)

// Request is one chunk analysis unit.
type Request struct {
	FilePath      string
	ChunkText     string
	ContextHeader string
	ChunkIndex    int
	ChunkTotal    int
}

// Client issues one analysis request per chunk. Implementations hold no
// persistent state between calls and always terminate in exactly one
// Outcome.
type Client interface {
	Analyze(ctx context.Context, req Request) types.Outcome
	Close() error
}

// outcomeCache remembers successful outcomes by chunk content hash so
// identical chunks (vendored copies, unchanged re-chunks) skip the
// endpoint. Failures are never cached.
type outcomeCache struct {
	lru *lru.Cache[string, types.Outcome]
}

func newOutcomeCache(maxLen int) *outcomeCache {
	if maxLen <= 0 {
		return nil
	}
	cache, err := lru.New[string, types.Outcome](maxLen)
	if err != nil {
		return nil
	}
	return &outcomeCache{lru: cache}
}

// get returns a copy of a cached outcome; the issue slice is duplicated so
// caller mutations cannot pollute the cache.
func (c *outcomeCache) get(key string) (types.Outcome, bool) {
	if c == nil {
		return types.Outcome{}, false
	}
	out, ok := c.lru.Get(key)
	if !ok {
		return types.Outcome{}, false
	}
	issues := make([]types.Issue, len(out.Issues))
	copy(issues, out.Issues)
	return types.Success(issues), true
}

func (c *outcomeCache) set(key string, out types.Outcome) {
	if c == nil || !out.OK() {
		return
	}
	c.lru.Add(key, out)
}
