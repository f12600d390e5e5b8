package parsers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachingParser wraps a Parser with a content-addressed LRU cache. Snapshots
// of the same repository share most file contents, so repeated parses of an
// unchanged file are served from memory. Parse errors are cached too, which
// keeps broken files cheap across snapshots.
type CachingParser struct {
	parser Parser
	cache  *lru.Cache[string, cachedParse]
}

type cachedParse struct {
	tree *Node
	err  error
}

// NewCachingParser wraps parser with an LRU of the given size.
func NewCachingParser(parser Parser, size int) (*CachingParser, error) {
	cache, err := lru.New[string, cachedParse](size)
	if err != nil {
		return nil, err
	}
	return &CachingParser{parser: parser, cache: cache}, nil
}

// Language returns the wrapped parser's language.
func (p *CachingParser) Language() string {
	return p.parser.Language()
}

// Parse returns the cached tree for content if one exists, parsing and
// recording it otherwise. Cached trees are immutable and shared between
// callers.
func (p *CachingParser) Parse(ctx context.Context, content []byte) (*Node, error) {
	sum := sha256.Sum256(content)
	key := hex.EncodeToString(sum[:])

	if hit, ok := p.cache.Get(key); ok {
		return hit.tree, hit.err
	}

	tree, err := p.parser.Parse(ctx, content)
	if err == nil || errorCacheable(err) {
		p.cache.Add(key, cachedParse{tree: tree, err: err})
	}
	return tree, err
}

// errorCacheable reports whether a parse error is a property of the content
// itself rather than of the call, such as a cancelled context.
func errorCacheable(err error) bool {
	return err != nil &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}
