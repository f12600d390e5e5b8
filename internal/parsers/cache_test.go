package parsers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingParser struct {
	inner Parser
	calls int
}

func (p *countingParser) Parse(ctx context.Context, content []byte) (*Node, error) {
	p.calls++
	return p.inner.Parse(ctx, content)
}

func (p *countingParser) Language() string {
	return p.inner.Language()
}

func TestCachingParser(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("ReusesTreeForSameContent", func(t *testing.T) {
		counting := &countingParser{inner: NewPythonParser()}
		cached, err := NewCachingParser(counting, 8)
		require.NoError(t, err)

		content := []byte("def f():\n    pass\n")

		first, err := cached.Parse(ctx, content)
		require.NoError(t, err)
		second, err := cached.Parse(ctx, content)
		require.NoError(t, err)

		assert.Same(t, first, second)
		assert.Equal(t, 1, counting.calls)
	})

	t.Run("DistinguishesContent", func(t *testing.T) {
		counting := &countingParser{inner: NewPythonParser()}
		cached, err := NewCachingParser(counting, 8)
		require.NoError(t, err)

		_, err = cached.Parse(ctx, []byte("x = 1\n"))
		require.NoError(t, err)
		_, err = cached.Parse(ctx, []byte("y = 2\n"))
		require.NoError(t, err)

		assert.Equal(t, 2, counting.calls)
	})

	t.Run("CachesParseFailures", func(t *testing.T) {
		counting := &countingParser{inner: NewPythonParser()}
		cached, err := NewCachingParser(counting, 8)
		require.NoError(t, err)

		broken := []byte("def broken(:\n")

		_, err = cached.Parse(ctx, broken)
		require.True(t, errors.Is(err, ErrParse))
		_, err = cached.Parse(ctx, broken)
		require.True(t, errors.Is(err, ErrParse))

		assert.Equal(t, 1, counting.calls)
	})

	t.Run("Language", func(t *testing.T) {
		cached, err := NewCachingParser(NewPythonParser(), 8)
		require.NoError(t, err)
		assert.Equal(t, "python", cached.Language())
	})
}
