package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalNames(t *testing.T) {
	t.Parallel()

	t.Run("Join", func(t *testing.T) {
		assert.Equal(t, "repo", Join("", "repo"))
		assert.Equal(t, "repo/a.py", Join("repo", "a.py"))
		assert.Equal(t, "repo/a.py/f", Join("repo/a.py", "f"))
	})

	t.Run("Tail", func(t *testing.T) {
		assert.Equal(t, "f", Tail("repo/a.py/f"))
		assert.Equal(t, "repo", Tail("repo"))
	})

	t.Run("Parent", func(t *testing.T) {
		assert.Equal(t, "repo/a.py", Parent("repo/a.py/f"))
		assert.Equal(t, "", Parent("repo"))
	})

	t.Run("Segments", func(t *testing.T) {
		assert.Equal(t, []string{"repo", "a.py", "f"}, Segments("repo/a.py/f"))
		assert.Nil(t, Segments(""))
	})

	t.Run("HasSuffixSegments", func(t *testing.T) {
		assert.True(t, HasSuffixSegments("a/b/c", []string{"b", "c"}))
		assert.True(t, HasSuffixSegments("a/b/c", []string{"a", "b", "c"}))
		// Matching is per segment, not per substring.
		assert.False(t, HasSuffixSegments("a/ab/c", []string{"b", "c"}))
		assert.False(t, HasSuffixSegments("b/c", []string{"a", "b", "c"}))
		assert.False(t, HasSuffixSegments("a/b/c", nil))
	})
}

func TestNodeTail(t *testing.T) {
	t.Parallel()

	n := &Node{Name: "repo/pkg/models.py/User/save", Kind: NodeFunction}
	assert.Equal(t, "save", n.Tail())
}

func TestIsControlKind(t *testing.T) {
	t.Parallel()

	for _, k := range []NodeKind{NodeIf, NodeFor, NodeWhile, NodeTry} {
		assert.True(t, IsControlKind(k), string(k))
	}
	for _, k := range []NodeKind{NodeFolder, NodeFile, NodeClass, NodeFunction, NodeVariable, NodeLambda} {
		assert.False(t, IsControlKind(k), string(k))
	}
}

func TestParseNodeKind(t *testing.T) {
	t.Parallel()

	t.Run("Known", func(t *testing.T) {
		for _, k := range AllNodeKinds() {
			got, ok := ParseNodeKind(string(k))
			assert.True(t, ok, string(k))
			assert.Equal(t, k, got)
		}
	})

	t.Run("NormalizesCaseAndSpace", func(t *testing.T) {
		got, ok := ParseNodeKind("  Function ")
		assert.True(t, ok)
		assert.Equal(t, NodeFunction, got)
	})

	t.Run("Unknown", func(t *testing.T) {
		_, ok := ParseNodeKind("module")
		assert.False(t, ok)
	})
}

func TestParseEdgeKind(t *testing.T) {
	t.Parallel()

	got, ok := ParseEdgeKind("IMPORT")
	assert.True(t, ok)
	assert.Equal(t, EdgeImport, got)

	_, ok = ParseEdgeKind("depends")
	assert.False(t, ok)
}
