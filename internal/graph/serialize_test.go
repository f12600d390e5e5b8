package graph

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalDeterministic(t *testing.T) {
	t.Parallel()

	// Same structure, different insertion orders.
	a := New("snap")
	a.AddNode(&Node{Name: "repo", Kind: NodeFolder})
	a.AddNode(&Node{Name: "repo/a.py", Kind: NodeFile})
	a.AddNode(&Node{Name: "repo/b.py", Kind: NodeFile})
	a.AddEdge(Edge{Kind: EdgeDirectory, Source: "repo", Target: "repo/a.py"})
	a.AddEdge(Edge{Kind: EdgeDirectory, Source: "repo", Target: "repo/b.py"})
	a.AddEdge(Edge{Kind: EdgeImport, Source: "repo/a.py", Target: "repo/b.py"})

	b := New("snap")
	b.AddNode(&Node{Name: "repo/b.py", Kind: NodeFile})
	b.AddNode(&Node{Name: "repo", Kind: NodeFolder})
	b.AddNode(&Node{Name: "repo/a.py", Kind: NodeFile})
	b.AddEdge(Edge{Kind: EdgeImport, Source: "repo/a.py", Target: "repo/b.py"})
	b.AddEdge(Edge{Kind: EdgeDirectory, Source: "repo", Target: "repo/b.py"})
	b.AddEdge(Edge{Kind: EdgeDirectory, Source: "repo", Target: "repo/a.py"})

	dataA, err := a.Marshal()
	require.NoError(t, err)
	dataB, err := b.Marshal()
	require.NoError(t, err)
	assert.Equal(t, string(dataA), string(dataB))
}

func TestRoundtrip(t *testing.T) {
	t.Parallel()

	g := New("snap")
	g.AddNode(&Node{Name: "repo", Kind: NodeFolder})
	g.AddNode(&Node{Name: "repo/a.py", Kind: NodeFile})
	g.AddNode(&Node{Name: "repo/a.py/f", Kind: NodeFunction, Tree: nil})
	g.AddEdge(Edge{Kind: EdgeDirectory, Source: "repo", Target: "repo/a.py"})
	g.AddEdge(Edge{Kind: EdgeDefinition, Source: "repo/a.py", Target: "repo/a.py/f"})
	g.AddEdge(Edge{Kind: EdgeVariable, Source: "repo/a.py/f", Target: "repo/a.py"})
	g.AddEdge(Edge{Kind: EdgeVariable, Source: "repo/a.py/f", Target: "repo/a.py"})

	data, err := g.Marshal()
	require.NoError(t, err)
	loaded, err := Unmarshal(data)
	require.NoError(t, err)

	assert.Equal(t, "snap", loaded.Snapshot())
	assert.Equal(t, g.NodeCount(), loaded.NodeCount())
	// Parallel Variable edges survive the roundtrip.
	assert.Equal(t, g.EdgeCount(), loaded.EdgeCount())

	fn := loaded.Node("repo/a.py/f")
	require.NotNil(t, fn)
	assert.Equal(t, NodeFunction, fn.Kind)
	assert.Nil(t, fn.Tree)

	want, err := g.Fingerprint()
	require.NoError(t, err)
	got, err := loaded.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestMarshalPayload(t *testing.T) {
	t.Parallel()

	g := New("snap")
	g.AddNode(&Node{Name: "repo", Kind: NodeFolder})

	data, err := g.Marshal()
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, SchemaVersion, payload["schema_version"])
	assert.Equal(t, "snap", payload["snapshot"])
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	build := func(snapshot string, extraNode bool) *Graph {
		g := New(snapshot)
		g.AddNode(&Node{Name: "repo", Kind: NodeFolder})
		g.AddNode(&Node{Name: "repo/a.py", Kind: NodeFile})
		g.AddEdge(Edge{Kind: EdgeDirectory, Source: "repo", Target: "repo/a.py"})
		if extraNode {
			g.AddNode(&Node{Name: "repo/b.py", Kind: NodeFile})
		}
		return g
	}

	t.Run("EqualGraphsMatch", func(t *testing.T) {
		a, err := build("snap", false).Fingerprint()
		require.NoError(t, err)
		b, err := build("snap", false).Fingerprint()
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("SnapshotChangesFingerprint", func(t *testing.T) {
		a, err := build("one", false).Fingerprint()
		require.NoError(t, err)
		b, err := build("two", false).Fingerprint()
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("StructuralIgnoresSnapshot", func(t *testing.T) {
		a, err := build("one", false).StructuralFingerprint()
		require.NoError(t, err)
		b, err := build("two", false).StructuralFingerprint()
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("StructuralSeesStructure", func(t *testing.T) {
		a, err := build("one", false).StructuralFingerprint()
		require.NoError(t, err)
		b, err := build("one", true).StructuralFingerprint()
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})
}
