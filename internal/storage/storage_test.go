package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/dendrite-go/internal/graph"
	"github.com/Benny93/dendrite-go/internal/history"
)

type storeFactory struct {
	name string
	open func(t *testing.T) GraphStore
}

func storeFactories() []storeFactory {
	return []storeFactory{
		{
			name: "Badger",
			open: func(t *testing.T) GraphStore {
				store, err := OpenBadger(filepath.Join(t.TempDir(), "db"), false)
				require.NoError(t, err)
				t.Cleanup(func() { _ = store.Close() })
				return store
			},
		},
		{
			name: "Memory",
			open: func(t *testing.T) GraphStore {
				return NewMemoryStore()
			},
		},
	}
}

func storedGraph(snapshot string) *graph.Graph {
	g := graph.New(snapshot)
	g.AddNode(&graph.Node{Name: "repo", Kind: graph.NodeFolder})
	g.AddNode(&graph.Node{Name: "repo/scope_tree.py", Kind: graph.NodeFile})
	g.AddNode(&graph.Node{Name: "repo/scope_tree.py/ScopeBuilder", Kind: graph.NodeClass})
	g.AddNode(&graph.Node{Name: "repo/scope_tree.py/build_scope", Kind: graph.NodeFunction})
	g.AddNode(&graph.Node{Name: "repo/walker.py", Kind: graph.NodeFile})
	g.AddEdge(graph.Edge{Kind: graph.EdgeDirectory, Source: "repo", Target: "repo/scope_tree.py"})
	g.AddEdge(graph.Edge{Kind: graph.EdgeDirectory, Source: "repo", Target: "repo/walker.py"})
	g.AddEdge(graph.Edge{Kind: graph.EdgeDefinition, Source: "repo/scope_tree.py", Target: "repo/scope_tree.py/ScopeBuilder"})
	g.AddEdge(graph.Edge{Kind: graph.EdgeDefinition, Source: "repo/scope_tree.py", Target: "repo/scope_tree.py/build_scope"})
	return g
}

func TestSaveAndLoadGraph(t *testing.T) {
	t.Parallel()

	for _, factory := range storeFactories() {
		t.Run(factory.name, func(t *testing.T) {
			t.Parallel()
			store := factory.open(t)
			g := storedGraph("abc123")
			require.NoError(t, store.SaveGraph("abc123", g))

			loaded, err := store.LoadGraph("abc123")
			require.NoError(t, err)
			assert.Equal(t, "abc123", loaded.Snapshot())
			assert.Equal(t, g.NodeCount(), loaded.NodeCount())
			assert.Equal(t, g.EdgeCount(), loaded.EdgeCount())

			want, err := g.Fingerprint()
			require.NoError(t, err)
			got, err := loaded.Fingerprint()
			require.NoError(t, err)
			assert.Equal(t, want, got)

			has, err := store.HasGraph("abc123")
			require.NoError(t, err)
			assert.True(t, has)

			has, err = store.HasGraph("missing")
			require.NoError(t, err)
			assert.False(t, has)

			_, err = store.LoadGraph("missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestSaveGraphIsInsertIfAbsent(t *testing.T) {
	t.Parallel()

	for _, factory := range storeFactories() {
		t.Run(factory.name, func(t *testing.T) {
			t.Parallel()
			store := factory.open(t)
			first := storedGraph("abc123")
			require.NoError(t, store.SaveGraph("abc123", first))

			// A conflicting save must not rewrite the stored graph.
			second := graph.New("abc123")
			second.AddNode(&graph.Node{Name: "repo", Kind: graph.NodeFolder})
			err := store.SaveGraph("abc123", second)
			assert.ErrorIs(t, err, ErrExists)

			loaded, err := store.LoadGraph("abc123")
			require.NoError(t, err)
			want, err := first.Fingerprint()
			require.NoError(t, err)
			got, err := loaded.Fingerprint()
			require.NoError(t, err)
			assert.Equal(t, want, got)
			assert.Equal(t, first.NodeCount(), loaded.NodeCount())
		})
	}
}

func TestListGraphs(t *testing.T) {
	t.Parallel()

	for _, factory := range storeFactories() {
		t.Run(factory.name, func(t *testing.T) {
			t.Parallel()
			store := factory.open(t)
			for _, commit := range []string{"bbb", "aaa", "ccc"} {
				require.NoError(t, store.SaveGraph(commit, storedGraph(commit)))
			}

			commits, err := store.ListGraphs()
			require.NoError(t, err)
			assert.Equal(t, []string{"aaa", "bbb", "ccc"}, commits)
		})
	}
}

func TestCommitLog(t *testing.T) {
	t.Parallel()

	for _, factory := range storeFactories() {
		t.Run(factory.name, func(t *testing.T) {
			t.Parallel()
			store := factory.open(t)
			base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
			for i, hash := range []string{"first", "second", "third"} {
				info := history.CommitInfo{
					Hash:    hash,
					Author:  "Test",
					Summary: "commit " + hash,
					When:    base.Add(time.Duration(i) * time.Hour),
				}
				require.NoError(t, store.SaveCommit(info))
			}
			// Overwriting an existing hash must not duplicate it.
			require.NoError(t, store.SaveCommit(history.CommitInfo{
				Hash:    "second",
				Author:  "Test",
				Summary: "commit second amended",
				When:    base.Add(time.Hour),
			}))

			commits, err := store.ListCommits()
			require.NoError(t, err)
			require.Len(t, commits, 3)
			assert.Equal(t, "third", commits[0].Hash)
			assert.Equal(t, "second", commits[1].Hash)
			assert.Equal(t, "first", commits[2].Hash)
			assert.Equal(t, "commit second amended", commits[1].Summary)
			assert.True(t, commits[0].When.Equal(base.Add(2*time.Hour)))
		})
	}
}

func TestSearchNodes(t *testing.T) {
	t.Parallel()

	for _, factory := range storeFactories() {
		t.Run(factory.name, func(t *testing.T) {
			t.Parallel()
			store := factory.open(t)
			require.NoError(t, store.SaveGraph("abc123", storedGraph("abc123")))

			t.Run("SingleToken", func(t *testing.T) {
				results, err := store.SearchNodes("abc123", "scope", nil)
				require.NoError(t, err)
				names := resultNames(results)
				assert.Equal(t, []string{
					"repo/scope_tree.py",
					"repo/scope_tree.py/ScopeBuilder",
					"repo/scope_tree.py/build_scope",
				}, names)
			})

			t.Run("MultiTokenIntersection", func(t *testing.T) {
				results, err := store.SearchNodes("abc123", "build scope", nil)
				require.NoError(t, err)
				require.Len(t, results, 1)
				assert.Equal(t, "repo/scope_tree.py/build_scope", results[0].Name)
				assert.Equal(t, graph.NodeFunction, results[0].Kind)
			})

			t.Run("CamelCaseQuery", func(t *testing.T) {
				results, err := store.SearchNodes("abc123", "ScopeBuilder", nil)
				require.NoError(t, err)
				require.Len(t, results, 1)
				assert.Equal(t, "repo/scope_tree.py/ScopeBuilder", results[0].Name)
			})

			t.Run("KindFilter", func(t *testing.T) {
				results, err := store.SearchNodes("abc123", "scope", []graph.NodeKind{graph.NodeClass})
				require.NoError(t, err)
				require.Len(t, results, 1)
				assert.Equal(t, graph.NodeClass, results[0].Kind)
			})

			t.Run("NoMatches", func(t *testing.T) {
				results, err := store.SearchNodes("abc123", "nonexistent", nil)
				require.NoError(t, err)
				assert.Empty(t, results)
			})

			t.Run("UnknownCommit", func(t *testing.T) {
				results, err := store.SearchNodes("0000000", "scope", nil)
				require.NoError(t, err)
				assert.Empty(t, results)
			})
		})
	}
}

func resultNames(results []SearchResult) []string {
	names := make([]string, len(results))
	for i, r := range results {
		names[i] = r.Name
	}
	return names
}

func TestMetaRoundtrip(t *testing.T) {
	t.Parallel()

	for _, factory := range storeFactories() {
		t.Run(factory.name, func(t *testing.T) {
			t.Parallel()
			store := factory.open(t)

			_, err := store.LoadMeta()
			assert.ErrorIs(t, err, ErrNotFound)

			meta := Meta{
				RepoPath:  "/tmp/repo",
				Branch:    "main",
				CreatedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
			}
			require.NoError(t, store.SaveMeta(meta))

			loaded, err := store.LoadMeta()
			require.NoError(t, err)
			assert.Equal(t, meta.RepoPath, loaded.RepoPath)
			assert.Equal(t, meta.Branch, loaded.Branch)
			assert.True(t, meta.CreatedAt.Equal(loaded.CreatedAt))
		})
	}
}

func TestBadgerPersistsAcrossReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "db")
	store, err := OpenBadger(path, false)
	require.NoError(t, err)
	g := storedGraph("abc123")
	require.NoError(t, store.SaveGraph("abc123", g))
	require.NoError(t, store.SaveCommit(history.CommitInfo{
		Hash: "abc123",
		When: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, store.Close())

	reopened, err := OpenBadger(path, false)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.LoadGraph("abc123")
	require.NoError(t, err)
	assert.Equal(t, g.NodeCount(), loaded.NodeCount())

	commits, err := reopened.ListCommits()
	require.NoError(t, err)
	require.Len(t, commits, 1)
	assert.Equal(t, "abc123", commits[0].Hash)

	results, err := reopened.SearchNodes("abc123", "walker", nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "repo/walker.py", results[0].Name)
}

func TestBadgerIgnoresOtherSchemaVersions(t *testing.T) {
	t.Parallel()

	// Plant a graph key under a schema version this build never uses.
	path := filepath.Join(t.TempDir(), "db")
	db, err := badger.Open(badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	err = db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("g:0:oldcommit"), []byte("stale"))
	})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	store, err := OpenBadger(path, false)
	require.NoError(t, err)
	defer store.Close()

	has, err := store.HasGraph("oldcommit")
	require.NoError(t, err)
	assert.False(t, has)

	_, err = store.LoadGraph("oldcommit")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.SaveGraph("newcommit", storedGraph("newcommit")))
	commits, err := store.ListGraphs()
	require.NoError(t, err)
	assert.Equal(t, []string{"newcommit"}, commits)
}

func TestResolveCommit(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	for _, commit := range []string{"abc1234", "abd9999", "fff0000"} {
		require.NoError(t, store.SaveGraph(commit, storedGraph(commit)))
	}

	t.Run("ExactMatch", func(t *testing.T) {
		got, err := ResolveCommit(store, "abc1234")
		require.NoError(t, err)
		assert.Equal(t, "abc1234", got)
	})

	t.Run("UniquePrefix", func(t *testing.T) {
		got, err := ResolveCommit(store, "f")
		require.NoError(t, err)
		assert.Equal(t, "fff0000", got)
	})

	t.Run("AmbiguousPrefix", func(t *testing.T) {
		_, err := ResolveCommit(store, "ab")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ambiguous")
	})

	t.Run("NoMatch", func(t *testing.T) {
		_, err := ResolveCommit(store, "dead")
		require.Error(t, err)
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := ResolveCommit(store, "")
		require.Error(t, err)
	})
}
