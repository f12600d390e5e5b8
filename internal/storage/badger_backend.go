package storage

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/dgraph-io/badger/v4"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Benny93/dendrite-go/internal/graph"
	"github.com/Benny93/dendrite-go/internal/history"
)

// Key layout. Graph and token keys embed the serialization schema
// version, so entries written under an older schema are invisible
// rather than corrupt.
//
//	g:<version>:<commit>          gzip-compressed graph JSON
//	c:<commit>                    commit metadata JSON
//	t:<version>:<commit>:<token>  JSON list of node names containing token
//	meta                          repository descriptor JSON
const (
	graphKeyPrefix  = "g:"
	commitKeyPrefix = "c:"
	tokenKeyPrefix  = "t:"
	metaKey         = "meta"
)

// decodedGraphCacheSize bounds how many decoded graphs LoadGraph keeps
// in memory. Analyses re-read the same commits repeatedly.
const decodedGraphCacheSize = 32

func graphKey(commit string) []byte {
	return []byte(graphKeyPrefix + graph.SchemaVersion + ":" + commit)
}

func commitKey(hash string) []byte {
	return []byte(commitKeyPrefix + hash)
}

func tokenKey(commit, token string) []byte {
	return []byte(tokenKeyPrefix + graph.SchemaVersion + ":" + commit + ":" + token)
}

// BadgerStore is a GraphStore backed by an embedded badger database.
type BadgerStore struct {
	db    *badger.DB
	cache *lru.Cache[string, *graph.Graph]
}

var _ GraphStore = (*BadgerStore)(nil)

// OpenBadger opens or creates a badger-backed store at path. A read-only
// store can share the directory with a separate writer process.
func OpenBadger(path string, readOnly bool) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).
		WithNumCompactors(2).
		WithNumMemtables(5).
		WithLoggingLevel(badger.ERROR) // Suppress INFO/WARNING logs

	if readOnly {
		opts = opts.WithReadOnly(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger DB at %s: %w", path, err)
	}
	cache, err := lru.New[string, *graph.Graph](decodedGraphCacheSize)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating graph cache: %w", err)
	}
	return &BadgerStore{db: db, cache: cache}, nil
}

// SaveGraph stores the commit's graph and its search token index in one
// transaction. The payload is deterministic JSON, gzip-compressed.
func (s *BadgerStore) SaveGraph(commit string, g *graph.Graph) error {
	data, err := g.Marshal()
	if err != nil {
		return fmt.Errorf("encoding graph for %s: %w", commit, err)
	}
	compressed, err := gzipBytes(data)
	if err != nil {
		return fmt.Errorf("compressing graph for %s: %w", commit, err)
	}

	key := graphKey(commit)
	err = s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return ErrExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(key, compressed); err != nil {
			return err
		}
		return indexTokens(txn, commit, g)
	})
	if errors.Is(err, ErrExists) {
		return ErrExists
	}
	if err != nil {
		return fmt.Errorf("saving graph for %s: %w", commit, err)
	}
	return nil
}

// indexTokens writes one key per search token found in the graph's node
// names, each holding the sorted list of matching names.
func indexTokens(txn *badger.Txn, commit string, g *graph.Graph) error {
	byToken := make(map[string][]string)
	for _, n := range g.Nodes() {
		for _, token := range tokenize(n.Name) {
			byToken[token] = append(byToken[token], n.Name)
		}
	}
	for token, names := range byToken {
		sort.Strings(names)
		value, err := json.Marshal(names)
		if err != nil {
			return err
		}
		if err := txn.Set(tokenKey(commit, token), value); err != nil {
			return err
		}
	}
	return nil
}

// LoadGraph returns the commit's graph, decoding at most once per commit
// while the entry stays cached.
func (s *BadgerStore) LoadGraph(commit string) (*graph.Graph, error) {
	if g, ok := s.cache.Get(commit); ok {
		return g, nil
	}

	var compressed []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(graphKey(commit))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			compressed = append([]byte(nil), val...)
			return nil
		})
	})
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading graph for %s: %w", commit, err)
	}

	data, err := gunzipBytes(compressed)
	if err != nil {
		return nil, fmt.Errorf("decompressing graph for %s: %w", commit, err)
	}
	g, err := graph.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("decoding graph for %s: %w", commit, err)
	}
	s.cache.Add(commit, g)
	return g, nil
}

// HasGraph reports whether the commit has a stored graph.
func (s *BadgerStore) HasGraph(commit string) (bool, error) {
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(graphKey(commit))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("checking graph for %s: %w", commit, err)
	}
	return found, nil
}

// ListGraphs returns all commit ids stored under the current schema
// version. Badger iterates keys in sorted order already.
func (s *BadgerStore) ListGraphs() ([]string, error) {
	prefix := []byte(graphKeyPrefix + graph.SchemaVersion + ":")
	var commits []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			commits = append(commits, string(key[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing graphs: %w", err)
	}
	return commits, nil
}

// SaveCommit records commit metadata, overwriting any previous entry.
func (s *BadgerStore) SaveCommit(info history.CommitInfo) error {
	value, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encoding commit %s: %w", info.Hash, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(commitKey(info.Hash), value)
	})
	if err != nil {
		return fmt.Errorf("saving commit %s: %w", info.Hash, err)
	}
	return nil
}

// ListCommits returns recorded commit metadata ordered newest first.
func (s *BadgerStore) ListCommits() ([]history.CommitInfo, error) {
	var commits []history.CommitInfo
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(commitKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var info history.CommitInfo
				if err := json.Unmarshal(val, &info); err != nil {
					return err
				}
				commits = append(commits, info)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing commits: %w", err)
	}

	sort.Slice(commits, func(i, j int) bool {
		if !commits[i].When.Equal(commits[j].When) {
			return commits[i].When.After(commits[j].When)
		}
		return commits[i].Hash < commits[j].Hash
	})
	return commits, nil
}

// SearchNodes intersects the token index entries for every query token,
// then resolves node kinds through the decoded graph.
func (s *BadgerStore) SearchNodes(commit, query string, kinds []graph.NodeKind) ([]SearchResult, error) {
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return nil, nil
	}

	var matched map[string]bool
	err := s.db.View(func(txn *badger.Txn) error {
		for _, token := range tokens {
			item, err := txn.Get(tokenKey(commit, token))
			if errors.Is(err, badger.ErrKeyNotFound) {
				matched = nil
				return nil
			}
			if err != nil {
				return err
			}
			var names []string
			err = item.Value(func(val []byte) error {
				return json.Unmarshal(val, &names)
			})
			if err != nil {
				return err
			}

			if matched == nil {
				matched = make(map[string]bool, len(names))
				for _, name := range names {
					matched[name] = true
				}
				continue
			}
			next := make(map[string]bool)
			for _, name := range names {
				if matched[name] {
					next[name] = true
				}
			}
			matched = next
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("searching nodes of %s: %w", commit, err)
	}
	if len(matched) == 0 {
		return nil, nil
	}

	g, err := s.LoadGraph(commit)
	if err != nil {
		return nil, err
	}
	return collectResults(g, matched, kinds), nil
}

// collectResults filters matched names by kind and returns them sorted.
func collectResults(g *graph.Graph, matched map[string]bool, kinds []graph.NodeKind) []SearchResult {
	var allowed map[graph.NodeKind]bool
	if len(kinds) > 0 {
		allowed = make(map[graph.NodeKind]bool, len(kinds))
		for _, k := range kinds {
			allowed[k] = true
		}
	}

	names := make([]string, 0, len(matched))
	for name := range matched {
		names = append(names, name)
	}
	sort.Strings(names)

	var results []SearchResult
	for _, name := range names {
		node := g.Node(name)
		if node == nil {
			continue
		}
		if allowed != nil && !allowed[node.Kind] {
			continue
		}
		results = append(results, SearchResult{Name: node.Name, Kind: node.Kind})
	}
	return results
}

// SaveMeta stores the repository descriptor.
func (s *BadgerStore) SaveMeta(meta Meta) error {
	value, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encoding meta: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(metaKey), value)
	})
	if err != nil {
		return fmt.Errorf("saving meta: %w", err)
	}
	return nil
}

// LoadMeta returns the repository descriptor, or ErrNotFound.
func (s *BadgerStore) LoadMeta() (Meta, error) {
	var meta Meta
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(metaKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		})
	})
	if errors.Is(err, ErrNotFound) {
		return Meta{}, ErrNotFound
	}
	if err != nil {
		return Meta{}, fmt.Errorf("loading meta: %w", err)
	}
	return meta, nil
}

// Close flushes and closes the underlying database.
func (s *BadgerStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing badger DB: %w", err)
	}
	return nil
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gunzipBytes(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
