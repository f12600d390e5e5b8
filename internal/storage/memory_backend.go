package storage

import (
	"sort"
	"sync"

	"github.com/Benny93/dendrite-go/internal/graph"
	"github.com/Benny93/dendrite-go/internal/history"
)

// MemoryStore is an in-memory GraphStore for testing. It holds the same
// marshaled payloads a badger store would, so both backends agree on what
// "stored" means.
type MemoryStore struct {
	mu      sync.RWMutex
	graphs  map[string][]byte
	tokens  map[string]map[string][]string // commit -> token -> node names
	commits map[string]history.CommitInfo
	meta    *Meta
}

var _ GraphStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		graphs:  make(map[string][]byte),
		tokens:  make(map[string]map[string][]string),
		commits: make(map[string]history.CommitInfo),
	}
}

// SaveGraph implements GraphStore.
func (m *MemoryStore) SaveGraph(commit string, g *graph.Graph) error {
	data, err := g.Marshal()
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.graphs[commit]; ok {
		return ErrExists
	}
	m.graphs[commit] = data

	byToken := make(map[string][]string)
	for _, n := range g.Nodes() {
		for _, token := range tokenize(n.Name) {
			byToken[token] = append(byToken[token], n.Name)
		}
	}
	m.tokens[commit] = byToken
	return nil
}

// LoadGraph implements GraphStore.
func (m *MemoryStore) LoadGraph(commit string) (*graph.Graph, error) {
	m.mu.RLock()
	data, ok := m.graphs[commit]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return graph.Unmarshal(data)
}

// HasGraph implements GraphStore.
func (m *MemoryStore) HasGraph(commit string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.graphs[commit]
	return ok, nil
}

// ListGraphs implements GraphStore.
func (m *MemoryStore) ListGraphs() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	commits := make([]string, 0, len(m.graphs))
	for commit := range m.graphs {
		commits = append(commits, commit)
	}
	sort.Strings(commits)
	return commits, nil
}

// SaveCommit implements GraphStore.
func (m *MemoryStore) SaveCommit(info history.CommitInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commits[info.Hash] = info
	return nil
}

// ListCommits implements GraphStore.
func (m *MemoryStore) ListCommits() ([]history.CommitInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	commits := make([]history.CommitInfo, 0, len(m.commits))
	for _, info := range m.commits {
		commits = append(commits, info)
	}
	sort.Slice(commits, func(i, j int) bool {
		if !commits[i].When.Equal(commits[j].When) {
			return commits[i].When.After(commits[j].When)
		}
		return commits[i].Hash < commits[j].Hash
	})
	return commits, nil
}

// SearchNodes implements GraphStore.
func (m *MemoryStore) SearchNodes(commit, query string, kinds []graph.NodeKind) ([]SearchResult, error) {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return nil, nil
	}

	m.mu.RLock()
	index, ok := m.tokens[commit]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	var matched map[string]bool
	for _, token := range queryTokens {
		names, ok := index[token]
		if !ok {
			return nil, nil
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
	if len(matched) == 0 {
		return nil, nil
	}

	g, err := m.LoadGraph(commit)
	if err != nil {
		return nil, err
	}
	return collectResults(g, matched, kinds), nil
}

// SaveMeta implements GraphStore.
func (m *MemoryStore) SaveMeta(meta Meta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meta = &meta
	return nil
}

// LoadMeta implements GraphStore.
func (m *MemoryStore) LoadMeta() (Meta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.meta == nil {
		return Meta{}, ErrNotFound
	}
	return *m.meta, nil
}

// Close implements GraphStore.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.graphs = nil
	m.tokens = nil
	m.commits = nil
	return nil
}
