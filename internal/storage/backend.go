// Package storage persists snapshot graphs keyed by commit identifier.
//
// It defines the GraphStore interface with badger-backed and in-memory
// implementations. Stored graphs are immutable: saving is insert-if-absent,
// and keys carry the serialization schema version, so a schema change makes
// old entries invisible rather than corrupt.
package storage

import (
	"errors"
	"time"

	"github.com/Benny93/dendrite-go/internal/graph"
	"github.com/Benny93/dendrite-go/internal/history"
)

var (
	// ErrNotFound reports a commit with no stored graph, or missing meta.
	ErrNotFound = errors.New("storage: not found")

	// ErrExists reports an insert for a commit that already has a graph.
	ErrExists = errors.New("storage: already exists")
)

// SearchResult is one node matched by SearchNodes.
type SearchResult struct {
	Name string         `json:"name"`
	Kind graph.NodeKind `json:"kind"`
}

// Meta records which repository a store indexes.
type Meta struct {
	RepoPath  string    `json:"repo_path"`
	RepoURL   string    `json:"repo_url,omitempty"`
	Branch    string    `json:"branch,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// GraphStore persists snapshot graphs and commit metadata.
//
// Implementations are safe for concurrent use; concurrent SaveGraph calls
// for distinct commits never conflict because entries are insert-if-absent
// under distinct keys.
type GraphStore interface {
	// SaveGraph stores the commit's graph. Returns ErrExists when the
	// commit already has one; the stored graph is never rewritten.
	SaveGraph(commit string, g *graph.Graph) error

	// LoadGraph returns the commit's graph, or ErrNotFound.
	LoadGraph(commit string) (*graph.Graph, error)

	// HasGraph reports whether the commit has a stored graph.
	HasGraph(commit string) (bool, error)

	// ListGraphs returns the stored commit ids in sorted order.
	ListGraphs() ([]string, error)

	// SaveCommit records commit metadata.
	SaveCommit(info history.CommitInfo) error

	// ListCommits returns recorded commit metadata, newest first.
	ListCommits() ([]history.CommitInfo, error)

	// SearchNodes finds nodes of the commit's graph whose canonical name
	// contains every query token, optionally restricted to kinds.
	SearchNodes(commit, query string, kinds []graph.NodeKind) ([]SearchResult, error)

	// SaveMeta / LoadMeta store the repository descriptor.
	SaveMeta(meta Meta) error
	LoadMeta() (Meta, error)

	// Close releases all resources held by the store.
	Close() error
}
