package history

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/Benny93/dendrite-go/internal/ingestion"
)

// Materializer reads per-commit file sets from the repository. Reads are
// serialized by an internal mutex: one snapshot is fully materialized before
// the next starts, while graph construction over the returned file sets runs
// in parallel.
type Materializer struct {
	repo *Repository

	mu    sync.Mutex
	probe func(string)
}

// NewMaterializer returns a Materializer over r.
func NewMaterializer(r *Repository) *Materializer {
	return &Materializer{repo: r}
}

// Materialize returns the commit's Python files, sorted by path. The
// commit's tree is read in-memory; nothing is checked out.
func (m *Materializer) Materialize(hash string) ([]ingestion.SourceFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.probe != nil {
		m.probe("begin " + hash)
		defer m.probe("end " + hash)
	}

	commit, err := m.repo.repo.CommitObject(plumbing.NewHash(hash))
	if err != nil {
		return nil, fmt.Errorf("loading commit %s: %w", hash, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("loading tree of %s: %w", hash, err)
	}

	var files []ingestion.SourceFile
	err = tree.Files().ForEach(func(f *object.File) error {
		if !strings.HasSuffix(f.Name, ".py") {
			return nil
		}
		contents, err := f.Contents()
		if err != nil {
			return fmt.Errorf("reading %s: %w", f.Name, err)
		}
		files = append(files, ingestion.SourceFile{Path: f.Name, Content: []byte(contents)})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}
