// Package history provides go-git access to the analyzed repository:
// commit enumeration, serialized snapshot materialization, and co-change
// extraction from tree diffs.
package history

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Repository wraps an opened git repository.
type Repository struct {
	repo *git.Repository
}

// Open opens the repository at path.
func Open(path string) (*Repository, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("opening repository %s: %w", path, err)
	}
	return &Repository{repo: repo}, nil
}

// CloneIfAbsent opens the repository at path, cloning it from url first when
// no repository exists there. A clone with an empty url fails.
func CloneIfAbsent(ctx context.Context, url, path string) (*Repository, error) {
	repo, err := git.PlainOpen(path)
	if err == nil {
		return &Repository{repo: repo}, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("opening repository %s: %w", path, err)
	}
	if url == "" {
		return nil, fmt.Errorf("no repository at %s and no clone URL given", path)
	}
	repo, err = git.PlainCloneContext(ctx, path, false, &git.CloneOptions{URL: url})
	if err != nil {
		return nil, fmt.Errorf("cloning %s: %w", url, err)
	}
	return &Repository{repo: repo}, nil
}

// CommitInfo is the commit metadata the rest of the system consumes.
type CommitInfo struct {
	Hash    string    `json:"hash"`
	Author  string    `json:"author"`
	Email   string    `json:"email"`
	When    time.Time `json:"when"`
	Summary string    `json:"summary"`
	Parents []string  `json:"parents,omitempty"`
}

// ShortHash returns the first seven characters of the commit hash.
func (c CommitInfo) ShortHash() string {
	if len(c.Hash) <= 7 {
		return c.Hash
	}
	return c.Hash[:7]
}

// Commits returns up to limit commits newest first, starting from the named
// branch or from HEAD when branch is empty. A limit of zero means all.
func (r *Repository) Commits(limit int, branch string) ([]CommitInfo, error) {
	from, err := r.startHash(branch)
	if err != nil {
		return nil, err
	}

	iter, err := r.repo.Log(&git.LogOptions{From: from})
	if err != nil {
		return nil, fmt.Errorf("reading log: %w", err)
	}
	defer iter.Close()

	var commits []CommitInfo
	for limit <= 0 || len(commits) < limit {
		c, err := iter.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("walking commits: %w", err)
		}
		commits = append(commits, newCommitInfo(c))
	}
	return commits, nil
}

func (r *Repository) startHash(branch string) (plumbing.Hash, error) {
	if branch == "" {
		head, err := r.repo.Head()
		if err != nil {
			return plumbing.ZeroHash, fmt.Errorf("resolving HEAD: %w", err)
		}
		return head.Hash(), nil
	}
	ref, err := r.repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolving branch %s: %w", branch, err)
	}
	return ref.Hash(), nil
}

func newCommitInfo(c *object.Commit) CommitInfo {
	info := CommitInfo{
		Hash:    c.Hash.String(),
		Author:  c.Author.Name,
		Email:   c.Author.Email,
		When:    c.Author.When,
		Summary: strings.SplitN(strings.TrimSpace(c.Message), "\n", 2)[0],
	}
	for _, p := range c.ParentHashes {
		info.Parents = append(info.Parents, p.String())
	}
	return info
}
