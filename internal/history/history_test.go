package history

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initRepo(t *testing.T) (string, *git.Worktree) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	return dir, wt
}

func commitFiles(t *testing.T, dir string, wt *git.Worktree, files map[string]string, msg string) string {
	t.Helper()
	for path, content := range files {
		full := filepath.Join(dir, path)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
		_, err := wt.Add(path)
		require.NoError(t, err)
	}
	hash, err := wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return hash.String()
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("OpensExistingRepository", func(t *testing.T) {
		dir, wt := initRepo(t)
		commitFiles(t, dir, wt, map[string]string{"a.py": "pass\n"}, "init")

		repo, err := Open(dir)
		require.NoError(t, err)
		assert.NotNil(t, repo)
	})

	t.Run("FailsWithoutRepository", func(t *testing.T) {
		_, err := Open(t.TempDir())
		assert.Error(t, err)
	})
}

func TestCloneIfAbsent(t *testing.T) {
	t.Parallel()

	t.Run("ClonesWhenMissing", func(t *testing.T) {
		src, wt := initRepo(t)
		commitFiles(t, src, wt, map[string]string{"a.py": "pass\n"}, "init")

		dst := t.TempDir()
		repo, err := CloneIfAbsent(context.Background(), src, dst)
		require.NoError(t, err)

		commits, err := repo.Commits(0, "")
		require.NoError(t, err)
		assert.Len(t, commits, 1)
	})

	t.Run("OpensWhenPresent", func(t *testing.T) {
		dir, wt := initRepo(t)
		commitFiles(t, dir, wt, map[string]string{"a.py": "pass\n"}, "init")

		repo, err := CloneIfAbsent(context.Background(), "", dir)
		require.NoError(t, err)
		assert.NotNil(t, repo)
	})

	t.Run("FailsWithoutURL", func(t *testing.T) {
		_, err := CloneIfAbsent(context.Background(), "", t.TempDir())
		assert.Error(t, err)
	})
}

func TestCommits(t *testing.T) {
	t.Parallel()

	t.Run("NewestFirstWithMetadata", func(t *testing.T) {
		dir, wt := initRepo(t)
		first := commitFiles(t, dir, wt, map[string]string{"a.py": "pass\n"}, "add a")
		second := commitFiles(t, dir, wt, map[string]string{"b.py": "pass\n"}, "add b\n\nlonger body")
		third := commitFiles(t, dir, wt, map[string]string{"a.py": "x = 1\n"}, "change a")

		repo, err := Open(dir)
		require.NoError(t, err)

		commits, err := repo.Commits(0, "")
		require.NoError(t, err)
		require.Len(t, commits, 3)

		assert.Equal(t, []string{third, second, first},
			[]string{commits[0].Hash, commits[1].Hash, commits[2].Hash})
		assert.Equal(t, "add b", commits[1].Summary, "Summary should be the first message line")
		assert.Equal(t, "Test", commits[0].Author)
		assert.Equal(t, "test@example.com", commits[0].Email)
		assert.Equal(t, []string{second}, commits[0].Parents)
		assert.Empty(t, commits[2].Parents)
	})

	t.Run("HonorsLimit", func(t *testing.T) {
		dir, wt := initRepo(t)
		commitFiles(t, dir, wt, map[string]string{"a.py": "1\n"}, "one")
		commitFiles(t, dir, wt, map[string]string{"a.py": "2\n"}, "two")
		commitFiles(t, dir, wt, map[string]string{"a.py": "3\n"}, "three")

		repo, err := Open(dir)
		require.NoError(t, err)

		commits, err := repo.Commits(2, "")
		require.NoError(t, err)
		assert.Len(t, commits, 2)
	})

	t.Run("ReadsNamedBranch", func(t *testing.T) {
		dir, wt := initRepo(t)
		commitFiles(t, dir, wt, map[string]string{"a.py": "pass\n"}, "on master")

		err := wt.Checkout(&git.CheckoutOptions{
			Branch: plumbing.NewBranchReferenceName("dev"),
			Create: true,
		})
		require.NoError(t, err)
		commitFiles(t, dir, wt, map[string]string{"b.py": "pass\n"}, "on dev")

		repo, err := Open(dir)
		require.NoError(t, err)

		onMaster, err := repo.Commits(0, "master")
		require.NoError(t, err)
		assert.Len(t, onMaster, 1)

		onDev, err := repo.Commits(0, "dev")
		require.NoError(t, err)
		assert.Len(t, onDev, 2)

		_, err = repo.Commits(0, "nope")
		assert.Error(t, err)
	})
}

func TestMaterialize(t *testing.T) {
	t.Parallel()

	t.Run("ReturnsPythonFilesSorted", func(t *testing.T) {
		dir, wt := initRepo(t)
		hash := commitFiles(t, dir, wt, map[string]string{
			"pkg/b.py":  "y = 2\n",
			"pkg/a.py":  "x = 1\n",
			"README.md": "docs\n",
		}, "init")

		repo, err := Open(dir)
		require.NoError(t, err)

		files, err := NewMaterializer(repo).Materialize(hash)
		require.NoError(t, err)
		require.Len(t, files, 2)
		assert.Equal(t, "pkg/a.py", files[0].Path)
		assert.Equal(t, "pkg/b.py", files[1].Path)
		assert.Equal(t, "x = 1\n", string(files[0].Content))
	})

	t.Run("ReadsHistoricalContent", func(t *testing.T) {
		dir, wt := initRepo(t)
		old := commitFiles(t, dir, wt, map[string]string{"a.py": "x = 1\n"}, "old")
		commitFiles(t, dir, wt, map[string]string{"a.py": "x = 2\n"}, "new")

		repo, err := Open(dir)
		require.NoError(t, err)

		files, err := NewMaterializer(repo).Materialize(old)
		require.NoError(t, err)
		require.Len(t, files, 1)
		assert.Equal(t, "x = 1\n", string(files[0].Content), "Should read the commit's tree, not the worktree")
	})

	t.Run("FailsOnUnknownCommit", func(t *testing.T) {
		dir, wt := initRepo(t)
		commitFiles(t, dir, wt, map[string]string{"a.py": "pass\n"}, "init")

		repo, err := Open(dir)
		require.NoError(t, err)

		_, err = NewMaterializer(repo).Materialize(strings.Repeat("d", 40))
		assert.Error(t, err)
	})

	t.Run("SerializesConcurrentReads", func(t *testing.T) {
		dir, wt := initRepo(t)
		hash := commitFiles(t, dir, wt, map[string]string{"a.py": "pass\n"}, "init")

		repo, err := Open(dir)
		require.NoError(t, err)
		m := NewMaterializer(repo)

		var log []string
		m.probe = func(s string) { log = append(log, s) }

		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := m.Materialize(hash)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		// One materialization finishes before the next begins.
		assert.Equal(t, []string{"begin " + hash, "end " + hash, "begin " + hash, "end " + hash}, log)
	})
}

func TestCoChanges(t *testing.T) {
	t.Parallel()

	t.Run("FindsRecurringPairs", func(t *testing.T) {
		dir, wt := initRepo(t)
		commitFiles(t, dir, wt, map[string]string{"a.py": "1\n", "b.py": "1\n"}, "together one")
		commitFiles(t, dir, wt, map[string]string{"a.py": "2\n", "b.py": "2\n", "docs.md": "x\n"}, "together two")
		commitFiles(t, dir, wt, map[string]string{"a.py": "3\n", "b.py": "3\n"}, "together three")
		commitFiles(t, dir, wt, map[string]string{"c.py": "1\n"}, "alone")
		commitFiles(t, dir, wt, map[string]string{"d.py": "1\n", "e.py": "1\n"}, "pair once")
		commitFiles(t, dir, wt, map[string]string{"d.py": "2\n", "e.py": "2\n"}, "pair twice")

		repo, err := Open(dir)
		require.NoError(t, err)

		pairs, err := repo.CoChanges(0)
		require.NoError(t, err)

		require.Len(t, pairs, 1, "Pairs below three co-changes should be dropped")
		assert.Equal(t, "a.py", pairs[0].FileA)
		assert.Equal(t, "b.py", pairs[0].FileB)
		assert.Equal(t, 3, pairs[0].Count)
		assert.InDelta(t, 1.0, pairs[0].Strength, 1e-9)
	})

	t.Run("EmptyHistoryBelowThreshold", func(t *testing.T) {
		dir, wt := initRepo(t)
		commitFiles(t, dir, wt, map[string]string{"a.py": "1\n", "b.py": "1\n"}, "once")

		repo, err := Open(dir)
		require.NoError(t, err)

		pairs, err := repo.CoChanges(0)
		require.NoError(t, err)
		assert.Empty(t, pairs)
	})
}
