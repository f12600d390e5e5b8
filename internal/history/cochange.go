package history

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Pairs below these thresholds are dropped as noise.
const (
	minCoChanges = 3
	minStrength  = 0.3
)

// CoChange is a pair of files that repeatedly change in the same commits.
// Strength is co-changes divided by the larger of the two files' total
// change counts, so 1.0 means the files never change apart.
type CoChange struct {
	FileA    string  `json:"file_a"`
	FileB    string  `json:"file_b"`
	Count    int     `json:"count"`
	Strength float64 `json:"strength"`
}

// CoChanges mines up to limit commits (zero means all) for Python files
// that change together, strongest pairs first.
func (r *Repository) CoChanges(limit int) ([]CoChange, error) {
	commits, err := r.Commits(limit, "")
	if err != nil {
		return nil, err
	}

	type pair struct{ a, b string }
	counts := make(map[pair]int)
	totals := make(map[string]int)

	for _, info := range commits {
		files, err := r.changedFiles(info)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			totals[f]++
		}
		for i := 0; i < len(files); i++ {
			for j := i + 1; j < len(files); j++ {
				counts[pair{files[i], files[j]}]++
			}
		}
	}

	var out []CoChange
	for p, count := range counts {
		if count < minCoChanges {
			continue
		}
		strength := couplingStrength(count, totals[p.a], totals[p.b])
		if strength < minStrength {
			continue
		}
		out = append(out, CoChange{FileA: p.a, FileB: p.b, Count: count, Strength: strength})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Strength != out[j].Strength {
			return out[i].Strength > out[j].Strength
		}
		if out[i].FileA != out[j].FileA {
			return out[i].FileA < out[j].FileA
		}
		return out[i].FileB < out[j].FileB
	})
	return out, nil
}

// changedFiles lists the Python files a commit touched relative to its first
// parent, sorted and deduplicated. A root commit counts every file it
// introduces.
func (r *Repository) changedFiles(info CommitInfo) ([]string, error) {
	commit, err := r.repo.CommitObject(plumbing.NewHash(info.Hash))
	if err != nil {
		return nil, fmt.Errorf("loading commit %s: %w", info.Hash, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("loading tree of %s: %w", info.Hash, err)
	}

	var files []string
	if len(info.Parents) == 0 {
		err = tree.Files().ForEach(func(f *object.File) error {
			if strings.HasSuffix(f.Name, ".py") {
				files = append(files, f.Name)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		sort.Strings(files)
		return files, nil
	}

	parent, err := r.repo.CommitObject(plumbing.NewHash(info.Parents[0]))
	if err != nil {
		return nil, fmt.Errorf("loading parent of %s: %w", info.Hash, err)
	}
	parentTree, err := parent.Tree()
	if err != nil {
		return nil, fmt.Errorf("loading parent tree of %s: %w", info.Hash, err)
	}

	changes, err := object.DiffTree(parentTree, tree)
	if err != nil {
		return nil, fmt.Errorf("diffing %s: %w", info.Hash, err)
	}

	seen := make(map[string]bool)
	for _, ch := range changes {
		name := ch.To.Name
		if name == "" {
			name = ch.From.Name
		}
		if strings.HasSuffix(name, ".py") && !seen[name] {
			seen[name] = true
			files = append(files, name)
		}
	}
	sort.Strings(files)
	return files, nil
}

// couplingStrength normalizes a co-change count by the busier file's
// total change count, yielding a value in [0, 1].
func couplingStrength(co, totalA, totalB int) float64 {
	if totalA == 0 || totalB == 0 {
		return 0
	}
	max := totalA
	if totalB > max {
		max = totalB
	}
	return float64(co) / float64(max)
}
