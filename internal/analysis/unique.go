// Package analysis computes derived views over stored snapshot graphs:
// structural-change timelines, Laplacian spectra, uncalled functions, and
// import communities.
package analysis

import (
	"fmt"
	"sort"
	"time"

	"github.com/Benny93/dendrite-go/internal/graph"
	"github.com/Benny93/dendrite-go/internal/storage"
)

// UniqueGroup associates one projected structure with the commits that
// share it, in commit order.
type UniqueGroup struct {
	Fingerprint string   `json:"fingerprint"`
	Commits     []string `json:"commits"`
}

// UniqueResult is the first-seen timeline of distinct projected structures.
type UniqueResult struct {
	Preset   graph.Preset  `json:"preset"`
	Groups   []UniqueGroup `json:"groups"`
	Distinct int           `json:"distinct"`
}

// UniqueSubgraphs walks the stored commits oldest first and groups them by
// the structural fingerprint of their projection: two commits land in the
// same group exactly when projecting leaves equal node sets and edge
// multisets. Groups appear in the order their structure was first seen, so
// the result reads as a timeline of when the projected shape actually
// changed.
func UniqueSubgraphs(store storage.GraphStore, preset graph.Preset) (*UniqueResult, error) {
	commits, err := orderedCommits(store)
	if err != nil {
		return nil, err
	}

	result := &UniqueResult{Preset: preset}
	index := make(map[string]int)
	for _, commit := range commits {
		g, err := store.LoadGraph(commit)
		if err != nil {
			return nil, err
		}
		projected, err := graph.ProjectPreset(g, preset)
		if err != nil {
			return nil, err
		}
		fp, err := projected.StructuralFingerprint()
		if err != nil {
			return nil, fmt.Errorf("fingerprinting %s: %w", commit, err)
		}

		if i, ok := index[fp]; ok {
			result.Groups[i].Commits = append(result.Groups[i].Commits, commit)
			continue
		}
		index[fp] = len(result.Groups)
		result.Groups = append(result.Groups, UniqueGroup{
			Fingerprint: fp,
			Commits:     []string{commit},
		})
	}
	result.Distinct = len(result.Groups)
	return result, nil
}

// orderedCommits returns the stored graph ids oldest first, using recorded
// commit times where available. Graphs without commit metadata sort after
// dated ones, lexically.
func orderedCommits(store storage.GraphStore) ([]string, error) {
	stored, err := store.ListGraphs()
	if err != nil {
		return nil, err
	}
	infos, err := store.ListCommits()
	if err != nil {
		return nil, err
	}

	when := make(map[string]time.Time, len(infos))
	for _, info := range infos {
		when[info.Hash] = info.When
	}
	sort.SliceStable(stored, func(i, j int) bool {
		ti, iDated := when[stored[i]]
		tj, jDated := when[stored[j]]
		switch {
		case iDated && jDated:
			if !ti.Equal(tj) {
				return ti.Before(tj)
			}
			return stored[i] < stored[j]
		case iDated != jDated:
			return iDated
		default:
			return stored[i] < stored[j]
		}
	})
	return stored, nil
}
