package analysis

import (
	"sort"

	"github.com/Benny93/dendrite-go/internal/graph"
)

// Community is one group of files coupled through imports.
type Community struct {
	Files []string `json:"files"`
}

// maxPropagationRounds caps label propagation against oscillation.
const maxPropagationRounds = 100

// Communities groups files by label propagation over import edges. Only
// files that import or are imported participate. Propagation visits nodes
// in name order and breaks frequency ties toward the smallest label, so
// the grouping is deterministic. Groups come out largest first.
func Communities(g *graph.Graph) []Community {
	projected := graph.Project(g,
		[]graph.NodeKind{graph.NodeFile},
		[]graph.EdgeKind{graph.EdgeImport})

	var files []string
	for _, n := range projected.Nodes() {
		if len(projected.Out(n.Name)) > 0 || len(projected.In(n.Name)) > 0 {
			files = append(files, n.Name)
		}
	}
	if len(files) == 0 {
		return nil
	}

	index := make(map[string]int, len(files))
	for i, f := range files {
		index[f] = i
	}
	neighbors := make([][]int, len(files))
	for _, e := range projected.EdgesOfKind(graph.EdgeImport) {
		i, iOk := index[e.Source]
		j, jOk := index[e.Target]
		if !iOk || !jOk || i == j {
			continue
		}
		neighbors[i] = append(neighbors[i], j)
		neighbors[j] = append(neighbors[j], i)
	}

	labels := make([]int, len(files))
	for i := range labels {
		labels[i] = i
	}
	for round := 0; round < maxPropagationRounds; round++ {
		changed := false
		for i := range files {
			best := dominantLabel(labels, neighbors[i], labels[i])
			if best != labels[i] {
				labels[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	grouped := make(map[int][]string)
	for i, f := range files {
		grouped[labels[i]] = append(grouped[labels[i]], f)
	}
	result := make([]Community, 0, len(grouped))
	for _, members := range grouped {
		sort.Strings(members)
		result = append(result, Community{Files: members})
	}
	sort.Slice(result, func(i, j int) bool {
		if len(result[i].Files) != len(result[j].Files) {
			return len(result[i].Files) > len(result[j].Files)
		}
		return result[i].Files[0] < result[j].Files[0]
	})
	return result
}

// dominantLabel picks the most frequent label among a node's neighbors,
// preferring the smallest on ties. A node with no neighbors keeps its own.
func dominantLabel(labels []int, neighbors []int, current int) int {
	if len(neighbors) == 0 {
		return current
	}
	counts := make(map[int]int, len(neighbors))
	for _, n := range neighbors {
		counts[labels[n]]++
	}
	best, bestCount := -1, 0
	for label, count := range counts {
		if count > bestCount || (count == bestCount && label < best) {
			best, bestCount = label, count
		}
	}
	return best
}
