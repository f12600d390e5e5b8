package ingestion

import (
	"strings"

	"github.com/Benny93/dendrite-go/internal/graph"
	"github.com/Benny93/dendrite-go/internal/parsers"
)

// ParsedFile pairs a repo-relative path with its parsed tree. Files that
// failed to parse never reach this type; they are dropped by the builder
// before the scope pass runs.
type ParsedFile struct {
	Path string
	Tree *parsers.Node
}

// BuildScopeTree turns a snapshot's file list into the containment skeleton:
// Folder and File nodes joined by Directory edges, rooted at the repository
// name. Shared path prefixes are reused by canonical-name lookup rather than
// re-created, so the Folder/File nodes form a strict tree with File leaves.
func BuildScopeTree(snapshot, repo string, files []ParsedFile) *graph.Graph {
	g := graph.New(snapshot)
	g.AddNode(&graph.Node{Name: repo, Kind: graph.NodeFolder})

	for _, f := range files {
		current := repo
		segments := strings.Split(f.Path, "/")
		for i, seg := range segments {
			name := graph.Join(current, seg)
			if i == len(segments)-1 {
				g.AddNode(&graph.Node{Name: name, Kind: graph.NodeFile, Tree: f.Tree})
			} else {
				g.AddNode(&graph.Node{Name: name, Kind: graph.NodeFolder})
			}
			g.AddEdge(graph.Edge{Kind: graph.EdgeDirectory, Source: current, Target: name})
			current = name
		}
	}
	return g
}
