// Package ingestion builds relationship graphs from repository snapshots.
//
// A snapshot's graph is constructed by five passes in fixed order: the
// scope-tree builder lays down Folder/File containment, the definition
// walker mints definition nodes per file, then import, call, and
// inheritance resolution run against the augmented graph. Each pass depends
// on nodes the previous pass minted, so per-snapshot construction is
// single-threaded; distinct snapshots build independently.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/Benny93/dendrite-go/internal/graph"
	"github.com/Benny93/dendrite-go/internal/parsers"
)

// SourceFile is one file of a materialized snapshot.
type SourceFile struct {
	Path    string // repo-relative, forward slashes
	Content []byte
}

// Snapshot is the unit of graph construction: a commit identifier, the
// repository name that roots every canonical name, and the snapshot's
// source files.
type Snapshot struct {
	ID    string
	Repo  string
	Files []SourceFile
}

// BuildStats summarizes one construction run.
type BuildStats struct {
	Files   int // files contributing to the graph
	Skipped int // files excluded by parse failure
	Nodes   int
	Edges   int
}

// Builder constructs snapshot graphs. Progress, when set, receives a short
// phase description as each pass starts.
type Builder struct {
	Parser   parsers.Parser
	Progress func(string)
}

// NewBuilder returns a Builder using the given parser.
func NewBuilder(parser parsers.Parser) *Builder {
	return &Builder{Parser: parser}
}

func (b *Builder) progress(format string, args ...any) {
	if b.Progress != nil {
		b.Progress(fmt.Sprintf(format, args...))
	}
}

// Build constructs the relationship graph for one snapshot. Files that fail
// to parse are excluded from the graph entirely and counted in the stats;
// unresolved references never error. The returned graph is immutable and
// safe for concurrent reads.
func (b *Builder) Build(ctx context.Context, snap Snapshot) (*graph.Graph, *BuildStats, error) {
	stats := &BuildStats{}

	files := make([]SourceFile, len(snap.Files))
	copy(files, snap.Files)
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	b.progress("parsing %d files", len(files))
	var parsed []ParsedFile
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		tree, err := b.Parser.Parse(ctx, f.Content)
		if err != nil {
			if errors.Is(err, parsers.ErrParse) {
				stats.Skipped++
				continue
			}
			return nil, nil, fmt.Errorf("parsing %s: %w", f.Path, err)
		}
		parsed = append(parsed, ParsedFile{Path: f.Path, Tree: tree})
	}
	stats.Files = len(parsed)

	b.progress("building scope tree")
	g := BuildScopeTree(snap.ID, snap.Repo, parsed)

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	b.progress("walking definitions")
	g = WalkDefinitions(g)

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	b.progress("resolving imports")
	g, tables := ResolveImports(g)

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	b.progress("resolving calls")
	g = ResolveCalls(g, tables)

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	b.progress("resolving inheritance")
	g = ResolveInheritance(g, tables)

	stats.Nodes = g.NodeCount()
	stats.Edges = g.EdgeCount()
	return g, stats, nil
}
