// Package cmd provides CLI command implementations for Dendrite.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"

	"github.com/Benny93/dendrite-go/internal/analysis"
	"github.com/Benny93/dendrite-go/internal/graph"
	"github.com/Benny93/dendrite-go/internal/history"
	"github.com/Benny93/dendrite-go/internal/ingestion"
	"github.com/Benny93/dendrite-go/internal/parsers"
	"github.com/Benny93/dendrite-go/internal/storage"
	"github.com/Benny93/dendrite-go/mcp"
)

// Version is set at build time via ldflags.
var Version = "dev"

const (
	stateDirName = ".dendrite"

	// parseCacheSize bounds the content-addressed parse cache shared by
	// all snapshot builds of one command invocation.
	parseCacheSize = 1024
)

// InitCmd represents the init command.
type InitCmd struct {
	Repo   string `arg:"" optional:"" default:"." help:"Path to the git repository to index"`
	URL    string `help:"Clone URL used when no repository exists at the path yet"`
	Branch string `help:"Branch to index (defaults to HEAD)"`
}

// Run executes the init command.
func (c *InitCmd) Run() error {
	repoPath, err := filepath.Abs(c.Repo)
	if err != nil {
		return fmt.Errorf("resolving repository path: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}
	stateDir := filepath.Join(cwd, stateDirName)
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", stateDir, err)
	}

	store, err := storage.OpenBadger(filepath.Join(stateDir, "badger"), false)
	if err != nil {
		return err
	}
	defer store.Close()

	meta := storage.Meta{
		RepoPath:  repoPath,
		RepoURL:   c.URL,
		Branch:    c.Branch,
		CreatedAt: time.Now().UTC(),
	}
	if err := store.SaveMeta(meta); err != nil {
		return err
	}
	if err := writeMetaFile(stateDir, meta); err != nil {
		return err
	}

	color.Green("✓ Initialized graph store at %s", stateDir)
	fmt.Println("Run 'dendrite history' to build graphs for the repository's commits.")
	return nil
}

// HistoryCmd represents the history command.
type HistoryCmd struct {
	Limit   int    `short:"n" default:"50" help:"Number of commits to index, newest first (0 means all)"`
	Branch  string `help:"Branch to walk (defaults to the indexed branch or HEAD)"`
	Workers int    `default:"4" help:"Parallel graph builds"`
}

// Run executes the history command.
func (c *HistoryCmd) Run() error {
	store, err := openStore(false)
	if err != nil {
		return err
	}
	defer store.Close()

	meta, err := store.LoadMeta()
	if err != nil {
		return fmt.Errorf("loading store metadata: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-osSignalChannel()
		cancel()
	}()

	repo, err := history.CloneIfAbsent(ctx, meta.RepoURL, meta.RepoPath)
	if err != nil {
		return err
	}

	branch := c.Branch
	if branch == "" {
		branch = meta.Branch
	}
	commits, err := repo.Commits(c.Limit, branch)
	if err != nil {
		return err
	}
	if len(commits) == 0 {
		fmt.Println("No commits found.")
		return nil
	}

	parser, err := parsers.NewCachingParser(parsers.NewPythonParser(), parseCacheSize)
	if err != nil {
		return err
	}
	builder := ingestion.NewBuilder(parser)
	materializer := history.NewMaterializer(repo)
	repoName := filepath.Base(meta.RepoPath)

	fmt.Printf("Indexing %d commits with %d workers...\n", len(commits), c.Workers)

	var (
		mu     sync.Mutex
		built  int
		cached int
	)

	workers := c.Workers
	if workers < 1 {
		workers = 1
	}
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	for _, info := range commits {
		eg.Go(func() error {
			has, err := store.HasGraph(info.Hash)
			if err != nil {
				return err
			}
			if !has {
				files, err := materializer.Materialize(info.Hash)
				if err != nil {
					return fmt.Errorf("materializing %s: %w", info.ShortHash(), err)
				}
				g, stats, err := builder.Build(ctx, ingestion.Snapshot{
					ID:    info.Hash,
					Repo:  repoName,
					Files: files,
				})
				if err != nil {
					return fmt.Errorf("building %s: %w", info.ShortHash(), err)
				}
				err = store.SaveGraph(info.Hash, g)
				switch {
				case err == nil:
					mu.Lock()
					built++
					fmt.Printf("  %s %d nodes, %d edges (%d files, %d skipped)\n",
						info.ShortHash(), stats.Nodes, stats.Edges, stats.Files, stats.Skipped)
					mu.Unlock()
				case errors.Is(err, storage.ErrExists):
					has = true
				default:
					return err
				}
			}
			if has {
				mu.Lock()
				cached++
				mu.Unlock()
			}
			return store.SaveCommit(info)
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	color.Green("✓ %d graphs built, %d already indexed", built, cached)
	return nil
}

// LogCmd represents the log command.
type LogCmd struct {
	Limit int `short:"n" default:"0" help:"Number of commits to show (0 means all)"`
}

// Run executes the log command.
func (c *LogCmd) Run() error {
	store, err := openStore(true)
	if err != nil {
		return err
	}
	defer store.Close()

	commits, err := store.ListCommits()
	if err != nil {
		return err
	}
	if len(commits) == 0 {
		fmt.Println("No commits indexed. Run 'dendrite history' first.")
		return nil
	}
	if c.Limit > 0 && len(commits) > c.Limit {
		commits = commits[:c.Limit]
	}

	for _, info := range commits {
		fmt.Printf("%s  %s  %-20s %s\n",
			info.ShortHash(), info.When.Format("2006-01-02"), info.Author, info.Summary)
	}
	return nil
}

// ShowCmd represents the show command.
type ShowCmd struct {
	Commit string `arg:"" help:"Commit hash or unique prefix"`
	Preset string `default:"all" enum:"all,class-inheritance,definitions,file-directory,function-dependency,import-dependency" help:"Projection preset"`
}

// Run executes the show command.
func (c *ShowCmd) Run() error {
	store, err := openStore(true)
	if err != nil {
		return err
	}
	defer store.Close()

	projected, hash, err := loadProjected(store, c.Commit, c.Preset)
	if err != nil {
		return err
	}
	stats := projected.Stats()

	color.Cyan("Graph for %s (%s)", hash, c.Preset)
	fmt.Printf("  Nodes: %d\n", stats.Nodes)
	fmt.Printf("  Edges: %d\n", stats.Edges)

	fmt.Println("  Nodes by kind:")
	for _, kind := range graph.AllNodeKinds() {
		if n := stats.NodesByKind[kind]; n > 0 {
			fmt.Printf("    %-10s %d\n", kind, n)
		}
	}
	fmt.Println("  Edges by kind:")
	for _, kind := range graph.AllEdgeKinds() {
		if n := stats.EdgesByKind[kind]; n > 0 {
			fmt.Printf("    %-13s %d\n", kind, n)
		}
	}
	return nil
}

// ExportCmd represents the export command.
type ExportCmd struct {
	Commit string `arg:"" help:"Commit hash or unique prefix"`
	Preset string `default:"all" enum:"all,class-inheritance,definitions,file-directory,function-dependency,import-dependency" help:"Projection preset"`
	Output string `short:"o" help:"Write JSON to this file instead of stdout"`
}

// Run executes the export command.
func (c *ExportCmd) Run() error {
	store, err := openStore(true)
	if err != nil {
		return err
	}
	defer store.Close()

	projected, hash, err := loadProjected(store, c.Commit, c.Preset)
	if err != nil {
		return err
	}
	data, err := projected.MarshalIndent()
	if err != nil {
		return err
	}

	if c.Output == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(c.Output, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", c.Output, err)
	}
	color.Green("✓ Exported %s to %s", hash, c.Output)
	return nil
}

// SearchCmd represents the search command.
type SearchCmd struct {
	Commit string   `arg:"" help:"Commit hash or unique prefix"`
	Query  string   `arg:"" help:"Search text, matched against name tokens"`
	Kinds  []string `help:"Node kinds to keep (class, function, ...)"`
}

// Run executes the search command.
func (c *SearchCmd) Run() error {
	store, err := openStore(true)
	if err != nil {
		return err
	}
	defer store.Close()

	hash, err := storage.ResolveCommit(store, c.Commit)
	if err != nil {
		return err
	}
	kinds, err := parseNodeKinds(c.Kinds)
	if err != nil {
		return err
	}

	results, err := store.SearchNodes(hash, c.Query, kinds)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No matches.")
		return nil
	}
	for _, r := range results {
		fmt.Printf("%s (%s)\n", r.Name, r.Kind)
	}
	return nil
}

// AnalyzeCmd groups the analysis subcommands.
type AnalyzeCmd struct {
	Unique      UniqueCmd      `cmd:"" help:"Group commits whose graphs share structure"`
	Spectral    SpectralCmd    `cmd:"" help:"Laplacian spectrum of a commit's graph"`
	Uncalled    UncalledCmd    `cmd:"" help:"Functions that are never called"`
	Cochange    CochangeCmd    `cmd:"" name:"cochange" help:"File pairs that change in the same commits"`
	Communities CommunitiesCmd `cmd:"" help:"Import communities among files"`
}

// UniqueCmd represents the analyze unique command.
type UniqueCmd struct {
	Preset string `default:"all" enum:"all,class-inheritance,definitions,file-directory,function-dependency,import-dependency" help:"Projection preset"`
	Format string `default:"text" enum:"text,json" help:"Output format"`
}

// Run executes the analyze unique command.
func (c *UniqueCmd) Run() error {
	store, err := openStore(true)
	if err != nil {
		return err
	}
	defer store.Close()

	result, err := analysis.UniqueSubgraphs(store, graph.Preset(c.Preset))
	if err != nil {
		return err
	}
	if c.Format == "json" {
		return printJSON(result)
	}

	total := 0
	for _, group := range result.Groups {
		total += len(group.Commits)
	}
	color.Cyan("Distinct %s structures: %d across %d commits", result.Preset, result.Distinct, total)
	for i, group := range result.Groups {
		fmt.Printf("  #%d %s\n", i+1, group.Fingerprint[:12])
		for _, hash := range group.Commits {
			fmt.Printf("     %s\n", shortHash(hash))
		}
	}
	return nil
}

// SpectralCmd represents the analyze spectral command.
type SpectralCmd struct {
	Commit string `arg:"" help:"Commit hash or unique prefix"`
	Preset string `default:"import-dependency" enum:"all,class-inheritance,definitions,file-directory,function-dependency,import-dependency" help:"Projection preset"`
	Format string `default:"text" enum:"text,json" help:"Output format"`
}

// Run executes the analyze spectral command.
func (c *SpectralCmd) Run() error {
	store, err := openStore(true)
	if err != nil {
		return err
	}
	defer store.Close()

	hash, err := storage.ResolveCommit(store, c.Commit)
	if err != nil {
		return err
	}
	g, err := store.LoadGraph(hash)
	if err != nil {
		return err
	}
	result, err := analysis.Spectral(g, graph.Preset(c.Preset))
	if err != nil {
		return err
	}
	if c.Format == "json" {
		return printJSON(result)
	}

	color.Cyan("Spectrum of %s (%s)", hash, result.Preset)
	fmt.Printf("  Nodes: %d\n", result.Nodes)
	fmt.Printf("  Edges: %d\n", result.Edges)
	if len(result.Eigenvalues) >= 2 {
		fmt.Printf("  Algebraic connectivity: %.4f\n", result.AlgebraicConnectivity)
	}
	if len(result.Eigenvalues) > 0 {
		shown := result.Eigenvalues
		suffix := ""
		if len(shown) > 8 {
			shown = shown[:8]
			suffix = " ..."
		}
		parts := make([]string, len(shown))
		for i, ev := range shown {
			parts[i] = fmt.Sprintf("%.4f", ev)
		}
		fmt.Printf("  Eigenvalues: %s%s\n", strings.Join(parts, " "), suffix)
	}
	return nil
}

// UncalledCmd represents the analyze uncalled command.
type UncalledCmd struct {
	Commit string `arg:"" help:"Commit hash or unique prefix"`
	Format string `default:"text" enum:"text,json" help:"Output format"`
}

// Run executes the analyze uncalled command.
func (c *UncalledCmd) Run() error {
	store, err := openStore(true)
	if err != nil {
		return err
	}
	defer store.Close()

	hash, err := storage.ResolveCommit(store, c.Commit)
	if err != nil {
		return err
	}
	g, err := store.LoadGraph(hash)
	if err != nil {
		return err
	}
	uncalled := analysis.Uncalled(g)
	if c.Format == "json" {
		return printJSON(uncalled)
	}

	if len(uncalled) == 0 {
		color.Green("✓ No uncalled functions in %s", hash)
		return nil
	}
	color.Cyan("Uncalled functions in %s (%d)", hash, len(uncalled))
	for _, fn := range uncalled {
		fmt.Printf("  %s (%s)\n", fn.Name, fn.File)
	}
	return nil
}

// CochangeCmd represents the analyze cochange command.
type CochangeCmd struct {
	Limit  int    `short:"n" default:"200" help:"Number of commits to mine (0 means all)"`
	Format string `default:"text" enum:"text,json" help:"Output format"`
}

// Run executes the analyze cochange command.
func (c *CochangeCmd) Run() error {
	store, err := openStore(true)
	if err != nil {
		return err
	}
	meta, err := store.LoadMeta()
	store.Close()
	if err != nil {
		return fmt.Errorf("loading store metadata: %w", err)
	}

	repo, err := history.Open(meta.RepoPath)
	if err != nil {
		return err
	}
	pairs, err := repo.CoChanges(c.Limit)
	if err != nil {
		return err
	}
	if c.Format == "json" {
		return printJSON(pairs)
	}

	if len(pairs) == 0 {
		fmt.Println("No file pairs change together often enough to report.")
		return nil
	}
	color.Cyan("Co-changing file pairs (%d)", len(pairs))
	for _, pair := range pairs {
		fmt.Printf("  %4d  %.2f  %s <-> %s\n", pair.Count, pair.Strength, pair.FileA, pair.FileB)
	}
	return nil
}

// CommunitiesCmd represents the analyze communities command.
type CommunitiesCmd struct {
	Commit string `arg:"" help:"Commit hash or unique prefix"`
	Format string `default:"text" enum:"text,json" help:"Output format"`
}

// Run executes the analyze communities command.
func (c *CommunitiesCmd) Run() error {
	store, err := openStore(true)
	if err != nil {
		return err
	}
	defer store.Close()

	hash, err := storage.ResolveCommit(store, c.Commit)
	if err != nil {
		return err
	}
	g, err := store.LoadGraph(hash)
	if err != nil {
		return err
	}
	communities := analysis.Communities(g)
	if c.Format == "json" {
		return printJSON(communities)
	}

	if len(communities) == 0 {
		fmt.Println("No import communities found.")
		return nil
	}
	color.Cyan("Import communities in %s (%d)", hash, len(communities))
	for i, community := range communities {
		fmt.Printf("  #%d (%d files)\n", i+1, len(community.Files))
		for _, file := range community.Files {
			fmt.Printf("     %s\n", file)
		}
	}
	return nil
}

// WatchCmd represents the watch command.
type WatchCmd struct {
	Repo     string        `arg:"" optional:"" default:"." help:"Worktree to watch"`
	Debounce time.Duration `default:"2s" help:"Quiet period before a rebuild"`
}

// Run executes the watch command.
func (c *WatchCmd) Run() error {
	root, err := filepath.Abs(c.Repo)
	if err != nil {
		return fmt.Errorf("resolving worktree path: %w", err)
	}

	parser, err := parsers.NewCachingParser(parsers.NewPythonParser(), parseCacheSize)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-osSignalChannel()
		fmt.Println("\nStopping...")
		cancel()
	}()

	watcher := &ingestion.Watcher{
		Root:     root,
		Builder:  ingestion.NewBuilder(parser),
		Debounce: c.Debounce,
		OnRebuild: func(ev ingestion.RebuildEvent) {
			if len(ev.Changed) == 0 {
				fmt.Printf("Indexed %d files: %d nodes, %d edges in %s\n",
					ev.Stats.Files, ev.Stats.Nodes, ev.Stats.Edges, ev.Duration.Round(time.Millisecond))
				return
			}
			fmt.Printf("Rebuilt after %s: %+d nodes, %+d edges in %s\n",
				strings.Join(ev.Changed, ", "), ev.NodeDelta, ev.EdgeDelta, ev.Duration.Round(time.Millisecond))
		},
		OnError: func(err error) {
			fmt.Fprintf(os.Stderr, "watch: %v\n", err)
		},
	}

	color.Cyan("Watching %s for Python changes (Ctrl+C to stop)", root)
	if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	color.Green("✓ Watch stopped")
	return nil
}

// MCPCmd represents the mcp command.
type MCPCmd struct{}

// Run executes the mcp command.
func (c *MCPCmd) Run() error {
	store, err := openStore(true)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-osSignalChannel()
		cancel()
	}()

	fmt.Fprintln(os.Stderr, "Dendrite MCP server listening on stdio")
	server := mcp.NewServer(store)
	if err := server.Run(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// openStore opens the badger store under the current directory's state dir.
func openStore(readOnly bool) (*storage.BadgerStore, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}

	dbPath := filepath.Join(cwd, stateDirName, "badger")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("no graph store found at %s. Run 'dendrite init' first", cwd)
	}
	return storage.OpenBadger(dbPath, readOnly)
}

// loadProjected resolves a commit prefix, loads its graph, and applies the
// named preset.
func loadProjected(store storage.GraphStore, commit, preset string) (*graph.Graph, string, error) {
	hash, err := storage.ResolveCommit(store, commit)
	if err != nil {
		return nil, "", err
	}
	g, err := store.LoadGraph(hash)
	if err != nil {
		return nil, "", err
	}
	projected, err := graph.ProjectPreset(g, graph.Preset(preset))
	if err != nil {
		return nil, "", err
	}
	return projected, hash, nil
}

func parseNodeKinds(names []string) ([]graph.NodeKind, error) {
	var kinds []graph.NodeKind
	for _, name := range names {
		kind, ok := graph.ParseNodeKind(name)
		if !ok {
			valid := make([]string, 0, len(graph.AllNodeKinds()))
			for _, k := range graph.AllNodeKinds() {
				valid = append(valid, string(k))
			}
			return nil, fmt.Errorf("unknown node kind %q (valid: %s)", name, strings.Join(valid, ", "))
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func shortHash(hash string) string {
	if len(hash) <= 7 {
		return hash
	}
	return hash[:7]
}

func writeMetaFile(stateDir string, meta storage.Meta) error {
	data, err := json.MarshalIndent(map[string]any{
		"repo_path":  meta.RepoPath,
		"repo_url":   meta.RepoURL,
		"branch":     meta.Branch,
		"created_at": meta.CreatedAt.Format(time.RFC3339),
		"version":    Version,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	return os.WriteFile(filepath.Join(stateDir, "meta.json"), append(data, '\n'), 0o644)
}

func osSignalChannel() chan os.Signal {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	return sigChan
}

// CLI is the root command structure.
type CLI struct {
	Version kong.VersionFlag `help:"Show version information"`

	Init    InitCmd    `cmd:"" help:"Initialize a graph store for a repository"`
	History HistoryCmd `cmd:"" help:"Build relationship graphs for the repository's commits"`
	Log     LogCmd     `cmd:"" help:"List indexed commits"`
	Show    ShowCmd    `cmd:"" help:"Show graph statistics for a commit"`
	Export  ExportCmd  `cmd:"" help:"Export a commit's graph as JSON"`
	Search  SearchCmd  `cmd:"" help:"Search a commit's graph nodes by name"`
	Analyze AnalyzeCmd `cmd:"" help:"Run analyses over stored graphs"`
	Watch   WatchCmd   `cmd:"" help:"Rebuild the worktree graph on file changes"`
	MCP     MCPCmd     `cmd:"" name:"mcp" help:"Serve the graph store over MCP stdio"`
}

// NewCLI creates a new CLI instance.
func NewCLI() *CLI {
	return &CLI{}
}

// Execute parses arguments and runs the selected command.
func (c *CLI) Execute(args []string) error {
	kongCtx := kong.Parse(c,
		kong.Name("dendrite"),
		kong.Description("Relationship graphs for every commit of a Python repository"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{"version": Version},
	)
	return kongCtx.Run()
}
