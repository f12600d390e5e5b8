package ingestion

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/Benny93/dendrite-go/internal/graph"
)

// WorktreeSnapshotID identifies graphs built from the working tree rather
// than a committed snapshot.
const WorktreeSnapshotID = "worktree"

// defaultDebounce is the window over which change events are batched.
const defaultDebounce = 2 * time.Second

// RebuildEvent describes one watch-triggered rebuild. Changed is empty for
// the initial build; deltas are against the previous rebuild's graph.
type RebuildEvent struct {
	Changed   []string
	Stats     BuildStats
	NodeDelta int
	EdgeDelta int
	Duration  time.Duration
}

// Watcher rebuilds the working tree's graph whenever watched files change.
// Events are batched over the debounce window and each batch triggers a
// full rebuild, so the graph never drifts from what a fresh build would
// produce.
type Watcher struct {
	Root      string
	Builder   *Builder
	Debounce  time.Duration      // defaults to 2s
	OnRebuild func(RebuildEvent) // called after every successful rebuild
	OnError   func(error)        // non-fatal watch and rebuild errors
}

// Run builds the worktree graph once, then blocks rebuilding on change
// batches until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	matcher, err := ignoreMatcher(w.Root)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the whole tree recursively, minus ignored directories.
	err = filepath.WalkDir(w.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if shouldSkipDir(d.Name(), path, w.Root, matcher) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
	if err != nil {
		return fmt.Errorf("setting up watcher on %s: %w", w.Root, err)
	}

	prev, err := w.rebuild(ctx, nil, nil)
	if err != nil {
		return err
	}

	changed := make(map[string]bool)
	batchTimer := time.NewTimer(debounce)
	batchTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			// New directories must be added to the watch or events
			// inside them are lost.
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				if !shouldSkipDir(info.Name(), event.Name, w.Root, matcher) {
					_ = watcher.Add(event.Name)
				}
				continue
			}

			rel, ok := w.watchedFile(event.Name, matcher)
			if !ok {
				continue
			}
			changed[rel] = true
			batchTimer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.reportError(err)

		case <-batchTimer.C:
			if len(changed) == 0 {
				continue
			}
			batch := make([]string, 0, len(changed))
			for path := range changed {
				batch = append(batch, path)
			}
			sort.Strings(batch)
			changed = make(map[string]bool)

			next, err := w.rebuild(ctx, batch, prev)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				w.reportError(err)
				continue
			}
			prev = next
		}
	}
}

// rebuild walks the worktree and constructs a fresh graph, emitting a
// RebuildEvent with deltas against prev (nil for the initial build).
func (w *Watcher) rebuild(ctx context.Context, batch []string, prev *graph.Graph) (*graph.Graph, error) {
	start := time.Now()
	files, err := WalkWorktree(w.Root)
	if err != nil {
		return nil, err
	}

	g, stats, err := w.Builder.Build(ctx, Snapshot{
		ID:    WorktreeSnapshotID,
		Repo:  filepath.Base(w.Root),
		Files: files,
	})
	if err != nil {
		return nil, err
	}

	if w.OnRebuild != nil {
		event := RebuildEvent{
			Changed:  batch,
			Stats:    *stats,
			Duration: time.Since(start),
		}
		if prev != nil {
			event.NodeDelta = g.NodeCount() - prev.NodeCount()
			event.EdgeDelta = g.EdgeCount() - prev.EdgeCount()
		} else {
			event.NodeDelta = g.NodeCount()
			event.EdgeDelta = g.EdgeCount()
		}
		w.OnRebuild(event)
	}
	return g, nil
}

// watchedFile reports whether an event path is a Python file this watcher
// cares about, returning its slash-separated repo-relative path.
func (w *Watcher) watchedFile(path string, matcher gitignore.Matcher) (string, bool) {
	if !strings.HasSuffix(path, ".py") {
		return "", false
	}
	rel, err := filepath.Rel(w.Root, path)
	if err != nil {
		return "", false
	}
	if matcher.Match(splitPath(rel), false) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (w *Watcher) reportError(err error) {
	if w.OnError != nil {
		w.OnError(err)
	}
}
