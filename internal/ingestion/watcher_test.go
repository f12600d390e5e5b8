package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/dendrite-go/internal/parsers"
)

func waitRebuild(t *testing.T, events <-chan RebuildEvent) RebuildEvent {
	t.Helper()
	select {
	case event := <-events:
		return event
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for rebuild")
		return RebuildEvent{}
	}
}

func TestWatcher(t *testing.T) {
	t.Parallel()

	t.Run("RebuildsOnNewFile", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		writeFile(t, root, "a.py", "")

		events := make(chan RebuildEvent, 8)
		w := &Watcher{
			Root:      root,
			Builder:   NewBuilder(parsers.NewPythonParser()),
			Debounce:  50 * time.Millisecond,
			OnRebuild: func(e RebuildEvent) { events <- e },
		}

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- w.Run(ctx) }()

		initial := waitRebuild(t, events)
		assert.Empty(t, initial.Changed)
		// Root folder plus the file node.
		assert.Equal(t, 2, initial.NodeDelta)
		assert.Equal(t, 1, initial.EdgeDelta)

		writeFile(t, root, "b.py", "")
		rebuilt := waitRebuild(t, events)
		assert.Equal(t, []string{"b.py"}, rebuilt.Changed)
		assert.Equal(t, 1, rebuilt.NodeDelta)
		assert.Equal(t, 1, rebuilt.EdgeDelta)
		assert.Equal(t, 2, rebuilt.Stats.Files)

		cancel()
		err := <-done
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("IgnoresUnwatchedFiles", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		writeFile(t, root, "a.py", "")

		events := make(chan RebuildEvent, 8)
		w := &Watcher{
			Root:      root,
			Builder:   NewBuilder(parsers.NewPythonParser()),
			Debounce:  50 * time.Millisecond,
			OnRebuild: func(e RebuildEvent) { events <- e },
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		done := make(chan error, 1)
		go func() { done <- w.Run(ctx) }()

		waitRebuild(t, events)

		require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("hi"), 0o644))
		select {
		case event := <-events:
			t.Fatalf("unexpected rebuild for %v", event.Changed)
		case <-time.After(300 * time.Millisecond):
		}

		cancel()
		assert.ErrorIs(t, <-done, context.Canceled)
	})
}
