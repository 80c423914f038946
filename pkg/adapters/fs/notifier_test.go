package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/folio/pkg/core"
)

func startNotifier(t *testing.T, config NotifierConfig) *Notifier {
	t.Helper()

	n, err := NewNotifier(config)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, n.Start(ctx))
	t.Cleanup(func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer stopCancel()
		_ = n.Stop(stopCtx)
		cancel()
	})
	return n
}

func waitForOp(t *testing.T, n *Notifier, path string, op core.Op) {
	t.Helper()

	deadline := time.After(3 * time.Second)
	for {
		select {
		case e := <-n.Events():
			if e.Path == path && e.Op == op {
				return
			}
		case <-deadline:
			t.Fatalf("timeout waiting for %s on %s", op, path)
		}
	}
}

func TestNotifier_DeliversWatchedFileEvents(t *testing.T) {
	dir, err := Canonical(t.TempDir())
	require.NoError(t, err)
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("X"), 0644))

	n := startNotifier(t, NotifierConfig{})
	require.NoError(t, n.Add(path))
	assert.Equal(t, []string{path}, n.Watched())

	require.NoError(t, os.WriteFile(path, []byte("Y"), 0644))
	waitForOp(t, n, path, core.OpModified)

	require.NoError(t, os.Remove(path))
	waitForOp(t, n, path, core.OpRemoved)
}

func TestNotifier_AtomicSaveKeepsWatching(t *testing.T) {
	dir, err := Canonical(t.TempDir())
	require.NoError(t, err)
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("X"), 0644))

	n := startNotifier(t, NotifierConfig{})
	require.NoError(t, n.Add(path))

	_, err = replaceFile(path, []byte("Y"), 0644)
	require.NoError(t, err)
	waitForOp(t, n, path, core.OpModified)

	// The directory watch survives the inode swap.
	_, err = replaceFile(path, []byte("Z"), 0644)
	require.NoError(t, err)
	waitForOp(t, n, path, core.OpModified)
}

func TestNotifier_IgnoresUnwatchedAndPatterns(t *testing.T) {
	dir, err := Canonical(t.TempDir())
	require.NoError(t, err)
	watched := filepath.Join(dir, "a.txt")
	ignored := filepath.Join(dir, "a.txt.swp")
	other := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(watched, []byte("X"), 0644))

	n := startNotifier(t, NotifierConfig{IgnorePatterns: []string{"*.swp"}})
	require.NoError(t, n.Add(watched))
	require.NoError(t, n.Add(ignored))

	require.NoError(t, os.WriteFile(other, []byte("b"), 0644))
	require.NoError(t, os.WriteFile(ignored, []byte("s"), 0644))
	require.NoError(t, os.WriteFile(watched, []byte("Y"), 0644))

	deadline := time.After(3 * time.Second)
	for {
		select {
		case e := <-n.Events():
			require.Equal(t, watched, e.Path, "only the watched, non-ignored file may surface")
			return
		case <-deadline:
			t.Fatal("timeout waiting for watched file event")
		}
	}
}

func TestNotifier_RemoveStopsDelivery(t *testing.T) {
	dir, err := Canonical(t.TempDir())
	require.NoError(t, err)
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("X"), 0644))

	n := startNotifier(t, NotifierConfig{})
	require.NoError(t, n.Add(path))
	require.NoError(t, n.Remove(path))
	assert.Empty(t, n.Watched())

	require.NoError(t, os.WriteFile(path, []byte("Y"), 0644))
	select {
	case e := <-n.Events():
		t.Fatalf("unexpected event after Remove: %+v", e)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestNotifier_InvalidIgnorePattern(t *testing.T) {
	_, err := NewNotifier(NotifierConfig{IgnorePatterns: []string{"[x-"}})
	assert.Error(t, err)
}
