package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/folio/pkg/core"
)

func next(t *testing.T, src lifecycle.Source) (lifecycle.Event, bool) {
	t.Helper()
	select {
	case e, ok := <-src.Events():
		return e, ok
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for the source")
		return nil, false
	}
}

func TestSource_BridgesEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan core.Event, 1)
	src := NewSource(in)
	require.NoError(t, src.Start(ctx))

	in <- core.Event{Type: core.EventConflict, Path: "/tmp/a.txt", Detail: "modified"}
	e, ok := next(t, src)
	require.True(t, ok)
	assert.Equal(t, "CONFLICT /tmp/a.txt (modified)", e.String())

	close(in)
	_, ok = next(t, src)
	assert.False(t, ok, "closing the input closes the output")
}

func TestSource_FiltersByType(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan core.Event, 3)
	src := NewSource(in, core.EventReload, core.EventClose)
	require.NoError(t, src.Start(ctx))

	in <- core.Event{Type: core.EventSave, Path: "a"}
	in <- core.Event{Type: core.EventReload, Path: "a"}
	in <- core.Event{Type: core.EventClose, Path: "a"}

	e, ok := next(t, src)
	require.True(t, ok)
	assert.Equal(t, "RELOAD a", e.String())
	e, ok = next(t, src)
	require.True(t, ok)
	assert.Equal(t, "CLOSE a", e.String())
}

func TestSource_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := NewSource(make(chan core.Event))
	require.NoError(t, src.Start(ctx))

	cancel()
	_, ok := next(t, src)
	assert.False(t, ok)
}
