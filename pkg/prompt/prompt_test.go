package prompt

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/folio/pkg/core"
)

// syncBuffer lets the test read what the terminal wrote without racing it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func modifiedConflict(dirty bool, batch int) core.Conflict {
	doc := &core.Document{ID: "doc-1", Path: "/tmp/a.txt", Dirty: dirty}
	return core.NewConflict(doc, core.ConflictModified, batch)
}

func removedConflict(batch int) core.Conflict {
	doc := &core.Document{ID: "doc-2", Path: "/tmp/b.txt", Dirty: true}
	return core.NewConflict(doc, core.ConflictRemoved, batch)
}

func TestTerminal(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	t.Run("Answer By Number", func(t *testing.T) {
		out := &syncBuffer{}
		term := NewTerminal(strings.NewReader("1\n"), out)

		d, err := term.Ask(ctx, modifiedConflict(false, 1), core.BatchContext{Index: 1, Remaining: 1})
		require.NoError(t, err)
		assert.Equal(t, core.DecisionReload, d.Kind)
		assert.Contains(t, out.String(), core.TitleFileChanged)
		assert.Contains(t, out.String(), "1) "+core.LabelReload)
	})

	t.Run("Answer By Name After Invalid Choice", func(t *testing.T) {
		out := &syncBuffer{}
		term := NewTerminal(strings.NewReader("9\nsave-as\nignore\n"), out)

		d, err := term.Ask(ctx, modifiedConflict(true, 1), core.BatchContext{Index: 1, Remaining: 1})
		require.NoError(t, err)
		assert.Equal(t, core.DecisionIgnore, d.Kind)
		assert.Equal(t, 2, strings.Count(out.String(), "Invalid choice"))
		assert.Contains(t, out.String(), core.LabelKeepCurrent)
	})

	t.Run("Save As Reads Path", func(t *testing.T) {
		out := &syncBuffer{}
		term := NewTerminal(strings.NewReader("1\n\n1\nc.txt\n"), out)

		d, err := term.Ask(ctx, removedConflict(1), core.BatchContext{Index: 1, Remaining: 1})
		require.NoError(t, err)
		assert.Equal(t, core.SaveAs("c.txt"), d)
	})

	t.Run("Batch Position Is Shown", func(t *testing.T) {
		out := &syncBuffer{}
		term := NewTerminal(strings.NewReader("close-all\n"), out)

		d, err := term.Ask(ctx, removedConflict(3), core.BatchContext{Index: 1, Remaining: 3})
		require.NoError(t, err)
		assert.Equal(t, core.DecisionCloseAll, d.Kind)
		assert.Contains(t, out.String(), "(1 of 3)")
	})

	t.Run("EOF Ends The Prompt", func(t *testing.T) {
		term := NewTerminal(strings.NewReader(""), io.Discard)
		_, err := term.Ask(ctx, modifiedConflict(false, 1), core.BatchContext{Index: 1, Remaining: 1})
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("Cancellation", func(t *testing.T) {
		r, w := io.Pipe()
		defer w.Close()
		term := NewTerminal(r, io.Discard)

		cctx, ccancel := context.WithCancel(ctx)
		ccancel()
		_, err := term.Ask(cctx, modifiedConflict(false, 1), core.BatchContext{Index: 1, Remaining: 1})
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("Report Error", func(t *testing.T) {
		out := &syncBuffer{}
		term := NewTerminal(strings.NewReader(""), out)
		term.ReportError(ctx, core.SaveError("/tmp/c.txt", io.ErrUnexpectedEOF))
		assert.Contains(t, out.String(), core.TitleFileError)
		assert.Contains(t, out.String(), "Cannot save /tmp/c.txt")
	})
}

func TestPolicy(t *testing.T) {
	ctx := context.Background()

	p, err := NewPolicy("reload", "close", nil)
	require.NoError(t, err)

	d, err := p.Ask(ctx, modifiedConflict(true, 1), core.BatchContext{Index: 1, Remaining: 1})
	require.NoError(t, err)
	assert.Equal(t, core.DecisionReload, d.Kind)

	d, err = p.Ask(ctx, removedConflict(1), core.BatchContext{Index: 1, Remaining: 1})
	require.NoError(t, err)
	assert.Equal(t, core.DecisionClose, d.Kind)

	t.Run("Close All Narrows To Close", func(t *testing.T) {
		p, err := NewPolicy("ignore", "close-all", nil)
		require.NoError(t, err)

		d, err := p.Ask(ctx, removedConflict(1), core.BatchContext{Index: 1, Remaining: 1})
		require.NoError(t, err)
		assert.Equal(t, core.DecisionClose, d.Kind)

		d, err = p.Ask(ctx, removedConflict(2), core.BatchContext{Index: 1, Remaining: 2})
		require.NoError(t, err)
		assert.Equal(t, core.DecisionCloseAll, d.Kind)
	})

	t.Run("Refuses Unoffered Decision", func(t *testing.T) {
		p := &Policy{OnModified: core.DecisionClose, OnRemoved: core.DecisionIgnore}
		_, err := p.Ask(ctx, modifiedConflict(true, 1), core.BatchContext{Index: 1, Remaining: 1})
		assert.Error(t, err)
		_, err = p.Ask(ctx, removedConflict(1), core.BatchContext{Index: 1, Remaining: 1})
		assert.Error(t, err)
	})

	t.Run("Rejects Bad Names", func(t *testing.T) {
		tests := []struct {
			name                  string
			onModified, onRemoved string
		}{
			{"Unknown", "explode", "close"},
			{"Save As On Removed", "reload", "save-as"},
			{"Ignore On Removed", "ignore", "ignore"},
			{"Reload On Removed", "reload", "reload"},
			{"Close On Modified", "close", "close"},
			{"Save As On Modified", "save-as", "close"},
		}
		for _, tt := range tests {
			_, err := NewPolicy(tt.onModified, tt.onRemoved, nil)
			assert.Error(t, err, tt.name)
		}
	})

	t.Run("Keep", func(t *testing.T) {
		keep := KeepPolicy(nil)
		assert.Equal(t, core.DecisionIgnore, keep.OnModified)
		assert.Equal(t, core.DecisionClose, keep.OnRemoved)
	})
}

func TestScripted(t *testing.T) {
	ctx := context.Background()
	s := NewScripted(core.Reload())

	d, err := s.Ask(ctx, modifiedConflict(false, 1), core.BatchContext{Index: 1, Remaining: 1})
	require.NoError(t, err)
	assert.Equal(t, core.Reload(), d)

	_, err = s.Ask(ctx, modifiedConflict(false, 1), core.BatchContext{Index: 1, Remaining: 1})
	assert.ErrorIs(t, err, ErrNoAnswer)

	s.Push(core.Ignore())
	d, err = s.Ask(ctx, modifiedConflict(false, 1), core.BatchContext{Index: 1, Remaining: 1})
	require.NoError(t, err)
	assert.Equal(t, core.Ignore(), d)

	assert.Len(t, s.Calls(), 3)
	assert.Len(t, s.Asked(), 3)

	s.ReportError(ctx, core.ReloadError("/tmp/a.txt", io.EOF))
	require.Len(t, s.Errors(), 1)
	assert.Equal(t, core.TitleFileError, s.Errors()[0].Title)
}
