package docsys

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aretw0/folio/pkg/adapters/fs"
	"github.com/aretw0/folio/pkg/core"
	"github.com/aretw0/folio/pkg/prompt"
)

// fakeNotifier lets tests decide exactly which raw events the watcher sees.
type fakeNotifier struct {
	mu      sync.Mutex
	watched map[string]bool
	events  chan core.RawEvent
	errors  chan error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		watched: make(map[string]bool),
		events:  make(chan core.RawEvent, 64),
		errors:  make(chan error, 1),
	}
}

func (n *fakeNotifier) Add(path string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.watched[path] = true
	return nil
}

func (n *fakeNotifier) Remove(path string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.watched, path)
	return nil
}

func (n *fakeNotifier) Events() <-chan core.RawEvent { return n.events }

func (n *fakeNotifier) Errors() <-chan error { return n.errors }

func (n *fakeNotifier) isWatched(path string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.watched[path]
}

func (n *fakeNotifier) emit(path string, op core.Op) {
	n.events <- core.RawEvent{Path: path, Op: op, Time: time.Now()}
}

var errInjected = errors.New("injected failure")

// faultyStore wraps the real store with switchable failures.
type faultyStore struct {
	*fs.Store
	failRead  atomic.Bool
	failWrite atomic.Bool
}

func (s *faultyStore) Read(path string) ([]byte, core.Fingerprint, bool, error) {
	if s.failRead.Load() {
		return nil, core.Absent, false, errInjected
	}
	return s.Store.Read(path)
}

func (s *faultyStore) Write(path string, data []byte) (core.Fingerprint, error) {
	if s.failWrite.Load() {
		return core.Absent, errInjected
	}
	return s.Store.Write(path, data)
}

type harness struct {
	t        *testing.T
	dir      string
	sys      *System
	watcher  *Watcher
	notifier *fakeNotifier
	store    *faultyStore
	prompt   *prompt.Scripted
}

const (
	testDebounce   = 30 * time.Millisecond
	testEchoWindow = 250 * time.Millisecond
	testTimeout    = 3 * time.Second
)

func newHarness(t *testing.T, answers ...core.Decision) *harness {
	t.Helper()

	dir, err := fs.Canonical(t.TempDir())
	require.NoError(t, err)

	h := &harness{
		t:        t,
		dir:      dir,
		notifier: newFakeNotifier(),
		store:    &faultyStore{Store: fs.NewStore()},
		prompt:   prompt.NewScripted(answers...),
	}
	h.sys = New(Config{
		Store:       h.store,
		Notifier:    h.notifier,
		EchoWindow:  testEchoWindow,
		EventBuffer: 256,
	})
	h.watcher, err = NewWatcher(h.sys, WatcherConfig{Prompt: h.prompt, Debounce: testDebounce})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, h.watcher.Start(ctx))
	t.Cleanup(func() {
		cancel()
		<-h.watcher.Done()
	})
	return h
}

func (h *harness) path(name string) string {
	return filepath.Join(h.dir, name)
}

func (h *harness) write(name, content string) string {
	h.t.Helper()
	p := h.path(name)
	require.NoError(h.t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func (h *harness) open(name, content string) core.Document {
	h.t.Helper()
	p := h.write(name, content)
	doc, err := h.sys.Open(context.Background(), p, "")
	require.NoError(h.t, err)
	return doc
}

// external changes a file behind the system's back and reports it.
func (h *harness) external(name, content string) {
	h.t.Helper()
	h.notifier.emit(h.write(name, content), core.OpModified)
}

func (h *harness) externalRemove(name string) {
	h.t.Helper()
	p := h.path(name)
	require.NoError(h.t, os.Remove(p))
	h.notifier.emit(p, core.OpRemoved)
}

func (h *harness) doc(id core.DocumentID) core.Document {
	h.t.Helper()
	doc, ok := h.sys.Document(id)
	require.True(h.t, ok, "document %s is not open", id)
	return doc
}

// waitRaw waits until the watcher has consumed n raw events in total.
func (h *harness) waitRaw(n uint64) {
	h.t.Helper()
	require.Eventually(h.t, func() bool {
		return h.watcher.Stats().RawEvents >= n
	}, testTimeout, 5*time.Millisecond)
}

func (h *harness) waitCalls(n int) {
	h.t.Helper()
	require.Eventually(h.t, func() bool {
		return len(h.prompt.Calls()) >= n
	}, testTimeout, 5*time.Millisecond)
}

func (h *harness) settle() {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	require.NoError(h.t, h.watcher.WaitSettled(ctx))
}

// settleEcho waits past the echo window and for any verification it triggers.
func (h *harness) settleEcho() {
	h.t.Helper()
	time.Sleep(testEchoWindow + 2*testDebounce)
	h.settle()
}
