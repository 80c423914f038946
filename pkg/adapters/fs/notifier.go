package fs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/aretw0/folio/pkg/core"
)

// NotifierConfig holds the configuration for the fsnotify-backed notifier.
type NotifierConfig struct {
	Logger         *slog.Logger
	IgnorePatterns []string // doublestar patterns matched against the base name
	ErrorHandler   func(error)
	Buffer         int
}

// Notifier implements core.Notifier on top of fsnotify.
//
// Files are not watched directly: rename-based saves replace the inode and
// drop a per-file watch, so the parent directory is watched instead and its
// events are filtered down to the registered files.
type Notifier struct {
	*worker.BaseWorker
	config  NotifierConfig
	watcher *fsnotify.Watcher
	events  chan core.RawEvent
	errors  chan error
	cancel  context.CancelFunc

	mu    sync.Mutex
	files map[string]struct{}
	dirs  map[string]int
}

var _ core.Notifier = (*Notifier)(nil)

// NewNotifier creates the notifier. Paths can be added before Start.
func NewNotifier(config NotifierConfig) (*Notifier, error) {
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if config.Buffer <= 0 {
		config.Buffer = 100
	}
	for _, p := range config.IgnorePatterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid ignore pattern %q", p)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &Notifier{
		BaseWorker: worker.NewBaseWorker("fs-notifier"),
		config:     config,
		watcher:    watcher,
		events:     make(chan core.RawEvent, config.Buffer),
		errors:     make(chan error, 16),
		files:      make(map[string]struct{}),
		dirs:       make(map[string]int),
	}, nil
}

// Add starts delivering events for path.
func (n *Notifier) Add(path string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.files[path]; ok {
		return nil
	}
	dir := filepath.Dir(path)
	if n.dirs[dir] == 0 {
		if err := n.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	n.dirs[dir]++
	n.files[path] = struct{}{}
	n.config.Logger.Debug("watching", "path", path)
	return nil
}

// Remove stops delivering events for path.
func (n *Notifier) Remove(path string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.files[path]; !ok {
		return nil
	}
	delete(n.files, path)

	dir := filepath.Dir(path)
	n.dirs[dir]--
	if n.dirs[dir] > 0 {
		return nil
	}
	delete(n.dirs, dir)
	if err := n.watcher.Remove(dir); err != nil {
		// The directory itself may be gone already.
		n.config.Logger.Debug("unwatch failed", "path", dir, "error", err)
	}
	n.config.Logger.Debug("unwatched", "path", path)
	return nil
}

// Events delivers raw events for watched files.
func (n *Notifier) Events() <-chan core.RawEvent {
	return n.events
}

// Errors delivers fsnotify failures.
func (n *Notifier) Errors() <-chan error {
	return n.errors
}

// Watched returns the watched files, sorted.
func (n *Notifier) Watched() []string {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]string, 0, len(n.files))
	for f := range n.files {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

func (n *Notifier) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	status := n.State().Status
	if status != worker.StatusCreated && status != worker.StatusPending {
		return fmt.Errorf("notifier already started (status: %s)", status)
	}

	runCtx, cancel := context.WithCancel(ctx)
	n.cancel = cancel

	n.SetStatus(worker.StatusRunning)
	return n.StartFunc(runCtx, n.run)
}

func (n *Notifier) Stop(ctx context.Context) error {
	if n.cancel != nil {
		n.StopRequested = true
		n.cancel()
	}

	return n.BaseWorker.Stop(ctx)
}

func (n *Notifier) State() worker.State {
	return n.ExportState(func(s *worker.State) {
		s.Metadata = map[string]string{
			worker.MetadataType: string(worker.TypeGoroutine),
			"watched":           fmt.Sprint(len(n.Watched())),
		}
	})
}

// mapOp reduces an fsnotify op to the terminal state it implies for the file.
func mapOp(op fsnotify.Op) (core.Op, bool) {
	switch {
	case op.Has(fsnotify.Remove):
		return core.OpRemoved, true
	case op.Has(fsnotify.Rename):
		return core.OpRenamed, true
	case op.Has(fsnotify.Create), op.Has(fsnotify.Write):
		return core.OpModified, true
	default:
		return 0, false // chmod only
	}
}

func (n *Notifier) shouldIgnore(path string) bool {
	if IsTempFile(path) {
		return true
	}
	n.mu.Lock()
	_, watched := n.files[path]
	n.mu.Unlock()
	if !watched {
		return true
	}
	name := filepath.Base(path)
	for _, p := range n.config.IgnorePatterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

// processFilesystemEvent filters and maps a single fsnotify event.
func (n *Notifier) processFilesystemEvent(ctx context.Context, event fsnotify.Event) {
	path := filepath.Clean(event.Name)
	if n.shouldIgnore(path) {
		return
	}
	op, ok := mapOp(event.Op)
	if !ok {
		return
	}

	n.config.Logger.Debug("event received", "path", path, "op", op)

	select {
	case n.events <- core.RawEvent{Path: path, Op: op, Time: time.Now()}:
	case <-ctx.Done():
	}
}

// handleWatcherError forwards errors without ever blocking the loop.
func (n *Notifier) handleWatcherError(err error) {
	n.config.Logger.Error("fsnotify error", "error", err)
	if n.config.ErrorHandler != nil {
		n.config.ErrorHandler(err)
	}
	select {
	case n.errors <- err:
	default:
	}
}

// run is the main event loop for the notifier worker.
func (n *Notifier) run(ctx context.Context) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			panicErr := fmt.Errorf("notifier panic: %v", recovered)
			if n.config.Logger.Enabled(ctx, slog.LevelDebug) {
				n.config.Logger.Error("notifier panic", "error", panicErr, "stack", string(debug.Stack()))
			} else {
				n.config.Logger.Error("notifier panic", "error", panicErr)
			}
			err = panicErr
		}
	}()
	defer n.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-n.watcher.Events:
			if !ok {
				if n.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}
			n.processFilesystemEvent(ctx, event)

		case wErr, ok := <-n.watcher.Errors:
			if !ok {
				if n.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			n.handleWatcherError(wErr)
		}
	}
}
