package docsys

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/folio/pkg/core"
)

// WatcherConfig holds the configuration for the document watcher.
type WatcherConfig struct {
	Logger       *slog.Logger
	Prompt       core.PromptHandler
	Debounce     time.Duration
	InboxSize    int
	ErrorHandler func(error)
}

const (
	DefaultDebounce  = 200 * time.Millisecond
	DefaultInboxSize = 256
)

var ErrWatcherNotRunning = errors.New("watcher is not running")

// phase is where a path sits in reconciliation. Document lifecycle states
// live on the document; phases are the watcher's view of a path.
type phase int

const (
	phaseIdle phase = iota
	phaseDebouncing
	phaseAwaiting
)

func (p phase) String() string {
	switch p {
	case phaseIdle:
		return "idle"
	case phaseDebouncing:
		return "debouncing"
	case phaseAwaiting:
		return "awaiting-decision"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

type pathState struct {
	phase  phase
	since  time.Time
	queued bool // events arrived while awaiting a decision
}

// Watcher reconciles open documents with external changes. It consumes raw
// notifier events, debounces them per path, classifies the settled state
// against each document's fingerprint, and asks the prompt handler what to do.
//
// Every transition runs on the watcher's loop under the system's model lock.
// Prompt handlers run on their own goroutines and post their decisions back.
type Watcher struct {
	sys     *System
	config  WatcherConfig
	logger  *slog.Logger
	prompt  core.PromptHandler
	inbox   chan any
	done    chan struct{}
	started atomic.Bool
	runCtx  context.Context

	// Guarded by sys.mu.
	paths    map[string]*pathState
	debounce *debouncer
	queue    *promptQueue
	stats    WatcherStats
}

// Loop messages.
type rawMsg struct{ ev core.RawEvent }

type timerMsg struct {
	path string
	gen  uint64
}

type echoMsg struct{ path string }

type decisionMsg struct {
	item     *pendingConflict
	decision core.Decision
	err      error
}

type checkAllMsg struct{ reply chan int }

// NewWatcher attaches a watcher to sys. A system has at most one watcher.
func NewWatcher(sys *System, config WatcherConfig) (*Watcher, error) {
	if config.Prompt == nil {
		return nil, errors.New("watcher requires a prompt handler")
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}
	if config.InboxSize <= 0 {
		config.InboxSize = DefaultInboxSize
	}

	w := &Watcher{
		sys:    sys,
		config: config,
		logger: config.Logger,
		prompt: config.Prompt,
		inbox:  make(chan any, config.InboxSize),
		done:   make(chan struct{}),
		paths:  make(map[string]*pathState),
		queue:  &promptQueue{},
		stats:  newWatcherStats(),
	}
	w.debounce = newDebouncer(config.Debounce, func(path string, gen uint64) {
		w.post(timerMsg{path: path, gen: gen})
	})

	sys.mu.Lock()
	defer sys.mu.Unlock()
	if sys.watcher != nil {
		return nil, errors.New("document system already has a watcher")
	}
	sys.watcher = w
	return w, nil
}

// Start runs the watcher loop until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if !w.started.CompareAndSwap(false, true) {
		return errors.New("watcher already started")
	}
	w.runCtx = ctx

	w.sys.guard.setExpireHook(func(path string) {
		w.post(echoMsg{path: path})
	})

	if n := w.sys.notifier; n != nil {
		lifecycle.Go(ctx, func(ctx context.Context) error {
			return w.pump(ctx, n)
		}, lifecycle.WithErrorHandler(w.handleError))
	}

	lifecycle.Go(ctx, w.run, lifecycle.WithErrorHandler(w.handleError))
	return nil
}

// Done is closed once the loop has exited.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

// CheckAll compares every idle document with its file and queues a conflict
// for each divergence. The conflicts form one batch, so the handler may
// answer CloseAll. It returns the number of conflicts raised.
func (w *Watcher) CheckAll(ctx context.Context) (int, error) {
	if !w.running() {
		return 0, ErrWatcherNotRunning
	}
	reply := make(chan int, 1)
	if !w.send(ctx, checkAllMsg{reply: reply}) {
		return 0, ErrWatcherNotRunning
	}
	select {
	case n := <-reply:
		return n, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-w.done:
		return 0, ErrWatcherNotRunning
	}
}

// WaitSettled blocks until no path is debouncing or awaiting a decision and
// the inbox is drained.
func (w *Watcher) WaitSettled(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if w.settled() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.done:
			return ErrWatcherNotRunning
		case <-ticker.C:
		}
	}
}

func (w *Watcher) settled() bool {
	if len(w.inbox) > 0 {
		return false
	}
	w.sys.mu.Lock()
	defer w.sys.mu.Unlock()

	for _, st := range w.paths {
		if st.phase != phaseIdle {
			return false
		}
	}
	return w.queue.idle()
}

func (w *Watcher) running() bool {
	if !w.started.Load() {
		return false
	}
	select {
	case <-w.done:
		return false
	default:
		return true
	}
}

// post delivers a message from a timer or prompt goroutine. Messages for a
// loop that is not running are dropped.
func (w *Watcher) post(msg any) {
	if !w.running() {
		if m, ok := msg.(echoMsg); ok {
			w.sys.guard.expire(m.path)
		}
		return
	}
	select {
	case w.inbox <- msg:
	case <-w.done:
	}
}

func (w *Watcher) send(ctx context.Context, msg any) bool {
	select {
	case w.inbox <- msg:
		return true
	case <-ctx.Done():
		return false
	case <-w.done:
		return false
	}
}

func (w *Watcher) handleError(err error) {
	w.logger.Error("watcher failure", "error", err)
	if w.config.ErrorHandler != nil {
		w.config.ErrorHandler(err)
	}
}

// pump forwards notifier output into the inbox.
func (w *Watcher) pump(ctx context.Context, n core.Notifier) error {
	events := n.Events()
	errs := n.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if !w.send(ctx, rawMsg{ev: ev}) {
				return nil
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.logger.Warn("notifier error", "error", err)
		}
		if events == nil && errs == nil {
			return nil
		}
	}
}

// run is the main loop of the watcher.
func (w *Watcher) run(ctx context.Context) (err error) {
	defer close(w.done)
	defer func() {
		if recovered := recover(); recovered != nil {
			panicErr := fmt.Errorf("watcher panic: %v", recovered)
			if w.logger.Enabled(ctx, slog.LevelDebug) {
				w.logger.Error("watcher panic", "error", panicErr, "stack", string(debug.Stack()))
			} else {
				w.logger.Error("watcher panic", "error", panicErr)
			}
			err = panicErr
		}
	}()
	defer w.shutdown()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-w.inbox:
			w.handle(msg)
		}
	}
}

func (w *Watcher) shutdown() {
	w.sys.mu.Lock()
	defer w.sys.mu.Unlock()

	w.debounce.stopAll()
	if item := w.queue.inFlight; item != nil {
		item.cancel()
	}
}

func (w *Watcher) handle(msg any) {
	w.sys.mu.Lock()
	defer w.sys.mu.Unlock()

	switch m := msg.(type) {
	case rawMsg:
		w.onRaw(m.ev)
	case timerMsg:
		w.onTimer(m.path, m.gen)
	case echoMsg:
		w.onEcho(m.path)
	case decisionMsg:
		w.onDecision(m)
	case checkAllMsg:
		m.reply <- w.onCheckAll()
	default:
		w.logger.Warn("unknown watcher message", "type", fmt.Sprintf("%T", msg))
	}
}

func (w *Watcher) pathState(path string) *pathState {
	st, ok := w.paths[path]
	if !ok {
		st = &pathState{}
		w.paths[path] = st
	}
	return st
}

func (w *Watcher) setPhase(path string, st *pathState, p phase) {
	if st.phase == p {
		return
	}
	w.logger.Debug("path transition", "path", path, "from", st.phase, "to", p)
	st.phase = p
	st.since = time.Now()
	w.stats.Transitions++
}

// onRaw handles a raw notifier event.
func (w *Watcher) onRaw(ev core.RawEvent) {
	w.stats.RawEvents++

	if _, ok := w.sys.registry.LookupByPath(ev.Path); !ok {
		return
	}
	st := w.pathState(ev.Path)

	switch st.phase {
	case phaseAwaiting:
		st.queued = true
		return
	case phaseIdle:
		if w.sys.guard.absorb(ev.Path) {
			w.stats.Suppressed++
			w.logger.Debug("self-save echo absorbed", "path", ev.Path, "op", ev.Op)
			return
		}
		w.setPhase(ev.Path, st, phaseDebouncing)
	}
	w.debounce.touch(ev.Path)
}

// onTimer handles the end of a quiet period.
func (w *Watcher) onTimer(path string, gen uint64) {
	if !w.debounce.current(path, gen) {
		return
	}
	w.debounce.done(path)

	st, ok := w.paths[path]
	if !ok || st.phase != phaseDebouncing {
		return
	}
	if w.sys.guard.absorb(path) {
		// A save started while the events settled; they are its own.
		w.stats.Suppressed++
		w.setPhase(path, st, phaseIdle)
		return
	}

	doc, ok := w.sys.registry.LookupByPath(path)
	if !ok {
		w.setPhase(path, st, phaseIdle)
		return
	}
	kind, ok := w.classify(doc)
	if !ok {
		w.setPhase(path, st, phaseIdle)
		return
	}
	w.raise(doc, st, kind)
	w.dispatch()
}

// onEcho verifies a path whose echo token expired after absorbing events.
// Anything the save did not write itself gets reconciled normally.
func (w *Watcher) onEcho(path string) {
	expired, absorbed := w.sys.guard.expire(path)
	if !expired || !absorbed {
		return
	}
	st := w.pathState(path)
	if st.phase != phaseIdle {
		return
	}
	doc, ok := w.sys.registry.LookupByPath(path)
	if !ok {
		return
	}
	if _, changed := w.classify(doc); !changed {
		return
	}
	w.logger.Debug("change hidden behind self-save", "path", path)
	w.setPhase(path, st, phaseDebouncing)
	w.debounce.touch(path)
}

// classify compares the file with the document. The settled disk state
// decides the kind: a missing file is a removal, anything else a modification.
func (w *Watcher) classify(doc *core.Document) (core.ConflictKind, bool) {
	fp, err := w.sys.store.Fingerprint(doc.Path)
	if err != nil {
		w.logger.Warn("fingerprint failed", "path", doc.Path, "error", err)
		return core.ConflictNone, false
	}
	if fp.Equal(doc.Fingerprint) {
		w.stats.Unchanged++
		return core.ConflictNone, false
	}
	if !fp.Exists {
		return core.ConflictRemoved, true
	}
	return core.ConflictModified, true
}

// raise marks the document conflicted and queues it for a decision.
func (w *Watcher) raise(doc *core.Document, st *pathState, kind core.ConflictKind) {
	doc.State = core.StatePendingConflict
	doc.Conflict = kind
	w.setPhase(doc.Path, st, phaseAwaiting)
	w.stats.Conflicts[kind.String()]++

	w.logger.Info("external change detected", "path", doc.Path, "kind", kind, "dirty", doc.Dirty)
	w.sys.emit(core.EventConflict, doc, kind.String())
	w.queue.push(&pendingConflict{docID: doc.ID, path: doc.Path, kind: kind})
}

func (w *Watcher) onCheckAll() int {
	n := 0
	for _, doc := range w.sys.registry.Snapshot() {
		if doc.Untitled() || doc.State != core.StateOpen {
			continue
		}
		st := w.pathState(doc.Path)
		if st.phase != phaseIdle || w.sys.guard.active(doc.Path) {
			continue
		}
		kind, ok := w.classify(doc)
		if !ok {
			continue
		}
		w.raise(doc, st, kind)
		n++
	}
	w.dispatch()
	return n
}

// release returns a resolved document to Open. Events that arrived while the
// decision was pending start a fresh debounce.
func (w *Watcher) release(doc *core.Document) {
	doc.State = core.StateOpen
	doc.Conflict = core.ConflictNone
	w.sys.emit(core.EventResolve, doc, "")

	st, ok := w.paths[doc.Path]
	if !ok {
		return
	}
	w.setPhase(doc.Path, st, phaseIdle)
	if st.queued {
		st.queued = false
		w.setPhase(doc.Path, st, phaseDebouncing)
		w.debounce.touch(doc.Path)
	}
}

// settleLocked is called by the system after a direct save, save-as or
// reload. Whatever conflict the document had is moot now.
func (w *Watcher) settleLocked(doc *core.Document) {
	if doc.State != core.StatePendingConflict {
		return
	}
	w.queue.remove(doc.ID)
	if item := w.queue.inFlight; item != nil && item.docID == doc.ID {
		item.cancel()
		w.queue.inFlight = nil
		defer w.dispatch()
	}
	w.release(doc)
}

// cancelLocked is called by the system when a document closes.
func (w *Watcher) cancelLocked(id core.DocumentID, path string) {
	if path != "" {
		w.dropPathLocked(path)
	}
	w.queue.remove(id)
	if item := w.queue.inFlight; item != nil && item.docID == id {
		item.cancel()
		w.queue.inFlight = nil
		w.dispatch()
	}
}

// dropPathLocked forgets a path that no document holds anymore.
func (w *Watcher) dropPathLocked(path string) {
	w.debounce.cancel(path)
	delete(w.paths, path)
}

// State returns a snapshot of the watcher for introspection.
func (w *Watcher) State() any {
	w.sys.mu.Lock()
	defer w.sys.mu.Unlock()

	s := WatcherState{
		Running:  w.running(),
		Timers:   w.debounce.pending(),
		Queued:   len(w.queue.items),
		Prompted: w.queue.inFlight != nil,
		Stats:    w.stats.clone(),
	}
	for _, st := range w.paths {
		switch st.phase {
		case phaseDebouncing:
			s.Debouncing++
		case phaseAwaiting:
			s.Awaiting++
		}
	}
	return s
}

func (w *Watcher) ComponentType() string {
	return "document-watcher"
}

// Stats returns a copy of the watcher counters.
func (w *Watcher) Stats() WatcherStats {
	w.sys.mu.Lock()
	defer w.sys.mu.Unlock()
	return w.stats.clone()
}

// WatcherState is the introspection snapshot of a watcher.
type WatcherState struct {
	Running    bool         `json:"running"`
	Debouncing int          `json:"debouncing"`
	Awaiting   int          `json:"awaiting"`
	Timers     int          `json:"timers"`
	Queued     int          `json:"queued"`
	Prompted   bool         `json:"prompted"`
	Stats      WatcherStats `json:"stats"`
}

// WatcherStats counts what the watcher has seen since it started.
type WatcherStats struct {
	RawEvents   uint64            `json:"raw_events"`
	Suppressed  uint64            `json:"suppressed"`
	Unchanged   uint64            `json:"unchanged"`
	Transitions uint64            `json:"transitions"`
	Prompts     uint64            `json:"prompts"`
	Conflicts   map[string]uint64 `json:"conflicts"`
	Decisions   map[string]uint64 `json:"decisions"`
}

func newWatcherStats() WatcherStats {
	return WatcherStats{
		Conflicts: make(map[string]uint64),
		Decisions: make(map[string]uint64),
	}
}

func (s WatcherStats) clone() WatcherStats {
	out := s
	out.Conflicts = make(map[string]uint64, len(s.Conflicts))
	for k, v := range s.Conflicts {
		out.Conflicts[k] = v
	}
	out.Decisions = make(map[string]uint64, len(s.Decisions))
	for k, v := range s.Decisions {
		out.Decisions[k] = v
	}
	return out
}
