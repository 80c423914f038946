package docsys

import (
	"sync"
	"time"
)

// guard suppresses the notifications a save produces on its own target.
//
// While a write is in flight the path is armed. A successful write leaves an
// echo token behind for the echo window, because the notifier may deliver the
// write's events after the write returned. A failed write leaves nothing, so
// a concurrent external change is still reported.
type guard struct {
	mu      sync.Mutex
	window  time.Duration
	entries map[string]*guardEntry
	now     func() time.Time

	// onExpire is called from the token timer. The watcher installs it to
	// verify absorbed events; without a watcher the entry just expires.
	onExpire func(path string)
}

type guardEntry struct {
	armed    int
	until    time.Time
	absorbed bool
	timer    *time.Timer
}

func newGuard(window time.Duration) *guard {
	return &guard{
		window:  window,
		entries: make(map[string]*guardEntry),
		now:     time.Now,
	}
}

// arm marks path as being written. The returned release must be called
// exactly once with the outcome of the write.
func (g *guard) arm(path string) (release func(ok bool)) {
	g.mu.Lock()
	e, ok := g.entries[path]
	if !ok {
		e = &guardEntry{}
		g.entries[path] = e
	}
	e.armed++
	g.mu.Unlock()

	var once sync.Once
	return func(ok bool) {
		once.Do(func() { g.release(path, ok) })
	}
}

func (g *guard) release(path string, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, found := g.entries[path]
	if !found {
		return
	}
	e.armed--
	if ok {
		e.until = g.now().Add(g.window)
		if e.timer != nil {
			e.timer.Stop()
		}
		e.timer = time.AfterFunc(g.window, func() { g.fire(path) })
		return
	}
	if e.armed == 0 && !g.now().Before(e.until) {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(g.entries, path)
	}
}

func (g *guard) fire(path string) {
	g.mu.Lock()
	hook := g.onExpire
	g.mu.Unlock()

	if hook != nil {
		hook(path)
		return
	}
	g.expire(path)
}

// active reports whether notifications for path are currently suppressed.
func (g *guard) active(path string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.entries[path]
	return ok && g.activeLocked(e)
}

// absorb swallows a notification for path if the guard covers it. Absorbed
// notifications are re-checked against the disk once the token expires.
func (g *guard) absorb(path string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.entries[path]
	if !ok || !g.activeLocked(e) {
		return false
	}
	e.absorbed = true
	return true
}

// expire drops the entry for path once it no longer covers anything.
// It reports whether the entry went away and whether it had absorbed events.
func (g *guard) expire(path string) (expired, absorbed bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.entries[path]
	if !ok {
		return false, false
	}
	if g.activeLocked(e) {
		return false, false
	}
	delete(g.entries, path)
	return true, e.absorbed
}

func (g *guard) activeLocked(e *guardEntry) bool {
	return e.armed > 0 || g.now().Before(e.until)
}

func (g *guard) setExpireHook(fn func(path string)) {
	g.mu.Lock()
	g.onExpire = fn
	g.mu.Unlock()
}

func (g *guard) stop() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for path, e := range g.entries {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(g.entries, path)
	}
}
