package docsys

import "time"

// debouncer keeps one quiescence timer per path. Each touch restarts the
// path's timer and bumps its generation, so a fire that raced with a later
// touch is recognised as stale by the receiver.
//
// It has no lock of its own: the watcher only touches it under the model lock.
type debouncer struct {
	window time.Duration
	timers map[string]*debounceTimer
	seq    uint64
	fire   func(path string, gen uint64)
}

type debounceTimer struct {
	gen   uint64
	timer *time.Timer
}

func newDebouncer(window time.Duration, fire func(path string, gen uint64)) *debouncer {
	return &debouncer{
		window: window,
		timers: make(map[string]*debounceTimer),
		fire:   fire,
	}
}

// touch (re)starts the timer for path and returns its new generation.
// Generations are unique across paths and cancellations.
func (d *debouncer) touch(path string) uint64 {
	t, ok := d.timers[path]
	if !ok {
		t = &debounceTimer{}
		d.timers[path] = t
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	d.seq++
	t.gen = d.seq
	gen := t.gen
	t.timer = time.AfterFunc(d.window, func() { d.fire(path, gen) })
	return gen
}

// current reports whether gen is the live generation for path.
func (d *debouncer) current(path string, gen uint64) bool {
	t, ok := d.timers[path]
	return ok && t.timer != nil && t.gen == gen
}

// done marks the live timer for path as consumed.
func (d *debouncer) done(path string) {
	if t, ok := d.timers[path]; ok {
		t.timer = nil
	}
}

// cancel stops the timer for path. A fire already in flight becomes stale.
func (d *debouncer) cancel(path string) {
	t, ok := d.timers[path]
	if !ok {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	delete(d.timers, path)
}

func (d *debouncer) pending() int {
	n := 0
	for _, t := range d.timers {
		if t.timer != nil {
			n++
		}
	}
	return n
}

func (d *debouncer) stopAll() {
	for path := range d.timers {
		d.cancel(path)
	}
}
