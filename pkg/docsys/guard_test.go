package docsys

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestGuard(t *testing.T) {
	t.Run("Armed During Write", func(t *testing.T) {
		g := newGuard(time.Hour)
		release := g.arm("/a")
		if !g.active("/a") {
			t.Fatal("expected guard to be active while armed")
		}
		if g.active("/b") {
			t.Fatal("guard must be per path")
		}
		release(false)
		if g.active("/a") {
			t.Fatal("failed write must leave nothing behind")
		}
	})

	t.Run("Success Leaves Echo Token", func(t *testing.T) {
		g := newGuard(time.Hour)
		g.arm("/a")(true)
		if !g.absorb("/a") {
			t.Fatal("expected echo to be absorbed")
		}
		if expired, _ := g.expire("/a"); expired {
			t.Fatal("token must not expire before its window")
		}
		g.stop()
	})

	t.Run("Expiry Reports Absorbed", func(t *testing.T) {
		g := newGuard(time.Hour)
		now := time.Now()
		g.now = func() time.Time { return now }
		g.arm("/a")(true)
		g.absorb("/a")

		now = now.Add(2 * time.Hour)
		expired, absorbed := g.expire("/a")
		if !expired || !absorbed {
			t.Fatalf("got expired=%v absorbed=%v", expired, absorbed)
		}
		if g.absorb("/a") {
			t.Fatal("expired guard must not absorb")
		}
		g.stop()
	})

	t.Run("Release Is Idempotent", func(t *testing.T) {
		g := newGuard(time.Hour)
		first := g.arm("/a")
		second := g.arm("/a")
		first(false)
		first(false)
		if !g.active("/a") {
			t.Fatal("second writer still holds the guard")
		}
		second(false)
		if g.active("/a") {
			t.Fatal("expected guard to be released")
		}
	})

	t.Run("Timer Calls Hook", func(t *testing.T) {
		g := newGuard(10 * time.Millisecond)
		var fired atomic.Int32
		g.setExpireHook(func(path string) { fired.Add(1) })
		g.arm("/a")(true)

		deadline := time.Now().Add(time.Second)
		for fired.Load() == 0 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		if fired.Load() != 1 {
			t.Fatalf("hook fired %d times", fired.Load())
		}
	})
}

func TestDebouncer(t *testing.T) {
	fired := make(chan uint64, 8)
	d := newDebouncer(20*time.Millisecond, func(path string, gen uint64) { fired <- gen })

	first := d.touch("/a")
	second := d.touch("/a")
	if first == second {
		t.Fatal("each touch must produce a new generation")
	}
	if d.current("/a", first) {
		t.Fatal("superseded generation must be stale")
	}

	select {
	case gen := <-fired:
		if gen != second {
			t.Fatalf("fired gen %d, want %d", gen, second)
		}
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
	if !d.current("/a", second) {
		t.Fatal("live generation must be current until consumed")
	}
	d.done("/a")
	if d.pending() != 0 {
		t.Fatal("consumed timer must not count as pending")
	}

	third := d.touch("/a")
	d.cancel("/a")
	if d.current("/a", third) {
		t.Fatal("cancelled generation must be stale")
	}
	if again := d.touch("/a"); again == third {
		t.Fatal("generations must not repeat after cancel")
	}
	d.stopAll()
}
