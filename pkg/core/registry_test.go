package core

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func paths(docs []*Document) []string {
	var out []string
	for _, d := range docs {
		out = append(out, d.Path)
	}
	return out
}

func TestRegistry_Register(t *testing.T) {
	t.Run("Rejects Duplicate Path", func(t *testing.T) {
		r := NewRegistry()
		if _, err := r.Register("/tmp/a.txt"); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		_, err := r.Register("/tmp/a.txt")
		if !errors.Is(err, ErrDuplicatePath) {
			t.Fatalf("expected ErrDuplicatePath, got %v", err)
		}
		if r.Len() != 1 {
			t.Errorf("expected 1 document, got %d", r.Len())
		}
	})

	t.Run("Untitled Documents Never Collide", func(t *testing.T) {
		r := NewRegistry()
		a, err := r.Register("")
		if err != nil {
			t.Fatal(err)
		}
		b, err := r.Register("")
		if err != nil {
			t.Fatal(err)
		}
		if a.ID == b.ID {
			t.Fatal("expected distinct ids")
		}
		if !a.Untitled() || r.References("") {
			t.Error("untitled documents must not be indexed by path")
		}
	})

	t.Run("Path Reusable After Unregister", func(t *testing.T) {
		r := NewRegistry()
		a, _ := r.Register("/tmp/a.txt")
		closed, ok := r.Unregister(a.ID)
		if !ok || closed.State != StateClosed {
			t.Fatalf("expected closed document, got %+v", closed)
		}
		b, err := r.Register("/tmp/a.txt")
		if err != nil {
			t.Fatalf("expected path reuse, got %v", err)
		}
		if b.ID == a.ID {
			t.Error("expected a new document for the reused path")
		}
	})
}

func TestRegistry_Rekey(t *testing.T) {
	r := NewRegistry()
	a, _ := r.Register("/tmp/a.txt")
	b, _ := r.Register("/tmp/b.txt")

	if err := r.Rekey(a.ID, "/tmp/b.txt"); !errors.Is(err, ErrDuplicatePath) {
		t.Fatalf("expected ErrDuplicatePath, got %v", err)
	}
	if err := r.Rekey(a.ID, "/tmp/c.txt"); err != nil {
		t.Fatalf("Rekey failed: %v", err)
	}
	if r.References("/tmp/a.txt") {
		t.Error("old path still referenced")
	}
	got, ok := r.LookupByPath("/tmp/c.txt")
	if !ok || got.ID != a.ID {
		t.Fatalf("lookup by new path failed: %+v", got)
	}
	if err := r.Rekey("missing", "/tmp/d.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	want := []string{"/tmp/c.txt", "/tmp/b.txt"}
	if diff := cmp.Diff(want, paths(r.Snapshot())); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
	_ = b
}

// Any interleaving of register/rekey/unregister keeps at most one open
// document per path.
func TestRegistry_UniquenessUnderChurn(t *testing.T) {
	r := NewRegistry()
	names := []string{"/a", "/b", "/c"}
	var ids []DocumentID

	for i := 0; i < 200; i++ {
		name := names[i%len(names)]
		switch i % 4 {
		case 0, 1:
			if d, err := r.Register(name); err == nil {
				ids = append(ids, d.ID)
			}
		case 2:
			if len(ids) > 0 {
				_ = r.Rekey(ids[i%len(ids)], names[(i+1)%len(names)])
			}
		case 3:
			if len(ids) > 0 {
				r.Unregister(ids[0])
				ids = ids[1:]
			}
		}

		seen := map[string]bool{}
		for _, d := range r.Snapshot() {
			if d.Path == "" {
				continue
			}
			if seen[d.Path] {
				t.Fatalf("step %d: duplicate open path %s", i, d.Path)
			}
			seen[d.Path] = true
		}
	}
}
