// Package core holds the domain of the document-lifecycle core: documents,
// fingerprints, conflicts, decisions and the registry that owns them.
package core

import (
	"bytes"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DocumentID is an opaque handle, stable for the lifetime of a document.
type DocumentID string

// NewDocumentID returns a fresh random handle.
func NewDocumentID() DocumentID {
	return DocumentID(uuid.New().String())
}

// LifecycleState is the coarse state of an open document.
type LifecycleState int

const (
	StateOpen LifecycleState = iota
	StatePendingConflict
	StateClosed
)

func (s LifecycleState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StatePendingConflict:
		return "pending-conflict"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ConflictKind describes how the on-disk file diverged from the document.
type ConflictKind int

const (
	ConflictNone ConflictKind = iota
	ConflictModified
	ConflictRemoved
)

func (k ConflictKind) String() string {
	switch k {
	case ConflictNone:
		return "none"
	case ConflictModified:
		return "externally-modified"
	case ConflictRemoved:
		return "externally-removed"
	default:
		return fmt.Sprintf("conflict(%d)", int(k))
	}
}

// Fingerprint is a cheap identity of a file's on-disk content.
// ModTime is informational; Equal only looks at existence, size and checksum,
// so touching a file without changing its bytes is not a change.
type Fingerprint struct {
	Exists  bool
	Size    int64
	ModTime time.Time
	Sum     [32]byte
}

// Absent is the fingerprint of a file that does not exist.
var Absent = Fingerprint{}

// Equal reports whether two fingerprints describe the same content.
func (f Fingerprint) Equal(o Fingerprint) bool {
	if f.Exists != o.Exists {
		return false
	}
	if !f.Exists {
		return true
	}
	return f.Size == o.Size && bytes.Equal(f.Sum[:], o.Sum[:])
}

func (f Fingerprint) String() string {
	if !f.Exists {
		return "absent"
	}
	return fmt.Sprintf("%d:%x", f.Size, f.Sum[:6])
}

// Document is the central entity of the domain.
// Values handed out by the document system are snapshots; mutation happens
// only through the system.
type Document struct {
	ID          DocumentID
	Path        string // empty means untitled
	TypeID      string
	Content     []byte
	Dirty       bool
	ReadOnly    bool
	Fingerprint Fingerprint
	State       LifecycleState
	Conflict    ConflictKind
}

// Untitled reports whether the document has no backing file.
func (d *Document) Untitled() bool {
	return d.Path == ""
}

// Clone returns a deep copy safe to hand to other goroutines.
func (d *Document) Clone() Document {
	c := *d
	if d.Content != nil {
		c.Content = append([]byte(nil), d.Content...)
	}
	return c
}

// EventType represents the type of change in the document model.
type EventType string

const (
	EventOpen     EventType = "OPEN"
	EventSave     EventType = "SAVE"
	EventReload   EventType = "RELOAD"
	EventClose    EventType = "CLOSE"
	EventConflict EventType = "CONFLICT"
	EventResolve  EventType = "RESOLVE"
)

// Event represents a change in the document model.
type Event struct {
	Type       EventType
	DocumentID DocumentID
	Path       string
	Detail     string
	Timestamp  int64 // Unix timestamp
}

func (e Event) String() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s (%s)", e.Type, e.Path, e.Detail)
	}
	return fmt.Sprintf("%s %s", e.Type, e.Path)
}
