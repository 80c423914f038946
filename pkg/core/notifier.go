package core

import (
	"fmt"
	"time"
)

// Op is the raw operation reported by a filesystem notifier.
type Op uint32

const (
	OpModified Op = 1 << iota
	OpRemoved
	OpRenamed
)

func (op Op) String() string {
	switch op {
	case OpModified:
		return "MODIFIED"
	case OpRemoved:
		return "REMOVED"
	case OpRenamed:
		return "RENAMED"
	default:
		return fmt.Sprintf("OP(%d)", uint32(op))
	}
}

// RawEvent is a single, unclassified change notification for a watched path.
type RawEvent struct {
	Path string
	Op   Op
	Time time.Time
}

// Notifier is the filesystem notification capability consumed by the
// document watcher. Ordering is only guaranteed within a single path.
type Notifier interface {
	// Add starts delivering events for path.
	Add(path string) error
	// Remove stops delivering events for path.
	Remove(path string) error
	// Events delivers raw events for watched paths.
	Events() <-chan RawEvent
	// Errors delivers notifier failures.
	Errors() <-chan error
}
