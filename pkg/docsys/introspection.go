package docsys

import (
	"cmp"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/aretw0/introspection"

	"github.com/aretw0/folio/pkg/core"
)

// SystemState is the introspection snapshot of the document system.
type SystemState struct {
	Open        int    `json:"open"`
	Untitled    int    `json:"untitled"`
	Dirty       int    `json:"dirty"`
	Pending     int    `json:"pending"`
	ReadOnly    int    `json:"read_only"`
	DocTypes    int    `json:"doc_types"`
	RecentFiles int    `json:"recent_files"`
	Watching    bool   `json:"watching"`
	Closed      bool   `json:"closed"`
	Watcher     any    `json:"watcher,omitempty"`
	Status      string `json:"status"`
}

var (
	_ introspection.Introspectable = (*System)(nil)
	_ introspection.Component      = (*System)(nil)
	_ introspection.Introspectable = (*Watcher)(nil)
	_ introspection.Component      = (*Watcher)(nil)
)

// State returns the current state of the document system.
func (s *System) State() any {
	s.mu.Lock()
	st := SystemState{
		Open:        s.registry.Len(),
		DocTypes:    len(s.docTypes),
		RecentFiles: len(s.recentFiles.items),
		Watching:    s.notifier != nil,
		Closed:      s.closed,
		Status:      "running",
	}
	for _, doc := range s.registry.Snapshot() {
		if doc.Untitled() {
			st.Untitled++
		}
		if doc.Dirty {
			st.Dirty++
		}
		if doc.ReadOnly {
			st.ReadOnly++
		}
		if doc.State == core.StatePendingConflict {
			st.Pending++
		}
	}
	if s.closed {
		st.Status = "closed"
	}
	w := s.watcher
	s.mu.Unlock()

	if w != nil {
		st.Watcher = w.State()
	}
	return st
}

// ComponentType returns the component type identifier.
func (s *System) ComponentType() string {
	return "document-system"
}

// diagramNode is the shape introspection.TreeDiagram reads by reflection.
type diagramNode struct {
	Name     string
	Status   string
	Metadata map[string]string
	Children []diagramNode
}

// Diagram renders the open documents and the watcher as a Mermaid tree.
// Documents waiting for a decision show as pending, dirty ones as suspended.
func (s *System) Diagram() string {
	docs := s.Documents()
	slices.SortFunc(docs, func(a, b core.Document) int {
		return cmp.Or(cmp.Compare(a.Path, b.Path), cmp.Compare(a.ID, b.ID))
	})

	root := diagramNode{
		Name:     "Documents",
		Status:   "running",
		Metadata: map[string]string{"type": "container", "open": strconv.Itoa(len(docs))},
	}
	if st, ok := s.State().(SystemState); ok && st.Closed {
		root.Status = "stopped"
	}

	for _, doc := range docs {
		name := filepath.Base(doc.Path)
		if doc.Untitled() {
			name = fmt.Sprintf("untitled %s", doc.ID)
		}
		status := "running"
		switch {
		case doc.State == core.StatePendingConflict:
			status = "pending"
		case doc.Dirty:
			status = "suspended"
		}
		root.Children = append(root.Children, diagramNode{
			Name:   name,
			Status: status,
			Metadata: map[string]string{
				"type":  "process",
				"path":  doc.Path,
				"dirty": strconv.FormatBool(doc.Dirty),
			},
		})
	}

	s.mu.Lock()
	w := s.watcher
	s.mu.Unlock()
	if w != nil {
		node := diagramNode{Name: "Watcher", Status: "stopped", Metadata: map[string]string{"type": "goroutine"}}
		if st, ok := w.State().(WatcherState); ok && st.Running {
			node.Status = "running"
			node.Metadata["awaiting"] = strconv.Itoa(st.Awaiting)
		}
		root.Children = append(root.Children, node)
	}

	config := introspection.DefaultDiagramConfig()
	config.SecondaryID = "folio"
	config.SecondaryLabel = "Document System"
	return introspection.TreeDiagram(root, config)
}
