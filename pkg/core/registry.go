package core

import (
	"fmt"
	"slices"
)

// Registry owns the canonical set of open documents, keyed by resolved path.
// It is not safe for concurrent use; the document system serializes access.
type Registry struct {
	byID   map[DocumentID]*Document
	byPath map[string]DocumentID
	order  []DocumentID
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[DocumentID]*Document),
		byPath: make(map[string]DocumentID),
	}
}

// Register creates a document for path. An empty path creates an untitled
// document. Registering a path held by a non-closed document fails with
// ErrDuplicatePath.
func (r *Registry) Register(path string) (*Document, error) {
	if path != "" {
		if _, ok := r.byPath[path]; ok {
			return nil, fmt.Errorf("register %s: %w", path, ErrDuplicatePath)
		}
	}

	doc := &Document{
		ID:    NewDocumentID(),
		Path:  path,
		State: StateOpen,
	}
	r.byID[doc.ID] = doc
	if path != "" {
		r.byPath[path] = doc.ID
	}
	r.order = append(r.order, doc.ID)
	return doc, nil
}

// LookupByPath returns the open document for path.
func (r *Registry) LookupByPath(path string) (*Document, bool) {
	id, ok := r.byPath[path]
	if !ok {
		return nil, false
	}
	return r.byID[id], true
}

// Lookup returns the open document with the given id.
func (r *Registry) Lookup(id DocumentID) (*Document, bool) {
	doc, ok := r.byID[id]
	return doc, ok
}

// Unregister evicts a document and marks it closed. Its path becomes free.
func (r *Registry) Unregister(id DocumentID) (*Document, bool) {
	doc, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	delete(r.byID, id)
	if doc.Path != "" && r.byPath[doc.Path] == id {
		delete(r.byPath, doc.Path)
	}
	r.order = slices.DeleteFunc(r.order, func(o DocumentID) bool { return o == id })
	doc.State = StateClosed
	doc.Conflict = ConflictNone
	return doc, true
}

// Rekey moves a document to newPath. The old path is released.
func (r *Registry) Rekey(id DocumentID, newPath string) error {
	doc, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("rekey %s: %w", id, ErrNotFound)
	}
	if doc.Path == newPath {
		return nil
	}
	if newPath != "" {
		if other, ok := r.byPath[newPath]; ok && other != id {
			return fmt.Errorf("rekey %s: %w", newPath, ErrDuplicatePath)
		}
	}
	if doc.Path != "" {
		delete(r.byPath, doc.Path)
	}
	doc.Path = newPath
	if newPath != "" {
		r.byPath[newPath] = id
	}
	return nil
}

// Snapshot returns the open documents in open order. The slice is a copy, so
// it stays stable while the caller walks it, but the documents are shared.
func (r *Registry) Snapshot() []*Document {
	docs := make([]*Document, 0, len(r.order))
	for _, id := range r.order {
		docs = append(docs, r.byID[id])
	}
	return docs
}

// Len returns the number of open documents.
func (r *Registry) Len() int {
	return len(r.byID)
}

// References reports whether any open document holds path.
func (r *Registry) References(path string) bool {
	_, ok := r.byPath[path]
	return ok
}
