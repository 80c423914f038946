// Package docsys implements the document system: the registry façade that
// opens, saves and closes documents, and the watcher that reconciles them with
// external changes on disk.
package docsys

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/aretw0/folio/pkg/adapters/fs"
	"github.com/aretw0/folio/pkg/core"
)

// FileStore is the file I/O the system needs. fs.Store is the default.
type FileStore interface {
	Read(path string) (data []byte, fp core.Fingerprint, readOnly bool, err error)
	Write(path string, data []byte) (core.Fingerprint, error)
	Fingerprint(path string) (core.Fingerprint, error)
}

// Config holds the configuration for the document system.
type Config struct {
	Logger         *slog.Logger
	Store          FileStore
	Notifier       core.Notifier // nil disables watching
	EchoWindow     time.Duration // how long a save suppresses its own notifications
	EventBuffer    int           // zero disables the event stream
	RecentLimit    int
	DefaultFilters []core.FileFilter
	Settings       Settings
}

const (
	DefaultEchoWindow  = time.Second
	DefaultRecentLimit = 32
)

// System is the document system. All registry and document mutation happens
// under its model lock, which is also the lock the watcher runs its
// transitions under.
type System struct {
	mu       sync.Mutex
	config   Config
	logger   *slog.Logger
	store    FileStore
	notifier core.Notifier
	registry *core.Registry
	guard    *guard
	watcher  *Watcher
	events   chan core.Event
	closed   bool

	docTypes   []*DocType
	extensions map[string][]string // suffix -> doc type ids
	preferred  map[string]string   // suffix -> doc type id

	recentFiles *recentList
	recentDirs  *recentList
	lastVisit   LastVisit
}

// New creates a document system.
func New(config Config) *System {
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if config.Store == nil {
		config.Store = fs.NewStore()
	}
	if config.EchoWindow <= 0 {
		config.EchoWindow = DefaultEchoWindow
	}
	if config.RecentLimit <= 0 {
		config.RecentLimit = config.Settings.RecentLimit
	}
	if config.RecentLimit <= 0 {
		config.RecentLimit = DefaultRecentLimit
	}
	if len(config.DefaultFilters) == 0 {
		config.DefaultFilters = []core.FileFilter{core.AllFiles}
	}

	s := &System{
		config:      config,
		logger:      config.Logger,
		store:       config.Store,
		notifier:    config.Notifier,
		registry:    core.NewRegistry(),
		guard:       newGuard(config.EchoWindow),
		extensions:  make(map[string][]string),
		preferred:   make(map[string]string),
		recentFiles: newRecentList(config.RecentLimit, isFile),
		recentDirs:  newRecentList(config.RecentLimit, isDir),
	}
	if config.EventBuffer > 0 {
		s.events = make(chan core.Event, config.EventBuffer)
	}
	s.loadSettings(config.Settings)
	return s
}

// Events returns the document event stream, or nil when disabled.
func (s *System) Events() <-chan core.Event {
	return s.events
}

// NewUntitled creates a document without a path. It is never watched.
func (s *System) NewUntitled(ctx context.Context, typeID string) (core.Document, error) {
	if err := ctx.Err(); err != nil {
		return core.Document{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return core.Document{}, core.ErrClosed
	}
	doc, err := s.registry.Register("")
	if err != nil {
		return core.Document{}, err
	}
	doc.TypeID = typeID
	s.emit(core.EventOpen, doc, "untitled")
	return doc.Clone(), nil
}

// Open returns the document for path, reading it if it is not open yet.
// typeHint selects a document type by id; empty picks one by extension.
func (s *System) Open(ctx context.Context, path, typeHint string) (core.Document, error) {
	if err := ctx.Err(); err != nil {
		return core.Document{}, err
	}
	canon, err := fs.Canonical(path)
	if err != nil {
		return core.Document{}, &core.IoError{Op: "open", Path: path, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return core.Document{}, core.ErrClosed
	}
	if doc, ok := s.registry.LookupByPath(canon); ok {
		return doc.Clone(), nil
	}

	data, fp, readOnly, err := s.store.Read(canon)
	if err != nil {
		return core.Document{}, &core.IoError{Op: "open", Path: canon, Err: err}
	}

	doc, err := s.registry.Register(canon)
	if err != nil {
		return core.Document{}, err
	}
	doc.Content = data
	doc.Fingerprint = fp
	doc.ReadOnly = readOnly
	doc.TypeID = s.resolveTypeLocked(canon, typeHint)

	s.watchLocked(canon)
	s.recentFiles.add(canon)
	s.lastVisit.OpenFile = filepath.Dir(canon)

	s.logger.Debug("document opened", "id", doc.ID, "path", canon, "read_only", readOnly)
	s.emit(core.EventOpen, doc, "")
	return doc.Clone(), nil
}

// SetContent replaces the in-memory content and marks the document dirty.
func (s *System) SetContent(id core.DocumentID, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.registry.Lookup(id)
	if !ok {
		return fmt.Errorf("set content %s: %w", id, core.ErrNotFound)
	}
	doc.Content = append([]byte(nil), content...)
	doc.Dirty = true
	return nil
}

// Save writes the document to its path.
// On failure the document stays dirty and its notifications are not suppressed.
func (s *System) Save(ctx context.Context, id core.DocumentID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.registry.Lookup(id)
	if !ok {
		return fmt.Errorf("save %s: %w", id, core.ErrNotFound)
	}
	if doc.Untitled() {
		return core.ErrUntitled
	}
	if err := s.saveLocked(doc); err != nil {
		return err
	}
	s.settle(doc)
	return nil
}

// SaveAs writes the document to newPath and re-keys it there. The old path
// stops being watched once no document references it.
func (s *System) SaveAs(ctx context.Context, id core.DocumentID, newPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	canon, err := fs.Canonical(newPath)
	if err != nil {
		return &core.IoError{Op: "save", Path: newPath, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.registry.Lookup(id)
	if !ok {
		return fmt.Errorf("save as %s: %w", id, core.ErrNotFound)
	}
	if err := s.saveAsLocked(doc, canon); err != nil {
		return err
	}
	s.settle(doc)
	return nil
}

// Reload replaces the in-memory content with the file's and clears the dirty flag.
func (s *System) Reload(ctx context.Context, id core.DocumentID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.registry.Lookup(id)
	if !ok {
		return fmt.Errorf("reload %s: %w", id, core.ErrNotFound)
	}
	if doc.Untitled() {
		return core.ErrUntitled
	}
	if err := s.reloadLocked(doc); err != nil {
		return err
	}
	s.settle(doc)
	return nil
}

// CloseSilently evicts the document and stops watching its path. Any dirty
// state must have been resolved by the caller. Pending debounce timers and
// prompts for the document are cancelled.
func (s *System) CloseSilently(id core.DocumentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.registry.Lookup(id)
	if !ok {
		return fmt.Errorf("close %s: %w", id, core.ErrNotFound)
	}
	s.closeLocked(doc)
	return nil
}

// Document returns a snapshot of the document with the given id.
func (s *System) Document(id core.DocumentID) (core.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.registry.Lookup(id)
	if !ok {
		return core.Document{}, false
	}
	return doc.Clone(), true
}

// Lookup returns a snapshot of the open document for path.
func (s *System) Lookup(path string) (core.Document, bool) {
	canon, err := fs.Canonical(path)
	if err != nil {
		return core.Document{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.registry.LookupByPath(canon)
	if !ok {
		return core.Document{}, false
	}
	return doc.Clone(), true
}

// Documents returns snapshots of every open document in open order.
func (s *System) Documents() []core.Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.registry.Snapshot()
	out := make([]core.Document, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Clone())
	}
	return out
}

// Close stops watching every path and refuses further opens. Documents stay
// readable so callers can still inspect them.
func (s *System) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	for _, doc := range s.registry.Snapshot() {
		if doc.Path == "" || s.notifier == nil {
			continue
		}
		if err := s.notifier.Remove(doc.Path); err != nil {
			errs = append(errs, err)
		}
	}
	s.guard.stop()
	return errors.Join(errs...)
}

func (s *System) saveLocked(doc *core.Document) error {
	if doc.ReadOnly {
		return &core.IoError{Op: "save", Path: doc.Path, Err: core.ErrReadOnly}
	}
	fp, err := s.writeGuarded(doc.Path, doc.Content)
	if err != nil {
		return err
	}
	doc.Fingerprint = fp
	doc.Dirty = false

	s.logger.Debug("document saved", "id", doc.ID, "path", doc.Path)
	s.emit(core.EventSave, doc, "")
	return nil
}

func (s *System) saveAsLocked(doc *core.Document, canon string) error {
	if other, ok := s.registry.LookupByPath(canon); ok && other.ID != doc.ID {
		return &core.IoError{Op: "save", Path: canon, Err: core.ErrAlreadyOpen}
	}
	if doc.Path == canon {
		return s.saveLocked(doc)
	}

	fp, err := s.writeGuarded(canon, doc.Content)
	if err != nil {
		return err
	}

	oldPath := doc.Path
	if err := s.registry.Rekey(doc.ID, canon); err != nil {
		// Checked above; reaching this is a registry defect.
		return err
	}
	doc.Fingerprint = fp
	doc.Dirty = false
	doc.ReadOnly = false

	if oldPath != "" {
		s.unwatchLocked(oldPath)
	}
	s.watchLocked(canon)
	s.recentFiles.add(canon)
	s.lastVisit.SaveFile = filepath.Dir(canon)

	s.logger.Debug("document saved as", "id", doc.ID, "from", oldPath, "path", canon)
	s.emit(core.EventSave, doc, "from "+oldPath)
	return nil
}

// writeGuarded arms the self-save guard around the write. The guard is
// released on every path out of here.
func (s *System) writeGuarded(path string, data []byte) (core.Fingerprint, error) {
	release := s.guard.arm(path)
	fp, err := s.store.Write(path, data)
	release(err == nil)
	if err != nil {
		return core.Absent, &core.IoError{Op: "save", Path: path, Err: err}
	}
	return fp, nil
}

func (s *System) reloadLocked(doc *core.Document) error {
	data, fp, readOnly, err := s.store.Read(doc.Path)
	if err != nil {
		return &core.IoError{Op: "reload", Path: doc.Path, Err: err}
	}
	doc.Content = data
	doc.Fingerprint = fp
	doc.ReadOnly = readOnly
	doc.Dirty = false

	s.logger.Debug("document reloaded", "id", doc.ID, "path", doc.Path)
	s.emit(core.EventReload, doc, "")
	return nil
}

// ignoreLocked adopts the current on-disk state as known without touching
// content or the dirty flag, so the same external change is not reported twice.
func (s *System) ignoreLocked(doc *core.Document) {
	fp, err := s.store.Fingerprint(doc.Path)
	if err != nil {
		s.logger.Warn("fingerprint failed", "path", doc.Path, "error", err)
		return
	}
	doc.Fingerprint = fp
}

func (s *System) closeLocked(doc *core.Document) {
	path := doc.Path
	id := doc.ID
	s.registry.Unregister(id)
	if path != "" {
		s.unwatchLocked(path)
	}
	if s.watcher != nil {
		s.watcher.cancelLocked(id, path)
	}
	s.logger.Debug("document closed", "id", id, "path", path)
	s.emit(core.EventClose, doc, "")
}

// settle clears a pending conflict that a direct save, save-as or reload
// made moot.
func (s *System) settle(doc *core.Document) {
	if s.watcher != nil {
		s.watcher.settleLocked(doc)
		return
	}
	doc.State = core.StateOpen
	doc.Conflict = core.ConflictNone
}

func (s *System) watchLocked(path string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Add(path); err != nil {
		s.logger.Warn("cannot watch file", "path", path, "error", err)
	}
}

func (s *System) unwatchLocked(path string) {
	if s.watcher != nil {
		s.watcher.dropPathLocked(path)
	}
	if s.notifier == nil || s.registry.References(path) {
		return
	}
	if err := s.notifier.Remove(path); err != nil {
		s.logger.Warn("cannot unwatch file", "path", path, "error", err)
	}
}

// emit never blocks the model sequence; a full stream drops the event.
func (s *System) emit(t core.EventType, doc *core.Document, detail string) {
	if s.events == nil {
		return
	}
	e := core.Event{
		Type:       t,
		DocumentID: doc.ID,
		Path:       doc.Path,
		Detail:     detail,
		Timestamp:  time.Now().Unix(),
	}
	select {
	case s.events <- e:
	default:
		s.logger.Debug("event dropped", "type", t, "path", doc.Path)
	}
}
