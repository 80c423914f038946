package docsys

import (
	"path/filepath"
	"slices"

	"github.com/aretw0/folio/pkg/core"
)

// Settings is the persisted part of the document system.
type Settings struct {
	RecentFiles []string  `yaml:"recent_files,omitempty"`
	RecentDirs  []string  `yaml:"recent_dirs,omitempty"`
	RecentLimit int       `yaml:"recent_limit,omitempty"`
	LastVisit   LastVisit `yaml:"last_visit"`
}

// LastVisit remembers the directory each kind of dialog last ended in.
type LastVisit struct {
	OpenFile string `yaml:"open_file,omitempty"`
	OpenDir  string `yaml:"open_dir,omitempty"`
	SaveFile string `yaml:"save_file,omitempty"`
}

// loadSettings restores recent lists, skipping entries that vanished.
func (s *System) loadSettings(st Settings) {
	s.recentFiles.load(st.RecentFiles)
	s.recentDirs.load(st.RecentDirs)
	s.lastVisit = st.LastVisit
}

// Settings exports the current persisted state.
func (s *System) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Settings{
		RecentFiles: s.recentFiles.list(),
		RecentDirs:  s.recentDirs.list(),
		RecentLimit: s.config.RecentLimit,
		LastVisit:   s.lastVisit,
	}
}

// DialogConfig assembles the dialog for mode. typeID selects a document type
// whose filter comes first; the default filters always follow.
func (s *System) DialogConfig(mode core.DialogMode, typeID string) core.DialogConfig {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := core.DialogConfig{
		Mode:        mode,
		Title:       mode.Title(),
		MultiSelect: mode == core.DialogOpenFiles,
		Dir:         s.lastVisitLocked(mode),
	}
	if mode == core.DialogOpenDirectory {
		return cfg
	}
	cfg.Filters = s.filtersLocked(mode, typeID)
	return cfg
}

// SaveAsDialogConfig prepares a save-as dialog for an open document,
// starting next to its current file.
func (s *System) SaveAsDialogConfig(id core.DocumentID) (core.DialogConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.registry.Lookup(id)
	if !ok {
		return core.DialogConfig{}, core.ErrNotFound
	}
	cfg := core.DialogConfig{
		Mode:    core.DialogSaveAsFile,
		Title:   core.DialogSaveAsFile.Title(),
		Dir:     s.lastVisit.SaveFile,
		Filters: s.filtersLocked(core.DialogSaveAsFile, doc.TypeID),
	}
	if !doc.Untitled() {
		cfg.Dir = filepath.Dir(doc.Path)
		cfg.FileName = filepath.Base(doc.Path)
	}
	return cfg, nil
}

// RememberDialogResult records where a dialog ended so the next one of the
// same kind starts there.
func (s *System) RememberDialogResult(mode core.DialogMode, paths ...string) {
	if len(paths) == 0 || paths[0] == "" {
		return
	}
	dir := filepath.Dir(paths[0])

	s.mu.Lock()
	defer s.mu.Unlock()

	switch mode {
	case core.DialogOpenFile, core.DialogOpenFiles:
		s.lastVisit.OpenFile = dir
	case core.DialogOpenDirectory:
		s.lastVisit.OpenDir = dir
		s.recentDirs.add(paths[0])
	case core.DialogSaveFile, core.DialogSaveAsFile:
		s.lastVisit.SaveFile = dir
	}
}

func (s *System) lastVisitLocked(mode core.DialogMode) string {
	switch mode {
	case core.DialogOpenDirectory:
		return s.lastVisit.OpenDir
	case core.DialogSaveFile, core.DialogSaveAsFile:
		return s.lastVisit.SaveFile
	default:
		return s.lastVisit.OpenFile
	}
}

func (s *System) filtersLocked(mode core.DialogMode, typeID string) []core.FileFilter {
	var filters []core.FileFilter
	if dt := s.docTypeLocked(typeID); dt != nil {
		if mode == core.DialogSaveFile || mode == core.DialogSaveAsFile {
			filters = append(filters, dt.SaveFilter)
		} else {
			filters = append(filters, dt.Filter)
		}
	}
	return append(filters, slices.Clone(s.config.DefaultFilters)...)
}
