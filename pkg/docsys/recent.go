package docsys

import (
	"fmt"
	"os"
	"slices"

	"github.com/aretw0/folio/pkg/adapters/fs"
)

// recentList is a most-recent-first list of canonical paths.
type recentList struct {
	items []string
	limit int
	valid func(path string) bool
}

func newRecentList(limit int, valid func(string) bool) *recentList {
	return &recentList{limit: limit, valid: valid}
}

// add moves path to the front, dropping duplicates and trimming to limit.
func (r *recentList) add(path string) bool {
	if !r.valid(path) {
		return false
	}
	canon, err := fs.Canonical(path)
	if err != nil {
		return false
	}
	r.items = slices.DeleteFunc(r.items, func(p string) bool { return p == canon })
	r.items = slices.Insert(r.items, 0, canon)
	r.trim()
	return true
}

func (r *recentList) remove(path string) bool {
	canon, err := fs.Canonical(path)
	if err != nil {
		canon = path
	}
	n := len(r.items)
	r.items = slices.DeleteFunc(r.items, func(p string) bool { return p == canon })
	return len(r.items) != n
}

func (r *recentList) setLimit(limit int) {
	r.limit = limit
	r.trim()
}

func (r *recentList) trim() {
	if r.limit > 0 && len(r.items) > r.limit {
		r.items = r.items[:r.limit]
	}
}

func (r *recentList) clear() {
	r.items = nil
}

func (r *recentList) list() []string {
	return slices.Clone(r.items)
}

// load replaces the list with the entries that still exist, keeping order.
func (r *recentList) load(paths []string) {
	r.items = nil
	for _, p := range paths {
		if !r.valid(p) || slices.Contains(r.items, p) {
			continue
		}
		r.items = append(r.items, p)
	}
	r.trim()
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// AddRecentFile puts an existing file at the top of the recent files.
func (s *System) AddRecentFile(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.recentFiles.add(path) {
		return fmt.Errorf("not a file: %s", path)
	}
	return nil
}

// RemoveRecentFile drops path from the recent files.
func (s *System) RemoveRecentFile(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recentFiles.remove(path)
}

func (s *System) ClearRecentFiles() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recentFiles.clear()
}

// RecentFiles returns the recent files, most recent first.
func (s *System) RecentFiles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recentFiles.list()
}

// AddRecentDir puts an existing directory at the top of the recent directories.
func (s *System) AddRecentDir(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.recentDirs.add(path) {
		return fmt.Errorf("not a directory: %s", path)
	}
	return nil
}

func (s *System) RemoveRecentDir(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recentDirs.remove(path)
}

func (s *System) ClearRecentDirs() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recentDirs.clear()
}

// RecentDirs returns the recent directories, most recent first.
func (s *System) RecentDirs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recentDirs.list()
}

// SetRecentLimit changes how many entries each recent list keeps.
func (s *System) SetRecentLimit(limit int) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config.RecentLimit = limit
	s.recentFiles.setLimit(limit)
	s.recentDirs.setLimit(limit)
}
