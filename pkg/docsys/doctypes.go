package docsys

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/aretw0/folio/pkg/core"
)

// DocType describes a kind of document the host can edit.
type DocType struct {
	ID          string          `yaml:"id"`
	DisplayName string          `yaml:"name"`
	Description string          `yaml:"description,omitempty"`
	Extensions  []string        `yaml:"extensions"`
	Filter      core.FileFilter `yaml:"filter"`
	SaveFilter  core.FileFilter `yaml:"save_filter,omitempty"`
}

var ErrUnknownDocType = errors.New("unknown document type")

func normalizeSuffix(s string) string {
	return strings.ToLower(strings.TrimPrefix(s, "."))
}

func suffixOf(path string) string {
	return normalizeSuffix(filepath.Ext(path))
}

// AddDocType registers a document type. Its extensions become supported.
func (s *System) AddDocType(dt DocType) error {
	if dt.ID == "" {
		return errors.New("document type needs an id")
	}
	if len(dt.Filter.Patterns) == 0 {
		for _, ext := range dt.Extensions {
			dt.Filter.Patterns = append(dt.Filter.Patterns, "*."+normalizeSuffix(ext))
		}
		if dt.Filter.Label == "" {
			dt.Filter.Label = dt.DisplayName
		}
	}
	if err := dt.Filter.Validate(); err != nil {
		return fmt.Errorf("document type %s: %w", dt.ID, err)
	}
	if len(dt.SaveFilter.Patterns) == 0 {
		dt.SaveFilter = dt.Filter
	} else if err := dt.SaveFilter.Validate(); err != nil {
		return fmt.Errorf("document type %s: %w", dt.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.docTypeLocked(dt.ID) != nil {
		return fmt.Errorf("document type %s already registered", dt.ID)
	}
	dt.Extensions = slices.Clone(dt.Extensions)
	s.docTypes = append(s.docTypes, &dt)
	for _, ext := range dt.Extensions {
		suffix := normalizeSuffix(ext)
		s.extensions[suffix] = append(s.extensions[suffix], dt.ID)
	}
	s.logger.Debug("document type added", "id", dt.ID, "extensions", dt.Extensions)
	return nil
}

// RemoveDocType unregisters a document type.
func (s *System) RemoveDocType(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.docTypes, func(dt *DocType) bool { return dt.ID == id })
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownDocType, id)
	}
	dt := s.docTypes[i]
	s.docTypes = slices.Delete(s.docTypes, i, i+1)
	for _, ext := range dt.Extensions {
		suffix := normalizeSuffix(ext)
		ids := slices.DeleteFunc(s.extensions[suffix], func(o string) bool { return o == id })
		if len(ids) == 0 {
			delete(s.extensions, suffix)
		} else {
			s.extensions[suffix] = ids
		}
		if s.preferred[suffix] == id {
			delete(s.preferred, suffix)
		}
	}
	return nil
}

// DocType returns the document type with the given id.
func (s *System) DocType(id string) (DocType, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dt := s.docTypeLocked(id)
	if dt == nil {
		return DocType{}, false
	}
	return *dt, true
}

// DocTypes returns every registered document type in registration order.
func (s *System) DocTypes() []DocType {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]DocType, 0, len(s.docTypes))
	for _, dt := range s.docTypes {
		out = append(out, *dt)
	}
	return out
}

// SupportedDocTypes returns the ids of the types that handle suffix.
func (s *System) SupportedDocTypes(suffix string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.extensions[normalizeSuffix(suffix)])
}

// SupportedDocType returns the type used for suffix: the preferred one when
// set, else the first registered.
func (s *System) SupportedDocType(suffix string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.supportedLocked(normalizeSuffix(suffix))
	return id, id != ""
}

// SetPreferredDocType selects which type opens files with suffix.
// An empty id clears the preference.
func (s *System) SetPreferredDocType(suffix, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	suffix = normalizeSuffix(suffix)
	if id == "" {
		delete(s.preferred, suffix)
		return nil
	}
	if !slices.Contains(s.extensions[suffix], id) {
		return fmt.Errorf("%w: %s does not handle .%s", ErrUnknownDocType, id, suffix)
	}
	s.preferred[suffix] = id
	return nil
}

// PreferredDocType returns the explicit preference for suffix.
func (s *System) PreferredDocType(suffix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preferred[normalizeSuffix(suffix)]
}

// SupportedExtensions returns every handled suffix, sorted.
func (s *System) SupportedExtensions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.extensions))
	for suffix := range s.extensions {
		out = append(out, suffix)
	}
	slices.Sort(out)
	return out
}

func (s *System) docTypeLocked(id string) *DocType {
	for _, dt := range s.docTypes {
		if dt.ID == id {
			return dt
		}
	}
	return nil
}

func (s *System) supportedLocked(suffix string) string {
	if id, ok := s.preferred[suffix]; ok {
		return id
	}
	if ids := s.extensions[suffix]; len(ids) > 0 {
		return ids[0]
	}
	return ""
}

// resolveTypeLocked picks the type for a newly opened file. A hint naming a
// registered type wins over the extension lookup.
func (s *System) resolveTypeLocked(path, hint string) string {
	if hint != "" && s.docTypeLocked(hint) != nil {
		return hint
	}
	return s.supportedLocked(suffixOf(path))
}
