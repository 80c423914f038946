package core

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// FileFilter is one entry of an open/save dialog's filter list.
type FileFilter struct {
	Label    string   `yaml:"label"`
	Patterns []string `yaml:"patterns"`
}

// AllFiles is the unrestricted filter appended to every dialog.
var AllFiles = FileFilter{Label: LabelAllFiles, Patterns: []string{"*"}}

// Match reports whether the base name of path matches any pattern.
func (f FileFilter) Match(path string) bool {
	name := filepath.Base(path)
	for _, p := range f.Patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

// Validate checks the label and every glob pattern.
func (f FileFilter) Validate() error {
	if f.Label == "" {
		return fmt.Errorf("filter has no label")
	}
	if len(f.Patterns) == 0 {
		return fmt.Errorf("filter %q has no patterns", f.Label)
	}
	for _, p := range f.Patterns {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("filter %q: invalid pattern %q", f.Label, p)
		}
	}
	return nil
}

// String renders the filter the way dialogs show it, e.g. "Text (*.txt *.md)".
func (f FileFilter) String() string {
	return fmt.Sprintf("%s (%s)", f.Label, strings.Join(f.Patterns, " "))
}

// DialogMode selects which file dialog is being configured.
type DialogMode int

const (
	DialogOpenFile DialogMode = iota
	DialogOpenFiles
	DialogOpenDirectory
	DialogSaveFile
	DialogSaveAsFile
)

// Title returns the default dialog title for the mode.
func (m DialogMode) Title() string {
	switch m {
	case DialogOpenFiles:
		return TitleOpenFiles
	case DialogOpenDirectory:
		return TitleOpenDirectory
	case DialogSaveFile:
		return TitleSaveFile
	case DialogSaveAsFile:
		return TitleSaveAsFile
	default:
		return TitleOpenFile
	}
}

func (m DialogMode) String() string {
	switch m {
	case DialogOpenFiles:
		return "open-files"
	case DialogOpenDirectory:
		return "open-directory"
	case DialogSaveFile:
		return "save-file"
	case DialogSaveAsFile:
		return "save-as-file"
	default:
		return "open-file"
	}
}

// DialogConfig is everything a presentation layer needs to show a dialog.
type DialogConfig struct {
	Mode        DialogMode
	Title       string
	Filters     []FileFilter
	MultiSelect bool
	Dir         string
	FileName    string
}
