package platform

import (
	"errors"
	"os"
	"path/filepath"
)

const (
	// SystemDir holds folio's per-workspace state.
	SystemDir  = ".folio"
	ConfigName = "folio.yaml"
)

// ErrNoWorkspace is returned by FindRoot when no ancestor is a workspace.
var ErrNoWorkspace = errors.New("no folio workspace found")

// FindRoot walks from startDir towards the filesystem root and returns the
// first directory holding a .folio directory or a folio.yaml file.
// A .folio that is a plain file does not count.
func FindRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}
	for {
		if isWorkspace(dir) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNoWorkspace
		}
		dir = parent
	}
}

// SettingsPath returns where the settings of the workspace at root live.
func SettingsPath(root string) string {
	return filepath.Join(root, SystemDir, "settings.yaml")
}

func isWorkspace(dir string) bool {
	if info, err := os.Stat(filepath.Join(dir, SystemDir)); err == nil && info.IsDir() {
		return true
	}
	info, err := os.Stat(filepath.Join(dir, ConfigName))
	return err == nil && info.Mode().IsRegular()
}
