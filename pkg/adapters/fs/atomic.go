package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// TempFilePrefix names the scratch file of an in-flight save. The notifier
// never reports these.
const TempFilePrefix = ".folio-tmp-"

var errIsDir = errors.New("is a directory")

// IsTempFile reports whether path names one of our in-flight atomic writes.
func IsTempFile(path string) bool {
	return strings.HasPrefix(filepath.Base(path), TempFilePrefix)
}

// replaceFile swaps the content of path for data in one rename, so a watcher
// or reader sees either the old file or the new one. An existing file keeps
// its mode; a new one gets perm. It returns the info of the file in place.
func replaceFile(path string, data []byte, perm os.FileMode) (os.FileInfo, error) {
	if info, err := os.Stat(path); err == nil {
		if info.IsDir() {
			return nil, &os.PathError{Op: "save", Path: path, Err: errIsDir}
		}
		perm = info.Mode().Perm()
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, TempFilePrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return nil, fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return nil, fmt.Errorf("failed to replace %s: %w", path, err)
	}
	committed = true
	syncDir(dir)

	return os.Stat(path)
}

// syncDir makes the rename durable. Best effort: not every platform can
// fsync a directory.
func syncDir(dir string) {
	if runtime.GOOS == "windows" {
		return
	}
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	d.Close()
}
