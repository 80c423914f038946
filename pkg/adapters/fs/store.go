// Package fs implements the filesystem side of the document core: content
// I/O with fingerprints and the fsnotify-backed notifier.
package fs

import (
	"crypto/sha256"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/aretw0/folio/pkg/core"
)

// Store reads and writes document files.
type Store struct{}

// NewStore returns the filesystem store.
func NewStore() *Store {
	return &Store{}
}

// Canonical resolves path to an absolute, symlink-free form. Paths that do
// not exist yet are resolved as far as their parent directory allows.
func Canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	dir, base := filepath.Split(abs)
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		return filepath.Join(resolved, base), nil
	}
	return filepath.Clean(abs), nil
}

// Read loads a file. It first tries read-write access, mirroring an editor
// that intends to save back; when that is denied it falls back to read-only
// and reports readOnly=true.
func (s *Store) Read(path string) (data []byte, fp core.Fingerprint, readOnly bool, err error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if !errors.Is(err, fs.ErrPermission) {
			return nil, core.Absent, false, err
		}
		f, err = os.Open(path)
		if err != nil {
			return nil, core.Absent, false, err
		}
		readOnly = true
	}
	defer f.Close()

	data, err = io.ReadAll(f)
	if err != nil {
		return nil, core.Absent, false, err
	}
	info, err := f.Stat()
	if err != nil {
		return nil, core.Absent, false, err
	}
	return data, fingerprintOf(data, info), readOnly, nil
}

// Write replaces the file atomically and returns the new fingerprint.
func (s *Store) Write(path string, data []byte) (core.Fingerprint, error) {
	info, err := replaceFile(path, data, 0644)
	if err != nil {
		return core.Absent, err
	}
	return fingerprintOf(data, info), nil
}

// Fingerprint observes the current on-disk state of path. A missing file
// yields core.Absent and no error.
func (s *Store) Fingerprint(path string) (core.Fingerprint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return core.Absent, nil
		}
		return core.Absent, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return core.Absent, nil
		}
		return core.Absent, err
	}
	return fingerprintOf(data, info), nil
}

// FingerprintBytes fingerprints in-memory content, without a modification time.
func FingerprintBytes(data []byte) core.Fingerprint {
	return core.Fingerprint{
		Exists: true,
		Size:   int64(len(data)),
		Sum:    sha256.Sum256(data),
	}
}

func fingerprintOf(data []byte, info fs.FileInfo) core.Fingerprint {
	fp := FingerprintBytes(data)
	fp.ModTime = info.ModTime()
	return fp
}
