package fs

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceFile(t *testing.T) {
	t.Run("Creates With Requested Mode", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "new.txt")

		info, err := replaceFile(path, []byte("hello"), 0600)
		require.NoError(t, err)
		assert.Equal(t, int64(5), info.Size())

		got, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(got))
		if runtime.GOOS != "windows" {
			assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
		}
	})

	t.Run("Existing File Keeps Its Mode", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("unix permission bits")
		}
		path := filepath.Join(t.TempDir(), "script.sh")
		require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0755))

		info, err := replaceFile(path, []byte("#!/bin/sh\necho hi\n"), 0644)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0755), info.Mode().Perm())
	})

	t.Run("Leaves Only The Target Behind", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "doc.txt")
		for i := 0; i < 3; i++ {
			_, err := replaceFile(path, []byte{byte('a' + i)}, 0644)
			require.NoError(t, err)
		}

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "doc.txt", entries[0].Name())
	})

	t.Run("Refuses A Directory", func(t *testing.T) {
		dir := t.TempDir()
		_, err := replaceFile(dir, []byte("x"), 0644)
		assert.ErrorIs(t, err, errIsDir)
	})

	t.Run("Missing Parent Fails", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "gone", "doc.txt")
		_, err := replaceFile(path, []byte("x"), 0644)
		assert.Error(t, err)
		assert.NoFileExists(t, path)
	})
}

func TestIsTempFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join("a", TempFilePrefix+"123"), true},
		{TempFilePrefix, true},
		{filepath.Join(TempFilePrefix+"dir", "doc.txt"), false},
		{"doc.txt", false},
		{".folio", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsTempFile(tt.path), tt.path)
	}
}
