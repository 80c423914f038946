package fs

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/folio/pkg/core"
)

func TestStore_ReadWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("X"), 0644))

	s := NewStore()
	data, fp, readOnly, err := s.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "X", string(data))
	assert.False(t, readOnly)
	assert.True(t, fp.Exists)
	assert.Equal(t, int64(1), fp.Size)
	assert.True(t, fp.Equal(FingerprintBytes([]byte("X"))))

	written, err := s.Write(path, []byte("Y"))
	require.NoError(t, err)
	assert.False(t, written.Equal(fp))

	observed, err := s.Fingerprint(path)
	require.NoError(t, err)
	assert.True(t, observed.Equal(written))
}

func TestStore_Fingerprint(t *testing.T) {
	dir := t.TempDir()
	s := NewStore()

	t.Run("Missing File Is Absent", func(t *testing.T) {
		fp, err := s.Fingerprint(filepath.Join(dir, "nope.txt"))
		require.NoError(t, err)
		assert.True(t, fp.Equal(core.Absent))
	})

	t.Run("Touch Keeps Identity", func(t *testing.T) {
		path := filepath.Join(dir, "same.txt")
		require.NoError(t, os.WriteFile(path, []byte("same"), 0644))
		before, err := s.Fingerprint(path)
		require.NoError(t, err)

		require.NoError(t, os.WriteFile(path, []byte("same"), 0644))
		after, err := s.Fingerprint(path)
		require.NoError(t, err)
		assert.True(t, before.Equal(after))
	})
}

func TestStore_ReadOnlyFallback(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced here")
	}
	path := filepath.Join(t.TempDir(), "ro.txt")
	require.NoError(t, os.WriteFile(path, []byte("locked"), 0444))

	data, _, readOnly, err := NewStore().Read(path)
	require.NoError(t, err)
	assert.True(t, readOnly)
	assert.Equal(t, "locked", string(data))
}

func TestStore_ReadMissing(t *testing.T) {
	_, _, _, err := NewStore().Read(filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCanonical(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real.txt")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0644))

	want, err := Canonical(target)
	require.NoError(t, err)

	if runtime.GOOS != "windows" {
		link := filepath.Join(dir, "link.txt")
		require.NoError(t, os.Symlink(target, link))
		got, err := Canonical(link)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	notYet, err := Canonical(filepath.Join(dir, "sub", "..", "new.txt"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(want), "new.txt"), notYet)
}
