package platform

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/folio/pkg/core"
	"github.com/aretw0/folio/pkg/docsys"
	"github.com/aretw0/folio/pkg/prompt"
)

func TestSettingsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".folio", "settings.yaml")

	t.Run("Missing Is Empty", func(t *testing.T) {
		st, err := LoadSettings(path)
		require.NoError(t, err)
		assert.Empty(t, st.RecentFiles)
	})

	t.Run("Round Trip", func(t *testing.T) {
		want := docsys.Settings{
			RecentFiles: []string{"/x/a.txt"},
			RecentDirs:  []string{"/x"},
			RecentLimit: 8,
			LastVisit:   docsys.LastVisit{SaveFile: "/x"},
		}
		require.NoError(t, SaveSettings(path, want))
		got, err := LoadSettings(path)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("Future Version Is Rejected", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("version: 99\n"), 0644))
		_, err := LoadSettings(path)
		assert.Error(t, err)
	})

	t.Run("Garbage Is Rejected", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("recent_files: {"), 0644))
		_, err := LoadSettings(path)
		assert.Error(t, err)
	})
}

func TestRuntime(t *testing.T) {
	dir := t.TempDir()
	settings := SettingsPath(dir)
	file := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("X"), 0644))

	scripted := prompt.NewScripted(core.Reload())
	rt, err := New(
		WithPromptHandler(scripted),
		WithSettingsFile(settings),
		WithDebounce(20*time.Millisecond),
		WithEchoWindow(200*time.Millisecond),
		WithDocTypes(docsys.DocType{ID: "text", DisplayName: "Text", Extensions: []string{"txt"}}),
		WithIgnorePatterns("*.swp"),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, rt.Start(ctx))

	doc, err := rt.System.Open(ctx, file, "")
	require.NoError(t, err)
	assert.Equal(t, "text", doc.TypeID)

	require.NoError(t, os.WriteFile(file, []byte("Y"), 0644))
	require.Eventually(t, func() bool {
		got, _ := rt.System.Document(doc.ID)
		return string(got.Content) == "Y"
	}, 3*time.Second, 10*time.Millisecond)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer shutdownCancel()
	require.NoError(t, rt.Shutdown(shutdownCtx))

	saved, err := LoadSettings(settings)
	require.NoError(t, err)
	require.Len(t, saved.RecentFiles, 1)
	assert.Equal(t, "a.txt", filepath.Base(saved.RecentFiles[0]))

	t.Run("Settings Are Restored", func(t *testing.T) {
		again, err := New(WithSettingsFile(settings))
		require.NoError(t, err)
		assert.Len(t, again.System.RecentFiles(), 1)
	})

	t.Run("Bad Doc Type Fails", func(t *testing.T) {
		_, err := New(WithDocTypes(docsys.DocType{}))
		assert.Error(t, err)
	})

	t.Run("Bad Ignore Pattern Fails", func(t *testing.T) {
		_, err := New(WithIgnorePatterns("[x-"))
		assert.Error(t, err)
	})
}
