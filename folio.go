package folio

import (
	"log/slog"
	"time"

	"github.com/aretw0/folio/internal/platform"
	"github.com/aretw0/folio/pkg/core"
	"github.com/aretw0/folio/pkg/docsys"
)

// Version exposes the version of the library.
// See version.go for the implementation using go:embed.

// --- Types ---

// Runtime is a wired document system and watcher.
type Runtime = platform.Runtime

// Document is a public alias for an open document.
type Document = core.Document

// DocType is a public alias for a registered document type.
type DocType = docsys.DocType

// Decision is a public alias for a prompt answer.
type Decision = core.Decision

// PromptHandler is a public alias for whoever resolves external changes.
type PromptHandler = core.PromptHandler

// --- Configuration ---

// Option defines a functional option for configuring folio.
type Option = platform.Option

// WithLogger sets the logger for every component.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithPromptHandler sets who resolves conflicts with the disk.
func WithPromptHandler(h PromptHandler) Option {
	return platform.WithPromptHandler(h)
}

// WithNotifier injects a custom change notifier.
func WithNotifier(n core.Notifier) Option {
	return platform.WithNotifier(n)
}

// WithDebounce sets the quiet period before a change is classified.
func WithDebounce(d time.Duration) Option {
	return platform.WithDebounce(d)
}

// WithEchoWindow sets how long a save suppresses its own notifications.
func WithEchoWindow(d time.Duration) Option {
	return platform.WithEchoWindow(d)
}

// WithEventBuffer allows specifying the size of the document event buffer.
func WithEventBuffer(size int) Option {
	return platform.WithEventBuffer(size)
}

// WithInboxSize bounds the watcher's pending message queue.
func WithInboxSize(size int) Option {
	return platform.WithInboxSize(size)
}

// WithRecentLimit caps the recent files and directories lists.
func WithRecentLimit(limit int) Option {
	return platform.WithRecentLimit(limit)
}

// WithSettingsFile persists recent lists and dialog directories.
func WithSettingsFile(path string) Option {
	return platform.WithSettingsFile(path)
}

// WithDefaultFilters replaces the filters appended to every file dialog.
func WithDefaultFilters(filters ...core.FileFilter) Option {
	return platform.WithDefaultFilters(filters...)
}

// WithIgnorePatterns drops notifications for matching base names.
func WithIgnorePatterns(patterns ...string) Option {
	return platform.WithIgnorePatterns(patterns...)
}

// WithDocTypes registers document types at construction.
func WithDocTypes(types ...DocType) Option {
	return platform.WithDocTypes(types...)
}

// WithWatcherErrorHandler registers a callback for runtime watcher failures.
func WithWatcherErrorHandler(fn func(error)) Option {
	return platform.WithWatcherErrorHandler(fn)
}

// --- Factory ---

// New creates a Runtime. Call Start before opening documents to get
// change notifications, and Shutdown when done.
func New(opts ...Option) (*Runtime, error) {
	return platform.New(opts...)
}

// --- Utils ---

// FindWorkspaceRoot recursively looks upwards for a .folio directory or a
// folio.yaml file.
func FindWorkspaceRoot(startDir string) (string, error) {
	return platform.FindRoot(startDir)
}

// SettingsPath returns where the settings of the workspace at root live.
func SettingsPath(root string) string {
	return platform.SettingsPath(root)
}
