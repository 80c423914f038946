package platform

import (
	"log/slog"
	"time"

	"github.com/aretw0/folio/pkg/core"
	"github.com/aretw0/folio/pkg/docsys"
)

// options holds the internal configuration for a folio runtime.
type options struct {
	logger         *slog.Logger
	prompt         core.PromptHandler
	notifier       core.Notifier
	debounce       time.Duration
	echoWindow     time.Duration
	eventBuffer    int
	inboxSize      int
	recentLimit    int
	settingsFile   string
	defaultFilters []core.FileFilter
	ignorePatterns []string
	docTypes       []docsys.DocType
	errorHandler   func(error)
}

// Option defines a functional option for configuring folio.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		debounce:    docsys.DefaultDebounce,
		echoWindow:  docsys.DefaultEchoWindow,
		eventBuffer: 100,
		inboxSize:   docsys.DefaultInboxSize,
		recentLimit: docsys.DefaultRecentLimit,
	}
}

// WithLogger sets the logger for every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithPromptHandler sets who decides what happens when an open file changes
// on disk. Without one, external modifications are ignored and removed files
// are closed.
func WithPromptHandler(h core.PromptHandler) Option {
	return func(o *options) {
		o.prompt = h
	}
}

// WithNotifier injects a change notifier instead of the fsnotify one.
// The caller owns its lifecycle.
func WithNotifier(n core.Notifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}

// WithDebounce sets the quiet period a path needs before it is classified.
func WithDebounce(d time.Duration) Option {
	return func(o *options) {
		o.debounce = d
	}
}

// WithEchoWindow sets how long a save suppresses its own notifications.
func WithEchoWindow(d time.Duration) Option {
	return func(o *options) {
		o.echoWindow = d
	}
}

// WithEventBuffer sets the size of the document event buffer.
// Zero means default (100); negative disables the event stream.
func WithEventBuffer(size int) Option {
	return func(o *options) {
		if size == 0 {
			size = 100
		}
		o.eventBuffer = size
	}
}

// WithInboxSize bounds the watcher's pending message queue.
func WithInboxSize(size int) Option {
	return func(o *options) {
		o.inboxSize = size
	}
}

// WithRecentLimit caps the recent files and directories lists.
func WithRecentLimit(limit int) Option {
	return func(o *options) {
		o.recentLimit = limit
	}
}

// WithSettingsFile persists recent lists and dialog directories in a YAML
// file. Without it nothing is persisted.
func WithSettingsFile(path string) Option {
	return func(o *options) {
		o.settingsFile = path
	}
}

// WithDefaultFilters replaces the filters appended to every file dialog.
func WithDefaultFilters(filters ...core.FileFilter) Option {
	return func(o *options) {
		o.defaultFilters = filters
	}
}

// WithIgnorePatterns drops notifications for files whose base name matches
// any of the doublestar patterns.
func WithIgnorePatterns(patterns ...string) Option {
	return func(o *options) {
		o.ignorePatterns = append(o.ignorePatterns, patterns...)
	}
}

// WithDocTypes registers document types at construction.
func WithDocTypes(types ...docsys.DocType) Option {
	return func(o *options) {
		o.docTypes = append(o.docTypes, types...)
	}
}

// WithWatcherErrorHandler registers a callback for runtime watcher failures
// (e.g. permission denied on a watched directory) which are otherwise only logged.
func WithWatcherErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.errorHandler = fn
	}
}
