package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/folio/pkg/adapters/fs"
	adapter "github.com/aretw0/folio/pkg/adapters/lifecycle"
	"github.com/aretw0/folio/pkg/core"
	"github.com/aretw0/folio/pkg/docsys"
	"github.com/aretw0/folio/pkg/prompt"
)

// Runtime is a wired document system: notifier, system and watcher.
type Runtime struct {
	System  *docsys.System
	Watcher *docsys.Watcher

	notifier     *fs.Notifier // nil when the notifier was injected
	settingsFile string
	logger       *slog.Logger
	cancel       context.CancelFunc
}

// rt, err := platform.New(platform.WithPromptHandler(h), platform.WithSettingsFile(path))
func New(opts ...Option) (*Runtime, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var settings docsys.Settings
	if o.settingsFile != "" {
		loaded, err := LoadSettings(o.settingsFile)
		if err != nil {
			o.logger.Warn("settings not loaded", "path", o.settingsFile, "error", err)
		} else {
			settings = loaded
		}
	}

	rt := &Runtime{
		settingsFile: o.settingsFile,
		logger:       o.logger,
	}

	notifier := o.notifier
	if notifier == nil {
		n, err := fs.NewNotifier(fs.NotifierConfig{
			Logger:         o.logger,
			IgnorePatterns: o.ignorePatterns,
			ErrorHandler:   o.errorHandler,
			Buffer:         o.inboxSize,
		})
		if err != nil {
			return nil, err
		}
		rt.notifier = n
		notifier = n
	}

	handler := o.prompt
	if handler == nil {
		handler = prompt.KeepPolicy(o.logger)
	}

	rt.System = docsys.New(docsys.Config{
		Logger:         o.logger,
		Notifier:       notifier,
		EchoWindow:     o.echoWindow,
		EventBuffer:    o.eventBuffer,
		RecentLimit:    o.recentLimit,
		DefaultFilters: o.defaultFilters,
		Settings:       settings,
	})
	for _, dt := range o.docTypes {
		if err := rt.System.AddDocType(dt); err != nil {
			return nil, fmt.Errorf("failed to register document type: %w", err)
		}
	}

	w, err := docsys.NewWatcher(rt.System, docsys.WatcherConfig{
		Logger:       o.logger,
		Prompt:       handler,
		Debounce:     o.debounce,
		InboxSize:    o.inboxSize,
		ErrorHandler: o.errorHandler,
	})
	if err != nil {
		return nil, err
	}
	rt.Watcher = w
	return rt, nil
}

// Start runs the notifier (when owned) and the watcher until Shutdown or
// until ctx is cancelled.
func (r *Runtime) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	if r.notifier != nil {
		if err := r.notifier.Start(runCtx); err != nil {
			cancel()
			return fmt.Errorf("failed to start notifier: %w", err)
		}
	}
	if err := r.Watcher.Start(runCtx); err != nil {
		cancel()
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	r.logger.Debug("runtime started")
	return nil
}

// Source exposes the document events as a lifecycle.Source, limited to
// types when any are given.
func (r *Runtime) Source(types ...core.EventType) lifecycle.Source {
	return adapter.NewSource(r.System.Events(), types...)
}

// Shutdown stops the watcher, persists settings and releases the notifier.
func (r *Runtime) Shutdown(ctx context.Context) error {
	var errs []error
	if r.cancel != nil {
		r.cancel()
		select {
		case <-r.Watcher.Done():
		case <-ctx.Done():
			errs = append(errs, ctx.Err())
		}
	}
	if err := r.System.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if r.settingsFile != "" {
		if err := SaveSettings(r.settingsFile, r.System.Settings()); err != nil {
			r.logger.Warn("settings not saved", "path", r.settingsFile, "error", err)
			errs = append(errs, err)
		}
	}
	if r.notifier != nil && r.cancel != nil {
		if err := r.notifier.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
