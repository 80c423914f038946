package prompt

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/folio/pkg/core"
)

// Policy answers every conflict with a fixed decision per conflict kind.
// It is meant for unattended runs where nobody can be asked.
type Policy struct {
	OnModified core.DecisionKind
	OnRemoved  core.DecisionKind
	Logger     *slog.Logger
}

var _ core.PromptHandler = (*Policy)(nil)

// NewPolicy builds a policy from decision names, e.g. "reload" and "close".
// Modified files may be reloaded or ignored; removed files may only be
// closed, since nothing else a policy can pick is offered for them.
func NewPolicy(onModified, onRemoved string, logger *slog.Logger) (*Policy, error) {
	modified, err := core.ParseDecisionKind(onModified)
	if err != nil {
		return nil, fmt.Errorf("on modified: %w", err)
	}
	if modified != core.DecisionReload && modified != core.DecisionIgnore {
		return nil, fmt.Errorf("on modified: %s is not offered for modified files", modified)
	}
	removed, err := core.ParseDecisionKind(onRemoved)
	if err != nil {
		return nil, fmt.Errorf("on removed: %w", err)
	}
	if removed != core.DecisionClose && removed != core.DecisionCloseAll {
		return nil, fmt.Errorf("on removed: %s is not offered for removed files", removed)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Policy{OnModified: modified, OnRemoved: removed, Logger: logger}, nil
}

// KeepPolicy ignores external modifications and closes removed documents.
func KeepPolicy(logger *slog.Logger) *Policy {
	p, _ := NewPolicy("ignore", "close", logger)
	return p
}

func (p *Policy) Ask(ctx context.Context, c core.Conflict, batch core.BatchContext) (core.Decision, error) {
	want := p.OnModified
	if c.Kind == core.ConflictRemoved {
		want = p.OnRemoved
	}

	d := core.Decision{Kind: want}
	if !c.Offers(want) {
		// Close all is only offered to batches; a lone conflict gets close.
		if want != core.DecisionCloseAll || !c.Offers(core.DecisionClose) {
			return core.Decision{}, fmt.Errorf("policy decision %s is not offered for %s", want, c.Path)
		}
		d = core.Close()
	}

	p.logger().Info("conflict answered by policy", "path", c.Path, "kind", c.Kind, "decision", d, "index", batch.Index)
	return d, nil
}

func (p *Policy) ReportError(ctx context.Context, fe core.FileError) {
	p.logger().Error(fe.Summary, "path", fe.Path, "detail", fe.Detail)
}

func (p *Policy) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return p.Logger
}
