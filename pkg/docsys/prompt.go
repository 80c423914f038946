package docsys

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/folio/pkg/adapters/fs"
	"github.com/aretw0/folio/pkg/core"
)

// pendingConflict is a conflict waiting for, or holding, the prompt handler.
type pendingConflict struct {
	docID    core.DocumentID
	path     string
	kind     core.ConflictKind
	conflict core.Conflict
	report   *core.FileError // shown before the conflict is asked again
	cancel   context.CancelFunc
}

// promptQueue serializes prompts: at most one is in flight, the rest wait
// in arrival order. Conflicts queued while another is pending form a batch.
type promptQueue struct {
	items      []*pendingConflict
	inFlight   *pendingConflict
	batchIndex int
}

func (q *promptQueue) push(p *pendingConflict) {
	q.items = append(q.items, p)
}

func (q *promptQueue) pushFront(p *pendingConflict) {
	q.items = append([]*pendingConflict{p}, q.items...)
	if q.batchIndex > 0 {
		q.batchIndex--
	}
}

func (q *promptQueue) pop() *pendingConflict {
	if len(q.items) == 0 {
		return nil
	}
	p := q.items[0]
	q.items = q.items[1:]
	return p
}

func (q *promptQueue) remove(id core.DocumentID) {
	q.items = slices.DeleteFunc(q.items, func(p *pendingConflict) bool { return p.docID == id })
}

func (q *promptQueue) idle() bool {
	return q.inFlight == nil && len(q.items) == 0
}

// dispatch hands the next queued conflict to the prompt handler.
func (w *Watcher) dispatch() {
	q := w.queue
	if q.inFlight != nil || w.runCtx == nil {
		return
	}
	for {
		item := q.pop()
		if item == nil {
			q.batchIndex = 0
			return
		}
		doc, ok := w.sys.registry.Lookup(item.docID)
		if !ok || doc.State != core.StatePendingConflict || doc.Path != item.path {
			continue
		}

		q.batchIndex++
		batch := core.BatchContext{Index: q.batchIndex, Remaining: 1 + len(q.items)}
		conflict := core.NewConflict(doc, item.kind, batch.Remaining)
		item.conflict = conflict

		ctx, cancel := context.WithCancel(w.runCtx)
		item.cancel = cancel
		q.inFlight = item
		w.stats.Prompts++

		report := item.report
		item.report = nil
		w.logger.Debug("asking", "path", conflict.Path, "kind", conflict.Kind, "index", batch.Index, "remaining", batch.Remaining)

		lifecycle.Go(ctx, func(ctx context.Context) error {
			if report != nil {
				w.prompt.ReportError(ctx, *report)
			}
			d, err := w.prompt.Ask(ctx, conflict, batch)
			w.post(decisionMsg{item: item, decision: d, err: err})
			return nil
		}, lifecycle.WithErrorHandler(func(err error) {
			w.post(decisionMsg{item: item, err: fmt.Errorf("prompt handler panic: %w", err)})
		}))
		return
	}
}

// onDecision applies the handler's answer for the in-flight conflict.
// Answers for conflicts that were cancelled meanwhile are dropped.
func (w *Watcher) onDecision(m decisionMsg) {
	q := w.queue
	if q.inFlight != m.item {
		return
	}
	q.inFlight = nil
	m.item.cancel()
	defer w.dispatch()

	doc, ok := w.sys.registry.Lookup(m.item.docID)
	if !ok || doc.State != core.StatePendingConflict || doc.Path != m.item.path {
		return
	}
	if m.err != nil {
		w.logger.Warn("prompt failed, keeping document as is", "path", doc.Path, "error", m.err)
		w.release(doc)
		return
	}
	w.apply(doc, m.item, m.decision)
}

// accepts reports whether d may be applied to c. Only offered decisions
// count, so a destructive answer the conflict never proposed is refused.
func accepts(c core.Conflict, d core.Decision) bool {
	if d.Kind == core.DecisionSaveAs && d.Path == "" {
		return false
	}
	return c.Offers(d.Kind)
}

func (w *Watcher) apply(doc *core.Document, item *pendingConflict, d core.Decision) {
	if !accepts(item.conflict, d) {
		w.logger.Warn("decision not applicable, asking again", "path", doc.Path, "decision", d)
		w.requeue(item, nil)
		return
	}
	w.stats.Decisions[d.Kind.String()]++
	w.logger.Info("conflict resolved", "path", doc.Path, "decision", d)

	switch d.Kind {
	case core.DecisionReload:
		if err := w.sys.reloadLocked(doc); err != nil {
			w.report(core.ReloadError(doc.Path, err))
		}
		w.release(doc)

	case core.DecisionIgnore:
		w.sys.ignoreLocked(doc)
		w.release(doc)

	case core.DecisionSaveAs:
		target := d.Path
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(doc.Path), target)
		}
		canon, err := fs.Canonical(target)
		if err == nil {
			err = w.sys.saveAsLocked(doc, canon)
		}
		if err != nil {
			fe := core.SaveError(target, err)
			if errors.Is(err, core.ErrAlreadyOpen) {
				fe = core.AlreadyOpenError(canon)
			}
			w.requeue(item, &fe)
			return
		}
		w.release(doc)

	case core.DecisionClose:
		w.sys.closeLocked(doc)

	case core.DecisionCloseAll:
		rest := w.queue.items
		w.queue.items = nil
		w.sys.closeLocked(doc)
		for _, p := range rest {
			if other, ok := w.sys.registry.Lookup(p.docID); ok {
				w.sys.closeLocked(other)
			}
		}
	}
}

// requeue puts a conflict back at the head of the queue. The document stays
// pending; fe, when set, is reported before asking again.
func (w *Watcher) requeue(item *pendingConflict, fe *core.FileError) {
	item.report = fe
	item.cancel = nil
	w.queue.pushFront(item)
}

// report shows an error that needs no answer.
func (w *Watcher) report(fe core.FileError) {
	w.logger.Warn(fe.Summary, "path", fe.Path, "error", fe.Err)
	lifecycle.Go(w.runCtx, func(ctx context.Context) error {
		w.prompt.ReportError(ctx, fe)
		return nil
	})
}
