package core

import (
	"context"
	"fmt"
	"slices"
)

// DecisionKind is the closed set of answers a prompt handler can give.
type DecisionKind int

const (
	DecisionReload DecisionKind = iota + 1
	DecisionIgnore
	DecisionSaveAs
	DecisionClose
	DecisionCloseAll
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionReload:
		return "reload"
	case DecisionIgnore:
		return "ignore"
	case DecisionSaveAs:
		return "save-as"
	case DecisionClose:
		return "close"
	case DecisionCloseAll:
		return "close-all"
	default:
		return fmt.Sprintf("decision(%d)", int(k))
	}
}

// ParseDecisionKind is the inverse of DecisionKind.String.
func ParseDecisionKind(s string) (DecisionKind, error) {
	for _, k := range []DecisionKind{DecisionReload, DecisionIgnore, DecisionSaveAs, DecisionClose, DecisionCloseAll} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown decision %q", s)
}

// Decision is the answer to a conflict. Path is only meaningful for SaveAs.
type Decision struct {
	Kind DecisionKind
	Path string
}

// Reload, Ignore, Close, CloseAll and SaveAs build decisions.
func Reload() Decision { return Decision{Kind: DecisionReload} }

func Ignore() Decision { return Decision{Kind: DecisionIgnore} }

func Close() Decision { return Decision{Kind: DecisionClose} }

func CloseAll() Decision { return Decision{Kind: DecisionCloseAll} }

func SaveAs(path string) Decision { return Decision{Kind: DecisionSaveAs, Path: path} }

func (d Decision) String() string {
	if d.Kind == DecisionSaveAs && d.Path != "" {
		return "save-as " + d.Path
	}
	return d.Kind.String()
}

// Option is one choice offered to the user for a conflict.
type Option struct {
	Kind  DecisionKind
	Label string
}

// Conflict describes a detected divergence handed to the prompt handler.
type Conflict struct {
	DocumentID DocumentID
	Path       string
	Dirty      bool
	Kind       ConflictKind
	Title      string
	Text       string
	Options    []Option
}

// Offers reports whether kind is among the offered options.
func (c Conflict) Offers(kind DecisionKind) bool {
	return slices.ContainsFunc(c.Options, func(o Option) bool { return o.Kind == kind })
}

// BatchContext tells the handler where this conflict sits in the current
// reconciliation batch.
type BatchContext struct {
	Index     int // 1-based position in the batch
	Remaining int // pending conflicts including this one
}

// FileError is the user-facing description of an I/O failure.
type FileError struct {
	Title   string
	Summary string
	Detail  string
	Path    string
	Err     error
}

// PromptHandler is the decision oracle consumed by the document watcher.
// Ask may block for as long as a human needs; it should return when ctx is
// cancelled, which happens when the document is closed meanwhile.
type PromptHandler interface {
	Ask(ctx context.Context, c Conflict, batch BatchContext) (Decision, error)
	ReportError(ctx context.Context, fe FileError)
}

// OptionsFor returns the choices offered for a conflict case.
// Modified offers reload/ignore (labels differ with the dirty flag), Removed
// offers save-as/close for either dirty state. CloseAll is only added when
// more than one conflict is pending in the batch.
func OptionsFor(kind ConflictKind, dirty bool, batchSize int) []Option {
	var opts []Option
	switch kind {
	case ConflictModified:
		if dirty {
			opts = []Option{
				{Kind: DecisionReload, Label: LabelReloadDiscard},
				{Kind: DecisionIgnore, Label: LabelKeepCurrent},
			}
		} else {
			opts = []Option{
				{Kind: DecisionReload, Label: LabelReload},
				{Kind: DecisionIgnore, Label: LabelIgnore},
			}
		}
	case ConflictRemoved:
		opts = []Option{
			{Kind: DecisionSaveAs, Label: LabelSaveAs},
			{Kind: DecisionClose, Label: LabelClose},
		}
	}
	if batchSize > 1 {
		opts = append(opts, Option{Kind: DecisionCloseAll, Label: LabelCloseAll})
	}
	return opts
}

// NewConflict assembles the descriptor for a document.
func NewConflict(doc *Document, kind ConflictKind, batchSize int) Conflict {
	title, text := ConflictMessage(kind, doc.Dirty, doc.Path)
	return Conflict{
		DocumentID: doc.ID,
		Path:       doc.Path,
		Dirty:      doc.Dirty,
		Kind:       kind,
		Title:      title,
		Text:       text,
		Options:    OptionsFor(kind, doc.Dirty, batchSize),
	}
}
