package prompt

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/aretw0/folio/pkg/core"
)

// ErrNoAnswer is returned by Scripted once its answers run out.
var ErrNoAnswer = errors.New("no scripted answer left")

// Call is one recorded Ask.
type Call struct {
	Conflict core.Conflict
	Batch    core.BatchContext
}

// Scripted replays a fixed list of decisions and records what it was asked.
// When the list is exhausted it falls back to Func, if set.
type Scripted struct {
	Func func(ctx context.Context, c core.Conflict, batch core.BatchContext) (core.Decision, error)

	mu      sync.Mutex
	answers []core.Decision
	calls   []Call
	errs    []core.FileError
	asked   chan Call
}

var _ core.PromptHandler = (*Scripted)(nil)

// NewScripted returns a handler that answers in order.
func NewScripted(answers ...core.Decision) *Scripted {
	return &Scripted{
		answers: answers,
		asked:   make(chan Call, 64),
	}
}

func (s *Scripted) Ask(ctx context.Context, c core.Conflict, batch core.BatchContext) (core.Decision, error) {
	call := Call{Conflict: c, Batch: batch}

	s.mu.Lock()
	s.calls = append(s.calls, call)
	var (
		d  core.Decision
		ok bool
	)
	if len(s.answers) > 0 {
		d, s.answers, ok = s.answers[0], s.answers[1:], true
	}
	fn := s.Func
	s.mu.Unlock()

	select {
	case s.asked <- call:
	default:
	}

	if ok {
		return d, nil
	}
	if fn != nil {
		return fn(ctx, c, batch)
	}
	return core.Decision{}, ErrNoAnswer
}

func (s *Scripted) ReportError(ctx context.Context, fe core.FileError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, fe)
}

// Push appends answers to the script.
func (s *Scripted) Push(answers ...core.Decision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers = append(s.answers, answers...)
}

// Asked delivers each call as it happens. Calls beyond its buffer are only
// available through Calls.
func (s *Scripted) Asked() <-chan Call {
	return s.asked
}

// Calls returns every recorded Ask in order.
func (s *Scripted) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

// Errors returns every reported file error in order.
func (s *Scripted) Errors() []core.FileError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.errs)
}

// Block is a Func that waits for ctx and returns its error.
func Block(ctx context.Context, _ core.Conflict, _ core.BatchContext) (core.Decision, error) {
	<-ctx.Done()
	return core.Decision{}, ctx.Err()
}
