package lifecycle

import (
	"context"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/folio/pkg/core"
)

// documentSource forwards document events to lifecycle consumers.
// core.Event satisfies lifecycle.Event through String().
type documentSource struct {
	in    <-chan core.Event
	out   chan lifecycle.Event
	types map[core.EventType]bool // nil forwards everything
}

// NewSource wraps the document event channel as a lifecycle.Source. When
// types is non-empty, only events of those types are forwarded. The output
// closes once the input closes or the context passed to Start ends.
func NewSource(events <-chan core.Event, types ...core.EventType) lifecycle.Source {
	s := &documentSource{
		in:  events,
		out: make(chan lifecycle.Event),
	}
	if len(types) > 0 {
		s.types = make(map[core.EventType]bool, len(types))
		for _, t := range types {
			s.types[t] = true
		}
	}
	return s
}

func (s *documentSource) Events() <-chan lifecycle.Event {
	return s.out
}

func (s *documentSource) Start(ctx context.Context) error {
	lifecycle.Go(ctx, s.forward)
	return nil
}

func (s *documentSource) forward(ctx context.Context) error {
	defer close(s.out)
	for {
		var e core.Event
		var ok bool
		select {
		case <-ctx.Done():
			return nil
		case e, ok = <-s.in:
			if !ok {
				return nil
			}
		}
		if s.types != nil && !s.types[e.Type] {
			continue
		}
		select {
		case s.out <- e:
		case <-ctx.Done():
			return nil
		}
	}
}
