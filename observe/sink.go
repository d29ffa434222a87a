package observe

import (
	"context"
	"sync"
)

// Sink receives gateway events. The engine and the tool surface emit through
// a single Sink; fan-out and buffering are composed around it rather than
// built into the emitters.
type Sink interface {
	Emit(ctx context.Context, event Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, event Event) error

func (f SinkFunc) Emit(ctx context.Context, event Event) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

// NoopSink discards every event. It stands in wherever a Sink is required
// but nothing is configured, so emitters never nil-check.
type NoopSink struct{}

func (NoopSink) Emit(context.Context, Event) error { return nil }

// MultiSink delivers each event to every configured sink in order, for
// example the sqlite event store plus a redis stream. The first sink error
// stops the fan-out.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink drops nil sinks and collapses trivial cases: no sinks become
// a NoopSink, a single sink is returned as is.
func NewMultiSink(sinks ...Sink) Sink {
	filtered := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s == nil {
			continue
		}
		filtered = append(filtered, s)
	}
	if len(filtered) == 0 {
		return NoopSink{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &MultiSink{sinks: filtered}
}

func (m *MultiSink) Emit(ctx context.Context, event Event) error {
	if m == nil {
		return nil
	}
	for _, sink := range m.sinks {
		if err := sink.Emit(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// AsyncSink decouples emitters from slow downstreams with a bounded queue
// drained by a single goroutine. A full queue drops the event rather than
// stalling a hire or poll in flight.
type AsyncSink struct {
	downstream Sink
	queue      chan Event
	once       sync.Once
}

func NewAsyncSink(downstream Sink, buffer int) *AsyncSink {
	if downstream == nil {
		downstream = NoopSink{}
	}
	if buffer <= 0 {
		buffer = 256
	}
	as := &AsyncSink{
		downstream: downstream,
		queue:      make(chan Event, buffer),
	}
	go as.loop()
	return as
}

func (s *AsyncSink) Emit(ctx context.Context, event Event) error {
	if s == nil {
		return nil
	}
	event.Normalize()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case s.queue <- event:
		return nil
	default:
		// Queue full, drop.
		return nil
	}
}

// Close stops the drain loop once the queued events are delivered.
func (s *AsyncSink) Close() {
	if s == nil {
		return
	}
	s.once.Do(func() { close(s.queue) })
}

func (s *AsyncSink) loop() {
	for event := range s.queue {
		_ = s.downstream.Emit(context.Background(), event)
	}
}
