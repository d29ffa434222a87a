package observe

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSink) Emit(ctx context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestEventNormalize(t *testing.T) {
	var e Event
	e.Normalize()
	if e.Timestamp.IsZero() {
		t.Fatal("timestamp should be filled")
	}
	if e.Kind != KindCustom || e.Status != StatusCompleted {
		t.Fatalf("defaults not applied: %+v", e)
	}

	fixed := Event{Kind: KindHire, Status: StatusFailed, Timestamp: time.Unix(100, 0)}
	fixed.Normalize()
	if fixed.Kind != KindHire || fixed.Status != StatusFailed || !fixed.Timestamp.Equal(time.Unix(100, 0)) {
		t.Fatalf("set values must survive: %+v", fixed)
	}
}

func TestMultiSinkFansOut(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{}
	sink := NewMultiSink(a, nil, b)

	if err := sink.Emit(context.Background(), Event{Kind: KindHire}); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	if a.len() != 1 || b.len() != 1 {
		t.Fatalf("expected both sinks to receive the event: %d, %d", a.len(), b.len())
	}
}

func TestMultiSinkCollapses(t *testing.T) {
	if _, ok := NewMultiSink().(NoopSink); !ok {
		t.Fatal("no sinks should collapse to NoopSink")
	}
	only := &recordingSink{}
	if NewMultiSink(only, nil) != Sink(only) {
		t.Fatal("single sink should be returned directly")
	}
}

func TestMultiSinkStopsOnError(t *testing.T) {
	boom := SinkFunc(func(ctx context.Context, event Event) error {
		return fmt.Errorf("boom")
	})
	after := &recordingSink{}
	sink := NewMultiSink(boom, after)
	if err := sink.Emit(context.Background(), Event{}); err == nil {
		t.Fatal("expected error from failing sink")
	}
	if after.len() != 0 {
		t.Fatal("downstream sink should not run after a failure")
	}
}

func TestAsyncSinkDelivers(t *testing.T) {
	downstream := &recordingSink{}
	sink := NewAsyncSink(downstream, 8)
	defer sink.Close()

	for i := 0; i < 5; i++ {
		if err := sink.Emit(context.Background(), Event{Kind: KindPoll}); err != nil {
			t.Fatalf("Emit failed: %v", err)
		}
	}

	deadline := time.After(2 * time.Second)
	for downstream.len() < 5 {
		select {
		case <-deadline:
			t.Fatalf("only %d of 5 events delivered", downstream.len())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestAsyncSinkDropsOnPressure(t *testing.T) {
	blocked := make(chan struct{})
	slow := SinkFunc(func(ctx context.Context, event Event) error {
		<-blocked
		return nil
	})
	sink := NewAsyncSink(slow, 1)
	defer func() {
		close(blocked)
		sink.Close()
	}()

	// Saturate the queue; extra events must be dropped, never block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			_ = sink.Emit(context.Background(), Event{})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked under pressure")
	}
}

func TestSinkFuncNil(t *testing.T) {
	var f SinkFunc
	if err := f.Emit(context.Background(), Event{}); err != nil {
		t.Fatalf("nil SinkFunc should be a no-op, got %v", err)
	}
}
