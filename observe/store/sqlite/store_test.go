package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/masumi-network/masumi-gateway/observe"
	observestore "github.com/masumi-network/masumi-gateway/observe/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSaveAndListByAgent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	events := []observe.Event{
		{Kind: observe.KindHire, Status: observe.StatusStarted, AgentID: "agent-1"},
		{Kind: observe.KindHire, Status: observe.StatusCompleted, AgentID: "agent-1", JobID: "job-1", PaymentID: "chain-abc"},
		{Kind: observe.KindHire, Status: observe.StatusStarted, AgentID: "agent-2"},
	}
	for _, e := range events {
		if err := store.SaveEvent(ctx, e); err != nil {
			t.Fatalf("SaveEvent failed: %v", err)
		}
	}

	got, err := store.ListEventsByAgent(ctx, "agent-1", observestore.ListQuery{})
	if err != nil {
		t.Fatalf("ListEventsByAgent failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events for agent-1, got %d", len(got))
	}
	if got[0].ID == "" {
		t.Fatal("saved events must receive an id")
	}
	if got[1].PaymentID != "chain-abc" {
		t.Fatalf("identifiers not round-tripped: %+v", got[1])
	}
}

func TestListByJob(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SaveEvent(ctx, observe.Event{
		Kind: observe.KindPoll, Status: observe.StatusCompleted, JobID: "job-7",
		Attributes: map[string]any{"resultChars": float64(120)},
	}); err != nil {
		t.Fatalf("SaveEvent failed: %v", err)
	}

	got, err := store.ListEventsByJob(ctx, "job-7", observestore.ListQuery{})
	if err != nil {
		t.Fatalf("ListEventsByJob failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if got[0].Attributes["resultChars"] != float64(120) {
		t.Fatalf("attributes not round-tripped: %#v", got[0].Attributes)
	}
}

func TestListValidatesIdentifier(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.ListEventsByAgent(context.Background(), " ", observestore.ListQuery{}); err == nil {
		t.Fatal("expected error for empty agent id")
	}
	if _, err := store.ListEventsByJob(context.Background(), "", observestore.ListQuery{}); err == nil {
		t.Fatal("expected error for empty job id")
	}
}

func TestListPagination(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		if err := store.SaveEvent(ctx, observe.Event{
			Kind:      observe.KindPoll,
			Status:    observe.StatusCompleted,
			AgentID:   "agent-1",
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatalf("SaveEvent failed: %v", err)
		}
	}

	page, err := store.ListEventsByAgent(ctx, "agent-1", observestore.ListQuery{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("ListEventsByAgent failed: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 events, got %d", len(page))
	}
	if !page[0].Timestamp.Equal(base.Add(2 * time.Second)) {
		t.Fatalf("unexpected page start: %v", page[0].Timestamp)
	}
}

func TestAggregateMetrics(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seed := []observe.Event{
		{Kind: observe.KindHire, Status: observe.StatusStarted},
		{Kind: observe.KindHire, Status: observe.StatusCompleted},
		{Kind: observe.KindHire, Status: observe.StatusPartial},
		{Kind: observe.KindPoll, Status: observe.StatusCompleted},
		{Kind: observe.KindPoll, Status: observe.StatusFailed},
		{Kind: observe.KindResult, Status: observe.StatusCompleted},
		{Kind: observe.KindRegistry, Status: observe.StatusCompleted},
		{Kind: observe.KindPayment, Status: observe.StatusFailed},
	}
	for _, e := range seed {
		if err := store.SaveEvent(ctx, e); err != nil {
			t.Fatalf("SaveEvent failed: %v", err)
		}
	}

	metrics, err := store.AggregateMetrics(ctx, observestore.MetricsQuery{})
	if err != nil {
		t.Fatalf("AggregateMetrics failed: %v", err)
	}
	if metrics.HiresStarted != 1 || metrics.HiresCompleted != 1 || metrics.HiresPartial != 1 {
		t.Fatalf("unexpected hire counters: %+v", metrics)
	}
	if metrics.Polls != 2 || metrics.PollFailures != 1 {
		t.Fatalf("unexpected poll counters: %+v", metrics)
	}
	if metrics.ResultFetches != 1 || metrics.RegistryCalls != 1 || metrics.PaymentCalls != 1 {
		t.Fatalf("unexpected call counters: %+v", metrics)
	}
}

func TestAggregateMetricsSince(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	old := time.Now().UTC().Add(-time.Hour)

	if err := store.SaveEvent(ctx, observe.Event{
		Kind: observe.KindHire, Status: observe.StatusStarted, Timestamp: old,
	}); err != nil {
		t.Fatalf("SaveEvent failed: %v", err)
	}
	if err := store.SaveEvent(ctx, observe.Event{
		Kind: observe.KindHire, Status: observe.StatusStarted,
	}); err != nil {
		t.Fatalf("SaveEvent failed: %v", err)
	}

	since := time.Now().UTC().Add(-time.Minute)
	metrics, err := store.AggregateMetrics(ctx, observestore.MetricsQuery{Since: &since})
	if err != nil {
		t.Fatalf("AggregateMetrics failed: %v", err)
	}
	if metrics.HiresStarted != 1 {
		t.Fatalf("since filter not applied: %+v", metrics)
	}
}

func TestNewRequiresPath(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
