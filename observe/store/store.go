package store

import (
	"context"
	"time"

	"github.com/masumi-network/masumi-gateway/observe"
)

type ListQuery struct {
	Limit  int
	Offset int
}

type MetricsQuery struct {
	Since *time.Time
}

type MetricsSummary struct {
	HiresStarted   int64 `json:"hiresStarted"`
	HiresCompleted int64 `json:"hiresCompleted"`
	HiresFailed    int64 `json:"hiresFailed"`
	HiresPartial   int64 `json:"hiresPartial"`
	Polls          int64 `json:"polls"`
	PollFailures   int64 `json:"pollFailures"`
	ResultFetches  int64 `json:"resultFetches"`
	RegistryCalls  int64 `json:"registryCalls"`
	PaymentCalls   int64 `json:"paymentCalls"`
}

type Store interface {
	SaveEvent(ctx context.Context, event observe.Event) error
	ListEventsByAgent(ctx context.Context, agentID string, query ListQuery) ([]observe.Event, error)
	ListEventsByJob(ctx context.Context, jobID string, query ListQuery) ([]observe.Event, error)
	AggregateMetrics(ctx context.Context, query MetricsQuery) (MetricsSummary, error)
	Close() error
}
