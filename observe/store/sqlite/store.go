package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/masumi-network/masumi-gateway/observe"
	observestore "github.com/masumi-network/masumi-gateway/observe/store"
)

//go:embed schema.sql
var schemaSQL string

const defaultLimit = 200

type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite event path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create event db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open event sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable wal: %w", err)
	}
	if _, err := db.ExecContext(context.Background(), schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize event schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) SaveEvent(ctx context.Context, event observe.Event) error {
	if s == nil || s.db == nil {
		return nil
	}
	event.Normalize()
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	attrs, err := json.Marshal(event.Attributes)
	if err != nil {
		return fmt.Errorf("failed to encode event attributes: %w", err)
	}
	const q = `
INSERT INTO gateway_events (
  event_id, kind, status, name, agent_id, job_id, payment_id, network,
  message, error, duration_ms, attributes, timestamp
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`
	_, err = s.db.ExecContext(
		ctx,
		q,
		event.ID,
		string(event.Kind),
		string(event.Status),
		event.Name,
		event.AgentID,
		event.JobID,
		event.PaymentID,
		event.Network,
		event.Message,
		event.Error,
		event.DurationMs,
		string(attrs),
		event.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save gateway event: %w", err)
	}
	return nil
}

// Emit lets the store double as an observe.Sink.
func (s *Store) Emit(ctx context.Context, event observe.Event) error {
	return s.SaveEvent(ctx, event)
}

func (s *Store) ListEventsByAgent(ctx context.Context, agentID string, query observestore.ListQuery) ([]observe.Event, error) {
	if strings.TrimSpace(agentID) == "" {
		return nil, fmt.Errorf("agentID is required")
	}
	return s.list(ctx, "agent_id = ?", agentID, query)
}

func (s *Store) ListEventsByJob(ctx context.Context, jobID string, query observestore.ListQuery) ([]observe.Event, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, fmt.Errorf("jobID is required")
	}
	return s.list(ctx, "job_id = ?", jobID, query)
}

func (s *Store) list(ctx context.Context, predicate string, value string, query observestore.ListQuery) ([]observe.Event, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	limit := query.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	offset := query.Offset
	if offset < 0 {
		offset = 0
	}

	q := fmt.Sprintf(`
SELECT event_id, kind, status, name, agent_id, job_id, payment_id, network,
       message, error, duration_ms, attributes, timestamp
FROM gateway_events
WHERE %s
ORDER BY timestamp ASC
LIMIT ? OFFSET ?;
`, predicate)

	rows, err := s.db.QueryContext(ctx, q, value, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list gateway events: %w", err)
	}
	defer rows.Close()

	out := make([]observe.Event, 0, limit)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate gateway events: %w", err)
	}
	return out, nil
}

func scanEvent(scanner interface{ Scan(dest ...any) error }) (observe.Event, error) {
	var (
		e      observe.Event
		kind   string
		status string
		attrs  string
		tsRaw  string
	)
	if err := scanner.Scan(
		&e.ID,
		&kind,
		&status,
		&e.Name,
		&e.AgentID,
		&e.JobID,
		&e.PaymentID,
		&e.Network,
		&e.Message,
		&e.Error,
		&e.DurationMs,
		&attrs,
		&tsRaw,
	); err != nil {
		return observe.Event{}, fmt.Errorf("failed to scan gateway event: %w", err)
	}
	e.Kind = observe.Kind(kind)
	e.Status = observe.Status(status)
	if tsRaw != "" {
		ts, err := time.Parse(time.RFC3339Nano, tsRaw)
		if err == nil {
			e.Timestamp = ts
		}
	}
	if attrs != "" {
		_ = json.Unmarshal([]byte(attrs), &e.Attributes)
	}
	e.Normalize()
	return e, nil
}

func (s *Store) AggregateMetrics(ctx context.Context, query observestore.MetricsQuery) (observestore.MetricsSummary, error) {
	if s == nil || s.db == nil {
		return observestore.MetricsSummary{}, nil
	}
	args := []any{}
	where := ""
	if query.Since != nil {
		where = " AND timestamp >= ?"
		args = append(args, query.Since.UTC().Format(time.RFC3339Nano))
	}

	counter := func(kind observe.Kind, statuses ...observe.Status) (int64, error) {
		var total int64
		for _, status := range statuses {
			q := "SELECT COUNT(*) FROM gateway_events WHERE kind = ? AND status = ?" + where
			qArgs := append([]any{string(kind), string(status)}, args...)
			var n int64
			if err := s.db.QueryRowContext(ctx, q, qArgs...).Scan(&n); err != nil {
				return 0, err
			}
			total += n
		}
		return total, nil
	}

	metrics := observestore.MetricsSummary{}
	var err error
	if metrics.HiresStarted, err = counter(observe.KindHire, observe.StatusStarted); err != nil {
		return observestore.MetricsSummary{}, fmt.Errorf("metrics hires started: %w", err)
	}
	if metrics.HiresCompleted, err = counter(observe.KindHire, observe.StatusCompleted); err != nil {
		return observestore.MetricsSummary{}, fmt.Errorf("metrics hires completed: %w", err)
	}
	if metrics.HiresFailed, err = counter(observe.KindHire, observe.StatusFailed); err != nil {
		return observestore.MetricsSummary{}, fmt.Errorf("metrics hires failed: %w", err)
	}
	if metrics.HiresPartial, err = counter(observe.KindHire, observe.StatusPartial); err != nil {
		return observestore.MetricsSummary{}, fmt.Errorf("metrics hires partial: %w", err)
	}
	if metrics.Polls, err = counter(observe.KindPoll, observe.StatusCompleted, observe.StatusFailed); err != nil {
		return observestore.MetricsSummary{}, fmt.Errorf("metrics polls: %w", err)
	}
	if metrics.PollFailures, err = counter(observe.KindPoll, observe.StatusFailed); err != nil {
		return observestore.MetricsSummary{}, fmt.Errorf("metrics poll failures: %w", err)
	}
	if metrics.ResultFetches, err = counter(observe.KindResult, observe.StatusCompleted); err != nil {
		return observestore.MetricsSummary{}, fmt.Errorf("metrics result fetches: %w", err)
	}
	if metrics.RegistryCalls, err = counter(observe.KindRegistry, observe.StatusCompleted, observe.StatusFailed); err != nil {
		return observestore.MetricsSummary{}, fmt.Errorf("metrics registry calls: %w", err)
	}
	if metrics.PaymentCalls, err = counter(observe.KindPayment, observe.StatusCompleted, observe.StatusFailed); err != nil {
		return observestore.MetricsSummary{}, fmt.Errorf("metrics payment calls: %w", err)
	}
	return metrics, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
