package observe

import "time"

type Kind string

const (
	KindHire     Kind = "hire"
	KindPoll     Kind = "poll"
	KindResult   Kind = "result"
	KindRegistry Kind = "registry"
	KindPayment  Kind = "payment"
	KindTool     Kind = "tool"
	KindCustom   Kind = "custom"
)

type Status string

const (
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	// StatusPartial marks a hire whose job started but whose payment
	// registration failed; the jobId field carries the orphaned job.
	StatusPartial Status = "partial"
)

// Event is one observable gateway operation. Identifiers are filled in as
// far as the operation got: a failed hire has an agent but no job, a partial
// hire has a job but no payment.
type Event struct {
	ID         string         `json:"id,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Kind       Kind           `json:"kind"`
	Status     Status         `json:"status,omitempty"`
	Name       string         `json:"name,omitempty"`
	AgentID    string         `json:"agentId,omitempty"`
	JobID      string         `json:"jobId,omitempty"`
	PaymentID  string         `json:"paymentId,omitempty"`
	Network    string         `json:"network,omitempty"`
	Message    string         `json:"message,omitempty"`
	Error      string         `json:"error,omitempty"`
	DurationMs int64          `json:"durationMs,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

func (e *Event) Normalize() {
	if e == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.Kind == "" {
		e.Kind = KindCustom
	}
	if e.Status == "" {
		e.Status = StatusCompleted
	}
}
