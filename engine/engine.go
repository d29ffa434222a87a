// Package engine correlates the two halves of hiring an agent: the job on
// the agent's own service and the escrow purchase on the payment service.
// The two remotes share no transaction, so the engine orders the calls to
// keep the job side atomic and reports split states explicitly instead of
// hiding them.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/masumi-network/masumi-gateway/clients/agentic"
	"github.com/masumi-network/masumi-gateway/clients/payment"
	"github.com/masumi-network/masumi-gateway/guard"
	"github.com/masumi-network/masumi-gateway/observe"
	"github.com/masumi-network/masumi-gateway/types"
	"golang.org/x/sync/errgroup"
)

// DefaultPreviewLimit bounds the result text embedded in a status summary.
// Larger outputs are available untruncated through FullResult.
const DefaultPreviewLimit = 3000

// AgentCaller is the slice of the agentic client the engine needs.
type AgentCaller interface {
	StartJob(ctx context.Context, apiBaseURL string, req agentic.StartJobRequest) (agentic.StartJobResponse, error)
	Status(ctx context.Context, apiBaseURL, jobID string) (agentic.JobState, error)
	InputSchema(ctx context.Context, apiBaseURL string) (json.RawMessage, error)
}

// PaymentCaller is the slice of the payment client the engine needs.
type PaymentCaller interface {
	CreatePurchase(ctx context.Context, req payment.PurchaseRequest) (types.PaymentRecord, error)
	GetPayment(ctx context.Context, network, blockchainIdentifier string) (types.PaymentRecord, error)
}

type Engine struct {
	agents       AgentCaller
	payments     PaymentCaller
	network      string
	results      *ResultStore
	sink         observe.Sink
	previewLimit int
	now          func() time.Time
}

type Option func(*Engine)

// WithSink attaches an event sink. Events are best-effort; sink failures
// never fail the operation they describe.
func WithSink(sink observe.Sink) Option {
	return func(e *Engine) {
		if sink != nil {
			e.sink = sink
		}
	}
}

func WithResultStore(store *ResultStore) Option {
	return func(e *Engine) {
		if store != nil {
			e.results = store
		}
	}
}

func WithPreviewLimit(limit int) Option {
	return func(e *Engine) {
		if limit > 0 {
			e.previewLimit = limit
		}
	}
}

// New builds an engine bound to the test network. The network is taken from
// the guard package rather than configuration so a mainnet engine cannot be
// constructed.
func New(agents AgentCaller, payments PaymentCaller, opts ...Option) (*Engine, error) {
	if agents == nil {
		return nil, fmt.Errorf("engine: agent client is required")
	}
	if payments == nil {
		return nil, fmt.Errorf("engine: payment client is required")
	}
	e := &Engine{
		agents:       agents,
		payments:     payments,
		network:      guard.AllowedNetwork,
		results:      NewResultStore(),
		sink:         observe.NoopSink{},
		previewLimit: DefaultPreviewLimit,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Network reports the single network this engine operates on.
func (e *Engine) Network() string { return e.network }

// Results exposes the engine's result cache, mainly for metrics.
func (e *Engine) Results() *ResultStore { return e.results }

// HireRequest describes one hire. AgentIdentifier and APIBaseURL come from a
// registry entry; InputData must satisfy the agent's input schema. Network is
// optional and exists only so callers quoting a registry entry verbatim get
// rejected up front if the entry was not a test-network one.
type HireRequest struct {
	AgentIdentifier string
	APIBaseURL      string
	Network         string
	InputData       map[string]any
	// InputSchema, when present, is validated against before any remote
	// call. Callers normally pass the schema fetched from the agent.
	InputSchema json.RawMessage
}

// HireReceipt is the successful outcome of a hire: the handle for all later
// polling plus the freshly registered payment record.
type HireReceipt struct {
	Handle  types.JobHandle     `json:"handle"`
	Payment types.PaymentRecord `json:"payment"`
}

// Hire starts a job on the agent and registers the matching escrow purchase.
//
// Validation runs before any remote call, so a rejected hire commits
// nothing. The job start itself is atomic: if it fails, no payment exists
// either. Only the window between a started job and a failed purchase
// registration is unavoidable; that outcome is a PartialHireError carrying
// the orphaned job ID.
func (e *Engine) Hire(ctx context.Context, req HireRequest) (HireReceipt, error) {
	started := e.now()
	network := req.Network
	if network == "" {
		network = e.network
	}
	if err := guard.Network(network); err != nil {
		return HireReceipt{}, err
	}
	if req.AgentIdentifier == "" {
		return HireReceipt{}, fmt.Errorf("engine: agent identifier is required")
	}
	if req.APIBaseURL == "" {
		return HireReceipt{}, fmt.Errorf("engine: agent api base url is required")
	}
	if len(req.InputData) == 0 {
		return HireReceipt{}, &IncompleteInputError{}
	}
	if err := validateInputSchema(req.InputData, req.InputSchema); err != nil {
		return HireReceipt{}, err
	}

	e.emit(ctx, observe.Event{
		Kind:    observe.KindHire,
		Status:  observe.StatusStarted,
		AgentID: req.AgentIdentifier,
		Network: network,
	})

	purchaser := "purchaser_" + uuid.NewString()[:8]
	start, err := e.agents.StartJob(ctx, req.APIBaseURL, agentic.StartJobRequest{
		IdentifierFromPurchaser: purchaser,
		InputData:               req.InputData,
	})
	if err != nil {
		hireErr := &JobStartError{AgentIdentifier: req.AgentIdentifier, Err: err}
		e.emit(ctx, observe.Event{
			Kind:       observe.KindHire,
			Status:     observe.StatusFailed,
			AgentID:    req.AgentIdentifier,
			Network:    network,
			Error:      hireErr.Error(),
			DurationMs: e.since(started),
		})
		return HireReceipt{}, hireErr
	}

	record, err := e.payments.CreatePurchase(ctx, payment.PurchaseRequest{
		IdentifierFromPurchaser:   purchaser,
		BlockchainIdentifier:      start.BlockchainIdentifier,
		Network:                   network,
		SellerVkey:                start.SellerVKey,
		SubmitResultTime:          start.SubmitResultTime.String(),
		UnlockTime:                start.UnlockTime.String(),
		ExternalDisputeUnlockTime: start.ExternalDisputeUnlockTime.String(),
		AgentIdentifier:           start.AgentIdentifier,
		InputHash:                 start.InputHash,
	})
	if err != nil {
		partial := &PartialHireError{
			AgentIdentifier: req.AgentIdentifier,
			JobID:           start.JobID,
			Err:             err,
		}
		e.emit(ctx, observe.Event{
			Kind:       observe.KindHire,
			Status:     observe.StatusPartial,
			AgentID:    req.AgentIdentifier,
			JobID:      start.JobID,
			Network:    network,
			Error:      partial.Error(),
			DurationMs: e.since(started),
		})
		return HireReceipt{}, partial
	}

	handle := types.JobHandle{
		AgentIdentifier: req.AgentIdentifier,
		APIBaseURL:      req.APIBaseURL,
		JobID:           start.JobID,
		PaymentID:       start.BlockchainIdentifier,
	}
	e.emit(ctx, observe.Event{
		Kind:       observe.KindHire,
		Status:     observe.StatusCompleted,
		AgentID:    req.AgentIdentifier,
		JobID:      handle.JobID,
		PaymentID:  handle.PaymentID,
		Network:    network,
		DurationMs: e.since(started),
	})
	return HireReceipt{Handle: handle, Payment: record}, nil
}

// FetchInputSchema retrieves the agent's published input schema so callers
// can validate or display it before hiring.
func (e *Engine) FetchInputSchema(ctx context.Context, apiBaseURL string) (json.RawMessage, error) {
	return e.agents.InputSchema(ctx, apiBaseURL)
}

// PollStatus reads both sides of a handle. The reads are independent: a
// failure on either side is captured in the summary instead of failing the
// call, so one broken remote never hides the other's state. Polling is
// read-only and safe to repeat at any frequency.
func (e *Engine) PollStatus(ctx context.Context, handle types.JobHandle) (types.StatusSummary, error) {
	started := e.now()
	summary := types.StatusSummary{Handle: handle}

	var state agentic.JobState
	var jobErr, payErr error
	var record types.PaymentRecord

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		state, jobErr = e.agents.Status(gctx, handle.APIBaseURL, handle.JobID)
		return nil
	})
	g.Go(func() error {
		record, payErr = e.payments.GetPayment(gctx, e.network, handle.PaymentID)
		return nil
	})
	_ = g.Wait()

	if jobErr != nil {
		summary.JobError = jobErr.Error()
	} else {
		status := state.Status
		summary.Job = &status
		if status.Terminal() {
			e.captureResult(handle, state, &summary)
		}
	}
	if payErr != nil {
		summary.PaymentError = payErr.Error()
	} else {
		summary.Payment = &record
	}

	event := observe.Event{
		Kind:       observe.KindPoll,
		Status:     observe.StatusCompleted,
		AgentID:    handle.AgentIdentifier,
		JobID:      handle.JobID,
		PaymentID:  handle.PaymentID,
		Network:    e.network,
		DurationMs: e.since(started),
	}
	if jobErr != nil || payErr != nil {
		event.Status = observe.StatusFailed
		event.Error = firstError(jobErr, payErr).Error()
	}
	e.emit(ctx, event)
	return summary, nil
}

// captureResult stores the terminal result and fills the summary's preview
// fields. The stored RawOutput is byte-for-byte what the agent sent.
func (e *Engine) captureResult(handle types.JobHandle, state agentic.JobState, summary *types.StatusSummary) {
	raw := state.RawOutput()
	now := e.now().UTC()
	result := types.JobResult{
		Status:    state.Status,
		RawOutput: raw,
		FetchedAt: &now,
	}
	if len(raw) > e.previewLimit {
		result.Preview = truncateRuneSafe(raw, e.previewLimit)
	}
	e.results.Put(handle, result)

	summary.ResultChars = len(raw)
	summary.FullResultAvailable = len(raw) > e.previewLimit
	if summary.FullResultAvailable {
		summary.Preview = result.Preview
	} else {
		summary.Preview = raw
	}
}

// truncateRuneSafe cuts s to at most limit bytes, backing off to the
// previous rune boundary so the preview never ends mid-rune.
func truncateRuneSafe(s string, limit int) string {
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

// FullResult returns the untruncated output of a terminal job. Cached
// results are served as stored; otherwise the agent is asked once more, and
// a still-running job yields ErrResultNotReady.
func (e *Engine) FullResult(ctx context.Context, handle types.JobHandle) (types.JobResult, error) {
	started := e.now()
	if result, ok := e.results.Get(handle); ok {
		e.emit(ctx, observe.Event{
			Kind:      observe.KindResult,
			Status:    observe.StatusCompleted,
			AgentID:   handle.AgentIdentifier,
			JobID:     handle.JobID,
			PaymentID: handle.PaymentID,
			Message:   "served from cache",
		})
		return result, nil
	}

	state, err := e.agents.Status(ctx, handle.APIBaseURL, handle.JobID)
	if err != nil {
		e.emit(ctx, observe.Event{
			Kind:       observe.KindResult,
			Status:     observe.StatusFailed,
			AgentID:    handle.AgentIdentifier,
			JobID:      handle.JobID,
			Error:      err.Error(),
			DurationMs: e.since(started),
		})
		return types.JobResult{}, err
	}
	if !state.Status.Terminal() {
		e.emit(ctx, observe.Event{
			Kind:       observe.KindResult,
			Status:     observe.StatusFailed,
			AgentID:    handle.AgentIdentifier,
			JobID:      handle.JobID,
			Error:      ErrResultNotReady.Error(),
			DurationMs: e.since(started),
		})
		return types.JobResult{}, fmt.Errorf("job %s is still %s: %w", handle.JobID, state.Status, ErrResultNotReady)
	}

	var summary types.StatusSummary
	e.captureResult(handle, state, &summary)
	result, _ := e.results.Get(handle)
	e.emit(ctx, observe.Event{
		Kind:       observe.KindResult,
		Status:     observe.StatusCompleted,
		AgentID:    handle.AgentIdentifier,
		JobID:      handle.JobID,
		PaymentID:  handle.PaymentID,
		DurationMs: e.since(started),
	})
	return result, nil
}

func (e *Engine) emit(ctx context.Context, event observe.Event) {
	if e.sink == nil {
		return
	}
	event.Normalize()
	_ = e.sink.Emit(ctx, event)
}

func (e *Engine) since(started time.Time) int64 {
	return e.now().Sub(started).Milliseconds()
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
