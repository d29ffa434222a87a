// Package agentic is the client for the per-agent Agentic Service API.
//
// Unlike the registry and payment clients, the base URL is not fixed at
// construction: every agent hosts its own API, so each call takes the
// agent's apiBaseUrl (as advertised in the registry).
package agentic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/masumi-network/masumi-gateway/remote"
	"github.com/masumi-network/masumi-gateway/types"
)

type Client struct {
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d}
		}
	}
}

func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: remote.DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartJobRequest is the payload for POST {base}/start_job.
type StartJobRequest struct {
	IdentifierFromPurchaser string         `json:"identifier_from_purchaser"`
	InputData               map[string]any `json:"input_data"`
}

// StartJobResponse carries the job ID plus the escrow parameters the payment
// service needs to register the purchase.
type StartJobResponse struct {
	JobID                     string      `json:"job_id"`
	BlockchainIdentifier      string      `json:"blockchainIdentifier"`
	SellerVKey                string      `json:"sellerVKey"`
	SubmitResultTime          json.Number `json:"submitResultTime"`
	UnlockTime                json.Number `json:"unlockTime"`
	ExternalDisputeUnlockTime json.Number `json:"externalDisputeUnlockTime"`
	InputHash                 string      `json:"input_hash"`
	AgentIdentifier           string      `json:"agentIdentifier"`
}

// StartJob starts a job on the agent. The response is checked for the full
// required field set; a 2xx body missing any of them is a DecodeError, since
// the purchase cannot be registered without them.
func (c *Client) StartJob(ctx context.Context, apiBaseURL string, req StartJobRequest) (StartJobResponse, error) {
	const op = "agentic.start_job"
	base, err := normalizeBaseURL(apiBaseURL)
	if err != nil {
		return StartJobResponse{}, fmt.Errorf("%s: %w", op, err)
	}

	var out StartJobResponse
	if err := remote.Do(ctx, c.httpClient, op, remote.Request{
		Method: http.MethodPost,
		URL:    base + "start_job",
		Body:   req,
	}, &out); err != nil {
		return StartJobResponse{}, err
	}

	if missing := out.missingFields(); len(missing) > 0 {
		return StartJobResponse{}, &remote.DecodeError{
			Op:  op,
			Err: fmt.Errorf("start_job response is missing required fields: %s", strings.Join(missing, ", ")),
		}
	}
	return out, nil
}

func (r StartJobResponse) missingFields() []string {
	var missing []string
	if r.JobID == "" {
		missing = append(missing, "job_id")
	}
	if r.BlockchainIdentifier == "" {
		missing = append(missing, "blockchainIdentifier")
	}
	if r.SellerVKey == "" {
		missing = append(missing, "sellerVKey")
	}
	if r.SubmitResultTime == "" {
		missing = append(missing, "submitResultTime")
	}
	if r.UnlockTime == "" {
		missing = append(missing, "unlockTime")
	}
	if r.ExternalDisputeUnlockTime == "" {
		missing = append(missing, "externalDisputeUnlockTime")
	}
	if r.InputHash == "" {
		missing = append(missing, "input_hash")
	}
	if r.AgentIdentifier == "" {
		missing = append(missing, "agentIdentifier")
	}
	return missing
}

// JobState is the raw status payload from GET {base}/status?job_id=.
type JobState struct {
	JobID  string          `json:"job_id"`
	Status types.JobStatus `json:"status"`
	// Result arrives as a JSON string, an object with a "raw" field, or
	// arbitrary JSON. RawOutput normalizes it.
	Result json.RawMessage `json:"result,omitempty"`
}

// HasResult reports whether the agent attached any result payload.
func (s JobState) HasResult() bool {
	if len(s.Result) == 0 {
		return false
	}
	return string(s.Result) != "null"
}

// RawOutput renders the result payload as text: a "raw" field or a plain
// JSON string is returned verbatim, any other JSON is pretty-printed.
func (s JobState) RawOutput() string {
	if !s.HasResult() {
		return ""
	}
	var wrapped struct {
		Raw string `json:"raw"`
	}
	if err := json.Unmarshal(s.Result, &wrapped); err == nil && wrapped.Raw != "" {
		return wrapped.Raw
	}
	var plain string
	if err := json.Unmarshal(s.Result, &plain); err == nil {
		return plain
	}
	var pretty any
	if err := json.Unmarshal(s.Result, &pretty); err == nil {
		if out, err := json.MarshalIndent(pretty, "", "  "); err == nil {
			return string(out)
		}
	}
	return string(s.Result)
}

// Status fetches the current state of a job.
func (c *Client) Status(ctx context.Context, apiBaseURL, jobID string) (JobState, error) {
	const op = "agentic.status"
	base, err := normalizeBaseURL(apiBaseURL)
	if err != nil {
		return JobState{}, fmt.Errorf("%s: %w", op, err)
	}
	if strings.TrimSpace(jobID) == "" {
		return JobState{}, fmt.Errorf("%s: job_id is required", op)
	}

	var out JobState
	if err := remote.Do(ctx, c.httpClient, op, remote.Request{
		Method: http.MethodGet,
		URL:    base + "status",
		Query:  url.Values{"job_id": {jobID}},
	}, &out); err != nil {
		return JobState{}, err
	}
	return out, nil
}

// InputSchema fetches the agent's published input schema as raw JSON.
func (c *Client) InputSchema(ctx context.Context, apiBaseURL string) (json.RawMessage, error) {
	const op = "agentic.input_schema"
	base, err := normalizeBaseURL(apiBaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var out json.RawMessage
	if err := remote.Do(ctx, c.httpClient, op, remote.Request{
		Method: http.MethodGet,
		URL:    base + "input_schema",
	}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Availability probes GET {base}/availability. Any 2xx counts as available.
func (c *Client) Availability(ctx context.Context, apiBaseURL string) error {
	const op = "agentic.availability"
	base, err := normalizeBaseURL(apiBaseURL)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return remote.Do(ctx, c.httpClient, op, remote.Request{
		Method: http.MethodGet,
		URL:    base + "availability",
	}, nil)
}

func normalizeBaseURL(apiBaseURL string) (string, error) {
	trimmed := strings.TrimSpace(apiBaseURL)
	if trimmed == "" {
		return "", fmt.Errorf("api base url is required")
	}
	if !strings.HasSuffix(trimmed, "/") {
		trimmed += "/"
	}
	return trimmed, nil
}
