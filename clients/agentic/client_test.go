package agentic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/masumi-network/masumi-gateway/remote"
	"github.com/masumi-network/masumi-gateway/types"
)

const startJobBody = `{
	"job_id": "job-1",
	"blockchainIdentifier": "chain-abc",
	"sellerVKey": "vkey-1",
	"submitResultTime": 1735000000,
	"unlockTime": "1735003600",
	"externalDisputeUnlockTime": 1735007200,
	"input_hash": "hash-1",
	"agentIdentifier": "agent-1"
}`

func TestStartJob(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/start_job" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var req StartJobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if !strings.HasPrefix(req.IdentifierFromPurchaser, "purchaser_") {
			t.Fatalf("unexpected purchaser identifier: %q", req.IdentifierFromPurchaser)
		}
		if req.InputData["text"] != "hello" {
			t.Fatalf("unexpected input data: %#v", req.InputData)
		}
		_, _ = w.Write([]byte(startJobBody))
	}))
	defer ts.Close()

	client := New(WithHTTPClient(ts.Client()))
	resp, err := client.StartJob(context.Background(), ts.URL, StartJobRequest{
		IdentifierFromPurchaser: "purchaser_abcd1234",
		InputData:               map[string]any{"text": "hello"},
	})
	if err != nil {
		t.Fatalf("StartJob failed: %v", err)
	}
	if resp.JobID != "job-1" || resp.BlockchainIdentifier != "chain-abc" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.SubmitResultTime.String() != "1735000000" {
		t.Fatalf("numeric time not preserved: %q", resp.SubmitResultTime)
	}
	if resp.UnlockTime.String() != "1735003600" {
		t.Fatalf("string time not preserved: %q", resp.UnlockTime)
	}
}

func TestStartJobMissingFieldsIsDecodeError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"job_id":"job-1"}`))
	}))
	defer ts.Close()

	client := New(WithHTTPClient(ts.Client()))
	_, err := client.StartJob(context.Background(), ts.URL, StartJobRequest{
		IdentifierFromPurchaser: "purchaser_x",
		InputData:               map[string]any{"text": "hi"},
	})
	if !remote.IsDecode(err) {
		t.Fatalf("expected DecodeError, got %T: %v", err, err)
	}
	if !strings.Contains(err.Error(), "blockchainIdentifier") {
		t.Fatalf("error should name the missing fields: %v", err)
	}
}

func TestStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("job_id") != "job-1" {
			t.Fatalf("unexpected job_id: %q", r.URL.Query().Get("job_id"))
		}
		_, _ = w.Write([]byte(`{"job_id":"job-1","status":"running"}`))
	}))
	defer ts.Close()

	client := New(WithHTTPClient(ts.Client()))
	state, err := client.Status(context.Background(), ts.URL, "job-1")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if state.Status != types.JobRunning {
		t.Fatalf("unexpected status: %q", state.Status)
	}
	if state.HasResult() {
		t.Fatal("did not expect a result on a running job")
	}
}

func TestStatusRequiresJobID(t *testing.T) {
	client := New()
	if _, err := client.Status(context.Background(), "http://example.com", "  "); err == nil {
		t.Fatal("expected error for empty job id")
	}
}

func TestJobStateRawOutput(t *testing.T) {
	tests := []struct {
		name   string
		result string
		want   string
	}{
		{name: "no result", result: ``, want: ""},
		{name: "null result", result: `null`, want: ""},
		{name: "raw field verbatim", result: `{"raw":"line one\nline two"}`, want: "line one\nline two"},
		{name: "plain string verbatim", result: `"just text"`, want: "just text"},
		{name: "object pretty printed", result: `{"answer":42}`, want: "{\n  \"answer\": 42\n}"},
		{name: "array pretty printed", result: `[1,2]`, want: "[\n  1,\n  2\n]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := JobState{Status: types.JobCompleted}
			if tt.result != "" {
				state.Result = json.RawMessage(tt.result)
			}
			if got := state.RawOutput(); got != tt.want {
				t.Fatalf("RawOutput() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInputSchema(t *testing.T) {
	schema := `{"input_data":[{"id":"text","type":"string"}]}`
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/input_schema" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(schema))
	}))
	defer ts.Close()

	client := New(WithHTTPClient(ts.Client()))
	got, err := client.InputSchema(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("InputSchema failed: %v", err)
	}
	if string(got) != schema {
		t.Fatalf("schema altered in transit: %s", got)
	}
}

func TestAvailability(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/availability" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"status":"available"}`))
	}))
	defer ts.Close()

	client := New(WithHTTPClient(ts.Client()))
	if err := client.Availability(context.Background(), ts.URL); err != nil {
		t.Fatalf("Availability failed: %v", err)
	}
}

func TestAvailabilityDown(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	client := New(WithHTTPClient(ts.Client()))
	err := client.Availability(context.Background(), ts.URL)
	se, ok := remote.AsService(err)
	if !ok {
		t.Fatalf("expected ServiceError, got %T: %v", err, err)
	}
	if se.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status: %d", se.StatusCode)
	}
}

func TestNormalizeBaseURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "http://a.example", want: "http://a.example/"},
		{in: "http://a.example/", want: "http://a.example/"},
		{in: "  http://a.example  ", want: "http://a.example/"},
		{in: "   ", wantErr: true},
	}
	for _, tt := range tests {
		got, err := normalizeBaseURL(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("normalizeBaseURL(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if err == nil && got != tt.want {
			t.Fatalf("normalizeBaseURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
