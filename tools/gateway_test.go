package tools

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/masumi-network/masumi-gateway/clients/agentic"
	"github.com/masumi-network/masumi-gateway/clients/payment"
	"github.com/masumi-network/masumi-gateway/clients/registry"
	"github.com/masumi-network/masumi-gateway/engine"
	"github.com/masumi-network/masumi-gateway/guard"
)

func okHandler(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	})
}

// newGateway wires real clients against the supplied fake backends. A nil
// handler gets a server that rejects every call, which is fine for tools the
// test never invokes.
func newGateway(t *testing.T, agentHandler, registryHandler, paymentHandler http.Handler) (Gateway, *httptest.Server) {
	t.Helper()
	deny := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call: %s %s", r.Method, r.URL.Path)
	})
	if agentHandler == nil {
		agentHandler = deny
	}
	if registryHandler == nil {
		registryHandler = deny
	}
	if paymentHandler == nil {
		paymentHandler = deny
	}

	agentServer := httptest.NewServer(agentHandler)
	t.Cleanup(agentServer.Close)
	registryServer := httptest.NewServer(registryHandler)
	t.Cleanup(registryServer.Close)
	paymentServer := httptest.NewServer(paymentHandler)
	t.Cleanup(paymentServer.Close)

	agentClient := agentic.New()
	registryClient, err := registry.New(registryServer.URL, "tok")
	if err != nil {
		t.Fatalf("registry.New failed: %v", err)
	}
	paymentClient, err := payment.New(paymentServer.URL, "tok")
	if err != nil {
		t.Fatalf("payment.New failed: %v", err)
	}
	eng, err := engine.New(agentClient, paymentClient)
	if err != nil {
		t.Fatalf("engine.New failed: %v", err)
	}
	return Gateway{
		Engine:   eng,
		Registry: registryClient,
		Payments: paymentClient,
		Agents:   agentClient,
	}, agentServer
}

func mustRegistry(t *testing.T, gw Gateway) *Registry {
	t.Helper()
	r, err := NewGatewayRegistry(gw)
	if err != nil {
		t.Fatalf("NewGatewayRegistry failed: %v", err)
	}
	return r
}

func TestNewGatewayRegistryValidatesDependencies(t *testing.T) {
	if _, err := NewGatewayRegistry(Gateway{}); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}

func TestGatewayToolCatalog(t *testing.T) {
	gw, _ := newGateway(t, okHandler("{}"), okHandler("{}"), okHandler("{}"))
	r := mustRegistry(t, gw)

	want := []string{
		"check_agent_availability",
		"check_job_status",
		"get_agent_input_schema",
		"get_agents_by_wallet",
		"get_job_full_result",
		"get_purchase_history",
		"hire_agent",
		"list_agents",
		"query_payments",
		"query_registry",
		"register_agent",
		"unregister_agent",
	}
	got := r.Names()
	if len(got) != len(want) {
		t.Fatalf("tool names = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tool names = %v, want %v", got, want)
		}
	}

	for _, info := range r.Catalog() {
		if info.Description == "" {
			t.Fatalf("tool %q has no description", info.Name)
		}
	}
}

func TestBundleSelection(t *testing.T) {
	gw, _ := newGateway(t, okHandler("{}"), okHandler("{}"), okHandler("{}"))
	r := mustRegistry(t, gw)

	selected, err := r.Select([]string{"@jobs"})
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if len(selected) != 3 {
		t.Fatalf("expected 3 job tools, got %d", len(selected))
	}
	if selected[0].Definition().Name != "hire_agent" {
		t.Fatalf("bundle order not preserved: %q", selected[0].Definition().Name)
	}

	if _, err := r.Select([]string{"@nope"}); err == nil {
		t.Fatal("expected error for unknown bundle")
	}

	all, err := r.Select([]string{"*"})
	if err != nil {
		t.Fatalf("Select(*) failed: %v", err)
	}
	if len(all) != len(r.Names()) {
		t.Fatalf("wildcard selected %d of %d tools", len(all), len(r.Names()))
	}
}

func TestListAgentsTool(t *testing.T) {
	registryHandler := okHandler(`{"status":"success","data":{"entries":[
		{"agentIdentifier":"agent-1","name":"masumi-test-echo","apiBaseUrl":"http://a.example/"},
		{"agentIdentifier":"agent-2","name":"masumi-test-sum","apiBaseUrl":"http://b.example/"}
	]}}`)
	gw, _ := newGateway(t, okHandler("{}"), registryHandler, okHandler("{}"))
	r := mustRegistry(t, gw)

	result, err := r.Execute(context.Background(), "list_agents", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("list_agents failed: %v", err)
	}
	page, ok := result.(map[string]any)
	if !ok {
		t.Fatalf("unexpected result type: %T", result)
	}
	if page["count"] != 2 {
		t.Fatalf("unexpected count: %#v", page["count"])
	}
}

func TestHireAgentTool(t *testing.T) {
	agentMux := http.NewServeMux()
	agentMux.Handle("/input_schema", okHandler(`{"type":"object","required":["text"],"properties":{"text":{"type":"string"}}}`))
	agentMux.Handle("/start_job", okHandler(`{
		"job_id":"job-1","blockchainIdentifier":"chain-abc","sellerVKey":"vkey-1",
		"submitResultTime":"1735000000","unlockTime":"1735003600",
		"externalDisputeUnlockTime":"1735007200","input_hash":"hash-1","agentIdentifier":"agent-1"
	}`))
	paymentHandler := okHandler(`{"status":"success","data":{"id":"pur-1","blockchainIdentifier":"chain-abc"}}`)

	gw, agentServer := newGateway(t, agentMux, okHandler("{}"), paymentHandler)
	r := mustRegistry(t, gw)

	args, _ := json.Marshal(map[string]any{
		"agent_identifier": "agent-1",
		"api_base_url":     agentServer.URL,
		"input_data":       map[string]any{"text": "hello"},
	})
	result, err := r.Execute(context.Background(), "hire_agent", args)
	if err != nil {
		t.Fatalf("hire_agent failed: %v", err)
	}
	out := result.(map[string]any)
	if out["handle"] == nil || out["payment"] == nil {
		t.Fatalf("hire response incomplete: %#v", out)
	}
}

func TestHireAgentToolRejectsBadInput(t *testing.T) {
	agentMux := http.NewServeMux()
	agentMux.Handle("/input_schema", okHandler(`{"type":"object","required":["text"],"properties":{"text":{"type":"string"}}}`))

	gw, agentServer := newGateway(t, agentMux, okHandler("{}"), okHandler("{}"))
	r := mustRegistry(t, gw)

	args, _ := json.Marshal(map[string]any{
		"agent_identifier": "agent-1",
		"api_base_url":     agentServer.URL,
		"input_data":       map[string]any{"wrong": "field"},
	})
	_, err := r.Execute(context.Background(), "hire_agent", args)
	var incomplete *engine.IncompleteInputError
	if !errors.As(err, &incomplete) {
		t.Fatalf("expected IncompleteInputError, got %T: %v", err, err)
	}
	if len(incomplete.Missing) != 1 || incomplete.Missing[0] != "text" {
		t.Fatalf("unexpected missing fields: %v", incomplete.Missing)
	}
}

func TestCheckJobStatusToolHintsAtFullResult(t *testing.T) {
	long := strings.Repeat("x", engine.DefaultPreviewLimit+100)
	agentMux := http.NewServeMux()
	agentMux.Handle("/status", okHandler(`{"job_id":"job-1","status":"completed","result":{"raw":"`+long+`"}}`))
	paymentHandler := okHandler(`{"status":"success","data":{"entries":[
		{"id":"pay-1","blockchainIdentifier":"chain-abc","onChainState":"FundsLocked"}
	]}}`)

	gw, agentServer := newGateway(t, agentMux, okHandler("{}"), paymentHandler)
	r := mustRegistry(t, gw)

	args, _ := json.Marshal(map[string]any{
		"api_base_url": agentServer.URL,
		"job_id":       "job-1",
		"payment_id":   "chain-abc",
	})
	result, err := r.Execute(context.Background(), "check_job_status", args)
	if err != nil {
		t.Fatalf("check_job_status failed: %v", err)
	}
	out := result.(map[string]any)
	hint, _ := out["hint"].(string)
	if !strings.Contains(hint, "get_job_full_result") {
		t.Fatalf("expected a full-result hint, got %#v", out)
	}
}

func TestGetJobFullResultTool(t *testing.T) {
	agentMux := http.NewServeMux()
	agentMux.Handle("/status", okHandler(`{"job_id":"job-1","status":"completed","result":{"raw":"entire output"}}`))

	gw, agentServer := newGateway(t, agentMux, okHandler("{}"), okHandler("{}"))
	r := mustRegistry(t, gw)

	args, _ := json.Marshal(map[string]any{
		"api_base_url": agentServer.URL,
		"job_id":       "job-1",
	})
	result, err := r.Execute(context.Background(), "get_job_full_result", args)
	if err != nil {
		t.Fatalf("get_job_full_result failed: %v", err)
	}
	out := result.(map[string]any)
	if out["result"] != "entire output" {
		t.Fatalf("unexpected result: %#v", out)
	}
}

func TestRegisterAgentToolGuard(t *testing.T) {
	gw, _ := newGateway(t, okHandler("{}"), okHandler("{}"), okHandler("{}"))
	r := mustRegistry(t, gw)

	tests := []struct {
		name string
		args map[string]any
	}{
		{name: "missing test prefix", args: map[string]any{
			"name": "prod-agent", "api_base_url": "https://a.example/", "selling_wallet_vkey": "v",
		}},
		{name: "mainnet", args: map[string]any{
			"name": "masumi-test-a", "api_base_url": "https://a.example/", "selling_wallet_vkey": "v",
			"network": "Mainnet",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, _ := json.Marshal(tt.args)
			if _, err := r.Execute(context.Background(), "register_agent", raw); err == nil {
				t.Fatal("expected guard rejection")
			}
		})
	}
}

func TestUnregisterAgentToolGuard(t *testing.T) {
	gw, _ := newGateway(t, okHandler("{}"), okHandler("{}"), okHandler("{}"))
	r := mustRegistry(t, gw)

	raw, _ := json.Marshal(map[string]any{"agent_identifier": "unprefixed-agent"})
	_, err := r.Execute(context.Background(), "unregister_agent", raw)
	var prefixErr *guard.NamePrefixError
	if !errors.As(err, &prefixErr) {
		t.Fatalf("expected NamePrefixError, got %T: %v", err, err)
	}
}

func TestQueryPaymentsTool(t *testing.T) {
	paymentHandler := okHandler(`{"status":"success","data":{"entries":[
		{"id":"pay-1","blockchainIdentifier":"chain-1","status":"success"}
	]}}`)
	gw, _ := newGateway(t, okHandler("{}"), okHandler("{}"), paymentHandler)
	r := mustRegistry(t, gw)

	result, err := r.Execute(context.Background(), "query_payments", json.RawMessage(`{"limit":5}`))
	if err != nil {
		t.Fatalf("query_payments failed: %v", err)
	}
	out := result.(map[string]any)
	if out["count"] != 1 || out["next_cursor_id"] != "pay-1" {
		t.Fatalf("unexpected page: %#v", out)
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	gw, _ := newGateway(t, okHandler("{}"), okHandler("{}"), okHandler("{}"))
	r := mustRegistry(t, gw)

	if _, err := r.Execute(context.Background(), "no_such_tool", nil); err == nil {
		t.Fatal("expected error for unknown tool")
	}
}
