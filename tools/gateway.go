package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/masumi-network/masumi-gateway/clients/agentic"
	"github.com/masumi-network/masumi-gateway/clients/payment"
	"github.com/masumi-network/masumi-gateway/clients/registry"
	"github.com/masumi-network/masumi-gateway/engine"
	"github.com/masumi-network/masumi-gateway/guard"
	"github.com/masumi-network/masumi-gateway/observe"
)

// Gateway bundles the dependencies the built-in tools close over.
type Gateway struct {
	Engine   *engine.Engine
	Registry *registry.Client
	Payments *payment.Client
	Agents   *agentic.Client
	Sink     observe.Sink
}

// NewGatewayRegistry registers every gateway tool plus the bundle selectors.
func NewGatewayRegistry(gw Gateway) (*Registry, error) {
	if gw.Engine == nil {
		return nil, fmt.Errorf("tools: engine is required")
	}
	if gw.Registry == nil {
		return nil, fmt.Errorf("tools: registry client is required")
	}
	if gw.Payments == nil {
		return nil, fmt.Errorf("tools: payment client is required")
	}
	if gw.Agents == nil {
		return nil, fmt.Errorf("tools: agentic client is required")
	}
	if gw.Sink == nil {
		gw.Sink = observe.NoopSink{}
	}

	r := NewRegistry()
	r.MustRegister(gw.listAgents())
	r.MustRegister(gw.agentInputSchema())
	r.MustRegister(gw.agentAvailability())
	r.MustRegister(gw.queryRegistry())
	r.MustRegister(gw.agentsByWallet())
	r.MustRegister(gw.hireAgent())
	r.MustRegister(gw.jobStatus())
	r.MustRegister(gw.jobFullResult())
	r.MustRegister(gw.registerAgent())
	r.MustRegister(gw.unregisterAgent())
	r.MustRegister(gw.queryPayments())
	r.MustRegister(gw.purchaseHistory())

	r.MustRegisterBundle("discovery", "Find agents and inspect their inputs.",
		[]string{"list_agents", "get_agent_input_schema", "check_agent_availability"})
	r.MustRegisterBundle("jobs", "Hire agents and follow their jobs.",
		[]string{"hire_agent", "check_job_status", "get_job_full_result"})
	r.MustRegisterBundle("registry", "Registry queries and mutations.",
		[]string{"query_registry", "get_agents_by_wallet", "register_agent", "unregister_agent"})
	r.MustRegisterBundle("payments", "Escrow payment lookups.",
		[]string{"query_payments", "get_purchase_history"})
	return r, nil
}

// networkOrDefault fills the allowed test network when the caller omitted
// one. A caller who names a network explicitly still goes through the guard.
func networkOrDefault(network string) string {
	if network == "" {
		return guard.AllowedNetwork
	}
	return network
}

func (gw Gateway) emit(ctx context.Context, kind observe.Kind, name string, started time.Time, err error) {
	event := observe.Event{
		Kind:       kind,
		Status:     observe.StatusCompleted,
		Name:       name,
		DurationMs: time.Since(started).Milliseconds(),
	}
	if err != nil {
		event.Status = observe.StatusFailed
		event.Error = err.Error()
	}
	event.Normalize()
	_ = gw.Sink.Emit(ctx, event)
}

func decodeArgs(args json.RawMessage, v any) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// objectSchema builds the JSON schema for a tool's argument object.
func objectSchema(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func intProp(description string) map[string]any {
	return map[string]any{"type": "integer", "description": description}
}

func boolProp(description string) map[string]any {
	return map[string]any{"type": "boolean", "description": description}
}
