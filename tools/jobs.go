package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/masumi-network/masumi-gateway/engine"
	"github.com/masumi-network/masumi-gateway/types"
)

// handleArgs is the argument shape shared by the job-side tools: the full
// handle as returned by hire_agent.
type handleArgs struct {
	AgentIdentifier string `json:"agent_identifier"`
	APIBaseURL      string `json:"api_base_url"`
	JobID           string `json:"job_id"`
	PaymentID       string `json:"payment_id"`
}

func (a handleArgs) handle() (types.JobHandle, error) {
	if a.APIBaseURL == "" {
		return types.JobHandle{}, fmt.Errorf("api_base_url is required")
	}
	if a.JobID == "" {
		return types.JobHandle{}, fmt.Errorf("job_id is required")
	}
	return types.JobHandle{
		AgentIdentifier: a.AgentIdentifier,
		APIBaseURL:      a.APIBaseURL,
		JobID:           a.JobID,
		PaymentID:       a.PaymentID,
	}, nil
}

func (gw Gateway) hireAgent() Tool {
	return NewFuncTool(
		"hire_agent",
		"Start a job on an agent and register the matching escrow purchase. Returns the handle needed for all later status checks.",
		objectSchema(map[string]any{
			"agent_identifier": stringProp("The agent's identifier from its registry entry."),
			"api_base_url":     stringProp("The agent's API base URL from its registry entry."),
			"input_data":       map[string]any{"type": "object", "description": "Job input matching the agent's input schema."},
			"network":          stringProp("Network for the purchase. Defaults to the test network."),
		}, "agent_identifier", "api_base_url", "input_data"),
		func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				AgentIdentifier string         `json:"agent_identifier"`
				APIBaseURL      string         `json:"api_base_url"`
				InputData       map[string]any `json:"input_data"`
				Network         string         `json:"network"`
			}
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}

			// The schema fetch is best effort: a schema lets bad input fail
			// before anything is committed, but an agent that does not serve
			// one should still be hireable.
			var schema json.RawMessage
			if in.APIBaseURL != "" {
				schema, _ = gw.Engine.FetchInputSchema(ctx, in.APIBaseURL)
			}

			receipt, err := gw.Engine.Hire(ctx, engine.HireRequest{
				AgentIdentifier: in.AgentIdentifier,
				APIBaseURL:      in.APIBaseURL,
				Network:         networkOrDefault(in.Network),
				InputData:       in.InputData,
				InputSchema:     schema,
			})
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"handle":  receipt.Handle,
				"payment": receipt.Payment,
				"message": "Job started and escrow purchase registered. Use check_job_status with this handle to follow progress.",
			}, nil
		},
	)
}

func (gw Gateway) jobStatus() Tool {
	return NewFuncTool(
		"check_job_status",
		"Check both the job's execution status on the agent and its escrow payment status. Safe to call repeatedly.",
		objectSchema(map[string]any{
			"agent_identifier": stringProp("The agent's identifier."),
			"api_base_url":     stringProp("The agent's API base URL."),
			"job_id":           stringProp("Job ID from hire_agent."),
			"payment_id":       stringProp("Payment blockchain identifier from hire_agent."),
		}, "api_base_url", "job_id", "payment_id"),
		func(ctx context.Context, args json.RawMessage) (any, error) {
			var in handleArgs
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}
			handle, err := in.handle()
			if err != nil {
				return nil, err
			}
			summary, err := gw.Engine.PollStatus(ctx, handle)
			if err != nil {
				return nil, err
			}
			out := map[string]any{"summary": summary}
			if summary.FullResultAvailable {
				out["hint"] = fmt.Sprintf(
					"The result preview is truncated (%d chars total). Call get_job_full_result for the complete output.",
					summary.ResultChars)
			}
			return out, nil
		},
	)
}

func (gw Gateway) jobFullResult() Tool {
	return NewFuncTool(
		"get_job_full_result",
		"Retrieve the complete, untruncated output of a finished job.",
		objectSchema(map[string]any{
			"agent_identifier": stringProp("The agent's identifier."),
			"api_base_url":     stringProp("The agent's API base URL."),
			"job_id":           stringProp("Job ID from hire_agent."),
			"payment_id":       stringProp("Payment blockchain identifier from hire_agent."),
		}, "api_base_url", "job_id"),
		func(ctx context.Context, args json.RawMessage) (any, error) {
			var in handleArgs
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}
			handle, err := in.handle()
			if err != nil {
				return nil, err
			}
			result, err := gw.Engine.FullResult(ctx, handle)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"status": result.Status,
				"chars":  len(result.RawOutput),
				"result": result.RawOutput,
			}, nil
		},
	)
}
