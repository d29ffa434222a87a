package tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/masumi-network/masumi-gateway/observe"
	"github.com/masumi-network/masumi-gateway/types"
)

func (gw Gateway) listAgents() Tool {
	return NewFuncTool(
		"list_agents",
		"List agents available on the registry with their identifiers, API URLs, capabilities, and pricing.",
		objectSchema(map[string]any{
			"network": stringProp("Network to query. Defaults to the test network."),
			"limit":   intProp("Maximum entries to return (1-100)."),
		}),
		func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Network string `json:"network"`
				Limit   int    `json:"limit"`
			}
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}
			started := time.Now()
			entries, err := gw.Registry.ListAgents(ctx, networkOrDefault(in.Network), in.Limit)
			gw.emit(ctx, observe.KindRegistry, "list_agents", started, err)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"count":  len(entries),
				"agents": entries,
			}, nil
		},
	)
}

func (gw Gateway) agentInputSchema() Tool {
	return NewFuncTool(
		"get_agent_input_schema",
		"Fetch the JSON input schema an agent requires for its jobs.",
		objectSchema(map[string]any{
			"api_base_url": stringProp("The agent's API base URL from its registry entry."),
		}, "api_base_url"),
		func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				APIBaseURL string `json:"api_base_url"`
			}
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}
			started := time.Now()
			schema, err := gw.Engine.FetchInputSchema(ctx, in.APIBaseURL)
			gw.emit(ctx, observe.KindRegistry, "get_agent_input_schema", started, err)
			if err != nil {
				return nil, err
			}
			return schema, nil
		},
	)
}

func (gw Gateway) agentAvailability() Tool {
	return NewFuncTool(
		"check_agent_availability",
		"Probe whether an agent's API is up and accepting jobs.",
		objectSchema(map[string]any{
			"api_base_url": stringProp("The agent's API base URL from its registry entry."),
		}, "api_base_url"),
		func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				APIBaseURL string `json:"api_base_url"`
			}
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}
			started := time.Now()
			err := gw.Agents.Availability(ctx, in.APIBaseURL)
			gw.emit(ctx, observe.KindRegistry, "check_agent_availability", started, err)
			if err != nil {
				return map[string]any{
					"available": false,
					"error":     err.Error(),
				}, nil
			}
			return map[string]any{"available": true}, nil
		},
	)
}

func (gw Gateway) queryRegistry() Tool {
	return NewFuncTool(
		"query_registry",
		"Page through registry entries with cursor pagination and an optional smart contract address filter.",
		objectSchema(map[string]any{
			"network":                stringProp("Network to query. Defaults to the test network."),
			"limit":                  intProp("Entries per page (1-100, default 10)."),
			"cursor_id":              stringProp("Cursor from a previous page."),
			"smart_contract_address": stringProp("Filter by smart contract address (max 250 chars)."),
		}),
		func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Network              string `json:"network"`
				Limit                int    `json:"limit"`
				CursorID             string `json:"cursor_id"`
				SmartContractAddress string `json:"smart_contract_address"`
			}
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}
			started := time.Now()
			entries, err := gw.Registry.QueryEntries(ctx, types.PageQuery{
				Network:              networkOrDefault(in.Network),
				Limit:                in.Limit,
				CursorID:             in.CursorID,
				SmartContractAddress: in.SmartContractAddress,
			})
			gw.emit(ctx, observe.KindRegistry, "query_registry", started, err)
			if err != nil {
				return nil, err
			}
			out := map[string]any{
				"count":   len(entries),
				"entries": entries,
			}
			if len(entries) > 0 {
				out["next_cursor_id"] = entries[len(entries)-1].AgentIdentifier
			}
			return out, nil
		},
	)
}

func (gw Gateway) agentsByWallet() Tool {
	return NewFuncTool(
		"get_agents_by_wallet",
		"List the agents registered by one selling wallet. An unknown wallet returns an empty list.",
		objectSchema(map[string]any{
			"wallet_vkey": stringProp("The selling wallet's verification key."),
			"network":     stringProp("Network to query. Defaults to the test network."),
		}, "wallet_vkey"),
		func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				WalletVkey string `json:"wallet_vkey"`
				Network    string `json:"network"`
			}
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}
			started := time.Now()
			entries, err := gw.Registry.AgentsByWallet(ctx, networkOrDefault(in.Network), in.WalletVkey)
			gw.emit(ctx, observe.KindRegistry, "get_agents_by_wallet", started, err)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"count":  len(entries),
				"agents": entries,
			}, nil
		},
	)
}
