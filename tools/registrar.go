package tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/masumi-network/masumi-gateway/guard"
	"github.com/masumi-network/masumi-gateway/observe"
	"github.com/masumi-network/masumi-gateway/types"
)

func (gw Gateway) registerAgent() Tool {
	return NewFuncTool(
		"register_agent",
		"Register a new agent on the registry. Test network only; the agent name must carry the test prefix.",
		objectSchema(map[string]any{
			"name":                stringProp("Agent name. Must start with the test prefix."),
			"api_base_url":        stringProp("Base URL where the agent serves its API."),
			"selling_wallet_vkey": stringProp("Verification key of the selling wallet."),
			"network":             stringProp("Network to register on. Defaults to the test network."),
			"description":         stringProp("Human-readable description."),
			"author":              stringProp("Author or organization name."),
			"legal_info":          stringProp("Legal or terms URL."),
			"capability_name":     stringProp("Primary capability name."),
			"capability_version":  stringProp("Capability version."),
			"base_price":          stringProp("Base price per job, in the pricing unit."),
			"currency":            stringProp("Pricing currency. Defaults to ADA."),
			"tags":                map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Searchable tags."},
		}, "name", "api_base_url", "selling_wallet_vkey"),
		func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Name              string   `json:"name"`
				APIBaseURL        string   `json:"api_base_url"`
				SellingWalletVkey string   `json:"selling_wallet_vkey"`
				Network           string   `json:"network"`
				Description       string   `json:"description"`
				Author            string   `json:"author"`
				LegalInfo         string   `json:"legal_info"`
				CapabilityName    string   `json:"capability_name"`
				CapabilityVersion string   `json:"capability_version"`
				BasePrice         string   `json:"base_price"`
				Currency          string   `json:"currency"`
				Tags              []string `json:"tags"`
			}
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}
			network := networkOrDefault(in.Network)
			if err := guard.Mutation(network, in.Name); err != nil {
				return nil, err
			}

			started := time.Now()
			out, err := gw.Registry.Register(ctx, types.Registration{
				Network:           network,
				Name:              in.Name,
				APIBaseURL:        in.APIBaseURL,
				SellingWalletVkey: in.SellingWalletVkey,
				Tags:              in.Tags,
				Capability: types.Capability{
					Name:    in.CapabilityName,
					Version: in.CapabilityVersion,
				},
				Pricing: types.AgentPricing{
					BasePrice: json.Number(in.BasePrice),
					Currency:  in.Currency,
				},
				Description: in.Description,
				Author:      in.Author,
				LegalInfo:   in.LegalInfo,
			})
			gw.emit(ctx, observe.KindRegistry, "register_agent", started, err)
			if err != nil {
				return nil, err
			}
			return out, nil
		},
	)
}

func (gw Gateway) unregisterAgent() Tool {
	return NewFuncTool(
		"unregister_agent",
		"Remove an agent from the registry. Test network only; the identifier must carry the test prefix.",
		objectSchema(map[string]any{
			"agent_identifier":       stringProp("Identifier of the agent to remove. Must start with the test prefix."),
			"network":                stringProp("Network the agent is registered on. Defaults to the test network."),
			"smart_contract_address": stringProp("Registry smart contract address, when the deployment uses more than one."),
		}, "agent_identifier"),
		func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				AgentIdentifier      string `json:"agent_identifier"`
				Network              string `json:"network"`
				SmartContractAddress string `json:"smart_contract_address"`
			}
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}
			network := networkOrDefault(in.Network)
			if err := guard.Mutation(network, in.AgentIdentifier); err != nil {
				return nil, err
			}

			started := time.Now()
			out, err := gw.Registry.Unregister(ctx, in.AgentIdentifier, network, in.SmartContractAddress)
			gw.emit(ctx, observe.KindRegistry, "unregister_agent", started, err)
			if err != nil {
				return nil, err
			}
			return out, nil
		},
	)
}
