// Package registry is the client for the Masumi Registry Service.
package registry

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/masumi-network/masumi-gateway/remote"
	"github.com/masumi-network/masumi-gateway/types"
)

const (
	entryPath  = "api/v1/registry-entry/"
	walletPath = "api/v1/registry/wallet/"

	defaultListLimit = 50
	maxFilterLength  = 250
)

type Client struct {
	baseURL    string
	token      string
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

func New(baseURL, token string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("registry base url is required")
	}
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("registry token is required")
	}
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:      strings.TrimSpace(token),
		httpClient: &http.Client{Timeout: remote.DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// The registry wraps every payload in {"status": ..., "data": ...}.
type envelope[T any] struct {
	Status string `json:"status"`
	Data   T      `json:"data"`
}

func (e envelope[T]) check(op string) error {
	if e.Status != "success" {
		return &remote.ServiceError{
			Op:         op,
			StatusCode: http.StatusOK,
			Message:    fmt.Sprintf("registry did not return success status: %q", e.Status),
		}
	}
	return nil
}

type entriesData struct {
	Entries []types.AgentEntry `json:"entries"`
}

// ListAgents fetches up to limit agents registered on the given network.
// A limit <= 0 falls back to the default of 50.
func (c *Client) ListAgents(ctx context.Context, network string, limit int) ([]types.AgentEntry, error) {
	const op = "registry.list_agents"
	if limit <= 0 {
		limit = defaultListLimit
	}

	var out envelope[entriesData]
	if err := remote.Do(ctx, c.httpClient, op, remote.Request{
		Method:  http.MethodPost,
		URL:     c.baseURL + "/" + entryPath,
		Headers: c.headers(),
		Body:    map[string]any{"limit": limit, "network": network},
	}, &out); err != nil {
		return nil, err
	}
	if err := out.check(op); err != nil {
		return nil, err
	}
	return out.Data.Entries, nil
}

// QueryEntries pages through raw registry entries.
func (c *Client) QueryEntries(ctx context.Context, query types.PageQuery) ([]types.AgentEntry, error) {
	const op = "registry.query_entries"
	if err := validateFilter(query.SmartContractAddress); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	params := url.Values{"network": {query.Network}}
	if query.CursorID != "" {
		params.Set("cursorId", query.CursorID)
	}
	if query.SmartContractAddress != "" {
		params.Set("smartContractAddress", query.SmartContractAddress)
	}

	var out envelope[entriesData]
	if err := remote.Do(ctx, c.httpClient, op, remote.Request{
		Method:  http.MethodGet,
		URL:     c.baseURL + "/" + entryPath,
		Query:   params,
		Headers: c.headers(),
	}, &out); err != nil {
		return nil, err
	}
	if err := out.check(op); err != nil {
		return nil, err
	}
	return out.Data.Entries, nil
}

// Register submits a new agent entry. Callers are expected to have run the
// safety guard first; the client only does shape validation.
func (c *Client) Register(ctx context.Context, reg types.Registration) (map[string]any, error) {
	const op = "registry.register"
	reg.Name = strings.TrimSpace(reg.Name)
	reg.APIBaseURL = strings.TrimSpace(reg.APIBaseURL)
	reg.SellingWalletVkey = strings.TrimSpace(reg.SellingWalletVkey)
	reg.Capability.Name = strings.TrimSpace(reg.Capability.Name)
	reg.Capability.Version = strings.TrimSpace(reg.Capability.Version)
	reg.Description = strings.TrimSpace(reg.Description)
	reg.Author = strings.TrimSpace(reg.Author)
	reg.LegalInfo = strings.TrimSpace(reg.LegalInfo)

	if reg.Name == "" {
		return nil, fmt.Errorf("%s: agent name cannot be empty", op)
	}
	if !strings.HasPrefix(reg.APIBaseURL, "http://") && !strings.HasPrefix(reg.APIBaseURL, "https://") {
		return nil, fmt.Errorf("%s: api base url must start with http:// or https://", op)
	}
	if reg.SellingWalletVkey == "" {
		return nil, fmt.Errorf("%s: selling wallet vkey cannot be empty", op)
	}
	if price := string(reg.Pricing.BasePrice); strings.HasPrefix(price, "-") {
		return nil, fmt.Errorf("%s: base price must be non-negative, got %s", op, price)
	}
	if reg.Tags == nil {
		reg.Tags = []string{}
	}
	if reg.Pricing.Currency == "" {
		reg.Pricing.Currency = "ADA"
	}

	var out envelope[map[string]any]
	if err := remote.Do(ctx, c.httpClient, op, remote.Request{
		Method:  http.MethodPost,
		URL:     c.baseURL + "/" + entryPath,
		Headers: c.headers(),
		Body:    reg,
	}, &out); err != nil {
		return nil, err
	}
	if err := out.check(op); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// Unregister removes an agent entry by identifier.
func (c *Client) Unregister(ctx context.Context, agentIdentifier, network, smartContractAddress string) (map[string]any, error) {
	const op = "registry.unregister"
	agentIdentifier = strings.TrimSpace(agentIdentifier)
	if agentIdentifier == "" {
		return nil, fmt.Errorf("%s: agent identifier cannot be empty", op)
	}

	body := map[string]any{
		"agentIdentifier": agentIdentifier,
		"network":         network,
	}
	if addr := strings.TrimSpace(smartContractAddress); addr != "" {
		body["smartContractAddress"] = addr
	}

	var out envelope[map[string]any]
	if err := remote.Do(ctx, c.httpClient, op, remote.Request{
		Method:  http.MethodDelete,
		URL:     c.baseURL + "/" + entryPath,
		Headers: c.headers(),
		Body:    body,
	}, &out); err != nil {
		return nil, err
	}
	if err := out.check(op); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// AgentsByWallet lists the agents registered for a selling wallet vkey.
// A remote 404 means no agents for that wallet and yields an empty slice.
func (c *Client) AgentsByWallet(ctx context.Context, network, walletVkey string) ([]types.AgentEntry, error) {
	const op = "registry.agents_by_wallet"
	walletVkey = strings.TrimSpace(walletVkey)
	if walletVkey == "" {
		return nil, fmt.Errorf("%s: wallet vkey cannot be empty", op)
	}

	var out envelope[struct {
		Agents []types.AgentEntry `json:"agents"`
	}]
	err := remote.Do(ctx, c.httpClient, op, remote.Request{
		Method:  http.MethodGet,
		URL:     c.baseURL + "/" + walletPath,
		Query:   url.Values{"network": {network}, "walletVkey": {walletVkey}},
		Headers: c.headers(),
	}, &out)
	if err != nil {
		if se, ok := remote.AsService(err); ok && se.NotFound() {
			return []types.AgentEntry{}, nil
		}
		return nil, err
	}
	if err := out.check(op); err != nil {
		return nil, err
	}
	return out.Data.Agents, nil
}

func (c *Client) headers() map[string]string {
	return map[string]string{"token": c.token}
}

func validateFilter(smartContractAddress string) error {
	if len(smartContractAddress) > maxFilterLength {
		return fmt.Errorf("smart contract address too long (max %d chars), got %d",
			maxFilterLength, len(smartContractAddress))
	}
	return nil
}
