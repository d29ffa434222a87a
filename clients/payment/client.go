// Package payment is the client for the Masumi Payment Service.
package payment

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/masumi-network/masumi-gateway/remote"
	"github.com/masumi-network/masumi-gateway/types"
)

const (
	purchasePath = "api/v1/purchase/"
	paymentPath  = "api/v1/payment/"

	// Web3CardanoV1 is the only payment type the escrow contract speaks.
	paymentType = "Web3CardanoV1"

	defaultPageLimit = 10
	maxPageLimit     = 100
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
		return nil, fmt.Errorf("payment base url is required")
	}
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("payment token is required")
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

type envelope[T any] struct {
	Status string `json:"status"`
	Data   T      `json:"data"`
}

func (e envelope[T]) check(op string) error {
	if e.Status != "success" {
		return &remote.ServiceError{
			Op:         op,
			StatusCode: http.StatusOK,
			Message:    fmt.Sprintf("payment service did not return success status: %q", e.Status),
		}
	}
	return nil
}

// PurchaseRequest registers an escrow purchase for a started job. All of the
// timing and identity fields originate from the agent's start_job response.
type PurchaseRequest struct {
	IdentifierFromPurchaser   string `json:"identifierFromPurchaser"`
	BlockchainIdentifier      string `json:"blockchainIdentifier"`
	Network                   string `json:"network"`
	SellerVkey                string `json:"sellerVkey"`
	PaymentType               string `json:"paymentType"`
	SubmitResultTime          string `json:"submitResultTime"`
	UnlockTime                string `json:"unlockTime"`
	ExternalDisputeUnlockTime string `json:"externalDisputeUnlockTime"`
	AgentIdentifier           string `json:"agentIdentifier"`
	InputHash                 string `json:"inputHash"`
}

type purchaseData struct {
	ID                   string `json:"id"`
	BlockchainIdentifier string `json:"blockchainIdentifier"`
	NextAction           struct {
		RequestedAction string `json:"requestedAction"`
	} `json:"NextAction"`
	SmartContractWallet struct {
		WalletAddress string `json:"walletAddress"`
	} `json:"SmartContractWallet"`
}

// CreatePurchase registers the escrow payment and returns the resulting
// record. The record's blockchain identifier always matches the request.
func (c *Client) CreatePurchase(ctx context.Context, req PurchaseRequest) (types.PaymentRecord, error) {
	const op = "payment.create_purchase"
	if req.BlockchainIdentifier == "" {
		return types.PaymentRecord{}, fmt.Errorf("%s: blockchain identifier is required", op)
	}
	if req.PaymentType == "" {
		req.PaymentType = paymentType
	}

	var out envelope[purchaseData]
	if err := remote.Do(ctx, c.httpClient, op, remote.Request{
		Method:  http.MethodPost,
		URL:     c.baseURL + "/" + purchasePath,
		Headers: c.headers(),
		Body:    req,
	}, &out); err != nil {
		return types.PaymentRecord{}, err
	}
	if err := out.check(op); err != nil {
		return types.PaymentRecord{}, err
	}

	record := types.PaymentRecord{
		ID:                   out.Data.ID,
		BlockchainIdentifier: out.Data.BlockchainIdentifier,
		Status:               types.PaymentPending,
		NextAction:           out.Data.NextAction.RequestedAction,
		EscrowAddress:        out.Data.SmartContractWallet.WalletAddress,
	}
	if record.BlockchainIdentifier == "" {
		record.BlockchainIdentifier = req.BlockchainIdentifier
	}
	return record, nil
}

type paymentEntry struct {
	ID                   string        `json:"id"`
	BlockchainIdentifier string        `json:"blockchainIdentifier"`
	Status               string        `json:"status"`
	OnChainState         string        `json:"onChainState"`
	CreatedAt            *time.Time    `json:"createdAt"`
	RequestedFunds       []types.Funds `json:"RequestedFunds"`
	NextAction           struct {
		RequestedAction string `json:"requestedAction"`
	} `json:"NextAction"`
	SmartContractWallet struct {
		WalletAddress string `json:"walletAddress"`
	} `json:"SmartContractWallet"`
}

func (p paymentEntry) record() types.PaymentRecord {
	status := p.Status
	if status == "" {
		status = p.OnChainState
	}
	return types.PaymentRecord{
		ID:                   p.ID,
		BlockchainIdentifier: p.BlockchainIdentifier,
		Status:               types.PaymentStatus(status),
		RequestedFunds:       p.RequestedFunds,
		EscrowAddress:        p.SmartContractWallet.WalletAddress,
		NextAction:           p.NextAction.RequestedAction,
		CreatedAt:            p.CreatedAt,
	}
}

type pageData struct {
	Entries []paymentEntry `json:"entries"`
}

// GetPayment looks up the escrow record for one blockchain identifier. The
// status field is surfaced verbatim; the gateway never interprets it.
func (c *Client) GetPayment(ctx context.Context, network, blockchainIdentifier string) (types.PaymentRecord, error) {
	const op = "payment.get_payment"
	blockchainIdentifier = strings.TrimSpace(blockchainIdentifier)
	if blockchainIdentifier == "" {
		return types.PaymentRecord{}, fmt.Errorf("%s: blockchain identifier is required", op)
	}

	var out envelope[pageData]
	if err := remote.Do(ctx, c.httpClient, op, remote.Request{
		Method: http.MethodGet,
		URL:    c.baseURL + "/" + paymentPath,
		Query: url.Values{
			"network":              {network},
			"blockchainIdentifier": {blockchainIdentifier},
			"limit":                {"1"},
		},
		Headers: c.headers(),
	}, &out); err != nil {
		return types.PaymentRecord{}, err
	}
	if err := out.check(op); err != nil {
		return types.PaymentRecord{}, err
	}
	for _, entry := range out.Data.Entries {
		if entry.BlockchainIdentifier == blockchainIdentifier {
			return entry.record(), nil
		}
	}
	if len(out.Data.Entries) > 0 {
		return out.Data.Entries[0].record(), nil
	}
	return types.PaymentRecord{}, &remote.ServiceError{
		Op:         op,
		StatusCode: http.StatusNotFound,
		Message:    fmt.Sprintf("no payment found for blockchain identifier %s", shorten(blockchainIdentifier)),
	}
}

// ListPayments pages through payment requests on the service.
func (c *Client) ListPayments(ctx context.Context, query types.PageQuery) ([]types.PaymentRecord, error) {
	return c.listRecords(ctx, "payment.list_payments", paymentPath, query)
}

// PurchaseHistory pages through this wallet's purchase requests.
func (c *Client) PurchaseHistory(ctx context.Context, query types.PageQuery) ([]types.PaymentRecord, error) {
	return c.listRecords(ctx, "payment.purchase_history", purchasePath, query)
}

func (c *Client) listRecords(ctx context.Context, op, path string, query types.PageQuery) ([]types.PaymentRecord, error) {
	limit, err := pageLimit(query.Limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(query.SmartContractAddress) > maxFilterLength {
		return nil, fmt.Errorf("%s: smart contract address too long (max %d chars), got %d",
			op, maxFilterLength, len(query.SmartContractAddress))
	}

	params := url.Values{
		"network":        {query.Network},
		"limit":          {strconv.Itoa(limit)},
		"includeHistory": {strconv.FormatBool(query.IncludeHistory)},
	}
	if query.CursorID != "" {
		params.Set("cursorId", query.CursorID)
	}
	if query.SmartContractAddress != "" {
		params.Set("smartContractAddress", query.SmartContractAddress)
	}

	var out envelope[pageData]
	if err := remote.Do(ctx, c.httpClient, op, remote.Request{
		Method:  http.MethodGet,
		URL:     c.baseURL + "/" + path,
		Query:   params,
		Headers: c.headers(),
	}, &out); err != nil {
		return nil, err
	}
	if err := out.check(op); err != nil {
		return nil, err
	}

	records := make([]types.PaymentRecord, 0, len(out.Data.Entries))
	for _, entry := range out.Data.Entries {
		records = append(records, entry.record())
	}
	return records, nil
}

func (c *Client) headers() map[string]string {
	return map[string]string{"token": c.token}
}

func pageLimit(limit int) (int, error) {
	if limit == 0 {
		return defaultPageLimit, nil
	}
	if limit < 1 || limit > maxPageLimit {
		return 0, fmt.Errorf("limit must be between 1 and %d, got %d", maxPageLimit, limit)
	}
	return limit, nil
}

func shorten(s string) string {
	if len(s) <= 20 {
		return s
	}
	return s[:20] + "..."
}
