package types

import (
	"encoding/json"
	"time"
)

// JobStatus is the status an agent reports for a job it is running.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether no further progress is possible for the job.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// PaymentStatus values mirror the payment service's escrow lifecycle.
// The gateway surfaces these verbatim; transitions happen remotely.
type PaymentStatus string

const (
	PaymentPending         PaymentStatus = "pending"
	PaymentFundsLocked     PaymentStatus = "funds_locked"
	PaymentSuccess         PaymentStatus = "success"
	PaymentRefundRequested PaymentStatus = "refund_requested"
	PaymentRefunded        PaymentStatus = "refunded"
	PaymentDisputed        PaymentStatus = "disputed"
)

// JobHandle identifies one hire-agent interaction. It is immutable once both
// IDs are assigned and is the only credential needed for later polling.
// Uniqueness comes from the pair (apiBaseUrl, jobId); jobId alone is not
// globally unique across agents.
type JobHandle struct {
	AgentIdentifier string `json:"agentIdentifier"`
	APIBaseURL      string `json:"apiBaseUrl"`
	JobID           string `json:"jobId"`
	// PaymentID is the blockchain identifier correlating the job to its
	// escrow record on the payment service.
	PaymentID string `json:"paymentId"`
}

// PaymentRecord mirrors payment service state for one blockchain identifier.
// It is read-through only; the gateway never writes payment state.
type PaymentRecord struct {
	ID                   string        `json:"id,omitempty"`
	BlockchainIdentifier string        `json:"blockchainIdentifier"`
	Status               PaymentStatus `json:"status"`
	RequestedFunds       []Funds       `json:"requestedFunds,omitempty"`
	EscrowAddress        string        `json:"escrowAddress,omitempty"`
	NextAction           string        `json:"nextAction,omitempty"`
	CreatedAt            *time.Time    `json:"createdAt,omitempty"`
}

// Funds is one amount/unit pair on a payment record. Informational only.
type Funds struct {
	Amount string `json:"amount"`
	Unit   string `json:"unit,omitempty"`
}

// JobResult holds the outcome of a job once it reached a terminal state.
type JobResult struct {
	Status JobStatus `json:"status"`
	// RawOutput is byte-for-byte what the agent returned.
	RawOutput string `json:"rawOutput"`
	// Preview is a bounded-length strict prefix of RawOutput, computed once.
	Preview   string     `json:"preview,omitempty"`
	FetchedAt *time.Time `json:"fetchedAt,omitempty"`
}

// StatusSummary combines the job side and the payment side of one handle.
// Each side is independently nil when its remote read failed, so a caller
// still sees whichever side succeeded.
type StatusSummary struct {
	Handle       JobHandle      `json:"handle"`
	Job          *JobStatus     `json:"job,omitempty"`
	JobError     string         `json:"jobError,omitempty"`
	Payment      *PaymentRecord `json:"payment,omitempty"`
	PaymentError string         `json:"paymentError,omitempty"`
	// Preview carries the bounded result prefix for terminal jobs. When the
	// output exceeded the preview limit, FullResultAvailable signals that the
	// untruncated payload can be fetched separately.
	Preview             string `json:"preview,omitempty"`
	ResultChars         int    `json:"resultChars,omitempty"`
	FullResultAvailable bool   `json:"fullResultAvailable,omitempty"`
}

// AgentEntry is one agent advertised in the registry.
type AgentEntry struct {
	AgentIdentifier string       `json:"agentIdentifier"`
	Name            string       `json:"name"`
	APIBaseURL      string       `json:"apiBaseUrl"`
	Description     string       `json:"description,omitempty"`
	Capability      Capability   `json:"Capability"`
	Pricing         AgentPricing `json:"AgentPricing"`
	Tags            []string     `json:"Tags,omitempty"`
	Status          string       `json:"status,omitempty"`
}

type Capability struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

type AgentPricing struct {
	BasePrice json.Number `json:"basePrice,omitempty"`
	Currency  string      `json:"currency,omitempty"`
}

// Registration is the payload for registering a new agent.
type Registration struct {
	Network           string       `json:"network"`
	Name              string       `json:"name"`
	APIBaseURL        string       `json:"apiBaseUrl"`
	SellingWalletVkey string       `json:"sellingWalletVkey"`
	Tags              []string     `json:"Tags"`
	Capability        Capability   `json:"Capability"`
	Pricing           AgentPricing `json:"AgentPricing"`
	Description       string       `json:"description,omitempty"`
	Author            string       `json:"author,omitempty"`
	LegalInfo         string       `json:"legalInfo,omitempty"`
}

// PageQuery is shared cursor pagination for registry and payment listings.
type PageQuery struct {
	Network              string `json:"network"`
	Limit                int    `json:"limit,omitempty"`
	CursorID             string `json:"cursorId,omitempty"`
	SmartContractAddress string `json:"smartContractAddress,omitempty"`
	IncludeHistory       bool   `json:"includeHistory,omitempty"`
}
