package payment

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

func TestCreatePurchase(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/purchase/" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("token") != "tok" {
			t.Fatalf("expected token header")
		}
		var req PurchaseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.PaymentType != "Web3CardanoV1" {
			t.Fatalf("payment type not defaulted: %q", req.PaymentType)
		}
		if req.SubmitResultTime != "1735000000" {
			t.Fatalf("unexpected submit result time: %q", req.SubmitResultTime)
		}
		_, _ = w.Write([]byte(`{"status":"success","data":{
			"id":"pur-1",
			"blockchainIdentifier":"chain-abc",
			"NextAction":{"requestedAction":"FundsLockingRequested"},
			"SmartContractWallet":{"walletAddress":"addr_test1xyz"}
		}}`))
	}))
	defer ts.Close()

	client, err := New(ts.URL, "tok", WithHTTPClient(ts.Client()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	record, err := client.CreatePurchase(context.Background(), PurchaseRequest{
		IdentifierFromPurchaser:   "purchaser_x",
		BlockchainIdentifier:      "chain-abc",
		Network:                   "Preprod",
		SellerVkey:                "vkey-1",
		SubmitResultTime:          "1735000000",
		UnlockTime:                "1735003600",
		ExternalDisputeUnlockTime: "1735007200",
		AgentIdentifier:           "agent-1",
		InputHash:                 "hash-1",
	})
	if err != nil {
		t.Fatalf("CreatePurchase failed: %v", err)
	}
	if record.ID != "pur-1" || record.BlockchainIdentifier != "chain-abc" {
		t.Fatalf("unexpected record: %+v", record)
	}
	if record.Status != types.PaymentPending {
		t.Fatalf("new purchase should report pending, got %q", record.Status)
	}
	if record.NextAction != "FundsLockingRequested" || record.EscrowAddress != "addr_test1xyz" {
		t.Fatalf("unexpected record: %+v", record)
	}
}

func TestCreatePurchaseFallsBackToRequestIdentifier(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","data":{"id":"pur-1"}}`))
	}))
	defer ts.Close()

	client, _ := New(ts.URL, "tok", WithHTTPClient(ts.Client()))
	record, err := client.CreatePurchase(context.Background(), PurchaseRequest{
		BlockchainIdentifier: "chain-abc",
	})
	if err != nil {
		t.Fatalf("CreatePurchase failed: %v", err)
	}
	if record.BlockchainIdentifier != "chain-abc" {
		t.Fatalf("missing identifier should fall back to the request value, got %q", record.BlockchainIdentifier)
	}
}

func TestCreatePurchaseRequiresIdentifier(t *testing.T) {
	client, _ := New("http://payment.example", "tok")
	if _, err := client.CreatePurchase(context.Background(), PurchaseRequest{}); err == nil {
		t.Fatal("expected error for missing blockchain identifier")
	}
}

func TestGetPayment(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("blockchainIdentifier") != "chain-abc" || q.Get("network") != "Preprod" {
			t.Fatalf("unexpected query: %v", q)
		}
		_, _ = w.Write([]byte(`{"status":"success","data":{"entries":[
			{"id":"pay-0","blockchainIdentifier":"chain-other","onChainState":"FundsLocked"},
			{"id":"pay-1","blockchainIdentifier":"chain-abc","onChainState":"FundsLocked",
			 "RequestedFunds":[{"amount":"1000000","unit":"lovelace"}]}
		]}}`))
	}))
	defer ts.Close()

	client, _ := New(ts.URL, "tok", WithHTTPClient(ts.Client()))
	record, err := client.GetPayment(context.Background(), "Preprod", "chain-abc")
	if err != nil {
		t.Fatalf("GetPayment failed: %v", err)
	}
	if record.ID != "pay-1" {
		t.Fatalf("should match on blockchain identifier, got %+v", record)
	}
	if record.Status != types.PaymentStatus("FundsLocked") {
		t.Fatalf("on-chain state should back the status, got %q", record.Status)
	}
	if len(record.RequestedFunds) != 1 || record.RequestedFunds[0].Amount != "1000000" {
		t.Fatalf("unexpected funds: %#v", record.RequestedFunds)
	}
}

func TestGetPaymentNoMatch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success","data":{"entries":[]}}`))
	}))
	defer ts.Close()

	client, _ := New(ts.URL, "tok", WithHTTPClient(ts.Client()))
	_, err := client.GetPayment(context.Background(), "Preprod", "chain-missing")
	se, ok := remote.AsService(err)
	if !ok || !se.NotFound() {
		t.Fatalf("expected not-found ServiceError, got %T: %v", err, err)
	}
}

func TestListPayments(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/payment/" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("limit") != "10" {
			t.Fatalf("expected default limit 10, got %q", q.Get("limit"))
		}
		if q.Get("includeHistory") != "false" {
			t.Fatalf("unexpected includeHistory: %q", q.Get("includeHistory"))
		}
		_, _ = w.Write([]byte(`{"status":"success","data":{"entries":[
			{"id":"pay-1","blockchainIdentifier":"chain-1","status":"success"}
		]}}`))
	}))
	defer ts.Close()

	client, _ := New(ts.URL, "tok", WithHTTPClient(ts.Client()))
	records, err := client.ListPayments(context.Background(), types.PageQuery{Network: "Preprod"})
	if err != nil {
		t.Fatalf("ListPayments failed: %v", err)
	}
	if len(records) != 1 || records[0].Status != types.PaymentSuccess {
		t.Fatalf("unexpected records: %#v", records)
	}
}

func TestPurchaseHistory(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/purchase/" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("cursorId") != "cur-3" || q.Get("includeHistory") != "true" {
			t.Fatalf("unexpected query: %v", q)
		}
		_, _ = w.Write([]byte(`{"status":"success","data":{"entries":[]}}`))
	}))
	defer ts.Close()

	client, _ := New(ts.URL, "tok", WithHTTPClient(ts.Client()))
	records, err := client.PurchaseHistory(context.Background(), types.PageQuery{
		Network:        "Preprod",
		CursorID:       "cur-3",
		IncludeHistory: true,
	})
	if err != nil {
		t.Fatalf("PurchaseHistory failed: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}

func TestPageLimitValidation(t *testing.T) {
	client, _ := New("http://payment.example", "tok")
	for _, limit := range []int{-1, 101} {
		_, err := client.ListPayments(context.Background(), types.PageQuery{Network: "Preprod", Limit: limit})
		if err == nil || !strings.Contains(err.Error(), "between 1 and 100") {
			t.Fatalf("limit %d: expected range error, got %v", limit, err)
		}
	}
}

func TestListFilterTooLong(t *testing.T) {
	client, _ := New("http://payment.example", "tok")
	_, err := client.ListPayments(context.Background(), types.PageQuery{
		Network:              "Preprod",
		SmartContractAddress: strings.Repeat("a", 251),
	})
	if err == nil || !strings.Contains(err.Error(), "too long") {
		t.Fatalf("expected filter length error, got %v", err)
	}
}
