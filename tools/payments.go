package tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/masumi-network/masumi-gateway/observe"
	"github.com/masumi-network/masumi-gateway/types"
)

type pageArgs struct {
	Network              string `json:"network"`
	Limit                int    `json:"limit"`
	CursorID             string `json:"cursor_id"`
	SmartContractAddress string `json:"smart_contract_address"`
	IncludeHistory       bool   `json:"include_history"`
}

func (a pageArgs) query() types.PageQuery {
	return types.PageQuery{
		Network:              networkOrDefault(a.Network),
		Limit:                a.Limit,
		CursorID:             a.CursorID,
		SmartContractAddress: a.SmartContractAddress,
		IncludeHistory:       a.IncludeHistory,
	}
}

var pageArgsSchema = map[string]any{
	"network":                stringProp("Network to query. Defaults to the test network."),
	"limit":                  intProp("Entries per page (1-100, default 10)."),
	"cursor_id":              stringProp("Cursor from a previous page."),
	"smart_contract_address": stringProp("Filter by smart contract address (max 250 chars)."),
	"include_history":        boolProp("Include records in terminal states."),
}

func (gw Gateway) queryPayments() Tool {
	return NewFuncTool(
		"query_payments",
		"Page through payment requests on the payment service, with their escrow statuses.",
		objectSchema(pageArgsSchema),
		func(ctx context.Context, args json.RawMessage) (any, error) {
			var in pageArgs
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}
			started := time.Now()
			records, err := gw.Payments.ListPayments(ctx, in.query())
			gw.emit(ctx, observe.KindPayment, "query_payments", started, err)
			if err != nil {
				return nil, err
			}
			return paymentPage(records), nil
		},
	)
}

func (gw Gateway) purchaseHistory() Tool {
	return NewFuncTool(
		"get_purchase_history",
		"Page through this wallet's purchase requests on the payment service.",
		objectSchema(pageArgsSchema),
		func(ctx context.Context, args json.RawMessage) (any, error) {
			var in pageArgs
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}
			started := time.Now()
			records, err := gw.Payments.PurchaseHistory(ctx, in.query())
			gw.emit(ctx, observe.KindPayment, "get_purchase_history", started, err)
			if err != nil {
				return nil, err
			}
			return paymentPage(records), nil
		},
	)
}

func paymentPage(records []types.PaymentRecord) map[string]any {
	out := map[string]any{
		"count":   len(records),
		"records": records,
	}
	if len(records) > 0 {
		out["next_cursor_id"] = records[len(records)-1].ID
	}
	return out
}
