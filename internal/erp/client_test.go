package erp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcCall struct {
	Service string
	Method  string
	Args    []any
}

// fakeObjectLayer answers JSON-RPC calls with scripted results and records
// everything it saw.
type fakeObjectLayer struct {
	t       *testing.T
	calls   []rpcCall
	handler func(call rpcCall) (any, *rpcError)
}

func (f *fakeObjectLayer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Params struct {
			Service string `json:"service"`
			Method  string `json:"method"`
			Args    []any  `json:"args"`
		} `json:"params"`
		ID int64 `json:"id"`
	}
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))

	call := rpcCall{Service: req.Params.Service, Method: req.Params.Method, Args: req.Params.Args}
	f.calls = append(f.calls, call)

	result, fault := f.handler(call)
	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if fault != nil {
		resp["error"] = map[string]any{
			"code":    fault.Code,
			"message": fault.Message,
			"data":    map[string]any{"name": fault.Data.Name, "message": fault.Data.Message},
		}
	} else {
		resp["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func newTestClient(t *testing.T, handler func(call rpcCall) (any, *rpcError)) (*Client, *fakeObjectLayer) {
	t.Helper()
	fake := &fakeObjectLayer{t: t, handler: handler}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)
	client := NewClient(Config{
		BaseURL:  server.URL,
		Database: "bridge-test",
		Username: "svc",
		Password: "secret",
		Timeout:  5 * time.Second,
	})
	return client, fake
}

func executeKwModelMethod(call rpcCall) (model, method string) {
	if len(call.Args) < 5 {
		return "", ""
	}
	model, _ = call.Args[3].(string)
	method, _ = call.Args[4].(string)
	return model, method
}

func TestAuthenticate(t *testing.T) {
	client, fake := newTestClient(t, func(call rpcCall) (any, *rpcError) {
		return 7, nil
	})

	require.NoError(t, client.Authenticate(context.Background()))
	require.Len(t, fake.calls, 1)
	assert.Equal(t, "common", fake.calls[0].Service)
	assert.Equal(t, "authenticate", fake.calls[0].Method)
	assert.Equal(t, int64(7), client.userID())
}

func TestAuthenticateRejected(t *testing.T) {
	// Bad credentials come back as a bare false, not a fault.
	client, _ := newTestClient(t, func(call rpcCall) (any, *rpcError) {
		return false, nil
	})

	err := client.Authenticate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authentication failed")
}

func TestListSaleOrdersSerializesDomain(t *testing.T) {
	var seen rpcCall
	client, _ := newTestClient(t, func(call rpcCall) (any, *rpcError) {
		if call.Method == "authenticate" {
			return 2, nil
		}
		seen = call
		return []map[string]any{
			{"id": 55, "name": "S00055", "partner_id": []any{12, "Azure Interior"}, "amount_total": 320.5, "state": "sale"},
		}, nil
	})
	require.NoError(t, client.Authenticate(context.Background()))

	records, err := client.ListSaleOrders(context.Background(), ListQuery{
		Domain: Domain{Eq("state", "sale"), {Field: "amount_total", Op: ">", Value: 100}},
		Offset: 5,
		Limit:  10,
		Order:  "date_order desc",
	})
	require.NoError(t, err)
	require.Len(t, records, 1)

	model, method := executeKwModelMethod(seen)
	assert.Equal(t, "sale.order", model)
	assert.Equal(t, "search_read", method)

	// Positional args carry the domain as triple lists.
	positional, ok := seen.Args[5].([]any)
	require.True(t, ok)
	domain, ok := positional[0].([]any)
	require.True(t, ok)
	require.Len(t, domain, 2)
	first, ok := domain[0].([]any)
	require.True(t, ok)
	assert.Equal(t, []any{"state", "=", "sale"}, first)

	kwargs, ok := seen.Args[6].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(5), kwargs["offset"])
	assert.Equal(t, float64(10), kwargs["limit"])
	assert.Equal(t, "date_order desc", kwargs["order"])
	assert.Equal(t, []any{"name", "partner_id", "date_order", "amount_total", "state"}, kwargs["fields"])

	partnerID, partnerName := records[0].Ref("partner_id")
	assert.Equal(t, int64(12), partnerID)
	assert.Equal(t, "Azure Interior", partnerName)
	assert.Equal(t, int64(55), records[0].Int("id"))
}

func TestGetSaleOrderAbsent(t *testing.T) {
	client, _ := newTestClient(t, func(call rpcCall) (any, *rpcError) {
		if call.Method == "authenticate" {
			return 2, nil
		}
		return []map[string]any{}, nil
	})
	require.NoError(t, client.Authenticate(context.Background()))

	record, err := client.GetSaleOrder(context.Background(), 999999, nil)
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestFaultSurfacesRemoteMessage(t *testing.T) {
	client, _ := newTestClient(t, func(call rpcCall) (any, *rpcError) {
		if call.Method == "authenticate" {
			return 2, nil
		}
		fault := &rpcError{Code: 200, Message: "Odoo Server Error"}
		fault.Data.Name = "odoo.exceptions.ValidationError"
		fault.Data.Message = "You cannot confirm a cancelled order."
		return nil, fault
	})
	require.NoError(t, client.Authenticate(context.Background()))

	_, err := client.ConfirmSaleOrder(context.Background(), 9)
	require.Error(t, err)

	var fault *Fault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, "You cannot confirm a cancelled order.", fault.Message)
	assert.False(t, fault.AccessDenied())
}

func TestReconnectOnAccessDenied(t *testing.T) {
	denied := true
	client, fake := newTestClient(t, func(call rpcCall) (any, *rpcError) {
		if call.Method == "authenticate" {
			return 3, nil
		}
		if denied {
			denied = false
			fault := &rpcError{Code: 100, Message: "Access Denied"}
			fault.Data.Name = "odoo.exceptions.AccessDenied"
			return nil, fault
		}
		return true, nil
	})
	require.NoError(t, client.Authenticate(context.Background()))

	ok, err := client.UpdateSaleOrder(context.Background(), 5, map[string]any{"note": "x"})
	require.NoError(t, err)
	assert.True(t, ok)

	// authenticate, failed write, re-authenticate, retried write
	require.Len(t, fake.calls, 4)
	assert.Equal(t, "authenticate", fake.calls[2].Method)
}

func TestEligibleSaleOrders(t *testing.T) {
	var seen rpcCall
	client, _ := newTestClient(t, func(call rpcCall) (any, *rpcError) {
		if call.Method == "authenticate" {
			return 2, nil
		}
		seen = call
		return []map[string]any{
			{
				"id":             55,
				"name":           "S00055",
				"partner_id":     []any{12, "Azure Interior"},
				"date_order":     "2026-08-20 10:30:00",
				"amount_total":   1280.0,
				"state":          "sale",
				"invoice_status": "to invoice",
				"currency_id":    []any{1, "USD"},
				"order_line":     []any{101, 102, 103},
			},
		}, nil
	})
	require.NoError(t, client.Authenticate(context.Background()))

	orders, err := client.EligibleSaleOrders(context.Background(), 12)
	require.NoError(t, err)
	require.Len(t, orders, 1)

	order := orders[0]
	assert.Equal(t, int64(55), order.ID)
	assert.Equal(t, "Azure Interior", order.PartnerName)
	assert.Equal(t, "USD", order.CurrencyCode)
	assert.Equal(t, 3, order.LineCount)
	assert.Equal(t, time.Date(2026, 8, 20, 10, 30, 0, 0, time.UTC), order.DateOrder)

	positional := seen.Args[5].([]any)
	domain := positional[0].([]any)
	require.Len(t, domain, 3)
	last := domain[2].([]any)
	assert.Equal(t, []any{"partner_id", "=", float64(12)}, last)
}

func TestCreateInvoicesFromSale(t *testing.T) {
	client, fake := newTestClient(t, func(call rpcCall) (any, *rpcError) {
		if call.Method == "authenticate" {
			return 2, nil
		}
		model, method := executeKwModelMethod(call)
		switch {
		case model == "sale.advance.payment.inv" && method == "create":
			return 901, nil
		case model == "sale.advance.payment.inv" && method == "create_invoices":
			return true, nil
		case model == "sale.order" && method == "search_read":
			return []map[string]any{{"id": 55, "invoice_ids": []any{71, 72}}}, nil
		}
		return nil, &rpcError{Code: 200, Message: "unexpected call"}
	})
	require.NoError(t, client.Authenticate(context.Background()))

	invoiceID, err := client.CreateInvoicesFromSale(context.Background(), 55)
	require.NoError(t, err)
	assert.Equal(t, int64(72), invoiceID)
	require.Len(t, fake.calls, 4)
}

func TestCreateInvoicesFromSaleNothingToInvoice(t *testing.T) {
	client, _ := newTestClient(t, func(call rpcCall) (any, *rpcError) {
		if call.Method == "authenticate" {
			return 2, nil
		}
		model, method := executeKwModelMethod(call)
		switch {
		case model == "sale.advance.payment.inv" && method == "create":
			return 901, nil
		case model == "sale.advance.payment.inv" && method == "create_invoices":
			return true, nil
		case model == "sale.order" && method == "search_read":
			return []map[string]any{{"id": 55, "invoice_ids": []any{}}}, nil
		}
		return nil, &rpcError{Code: 200, Message: "unexpected call"}
	})
	require.NoError(t, client.Authenticate(context.Background()))

	invoiceID, err := client.CreateInvoicesFromSale(context.Background(), 55)
	require.NoError(t, err)
	assert.Zero(t, invoiceID)
}

func TestRecordHelpersOnUnsetFields(t *testing.T) {
	r := Record{"email": false, "partner_id": false, "date_order": false}
	assert.Equal(t, "", r.Str("email"))
	id, name := r.Ref("partner_id")
	assert.Zero(t, id)
	assert.Empty(t, name)
	assert.True(t, r.Time("date_order").IsZero())
	assert.Nil(t, r.IDs("invoice_ids"))
}
