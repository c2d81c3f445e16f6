// Package erp is the typed client for the ERP's remote-procedure object
// layer. Every operation this system needs is an explicit method; no model or
// method names cross the package boundary.
package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"sync/atomic"
	"time"
)

// Config carries the connection settings for the object layer.
type Config struct {
	BaseURL  string
	Database string
	Username string
	Password string
	Timeout  time.Duration
}

// Fault is a remote-procedure fault raised by the object layer. The remote
// side reports a message string, never a structured code.
type Fault struct {
	Code    int
	Name    string
	Message string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("erp: %s", f.Message)
}

// AccessDenied reports whether the fault indicates a stale or rejected
// credential, the one case the client re-authenticates on.
func (f *Fault) AccessDenied() bool {
	return f.Name == "odoo.exceptions.AccessDenied"
}

// Client talks JSON-RPC to the object layer. The authenticated user id is
// established once and shared by all requests; the only mutation afterwards
// is the single re-authentication allowed by the reconnect policy.
type Client struct {
	cfg        Config
	httpClient *http.Client

	mu  sync.Mutex
	uid int64

	reqID atomic.Int64
}

// NewClient constructs a client. Authenticate must be called before use.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	// The report download path needs the web session cookie.
	jar, _ := cookiejar.New(nil)
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
	}
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      int64     `json:"id"`
}

type rpcParams struct {
	Service string `json:"service"`
	Method  string `json:"method"`
	Args    []any  `json:"args"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"data"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, service, method string, args []any) (json.RawMessage, error) {
	payload := rpcRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params:  rpcParams{Service: service, Method: method, Args: args},
		ID:      c.reqID.Add(1),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("erp: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/jsonrpc", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("erp: call %s.%s: %w", service, method, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("erp: call %s.%s: status %d", service, method, resp.StatusCode)
	}

	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("erp: decode response: %w", err)
	}
	if decoded.Error != nil {
		message := decoded.Error.Data.Message
		if message == "" {
			message = decoded.Error.Message
		}
		return nil, &Fault{
			Code:    decoded.Error.Code,
			Name:    decoded.Error.Data.Name,
			Message: message,
		}
	}
	return decoded.Result, nil
}

// Authenticate establishes the shared user id. Called once at startup; a
// failure there is fatal to the process.
func (c *Client) Authenticate(ctx context.Context) error {
	raw, err := c.call(ctx, "common", "authenticate", []any{
		c.cfg.Database, c.cfg.Username, c.cfg.Password, map[string]any{},
	})
	if err != nil {
		return fmt.Errorf("erp: authenticate: %w", err)
	}

	var uid int64
	if err := json.Unmarshal(raw, &uid); err != nil || uid == 0 {
		// The object layer answers false, not a fault, on bad credentials.
		return fmt.Errorf("erp: authentication failed for %q on %q", c.cfg.Username, c.cfg.Database)
	}

	c.mu.Lock()
	c.uid = uid
	c.mu.Unlock()
	return nil
}

func (c *Client) userID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uid
}

func (c *Client) executeOnce(ctx context.Context, model, method string, args []any, kwargs map[string]any) (json.RawMessage, error) {
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	return c.call(ctx, "object", "execute_kw", []any{
		c.cfg.Database, c.userID(), c.cfg.Password, model, method, args, kwargs,
	})
}

// execute runs one method on one model. Reconnect policy: an access-denied
// fault triggers a single re-authentication and one retry, nothing else.
func (c *Client) execute(ctx context.Context, model, method string, args []any, kwargs map[string]any) (json.RawMessage, error) {
	raw, err := c.executeOnce(ctx, model, method, args, kwargs)
	var fault *Fault
	if errors.As(err, &fault) && fault.AccessDenied() {
		if authErr := c.Authenticate(ctx); authErr != nil {
			return nil, err
		}
		return c.executeOnce(ctx, model, method, args, kwargs)
	}
	return raw, err
}

func (c *Client) executeInto(ctx context.Context, model, method string, args []any, kwargs map[string]any, out any) error {
	raw, err := c.execute(ctx, model, method, args, kwargs)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("erp: decode %s.%s result: %w", model, method, err)
	}
	return nil
}

// ListSaleOrders runs a generic sale-order listing with caller-selected
// fields, paging and ordering. The domain arrives already validated.
func (c *Client) ListSaleOrders(ctx context.Context, q ListQuery) ([]Record, error) {
	fields := q.Fields
	if len(fields) == 0 {
		fields = DefaultSaleOrderFields
	}
	kwargs := map[string]any{
		"fields": fields,
		"offset": q.Offset,
	}
	if q.Limit > 0 {
		kwargs["limit"] = q.Limit
	}
	if q.Order != "" {
		kwargs["order"] = q.Order
	}

	var records []Record
	if err := c.executeInto(ctx, "sale.order", "search_read", []any{q.Domain.Wire()}, kwargs, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// GetSaleOrder reads one sale order, nil when absent.
func (c *Client) GetSaleOrder(ctx context.Context, id int64, fields []string) (Record, error) {
	if len(fields) == 0 {
		fields = append(append([]string{}, DefaultSaleOrderFields...), "order_line")
	}
	records, err := c.ListSaleOrders(ctx, ListQuery{
		Domain: Domain{Eq("id", id)},
		Fields: fields,
		Limit:  1,
	})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// CreateSaleOrder creates a sale order from raw values and returns its id.
func (c *Client) CreateSaleOrder(ctx context.Context, values map[string]any) (int64, error) {
	var id int64
	if err := c.executeInto(ctx, "sale.order", "create", []any{values}, nil, &id); err != nil {
		return 0, err
	}
	return id, nil
}

// UpdateSaleOrder writes raw values onto a sale order.
func (c *Client) UpdateSaleOrder(ctx context.Context, id int64, values map[string]any) (bool, error) {
	var ok bool
	if err := c.executeInto(ctx, "sale.order", "write", []any{[]int64{id}, values}, nil, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (c *Client) workflow(ctx context.Context, method string, id int64) (bool, error) {
	raw, err := c.execute(ctx, "sale.order", method, []any{[]int64{id}}, nil)
	if err != nil {
		return false, err
	}
	// Workflow transitions answer true, or an action dict, or nothing.
	var ok bool
	if err := json.Unmarshal(raw, &ok); err == nil {
		return ok, nil
	}
	return true, nil
}

// ConfirmSaleOrder runs the confirm workflow transition.
func (c *Client) ConfirmSaleOrder(ctx context.Context, id int64) (bool, error) {
	return c.workflow(ctx, "action_confirm", id)
}

// CancelSaleOrder runs the cancel workflow transition.
func (c *Client) CancelSaleOrder(ctx context.Context, id int64) (bool, error) {
	return c.workflow(ctx, "action_cancel", id)
}

// ResetSaleOrderToDraft moves a sale order back to draft.
func (c *Client) ResetSaleOrderToDraft(ctx context.Context, id int64) (bool, error) {
	return c.workflow(ctx, "action_draft", id)
}

var eligibleFields = []string{"name", "partner_id", "date_order", "amount_total", "state", "invoice_status", "currency_id", "order_line"}

// EligibleSaleOrders lists orders open for invoice requests: confirmed sales
// with uninvoiced quantity. partnerID 0 lists across all partners.
func (c *Client) EligibleSaleOrders(ctx context.Context, partnerID int64) ([]SaleOrder, error) {
	domain := Domain{
		Eq("state", SaleStateSale),
		Eq("invoice_status", InvoiceStatusToInvoice),
	}
	if partnerID != 0 {
		domain = append(domain, Eq("partner_id", partnerID))
	}
	records, err := c.ListSaleOrders(ctx, ListQuery{Domain: domain, Fields: eligibleFields, Order: "date_order desc"})
	if err != nil {
		return nil, err
	}
	orders := make([]SaleOrder, 0, len(records))
	for _, r := range records {
		orders = append(orders, saleOrderFromRecord(r))
	}
	return orders, nil
}

// GetSaleOrderSummary reads one order in the typed shape, nil when absent.
// Submission re-validates eligibility through this.
func (c *Client) GetSaleOrderSummary(ctx context.Context, id int64) (*SaleOrder, error) {
	record, err := c.GetSaleOrder(ctx, id, eligibleFields)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}
	order := saleOrderFromRecord(record)
	return &order, nil
}

// GetPartner reads one partner, nil when absent.
func (c *Client) GetPartner(ctx context.Context, id int64) (*Partner, error) {
	var records []Record
	err := c.executeInto(ctx, "res.partner", "search_read",
		[]any{Domain{Eq("id", id)}.Wire()},
		map[string]any{"fields": []string{"name", "email", "phone"}, "limit": 1},
		&records)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	r := records[0]
	return &Partner{
		ID:    r.Int("id"),
		Name:  r.Str("name"),
		Email: r.Str("email"),
		Phone: r.Str("phone"),
	}, nil
}

// GetInvoice reads one customer invoice, nil when absent.
func (c *Client) GetInvoice(ctx context.Context, id int64) (*Invoice, error) {
	var records []Record
	err := c.executeInto(ctx, "account.move", "search_read",
		[]any{Domain{Eq("id", id)}.Wire()},
		map[string]any{"fields": []string{"name", "state", "amount_total"}, "limit": 1},
		&records)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	r := records[0]
	return &Invoice{
		ID:          r.Int("id"),
		Name:        r.Str("name"),
		State:       r.Str("state"),
		AmountTotal: r.Float("amount_total"),
	}, nil
}

// CreateInvoicesFromSale invoices the deliverable quantity of a sale order
// through the advance-payment wizard, the only invoicing path the object
// layer exposes remotely. Returns the newest invoice id, 0 when the run
// produced nothing.
func (c *Client) CreateInvoicesFromSale(ctx context.Context, saleID int64) (int64, error) {
	wizardCtx := map[string]any{
		"active_model": "sale.order",
		"active_ids":   []int64{saleID},
		"active_id":    saleID,
	}

	var wizardID int64
	err := c.executeInto(ctx, "sale.advance.payment.inv", "create",
		[]any{map[string]any{"advance_payment_method": "delivered"}},
		map[string]any{"context": wizardCtx},
		&wizardID)
	if err != nil {
		return 0, err
	}

	if _, err := c.execute(ctx, "sale.advance.payment.inv", "create_invoices",
		[]any{[]int64{wizardID}},
		map[string]any{"context": wizardCtx}); err != nil {
		return 0, err
	}

	record, err := c.GetSaleOrder(ctx, saleID, []string{"invoice_ids"})
	if err != nil {
		return 0, err
	}
	if record == nil {
		return 0, nil
	}
	ids := record.IDs("invoice_ids")
	if len(ids) == 0 {
		return 0, nil
	}
	return ids[len(ids)-1], nil
}

// PostInvoice posts a draft invoice.
func (c *Client) PostInvoice(ctx context.Context, invoiceID int64) error {
	_, err := c.execute(ctx, "account.move", "action_post", []any{[]int64{invoiceID}}, nil)
	return err
}
