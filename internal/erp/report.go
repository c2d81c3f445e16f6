package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const invoiceReportRef = "account.report_invoice"

// ErrReportNotFound indicates the report engine has no document for the id.
var ErrReportNotFound = fmt.Errorf("erp: report not found")

// openWebSession logs into the HTTP session endpoint so the report engine
// accepts us. The JSON-RPC user id is not enough there; the cookie jar on the
// shared client keeps the session alive afterwards.
func (c *Client) openWebSession(ctx context.Context) error {
	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"method":  "call",
		"id":      c.reqID.Add(1),
		"params": map[string]any{
			"db":       c.cfg.Database,
			"login":    c.cfg.Username,
			"password": c.cfg.Password,
		},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/web/session/authenticate", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("erp: open web session: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("erp: open web session: %w", err)
	}
	if decoded.Error != nil {
		return &Fault{
			Code:    decoded.Error.Code,
			Name:    decoded.Error.Data.Name,
			Message: decoded.Error.Message,
		}
	}
	return nil
}

// RenderInvoicePDF fetches the rendered invoice document from the ERP's
// report engine. Rendering stays on the remote side; this only streams the
// result.
func (c *Client) RenderInvoicePDF(ctx context.Context, invoiceID int64) ([]byte, error) {
	fetch := func() (*http.Response, error) {
		url := fmt.Sprintf("%s/report/pdf/%s/%d", c.cfg.BaseURL, invoiceReportRef, invoiceID)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		return c.httpClient.Do(req)
	}

	resp, err := fetch()
	if err != nil {
		return nil, fmt.Errorf("erp: fetch report: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		_ = resp.Body.Close()
		if err := c.openWebSession(ctx); err != nil {
			return nil, err
		}
		if resp, err = fetch(); err != nil {
			return nil, fmt.Errorf("erp: fetch report: %w", err)
		}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrReportNotFound
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("erp: report returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
