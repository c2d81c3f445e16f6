package portal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/mce-digital/salesbridge/internal/erp"
	"github.com/mce-digital/salesbridge/internal/invoicerequest"
	"github.com/mce-digital/salesbridge/internal/platform/httpx"
	"github.com/mce-digital/salesbridge/internal/view"
	"github.com/mce-digital/salesbridge/jobs"
)

// ObjectClient is the slice of the ERP client the portal depends on.
type ObjectClient interface {
	EligibleSaleOrders(ctx context.Context, partnerID int64) ([]erp.SaleOrder, error)
	GetSaleOrderSummary(ctx context.Context, id int64) (*erp.SaleOrder, error)
	GetPartner(ctx context.Context, id int64) (*erp.Partner, error)
	GetInvoice(ctx context.Context, id int64) (*erp.Invoice, error)
	RenderInvoicePDF(ctx context.Context, invoiceID int64) ([]byte, error)
}

// RequestService drives the invoice-request lifecycle.
type RequestService interface {
	CreateFromExternal(ctx context.Context, partnerID, saleID int64) (*invoicerequest.InvoiceRequest, error)
	Approve(ctx context.Context, id int64) (*invoicerequest.InvoiceRequest, error)
	TokenForPartner(ctx context.Context, partnerID int64) (string, error)
	GetByToken(ctx context.Context, token string) (*invoicerequest.InvoiceRequest, error)
	HasRequestForInvoice(ctx context.Context, invoiceID int64) (bool, error)
	List(ctx context.Context, limit, offset int) ([]invoicerequest.InvoiceRequest, error)
}

// Notifier enqueues partner notification jobs. A nil Notifier disables them.
type Notifier interface {
	EnqueueSubmissionReceived(ctx context.Context, payload jobs.SubmissionReceivedPayload) error
	EnqueueRequestApproved(ctx context.Context, payload jobs.RequestApprovedPayload) error
}

// Handler serves the public invoice-request surface and the backoffice
// endpoints around it.
type Handler struct {
	logger    *slog.Logger
	requests  RequestService
	client    ObjectClient
	templates *view.Engine
	cache     *Cache
	notifier  Notifier
	validate  *validator.Validate
	eligible  singleflight.Group
}

// NewHandler builds a portal handler.
func NewHandler(logger *slog.Logger, requests RequestService, client ObjectClient, templates *view.Engine, cache *Cache, notifier Notifier) *Handler {
	return &Handler{
		logger:    logger,
		requests:  requests,
		client:    client,
		templates: templates,
		cache:     cache,
		notifier:  notifier,
		validate:  validator.New(),
	}
}

// eligibleOrders resolves the to-invoice orders for a partner (0 means all),
// collapsing concurrent identical lookups and consulting the cache.
func (h *Handler) eligibleOrders(ctx context.Context, partnerID int64) ([]erp.SaleOrder, error) {
	key := eligibleKey(partnerID)
	result, err, _ := h.eligible.Do(key, func() (any, error) {
		return h.cache.FetchOrders(ctx, key, func(ctx context.Context) ([]erp.SaleOrder, error) {
			return h.client.EligibleSaleOrders(ctx, partnerID)
		})
	})
	if err != nil {
		return nil, err
	}
	return result.([]erp.SaleOrder), nil
}

// ListToInvoice renders the backoffice listing of orders awaiting invoicing.
func (h *Handler) ListToInvoice(w http.ResponseWriter, r *http.Request) {
	orders, err := h.eligibleOrders(r.Context(), 0)
	if err != nil {
		h.logger.Error("list to-invoice orders", slog.Any("error", err))
		http.Error(w, "order listing is unavailable", http.StatusBadGateway)
		return
	}

	rows := make([]orderRow, 0, len(orders))
	for _, order := range orders {
		rows = append(rows, orderRow{
			ID:          order.ID,
			Name:        order.Name,
			PartnerName: order.PartnerName,
			DateOrder:   order.DateOrder.Format("02 Jan 2006"),
			Amount:      formatAmount(order.CurrencyCode, order.AmountTotal),
			LineCount:   order.LineCount,
		})
	}

	data := view.TemplateData{
		Title:       "Orders to invoice",
		CurrentPath: r.URL.Path,
		Data:        map[string]any{"Orders": rows},
	}
	if err := h.templates.Render(w, "pages/orders_to_invoice.html", data); err != nil {
		h.logger.Error("render to-invoice listing", slog.Any("error", err))
	}
}

// ExternalForm serves the public invoice-request form. The token path segment
// resumes an existing request; without it the form starts blank.
func (h *Handler) ExternalForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := chi.URLParam(r, "token")

	req, err := h.requests.GetByToken(ctx, token)
	if err != nil {
		h.logger.Error("resolve form token", slog.Any("error", err))
		http.Error(w, "the form is unavailable", http.StatusBadGateway)
		return
	}

	var partnerID int64
	if req != nil {
		partnerID = req.PartnerID
	} else {
		token = ""
		if raw := r.URL.Query().Get("partner_id"); raw != "" {
			partnerID, _ = strconv.ParseInt(raw, 10, 64)
		}
	}

	payload := formPayload{
		Token:             token,
		Partner:           partnerPayload{ID: false},
		PreselectedSaleID: false,
		Invoice:           invoicePayload{ID: false},
	}

	if partnerID > 0 {
		partner, err := h.client.GetPartner(ctx, partnerID)
		if err != nil {
			h.logger.Error("load form partner", slog.Any("error", err))
			http.Error(w, "the form is unavailable", http.StatusBadGateway)
			return
		}
		if partner != nil {
			payload.HasPartner = true
			payload.Partner = partnerPayload{ID: partner.ID, Name: partner.Name, Email: partner.Email, Phone: partner.Phone}
		} else {
			partnerID = 0
		}
	}

	orders, err := h.eligibleOrders(ctx, partnerID)
	if err != nil {
		h.logger.Error("load form orders", slog.Any("error", err))
		http.Error(w, "the form is unavailable", http.StatusBadGateway)
		return
	}
	payload.Sales = make([]salePayload, 0, len(orders))
	for _, order := range orders {
		payload.Sales = append(payload.Sales, salePayload{
			ID:          order.ID,
			Name:        order.Name,
			DateOrder:   order.DateOrder.Format("2006-01-02"),
			AmountTotal: order.AmountTotal,
			Partner:     salePartnerPayload{ID: order.PartnerID, Name: order.PartnerName},
		})
	}

	// The sale_id query argument drives pre-selection; the sale stored on a
	// resumed request is only the fallback.
	var preselected int64
	if raw := r.URL.Query().Get("sale_id"); raw != "" {
		if saleID, err := strconv.ParseInt(raw, 10, 64); err == nil && saleID > 0 {
			preselected = saleID
		}
	}
	if preselected == 0 && req != nil && req.SaleID != nil {
		preselected = *req.SaleID
	}
	if preselected != 0 {
		payload.PreselectedSaleID = preselected
	}
	if req != nil && req.InvoiceID != nil {
		invoice, err := h.client.GetInvoice(ctx, *req.InvoiceID)
		if err != nil {
			h.logger.Warn("load form invoice", slog.Any("error", err))
		} else if invoice != nil {
			payload.Invoice = invoicePayload{ID: invoice.ID, State: invoice.State}
		}
	}

	// html/template serializes the value as JSON inside the state script tag.
	data := view.TemplateData{
		Title:       "Request an invoice",
		CurrentPath: r.URL.Path,
		Data:        map[string]any{"StateJSON": payload},
	}
	if err := h.templates.Render(w, "pages/external_form.html", data); err != nil {
		h.logger.Error("render external form", slog.Any("error", err))
	}
}

// Submit records an invoice request from the public form. The form script
// keys off the body, so outcomes travel as HTTP 200 with either a success or
// an error payload.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var in submitRequest
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.JSON(w, http.StatusOK, submitError{Error: "Invalid sales order"})
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.JSON(w, http.StatusOK, submitError{Error: submitValidationMessage(err)})
		return
	}

	partner, err := h.client.GetPartner(ctx, in.PartnerID)
	if err != nil {
		h.logger.Error("submit partner lookup", slog.Any("error", err))
		httpx.JSON(w, http.StatusOK, submitError{Error: "Service unavailable, please try again later"})
		return
	}
	if partner == nil {
		httpx.JSON(w, http.StatusOK, submitError{Error: "Invalid partner"})
		return
	}

	summary, err := h.client.GetSaleOrderSummary(ctx, in.SaleID)
	if err != nil {
		h.logger.Error("submit order lookup", slog.Any("error", err))
		httpx.JSON(w, http.StatusOK, submitError{Error: "Service unavailable, please try again later"})
		return
	}
	if summary == nil || summary.PartnerID != partner.ID ||
		summary.State != erp.SaleStateSale || summary.InvoiceStatus != erp.InvoiceStatusToInvoice {
		httpx.JSON(w, http.StatusOK, submitError{Error: "Invalid sales order"})
		return
	}

	// The supplied token is echoed back; a blank one is resolved through the
	// partner's get-or-create token, never re-minted per submission.
	token := in.Token
	if token == "" {
		if token, err = h.requests.TokenForPartner(ctx, partner.ID); err != nil {
			h.logger.Error("submit token lookup", slog.Any("error", err))
			httpx.JSON(w, http.StatusOK, submitError{Error: "Service unavailable, please try again later"})
			return
		}
	}

	req, err := h.requests.CreateFromExternal(ctx, partner.ID, summary.ID)
	if err != nil {
		h.logger.Error("submit create request", slog.Any("error", err))
		httpx.JSON(w, http.StatusOK, submitError{Error: "Service unavailable, please try again later"})
		return
	}

	if h.notifier != nil {
		payload := jobs.SubmissionReceivedPayload{
			RequestID:    req.ID,
			PartnerName:  partner.Name,
			PartnerEmail: partner.Email,
			SaleName:     summary.Name,
			Token:        token,
		}
		if err := h.notifier.EnqueueSubmissionReceived(ctx, payload); err != nil {
			h.logger.Warn("enqueue submission notice", slog.Any("error", err))
		}
	}

	httpx.JSON(w, http.StatusOK, submitSuccess{
		Success:   true,
		Message:   "Your invoice request was recorded and is awaiting approval.",
		InvoiceID: optionalID(req.InvoiceID),
		State:     string(req.State),
		Token:     token,
	})
}

// DownloadInvoicePDF streams the rendered invoice document. Only invoices
// that were requested through the portal are reachable here.
func (h *Handler) DownloadInvoicePDF(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	invoiceID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || invoiceID <= 0 {
		h.renderNotFound(w, r, "This invoice does not exist.")
		return
	}

	invoice, err := h.client.GetInvoice(ctx, invoiceID)
	if err != nil {
		h.logger.Error("pdf invoice lookup", slog.Any("error", err))
		http.Error(w, "the invoice is unavailable", http.StatusBadGateway)
		return
	}
	if invoice == nil {
		h.renderNotFound(w, r, "This invoice does not exist.")
		return
	}

	requested, err := h.requests.HasRequestForInvoice(ctx, invoiceID)
	if err != nil {
		h.logger.Error("pdf request lookup", slog.Any("error", err))
		http.Error(w, "the invoice is unavailable", http.StatusBadGateway)
		return
	}
	if !requested {
		h.renderNotFound(w, r, "This invoice does not exist.")
		return
	}

	pdf, err := h.client.RenderInvoicePDF(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, erp.ErrReportNotFound) {
			h.renderNotFound(w, r, "This invoice does not exist.")
			return
		}
		h.logger.Error("render invoice pdf", slog.Any("error", err))
		http.Error(w, "the invoice is unavailable", http.StatusBadGateway)
		return
	}

	filename := strings.ReplaceAll(invoice.Name, "/", "_")
	if filename == "" {
		filename = fmt.Sprintf("invoice-%d", invoiceID)
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename+".pdf"))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	_, _ = w.Write(pdf)
}

// Approve is the backoffice action that generates and posts the invoice for a
// pending request.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Fail(w, http.StatusNotFound, "Request not found")
		return
	}

	req, err := h.requests.Approve(ctx, id)
	switch {
	case errors.Is(err, invoicerequest.ErrNotApprovable):
		httpx.Fail(w, http.StatusBadRequest, "Request is not pending or has no sales order")
		return
	case errors.Is(err, invoicerequest.ErrNothingToInvoice):
		httpx.Fail(w, http.StatusBadRequest, "The sales order has nothing left to invoice")
		return
	case err != nil:
		// An unknown request wraps the not-found sentinel and maps to 404.
		h.logger.Error("approve request", slog.Int64("request_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	h.notifyApproved(ctx, req)
	httpx.OK(w, req)
}

func (h *Handler) notifyApproved(ctx context.Context, req *invoicerequest.InvoiceRequest) {
	if h.notifier == nil || req.InvoiceID == nil {
		return
	}
	payload := jobs.RequestApprovedPayload{
		RequestID: req.ID,
		InvoiceID: *req.InvoiceID,
	}
	if partner, err := h.client.GetPartner(ctx, req.PartnerID); err == nil && partner != nil {
		payload.PartnerName = partner.Name
		payload.PartnerEmail = partner.Email
	}
	if invoice, err := h.client.GetInvoice(ctx, *req.InvoiceID); err == nil && invoice != nil {
		payload.InvoiceName = invoice.Name
	}
	if err := h.notifier.EnqueueRequestApproved(ctx, payload); err != nil {
		h.logger.Warn("enqueue approval notice", slog.Any("error", err))
	}
}

// ListRequests returns the backoffice request listing, newest first.
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			offset = n
		}
	}

	items, err := h.requests.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("list requests", slog.Any("error", err))
		httpx.Fail(w, http.StatusBadRequest, "listing failed")
		return
	}
	httpx.OK(w, items)
}

func (h *Handler) renderNotFound(w http.ResponseWriter, r *http.Request, message string) {
	w.WriteHeader(http.StatusNotFound)
	data := view.TemplateData{
		Title:       "Not found",
		CurrentPath: r.URL.Path,
		Data:        map[string]any{"Message": message},
	}
	if err := h.templates.Render(w, "pages/not_found.html", data); err != nil {
		h.logger.Error("render not found", slog.Any("error", err))
	}
}

// submitValidationMessage picks the form error for the first failed field.
func submitValidationMessage(err error) string {
	var fields validator.ValidationErrors
	if errors.As(err, &fields) {
		for _, field := range fields {
			if field.Field() == "PartnerID" {
				return "Invalid partner"
			}
		}
	}
	return "Invalid sales order"
}

// optionalID mirrors the object layer's convention of false for unset ids.
func optionalID(id *int64) any {
	if id == nil {
		return false
	}
	return *id
}

// formatAmount renders a monetary amount with its currency symbol, falling
// back to a plain number when the code is unknown.
func formatAmount(code string, amount float64) string {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return strconv.FormatFloat(amount, 'f', 2, 64)
	}
	printer := message.NewPrinter(language.English)
	return printer.Sprintf("%v", currency.NarrowSymbol(unit.Amount(amount)))
}
