package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/mce-digital/salesbridge/internal/erp"
	"github.com/mce-digital/salesbridge/internal/platform/httpx"
)

// ObjectClient is the slice of the ERP client the facade depends on.
type ObjectClient interface {
	ListSaleOrders(ctx context.Context, q erp.ListQuery) ([]erp.Record, error)
	GetSaleOrder(ctx context.Context, id int64, fields []string) (erp.Record, error)
	CreateSaleOrder(ctx context.Context, values map[string]any) (int64, error)
	UpdateSaleOrder(ctx context.Context, id int64, values map[string]any) (bool, error)
	ConfirmSaleOrder(ctx context.Context, id int64) (bool, error)
	CancelSaleOrder(ctx context.Context, id int64) (bool, error)
	ResetSaleOrderToDraft(ctx context.Context, id int64) (bool, error)
}

// Handler serves the sale-order REST facade.
type Handler struct {
	logger   *slog.Logger
	client   ObjectClient
	validate *validator.Validate
}

// NewHandler constructs the facade handler.
func NewHandler(logger *slog.Logger, client ObjectClient) *Handler {
	return &Handler{
		logger:   logger,
		client:   client,
		validate: validator.New(),
	}
}

type listParams struct {
	Offset int `validate:"gte=0"`
	Limit  int `validate:"gte=0,lte=1000"`
}

// List handles GET /api/sale-orders.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	domain, err := parseDomain(query.Get("domain"))
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, err.Error())
		return
	}
	fields, err := parseFields(query.Get("fields"))
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, err.Error())
		return
	}
	order, err := parseOrder(query.Get("order"))
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, err.Error())
		return
	}

	params := listParams{}
	if raw := query.Get("offset"); raw != "" {
		if params.Offset, err = strconv.Atoi(raw); err != nil {
			httpx.Fail(w, http.StatusBadRequest, "offset must be an integer")
			return
		}
	}
	if raw := query.Get("limit"); raw != "" {
		if params.Limit, err = strconv.Atoi(raw); err != nil {
			httpx.Fail(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
	}
	if err := h.validate.Struct(params); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: offset/limit out of range", httpx.ErrValidation))
		return
	}

	records, err := h.client.ListSaleOrders(r.Context(), erp.ListQuery{
		Domain: domain,
		Fields: fields,
		Offset: params.Offset,
		Limit:  params.Limit,
		Order:  order,
	})
	if err != nil {
		h.remoteError(w, "list sale orders", err)
		return
	}
	if records == nil {
		records = []erp.Record{}
	}
	httpx.OK(w, records)
}

// Show handles GET /api/sale-orders/{id}.
func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}

	fields, err := parseFields(r.URL.Query().Get("fields"))
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, err.Error())
		return
	}

	record, err := h.client.GetSaleOrder(r.Context(), id, fields)
	if err != nil {
		h.remoteError(w, "get sale order", err)
		return
	}
	if record == nil {
		httpx.Fail(w, http.StatusNotFound, "Order not found")
		return
	}
	httpx.OK(w, record)
}

// Create handles POST /api/sale-orders.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	values, ok := h.decodeValues(w, r)
	if !ok {
		return
	}

	id, err := h.client.CreateSaleOrder(r.Context(), values)
	if err != nil {
		h.remoteError(w, "create sale order", err)
		return
	}
	httpx.Created(w, map[string]any{"id": id})
}

// Update handles PUT /api/sale-orders/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	values, ok := h.decodeValues(w, r)
	if !ok {
		return
	}

	updated, err := h.client.UpdateSaleOrder(r.Context(), id, values)
	if err != nil {
		h.remoteError(w, "update sale order", err)
		return
	}
	httpx.OK(w, map[string]any{"updated": updated})
}

// Confirm handles POST /api/sale-orders/{id}/confirm.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "confirmed", h.client.ConfirmSaleOrder)
}

// Cancel handles POST /api/sale-orders/{id}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "cancelled", h.client.CancelSaleOrder)
}

// Draft handles POST /api/sale-orders/{id}/draft.
func (h *Handler) Draft(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "reset_to_draft", h.client.ResetSaleOrderToDraft)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, key string, op func(context.Context, int64) (bool, error)) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	result, err := op(r.Context(), id)
	if err != nil {
		h.remoteError(w, key, err)
		return
	}
	httpx.OK(w, map[string]any{key: result})
}

func (h *Handler) orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Fail(w, http.StatusBadRequest, "Invalid order id")
		return 0, false
	}
	return id, true
}

func (h *Handler) decodeValues(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var values map[string]any
	if err := httpx.DecodeJSON(r, &values); err != nil || len(values) == 0 {
		httpx.Fail(w, http.StatusBadRequest, "No data provided")
		return nil, false
	}
	return values, true
}

// remoteError surfaces any remote fault or connectivity failure through the
// boundary mapping; neither wraps a sentinel, so both land on the contract's
// 400 envelope.
func (h *Handler) remoteError(w http.ResponseWriter, op string, err error) {
	h.logger.Error("remote call failed", slog.String("op", op), slog.Any("error", err))
	httpx.RespondError(w, err)
}
