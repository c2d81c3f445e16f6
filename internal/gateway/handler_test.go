package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mce-digital/salesbridge/internal/erp"
)

type fakeObjectClient struct {
	orders    map[int64]erp.Record
	nextID    int64
	listQuery erp.ListQuery
	listErr   error
	remoteErr error
	confirmed []int64
	cancelled []int64
	reset     []int64
}

func newFakeObjectClient() *fakeObjectClient {
	return &fakeObjectClient{orders: make(map[int64]erp.Record), nextID: 1}
}

func (f *fakeObjectClient) ListSaleOrders(ctx context.Context, q erp.ListQuery) ([]erp.Record, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.listQuery = q
	var out []erp.Record
	for _, r := range f.orders {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeObjectClient) GetSaleOrder(ctx context.Context, id int64, fields []string) (erp.Record, error) {
	if f.remoteErr != nil {
		return nil, f.remoteErr
	}
	record, ok := f.orders[id]
	if !ok {
		return nil, nil
	}
	return record, nil
}

func (f *fakeObjectClient) CreateSaleOrder(ctx context.Context, values map[string]any) (int64, error) {
	if f.remoteErr != nil {
		return 0, f.remoteErr
	}
	id := f.nextID
	f.nextID++
	record := erp.Record{"id": id}
	for k, v := range values {
		record[k] = v
	}
	f.orders[id] = record
	return id, nil
}

func (f *fakeObjectClient) UpdateSaleOrder(ctx context.Context, id int64, values map[string]any) (bool, error) {
	if f.remoteErr != nil {
		return false, f.remoteErr
	}
	record, ok := f.orders[id]
	if !ok {
		return false, &erp.Fault{Message: "Record does not exist or has been deleted."}
	}
	for k, v := range values {
		record[k] = v
	}
	return true, nil
}

func (f *fakeObjectClient) ConfirmSaleOrder(ctx context.Context, id int64) (bool, error) {
	if f.remoteErr != nil {
		return false, f.remoteErr
	}
	f.confirmed = append(f.confirmed, id)
	return true, nil
}

func (f *fakeObjectClient) CancelSaleOrder(ctx context.Context, id int64) (bool, error) {
	f.cancelled = append(f.cancelled, id)
	return true, nil
}

func (f *fakeObjectClient) ResetSaleOrderToDraft(ctx context.Context, id int64) (bool, error) {
	f.reset = append(f.reset, id)
	return true, nil
}

func newTestRouter(client ObjectClient) http.Handler {
	handler := NewHandler(slog.New(slog.DiscardHandler), client)
	r := chi.NewRouter()
	r.Route("/api", handler.MountRoutes)
	return r
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func doJSON(t *testing.T, router http.Handler, method, target string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func TestCreateThenRead(t *testing.T) {
	client := newFakeObjectClient()
	router := newTestRouter(client)

	rec, env := doJSON(t, router, http.MethodPost, "/api/sale-orders", map[string]any{"partner_id": 7})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.True(t, env.Success)

	var created struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.NotZero(t, created.ID)

	// The returned id is immediately readable.
	rec, env = doJSON(t, router, http.MethodGet, "/api/sale-orders/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)
}

func TestCreateRejectsEmptyBody(t *testing.T) {
	router := newTestRouter(newFakeObjectClient())

	req := httptest.NewRequest(http.MethodPost, "/api/sale-orders", bytes.NewReader(nil))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "No data provided")

	rec, env := doJSON(t, router, http.MethodPost, "/api/sale-orders", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No data provided", env.Error)
}

func TestShowNotFound(t *testing.T) {
	router := newTestRouter(newFakeObjectClient())

	rec, env := doJSON(t, router, http.MethodGet, "/api/sale-orders/999999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "Order not found", env.Error)
}

func TestListPassesValidatedQuery(t *testing.T) {
	client := newFakeObjectClient()
	router := newTestRouter(client)

	target := "/api/sale-orders?domain=" +
		`[["state","=","sale"]]` +
		"&fields=name,state&offset=5&limit=20&order=date_order+desc"
	rec, env := doJSON(t, router, http.MethodGet, target, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, env.Success)

	assert.Equal(t, erp.Domain{erp.Eq("state", "sale")}, client.listQuery.Domain)
	assert.Equal(t, []string{"name", "state"}, client.listQuery.Fields)
	assert.Equal(t, 5, client.listQuery.Offset)
	assert.Equal(t, 20, client.listQuery.Limit)
	assert.Equal(t, "date_order desc", client.listQuery.Order)
}

func TestListRejectsMalformedDomain(t *testing.T) {
	client := newFakeObjectClient()
	router := newTestRouter(client)

	rec, env := doJSON(t, router, http.MethodGet, "/api/sale-orders?domain=__import__('os')", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
	// Nothing reached the remote layer.
	assert.Empty(t, client.listQuery.Domain)
}

func TestListRejectsOutOfRangePaging(t *testing.T) {
	router := newTestRouter(newFakeObjectClient())

	rec, env := doJSON(t, router, http.MethodGet, "/api/sale-orders?limit=100000", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Error, "offset/limit out of range")

	rec, _ = doJSON(t, router, http.MethodGet, "/api/sale-orders?offset=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRemoteFaultSurfacesAs400(t *testing.T) {
	client := newFakeObjectClient()
	client.remoteErr = &erp.Fault{Message: "The operation cannot be completed."}
	router := newTestRouter(client)

	rec, env := doJSON(t, router, http.MethodPost, "/api/sale-orders", map[string]any{"partner_id": 7})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
	assert.Contains(t, env.Error, "The operation cannot be completed.")
}

func TestConnectivityFailureSurfacesAs400(t *testing.T) {
	client := newFakeObjectClient()
	client.listErr = errors.New("erp: call object.execute_kw: connection refused")
	router := newTestRouter(client)

	rec, env := doJSON(t, router, http.MethodGet, "/api/sale-orders", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
}

func TestWorkflowTransitions(t *testing.T) {
	client := newFakeObjectClient()
	router := newTestRouter(client)

	rec, env := doJSON(t, router, http.MethodPost, "/api/sale-orders/5/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"confirmed": true}`, string(env.Data))

	rec, env = doJSON(t, router, http.MethodPost, "/api/sale-orders/5/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"cancelled": true}`, string(env.Data))

	rec, env = doJSON(t, router, http.MethodPost, "/api/sale-orders/5/draft", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"reset_to_draft": true}`, string(env.Data))

	assert.Equal(t, []int64{5}, client.confirmed)
	assert.Equal(t, []int64{5}, client.cancelled)
	assert.Equal(t, []int64{5}, client.reset)
}

func TestUpdate(t *testing.T) {
	client := newFakeObjectClient()
	router := newTestRouter(client)

	_, env := doJSON(t, router, http.MethodPost, "/api/sale-orders", map[string]any{"partner_id": 7})
	require.True(t, env.Success)

	rec, env := doJSON(t, router, http.MethodPut, "/api/sale-orders/1", map[string]any{"note": "rush"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"updated": true}`, string(env.Data))

	rec, _ = doJSON(t, router, http.MethodPut, "/api/sale-orders/abc", map[string]any{"note": "rush"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
