package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ariefcatur/plantnet-orders/internal/access"
	"github.com/ariefcatur/plantnet-orders/internal/lifecycle"
	"github.com/ariefcatur/plantnet-orders/internal/memstore"
	"github.com/ariefcatur/plantnet-orders/internal/metrics"
	"github.com/ariefcatur/plantnet-orders/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	customerEmail = "fern@example.com"
	sellerEmail   = "grower@example.com"
	adminEmail    = "root@example.com"
)

type nopEvents struct{}

func (nopEvents) Publish(_ context.Context, _ orders.Envelope) error { return nil }

type fixture struct {
	router   *chi.Mux
	store    *memstore.Store
	verifier *access.Verifier
}

func newFixture(t *testing.T, stock int) *fixture {
	t.Helper()
	st := memstore.New()
	st.PutPlant(orders.Plant{
		ID:         "monstera",
		Name:       "Monstera Deliciosa",
		Category:   "Indoor",
		PriceCents: 2500,
		Quantity:   stock,
		Seller:     orders.Seller{Email: sellerEmail},
	})
	st.PutUser(access.User{Email: customerEmail, Role: access.RoleCustomer})
	st.PutUser(access.User{Email: sellerEmail, Role: access.RoleSeller})
	st.PutUser(access.User{Email: adminEmail, Role: access.RoleAdmin})

	gate := access.NewGate(st)
	coord := &lifecycle.Coordinator{Orders: st, Ledger: st, Gate: gate, Events: nopEvents{}, Log: zap.NewNop(), Service: "test"}
	verifier := access.NewVerifier("test-secret", "token")

	r := NewRouter(zap.NewNop(), metrics.New("test"))
	(&API{Orders: st, Coord: coord, Auth: verifier, Gate: gate, Log: zap.NewNop()}).Register(r)
	return &fixture{router: r, store: st, verifier: verifier}
}

func (f *fixture) do(t *testing.T, method, path, as string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if as != "" {
		tok, err := f.verifier.Sign(as, "Tester", time.Hour)
		require.NoError(t, err)
		req.AddCookie(&http.Cookie{Name: "token", Value: tok})
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func (f *fixture) place(t *testing.T, qty int) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/order", customerEmail, PlaceOrderReq{PlantID: "monstera", Quantity: qty, Address: "12 Leaf Lane"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[PlaceOrderResp](t, rec).InsertedID
}

func (f *fixture) stock(t *testing.T) int {
	t.Helper()
	p, err := f.store.FindPlant(context.Background(), "monstera")
	require.NoError(t, err)
	return p.Quantity
}

func TestPlaceOrder_RequiresSession(t *testing.T) {
	f := newFixture(t, 5)

	rec := f.do(t, http.MethodPost, "/order", "", PlaceOrderReq{PlantID: "monstera", Quantity: 1, Address: "x"})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 5, f.stock(t))
}

func TestPlaceOrder_RejectsForgedToken(t *testing.T) {
	f := newFixture(t, 5)
	forged, err := access.NewVerifier("other-secret", "token").Sign(customerEmail, "Fern", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/order", bytes.NewBufferString(`{"plantId":"monstera","quantity":1,"address":"x"}`))
	req.Header.Set("Authorization", "Bearer "+forged)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPlaceOrder_DebitsThenRejectsOversell(t *testing.T) {
	f := newFixture(t, 5)

	id := f.place(t, 3)
	assert.NotEmpty(t, id)
	assert.Equal(t, 2, f.stock(t))

	rec := f.do(t, http.MethodPost, "/order", customerEmail, PlaceOrderReq{PlantID: "monstera", Quantity: 5, Address: "12 Leaf Lane"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 2, f.stock(t))

	rec = f.do(t, http.MethodPost, "/order", customerEmail, PlaceOrderReq{PlantID: "monstera", Quantity: 0, Address: "12 Leaf Lane"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetOrder(t *testing.T) {
	f := newFixture(t, 5)
	id := f.place(t, 1)

	rec := f.do(t, http.MethodGet, "/orders/"+id, customerEmail, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	o := decode[orders.Order](t, rec)
	assert.Equal(t, orders.StatusPending, o.Status)
	assert.Equal(t, int64(2500), o.PriceCents)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/orders/"+id, adminEmail, nil).Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "/orders/"+id, "nobody@example.com", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/orders/missing", customerEmail, nil).Code)
}

func TestAdvanceStatus(t *testing.T) {
	f := newFixture(t, 5)
	id := f.place(t, 1)

	rec := f.do(t, http.MethodPatch, "/orders/"+id, customerEmail, StatusReq{Status: "In Progress"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPatch, "/orders/"+id, sellerEmail, StatusReq{Status: "Delivered"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPatch, "/orders/"+id, sellerEmail, StatusReq{Status: "Teleported"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPatch, "/orders/"+id, sellerEmail, StatusReq{Status: "In Progress"})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.EqualValues(t, 1, body["modifiedCount"])

	rec = f.do(t, http.MethodPatch, "/orders/"+id, sellerEmail, StatusReq{Status: "in_progress"})
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode[map[string]any](t, rec)
	assert.EqualValues(t, 0, body["modifiedCount"])
	assert.Equal(t, "Order is already in that state", body["message"])
}

func TestCancelOrder(t *testing.T) {
	f := newFixture(t, 5)
	id := f.place(t, 2)

	rec := f.do(t, http.MethodDelete, "/orders/"+id, customerEmail, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, rec)["deletedCount"])
	assert.Equal(t, 5, f.stock(t))

	rec = f.do(t, http.MethodDelete, "/orders/"+id, customerEmail, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 5, f.stock(t))
}

func TestCancelOrder_DeliveredIsConflict(t *testing.T) {
	f := newFixture(t, 5)
	id := f.place(t, 2)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPatch, "/orders/"+id, sellerEmail, StatusReq{Status: "In Progress"}).Code)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPatch, "/orders/"+id, sellerEmail, StatusReq{Status: "Delivered"}).Code)

	rec := f.do(t, http.MethodDelete, "/orders/"+id, customerEmail, nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Order already delivered, cannot cancel", decode[map[string]string](t, rec)["message"])
	assert.Equal(t, 3, f.stock(t))
}

func TestAdjustQuantity(t *testing.T) {
	f := newFixture(t, 5)

	rec := f.do(t, http.MethodPatch, "/plants/quantity/monstera", sellerEmail, QuantityReq{QuantityToUpdate: 3, Status: "increase"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 8, decode[map[string]any](t, rec)["quantity"])

	rec = f.do(t, http.MethodPatch, "/plants/quantity/monstera", sellerEmail, QuantityReq{QuantityToUpdate: 20, Status: "decrease"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPatch, "/plants/quantity/monstera", sellerEmail, QuantityReq{QuantityToUpdate: 1, Status: "sideways"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPatch, "/plants/quantity/cactus", sellerEmail, QuantityReq{QuantityToUpdate: 1, Status: "increase"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 8, f.stock(t))
}

func TestDashboards(t *testing.T) {
	f := newFixture(t, 5)
	f.place(t, 2)

	rec := f.do(t, http.MethodGet, "/customer-orders/"+customerEmail, customerEmail, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	mine := decode[[]orders.CustomerOrder](t, rec)
	require.Len(t, mine, 1)
	assert.Equal(t, "Monstera Deliciosa", mine[0].Name)
	assert.Equal(t, "Indoor", mine[0].Category)

	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "/customer-orders/"+customerEmail, sellerEmail, nil).Code)

	rec = f.do(t, http.MethodGet, "/seller-orders/"+sellerEmail, sellerEmail, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]orders.SellerOrder](t, rec), 1)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "/seller-orders/"+sellerEmail, customerEmail, nil).Code)

	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodGet, "/admin-stats", customerEmail, nil).Code)
	rec = f.do(t, http.MethodGet, "/admin-stats", adminEmail, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[orders.Stats](t, rec)
	assert.EqualValues(t, 1, stats.TotalOrders)
	assert.EqualValues(t, 5000, stats.TotalRevenue)
	assert.EqualValues(t, 3, stats.TotalUsers)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t, 5)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", "", nil).Code)
	f.place(t, 1)

	rec := f.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "plantnet_test_http_requests_total")
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		orders.Validationf("bad"):   http.StatusBadRequest,
		orders.ErrUnauthorized:      http.StatusUnauthorized,
		orders.ErrForbidden:         http.StatusForbidden,
		orders.ErrNotFound:          http.StatusNotFound,
		orders.ErrAlreadyDelivered:  http.StatusConflict,
		orders.ErrInvalidTransition: http.StatusConflict,
		orders.ErrInsufficientStock: http.StatusConflict,
		orders.ErrPartialSaga:       http.StatusInternalServerError,
		orders.ErrDependencyFailure: http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, statusFor(err), err.Error())
	}
}
