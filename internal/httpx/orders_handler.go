package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/plantnet-orders/internal/access"
	"github.com/ariefcatur/plantnet-orders/internal/lifecycle"
	"github.com/ariefcatur/plantnet-orders/internal/orders"
	"github.com/ariefcatur/plantnet-orders/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// OrderReader serves the read-only endpoints.
type OrderReader interface {
	FindByID(ctx context.Context, id string) (orders.Order, error)
	ListBySeller(ctx context.Context, sellerEmail string) ([]orders.SellerOrder, error)
	ListByCustomer(ctx context.Context, customerEmail string) ([]orders.CustomerOrder, error)
	Stats(ctx context.Context) (orders.Stats, error)
}

type Identifier interface {
	Identify(r *http.Request) (access.Identity, error)
}

type API struct {
	Orders OrderReader
	Coord  *lifecycle.Coordinator
	Auth   Identifier
	Gate   lifecycle.Gate
	Redis  *redis.Client // optional: idempotency keys and the order view cache
	Log    *zap.Logger
}

type PlaceOrderReq struct {
	PlantID  string `json:"plantId"`
	Quantity int    `json:"quantity"`
	Address  string `json:"address"`
}

type PlaceOrderResp struct {
	InsertedID string `json:"insertedId"`
	Idempotent bool   `json:"idempotent,omitempty"`
}

type StatusReq struct {
	Status string `json:"status"`
}

type QuantityReq struct {
	QuantityToUpdate int    `json:"quantityToUpdate"`
	Status           string `json:"status"` // increase | decrease
}

func (a *API) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(a.session)
		r.Post("/order", a.placeOrder)
		r.Get("/orders/{id}", a.getOrder)
		r.Patch("/orders/{id}", a.advanceStatus)
		r.Delete("/orders/{id}", a.cancelOrder)
		r.Patch("/plants/quantity/{id}", a.adjustQuantity)
		r.Get("/customer-orders/{email}", a.customerOrders)
		r.Get("/seller-orders/{email}", a.sellerOrders)
		r.Get("/admin-stats", a.adminStats)
	})
}

func (a *API) session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := a.Auth.Identify(r)
		if err != nil {
			writeMessage(w, http.StatusUnauthorized, "unauthorized access")
			return
		}
		next.ServeHTTP(w, r.WithContext(access.WithIdentity(r.Context(), id)))
	})
}

func (a *API) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	actor := access.FromContext(ctx)

	idemKey := ""
	if k := strings.TrimSpace(r.Header.Get("Idempotency-Key")); k != "" && a.Redis != nil {
		idemKey = fmt.Sprintf(redisx.KeyIdemOrderCreate, actor.Email, k)
		if done := a.replay(ctx, w, idemKey); done {
			return
		}
	}

	id, err := a.Coord.Purchase(ctx, actor, lifecycle.PurchaseRequest{
		PlantID:  req.PlantID,
		Quantity: req.Quantity,
		Address:  req.Address,
	})
	if idemKey != "" {
		bg := context.WithoutCancel(ctx)
		if err != nil {
			_ = a.Redis.Del(bg, idemKey).Err()
		} else if serr := a.Redis.Set(bg, idemKey, id, redisx.TTLIdempotency).Err(); serr != nil {
			a.Log.Warn("idempotency key not stored", zap.String("order_id", id), zap.Error(serr))
		}
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PlaceOrderResp{InsertedID: id})
}

// replay claims idemKey for this request. When an earlier request already
// holds it, replay answers with its result and reports true.
func (a *API) replay(ctx context.Context, w http.ResponseWriter, idemKey string) bool {
	won, err := redisx.Claim(ctx, a.Redis, idemKey, redisx.TTLIdempotency)
	if err != nil {
		a.Log.Warn("idempotency check skipped", zap.Error(err))
		return false
	}
	if won {
		return false
	}
	prev, err := a.Redis.Get(ctx, idemKey).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return false
	case err != nil:
		a.Log.Warn("idempotency lookup failed", zap.Error(err))
		return false
	case prev == redisx.ClaimPending:
		writeMessage(w, http.StatusConflict, "request with this Idempotency-Key is still in progress")
	default:
		writeJSON(w, http.StatusOK, PlaceOrderResp{InsertedID: prev, Idempotent: true})
	}
	return true
}

func (a *API) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	actor := access.FromContext(ctx)

	if err := a.Gate.Authorize(ctx, actor, access.ActionReadOrder); err != nil {
		a.fail(w, r, err)
		return
	}

	o, cached := a.cachedOrder(ctx, orderID)
	if !cached {
		var err error
		if o, err = a.Orders.FindByID(ctx, orderID); err != nil {
			a.fail(w, r, err)
			return
		}
	}
	if err := a.canSee(ctx, actor, o); err != nil {
		a.fail(w, r, err)
		return
	}
	if !cached && a.Redis != nil {
		if b, err := json.Marshal(o); err == nil {
			_ = a.Redis.Set(ctx, fmt.Sprintf(redisx.KeyOrderView, orderID), b, redisx.TTLOrderView).Err()
		}
	}
	writeJSON(w, http.StatusOK, o)
}

func (a *API) cachedOrder(ctx context.Context, orderID string) (orders.Order, bool) {
	var o orders.Order
	if a.Redis == nil {
		return o, false
	}
	b, err := a.Redis.Get(ctx, fmt.Sprintf(redisx.KeyOrderView, orderID)).Bytes()
	if err != nil {
		return o, false
	}
	return o, json.Unmarshal(b, &o) == nil
}

func (a *API) forget(ctx context.Context, orderID string) {
	if a.Redis != nil {
		_ = a.Redis.Del(context.WithoutCancel(ctx), fmt.Sprintf(redisx.KeyOrderView, orderID)).Err()
	}
}

// canSee admits the order's customer, its seller and admins.
func (a *API) canSee(ctx context.Context, actor access.Identity, o orders.Order) error {
	if actor.Email == o.Customer.Email || actor.Email == o.SellerEmail {
		return nil
	}
	role, err := a.Gate.RoleOf(ctx, actor)
	if err != nil {
		return err
	}
	if role != access.RoleAdmin {
		return fmt.Errorf("order %s: %w", o.ID, orders.ErrForbidden)
	}
	return nil
}

func (a *API) advanceStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json")
		return
	}
	status, ok := orders.ParseStatus(req.Status)
	if !ok {
		writeMessage(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", req.Status))
		return
	}
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := a.Coord.AdvanceStatus(ctx, access.FromContext(ctx), orderID, status)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	msg := "Order status updated"
	if res.AlreadyInState {
		msg = "Order is already in that state"
	} else {
		a.forget(ctx, orderID)
	}
	writeJSON(w, http.StatusOK, map[string]any{"modifiedCount": res.ModifiedCount, "message": msg})
}

func (a *API) cancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := a.Coord.Cancel(ctx, access.FromContext(ctx), orderID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.forget(ctx, orderID)
	writeJSON(w, http.StatusOK, map[string]any{"deletedCount": res.DeletedCount, "restocked": res.Restocked})
}

func (a *API) adjustQuantity(w http.ResponseWriter, r *http.Request) {
	var req QuantityReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	qty, err := a.Coord.AdjustStock(ctx, access.FromContext(ctx), chi.URLParam(r, "id"), req.QuantityToUpdate, req.Status)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"modifiedCount": 1, "quantity": qty})
}

func (a *API) customerOrders(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := a.ownList(ctx, access.ActionListOwnOrders, email); err != nil {
		a.fail(w, r, err)
		return
	}
	list, err := a.Orders.ListByCustomer(ctx, email)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) sellerOrders(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := a.ownList(ctx, access.ActionListSellerOrder, email); err != nil {
		a.fail(w, r, err)
		return
	}
	list, err := a.Orders.ListBySeller(ctx, email)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// ownList authorizes action and requires the listed email to be the caller's.
func (a *API) ownList(ctx context.Context, action access.Action, email string) error {
	actor := access.FromContext(ctx)
	if err := a.Gate.Authorize(ctx, actor, action); err != nil {
		return err
	}
	if !strings.EqualFold(email, actor.Email) {
		return fmt.Errorf("orders of %s: %w", email, orders.ErrForbidden)
	}
	return nil
}

func (a *API) adminStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := a.Gate.Authorize(ctx, access.FromContext(ctx), access.ActionViewStats); err != nil {
		a.fail(w, r, err)
		return
	}
	st, err := a.Orders.Stats(ctx)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func zapRequest(r *http.Request, err error) []zap.Field {
	return []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err),
	}
}
