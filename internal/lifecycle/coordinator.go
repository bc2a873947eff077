package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/plantnet-orders/internal/access"
	"github.com/ariefcatur/plantnet-orders/internal/metrics"
	"github.com/ariefcatur/plantnet-orders/internal/orders"
	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Coordinator runs the order sagas across the order store and the inventory
// ledger. Steps are not atomic across calls; every partial-failure window is
// either compensated here or left flagged (debited=false) for the Reconciler.
type Coordinator struct {
	Orders  OrderStore
	Ledger  Ledger
	Gate    Gate
	Events  Events
	Log     *zap.Logger
	Metrics *metrics.Metrics
	Service string
}

type PurchaseRequest struct {
	PlantID  string
	Quantity int
	Address  string
}

type StatusResult struct {
	ModifiedCount  int64
	AlreadyInState bool
	From           orders.Status
	To             orders.Status
}

type CancelResult struct {
	DeletedCount int64
	Restocked    bool
	Quantity     int
}

func (c *Coordinator) tracer() trace.Tracer { return otel.Tracer("plantnet/lifecycle") }

// Purchase places an order for actor and debits the plant's stock.
func (c *Coordinator) Purchase(ctx context.Context, actor access.Identity, req PurchaseRequest) (id string, err error) {
	ctx, span := c.tracer().Start(ctx, "order.purchase", trace.WithAttributes(
		attribute.String("plant.id", req.PlantID),
		attribute.Int("order.quantity", req.Quantity),
	))
	defer func() { c.finish(span, "purchase", err) }()

	if err := c.Gate.Authorize(ctx, actor, access.ActionPlaceOrder); err != nil {
		return "", err
	}
	if req.Quantity <= 0 {
		return "", orders.Validationf("quantity must be greater than zero")
	}

	plant, err := c.Ledger.FindPlant(ctx, req.PlantID)
	if err != nil {
		return "", err
	}
	if req.Quantity > plant.Quantity {
		return "", fmt.Errorf("plant %s: %w (requested %d, available %d)",
			plant.ID, orders.ErrInsufficientStock, req.Quantity, plant.Quantity)
	}

	// price snapshot; later plant price changes never reach this order
	o := orders.Order{
		PlantID:        plant.ID,
		Customer:       orders.Customer{Name: actor.Name, Email: actor.Email, Image: actor.Image},
		SellerEmail:    plant.Seller.Email,
		UnitPriceCents: plant.PriceCents,
		Quantity:       req.Quantity,
		PriceCents:     plant.PriceCents * int64(req.Quantity),
		Address:        strings.TrimSpace(req.Address),
	}
	id, err = c.Orders.Create(ctx, o)
	if err != nil {
		return "", err
	}
	span.SetAttributes(attribute.String("order.id", id))

	// Compensation and bookkeeping must outlive a cancelled request.
	bg := context.WithoutCancel(ctx)

	if _, err := c.Ledger.AdjustQuantity(ctx, plant.ID, -req.Quantity); err != nil {
		return "", c.undoPlacement(bg, id, err)
	}
	if err := c.retry(bg, func() error { return c.Orders.MarkDebited(bg, id) }); err != nil {
		// stock is debited; only the flag is missing
		c.partial("purchase", id, fmt.Errorf("mark debited: %w", err))
	}

	o.ID = id
	c.emit(bg, orders.EventOrderPlaced, id, orders.OrderPlacedPayload{
		OrderID:      id,
		PlantID:      plant.ID,
		PlantName:    plant.Name,
		Customer:     o.Customer,
		SellerEmail:  o.SellerEmail,
		Quantity:     o.Quantity,
		PriceCents:   o.PriceCents,
		StockDebited: true,
	})
	c.Log.Info("order placed",
		zap.String("order_id", id),
		zap.String("plant_id", plant.ID),
		zap.Int("quantity", req.Quantity),
		zap.Int64("price_cents", o.PriceCents),
	)
	return id, nil
}

// undoPlacement deletes an order whose stock debit failed. If the delete
// fails too, the order stays with debited=false for the reconciler.
func (c *Coordinator) undoPlacement(ctx context.Context, id string, cause error) error {
	if _, _, err := c.Orders.Delete(ctx, id); err != nil {
		c.partial("purchase", id, fmt.Errorf("debit: %v; compensation: %w", cause, err))
		return fmt.Errorf("%w: order %s kept without stock debit: %w", orders.ErrPartialSaga, id, cause)
	}
	c.Log.Info("order compensated after failed debit", zap.String("order_id", id), zap.Error(cause))
	return cause
}

// AdvanceStatus moves an order one step along Pending -> In Progress ->
// Delivered on behalf of its seller.
func (c *Coordinator) AdvanceStatus(ctx context.Context, actor access.Identity, orderID string, to orders.Status) (res StatusResult, err error) {
	ctx, span := c.tracer().Start(ctx, "order.advance_status", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("order.status.to", to.String()),
	))
	defer func() { c.finish(span, "advance_status", err) }()

	if err := c.Gate.Authorize(ctx, actor, access.ActionAdvanceStatus); err != nil {
		return res, err
	}
	if !to.Valid() {
		return res, orders.Validationf("unknown status %q", to)
	}

	o, err := c.Orders.FindByID(ctx, orderID)
	if err != nil {
		return res, err
	}
	if o.SellerEmail != actor.Email {
		return res, fmt.Errorf("order %s belongs to another seller: %w", orderID, orders.ErrForbidden)
	}

	res.From, res.To = o.Status, to
	if o.Status == to {
		res.AlreadyInState = true
		return res, nil
	}
	if o.Status.Terminal() {
		return res, fmt.Errorf("order %s is %s: %w", orderID, o.Status, orders.ErrConflict)
	}
	if !orders.CanTransition(o.Status, to) {
		return res, fmt.Errorf("%w: %s -> %s", orders.ErrInvalidTransition, o.Status, to)
	}

	n, err := c.Orders.TransitionStatus(ctx, orderID, o.Status, to)
	if err != nil {
		return res, err
	}
	if n == 0 {
		return res, fmt.Errorf("order %s changed concurrently: %w", orderID, orders.ErrConflict)
	}
	res.ModifiedCount = n

	c.emit(context.WithoutCancel(ctx), orders.EventOrderStatusChanged, orderID, orders.OrderStatusChangedPayload{
		OrderID:     orderID,
		From:        o.Status,
		To:          to,
		SellerEmail: o.SellerEmail,
	})
	c.Log.Info("order status changed",
		zap.String("order_id", orderID),
		zap.String("from", o.Status.String()),
		zap.String("to", to.String()),
	)
	return res, nil
}

// Cancel deletes a not yet delivered order and restores its stock. Only the
// customer, the seller of the order, or an admin may cancel it.
func (c *Coordinator) Cancel(ctx context.Context, actor access.Identity, orderID string) (res CancelResult, err error) {
	ctx, span := c.tracer().Start(ctx, "order.cancel", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer func() { c.finish(span, "cancel", err) }()

	if err := c.Gate.Authorize(ctx, actor, access.ActionCancelOrder); err != nil {
		return res, err
	}
	o, err := c.Orders.FindByID(ctx, orderID)
	if err != nil {
		return res, err
	}
	if err := c.checkCanCancel(ctx, actor, o); err != nil {
		return res, err
	}
	if o.Status == orders.StatusDelivered {
		return res, orders.ErrAlreadyDelivered
	}

	deleted, n, err := c.Orders.Delete(ctx, orderID)
	if err != nil {
		return res, err
	}
	if n == 0 {
		// lost a race with another cancel; the winner restores stock
		return res, fmt.Errorf("order %s already cancelled: %w", orderID, orders.ErrNotFound)
	}
	res.DeletedCount = n
	res.Quantity = deleted.Quantity

	bg := context.WithoutCancel(ctx)
	if deleted.Debited {
		if _, err := c.Ledger.AdjustQuantity(bg, deleted.PlantID, deleted.Quantity); err != nil {
			c.partial("cancel", orderID, fmt.Errorf("restock plant %s by %d: %w", deleted.PlantID, deleted.Quantity, err))
		} else {
			res.Restocked = true
		}
	}

	c.emit(bg, orders.EventOrderCancelled, orderID, orders.OrderCancelledPayload{
		OrderID:   orderID,
		PlantID:   deleted.PlantID,
		Quantity:  deleted.Quantity,
		Restocked: res.Restocked,
		Reason:    "cancelled_by_user",
	})
	c.Log.Info("order cancelled",
		zap.String("order_id", orderID),
		zap.Bool("restocked", res.Restocked),
		zap.Int("quantity", deleted.Quantity),
	)
	return res, nil
}

func (c *Coordinator) checkCanCancel(ctx context.Context, actor access.Identity, o orders.Order) error {
	if actor.Email == o.Customer.Email || actor.Email == o.SellerEmail {
		return nil
	}
	role, err := c.Gate.RoleOf(ctx, actor)
	if err != nil {
		return err
	}
	if role == access.RoleAdmin {
		return nil
	}
	return fmt.Errorf("order %s: %w", o.ID, orders.ErrForbidden)
}

// AdjustStock applies a manual restock ("increase") or write-off ("decrease").
func (c *Coordinator) AdjustStock(ctx context.Context, actor access.Identity, plantID string, quantity int, direction string) (qty int, err error) {
	ctx, span := c.tracer().Start(ctx, "inventory.adjust", trace.WithAttributes(attribute.String("plant.id", plantID)))
	defer func() { c.finish(span, "adjust_stock", err) }()

	if err := c.Gate.Authorize(ctx, actor, access.ActionAdjustInventory); err != nil {
		return 0, err
	}
	if quantity <= 0 {
		return 0, orders.Validationf("quantityToUpdate must be greater than zero")
	}
	delta := quantity
	switch strings.ToLower(strings.TrimSpace(direction)) {
	case "increase":
	case "decrease":
		delta = -quantity
	default:
		return 0, orders.Validationf("status must be increase or decrease, got %q", direction)
	}

	qty, err = c.Ledger.AdjustQuantity(ctx, plantID, delta)
	if err != nil {
		return 0, err
	}
	c.Log.Info("stock adjusted", zap.String("plant_id", plantID), zap.Int("delta", delta), zap.Int("quantity", qty))
	return qty, nil
}

// emit publishes a lifecycle event. Failures are logged, never returned.
func (c *Coordinator) emit(ctx context.Context, eventType, orderID string, payload any) {
	env, err := orders.NewEnvelope(eventType, c.Service, orderID, payload)
	if err == nil {
		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			env.TraceID = sc.TraceID().String()
		}
		err = c.Events.Publish(ctx, env)
	}
	if err != nil {
		c.Log.Warn("event not published",
			zap.String("event_type", eventType),
			zap.String("order_id", orderID),
			zap.NamedError("dependency_failure", fmt.Errorf("%w: %w", orders.ErrDependencyFailure, err)),
		)
		c.Metrics.Notification(eventType, "publish_failed")
	}
}

func (c *Coordinator) partial(operation, orderID string, err error) {
	c.Metrics.PartialSaga(operation)
	c.Log.Error("PartialSagaFailure",
		zap.String("operation", operation),
		zap.String("order_id", orderID),
		zap.Error(fmt.Errorf("%w: %w", orders.ErrPartialSaga, err)),
	)
}

// retry runs an idempotent step a few times before giving up.
func (c *Coordinator) retry(ctx context.Context, op func() error) error {
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(20*time.Millisecond),
	), 3), ctx)
	return backoff.Retry(op, b)
}

func (c *Coordinator) finish(span trace.Span, operation string, err error) {
	outcome := outcomeOf(err)
	c.Metrics.Saga(operation, outcome)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	span.End()
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, orders.ErrPartialSaga):
		return "partial"
	case errors.Is(err, orders.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, orders.ErrValidation):
		return "validation"
	case errors.Is(err, orders.ErrNotFound):
		return "not_found"
	case errors.Is(err, orders.ErrUnauthorized), errors.Is(err, orders.ErrForbidden):
		return "denied"
	case errors.Is(err, orders.ErrInvalidTransition), errors.Is(err, orders.ErrConflict):
		return "conflict"
	}
	return "error"
}
