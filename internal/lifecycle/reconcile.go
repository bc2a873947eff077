package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/plantnet-orders/internal/orders"
	"go.uber.org/zap"
)

// Reconciler settles orders left with debited=false by an interrupted
// purchase. It completes the debit when stock allows and otherwise cancels
// the order with reason out_of_stock.
type Reconciler struct {
	C        *Coordinator
	Interval time.Duration
	Grace    time.Duration // skip orders younger than this; their saga may still be running
	Batch    int
}

func (r *Reconciler) Run(ctx context.Context) error {
	interval := r.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.C.Log.Info("reconciler started", zap.Duration("interval", interval), zap.Duration("grace", r.Grace))
	for {
		select {
		case <-ctx.Done():
			r.C.Log.Info("reconciler stopped")
			return nil
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
				r.C.Log.Error("reconcile pass failed", zap.Error(err))
			}
		}
	}
}

// RunOnce processes one batch and returns how many orders it settled.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	batch := r.Batch
	if batch <= 0 {
		batch = 100
	}
	pending, err := r.C.Orders.ListUndebited(ctx, r.Grace, batch)
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, o := range pending {
		if ctx.Err() != nil {
			return settled, ctx.Err()
		}
		if r.settle(ctx, o) {
			settled++
		}
	}
	return settled, nil
}

func (r *Reconciler) settle(ctx context.Context, o orders.Order) bool {
	log := r.C.Log.With(zap.String("order_id", o.ID), zap.String("plant_id", o.PlantID))

	_, err := r.C.Ledger.AdjustQuantity(ctx, o.PlantID, -o.Quantity)
	switch {
	case err == nil:
		if err := r.C.retry(ctx, func() error { return r.C.Orders.MarkDebited(ctx, o.ID) }); err != nil {
			r.C.partial("reconcile", o.ID, err)
			return false
		}
		r.C.Metrics.Saga("reconcile", "debited")
		log.Info("reconciled order stock debit", zap.Int("quantity", o.Quantity))
		return true

	case errors.Is(err, orders.ErrInsufficientStock), errors.Is(err, orders.ErrNotFound):
		_, n, derr := r.C.Orders.Delete(ctx, o.ID)
		if errors.Is(derr, orders.ErrConflict) {
			// delivered before stock could be taken; keep the order, stop retrying
			log.Error("delivered order was never debited", zap.Error(err))
			_ = r.C.Orders.MarkDebited(ctx, o.ID)
			return false
		}
		if derr != nil {
			log.Warn("reconcile cancel failed", zap.Error(derr))
			return false
		}
		if n == 0 {
			return false
		}
		r.C.Metrics.Saga("reconcile", "cancelled")
		r.C.emit(ctx, orders.EventOrderCancelled, o.ID, orders.OrderCancelledPayload{
			OrderID:  o.ID,
			PlantID:  o.PlantID,
			Quantity: o.Quantity,
			Reason:   "out_of_stock",
		})
		log.Info("cancelled undebited order", zap.Error(err))
		return true

	default:
		log.Warn("reconcile debit failed", zap.Error(err))
		return false
	}
}
