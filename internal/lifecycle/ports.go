package lifecycle

import (
	"context"
	"time"

	"github.com/ariefcatur/plantnet-orders/internal/access"
	"github.com/ariefcatur/plantnet-orders/internal/orders"
)

// OrderStore is the part of the order record store the coordinator drives.
type OrderStore interface {
	Create(ctx context.Context, o orders.Order) (string, error)
	FindByID(ctx context.Context, id string) (orders.Order, error)
	TransitionStatus(ctx context.Context, id string, from, to orders.Status) (int64, error)
	Delete(ctx context.Context, id string) (orders.Order, int64, error)
	MarkDebited(ctx context.Context, id string) error
	ListUndebited(ctx context.Context, olderThan time.Duration, limit int) ([]orders.Order, error)
}

// Ledger owns plant quantities.
type Ledger interface {
	FindPlant(ctx context.Context, id string) (orders.Plant, error)
	AdjustQuantity(ctx context.Context, plantID string, delta int) (int, error)
}

type Gate interface {
	Authorize(ctx context.Context, id access.Identity, a access.Action) error
	RoleOf(ctx context.Context, id access.Identity) (access.Role, error)
}

// Events receives lifecycle events after the state change is stored.
// Delivery is asynchronous; an error only means the event was not queued.
type Events interface {
	Publish(ctx context.Context, env orders.Envelope) error
}
