package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/plantnet-orders/internal/orders"
)

type Action string

const (
	ActionPlaceOrder      Action = "order:place"
	ActionReadOrder       Action = "order:read"
	ActionCancelOrder     Action = "order:cancel"
	ActionAdvanceStatus   Action = "order:advance"
	ActionAdjustInventory Action = "inventory:adjust"
	ActionListOwnOrders   Action = "orders:list-own"
	ActionListSellerOrder Action = "orders:list-seller"
	ActionViewStats       Action = "admin:stats"
)

// required role per action; an empty role means any verified identity.
var policy = map[Action]Role{
	ActionPlaceOrder:      "",
	ActionReadOrder:       "",
	ActionCancelOrder:     "",
	ActionAdjustInventory: "",
	ActionListOwnOrders:   "",
	ActionAdvanceStatus:   RoleSeller,
	ActionListSellerOrder: RoleSeller,
	ActionViewStats:       RoleAdmin,
}

// RoleSource resolves the stored role of a user.
type RoleSource interface {
	Role(ctx context.Context, email string) (Role, error)
}

// Gate is the capability gate consulted before every mutating operation.
type Gate struct {
	Roles RoleSource
}

func NewGate(roles RoleSource) *Gate { return &Gate{Roles: roles} }

// Authorize returns nil when id may perform a, orders.ErrUnauthorized for an
// unverified identity and orders.ErrForbidden for a role mismatch.
func (g *Gate) Authorize(ctx context.Context, id Identity, a Action) error {
	if !id.Verified || id.Email == "" {
		return fmt.Errorf("%s: %w", a, orders.ErrUnauthorized)
	}
	want, ok := policy[a]
	if !ok {
		return fmt.Errorf("unknown action %q: %w", a, orders.ErrForbidden)
	}
	if want == "" {
		return nil
	}
	role, err := g.RoleOf(ctx, id)
	if err != nil {
		return err
	}
	if role != want {
		return fmt.Errorf("%s requires role %s: %w", a, want, orders.ErrForbidden)
	}
	return nil
}

// RoleOf looks up the caller's role; unknown users are customers.
func (g *Gate) RoleOf(ctx context.Context, id Identity) (Role, error) {
	role, err := g.Roles.Role(ctx, id.Email)
	if errors.Is(err, orders.ErrNotFound) {
		return RoleCustomer, nil
	}
	return role, err
}
