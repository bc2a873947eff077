package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/plantnet-orders/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo is the Postgres inventory ledger. Plant quantity is only ever written
// through AdjustQuantity.
type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) FindPlant(ctx context.Context, id string) (orders.Plant, error) {
	var p orders.Plant
	err := r.DB.QueryRow(ctx, `
		SELECT id, name, description, category, image, price_cents, quantity,
		       seller_name, seller_email, seller_image, created_at
		FROM plants WHERE id=$1`, id).Scan(
		&p.ID, &p.Name, &p.Description, &p.Category, &p.Image, &p.PriceCents, &p.Quantity,
		&p.Seller.Name, &p.Seller.Email, &p.Seller.Image, &p.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Plant{}, fmt.Errorf("plant %s: %w", id, orders.ErrNotFound)
	}
	return p, err
}

// AdjustQuantity applies delta in one conditional UPDATE, so concurrent
// adjustments of the same plant serialize on the row lock and the result can
// never drop below zero.
func (r *Repo) AdjustQuantity(ctx context.Context, plantID string, delta int) (int, error) {
	var qty int
	err := r.DB.QueryRow(ctx, `
		UPDATE plants SET quantity = quantity + $2
		WHERE id=$1 AND quantity + $2 >= 0
		RETURNING quantity`, plantID, delta).Scan(&qty)
	if err == nil {
		return qty, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	// nothing updated: either the plant is gone or the delta would oversell
	var available int
	err = r.DB.QueryRow(ctx, `SELECT quantity FROM plants WHERE id=$1`, plantID).Scan(&available)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("plant %s: %w", plantID, orders.ErrNotFound)
	}
	if err != nil {
		return 0, err
	}
	return available, &StockError{PlantID: plantID, Required: -delta, Available: available}
}

// StockError reports a rejected debit; it matches orders.ErrInsufficientStock.
type StockError struct {
	PlantID   string
	Required  int
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("plant %s: %s (required %d, available %d)",
		e.PlantID, orders.ErrInsufficientStock, e.Required, e.Available)
}

func (e *StockError) Is(target error) bool { return target == orders.ErrInsufficientStock }
