package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo is the Postgres-backed order record store.
type Repo struct{ DB *pgxpool.Pool }

const orderColumns = `o.id, o.plant_id, o.customer_name, o.customer_email, o.customer_image,
	o.seller_email, o.unit_price_cents, o.quantity, o.price_cents, o.address,
	o.status, o.debited, o.created_at, o.updated_at`

func scanOrder(row pgx.Row, o *Order, extra ...any) error {
	dst := []any{
		&o.ID, &o.PlantID, &o.Customer.Name, &o.Customer.Email, &o.Customer.Image,
		&o.SellerEmail, &o.UnitPriceCents, &o.Quantity, &o.PriceCents, &o.Address,
		&o.Status, &o.Debited, &o.CreatedAt, &o.UpdatedAt,
	}
	return row.Scan(append(dst, extra...)...)
}

// Create persists o as a Pending, not yet debited order and returns its id.
// Price fields are stored as given; callers snapshot them from the plant.
func (r *Repo) Create(ctx context.Context, o Order) (string, error) {
	if err := o.Validate(); err != nil {
		return "", err
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	_, err := r.DB.Exec(ctx, `
		INSERT INTO orders(id, plant_id, customer_name, customer_email, customer_image,
		                   seller_email, unit_price_cents, quantity, price_cents, address,
		                   status, debited)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,false)`,
		o.ID, o.PlantID, o.Customer.Name, o.Customer.Email, o.Customer.Image,
		o.SellerEmail, o.UnitPriceCents, o.Quantity, o.PriceCents, o.Address,
		StatusPending,
	)
	if err != nil {
		return "", err
	}
	return o.ID, nil
}

func (r *Repo) FindByID(ctx context.Context, id string) (Order, error) {
	var o Order
	err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id=$1`, id), &o)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	return o, err
}

// SetStatus writes status unconditionally; it reports 0 when the order is
// already in that status. Ordering rules are not checked here.
func (r *Repo) SetStatus(ctx context.Context, id string, s Status) (int64, error) {
	ct, err := r.DB.Exec(ctx, `UPDATE orders SET status=$2, updated_at=now() WHERE id=$1 AND status<>$2`, id, s)
	if err != nil {
		return 0, err
	}
	if ct.RowsAffected() == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return 0, err
		}
	}
	return ct.RowsAffected(), nil
}

// TransitionStatus moves the order from -> to only if it is still in from.
func (r *Repo) TransitionStatus(ctx context.Context, id string, from, to Status) (int64, error) {
	ct, err := r.DB.Exec(ctx, `UPDATE orders SET status=$3, updated_at=now() WHERE id=$1 AND status=$2`, id, from, to)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

// Delete removes a non-Delivered order and returns the removed row. A Delivered
// order yields ErrAlreadyDelivered; a missing one yields a zero count.
func (r *Repo) Delete(ctx context.Context, id string) (Order, int64, error) {
	var o Order
	err := scanOrder(r.DB.QueryRow(ctx, `
		DELETE FROM orders o WHERE o.id=$1 AND o.status<>$2
		RETURNING `+orderColumns, id, StatusDelivered), &o)
	if err == nil {
		return o, 1, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Order{}, 0, err
	}
	cur, ferr := r.FindByID(ctx, id)
	switch {
	case errors.Is(ferr, ErrNotFound):
		return Order{}, 0, nil
	case ferr != nil:
		return Order{}, 0, ferr
	case cur.Status == StatusDelivered:
		return Order{}, 0, ErrAlreadyDelivered
	}
	return Order{}, 0, nil
}

func (r *Repo) MarkDebited(ctx context.Context, id string) error {
	_, err := r.DB.Exec(ctx, `UPDATE orders SET debited=true, updated_at=now() WHERE id=$1`, id)
	return err
}

// ListUndebited returns orders whose stock debit was never recorded and that
// are older than olderThan, oldest first.
func (r *Repo) ListUndebited(ctx context.Context, olderThan time.Duration, limit int) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+orderColumns+` FROM orders o
		WHERE o.debited=false AND o.created_at < $1
		ORDER BY o.created_at LIMIT $2`, time.Now().Add(-olderThan), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *Repo) ListBySeller(ctx context.Context, sellerEmail string) ([]SellerOrder, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+orderColumns+`, p.name
		FROM orders o JOIN plants p ON p.id = o.plant_id
		WHERE o.seller_email=$1 ORDER BY o.created_at DESC`, sellerEmail)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []SellerOrder{}
	for rows.Next() {
		var so SellerOrder
		if err := scanOrder(rows, &so.Order, &so.Name); err != nil {
			return nil, err
		}
		out = append(out, so)
	}
	return out, rows.Err()
}

func (r *Repo) ListByCustomer(ctx context.Context, customerEmail string) ([]CustomerOrder, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+orderColumns+`, p.name, p.image, p.category
		FROM orders o JOIN plants p ON p.id = o.plant_id
		WHERE o.customer_email=$1 ORDER BY o.created_at DESC`, customerEmail)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []CustomerOrder{}
	for rows.Next() {
		var co CustomerOrder
		if err := scanOrder(rows, &co.Order, &co.Name, &co.Image, &co.Category); err != nil {
			return nil, err
		}
		out = append(out, co)
	}
	return out, rows.Err()
}

func (r *Repo) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := r.DB.QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM plants),
		       (SELECT COUNT(*) FROM users),
		       COUNT(*),
		       COALESCE(SUM(price_cents), 0)::bigint
		FROM orders`).Scan(&s.TotalPlants, &s.TotalUsers, &s.TotalOrders, &s.TotalRevenue)
	return s, err
}
