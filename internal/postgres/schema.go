package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		email      TEXT PRIMARY KEY,
		name       TEXT NOT NULL DEFAULT '',
		image      TEXT NOT NULL DEFAULT '',
		role       TEXT NOT NULL DEFAULT 'customer',
		status     TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS plants (
		id           TEXT PRIMARY KEY,
		name         TEXT NOT NULL,
		description  TEXT NOT NULL DEFAULT '',
		category     TEXT NOT NULL DEFAULT '',
		image        TEXT NOT NULL DEFAULT '',
		price_cents  BIGINT NOT NULL CHECK (price_cents >= 0),
		quantity     INTEGER NOT NULL CHECK (quantity >= 0),
		seller_name  TEXT NOT NULL DEFAULT '',
		seller_email TEXT NOT NULL,
		seller_image TEXT NOT NULL DEFAULT '',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id               TEXT PRIMARY KEY,
		plant_id         TEXT NOT NULL,
		customer_name    TEXT NOT NULL DEFAULT '',
		customer_email   TEXT NOT NULL,
		customer_image   TEXT NOT NULL DEFAULT '',
		seller_email     TEXT NOT NULL,
		unit_price_cents BIGINT NOT NULL,
		quantity         INTEGER NOT NULL CHECK (quantity > 0),
		price_cents      BIGINT NOT NULL,
		address          TEXT NOT NULL,
		status           TEXT NOT NULL DEFAULT 'Pending',
		debited          BOOLEAN NOT NULL DEFAULT false,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS orders_seller_email_idx ON orders(seller_email)`,
	`CREATE INDEX IF NOT EXISTS orders_customer_email_idx ON orders(customer_email)`,
	`CREATE INDEX IF NOT EXISTS orders_undebited_idx ON orders(created_at) WHERE debited = false`,
}

// Migrate creates the tables if they do not exist yet.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
