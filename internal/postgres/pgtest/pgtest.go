// Package pgtest starts a throwaway Postgres for repository tests. Tests are
// skipped under -short or when no container runtime is available.
package pgtest

import (
	"context"
	"testing"
	"time"

	"github.com/ariefcatur/plantnet-orders/internal/orders"
	"github.com/ariefcatur/plantnet-orders/internal/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"
)

// New returns a migrated pool on a fresh database.
func New(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres integration test skipped in -short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("plantnet"),
		tcpostgres.WithUsername("app"),
		tcpostgres.WithPassword("secret"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	db, err := postgres.Connect(ctx, dsn, zap.NewNop())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(db.Close)

	if err := postgres.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// InsertPlant seeds a plant row.
func InsertPlant(t *testing.T, db *pgxpool.Pool, p orders.Plant) {
	t.Helper()
	_, err := db.Exec(context.Background(), `
		INSERT INTO plants(id, name, category, image, price_cents, quantity, seller_name, seller_email)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		p.ID, p.Name, p.Category, p.Image, p.PriceCents, p.Quantity, p.Seller.Name, p.Seller.Email)
	if err != nil {
		t.Fatalf("insert plant %s: %v", p.ID, err)
	}
}

// InsertUser seeds a user row.
func InsertUser(t *testing.T, db *pgxpool.Pool, email, role string) {
	t.Helper()
	_, err := db.Exec(context.Background(), `INSERT INTO users(email, role) VALUES ($1,$2)`, email, role)
	if err != nil {
		t.Fatalf("insert user %s: %v", email, err)
	}
}
