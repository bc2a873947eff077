package inventory_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ariefcatur/plantnet-orders/internal/inventory"
	"github.com/ariefcatur/plantnet-orders/internal/orders"
	"github.com/ariefcatur/plantnet-orders/internal/postgres/pgtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdjustQuantity(t *testing.T) {
	db := pgtest.New(t)
	pgtest.InsertPlant(t, db, orders.Plant{ID: "fern", Name: "Boston Fern", PriceCents: 1200, Quantity: 5, Seller: orders.Seller{Email: "grower@example.com"}})
	repo := &inventory.Repo{DB: db}
	ctx := context.Background()

	qty, err := repo.AdjustQuantity(ctx, "fern", -3)
	require.NoError(t, err)
	assert.Equal(t, 2, qty)

	_, err = repo.AdjustQuantity(ctx, "fern", -5)
	require.ErrorIs(t, err, orders.ErrInsufficientStock)
	var se *inventory.StockError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 5, se.Required)
	assert.Equal(t, 2, se.Available)

	qty, err = repo.AdjustQuantity(ctx, "fern", 4)
	require.NoError(t, err)
	assert.Equal(t, 6, qty)

	_, err = repo.AdjustQuantity(ctx, "cactus", 1)
	assert.ErrorIs(t, err, orders.ErrNotFound)

	p, err := repo.FindPlant(ctx, "fern")
	require.NoError(t, err)
	assert.Equal(t, 6, p.Quantity)
	assert.Equal(t, int64(1200), p.PriceCents)
	assert.Equal(t, "grower@example.com", p.Seller.Email)
}

func TestAdjustQuantity_ConcurrentDebitsStopAtZero(t *testing.T) {
	db := pgtest.New(t)
	pgtest.InsertPlant(t, db, orders.Plant{ID: "fern", Name: "Boston Fern", PriceCents: 1200, Quantity: 7, Seller: orders.Seller{Email: "grower@example.com"}})
	repo := &inventory.Repo{DB: db}

	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.AdjustQuantity(context.Background(), "fern", -1); err == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 7, ok.Load())
	p, err := repo.FindPlant(context.Background(), "fern")
	require.NoError(t, err)
	assert.Zero(t, p.Quantity)
}
