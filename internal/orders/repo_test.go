package orders_test

import (
	"context"
	"testing"

	"github.com/ariefcatur/plantnet-orders/internal/orders"
	"github.com/ariefcatur/plantnet-orders/internal/postgres/pgtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrder(qty int) orders.Order {
	return orders.Order{
		PlantID:        "fern",
		Customer:       orders.Customer{Name: "Fern", Email: "fern@example.com"},
		SellerEmail:    "grower@example.com",
		UnitPriceCents: 1200,
		Quantity:       qty,
		PriceCents:     1200 * int64(qty),
		Address:        "12 Leaf Lane",
	}
}

func TestRepo_Lifecycle(t *testing.T) {
	db := pgtest.New(t)
	pgtest.InsertPlant(t, db, orders.Plant{ID: "fern", Name: "Boston Fern", Category: "Indoor", PriceCents: 1200, Quantity: 5, Seller: orders.Seller{Email: "grower@example.com"}})
	repo := &orders.Repo{DB: db}
	ctx := context.Background()

	_, err := repo.Create(ctx, orders.Order{PlantID: "fern", Quantity: 1})
	require.ErrorIs(t, err, orders.ErrValidation)

	id, err := repo.Create(ctx, newOrder(2))
	require.NoError(t, err)

	o, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, o.Status)
	assert.False(t, o.Debited)
	assert.Equal(t, int64(2400), o.PriceCents)

	undebited, err := repo.ListUndebited(ctx, 0, 10)
	require.NoError(t, err)
	assert.Len(t, undebited, 1)
	require.NoError(t, repo.MarkDebited(ctx, id))
	undebited, err = repo.ListUndebited(ctx, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, undebited)

	n, err := repo.SetStatus(ctx, id, orders.StatusPending)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = repo.TransitionStatus(ctx, id, orders.StatusInProgress, orders.StatusDelivered)
	require.NoError(t, err)
	assert.Zero(t, n, "compare-and-set must not match a stale from")

	n, err = repo.TransitionStatus(ctx, id, orders.StatusPending, orders.StatusInProgress)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	sellerView, err := repo.ListBySeller(ctx, "grower@example.com")
	require.NoError(t, err)
	require.Len(t, sellerView, 1)
	assert.Equal(t, "Boston Fern", sellerView[0].Name)

	customerView, err := repo.ListByCustomer(ctx, "fern@example.com")
	require.NoError(t, err)
	require.Len(t, customerView, 1)
	assert.Equal(t, "Indoor", customerView[0].Category)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.TotalOrders)
	assert.EqualValues(t, 2400, stats.TotalRevenue)

	deleted, n, err := repo.Delete(ctx, id)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.True(t, deleted.Debited)
	assert.Equal(t, 2, deleted.Quantity)

	_, n, err = repo.Delete(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = repo.FindByID(ctx, id)
	assert.ErrorIs(t, err, orders.ErrNotFound)
}

func TestRepo_DeleteDeliveredIsConflict(t *testing.T) {
	db := pgtest.New(t)
	pgtest.InsertPlant(t, db, orders.Plant{ID: "fern", Name: "Boston Fern", PriceCents: 1200, Quantity: 5, Seller: orders.Seller{Email: "grower@example.com"}})
	repo := &orders.Repo{DB: db}
	ctx := context.Background()

	id, err := repo.Create(ctx, newOrder(1))
	require.NoError(t, err)
	_, err = repo.SetStatus(ctx, id, orders.StatusDelivered)
	require.NoError(t, err)

	_, n, err := repo.Delete(ctx, id)

	assert.ErrorIs(t, err, orders.ErrAlreadyDelivered)
	assert.Zero(t, n)
	_, err = repo.FindByID(ctx, id)
	assert.NoError(t, err)
}
