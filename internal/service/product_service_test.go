package service

import (
	"testing"

	"go-ledger-ws/internal/events"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProducts_CreateRejectsDuplicateSKU(t *testing.T) {
	f := newFixture(t)
	f.product(t, "rice", 5)

	_, err := f.products.CreateProduct(f.ctx, &ProductRequest{SKU: "SKU-rice", Name: "other"}, "tester")
	assert.ErrorIs(t, err, ErrSKUExists)

	_, err = f.products.CreateProduct(f.ctx, &ProductRequest{SKU: "X", Name: "neg", Stock: -1}, "tester")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.products.CreateProduct(f.ctx, &ProductRequest{SKU: "Y", Name: "neg", Price: dec("-0.01")}, "tester")
	assert.ErrorIs(t, err, ErrValidation)

	all, err := f.products.GetAllProducts(f.ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestProducts_AdjustStockNeverNegative(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "p", 10)

	adj, err := f.products.AdjustStock(f.ctx, p, &StockAdjustRequest{Delta: 5}, "tester")
	require.NoError(t, err)
	assert.Equal(t, 15, adj.NewStock)
	assert.False(t, adj.Clamped)

	for _, delta := range []int{-1, -1000, -1 << 30} {
		adj, err = f.products.AdjustStock(f.ctx, p, &StockAdjustRequest{Delta: delta}, "tester")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, adj.NewStock, 0)
		assert.GreaterOrEqual(t, f.stock(t, p), 0)
	}
	assert.Equal(t, 0, f.stock(t, p))

	stockEvents := f.events.byTopic(events.TopicStockUpdate)
	require.Len(t, stockEvents, 4)
	last := stockEvents[3].(events.StockEvent)
	assert.Equal(t, "manual_adjust", last.Action)
	assert.True(t, last.Adjustment.Clamped)
}

func TestProducts_AdjustStockErrors(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "p", 10)

	_, err := f.products.AdjustStock(f.ctx, p, &StockAdjustRequest{Delta: 0}, "tester")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.products.AdjustStock(f.ctx, uuid.NewString(), &StockAdjustRequest{Delta: 1}, "tester")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 10, f.stock(t, p))
}

func TestProducts_UpdateKeepsStock(t *testing.T) {
	f := newFixture(t)
	p := f.product(t, "p", 10)
	f.product(t, "q", 1)

	updated, err := f.products.UpdateProduct(f.ctx, p, &ProductRequest{
		SKU:   "SKU-p2",
		Name:  "renamed",
		Stock: 999,
		Price: decimal.NewFromInt(7),
	}, "tester")
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, 10, f.stock(t, p))

	_, err = f.products.UpdateProduct(f.ctx, p, &ProductRequest{SKU: "SKU-q", Name: "clash"}, "tester")
	assert.ErrorIs(t, err, ErrSKUExists)
}
