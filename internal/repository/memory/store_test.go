package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"go-ledger-ws/internal/model"
	"go-ledger-ws/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	p := &model.Product{SKU: "A", Name: "a", Stock: 10}
	require.NoError(t, s.Products().Create(ctx, p))

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx repository.LedgerStore) error {
		if _, err := tx.Products().AdjustStock(ctx, p.ID, -4, "t"); err != nil {
			return err
		}
		require.NoError(t, tx.Transactions().Create(ctx, &model.LedgerTransaction{
			EntityID: "e", Type: model.TxWeGave, ItemType: model.ItemCash, Amount: decimal.NewFromInt(1), Details: "x",
		}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.Products().FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Stock)
	n, err := s.Transactions().CountByEntity(ctx, "e")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWithTx_RollbackKeepsWritesOutsideTheUnit(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	p := &model.Product{SKU: "A", Name: "a", Stock: 10}
	require.NoError(t, s.Products().Create(ctx, p))

	// GIVEN a unit of work that fails after another writer used the store directly
	var outside model.ExternalEntity
	err := s.WithTx(ctx, func(tx repository.LedgerStore) error {
		if _, err := tx.Products().AdjustStock(ctx, p.ID, 3, "t"); err != nil {
			return err
		}

		outside = model.ExternalEntity{Name: "acme", Type: model.EntitySupplier}
		require.NoError(t, s.Entities().Create(ctx, &outside))

		return errors.New("boom")
	})
	require.Error(t, err)

	// THEN only the unit's own write is undone
	got, err := s.Products().FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Stock)

	kept, err := s.Entities().FindByID(ctx, outside.ID)
	require.NoError(t, err)
	assert.Equal(t, "acme", kept.Name)
}

func TestWithTx_NestedJoinsOuterUnit(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	e := &model.ExternalEntity{Name: "old", Type: model.EntityOther}
	require.NoError(t, s.Entities().Create(ctx, e))

	err := s.WithTx(ctx, func(tx repository.LedgerStore) error {
		require.NoError(t, tx.WithTx(ctx, func(inner repository.LedgerStore) error {
			renamed := *e
			renamed.Name = "new"
			return inner.Entities().Update(ctx, &renamed)
		}))
		require.NoError(t, tx.Entities().Delete(ctx, e.ID))
		return errors.New("boom")
	})
	require.Error(t, err)

	got, err := s.Entities().FindByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "old", got.Name)
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	p := &model.Product{SKU: "A", Name: "a", Stock: 10}
	require.NoError(t, s.Products().Create(ctx, p))

	require.NoError(t, s.WithTx(ctx, func(tx repository.LedgerStore) error {
		_, err := tx.Products().AdjustStock(ctx, p.ID, 5, "t")
		return err
	}))

	got, err := s.Products().FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, got.Stock)
}

func TestTransactions_ReturnedCopiesAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	price := decimal.NewFromInt(2)
	pid := uuid.New()
	tx := &model.LedgerTransaction{
		EntityID: "e", Type: model.TxWeGave, ItemType: model.ItemProduct,
		ProductID: &pid, Quantity: 1, SalePrice: &price, Amount: price, Details: "x",
	}
	require.NoError(t, s.Transactions().Create(ctx, tx))

	got, err := s.Transactions().FindByID(ctx, tx.ID)
	require.NoError(t, err)
	*got.SalePrice = decimal.NewFromInt(99)

	again, err := s.Transactions().FindByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.True(t, again.SalePrice.Equal(decimal.NewFromInt(2)))
}

func TestTransactions_FindByEntityOrdersNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	add := func(created time.Time) uuid.UUID {
		tx := &model.LedgerTransaction{EntityID: "e", Type: model.TxWeGave, ItemType: model.ItemCash, Amount: decimal.NewFromInt(1), Details: "x"}
		tx.CreatedAt = created
		require.NoError(t, s.Transactions().Create(ctx, tx))
		return tx.ID
	}
	oldest := add(at)
	tieA := add(at.Add(time.Hour))
	tieB := add(at.Add(time.Hour))

	txs, err := s.Transactions().FindByEntity(ctx, "e")
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, []uuid.UUID{tieB, tieA, oldest}, []uuid.UUID{txs[0].ID, txs[1].ID, txs[2].ID})
}

func TestProducts_AdjustStockUnknown(t *testing.T) {
	s := NewStore()
	_, err := s.Products().AdjustStock(context.Background(), uuid.New(), 1, "t")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
