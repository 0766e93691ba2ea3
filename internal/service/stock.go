package service

import (
	"context"
	"errors"
	"log"

	"go-ledger-ws/internal/model"
	"go-ledger-ws/internal/repository"
)

// stockDelta is the stock change recording t causes: goods received add
// stock, goods given away remove it. Cash transactions move nothing.
func stockDelta(t *model.LedgerTransaction) int {
	if !t.IsProduct() {
		return 0
	}
	if t.Type == model.TxWeReceived {
		return t.Quantity
	}
	return -t.Quantity
}

// reversalDelta undoes stockDelta.
func reversalDelta(t *model.LedgerTransaction) int {
	return -stockDelta(t)
}

// applyStock pushes delta for t's product through the store. It returns nil
// for cash transactions. A clamp at zero is logged; the adjustment carries
// the lost deficit.
func applyStock(ctx context.Context, store repository.LedgerStore, t *model.LedgerTransaction, delta int, actorID string) (*model.StockAdjustment, error) {
	if !t.IsProduct() || t.ProductID == nil {
		return nil, nil
	}
	adj, err := store.Products().AdjustStock(ctx, *t.ProductID, delta, actorID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound("product", t.ProductID.String())
		}
		return nil, err
	}
	if adj.Clamped {
		log.Printf("stock clamped at zero: product=%s tx=%s delta=%d deficit=%d",
			adj.ProductID, t.ID, delta, adj.Deficit)
	}
	return adj, nil
}
