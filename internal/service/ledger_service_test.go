package service

import (
	"errors"
	"sync"
	"testing"
	"time"

	"go-ledger-ws/internal/events"
	"go-ledger-ws/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// SCENARIOS
// =============================================================================

func TestLedger_CashThenGoodsThenDelete(t *testing.T) {
	f := newFixture(t)
	e1 := f.customer(t, "e1")
	p1 := f.product(t, "rice", 0)

	// GIVEN: a fresh entity
	requireDecimal(t, "0", f.balance(t, e1))

	// WHEN: we give 500 in cash
	first := f.cash(t, e1, model.TxWeGave, "500")
	requireDecimal(t, "500", f.balance(t, e1))

	// WHEN: we receive 100 units at 3.00
	received := f.goods(t, e1, model.TxWeReceived, p1, 100, "3.00")
	requireDecimal(t, "300", received.Amount)
	requireDecimal(t, "200", f.balance(t, e1))

	// WHEN: the cash transaction is deleted
	ok, err := f.ledger.DeleteTransaction(f.ctx, first.ID.String(), "tester")
	require.NoError(t, err)
	assert.True(t, ok)

	// THEN: only the goods remain and the business owes the entity
	requireDecimal(t, "-300", f.balance(t, e1))
	assert.Equal(t, 100, f.stock(t, p1))
}

func TestLedger_UpdateQuantityReversesThenReapplies(t *testing.T) {
	f := newFixture(t)
	e := f.supplier(t, "acme")
	p1 := f.product(t, "p1", 50)

	tx := f.goods(t, e, model.TxWeReceived, p1, 10, "2.50")
	assert.Equal(t, 60, f.stock(t, p1))

	updated, err := f.ledger.UpdateTransaction(f.ctx, tx.ID.String(), &TransactionUpdateRequest{
		Quantity: ptr(5),
	}, "tester")
	require.NoError(t, err)

	assert.Equal(t, 55, f.stock(t, p1))
	assert.Equal(t, 5, updated.Quantity)
	requireDecimal(t, "12.5", updated.Amount)
	assert.Equal(t, tx.CreatedAt, updated.CreatedAt)
	assert.Equal(t, tx.CreatedBy, updated.CreatedBy)
}

// =============================================================================
// STOCK SYNCHRONIZATION
// =============================================================================

func TestLedger_AddThenDeleteRestoresStock(t *testing.T) {
	f := newFixture(t)
	e := f.customer(t, "ann")
	p := f.product(t, "soap", 40)

	for _, typ := range []model.TransactionType{model.TxWeGave, model.TxWeReceived} {
		tx := f.goods(t, e, typ, p, 7, "1.20")
		ok, err := f.ledger.DeleteTransaction(f.ctx, tx.ID.String(), "tester")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 40, f.stock(t, p), "type %s", typ)
	}
}

func TestLedger_IdenticalUpdateLeavesStock(t *testing.T) {
	f := newFixture(t)
	e := f.customer(t, "ann")
	p := f.product(t, "soap", 40)
	tx := f.goods(t, e, model.TxWeGave, p, 7, "1.20")
	require.Equal(t, 33, f.stock(t, p))

	// empty update and an update repeating the stored values
	_, err := f.ledger.UpdateTransaction(f.ctx, tx.ID.String(), &TransactionUpdateRequest{}, "tester")
	require.NoError(t, err)
	assert.Equal(t, 33, f.stock(t, p))

	_, err = f.ledger.UpdateTransaction(f.ctx, tx.ID.String(), &TransactionUpdateRequest{
		Type:      ptr(model.TxWeGave),
		ProductID: ptr(p),
		Quantity:  ptr(7),
		SalePrice: ptr(dec("1.20")),
	}, "tester")
	require.NoError(t, err)
	assert.Equal(t, 33, f.stock(t, p))
}

func TestLedger_UpdateMovesStockBetweenProducts(t *testing.T) {
	f := newFixture(t)
	e := f.customer(t, "ann")
	p1 := f.product(t, "p1", 20)
	p2 := f.product(t, "p2", 20)

	tx := f.goods(t, e, model.TxWeGave, p1, 5, "4")
	require.Equal(t, 15, f.stock(t, p1))

	updated, err := f.ledger.UpdateTransaction(f.ctx, tx.ID.String(), &TransactionUpdateRequest{
		ProductID: ptr(p2),
	}, "tester")
	require.NoError(t, err)

	assert.Equal(t, 20, f.stock(t, p1))
	assert.Equal(t, 15, f.stock(t, p2))
	assert.Equal(t, "p2", updated.ProductName)
}

func TestLedger_UpdateFlipsDirection(t *testing.T) {
	f := newFixture(t)
	e := f.customer(t, "ann")
	p := f.product(t, "p", 50)

	tx := f.goods(t, e, model.TxWeReceived, p, 10, "3")
	require.Equal(t, 60, f.stock(t, p))

	updated, err := f.ledger.UpdateTransaction(f.ctx, tx.ID.String(), &TransactionUpdateRequest{
		Type:      ptr(model.TxWeGave),
		SalePrice: ptr(dec("5")),
	}, "tester")
	require.NoError(t, err)

	assert.Equal(t, 40, f.stock(t, p))
	assert.Nil(t, updated.PurchasePrice)
	require.NotNil(t, updated.SalePrice)
	requireDecimal(t, "50", updated.Amount)
	requireDecimal(t, "50", f.balance(t, e))
}

func TestLedger_UpdateProductToCashReversesStock(t *testing.T) {
	f := newFixture(t)
	e := f.customer(t, "ann")
	p := f.product(t, "p", 10)
	tx := f.goods(t, e, model.TxWeGave, p, 4, "2")
	require.Equal(t, 6, f.stock(t, p))

	updated, err := f.ledger.UpdateTransaction(f.ctx, tx.ID.String(), &TransactionUpdateRequest{
		ItemType: ptr(model.ItemCash),
		Amount:   ptr(dec("99")),
	}, "tester")
	require.NoError(t, err)

	assert.Equal(t, 10, f.stock(t, p))
	assert.Nil(t, updated.ProductID)
	assert.Zero(t, updated.Quantity)
	requireDecimal(t, "99", updated.Amount)
}

func TestLedger_StockClampsAtZero(t *testing.T) {
	f := newFixture(t)
	e := f.customer(t, "ann")
	p := f.product(t, "p", 50)

	f.goods(t, e, model.TxWeGave, p, 80, "1")
	assert.Equal(t, 0, f.stock(t, p))

	stockEvents := f.events.byTopic(events.TopicStockUpdate)
	require.Len(t, stockEvents, 1)
	adj := stockEvents[0].(events.StockEvent).Adjustment
	assert.True(t, adj.Clamped)
	assert.Equal(t, 30, adj.Deficit)
	assert.Equal(t, 50, adj.OldStock)
	assert.Equal(t, 0, adj.NewStock)
}

func TestLedger_CashDoesNotTouchStock(t *testing.T) {
	f := newFixture(t)
	e := f.customer(t, "ann")
	p := f.product(t, "p", 5)

	f.cash(t, e, model.TxWeReceived, "12.34")

	assert.Equal(t, 5, f.stock(t, p))
	assert.Empty(t, f.events.byTopic(events.TopicStockUpdate))
	assert.Len(t, f.events.byTopic(events.TopicTransactionCreated), 1)
}

// =============================================================================
// VALIDATION AND LOOKUPS
// =============================================================================

func TestLedger_RejectsInvalidRequestsWithoutSideEffects(t *testing.T) {
	f := newFixture(t)
	e := f.customer(t, "ann")
	p := f.product(t, "p", 10)

	cases := map[string]*TransactionRequest{
		"missing details": {EntityID: e, Type: model.TxWeGave, ItemType: model.ItemCash, Amount: dec("5")},
		"unknown type":    {EntityID: e, Type: "we_lent", ItemType: model.ItemCash, Amount: dec("5"), Details: "x"},
		"zero amount":     {EntityID: e, Type: model.TxWeGave, ItemType: model.ItemCash, Amount: decimal.Zero, Details: "x"},
		"negative amount": {EntityID: e, Type: model.TxWeGave, ItemType: model.ItemCash, Amount: dec("-1"), Details: "x"},
		"cash with quantity": {
			EntityID: e, Type: model.TxWeGave, ItemType: model.ItemCash, Amount: dec("5"), Details: "x", Quantity: 3,
		},
		"product without id": {
			EntityID: e, Type: model.TxWeGave, ItemType: model.ItemProduct, Details: "x", Quantity: 1, SalePrice: ptr(dec("1")),
		},
		"product without quantity": goodsRequest(e, model.TxWeGave, p, 0, "1"),
		"received without purchase price": {
			EntityID: e, Type: model.TxWeReceived, ItemType: model.ItemProduct, Details: "x",
			ProductID: p, Quantity: 1, SalePrice: ptr(dec("1")),
		},
		"zero price": goodsRequest(e, model.TxWeGave, p, 2, "0"),
	}

	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.ledger.AddTransaction(f.ctx, req, "tester")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	txs, err := f.ledger.ListTransactionsByEntity(f.ctx, e)
	require.NoError(t, err)
	assert.Empty(t, txs)
	assert.Equal(t, 10, f.stock(t, p))
	assert.Empty(t, f.events.byTopic(events.TopicTransactionCreated))
}

func TestLedger_UnknownReferences(t *testing.T) {
	f := newFixture(t)
	e := f.customer(t, "ann")
	p := f.product(t, "p", 10)

	_, err := f.ledger.AddTransaction(f.ctx, goodsRequest(uuid.NewString(), model.TxWeGave, p, 1, "1"), "tester")
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "entity", nf.Resource)

	_, err = f.ledger.AddTransaction(f.ctx, goodsRequest(e, model.TxWeGave, uuid.NewString(), 1, "1"), "tester")
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "product", nf.Resource)

	_, err = f.ledger.UpdateTransaction(f.ctx, uuid.NewString(), &TransactionUpdateRequest{}, "tester")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.ledger.GetTransaction(f.ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 10, f.stock(t, p))
}

func TestLedger_DeleteUnknownReportsFalse(t *testing.T) {
	f := newFixture(t)

	ok, err := f.ledger.DeleteTransaction(f.ctx, uuid.NewString(), "tester")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.ledger.DeleteTransaction(f.ctx, "garbage", "tester")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Empty(t, f.events.byTopic(events.TopicTransactionDeleted))
}

func TestLedger_ProductAmountIsDerived(t *testing.T) {
	f := newFixture(t)
	e := f.customer(t, "ann")
	p := f.product(t, "p", 10)

	req := goodsRequest(e, model.TxWeGave, p, 3, "0.335")
	req.Amount = dec("1000")
	tx, err := f.ledger.AddTransaction(f.ctx, req, "tester")
	require.NoError(t, err)

	requireDecimal(t, "1.01", tx.Amount)
	assert.Equal(t, "p", tx.ProductName)
	assert.Nil(t, tx.PurchasePrice)
}

func TestLedger_ListIsNewestFirst(t *testing.T) {
	f := newFixture(t)
	e := f.customer(t, "ann")
	a := f.cash(t, e, model.TxWeGave, "1")
	b := f.cash(t, e, model.TxWeGave, "2")
	c := f.cash(t, e, model.TxWeReceived, "3")

	txs, err := f.ledger.ListTransactionsByEntity(f.ctx, e)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, []uuid.UUID{c.ID, b.ID, a.ID}, []uuid.UUID{txs[0].ID, txs[1].ID, txs[2].ID})

	other, err := f.ledger.ListTransactionsByEntity(f.ctx, uuid.NewString())
	require.NoError(t, err)
	assert.NotNil(t, other)
	assert.Empty(t, other)
}

// =============================================================================
// EVENTS AND CONCURRENCY
// =============================================================================

func TestLedger_PublishesAfterCommit(t *testing.T) {
	f := newFixture(t)
	e := f.customer(t, "ann")
	p := f.product(t, "p", 10)

	tx := f.goods(t, e, model.TxWeReceived, p, 2, "1")
	_, err := f.ledger.UpdateTransaction(f.ctx, tx.ID.String(), &TransactionUpdateRequest{Quantity: ptr(3)}, "tester")
	require.NoError(t, err)
	_, err = f.ledger.DeleteTransaction(f.ctx, tx.ID.String(), "tester")
	require.NoError(t, err)

	require.Len(t, f.events.byTopic(events.TopicTransactionCreated), 1)
	require.Len(t, f.events.byTopic(events.TopicTransactionDeleted), 1)
	updated := f.events.byTopic(events.TopicTransactionUpdated)
	require.Len(t, updated, 1)

	evt := updated[0].(events.TransactionEvent)
	assert.Equal(t, "transaction_updated", evt.Action)
	require.Len(t, evt.Stock, 2)
	assert.Equal(t, -2, evt.Stock[0].Delta)
	assert.Equal(t, 3, evt.Stock[1].Delta)

	// one stock event on create, two on update, one on delete
	assert.Len(t, f.events.byTopic(events.TopicStockUpdate), 4)
}

func TestLedger_ConcurrentSalesKeepStockAndBalanceConsistent(t *testing.T) {
	f := newFixture(t)
	e1 := f.customer(t, "ann")
	e2 := f.customer(t, "bob")
	p := f.product(t, "p", 100)

	const workers = 40
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entity := e1
			if i%2 == 1 {
				entity = e2
			}
			_, err := f.ledger.AddTransaction(f.ctx, goodsRequest(entity, model.TxWeGave, p, 1, "2.50"), "tester")
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, 60, f.stock(t, p))
	requireDecimal(t, "50", f.balance(t, e1))
	requireDecimal(t, "50", f.balance(t, e2))
}

// gatedPublisher blocks every Publish until release is closed, the way a
// broker write waits on the network.
type gatedPublisher struct {
	entered chan struct{}
	release chan struct{}
}

func newGatedPublisher() *gatedPublisher {
	return &gatedPublisher{entered: make(chan struct{}, 16), release: make(chan struct{})}
}

func (g *gatedPublisher) Publish(string, any) error {
	select {
	case g.entered <- struct{}{}:
	default:
	}
	<-g.release
	return nil
}

func TestLedger_SlowPublishDoesNotHoldKeys(t *testing.T) {
	f := newFixture(t)
	sup := f.supplier(t, "acme")
	p := f.product(t, "p", 10)
	gate := newGatedPublisher()
	slow := NewLedgerService(f.store, f.entities, f.locks, gate)
	defer close(gate.release)

	// GIVEN a committed write whose event is stuck in Publish
	first := make(chan error, 1)
	go func() {
		_, err := slow.AddTransaction(f.ctx, goodsRequest(sup, model.TxWeReceived, p, 5, "2"), "tester")
		first <- err
	}()
	select {
	case <-gate.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first write never reached Publish")
	}

	// THEN its entity and product keys are already free
	assert.Equal(t, 0, f.locks.size())

	// WHEN another write hits the same entity and product
	second := make(chan error, 1)
	go func() {
		_, err := f.ledger.AddTransaction(f.ctx, goodsRequest(sup, model.TxWeGave, p, 3, "4"), "tester")
		second <- err
	}()

	// THEN it completes without waiting for the first event to go out
	select {
	case err := <-second:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("write on the same entity waited for another write's Publish")
	}
	assert.Equal(t, 12, f.stock(t, p))
	requireDecimal(t, "2", f.balance(t, sup))
}

func TestLedger_SlowPublishOnUpdateAndDeleteReleasesKeys(t *testing.T) {
	f := newFixture(t)
	e := f.customer(t, "ann")
	p := f.product(t, "p", 10)
	tx := f.goods(t, e, model.TxWeGave, p, 2, "1")
	gate := newGatedPublisher()
	slow := NewLedgerService(f.store, f.entities, f.locks, gate)
	defer close(gate.release)

	for _, run := range []func() error{
		func() error {
			_, err := slow.UpdateTransaction(f.ctx, tx.ID.String(), &TransactionUpdateRequest{Quantity: ptr(4)}, "tester")
			return err
		},
		func() error {
			_, err := slow.DeleteTransaction(f.ctx, tx.ID.String(), "tester")
			return err
		},
	} {
		go func() { _ = run() }()
		select {
		case <-gate.entered:
		case <-time.After(2 * time.Second):
			t.Fatal("write never reached Publish")
		}
		// tx, entity and product keys are all released before Publish
		assert.Equal(t, 0, f.locks.size())
	}
}
