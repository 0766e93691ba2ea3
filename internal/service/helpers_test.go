package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"go-ledger-ws/internal/model"
	"go-ledger-ws/internal/repository/memory"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type published struct {
	Topic string
	Event any
}

type recorder struct {
	mu     sync.Mutex
	events []published
}

func (r *recorder) Publish(topic string, event any) error {
	r.mu.Lock()
	r.events = append(r.events, published{Topic: topic, Event: event})
	r.mu.Unlock()
	return nil
}

func (r *recorder) byTopic(topic string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []any
	for _, e := range r.events {
		if e.Topic == topic {
			out = append(out, e.Event)
		}
	}
	return out
}

// stepClock returns a strictly increasing time on every call.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Minute)
	return c.now
}

type fixture struct {
	ctx      context.Context
	store    *memory.Store
	locks    *KeyedLocker
	events   *recorder
	entities EntityService
	ledger   LedgerService
	balances BalanceService
	products ProductService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	locks := NewKeyedLocker()
	rec := &recorder{}
	clock := &stepClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}

	entities := NewEntityService(store.Users(), store, locks, rec)
	return &fixture{
		ctx:      context.Background(),
		store:    store,
		locks:    locks,
		events:   rec,
		entities: entities,
		ledger:   NewLedgerService(store, entities, locks, rec, WithClock(clock.Now)),
		balances: NewBalanceService(store.Transactions(), entities),
		products: NewProductService(store, locks, rec),
	}
}

// directoryUser stores a user holding roleCode and returns its id.
func (f *fixture) directoryUser(t *testing.T, name, roleCode string) string {
	t.Helper()
	u := &model.User{
		Email:       name + "@example.com",
		FullName:    name,
		PhoneNumber: "0800-" + name,
		Role:        &model.Role{Code: roleCode, Name: roleCode},
		IsActive:    true,
	}
	u.ID = uuid.New()
	require.NoError(t, f.store.Users().Create(f.ctx, u))
	return u.ID.String()
}

func (f *fixture) customer(t *testing.T, name string) string {
	return f.directoryUser(t, name, model.RoleCustomer)
}

func (f *fixture) supplier(t *testing.T, name string) string {
	t.Helper()
	e, err := f.entities.AddExternalEntity(f.ctx, &ExternalEntityRequest{
		Name: name,
		Type: model.EntitySupplier,
	}, "tester")
	require.NoError(t, err)
	return e.ID
}

func (f *fixture) product(t *testing.T, name string, stock int) string {
	t.Helper()
	p, err := f.products.CreateProduct(f.ctx, &ProductRequest{
		SKU:   "SKU-" + name,
		Name:  name,
		Stock: stock,
		Price: decimal.NewFromInt(10),
	}, "tester")
	require.NoError(t, err)
	return p.ID.String()
}

func (f *fixture) stock(t *testing.T, productID string) int {
	t.Helper()
	p, err := f.products.GetProduct(f.ctx, productID)
	require.NoError(t, err)
	return p.Stock
}

func (f *fixture) balance(t *testing.T, entityID string) decimal.Decimal {
	t.Helper()
	b, err := f.balances.BalanceOf(f.ctx, entityID)
	require.NoError(t, err)
	return b
}

func (f *fixture) cash(t *testing.T, entityID string, typ model.TransactionType, amount string) *model.LedgerTransaction {
	t.Helper()
	tx, err := f.ledger.AddTransaction(f.ctx, &TransactionRequest{
		EntityID: entityID,
		Type:     typ,
		ItemType: model.ItemCash,
		Amount:   decimal.RequireFromString(amount),
		Details:  "cash " + amount,
	}, "tester")
	require.NoError(t, err)
	return tx
}

func (f *fixture) goods(t *testing.T, entityID string, typ model.TransactionType, productID string, qty int, price string) *model.LedgerTransaction {
	t.Helper()
	tx, err := f.ledger.AddTransaction(f.ctx, goodsRequest(entityID, typ, productID, qty, price), "tester")
	require.NoError(t, err)
	return tx
}

func goodsRequest(entityID string, typ model.TransactionType, productID string, qty int, price string) *TransactionRequest {
	p := decimal.RequireFromString(price)
	req := &TransactionRequest{
		EntityID:  entityID,
		Type:      typ,
		ItemType:  model.ItemProduct,
		Details:   "goods",
		ProductID: productID,
		Quantity:  qty,
	}
	if typ == model.TxWeGave {
		req.SalePrice = &p
	} else {
		req.PurchasePrice = &p
	}
	return req
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "expected %s, got %s", want, got)
}

func ptr[T any](v T) *T { return &v }
