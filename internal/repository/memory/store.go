// Package memory provides in-process implementations of the repository
// interfaces. State is lost on exit; it backs tests and local experiments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"go-ledger-ws/internal/model"
	"go-ledger-ws/internal/repository"

	"github.com/google/uuid"
)

type state struct {
	products     map[uuid.UUID]model.Product
	transactions map[uuid.UUID]model.LedgerTransaction
	seq          map[uuid.UUID]int64
	entities     map[uuid.UUID]model.ExternalEntity
	users        map[uuid.UUID]model.User
	nextSeq      int64
}

// journal records how to undo each write made through one unit of work.
// A nil journal records nothing.
type journal struct {
	undo []func(*state)
}

func (j *journal) product(st *state, id uuid.UUID) {
	if j == nil {
		return
	}
	old, existed := st.products[id]
	j.undo = append(j.undo, func(st *state) {
		if existed {
			st.products[id] = old
		} else {
			delete(st.products, id)
		}
	})
}

func (j *journal) transaction(st *state, id uuid.UUID) {
	if j == nil {
		return
	}
	old, existed := st.transactions[id]
	oldSeq, hadSeq := st.seq[id]
	j.undo = append(j.undo, func(st *state) {
		if existed {
			st.transactions[id] = old
		} else {
			delete(st.transactions, id)
		}
		if hadSeq {
			st.seq[id] = oldSeq
		} else {
			delete(st.seq, id)
		}
	})
}

func (j *journal) entity(st *state, id uuid.UUID) {
	if j == nil {
		return
	}
	old, existed := st.entities[id]
	j.undo = append(j.undo, func(st *state) {
		if existed {
			st.entities[id] = old
		} else {
			delete(st.entities, id)
		}
	})
}

func (j *journal) rollback(st *state) {
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i](st)
	}
}

// Store is a LedgerStore plus a UserRepository over plain maps.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	st   *state
}

func NewStore() *Store {
	return &Store{st: &state{
		products:     make(map[uuid.UUID]model.Product),
		transactions: make(map[uuid.UUID]model.LedgerTransaction),
		seq:          make(map[uuid.UUID]int64),
		entities:     make(map[uuid.UUID]model.ExternalEntity),
		users:        make(map[uuid.UUID]model.User),
	}}
}

func (s *Store) Products() repository.ProductRepository         { return productRepo{s: s} }
func (s *Store) Transactions() repository.TransactionRepository { return transactionRepo{s: s} }
func (s *Store) Entities() repository.EntityRepository          { return entityRepo{s: s} }
func (s *Store) Users() repository.UserRepository               { return userRepo{s} }

// WithTx runs fn against a store that journals its writes. If fn fails only
// those writes are undone; writes made meanwhile through s itself stay.
// Units of work are serialized against each other.
func (s *Store) WithTx(_ context.Context, fn func(repository.LedgerStore) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &txStore{s: s, j: &journal{}}
	if err := fn(tx); err != nil {
		s.mu.Lock()
		tx.j.rollback(s.st)
		s.mu.Unlock()
		return err
	}
	return nil
}

// txStore is the store bound to one unit of work.
type txStore struct {
	s *Store
	j *journal
}

func (t *txStore) Products() repository.ProductRepository         { return productRepo{t.s, t.j} }
func (t *txStore) Transactions() repository.TransactionRepository { return transactionRepo{t.s, t.j} }
func (t *txStore) Entities() repository.EntityRepository          { return entityRepo{t.s, t.j} }

// WithTx joins the enclosing unit of work.
func (t *txStore) WithTx(_ context.Context, fn func(repository.LedgerStore) error) error {
	return fn(t)
}

func cloneTx(t model.LedgerTransaction) model.LedgerTransaction {
	if t.ProductID != nil {
		id := *t.ProductID
		t.ProductID = &id
	}
	if t.PurchasePrice != nil {
		p := *t.PurchasePrice
		t.PurchasePrice = &p
	}
	if t.SalePrice != nil {
		p := *t.SalePrice
		t.SalePrice = &p
	}
	return t
}

func stamp(base *model.BaseModel) {
	if base.ID == uuid.Nil {
		base.ID = uuid.New()
	}
	now := time.Now()
	if base.CreatedAt.IsZero() {
		base.CreatedAt = now
	}
	base.UpdatedAt = now
}

// =============================================================================
// PRODUCTS
// =============================================================================

type productRepo struct {
	s *Store
	j *journal
}

func (r productRepo) Create(_ context.Context, product *model.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stamp(&product.BaseModel)
	r.j.product(r.s.st, product.ID)
	r.s.st.products[product.ID] = *product
	return nil
}

func (r productRepo) FindAll(_ context.Context) ([]model.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	products := make([]model.Product, 0, len(r.s.st.products))
	for _, p := range r.s.st.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products, nil
}

func (r productRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.st.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r productRepo) FindBySKU(_ context.Context, sku string) (*model.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, p := range r.s.st.products {
		if p.SKU == sku {
			return &p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r productRepo) Update(_ context.Context, product *model.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.st.products[product.ID]
	if !ok {
		return repository.ErrNotFound
	}
	p.SKU = product.SKU
	p.Name = product.Name
	p.Unit = product.Unit
	p.Price = product.Price
	p.UpdatedBy = product.UpdatedBy
	p.UpdatedAt = time.Now()
	r.j.product(r.s.st, product.ID)
	r.s.st.products[product.ID] = p
	return nil
}

func (r productRepo) AdjustStock(_ context.Context, id uuid.UUID, delta int, updatedBy string) (*model.StockAdjustment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.st.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	newStock, deficit := model.ApplyStockDelta(p.Stock, delta)
	adj := &model.StockAdjustment{
		ProductID: id.String(),
		OldStock:  p.Stock,
		NewStock:  newStock,
		Delta:     delta,
		Deficit:   deficit,
		Clamped:   deficit > 0,
	}
	p.Stock = newStock
	p.UpdatedBy = updatedBy
	p.UpdatedAt = time.Now()
	r.j.product(r.s.st, id)
	r.s.st.products[id] = p
	return adj, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

type transactionRepo struct {
	s *Store
	j *journal
}

func (r transactionRepo) Create(_ context.Context, t *model.LedgerTransaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stamp(&t.BaseModel)
	r.j.transaction(r.s.st, t.ID)
	r.s.st.nextSeq++
	r.s.st.seq[t.ID] = r.s.st.nextSeq
	r.s.st.transactions[t.ID] = cloneTx(*t)
	return nil
}

func (r transactionRepo) Update(_ context.Context, t *model.LedgerTransaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.st.transactions[t.ID]
	if !ok {
		return repository.ErrNotFound
	}
	updated := cloneTx(*t)
	updated.CreatedAt = existing.CreatedAt
	updated.CreatedBy = existing.CreatedBy
	updated.UpdatedAt = time.Now()
	r.j.transaction(r.s.st, t.ID)
	r.s.st.transactions[t.ID] = updated
	return nil
}

func (r transactionRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.st.transactions[id]; !ok {
		return repository.ErrNotFound
	}
	r.j.transaction(r.s.st, id)
	delete(r.s.st.transactions, id)
	delete(r.s.st.seq, id)
	return nil
}

func (r transactionRepo) FindByID(_ context.Context, id uuid.UUID) (*model.LedgerTransaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.st.transactions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	t = cloneTx(t)
	return &t, nil
}

// FindByEntity orders by created_at descending; equal timestamps fall back
// to insertion order, newest insertion first.
func (r transactionRepo) FindByEntity(_ context.Context, entityID string) ([]model.LedgerTransaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []model.LedgerTransaction
	for _, t := range r.s.st.transactions {
		if t.EntityID == entityID {
			result = append(result, cloneTx(t))
		}
	}
	seq := r.s.st.seq
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return seq[result[i].ID] > seq[result[j].ID]
	})
	return result, nil
}

func (r transactionRepo) CountByEntity(_ context.Context, entityID string) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var n int64
	for _, t := range r.s.st.transactions {
		if t.EntityID == entityID {
			n++
		}
	}
	return n, nil
}

func (r transactionRepo) GetStockMovement(_ context.Context, startDate, endDate time.Time) ([]repository.StockMovementData, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	byDate := map[string]*repository.StockMovementData{}
	for _, t := range r.s.st.transactions {
		if !t.IsProduct() || t.CreatedAt.Before(startDate) || t.CreatedAt.After(endDate) {
			continue
		}
		day := t.CreatedAt.Format("2006-01-02")
		d, ok := byDate[day]
		if !ok {
			d = &repository.StockMovementData{Date: day}
			byDate[day] = d
		}
		if t.Type == model.TxWeReceived {
			d.Inbound += t.Quantity
		} else {
			d.Outbound += t.Quantity
		}
	}
	result := make([]repository.StockMovementData, 0, len(byDate))
	for _, d := range byDate {
		result = append(result, *d)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Date < result[j].Date })
	return result, nil
}

// =============================================================================
// EXTERNAL ENTITIES
// =============================================================================

type entityRepo struct {
	s *Store
	j *journal
}

func (r entityRepo) Create(_ context.Context, e *model.ExternalEntity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stamp(&e.BaseModel)
	r.j.entity(r.s.st, e.ID)
	r.s.st.entities[e.ID] = *e
	return nil
}

func (r entityRepo) Update(_ context.Context, e *model.ExternalEntity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.st.entities[e.ID]; !ok {
		return repository.ErrNotFound
	}
	e.UpdatedAt = time.Now()
	r.j.entity(r.s.st, e.ID)
	r.s.st.entities[e.ID] = *e
	return nil
}

func (r entityRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.st.entities[id]; !ok {
		return repository.ErrNotFound
	}
	r.j.entity(r.s.st, id)
	delete(r.s.st.entities, id)
	return nil
}

func (r entityRepo) FindByID(_ context.Context, id uuid.UUID) (*model.ExternalEntity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	e, ok := r.s.st.entities[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

func (r entityRepo) FindAll(_ context.Context) ([]model.ExternalEntity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	result := make([]model.ExternalEntity, 0, len(r.s.st.entities))
	for _, e := range r.s.st.entities {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

// =============================================================================
// USERS
// =============================================================================

type userRepo struct{ s *Store }

func (r userRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.st.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r userRepo) FindByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.st.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r userRepo) FindByRoleCodes(_ context.Context, codes ...string) ([]model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	want := make(map[string]bool, len(codes))
	for _, c := range codes {
		want[c] = true
	}
	var result []model.User
	for _, u := range r.s.st.users {
		if want[u.RoleCode()] {
			result = append(result, u)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (r userRepo) FindAll(_ context.Context) ([]model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	result := make([]model.User, 0, len(r.s.st.users))
	for _, u := range r.s.st.users {
		result = append(result, u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (r userRepo) Create(_ context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stamp(&user.BaseModel)
	r.s.st.users[user.ID] = *user
	return nil
}

func (r userRepo) Update(_ context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.st.users[user.ID]; !ok {
		return repository.ErrNotFound
	}
	user.UpdatedAt = time.Now()
	r.s.st.users[user.ID] = *user
	return nil
}

func (r userRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.st.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.st.users, id)
	return nil
}

func (r userRepo) UpdateTokenVersion(_ context.Context, userID uuid.UUID, version string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.st.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.TokenVersion = version
	r.s.st.users[userID] = u
	return nil
}

// Compile-time checks
var (
	_ repository.LedgerStore    = (*Store)(nil)
	_ repository.LedgerStore    = (*txStore)(nil)
	_ repository.UserRepository = userRepo{}
)
