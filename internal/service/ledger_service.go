package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go-ledger-ws/internal/events"
	"go-ledger-ws/internal/model"
	"go-ledger-ws/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntityLookup resolves a counterparty id through the registry.
type EntityLookup interface {
	GetEntity(ctx context.Context, id string) (*model.LedgerEntity, error)
}

type LedgerService interface {
	AddTransaction(ctx context.Context, req *TransactionRequest, actorID string) (*model.LedgerTransaction, error)
	UpdateTransaction(ctx context.Context, id string, req *TransactionUpdateRequest, actorID string) (*model.LedgerTransaction, error)
	// DeleteTransaction reports false, with a nil error, when id is unknown.
	DeleteTransaction(ctx context.Context, id string, actorID string) (bool, error)
	GetTransaction(ctx context.Context, id string) (*model.LedgerTransaction, error)
	ListTransactionsByEntity(ctx context.Context, entityID string) ([]model.LedgerTransaction, error)
}

// TransactionRequest is the body of a new ledger transaction. Amount is
// ignored for product transactions; it is recomputed from quantity and the
// unit price matching the direction.
type TransactionRequest struct {
	EntityID      string                `json:"entity_id" validate:"required"`
	Type          model.TransactionType `json:"type" validate:"required,oneof=we_gave we_received"`
	ItemType      model.ItemType        `json:"item_type" validate:"required,oneof=cash product"`
	Amount        decimal.Decimal       `json:"amount"`
	Details       string                `json:"details" validate:"required"`
	ProductID     string                `json:"product_id" validate:"omitempty,uuid"`
	Quantity      int                   `json:"quantity" validate:"gte=0"`
	PurchasePrice *decimal.Decimal      `json:"purchase_price" validate:"omitempty,gte=0"`
	SalePrice     *decimal.Decimal      `json:"sale_price" validate:"omitempty,gte=0"`
}

// TransactionUpdateRequest carries only the fields being changed.
type TransactionUpdateRequest struct {
	EntityID      *string                `json:"entity_id"`
	Type          *model.TransactionType `json:"type" validate:"omitempty,oneof=we_gave we_received"`
	ItemType      *model.ItemType        `json:"item_type" validate:"omitempty,oneof=cash product"`
	Amount        *decimal.Decimal       `json:"amount"`
	Details       *string                `json:"details"`
	ProductID     *string                `json:"product_id" validate:"omitempty,uuid"`
	Quantity      *int                   `json:"quantity" validate:"omitempty,gte=0"`
	PurchasePrice *decimal.Decimal       `json:"purchase_price" validate:"omitempty,gte=0"`
	SalePrice     *decimal.Decimal       `json:"sale_price" validate:"omitempty,gte=0"`
}

type LedgerOption func(*ledgerService)

// WithClock replaces time.Now as the source of created_at stamps.
func WithClock(now func() time.Time) LedgerOption {
	return func(s *ledgerService) { s.now = now }
}

type ledgerService struct {
	store    repository.LedgerStore
	entities EntityLookup
	locks    *KeyedLocker
	events   events.Publisher
	now      func() time.Time
}

func NewLedgerService(store repository.LedgerStore, entities EntityLookup, locks *KeyedLocker, pub events.Publisher, opts ...LedgerOption) LedgerService {
	if pub == nil {
		pub = events.Nop{}
	}
	s := &ledgerService{
		store:    store,
		entities: entities,
		locks:    locks,
		events:   pub,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ledgerService) AddTransaction(ctx context.Context, req *TransactionRequest, actorID string) (*model.LedgerTransaction, error) {
	if req == nil {
		return nil, invalid("", "request body is required")
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	draft := &model.LedgerTransaction{
		EntityID: strings.TrimSpace(req.EntityID),
		Type:     req.Type,
		ItemType: req.ItemType,
		Amount:   req.Amount,
		Details:  strings.TrimSpace(req.Details),
	}
	if req.ItemType == model.ItemProduct {
		if err := setProduct(draft, req.ProductID); err != nil {
			return nil, err
		}
		draft.Quantity = req.Quantity
		draft.PurchasePrice = req.PurchasePrice
		draft.SalePrice = req.SalePrice
	} else if req.ProductID != "" || req.Quantity != 0 || req.PurchasePrice != nil || req.SalePrice != nil {
		return nil, invalid("product_id", "product fields are only allowed on product transactions")
	}
	if err := normalize(draft); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(lockKeys(draft)...)
	defer unlock()

	if err := s.resolve(ctx, draft); err != nil {
		return nil, err
	}

	draft.ID = uuid.New()
	draft.CreatedAt = s.now()
	draft.UpdatedAt = draft.CreatedAt
	draft.CreatedBy = actorID
	draft.UpdatedBy = actorID

	var stock []model.StockAdjustment
	err := s.store.WithTx(ctx, func(store repository.LedgerStore) error {
		if err := store.Transactions().Create(ctx, draft); err != nil {
			return err
		}
		adj, err := applyStock(ctx, store, draft, stockDelta(draft), actorID)
		if err != nil {
			return err
		}
		stock = appendAdjustment(stock, adj)
		return nil
	})
	// Publishing may wait on a broker; the keys are released first so the
	// next writer on the same entity or product is not held up by it. The
	// event time is taken under the locks so it follows commit order.
	at := time.Now()
	unlock()
	if err != nil {
		return nil, err
	}

	s.publish(events.TopicTransactionCreated, "transaction_created", draft, stock, actorID, at)
	return draft, nil
}

// UpdateTransaction reverses the stored transaction's stock effect, writes
// the merged state and applies the new effect, all in one unit of work. The
// reversal happens even when product and quantity are unchanged.
func (s *ledgerService) UpdateTransaction(ctx context.Context, id string, req *TransactionUpdateRequest, actorID string) (*model.LedgerTransaction, error) {
	if req == nil {
		return nil, invalid("", "request body is required")
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, notFound("transaction", id)
	}

	// Only holders of the transaction key modify this row, so the read
	// below stays valid while the entity/product keys are acquired.
	unlockTx := s.locks.Lock(txKey(id))
	defer unlockTx()

	existing, err := s.find(ctx, uid)
	if err != nil {
		return nil, err
	}

	merged, err := merge(existing, req)
	if err != nil {
		return nil, err
	}
	if err := normalize(merged); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(append(lockKeys(existing), lockKeys(merged)...)...)
	defer unlock()

	if err := s.resolve(ctx, merged); err != nil {
		return nil, err
	}
	merged.UpdatedBy = actorID

	var stock []model.StockAdjustment
	err = s.store.WithTx(ctx, func(store repository.LedgerStore) error {
		adj, err := applyStock(ctx, store, existing, reversalDelta(existing), actorID)
		if err != nil {
			return err
		}
		stock = appendAdjustment(stock, adj)

		if err := store.Transactions().Update(ctx, merged); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return notFound("transaction", id)
			}
			return err
		}

		adj, err = applyStock(ctx, store, merged, stockDelta(merged), actorID)
		if err != nil {
			return err
		}
		stock = appendAdjustment(stock, adj)
		return nil
	})
	at := time.Now()
	unlock()
	unlockTx()
	if err != nil {
		return nil, err
	}

	s.publish(events.TopicTransactionUpdated, "transaction_updated", merged, stock, actorID, at)
	return merged, nil
}

func (s *ledgerService) DeleteTransaction(ctx context.Context, id string, actorID string) (bool, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return false, nil
	}

	unlockTx := s.locks.Lock(txKey(id))
	defer unlockTx()

	existing, err := s.find(ctx, uid)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	unlock := s.locks.Lock(lockKeys(existing)...)
	defer unlock()

	var stock []model.StockAdjustment
	err = s.store.WithTx(ctx, func(store repository.LedgerStore) error {
		adj, err := applyStock(ctx, store, existing, reversalDelta(existing), actorID)
		if err != nil {
			return err
		}
		stock = appendAdjustment(stock, adj)
		return store.Transactions().Delete(ctx, uid)
	})
	at := time.Now()
	unlock()
	unlockTx()
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	s.publish(events.TopicTransactionDeleted, "transaction_deleted", existing, stock, actorID, at)
	return true, nil
}

func (s *ledgerService) GetTransaction(ctx context.Context, id string) (*model.LedgerTransaction, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, notFound("transaction", id)
	}
	return s.find(ctx, uid)
}

func (s *ledgerService) ListTransactionsByEntity(ctx context.Context, entityID string) ([]model.LedgerTransaction, error) {
	transactions, err := s.store.Transactions().FindByEntity(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if transactions == nil {
		transactions = []model.LedgerTransaction{}
	}
	return transactions, nil
}

func (s *ledgerService) find(ctx context.Context, id uuid.UUID) (*model.LedgerTransaction, error) {
	t, err := s.store.Transactions().FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("transaction", id.String())
	}
	return t, err
}

// resolve checks the counterparty exists and snapshots the product name.
func (s *ledgerService) resolve(ctx context.Context, t *model.LedgerTransaction) error {
	if _, err := s.entities.GetEntity(ctx, t.EntityID); err != nil {
		return err
	}
	if !t.IsProduct() {
		return nil
	}
	p, err := s.store.Products().FindByID(ctx, *t.ProductID)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound("product", t.ProductID.String())
	}
	if err != nil {
		return err
	}
	t.ProductName = p.Name
	return nil
}

func (s *ledgerService) publish(topic, action string, t *model.LedgerTransaction, stock []model.StockAdjustment, actorID string, now time.Time) {
	s.events.Publish(topic, events.TransactionEvent{
		Action:      action,
		Transaction: *t,
		Stock:       stock,
		ActorID:     actorID,
		OccurredAt:  now,
	})
	for _, adj := range stock {
		s.events.Publish(events.TopicStockUpdate, events.StockEvent{
			Action:        action,
			ProductName:   t.ProductName,
			Adjustment:    adj,
			TransactionID: t.ID.String(),
			ActorID:       actorID,
			OccurredAt:    now,
		})
	}
}

// merge overlays the set fields of req on a copy of existing. id,
// created_at and created_by are carried over untouched.
func merge(existing *model.LedgerTransaction, req *TransactionUpdateRequest) (*model.LedgerTransaction, error) {
	m := *existing
	oldPrice := existing.UnitPrice()

	if req.EntityID != nil {
		m.EntityID = strings.TrimSpace(*req.EntityID)
	}
	if req.Type != nil {
		m.Type = *req.Type
	}
	if req.ItemType != nil {
		m.ItemType = *req.ItemType
	}
	if req.Details != nil {
		m.Details = strings.TrimSpace(*req.Details)
	}
	if req.Amount != nil {
		m.Amount = *req.Amount
	}

	if !m.IsProduct() {
		return &m, nil
	}

	if req.ProductID != nil {
		if err := setProduct(&m, *req.ProductID); err != nil {
			return nil, err
		}
	}
	if req.Quantity != nil {
		m.Quantity = *req.Quantity
	}

	// Keep the previous unit price unless the field for the new direction
	// was sent; a direction flip moves it to the other price field.
	price := oldPrice
	if m.Type == model.TxWeGave && req.SalePrice != nil {
		price = *req.SalePrice
	}
	if m.Type == model.TxWeReceived && req.PurchasePrice != nil {
		price = *req.PurchasePrice
	}
	m.PurchasePrice, m.SalePrice = nil, nil
	if !price.IsZero() || req.SalePrice != nil || req.PurchasePrice != nil {
		p := price
		if m.Type == model.TxWeGave {
			m.SalePrice = &p
		} else {
			m.PurchasePrice = &p
		}
	}
	return &m, nil
}

// normalize enforces the field invariants of a transaction about to be
// written and derives amount for product transactions.
func normalize(t *model.LedgerTransaction) error {
	if t.EntityID == "" {
		return invalid("entity_id", "is required")
	}
	if t.Type != model.TxWeGave && t.Type != model.TxWeReceived {
		return invalid("type", "must be we_gave or we_received")
	}
	if blank(t.Details) {
		return invalid("details", "must not be empty")
	}

	switch t.ItemType {
	case model.ItemCash:
		t.ProductID = nil
		t.ProductName = ""
		t.Quantity = 0
		t.PurchasePrice = nil
		t.SalePrice = nil
	case model.ItemProduct:
		if t.ProductID == nil || *t.ProductID == uuid.Nil {
			return invalid("product_id", "is required for product transactions")
		}
		if t.Quantity <= 0 {
			return invalid("quantity", "must be greater than zero")
		}
		if t.Type == model.TxWeGave {
			if t.SalePrice == nil {
				return invalid("sale_price", "is required when we_gave a product")
			}
			t.PurchasePrice = nil
		} else {
			if t.PurchasePrice == nil {
				return invalid("purchase_price", "is required when we_received a product")
			}
			t.SalePrice = nil
		}
		t.Amount = t.UnitPrice().Mul(decimal.NewFromInt(int64(t.Quantity))).Round(2)
	default:
		return invalid("item_type", "must be cash or product")
	}

	if !t.Amount.IsPositive() {
		return invalid("amount", "must be greater than zero")
	}
	return nil
}

func setProduct(t *model.LedgerTransaction, productID string) error {
	if blank(productID) {
		t.ProductID = nil
		return nil
	}
	pid, err := uuid.Parse(strings.TrimSpace(productID))
	if err != nil {
		return invalid("product_id", "must be a valid UUID")
	}
	t.ProductID = &pid
	return nil
}

func lockKeys(t *model.LedgerTransaction) []string {
	keys := []string{entityKey(t.EntityID)}
	if t.IsProduct() && t.ProductID != nil {
		keys = append(keys, productKey(t.ProductID.String()))
	}
	return keys
}

func appendAdjustment(list []model.StockAdjustment, adj *model.StockAdjustment) []model.StockAdjustment {
	if adj == nil {
		return list
	}
	return append(list, *adj)
}
