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

// ProductService owns the authoritative stock quantity of each product.
type ProductService interface {
	CreateProduct(ctx context.Context, req *ProductRequest, actorID string) (*model.Product, error)
	UpdateProduct(ctx context.Context, id string, req *ProductRequest, actorID string) (*model.Product, error)
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	GetAllProducts(ctx context.Context) ([]model.Product, error)
	// AdjustStock applies a manual correction, floored at zero like ledger
	// driven changes.
	AdjustStock(ctx context.Context, id string, req *StockAdjustRequest, actorID string) (*model.StockAdjustment, error)
}

type ProductRequest struct {
	SKU   string          `json:"sku" validate:"required,max=50"`
	Name  string          `json:"name" validate:"required,max=255"`
	Stock int             `json:"stock" validate:"gte=0"` // opening stock, create only
	Unit  string          `json:"unit" validate:"max=20"`
	Price decimal.Decimal `json:"price" validate:"gte=0"`
}

type StockAdjustRequest struct {
	Delta int    `json:"delta" validate:"required,ne=0"`
	Note  string `json:"note"`
}

type productService struct {
	store  repository.LedgerStore
	locks  *KeyedLocker
	events events.Publisher
}

func NewProductService(store repository.LedgerStore, locks *KeyedLocker, pub events.Publisher) ProductService {
	if pub == nil {
		pub = events.Nop{}
	}
	return &productService{store: store, locks: locks, events: pub}
}

func (s *productService) CreateProduct(ctx context.Context, req *ProductRequest, actorID string) (*model.Product, error) {
	if req == nil {
		return nil, invalid("", "request body is required")
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	sku := strings.TrimSpace(req.SKU)
	if _, err := s.store.Products().FindBySKU(ctx, sku); err == nil {
		return nil, ErrSKUExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	product := &model.Product{
		SKU:   sku,
		Name:  strings.TrimSpace(req.Name),
		Stock: req.Stock,
		Unit:  req.Unit,
		Price: req.Price,
	}
	product.ID = uuid.New()
	product.CreatedBy = actorID
	product.UpdatedBy = actorID

	if err := s.store.Products().Create(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// UpdateProduct edits catalog fields. Stock in the request is ignored; it
// changes only through the ledger or AdjustStock.
func (s *productService) UpdateProduct(ctx context.Context, id string, req *ProductRequest, actorID string) (*model.Product, error) {
	if req == nil {
		return nil, invalid("", "request body is required")
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	pid, err := uuid.Parse(id)
	if err != nil {
		return nil, notFound("product", id)
	}

	unlock := s.locks.Lock(productKey(id))
	defer unlock()

	existing, err := s.store.Products().FindByID(ctx, pid)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("product", id)
	}
	if err != nil {
		return nil, err
	}

	sku := strings.TrimSpace(req.SKU)
	if sku != existing.SKU {
		if other, err := s.store.Products().FindBySKU(ctx, sku); err == nil && other.ID != pid {
			return nil, ErrSKUExists
		} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}

	existing.SKU = sku
	existing.Name = strings.TrimSpace(req.Name)
	existing.Unit = req.Unit
	existing.Price = req.Price
	existing.UpdatedBy = actorID
	if err := s.store.Products().Update(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *productService) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	pid, err := uuid.Parse(id)
	if err != nil {
		return nil, notFound("product", id)
	}
	p, err := s.store.Products().FindByID(ctx, pid)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound("product", id)
	}
	return p, err
}

func (s *productService) GetAllProducts(ctx context.Context) ([]model.Product, error) {
	products, err := s.store.Products().FindAll(ctx)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []model.Product{}
	}
	return products, nil
}

func (s *productService) AdjustStock(ctx context.Context, id string, req *StockAdjustRequest, actorID string) (*model.StockAdjustment, error) {
	if req == nil {
		return nil, invalid("", "request body is required")
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	pid, err := uuid.Parse(id)
	if err != nil {
		return nil, notFound("product", id)
	}

	unlock := s.locks.Lock(productKey(id))
	defer unlock()

	var (
		adj  *model.StockAdjustment
		name string
	)
	err = s.store.WithTx(ctx, func(store repository.LedgerStore) error {
		p, err := store.Products().FindByID(ctx, pid)
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("product", id)
		}
		if err != nil {
			return err
		}
		name = p.Name
		adj, err = store.Products().AdjustStock(ctx, pid, req.Delta, actorID)
		return err
	})
	at := time.Now()
	unlock()
	if err != nil {
		return nil, err
	}

	s.events.Publish(events.TopicStockUpdate, events.StockEvent{
		Action:      "manual_adjust",
		ProductName: name,
		Adjustment:  *adj,
		ActorID:     actorID,
		OccurredAt:  at,
	})
	return adj, nil
}
