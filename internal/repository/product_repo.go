package repository

import (
	"context"

	"go-ledger-ws/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	FindAll(ctx context.Context) ([]model.Product, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	FindBySKU(ctx context.Context, sku string) (*model.Product, error)
	// Update saves catalog fields; stock only moves through AdjustStock.
	Update(ctx context.Context, product *model.Product) error
	// AdjustStock adds delta to the product's stock, flooring the result at zero.
	AdjustStock(ctx context.Context, id uuid.UUID, delta int, updatedBy string) (*model.StockAdjustment, error)
}

type productRepo struct {
	db *gorm.DB
}

func NewProductRepo(db *gorm.DB) ProductRepository {
	return &productRepo{db}
}

func (r *productRepo) Create(ctx context.Context, product *model.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *productRepo) FindAll(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	err := r.db.WithContext(ctx).Order("name ASC").Find(&products).Error
	return products, err
}

func (r *productRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var product model.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &product, nil
}

func (r *productRepo) FindBySKU(ctx context.Context, sku string) (*model.Product, error) {
	var product model.Product
	if err := r.db.WithContext(ctx).First(&product, "sku = ?", sku).Error; err != nil {
		return nil, notFound(err)
	}
	return &product, nil
}

func (r *productRepo) Update(ctx context.Context, product *model.Product) error {
	res := r.db.WithContext(ctx).Model(product).
		Select("sku", "name", "unit", "price", "updated_by").
		Updates(product)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AdjustStock row-locks the product (FOR UPDATE) so it should run inside
// LedgerStore.WithTx.
func (r *productRepo) AdjustStock(ctx context.Context, id uuid.UUID, delta int, updatedBy string) (*model.StockAdjustment, error) {
	db := r.db.WithContext(ctx)

	var product model.Product
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&product, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}

	newStock, deficit := model.ApplyStockDelta(product.Stock, delta)
	err := db.Model(&model.Product{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"stock":      newStock,
			"updated_by": updatedBy,
		}).Error
	if err != nil {
		return nil, err
	}

	return &model.StockAdjustment{
		ProductID: id.String(),
		OldStock:  product.Stock,
		NewStock:  newStock,
		Delta:     delta,
		Deficit:   deficit,
		Clamped:   deficit > 0,
	}, nil
}
