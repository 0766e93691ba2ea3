package model

import "github.com/shopspring/decimal"

type Product struct {
	BaseModel
	SKU   string          `gorm:"type:varchar(50);uniqueIndex;not null" json:"sku" validate:"required"`
	Name  string          `gorm:"type:varchar(255);not null" json:"name" validate:"required"`
	Stock int             `gorm:"default:0" json:"stock" validate:"gte=0"`
	Unit  string          `gorm:"type:varchar(20)" json:"unit"`
	Price decimal.Decimal `gorm:"type:numeric(14,2);default:0" json:"price"`
}

// StockAdjustment is the outcome of one clamped stock change
type StockAdjustment struct {
	ProductID string `json:"product_id"`
	OldStock  int    `json:"old_stock"`
	NewStock  int    `json:"new_stock"`
	Delta     int    `json:"delta"`
	// Deficit is the part of a negative delta that could not be applied
	// because stock is floored at zero.
	Deficit int  `json:"deficit,omitempty"`
	Clamped bool `json:"clamped"`
}

// ApplyStockDelta returns the clamped result of adding delta to current.
func ApplyStockDelta(current, delta int) (newStock, deficit int) {
	newStock = current + delta
	if newStock < 0 {
		return 0, -newStock
	}
	return newStock, 0
}
