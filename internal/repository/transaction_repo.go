package repository

import (
	"context"
	"time"

	"go-ledger-ws/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TransactionRepository interface {
	Create(ctx context.Context, t *model.LedgerTransaction) error
	Update(ctx context.Context, t *model.LedgerTransaction) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.LedgerTransaction, error)
	// FindByEntity returns the entity's transactions newest first.
	FindByEntity(ctx context.Context, entityID string) ([]model.LedgerTransaction, error)
	CountByEntity(ctx context.Context, entityID string) (int64, error)
	GetStockMovement(ctx context.Context, startDate, endDate time.Time) ([]StockMovementData, error)
}

// StockMovementData is one day of product quantities moved through the ledger
type StockMovementData struct {
	Date     string `json:"date"`
	Inbound  int    `json:"inbound"`
	Outbound int    `json:"outbound"`
}

type transactionRepo struct {
	db *gorm.DB
}

func NewTransactionRepo(db *gorm.DB) TransactionRepository {
	return &transactionRepo{db}
}

func (r *transactionRepo) Create(ctx context.Context, t *model.LedgerTransaction) error {
	return r.db.WithContext(ctx).Create(t).Error
}

// Update writes every column, so clearing product fields on a switch to cash
// is persisted as NULL/zero.
func (r *transactionRepo) Update(ctx context.Context, t *model.LedgerTransaction) error {
	res := r.db.WithContext(ctx).Model(t).Select("*").Omit("created_at", "created_by").Updates(t)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the row for good; the ledger keeps no tombstones.
func (r *transactionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Unscoped().Delete(&model.LedgerTransaction{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *transactionRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.LedgerTransaction, error) {
	var t model.LedgerTransaction
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (r *transactionRepo) FindByEntity(ctx context.Context, entityID string) ([]model.LedgerTransaction, error) {
	var transactions []model.LedgerTransaction
	err := r.db.WithContext(ctx).
		Where("entity_id = ?", entityID).
		Order("created_at DESC").
		Find(&transactions).Error
	return transactions, err
}

func (r *transactionRepo) CountByEntity(ctx context.Context, entityID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.LedgerTransaction{}).
		Where("entity_id = ?", entityID).
		Count(&count).Error
	return count, err
}

func (r *transactionRepo) GetStockMovement(ctx context.Context, startDate, endDate time.Time) ([]StockMovementData, error) {
	var results []StockMovementData

	// Aggregate product transactions per day
	rows, err := r.db.WithContext(ctx).Model(&model.LedgerTransaction{}).
		Select(`
			TO_CHAR(DATE(created_at), 'YYYY-MM-DD') as date,
			COALESCE(SUM(CASE WHEN type = ? THEN quantity ELSE 0 END), 0) as inbound,
			COALESCE(SUM(CASE WHEN type = ? THEN quantity ELSE 0 END), 0) as outbound
		`, model.TxWeReceived, model.TxWeGave).
		Where("item_type = ? AND created_at BETWEEN ? AND ?", model.ItemProduct, startDate, endDate).
		Group("DATE(created_at)").
		Order("date ASC").
		Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var data StockMovementData
		if err := rows.Scan(&data.Date, &data.Inbound, &data.Outbound); err != nil {
			return nil, err
		}
		results = append(results, data)
	}

	return results, rows.Err()
}
