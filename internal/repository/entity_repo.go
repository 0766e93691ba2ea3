package repository

import (
	"context"

	"go-ledger-ws/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EntityRepository persists external (supplier/other) counterparties only.
// Customers and resellers live in the user directory.
type EntityRepository interface {
	Create(ctx context.Context, entity *model.ExternalEntity) error
	Update(ctx context.Context, entity *model.ExternalEntity) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.ExternalEntity, error)
	FindAll(ctx context.Context) ([]model.ExternalEntity, error)
}

type entityRepo struct {
	db *gorm.DB
}

func NewEntityRepo(db *gorm.DB) EntityRepository {
	return &entityRepo{db}
}

func (r *entityRepo) Create(ctx context.Context, entity *model.ExternalEntity) error {
	return r.db.WithContext(ctx).Create(entity).Error
}

func (r *entityRepo) Update(ctx context.Context, entity *model.ExternalEntity) error {
	return r.db.WithContext(ctx).Save(entity).Error
}

func (r *entityRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&model.ExternalEntity{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *entityRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.ExternalEntity, error) {
	var entity model.ExternalEntity
	if err := r.db.WithContext(ctx).First(&entity, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &entity, nil
}

func (r *entityRepo) FindAll(ctx context.Context) ([]model.ExternalEntity, error) {
	var entities []model.ExternalEntity
	err := r.db.WithContext(ctx).Order("created_at ASC").Find(&entities).Error
	return entities, err
}
