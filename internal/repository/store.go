package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// ErrNotFound is returned by every repository when the requested row does not exist
var ErrNotFound = errors.New("record not found")

// LedgerStore groups the repositories a ledger mutation touches so they can
// share one unit of work.
type LedgerStore interface {
	Products() ProductRepository
	Transactions() TransactionRepository
	Entities() EntityRepository

	// WithTx runs fn against a store bound to a single database transaction.
	// If fn returns an error every write made through the bound store is
	// rolled back.
	WithTx(ctx context.Context, fn func(LedgerStore) error) error
}

type gormStore struct {
	db *gorm.DB
}

func NewLedgerStore(db *gorm.DB) LedgerStore {
	return &gormStore{db: db}
}

func (s *gormStore) Products() ProductRepository         { return NewProductRepo(s.db) }
func (s *gormStore) Transactions() TransactionRepository { return NewTransactionRepo(s.db) }
func (s *gormStore) Entities() EntityRepository          { return NewEntityRepo(s.db) }

func (s *gormStore) WithTx(ctx context.Context, fn func(LedgerStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

// notFound maps gorm's sentinel onto the package one
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
