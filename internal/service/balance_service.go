package service

import (
	"context"

	"go-ledger-ws/internal/model"
	"go-ledger-ws/internal/repository"

	"github.com/shopspring/decimal"
)

type BalanceStatus string

const (
	StatusDebt    BalanceStatus = "debt"    // entity owes the business
	StatusCredit  BalanceStatus = "credit"  // business owes the entity
	StatusSettled BalanceStatus = "settled" // nothing outstanding
)

// EntityLister is the registry listing the portfolio walks.
type EntityLister interface {
	ListEntities(ctx context.Context) ([]model.LedgerEntity, error)
}

type RunningBalanceEntry struct {
	Transaction    model.LedgerTransaction `json:"transaction"`
	RunningBalance decimal.Decimal         `json:"running_balance"`
}

type PortfolioSummary struct {
	TotalDebt     decimal.Decimal `json:"total_debt"`
	TotalCredit   decimal.Decimal `json:"total_credit"`
	NetBalance    decimal.Decimal `json:"net_balance"`
	TotalEntities int             `json:"total_entities"`
}

type EntityBalance struct {
	Entity  model.LedgerEntity `json:"entity"`
	Balance decimal.Decimal    `json:"balance"`
	Status  BalanceStatus      `json:"status"`
}

// BalanceService derives balances from the transaction history on every
// call; nothing is cached.
type BalanceService interface {
	BalanceOf(ctx context.Context, entityID string) (decimal.Decimal, error)
	RunningBalanceSeries(ctx context.Context, entityID string) ([]RunningBalanceEntry, error)
	PortfolioSummary(ctx context.Context) (*PortfolioSummary, error)
	EntityBalances(ctx context.Context) ([]EntityBalance, error)
}

type balanceService struct {
	transactions repository.TransactionRepository
	entities     EntityLister
}

func NewBalanceService(transactions repository.TransactionRepository, entities EntityLister) BalanceService {
	return &balanceService{
		transactions: transactions,
		entities:     entities,
	}
}

// BalanceOf is Σ we_gave − Σ we_received, rounded to cents.
func (s *balanceService) BalanceOf(ctx context.Context, entityID string) (decimal.Decimal, error) {
	balance, err := s.rawBalance(ctx, entityID)
	if err != nil {
		return decimal.Zero, err
	}
	return balance.Round(2), nil
}

func (s *balanceService) rawBalance(ctx context.Context, entityID string) (decimal.Decimal, error) {
	txs, err := s.transactions.FindByEntity(ctx, entityID)
	if err != nil {
		return decimal.Zero, err
	}
	balance := decimal.Zero
	for i := range txs {
		balance = balance.Add(txs[i].SignedAmount())
	}
	return balance, nil
}

// RunningBalanceSeries folds the history oldest-first and hands it back
// newest-first, each entry carrying the balance right after it.
func (s *balanceService) RunningBalanceSeries(ctx context.Context, entityID string) ([]RunningBalanceEntry, error) {
	txs, err := s.transactions.FindByEntity(ctx, entityID)
	if err != nil {
		return nil, err
	}

	series := make([]RunningBalanceEntry, len(txs))
	running := decimal.Zero
	for i := len(txs) - 1; i >= 0; i-- {
		running = running.Add(txs[i].SignedAmount())
		series[i] = RunningBalanceEntry{
			Transaction:    txs[i],
			RunningBalance: running.Round(2),
		}
	}
	return series, nil
}

func (s *balanceService) PortfolioSummary(ctx context.Context) (*PortfolioSummary, error) {
	entities, err := s.entities.ListEntities(ctx)
	if err != nil {
		return nil, err
	}

	debt, credit := decimal.Zero, decimal.Zero
	for _, e := range entities {
		balance, err := s.rawBalance(ctx, e.ID)
		if err != nil {
			return nil, err
		}
		if balance.IsPositive() {
			debt = debt.Add(balance)
		} else if balance.IsNegative() {
			credit = credit.Add(balance.Abs())
		}
	}

	return &PortfolioSummary{
		TotalDebt:     debt.Round(2),
		TotalCredit:   credit.Round(2),
		NetBalance:    debt.Sub(credit).Round(2),
		TotalEntities: len(entities),
	}, nil
}

func (s *balanceService) EntityBalances(ctx context.Context) ([]EntityBalance, error) {
	entities, err := s.entities.ListEntities(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]EntityBalance, 0, len(entities))
	for _, e := range entities {
		balance, err := s.BalanceOf(ctx, e.ID)
		if err != nil {
			return nil, err
		}
		result = append(result, EntityBalance{
			Entity:  e,
			Balance: balance,
			Status:  StatusOf(balance),
		})
	}
	return result, nil
}

// StatusOf classifies a rounded balance.
func StatusOf(balance decimal.Decimal) BalanceStatus {
	switch {
	case balance.IsPositive():
		return StatusDebt
	case balance.IsNegative():
		return StatusCredit
	default:
		return StatusSettled
	}
}
