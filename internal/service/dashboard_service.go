package service

import (
	"context"
	"time"

	"go-ledger-ws/internal/repository"

	"github.com/shopspring/decimal"
)

// LowStockThreshold marks products that need restocking on the dashboard
const LowStockThreshold = 10

type DashboardService interface {
	GetStockMovement(ctx context.Context, days int) ([]repository.StockMovementData, error)
	GetDashboardStats(ctx context.Context) (*DashboardStats, error)
}

// DashboardStats is the overview card set: inventory health plus the ledger portfolio
type DashboardStats struct {
	TotalProducts  int64            `json:"total_products"`
	LowStockCount  int64            `json:"low_stock_count"`
	TotalValuation decimal.Decimal  `json:"total_valuation"`
	Portfolio      PortfolioSummary `json:"portfolio"`
}

type dashboardService struct {
	store    repository.LedgerStore
	balances BalanceService
}

func NewDashboardService(store repository.LedgerStore, balances BalanceService) DashboardService {
	return &dashboardService{store: store, balances: balances}
}

func (s *dashboardService) GetStockMovement(ctx context.Context, days int) ([]repository.StockMovementData, error) {
	endDate := time.Now()
	startDate := endDate.AddDate(0, 0, -days)

	data, err := s.store.Transactions().GetStockMovement(ctx, startDate, endDate)
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = []repository.StockMovementData{}
	}
	return data, nil
}

func (s *dashboardService) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	products, err := s.store.Products().FindAll(ctx)
	if err != nil {
		return nil, err
	}

	stats := &DashboardStats{TotalValuation: decimal.Zero}
	for _, p := range products {
		stats.TotalProducts++
		if p.Stock < LowStockThreshold {
			stats.LowStockCount++
		}
		stats.TotalValuation = stats.TotalValuation.Add(p.Price.Mul(decimal.NewFromInt(int64(p.Stock))))
	}
	stats.TotalValuation = stats.TotalValuation.Round(2)

	portfolio, err := s.balances.PortfolioSummary(ctx)
	if err != nil {
		return nil, err
	}
	stats.Portfolio = *portfolio
	return stats, nil
}
