package handler

import (
	"go-ledger-ws/internal/service"

	"github.com/gofiber/fiber/v2"
)

type LedgerHandler struct {
	ledger   service.LedgerService
	balances service.BalanceService
}

func NewLedgerHandler(ledger service.LedgerService, balances service.BalanceService) *LedgerHandler {
	return &LedgerHandler{ledger: ledger, balances: balances}
}

// POST /api/v1/transactions
func (h *LedgerHandler) CreateTransaction(c *fiber.Ctx) error {
	var req service.TransactionRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidJSON(c)
	}

	tx, err := h.ledger.AddTransaction(c.UserContext(), &req, getUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Transaction recorded", "data": tx})
}

// GET /api/v1/transactions/:id
func (h *LedgerHandler) GetTransaction(c *fiber.Ctx) error {
	tx, err := h.ledger.GetTransaction(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(tx)
}

// PUT /api/v1/transactions/:id
func (h *LedgerHandler) UpdateTransaction(c *fiber.Ctx) error {
	var req service.TransactionUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidJSON(c)
	}

	tx, err := h.ledger.UpdateTransaction(c.UserContext(), c.Params("id"), &req, getUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Transaction updated", "data": tx})
}

// DELETE /api/v1/transactions/:id
func (h *LedgerHandler) DeleteTransaction(c *fiber.Ctx) error {
	deleted, err := h.ledger.DeleteTransaction(c.UserContext(), c.Params("id"), getUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	if !deleted {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Transaction not found"})
	}
	return c.JSON(fiber.Map{"message": "Transaction deleted"})
}

// GET /api/v1/entities/:id/transactions
func (h *LedgerHandler) ListEntityTransactions(c *fiber.Ctx) error {
	txs, err := h.ledger.ListTransactionsByEntity(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(txs)
}

// GET /api/v1/entities/:id/balance
func (h *LedgerHandler) GetEntityBalance(c *fiber.Ctx) error {
	id := c.Params("id")
	balance, err := h.balances.BalanceOf(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"entity_id": id,
		"balance":   balance,
		"status":    service.StatusOf(balance),
	})
}

// GET /api/v1/entities/:id/statement
func (h *LedgerHandler) GetEntityStatement(c *fiber.Ctx) error {
	series, err := h.balances.RunningBalanceSeries(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(series)
}

// GET /api/v1/ledger/summary
func (h *LedgerHandler) GetPortfolioSummary(c *fiber.Ctx) error {
	summary, err := h.balances.PortfolioSummary(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(summary)
}

// GET /api/v1/ledger/balances
func (h *LedgerHandler) GetEntityBalances(c *fiber.Ctx) error {
	balances, err := h.balances.EntityBalances(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(balances)
}
