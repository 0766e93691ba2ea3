package handler

import (
	"go-ledger-ws/internal/middleware"
	"go-ledger-ws/internal/repository"
	"go-ledger-ws/internal/ws"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// Handlers bundles every HTTP handler the API mounts.
type Handlers struct {
	Auth      *AuthHandler
	Entity    *EntityHandler
	Ledger    *LedgerHandler
	Product   *ProductHandler
	Dashboard *DashboardHandler
	User      *UserHandler
	Role      *RoleHandler
}

// RegisterRoutes mounts /api/v1 and, when hub is non-nil, the /ws feed.
func RegisterRoutes(app *fiber.App, h *Handlers, userRepo repository.UserRepository, privilegeRepo repository.PrivilegeRepository, hub *ws.Hub) {
	requireAuth := middleware.RequireAuth(userRepo)
	can := middleware.RequirePrivilege

	api := app.Group("/api/v1")

	// ============ PUBLIC ROUTES ============
	auth := api.Group("/auth")
	auth.Post("/login", h.Auth.Login)
	auth.Post("/reset-password", h.Auth.ResetPassword)
	auth.Post("/validate-token", h.Auth.ValidateToken)

	// ============ PROTECTED ROUTES ============
	protected := api.Group("", requireAuth)

	// Entity registry
	protected.Get("/entities", can("entity:view"), h.Entity.ListEntities)
	protected.Get("/entities/:id", can("entity:view"), h.Entity.GetEntity)
	protected.Post("/entities", can("entity:manage"), h.Entity.CreateEntity)
	protected.Put("/entities/:id", can("entity:manage"), h.Entity.UpdateEntity)
	protected.Delete("/entities/:id", can("entity:manage"), h.Entity.DeleteEntity)

	// Per-entity ledger views
	protected.Get("/entities/:id/transactions", can("ledger:view"), h.Ledger.ListEntityTransactions)
	protected.Get("/entities/:id/balance", can("ledger:view"), h.Ledger.GetEntityBalance)
	protected.Get("/entities/:id/statement", can("ledger:view"), h.Ledger.GetEntityStatement)

	// Transactions
	protected.Post("/transactions", can("ledger:manage"), h.Ledger.CreateTransaction)
	protected.Get("/transactions/:id", can("ledger:view"), h.Ledger.GetTransaction)
	protected.Put("/transactions/:id", can("ledger:manage"), h.Ledger.UpdateTransaction)
	protected.Delete("/transactions/:id", can("ledger:manage"), h.Ledger.DeleteTransaction)

	// Portfolio
	protected.Get("/ledger/summary", can("dashboard:view"), h.Ledger.GetPortfolioSummary)
	protected.Get("/ledger/balances", can("dashboard:view"), h.Ledger.GetEntityBalances)

	// Dashboard
	protected.Get("/dashboard/stats", can("dashboard:view"), h.Dashboard.GetDashboardStats)
	protected.Get("/dashboard/stock-movement", can("dashboard:view"), h.Dashboard.GetStockMovement)

	// Products
	protected.Get("/products", can("product:view"), h.Product.GetProducts)
	protected.Get("/products/:id", can("product:view"), h.Product.GetProduct)
	protected.Post("/products", can("product:create"), h.Product.CreateProduct)
	protected.Put("/products/:id", can("product:update"), h.Product.UpdateProduct)
	protected.Post("/products/:id/adjust", can("product:update"), h.Product.AdjustStock)

	// User directory
	protected.Get("/users", can("user:view"), h.User.GetUsers)
	protected.Get("/users/:id", can("user:view"), h.User.GetUser)
	protected.Post("/users", can("user:create"), h.User.CreateUser)
	protected.Put("/users/:id", can("user:update"), h.User.UpdateUser)
	protected.Delete("/users/:id", can("user:delete"), h.User.DeleteUser)
	protected.Put("/users/:id/privileges", can("user:update"), h.User.UpdateUserPrivileges)

	protected.Get("/roles", h.Role.GetRoles)
	protected.Get("/privileges", func(c *fiber.Ctx) error {
		privileges, err := privilegeRepo.FindAll(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(privileges)
	})

	if hub == nil {
		return
	}

	// Live event feed
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	}, requireAuth)
	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		if !hub.Join(c) {
			return
		}
		defer hub.Leave(c)

		for {
			// clients only listen; reads detect the close
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
	}))
}
