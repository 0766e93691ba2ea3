package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go-ledger-ws/internal/config"
	"go-ledger-ws/internal/events"
	"go-ledger-ws/internal/events/kafka"
	"go-ledger-ws/internal/handler"
	"go-ledger-ws/internal/model"
	"go-ledger-ws/internal/repository"
	"go-ledger-ws/internal/service"
	"go-ledger-ws/internal/ws"
	"go-ledger-ws/pkg/database"
	"go-ledger-ws/pkg/jwt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"
)

func main() {
	// 1. Config
	cfg := config.Load()
	jwt.SetSecret(cfg.JWTSecret)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Database
	db := database.ConnectDB(cfg.DatabaseURL)
	if err := db.AutoMigrate(
		&model.Product{},
		&model.ExternalEntity{},
		&model.LedgerTransaction{},
		&model.User{},
		&model.Privilege{},
		&model.Role{},
	); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// 3. Seed default privileges, roles, and admin user
	seedPrivilegesRolesAndAdmin(ctx, db, cfg)

	// 4. Event fan-out: websocket clients plus Kafka when configured
	wsHub := ws.NewHub()
	go wsHub.Run(ctx)

	publishers := events.Multi{wsHub}
	var kafkaPub *kafka.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPub = kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		publishers = append(publishers, kafkaPub)
		log.Printf("Publishing ledger events to Kafka %v", cfg.KafkaBrokers)
	}

	// 5. Dependency Injection (Wiring Layers)
	store := repository.NewLedgerStore(db)
	userRepo := repository.NewUserRepo(db)
	privilegeRepo := repository.NewPrivilegeRepo(db)
	roleRepo := repository.NewRoleRepo(db)
	locks := service.NewKeyedLocker()

	entityService := service.NewEntityService(userRepo, store, locks, publishers)
	ledgerService := service.NewLedgerService(store, entityService, locks, publishers)
	balanceService := service.NewBalanceService(store.Transactions(), entityService)
	productService := service.NewProductService(store, locks, publishers)
	dashService := service.NewDashboardService(store, balanceService)
	authService := service.NewAuthService(userRepo)
	userService := service.NewUserService(userRepo, privilegeRepo, roleRepo, store.Transactions(), locks, publishers)

	handlers := &handler.Handlers{
		Auth:      handler.NewAuthHandler(authService),
		Entity:    handler.NewEntityHandler(entityService),
		Ledger:    handler.NewLedgerHandler(ledgerService, balanceService),
		Product:   handler.NewProductHandler(productService),
		Dashboard: handler.NewDashboardHandler(dashService),
		User:      handler.NewUserHandler(userService),
		Role:      handler.NewRoleHandler(roleRepo),
	}

	// 6. Fiber
	app := fiber.New(fiber.Config{
		AppName: "Ledger Stock Sync v1.0",
	})
	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(cors.New())

	handler.RegisterRoutes(app, handlers, userRepo, privilegeRepo, wsHub)

	// 7. Graceful Shutdown
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Panic(err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	if kafkaPub != nil {
		if err := kafkaPub.Close(); err != nil {
			log.Printf("Failed to close Kafka writer: %v", err)
		}
	}
	log.Println("Server exited")
}

// seedPrivilegesRolesAndAdmin creates default privileges, roles, and the
// first admin if they don't exist.
func seedPrivilegesRolesAndAdmin(ctx context.Context, db *gorm.DB, cfg *config.Config) {
	privilegeRepo := repository.NewPrivilegeRepo(db)
	userRepo := repository.NewUserRepo(db)
	roleRepo := repository.NewRoleRepo(db)

	if err := privilegeRepo.SeedDefaults(ctx); err != nil {
		log.Printf("Warning: Failed to seed privileges: %v", err)
	}
	if err := roleRepo.SeedDefaults(ctx); err != nil {
		log.Printf("Warning: Failed to seed roles: %v", err)
	}

	allPrivileges, err := privilegeRepo.FindAll(ctx)
	if err != nil {
		log.Printf("Warning: Failed to load privileges: %v", err)
		return
	}

	// MASTER_ADMIN gets every privilege; re-applied so new codes reach it
	masterRole, err := roleRepo.FindByCode(ctx, model.RoleMasterAdmin)
	if err != nil {
		log.Printf("Warning: MASTER_ADMIN role missing: %v", err)
		return
	}
	if err := roleRepo.ReplacePrivileges(ctx, masterRole, allPrivileges); err != nil {
		log.Printf("Warning: Failed to assign MASTER_ADMIN privileges: %v", err)
	}
	masterRole.Privileges = allPrivileges

	// ADMIN runs the ledger but cannot manage users
	if adminRole, err := roleRepo.FindByCode(ctx, model.RoleAdmin); err == nil && len(adminRole.Privileges) == 0 {
		adminPrivileges := make([]model.Privilege, 0, len(allPrivileges))
		for _, p := range allPrivileges {
			if !model.AdminExcludedPrivileges[p.Code] {
				adminPrivileges = append(adminPrivileges, p)
			}
		}
		if err := roleRepo.ReplacePrivileges(ctx, adminRole, adminPrivileges); err != nil {
			log.Printf("Warning: Failed to assign ADMIN privileges: %v", err)
		}
	}

	if cfg.SeedAdminPassword == "" {
		return
	}
	_, err = userRepo.FindByEmail(ctx, cfg.SeedAdminEmail)
	if !errors.Is(err, repository.ErrNotFound) {
		return
	}

	admin := &model.User{
		Email:      cfg.SeedAdminEmail,
		FullName:   "Master Administrator",
		RoleID:     &masterRole.ID,
		IsActive:   true,
		Privileges: masterRole.Privileges,
	}
	admin.CreatedBy = "system"
	admin.UpdatedBy = "system"
	if err := admin.SetPassword(cfg.SeedAdminPassword); err != nil {
		log.Printf("Warning: Failed to hash admin password: %v", err)
		return
	}
	if err := userRepo.Create(ctx, admin); err != nil {
		log.Printf("Warning: Failed to create admin user: %v", err)
		return
	}
	log.Printf("Admin user created: %s (MASTER_ADMIN)", cfg.SeedAdminEmail)
}
