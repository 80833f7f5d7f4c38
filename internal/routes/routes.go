// Package routes defines the API routing configuration. It wires the
// repositories, services, and handlers together and groups routes by the
// role required to reach them.
package routes

import (
	"time"

	"payverse/internal/config"
	"payverse/internal/handlers"
	"payverse/internal/middleware"
	"payverse/internal/repositories"
	"payverse/internal/services/auth"
	"payverse/internal/services/balance"
	"payverse/internal/services/card"
	"payverse/internal/services/casino"
	"payverse/internal/services/escrow"
	"payverse/internal/services/paygram"
	"payverse/internal/services/security"
	"payverse/internal/services/syncer"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Services bundles the long-lived services the server shares between the
// HTTP layer and the background workers.
type Services struct {
	Balance balance.Service
	Escrow  escrow.Service
	Casino  casino.Service
	Syncer  syncer.Service
}

// SetupRoutes configures all application routes and returns the shared
// services so the caller can start the background workers on them.
func SetupRoutes(app *fiber.App, db *gorm.DB) *Services {
	userRepo := repositories.NewUserRepository(db)
	txRepo := repositories.NewTransactionRepository(db)
	invoiceRepo := repositories.NewInvoiceRepository(db)
	casinoRepo := repositories.NewCasinoRepository(db)

	gateway := paygram.NewClient(paygram.Config{
		BaseURL:  config.GetEnv("PAYGRAM_API_URL", "https://api.pay-gram.org"),
		APIToken: config.GetEnv("PAYGRAM_API_TOKEN", ""),
		Timeout:  config.GetDurationEnv("PAYGRAM_TIMEOUT", 15*time.Second),
	})
	bridge := casino.NewBridgeClient(casino.BridgeConfig{
		BaseURL:  config.GetEnv("CASINO_BRIDGE_URL", "http://localhost:8090"),
		APIToken: config.GetEnv("CASINO_BRIDGE_TOKEN", ""),
		Timeout:  config.GetDurationEnv("CASINO_BRIDGE_TIMEOUT", 15*time.Second),
	})

	balanceService := balance.NewService(db, repositories.CacheService)
	escrowService := escrow.NewService(balanceService, gateway, userRepo, invoiceRepo, txRepo)
	casinoService := casino.NewService(casinoRepo, escrowService, bridge, userRepo)
	syncService := syncer.NewService(userRepo, gateway, balanceService)
	authService := auth.NewService(userRepo, repositories.CacheService)
	pinService := security.NewService(userRepo)
	cardService := card.NewService(card.NewStripeCharger(), balanceService)

	authHandler := handlers.NewAuthHandler(authService)
	walletHandler := handlers.NewWalletHandler(balanceService, txRepo, pinService, cardService, syncService)
	transferHandler := handlers.NewTransferHandler(escrowService, pinService, userRepo)
	casinoHandler := handlers.NewCasinoHandler(casinoService, pinService, userRepo)
	adminHandler := handlers.NewAdminHandler(escrowService, balanceService, syncService, casinoService, userRepo, casinoRepo)
	callbackHandler := handlers.NewCallbackHandler(escrowService)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Welcome to Payverse API",
			"version": "1.0.0",
			"docs":    "/api",
		})
	})
	app.Get("/health", handlers.HealthCheck)

	api := app.Group("/api")

	// Public endpoints
	api.Post("/register", authHandler.Register)
	api.Post("/login", authHandler.Login)
	api.Post("/refresh", authHandler.RefreshToken)

	// Provider webhook; authenticated by a shared secret in the path,
	// not by user session.
	api.Post("/callbacks/paygram/"+config.GetEnv("CALLBACK_SECRET", "invoice-paid"), callbackHandler.InvoicePaid)

	authMiddleware := middleware.NewAuthMiddleware(authService)
	protected := api.Use(authMiddleware.Handler)

	protected.Post("/logout", authHandler.Logout)
	protected.Post("/change-password", authHandler.ChangePassword)

	wallet := protected.Group("/wallet")
	wallet.Get("/balance", walletHandler.GetBalance)
	wallet.Get("/transactions", walletHandler.GetTransactions)
	wallet.Post("/pin", walletHandler.SetPin)
	wallet.Post("/sync", walletHandler.SyncBalance)
	wallet.Post("/card-topup", walletHandler.CardTopUp)

	transfers := protected.Group("/transfers")
	transfers.Post("/send", transferHandler.Send)
	transfers.Post("/topup", transferHandler.InitiateTopUp)
	transfers.Post("/topup/complete", transferHandler.CompleteTopUp)
	transfers.Post("/cashout", transferHandler.InitiateCashOut)
	transfers.Delete("/cashout/:code", transferHandler.CancelCashOut)

	casinoRoutes := protected.Group("/casino")
	casinoRoutes.Post("/link", casinoHandler.Link)
	casinoRoutes.Post("/buy", casinoHandler.Buy)
	casinoRoutes.Post("/sell", casinoHandler.Sell)
	casinoRoutes.Get("/transactions/:ref", casinoHandler.Status)

	admin := protected.Group("/admin", middleware.RequireAdmin)
	admin.Get("/users", adminHandler.ListUsers)
	admin.Delete("/users/:id", adminHandler.DeactivateUser)
	admin.Post("/transfers", adminHandler.EscrowTransfer)
	admin.Post("/deposits/approve", adminHandler.ApproveManualDeposit)
	admin.Post("/adjustments", adminHandler.AdjustBalance)
	admin.Post("/sync/:id", adminHandler.SyncAccount)
	admin.Post("/sync", adminHandler.SyncAll)
	admin.Post("/casino/retry-sweep", adminHandler.RetrySweep)

	support := protected.Group("/support", middleware.RequireSupport)
	support.Get("/casino/stuck", adminHandler.ListStuckCasinoTransactions)
	support.Post("/casino/:ref/resolve", adminHandler.ResolveCasinoTransaction)

	return &Services{
		Balance: balanceService,
		Escrow:  escrowService,
		Casino:  casinoService,
		Syncer:  syncService,
	}
}
