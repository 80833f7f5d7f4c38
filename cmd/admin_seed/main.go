// Package main seeds the platform escrow account. The escrow account is the
// single super_admin row that every admin-mediated transfer and casino flow
// routes through; the server refuses those operations until it exists.
package main

import (
	"log"
	"os"

	"payverse/internal/config"
	"payverse/internal/models"
	"payverse/internal/repositories"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	config.LoadEnv()

	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")
	adminPaygramID := os.Getenv("ADMIN_PAYGRAM_ID")

	if adminEmail == "" || adminPassword == "" || adminPaygramID == "" {
		log.Fatal("ADMIN_EMAIL, ADMIN_PASSWORD, and ADMIN_PAYGRAM_ID must be set in environment")
	}

	if err := repositories.InitDB(); err != nil {
		log.Fatalf("Failed to initialize databases: %v", err)
	}
	defer func() {
		if repositories.DB != nil {
			sqlDB, err := repositories.DB.DB()
			if err != nil {
				log.Printf("Failed to get SQL DB instance: %v", err)
			} else if err := sqlDB.Close(); err != nil {
				log.Printf("Failed to close PostgreSQL connection: %v", err)
			}
		}
		if repositories.CacheService != nil {
			if err := repositories.CacheService.Close(); err != nil {
				log.Printf("Failed to close Redis connection: %v", err)
			}
		}
	}()

	var existing models.User
	if err := repositories.DB.Where("role = ?", models.RoleSuperAdmin).First(&existing).Error; err == nil {
		log.Printf("Escrow account already exists (user %d)", existing.ID)
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal("Failed to hash password:", err)
	}

	escrowAccount := models.User{
		Username:     "superadmin",
		Email:        adminEmail,
		Password:     string(hashedPassword),
		Role:         models.RoleSuperAdmin,
		PaygramID:    adminPaygramID,
		IsActive:     true,
		TokenVersion: 1,
	}

	if err := repositories.DB.Create(&escrowAccount).Error; err != nil {
		log.Fatal("Failed to create escrow account:", err)
	}

	log.Printf("Escrow account created (user %d, paygram id %s)", escrowAccount.ID, escrowAccount.PaygramID)
}
