// Command reset-password sets a user's password directly in the database and
// revokes their open sessions.
package main

import (
	"context"
	"flag"
	"log"

	"go-ledger-ws/internal/config"
	"go-ledger-ws/internal/repository"
	"go-ledger-ws/pkg/database"

	"github.com/google/uuid"
)

func main() {
	email := flag.String("email", "", "account email")
	password := flag.String("password", "", "new password (min 6 characters)")
	flag.Parse()

	if *email == "" || len(*password) < 6 {
		log.Fatal("usage: reset-password -email user@example.com -password <new password>")
	}

	cfg := config.Load()
	db := database.ConnectDB(cfg.DatabaseURL)
	userRepo := repository.NewUserRepo(db)
	ctx := context.Background()

	user, err := userRepo.FindByEmail(ctx, *email)
	if err != nil {
		log.Fatalf("User %s not found: %v", *email, err)
	}
	if err := user.SetPassword(*password); err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}
	user.TokenVersion = uuid.NewString()
	if err := userRepo.Update(ctx, user); err != nil {
		log.Fatalf("Failed to update password: %v", err)
	}

	log.Printf("Password for %s has been reset; existing sessions are revoked", *email)
}
