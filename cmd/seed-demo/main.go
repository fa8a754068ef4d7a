package main

import (
	"log"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/dyn-warrior/TicX/internal/auth"
	"github.com/dyn-warrior/TicX/internal/config"
	"github.com/dyn-warrior/TicX/internal/database"
)

// Seeds two demo players with funded wallets for local development.
func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	users := []struct {
		Email    string
		Username string
		Password string
		Balance  int64
	}{
		{"alice@example.com", "alice", "password123", 1000},
		{"bob@example.com", "bob", "password123", 1000},
	}

	for _, u := range users {
		var exists bool
		if err := db.Get(&exists, `SELECT EXISTS (SELECT 1 FROM users WHERE email=$1)`, u.Email); err != nil {
			log.Fatalf("Failed to check user %s: %v", u.Email, err)
		}
		if exists {
			log.Printf("User %s already exists, skipping", u.Username)
			continue
		}

		hash, err := auth.HashPassword(u.Password)
		if err != nil {
			log.Fatalf("Failed to hash password: %v", err)
		}

		userID := uuid.NewString()
		tx, err := db.Beginx()
		if err != nil {
			log.Fatalf("Failed to begin tx: %v", err)
		}
		if _, err := tx.Exec(
			`INSERT INTO users (id, email, username, password_hash, created_at) VALUES ($1,$2,$3,$4,NOW())`,
			userID, u.Email, u.Username, hash,
		); err != nil {
			tx.Rollback()
			log.Fatalf("Failed to create user %s: %v", u.Username, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO wallets (id, user_id, balance, locked, updated_at) VALUES ($1,$2,$3,0,NOW())`,
			uuid.NewString(), userID, u.Balance,
		); err != nil {
			tx.Rollback()
			log.Fatalf("Failed to create wallet for %s: %v", u.Username, err)
		}
		if err := tx.Commit(); err != nil {
			log.Fatalf("Failed to commit seed for %s: %v", u.Username, err)
		}

		log.Printf("✓ Seeded user %s (%s) with balance %d", u.Username, userID, u.Balance)
	}
}
