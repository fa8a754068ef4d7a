package handlers

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dyn-warrior/TicX/internal/auth"
	"github.com/dyn-warrior/TicX/internal/config"
	"github.com/dyn-warrior/TicX/internal/models"
)

// Register creates a user with an empty wallet and issues a session token.
func Register(db *sqlx.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email    string `json:"email"`
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "email, username and password required"})
			return
		}
		email := strings.ToLower(strings.TrimSpace(req.Email))
		username := strings.TrimSpace(req.Username)
		if email == "" || username == "" || len(req.Password) < 8 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "email, username and a password of at least 8 characters required"})
			return
		}

		var exists bool
		if err := db.Get(&exists, `SELECT EXISTS (SELECT 1 FROM users WHERE email=$1 OR username=$2)`, email, username); err != nil {
			log.Printf("[AUTH] Register lookup failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if exists {
			c.JSON(http.StatusConflict, gin.H{"error": "email or username already taken"})
			return
		}

		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			log.Printf("[AUTH] Password hash failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		userID := uuid.NewString()
		tx, err := db.Beginx()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		defer tx.Rollback()

		if _, err := tx.Exec(
			`INSERT INTO users (id, email, username, password_hash, created_at) VALUES ($1,$2,$3,$4,NOW())`,
			userID, email, username, hash,
		); err != nil {
			log.Printf("[AUTH] Failed to create user %s: %v", email, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if _, err := tx.Exec(
			`INSERT INTO wallets (id, user_id, balance, locked, updated_at) VALUES ($1,$2,0,0,NOW())`,
			uuid.NewString(), userID,
		); err != nil {
			log.Printf("[AUTH] Failed to create wallet for %s: %v", userID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if err := tx.Commit(); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		token, err := auth.IssueToken(userID, cfg.JWTSecret)
		if err != nil {
			log.Printf("[AUTH] Failed to sign token: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		log.Printf("[AUTH] Registered user %s (%s)", username, userID)
		c.JSON(http.StatusCreated, gin.H{
			"token": token,
			"user":  gin.H{"id": userID, "email": email, "username": username},
		})
	}
}

// Login verifies credentials and issues a session token.
func Login(db *sqlx.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "email and password required"})
			return
		}
		email := strings.ToLower(strings.TrimSpace(req.Email))

		var user models.User
		err := db.Get(&user, `SELECT * FROM users WHERE email=$1`, email)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		if err != nil {
			log.Printf("[AUTH] Login lookup failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		if !auth.CheckPassword(user.PasswordHash, req.Password) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		if user.Banned {
			c.JSON(http.StatusForbidden, gin.H{"error": "account banned"})
			return
		}

		token, err := auth.IssueToken(user.ID, cfg.JWTSecret)
		if err != nil {
			log.Printf("[AUTH] Failed to sign token: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token": token,
			"user": gin.H{
				"id":       user.ID,
				"email":    user.Email,
				"username": user.Username,
				"rating":   user.Rating,
			},
		})
	}
}
