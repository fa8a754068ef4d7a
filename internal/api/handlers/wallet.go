package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dyn-warrior/TicX/internal/ledger"
	"github.com/dyn-warrior/TicX/internal/middleware"
)

// GetWallet returns the caller's available and locked credit balances.
func GetWallet(lg *ledger.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.UserID(c)

		w, err := lg.GetWallet(c.Request.Context(), userID)
		if errors.Is(err, ledger.ErrWalletNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "wallet not found"})
			return
		}
		if err != nil {
			log.Printf("[WALLET] Failed to load wallet for %s: %v", userID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"balance": w.Balance,
			"locked":  w.Locked,
		})
	}
}

// Deposit credits the caller's wallet. Stands in for an external payment
// collaborator; the credit is recorded like any other ledger mutation.
func Deposit(lg *ledger.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.UserID(c)

		var req struct {
			Amount int64 `json:"amount"`
		}
		if err := c.BindJSON(&req); err != nil || req.Amount <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "positive amount required"})
			return
		}

		ref := "deposit:" + uuid.NewString()
		if err := lg.Deposit(c.Request.Context(), userID, req.Amount, ref); err != nil {
			switch {
			case errors.Is(err, ledger.ErrUserBanned):
				c.JSON(http.StatusForbidden, gin.H{"error": "account banned"})
			case errors.Is(err, ledger.ErrAccountFrozen):
				c.JSON(http.StatusForbidden, gin.H{"error": "account frozen"})
			case errors.Is(err, ledger.ErrWalletNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "wallet not found"})
			default:
				log.Printf("[WALLET] Deposit failed for %s: %v", userID, err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
			return
		}

		w, err := lg.GetWallet(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusOK, gin.H{"deposited": req.Amount})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deposited": req.Amount, "balance": w.Balance, "locked": w.Locked})
	}
}

// GetTransactions returns the caller's recent wallet audit records.
func GetTransactions(lg *ledger.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.UserID(c)

		txs, err := lg.Transactions(c.Request.Context(), userID, 50)
		if err != nil {
			log.Printf("[WALLET] Failed to load transactions for %s: %v", userID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"transactions": txs})
	}
}
