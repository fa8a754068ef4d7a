package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dyn-warrior/TicX/internal/ledger"
	"github.com/dyn-warrior/TicX/internal/lobby"
	"github.com/dyn-warrior/TicX/internal/middleware"
	"github.com/dyn-warrior/TicX/internal/queue"
)

// JoinQueue places the caller in the matchmaking pool for a stake.
func JoinQueue(lb *lobby.Lobby) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.UserID(c)

		var req struct {
			BaseEntry int64 `json:"baseEntry"`
			Leverage  int   `json:"leverage"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "baseEntry and leverage required"})
			return
		}

		entryAmount, err := lb.JoinQueue(c.Request.Context(), userID, req.BaseEntry, req.Leverage)
		if err != nil {
			c.JSON(queueErrorStatus(err), gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"queued": true, "entryAmount": entryAmount, "leverage": req.Leverage})
	}
}

// LeaveQueue removes the caller from the pool and releases their hold.
func LeaveQueue(lb *lobby.Lobby) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.UserID(c)

		released, err := lb.LeaveQueue(c.Request.Context(), userID)
		if err != nil {
			c.JSON(queueErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"queued": false, "released": released})
	}
}

// QueueStatus reports pool depths per stake, for lobby display.
func QueueStatus(q *queue.Queue) gin.HandlerFunc {
	return func(c *gin.Context) {
		pools, err := q.ActivePools(c.Request.Context())
		if err != nil {
			log.Printf("[QUEUE] Failed to read pools: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"pools": pools})
	}
}

func queueErrorStatus(err error) int {
	switch {
	case errors.Is(err, lobby.ErrStakeOutOfRange),
		errors.Is(err, lobby.ErrLeverageOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, lobby.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, lobby.ErrAlreadyQueued),
		errors.Is(err, lobby.ErrAlreadyInMatch),
		errors.Is(err, ledger.ErrInsufficientLocked):
		return http.StatusConflict
	case errors.Is(err, lobby.ErrNotQueued):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return http.StatusPaymentRequired
	case errors.Is(err, ledger.ErrUserBanned),
		errors.Is(err, ledger.ErrAccountFrozen):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
