package handlers

import (
	"database/sql"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

// GetStats returns a player's public profile and lifetime counters.
func GetStats(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("id")

		var row struct {
			ID               string `db:"id" json:"id"`
			Username         string `db:"username" json:"username"`
			Rating           int    `db:"rating" json:"rating"`
			TotalGamesPlayed int    `db:"total_games_played" json:"total_games_played"`
			TotalGamesWon    int    `db:"total_games_won" json:"total_games_won"`
		}
		err := db.Get(&row, `
			SELECT id, username, rating, total_games_played, total_games_won
			FROM users WHERE id=$1`, userID)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		if err != nil {
			log.Printf("[STATS] Failed to load stats for %s: %v", userID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, row)
	}
}
