package handlers

import (
	"database/sql"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/dyn-warrior/TicX/internal/board"
	"github.com/dyn-warrior/TicX/internal/match"
	"github.com/dyn-warrior/TicX/internal/middleware"
	"github.com/dyn-warrior/TicX/internal/models"
)

// GetMatch returns a match's current state: the live in-memory session if
// the match is running, otherwise its persisted terminal row.
func GetMatch(db *sqlx.DB, matches *match.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		matchID := c.Param("id")

		if snap, err := matches.Snapshot(matchID); err == nil {
			c.JSON(http.StatusOK, snap)
			return
		}

		var m models.Match
		err := db.Get(&m, `SELECT * FROM matches WHERE id=$1`, matchID)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "match not found"})
			return
		}
		if err != nil {
			log.Printf("[MATCH] Failed to load match %s: %v", matchID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		var participants []models.Participant
		if err := db.Select(&participants, `SELECT * FROM participants WHERE match_id=$1`, matchID); err != nil {
			log.Printf("[MATCH] Failed to load participants for %s: %v", matchID, err)
		}

		c.JSON(http.StatusOK, gin.H{"match": m, "participants": participants})
	}
}

// matchHistoryRow joins a match with the caller's symbol in it.
type matchHistoryRow struct {
	models.Match
	Symbol string `db:"symbol" json:"symbol"`
}

// GetMatchHistory returns the caller's finished matches, newest first.
func GetMatchHistory(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.UserID(c)

		var rows []matchHistoryRow
		err := db.Select(&rows, `
			SELECT m.*, p.symbol
			FROM matches m
			JOIN participants p ON p.match_id = m.id
			WHERE p.user_id = $1 AND m.status IN ($2, $3)
			ORDER BY m.created_at DESC
			LIMIT 50`,
			userID, models.MatchCompleted, models.MatchCancelled)
		if err != nil {
			log.Printf("[MATCH] Failed to load history for %s: %v", userID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"matches": rows})
	}
}

// SubmitSinglePlayer records a finished practice game against the built-in
// opponent. The move log is replayed server-side; illegal logs are rejected.
func SubmitSinglePlayer(matches *match.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.UserID(c)

		var req struct {
			Moves []struct {
				Index  int    `json:"index0to8"`
				Symbol string `json:"symbol"`
			} `json:"moves"`
		}
		if err := c.BindJSON(&req); err != nil || len(req.Moves) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "moves required"})
			return
		}

		res := match.SinglePlayerResult{UserID: userID}
		for _, mv := range req.Moves {
			res.Moves = append(res.Moves, match.SinglePlayerMove{Index: mv.Index, Symbol: mv.Symbol})
		}

		matchID, err := matches.RecordSinglePlayer(c.Request.Context(), res)
		if err != nil {
			switch {
			case errors.Is(err, board.ErrInvalidPosition),
				errors.Is(err, board.ErrCellOccupied),
				errors.Is(err, board.ErrNotYourTurn),
				errors.Is(err, board.ErrGameOver),
				errors.Is(err, match.ErrIncompleteGame):
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			default:
				log.Printf("[MATCH] Failed to record single-player game for %s: %v", userID, err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
			return
		}

		c.JSON(http.StatusCreated, gin.H{"matchId": matchID})
	}
}
