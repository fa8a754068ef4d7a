package match

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dyn-warrior/TicX/internal/board"
	"github.com/dyn-warrior/TicX/internal/models"
)

// ErrIncompleteGame rejects a reported single-player log whose final
// position is not terminal.
var ErrIncompleteGame = errors.New("game is not finished")

// SinglePlayerResult is a finished practice game against the built-in
// opponent, reported by the client and replayed server-side for legality.
type SinglePlayerResult struct {
	UserID string
	Moves  []SinglePlayerMove
}

type SinglePlayerMove struct {
	Index  int
	Symbol string
}

// RecordSinglePlayer persists a completed no-stake game against the AI as a
// COMPLETED match with a zero entry. The ledger is never involved: these
// records exist for history and stats only.
func (m *Manager) RecordSinglePlayer(ctx context.Context, res SinglePlayerResult) (string, error) {
	if m.db == nil {
		return "", fmt.Errorf("store unavailable")
	}

	// Replay the reported move log; reject anything illegal outright.
	b := board.EmptyBoard
	turn := board.SymbolX
	for _, mv := range res.Moves {
		if err := board.Validate(b, mv.Index, mv.Symbol, turn); err != nil {
			return "", fmt.Errorf("illegal move log: %w", err)
		}
		var err error
		b, err = board.ApplyMove(b, mv.Index, mv.Symbol)
		if err != nil {
			return "", err
		}
		turn = board.NextTurn(turn)
	}

	st := board.GetState(b, turn)
	if !st.IsGameOver {
		return "", ErrIncompleteGame
	}

	reason := models.ReasonDraw
	var winner interface{}
	if st.Winner == board.SymbolX {
		reason = models.ReasonWin
		winner = res.UserID
	} else if st.Winner == board.SymbolO {
		reason = models.ReasonLoss
	}

	id := uuid.NewString()
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	if _, err := tx.Exec(`
		INSERT INTO matches (id, status, board, turn, entry_final, leverage, winner_id, reason, created_at, started_at, ended_at)
		VALUES ($1,'COMPLETED',$2,$3,0,1,$4,$5,$6,$6,$6)`,
		id, b, turn, winner, reason, now); err != nil {
		return "", fmt.Errorf("insert match: %w", err)
	}
	if _, err := tx.Exec(`
		INSERT INTO participants (id, match_id, user_id, symbol) VALUES ($1,$2,$3,'X')`,
		uuid.NewString(), id, res.UserID); err != nil {
		return "", fmt.Errorf("insert participant: %w", err)
	}
	for i, mv := range res.Moves {
		var mover interface{}
		if mv.Symbol == board.SymbolX {
			mover = res.UserID
		}
		if _, err := tx.Exec(`
			INSERT INTO moves (id, match_id, user_id, cell_index, symbol, move_no, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			uuid.NewString(), id, mover, mv.Index, mv.Symbol, i+1, now); err != nil {
			return "", fmt.Errorf("insert move: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}
