package match

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dyn-warrior/TicX/internal/board"
	"github.com/dyn-warrior/TicX/internal/models"
)

type matchRow struct {
	ID         string `db:"id"`
	Status     string `db:"status"`
	Board      string `db:"board"`
	Turn       string `db:"turn"`
	EntryFinal int64  `db:"entry_final"`
	Leverage   int    `db:"leverage"`
}

type participantRow struct {
	MatchID string `db:"match_id"`
	UserID  string `db:"user_id"`
	Symbol  string `db:"symbol"`
}

type moveRow struct {
	MatchID string `db:"match_id"`
	Index   int    `db:"cell_index"`
	Symbol  string `db:"symbol"`
	MoveNo  int    `db:"move_no"`
}

// LoadActiveMatches rehydrates live sessions from the store after a crash
// or restart. The board is rebuilt by replaying the move log; a stored
// board that disagrees with the replay marks corruption and cancels the
// match rather than resuming from a bad cache.
func (m *Manager) LoadActiveMatches(ctx context.Context) error {
	if m.db == nil {
		return nil
	}

	var rows []matchRow
	if err := m.db.SelectContext(ctx, &rows, `
		SELECT id, status, board, turn, entry_final, leverage
		FROM matches WHERE status = 'ACTIVE'`); err != nil {
		return fmt.Errorf("load active matches: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}

	for _, row := range rows {
		var parts []participantRow
		if err := m.db.SelectContext(ctx, &parts, `
			SELECT match_id, user_id, symbol FROM participants WHERE match_id=$1 ORDER BY symbol DESC`, row.ID); err != nil {
			log.Printf("[RECOVER] Failed to load participants for %s: %v", row.ID, err)
			continue
		}
		if len(parts) != 2 {
			log.Printf("[RECOVER] Match %s has %d participants, skipping", row.ID, len(parts))
			continue
		}

		var moves []moveRow
		if err := m.db.SelectContext(ctx, &moves, `
			SELECT match_id, cell_index, symbol, move_no FROM moves
			WHERE match_id=$1 ORDER BY move_no`, row.ID); err != nil {
			log.Printf("[RECOVER] Failed to load moves for %s: %v", row.ID, err)
			continue
		}

		replayed := board.EmptyBoard
		valid := true
		for _, mv := range moves {
			next, err := board.ApplyMove(replayed, mv.Index, mv.Symbol)
			if err != nil {
				valid = false
				break
			}
			replayed = next
		}

		s := &Session{
			ID:         row.ID,
			Status:     models.MatchActive,
			Board:      replayed,
			Turn:       row.Turn,
			EntryFinal: row.EntryFinal,
			Leverage:   row.Leverage,
			MoveCount:  len(moves),
			Participants: [2]Participant{
				{UserID: parts[0].UserID, Symbol: parts[0].Symbol},
				{UserID: parts[1].UserID, Symbol: parts[1].Symbol},
			},
			StartedAt: time.Now(),
			// Fresh full turn clock for the mover, set before the session
			// is published to the registry.
			Deadline: time.Now().Add(m.turnDuration()),
		}

		m.mu.Lock()
		m.matches[s.ID] = s
		m.userToMatch[parts[0].UserID] = s.ID
		m.userToMatch[parts[1].UserID] = s.ID
		m.mu.Unlock()

		if !valid || replayed != row.Board {
			log.Printf("[RECOVER] Move log of match %s does not reproduce stored board (%q vs %q) - cancelling",
				row.ID, replayed, row.Board)
			if err := m.ForceCancel(ctx, row.ID, "unrecoverable board state"); err != nil {
				log.Printf("[RECOVER] Cancel failed for %s: %v", row.ID, err)
			}
			continue
		}

		if m.clock != nil {
			if err := m.clock.Schedule(ctx, s.ID, s.Deadline); err != nil {
				log.Printf("[RECOVER] Failed to reschedule deadline for %s: %v", s.ID, err)
			}
		}
		log.Printf("[RECOVER] Rehydrated match %s (moveNo=%d turn=%s)", s.ID, s.MoveCount, s.Turn)
	}
	return nil
}
