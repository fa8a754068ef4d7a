package match

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dyn-warrior/TicX/internal/board"
	"github.com/dyn-warrior/TicX/internal/config"
	"github.com/dyn-warrior/TicX/internal/events"
	"github.com/dyn-warrior/TicX/internal/ledger"
	"github.com/dyn-warrior/TicX/internal/models"
	"github.com/dyn-warrior/TicX/internal/queue"
)

// Settler is the slice of the escrow ledger the state machine needs to
// resolve a terminal match.
type Settler interface {
	SettleWin(ctx context.Context, matchID, winnerID, loserID string, potPerSide int64, multiplier float64) error
	SettleForfeit(ctx context.Context, matchID, winnerID, forfeiterID string, potPerSide int64, multiplier float64) error
	SettleDraw(ctx context.Context, matchID string, userIDs [2]string, potPerSide int64, policy string) error
	SettleCancel(ctx context.Context, matchID string, userIDs [2]string, potPerSide int64) error
}

// DeadlineScheduler tracks the per-match turn clock in a shared store so a
// timer worker can fire forfeits without blocking match progress.
type DeadlineScheduler interface {
	Schedule(ctx context.Context, matchID string, at time.Time) error
	Clear(ctx context.Context, matchID string) error
}

// Manager owns every live match session. Reads take the registry RWMutex;
// per-match mutation serializes on the session's own lock.
type Manager struct {
	db      *sqlx.DB
	cfg     *config.Config
	settler Settler
	emitter events.Emitter
	clock   DeadlineScheduler

	mu          sync.RWMutex
	matches     map[string]*Session
	userToMatch map[string]string
}

func NewManager(db *sqlx.DB, cfg *config.Config, settler Settler, emitter events.Emitter, clock DeadlineScheduler) *Manager {
	return &Manager{
		db:          db,
		cfg:         cfg,
		settler:     settler,
		emitter:     emitter,
		clock:       clock,
		matches:     make(map[string]*Session),
		userToMatch: make(map[string]string),
	}
}

func (m *Manager) turnDuration() time.Duration {
	return time.Duration(m.cfg.TurnMs) * time.Millisecond
}

// get returns the live session for a match ID.
func (m *Manager) get(matchID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.matches[matchID]
	if !ok {
		return nil, ErrMatchNotFound
	}
	return s, nil
}

// SessionForUser returns the live session a user participates in, if any.
func (m *Manager) SessionForUser(userID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.userToMatch[userID]
	if !ok {
		return nil, false
	}
	s, ok := m.matches[id]
	return s, ok
}

// HasOpenMatch reports whether a user already has a WAITING or ACTIVE
// match. Checked before every queue join: at most one open match per user.
func (m *Manager) HasOpenMatch(ctx context.Context, userID string) (bool, error) {
	m.mu.RLock()
	_, inMemory := m.userToMatch[userID]
	m.mu.RUnlock()
	if inMemory {
		return true, nil
	}
	if m.db == nil {
		return false, nil
	}

	var exists bool
	err := m.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM participants p
			JOIN matches mt ON mt.id = p.match_id
			WHERE p.user_id = $1 AND mt.status IN ('WAITING', 'ACTIVE')
		)`, userID)
	return exists, err
}

// CreateFromPair turns two popped queue entries into an ACTIVE match. The
// first (oldest) entry plays X and moves first.
func (m *Manager) CreateFromPair(ctx context.Context, e1, e2 queue.Entry) (*Session, error) {
	if e1.EntryAmount != e2.EntryAmount {
		return nil, fmt.Errorf("stake mismatch: %d vs %d", e1.EntryAmount, e2.EntryAmount)
	}

	id := uuid.NewString()
	p1 := Participant{UserID: e1.UserID, Symbol: board.SymbolX}
	p2 := Participant{UserID: e2.UserID, Symbol: board.SymbolO}
	s := newSession(id, p1, p2, e1.EntryAmount, e1.Leverage)

	if m.db != nil {
		tx, err := m.db.BeginTxx(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback()

		if _, err := tx.Exec(`
			INSERT INTO matches (id, status, board, turn, entry_final, leverage, created_at, started_at)
			VALUES ($1,$2,$3,$4,$5,$6,NOW(),NOW())`,
			s.ID, s.Status, s.Board, s.Turn, s.EntryFinal, s.Leverage); err != nil {
			return nil, fmt.Errorf("insert match: %w", err)
		}
		for _, p := range s.Participants {
			if _, err := tx.Exec(`
				INSERT INTO participants (id, match_id, user_id, symbol)
				VALUES ($1,$2,$3,$4)`,
				uuid.NewString(), s.ID, p.UserID, p.Symbol); err != nil {
				return nil, fmt.Errorf("insert participant: %w", err)
			}
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit: %w", err)
		}
	}

	// The deadline is set before the session becomes reachable through the
	// registry; after publication every field access goes through s.mu.
	s.Deadline = time.Now().Add(m.turnDuration())

	m.mu.Lock()
	m.matches[s.ID] = s
	m.userToMatch[p1.UserID] = s.ID
	m.userToMatch[p2.UserID] = s.ID
	m.mu.Unlock()

	if m.clock != nil {
		if err := m.clock.Schedule(ctx, s.ID, s.Deadline); err != nil {
			log.Printf("[MATCH] Failed to schedule turn deadline for %s: %v", s.ID, err)
		}
	}

	log.Printf("[MATCH] Created match %s: %s(X) vs %s(O) stake=%d leverage=%d",
		s.ID, p1.UserID, p2.UserID, s.EntryFinal, s.Leverage)

	if m.emitter != nil {
		m.emitter.ToUser(ctx, p1.UserID, events.TypeMatchFound, events.MatchFound{
			MatchID: s.ID, Symbol: p1.Symbol, EntryAmount: s.EntryFinal, Opponent: p2.UserID,
		})
		m.emitter.ToUser(ctx, p2.UserID, events.TypeMatchFound, events.MatchFound{
			MatchID: s.ID, Symbol: p2.Symbol, EntryAmount: s.EntryFinal, Opponent: p1.UserID,
		})
		m.emitter.ToMatch(ctx, s.ID, events.TypeMatchState, events.MatchState{
			MatchID: s.ID, Board: s.Board, Turn: s.Turn, MoveNo: 0, RemainingMs: s.remainingMs(),
		})
	}
	return s, nil
}

// SubmitMove validates and applies one move. Validation failures surface
// the specific reason and leave no state behind.
func (m *Manager) SubmitMove(ctx context.Context, matchID, userID string, index int) (Snapshot, error) {
	s, err := m.get(matchID)
	if err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status != models.MatchActive {
		return Snapshot{}, ErrMatchNotActive
	}
	symbol := s.symbolOf(userID)
	if symbol == "" {
		return Snapshot{}, ErrUnknownParticipant
	}
	if err := board.Validate(s.Board, index, symbol, s.Turn); err != nil {
		return Snapshot{}, err
	}

	next, err := board.ApplyMove(s.Board, index, symbol)
	if err != nil {
		return Snapshot{}, err
	}

	moveNo := s.MoveCount + 1
	if m.db != nil {
		tx, err := m.db.BeginTxx(ctx, nil)
		if err != nil {
			return Snapshot{}, fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback()

		if _, err := tx.Exec(`
			INSERT INTO moves (id, match_id, user_id, cell_index, symbol, move_no, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,NOW())`,
			uuid.NewString(), s.ID, userID, index, symbol, moveNo); err != nil {
			return Snapshot{}, fmt.Errorf("append move: %w", err)
		}
		if _, err := tx.Exec(`UPDATE matches SET board=$1, turn=$2 WHERE id=$3`,
			next, board.NextTurn(s.Turn), s.ID); err != nil {
			return Snapshot{}, fmt.Errorf("update board: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return Snapshot{}, fmt.Errorf("commit: %w", err)
		}
	}

	s.Board = next
	s.MoveCount = moveNo
	s.Turn = board.NextTurn(s.Turn)

	if m.emitter != nil {
		m.emitter.ToMatch(ctx, s.ID, events.TypeMoveAccepted, events.MoveAccepted{
			MatchID: s.ID, MoveNo: moveNo, Index: index, Symbol: symbol,
		})
	}

	st := board.GetState(s.Board, s.Turn)
	if st.IsGameOver {
		winnerID, reason := "", models.ReasonDraw
		if st.Winner != "" {
			winnerID = s.userBySymbol(st.Winner)
			reason = models.ReasonWin
		}
		m.completeLocked(ctx, s, winnerID, reason)
		return s.snapshotLocked(), nil
	}

	s.Deadline = time.Now().Add(m.turnDuration())
	if m.clock != nil {
		if err := m.clock.Schedule(ctx, s.ID, s.Deadline); err != nil {
			log.Printf("[MATCH] Failed to reset turn deadline for %s: %v", s.ID, err)
		}
	}
	if m.emitter != nil {
		m.emitter.ToMatch(ctx, s.ID, events.TypeMatchState, events.MatchState{
			MatchID: s.ID, Board: s.Board, Turn: s.Turn, MoveNo: s.MoveCount, RemainingMs: s.remainingMs(),
		})
	}
	return s.snapshotLocked(), nil
}

// Resign ends the match immediately with the opponent as winner. It skips
// move legality entirely: resigning is always allowed while active.
func (m *Manager) Resign(ctx context.Context, matchID, userID string) error {
	s, err := m.get(matchID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status != models.MatchActive {
		return ErrMatchNotActive
	}
	if s.symbolOf(userID) == "" {
		return ErrUnknownParticipant
	}

	log.Printf("[MATCH] Player %s resigned match %s", userID, matchID)
	m.completeLocked(ctx, s, s.opponentOf(userID), models.ReasonForfeit)
	return nil
}

// ForfeitExpiredTurn is called by the turn-timer worker once a deadline
// fires. The deadline is re-checked under the session lock: a move that
// landed between the worker's read and this call wins the race.
func (m *Manager) ForfeitExpiredTurn(ctx context.Context, matchID string) error {
	s, err := m.get(matchID)
	if err != nil {
		if errors.Is(err, ErrMatchNotFound) {
			return nil // already completed and evicted
		}
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status != models.MatchActive {
		return nil
	}
	if time.Now().Before(s.Deadline) {
		return nil // clock was reset by a move
	}

	mover := s.userBySymbol(s.Turn)
	log.Printf("[MATCH] Turn deadline expired for %s in match %s - forfeiting", mover, matchID)
	m.completeLocked(ctx, s, s.opponentOf(mover), models.ReasonForfeit)
	return nil
}

// ForceCancel aborts a non-terminal match and refunds both sides in full.
func (m *Manager) ForceCancel(ctx context.Context, matchID, reason string) error {
	s, err := m.get(matchID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminal() {
		return ErrMatchNotActive
	}

	s.Status = models.MatchCancelled
	s.Reason = models.ReasonCancelled
	s.EndedAt = time.Now()
	log.Printf("[MATCH] Force-cancelling match %s: %s", matchID, reason)

	m.persistTerminal(ctx, s)
	m.settle(ctx, s)
	m.evict(ctx, s)

	if m.emitter != nil {
		m.emitter.ToMatch(ctx, s.ID, events.TypeMatchEnd, events.MatchEnd{
			MatchID: s.ID, Outcome: models.MatchCancelled, Reason: models.ReasonCancelled,
		})
	}
	return nil
}

// completeLocked runs the shared terminal path for COMPLETED matches.
// Caller holds s.mu.
func (m *Manager) completeLocked(ctx context.Context, s *Session, winnerID, reason string) {
	s.Status = models.MatchCompleted
	s.WinnerID = winnerID
	s.Reason = reason
	s.EndedAt = time.Now()

	m.persistTerminal(ctx, s)
	m.settle(ctx, s)
	m.updateStats(ctx, s)
	m.evict(ctx, s)

	if m.emitter != nil {
		m.emitter.ToMatch(ctx, s.ID, events.TypeMatchEnd, events.MatchEnd{
			MatchID: s.ID, Outcome: models.MatchCompleted, WinnerID: winnerID, Reason: reason,
		})
	}
	log.Printf("[MATCH] Match %s completed: winner=%q reason=%s board=%s", s.ID, winnerID, reason, s.Board)
}

func (m *Manager) persistTerminal(ctx context.Context, s *Session) {
	if m.db == nil {
		return
	}
	var winner interface{}
	if s.WinnerID != "" {
		winner = s.WinnerID
	}
	if _, err := m.db.ExecContext(ctx, `
		UPDATE matches SET status=$1, board=$2, turn=$3, winner_id=$4, reason=$5, ended_at=NOW()
		WHERE id=$6`,
		s.Status, s.Board, s.Turn, winner, s.Reason, s.ID); err != nil {
		log.Printf("[MATCH] Failed to persist terminal state for %s: %v", s.ID, err)
	}
}

// settle routes the terminal outcome to the right ledger operation. A
// settlement already claimed by a concurrent path is not an error here.
func (m *Manager) settle(ctx context.Context, s *Session) {
	if m.settler == nil || s.EntryFinal <= 0 {
		return // no-stake match, ledger never involved
	}

	ids := [2]string{s.Participants[0].UserID, s.Participants[1].UserID}
	var err error
	switch {
	case s.Status == models.MatchCancelled:
		err = m.settler.SettleCancel(ctx, s.ID, ids, s.EntryFinal)
	case s.Reason == models.ReasonDraw:
		err = m.settler.SettleDraw(ctx, s.ID, ids, s.EntryFinal, m.cfg.DrawRefundPolicy)
	case s.Reason == models.ReasonForfeit:
		err = m.settler.SettleForfeit(ctx, s.ID, s.WinnerID, s.opponentOf(s.WinnerID), s.EntryFinal, m.cfg.PayoutMultiplier)
	default:
		err = m.settler.SettleWin(ctx, s.ID, s.WinnerID, s.opponentOf(s.WinnerID), s.EntryFinal, m.cfg.PayoutMultiplier)
	}

	if errors.Is(err, ledger.ErrAlreadySettled) {
		log.Printf("[MATCH] Match %s was already settled", s.ID)
		return
	}
	if err != nil {
		// Funds stay locked; the reconciliation sweep will not touch them
		// while the match row exists, so this needs eyes.
		log.Printf("[MATCH] SETTLEMENT FAILED for match %s: %v", s.ID, err)
	}
}

func (m *Manager) updateStats(ctx context.Context, s *Session) {
	if m.db == nil || s.Status != models.MatchCompleted {
		return
	}
	for _, p := range s.Participants {
		won := p.UserID == s.WinnerID
		delta := 0
		if s.WinnerID != "" {
			if won {
				delta = 25
			} else {
				delta = -25
			}
		}
		if _, err := m.db.ExecContext(ctx, `
			UPDATE users SET
				total_games_played = total_games_played + 1,
				total_games_won = total_games_won + CASE WHEN $1 THEN 1 ELSE 0 END,
				rating = GREATEST(rating + $2, 0)
			WHERE id = $3`, won, delta, p.UserID); err != nil {
			log.Printf("[MATCH] Failed to update stats for %s: %v", p.UserID, err)
		}
	}
}

// evict clears the clock and drops the finished session from the registry.
func (m *Manager) evict(ctx context.Context, s *Session) {
	if m.clock != nil {
		if err := m.clock.Clear(ctx, s.ID); err != nil {
			log.Printf("[MATCH] Failed to clear turn deadline for %s: %v", s.ID, err)
		}
	}
	m.mu.Lock()
	for _, p := range s.Participants {
		if m.userToMatch[p.UserID] == s.ID {
			delete(m.userToMatch, p.UserID)
		}
	}
	delete(m.matches, s.ID)
	m.mu.Unlock()
}

// Snapshot returns a consistent view of a live match.
func (m *Manager) Snapshot(matchID string) (Snapshot, error) {
	s, err := m.get(matchID)
	if err != nil {
		return Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(), nil
}
