package match

import (
	"errors"
	"sync"
	"time"

	"github.com/dyn-warrior/TicX/internal/board"
	"github.com/dyn-warrior/TicX/internal/models"
)

// Match state machine errors
var (
	ErrMatchNotFound      = errors.New("match not found")
	ErrMatchNotActive     = errors.New("match is not active")
	ErrUnknownParticipant = errors.New("user is not a participant of this match")
	ErrAlreadyInMatch     = errors.New("user already has an open match")
)

// Participant binds a user to a symbol for the lifetime of a session.
type Participant struct {
	UserID string
	Symbol string
}

// Session is the authoritative in-memory state of one match. All mutation
// goes through the manager while holding mu, so operations on the same
// match never interleave.
type Session struct {
	ID           string
	Status       string
	Board        string
	Turn         string
	EntryFinal   int64 // held per side
	Leverage     int
	MoveCount    int
	WinnerID     string
	Reason       string
	Participants [2]Participant
	Deadline     time.Time
	StartedAt    time.Time
	EndedAt      time.Time

	mu sync.Mutex
}

// symbolOf resolves a user's symbol, or "" when they are not a participant.
func (s *Session) symbolOf(userID string) string {
	for _, p := range s.Participants {
		if p.UserID == userID {
			return p.Symbol
		}
	}
	return ""
}

// opponentOf returns the other participant's user ID.
func (s *Session) opponentOf(userID string) string {
	for _, p := range s.Participants {
		if p.UserID != userID {
			return p.UserID
		}
	}
	return ""
}

// userBySymbol returns the participant holding a symbol.
func (s *Session) userBySymbol(symbol string) string {
	for _, p := range s.Participants {
		if p.Symbol == symbol {
			return p.UserID
		}
	}
	return ""
}

// remainingMs is the time left on the current turn clock.
func (s *Session) remainingMs() int64 {
	if s.Status != models.MatchActive || s.Deadline.IsZero() {
		return 0
	}
	ms := time.Until(s.Deadline).Milliseconds()
	if ms < 0 {
		return 0
	}
	return ms
}

// terminal reports whether the session reached a final state.
func (s *Session) terminal() bool {
	return s.Status == models.MatchCompleted || s.Status == models.MatchCancelled
}

// Snapshot is a copy-safe view of a session for handlers and events.
type Snapshot struct {
	ID           string        `json:"id"`
	Status       string        `json:"status"`
	Board        string        `json:"board"`
	Turn         string        `json:"turn"`
	EntryFinal   int64         `json:"entryFinal"`
	Leverage     int           `json:"leverage"`
	MoveCount    int           `json:"moveNo"`
	WinnerID     string        `json:"winnerId,omitempty"`
	Reason       string        `json:"reason,omitempty"`
	RemainingMs  int64         `json:"remainingMs"`
	Participants []Participant `json:"participants"`
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		ID:           s.ID,
		Status:       s.Status,
		Board:        s.Board,
		Turn:         s.Turn,
		EntryFinal:   s.EntryFinal,
		Leverage:     s.Leverage,
		MoveCount:    s.MoveCount,
		WinnerID:     s.WinnerID,
		Reason:       s.Reason,
		RemainingMs:  s.remainingMs(),
		Participants: s.Participants[:],
	}
}

// newSession builds an ACTIVE session for a freshly paired match. Both
// participants are bound at creation, so the WAITING state collapses
// straight to ACTIVE.
func newSession(id string, p1, p2 Participant, entryFinal int64, leverage int) *Session {
	return &Session{
		ID:           id,
		Status:       models.MatchActive,
		Board:        board.EmptyBoard,
		Turn:         board.SymbolX,
		EntryFinal:   entryFinal,
		Leverage:     leverage,
		Participants: [2]Participant{p1, p2},
		StartedAt:    time.Now(),
	}
}
