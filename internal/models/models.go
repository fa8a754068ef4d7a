package models

import (
	"database/sql"
	"time"
)

// User represents a registered player
type User struct {
	ID               string         `db:"id" json:"id"`
	Email            string         `db:"email" json:"email"`
	Username         string         `db:"username" json:"username"`
	PasswordHash     string         `db:"password_hash" json:"-"`
	Rating           int            `db:"rating" json:"rating"`
	Banned           bool           `db:"banned" json:"banned"`
	Frozen           bool           `db:"frozen" json:"frozen"`
	FreezeReason     sql.NullString `db:"freeze_reason" json:"freeze_reason,omitempty"`
	TotalGamesPlayed int            `db:"total_games_played" json:"total_games_played"`
	TotalGamesWon    int            `db:"total_games_won" json:"total_games_won"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
}

// Wallet holds a user's available and locked credits.
// Both columns are mutated only by ledger operations, never directly.
type Wallet struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Balance   int64     `db:"balance" json:"balance"`
	Locked    int64     `db:"locked" json:"locked"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Wallet transaction types
const (
	TxDeposit   = "DEPOSIT"
	TxEntryHold = "ENTRY_HOLD"
	TxPayout    = "PAYOUT"
	TxRefund    = "REFUND"
	TxFee       = "FEE"
)

// TxStatusCompleted is the only status the ledger writes today; rows land
// completed or not at all, matching the wallet_transactions schema default.
const TxStatusCompleted = "COMPLETED"

// WalletTransaction is an append-only audit record of a single ledger mutation
type WalletTransaction struct {
	ID        string         `db:"id" json:"id"`
	UserID    string         `db:"user_id" json:"user_id"`
	WalletID  string         `db:"wallet_id" json:"wallet_id"`
	Type      string         `db:"type" json:"type"`
	Amount    int64          `db:"amount" json:"amount"` // signed: debits negative
	Status    string         `db:"status" json:"status"`
	Ref       string         `db:"ref" json:"ref,omitempty"`
	MatchID   sql.NullString `db:"match_id" json:"match_id,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// Match statuses
const (
	MatchWaiting   = "WAITING"
	MatchActive    = "ACTIVE"
	MatchCompleted = "COMPLETED"
	MatchCancelled = "CANCELLED"
)

// Match end reasons
const (
	ReasonWin       = "WIN"
	ReasonLoss      = "LOSS"
	ReasonDraw      = "DRAW"
	ReasonForfeit   = "FORFEIT"
	ReasonCancelled = "CANCELLED"
)

// Match represents one game between two participants
type Match struct {
	ID          string         `db:"id" json:"id"`
	Status      string         `db:"status" json:"status"`
	Board       string         `db:"board" json:"board"` // 9 cells of X, O or _
	Turn        string         `db:"turn" json:"turn"`
	EntryFinal  int64          `db:"entry_final" json:"entry_final"`
	Leverage    int            `db:"leverage" json:"leverage"`
	WinnerID    sql.NullString `db:"winner_id" json:"winner_id,omitempty"`
	Reason      sql.NullString `db:"reason" json:"reason,omitempty"`
	SettledAt   sql.NullTime   `db:"settled_at" json:"settled_at,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	StartedAt   sql.NullTime   `db:"started_at" json:"started_at,omitempty"`
	EndedAt     sql.NullTime   `db:"ended_at" json:"ended_at,omitempty"`
}

// Participant binds a user to a match under a symbol, immutable after creation
type Participant struct {
	ID      string `db:"id" json:"id"`
	MatchID string `db:"match_id" json:"match_id"`
	UserID  string `db:"user_id" json:"user_id"`
	Symbol  string `db:"symbol" json:"symbol"`
}

// Move is one entry of a match's append-only move log, ordered by MoveNo.
// The match board is a materialized replay of this log.
type Move struct {
	ID        string         `db:"id" json:"id"`
	MatchID   string         `db:"match_id" json:"match_id"`
	UserID    sql.NullString `db:"user_id" json:"user_id,omitempty"`
	Index     int            `db:"cell_index" json:"index0to8"`
	Symbol    string         `db:"symbol" json:"symbol"`
	MoveNo    int            `db:"move_no" json:"move_no"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}
