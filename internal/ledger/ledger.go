package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dyn-warrior/TicX/internal/models"
)

// Ledger operation errors
var (
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUserBanned          = errors.New("user is banned")
	ErrAccountFrozen       = errors.New("account is frozen")
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrInsufficientLocked  = errors.New("held amount smaller than requested release")
	ErrAlreadySettled      = errors.New("match already settled")
	ErrMatchNotFound       = errors.New("match not found")
	ErrInvariantViolation  = errors.New("ledger invariant violated")
)

// Draw refund policies
const (
	DrawRefundFull = "full"
	DrawRefundNone = "none"
)

// Ledger owns every mutation of wallet balance/locked pairs. Each operation
// is a single transaction spanning the wallet update and its audit record,
// with the wallet rows locked FOR UPDATE so per-user mutations serialize.
type Ledger struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Ledger {
	return &Ledger{db: db}
}

// walletRow is the locked working copy inside a transaction.
type walletRow struct {
	ID      string `db:"id"`
	UserID  string `db:"user_id"`
	Balance int64  `db:"balance"`
	Locked  int64  `db:"locked"`
}

// lockWallets selects the wallets of the given users FOR UPDATE. User IDs
// are sorted first so concurrent settlements take row locks in one order.
func lockWallets(tx *sqlx.Tx, userIDs ...string) (map[string]*walletRow, error) {
	ids := append([]string(nil), userIDs...)
	sort.Strings(ids)

	query, args, err := sqlx.In(
		`SELECT id, user_id, balance, locked FROM wallets WHERE user_id IN (?) ORDER BY user_id FOR UPDATE`, ids)
	if err != nil {
		return nil, err
	}

	var rows []walletRow
	if err := tx.Select(&rows, tx.Rebind(query), args...); err != nil {
		return nil, err
	}
	if len(rows) != len(ids) {
		return nil, ErrWalletNotFound
	}

	out := make(map[string]*walletRow, len(rows))
	for i := range rows {
		out[rows[i].UserID] = &rows[i]
	}
	return out, nil
}

// writeWallet persists a wallet row and guards the non-negativity invariant.
// A violation freezes the owning account instead of silently continuing. The
// freeze runs on its own connection so the failing transaction's rollback
// cannot undo it.
func (l *Ledger) writeWallet(tx *sqlx.Tx, w *walletRow) error {
	if w.Balance < 0 || w.Locked < 0 {
		log.Printf("[LEDGER] INVARIANT VIOLATION user=%s balance=%d locked=%d - freezing account", w.UserID, w.Balance, w.Locked)
		if _, err := l.db.Exec(`UPDATE users SET frozen=TRUE, freeze_reason=$1 WHERE id=$2`,
			fmt.Sprintf("ledger invariant: balance=%d locked=%d", w.Balance, w.Locked), w.UserID); err != nil {
			log.Printf("[LEDGER] Failed to freeze account %s: %v", w.UserID, err)
		}
		return ErrInvariantViolation
	}
	_, err := tx.Exec(`UPDATE wallets SET balance=$1, locked=$2, updated_at=NOW() WHERE id=$3`,
		w.Balance, w.Locked, w.ID)
	return err
}

// record appends one immutable wallet_transactions audit row.
func record(tx *sqlx.Tx, w *walletRow, txType string, amount int64, ref string, matchID string) error {
	var mid sql.NullString
	if matchID != "" {
		mid = sql.NullString{String: matchID, Valid: true}
	}
	_, err := tx.Exec(
		`INSERT INTO wallet_transactions (id, user_id, wallet_id, type, amount, status, ref, match_id, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW())`,
		uuid.NewString(), w.UserID, w.ID, txType, amount, models.TxStatusCompleted, ref, mid)
	return err
}

// Deposit credits a user's available balance. The only operation that may
// increase balance+locked.
func (l *Ledger) Deposit(ctx context.Context, userID string, amount int64, ref string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	wallets, err := lockWallets(tx, userID)
	if err != nil {
		return err
	}
	w := wallets[userID]
	w.Balance += amount

	if err := l.writeWallet(tx, w); err != nil {
		return err
	}
	if err := record(tx, w, models.TxDeposit, amount, ref, ""); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	log.Printf("[LEDGER] Deposit user=%s amount=%d", userID, amount)
	return nil
}

// Hold moves amount from a user's available balance into their lock for a
// pending match entry. Fails without mutation when the balance is short or
// the account is banned/frozen.
func (l *Ledger) Hold(ctx context.Context, userID string, amount int64, ref string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var u struct {
		Banned bool `db:"banned"`
		Frozen bool `db:"frozen"`
	}
	if err := tx.Get(&u, `SELECT banned, frozen FROM users WHERE id=$1`, userID); err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if u.Banned {
		return ErrUserBanned
	}
	if u.Frozen {
		return ErrAccountFrozen
	}

	wallets, err := lockWallets(tx, userID)
	if err != nil {
		return err
	}
	w := wallets[userID]
	if w.Balance < amount {
		return ErrInsufficientBalance
	}
	w.Balance -= amount
	w.Locked += amount

	if err := l.writeWallet(tx, w); err != nil {
		return err
	}
	if err := record(tx, w, models.TxEntryHold, -amount, ref, ""); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	log.Printf("[LEDGER] Hold user=%s amount=%d", userID, amount)
	return nil
}

// ReleaseHold returns held funds to the available balance, used when a
// player leaves the queue before pairing or during reconciliation.
func (l *Ledger) ReleaseHold(ctx context.Context, userID string, amount int64, ref string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	wallets, err := lockWallets(tx, userID)
	if err != nil {
		return err
	}
	w := wallets[userID]
	if err := applyRelease(w, amount); err != nil {
		// A concurrent path already released this hold (queue leave racing
		// the reconciliation sweep). That is a lost race, not corruption.
		return err
	}

	if err := l.writeWallet(tx, w); err != nil {
		return err
	}
	if err := record(tx, w, models.TxRefund, amount, ref, ""); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	log.Printf("[LEDGER] ReleaseHold user=%s amount=%d", userID, amount)
	return nil
}

// applyRelease moves a hold back to the available balance, rejecting a
// release larger than what is actually held.
func applyRelease(w *walletRow, amount int64) error {
	if w.Locked < amount {
		return ErrInsufficientLocked
	}
	w.Locked -= amount
	w.Balance += amount
	return nil
}

// GetWallet returns the current wallet snapshot for a user.
func (l *Ledger) GetWallet(ctx context.Context, userID string) (*models.Wallet, error) {
	var w models.Wallet
	err := l.db.GetContext(ctx, &w,
		`SELECT id, user_id, balance, locked, updated_at FROM wallets WHERE user_id=$1`, userID)
	if err == sql.ErrNoRows {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// Transactions returns a user's audit trail, newest first.
func (l *Ledger) Transactions(ctx context.Context, userID string, limit int) ([]models.WalletTransaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var txs []models.WalletTransaction
	err := l.db.SelectContext(ctx, &txs,
		`SELECT id, user_id, wallet_id, type, amount, status, ref, match_id, created_at
		 FROM wallet_transactions WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	return txs, err
}
