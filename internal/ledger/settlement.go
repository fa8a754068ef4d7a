package ledger

import (
	"context"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"

	"github.com/dyn-warrior/TicX/internal/models"
)

// PayoutFor computes the winner's credit for a settled match:
// potPerSide * multiplier * 2, capped at the total pot so funds are
// conserved. The residual between pot and payout stays with the house.
func PayoutFor(potPerSide int64, multiplier float64) int64 {
	pot := potPerSide * 2
	payout := int64(float64(potPerSide) * multiplier * 2)
	if payout > pot {
		payout = pot
	}
	if payout < 0 {
		payout = 0
	}
	return payout
}

// guardSettlement claims the one-shot settlement slot for a match inside the
// caller's transaction. A second claim observes settled_at already set and
// fails with ErrAlreadySettled, which makes every settlement idempotent.
func guardSettlement(tx *sqlx.Tx, matchID string) error {
	res, err := tx.Exec(`UPDATE matches SET settled_at=NOW() WHERE id=$1 AND settled_at IS NULL`, matchID)
	if err != nil {
		return fmt.Errorf("claim settlement: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists bool
		if err := tx.Get(&exists, `SELECT EXISTS (SELECT 1 FROM matches WHERE id=$1)`, matchID); err != nil {
			return err
		}
		if !exists {
			return ErrMatchNotFound
		}
		return ErrAlreadySettled
	}
	return nil
}

// SettleWin releases both sides' locks and credits the winner the
// multiplier-scaled payout. Exactly one settlement succeeds per match.
func (l *Ledger) SettleWin(ctx context.Context, matchID, winnerID, loserID string, potPerSide int64, multiplier float64) error {
	if potPerSide <= 0 {
		return ErrInvalidAmount
	}
	payout := PayoutFor(potPerSide, multiplier)

	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := guardSettlement(tx, matchID); err != nil {
		return err
	}

	wallets, err := lockWallets(tx, winnerID, loserID)
	if err != nil {
		return err
	}
	winner, loser := wallets[winnerID], wallets[loserID]

	winner.Locked -= potPerSide
	winner.Balance += payout
	loser.Locked -= potPerSide

	if err := l.writeWallet(tx, winner); err != nil {
		return err
	}
	if err := l.writeWallet(tx, loser); err != nil {
		return err
	}
	// The residual between the pot and the payout is the implicit house fee;
	// only the winner's credit gets an audit row.
	if err := record(tx, winner, models.TxPayout, payout, "match payout", matchID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	log.Printf("[LEDGER] SettleWin match=%s winner=%s payout=%d pot=%d", matchID, winnerID, payout, potPerSide*2)
	return nil
}

// SettleForfeit resolves a forfeited match: the forfeiting side's lock is
// surrendered and the opponent is credited like a regular winner.
func (l *Ledger) SettleForfeit(ctx context.Context, matchID, winnerID, forfeiterID string, potPerSide int64, multiplier float64) error {
	return l.SettleWin(ctx, matchID, winnerID, forfeiterID, potPerSide, multiplier)
}

// SettleDraw resolves a drawn match per policy: "full" releases each side's
// lock back to its balance, "none" forfeits both locks to the house.
func (l *Ledger) SettleDraw(ctx context.Context, matchID string, userIDs [2]string, potPerSide int64, policy string) error {
	if potPerSide <= 0 {
		return ErrInvalidAmount
	}
	if policy != DrawRefundFull && policy != DrawRefundNone {
		return fmt.Errorf("unknown draw refund policy %q", policy)
	}

	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := guardSettlement(tx, matchID); err != nil {
		return err
	}

	wallets, err := lockWallets(tx, userIDs[0], userIDs[1])
	if err != nil {
		return err
	}

	for _, uid := range userIDs {
		w := wallets[uid]
		w.Locked -= potPerSide
		if policy == DrawRefundFull {
			w.Balance += potPerSide
		}
		if err := l.writeWallet(tx, w); err != nil {
			return err
		}
		if policy == DrawRefundFull {
			err = record(tx, w, models.TxRefund, potPerSide, "draw refund", matchID)
		} else {
			err = record(tx, w, models.TxFee, -potPerSide, "draw stake forfeited", matchID)
		}
		if err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	log.Printf("[LEDGER] SettleDraw match=%s policy=%s potPerSide=%d", matchID, policy, potPerSide)
	return nil
}

// SettleCancel refunds both sides in full for a match that never completed.
func (l *Ledger) SettleCancel(ctx context.Context, matchID string, userIDs [2]string, potPerSide int64) error {
	if potPerSide <= 0 {
		return ErrInvalidAmount
	}

	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := guardSettlement(tx, matchID); err != nil {
		return err
	}

	wallets, err := lockWallets(tx, userIDs[0], userIDs[1])
	if err != nil {
		return err
	}
	for _, uid := range userIDs {
		w := wallets[uid]
		w.Locked -= potPerSide
		w.Balance += potPerSide
		if err := l.writeWallet(tx, w); err != nil {
			return err
		}
		if err := record(tx, w, models.TxRefund, potPerSide, "match cancelled", matchID); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	log.Printf("[LEDGER] SettleCancel match=%s potPerSide=%d", matchID, potPerSide)
	return nil
}
