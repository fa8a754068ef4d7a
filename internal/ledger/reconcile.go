package ledger

import (
	"context"
	"fmt"
	"log"
)

// QueueMembership reports whether a user currently has a waiting queue
// entry. The matchmaking queue lives in a different store, so the sweep
// takes it as a collaborator rather than reaching into queue keys itself.
type QueueMembership interface {
	IsQueued(ctx context.Context, userID string) (bool, error)
}

// orphanRow is a wallet with locked funds and no live match to back them.
type orphanRow struct {
	UserID string `db:"user_id"`
	Locked int64  `db:"locked"`
}

// Reconcile finds holds with no corresponding WAITING/ACTIVE match or queue
// entry and refunds them. This sweep is the crash-recovery path: a process
// dying between a hold and its queue entry (or between queue removal and
// hold release) leaves funds locked until this pass returns them.
func (l *Ledger) Reconcile(ctx context.Context, queue QueueMembership) (int, error) {
	var orphans []orphanRow
	err := l.db.SelectContext(ctx, &orphans, `
		SELECT w.user_id, w.locked
		FROM wallets w
		WHERE w.locked > 0
		  AND NOT EXISTS (
			SELECT 1 FROM participants p
			JOIN matches m ON m.id = p.match_id
			WHERE p.user_id = w.user_id
			  AND m.status IN ('WAITING', 'ACTIVE')
		  )
	`)
	if err != nil {
		return 0, fmt.Errorf("find orphaned holds: %w", err)
	}

	refunded := 0
	for _, o := range orphans {
		queued, err := queue.IsQueued(ctx, o.UserID)
		if err != nil {
			log.Printf("[RECONCILE] Queue check failed for user %s: %v", o.UserID, err)
			continue
		}
		if queued {
			continue // hold is backed by a live queue entry
		}

		if err := l.ReleaseHold(ctx, o.UserID, o.Locked, "orphaned hold reconciliation"); err != nil {
			log.Printf("[RECONCILE] Failed to refund orphaned hold user=%s amount=%d: %v", o.UserID, o.Locked, err)
			continue
		}
		log.Printf("[RECONCILE] Refunded orphaned hold user=%s amount=%d", o.UserID, o.Locked)
		refunded++
	}
	return refunded, nil
}
