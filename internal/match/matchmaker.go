package match

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/dyn-warrior/TicX/internal/config"
	"github.com/dyn-warrior/TicX/internal/queue"
)

// StartMatchmakerWorker drains the stake pools in the background: for every
// pool with at least two waiting entries it pops pairs and creates matches.
func StartMatchmakerWorker(ctx context.Context, q *queue.Queue, mgr *Manager, cfg *config.Config) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	log.Printf("[MATCHMAKER] Matchmaker worker started")

	for {
		select {
		case <-ctx.Done():
			log.Printf("[MATCHMAKER] Matchmaker worker stopped")
			return
		case <-ticker.C:
			processPools(ctx, q, mgr)
		}
	}
}

func processPools(ctx context.Context, q *queue.Queue, mgr *Manager) {
	pools, err := q.ActivePools(ctx)
	if err != nil {
		log.Printf("[MATCHMAKER] Failed to list pools: %v", err)
		return
	}

	for stakeStr, n := range pools {
		if n < 2 {
			continue
		}
		stake, err := strconv.ParseInt(stakeStr, 10, 64)
		if err != nil {
			log.Printf("[MATCHMAKER] Skipping malformed pool key %q", stakeStr)
			continue
		}
		for {
			if !tryPair(ctx, q, mgr, stake) {
				break
			}
		}
	}
}

// tryPair pops one pair from a pool and creates their match. Returns false
// when the pool has no pair left.
func tryPair(ctx context.Context, q *queue.Queue, mgr *Manager, stake int64) bool {
	p1, p2, err := q.FindMatch(ctx, stake)
	if err != nil {
		log.Printf("[MATCHMAKER] Pop-pair failed for stake %d: %v", stake, err)
		return false
	}
	if p1 == nil || p2 == nil {
		return false
	}

	// A user somehow queued against themselves gets requeued once.
	if p1.UserID == p2.UserID {
		log.Printf("[MATCHMAKER] Dropping self-match for user %s", p1.UserID)
		if err := q.Join(ctx, p1.EntryAmount, p1.UserID, p1.Leverage); err != nil {
			log.Printf("[MATCHMAKER] Requeue failed for user %s: %v", p1.UserID, err)
		}
		return false
	}

	if _, err := mgr.CreateFromPair(ctx, *p1, *p2); err != nil {
		// The entries are already popped; put them back so their holds
		// stay backed by queue entries until the next attempt.
		log.Printf("[MATCHMAKER] Match creation failed for stake %d: %v - requeueing both", stake, err)
		if err := q.Join(ctx, p1.EntryAmount, p1.UserID, p1.Leverage); err != nil {
			log.Printf("[MATCHMAKER] Requeue failed for user %s: %v", p1.UserID, err)
		}
		if err := q.Join(ctx, p2.EntryAmount, p2.UserID, p2.Leverage); err != nil {
			log.Printf("[MATCHMAKER] Requeue failed for user %s: %v", p2.UserID, err)
		}
		return false
	}

	log.Printf("[MATCHMAKER] Paired %s vs %s at stake %d", p1.UserID, p2.UserID, stake)
	return true
}
