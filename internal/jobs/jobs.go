package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/dyn-warrior/TicX/internal/config"
	"github.com/dyn-warrior/TicX/internal/ledger"
	"github.com/dyn-warrior/TicX/internal/queue"
)

// Start runs the background maintenance jobs: the orphaned-hold
// reconciliation sweep and expiry of stale queue entries. Returns the
// scheduler so the caller can shut it down.
func Start(cfg *config.Config, lg *ledger.Ledger, q *queue.Queue) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	reconcileEvery := time.Duration(cfg.ReconcileIntervalM) * time.Minute
	if _, err := sched.NewJob(
		gocron.DurationJob(reconcileEvery),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			refunded, err := lg.Reconcile(ctx, q)
			if err != nil {
				log.Printf("[RECONCILE] Sweep failed: %v", err)
				return
			}
			if refunded > 0 {
				log.Printf("[RECONCILE] Sweep refunded %d orphaned holds", refunded)
			}
		}),
	); err != nil {
		return nil, fmt.Errorf("schedule reconcile job: %w", err)
	}

	queueTTL := time.Duration(cfg.QueueTTLMinutes) * time.Minute
	if _, err := sched.NewJob(
		gocron.DurationJob(time.Minute),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			expired, err := q.ExpireStale(ctx, queueTTL)
			if err != nil {
				log.Printf("[QUEUE] Stale entry sweep failed: %v", err)
				return
			}
			for _, e := range expired {
				ref := fmt.Sprintf("queue entry expired after %s", queueTTL)
				if err := lg.ReleaseHold(ctx, e.UserID, e.EntryAmount, ref); err != nil {
					// The reconciliation sweep picks this hold up later.
					log.Printf("[QUEUE] Failed to release hold for expired entry user=%s: %v", e.UserID, err)
					continue
				}
				log.Printf("[QUEUE] Expired entry user=%s entry=%d, hold released", e.UserID, e.EntryAmount)
			}
		}),
	); err != nil {
		return nil, fmt.Errorf("schedule queue expiry job: %w", err)
	}

	sched.Start()
	log.Printf("[JOBS] Maintenance scheduler started (reconcile every %s, queue TTL %s)", reconcileEvery, queueTTL)
	return sched, nil
}
