package match

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dyn-warrior/TicX/internal/config"
)

// deadlineKey is the sorted set of matchID -> turn deadline (unix millis).
const deadlineKey = "turn_deadlines"

// RedisClock stores turn deadlines in a Redis sorted set so deadlines
// survive a process restart and a single poller can fire them.
type RedisClock struct {
	rdb *redis.Client
}

func NewRedisClock(rdb *redis.Client) *RedisClock {
	return &RedisClock{rdb: rdb}
}

func (c *RedisClock) Schedule(ctx context.Context, matchID string, at time.Time) error {
	return c.rdb.ZAdd(ctx, deadlineKey, redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: matchID,
	}).Err()
}

func (c *RedisClock) Clear(ctx context.Context, matchID string) error {
	return c.rdb.ZRem(ctx, deadlineKey, matchID).Err()
}

// StartTurnTimerWorker polls for expired turn deadlines and forfeits the
// mover. ZRem is the claim: of N pollers only the one that removes the
// member proceeds, and ForfeitExpiredTurn re-checks under the match lock.
func StartTurnTimerWorker(ctx context.Context, rdb *redis.Client, mgr *Manager, cfg *config.Config) {
	interval := time.Duration(cfg.TurnPollMs) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("[TURN] Turn timer worker started (poll every %v)", interval)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[TURN] Turn timer worker stopped")
			return
		case <-ticker.C:
			now := time.Now().UnixMilli()
			expired, err := rdb.ZRangeByScore(ctx, deadlineKey, &redis.ZRangeBy{
				Min: "-inf",
				Max: fmt.Sprintf("%d", now),
			}).Result()
			if err != nil {
				log.Printf("[TURN] Failed to fetch expired deadlines: %v", err)
				continue
			}

			for _, matchID := range expired {
				removed, err := rdb.ZRem(ctx, deadlineKey, matchID).Result()
				if err != nil || removed == 0 {
					continue // another worker claimed it
				}
				if err := mgr.ForfeitExpiredTurn(ctx, matchID); err != nil {
					log.Printf("[TURN] Forfeit failed for match %s: %v", matchID, err)
				}
			}
		}
	}
}
