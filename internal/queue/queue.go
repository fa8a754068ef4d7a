package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Entry is one waiting player in a stake pool. Entries are stored as JSON
// list items under queue:<entryAmount> and validated on the way back out;
// a payload that does not round-trip is rejected, never coerced.
type Entry struct {
	UserID      string `json:"userId"`
	EntryAmount int64  `json:"entryAmount"`
	Leverage    int    `json:"leverage"`
	Timestamp   int64  `json:"timestamp"` // unix millis at enqueue
}

var ErrMalformedEntry = errors.New("malformed queue entry")

// popPairScript atomically pops the two oldest entries from one stake pool.
// Running it server-side means two concurrent matchers can never both see
// two entries and pop overlapping ones.
var popPairScript = redis.NewScript(`
local queueKey = KEYS[1]
local queueLength = redis.call('LLEN', queueKey)

if queueLength < 2 then
  return nil
end

local first = redis.call('RPOP', queueKey)
local second = redis.call('RPOP', queueKey)

return {first, second}
`)

// Queue is the stake-partitioned waiting pool: one Redis list per distinct
// entry amount, FIFO within a pool, exact-amount matching only.
type Queue struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Queue {
	return &Queue{rdb: rdb}
}

func poolKey(entryAmount int64) string {
	return fmt.Sprintf("queue:%d", entryAmount)
}

func decodeEntry(raw string) (Entry, error) {
	var e Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return Entry{}, ErrMalformedEntry
	}
	if e.UserID == "" || e.EntryAmount <= 0 || e.Leverage < 1 {
		return Entry{}, ErrMalformedEntry
	}
	return e, nil
}

// Join appends a waiting entry to the pool for its exact stake amount.
// Callers must have placed the entry hold before enqueueing.
func (q *Queue) Join(ctx context.Context, entryAmount int64, userID string, leverage int) error {
	e := Entry{
		UserID:      userID,
		EntryAmount: entryAmount,
		Leverage:    leverage,
		Timestamp:   time.Now().UnixMilli(),
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return q.rdb.LPush(ctx, poolKey(entryAmount), payload).Err()
}

// Leave removes the user's entry from the pool if present. Returns whether
// a removal happened; absent entries are a no-op. The caller is responsible
// for releasing the corresponding hold.
func (q *Queue) Leave(ctx context.Context, entryAmount int64, userID string) (bool, error) {
	key := poolKey(entryAmount)
	items, err := q.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return false, err
	}

	for _, raw := range items {
		e, err := decodeEntry(raw)
		if err != nil {
			continue
		}
		if e.UserID == userID {
			n, err := q.rdb.LRem(ctx, key, 1, raw).Result()
			if err != nil {
				return false, err
			}
			return n > 0, nil
		}
	}
	return false, nil
}

// FindMatch atomically pops the two oldest entries from a pool, or returns
// (nil, nil, nil) when fewer than two players are waiting.
func (q *Queue) FindMatch(ctx context.Context, entryAmount int64) (*Entry, *Entry, error) {
	res, err := popPairScript.Run(ctx, q.rdb, []string{poolKey(entryAmount)}).Result()
	if err == redis.Nil {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	pair, ok := res.([]interface{})
	if !ok || len(pair) != 2 {
		return nil, nil, fmt.Errorf("unexpected pop-pair reply: %T", res)
	}

	first, ok1 := pair[0].(string)
	second, ok2 := pair[1].(string)
	if !ok1 || !ok2 {
		return nil, nil, fmt.Errorf("unexpected pop-pair members: %v", pair)
	}

	p1, err := decodeEntry(first)
	if err != nil {
		return nil, nil, err
	}
	p2, err := decodeEntry(second)
	if err != nil {
		return nil, nil, err
	}
	return &p1, &p2, nil
}

// Len returns the number of waiting entries for one stake amount.
func (q *Queue) Len(ctx context.Context, entryAmount int64) (int64, error) {
	return q.rdb.LLen(ctx, poolKey(entryAmount)).Result()
}

// ActivePools returns every stake pool with at least one waiting entry.
func (q *Queue) ActivePools(ctx context.Context) (map[string]int64, error) {
	keys, err := q.rdb.Keys(ctx, "queue:*").Result()
	if err != nil {
		return nil, err
	}

	pools := make(map[string]int64, len(keys))
	for _, key := range keys {
		n, err := q.rdb.LLen(ctx, key).Result()
		if err != nil {
			return nil, err
		}
		if n > 0 {
			pools[key[len("queue:"):]] = n
		}
	}
	return pools, nil
}

// IsQueued reports whether a user has a waiting entry in any pool. Used by
// the reconciliation sweep to tell a live hold from an orphaned one.
func (q *Queue) IsQueued(ctx context.Context, userID string) (bool, error) {
	keys, err := q.rdb.Keys(ctx, "queue:*").Result()
	if err != nil {
		return false, err
	}
	for _, key := range keys {
		items, err := q.rdb.LRange(ctx, key, 0, -1).Result()
		if err != nil {
			return false, err
		}
		for _, raw := range items {
			e, err := decodeEntry(raw)
			if err != nil {
				continue
			}
			if e.UserID == userID {
				return true, nil
			}
		}
	}
	return false, nil
}

// ExpireStale drops entries older than maxAge from every pool and returns
// the expired entries so callers can release the matching holds.
func (q *Queue) ExpireStale(ctx context.Context, maxAge time.Duration) ([]Entry, error) {
	keys, err := q.rdb.Keys(ctx, "queue:*").Result()
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-maxAge).UnixMilli()
	var expired []Entry
	for _, key := range keys {
		items, err := q.rdb.LRange(ctx, key, 0, -1).Result()
		if err != nil {
			return expired, err
		}
		for _, raw := range items {
			e, err := decodeEntry(raw)
			if err != nil {
				// Unreadable entries are dropped so they cannot wedge a pool.
				q.rdb.LRem(ctx, key, 1, raw)
				continue
			}
			if e.Timestamp < cutoff {
				n, err := q.rdb.LRem(ctx, key, 1, raw).Result()
				if err != nil {
					return expired, err
				}
				if n > 0 {
					expired = append(expired, e)
				}
			}
		}
	}
	return expired, nil
}

// RemoveUser removes a user's waiting entry from whichever pool holds it
// and returns the removed entry so the caller can release its hold.
func (q *Queue) RemoveUser(ctx context.Context, userID string) (*Entry, error) {
	keys, err := q.rdb.Keys(ctx, "queue:*").Result()
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		items, err := q.rdb.LRange(ctx, key, 0, -1).Result()
		if err != nil {
			return nil, err
		}
		for _, raw := range items {
			e, err := decodeEntry(raw)
			if err != nil {
				continue
			}
			if e.UserID == userID {
				n, err := q.rdb.LRem(ctx, key, 1, raw).Result()
				if err != nil {
					return nil, err
				}
				if n > 0 {
					return &e, nil
				}
			}
		}
	}
	return nil, nil
}
