package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Result of one admission check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// slidingWindowScript trims the window, counts it, and either admits the
// request or reports the earliest reset time, all in one server-side step.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local window_start = tonumber(ARGV[1])
local now = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local window_ms = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', key, 0, window_start)

local current = redis.call('ZCARD', key)

if current < limit then
  redis.call('ZADD', key, now, now .. '-' .. math.random(1000000))
  redis.call('EXPIRE', key, math.ceil(window_ms / 1000))
  return {1, limit - current - 1, now + window_ms}
else
  local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')[2]
  local reset_time = oldest and (tonumber(oldest) + window_ms) or (now + window_ms)
  return {0, 0, reset_time}
end
`)

// Limiter is a sliding-window admission control per user per action, backed
// by a Redis sorted set of request timestamps.
type Limiter struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Limiter {
	return &Limiter{rdb: rdb}
}

func limiterKey(action, userID string) string {
	return fmt.Sprintf("rate_limit:%s:%s", action, userID)
}

// Check admits or rejects one request for the given user/action pair under
// `limit` requests per `window`.
func (l *Limiter) Check(ctx context.Context, userID, action string, limit int, window time.Duration) (Result, error) {
	now := time.Now().UnixMilli()
	windowMs := window.Milliseconds()

	res, err := slidingWindowScript.Run(ctx, l.rdb,
		[]string{limiterKey(action, userID)},
		now-windowMs, now, limit, windowMs,
	).Result()
	if err != nil {
		return Result{}, err
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) != 3 {
		return Result{}, fmt.Errorf("unexpected rate limit reply: %T", res)
	}

	allowed, _ := vals[0].(int64)
	remaining, _ := vals[1].(int64)
	resetMs, _ := vals[2].(int64)

	return Result{
		Allowed:   allowed == 1,
		Remaining: int(remaining),
		ResetAt:   time.UnixMilli(resetMs),
	}, nil
}
