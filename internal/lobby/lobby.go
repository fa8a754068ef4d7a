package lobby

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/dyn-warrior/TicX/internal/config"
	"github.com/dyn-warrior/TicX/internal/ledger"
	"github.com/dyn-warrior/TicX/internal/match"
	"github.com/dyn-warrior/TicX/internal/queue"
	"github.com/dyn-warrior/TicX/internal/ratelimit"
)

// Lobby failure modes
var (
	ErrStakeOutOfRange    = errors.New("base entry outside allowed bounds")
	ErrLeverageOutOfRange = errors.New("leverage outside allowed bounds")
	ErrRateLimited        = errors.New("too many requests")
	ErrAlreadyQueued      = errors.New("user already in queue")
	ErrAlreadyInMatch     = errors.New("user already has an open match")
	ErrNotQueued          = errors.New("user is not in queue")
)

// Rate limit action names
const (
	ActionJoinQueue  = "join_queue"
	ActionSubmitMove = "submit_move"
)

// Lobby coordinates the queue-join path: admission control, the entry
// hold, and the queue entry itself, in that order. Leaving reverses it.
type Lobby struct {
	cfg     *config.Config
	ledger  *ledger.Ledger
	queue   *queue.Queue
	limiter *ratelimit.Limiter
	matches *match.Manager
}

func New(cfg *config.Config, l *ledger.Ledger, q *queue.Queue, rl *ratelimit.Limiter, m *match.Manager) *Lobby {
	return &Lobby{cfg: cfg, ledger: l, queue: q, limiter: rl, matches: m}
}

// ValidateStake checks base entry and leverage against configured bounds.
func (lb *Lobby) ValidateStake(baseEntry int64, leverage int) error {
	if baseEntry < int64(lb.cfg.BaseEntryMin) || baseEntry > int64(lb.cfg.BaseEntryMax) {
		return ErrStakeOutOfRange
	}
	if leverage < lb.cfg.LeverageMin || leverage > lb.cfg.LeverageMax {
		return ErrLeverageOutOfRange
	}
	return nil
}

// JoinQueue places the entry hold and enqueues the user for pairing.
// Returns the final held amount (baseEntry x leverage).
func (lb *Lobby) JoinQueue(ctx context.Context, userID string, baseEntry int64, leverage int) (int64, error) {
	if err := lb.ValidateStake(baseEntry, leverage); err != nil {
		return 0, err
	}

	if lb.limiter != nil {
		res, err := lb.limiter.Check(ctx, userID, ActionJoinQueue, lb.cfg.JoinQueuePerMinute, time.Minute)
		if err != nil {
			return 0, fmt.Errorf("rate limit check: %w", err)
		}
		if !res.Allowed {
			return 0, ErrRateLimited
		}
	}

	open, err := lb.matches.HasOpenMatch(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("open match check: %w", err)
	}
	if open {
		return 0, ErrAlreadyInMatch
	}

	queued, err := lb.queue.IsQueued(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("queue membership check: %w", err)
	}
	if queued {
		return 0, ErrAlreadyQueued
	}

	entryAmount := baseEntry * int64(leverage)
	ref := fmt.Sprintf("queue entry hold - %d x %d", baseEntry, leverage)
	if err := lb.ledger.Hold(ctx, userID, entryAmount, ref); err != nil {
		return 0, err
	}

	if err := lb.queue.Join(ctx, entryAmount, userID, leverage); err != nil {
		// Enqueue failed after the hold landed: release it now. If this
		// release also fails, the reconciliation sweep picks the hold up.
		log.Printf("[LOBBY] Enqueue failed for user %s after hold, releasing: %v", userID, err)
		if rerr := lb.ledger.ReleaseHold(ctx, userID, entryAmount, "queue join failed"); rerr != nil {
			log.Printf("[LOBBY] Hold release failed for user %s: %v", userID, rerr)
		}
		return 0, err
	}

	log.Printf("[LOBBY] User %s joined queue at stake %d (base=%d leverage=%d)", userID, entryAmount, baseEntry, leverage)
	return entryAmount, nil
}

// LeaveQueue removes the user's waiting entry and releases the hold backing
// it. Removing and releasing are two steps against two stores; if the
// release fails the sweep will refund the now-orphaned hold.
func (lb *Lobby) LeaveQueue(ctx context.Context, userID string) (int64, error) {
	entry, err := lb.queue.RemoveUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("queue remove: %w", err)
	}
	if entry == nil {
		return 0, ErrNotQueued
	}

	if err := lb.ledger.ReleaseHold(ctx, userID, entry.EntryAmount, "left queue"); err != nil {
		log.Printf("[LOBBY] Hold release failed for user %s after queue leave: %v", userID, err)
		return 0, err
	}

	log.Printf("[LOBBY] User %s left queue at stake %d", userID, entry.EntryAmount)
	return entry.EntryAmount, nil
}

// AllowMove applies the per-user move rate limit.
func (lb *Lobby) AllowMove(ctx context.Context, userID string) error {
	if lb.limiter == nil {
		return nil
	}
	res, err := lb.limiter.Check(ctx, userID, ActionSubmitMove, lb.cfg.MovesPer10Seconds, 10*time.Second)
	if err != nil {
		return fmt.Errorf("rate limit check: %w", err)
	}
	if !res.Allowed {
		return ErrRateLimited
	}
	return nil
}
