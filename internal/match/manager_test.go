package match

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyn-warrior/TicX/internal/board"
	"github.com/dyn-warrior/TicX/internal/config"
	"github.com/dyn-warrior/TicX/internal/ledger"
	"github.com/dyn-warrior/TicX/internal/models"
	"github.com/dyn-warrior/TicX/internal/queue"
)

// fakeSettler records settlement calls and rejects duplicates per match.
type fakeSettler struct {
	mu       sync.Mutex
	wins     []string
	forfeits []string
	draws    []string
	cancels  []string
	settled  map[string]bool
}

func newFakeSettler() *fakeSettler {
	return &fakeSettler{settled: make(map[string]bool)}
}

func (f *fakeSettler) claim(matchID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settled[matchID] {
		return ledger.ErrAlreadySettled
	}
	f.settled[matchID] = true
	return nil
}

func (f *fakeSettler) SettleWin(_ context.Context, matchID, winnerID, _ string, _ int64, _ float64) error {
	if err := f.claim(matchID); err != nil {
		return err
	}
	f.mu.Lock()
	f.wins = append(f.wins, matchID+":"+winnerID)
	f.mu.Unlock()
	return nil
}

func (f *fakeSettler) SettleForfeit(_ context.Context, matchID, winnerID, _ string, _ int64, _ float64) error {
	if err := f.claim(matchID); err != nil {
		return err
	}
	f.mu.Lock()
	f.forfeits = append(f.forfeits, matchID+":"+winnerID)
	f.mu.Unlock()
	return nil
}

func (f *fakeSettler) SettleDraw(_ context.Context, matchID string, _ [2]string, _ int64, policy string) error {
	if err := f.claim(matchID); err != nil {
		return err
	}
	f.mu.Lock()
	f.draws = append(f.draws, matchID+":"+policy)
	f.mu.Unlock()
	return nil
}

func (f *fakeSettler) SettleCancel(_ context.Context, matchID string, _ [2]string, _ int64) error {
	if err := f.claim(matchID); err != nil {
		return err
	}
	f.mu.Lock()
	f.cancels = append(f.cancels, matchID)
	f.mu.Unlock()
	return nil
}

// fakeEmitter collects emitted event types.
type fakeEmitter struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeEmitter) ToUser(_ context.Context, _, eventType string, _ interface{}) {
	f.mu.Lock()
	f.events = append(f.events, "user:"+eventType)
	f.mu.Unlock()
}

func (f *fakeEmitter) ToMatch(_ context.Context, _, eventType string, _ interface{}) {
	f.mu.Lock()
	f.events = append(f.events, "match:"+eventType)
	f.mu.Unlock()
}

func (f *fakeEmitter) has(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e == name {
			return true
		}
	}
	return false
}

// fakeClock records scheduled deadlines.
type fakeClock struct {
	mu        sync.Mutex
	scheduled map[string]time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{scheduled: make(map[string]time.Time)}
}

func (f *fakeClock) Schedule(_ context.Context, matchID string, at time.Time) error {
	f.mu.Lock()
	f.scheduled[matchID] = at
	f.mu.Unlock()
	return nil
}

func (f *fakeClock) Clear(_ context.Context, matchID string) error {
	f.mu.Lock()
	delete(f.scheduled, matchID)
	f.mu.Unlock()
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		TurnMs:           20000,
		DrawRefundPolicy: ledger.DrawRefundFull,
		PayoutMultiplier: 1.5,
	}
}

func newTestManager(t *testing.T) (*Manager, *fakeSettler, *fakeEmitter, *fakeClock) {
	t.Helper()
	settler := newFakeSettler()
	emitter := &fakeEmitter{}
	clock := newFakeClock()
	return NewManager(nil, testConfig(), settler, emitter, clock), settler, emitter, clock
}

func pairEntries(stake int64) (queue.Entry, queue.Entry) {
	now := time.Now().UnixMilli()
	return queue.Entry{UserID: "alice", EntryAmount: stake, Leverage: 1, Timestamp: now},
		queue.Entry{UserID: "bob", EntryAmount: stake, Leverage: 1, Timestamp: now}
}

func TestCreateFromPairStartsActive(t *testing.T) {
	mgr, _, emitter, clock := newTestManager(t)
	e1, e2 := pairEntries(100)

	s, err := mgr.CreateFromPair(context.Background(), e1, e2)
	require.NoError(t, err)

	assert.Equal(t, models.MatchActive, s.Status)
	assert.Equal(t, board.EmptyBoard, s.Board)
	assert.Equal(t, board.SymbolX, s.Turn)
	assert.Equal(t, "alice", s.userBySymbol(board.SymbolX), "oldest entry plays X")
	assert.Equal(t, "bob", s.userBySymbol(board.SymbolO))

	_, ok := clock.scheduled[s.ID]
	assert.True(t, ok, "turn deadline scheduled at creation")
	assert.True(t, emitter.has("user:match_found"))
	assert.True(t, emitter.has("match:match_state"))
}

func TestCreateFromPairRejectsStakeMismatch(t *testing.T) {
	mgr, _, _, _ := newTestManager(t)
	e1, e2 := pairEntries(100)
	e2.EntryAmount = 200

	_, err := mgr.CreateFromPair(context.Background(), e1, e2)
	assert.Error(t, err)
}

func TestSubmitMoveValidation(t *testing.T) {
	mgr, _, _, _ := newTestManager(t)
	e1, e2 := pairEntries(100)
	s, err := mgr.CreateFromPair(context.Background(), e1, e2)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = mgr.SubmitMove(ctx, s.ID, "mallory", 0)
	assert.ErrorIs(t, err, ErrUnknownParticipant)

	_, err = mgr.SubmitMove(ctx, s.ID, "bob", 0)
	assert.ErrorIs(t, err, board.ErrNotYourTurn)

	_, err = mgr.SubmitMove(ctx, s.ID, "alice", 9)
	assert.ErrorIs(t, err, board.ErrInvalidPosition)

	_, err = mgr.SubmitMove(ctx, "no-such-match", "alice", 0)
	assert.ErrorIs(t, err, ErrMatchNotFound)

	// Legal move flips the turn
	snap, err := mgr.SubmitMove(ctx, s.ID, "alice", 4)
	require.NoError(t, err)
	assert.Equal(t, board.SymbolO, snap.Turn)
	assert.Equal(t, 1, snap.MoveCount)

	// Same cell now occupied
	_, err = mgr.SubmitMove(ctx, s.ID, "bob", 4)
	assert.ErrorIs(t, err, board.ErrCellOccupied)
}

func playOut(t *testing.T, mgr *Manager, matchID string, moves []struct {
	user  string
	index int
}) Snapshot {
	t.Helper()
	var snap Snapshot
	var err error
	for _, mv := range moves {
		snap, err = mgr.SubmitMove(context.Background(), matchID, mv.user, mv.index)
		require.NoError(t, err, "move %v", mv)
	}
	return snap
}

func TestWinTriggersSettlementOnce(t *testing.T) {
	mgr, settler, emitter, clock := newTestManager(t)
	e1, e2 := pairEntries(100)
	s, err := mgr.CreateFromPair(context.Background(), e1, e2)
	require.NoError(t, err)

	snap := playOut(t, mgr, s.ID, []struct {
		user  string
		index int
	}{
		{"alice", 0}, {"bob", 3}, {"alice", 1}, {"bob", 4}, {"alice", 2},
	})

	assert.Equal(t, models.MatchCompleted, snap.Status)
	assert.Equal(t, "alice", snap.WinnerID)
	assert.Equal(t, models.ReasonWin, snap.Reason)
	require.Len(t, settler.wins, 1)
	assert.Equal(t, s.ID+":alice", settler.wins[0])
	assert.True(t, emitter.has("match:match_end"))

	// Session evicted and deadline cleared
	_, err = mgr.SubmitMove(context.Background(), s.ID, "bob", 5)
	assert.ErrorIs(t, err, ErrMatchNotFound)
	_, scheduled := clock.scheduled[s.ID]
	assert.False(t, scheduled)
}

func TestDrawTriggersDrawSettlement(t *testing.T) {
	mgr, settler, _, _ := newTestManager(t)
	e1, e2 := pairEntries(100)
	s, err := mgr.CreateFromPair(context.Background(), e1, e2)
	require.NoError(t, err)

	// X O X / X O O / O X X with no three in a row:
	// X: 0,2,3,7,8  O: 1,4,5,6
	snap := playOut(t, mgr, s.ID, []struct {
		user  string
		index int
	}{
		{"alice", 0}, {"bob", 1}, {"alice", 2}, {"bob", 4},
		{"alice", 3}, {"bob", 5}, {"alice", 7}, {"bob", 6}, {"alice", 8},
	})

	assert.Equal(t, models.MatchCompleted, snap.Status)
	assert.Empty(t, snap.WinnerID)
	assert.Equal(t, models.ReasonDraw, snap.Reason)
	require.Len(t, settler.draws, 1)
	assert.Equal(t, s.ID+":full", settler.draws[0])
}

func TestResignForfeitsToOpponent(t *testing.T) {
	mgr, settler, _, _ := newTestManager(t)
	e1, e2 := pairEntries(100)
	s, err := mgr.CreateFromPair(context.Background(), e1, e2)
	require.NoError(t, err)

	require.NoError(t, mgr.Resign(context.Background(), s.ID, "alice"))

	require.Len(t, settler.forfeits, 1)
	assert.Equal(t, s.ID+":bob", settler.forfeits[0])
}

func TestForfeitExpiredTurn(t *testing.T) {
	mgr, settler, _, _ := newTestManager(t)
	e1, e2 := pairEntries(100)
	s, err := mgr.CreateFromPair(context.Background(), e1, e2)
	require.NoError(t, err)

	// Deadline still in the future: no forfeit
	require.NoError(t, mgr.ForfeitExpiredTurn(context.Background(), s.ID))
	assert.Empty(t, settler.forfeits)

	// Expire the clock: X is to move, so bob wins by forfeit
	s.mu.Lock()
	s.Deadline = time.Now().Add(-time.Second)
	s.mu.Unlock()
	require.NoError(t, mgr.ForfeitExpiredTurn(context.Background(), s.ID))

	require.Len(t, settler.forfeits, 1)
	assert.Equal(t, s.ID+":bob", settler.forfeits[0])

	// Firing again after eviction is a no-op
	require.NoError(t, mgr.ForfeitExpiredTurn(context.Background(), s.ID))
	assert.Len(t, settler.forfeits, 1)
}

func TestForceCancelRefundsBoth(t *testing.T) {
	mgr, settler, _, _ := newTestManager(t)
	e1, e2 := pairEntries(100)
	s, err := mgr.CreateFromPair(context.Background(), e1, e2)
	require.NoError(t, err)

	require.NoError(t, mgr.ForceCancel(context.Background(), s.ID, "operator action"))
	require.Len(t, settler.cancels, 1)

	// Terminal states are final
	err = mgr.ForceCancel(context.Background(), s.ID, "again")
	assert.ErrorIs(t, err, ErrMatchNotFound)
}

func TestZeroStakeMatchSkipsLedger(t *testing.T) {
	mgr, settler, _, _ := newTestManager(t)
	now := time.Now().UnixMilli()
	e1 := queue.Entry{UserID: "alice", EntryAmount: 0, Leverage: 1, Timestamp: now}
	e2 := queue.Entry{UserID: "bob", EntryAmount: 0, Leverage: 1, Timestamp: now}

	// Zero-stake pairs never come from the queue, but the state machine
	// must still refuse to settle them.
	s, err := mgr.CreateFromPair(context.Background(), e1, e2)
	require.NoError(t, err)
	require.NoError(t, mgr.Resign(context.Background(), s.ID, "alice"))

	assert.Empty(t, settler.forfeits)
	assert.Empty(t, settler.wins)
}

func TestHasOpenMatchInMemory(t *testing.T) {
	mgr, _, _, _ := newTestManager(t)
	e1, e2 := pairEntries(100)
	s, err := mgr.CreateFromPair(context.Background(), e1, e2)
	require.NoError(t, err)

	open, err := mgr.HasOpenMatch(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, open)

	require.NoError(t, mgr.Resign(context.Background(), s.ID, "bob"))

	open, err = mgr.HasOpenMatch(context.Background(), "alice")
	require.NoError(t, err)
	assert.False(t, open)
}

func TestConcurrentMovesSerializePerMatch(t *testing.T) {
	mgr, _, _, _ := newTestManager(t)
	e1, e2 := pairEntries(100)
	s, err := mgr.CreateFromPair(context.Background(), e1, e2)
	require.NoError(t, err)

	// Both players hammer the same cell concurrently; exactly one move of
	// each turn can land and the board must stay consistent.
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			mgr.SubmitMove(context.Background(), s.ID, "alice", 0)
		}()
		go func() {
			defer wg.Done()
			mgr.SubmitMove(context.Background(), s.ID, "bob", 0)
		}()
	}
	wg.Wait()

	snap, err := mgr.Snapshot(s.ID)
	require.NoError(t, err)
	assert.Equal(t, byte('X'), snap.Board[0], "cell 0 belongs to whoever moved first (X)")
	assert.Equal(t, 1, snap.MoveCount, "only one move can occupy cell 0")
}

func TestSnapshotDuringCreateSeesDeadline(t *testing.T) {
	mgr, _, _, _ := newTestManager(t)

	// A reader polls for the session while it is being created; under the
	// race detector this fails if any session field is written after the
	// registry publishes it.
	done := make(chan struct{})
	var sawDeadline bool
	go func() {
		defer close(done)
		for {
			s, ok := mgr.SessionForUser("alice")
			if !ok {
				continue
			}
			snap, err := mgr.Snapshot(s.ID)
			if err == nil && snap.RemainingMs > 0 {
				sawDeadline = true
			}
			return
		}
	}()

	e1, e2 := pairEntries(100)
	_, err := mgr.CreateFromPair(context.Background(), e1, e2)
	require.NoError(t, err)

	<-done
	assert.True(t, sawDeadline, "first visible snapshot must already carry a turn clock")
}
