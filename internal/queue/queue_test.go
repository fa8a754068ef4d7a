package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolKeyPartitionsByExactAmount(t *testing.T) {
	assert.Equal(t, "queue:100", poolKey(100))
	assert.Equal(t, "queue:500", poolKey(500))
	assert.NotEqual(t, poolKey(100), poolKey(1000))
}

func TestDecodeEntryRoundTrip(t *testing.T) {
	raw := `{"userId":"u1","entryAmount":100,"leverage":2,"timestamp":1700000000000}`
	e, err := decodeEntry(raw)
	require.NoError(t, err)
	assert.Equal(t, "u1", e.UserID)
	assert.Equal(t, int64(100), e.EntryAmount)
	assert.Equal(t, 2, e.Leverage)
}

func TestDecodeEntryRejectsMalformed(t *testing.T) {
	cases := []string{
		`not json`,
		`{}`,
		`{"userId":"","entryAmount":100,"leverage":1}`,
		`{"userId":"u1","entryAmount":0,"leverage":1}`,
		`{"userId":"u1","entryAmount":100,"leverage":0}`,
	}
	for _, raw := range cases {
		_, err := decodeEntry(raw)
		assert.ErrorIs(t, err, ErrMalformedEntry, "payload %q", raw)
	}
}

func TestEntryTimestampIsMillis(t *testing.T) {
	e := Entry{Timestamp: time.Now().UnixMilli()}
	assert.InDelta(t, time.Now().UnixMilli(), e.Timestamp, 1000)
}

func newTestQueue(t *testing.T) (*Queue, *redis.Client) {
	t.Helper()
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return New(rdb), rdb
}

func TestFindMatchPopsOldestPairFirst(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Join(ctx, 500, "alice", 1))
	require.NoError(t, q.Join(ctx, 500, "bob", 1))
	require.NoError(t, q.Join(ctx, 500, "carol", 1))

	p1, p2, err := q.FindMatch(ctx, 500)
	require.NoError(t, err)
	require.NotNil(t, p1)
	require.NotNil(t, p2)
	assert.Equal(t, "alice", p1.UserID)
	assert.Equal(t, "bob", p2.UserID)

	// One entry left is not a pair.
	p1, p2, err = q.FindMatch(ctx, 500)
	require.NoError(t, err)
	assert.Nil(t, p1)
	assert.Nil(t, p2)

	n, err := q.Len(ctx, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestFindMatchConcurrentCallersPopExactlyOnePair(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Join(ctx, 500, "alice", 1))
	require.NoError(t, q.Join(ctx, 500, "bob", 1))

	// A pool of exactly two entries under many concurrent matchers must
	// yield one pair total, never overlapping pops.
	const callers = 16
	var pairs int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			p1, p2, err := q.FindMatch(ctx, 500)
			assert.NoError(t, err)
			if p1 != nil && p2 != nil {
				atomic.AddInt32(&pairs, 1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&pairs))

	n, err := q.Len(ctx, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}
