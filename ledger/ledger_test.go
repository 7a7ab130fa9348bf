package ledger

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLedger(store Store) *Ledger {
	return New(store, 24*time.Hour, 3, slog.Default())
}

func TestRecordViolationDecay(t *testing.T) {
	assert := assert.New(t)

	l := testLedger(NewMemStore())
	now := time.Now()

	// violations inside the decay window accumulate
	count, remaining := l.RecordViolation(100, now)
	assert.Equal(1, count)
	assert.Equal(2, remaining)
	count, remaining = l.RecordViolation(100, now.Add(time.Hour))
	assert.Equal(2, count)
	assert.Equal(1, remaining)
	count, remaining = l.RecordViolation(100, now.Add(2*time.Hour))
	assert.Equal(3, count)
	assert.Equal(0, remaining)

	// past the max, remaining stays floored at zero
	count, remaining = l.RecordViolation(100, now.Add(3*time.Hour))
	assert.Equal(4, count)
	assert.Equal(0, remaining)

	// a violation past the decay window resets to 1, regardless of prior count
	count, remaining = l.RecordViolation(100, now.Add(3*time.Hour+25*time.Hour))
	assert.Equal(1, count)
	assert.Equal(2, remaining)

	// other users are unaffected
	count, _ = l.RecordViolation(200, now)
	assert.Equal(1, count)
}

func TestEvictStale(t *testing.T) {
	assert := assert.New(t)

	l := testLedger(NewMemStore())
	now := time.Now()

	l.RecordViolation(1, now.Add(-30*time.Hour))
	l.RecordViolation(2, now.Add(-2*time.Hour))
	l.RecordViolation(3, now)

	evicted := l.EvictStale(now)
	assert.Equal(1, evicted)

	_, ok := l.Get(1)
	assert.False(ok)
	_, ok = l.Get(2)
	assert.True(ok)
	_, ok = l.Get(3)
	assert.True(ok)

	// nothing else to evict on a second pass
	assert.Equal(0, l.EvictStale(now))
}

func TestSyncRoundTrip(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	store := NewMemStore()
	l := testLedger(store)
	now := time.Now()

	l.RecordViolation(1, now)
	l.RecordViolation(2, now)
	l.RecordViolation(2, now.Add(time.Minute))
	require.NoError(l.Sync(ctx))

	// reload into a fresh ledger: every record survives exactly once
	l2 := testLedger(store)
	require.NoError(l2.Load(ctx))
	recs := l2.Dump()
	assert.Len(recs, 2)

	rec, ok := l2.Get(2)
	require.True(ok)
	assert.Equal(2, rec.Count)

	// empty ledger round-trips too
	empty := testLedger(NewMemStore())
	require.NoError(empty.Sync(ctx))
	require.NoError(empty.Load(ctx))
	assert.Empty(empty.Dump())
}

func TestLoadSkipsStale(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	store := NewMemStore()
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(store.Upsert(ctx, Record{UserID: 9, Count: 2, LastViolationAt: &old}))

	l := testLedger(store)
	require.NoError(l.Load(ctx))
	_, ok := l.Get(9)
	assert.False(ok)
}

func TestLedgerConcurrent(t *testing.T) {
	assert := assert.New(t)

	l := testLedger(NewMemStore())
	now := time.Now()

	// concurrent writers for distinct users, plus interleaved readers; run
	// with `-race`
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(uid int64) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				l.RecordViolation(uid, now)
				l.Get(uid)
				time.Sleep(time.Nanosecond)
			}
		}(int64(i))
	}
	wg.Wait()

	for i := int64(0); i < 4; i++ {
		rec, ok := l.Get(i)
		assert.True(ok)
		assert.Equal(20, rec.Count)
	}
}
