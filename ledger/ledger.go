// Package ledger owns the per-user violation state: a guarded in-memory map
// serving the moderation hot path, mirrored into a durable store by a
// periodic sync job, and bounded by stale-record eviction.
package ledger

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type Ledger struct {
	logger        *slog.Logger
	store         Store
	decay         time.Duration
	maxViolations int

	mu   sync.RWMutex
	recs map[int64]Record
}

func New(store Store, decay time.Duration, maxViolations int, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		logger:        logger.With("system", "ledger"),
		store:         store,
		decay:         decay,
		maxViolations: maxViolations,
		recs:          make(map[int64]Record),
	}
}

// MaxViolations is the count at which enforcement escalates from warning to
// removal.
func (l *Ledger) MaxViolations() int {
	return l.maxViolations
}

// Load does a one-time bulk read of the durable store into memory. Must be
// called before the ledger accepts traffic. Records already past the decay
// window are skipped rather than loaded and immediately evicted.
func (l *Ledger) Load(ctx context.Context) error {
	recs, err := l.store.LoadAll(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	loaded := 0
	for _, rec := range recs {
		if rec.Count <= 0 || rec.Stale(now, l.decay) {
			continue
		}
		l.recs[rec.UserID] = rec
		loaded++
	}
	l.logger.Info("loaded violation records", "total", len(recs), "live", loaded)
	return nil
}

// RecordViolation applies the decay rule and returns the updated count plus
// the number of warnings remaining before removal, so the caller can decide
// enforcement without a second lookup.
//
// A violation later than the decay window after the previous one resets the
// count to 1 instead of incrementing.
func (l *Ledger) RecordViolation(userID int64, now time.Time) (count, remaining int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec := l.recs[userID]
	if rec.Stale(now, l.decay) {
		rec.Count = 1
	} else {
		rec.Count++
	}
	t := now
	rec.UserID = userID
	rec.LastViolationAt = &t
	l.recs[userID] = rec

	remaining = l.maxViolations - rec.Count
	if remaining < 0 {
		remaining = 0
	}
	return rec.Count, remaining
}

// Get returns the current record for a user, if present in the hot cache.
func (l *Ledger) Get(userID int64) (Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.recs[userID]
	return rec, ok
}

// Dump returns a copy of every in-memory record.
func (l *Ledger) Dump() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Record, 0, len(l.recs))
	for _, rec := range l.recs {
		out = append(out, rec)
	}
	return out
}

// EvictStale removes every record whose last violation is older than the
// decay window, bounding memory growth from one-off offenders. The durable
// copy is left alone; it stops refreshing and a later reload skips it.
func (l *Ledger) EvictStale(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	evicted := 0
	for uid, rec := range l.recs {
		if rec.Stale(now, l.decay) {
			delete(l.recs, uid)
			evicted++
		}
	}
	return evicted
}

// Sync upserts every in-memory record into the durable store. The snapshot is
// taken under the read lock; store writes happen after release so durable
// store latency never blocks the hot path.
func (l *Ledger) Sync(ctx context.Context) error {
	snapshot := l.Dump()
	var lastErr error
	failed := 0
	for _, rec := range snapshot {
		if err := l.store.Upsert(ctx, rec); err != nil {
			failed++
			lastErr = err
		}
	}
	if lastErr != nil {
		l.logger.Warn("ledger sync incomplete", "total", len(snapshot), "failed", failed, "err", lastErr)
		return lastErr
	}
	l.logger.Info("ledger sync complete", "records", len(snapshot))
	return nil
}

// RunSync periodically mirrors the ledger to the durable store. Failures are
// logged and retried on the next tick, never fatal.
func (l *Ledger) RunSync(ctx context.Context, period time.Duration) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			// final best-effort sync on shutdown
			if err := l.Sync(context.WithoutCancel(ctx)); err != nil {
				l.logger.Error("final ledger sync failed", "err", err)
			}
			return nil
		case <-ticker.C:
			if err := l.Sync(ctx); err != nil {
				l.logger.Error("periodic ledger sync failed", "err", err)
			}
		}
	}
}

// RunEvict periodically drops stale records from the hot cache.
func (l *Ledger) RunEvict(ctx context.Context, period time.Duration) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := l.EvictStale(time.Now()); n > 0 {
				l.logger.Info("evicted stale violation records", "count", n)
			}
		}
	}
}
