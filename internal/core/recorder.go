package core

import (
	"context"
	"slices"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog/log"

	"github.com/roniherschmann/visit-counter/internal/metrics"
	"github.com/roniherschmann/visit-counter/internal/store"
)

// TotalVisitsKey is the row holding the all-time counter.
const TotalVisitsKey = "total_visits"

// MonthKey returns the row key of the calendar month containing t, for
// example "visit#Nov#2024". The month is taken in UTC and always uses the
// English three-letter abbreviation.
func MonthKey(t time.Time) string {
	t = t.UTC()
	return "visit#" + t.Format("Jan") + "#" + t.Format("2006")
}

// Recorder counts unique visitors per calendar month on top of a Store.
// The store handle is shared across requests; Recorder itself holds no
// mutable state.
type Recorder struct {
	store store.Store
	clock quartz.Clock
}

type Option func(*Recorder)

func WithClock(c quartz.Clock) Option {
	return func(r *Recorder) { r.clock = c }
}

func NewRecorder(s store.Store, opts ...Option) *Recorder {
	r := &Recorder{
		store: s,
		clock: quartz.NewReal(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetTotalVisits returns the all-time counter, or 0 when it was never written.
func (r *Recorder) GetTotalVisits(ctx context.Context) (int64, error) {
	item, err := r.store.Get(ctx, TotalVisitsKey)
	if err != nil {
		return 0, &StoreError{Op: "get total visits", Err: err}
	}
	if item == nil || item.Visits == nil {
		log.Warn().Str("key", TotalVisitsKey).Msg("total_visits row not found")
		return 0, nil
	}
	return *item.Visits, nil
}

// RecordVisit adds visitorHash to the current month and bumps the total,
// returning the total after the increment.
//
// The duplicate check and the two writes are separate store calls. Two
// concurrent calls with the same hash may both pass the check and both be
// counted, and a failed increment after a successful append leaves the
// month list and the total out of step.
func (r *Recorder) RecordVisit(ctx context.Context, visitorHash string) (int64, error) {
	if visitorHash == "" {
		return 0, ErrMissingUserHash
	}

	key := MonthKey(r.clock.Now())
	item, err := r.store.Get(ctx, key)
	if err != nil {
		return 0, &StoreError{Op: "get monthly visitors", Err: err}
	}
	if item != nil && slices.Contains(item.UserHashes, visitorHash) {
		metrics.DuplicateVisits.Inc()
		return 0, ErrDuplicateVisit
	}

	if err := r.store.AppendUserHash(ctx, key, visitorHash); err != nil {
		return 0, &StoreError{Op: "append visitor", Err: err}
	}
	total, err := r.store.IncrementVisits(ctx, TotalVisitsKey, 1)
	if err != nil {
		log.Error().Err(err).Str("month", key).Msg("visitor appended but total not incremented")
		return 0, &StoreError{Op: "increment total visits", Err: err}
	}
	if total == nil {
		log.Error().Str("key", TotalVisitsKey).Str("month", key).Msg("increment returned no value")
		return 0, ErrInconsistentState
	}

	metrics.VisitsRecorded.Inc()
	return *total, nil
}
