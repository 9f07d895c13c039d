package store

import (
	"context"
	"time"

	"github.com/roniherschmann/visit-counter/internal/metrics"
)

type instrumented struct {
	backend string
	next    Store
}

// Instrument records latency and failures of every call to s under the
// given backend label.
func Instrument(s Store, backend string) Store {
	return &instrumented{backend: backend, next: s}
}

func (i *instrumented) observe(op string, start time.Time, err error) {
	metrics.StoreOpDuration.WithLabelValues(i.backend, op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StoreOpErrors.WithLabelValues(i.backend, op).Inc()
	}
}

func (i *instrumented) Get(ctx context.Context, key string) (item *Item, err error) {
	start := time.Now()
	defer func() { i.observe("get", start, err) }()
	return i.next.Get(ctx, key)
}

func (i *instrumented) AppendUserHash(ctx context.Context, key, hash string) (err error) {
	start := time.Now()
	defer func() { i.observe("append", start, err) }()
	return i.next.AppendUserHash(ctx, key, hash)
}

func (i *instrumented) IncrementVisits(ctx context.Context, key string, delta int64) (v *int64, err error) {
	start := time.Now()
	defer func() { i.observe("increment", start, err) }()
	return i.next.IncrementVisits(ctx, key, delta)
}

func (i *instrumented) Ping(ctx context.Context) error {
	return i.next.Ping(ctx)
}

func (i *instrumented) Close() error {
	return i.next.Close()
}
