package store

import "context"

// Attribute names shared by every backend. The table is keyed by HashKey.
const (
	HashKey        = "pk"
	AttrUserHashes = "user_hashes"
	AttrVisits     = "visits"
)

// Item is one row of the visit table. Either attribute may be absent.
type Item struct {
	Key        string
	UserHashes []string
	Visits     *int64
}

// Store is a key-value table supporting atomic list appends and counter
// increments. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns nil when no row exists for key.
	Get(ctx context.Context, key string) (*Item, error)
	// AppendUserHash appends hash to the row's user_hashes list, creating
	// the row and the list when absent.
	AppendUserHash(ctx context.Context, key, hash string) error
	// IncrementVisits adds delta to the row's visits counter, treating an
	// absent row or counter as zero, and returns the value after the update.
	// A nil value with a nil error means the store reported nothing back.
	IncrementVisits(ctx context.Context, key string, delta int64) (*int64, error)
	Ping(ctx context.Context) error
	Close() error
}
