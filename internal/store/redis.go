package store

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"golang.org/x/xerrors"
)

// Redis maps each attribute of a row to its own key,
// <table>:<pk>:user_hashes (list) and <table>:<pk>:visits (integer).
// RPUSH and INCRBY create missing keys, which gives the create-if-absent
// semantics without scripting.
type Redis struct {
	client redis.UniversalClient
	table  string
}

func NewRedis(client redis.UniversalClient, table string) *Redis {
	return &Redis{client: client, table: table}
}

func (r *Redis) key(pk, attr string) string {
	return r.table + ":" + pk + ":" + attr
}

func (r *Redis) Get(ctx context.Context, key string) (*Item, error) {
	var (
		hashes *redis.StringSliceCmd
		visits *redis.StringCmd
	)
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		hashes = pipe.LRange(ctx, r.key(key, AttrUserHashes), 0, -1)
		visits = pipe.Get(ctx, r.key(key, AttrVisits))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, xerrors.Errorf("read %q: %w", key, err)
	}

	item := &Item{Key: key}
	found := false
	if list := hashes.Val(); len(list) > 0 {
		item.UserHashes = list
		found = true
	}
	n, err := visits.Int64()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return nil, xerrors.Errorf("read %s of %q: %w", AttrVisits, key, err)
	default:
		item.Visits = &n
		found = true
	}
	if !found {
		return nil, nil
	}
	return item, nil
}

func (r *Redis) AppendUserHash(ctx context.Context, key, hash string) error {
	if err := r.client.RPush(ctx, r.key(key, AttrUserHashes), hash).Err(); err != nil {
		return xerrors.Errorf("append to %q: %w", key, err)
	}
	return nil
}

func (r *Redis) IncrementVisits(ctx context.Context, key string, delta int64) (*int64, error) {
	n, err := r.client.IncrBy(ctx, r.key(key, AttrVisits), delta).Result()
	if err != nil {
		return nil, xerrors.Errorf("increment %q: %w", key, err)
	}
	return &n, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
