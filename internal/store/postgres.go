package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"golang.org/x/xerrors"
)

// Postgres keeps user_hashes in a TEXT[] column and relies on upserts for
// the create-if-absent semantics.
type Postgres struct {
	db    *sql.DB
	table string
}

func NewPostgres(db *sql.DB, table string) *Postgres {
	return &Postgres{db: db, table: pq.QuoteIdentifier(table)}
}

func (p *Postgres) Get(ctx context.Context, key string) (*Item, error) {
	var (
		hashes pq.StringArray
		visits sql.NullInt64
	)
	err := p.db.QueryRowContext(ctx, `SELECT user_hashes, visits FROM `+p.table+` WHERE pk = $1`, key).Scan(&hashes, &visits)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, xerrors.Errorf("select %q: %w", key, err)
	}

	item := &Item{Key: key, UserHashes: hashes}
	if visits.Valid {
		item.Visits = &visits.Int64
	}
	return item, nil
}

func (p *Postgres) AppendUserHash(ctx context.Context, key, hash string) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO `+p.table+` AS v (pk, user_hashes) VALUES ($1, ARRAY[$2::TEXT])
		ON CONFLICT (pk) DO UPDATE SET user_hashes = array_append(COALESCE(v.user_hashes, '{}'::TEXT[]), $2::TEXT)`,
		key, hash)
	if err != nil {
		return xerrors.Errorf("append to %q: %w", key, err)
	}
	return nil
}

func (p *Postgres) IncrementVisits(ctx context.Context, key string, delta int64) (*int64, error) {
	var visits sql.NullInt64
	err := p.db.QueryRowContext(ctx, `INSERT INTO `+p.table+` AS v (pk, visits) VALUES ($1, $2)
		ON CONFLICT (pk) DO UPDATE SET visits = COALESCE(v.visits, 0) + EXCLUDED.visits
		RETURNING v.visits`, key, delta).Scan(&visits)
	if err != nil {
		return nil, xerrors.Errorf("increment %q: %w", key, err)
	}
	if !visits.Valid {
		return nil, nil
	}
	return &visits.Int64, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

// MigratePostgres ensures the visit table exists.
func MigratePostgres(ctx context.Context, db *sql.DB, table string) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+pq.QuoteIdentifier(table)+` (
		pk TEXT PRIMARY KEY,
		user_hashes TEXT[],
		visits BIGINT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`)
	if err != nil {
		return xerrors.Errorf("create table %q: %w", table, err)
	}
	return nil
}
