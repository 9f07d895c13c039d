package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"golang.org/x/xerrors"
)

// SQLite stores the table in a single SQLite table. user_hashes is held as a
// JSON array so appends stay a single upsert statement.
type SQLite struct {
	db    *sql.DB
	table string
}

func NewSQLite(db *sql.DB, table string) *SQLite {
	return &SQLite{db: db, table: quoteIdent(table)}
}

func (s *SQLite) Get(ctx context.Context, key string) (*Item, error) {
	var (
		hashes sql.NullString
		visits sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `SELECT user_hashes, visits FROM `+s.table+` WHERE pk = ?`, key).Scan(&hashes, &visits)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, xerrors.Errorf("select %q: %w", key, err)
	}

	item := &Item{Key: key}
	if hashes.Valid {
		if err := json.Unmarshal([]byte(hashes.String), &item.UserHashes); err != nil {
			return nil, xerrors.Errorf("decode user_hashes of %q: %w", key, err)
		}
	}
	if visits.Valid {
		item.Visits = &visits.Int64
	}
	return item, nil
}

func (s *SQLite) AppendUserHash(ctx context.Context, key, hash string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO `+s.table+`(pk, user_hashes) VALUES(?, json_array(?))
		ON CONFLICT(pk) DO UPDATE SET user_hashes = json_insert(COALESCE(user_hashes, '[]'), '$[#]', ?)`,
		key, hash, hash)
	if err != nil {
		return xerrors.Errorf("append to %q: %w", key, err)
	}
	return nil
}

func (s *SQLite) IncrementVisits(ctx context.Context, key string, delta int64) (*int64, error) {
	var visits sql.NullInt64
	err := s.db.QueryRowContext(ctx, `INSERT INTO `+s.table+`(pk, visits) VALUES(?, ?)
		ON CONFLICT(pk) DO UPDATE SET visits = COALESCE(visits, 0) + excluded.visits
		RETURNING visits`, key, delta).Scan(&visits)
	if err != nil {
		return nil, xerrors.Errorf("increment %q: %w", key, err)
	}
	if !visits.Valid {
		return nil, nil
	}
	return &visits.Int64, nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// MigrateSQLite ensures the visit table exists.
func MigrateSQLite(ctx context.Context, db *sql.DB, table string) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+quoteIdent(table)+` (
		pk TEXT PRIMARY KEY NOT NULL,
		user_hashes TEXT,
		visits INTEGER,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`)
	if err != nil {
		return xerrors.Errorf("create table %q: %w", table, err)
	}
	return nil
}

// quoteIdent makes a table name such as "visit-table" usable in SQL.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
