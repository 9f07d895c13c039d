package store

import (
	"context"
	"database/sql"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
	"golang.org/x/xerrors"

	"github.com/roniherschmann/visit-counter/internal/config"
)

// Open builds the backend selected by cfg.StoreBackend, migrating SQL
// schemas as needed. The returned store is instrumented.
func Open(ctx context.Context, cfg config.Config) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.StoreBackend {
	case config.BackendDynamoDB:
		s, err = openDynamoDB(ctx, cfg)
	case config.BackendSQLite:
		s, err = openSQLite(ctx, cfg)
	case config.BackendPostgres:
		s, err = openPostgres(ctx, cfg)
	case config.BackendRedis:
		s = NewRedis(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}), cfg.TableName)
	case config.BackendMemory:
		s = NewMemory()
	default:
		err = xerrors.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
	if err != nil {
		return nil, err
	}
	return Instrument(s, cfg.StoreBackend), nil
}

func openDynamoDB(ctx context.Context, cfg config.Config) (Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, xerrors.Errorf("load aws config: %w", err)
	}
	var opts []DynamoDBOption
	if cfg.DynamoDBEndpoint != "" {
		opts = append(opts, WithEndpoint(cfg.DynamoDBEndpoint))
	}
	return NewDynamoDB(awsCfg, cfg.TableName, opts...), nil
}

func openSQLite(ctx context.Context, cfg config.Config) (Store, error) {
	db, err := sql.Open("sqlite3", cfg.DBDSN)
	if err != nil {
		return nil, xerrors.Errorf("open sqlite: %w", err)
	}
	// Connection pool tuning
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := MigrateSQLite(ctx, db, cfg.TableName); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewSQLite(db, cfg.TableName), nil
}

func openPostgres(ctx context.Context, cfg config.Config) (Store, error) {
	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		return nil, xerrors.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := MigratePostgres(ctx, db, cfg.TableName); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewPostgres(db, cfg.TableName), nil
}
