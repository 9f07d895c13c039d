package config

import (
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"golang.org/x/xerrors"
)

// Store backends understood by store.Open.
const (
	BackendDynamoDB = "dynamodb"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

type Config struct {
	Port     int    `yaml:"port" env:"PORT" env-default:"8080"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`

	StoreBackend string `yaml:"store_backend" env:"STORE_BACKEND" env-default:"dynamodb"`
	TableName    string `yaml:"table_name" env:"TABLE_NAME" env-default:"visit-table"`

	AWSRegion        string `yaml:"aws_region" env:"AWS_REGION" env-default:"ap-south-1"`
	DynamoDBEndpoint string `yaml:"dynamodb_endpoint" env:"DYNAMODB_ENDPOINT"` // DynamoDB Local, empty for AWS

	DBDSN       string `yaml:"db_dsn" env:"DB_DSN" env-default:"file:visits.db?_busy_timeout=5000"`
	PostgresDSN string `yaml:"postgres_dsn" env:"POSTGRES_DSN"`
	RedisAddr   string `yaml:"redis_addr" env:"REDIS_ADDR" env-default:"localhost:6379"`

	CORSAllowedOrigins []string      `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"*"`
	VisitRateLimit     int           `yaml:"visit_rate_limit" env:"VISIT_RATE_LIMIT" env-default:"5"`
	VisitRateWindow    time.Duration `yaml:"visit_rate_window" env:"VISIT_RATE_WINDOW" env-default:"1s"`
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, xerrors.Errorf("read env config: %w", err)
	}
	return cfg, cfg.validate()
}

// LoadFile reads a YAML file; environment variables override its values.
func LoadFile(path string) (Config, error) {
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return Config{}, xerrors.Errorf("read config %q: %w", path, err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.StoreBackend {
	case BackendDynamoDB, BackendSQLite, BackendPostgres, BackendRedis, BackendMemory:
	default:
		return xerrors.Errorf("unknown store backend %q", c.StoreBackend)
	}
	if c.TableName == "" {
		return xerrors.New("table name must not be empty")
	}
	if c.StoreBackend == BackendPostgres && c.PostgresDSN == "" {
		return xerrors.New("POSTGRES_DSN is required for the postgres backend")
	}
	return nil
}
