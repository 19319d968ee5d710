package vault

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresConfig contains the Postgres store configuration.
type PostgresConfig struct {
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// PostgresStore persists the mapping in a two-column table with the source
// identifier as primary key. ON CONFLICT DO NOTHING keeps the first-issued
// pseudonym authoritative if two processes ever share the table.
type PostgresStore struct {
	db     *sqlx.DB
	logger *zap.Logger
}

const createMappingTable = `
CREATE TABLE IF NOT EXISTS identifier_mappings (
	source_id    TEXT PRIMARY KEY,
	pseudonym_id TEXT NOT NULL UNIQUE,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// NewPostgresStore connects to the database, verifies the connection and
// ensures the mapping table exists.
func NewPostgresStore(cfg PostgresConfig, logger *zap.Logger) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	if _, err := db.ExecContext(ctx, createMappingTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure mapping table: %w", err)
	}

	logger.Info("vault postgres store connected",
		zap.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	return &PostgresStore{db: db, logger: logger}, nil
}

// Load reads the full mapping table.
func (s *PostgresStore) Load(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryxContext(ctx, `SELECT source_id, pseudonym_id FROM identifier_mappings`)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping table: %w", err)
	}
	defer rows.Close()

	mapping := make(map[string]string)
	for rows.Next() {
		var src, pseud string
		if err := rows.Scan(&src, &pseud); err != nil {
			return nil, fmt.Errorf("failed to scan mapping row: %w", err)
		}
		mapping[src] = pseud
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read mapping table: %w", err)
	}
	return mapping, nil
}

// Put records one entry; an existing source row is left untouched.
func (s *PostgresStore) Put(ctx context.Context, sourceID, pseudonymID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO identifier_mappings (source_id, pseudonym_id)
		 VALUES ($1, $2)
		 ON CONFLICT (source_id) DO NOTHING`,
		sourceID, pseudonymID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert mapping: %w", err)
	}
	return nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// maskDatabaseURL masks credentials in a database URL for logging.
func maskDatabaseURL(url string) string {
	if !strings.Contains(url, "@") {
		return url
	}
	parts := strings.SplitN(url, "@", 2)
	if idx := strings.LastIndex(parts[0], ":"); idx > strings.Index(parts[0], "//") {
		parts[0] = parts[0][:idx+1] + "***"
	}
	return parts[0] + "@" + parts[1]
}
