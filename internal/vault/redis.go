package vault

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisConfig contains the Redis store configuration.
type RedisConfig struct {
	URL            string `yaml:"url" mapstructure:"url"`
	KeyPrefix      string `yaml:"key_prefix" mapstructure:"key_prefix"`
	MaxConnections int    `yaml:"max_connections" mapstructure:"max_connections"`
	MinIdleConns   int    `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
}

// RedisStore persists the mapping as a single Redis hash, one field per
// source identifier. HSETNX keeps an already-issued pseudonym from ever
// being overwritten, even if two processes share the same hash.
type RedisStore struct {
	client *redis.Client
	key    string
	logger *zap.Logger
}

// NewRedisStore connects to Redis and verifies the connection before
// returning the store.
func NewRedisStore(cfg RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if cfg.MaxConnections > 0 {
		opts.PoolSize = cfg.MaxConnections
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "medscrub"
	}

	logger.Info("vault redis store connected",
		zap.String("redis_url", maskRedisURL(cfg.URL)),
		zap.String("key_prefix", prefix),
	)

	return &RedisStore{
		client: client,
		key:    prefix + ":id_map",
		logger: logger,
	}, nil
}

// Load reads the full mapping hash. A missing key yields an empty vault.
func (s *RedisStore) Load(ctx context.Context) (map[string]string, error) {
	mapping, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping hash: %w", err)
	}
	return mapping, nil
}

// Put records one entry. An existing field is left untouched.
func (s *RedisStore) Put(ctx context.Context, sourceID, pseudonymID string) error {
	if err := s.client.HSetNX(ctx, s.key, sourceID, pseudonymID).Err(); err != nil {
		return fmt.Errorf("failed to write mapping entry: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// maskRedisURL masks credentials in a Redis URL for logging.
func maskRedisURL(url string) string {
	if !strings.Contains(url, "@") {
		return url
	}
	parts := strings.SplitN(url, "@", 2)
	if idx := strings.LastIndex(parts[0], ":"); idx > strings.Index(parts[0], "//") {
		parts[0] = parts[0][:idx+1] + "***"
	}
	return parts[0] + "@" + parts[1]
}
