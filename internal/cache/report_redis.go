package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"detcover/pkg/models"
)

// RedisReportConfig configures Redis access for report caching.
type RedisReportConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// RedisReportCache keeps recently generated coverage reports in Redis so
// that repeated lookups for the same operation skip a full re-analysis.
// A nil cache is valid and behaves as a permanent miss.
type RedisReportCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisReportCache connects to Redis and verifies the connection.
func NewRedisReportCache(cfg RedisReportConfig) (*RedisReportCache, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if strings.TrimSpace(cfg.KeyPrefix) == "" {
		cfg.KeyPrefix = "detcover:report"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 15 * time.Minute
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis report cache: %w", err)
	}

	return &RedisReportCache{
		client: client,
		prefix: strings.TrimSpace(cfg.KeyPrefix),
		ttl:    cfg.TTL,
	}, nil
}

// Get returns the cached report for an operation, or nil on a miss.
func (c *RedisReportCache) Get(ctx context.Context, operationID string) (*models.Report, error) {
	if c == nil || c.client == nil {
		return nil, nil
	}
	raw, err := c.client.Get(ctx, c.key(operationID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cached report: %w", err)
	}

	var report models.Report
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("decode cached report: %w", err)
	}
	return &report, nil
}

// Put stores a report under the operation id with the configured TTL.
func (c *RedisReportCache) Put(ctx context.Context, operationID string, report *models.Report) error {
	if c == nil || c.client == nil || report == nil {
		return nil
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := c.client.Set(ctx, c.key(operationID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("write cached report: %w", err)
	}
	return nil
}

// Evict removes a cached report. Reports whether an entry was removed.
func (c *RedisReportCache) Evict(ctx context.Context, operationID string) (bool, error) {
	if c == nil || c.client == nil {
		return false, nil
	}
	removed, err := c.client.Del(ctx, c.key(operationID)).Result()
	if err != nil {
		return false, fmt.Errorf("evict cached report: %w", err)
	}
	return removed > 0, nil
}

// Close releases the Redis connection.
func (c *RedisReportCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *RedisReportCache) key(operationID string) string {
	return c.prefix + ":" + operationID
}
