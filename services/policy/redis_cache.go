package policy

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	abac "github.com/fieldops/accessctl/internal/policy"
	"github.com/fieldops/accessctl/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// redisClient is the subset of *redis.Client the cache uses.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// RedisRuleCache shares rule sets across replicas as JSON snapshots with a
// TTL. Redis failures degrade to cache misses so evaluation falls back to the
// database. Snapshots are compiled again on every read.
type RedisRuleCache struct {
	client redisClient
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisRuleCache creates a redis backed rule cache
func NewRedisRuleCache(client redisClient, prefix string, ttl time.Duration, logger *zap.Logger) *RedisRuleCache {
	return &RedisRuleCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger,
	}
}

func (c *RedisRuleCache) key(companyID uuid.UUID) string {
	return c.prefix + companyID.String()
}

// GetRules loads a company's rule set snapshot
func (c *RedisRuleCache) GetRules(ctx context.Context, companyID uuid.UUID) (*abac.RuleSet, bool) {
	data, err := c.client.Get(ctx, c.key(companyID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("rule cache read failed",
				zap.String("company_id", companyID.String()),
				zap.Error(err),
			)
		}
		return nil, false
	}

	var rules []*models.AccessPolicy
	if err := json.Unmarshal(data, &rules); err != nil {
		c.logger.Warn("discarding undecodable rule cache entry",
			zap.String("company_id", companyID.String()),
			zap.Error(err),
		)
		c.Invalidate(ctx, companyID)
		return nil, false
	}
	return abac.NewRuleSet(companyID, rules, c.logger), true
}

// SetRules stores a company's rule set snapshot
func (c *RedisRuleCache) SetRules(ctx context.Context, companyID uuid.UUID, set *abac.RuleSet) {
	rules := set.Policies()
	if rules == nil {
		rules = []*models.AccessPolicy{}
	}
	data, err := json.Marshal(rules)
	if err != nil {
		c.logger.Error("failed to encode rule set", zap.String("company_id", companyID.String()), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, c.key(companyID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("rule cache write failed", zap.String("company_id", companyID.String()), zap.Error(err))
	}
}

// Invalidate drops a company's rule set snapshot
func (c *RedisRuleCache) Invalidate(ctx context.Context, companyID uuid.UUID) {
	if err := c.client.Del(ctx, c.key(companyID)).Err(); err != nil {
		c.logger.Warn("rule cache invalidation failed", zap.String("company_id", companyID.String()), zap.Error(err))
	}
}

// Ping checks the redis connection
func (c *RedisRuleCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
