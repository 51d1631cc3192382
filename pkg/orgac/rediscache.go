package orgac

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"

	"github.com/platware/orgauth/pkg/accesscontrol"
)

// RedisStatementCache is a StatementCache shared across instances. Reads are
// best-effort: a Redis failure degrades to a cache miss, never to a stale
// grant. Writes go through a version check server-side so an entry loaded
// before an Invalidate can never land after it.
type RedisStatementCache struct {
	redis  *redis.Client
	prefix string
}

// putIfCurrent stores the statements only when the version counter still
// matches the one the loader observed.
var putIfCurrent = redis.NewScript(`
	local current = redis.call('GET', KEYS[1])
	if not current then current = '0' end
	if current ~= ARGV[1] then return 0 end
	redis.call('SET', KEYS[2], ARGV[2])
	return 1
`)

// NewRedisStatementCache connects to Redis and returns a shared cache.
func NewRedisStatementCache(redisAddr, password, prefix string) (*RedisStatementCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: password,
		DB:       0, // use default DB
	})

	// Test connection
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if prefix == "" {
		prefix = "orgauth:ac"
	}
	return &RedisStatementCache{redis: client, prefix: prefix}, nil
}

// Close closes the Redis connection
func (c *RedisStatementCache) Close() error {
	return c.redis.Close()
}

// Client exposes the underlying connection for health checks.
func (c *RedisStatementCache) Client() *redis.Client {
	return c.redis
}

func (c *RedisStatementCache) statementsKey(organizationID int64) string {
	return fmt.Sprintf("%s:statements:%d", c.prefix, organizationID)
}

func (c *RedisStatementCache) versionKey(organizationID int64) string {
	return fmt.Sprintf("%s:version:%d", c.prefix, organizationID)
}

// Get returns the cached statements for an organization, if present.
func (c *RedisStatementCache) Get(ctx context.Context, organizationID int64) (accesscontrol.Statements, bool) {
	cached, err := c.redis.Get(ctx, c.statementsKey(organizationID)).Result()
	if err != nil {
		return nil, false
	}

	statements, err := decodeStatements(cached)
	if err != nil {
		return nil, false
	}
	return statements, true
}

// Put stores statements loaded at the given version. It returns false and
// stores nothing if the organization was invalidated since that version.
func (c *RedisStatementCache) Put(ctx context.Context, organizationID int64, statements accesscontrol.Statements, version uint64) bool {
	data, err := encodeStatements(statements)
	if err != nil {
		return false
	}

	keys := []string{c.versionKey(organizationID), c.statementsKey(organizationID)}
	stored, err := putIfCurrent.Run(ctx, c.redis, keys,
		strconv.FormatUint(version, 10), data).Int()
	if err != nil {
		return false
	}
	return stored == 1
}

// Version returns the organization's current invalidation counter.
func (c *RedisStatementCache) Version(ctx context.Context, organizationID int64) uint64 {
	raw, err := c.redis.Get(ctx, c.versionKey(organizationID)).Result()
	if err != nil {
		return 0
	}
	version, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return version
}

// Invalidate drops the organization's entry and bumps its version.
func (c *RedisStatementCache) Invalidate(ctx context.Context, organizationID int64) error {
	pipe := c.redis.TxPipeline()
	pipe.Incr(ctx, c.versionKey(organizationID))
	pipe.Del(ctx, c.statementsKey(organizationID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to invalidate statement cache: %w", err)
	}
	return nil
}

// Clear invalidates every organization currently cached.
func (c *RedisStatementCache) Clear(ctx context.Context) error {
	pattern := fmt.Sprintf("%s:statements:*", c.prefix)
	iter := c.redis.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		var organizationID int64
		if _, err := fmt.Sscanf(key, c.prefix+":statements:%d", &organizationID); err != nil {
			continue
		}
		if err := c.Invalidate(ctx, organizationID); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan statement cache: %w", err)
	}
	return nil
}
