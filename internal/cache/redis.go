package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// redisNamespace prefixes the two Redis keys this provider owns, keeping
	// them apart from anything else living in the same database.
	redisNamespace = "jimakudl"

	// redisOpTimeout bounds every Redis round-trip so a slow server cannot
	// stall a download pipeline that would work fine without the cache.
	redisOpTimeout = 2 * time.Second
)

func init() {
	Register("redis", newRedisCache)
}

// redisCache stores API responses in Redis/Valkey so repeated invocations
// reuse AniList lookups and Jimaku listings across processes. LRU semantics
// are enforced application-side.
//
// Requires Redis 7.4+ or Valkey 8+ for per-field hash TTL (HPEXPIRE). On
// older servers values are stored but never expire automatically.
//
// Regardless of entry count the provider uses exactly two Redis keys:
//
//   - {namespace}:data — a Hash of cached values (field = user key). Each
//     field carries its own TTL via HPEXPIRE, so Redis drops expired entries
//     without application-side cleanup.
//   - {namespace}:lru — a Sorted Set ordering entries by last access
//     (member = user key, score = access time in µs).
//
// Lua scripts keep read+touch and write+evict atomic. Sorted-set members
// whose hash field has already expired are cleaned lazily during eviction.
type redisCache struct {
	client  *redis.Client
	ttl     time.Duration
	maxSize int
	onEvict EvictCallback
	logger  Logger
	dataKey string
	lruKey  string
}

// touchScript reads a value and refreshes its LRU score in one round-trip.
//
// KEYS[1] = data hash, KEYS[2] = LRU sorted set
// ARGV[1] = access time in µs, ARGV[2] = user key
//
// Returns the value on hit, nil on miss (including fields Redis has expired).
var touchScript = redis.NewScript(`
local val = redis.call('HGET', KEYS[1], ARGV[2])
if val then
    redis.call('ZADD', KEYS[2], ARGV[1], ARGV[2])
end
return val
`)

// storeScript writes a value with per-field TTL, records its LRU score, and
// pops the least-recently-used entries while the cache is over capacity.
// HDEL on an already-expired field is a harmless no-op, which is how stale
// sorted-set members get cleaned up.
//
// KEYS[1] = data hash, KEYS[2] = LRU sorted set
// ARGV[1] = value, ARGV[2] = access time in µs, ARGV[3] = user key,
// ARGV[4] = max entries, ARGV[5] = TTL in milliseconds
//
// Returns the evicted user keys, possibly none.
var storeScript = redis.NewScript(`
local member  = ARGV[3]
local maxSize = tonumber(ARGV[4])
local ttlMs   = tonumber(ARGV[5])

redis.call('HSET', KEYS[1], member, ARGV[1])
redis.call('HPEXPIRE', KEYS[1], ttlMs, 'FIELDS', 1, member)
redis.call('ZADD', KEYS[2], ARGV[2], member)

local size = redis.call('ZCARD', KEYS[2])
local evicted = {}
while size > maxSize do
    local oldest = redis.call('ZPOPMIN', KEYS[2], 1)
    if #oldest == 0 then break end
    redis.call('HDEL', KEYS[1], oldest[1])
    table.insert(evicted, oldest[1])
    size = size - 1
end

return evicted
`)

func newRedisCache(cfg ProviderConfig) (Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	// Fail fast on an unreachable server instead of timing out per operation.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &redisCache{
		client:  client,
		ttl:     cfg.TTL,
		maxSize: cfg.Size,
		onEvict: cfg.OnEvict,
		logger:  cfg.Logger,
		dataKey: Key(redisNamespace, "data"),
		lruKey:  Key(redisNamespace, "lru"),
	}, nil
}

func (r *redisCache) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), redisOpTimeout)
}

func (r *redisCache) scriptKeys() []string {
	return []string{r.dataKey, r.lruKey}
}

func (r *redisCache) reportError(msg string, err error) {
	if r.logger != nil {
		r.logger.Error(msg, err)
	}
}

func (r *redisCache) Get(key string) ([]byte, bool) {
	ctx, cancel := r.opContext()
	defer cancel()

	now := strconv.FormatInt(time.Now().UnixMicro(), 10)
	result, err := touchScript.Run(ctx, r.client, r.scriptKeys(), now, key).Text()
	if err != nil {
		// redis.Nil is a plain miss
		if !errors.Is(err, redis.Nil) {
			r.reportError("redis cache Get failed", err)
		}
		return nil, false
	}
	return []byte(result), true
}

func (r *redisCache) Set(key string, value []byte) {
	ctx, cancel := r.opContext()
	defer cancel()

	now := strconv.FormatInt(time.Now().UnixMicro(), 10)
	evicted, err := storeScript.Run(ctx, r.client, r.scriptKeys(),
		value, now, key, strconv.Itoa(r.maxSize), strconv.FormatInt(r.ttl.Milliseconds(), 10),
	).StringSlice()
	if err != nil {
		r.reportError("redis cache Set failed", err)
		return
	}

	if r.onEvict != nil {
		// Evicted values are gone by now; callers only get the key.
		for _, k := range evicted {
			r.onEvict(k, nil)
		}
	}
}

func (r *redisCache) Contains(key string) bool {
	ctx, cancel := r.opContext()
	defer cancel()

	found, err := r.client.HExists(ctx, r.dataKey, key).Result()
	if err != nil {
		r.reportError("redis cache Contains failed", err)
		return false
	}
	return found
}

func (r *redisCache) Len() int {
	ctx, cancel := r.opContext()
	defer cancel()

	n, err := r.client.HLen(ctx, r.dataKey).Result()
	if err != nil {
		r.reportError("redis cache Len failed", err)
		return 0
	}
	return int(n)
}

func (r *redisCache) Close() error {
	return r.client.Close()
}
