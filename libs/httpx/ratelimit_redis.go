package httpx

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter shares fixed-window buckets between replicas through Redis.
type RedisLimiter struct {
	rdb    redis.Scripter
	limit  int
	window time.Duration
	prefix string
}

// takeScript increments the bucket, starts its window on first use and returns the
// count together with the milliseconds left in the window.
var takeScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {n, ttl}
`)

func NewRedisLimiter(rdb redis.Scripter, limit int, window time.Duration, prefix string) *RedisLimiter {
	limit, window = limitDefaults(limit, window)
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "rl"
	}
	return &RedisLimiter{rdb: rdb, limit: limit, window: window, prefix: prefix}
}

func (l *RedisLimiter) Take(ctx context.Context, key string) (Quota, error) {
	res, err := takeScript.Run(ctx, l.rdb, []string{l.prefix + ":" + key}, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		return Quota{}, fmt.Errorf("rate limit script: %w", err)
	}
	return quotaFromScript(l.limit, res)
}

func quotaFromScript(limit int, res []int64) (Quota, error) {
	if len(res) != 2 {
		return Quota{}, fmt.Errorf("rate limit script returned %d values", len(res))
	}
	return Quota{
		Limit:     limit,
		Remaining: limit - int(res[0]),
		Reset:     time.Duration(res[1]) * time.Millisecond,
	}, nil
}
