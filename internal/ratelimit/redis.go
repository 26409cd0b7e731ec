package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// admitScript applies the same window rule as MemoryStore in one atomic step.
// KEYS[1] window hash; ARGV: now ms, window ms, max uploads, max bytes, incoming bytes.
// Returns {allowed, reason (1 uploads, 2 bytes), retry ms}.
var admitScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local maxUploads = tonumber(ARGV[3])
local maxBytes = tonumber(ARGV[4])
local incoming = tonumber(ARGV[5])

local start = tonumber(redis.call('HGET', key, 'start'))
if start == nil or now - start > window then
  start = now
  redis.call('DEL', key)
  redis.call('HSET', key, 'start', start, 'count', 0, 'bytes', 0)
  redis.call('PEXPIRE', key, window + 1000)
end

local count = tonumber(redis.call('HGET', key, 'count'))
local bytes = tonumber(redis.call('HGET', key, 'bytes'))
local retry = window - (now - start)

if count >= maxUploads then
  return {0, 1, retry}
end
if bytes + incoming > maxBytes then
  return {0, 2, retry}
end

redis.call('HINCRBY', key, 'count', 1)
redis.call('HINCRBY', key, 'bytes', incoming)
return {1, 0, 0}
`)

// RedisStore shares windows between service instances. Keys expire on their own shortly
// after the window elapses, so Prune has nothing to do.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore wraps an existing client. prefix namespaces the window keys.
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ratelimit:upload:"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

var _ Store = (*RedisStore)(nil)

func (s *RedisStore) Admit(ctx context.Context, key string, bytes int64, now time.Time, l Limits) (Decision, error) {
	res, err := admitScript.Run(ctx, s.rdb, []string{s.prefix + key},
		now.UnixMilli(),
		l.Window.Milliseconds(),
		l.MaxUploads,
		l.MaxBytes,
		bytes,
	).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit script: %w", err)
	}
	return parseScriptResult(res)
}

func (s *RedisStore) Prune(context.Context, time.Time, Limits) (int, error) {
	return 0, nil
}

func parseScriptResult(res interface{}) (Decision, error) {
	vals, ok := res.([]interface{})
	if !ok || len(vals) != 3 {
		return Decision{}, fmt.Errorf("rate limit script: unexpected result %v", res)
	}
	nums := make([]int64, 3)
	for i, v := range vals {
		n, ok := v.(int64)
		if !ok {
			return Decision{}, fmt.Errorf("rate limit script: unexpected value %v", v)
		}
		nums[i] = n
	}
	if nums[0] == 1 {
		return Decision{Allowed: true}, nil
	}
	d := Decision{RetryAfter: time.Duration(nums[2]) * time.Millisecond}
	switch nums[1] {
	case 1:
		d.Reason = TooManyUploads
	default:
		d.Reason = TooManyBytes
	}
	return d, nil
}
