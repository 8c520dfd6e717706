package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var errUnexpectedReply = errors.New("ratelimit: unexpected script reply")

// admitScript runs the full admission algorithm server-side so the check
// and the update are one atomic step. Counters expire after two days, long
// after the lazy daily reset stops caring about them. Return values:
// {allowed, waitSeconds, dailyLimited}.
var admitScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local day_start = tonumber(ARGV[2])
local cooldown = tonumber(ARGV[3])
local max_per_day = tonumber(ARGV[4])
local ttl = 172800

local vals = redis.call('HMGET', key, 'last_sent_at', 'daily_count', 'daily_reset_at')
if not vals[1] then
	redis.call('HSET', key, 'last_sent_at', now, 'daily_count', 1, 'daily_reset_at', day_start)
	redis.call('EXPIRE', key, ttl)
	return {1, 0, 0}
end

local last = tonumber(vals[1])
local count = tonumber(vals[2])
local reset = tonumber(vals[3])

local elapsed = now - last
if elapsed < cooldown then
	return {0, math.ceil((cooldown - elapsed) / 1000), 0}
end

if reset < day_start then
	count = 0
end
if count >= max_per_day then
	return {0, 0, 1}
end

redis.call('HSET', key, 'last_sent_at', now, 'daily_count', count + 1)
if reset < day_start then
	redis.call('HSET', key, 'daily_reset_at', day_start)
end
redis.call('EXPIRE', key, ttl)
return {1, 0, 0}
`)

// RedisCounterStore keeps counters in redis hashes keyed operation:clientIP.
type RedisCounterStore struct {
	client *redis.Client
	prefix string
}

// NewRedisCounterStore creates the store.
func NewRedisCounterStore(client *redis.Client) *RedisCounterStore {
	return &RedisCounterStore{client: client, prefix: "regdesk:ratelimit:"}
}

func (s *RedisCounterStore) Admit(ctx context.Context, key string, rule Rule, now, dayStart time.Time) (Decision, error) {
	res, err := admitScript.Run(ctx, s.client, []string{s.prefix + key},
		now.UnixMilli(), dayStart.UnixMilli(), rule.Cooldown.Milliseconds(), rule.MaxPerDay,
	).Int64Slice()
	if err != nil {
		return Decision{}, err
	}
	if len(res) != 3 {
		return Decision{}, errUnexpectedReply
	}
	return Decision{
		Allowed:     res[0] == 1,
		WaitSeconds: int(res[1]),
		DailyLimit:  res[2] == 1,
	}, nil
}
