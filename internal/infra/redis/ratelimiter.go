package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/sms-gateway/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultSendsPerWindow = 1
	window                = time.Second
	keyPrefix             = "sms:ratelimit"
)

// admitScript counts sends in a window that opens on the first send of a
// sender. It returns {admitted, remaining window in ms}.
var admitScript = goredis.NewScript(`
local count = redis.call("INCR", KEYS[1])
local ttl = redis.call("PTTL", KEYS[1])
if count == 1 or ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
  ttl = tonumber(ARGV[2])
end
if count > tonumber(ARGV[1]) then
  return {0, ttl}
end
return {1, ttl}
`)

var _ ratelimit.RateLimiter = (*RedisRateLimiter)(nil)

// RedisRateLimiter admits sends per sender across every gateway replica.
// Refusals are answered at once with the time left in the sender's window.
type RedisRateLimiter struct {
	client         *goredis.Client
	sendsPerWindow int
}

func NewRedisRateLimiter(client *goredis.Client, limitPerSec int) (*RedisRateLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if limitPerSec <= 0 {
		limitPerSec = defaultSendsPerWindow
	}
	return &RedisRateLimiter{client: client, sendsPerWindow: limitPerSec}, nil
}

func (r *RedisRateLimiter) Allow(ctx context.Context, sender string) (ratelimit.Decision, error) {
	key, err := ratelimit.NormalizeKey(sender)
	if err != nil {
		return ratelimit.Decision{}, err
	}

	reply, err := admitScript.Run(ctx, r.client, []string{keyPrefix + ":" + key},
		r.sendsPerWindow, window.Milliseconds()).Int64Slice()
	if err != nil {
		return ratelimit.Decision{}, fmt.Errorf("failed to evaluate rate limit for %s: %w", key, err)
	}
	if len(reply) != 2 {
		return ratelimit.Decision{}, fmt.Errorf("unexpected rate limit reply %v", reply)
	}

	if reply[0] == 1 {
		return ratelimit.Decision{Allowed: true}, nil
	}
	return ratelimit.Decision{RetryAfter: time.Duration(reply[1]) * time.Millisecond}, nil
}
