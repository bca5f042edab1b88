package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// checkScript performs the daily-then-minute check and the paired increment in one
// round trip. Keys expire with their window, so Redis needs no sweep.
var checkScript = redis.NewScript(`
local daily = tonumber(redis.call('GET', KEYS[2]) or '0')
if daily >= tonumber(ARGV[2]) then
  return {0, redis.call('PTTL', KEYS[2]), 'daily', 0, 0}
end
local minute = tonumber(redis.call('GET', KEYS[1]) or '0')
if minute >= tonumber(ARGV[1]) then
  return {0, redis.call('PTTL', KEYS[1]), 'minute', 0, 0}
end
minute = redis.call('INCR', KEYS[1])
if minute == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[3])
end
daily = redis.call('INCR', KEYS[2])
if daily == 1 then
  redis.call('PEXPIRE', KEYS[2], ARGV[4])
end
return {1, 0, '', tonumber(ARGV[1]) - minute, tonumber(ARGV[2]) - daily}
`)

// RedisLimiter shares counters between server instances. When Redis is unreachable
// it degrades to an in-process Limiter so Check still always decides.
type RedisLimiter struct {
	client   redis.Scripter
	cfg      Config
	prefix   string
	fallback *Limiter
	logger   *zap.Logger
}

func NewRedis(client redis.Scripter, cfg Config, logger *zap.Logger) *RedisLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	fallback := New(cfg, WithLogger(logger))
	return &RedisLimiter{
		client:   client,
		cfg:      fallback.cfg,
		prefix:   "reliefmap:ratelimit:",
		fallback: fallback,
		logger:   logger,
	}
}

func (r *RedisLimiter) Check(ctx context.Context, clientKey string) Decision {
	keys := []string{
		r.prefix + "{" + clientKey + "}:minute",
		r.prefix + "{" + clientKey + "}:daily",
	}
	res, err := checkScript.Run(ctx, r.client, keys,
		r.cfg.PerMinute, r.cfg.PerDay,
		r.cfg.MinuteWindow.Milliseconds(), r.cfg.DailyWindow.Milliseconds(),
	).Slice()
	if err == nil {
		var d Decision
		d, err = decodeDecision(res)
		if err == nil {
			return d
		}
	}

	r.logger.Warn("redis rate limiter unavailable, using in-process limiter",
		zap.String("client", clientKey), zap.Error(err))
	return r.fallback.Check(ctx, clientKey)
}

// Run sweeps the in-process fallback; Redis keys expire on their own.
func (r *RedisLimiter) Run(ctx context.Context) error {
	return r.fallback.Run(ctx)
}

func decodeDecision(res []any) (Decision, error) {
	if len(res) != 5 {
		return Decision{}, fmt.Errorf("unexpected script result length %d", len(res))
	}
	allowed, ok1 := res[0].(int64)
	ttl, ok2 := res[1].(int64)
	window, ok3 := res[2].(string)
	minute, ok4 := res[3].(int64)
	daily, ok5 := res[4].(int64)
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
		return Decision{}, fmt.Errorf("unexpected script result %v", res)
	}
	if allowed == 1 {
		return Decision{Allowed: true, Remaining: Remaining{Minute: int(minute), Daily: int(daily)}}, nil
	}
	if ttl < 0 {
		ttl = 0
	}
	return reject(window, time.Duration(ttl)*time.Millisecond), nil
}
