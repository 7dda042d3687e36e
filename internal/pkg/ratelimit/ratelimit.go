// Package ratelimit provides an atomic Redis-backed requests-per-second
// limiter for the outbound mail provider ceiling.
//
// The Lua script checks and increments in one round trip, so concurrent
// queue runs on different hosts can't both slip under the limit the way a
// GET → check → INCR sequence would allow.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const limitScript = `
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local current = tonumber(redis.call("GET", key) or "0")
if current + 1 > limit then
	return {0, current}
end
current = redis.call("INCR", key)
if current == 1 then
	redis.call("EXPIRE", key, 1)
end
return {1, current}
`

// SendLimiter enforces a per-second ceiling on mail sends.
type SendLimiter struct {
	client *redis.Client
	script *redis.Script
	name   string
	rps    int
}

// NewSendLimiter creates a limiter for the named provider with the given
// requests-per-second ceiling.
func NewSendLimiter(client *redis.Client, name string, rps int) *SendLimiter {
	if rps <= 0 {
		rps = 2 // Resend free-tier ceiling
	}
	return &SendLimiter{
		client: client,
		script: redis.NewScript(limitScript),
		name:   name,
		rps:    rps,
	}
}

// Allow reports whether one more send fits in the current second.
func (l *SendLimiter) Allow(ctx context.Context) (bool, error) {
	key := fmt.Sprintf("ratelimit:%s:%d", l.name, time.Now().Unix())
	res, err := l.script.Run(ctx, l.client, []string{key}, l.rps).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit check: %w", err)
	}
	vals, ok := res.([]interface{})
	if !ok || len(vals) < 1 {
		return false, fmt.Errorf("rate limit check: unexpected reply %v", res)
	}
	allowed, _ := vals[0].(int64)
	return allowed == 1, nil
}

// Wait blocks until a send slot is available or the context is done.
func (l *SendLimiter) Wait(ctx context.Context) error {
	for {
		ok, err := l.Allow(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}
