// Package redisrate implements internal/ratelimit.Limiter against Redis, for
// deployments running more than one worker replica sharing one rate budget
// per source. Grounded on ingest/internal/ratelimit's Redis sorted-set
// sliding-window script, generalized from a fixed request-count limit to
// internal/ratelimit.Limiter's "wait until this key's slot opens" contract.
package redisrate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// waitScript blocks nothing itself; it atomically checks and reserves a
// slot for key if the minimum interval has elapsed since the last grant,
// returning the milliseconds the caller must still wait otherwise.
const waitScript = `
	local key = KEYS[1]
	local interval_ms = tonumber(ARGV[1])
	local now_ms = tonumber(ARGV[2])

	local last = redis.call('GET', key)
	if not last then
		redis.call('SET', key, now_ms, 'PX', interval_ms + 1000)
		return 0
	end

	local last_ms = tonumber(last)
	local elapsed = now_ms - last_ms
	if elapsed >= interval_ms then
		redis.call('SET', key, now_ms, 'PX', interval_ms + 1000)
		return 0
	end

	return interval_ms - elapsed
`

// Limiter implements internal/ratelimit.Limiter against a shared Redis
// instance, so every worker replica polling the same source respects one
// combined minimum-interval budget.
type Limiter struct {
	client *redis.Client

	// intervals maps source key to its configured minimum spacing.
	intervals map[string]time.Duration
}

// New connects to redisURL and verifies connectivity with a ping.
func New(ctx context.Context, redisURL string) (*Limiter, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &Limiter{client: client, intervals: make(map[string]time.Duration)}, nil
}

// Configure sets key's minimum interval between grants, mirroring
// internal/ratelimit.TokenBucket.Configure's contract.
func (l *Limiter) Configure(key string, interval time.Duration) {
	l.intervals[key] = interval
}

// Wait blocks until key's slot opens or ctx is done. When the Redis script
// reports a remaining wait, it sleeps that long on a timer that also
// watches ctx, so a cancellation is observed promptly, then re-runs the
// script.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	interval := l.intervals[key]
	if interval <= 0 {
		return nil
	}

	redisKey := "quakefusion:ratelimit:" + key
	for {
		waitMS, err := l.client.Eval(ctx, waitScript, []string{redisKey}, interval.Milliseconds(), time.Now().UnixMilli()).Int64()
		if err != nil {
			return fmt.Errorf("rate limit check for %s: %w", key, err)
		}
		if waitMS <= 0 {
			return nil
		}

		timer := time.NewTimer(time.Duration(waitMS) * time.Millisecond)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Close releases the Redis client.
func (l *Limiter) Close() error {
	return l.client.Close()
}
