package cli

import (
	"context"

	"github.com/seismic-fusion/quakefusion/adapters/redisrate"
	"github.com/seismic-fusion/quakefusion/internal/config"
	"github.com/seismic-fusion/quakefusion/internal/logging"
	"github.com/seismic-fusion/quakefusion/internal/ratelimit"
)

// buildLimiter returns a distributed Redis-backed limiter when redis.addr
// is configured, so multiple worker replicas polling the same source
// share one rate budget. Returns nil (the in-process default) otherwise.
func buildLimiter(ctx context.Context, cfg *config.Config, logger *logging.Logger) ratelimit.ConfigurableLimiter {
	if cfg.Redis.Addr == "" {
		return nil
	}

	limiter, err := redisrate.New(ctx, "redis://"+cfg.Redis.Addr)
	if err != nil {
		logger.WarnContext(ctx, "redis rate limiter unavailable, falling back to in-process limiter", "error", err)
		return nil
	}
	return limiter
}
