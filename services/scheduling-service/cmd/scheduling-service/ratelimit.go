package main

import (
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lfmorais/agendo/libs/config"
	"github.com/lfmorais/agendo/libs/httpx"
)

// publicRateLimit builds the limiter for the unauthenticated endpoints:
// Redis-backed when REDIS_ADDR is set (required with multiple replicas),
// in-memory otherwise.
func publicRateLimit(logger *slog.Logger) httpx.Middleware {
	perMinute := config.Int("PUBLIC_RATE_LIMIT_PER_MINUTE", 60)

	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		rl := httpx.NewRedisRateLimiter(rdb, perMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "sched"))
		logger.Info("public rate limiting enabled (redis)", "per_minute", perMinute, "redis_addr", addr)
		return rl.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
	}

	rl := httpx.NewRateLimiter(perMinute, time.Minute)
	logger.Info("public rate limiting enabled (in-memory)", "per_minute", perMinute)
	return rl.Middleware()
}

func parseList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
