package config

// Redis backs the token-bucket rate limiter and the field listing cache.
// When the server cannot be reached at startup the constructor returns nil
// and both middlewares turn into pass-throughs.

import (
	"context"
	"crypto/tls"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// NewRedisClient instantiates a Redis client from the environment.
// Supported variables are:
//   REDIS_URL – full redis:// or rediss:// URI (takes precedence)
//   REDIS_HOST and REDIS_PORT, or REDIS_ADDR – server address
//   REDIS_PASSWORD, REDIS_DB, REDIS_TLS
// The returned client is nil if a connection cannot be established.
func NewRedisClient() *redis.Client {
	var opts *redis.Options
	if raw := os.Getenv("REDIS_URL"); raw != "" {
		parsed, err := redis.ParseURL(raw)
		if err != nil {
			log.Warn().Err(err).Msg("redis: invalid REDIS_URL, cache and rate limit disabled")
			return nil
		}
		opts = parsed
	} else {
		addr := os.Getenv("REDIS_ADDR")
		if host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"); host != "" && port != "" {
			addr = host + ":" + port
		}
		if addr == "" {
			addr = "localhost:6379"
		}
		dbNum := 0
		if n, err := strconv.Atoi(os.Getenv("REDIS_DB")); err == nil {
			dbNum = n
		}
		opts = &redis.Options{Addr: addr, Password: os.Getenv("REDIS_PASSWORD"), DB: dbNum}
		if t := os.Getenv("REDIS_TLS"); strings.EqualFold(t, "true") || t == "1" {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", opts.Addr).Msg("redis: unreachable, cache and rate limit disabled")
		_ = client.Close()
		return nil
	}
	return client
}
