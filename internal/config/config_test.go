package config

import (
	"testing"
	"time"
)

func TestRateLimitDefaultsAndClamping(t *testing.T) {
	cfg := LoadRateLimitConfig()
	if !cfg.Enabled || cfg.Capacity != 60 || cfg.Prefix != "jf:rl" || cfg.TTL != 10*time.Minute {
		t.Fatalf("defaults = %+v", cfg)
	}

	t.Setenv("AUTH_RATE_LIMIT_CAPACITY", "0")
	t.Setenv("AUTH_RATE_LIMIT_REFILL_INTERVAL", "1m")
	t.Setenv("AUTH_RATE_LIMIT_TTL", "1s")
	t.Setenv("AUTH_RATE_LIMIT_ENABLED", "off")
	auth := LoadAuthRateLimitConfig()
	if auth.Enabled || auth.Capacity != 1 || auth.RefillInterval != time.Minute {
		t.Fatalf("auth = %+v", auth)
	}
	if auth.TTL != 5*time.Minute {
		t.Fatalf("ttl = %s, want at least five refill intervals", auth.TTL)
	}
	if auth.KeyStrategy != "ip_route" || auth.Prefix != "jf:rl:auth" {
		t.Fatalf("auth keys = %+v", auth)
	}
}

func TestCacheConfig(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head,")
	t.Setenv("CACHE_TTL", "garbage")
	cfg := LoadCacheConfig()
	if !cfg.Methods["GET"] || !cfg.Methods["HEAD"] || len(cfg.Methods) != 2 {
		t.Fatalf("methods = %v", cfg.Methods)
	}
	if cfg.TTL != time.Second || cfg.Prefix != "jf:cache" || cfg.MaxBodyBytes != 1<<20 {
		t.Fatalf("cache = %+v", cfg)
	}
}

func TestQueueAndAIConfig(t *testing.T) {
	t.Setenv("RABBITMQ_URL", "")
	t.Setenv("AMQP_URL", "amqp://u:p@mq:5672/")
	t.Setenv("EVENTS_ENABLED", "true")
	q := LoadQueueConfig()
	if !q.Enabled || q.URL != "amqp://u:p@mq:5672/" || !q.RunConsumer || q.ConsumerLogPath != "logs/booking.log" {
		t.Fatalf("queue = %+v", q)
	}

	t.Setenv("AI_API_KEY", "")
	ai := LoadAIConfig()
	if ai.APIKey != "" || ai.Model != "gpt-4o-mini" || ai.Endpoint != "https://api.openai.com" {
		t.Fatalf("ai = %+v", ai)
	}
}

func TestLoad(t *testing.T) {
	for k, v := range map[string]string{
		"APP_ENV": "dev", "APP_PORT": "8080", "DB_USER": "root", "DB_HOST": "localhost", "DB_PORT": "3306",
		"DB_NAME": "jogofacil", "JWT_SECRET": "s", "ACCESS_TOKEN_TTL_MIN": "15", "REFRESH_TOKEN_TTL_DAYS": "7",
		"BCRYPT_COST": "10", "CORS_ORIGINS": "http://a.test, ,http://b.test", "APP_TIMEZONE": "",
	} {
		t.Setenv(k, v)
	}
	cfg := Load()
	if !cfg.IsDev() || cfg.AccessTTLMin != 15 || cfg.BcryptCost != 10 || !cfg.AutoMigrate || cfg.ReceiptMaxMB != 5 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b.test" {
		t.Fatalf("origins = %v", cfg.CORSOrigins)
	}
	if loc := cfg.Location(); loc.String() != "America/Sao_Paulo" {
		t.Fatalf("location = %s", loc)
	}
}
