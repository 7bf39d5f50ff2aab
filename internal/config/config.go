package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr    string
	PostgresDSN string
	AdminAPIKey string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	PolicyBundlePath string
	PolicyBundleID   string

	NonceRetention time.Duration
	AnchorPeriod   time.Duration
	AnchorMethod   string

	RateLimitRPS    int
	RateLimitWindow time.Duration
}

func FromEnv() Config {
	return Config{
		HTTPAddr:    envDefault("HTTP_ADDR", ":8080"),
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		AdminAPIKey: os.Getenv("ADMIN_API_KEY"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),

		PolicyBundlePath: os.Getenv("POLICY_BUNDLE_PATH"),
		PolicyBundleID:   envDefault("POLICY_BUNDLE_ID", "issuance_v1"),

		NonceRetention: envDuration("NONCE_RETENTION", 24*time.Hour),
		AnchorPeriod:   envDuration("ANCHOR_PERIOD", time.Hour),
		AnchorMethod:   envDefault("ANCHOR_METHOD", "merkle_v1"),

		RateLimitRPS:    envInt("RATE_LIMIT_RPS", 0),
		RateLimitWindow: envDuration("RATE_LIMIT_WINDOW", time.Second),
	}
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
