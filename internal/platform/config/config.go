// Package config assembles runtime configuration from the environment so
// main stays lean.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	pstrings "accounts/pkg/platform/strings"
)

// Server captures the full accounts server configuration.
type Server struct {
	Addr        string
	TokenSecret string
	Issuer      string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	BcryptCost      int

	DatabaseURL  string
	KafkaBrokers []string
	Redis        Redis
}

// Redis captures connection tuning for the session cache. An empty URL
// means the cache is disabled.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	return Server{
		Addr:            envString("ACCOUNTS_ADDR", ":4000"),
		TokenSecret:     envString("ACCOUNTS_TOKEN_SECRET", "insecure-dev-secret"),
		Issuer:          envString("ACCOUNTS_ISSUER", "accounts"),
		AccessTokenTTL:  envDuration("ACCOUNTS_ACCESS_TOKEN_TTL", 90*time.Minute),
		RefreshTokenTTL: envDuration("ACCOUNTS_REFRESH_TOKEN_TTL", 7*24*time.Hour),
		BcryptCost:      envInt("ACCOUNTS_BCRYPT_COST", 0),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		KafkaBrokers:    envList("KAFKA_BROKERS"),
		Redis: Redis{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	return pstrings.DedupeAndTrim(strings.Split(v, ","))
}
