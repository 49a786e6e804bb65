package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	MinFingerprintCacheSize     = 100
	MaxFingerprintCacheSize     = 4500
	DefaultFingerprintCacheSize = 1000
)

type Config struct {
	HTTPAddr    string
	PostgresDSN string
	LogLevel    string

	AdminAPIKey string

	// PlaceholderPolicy is "infer" or "hide" and selects the edge policy of
	// the placeholder shown when no surrogate can be produced.
	PlaceholderPolicy    string
	FingerprintCacheSize int
	EdgePolicyPath       string
	SeedLattice          bool

	RateLimitRequests      int
	RateLimitWindowSeconds int
	RateLimitFailClosed    bool
	RateLimitMaxKeys       int
	RateLimitViewerMaxLen  int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:               addr,
		PostgresDSN:            os.Getenv("POSTGRES_DSN"),
		LogLevel:               envDefault("LOG_LEVEL", "info"),
		AdminAPIKey:            os.Getenv("ADMIN_API_KEY"),
		PlaceholderPolicy:      placeholderPolicy(os.Getenv("PLACEHOLDER_POLICY")),
		FingerprintCacheSize:   ClampCacheSize(envIntDefault("FINGERPRINT_CACHE_SIZE", DefaultFingerprintCacheSize)),
		EdgePolicyPath:         os.Getenv("EDGE_POLICY_PATH"),
		SeedLattice:            envBoolDefault("SEED_LATTICE", true),
		RateLimitRequests:      envIntDefault("RATE_LIMIT_REQUESTS", 0),
		RateLimitWindowSeconds: envIntDefault("RATE_LIMIT_WINDOW_SECONDS", 60),
		RateLimitFailClosed:    envBoolDefault("RATE_LIMIT_FAIL_CLOSED", false),
		RateLimitMaxKeys:       envIntDefault("RATE_LIMIT_MAX_KEYS", 10000),
		RateLimitViewerMaxLen:  envIntDefault("RATE_LIMIT_VIEWER_MAX_LEN", 128),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                envIntDefault("REDIS_DB", 0),
	}
}

// ClampCacheSize bounds n to the supported fingerprint cache sizes.
func ClampCacheSize(n int) int {
	if n < MinFingerprintCacheSize {
		return MinFingerprintCacheSize
	}
	if n > MaxFingerprintCacheSize {
		return MaxFingerprintCacheSize
	}
	return n
}

func (c Config) RateLimitWindow() time.Duration {
	if c.RateLimitWindowSeconds <= 0 {
		return 0
	}
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

func placeholderPolicy(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "hide", "hide_all":
		return "hide"
	default:
		return "infer"
	}
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func envBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "Yes":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "No":
		return false
	default:
		return def
	}
}
