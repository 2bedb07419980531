package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type InvalidationCfg struct {
	Enabled bool
	Topic   string
	Brokers string
	GroupID string
}

type Config struct {
	Addr            string
	LogLevel        string
	LogConsole      bool
	OpenDataURL     string
	UpstreamTimeout time.Duration
	CacheBackend    string
	CacheTTL        time.Duration
	CacheMaxEntries int
	RedisAddr       string
	PrefsPath       string
	RefreshInterval time.Duration
	Invalidation    InvalidationCfg
}

func FromEnv() Config {
	ttl := getduration("CACHE_TTL", 2*time.Minute)

	return Config{
		Addr:            getenv("ADDR", ":8090"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		LogConsole:      getbool("LOG_CONSOLE", false),
		OpenDataURL:     getenv("OPENDATA_URL", "https://portail-api-data.montpellier3m.fr"),
		UpstreamTimeout: getduration("UPSTREAM_TIMEOUT", 30*time.Second),
		CacheBackend:    strings.ToLower(getenv("CACHE_BACKEND", "memory")),
		CacheTTL:        ttl,
		CacheMaxEntries: getint("CACHE_MAX_ENTRIES", 512),
		RedisAddr:       getenv("REDIS_ADDR", "localhost:6379"),
		PrefsPath:       getenv("PREFS_PATH", ""),
		RefreshInterval: getduration("REFRESH_INTERVAL", ttl),
		Invalidation: InvalidationCfg{
			Enabled: getbool("INVALIDATION_ENABLED", false),
			Topic:   getenv("KAFKA_TOPIC", "parking-updates"),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			GroupID: getenv("KAFKA_GROUP_ID", "parkingd"),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
