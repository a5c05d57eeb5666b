package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server
	Port string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Snapshot store
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Broadcast (NATS is optional)
	NATSURL         string
	BroadcastBuffer int

	// Auth, tokens are issued by the external auth service
	JWTSecret string

	// Collector
	CollectorBaseURL          string
	CollectorStartTimeout     time.Duration
	CollectorTimeout          time.Duration
	CollectorHeartbeatTimeout time.Duration
	HeartbeatInterval         time.Duration

	// Dedup
	DedupBackend  string // memory or redis
	DedupWindow   time.Duration
	DedupCapacity int

	// Metrics
	MetricsHistoryLimit int

	// Logging
	LogLevel      string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
}

func Load() *Config {
	return &Config{
		Port:                      getEnv("PORT", "8097"),
		DBHost:                    getEnv("DB_HOST", "localhost"),
		DBPort:                    getEnv("DB_PORT", "5432"),
		DBUser:                    getEnv("DB_USER", "postgres"),
		DBPassword:                getEnv("DB_PASSWORD", ""),
		DBName:                    getEnv("DB_NAME", "netwatch"),
		DBSSLMode:                 getEnv("DB_SSLMODE", "disable"),
		RedisAddr:                 getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:             getEnv("REDIS_PASSWORD", ""),
		RedisDB:                   getEnvInt("REDIS_DB", 0),
		NATSURL:                   getEnv("NATS_URL", ""),
		BroadcastBuffer:           getEnvInt("BROADCAST_BUFFER", 1024),
		JWTSecret:                 getEnv("JWT_SECRET", ""),
		CollectorBaseURL:          getEnv("COLLECTOR_BASE_URL", "http://localhost:8090"),
		CollectorStartTimeout:     getEnvDuration("COLLECTOR_START_TIMEOUT", 30*time.Second),
		CollectorTimeout:          getEnvDuration("COLLECTOR_TIMEOUT", 10*time.Second),
		CollectorHeartbeatTimeout: getEnvDuration("COLLECTOR_HEARTBEAT_TIMEOUT", 5*time.Second),
		HeartbeatInterval:         getEnvDuration("HEARTBEAT_INTERVAL", 0),
		DedupBackend:              getEnv("DEDUP_BACKEND", "memory"),
		DedupWindow:               getEnvDuration("DEDUP_WINDOW", 5*time.Minute),
		DedupCapacity:             getEnvInt("DEDUP_CAPACITY", 10000),
		MetricsHistoryLimit:       getEnvInt("METRICS_HISTORY_LIMIT", 60),
		LogLevel:                  getEnv("LOG_LEVEL", "info"),
		LogFile:                   getEnv("LOG_FILE", ""),
		LogMaxSizeMB:              getEnvInt("LOG_MAX_SIZE_MB", 100),
		LogMaxBackups:             getEnvInt("LOG_MAX_BACKUPS", 5),
		LogMaxAgeDays:             getEnvInt("LOG_MAX_AGE_DAYS", 14),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

// getEnvDuration accepts Go duration syntax ("90s", "5m") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
