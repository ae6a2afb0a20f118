package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	NodeID      int64

	Log       LogConfig
	Telemetry TelemetryConfig
	Store     StoreConfig
	Lock      LockConfig

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMigrate         bool
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	DBLogLevel        string
	DBSlowQueryMs     int
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string
	Format string
	// Sampling applies per message per second.
	SampleInitial    int
	SampleThereafter int
}

// TelemetryConfig controls OTLP export of traces and metrics.
type TelemetryConfig struct {
	Enabled       bool
	Endpoint      string
	Protocol      string
	SamplingRatio float64
}

// StoreConfig selects the ledger backend.
type StoreConfig struct {
	Backend       string
	AutoProvision bool
}

// LockConfig selects the mutual exclusion backend for ledger writes.
type LockConfig struct {
	Backend       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Key           string
	TTL           time.Duration
}

const (
	StoreBackendGorm   = "gorm"
	StoreBackendMemory = "memory"

	LockBackendLocal = "local"
	LockBackendRedis = "redis"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "cemtrack"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		NodeID:       getenvInt64("SNOWFLAKE_NODE", 1),
		Log: LogConfig{
			Level:            strings.ToLower(strings.TrimSpace(getenv("LOG_LEVEL", "info"))),
			Format:           normalizeLogFormat(getenv("LOG_FORMAT", "json")),
			SampleInitial:    int(getenvInt64("LOG_SAMPLE_INITIAL", 100)),
			SampleThereafter: int(getenvInt64("LOG_SAMPLE_THEREAFTER", 100)),
		},
		Telemetry: TelemetryConfig{
			Enabled:       getenvBool("OTEL_ENABLED", false),
			Endpoint:      getenv("OTEL_EXPORTER_OTLP_ENDPOINT", getenv("OTLP_ENDPOINT", "localhost:4317")),
			Protocol:      otlpProtocol(),
			SamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		},
		Store: StoreConfig{
			Backend:       normalizeStoreBackend(getenv("STORE_BACKEND", StoreBackendGorm)),
			AutoProvision: getenvBool("STORE_AUTO_PROVISION", true),
		},
		Lock: LockConfig{
			Backend:       normalizeLockBackend(getenv("LOCK_BACKEND", LockBackendLocal)),
			RedisAddr:     strings.TrimSpace(getenv("LOCK_REDIS_ADDR", "")),
			RedisPassword: strings.TrimSpace(getenv("LOCK_REDIS_PASSWORD", "")),
			RedisDB:       int(getenvInt64("LOCK_REDIS_DB", 0)),
			Key:           getenv("LOCK_KEY", "cemtrack:ledger:lock"),
			TTL:           time.Duration(getenvInt64("LOCK_TTL_SECONDS", 60)) * time.Second,
		},
		DBType:            getenv("DATABASE_TYPE", "sqlite"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "cemtrack"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "cemtrack.db"),
		DBMigrate:         getenvBool("DATABASE_MIGRATE", false),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 5)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 20)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 300)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 60)),
		DBLogLevel:        getenv("DATABASE_LOG_LEVEL", "warn"),
		DBSlowQueryMs:     int(getenvInt64("DATABASE_SLOW_QUERY_MS", 200)),
	}

	return cfg
}

func normalizeLogFormat(raw string) string {
	if strings.EqualFold(strings.TrimSpace(raw), "console") {
		return "console"
	}
	return "json"
}

// otlpProtocol prefers the traces specific variable over the generic one.
func otlpProtocol() string {
	protocol := getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	protocol = getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", protocol)
	return strings.ToLower(strings.TrimSpace(protocol))
}

// Debug reports whether verbose request logging should be on.
func (c Config) Debug() bool {
	if c.Log.Level == "debug" {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

func normalizeStoreBackend(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case StoreBackendMemory:
		return StoreBackendMemory
	default:
		return StoreBackendGorm
	}
}

func normalizeLockBackend(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case LockBackendRedis:
		return LockBackendRedis
	default:
		return LockBackendLocal
	}
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed < 0 || parsed > 1 {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}
