// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config はアプリケーション設定を表す。
type Config struct {
	Port           string
	DatabaseDriver string // mysql | sqlite
	DatabaseURL    string
	MigrationsDir  string // ドライバ別サブディレクトリ（mysql/, sqlite/）の親

	KMSProvider        string // gcp | local
	KMSKeyName         string
	LocalMasterKey     string // base64 32バイト（local用）
	GoogleCloudProject string

	LogLevel string

	OtelEnabled      bool
	OtelEndpoint     string
	OtelServiceName  string
	OtelSamplingRate float64

	CounterBackend string // database | redis
	RedisAddr      string
	RedisPassword  string
	RedisDB        int

	StorageTimeout time.Duration
	SignerTimeout  time.Duration

	VerifyRateLimit float64
	VerifyRateBurst int
}

// Load は環境変数から設定を読み込む。
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		DatabaseDriver: getEnv("DATABASE_DRIVER", "mysql"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		MigrationsDir:  getEnv("MIGRATIONS_DIR", "./migrations"),

		KMSProvider:        getEnv("KMS_PROVIDER", "gcp"),
		KMSKeyName:         os.Getenv("KMS_KEY_NAME"),
		LocalMasterKey:     os.Getenv("LOCAL_MASTER_KEY"),
		GoogleCloudProject: os.Getenv("GOOGLE_CLOUD_PROJECT"),

		LogLevel: getEnv("LOG_LEVEL", "INFO"),

		OtelEnabled:      getBool("OTEL_ENABLED", false),
		OtelEndpoint:     getEnv("OTEL_ENDPOINT", "localhost:4317"),
		OtelServiceName:  getEnv("OTEL_SERVICE_NAME", "docsign-service"),
		OtelSamplingRate: getFloat("OTEL_SAMPLING_RATE", 1.0),

		CounterBackend: getEnv("COUNTER_BACKEND", "database"),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        getInt("REDIS_DB", 0),

		StorageTimeout: getDuration("STORAGE_TIMEOUT", 5*time.Second),
		SignerTimeout:  getDuration("SIGNER_TIMEOUT", 10*time.Second),

		VerifyRateLimit: getFloat("VERIFY_RATE_LIMIT", 5),
		VerifyRateBurst: getInt("VERIFY_RATE_BURST", 20),
	}
}

// MigrationsPath は使用中のドライバ向けマイグレーションディレクトリを返す。
func (c *Config) MigrationsPath() string {
	return filepath.Join(c.MigrationsDir, c.DatabaseDriver)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getBool(key string, defaultVal bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if i, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return i
	}
	return defaultVal
}

func getFloat(key string, defaultVal float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultVal
}
