package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/fx"
)

type Config struct {
	StateRoot               string
	RelayBinary             string
	LogLevel                string
	EventsLogEnabled        bool
	EventsLogFilePath       string
	EventsLogSizeLimitMB    int
	DefaultRootfsBytes      int64
	HealthcheckPollInterval time.Duration
}

func NewConfig() *Config {
	return &Config{
		StateRoot:               getEnv("COMPOTE_STATE_ROOT", defaultStateRoot()),
		RelayBinary:             getEnv("COMPOTE_RELAY_BINARY", defaultRelayBinary()),
		LogLevel:                getEnv("COMPOTE_LOG_LEVEL", "info"),
		EventsLogEnabled:        getEnvBool("COMPOTE_EVENTS_LOG_ENABLED", false),
		EventsLogFilePath:       getEnv("COMPOTE_EVENTS_LOG_FILE_PATH", "/var/log/compote/events.jsonl"),
		EventsLogSizeLimitMB:    getEnvInt("COMPOTE_EVENTS_LOG_SIZE_LIMIT_MB", 100),
		DefaultRootfsBytes:      int64(getEnvInt("COMPOTE_DEFAULT_ROOTFS_MB", 2048)) * 1024 * 1024,
		HealthcheckPollInterval: time.Duration(getEnvInt("COMPOTE_HEALTHCHECK_POLL_MS", 250)) * time.Millisecond,
	}
}

func defaultStateRoot() string {
	base, err := os.UserConfigDir()
	if err != nil || base == "" {
		base = os.TempDir()
	}
	return filepath.Join(base, "compote", "state")
}

func defaultRelayBinary() string {
	exe, err := os.Executable()
	if err != nil {
		return "compote"
	}
	return exe
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

var Module = fx.Options(
	fx.Provide(NewConfig),
)
