/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config covers process level configuration. Values are read from an
// optional YAML file first, then overridden by ADUP_* environment variables.
type Config struct {
	Environment string
	CacheDir    string
	DBPath      string

	// Push channel
	NATSURL  string
	GroupID  string
	DeviceID string

	// Diagnostics HTTP server
	HTTPBind string
	HTTPPort int

	// Logs/analytics upload API
	LogsAPIURL     string
	SyncInterval   time.Duration
	SyncBatchSize  int
	SyncMaxRetries int

	// Playback timing
	ImageDwell      time.Duration
	PrepareTimeout  time.Duration
	StallTimeout    time.Duration
	MaxStallTimeout time.Duration
	RestartGrace    time.Duration

	// Display geometry. The panel is portrait-mounted, so content is
	// rotated at open time rather than composited.
	DisplayWidth    int
	DisplayHeight   int
	DisplayRotation int

	// Player backend: "sim" plays against the simulated handles, anything
	// else is expected to be wired by the platform build.
	PlayerBackend string
}

// fileConfig mirrors Config for the optional YAML overlay.
type fileConfig struct {
	Environment string `yaml:"environment"`
	CacheDir    string `yaml:"cache_dir"`
	DBPath      string `yaml:"db_path"`
	NATSURL     string `yaml:"nats_url"`
	GroupID     string `yaml:"group_id"`
	DeviceID    string `yaml:"device_id"`
	HTTPBind    string `yaml:"http_bind"`
	HTTPPort    int    `yaml:"http_port"`
	LogsAPIURL  string `yaml:"logs_api_url"`
}

// Load reads the optional config file and environment, applies defaults,
// and validates the result.
func Load() (*Config, error) {
	file := fileConfig{}
	if path := os.Getenv("ADUP_CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		Environment: getEnv("ADUP_ENV", fallback(file.Environment, "development")),
		CacheDir:    getEnv("ADUP_CACHE_DIR", fallback(file.CacheDir, "./downloads/subDir")),
		DBPath:      getEnv("ADUP_DB_PATH", fallback(file.DBPath, "./adup.db")),

		NATSURL:  getEnv("ADUP_NATS_URL", fallback(file.NATSURL, "nats://localhost:4222")),
		GroupID:  getEnv("ADUP_GROUP_ID", file.GroupID),
		DeviceID: getEnv("ADUP_DEVICE_ID", file.DeviceID),

		HTTPBind: getEnv("ADUP_HTTP_BIND", fallback(file.HTTPBind, "127.0.0.1")),
		HTTPPort: getEnvInt("ADUP_HTTP_PORT", firstInt(file.HTTPPort, 8090)),

		LogsAPIURL:     getEnv("ADUP_LOGS_API_URL", file.LogsAPIURL),
		SyncInterval:   getEnvDuration("ADUP_SYNC_INTERVAL", 2*time.Minute),
		SyncBatchSize:  getEnvInt("ADUP_SYNC_BATCH_SIZE", 50),
		SyncMaxRetries: getEnvInt("ADUP_SYNC_MAX_RETRIES", 3),

		ImageDwell:      getEnvDuration("ADUP_IMAGE_DWELL", 10*time.Second),
		PrepareTimeout:  getEnvDuration("ADUP_PREPARE_TIMEOUT", 15*time.Second),
		StallTimeout:    getEnvDuration("ADUP_STALL_TIMEOUT", 30*time.Second),
		MaxStallTimeout: getEnvDuration("ADUP_MAX_STALL_TIMEOUT", 180*time.Second),
		RestartGrace:    getEnvDuration("ADUP_RESTART_GRACE", 50*time.Millisecond),

		DisplayWidth:    getEnvInt("ADUP_DISPLAY_WIDTH", 1080),
		DisplayHeight:   getEnvInt("ADUP_DISPLAY_HEIGHT", 1824),
		DisplayRotation: getEnvInt("ADUP_DISPLAY_ROTATION", 90),

		PlayerBackend: getEnv("ADUP_PLAYER_BACKEND", "sim"),
	}

	if cfg.CacheDir == "" {
		return nil, fmt.Errorf("ADUP_CACHE_DIR must not be empty")
	}
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("ADUP_GROUP_ID must be provided")
	}
	if cfg.SyncBatchSize <= 0 {
		return nil, fmt.Errorf("ADUP_SYNC_BATCH_SIZE must be positive")
	}
	if cfg.MaxStallTimeout < cfg.StallTimeout {
		return nil, fmt.Errorf("ADUP_MAX_STALL_TIMEOUT must be >= ADUP_STALL_TIMEOUT")
	}
	if strings.EqualFold(cfg.Environment, "production") && cfg.LogsAPIURL == "" {
		return nil, fmt.Errorf("ADUP_LOGS_API_URL must be provided in production")
	}

	return cfg, nil
}

func fallback(val, def string) string {
	if val != "" {
		return val
	}
	return def
}

func firstInt(val, def int) int {
	if val != 0 {
		return val
	}
	return def
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

// getEnvDuration accepts Go duration strings ("90s", "2m") or bare seconds.
func getEnvDuration(key string, def time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	if parsed, err := time.ParseDuration(val); err == nil {
		return parsed
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}
