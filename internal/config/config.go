// Package config contains everything related to configuration
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	CredentialsPath string
	APIURL          string
	DatabasePath    string
	Timeout         time.Duration
	RefreshInterval time.Duration
	NotifyThreshold int
	HistoryEnabled  bool
}

// Default values
const (
	DefaultAPIURL          = "https://www.minimaxi.com/v1/api/openplatform/coding_plan/remains"
	defaultTimeout         = 10 * time.Second
	defaultRefreshInterval = 60 * time.Second
	defaultNotifyThreshold = 90
	credentialsFileName    = ".minimax-config.json"
)

// Load reads configuration from .env files and environment variables.
func Load() (*Config, error) {
	// Try loading .env from multiple locations
	for _, path := range getEnvPaths() {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			break
		}
	}

	cfg := &Config{
		CredentialsPath: getEnvString("MINIMAX_CONFIG_PATH", DefaultCredentialsPath()),
		APIURL:          getEnvString("MINIMAX_API_URL", DefaultAPIURL),
		DatabasePath:    getEnvString("DATABASE_PATH", getDefaultDatabasePath()),
		Timeout:         getEnvDuration("MINIMAX_TIMEOUT", defaultTimeout),
		RefreshInterval: getEnvDuration("MINIMAX_REFRESH_INTERVAL", defaultRefreshInterval),
		NotifyThreshold: getEnvInt("MINIMAX_NOTIFY_THRESHOLD", defaultNotifyThreshold),
		HistoryEnabled:  getEnvBool("MINIMAX_HISTORY", true),
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("MINIMAX_TIMEOUT must be positive, got %s", cfg.Timeout)
	}
	if cfg.NotifyThreshold < 0 || cfg.NotifyThreshold > 100 {
		return nil, fmt.Errorf("MINIMAX_NOTIFY_THRESHOLD must be between 0 and 100, got %d", cfg.NotifyThreshold)
	}

	// History is optional; db.New creates the directory and a failure there
	// only disables recording.
	if cfg.HistoryEnabled {
		_ = ensureDir(filepath.Dir(cfg.DatabasePath))
	}

	return cfg, nil
}

// getEnvPaths returns a list of paths to check for .env files.
func getEnvPaths() []string {
	var paths []string

	// Current directory
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}

	// Home directory locations
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "opencode", "minimax-status", ".env"),
			filepath.Join(home, ".config", "opencode", ".env"),
			filepath.Join(home, ".minimax", ".env"),
		)
	}

	return paths
}

// DefaultCredentialsPath returns the credential file shared with the other
// minimax-status integrations.
func DefaultCredentialsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return credentialsFileName
	}
	return filepath.Join(home, credentialsFileName)
}

// getDefaultDatabasePath returns the default path for the SQLite database.
func getDefaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "usage.db"
	}
	return filepath.Join(home, ".config", "opencode", "minimax-status", "usage.db")
}

// getEnvString retrieves a string environment variable or returns the default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable or returns the default.
// Accepts values like "30s", "1m", "500ms".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		// Try parsing as seconds if no unit specified
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

// ensureDir creates a directory and all parent directories if they don't exist.
func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0o750)
}
