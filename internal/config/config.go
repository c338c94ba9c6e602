// Package config contains everything related to configuration
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/j-veylop/wafer-yield/internal/yield"
)

// Format is an output format.
type Format string

// Supported output formats.
const (
	FormatXLSX   Format = "xlsx"
	FormatCSV    Format = "csv"
	FormatSQLite Format = "sqlite"
)

// ErrUnknownFormat is returned for output formats that are not supported.
var ErrUnknownFormat = errors.New("unknown output format")

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatXLSX, FormatCSV, FormatSQLite:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// InferFormat derives the output format from an output path. A path without
// extension names a CSV directory.
func InferFormat(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite, nil
	case ".csv", "":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: cannot infer from %q", ErrUnknownFormat, path)
	}
}

// Config holds the application configuration.
type Config struct {
	InputPath       string
	InputSheet      string
	OutputPath      string
	OutputFormat    Format
	DatabasePath    string
	ProfilePath     string
	ZeroTotalPolicy yield.ZeroTotalPolicy
	WatchDebounce   time.Duration
	Notify          bool

	// Profile is set by Resolve.
	Profile *Profile
}

// Default values
const (
	defaultInputPath     = "Wafer Yield.xlsx"
	defaultInputSheet    = "Raw Data"
	defaultOutputPath    = "out.xlsx"
	defaultWatchDebounce = 500 * time.Millisecond
)

// Load reads configuration from .env files and environment variables.
// Callers apply their own overrides and then call Resolve.
func Load() (*Config, error) {
	// Try loading .env from multiple locations
	for _, path := range getEnvPaths() {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			break
		}
	}

	policy, err := yield.ParseZeroTotalPolicy(getEnvString("WAFER_ZERO_TOTAL_POLICY", ""))
	if err != nil {
		return nil, fmt.Errorf("WAFER_ZERO_TOTAL_POLICY: %w", err)
	}

	cfg := &Config{
		InputPath:       getEnvString("WAFER_INPUT_PATH", defaultInputPath),
		InputSheet:      getEnvString("WAFER_INPUT_SHEET", defaultInputSheet),
		OutputPath:      getEnvString("WAFER_OUTPUT_PATH", defaultOutputPath),
		DatabasePath:    getEnvString("WAFER_DATABASE_PATH", getDefaultDatabasePath()),
		ProfilePath:     getEnvString("WAFER_PROFILE_PATH", ""),
		ZeroTotalPolicy: policy,
		WatchDebounce:   getEnvDuration("WAFER_WATCH_DEBOUNCE", defaultWatchDebounce),
		Notify:          getEnvBool("WAFER_NOTIFY", false),
	}

	if format := getEnvString("WAFER_OUTPUT_FORMAT", ""); format != "" {
		if cfg.OutputFormat, err = ParseFormat(format); err != nil {
			return nil, fmt.Errorf("WAFER_OUTPUT_FORMAT: %w", err)
		}
	}

	return cfg, nil
}

// Resolve fills derived settings: the output format when none was given,
// and the report profile.
func (c *Config) Resolve() error {
	if c.OutputFormat == "" {
		format, err := InferFormat(c.OutputPath)
		if err != nil {
			return err
		}
		c.OutputFormat = format
	}

	if c.ProfilePath == "" {
		c.Profile = DefaultProfile()
	} else {
		p, err := LoadProfile(c.ProfilePath)
		if err != nil {
			return err
		}
		c.Profile = p
	}

	return nil
}

// EnsureDatabaseDir creates the directory of the sqlite store.
func (c *Config) EnsureDatabaseDir() error {
	return ensureDir(filepath.Dir(c.DatabasePath))
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
			filepath.Join(home, ".config", "wafer-yield", ".env"),
			filepath.Join(home, ".wafer-yield", ".env"),
		)
	}

	// Parent directory, for running from a data subdirectory
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(cwd), ".env"))
	}

	return paths
}

// getDefaultDatabasePath returns the default path for the SQLite database.
func getDefaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "yield.db"
	}
	return filepath.Join(home, ".config", "wafer-yield", "yield.db")
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
		// Try parsing as milliseconds if no unit specified
		if ms, err := strconv.Atoi(value); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns the default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
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
