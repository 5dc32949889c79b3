// Package config loads application settings from environment variables,
// applies defaults and validates the result at startup so misconfiguration
// fails fast.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Upload   UploadConfig
	Import   ImportConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Display  DisplayConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading a request (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response (default: 30s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"30s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// StorageConfig selects where the active collection is persisted.
type StorageConfig struct {
	// Driver is one of: sqlite, postgres, memory (default: sqlite)
	Driver string `env:"STORAGE_DRIVER" default:"sqlite"`

	// Path is the SQLite database file (default: data/finboard.db)
	Path string `env:"STORAGE_PATH" default:"data/finboard.db"`

	// DatabaseURL is the PostgreSQL connection string, required for postgres.
	// DATABASE_URL and DB_URL are both accepted.
	DatabaseURL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the PostgreSQL pool size (default: 4)
	MaxConns int `env:"DB_MAX_CONNS" default:"4"`

	// Timeout bounds each save or load (default: 10s)
	Timeout time.Duration `env:"STORAGE_TIMEOUT" default:"10s"`
}

// UploadConfig holds import request settings.
type UploadConfig struct {
	// MaxFileSize is the maximum accepted file size in bytes (default: 10MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"10485760"`

	// Timeout is the maximum duration of one import (default: 2m)
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" default:"2m"`
}

// ImportConfig holds drop-folder import settings.
type ImportConfig struct {
	// WatchDir is scanned for .csv files; empty disables the watcher
	WatchDir string `env:"IMPORT_WATCH_DIR"`

	// ScanSchedule is a cron spec for periodic rescans (default: @every 5m)
	ScanSchedule string `env:"IMPORT_SCAN_SCHEDULE" default:"@every 5m"`

	// ArchiveDir receives imported files, relative to WatchDir (default: imported)
	ArchiveDir string `env:"IMPORT_ARCHIVE_DIR" default:"imported"`

	// Debounce delays a scan after a file event (default: 500ms)
	Debounce time.Duration `env:"IMPORT_DEBOUNCE" default:"500ms"`
}

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// UploadLimit is the per-minute limit for import requests (default: 10)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey guards import routes with X-API-Key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text, json or pretty (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// DisplayConfig chooses how cells are rendered.
type DisplayConfig struct {
	// CurrencyColumns are rendered as euro amounts (default: amount)
	CurrencyColumns []string `env:"DISPLAY_CURRENCY_COLUMNS" default:"amount"`

	// DateColumns are rendered as dd/mm/yyyy (default: date)
	DateColumns []string `env:"DISPLAY_DATE_COLUMNS" default:"date"`

	// FilterColumns get a value picker on the dashboard (default: type)
	FilterColumns []string `env:"DISPLAY_FILTER_COLUMNS" default:"type"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
