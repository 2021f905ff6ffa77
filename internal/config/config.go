// Package config provides configuration loading for fingerprintd.
//
// Configuration is loaded from environment variables with sensible defaults.
// This package supports server, observability, rule-source, and detection
// settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds the complete fingerprintd configuration.
type Config struct {
	Production    ProductionConfig
	Server        ServerConfig
	Observability ObservabilityConfig
	Rules         RulesConfig
	Detection     DetectionConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry   bool   `koanf:"enable_telemetry"`
	ServiceName       string `koanf:"service_name"`
	OTLPEndpoint      string `koanf:"otlp_endpoint"`        // OTLP endpoint (default: localhost:4317)
	OTLPProtocol      string `koanf:"otlp_protocol"`        // "grpc" or "http/protobuf" (default: grpc)
	OTLPInsecure      bool   `koanf:"otlp_insecure"`        // Use insecure connection (default: true for localhost)
	OTLPTLSSkipVerify bool   `koanf:"otlp_tls_skip_verify"` // Skip TLS verification for internal CAs
}

// RulesConfig controls where the technology rule library is loaded from and
// how its on-disk cache is maintained.
type RulesConfig struct {
	// Origin selects the rule source: "embedded", "local", "remote-official",
	// or "remote-custom".
	Origin string `koanf:"origin"`

	// LocalPath is the rule file path when Origin is "local".
	LocalPath string `koanf:"local_path"`

	// CustomURL is the rule source URL when Origin is "remote-custom".
	CustomURL string `koanf:"custom_url"`

	// CacheDir holds the ETag-keyed rule cache for remote origins.
	CacheDir string `koanf:"cache_dir"`

	// CheckUpdate re-validates a remote origin's ETag on every load instead
	// of trusting the cache unconditionally.
	CheckUpdate bool `koanf:"check_update"`

	// Timeout bounds each outbound rule-source HTTP request.
	Timeout time.Duration `koanf:"timeout"`

	// RetryMaxAttempts is the number of attempts a remote fetch makes
	// before falling back to any cached copy.
	RetryMaxAttempts int `koanf:"retry_max_attempts"`

	// RetryBackoff is the delay between retry attempts.
	RetryBackoff time.Duration `koanf:"retry_backoff"`

	// WatchForUpdates enables an fsnotify watch on the cache file that
	// hot-swaps the global detector when a new rule snapshot lands.
	WatchForUpdates bool `koanf:"watch_for_updates"`

	// IgnoreListPath is an optional TOML file naming technologies and
	// category IDs to exclude from detection results.
	IgnoreListPath string `koanf:"ignore_list_path"`
}

// DetectionConfig tunes the per-request detection pipeline.
type DetectionConfig struct {
	// MaxBodySizeKB bounds how much of a response body is scanned for
	// DOM-derived evidence (script src, meta tags).
	MaxBodySizeKB int `koanf:"max_body_size_kb"`
}

// Load loads configuration from environment variables with defaults.
//
// All environment variables:
//
// Server:
//   - SERVER_PORT: HTTP server port (default: 9090)
//   - SERVER_SHUTDOWN_TIMEOUT: Graceful shutdown timeout (default: 10s)
//
// Rules:
//   - FINGERPRINTD_RULE_ORIGIN: embedded, local, remote-official, remote-custom (default: embedded)
//   - FINGERPRINTD_RULE_LOCAL_PATH: rule file path for the local origin
//   - FINGERPRINTD_RULE_CUSTOM_URL: rule source URL for the remote-custom origin
//   - FINGERPRINTD_RULE_CACHE_DIR: cache directory for remote origins (default: ~/.cache/fingerprintd)
//   - FINGERPRINTD_RULE_CHECK_UPDATE: re-check ETag on every load (default: false)
//   - FINGERPRINTD_RULE_TIMEOUT: outbound fetch timeout (default: 10s)
//   - FINGERPRINTD_RULE_RETRY_MAX_ATTEMPTS: fetch retry attempts (default: 3)
//   - FINGERPRINTD_RULE_RETRY_BACKOFF: delay between retries (default: 500ms)
//   - FINGERPRINTD_RULE_WATCH: hot-swap the detector on cache file changes (default: false)
//   - FINGERPRINTD_IGNORE_LIST_PATH: TOML ignore list path
//
// Detection:
//   - FINGERPRINTD_MAX_BODY_SIZE_KB: response body scan cap (default: 2048)
//
// Telemetry:
//   - OTEL_ENABLE: Enable OpenTelemetry (default: false, requires OTEL collector)
//   - OTEL_SERVICE_NAME: Service name for traces (default: fingerprintd)
//
// Example:
//
//	cfg := config.Load()
//	fmt.Println("rule origin:", cfg.Rules.Origin)
func Load() *Config {
	cfg := &Config{
		Production: ProductionConfig{
			Enabled:               getEnvBool("FINGERPRINTD_PRODUCTION_MODE", false),
			LocalModeAcknowledged: getEnvBool("FINGERPRINTD_LOCAL_MODE", false),
			RequireAuthentication: getEnvBool("FINGERPRINTD_REQUIRE_AUTH", false),
			RequireTLS:            getEnvBool("FINGERPRINTD_REQUIRE_TLS", false),
			AllowNoIsolation:      getEnvBool("FINGERPRINTD_ALLOW_NO_ISOLATION", false),
		},
		Server: ServerConfig{
			Port:            getEnvInt("SERVER_PORT", 9090),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Observability: ObservabilityConfig{
			EnableTelemetry: getEnvBool("OTEL_ENABLE", false),
			ServiceName:     getEnvString("OTEL_SERVICE_NAME", "fingerprintd"),
		},
		Rules: RulesConfig{
			Origin:           getEnvString("FINGERPRINTD_RULE_ORIGIN", "embedded"),
			LocalPath:        getEnvString("FINGERPRINTD_RULE_LOCAL_PATH", ""),
			CustomURL:        getEnvString("FINGERPRINTD_RULE_CUSTOM_URL", ""),
			CacheDir:         getEnvString("FINGERPRINTD_RULE_CACHE_DIR", defaultCacheDir()),
			CheckUpdate:      getEnvBool("FINGERPRINTD_RULE_CHECK_UPDATE", false),
			Timeout:          getEnvDuration("FINGERPRINTD_RULE_TIMEOUT", 10*time.Second),
			RetryMaxAttempts: getEnvInt("FINGERPRINTD_RULE_RETRY_MAX_ATTEMPTS", 3),
			RetryBackoff:     getEnvDuration("FINGERPRINTD_RULE_RETRY_BACKOFF", 500*time.Millisecond),
			WatchForUpdates:  getEnvBool("FINGERPRINTD_RULE_WATCH", false),
			IgnoreListPath:   getEnvString("FINGERPRINTD_IGNORE_LIST_PATH", ""),
		},
		Detection: DetectionConfig{
			MaxBodySizeKB: getEnvInt("FINGERPRINTD_MAX_BODY_SIZE_KB", 2048),
		},
	}

	return cfg
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cache/fingerprintd"
	}
	return filepath.Join(home, ".cache", "fingerprintd")
}

// Validate validates the configuration.
//
// Returns an error if:
//   - Server port is not between 1 and 65535
//   - Shutdown timeout is not positive
//   - Service name is empty (when telemetry is enabled)
//   - The rule origin is not one of the recognised values
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}

	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}

	switch c.Rules.Origin {
	case "embedded", "local", "remote-official", "remote-custom":
	default:
		return fmt.Errorf("invalid FINGERPRINTD_RULE_ORIGIN: %q (must be embedded, local, remote-official, or remote-custom)", c.Rules.Origin)
	}

	if c.Rules.Origin == "local" {
		if c.Rules.LocalPath == "" {
			return errors.New("FINGERPRINTD_RULE_LOCAL_PATH required when origin is local")
		}
		if err := validatePath(c.Rules.LocalPath); err != nil {
			return fmt.Errorf("invalid FINGERPRINTD_RULE_LOCAL_PATH: %w", err)
		}
	}

	if c.Rules.Origin == "remote-custom" {
		if err := validateURL(c.Rules.CustomURL); err != nil {
			return fmt.Errorf("invalid FINGERPRINTD_RULE_CUSTOM_URL: %w", err)
		}
	}

	if c.Rules.CacheDir != "" {
		if err := validatePath(c.Rules.CacheDir); err != nil {
			return fmt.Errorf("invalid FINGERPRINTD_RULE_CACHE_DIR: %w", err)
		}
	}

	if c.Detection.MaxBodySizeKB <= 0 {
		return errors.New("FINGERPRINTD_MAX_BODY_SIZE_KB must be positive")
	}

	if err := c.Production.Validate(); err != nil {
		return fmt.Errorf("production config validation failed: %w", err)
	}

	return nil
}

// Helper functions for environment variable parsing

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

// ProductionConfig holds production deployment configuration.
type ProductionConfig struct {
	// Enabled indicates whether production mode is active.
	// Set via FINGERPRINTD_PRODUCTION_MODE=1 environment variable.
	Enabled bool `koanf:"enabled"`

	// LocalModeAcknowledged allows development features in production mode.
	// Set via FINGERPRINTD_LOCAL_MODE=1 environment variable.
	// Use only for local development/testing.
	LocalModeAcknowledged bool `koanf:"local_mode_acknowledged"`

	// RequireAuthentication enforces authentication in production.
	RequireAuthentication bool `koanf:"require_authentication"`

	// AuthenticationConfigured indicates if auth is properly set up.
	AuthenticationConfigured bool `koanf:"authentication_configured"`

	// RequireTLS enforces TLS for external rule sources.
	RequireTLS bool `koanf:"require_tls"`

	// AllowNoIsolation permits NoIsolation mode (testing only).
	// Always false in production mode.
	AllowNoIsolation bool `koanf:"allow_no_isolation"`
}

// IsProduction returns true if running in production mode.
func (c *ProductionConfig) IsProduction() bool {
	return c.Enabled
}

// IsLocal returns true if local mode is acknowledged.
func (c *ProductionConfig) IsLocal() bool {
	return c.LocalModeAcknowledged
}

// Validate checks production configuration for security issues.
func (c *ProductionConfig) Validate() error {
	if !c.Enabled {
		return nil // Not in production, skip validation
	}

	if c.AllowNoIsolation {
		return fmt.Errorf("SECURITY: NoIsolation mode cannot be enabled in production")
	}

	if c.RequireAuthentication && !c.AuthenticationConfigured {
		return fmt.Errorf("SECURITY: RequireAuthentication enabled but authentication not configured")
	}

	return nil
}

// validatePath checks if a path is safe (no path traversal)
func validatePath(path string) error {
	// Check for path traversal sequences
	if strings.Contains(path, "..") {
		return fmt.Errorf("path contains traversal sequence: %s", path)
	}

	// For absolute paths, verify the cleaned path doesn't escape
	if filepath.IsAbs(path) {
		clean := filepath.Clean(path)
		// Count directory depth - compare original vs cleaned
		// If cleaned has fewer separators, upward traversal occurred
		origDepth := strings.Count(path, string(filepath.Separator))
		cleanDepth := strings.Count(clean, string(filepath.Separator))

		if cleanDepth < origDepth-1 {
			return fmt.Errorf("path traversal detected: %s (resolves to %s)", path, clean)
		}
	}

	return nil
}

// validateURL checks if a URL uses allowed schemes (http/https only)
func validateURL(urlStr string) error {
	// Only allow http and https schemes
	if !strings.HasPrefix(urlStr, "http://") && !strings.HasPrefix(urlStr, "https://") {
		return fmt.Errorf("URL must use http:// or https:// scheme, got: %s", urlStr)
	}
	return nil
}
