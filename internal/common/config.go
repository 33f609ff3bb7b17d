package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Scanner  ScannerConfig
	Parser   ParserConfig
	Database DatabaseConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr string
}

// ScannerConfig holds camera acquisition and validation configuration
type ScannerConfig struct {
	// CameraTimeout bounds the whole acquisition attempt sequence.
	CameraTimeout time.Duration
	// MaxTextLength bounds decoded payloads before validation.
	MaxTextLength int
	// ProbeDevices is how many capture device indexes to enumerate.
	ProbeDevices int
	// FrameInterval is the delay between decode attempts on a live stream.
	FrameInterval time.Duration
	// FormFields names the form inputs that extracted fields populate.
	FormFields []string
}

// ParserConfig holds the external field-extraction service configuration
type ParserConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// DatabaseConfig holds the scan-history store configuration.
// An empty DSN disables history entirely.
type DatabaseConfig struct {
	DSN         string
	DialTimeout time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: getEnv("SCANFORM_HTTP_ADDR", ":8080"),
		},
		Scanner: ScannerConfig{
			CameraTimeout: getEnvAsDuration("SCANFORM_CAMERA_TIMEOUT", 30*time.Second),
			MaxTextLength: getEnvAsInt("SCANFORM_MAX_TEXT_LEN", 2048),
			ProbeDevices:  getEnvAsInt("SCANFORM_PROBE_DEVICES", 4),
			FrameInterval: getEnvAsDuration("SCANFORM_FRAME_INTERVAL", 150*time.Millisecond),
			FormFields:    getEnvAsList("SCANFORM_FORM_FIELDS", []string{"nome", "documento", "valor", "data"}),
		},
		Parser: ParserConfig{
			URL:     getEnv("SCANFORM_PARSER_URL", ""),
			APIKey:  getEnv("SCANFORM_PARSER_API_KEY", ""),
			Timeout: getEnvAsDuration("SCANFORM_PARSER_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			DSN:         getEnv("SCANFORM_DB_URL", ""),
			DialTimeout: getEnvAsDuration("SCANFORM_DB_DIAL_TIMEOUT", 3*time.Second),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return NewAppError(CodeConfigError, "SCANFORM_HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Scanner.CameraTimeout <= 0 {
		return NewAppError(CodeConfigError, "SCANFORM_CAMERA_TIMEOUT must be positive", ErrInvalidInput)
	}
	if c.Scanner.MaxTextLength <= 0 {
		return NewAppError(CodeConfigError, "SCANFORM_MAX_TEXT_LEN must be positive", ErrInvalidInput)
	}
	if c.Parser.URL == "" {
		return NewAppError(CodeConfigError, "SCANFORM_PARSER_URL is required", ErrInvalidInput)
	}
	return nil
}
