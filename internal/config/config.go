package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	// Server
	ServerPort int

	// Vendor API
	AccessKey     string
	SecretKey     string
	VendorBaseURL string

	// Upstream behaviour
	CacheTTL       time.Duration
	RequestTimeout time.Duration
	FanoutLimit    int

	// Display classification
	HouseControllerName string
	ShedControllerName  string
	BatteryCategory     string

	// Logging
	LogLevel string
	LogDir   string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ServerPort: getEnvInt("SERVER_PORT", 3000),

		// Vendor API credentials have no defaults. Absence is not fatal at
		// startup; unauthenticated calls fail per-request instead.
		AccessKey:     getEnv("ACCESS_KEY", ""),
		SecretKey:     getEnv("SECRET_KEY", ""),
		VendorBaseURL: getEnv("VENDOR_BASE_URL", "https://openapi.renogy.com"),

		CacheTTL:       time.Duration(getEnvInt("CACHE_TTL_MS", 60000)) * time.Millisecond,
		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_MS", 10000)) * time.Millisecond,
		FanoutLimit:    getEnvInt("FANOUT_LIMIT", 8),

		HouseControllerName: getEnv("HOUSE_CONTROLLER_NAME", "Controller House"),
		ShedControllerName:  getEnv("SHED_CONTROLLER_NAME", "Controller Shed"),
		BatteryCategory:     getEnv("BATTERY_CATEGORY", "Battery"),

		LogLevel: getEnv("LOG_LEVEL", "INFO"),
		LogDir:   getEnv("LOG_DIRECTORY", "./logs"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid SERVER_PORT: %d", c.ServerPort)
	}

	if c.VendorBaseURL == "" {
		return fmt.Errorf("VENDOR_BASE_URL must not be empty")
	}

	if c.CacheTTL < time.Second || c.CacheTTL > time.Hour {
		return fmt.Errorf("invalid CACHE_TTL_MS: %v (must be 1s-1h)", c.CacheTTL)
	}

	if c.RequestTimeout < 500*time.Millisecond || c.RequestTimeout > time.Minute {
		return fmt.Errorf("invalid REQUEST_TIMEOUT_MS: %v (must be 500ms-1m)", c.RequestTimeout)
	}

	if c.FanoutLimit < 1 || c.FanoutLimit > 64 {
		return fmt.Errorf("invalid FANOUT_LIMIT: %d (must be 1-64)", c.FanoutLimit)
	}

	return nil
}

// HasCredentials reports whether both vendor API credentials are configured.
func (c *Config) HasCredentials() bool {
	return c.AccessKey != "" && c.SecretKey != ""
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
