package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Env      string `yaml:"env"`
	RedisURL string `yaml:"redis_url"`

	// Rate limiting
	RateLimitWhitelist []string `yaml:"rate_limit_whitelist"` // IPs or CIDRs exempt from rate limiting
	AutoBlockEnabled   bool     `yaml:"auto_block_enabled"`   // Enable auto-blocking after repeated violations

	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Only enable it behind a proxy that overwrites those headers.
	TrustProxy bool `yaml:"trust_proxy"`
}

// Load reads configuration from an optional YAML file named by CONFIG_FILE,
// then from environment variables, which take precedence.
// In development, it loads from .env file if present.
// It panics on an unreadable config file or, in production, on missing
// required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port: "8080",
		Env:  "development",
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			panic(err)
		}
	}

	cfg.applyEnv()

	// In production, require redis for rate limiting
	if cfg.Env == "production" && cfg.RedisURL == "" {
		panic("REDIS_URL is required in production")
	}

	return cfg
}

// loadFile overlays values from a YAML file onto cfg.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Host = getEnv("HOST", c.Host)
	c.Port = getEnv("PORT", c.Port)
	c.Env = getEnv("ENV", c.Env)
	c.RedisURL = getEnv("REDIS_URL", c.RedisURL)

	if v := os.Getenv("AUTO_BLOCK_ENABLED"); v != "" {
		c.AutoBlockEnabled = v == "true"
	}
	if v := os.Getenv("TRUST_PROXY"); v != "" {
		c.TrustProxy = v == "true"
	}

	// Parse whitelist (comma-separated IPs or CIDRs)
	if whitelist := os.Getenv("RATE_LIMIT_WHITELIST"); whitelist != "" {
		c.RateLimitWhitelist = nil
		for _, entry := range strings.Split(whitelist, ",") {
			entry = strings.TrimSpace(entry)
			if entry != "" {
				c.RateLimitWhitelist = append(c.RateLimitWhitelist, entry)
			}
		}
	}
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
