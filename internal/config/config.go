package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Scraper  ScraperConfig
	Browser  BrowserConfig
	Cache    CacheConfig
	Delivery DeliveryConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type ScraperConfig struct {
	Workers         int
	ItemCap         int
	Deadline        time.Duration
	RequestInterval time.Duration
	FetchTimeout    time.Duration
}

type BrowserConfig struct {
	Enabled        bool
	Headless       bool
	Timeout        time.Duration
	MaxPages       int
	ViewportWidth  int
	ViewportHeight int
	Locale         string
}

type CacheConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
}

// DeliveryConfig is the fallback destination for scraped items when a
// request does not carry its own apiBaseUrl / agentToken pair.
type DeliveryConfig struct {
	APIBaseURL string
	AgentToken string
}

type LoggingConfig struct {
	Level  string
	Format string
}

// maxDeadline and maxItemCap bound what a request can ask for regardless of
// environment overrides.
const (
	maxDeadline = 300 * time.Second
	maxItemCap  = 300
)

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 330*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Scraper: ScraperConfig{
			Workers:         getIntOrDefault("SCRAPER_WORKERS", 4),
			ItemCap:         getIntOrDefault("SCRAPER_ITEM_CAP", maxItemCap),
			Deadline:        getDurationOrDefault("SCRAPER_DEADLINE", maxDeadline),
			RequestInterval: getDurationOrDefault("SCRAPER_REQUEST_INTERVAL", 200*time.Millisecond),
			FetchTimeout:    getDurationOrDefault("SCRAPER_FETCH_TIMEOUT", 15*time.Second),
		},
		Browser: BrowserConfig{
			Enabled:        getBoolOrDefault("BROWSER_ENABLED", true),
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			MaxPages:       getIntOrDefault("BROWSER_MAX_PAGES", 3),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1280),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 720),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "en-US"),
		},
		Cache: CacheConfig{
			RedisAddr:     getEnvOrDefault("REDIS_ADDR", ""),
			RedisPassword: getEnvOrDefault("REDIS_PASSWORD", ""),
			RedisDB:       getIntOrDefault("REDIS_DB", 0),
			TTL:           getDurationOrDefault("CACHE_TTL", 15*time.Minute),
		},
		Delivery: DeliveryConfig{
			APIBaseURL: getEnvOrDefault("API_BASE_URL", ""),
			AgentToken: getEnvOrDefault("AGENT_TOKEN", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Scraper.Workers < 1 {
		return fmt.Errorf("SCRAPER_WORKERS must be at least 1")
	}

	if c.Scraper.ItemCap < 1 || c.Scraper.ItemCap > maxItemCap {
		return fmt.Errorf("SCRAPER_ITEM_CAP must be between 1 and %d", maxItemCap)
	}

	if c.Scraper.Deadline <= 0 || c.Scraper.Deadline > maxDeadline {
		return fmt.Errorf("SCRAPER_DEADLINE must be between 0 and %s", maxDeadline)
	}

	if c.Browser.MaxPages < 1 {
		return fmt.Errorf("BROWSER_MAX_PAGES must be at least 1")
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
