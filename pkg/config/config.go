package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv          string `yaml:"app_env"`
	LogLevel        string `yaml:"log_level"`
	DefaultTimezone string `yaml:"default_timezone"`

	// Database
	DatabaseURL    string `yaml:"database_url"`
	DatabaseDriver string `yaml:"-"`
	SQLitePath     string `yaml:"sqlite_path"`
	LocalMode      bool   `yaml:"-"`

	// Redis
	RedisURL string `yaml:"redis_url"`

	// RabbitMQ
	RabbitMQURL string `yaml:"rabbitmq_url"`

	// Chat
	ChatEndpoint string `yaml:"chat_endpoint"`
	ChatToken    string `yaml:"chat_token"`
	ChatModel    string `yaml:"chat_model"`

	// Reminders
	ReminderExactAlarms  bool          `yaml:"reminder_exact_alarms"`
	ReminderGuardWindow  time.Duration `yaml:"reminder_guard_window"`
	ReminderPollInterval time.Duration `yaml:"reminder_poll_interval"`

	// Subscriptions
	SubscriptionSyncSchedule string        `yaml:"subscription_sync_schedule"`
	SubscriptionTimeout      time.Duration `yaml:"subscription_timeout"`

	// Worker
	WorkerHealthAddr string `yaml:"worker_health_addr"`

	// MCP
	MCPAddr      string `yaml:"mcp_addr"`
	MCPAuthToken string `yaml:"mcp_auth_token"`

	// CalDAV
	CalDAVURL          string `yaml:"caldav_url"`
	CalDAVUsername     string `yaml:"caldav_username"`
	CalDAVPassword     string `yaml:"caldav_password"`
	CalDAVCalendarPath string `yaml:"caldav_calendar_path"`
}

// Load loads configuration from environment variables, layered over the
// YAML file named by SYNAPSE_CONFIG when it is set.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("SYNAPSE_CONFIG"))
}

// LoadFile loads configuration with the YAML file at path as the base layer.
// Precedence is environment, then file, then built-in defaults. A missing
// file is not an error.
func LoadFile(path string) (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := defaults()
	if path != "" {
		if err := overlayFile(cfg, path); err != nil {
			return nil, err
		}
	}

	cfg.AppEnv = getEnv("APP_ENV", cfg.AppEnv)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.DefaultTimezone = getEnv("DEFAULT_TIMEZONE", cfg.DefaultTimezone)

	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.SQLitePath = getEnv("SQLITE_PATH", cfg.SQLitePath)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.RabbitMQURL = getEnv("RABBITMQ_URL", cfg.RabbitMQURL)

	cfg.ChatEndpoint = getEnv("CHAT_ENDPOINT", cfg.ChatEndpoint)
	cfg.ChatToken = getEnv("CHAT_TOKEN", cfg.ChatToken)
	cfg.ChatModel = getEnv("CHAT_MODEL", cfg.ChatModel)

	cfg.ReminderExactAlarms = getBoolEnv("REMINDER_EXACT_ALARMS", cfg.ReminderExactAlarms)
	cfg.ReminderGuardWindow = getDurationEnv("REMINDER_GUARD_WINDOW", cfg.ReminderGuardWindow)
	cfg.ReminderPollInterval = getDurationEnv("REMINDER_POLL_INTERVAL", cfg.ReminderPollInterval)

	cfg.SubscriptionSyncSchedule = getEnv("SUBSCRIPTION_SYNC_SCHEDULE", cfg.SubscriptionSyncSchedule)
	cfg.SubscriptionTimeout = getDurationEnv("SUBSCRIPTION_TIMEOUT", cfg.SubscriptionTimeout)

	cfg.WorkerHealthAddr = getEnv("WORKER_HEALTH_ADDR", cfg.WorkerHealthAddr)
	cfg.MCPAddr = getEnv("MCP_ADDR", cfg.MCPAddr)
	cfg.MCPAuthToken = getEnv("MCP_AUTH_TOKEN", cfg.MCPAuthToken)

	cfg.CalDAVURL = getEnv("CALDAV_URL", cfg.CalDAVURL)
	cfg.CalDAVUsername = getEnv("CALDAV_USERNAME", cfg.CalDAVUsername)
	cfg.CalDAVPassword = getEnv("CALDAV_PASSWORD", cfg.CalDAVPassword)
	cfg.CalDAVCalendarPath = getEnv("CALDAV_CALENDAR_PATH", cfg.CalDAVCalendarPath)

	cfg.LocalMode = cfg.DatabaseURL == ""
	cfg.DatabaseDriver = "sqlite"
	if strings.HasPrefix(cfg.DatabaseURL, "postgres://") || strings.HasPrefix(cfg.DatabaseURL, "postgresql://") {
		cfg.DatabaseDriver = "postgres"
	}

	if _, err := time.LoadLocation(cfg.DefaultTimezone); err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_TIMEZONE %q: %w", cfg.DefaultTimezone, err)
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		AppEnv:          "development",
		LogLevel:        "info",
		DefaultTimezone: "Local",

		SQLitePath: defaultSQLitePath(),
		RedisURL:   "",

		ChatModel: "default",

		ReminderExactAlarms:  true,
		ReminderGuardWindow:  10 * time.Minute,
		ReminderPollInterval: time.Second,

		SubscriptionSyncSchedule: "@every 6h",
		SubscriptionTimeout:      30 * time.Second,

		WorkerHealthAddr: "0.0.0.0:8081",
		MCPAddr:          "0.0.0.0:8082",
	}
}

func overlayFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Location resolves DefaultTimezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.DefaultTimezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func defaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".synapse", "synapse.db")
	}
	return filepath.Join(home, ".synapse", "synapse.db")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
