// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string
	DatabasePath     string
	LogLevel         string
	AllowedUsers     []int64

	// Schedule keys are interpreted by the scheduler, which falls back on bad values.
	ScheduleCron  string
	ScheduleTimes []string
	Timezone      string

	ProviderTimeout   time.Duration
	UpdateConcurrency int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	var allowedUsers []int64
	for _, s := range splitList(os.Getenv("ALLOWED_USERS")) {
		uid, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
		}
		allowedUsers = append(allowedUsers, uid)
	}

	timeoutSecs, err := positiveInt("PROVIDER_TIMEOUT_SECS", 10)
	if err != nil {
		return nil, err
	}
	concurrency, err := positiveInt("UPDATE_CONCURRENCY", 4)
	if err != nil {
		return nil, err
	}

	return &Config{
		TelegramBotToken:  token,
		DatabasePath:      getEnv("DATABASE_PATH", "./data/bot.db"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		AllowedUsers:      allowedUsers,
		ScheduleCron:      strings.TrimSpace(os.Getenv("SCHEDULE_CRON")),
		ScheduleTimes:     splitList(os.Getenv("SCHEDULE_TIMES")),
		Timezone:          getEnv("TIMEZONE", "UTC"),
		ProviderTimeout:   time.Duration(timeoutSecs) * time.Second,
		UpdateConcurrency: concurrency,
	}, nil
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	return slices.Contains(c.AllowedUsers, userID)
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func positiveInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if n < 1 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", key, raw)
	}
	return n, nil
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
