package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"

	FeedMemory = "memory"
	FeedRedis  = "redis"
)

// Config holds application configuration
type Config struct {
	SharedPassword string
	AdminName      string
	Port           string
	AllowedOrigins []string

	StoreDriver  string
	DatabasePath string
	DatabaseURL  string

	FeedDriver string
	RedisAddr  string

	Telegram Telegram
}

// Telegram configures the optional chat bot
type Telegram struct {
	Token string
	// BoardChatID receives the board every time it changes. Zero disables it.
	BoardChatID int64
}

// Enabled reports whether the bot should run
func (t Telegram) Enabled() bool {
	return t.Token != ""
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if not exists)
	_ = godotenv.Load()

	cfg := &Config{
		SharedPassword: os.Getenv("SHARED_PASSWORD"),
		AdminName:      os.Getenv("ADMIN_NAME"),
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "*")),
		StoreDriver:    strings.ToLower(getEnv("STORE_DRIVER", StoreSQLite)),
		DatabasePath:   getEnv("DATABASE_PATH", "./status_board.db"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		FeedDriver:     strings.ToLower(getEnv("FEED_DRIVER", FeedMemory)),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		Telegram: Telegram{
			Token: os.Getenv("TELEGRAM_BOT_TOKEN"),
		},
	}

	if raw := os.Getenv("TELEGRAM_BOARD_CHAT_ID"); raw != "" {
		chatID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_BOARD_CHAT_ID %q: %w", raw, err)
		}
		cfg.Telegram.BoardChatID = chatID
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.SharedPassword == "" {
		return fmt.Errorf("SHARED_PASSWORD environment variable is required")
	}

	switch c.StoreDriver {
	case StoreSQLite:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=%s", StorePostgres)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.FeedDriver {
	case FeedMemory, FeedRedis:
	default:
		return fmt.Errorf("unknown FEED_DRIVER %q", c.FeedDriver)
	}

	return nil
}

// AllowAllOrigins reports whether CORS is open to any origin
func (c *Config) AllowAllOrigins() bool {
	for _, origin := range c.AllowedOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
