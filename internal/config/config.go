package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Notion OAuth
	NotionClientID     string
	NotionClientSecret string
	NotionRedirectURI  string

	// Redis（未設定の場合はインメモリフォールバックで動作する）
	RedisHost string
	RedisPort int

	// OpenAI
	OpenAIAPIKey string
	OpenAIModel  string

	// Session
	SessionMaxAge int

	// OAuth state
	StateTTL time.Duration

	// 外部呼び出しのタイムアウト
	ExchangeTimeout time.Duration
	NotionTimeout   time.Duration

	// Rate Limit
	RateLimitGeneral      int
	RateLimitRegistration int

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	// .envはローカル開発用。存在しなくてもエラーにしない。
	_ = godotenv.Load()

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.NotionClientID = os.Getenv("NOTION_CLIENT_ID")
	if cfg.NotionClientID == "" {
		missing = append(missing, "NOTION_CLIENT_ID")
	}

	cfg.NotionClientSecret = os.Getenv("NOTION_CLIENT_SECRET")
	if cfg.NotionClientSecret == "" {
		missing = append(missing, "NOTION_CLIENT_SECRET")
	}

	cfg.NotionRedirectURI = os.Getenv("NOTION_REDIRECT_URI")
	if cfg.NotionRedirectURI == "" {
		missing = append(missing, "NOTION_REDIRECT_URI")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.RedisHost = getEnvString("REDIS_HOST", "")
	cfg.RedisPort = getEnvInt("REDIS_PORT", 6379)
	cfg.OpenAIAPIKey = getEnvString("OPENAI_API_KEY", "")
	cfg.OpenAIModel = getEnvString("OPENAI_MODEL", "gpt-4o-mini")
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.StateTTL = getEnvDuration("OAUTH_STATE_TTL", 5*time.Minute)
	cfg.ExchangeTimeout = getEnvDuration("OAUTH_EXCHANGE_TIMEOUT", 30*time.Second)
	cfg.NotionTimeout = getEnvDuration("NOTION_TIMEOUT", 30*time.Second)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitRegistration = getEnvInt("RATE_LIMIT_REGISTRATION", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
