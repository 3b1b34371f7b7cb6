package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // EDIT_TIMEZONEをzoneinfoのないコンテナでも解決する

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	GoogleHostedDomain string

	// Session
	SessionSecret          string
	SessionMaxAge          int
	SessionRetentionDays   int
	SessionCleanupInterval time.Duration
	RedisURL               string
	ProfileCacheTTL        time.Duration

	// Authorization
	AuthPolicy string

	// Editor
	EditTimezone   *time.Location
	EditCutoffHour int

	// Rate Limit
	RateLimitGeneral int
	RateLimitWrite   int

	// Avatar
	AvatarTTL             time.Duration
	AvatarRefreshInterval time.Duration
	AvatarAPIInterval     time.Duration
	AvatarMaxPerCycle     int

	// Teams
	TeamsFile string

	// Logging
	LogLevel string

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// LoadDotEnv は.envファイルの内容を環境変数に読み込む。
// ファイルが存在しない場合は何もしない。既に設定済みの環境変数は上書きしない。
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合、または値が不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	if cfg.GoogleClientID == "" {
		missing = append(missing, "GOOGLE_CLIENT_ID")
	}

	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	if cfg.GoogleClientSecret == "" {
		missing = append(missing, "GOOGLE_CLIENT_SECRET")
	}

	cfg.GoogleRedirectURL = os.Getenv("GOOGLE_REDIRECT_URL")
	if cfg.GoogleRedirectURL == "" {
		missing = append(missing, "GOOGLE_REDIRECT_URL")
	}
	cfg.GoogleHostedDomain = os.Getenv("GOOGLE_HOSTED_DOMAIN")

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.SessionRetentionDays = getEnvInt("SESSION_RETENTION_DAYS", 7)
	cfg.SessionCleanupInterval = getEnvDuration("SESSION_CLEANUP_INTERVAL", 24*time.Hour)
	cfg.RedisURL = getEnvString("REDIS_URL", "")
	cfg.ProfileCacheTTL = getEnvDuration("PROFILE_CACHE_TTL", 10*time.Minute)
	cfg.AuthPolicy = getEnvString("AUTH_POLICY", "allowlist")
	cfg.EditCutoffHour = getEnvInt("EDIT_CUTOFF_HOUR", 9)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitWrite = getEnvInt("RATE_LIMIT_WRITE", 30)
	cfg.AvatarTTL = getEnvDuration("AVATAR_TTL", 24*time.Hour)
	cfg.AvatarRefreshInterval = getEnvDuration("AVATAR_REFRESH_INTERVAL", 15*time.Minute)
	cfg.AvatarAPIInterval = getEnvDuration("AVATAR_API_INTERVAL", time.Second)
	cfg.AvatarMaxPerCycle = getEnvInt("AVATAR_MAX_PER_CYCLE", 50)
	cfg.TeamsFile = getEnvString("TEAMS_FILE", "teams.yaml")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", cfg.BaseURL)

	tzName := getEnvString("EDIT_TIMEZONE", "Asia/Seoul")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid EDIT_TIMEZONE %q: %w", tzName, err)
	}
	cfg.EditTimezone = loc

	if cfg.EditCutoffHour < 0 || cfg.EditCutoffHour > 23 {
		return nil, fmt.Errorf("EDIT_CUTOFF_HOUR must be between 0 and 23: %d", cfg.EditCutoffHour)
	}

	switch cfg.AuthPolicy {
	case "allowlist", "membership":
	default:
		return nil, fmt.Errorf("unknown AUTH_POLICY: %s", cfg.AuthPolicy)
	}

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
