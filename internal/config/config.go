// Package config は環境変数からのアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ストレージバックエンドの識別子。
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// DefaultAdminPassword は ADMIN_PASSWORD 未設定時のフォールバック値。
// リファレンス実装と同じ既知の弱いデフォルト。起動時に警告ログを出す。
const DefaultAdminPassword = "admin123"

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Server
	ServerPort        string
	CORSAllowedOrigin string

	// Admin auth
	AdminPassword        string
	AdminPasswordDefault bool // デフォルト値のまま運用されているか
	SessionMaxAge        int  // セッション有効期間（秒）

	// Rate Limit
	RateLimitLogin int // ログイン試行の上限（req/min/IP）

	// Storage
	StorageBackend string
	DatabaseURL    string

	// Mirror (Google Sheets)
	MirrorEnabled       bool
	GoogleClientEmail   string
	GooglePrivateKey    string
	SheetsSpreadsheetID string
	MirrorTimeout       time.Duration

	// ミラー先エンドポイントのオーバーライド（通常は空でGoogle既定URLを使用）。
	// 指定された場合は起動時にSSRFガードで検証される。
	SheetsBaseURL  string
	SheetsTokenURL string
}

// Load は環境変数からConfigを読み込む。
// メモリバックエンドでは必須環境変数はない。
// STORAGE_BACKEND=postgres の場合のみ DATABASE_URL が必須となる。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	cfg.AdminPassword = os.Getenv("ADMIN_PASSWORD")
	if cfg.AdminPassword == "" {
		cfg.AdminPassword = DefaultAdminPassword
		cfg.AdminPasswordDefault = true
	}

	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.RateLimitLogin = getEnvInt("RATE_LIMIT_LOGIN", 10)

	cfg.StorageBackend = getEnvString("STORAGE_BACKEND", StorageMemory)
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	switch cfg.StorageBackend {
	case StorageMemory:
		// DATABASE_URLは不要
	case StoragePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when STORAGE_BACKEND=postgres")
		}
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND: %q", cfg.StorageBackend)
	}

	cfg.MirrorEnabled = getEnvBool("MIRROR_ENABLED", true)
	cfg.GoogleClientEmail = os.Getenv("GOOGLE_CLIENT_EMAIL")
	cfg.GooglePrivateKey = os.Getenv("GOOGLE_PRIVATE_KEY")
	cfg.SheetsSpreadsheetID = os.Getenv("SHEETS_SPREADSHEET_ID")
	cfg.MirrorTimeout = getEnvDuration("MIRROR_TIMEOUT", 10*time.Second)
	cfg.SheetsBaseURL = os.Getenv("SHEETS_BASE_URL")
	cfg.SheetsTokenURL = os.Getenv("SHEETS_TOKEN_URL")

	return cfg, nil
}

// MirrorConfigured はスプレッドシートミラーに必要な資格情報が揃っているかを返す。
func (c *Config) MirrorConfigured() bool {
	return c.MirrorEnabled &&
		c.GoogleClientEmail != "" &&
		c.GooglePrivateKey != "" &&
		c.SheetsSpreadsheetID != ""
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

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
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
