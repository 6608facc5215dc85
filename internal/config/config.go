// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// セッションストアの種類
const (
	SessionStoreCookie = "cookie"
	SessionStoreRedis  = "redis"
)

// 開発時のみ使うセッション署名鍵。release モードでは Validate で弾かれます。
const devSessionSecret = "agent-vault-dev-session-secret-do-not-use"

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// サーバー設定
	Port                string        // HTTPサーバーのポート番号
	GinMode             string        // Ginの実行モード (debug, release, test)
	ShutdownGracePeriod time.Duration // グレースフルシャットダウンの猶予

	// セッション設定
	SessionSecret      string        // セッション署名用の秘密鍵
	SessionStore       string        // cookie または redis
	SessionRedisURL    string        // redis ストア利用時の接続URL
	SessionMaxAge      time.Duration // セッションの絶対有効期限
	SessionIdleTimeout time.Duration // 無操作でのタイムアウト

	// データベース設定
	DatabaseFile string // SQLite ファイルのパス

	// パスワードハッシュ設定
	PasswordHashAlgo   string // argon2id, pbkdf2, bcrypt
	PasswordSaltLength int    // ソルト長

	// 配信ファイル設定
	ArtifactPath string // ログイン後にダウンロードさせるPDF
	StaticDir    string // CSS などの公開アセット

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り）

	// ログ設定
	LogLevel  string // debug, info, warn, error
	LogFormat string // json, text
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	// .env.local ファイルを読み込む（存在しない場合はスキップ）
	loadEnvFile()

	config := &Config{
		// サーバー設定
		Port:                getEnv("PORT", "8080"),
		GinMode:             getEnv("GIN_MODE", "debug"),
		ShutdownGracePeriod: getEnvAsDuration("SHUTDOWN_GRACE_PERIOD", 10*time.Second),

		// セッション設定
		SessionSecret:      getEnv("SESSION_SECRET", ""),
		SessionStore:       getEnv("SESSION_STORE", SessionStoreCookie),
		SessionRedisURL:    getEnv("SESSION_REDIS_URL", "redis://127.0.0.1:6379/0"),
		SessionMaxAge:      getEnvAsDuration("SESSION_MAX_AGE", 12*time.Hour),
		SessionIdleTimeout: getEnvAsDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),

		// データベース設定
		DatabaseFile: getEnv("DATABASE_FILE", "users.db"),

		// パスワードハッシュ設定
		PasswordHashAlgo:   getEnv("PASSWORD_HASH_ALGO", "argon2id"),
		PasswordSaltLength: getEnvAsInt("PASSWORD_SALT_LENGTH", 16),

		// 配信ファイル設定
		ArtifactPath: getEnv("ARTIFACT_PATH", "files/cheat_sheet.pdf"),
		StaticDir:    getEnv("STATIC_DIR", "static"),

		// CORS設定
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:8080"),

		// ログ設定
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	// 必須設定のバリデーション
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// 開発モードでは署名鍵が無くても起動できるようにする
	if config.SessionSecret == "" {
		config.SessionSecret = devSessionSecret
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// IsRelease は release モードで動作しているかを返します。
func (c *Config) IsRelease() bool {
	return c.GinMode == "release"
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	switch c.SessionStore {
	case SessionStoreCookie, SessionStoreRedis:
	default:
		return fmt.Errorf("SESSION_STORE must be %q or %q, got %q", SessionStoreCookie, SessionStoreRedis, c.SessionStore)
	}
	switch c.PasswordHashAlgo {
	case "argon2id", "pbkdf2", "bcrypt":
	default:
		return fmt.Errorf("PASSWORD_HASH_ALGO must be argon2id, pbkdf2 or bcrypt, got %q", c.PasswordHashAlgo)
	}
	if c.PasswordSaltLength <= 0 {
		return fmt.Errorf("PASSWORD_SALT_LENGTH must be positive")
	}
	if c.SessionMaxAge <= 0 {
		return fmt.Errorf("SESSION_MAX_AGE must be positive")
	}
	if c.DatabaseFile == "" {
		return fmt.Errorf("DATABASE_FILE is required")
	}
	if c.ArtifactPath == "" {
		return fmt.Errorf("ARTIFACT_PATH is required")
	}

	// 本番環境では厳格にチェックする
	if c.IsRelease() {
		if len(c.SessionSecret) < 32 {
			return fmt.Errorf("SESSION_SECRET of at least 32 bytes is required in release mode")
		}
		if c.SessionStore == SessionStoreRedis && c.SessionRedisURL == "" {
			return fmt.Errorf("SESSION_REDIS_URL is required in release mode")
		}
	}

	return nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration は "30m" 形式、または秒数の整数として環境変数を取得します。
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if seconds, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
