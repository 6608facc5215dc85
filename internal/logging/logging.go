// Package logging は構造化ログ (log/slog) の初期化とリクエストログを提供します。
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config はロガーの設定です。
type Config struct {
	Service string
	Version string
	Level   string // debug, info, warn, error
	Format  string // json, text
	Debug   bool   // true の場合は呼び出し元を出力する
}

// New は設定に従った slog.Logger を返し、デフォルトロガーにも設定します。
func New(cfg Config) *slog.Logger {
	logger := newLogger(os.Stdout, cfg)
	slog.SetDefault(logger)
	return logger
}

func newLogger(w io.Writer, cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		AddSource: cfg.Debug,
		Level:     parseLevel(cfg.Level),
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler).With(
		"service", cfg.Service,
		"version", cfg.Version,
	)
}

func parseLevel(lvl string) slog.Level {
	switch strings.ToLower(lvl) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type ctxKey struct{}

// WithContext はロガーをコンテキストに格納します。
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext はコンテキストのロガーを返します。無ければデフォルトロガーを返します。
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
