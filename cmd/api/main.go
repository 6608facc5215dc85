// Package main は Agent Vault サーバーのエントリーポイントです。
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/agent-vault/internal/auth"
	"github.com/yourusername/agent-vault/internal/config"
	"github.com/yourusername/agent-vault/internal/logging"
	"github.com/yourusername/agent-vault/internal/password"
	"github.com/yourusername/agent-vault/internal/pdf"
	"github.com/yourusername/agent-vault/internal/users"
	"github.com/yourusername/agent-vault/internal/web"
)

const (
	serviceName    = "agent-vault"
	serviceVersion = "0.1.0"
)

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(logging.Config{
		Service: serviceName,
		Version: serviceVersion,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Debug:   !cfg.IsRelease(),
	})

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	// ユーザーストアの準備
	store, err := users.Open(cfg.DatabaseFile)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.ApplyMigrations(); err != nil {
		return err
	}
	if count, err := store.Count(ctx); err == nil {
		logger.Info("user store ready", "path", cfg.DatabaseFile, "users", count)
	}

	hasher, err := password.NewHasher(password.Options{
		Algorithm:  password.Algorithm(cfg.PasswordHashAlgo),
		SaltLength: cfg.PasswordSaltLength,
	})
	if err != nil {
		return err
	}

	// 配布ファイルは起動時に確認する。ページ数が読めなくても配信は続ける
	artifact, err := pdf.LoadArtifact(cfg.ArtifactPath)
	if err != nil {
		return err
	}
	if err := artifact.CountPages(); err != nil {
		logger.Warn("could not read artifact page count", "path", artifact.Path, "error", err)
	}
	logger.Info("artifact loaded",
		"path", artifact.Path,
		"content_type", artifact.ContentType,
		"size", artifact.Size,
		"pages", artifact.Pages,
	)

	sessionStore, closeSessions, err := auth.NewSessionStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeSessions(); err != nil {
			logger.Warn("failed to close session store", "error", err)
		}
	}()

	manager := auth.NewManager(store, cfg.SessionMaxAge, cfg.SessionIdleTimeout)
	service := auth.NewService(store, hasher)

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logging.Middleware(logger))
	router.Use(sessions.Sessions(auth.SessionCookieName, sessionStore))
	router.Use(cors.New(corsConfig(cfg)))

	routes := web.Routes{
		Handler:   web.NewHandler(service, manager),
		Manager:   manager,
		Artifact:  artifact,
		DB:        store,
		StaticDir: cfg.StaticDir,
		Service:   serviceName,
		Version:   serviceVersion,
	}
	if err := routes.Register(router); err != nil {
		return fmt.Errorf("failed to register routes: %w", err)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", server.Addr, "mode", cfg.GinMode, "session_store", cfg.SessionStore)
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
			_ = server.Close()
		}
	}

	logger.Info("server stopped")
	return nil
}

// corsConfig は許可オリジンをカンマ区切りの設定値から組み立てます。
func corsConfig(cfg *config.Config) cors.Config {
	c := cors.DefaultConfig()
	origins := make([]string, 0)
	for _, o := range strings.Split(cfg.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		origins = []string{"http://localhost:" + cfg.Port}
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	c.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	return c
}
