package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/rbcervilla/redisstore/v9"
	"github.com/redis/go-redis/v9"

	"github.com/yourusername/agent-vault/internal/config"
)

const redisKeyPrefix = "av_session:"

// redisSessionStore は redisstore を gin-contrib/sessions の Store として使うためのアダプタです。
type redisSessionStore struct {
	*redisstore.RedisStore
}

func (s *redisSessionStore) Options(options sessions.Options) {
	s.RedisStore.Options(*options.ToGorillaOptions())
}

// SessionOptions はセッションクッキーの属性を返します。
func SessionOptions(cfg *config.Config) sessions.Options {
	return sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.SessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.IsRelease(),
		SameSite: http.SameSiteLaxMode,
	}
}

// NewSessionStore は設定に応じて cookie または redis のセッションストアを作成します。
// 戻り値の close は終了時に呼び出してください。
func NewSessionStore(ctx context.Context, cfg *config.Config) (sessions.Store, func() error, error) {
	switch cfg.SessionStore {
	case config.SessionStoreRedis:
		opt, err := redis.ParseURL(cfg.SessionRedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse SESSION_REDIS_URL: %w", err)
		}
		client := redis.NewClient(opt)
		rs, err := redisstore.NewRedisStore(ctx, client)
		if err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to connect session redis: %w", err)
		}
		rs.KeyPrefix(redisKeyPrefix)

		store := &redisSessionStore{RedisStore: rs}
		store.Options(SessionOptions(cfg))
		return store, client.Close, nil
	default:
		store := cookie.NewStore([]byte(cfg.SessionSecret))
		store.Options(SessionOptions(cfg))
		return store, func() error { return nil }, nil
	}
}
