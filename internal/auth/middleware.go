package auth

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/agent-vault/internal/logging"
	"github.com/yourusername/agent-vault/internal/users"
)

// LoginPath は未ログイン時のリダイレクト先です。
const LoginPath = "/login"

// RequireLogin はセッションを検証するミドルウェアを返します。
// onDenied はリダイレクト前に呼ばれ、通知メッセージの追加などに使えます。
func (m *Manager) RequireLogin(onDenied func(c *gin.Context, session sessions.Session)) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		logger := logging.FromContext(c.Request.Context())

		user, err := m.CurrentUser(c.Request.Context(), session)
		switch {
		case err != nil && !errors.Is(err, ErrUnresolvableSession):
			logger.Error("failed to resolve session user", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "failed to resolve session",
			})
			return
		case user == nil:
			if err != nil {
				logger.Warn("session bound to missing user", "error", err)
			}
			logger.Info("access denied", "path", c.Request.URL.Path, "error", ErrUnauthorized)
			if onDenied != nil {
				onDenied(c, session)
			}
			if err := session.Save(); err != nil {
				logger.Warn("failed to save session before redirect", "error", err)
			}
			c.Redirect(http.StatusSeeOther, LoginPath)
			c.Abort()
			return
		}

		if err := m.touch(session); err != nil {
			logger.Warn("failed to refresh session activity", "error", err)
		}
		c.Set(ContextUserKey, user)
		c.Next()
	}
}

// UserFromContext は RequireLogin が保存したユーザーを取り出します。
func UserFromContext(c *gin.Context) (*users.User, bool) {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*users.User)
	return user, ok && user != nil
}
