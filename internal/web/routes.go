package web

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/agent-vault/internal/auth"
	"github.com/yourusername/agent-vault/internal/logging"
	"github.com/yourusername/agent-vault/internal/pdf"
)

// Pinger は依存先の疎通確認です。
type Pinger interface {
	Ping(ctx context.Context) error
}

// Routes はルーティングに必要な依存をまとめます。
type Routes struct {
	Handler   *Handler
	Manager   *auth.Manager
	Artifact  *pdf.Artifact
	DB        Pinger
	StaticDir string
	Service   string
	Version   string
}

// Register は画面・ダウンロード・ヘルスチェックのルートを登録します。
// router にはセッションミドルウェアが設定済みである必要があります。
func (r Routes) Register(router *gin.Engine) error {
	tmpl, err := LoadTemplates()
	if err != nil {
		return err
	}
	router.SetHTMLTemplate(tmpl)

	if r.StaticDir != "" {
		router.Static("/static", r.StaticDir)
	}
	router.GET("/health", r.health)

	h := r.Handler
	router.GET("/", h.Home)
	router.GET("/register", h.RegisterForm)
	router.POST("/register", h.Register)
	router.GET("/login", h.LoginForm)
	router.POST("/login", h.Login)

	gated := router.Group("")
	gated.Use(r.Manager.RequireLogin(DenyAccess))
	{
		gated.GET("/secrets", h.Secrets)
		gated.GET("/logout", h.Logout)
		gated.POST("/download", pdf.DownloadHandler(r.Artifact))
	}
	return nil
}

// health はヘルスチェックエンドポイントのハンドラーです。
func (r Routes) health(c *gin.Context) {
	if r.DB != nil {
		if err := r.DB.Ping(c.Request.Context()); err != nil {
			logging.FromContext(c.Request.Context()).Error("health check failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unavailable",
				"service": r.Service,
				"version": r.Version,
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": r.Service,
		"version": r.Version,
	})
}
