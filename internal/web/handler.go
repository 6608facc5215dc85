// Package web は画面遷移を伴う登録・ログイン・限定ページのハンドラーを提供します。
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/agent-vault/internal/auth"
	"github.com/yourusername/agent-vault/internal/logging"
	"github.com/yourusername/agent-vault/internal/users"
)

// 画面に出す通知文です。
const (
	msgDuplicateEmail = "Duplicate detected! This email's already in use."
	msgInvalidLogin   = "Authentication failed. The system detected invalid credentials."
	msgLoginRequired  = "Please log in to access this page."
	fmtAccessGranted  = "Access granted, Agent %s"
	fmtFarewell       = "Agent %s, you've safely exited the system."
)

// Accounts は登録とログイン時の照合を行います。
type Accounts interface {
	Register(ctx context.Context, email, password, name string) (*users.User, error)
	Authenticate(ctx context.Context, email, password string) (*users.User, error)
}

// Handler は画面系エンドポイントをまとめます。
type Handler struct {
	accounts Accounts
	manager  *auth.Manager
}

// NewHandler は Handler を作成します。
func NewHandler(accounts Accounts, manager *auth.Manager) *Handler {
	return &Handler{accounts: accounts, manager: manager}
}

// Home は GET / を処理します。
func (h *Handler) Home(c *gin.Context) {
	h.render(c, "index.html", nil)
}

// RegisterForm は GET /register を処理します。
func (h *Handler) RegisterForm(c *gin.Context) {
	h.render(c, "register.html", nil)
}

// Register は POST /register を処理します。
// 作成に成功したらそのままログインさせ、/secrets へ移動します。
func (h *Handler) Register(c *gin.Context) {
	ctx := c.Request.Context()
	logger := logging.FromContext(ctx)
	session := sessions.Default(c)

	user, err := h.accounts.Register(ctx, c.PostForm("email"), c.PostForm("password"), c.PostForm("name"))
	if err != nil {
		if errors.Is(err, users.ErrDuplicateEmail) {
			logger.Info("registration rejected", "error", err)
			addFlash(session, CategoryInfo, msgDuplicateEmail)
			h.redirect(c, session, auth.LoginPath)
			return
		}
		h.internalError(c, "failed to register user", err)
		return
	}

	addFlash(session, CategorySuccess, fmt.Sprintf(fmtAccessGranted, user.Name))
	if err := h.manager.Login(session, user.ID); err != nil {
		h.internalError(c, "failed to start session", err)
		return
	}
	logger.Info("user registered", "user_id", user.ID)
	c.Redirect(http.StatusSeeOther, "/secrets")
}

// LoginForm は GET /login を処理します。
func (h *Handler) LoginForm(c *gin.Context) {
	h.render(c, "login.html", nil)
}

// Login は POST /login を処理します。
// 失敗理由は利用者に区別させません。
func (h *Handler) Login(c *gin.Context) {
	ctx := c.Request.Context()
	logger := logging.FromContext(ctx)
	session := sessions.Default(c)

	user, err := h.accounts.Authenticate(ctx, c.PostForm("email"), c.PostForm("password"))
	if err != nil {
		if errors.Is(err, auth.ErrAuthenticationFailed) {
			logger.Info("login rejected", "error", err)
			addFlash(session, CategoryDanger, msgInvalidLogin)
			h.redirect(c, session, auth.LoginPath)
			return
		}
		h.internalError(c, "failed to authenticate user", err)
		return
	}

	addFlash(session, CategorySuccess, fmt.Sprintf(fmtAccessGranted, user.Name))
	if err := h.manager.Login(session, user.ID); err != nil {
		h.internalError(c, "failed to start session", err)
		return
	}
	logger.Info("user logged in", "user_id", user.ID)
	c.Redirect(http.StatusSeeOther, "/secrets")
}

// Secrets は GET /secrets を処理します。RequireLogin の後ろに置きます。
func (h *Handler) Secrets(c *gin.Context) {
	user, ok := auth.UserFromContext(c)
	if !ok {
		h.internalError(c, "gated route reached without user", auth.ErrUnauthorized)
		return
	}
	h.render(c, "secrets.html", gin.H{
		"name":     user.Name,
		"loggedIn": true,
	})
}

// Logout は GET /logout を処理します。RequireLogin の後ろに置きます。
func (h *Handler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	user, ok := auth.UserFromContext(c)
	if !ok {
		h.internalError(c, "gated route reached without user", auth.ErrUnauthorized)
		return
	}

	addFlash(session, CategorySuccess, fmt.Sprintf(fmtFarewell, user.Name))
	if err := h.manager.Logout(session); err != nil {
		h.internalError(c, "failed to clear session", err)
		return
	}
	logging.FromContext(c.Request.Context()).Info("user logged out", "user_id", user.ID)
	c.Redirect(http.StatusSeeOther, "/")
}

// DenyAccess は RequireLogin の拒否時に通知を積みます。
func DenyAccess(c *gin.Context, session sessions.Session) {
	addFlash(session, CategoryWarning, msgLoginRequired)
}

// render は通知を取り出してテンプレートを描画します。
// loggedIn が data に無ければセッションから判定します。
func (h *Handler) render(c *gin.Context, name string, data gin.H) {
	session := sessions.Default(c)
	if data == nil {
		data = gin.H{}
	}
	if _, ok := data["loggedIn"]; !ok {
		data["loggedIn"] = h.manager.IsAuthenticated(c.Request.Context(), session)
	}
	data["flashes"] = popFlashes(session)

	if err := session.Save(); err != nil {
		h.internalError(c, "failed to save session", err)
		return
	}
	c.HTML(http.StatusOK, name, data)
}

func (h *Handler) redirect(c *gin.Context, session sessions.Session, location string) {
	if err := session.Save(); err != nil {
		h.internalError(c, "failed to save session", err)
		return
	}
	c.Redirect(http.StatusSeeOther, location)
}

func (h *Handler) internalError(c *gin.Context, msg string, err error) {
	logging.FromContext(c.Request.Context()).Error(msg, "error", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"code":    "INTERNAL_ERROR",
		"message": "Something went wrong. Please try again later.",
	})
}
