// Package auth は認証・認可機能を提供します。
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-contrib/sessions"

	"github.com/yourusername/agent-vault/internal/logging"
	"github.com/yourusername/agent-vault/internal/users"
)

const (
	SessionCookieName    = "av_session"
	sessionKeyUser       = "auth_user_id"
	sessionKeyIssuedAt   = "issued_at"
	sessionKeyLastActive = "last_activity"
)

// ContextUserKey は、ハンドラー間でログイン済みユーザーを共有するためのキーです。
const ContextUserKey = "auth.user"

var (
	ErrAuthenticationFailed = errors.New("auth: invalid credentials")
	ErrUnresolvableSession  = errors.New("auth: session user no longer exists")
	ErrUnauthorized         = errors.New("auth: login required")
)

// UserFinder はセッションに紐づくユーザーを解決します。
type UserFinder interface {
	FindByID(ctx context.Context, id int64) (*users.User, error)
}

// Manager はセッションとログイン状態を扱います。
// 呼び出し元のセッションは毎回引数で受け取り、状態を内部に持ちません。
type Manager struct {
	users       UserFinder
	maxLifetime time.Duration
	idleTimeout time.Duration
	now         func() time.Time
}

// NewManager は認証マネージャーを作成します。idleTimeout が 0 の場合は無操作タイムアウトを無効にします。
func NewManager(finder UserFinder, maxLifetime, idleTimeout time.Duration) *Manager {
	return &Manager{
		users:       finder,
		maxLifetime: maxLifetime,
		idleTimeout: idleTimeout,
		now:         time.Now,
	}
}

// Login はセッションを userID で認証済みにします。既にログイン中なら置き換えます。
func (m *Manager) Login(session sessions.Session, userID int64) error {
	now := m.now().Unix()
	session.Set(sessionKeyUser, userID)
	session.Set(sessionKeyIssuedAt, now)
	session.Set(sessionKeyLastActive, now)
	if err := session.Save(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Logout はセッションからユーザー情報を取り除きます。未ログインでもエラーにしません。
// フラッシュメッセージは残します。
func (m *Manager) Logout(session sessions.Session) error {
	if _, ok := userID(session); !ok {
		return nil
	}
	forget(session)
	if err := session.Save(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// CurrentUser はセッションに紐づくユーザーを返します。
// 未ログインまたは期限切れの場合は (nil, nil)、ユーザーが存在しない場合は ErrUnresolvableSession を返します。
func (m *Manager) CurrentUser(ctx context.Context, session sessions.Session) (*users.User, error) {
	id, ok := userID(session)
	if !ok {
		return nil, nil
	}

	if m.expired(session) {
		forget(session)
		saveSession(ctx, session, "expired session")
		return nil, nil
	}

	user, err := m.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			forget(session)
			saveSession(ctx, session, "unresolvable session")
			return nil, ErrUnresolvableSession
		}
		return nil, err
	}
	return user, nil
}

// IsAuthenticated はセッションが有効なユーザーに紐づいているかを返します。
func (m *Manager) IsAuthenticated(ctx context.Context, session sessions.Session) bool {
	user, err := m.CurrentUser(ctx, session)
	return err == nil && user != nil
}

// touch は最終操作時刻を更新します。
func (m *Manager) touch(session sessions.Session) error {
	session.Set(sessionKeyLastActive, m.now().Unix())
	return session.Save()
}

func (m *Manager) expired(session sessions.Session) bool {
	now := m.now()
	issuedAt := readUnix(session.Get(sessionKeyIssuedAt))
	if issuedAt.IsZero() {
		return true
	}
	if m.maxLifetime > 0 && now.Sub(issuedAt) > m.maxLifetime {
		return true
	}
	if m.idleTimeout > 0 {
		lastActive := readUnix(session.Get(sessionKeyLastActive))
		if lastActive.IsZero() || now.Sub(lastActive) > m.idleTimeout {
			return true
		}
	}
	return false
}

func userID(session sessions.Session) (int64, bool) {
	switch v := session.Get(sessionKeyUser).(type) {
	case int64:
		return v, v > 0
	case int:
		return int64(v), v > 0
	case float64:
		return int64(v), v > 0
	default:
		return 0, false
	}
}

// saveSession は保存に失敗してもリクエストを止めず、ログだけ残します。
func saveSession(ctx context.Context, session sessions.Session, reason string) {
	if err := session.Save(); err != nil {
		logging.FromContext(ctx).Warn("failed to save session", "reason", reason, "error", err)
	}
}

func forget(session sessions.Session) {
	session.Delete(sessionKeyUser)
	session.Delete(sessionKeyIssuedAt)
	session.Delete(sessionKeyLastActive)
}

func readUnix(v interface{}) time.Time {
	switch t := v.(type) {
	case int64:
		return time.Unix(t, 0)
	case int:
		return time.Unix(int64(t), 0)
	case float64:
		return time.Unix(int64(t), 0)
	default:
		return time.Time{}
	}
}
