package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/yourusername/agent-vault/internal/users"
)

// CredentialStore はユーザーの検索と登録を行う永続化層です。
type CredentialStore interface {
	UserFinder
	FindByEmail(ctx context.Context, email string) (*users.User, error)
	Create(ctx context.Context, email, passwordHash, name string) (*users.User, error)
}

// PasswordHasher はパスワードのハッシュ化と照合を行います。
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
}

// Service は登録とログインの資格情報チェックをまとめます。HTTP には依存しません。
type Service struct {
	store  CredentialStore
	hasher PasswordHasher
}

// NewService は Service を作成します。
func NewService(store CredentialStore, hasher PasswordHasher) *Service {
	return &Service{store: store, hasher: hasher}
}

// Register は新しいユーザーを作成します。
// メールアドレスが登録済みなら users.ErrDuplicateEmail を返し、既存レコードには触れません。
func (s *Service) Register(ctx context.Context, email, password, name string) (*users.User, error) {
	_, err := s.store.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, users.ErrDuplicateEmail
	case !errors.Is(err, users.ErrNotFound):
		return nil, err
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	// 事前チェックと INSERT の間に同じメールが登録された場合も
	// ストアの一意制約で ErrDuplicateEmail になる
	return s.store.Create(ctx, email, digest, name)
}

// Authenticate はメールアドレスとパスワードを照合します。
// 未登録とパスワード不一致は区別せず ErrAuthenticationFailed を返します。
func (s *Service) Authenticate(ctx context.Context, email, password string) (*users.User, error) {
	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, ErrAuthenticationFailed
		}
		return nil, err
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, ErrAuthenticationFailed
	}
	return user, nil
}
