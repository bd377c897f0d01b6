// Package auth は管理者のパスワード認証とセッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/enrollman/internal/model"
	"github.com/hitoshi/enrollman/internal/repository"
)

// ErrInvalidCredentials は管理者パスワードの不一致を表す。
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrInvalidSession はトークンの不在・未発行・期限切れを表す。
// 「発行されたことのないトークン」と「期限切れトークン」は意図的に区別しない。
var ErrInvalidSession = errors.New("invalid or expired session")

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	AdminPassword string
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は管理者認証に関するビジネスロジックを提供する。
// 共有シークレットを時限付きBearerトークンに変換し、
// 管理APIへのリクエストごとにトークンを検証する。
type Service struct {
	sessions repository.SessionRepository
	config   ServiceConfig
}

// NewService はServiceを生成する。
func NewService(sessions repository.SessionRepository, config ServiceConfig) *Service {
	return &Service{
		sessions: sessions,
		config:   config,
	}
}

// Login はパスワードを検証し、新しいセッショントークンを発行する。
// パスワードはリファレンス実装どおり単純比較する（ハッシュ化はスコープ外）。
// 不一致の場合はErrInvalidCredentialsを返す。
func (s *Service) Login(ctx context.Context, password string) (string, error) {
	if password != s.config.AdminPassword {
		return "", ErrInvalidCredentials
	}

	token, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}

	now := time.Now()
	session := &model.AdminSession{
		ID:        uuid.New().String(),
		Token:     token,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return "", fmt.Errorf("failed to save session: %w", err)
	}

	slog.Info("admin logged in", slog.String("session_id", session.ID))
	return token, nil
}

// Authenticate は提示されたトークンを検証し、有効なセッションを返す。
// トークンが空・未発行・期限切れの場合はErrInvalidSessionを返す。
func (s *Service) Authenticate(ctx context.Context, token string) (*model.AdminSession, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}

	session, err := s.sessions.FindByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, ErrInvalidSession
	}

	return session, nil
}

// Logout はセッションを破棄する。
// 未知のトークンや既にログアウト済みのトークンに対しても成功する（冪等）。
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	if err := s.sessions.DeleteByToken(ctx, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("admin logged out")
	return nil
}

// generateToken は暗号的に安全なセッショントークンを生成する。
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
