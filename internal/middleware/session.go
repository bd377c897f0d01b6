// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/enrollman/internal/auth"
	"github.com/hitoshi/enrollman/internal/model"
)

const bearerPrefix = "Bearer "

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// sessionContextKey はリクエストコンテキストに管理者セッションを格納するためのキー。
var sessionContextKey = contextKey("admin_session")

// SessionAuthenticator はセッショントークンの検証に必要なインターフェース。
// auth.Serviceの部分集合として定義する。
type SessionAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*model.AdminSession, error)
}

// NewSessionMiddleware はAuthorizationヘッダーのBearerトークンを検証するミドルウェアを返す。
// 検証済みセッションをリクエストコンテキストに注入する。
// ヘッダー不在・形式不正には401 Unauthorized、トークン無効・期限切れにも401を返す。
// 存在しないトークンと期限切れトークンはレスポンス上区別しない。
func NewSessionMiddleware(authenticator SessionAuthenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. AuthorizationヘッダーからBearerトークンを取得
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, bearerPrefix) {
				WriteErrorResponse(w, http.StatusUnauthorized, &model.APIError{
					Code:     model.ErrCodeUnauthorized,
					Message:  "Unauthorized",
					Category: "auth",
					Action:   "قم بتسجيل الدخول مرة أخرى.",
				})
				return
			}
			token := strings.TrimPrefix(authHeader, bearerPrefix)

			// 2. トークンの有効性を検証
			session, err := authenticator.Authenticate(r.Context(), token)
			if err != nil {
				if !errors.Is(err, auth.ErrInvalidSession) {
					slog.Error("セッション検証に失敗しました",
						slog.String("error", err.Error()),
					)
				}
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			// 3. 検証済みセッションをコンテキストに注入
			ctx := ContextWithSession(r.Context(), session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext はリクエストコンテキストから管理者セッションを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func SessionFromContext(ctx context.Context) (*model.AdminSession, error) {
	session, ok := ctx.Value(sessionContextKey).(*model.AdminSession)
	if !ok || session == nil {
		return nil, fmt.Errorf("admin session not found in context")
	}
	return session, nil
}

// ContextWithSession はコンテキストに管理者セッションを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSession(ctx context.Context, session *model.AdminSession) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}
