package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/enrollman/internal/metrics"
	"github.com/hitoshi/enrollman/internal/middleware"
)

// HealthChecker はストレージ到達性の確認関数。
// エラーを返した場合、/healthは503を返す。
type HealthChecker func(ctx context.Context) error

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Authenticator     middleware.SessionAuthenticator
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// サービス
	AuthService       AuthServiceInterface
	EnrollmentService EnrollmentServiceInterface

	// 運用
	MetricsCollector metrics.MetricsCollector
	MetricsGatherer  prometheus.Gatherer
	HealthCheck      HealthChecker
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → CORS
//
// 管理者ルート（/api/admin/*）にはSessionミドルウェアを追加する。
// ログインのみレート制限付きでミドルウェアチェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	if deps.MetricsCollector != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.MetricsCollector))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	studentHandler := NewStudentHandler(deps.EnrollmentService)
	adminHandler := NewAdminHandler(deps.AuthService, deps.EnrollmentService)

	// --- 認証不要のルート ---

	r.Route("/api/students", func(r chi.Router) {
		r.Post("/", studentHandler.Register)
		r.Get("/", studentHandler.List)
	})

	// ログインはブルートフォース対策のレート制限付き
	loginRoute := func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.With(deps.RateLimiter.LoginMiddleware()).Post("/login", adminHandler.Login)
		} else {
			r.Post("/login", adminHandler.Login)
		}
	}

	// --- 管理者ルート ---
	r.Route("/api/admin", func(r chi.Router) {
		loginRoute(r)

		r.Group(func(r chi.Router) {
			r.Use(middleware.NewSessionMiddleware(deps.Authenticator))

			r.Post("/logout", adminHandler.Logout)
			r.Get("/students", adminHandler.ListStudents)
			r.Get("/students/export", adminHandler.ExportCSV)
		})
	})

	// --- 運用ルート ---

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if deps.HealthCheck != nil {
			if err := deps.HealthCheck(r.Context()); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	if deps.MetricsGatherer != nil {
		r.Get("/metrics", metrics.Handler(deps.MetricsGatherer).ServeHTTP)
	}

	return r
}
