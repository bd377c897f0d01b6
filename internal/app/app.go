package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/enrollman/internal/auth"
	"github.com/hitoshi/enrollman/internal/config"
	"github.com/hitoshi/enrollman/internal/database"
	"github.com/hitoshi/enrollman/internal/enrollment"
	"github.com/hitoshi/enrollman/internal/handler"
	"github.com/hitoshi/enrollman/internal/logger"
	"github.com/hitoshi/enrollman/internal/metrics"
	"github.com/hitoshi/enrollman/internal/middleware"
	"github.com/hitoshi/enrollman/internal/repository"
	"github.com/hitoshi/enrollman/internal/security"
	"github.com/hitoshi/enrollman/internal/sheets"
)

// mirrorMaxResponseSize はスプレッドシートAPIレスポンスの読み取り上限。
const mirrorMaxResponseSize = 1 << 20 // 1MiB

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("storage_backend", cfg.StorageBackend),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// ストレージバックエンドを選択し、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. ストレージバックエンドの選択
	var (
		studentRepo repository.StudentRepository
		sessionRepo repository.SessionRepository
		healthCheck handler.HealthChecker
	)

	switch cfg.StorageBackend {
	case config.StoragePostgres:
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		if err := db.Ping(); err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		slog.Info("database connection established")

		studentRepo = repository.NewPostgresStudentRepo(db)
		sessionRepo = repository.NewPostgresSessionRepo(db)
		healthCheck = db.PingContext
	default:
		studentRepo = repository.NewMemoryStudentRepo()
		sessionRepo = repository.NewMemorySessionRepo()
		slog.Info("using in-memory storage", slog.String("note", "data is lost on restart"))
	}

	// 2. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. スプレッドシートミラーの構築（資格情報が揃っている場合のみ）
	var mirror enrollment.MirrorClient
	if cfg.MirrorConfigured() {
		ssrfGuard := security.NewSSRFGuard()

		// エンドポイントを差し替えている場合は起動時に検証する
		for _, u := range []string{cfg.SheetsBaseURL, cfg.SheetsTokenURL} {
			if u == "" {
				continue
			}
			if err := ssrfGuard.ValidateURL(u); err != nil {
				return fmt.Errorf("invalid mirror endpoint %q: %w", u, err)
			}
		}

		client, err := sheets.NewClient(
			ssrfGuard.NewSafeClient(cfg.MirrorTimeout, mirrorMaxResponseSize),
			slog.Default(),
			sheets.Config{
				ClientEmail:   cfg.GoogleClientEmail,
				PrivateKeyPEM: cfg.GooglePrivateKey,
				SpreadsheetID: cfg.SheetsSpreadsheetID,
				BaseURL:       cfg.SheetsBaseURL,
				TokenURL:      cfg.SheetsTokenURL,
			},
		)
		if err != nil {
			return fmt.Errorf("failed to initialize sheets mirror: %w", err)
		}
		mirror = client
		slog.Info("spreadsheet mirror enabled",
			slog.String("spreadsheet_id", cfg.SheetsSpreadsheetID),
		)
	} else {
		slog.Info("spreadsheet mirror disabled",
			slog.String("reason", "credentials not configured"),
		)
	}

	// 4. ドメインサービスの初期化
	authService := auth.NewService(sessionRepo, auth.ServiceConfig{
		AdminPassword: cfg.AdminPassword,
		SessionMaxAge: cfg.SessionMaxAge,
	})
	if cfg.AdminPasswordDefault {
		slog.Warn("ADMIN_PASSWORD is not set, using the default password",
			slog.String("action", "set ADMIN_PASSWORD before exposing this server"),
		)
	}

	enrollmentService := enrollment.NewService(
		studentRepo, mirror, security.NewInputSanitizer(), collector,
		enrollment.ServiceConfig{MirrorTimeout: cfg.MirrorTimeout},
	)

	// 5. ルーターの構築
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitLogin > 0 {
		// configのRateLimitLoginはreq/min単位なのでreq/secに変換する
		rateLimiterCfg.LoginRate = rate.Limit(float64(cfg.RateLimitLogin) / 60.0)
		rateLimiterCfg.LoginBurst = cfg.RateLimitLogin
	}
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)

	router := handler.NewRouter(&handler.RouterDeps{
		Authenticator:     authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),

		AuthService:       authService,
		EnrollmentService: enrollmentService,

		MetricsCollector: collector,
		MetricsGatherer:  registry,
		HealthCheck:      healthCheck,
	})

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// 転送中のミラーgoroutineを待ってから終了する
	enrollmentService.Wait()
	rateLimiter.Stop()

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.StorageBackend != config.StoragePostgres {
		return fmt.Errorf("migrate requires STORAGE_BACKEND=postgres")
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
