package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/vidnote/internal/metrics"
	"github.com/hitoshi/vidnote/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// データベース登録
	RegistryService RegistryServiceInterface

	// プロンプト生成
	PromptService PromptServiceInterface

	// ヘルスチェック
	HealthChecker HealthChecker

	// メトリクス
	Metrics  metrics.MetricsCollector
	Gatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Recovery → Logging → SessionMiddleware → RateLimit(General)
//
// 認証ルート（/auth/*）、/health、/metricsはセッション検証の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 全ルートに効くミドルウェア
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewRecoveryMiddleware())
	var statusHook func(int)
	if deps.Metrics != nil {
		statusHook = deps.Metrics.RecordHTTPStatus
	}
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, statusHook))

	authHandler := NewAuthHandler(deps.AuthService, deps.Metrics, deps.AuthConfig)
	dbHandler := NewDatabaseHandler(deps.RegistryService, deps.Metrics)
	promptHandler := NewPromptHandler(deps.PromptService, deps.Metrics)
	healthHandler := NewHealthHandler(deps.HealthChecker)

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler.Health)
	r.Handle("/metrics", metrics.Handler(deps.Gatherer))

	// 認証ルート（OAuthフロー）
	r.Route("/auth", func(r chi.Router) {
		r.Get("/notion/login", authHandler.Login)
		r.Get("/notion/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// データベース登録
		r.Route("/api/databases", func(r chi.Router) {
			// POST /api/databases/register - コンテンツDB登録（登録専用レート制限を追加）
			r.With(deps.RateLimiter.RegistrationMiddleware()).Post("/register", dbHandler.RegisterDatabase)

			r.Get("/", dbHandler.ListDatabases)
			r.Get("/available", dbHandler.ListAvailableDatabases)
		})

		// リンクDB登録
		r.With(deps.RateLimiter.RegistrationMiddleware()).
			Post("/api/link-database/register", dbHandler.RegisterLinkDatabase)

		// プロンプト生成・管理
		r.Route("/api/prompts", func(r chi.Router) {
			r.Post("/generate/{tag}", promptHandler.Generate)
			r.Post("/generate-and-save/{tag}", promptHandler.GenerateAndSave)
			r.Get("/{tag}", promptHandler.Get)
			r.Put("/{tag}", promptHandler.Update)
		})
	})

	return r
}
