package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/springboard/internal/middleware"
)

// MetricsRecorder はルーターが必要とするメトリクス記録のインターフェース。
// metrics.Collectorが実装する。
type MetricsRecorder interface {
	SnippetMetrics
	Middleware() func(http.Handler) http.Handler
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	HealthChecker     HealthChecker
	SessionFinder     middleware.SessionFinder
	StateLoader       middleware.StateLoader
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	Logger            *slog.Logger

	// メトリクス（nilの場合は記録しない）
	Metrics        MetricsRecorder
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// カレンダー
	CalendarService CalendarServiceInterface
	Navigator       Navigator
	Exporter        CalendarExporter

	// スニペット
	Editor   SnippetEditorInterface
	Renderer MarkdownRenderer

	// アバター
	AvatarFinder AvatarFinder
}

// NewRouter は画面、認証、APIのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Metrics → CORS → Session → Logging
//
// 画面ルートは未ログインまたは利用権限がない場合に/loginへリダイレクトし、
// APIルートは401/403を返す。状態を変更するリクエストはCSRFトークンを検証する。
func NewRouter(deps *RouterDeps) (http.Handler, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var metrics SnippetMetrics
	if deps.Metrics != nil {
		metrics = deps.Metrics
	}

	pageHandler, err := NewPageHandler(deps.CalendarService, deps.Navigator, deps.Editor, deps.Renderer, metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page templates: %w", err)
	}
	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	calendarHandler := NewCalendarHandler(deps.CalendarService, deps.Navigator, deps.Exporter)
	snippetHandler := NewSnippetHandler(deps.Editor, deps.Navigator, deps.Renderer, metrics)
	avatarHandler := NewAvatarHandler(deps.AvatarFinder)
	csrf := middleware.NewCSRFMiddleware(deps.CSRFConfig)

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware())
	}
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSessionMiddleware(deps.SessionFinder, deps.StateLoader))
	r.Use(middleware.NewLoggingMiddleware(logger))

	// --- 認証不要のルート ---
	r.Method(http.MethodGet, "/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// 認証ルート（OAuthフロー）
	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)
		r.With(csrf).Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// --- 画面 ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewBodyLimitMiddleware(maxPageFormBytes))
		r.Use(csrf)
		r.Get("/login", pageHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequirePageAuth("/login"))
			r.Use(deps.RateLimiter.GeneralMiddleware())

			r.Get("/", pageHandler.Calendar)
			r.Get("/snippet/{date}", pageHandler.Snippet)
			r.With(deps.RateLimiter.WriteMiddleware()).Post("/snippet/{date}", pageHandler.SnippetAction)
		})
	})

	// --- API ---
	r.Route("/api", func(r chi.Router) {
		r.Use(csrf)
		r.Method(http.MethodGet, "/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

		// ミドルウェアスタック: RequireAPIAuth → RateLimit(General)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAPIAuth())
			r.Use(deps.RateLimiter.GeneralMiddleware())

			r.Get("/calendar", calendarHandler.GetMonth)
			r.Get("/calendar.ics", calendarHandler.ExportICS)
			r.Get("/calendar/days/{date}", calendarHandler.ClickDay)

			r.Route("/snippets/{date}", func(r chi.Router) {
				r.Get("/", snippetHandler.GetSnippet)
				r.With(deps.RateLimiter.WriteMiddleware()).Put("/", snippetHandler.SaveSnippet)
				r.With(deps.RateLimiter.WriteMiddleware()).Delete("/", snippetHandler.DeleteSnippet)
				r.Get("/suggestion", snippetHandler.GetSuggestion)
			})

			r.Post("/preview", snippetHandler.Preview)
			r.Get("/users/{id}/avatar", avatarHandler.GetAvatar)
		})
	})

	return r, nil
}
