package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/springboard/internal/auth"
	"github.com/hitoshi/springboard/internal/authz"
	"github.com/hitoshi/springboard/internal/avatar"
	"github.com/hitoshi/springboard/internal/calendar"
	"github.com/hitoshi/springboard/internal/config"
	"github.com/hitoshi/springboard/internal/database"
	"github.com/hitoshi/springboard/internal/editor"
	"github.com/hitoshi/springboard/internal/export"
	"github.com/hitoshi/springboard/internal/handler"
	"github.com/hitoshi/springboard/internal/logger"
	"github.com/hitoshi/springboard/internal/markdown"
	"github.com/hitoshi/springboard/internal/metrics"
	"github.com/hitoshi/springboard/internal/middleware"
	"github.com/hitoshi/springboard/internal/repository"
	"github.com/hitoshi/springboard/internal/security"
	"github.com/hitoshi/springboard/internal/session"
	"github.com/hitoshi/springboard/internal/snippet"
	"github.com/hitoshi/springboard/internal/team"
	"github.com/hitoshi/springboard/internal/worker/cleanup"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// Init はアプリケーションの初期化を行う。
// .envファイルと環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. .envがあれば環境変数に読み込む（既存の環境変数は上書きしない）
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, err
	}

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 4. 設定されたログレベルで作り直す
	slog.SetDefault(logger.New(w, logger.ParseLevel(cfg.LogLevel)))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd, err := ParseCommand(args)
	if err != nil {
		return err
	}

	// help と healthcheck は設定を必要としないため、初期化をスキップする
	if cmd == CommandHelp {
		WriteUsage(w)
		return nil
	}
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

	// 以降のログはすべてどのサブコマンドのプロセスかを持つ
	slog.SetDefault(slog.Default().With(slog.String("cmd", string(cmd))))
	slog.Info("starting application",
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandSeedTeams:
		return runSeedTeams(cfg)
	default:
		return runServe(cfg)
	}
}

// openDB はDB接続を開き、疎通を確認する。
func openDB(cfg *config.Config) (*sql.DB, error) {
	return database.Connect(context.Background(), cfg.DatabaseURL, 10*time.Second)
}

// newSessionStore はセッション状態の保存先を返す。
// REDIS_URLが設定されていればRedis、なければsessionsテーブルに保存する。
func newSessionStore(cfg *config.Config, sessionRepo session.DataStore) (session.Store, func(), error) {
	if cfg.RedisURL == "" {
		return session.NewPostgresStore(sessionRepo), func() {}, nil
	}
	client, err := session.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create redis client: %w", err)
	}
	ttl := time.Duration(cfg.SessionMaxAge) * time.Second
	return session.NewRedisStore(client, ttl), func() { client.Close() }, nil
}

// rateLimiterConfig は設定値（req/min）からレートリミッター設定（req/sec）を組み立てる。
func rateLimiterConfig(cfg *config.Config) middleware.RateLimiterConfig {
	rl := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rl.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rl.GeneralBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitWrite > 0 {
		rl.WriteRate = rate.Limit(float64(cfg.RateLimitWrite) / 60.0)
	}
	return rl
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	identRepo := repository.NewPostgresIdentityRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	snippetRepo := repository.NewPostgresSnippetRepo(db)
	teamRepo := repository.NewPostgresTeamRepo(db)
	memberRepo := repository.NewPostgresMemberRepo(db)

	// 3. メトリクス
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. セッション状態の管理
	store, closeStore, err := newSessionStore(cfg, sessionRepo)
	if err != nil {
		return err
	}
	defer closeStore()

	policy, err := authz.NewPolicy(cfg.AuthPolicy, memberRepo)
	if err != nil {
		return fmt.Errorf("failed to build auth policy: %w", err)
	}
	manager := session.NewManager(session.ManagerDeps{
		Stream:   session.NewStream(),
		Store:    store,
		Users:    userRepo,
		Checker:  authz.NewChecker(policy, slog.Default()),
		Teams:    team.NewResolver(teamRepo, slog.Default()),
		Observer: collector,
		Logger:   slog.Default(),
	})
	profiles := session.NewProfileCache(userRepo, cfg.ProfileCacheTTL)
	profiles.SetSaver(manager)

	// 5. ドメインサービスの初期化
	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		HostedDomain: cfg.GoogleHostedDomain,
	})
	authService := auth.NewService(
		oauthProvider, userRepo, identRepo, sessionRepo, manager,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)

	snippetService := snippet.NewService(snippetRepo, slog.Default())
	navigator := calendar.NewNavigator(cfg.EditTimezone)
	calendarService := calendar.NewService(snippetService, profiles, navigator, slog.Default())
	window := editor.NewWindow(cfg.EditTimezone, cfg.EditCutoffHour)
	editorService := editor.NewService(snippetService, profiles, window, slog.Default())
	renderer := markdown.NewRenderer(security.NewContentSanitizer())

	// 6. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(rateLimiterConfig(cfg))
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		HealthChecker:     db,
		SessionFinder:     sessionRepo,
		StateLoader:       manager,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		Logger: slog.Default(),

		Metrics:        collector,
		MetricsHandler: metrics.Handler(registry),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
			StateSecret:   cfg.SessionSecret,
		},

		CalendarService: calendarService,
		Navigator:       navigator,
		Exporter:        export.NewExporter(snippetService),

		Editor:   editorService,
		Renderer: renderer,

		AvatarFinder: userRepo,
	}

	router, err := handler.NewRouter(deps)
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}

	// 7. セッションイベントの購読を開始
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go manager.Run(ctx)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return serveUntilSignal(server, "API server")
}

// runWorker はワーカーモードで起動する。
// 期限切れセッションの削除とプロフィール画像の再取得をバックグラウンドで実行し、
// /metricsと/healthを提供するHTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	// 2. リポジトリとメトリクスの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. クリーンアップジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(db, slog.Default())
	cleanupJob.RetentionDays = cfg.SessionRetentionDays
	cleanupJob.SetObserver(collector)

	// 4. プロフィール画像の再取得ジョブの初期化
	fetcher := avatar.NewFetcher(security.NewSSRFGuard(), slog.Default())
	refreshJob := avatar.NewRefreshJob(userRepo, fetcher, slog.Default(), avatar.RefreshConfig{
		Interval:      cfg.AvatarRefreshInterval,
		FetchInterval: cfg.AvatarAPIInterval,
		MaxPerCycle:   cfg.AvatarMaxPerCycle,
		TTL:           cfg.AvatarTTL,
	})
	refreshJob.SetObserver(collector)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.SessionCleanupInterval),
		slog.Duration("avatar_refresh_interval", cfg.AvatarRefreshInterval),
	)

	go cleanupJob.Start(ctx, cfg.SessionCleanupInterval)
	go refreshJob.Start(ctx)

	// 5. メトリクスとヘルスチェック用のHTTPサーバー
	mux := metrics.SetupMetricsRoute(registry)
	mux.Handle("/health", handler.NewHealthHandler(db))
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	if err := serveUntilSignal(server, "worker"); err != nil {
		return err
	}
	cancel()
	return nil
}

// serveUntilSignal はHTTPサーバーを起動し、SIGINTまたはSIGTERMを受信するとシャットダウンする。
func serveUntilSignal(server *http.Server, name string) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		slog.Info(name+" starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("%s listen failed: %w", name, err)
	case <-stop:
	}
	slog.Info("shutting down " + name + "...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("%s shutdown failed: %w", name, err)
	}

	slog.Info(name + " stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// runSeedTeams はTEAMS_FILEのチーム定義をデータベースに投入する。
// 既存のチームと利用許可メンバーは定義ファイルの内容で置き換える。
func runSeedTeams(cfg *config.Config) error {
	f, err := team.LoadSeedFile(cfg.TeamsFile)
	if err != nil {
		return fmt.Errorf("failed to load teams file: %w", err)
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	seeder := team.NewSeeder(
		repository.NewPostgresTeamRepo(db),
		repository.NewPostgresMemberRepo(db),
		slog.Default(),
	)
	if err := seeder.Seed(context.Background(), f); err != nil {
		return fmt.Errorf("failed to seed teams: %w", err)
	}

	slog.Info("teams seeded", slog.String("file", cfg.TeamsFile))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(fmt.Sprintf("http://localhost:%s/health", port))
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はログ出力用にパスワードを伏せたURLを返す。
// 解釈できないURLは全体を伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
