package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/auth"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/availability"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/calendar"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/config"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/database"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/handler"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/logger"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/mail"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/meeting"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/metrics"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/middleware"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/provider"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/repository"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/security"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/team"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/user"
	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/worker/cleanup"
	syncpkg "github.com/terabyte-sourcer/async-calendar-Chile-project/internal/worker/sync"
)

// verificationTokenTTL はメール確認トークンの有効期間。
const verificationTokenTTL = 24 * time.Hour

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
	cmd, err := ParseCommand(args)
	if err != nil {
		return err
	}

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
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return fmt.Errorf("未対応のコマンド: %s", cmd)
	}
}

// newProviderRegistry は全カレンダープロバイダーを登録したレジストリを生成する。
// mailcowはユーザー指定エンドポイントに接続するため、SSRF防止機能付きの
// バリデータとトランスポートを渡す。
func newProviderRegistry(
	credentials provider.CredentialsSource,
	ssrfGuard security.SSRFGuardService,
	timeout time.Duration,
) *provider.Registry {
	registry := provider.NewRegistry()
	registry.Register(provider.NewGoogleProvider(credentials))
	registry.Register(provider.NewOutlookProvider())
	registry.Register(provider.NewAppleProvider())
	registry.Register(provider.NewMailcowProvider(ssrfGuard, ssrfGuard.NewSafeClient(timeout).Transport))
	return registry
}

// smtpPort はSMTPポート設定を数値に変換する。不正な値は587にフォールバックする。
func smtpPort(port string) int {
	n, err := strconv.Atoi(port)
	if err != nil || n <= 0 {
		return 587
	}
	return n
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	calendarRepo := repository.NewPostgresCalendarRepo(db)
	availabilityRepo := repository.NewPostgresAvailabilityRepo(db)
	teamRepo := repository.NewPostgresTeamRepo(db)
	meetingRepo := repository.NewPostgresMeetingRepo(db)
	routeTimeRepo := repository.NewPostgresRouteTimeRepo(db)
	oauthRepo := repository.NewPostgresOAuthSettingsRepo(db)

	// 3. セキュリティサービスとプロバイダーレジストリの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()
	credentials := calendar.NewCredentialsStore(oauthRepo, cfg.GoogleClientID, cfg.GoogleClientSecret)
	registry := newProviderRegistry(credentials, ssrfGuard, cfg.SyncTimeout)

	idGen := func() string { return uuid.New().String() }

	// 4. ドメインサービスの初期化
	mailer := mail.NewSMTPMailer(cfg.SMTPHost, smtpPort(cfg.SMTPPort), cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPTLS, cfg.MailFrom)
	tokens := auth.NewTokenIssuer(cfg.SecretKey, verificationTokenTTL)
	authService := auth.NewService(userRepo, sessionRepo, mailer, tokens, auth.ServiceConfig{
		SessionMaxAge: cfg.SessionMaxAge,
		BaseURL:       cfg.BaseURL,
	})

	userService := user.NewService(userRepo, sessionRepo)
	calendarService := calendar.NewService(calendarRepo, oauthRepo, registry, idGen)
	busySource := calendar.NewBusySource(registry)
	availabilityService := availability.NewService(
		availabilityRepo, teamRepo, meetingRepo, routeTimeRepo, calendarRepo, busySource, idGen,
	)
	teamService := team.NewService(teamRepo, userRepo, sanitizer, idGen)
	meetingService := meeting.NewService(
		meetingRepo, routeTimeRepo, calendarRepo, teamRepo, userRepo, registry, sanitizer, idGen,
	)

	// 5. レートリミッターの構築（req/min -> req/sec に変換）
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitSync > 0 {
		rateLimiterCfg.SyncRate = rate.Limit(float64(cfg.RateLimitSync) / 60.0)
		rateLimiterCfg.SyncBurst = cfg.RateLimitSync
	}

	// 6. メトリクスとルーターの構築
	promRegistry := prometheus.NewRegistry()
	collector := metrics.NewCollector(promRegistry)

	deps := &handler.RouterDeps{
		HealthChecker:     db,
		SessionFinder:     sessionRepo,
		UserFinder:        userRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       middleware.NewRateLimiter(rateLimiterCfg),
		Logger:            slog.Default(),
		OnHTTPStatus:      collector.RecordHTTPStatus,
		MetricsHandler:    metrics.Handler(promRegistry),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		UserService: userService,

		CalendarService: calendarService,
		CalendarConfig: handler.CalendarHandlerConfig{
			FrontendURL:  cfg.CORSAllowedOrigin,
			APIBaseURL:   cfg.BaseURL,
			CookieSecure: cfg.CookieSecure,
		},

		AvailabilityService: availabilityService,
		TeamService:         teamService,
		MeetingService:      meetingService,
	}

	router := handler.NewRouter(deps)

	// 7. HTTPサーバーの起動
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

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、同期スケジューラとセッションクリーンアップジョブを起動する。
// Prometheusスクレイプ用の/metricsエンドポイントも提供する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. リポジトリの初期化
	calendarRepo := repository.NewPostgresCalendarRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	oauthRepo := repository.NewPostgresOAuthSettingsRepo(db)

	// 3. プロバイダーレジストリの初期化
	ssrfGuard := security.NewSSRFGuard()
	credentials := calendar.NewCredentialsStore(oauthRepo, cfg.GoogleClientID, cfg.GoogleClientSecret)
	registry := newProviderRegistry(credentials, ssrfGuard, cfg.SyncTimeout)

	// 4. メトリクスの初期化
	promRegistry := prometheus.NewRegistry()
	collector := metrics.NewCollector(promRegistry)

	// 5. シンカーとスケジューラの初期化
	syncer := syncpkg.NewSyncer(
		calendarRepo, registry, collector, slog.Default(),
		cfg.SyncTimeout, cfg.SyncLookaheadDays, int(cfg.SyncInterval.Minutes()),
	)
	scheduler := syncpkg.NewScheduler(
		calendarRepo, syncer, slog.Default(), cfg.SyncMaxConcurrent,
	)

	// 6. セッションクリーンアップジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(sessionRepo, slog.Default())

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("sync_interval", cfg.SyncInterval),
		slog.Int("max_concurrent", cfg.SyncMaxConcurrent),
		slog.Int("lookahead_days", cfg.SyncLookaheadDays),
	)

	// Prometheusスクレイプ用のメトリクスサーバーをバックグラウンドで起動
	metricsServer := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: metrics.SetupMetricsRoute(promRegistry),
	}
	go func() {
		slog.Info("metrics server starting", slog.String("addr", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()

	// セッションクリーンアップジョブを1時間間隔でバックグラウンド実行
	go cleanupJob.Start(ctx, time.Hour)

	// 同期スケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.SyncInterval)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("metrics server shutdown failed", slog.String("error", err.Error()))
	}

	slog.Info("worker stopped gracefully")
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
