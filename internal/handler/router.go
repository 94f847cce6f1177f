package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/terabyte-sourcer/async-calendar-Chile-project/internal/middleware"
)

// HealthChecker はDB死活監視のインターフェース。*sql.DBが実装する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ヘルスチェック
	HealthChecker HealthChecker

	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	UserFinder        middleware.UserFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// アクセスログ出力用ロガー。nilの場合はslog.Default()を使用する。
	Logger *slog.Logger

	// レスポンスのステータスコードを通知するコールバック（メトリクス用、省略可）
	OnHTTPStatus func(statusCode int)

	// メトリクスエンドポイント。非nilの場合 GET /metrics に公開する。
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ユーザー
	UserService UserServiceInterface

	// カレンダー接続
	CalendarService CalendarServiceInterface
	CalendarConfig  CalendarHandlerConfig

	// 空き時間
	AvailabilityService AvailabilityServiceInterface

	// チーム
	TeamService TeamServiceInterface

	// ミーティング
	MeetingService MeetingServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → SessionMiddleware → CSRFMiddleware → RateLimitMiddleware(GeneralMiddleware)
//
// 認証ルート（/api/auth/*）はセッションミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// panic回復を最上位に適用（後続ミドルウェアのpanicも捕捉する）
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(logger, deps.OnHTTPStatus))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	userHandler := NewUserHandler(deps.UserService)
	calendarHandler := NewCalendarHandler(deps.CalendarService, deps.CalendarConfig)
	availabilityHandler := NewAvailabilityHandler(deps.AvailabilityService)
	teamHandler := NewTeamHandler(deps.TeamService)
	meetingHandler := NewMeetingHandler(deps.MeetingService)

	// --- 認証不要のルート ---

	// ヘルスチェック（Dockerヘルスチェックおよび監視用）
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if deps.HealthChecker != nil {
			if err := deps.HealthChecker.PingContext(req.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Prometheusメトリクス（監視ネットワークからのみ到達可能な前提）
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	csrfConfig := middleware.CSRFConfig{
		CookieSecure: deps.AuthConfig.CookieSecure,
		CookieDomain: deps.AuthConfig.CookieDomain,
	}

	// CSRFトークン取得（フロントエンドが最初に呼び出す）
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(csrfConfig))

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
		r.Get("/verify", authHandler.Verify)
		r.Post("/resend-verification", authHandler.ResendVerification)
		r.Post("/reset-password", authHandler.ResetPassword)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → CSRF → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder, deps.UserFinder))
		r.Use(middleware.NewCSRFMiddleware(csrfConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// ユーザー管理
		r.Route("/api/users/me", func(r chi.Router) {
			r.Get("/", userHandler.Me)
			r.Patch("/", userHandler.UpdateMe)
			r.Delete("/", userHandler.Withdraw)
		})

		// カレンダー接続管理
		r.Route("/api/calendars", func(r chi.Router) {
			r.Get("/", calendarHandler.List)
			r.Post("/caldav", calendarHandler.ConnectCalDAV)

			r.Route("/oauth/{provider}", func(r chi.Router) {
				r.Get("/login", calendarHandler.OAuthLogin)
				r.Get("/callback", calendarHandler.OAuthCallback)
			})

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", calendarHandler.Get)
				r.Delete("/", calendarHandler.Delete)
				r.Put("/primary", calendarHandler.SetPrimary)

				// POST /api/calendars/{id}/sync - 手動同期（同期専用レート制限を追加）
				r.With(deps.RateLimiter.SyncTriggerMiddleware()).Post("/sync", calendarHandler.TriggerSync)
			})
		})

		// 空き時間ルール管理
		r.Route("/api/availabilities", func(r chi.Router) {
			r.Get("/", availabilityHandler.ListRules)
			r.Post("/", availabilityHandler.CreateRule)
			r.Get("/free", availabilityHandler.UserFree)

			r.Route("/{id}", func(r chi.Router) {
				r.Put("/", availabilityHandler.UpdateRule)
				r.Delete("/", availabilityHandler.DeleteRule)
			})
		})

		// チーム管理
		r.Route("/api/teams", func(r chi.Router) {
			r.Get("/", teamHandler.List)
			r.Post("/", teamHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", teamHandler.Get)
				r.Patch("/", teamHandler.Update)
				r.Delete("/", teamHandler.Delete)

				// GET /api/teams/{id}/availability - チーム空き時間の集約
				r.Get("/availability", availabilityHandler.TeamAvailability)

				r.Post("/members", teamHandler.AddMember)
				r.Delete("/members/{userID}", teamHandler.RemoveMember)
			})
		})

		// ミーティング管理
		r.Route("/api/meetings", func(r chi.Router) {
			r.Get("/", meetingHandler.List)
			r.Post("/", meetingHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", meetingHandler.Get)
				r.Patch("/", meetingHandler.Update)
				r.Delete("/", meetingHandler.Delete)
			})
		})

		// 管理者向けルート
		r.Route("/api/admin", func(r chi.Router) {
			r.Route("/users", func(r chi.Router) {
				r.Get("/", userHandler.AdminList)
				r.Get("/stats", userHandler.AdminStats)
				r.Post("/", userHandler.AdminCreate)
				r.Patch("/{id}", userHandler.AdminUpdate)
				r.Delete("/{id}", userHandler.AdminDelete)
			})

			r.Route("/oauth-settings", func(r chi.Router) {
				r.Get("/", calendarHandler.ListOAuthSettings)
				r.Put("/{provider}", calendarHandler.UpsertOAuthSettings)
				r.Delete("/{provider}", calendarHandler.DeleteOAuthSettings)
			})
		})
	})

	return r
}
