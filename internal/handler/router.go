package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/umeats/umeats/internal/metrics"
	"github.com/umeats/umeats/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ドメインサービス
	ListingService ListingServiceInterface
	ClaimService   ClaimServiceInterface
	StatsService   StatsServiceInterface
	UserService    UserServiceInterface

	// 運用エンドポイント
	HealthChecker   HealthChecker
	MetricsGatherer prometheus.Gatherer
	HTTPMetrics     middleware.HTTPStatusRecorder
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RecoveryMiddleware → LoggingMiddleware → CORSMiddleware → SessionMiddleware → RateLimitMiddleware(GeneralMiddleware)
//
// 認証ルート（/auth/*）と運用エンドポイント（/health, /metrics）は
// 認証ミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Recovery / Logging / CORS は全ルートに効く
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(slog.Default()))
	if deps.HTTPMetrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.HTTPMetrics))
	}
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	listingHandler := NewListingHandler(deps.ListingService)
	claimHandler := NewClaimHandler(deps.ClaimService)
	statsHandler := NewStatsHandler(deps.StatsService)
	userHandler := NewUserHandler(deps.UserService)

	// --- 認証不要のルート ---

	// 認証ルート（OAuthフロー）
	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// 運用エンドポイント
	if deps.HealthChecker != nil {
		r.Get("/health", NewHealthHandler(deps.HealthChecker).Health)
	}
	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// リスティング管理
		r.Route("/api/listings", func(r chi.Router) {
			r.Post("/", listingHandler.CreateListing)
			r.Get("/", listingHandler.ListListings)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", listingHandler.GetListing)
				r.Patch("/", listingHandler.UpdateListing)
				r.Delete("/", listingHandler.CancelListing)

				// POST /api/listings/{id}/claims - クレーム作成（専用レート制限を追加）
				r.With(deps.RateLimiter.ClaimCreationMiddleware()).Post("/claims", claimHandler.CreateClaim)
			})
		})

		// クレーム管理
		r.Route("/api/claims", func(r chi.Router) {
			r.Get("/", claimHandler.ListMyClaims)

			r.Route("/{id}", func(r chi.Router) {
				r.Post("/collect", claimHandler.CollectClaim)
				r.Post("/cancel", claimHandler.CancelClaim)
			})
		})

		// 統計
		r.Route("/api/stats", func(r chi.Router) {
			r.Get("/platform", statsHandler.PlatformStats)
			r.Get("/organizations", statsHandler.OrganizationRankings)
		})

		// ユーザー管理
		r.Route("/api/users", func(r chi.Router) {
			r.Delete("/me", userHandler.Withdraw)
			r.Patch("/{id}/role", userHandler.UpdateRole)
		})
	})

	return r
}
