package http

import (
	"net/http"
	"time"

	"reelgate/internal/core/domain"
	"reelgate/internal/core/ports"
	"reelgate/internal/core/services"
	"reelgate/internal/infrastructure/middleware"
	"reelgate/internal/infrastructure/monitoring"
	"reelgate/pkg/config"
	"reelgate/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouterDeps is everything the HTTP API needs. Gatherer, Metrics and
// WebSocket may be nil.
type RouterDeps struct {
	Config    *config.Config
	Auth      services.AuthService
	Users     ports.UserService
	Videos    ports.VideoService
	Site      ports.SiteService
	WebSocket http.HandlerFunc
	Health    *monitoring.HealthChecker
	Gatherer  prometheus.Gatherer
	Metrics   middleware.HTTPMetrics
	Logger    *zap.SugaredLogger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	router := gin.New()

	router.Use(
		middleware.RecoveryMiddleware(deps.Logger),
		middleware.RequestIDMiddleware(),
		middleware.RequestLogMiddleware(logger.NewContextLogger(deps.Logger.Desugar()), deps.Metrics),
		middleware.TracingMiddleware(),
		cors.New(cors.Config{
			AllowOrigins:  cfg.Auth.AllowedOrigins,
			AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Accept-Language", "Authorization", middleware.RequestIDHeader},
			ExposeHeaders: []string{"Content-Length", "Content-Type", middleware.RequestIDHeader},
			MaxAge:        12 * time.Hour,
		}),
		middleware.NewHTTPRateLimitMiddleware(cfg),
		middleware.ErrorHandlerMiddleware(deps.Logger),
	)

	health := NewHealthHandler(deps.Health)
	router.GET("/health", health.Health)
	router.GET("/ready", health.Ready)
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}
	if deps.WebSocket != nil {
		router.GET("/ws", gin.WrapF(deps.WebSocket))
	}

	requireAuth := middleware.AuthMiddleware(deps.Auth)
	optionalAuth := middleware.OptionalAuthMiddleware(deps.Auth)

	authHandler := NewAuthHandler(deps.Users)
	profileHandler := NewProfileHandler(deps.Users)
	videoHandler := NewVideoHandler(deps.Videos, cfg.Storage.MaxUploadBytes)
	siteHandler := NewSiteHandler(deps.Site)
	adminHandler := NewAdminHandler(deps.Videos, deps.Users, deps.Site)

	api := router.Group("/api/v1")

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.RefreshToken)
	}

	me := api.Group("/me", requireAuth)
	{
		me.GET("", profileHandler.GetMe)
		me.PATCH("", profileHandler.UpdateMe)
	}

	videos := api.Group("/videos")
	{
		videos.GET("", optionalAuth, videoHandler.List)
		videos.POST("", requireAuth, videoHandler.Submit)
		videos.GET("/:id", optionalAuth, videoHandler.Get)
		videos.GET("/:id/content", optionalAuth, videoHandler.Content)
		videos.DELETE("/:id", requireAuth, videoHandler.Delete)
	}

	site := api.Group("/site", optionalAuth)
	{
		site.GET("/theme", siteHandler.GetTheme)
		site.GET("/pages", siteHandler.ListPages)
		site.GET("/pages/:slug", siteHandler.GetPage)
		site.GET("/pages/:slug/html", siteHandler.RenderPage)
	}

	// The password check is open to any signed-in user; it is how an
	// account becomes an admin.
	api.POST("/admin/verify-password",
		requireAuth,
		middleware.NewAdminVerifyRateLimitMiddleware(cfg),
		authHandler.VerifyAdminPassword,
	)

	admin := api.Group("/admin", requireAuth, middleware.RequireRole(domain.RoleAdmin))
	{
		admin.GET("/videos", adminHandler.ListVideos)
		admin.POST("/videos/:id/approve", adminHandler.Approve)
		admin.POST("/videos/:id/reject", adminHandler.Reject)
		admin.POST("/videos/:id/publish", adminHandler.Publish)
		admin.POST("/videos/:id/unpublish", adminHandler.Unpublish)

		admin.PUT("/theme", adminHandler.UpdateTheme)
		admin.POST("/theme/reset", adminHandler.ResetTheme)
		admin.PUT("/pages/:slug", adminHandler.SavePage)
		admin.DELETE("/pages/:slug", adminHandler.DeletePage)

		admin.GET("/users", adminHandler.ListUsers)
		admin.PUT("/users/:id/role", adminHandler.SetRole)
	}

	return router
}
