// Package v1 wires the HTTP surface: the generated model views, login,
// reports, health probes and the JSON API.
package v1

import (
	"github.com/gin-gonic/gin"

	"bread/internal/domain/auth"
	"bread/internal/domain/reports"
	"bread/internal/infrastructure/http/v1/handlers"
	"bread/internal/infrastructure/http/v1/middleware"
	"bread/internal/infrastructure/http/v1/pages"
	"bread/internal/infrastructure/http/v1/views"
	"bread/internal/infrastructure/storage/postgres"
	"bread/internal/metadata"
	"bread/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Mode is the gin mode; empty keeps the current one.
	Mode string

	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	// AuthService for the login form and token endpoint
	AuthService *auth.Service

	// Site holds the generated model views
	Site *views.Site

	// Registry describes the models for the metadata API
	Registry *metadata.Registry

	// Reports is optional; without it no report routes are added
	Reports *reports.Service

	Renderer            *pages.Renderer
	ItemsPerPageOptions []int

	// Pool is nil when records are kept in memory
	Pool    *postgres.Pool
	Version string
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	if cfg.Renderer.Nav == nil {
		cfg.Renderer.Nav = cfg.Site.Nav
	}

	router := gin.New()

	// Global middleware (order matters!): errors are rendered after the
	// recovered panic is registered, and the access log sees the final status.
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler(cfg.Renderer))
	router.Use(middleware.Recovery())
	router.Use(middleware.OptionalAuth(cfg.JWTValidator))

	base := handlers.NewBaseHandler(cfg.Renderer)

	healthHandler := handlers.NewHealthHandler(cfg.Pool, cfg.Version)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	authHandler := handlers.NewAuthHandler(base, cfg.AuthService)
	RegisterLoginRoutes(router, authHandler)

	router.GET(handlers.HomePath, middleware.RequirePermission(""), cfg.Site.Index)
	cfg.Site.Mount(router)

	if cfg.Reports != nil {
		reportsHandler := handlers.NewReportsHandler(base, cfg.Reports, cfg.ItemsPerPageOptions)
		RegisterReportRoutes(router.Group(handlers.ReportsPath, middleware.RequirePermission("")), reportsHandler)
	}

	api := router.Group("/api/v1")
	{
		api.POST("/auth/login", authHandler.APILogin)

		protected := api.Group("", middleware.Auth(cfg.JWTValidator))
		protected.GET("/auth/me", authHandler.Me)

		metaHandler := handlers.NewMetadataHandler(base, cfg.Registry)
		protected.GET("/meta", metaHandler.ListModels)
		protected.GET("/meta/:model", metaHandler.GetModel)
	}

	return router
}
