// Package v1 provides HTTP API version 1.
package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	appctx "stockledger/internal/core/context"
	"stockledger/internal/domain/auth"
	"stockledger/internal/domain/catalogs/item"
	"stockledger/internal/domain/catalogs/partner"
	"stockledger/internal/domain/catalogs/unit"
	"stockledger/internal/domain/catalogs/warehouse"
	"stockledger/internal/domain/idempotency"
	"stockledger/internal/domain/registers/stock"
	"stockledger/internal/infrastructure/http/v1/handlers"
	"stockledger/internal/infrastructure/http/v1/middleware"
	"stockledger/pkg/logger"
)

// DevUser is the identity used when authentication is disabled.
var DevUser = appctx.UserContext{
	UserID:  "dev",
	Roles:   []string{auth.RoleAdmin},
	IsAdmin: true,
}

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation. Nil disables authentication and
	// every request runs as DevUser.
	JWTValidator middleware.JWTValidator

	// Visibility resolves the caller's warehouse scope.
	Visibility middleware.ScopeResolver

	// Idempotency enables X-Idempotency-Key handling when set.
	Idempotency idempotency.Store

	// Metrics records request counts and latencies; MetricsHandler serves them.
	Metrics        middleware.HTTPObserver
	MetricsHandler http.Handler
	MetricsPath    string

	Health *handlers.HealthHandler

	Items      *item.Service
	Warehouses *warehouse.Service
	Units      *unit.Service
	Partners   *partner.Service

	Stock      *stock.Service
	StockQuery *stock.QueryFacade

	// Debug switches gin to debug mode.
	Debug bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true

	// Global middleware (order matters!). ErrorHandler wraps Recovery so a
	// recovered panic is still rendered.
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	if cfg.Metrics != nil {
		router.Use(middleware.Metrics(cfg.Metrics))
	}
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Recovery())

	router.NoRoute(func(c *gin.Context) {
		_ = c.Error(apperror.NewNotFound("route", c.Request.URL.Path))
	})

	// Health endpoints (no auth)
	if cfg.Health != nil {
		health := router.Group("/health")
		{
			health.GET("/live", cfg.Health.Live)
			health.GET("/ready", cfg.Health.Ready)
			health.GET("/info", cfg.Health.Info)
		}
	}

	if cfg.MetricsHandler != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.GET(path, gin.WrapH(cfg.MetricsHandler))
	}

	// API v1
	v1 := router.Group("/api/v1")
	{
		protected := v1.Group("")
		if cfg.JWTValidator != nil {
			protected.Use(middleware.Auth(cfg.JWTValidator))
		} else {
			protected.Use(middleware.StaticUser(DevUser))
		}
		protected.Use(middleware.Scope(cfg.Visibility, cfg.Warehouses))

		if cfg.Idempotency != nil {
			protected.Use(middleware.Idempotency(cfg.Idempotency))
		}

		registerCatalogRoutes(protected, cfg)
		registerStockRoutes(protected, cfg)
	}

	return router
}

// registerCatalogRoutes registers the reference catalog endpoints.
func registerCatalogRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	catalogs := rg.Group("/catalog")
	baseHandler := handlers.NewBaseHandler()

	RegisterCatalogRoutes(catalogs.Group("/items"), handlers.NewItemHandler(baseHandler, cfg.Items))
	RegisterCatalogRoutes(catalogs.Group("/warehouses"), handlers.NewWarehouseHandler(baseHandler, cfg.Warehouses))
	RegisterCatalogRoutes(catalogs.Group("/units"), handlers.NewUnitHandler(baseHandler, cfg.Units))
	RegisterCatalogRoutes(catalogs.Group("/partners"), handlers.NewPartnerHandler(baseHandler, cfg.Partners))
}

// registerStockRoutes registers the ledger endpoints.
func registerStockRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	stockGroup := rg.Group("/stock")
	h := handlers.NewStockHandler(handlers.NewBaseHandler(), cfg.Stock, cfg.StockQuery)

	moves := stockGroup.Group("/moves")
	{
		moves.POST("", h.CreateMove)
		moves.GET("", h.ListMoves)
		moves.GET("/:id", h.GetMove)
		moves.POST("/:id/reverse", h.ReverseMove)

		// The ledger is append-only.
		moves.PUT("/:id", h.RejectMutation)
		moves.PATCH("/:id", h.RejectMutation)
		moves.DELETE("/:id", h.RejectMutation)
	}

	stockGroup.GET("/balance", h.GetBalance)

	balances := stockGroup.Group("/balances")
	{
		balances.GET("", h.ListBalances)
		balances.GET("/low", h.ListLowStock)
		balances.POST("/rebuild", middleware.RequireRole(auth.RoleAdmin), h.RebuildBalances)
	}
}
