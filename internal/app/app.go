// Package app wires storage, domain services and the HTTP router from
// configuration. The server, the worker and ledgerctl all start here.
package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	"stockledger/internal/config"
	"stockledger/internal/core/security"
	"stockledger/internal/domain/audit"
	"stockledger/internal/domain/auth"
	"stockledger/internal/domain/catalogs/item"
	"stockledger/internal/domain/catalogs/partner"
	"stockledger/internal/domain/catalogs/unit"
	"stockledger/internal/domain/catalogs/warehouse"
	"stockledger/internal/domain/outbox"
	"stockledger/internal/domain/registers/stock"
	v1 "stockledger/internal/infrastructure/http/v1"
	"stockledger/internal/infrastructure/http/v1/handlers"
	"stockledger/internal/infrastructure/metrics"
	"stockledger/pkg/logger"
)

// App is the assembled service.
type App struct {
	Config  config.Config
	Storage *Storage
	Metrics *metrics.Registry
	Policy  stock.Policy

	// JWT is nil when auth.enabled is false.
	JWT        *auth.JWTService
	Visibility *security.VisibilityRules

	Items      *item.Service
	Warehouses *warehouse.Service
	Units      *unit.Service
	Partners   *partner.Service

	Projector *stock.Projector
	Ledger    *stock.Ledger
	Query     *stock.QueryFacade
	Stock     *stock.Service
}

// New opens storage and builds every service.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	codec, err := audit.NewCodec(audit.DefaultCompressThreshold)
	if err != nil {
		return nil, err
	}

	visibility, err := security.NewVisibilityRules(cfg.Visibility)
	if err != nil {
		return nil, fmt.Errorf("visibility rules: %w", err)
	}

	storage, err := OpenStorage(ctx, cfg, codec)
	if err != nil {
		return nil, err
	}

	reg := metrics.New()
	if storage.Pool != nil {
		if err := reg.Register(metrics.NewPoolCollector(storage.Pool)); err != nil {
			storage.Close()
			return nil, fmt.Errorf("register pool collector: %w", err)
		}
	}

	a := &App{
		Config:     cfg,
		Storage:    storage,
		Metrics:    reg,
		Policy:     policyFrom(cfg),
		Visibility: visibility,
	}
	if cfg.Auth.Enabled {
		jwtCfg := auth.DefaultJWTConfig(cfg.Auth.JWTSecret)
		if cfg.Auth.Issuer != "" {
			jwtCfg.Issuer = cfg.Auth.Issuer
		}
		if cfg.Auth.TokenTTL > 0 {
			jwtCfg.AccessTokenTTL = cfg.Auth.TokenTTL
		}
		a.JWT = auth.NewJWTService(jwtCfg)
	}

	a.wireCatalogs()
	a.wireLedger()

	logger.Info(ctx, "application assembled",
		"driver", storage.Driver,
		"auth", cfg.Auth.Enabled,
		"visibility_roles", visibility.Roles(),
	)
	return a, nil
}

func policyFrom(cfg config.Config) stock.Policy {
	p := stock.DefaultPolicy()
	p.AllowAdjustOnInactiveItem = cfg.Ledger.AllowAdjustInactiveItem
	if cfg.Ledger.LowStockThreshold > 0 {
		p.LowStockThreshold = cfg.Ledger.LowStockThreshold
	}
	if cfg.Ledger.DefaultPageSize > 0 {
		p.DefaultPageSize = cfg.Ledger.DefaultPageSize
	}
	if cfg.Ledger.MaxPageSize > 0 {
		p.MaxPageSize = cfg.Ledger.MaxPageSize
	}
	return p
}

func (a *App) wireCatalogs() {
	s := a.Storage
	a.Warehouses = warehouse.NewService(s.Warehouses, s.TxManager)
	a.Units = unit.NewService(s.Units, s.TxManager)
	a.Partners = partner.NewService(s.Partners, s.TxManager)
	a.Items = item.NewService(s.Items, s.TxManager, a.Units, a.Warehouses)

	item.ProtectReferences(s.Items, a.Units.Hooks(), a.Warehouses.Hooks())
	stock.ProtectReferences(s.Moves, a.Items.Hooks(), a.Warehouses.Hooks(), a.Partners.Hooks())

	// Audit hooks go last so vetoed changes are never recorded.
	audit.TrackCatalog(a.Items.Hooks(), s.Audit, "item")
	audit.TrackCatalog(a.Warehouses.Hooks(), s.Audit, "warehouse")
	audit.TrackCatalog(a.Units.Hooks(), s.Audit, "unit")
	audit.TrackCatalog(a.Partners.Hooks(), s.Audit, "partner")
}

func (a *App) wireLedger() {
	s := a.Storage
	a.Projector = stock.NewProjector(s.Moves, s.Balances, s.TxManager, a.Metrics)
	a.Ledger = stock.NewLedger(s.Moves, a.Projector, s.TxManager)
	a.Query = stock.NewQueryFacade(a.Ledger, a.Projector, s.Balances, a.Policy)
	a.Stock = stock.NewService(stock.ServiceConfig{
		Validator: stock.NewValidator(a.Items, a.Warehouses, a.Partners, a.Projector, a.Policy),
		Ledger:    a.Ledger,
		Projector: a.Projector,
		TxManager: s.TxManager,
		Events:    s.Events,
		Audit:     s.Audit,
		Metrics:   a.Metrics,
	})
}

// EventRouter dispatches outbox events to their consumers.
func (a *App) EventRouter(sink stock.AlertSink) *outbox.Router {
	return outbox.NewRouter().
		On(stock.EventMoveCommitted, stock.NewLowStockHandler(a.Policy.LowStockThreshold, sink, a.Metrics))
}

// Router builds the HTTP handler.
func (a *App) Router(log *logger.Logger) *gin.Engine {
	cfg := v1.RouterConfig{
		Logger:      log,
		Visibility:  a.Visibility,
		Idempotency: a.Storage.Idempotency,
		Health: handlers.NewHealthHandler(a.Storage, a.Storage.Pool, handlers.AppInfo{
			Name:    a.Config.App.Name,
			Version: a.Config.App.Version,
			Env:     a.Config.App.Env,
			Driver:  a.Storage.Driver,
		}),
		Items:      a.Items,
		Warehouses: a.Warehouses,
		Units:      a.Units,
		Partners:   a.Partners,
		Stock:      a.Stock,
		StockQuery: a.Query,
		Debug:      a.Config.IsDevelopment(),
	}
	if a.JWT != nil {
		cfg.JWTValidator = a.JWT
	}
	if a.Config.Metrics.Enabled {
		cfg.Metrics = a.Metrics
		cfg.MetricsHandler = a.Metrics.Handler()
		cfg.MetricsPath = a.Config.Metrics.Path
	}
	return v1.NewRouter(cfg)
}

// Close releases storage.
func (a *App) Close() {
	a.Storage.Close()
}
