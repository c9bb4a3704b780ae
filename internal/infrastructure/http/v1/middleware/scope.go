package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/security"
	"stockledger/pkg/logger"
)

// WarehouseFactsSource lists the warehouses visibility rules run against.
type WarehouseFactsSource interface {
	Facts(ctx context.Context) ([]security.WarehouseFacts, error)
}

// ScopeResolver turns a caller into a warehouse scope.
type ScopeResolver interface {
	Resolve(user *appctx.UserContext, warehouses []security.WarehouseFacts) (security.WarehouseScope, error)
}

// Scope resolves the caller's warehouse visibility once per request.
// Must run after Auth. Admins skip the warehouse lookup.
func Scope(rules ScopeResolver, warehouses WarehouseFactsSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		user := appctx.GetUser(ctx)
		if user == nil {
			abortUnauthorized(c, "authentication required")
			return
		}

		if user.IsAdmin {
			c.Set(ContextKeyScope, security.AllWarehouses())
			c.Next()
			return
		}

		facts, err := warehouses.Facts(ctx)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}

		scope, err := rules.Resolve(user, facts)
		if err != nil {
			// Rules failing to evaluate deny access rather than widen it.
			logger.Warn(ctx, "visibility rules failed", "user_id", user.UserID, "error", err)
			_ = c.Error(apperror.NewForbidden("warehouse visibility could not be resolved").WithCause(err))
			c.Abort()
			return
		}

		c.Set(ContextKeyScope, scope)
		c.Next()
	}
}

// GetScope returns the scope resolved by Scope. Without one the caller sees nothing.
func GetScope(c *gin.Context) security.WarehouseScope {
	if v, ok := c.Get(ContextKeyScope); ok {
		if scope, ok := v.(security.WarehouseScope); ok {
			return scope
		}
	}
	return security.WarehouseScope{}
}
