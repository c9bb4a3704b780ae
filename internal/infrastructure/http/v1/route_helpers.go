package v1

import (
	"github.com/gin-gonic/gin"

	"stockledger/internal/domain/auth"
	"stockledger/internal/infrastructure/http/v1/middleware"
)

// CatalogRouteHandler defines the interface for catalog handlers.
// All catalog handlers must implement these methods.
type CatalogRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	Update(c *gin.Context)
	Deactivate(c *gin.Context)
	Delete(c *gin.Context)
}

// RegisterCatalogRoutes registers standard CRUD routes for a catalog.
// Reads are open to every authenticated caller; writes need the catalog manager role.
//
// Usage:
//
//	handler := handlers.NewUnitHandler(baseHandler, units)
//	RegisterCatalogRoutes(catalogs.Group("/units"), handler)
func RegisterCatalogRoutes(group *gin.RouterGroup, handler CatalogRouteHandler) {
	write := middleware.RequireRole(auth.RoleCatalogManager)

	group.GET("", handler.List)
	group.POST("", write, handler.Create)
	group.GET("/:id", handler.Get)
	group.PUT("/:id", write, handler.Update)
	group.POST("/:id/deactivate", write, handler.Deactivate)
	group.DELETE("/:id", write, handler.Delete)
}
