package item

import (
	"context"

	"stockledger/internal/core/id"
	"stockledger/internal/domain"
)

// Repository defines the interface for Item persistence.
type Repository interface {
	domain.CatalogRepository[*Item]

	// CountByWarehouse counts items pinned to the warehouse.
	CountByWarehouse(ctx context.Context, warehouseID id.ID) (int64, error)

	// CountByUnit counts items measured in the unit.
	CountByUnit(ctx context.Context, unitID id.ID) (int64, error)
}
