package warehouse

import (
	"context"

	"stockledger/internal/domain"
)

// Repository defines the interface for Warehouse persistence.
type Repository interface {
	domain.CatalogRepository[*Warehouse]

	// All returns every warehouse, active or not. The set is small and is
	// used to resolve visibility scopes.
	All(ctx context.Context) ([]*Warehouse, error)
}
