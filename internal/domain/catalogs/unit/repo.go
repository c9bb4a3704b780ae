package unit

import (
	"context"

	"stockledger/internal/domain"
)

// Repository defines the interface for Unit persistence.
type Repository interface {
	domain.CatalogRepository[*Unit]

	// GetByCode retrieves a unit by its code.
	GetByCode(ctx context.Context, code Code) (*Unit, error)
}
