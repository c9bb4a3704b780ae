package partner

import "stockledger/internal/domain"

// Repository defines the interface for Partner persistence.
type Repository interface {
	domain.CatalogRepository[*Partner]
}
