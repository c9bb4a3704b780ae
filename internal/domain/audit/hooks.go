package audit

import (
	"context"

	"stockledger/internal/domain"
)

// TrackCatalog records create, update and delete of a catalog entity.
// Create and update entries are written inside the change transaction.
func TrackCatalog[T domain.CatalogEntity](hooks *domain.HookRegistry[T], r Recorder, entityType string) {
	hooks.OnBeforeCreate(func(ctx context.Context, e T) error {
		return Record(ctx, r, entityType, e.GetID().String(), ActionCreate, e)
	})
	hooks.OnBeforeUpdate(func(ctx context.Context, e T) error {
		return Record(ctx, r, entityType, e.GetID().String(), ActionUpdate, e)
	})
	hooks.OnBeforeDelete(func(ctx context.Context, e T) error {
		return Record(ctx, r, entityType, e.GetID().String(), ActionDelete, e)
	})
}
