package stock

import (
	"context"
	"fmt"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain"
	"stockledger/internal/domain/catalogs/item"
	"stockledger/internal/domain/catalogs/partner"
	"stockledger/internal/domain/catalogs/warehouse"
)

// ProtectReferences vetoes deleting catalog rows that stock moves point at.
// Such rows are deactivated instead so that history stays resolvable.
func ProtectReferences(
	moves MoveRepository,
	items *domain.HookRegistry[*item.Item],
	warehouses *domain.HookRegistry[*warehouse.Warehouse],
	partners *domain.HookRegistry[*partner.Partner],
) {
	items.OnBeforeDelete(func(ctx context.Context, it *item.Item) error {
		return refuseIfReferenced(ctx, moves, "item", Reference{Kind: RefItem, ID: it.ID})
	})
	warehouses.OnBeforeDelete(func(ctx context.Context, wh *warehouse.Warehouse) error {
		return refuseIfReferenced(ctx, moves, "warehouse", Reference{Kind: RefWarehouse, ID: wh.ID})
	})
	partners.OnBeforeDelete(func(ctx context.Context, p *partner.Partner) error {
		return refuseIfReferenced(ctx, moves, "partner", Reference{Kind: RefPartner, ID: p.ID})
	})
}

func refuseIfReferenced(ctx context.Context, moves MoveRepository, entityName string, ref Reference) error {
	n, err := moves.CountReferences(ctx, ref)
	if err != nil {
		return fmt.Errorf("count moves referencing %s: %w", entityName, err)
	}
	if n > 0 {
		return referencedConflict(entityName, ref.ID, n)
	}
	return nil
}

func referencedConflict(entityName string, entityID id.ID, moves int64) error {
	return apperror.NewConflict(fmt.Sprintf("%s is referenced by stock moves; deactivate it instead", entityName)).
		WithDetail("id", entityID).
		WithDetail("moves", moves)
}
