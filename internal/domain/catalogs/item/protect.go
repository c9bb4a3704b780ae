package item

import (
	"context"

	"stockledger/internal/core/apperror"
	"stockledger/internal/domain"
	"stockledger/internal/domain/catalogs/unit"
	"stockledger/internal/domain/catalogs/warehouse"
)

// ProtectReferences vetoes deleting units and warehouses that items point at.
func ProtectReferences(repo Repository, units *domain.HookRegistry[*unit.Unit], warehouses *domain.HookRegistry[*warehouse.Warehouse]) {
	units.OnBeforeDelete(func(ctx context.Context, u *unit.Unit) error {
		n, err := repo.CountByUnit(ctx, u.ID)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperror.NewConflict("unit is used by items").
				WithDetail("id", u.ID).
				WithDetail("items", n)
		}
		return nil
	})
	warehouses.OnBeforeDelete(func(ctx context.Context, wh *warehouse.Warehouse) error {
		n, err := repo.CountByWarehouse(ctx, wh.ID)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperror.NewConflict("warehouse has items pinned to it").
				WithDetail("id", wh.ID).
				WithDetail("items", n)
		}
		return nil
	})
}
