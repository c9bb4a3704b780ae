package catalog_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"stockledger/internal/core/id"
	"stockledger/internal/domain/catalogs/item"
	"stockledger/internal/infrastructure/storage/postgres"
)

const itemTable = "items"

var _ item.Repository = (*ItemRepo)(nil)

// ItemRepo implements item.Repository.
type ItemRepo struct {
	*BaseCatalogRepo[*item.Item]
}

// NewItemRepo creates a new item repository.
func NewItemRepo(txManager *postgres.TxManager) *ItemRepo {
	return &ItemRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(
			txManager, itemTable, "item", "name",
			postgres.ExtractDBColumns[item.Item](),
			func() *item.Item { return &item.Item{} },
		),
	}
}

// CountByWarehouse counts items pinned to the warehouse.
func (r *ItemRepo) CountByWarehouse(ctx context.Context, warehouseID id.ID) (int64, error) {
	return r.count(ctx, squirrel.Eq{"warehouse_id": warehouseID})
}

// CountByUnit counts items measured in the unit.
func (r *ItemRepo) CountByUnit(ctx context.Context, unitID id.ID) (int64, error) {
	return r.count(ctx, squirrel.Eq{"unit_id": unitID})
}
