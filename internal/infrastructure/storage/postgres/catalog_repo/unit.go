package catalog_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"stockledger/internal/domain/catalogs/unit"
	"stockledger/internal/infrastructure/storage/postgres"
)

const unitTable = "units"

var _ unit.Repository = (*UnitRepo)(nil)

// UnitRepo implements unit.Repository.
type UnitRepo struct {
	*BaseCatalogRepo[*unit.Unit]
}

// NewUnitRepo creates a new unit repository.
func NewUnitRepo(txManager *postgres.TxManager) *UnitRepo {
	return &UnitRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(
			txManager, unitTable, "unit", "code",
			postgres.ExtractDBColumns[unit.Unit](),
			func() *unit.Unit { return &unit.Unit{} },
		),
	}
}

// GetByCode retrieves a unit by its code.
func (r *UnitRepo) GetByCode(ctx context.Context, code unit.Code) (*unit.Unit, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"code": string(code)}).
		Limit(1)
	return r.findOne(ctx, q, string(code))
}
