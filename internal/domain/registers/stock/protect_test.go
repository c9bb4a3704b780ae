package stock_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/domain/catalogs/item"
	"stockledger/internal/domain/catalogs/partner"
	"stockledger/internal/domain/catalogs/warehouse"
	"stockledger/internal/domain/registers/stock"
	"stockledger/internal/infrastructure/storage/memory"
)

func TestProtectReferences(t *testing.T) {
	f := newFixture(t)
	items := item.NewService(f.items, f.txm, memory.NewUnitRepo(f.store), f.warehouses)
	warehouses := warehouse.NewService(f.warehouses, f.txm)
	partners := partner.NewService(f.partners, f.txm)
	stock.ProtectReferences(f.moves, items.Hooks(), warehouses.Hooks(), partners.Hooks())

	wh := f.warehouse("Main", warehouse.TypeBoth)
	used := f.item("Used")
	unused := f.item("Unused")
	p := f.partner("ACME")

	_, err := f.service.CreateMove(f.ctx, allScope(), stock.MoveRequest{
		Type: entity.MoveInbound, ItemID: used.ID, WarehouseID: wh.ID, Quantity: 1, PartnerID: &p.ID,
	})
	require.NoError(t, err)

	err = items.Delete(f.ctx, used.ID)
	appErr := requireCode(t, err, apperror.CodeConflict)
	assert.Equal(t, int64(1), appErr.Details["moves"])

	requireCode(t, warehouses.Delete(f.ctx, wh.ID), apperror.CodeConflict)
	requireCode(t, partners.Delete(f.ctx, p.ID), apperror.CodeConflict)

	require.NoError(t, items.Delete(f.ctx, unused.ID))

	deactivated, err := items.Deactivate(f.ctx, used.ID)
	require.NoError(t, err)
	assert.False(t, deactivated.IsActive)
}
