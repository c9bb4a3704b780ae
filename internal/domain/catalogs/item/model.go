// Package item provides the Item catalog: the goods whose stock the ledger tracks.
package item

import (
	"context"
	"strings"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
)

// Item is a stock-keeping unit.
type Item struct {
	entity.Catalog

	// UnitID references the measurement unit
	UnitID id.ID `db:"unit_id" json:"unitId"`

	Category *string `db:"category" json:"category,omitempty"`

	// WarehouseID, when set, pins the item to one warehouse:
	// moves for it are accepted only there.
	WarehouseID *id.ID `db:"warehouse_id" json:"warehouseId,omitempty"`
}

// NewItem creates a new active Item.
func NewItem(name string, unitID id.ID) *Item {
	return &Item{
		Catalog: entity.NewCatalog(name),
		UnitID:  unitID,
	}
}

// Validate implements entity.Validatable interface.
func (i *Item) Validate(ctx context.Context) error {
	if err := i.Catalog.Validate(ctx); err != nil {
		return err
	}

	if id.IsNil(i.UnitID) {
		return apperror.NewValidation("unit is required").
			WithDetail("field", "unitId")
	}

	if i.Category != nil {
		c := strings.TrimSpace(*i.Category)
		if c == "" {
			i.Category = nil
		} else if len(c) > 100 {
			return apperror.NewValidation("category is too long").
				WithDetail("field", "category").
				WithDetail("max", 100)
		} else {
			i.Category = &c
		}
	}

	if i.WarehouseID != nil && id.IsNil(*i.WarehouseID) {
		i.WarehouseID = nil
	}
	return nil
}

// AcceptsWarehouse reports whether a move for this item may target warehouseID.
func (i *Item) AcceptsWarehouse(warehouseID id.ID) bool {
	return i.WarehouseID == nil || *i.WarehouseID == warehouseID
}
