package dto

import (
	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/catalogs/item"
)

// CreateItemRequest is the request body for creating an item.
type CreateItemRequest struct {
	Name        string  `json:"name" binding:"required"`
	UnitID      string  `json:"unitId" binding:"required"`
	Category    *string `json:"category"`
	WarehouseID *string `json:"warehouseId"`
}

// ToEntity converts DTO to domain entity.
func (r *CreateItemRequest) ToEntity() (*item.Item, error) {
	unitID, err := parseID("unitId", r.UnitID)
	if err != nil {
		return nil, err
	}
	whID, err := parseOptionalID("warehouseId", r.WarehouseID)
	if err != nil {
		return nil, err
	}

	it := item.NewItem(r.Name, unitID)
	it.Category = r.Category
	it.WarehouseID = whID
	return it, nil
}

// UpdateItemRequest is the request body for updating an item.
type UpdateItemRequest struct {
	Name        string  `json:"name" binding:"required"`
	UnitID      string  `json:"unitId" binding:"required"`
	Category    *string `json:"category"`
	WarehouseID *string `json:"warehouseId"`
	IsActive    bool    `json:"isActive"`
	Version     int     `json:"version" binding:"required,min=1"`
}

// ApplyTo applies update DTO to existing entity.
func (r *UpdateItemRequest) ApplyTo(it *item.Item) error {
	unitID, err := parseID("unitId", r.UnitID)
	if err != nil {
		return err
	}
	whID, err := parseOptionalID("warehouseId", r.WarehouseID)
	if err != nil {
		return err
	}

	it.Name = r.Name
	it.UnitID = unitID
	it.Category = r.Category
	it.WarehouseID = whID
	it.IsActive = r.IsActive
	it.Version = r.Version
	return nil
}

// ItemResponse is the response body for an item.
type ItemResponse struct {
	CatalogResponse
	UnitID      string  `json:"unitId"`
	Category    *string `json:"category,omitempty"`
	WarehouseID *string `json:"warehouseId,omitempty"`
}

// FromItem creates response DTO from domain entity.
func FromItem(it *item.Item) *ItemResponse {
	return &ItemResponse{
		CatalogResponse: FromCatalog(it.Catalog),
		UnitID:          it.UnitID.String(),
		Category:        it.Category,
		WarehouseID:     optionalID(it.WarehouseID),
	}
}

func parseID(field, raw string) (id.ID, error) {
	v, err := id.Parse(raw)
	if err != nil {
		return id.Nil(), apperror.NewValidation("invalid id format").
			WithDetail("field", field).
			WithDetail("value", raw)
	}
	return v, nil
}

func parseOptionalID(field string, raw *string) (*id.ID, error) {
	if raw == nil {
		return nil, nil
	}
	v, err := id.ParseOptional(*raw)
	if err != nil {
		return nil, apperror.NewValidation("invalid id format").
			WithDetail("field", field).
			WithDetail("value", *raw)
	}
	return v, nil
}
