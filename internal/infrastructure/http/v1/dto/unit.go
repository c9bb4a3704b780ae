package dto

import (
	"stockledger/internal/domain/catalogs/unit"
)

// CreateUnitRequest is the request body for creating a unit.
type CreateUnitRequest struct {
	Code unit.Code `json:"code" binding:"required"`
	Name string    `json:"name" binding:"required"`
}

// ToEntity converts DTO to domain entity.
func (r *CreateUnitRequest) ToEntity() *unit.Unit {
	return unit.NewUnit(r.Code, r.Name)
}

// UpdateUnitRequest is the request body for updating a unit.
type UpdateUnitRequest struct {
	Code     unit.Code `json:"code" binding:"required"`
	Name     string    `json:"name" binding:"required"`
	IsActive bool      `json:"isActive"`
	Version  int       `json:"version" binding:"required,min=1"`
}

// ApplyTo applies update DTO to existing entity.
func (r *UpdateUnitRequest) ApplyTo(u *unit.Unit) {
	u.Code = r.Code
	u.Name = r.Name
	u.IsActive = r.IsActive
	u.Version = r.Version
}

// UnitResponse is the response body for a unit.
type UnitResponse struct {
	CatalogResponse
	Code unit.Code `json:"code"`
}

// FromUnit creates response DTO from domain entity.
func FromUnit(u *unit.Unit) *UnitResponse {
	return &UnitResponse{
		CatalogResponse: FromCatalog(u.Catalog),
		Code:            u.Code,
	}
}
