package handlers

import (
	"stockledger/internal/domain/catalogs/unit"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// UnitHTTPHandler is the catalog handler for units.
type UnitHTTPHandler = CatalogHandler[*unit.Unit, dto.CreateUnitRequest, dto.UpdateUnitRequest]

// NewUnitHandler wires the unit mappers.
func NewUnitHandler(base *BaseHandler, service *unit.Service) *UnitHTTPHandler {
	return NewCatalogHandler(base, CatalogHandlerConfig[*unit.Unit, dto.CreateUnitRequest, dto.UpdateUnitRequest]{
		Service:    service.CatalogService,
		EntityName: "unit",
		MapCreateDTO: func(req dto.CreateUnitRequest) (*unit.Unit, error) {
			return req.ToEntity(), nil
		},
		MapUpdateDTO: func(req dto.UpdateUnitRequest, existing *unit.Unit) (*unit.Unit, error) {
			req.ApplyTo(existing)
			return existing, nil
		},
		MapToDTO: func(entity *unit.Unit) any {
			return dto.FromUnit(entity)
		},
	})
}
