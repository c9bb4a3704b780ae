package handlers

import (
	"stockledger/internal/domain/catalogs/partner"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// PartnerHTTPHandler is the catalog handler for partners.
type PartnerHTTPHandler = CatalogHandler[*partner.Partner, dto.CreatePartnerRequest, dto.UpdatePartnerRequest]

// NewPartnerHandler wires the partner mappers.
func NewPartnerHandler(base *BaseHandler, service *partner.Service) *PartnerHTTPHandler {
	return NewCatalogHandler(base, CatalogHandlerConfig[*partner.Partner, dto.CreatePartnerRequest, dto.UpdatePartnerRequest]{
		Service:    service.CatalogService,
		EntityName: "partner",
		MapCreateDTO: func(req dto.CreatePartnerRequest) (*partner.Partner, error) {
			return req.ToEntity(), nil
		},
		MapUpdateDTO: func(req dto.UpdatePartnerRequest, existing *partner.Partner) (*partner.Partner, error) {
			req.ApplyTo(existing)
			return existing, nil
		},
		MapToDTO: func(entity *partner.Partner) any {
			return dto.FromPartner(entity)
		},
	})
}
