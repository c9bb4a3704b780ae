package dto

import (
	"stockledger/internal/domain/catalogs/partner"
)

// CreatePartnerRequest is the request body for creating a partner.
type CreatePartnerRequest struct {
	Name    string  `json:"name" binding:"required"`
	Contact *string `json:"contact"`
	Phone   *string `json:"phone"`
}

// ToEntity converts DTO to domain entity.
func (r *CreatePartnerRequest) ToEntity() *partner.Partner {
	p := partner.NewPartner(r.Name)
	p.Contact = r.Contact
	p.Phone = r.Phone
	return p
}

// UpdatePartnerRequest is the request body for updating a partner.
type UpdatePartnerRequest struct {
	Name     string  `json:"name" binding:"required"`
	Contact  *string `json:"contact"`
	Phone    *string `json:"phone"`
	IsActive bool    `json:"isActive"`
	Version  int     `json:"version" binding:"required,min=1"`
}

// ApplyTo applies update DTO to existing entity.
func (r *UpdatePartnerRequest) ApplyTo(p *partner.Partner) {
	p.Name = r.Name
	p.Contact = r.Contact
	p.Phone = r.Phone
	p.IsActive = r.IsActive
	p.Version = r.Version
}

// PartnerResponse is the response body for a partner.
type PartnerResponse struct {
	CatalogResponse
	Contact *string `json:"contact,omitempty"`
	Phone   *string `json:"phone,omitempty"`
}

// FromPartner creates response DTO from domain entity.
func FromPartner(p *partner.Partner) *PartnerResponse {
	return &PartnerResponse{
		CatalogResponse: FromCatalog(p.Catalog),
		Contact:         p.Contact,
		Phone:           p.Phone,
	}
}
