package handlers

import (
	"stockledger/internal/domain/catalogs/item"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// ItemHTTPHandler is the catalog handler for items.
type ItemHTTPHandler = CatalogHandler[*item.Item, dto.CreateItemRequest, dto.UpdateItemRequest]

// NewItemHandler wires the item mappers. Ids in the body are parsed here,
// so a malformed unitId is a validation error, not a missing reference.
func NewItemHandler(base *BaseHandler, service *item.Service) *ItemHTTPHandler {
	return NewCatalogHandler(base, CatalogHandlerConfig[*item.Item, dto.CreateItemRequest, dto.UpdateItemRequest]{
		Service:    service.CatalogService,
		EntityName: "item",
		MapCreateDTO: func(req dto.CreateItemRequest) (*item.Item, error) {
			return req.ToEntity()
		},
		MapUpdateDTO: func(req dto.UpdateItemRequest, existing *item.Item) (*item.Item, error) {
			if err := req.ApplyTo(existing); err != nil {
				return nil, err
			}
			return existing, nil
		},
		MapToDTO: func(entity *item.Item) any {
			return dto.FromItem(entity)
		},
	})
}
