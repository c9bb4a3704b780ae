package item

import (
	"context"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tx"
	"stockledger/internal/domain"
)

// ReferenceChecker answers whether a referenced catalog row exists.
type ReferenceChecker interface {
	Exists(ctx context.Context, id id.ID) (bool, error)
}

// Service provides business logic for Item catalog.
type Service struct {
	*domain.CatalogService[*Item]
	repo       Repository
	units      ReferenceChecker
	warehouses ReferenceChecker
}

// NewService creates a new Item service.
func NewService(repo Repository, txm tx.Manager, units, warehouses ReferenceChecker) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Item]{
		Repo:       repo,
		TxManager:  txm,
		EntityName: "item",
	})

	svc := &Service{
		CatalogService: base,
		repo:           repo,
		units:          units,
		warehouses:     warehouses,
	}

	base.Hooks().OnBeforeCreate(svc.checkReferences)
	base.Hooks().OnBeforeUpdate(svc.checkReferences)

	return svc
}

func (s *Service) checkReferences(ctx context.Context, it *Item) error {
	existing, err := s.repo.GetByName(ctx, it.Name)
	if err != nil && !apperror.IsNotFound(err) {
		return err
	}
	if err == nil && existing.ID != it.ID {
		return apperror.NewDuplicate("item", "name", it.Name)
	}

	ok, err := s.units.Exists(ctx, it.UnitID)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.NewInvalidReference("unitId", "not_found", it.UnitID)
	}

	if it.WarehouseID != nil {
		ok, err := s.warehouses.Exists(ctx, *it.WarehouseID)
		if err != nil {
			return err
		}
		if !ok {
			return apperror.NewInvalidReference("warehouseId", "not_found", *it.WarehouseID)
		}
	}
	return nil
}

// CountByWarehouse counts items pinned to the warehouse.
func (s *Service) CountByWarehouse(ctx context.Context, warehouseID id.ID) (int64, error) {
	return s.repo.CountByWarehouse(ctx, warehouseID)
}

// CountByUnit counts items measured in the unit.
func (s *Service) CountByUnit(ctx context.Context, unitID id.ID) (int64, error) {
	return s.repo.CountByUnit(ctx, unitID)
}
