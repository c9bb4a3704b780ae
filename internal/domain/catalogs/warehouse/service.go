package warehouse

import (
	"context"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/security"
	"stockledger/internal/core/tx"
	"stockledger/internal/domain"
)

// Service provides business logic for Warehouse catalog.
type Service struct {
	*domain.CatalogService[*Warehouse]
	repo Repository
}

// NewService creates a new Warehouse service.
func NewService(repo Repository, txm tx.Manager) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Warehouse]{
		Repo:       repo,
		TxManager:  txm,
		EntityName: "warehouse",
	})

	svc := &Service{
		CatalogService: base,
		repo:           repo,
	}

	base.Hooks().OnBeforeCreate(svc.checkNameUnique)
	base.Hooks().OnBeforeUpdate(svc.checkNameUnique)

	return svc
}

func (s *Service) checkNameUnique(ctx context.Context, wh *Warehouse) error {
	existing, err := s.repo.GetByName(ctx, wh.Name)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil
		}
		return err
	}
	if existing.ID != wh.ID {
		return apperror.NewDuplicate("warehouse", "name", wh.Name)
	}
	return nil
}

// Facts lists every warehouse in the shape visibility rules expect.
func (s *Service) Facts(ctx context.Context) ([]security.WarehouseFacts, error) {
	all, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}
	facts := make([]security.WarehouseFacts, 0, len(all))
	for _, wh := range all {
		facts = append(facts, wh.Facts())
	}
	return facts, nil
}
