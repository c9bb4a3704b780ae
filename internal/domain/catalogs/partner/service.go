package partner

import (
	"context"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/tx"
	"stockledger/internal/domain"
)

// Service provides business logic for Partner catalog.
type Service struct {
	*domain.CatalogService[*Partner]
	repo Repository
}

// NewService creates a new Partner service.
func NewService(repo Repository, txm tx.Manager) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Partner]{
		Repo:       repo,
		TxManager:  txm,
		EntityName: "partner",
	})

	svc := &Service{CatalogService: base, repo: repo}

	base.Hooks().OnBeforeCreate(svc.checkNameUnique)
	base.Hooks().OnBeforeUpdate(svc.checkNameUnique)

	return svc
}

func (s *Service) checkNameUnique(ctx context.Context, p *Partner) error {
	existing, err := s.repo.GetByName(ctx, p.Name)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil
		}
		return err
	}
	if existing.ID != p.ID {
		return apperror.NewDuplicate("partner", "name", p.Name)
	}
	return nil
}
