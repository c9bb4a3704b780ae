package catalog_repo

import (
	"stockledger/internal/domain/catalogs/partner"
	"stockledger/internal/infrastructure/storage/postgres"
)

const partnerTable = "partners"

var _ partner.Repository = (*PartnerRepo)(nil)

// PartnerRepo implements partner.Repository.
type PartnerRepo struct {
	*BaseCatalogRepo[*partner.Partner]
}

// NewPartnerRepo creates a new partner repository.
func NewPartnerRepo(txManager *postgres.TxManager) *PartnerRepo {
	return &PartnerRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(
			txManager, partnerTable, "partner", "name",
			postgres.ExtractDBColumns[partner.Partner](),
			func() *partner.Partner { return &partner.Partner{} },
		),
	}
}
