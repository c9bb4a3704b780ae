// Package partner provides the Partner catalog: suppliers and customers a
// stock move may name.
package partner

import (
	"context"
	"regexp"
	"strings"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
)

var phoneRE = regexp.MustCompile(`^\+?[0-9 ()\-]{5,32}$`)

// Partner is a business counterparty.
type Partner struct {
	entity.Catalog

	Contact *string `db:"contact" json:"contact,omitempty"`
	Phone   *string `db:"phone" json:"phone,omitempty"`
}

// NewPartner creates a new active Partner.
func NewPartner(name string) *Partner {
	return &Partner{Catalog: entity.NewCatalog(name)}
}

// Validate implements entity.Validatable interface.
func (p *Partner) Validate(ctx context.Context) error {
	if err := p.Catalog.Validate(ctx); err != nil {
		return err
	}

	p.Contact = trimOptional(p.Contact)
	p.Phone = trimOptional(p.Phone)

	if p.Contact != nil && len(*p.Contact) > 100 {
		return apperror.NewValidation("contact is too long").
			WithDetail("field", "contact").
			WithDetail("max", 100)
	}
	if p.Phone != nil && !phoneRE.MatchString(*p.Phone) {
		return apperror.NewValidation("invalid phone number").
			WithDetail("field", "phone").
			WithDetail("value", *p.Phone)
	}
	return nil
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
