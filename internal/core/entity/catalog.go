package entity

import (
	"context"
	"strings"

	"stockledger/internal/core/apperror"
)

// Catalog is the base type for reference data: items, warehouses, partners.
// Catalog rows are never hard-deleted while a stock move references them;
// they are deactivated instead.
type Catalog struct {
	BaseEntity

	// Name is the display name, unique per catalog
	Name string `db:"name" json:"name"`

	// IsActive gates use in new stock moves
	IsActive bool `db:"is_active" json:"isActive"`
}

// NewCatalog creates a new active Catalog with generated ID.
func NewCatalog(name string) Catalog {
	return Catalog{
		BaseEntity: NewBaseEntity(),
		Name:       strings.TrimSpace(name),
		IsActive:   true,
	}
}

// Validate implements Validatable interface.
func (c *Catalog) Validate(ctx context.Context) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return apperror.NewValidation("name is required").
			WithDetail("field", "name")
	}
	if len(c.Name) > 100 {
		return apperror.NewValidation("name is too long").
			WithDetail("field", "name").
			WithDetail("max", 100)
	}
	return nil
}

// Deactivate hides the entry from new moves while keeping history intact.
func (c *Catalog) Deactivate() {
	c.IsActive = false
	c.Touch()
}

// Activate reverses Deactivate.
func (c *Catalog) Activate() {
	c.IsActive = true
	c.Touch()
}

// GetName returns the display name.
func (c *Catalog) GetName() string {
	return c.Name
}

// Active reports the IsActive flag.
func (c *Catalog) Active() bool {
	return c.IsActive
}
