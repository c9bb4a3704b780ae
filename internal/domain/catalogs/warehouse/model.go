// Package warehouse provides the Warehouse catalog: physical locations
// that hold stock.
package warehouse

import (
	"context"
	"strings"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/security"
)

// Type tags what a warehouse stores. Visibility rules usually key off it.
type Type string

const (
	TypeNone     Type = ""
	TypeRaw      Type = "raw"      // raw materials
	TypeFinished Type = "finished" // finished goods
	TypeBoth     Type = "both"
)

// Warehouse represents a storage location for goods.
type Warehouse struct {
	entity.Catalog

	// Type is optional
	Type Type `db:"type" json:"type"`
}

// NewWarehouse creates a new Warehouse with required fields.
func NewWarehouse(name string, whType Type) *Warehouse {
	return &Warehouse{
		Catalog: entity.NewCatalog(name),
		Type:    whType,
	}
}

// Validate implements entity.Validatable interface.
func (w *Warehouse) Validate(ctx context.Context) error {
	if err := w.Catalog.Validate(ctx); err != nil {
		return err
	}

	w.Type = Type(strings.ToLower(strings.TrimSpace(string(w.Type))))
	if !isValidType(w.Type) {
		return apperror.NewValidation("invalid warehouse type").
			WithDetail("field", "type").
			WithDetail("value", string(w.Type))
	}
	return nil
}

// Facts exposes the fields visibility rules may inspect.
func (w *Warehouse) Facts() security.WarehouseFacts {
	return security.WarehouseFacts{
		ID:     w.ID,
		Name:   w.Name,
		Type:   string(w.Type),
		Active: w.IsActive,
	}
}

func isValidType(t Type) bool {
	switch t {
	case TypeNone, TypeRaw, TypeFinished, TypeBoth:
		return true
	}
	return false
}
