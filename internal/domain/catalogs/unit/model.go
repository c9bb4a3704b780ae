// Package unit provides the Unit catalog: the fixed set of measurement units
// an item can be counted in.
package unit

import (
	"context"
	"strings"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
)

// Code is the unit of measure code.
type Code string

const (
	CodePiece Code = "PCS"   // pieces
	CodeBox   Code = "BOX"   // boxes
	CodeGe    Code = "GE"    // 个, generic counter
	CodeZhi   Code = "ZHI"   // 支, long thin items
	CodeOther Code = "OTHER" // anything else
)

// Codes lists every supported code in display order.
func Codes() []Code {
	return []Code{CodePiece, CodeBox, CodeGe, CodeZhi, CodeOther}
}

// Valid reports whether c is a supported code.
func (c Code) Valid() bool {
	switch c {
	case CodePiece, CodeBox, CodeGe, CodeZhi, CodeOther:
		return true
	}
	return false
}

// Unit represents a measurement unit.
type Unit struct {
	entity.Catalog

	// Code is unique across units
	Code Code `db:"code" json:"code"`
}

// NewUnit creates a new Unit with required fields.
func NewUnit(code Code, name string) *Unit {
	return &Unit{
		Catalog: entity.NewCatalog(name),
		Code:    code,
	}
}

// Validate implements entity.Validatable interface.
func (u *Unit) Validate(ctx context.Context) error {
	if err := u.Catalog.Validate(ctx); err != nil {
		return err
	}

	u.Code = Code(strings.ToUpper(strings.TrimSpace(string(u.Code))))
	if !u.Code.Valid() {
		return apperror.NewValidation("invalid unit code").
			WithDetail("field", "code").
			WithDetail("value", string(u.Code)).
			WithDetail("allowed", Codes())
	}
	return nil
}
