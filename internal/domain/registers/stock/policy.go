package stock

// Policy holds the tunable ledger rules.
type Policy struct {
	// AllowAdjustOnInactiveItem lets ADJUST moves target a deactivated item,
	// so stock of retired items can still be corrected. The warehouse must
	// be active regardless.
	AllowAdjustOnInactiveItem bool

	// LowStockThreshold flags balances with on_hand strictly below it.
	LowStockThreshold int64

	DefaultPageSize int
	MaxPageSize     int
}

// DefaultPolicy returns the production defaults.
func DefaultPolicy() Policy {
	return Policy{
		AllowAdjustOnInactiveItem: true,
		LowStockThreshold:         10,
		DefaultPageSize:           50,
		MaxPageSize:               500,
	}
}

// pageSize clamps a requested page size.
func (p Policy) pageSize(requested int) int {
	if requested <= 0 {
		return p.DefaultPageSize
	}
	if requested > p.MaxPageSize {
		return p.MaxPageSize
	}
	return requested
}
