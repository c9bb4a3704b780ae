// Package security provides authorization and warehouse visibility.
package security

import (
	"bytes"
	"sort"

	"stockledger/internal/core/id"
)

// WarehouseScope defines which warehouses a caller may see and post to.
// It is passed explicitly to the stock validator and query facade.
//
// The zero value sees nothing.
type WarehouseScope struct {
	unrestricted bool
	allowed      map[id.ID]struct{}
}

// AllWarehouses returns a scope without restrictions (admins, internal jobs).
func AllWarehouses() WarehouseScope {
	return WarehouseScope{unrestricted: true}
}

// OnlyWarehouses returns an allow-list scope.
func OnlyWarehouses(ids ...id.ID) WarehouseScope {
	allowed := make(map[id.ID]struct{}, len(ids))
	for _, wid := range ids {
		allowed[wid] = struct{}{}
	}
	return WarehouseScope{allowed: allowed}
}

// Unrestricted reports whether every warehouse is visible.
func (s WarehouseScope) Unrestricted() bool {
	return s.unrestricted
}

// IsEmpty reports a restricted scope with nothing visible.
func (s WarehouseScope) IsEmpty() bool {
	return !s.unrestricted && len(s.allowed) == 0
}

// CanSee checks if the warehouse is visible.
func (s WarehouseScope) CanSee(warehouseID id.ID) bool {
	if s.unrestricted {
		return true
	}
	_, ok := s.allowed[warehouseID]
	return ok
}

// AllowedIDs returns the allow-list in a stable order, or nil when unrestricted.
func (s WarehouseScope) AllowedIDs() []id.ID {
	if s.unrestricted {
		return nil
	}
	ids := make([]id.ID, 0, len(s.allowed))
	for wid := range s.allowed {
		ids = append(ids, wid)
	}
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})
	return ids
}

// Union merges two scopes.
func (s WarehouseScope) Union(other WarehouseScope) WarehouseScope {
	if s.unrestricted || other.unrestricted {
		return AllWarehouses()
	}
	merged := make(map[id.ID]struct{}, len(s.allowed)+len(other.allowed))
	for wid := range s.allowed {
		merged[wid] = struct{}{}
	}
	for wid := range other.allowed {
		merged[wid] = struct{}{}
	}
	return WarehouseScope{allowed: merged}
}
