package memory

import (
	"context"
	"sort"
	"strings"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/domain"
	"stockledger/internal/domain/catalogs/item"
	"stockledger/internal/domain/catalogs/partner"
	"stockledger/internal/domain/catalogs/unit"
	"stockledger/internal/domain/catalogs/warehouse"
)

// catalogRepo is the generic in-memory catalog repository. T is the value
// type; the repository hands out *T copies.
type catalogRepo[T any] struct {
	store      *Store
	entityName string
	table      func(t *tables) map[id.ID]T
	staged     func(st *txState) *overlay[id.ID, T]
	base       func(v *T) *entity.Catalog

	// uniqueKey returns the value that must be unique across rows.
	uniqueKey   func(v *T) string
	uniqueField string
}

// get returns a copy of the row as seen by ctx.
func (r *catalogRepo[T]) get(ctx context.Context, rowID id.ID) (T, bool) {
	if st := txFrom(ctx); st != nil {
		if v, staged, hidden := r.staged(st).lookup(rowID); staged {
			return v, true
		} else if hidden {
			var zero T
			return zero, false
		}
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	v, ok := r.table(&r.store.t)[rowID]
	return v, ok
}

// all returns copies of every row as seen by ctx.
func (r *catalogRepo[T]) all(ctx context.Context) []T {
	st := txFrom(ctx)

	r.store.mu.RLock()
	out := make([]T, 0, len(r.table(&r.store.t)))
	for k, v := range r.table(&r.store.t) {
		if st != nil && r.staged(st).touched(k) {
			continue
		}
		out = append(out, v)
	}
	r.store.mu.RUnlock()

	if st != nil {
		for _, v := range r.staged(st).puts {
			out = append(out, v)
		}
	}
	return out
}

func (r *catalogRepo[T]) uniqueCheck(v T) func(t *tables) error {
	if r.uniqueKey == nil {
		return nil
	}
	rowID := r.base(&v).ID
	key := r.uniqueKey(&v)
	return func(t *tables) error {
		for otherID, other := range r.table(t) {
			if otherID != rowID && strings.EqualFold(r.uniqueKey(&other), key) {
				return apperror.NewDuplicate(r.entityName, r.uniqueField, key)
			}
		}
		return nil
	}
}

// Create inserts a new entity.
func (r *catalogRepo[T]) Create(ctx context.Context, e *T) error {
	return r.store.write(ctx, func(st *txState) error {
		b := r.base(e)
		if _, exists := r.get(ctx, b.ID); exists {
			return apperror.NewDuplicate(r.entityName, "id", b.ID.String())
		}
		if err := r.checkUniqueVisible(ctx, *e); err != nil {
			return err
		}
		now := r.store.now()
		if b.CreatedAt.IsZero() {
			b.CreatedAt = now
		}
		b.UpdatedAt = now
		if b.Version == 0 {
			b.Version = 1
		}
		r.staged(st).put(b.ID, *e)
		if check := r.uniqueCheck(*e); check != nil {
			st.checks = append(st.checks, check)
		}
		return nil
	})
}

// checkUniqueVisible rejects duplicates already visible to the transaction.
func (r *catalogRepo[T]) checkUniqueVisible(ctx context.Context, v T) error {
	if r.uniqueKey == nil {
		return nil
	}
	rowID := r.base(&v).ID
	key := r.uniqueKey(&v)
	for _, other := range r.all(ctx) {
		if r.base(&other).ID != rowID && strings.EqualFold(r.uniqueKey(&other), key) {
			return apperror.NewDuplicate(r.entityName, r.uniqueField, key)
		}
	}
	return nil
}

// GetByID retrieves entity by ID.
func (r *catalogRepo[T]) GetByID(ctx context.Context, rowID id.ID) (*T, error) {
	v, ok := r.get(ctx, rowID)
	if !ok {
		return nil, apperror.NewNotFound(r.entityName, rowID.String())
	}
	return &v, nil
}

// GetByName retrieves entity by name, case-insensitive.
func (r *catalogRepo[T]) GetByName(ctx context.Context, name string) (*T, error) {
	name = strings.TrimSpace(name)
	for _, v := range r.all(ctx) {
		if strings.EqualFold(r.base(&v).Name, name) {
			return &v, nil
		}
	}
	return nil, apperror.NewNotFound(r.entityName, name)
}

// Update modifies an existing entity with optimistic locking on Version.
func (r *catalogRepo[T]) Update(ctx context.Context, e *T) error {
	return r.store.write(ctx, func(st *txState) error {
		b := r.base(e)
		current, ok := r.get(ctx, b.ID)
		if !ok {
			return apperror.NewNotFound(r.entityName, b.ID.String())
		}
		expected := r.base(&current).Version
		if b.Version != expected {
			return apperror.NewConcurrentModification(r.entityName, b.ID.String())
		}
		if err := r.checkUniqueVisible(ctx, *e); err != nil {
			return err
		}

		b.Version = expected + 1
		b.UpdatedAt = r.store.now()
		b.CreatedAt = r.base(&current).CreatedAt
		r.staged(st).put(b.ID, *e)

		rowID := b.ID
		st.checks = append(st.checks, func(t *tables) error {
			committed, ok := r.table(t)[rowID]
			if !ok {
				return apperror.NewNotFound(r.entityName, rowID.String())
			}
			if r.base(&committed).Version != expected {
				return apperror.NewConcurrentModification(r.entityName, rowID.String())
			}
			return nil
		})
		if check := r.uniqueCheck(*e); check != nil {
			st.checks = append(st.checks, check)
		}
		return nil
	})
}

// Delete physically removes the entity.
func (r *catalogRepo[T]) Delete(ctx context.Context, rowID id.ID) error {
	return r.store.write(ctx, func(st *txState) error {
		if _, ok := r.get(ctx, rowID); !ok {
			return apperror.NewNotFound(r.entityName, rowID.String())
		}
		r.staged(st).del(rowID)
		return nil
	})
}

// Exists checks if entity with given ID exists.
func (r *catalogRepo[T]) Exists(ctx context.Context, rowID id.ID) (bool, error) {
	_, ok := r.get(ctx, rowID)
	return ok, nil
}

// List retrieves entities with filtering and pagination.
func (r *catalogRepo[T]) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*T], error) {
	var ids map[id.ID]struct{}
	if len(filter.IDs) > 0 {
		ids = make(map[id.ID]struct{}, len(filter.IDs))
		for _, v := range filter.IDs {
			ids[v] = struct{}{}
		}
	}
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	rows := make([]*T, 0)
	for _, v := range r.all(ctx) {
		b := r.base(&v)
		if filter.ActiveOnly && !b.IsActive {
			continue
		}
		if ids != nil {
			if _, ok := ids[b.ID]; !ok {
				continue
			}
		}
		if search != "" && !strings.Contains(strings.ToLower(b.Name), search) {
			continue
		}
		row := v
		rows = append(rows, &row)
	}

	sortCatalog(rows, r.base, filter.OrderBy)

	total := int64(len(rows))
	rows = paginate(rows, filter.Limit, filter.Offset)
	return domain.ListResult[*T]{
		Items:      rows,
		TotalCount: total,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}, nil
}

func sortCatalog[T any](rows []*T, base func(*T) *entity.Catalog, orderBy string) {
	desc := strings.HasPrefix(orderBy, "-")
	field := strings.TrimPrefix(orderBy, "-")

	less := func(a, b *entity.Catalog) bool {
		switch field {
		case "created_at", "createdAt":
			return a.CreatedAt.Before(b.CreatedAt)
		case "updated_at", "updatedAt":
			return a.UpdatedAt.Before(b.UpdatedAt)
		default:
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := base(rows[i]), base(rows[j])
		if desc {
			return less(b, a)
		}
		return less(a, b)
	})
}

func paginate[T any](rows []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(rows) {
			return rows[:0]
		}
		rows = rows[offset:]
	}
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

// --- Concrete repositories ---

// ItemRepo implements item.Repository.
type ItemRepo struct {
	*catalogRepo[item.Item]
}

var _ item.Repository = (*ItemRepo)(nil)

// NewItemRepo creates the item repository.
func NewItemRepo(s *Store) *ItemRepo {
	return &ItemRepo{&catalogRepo[item.Item]{
		store:       s,
		entityName:  "item",
		table:       func(t *tables) map[id.ID]item.Item { return t.items },
		staged:      func(st *txState) *overlay[id.ID, item.Item] { return &st.items },
		base:        func(v *item.Item) *entity.Catalog { return &v.Catalog },
		uniqueKey:   func(v *item.Item) string { return v.Name },
		uniqueField: "name",
	}}
}

// CountByWarehouse counts items pinned to the warehouse.
func (r *ItemRepo) CountByWarehouse(ctx context.Context, warehouseID id.ID) (int64, error) {
	var n int64
	for _, it := range r.all(ctx) {
		if it.WarehouseID != nil && *it.WarehouseID == warehouseID {
			n++
		}
	}
	return n, nil
}

// CountByUnit counts items measured in the unit.
func (r *ItemRepo) CountByUnit(ctx context.Context, unitID id.ID) (int64, error) {
	var n int64
	for _, it := range r.all(ctx) {
		if it.UnitID == unitID {
			n++
		}
	}
	return n, nil
}

// WarehouseRepo implements warehouse.Repository.
type WarehouseRepo struct {
	*catalogRepo[warehouse.Warehouse]
}

var _ warehouse.Repository = (*WarehouseRepo)(nil)

// NewWarehouseRepo creates the warehouse repository.
func NewWarehouseRepo(s *Store) *WarehouseRepo {
	return &WarehouseRepo{&catalogRepo[warehouse.Warehouse]{
		store:       s,
		entityName:  "warehouse",
		table:       func(t *tables) map[id.ID]warehouse.Warehouse { return t.warehouses },
		staged:      func(st *txState) *overlay[id.ID, warehouse.Warehouse] { return &st.warehouses },
		base:        func(v *warehouse.Warehouse) *entity.Catalog { return &v.Catalog },
		uniqueKey:   func(v *warehouse.Warehouse) string { return v.Name },
		uniqueField: "name",
	}}
}

// All returns every warehouse ordered by name.
func (r *WarehouseRepo) All(ctx context.Context) ([]*warehouse.Warehouse, error) {
	rows := make([]*warehouse.Warehouse, 0)
	for _, v := range r.all(ctx) {
		wh := v
		rows = append(rows, &wh)
	}
	sortCatalog(rows, r.base, "name")
	return rows, nil
}

// UnitRepo implements unit.Repository.
type UnitRepo struct {
	*catalogRepo[unit.Unit]
}

var _ unit.Repository = (*UnitRepo)(nil)

// NewUnitRepo creates the unit repository.
func NewUnitRepo(s *Store) *UnitRepo {
	return &UnitRepo{&catalogRepo[unit.Unit]{
		store:       s,
		entityName:  "unit",
		table:       func(t *tables) map[id.ID]unit.Unit { return t.units },
		staged:      func(st *txState) *overlay[id.ID, unit.Unit] { return &st.units },
		base:        func(v *unit.Unit) *entity.Catalog { return &v.Catalog },
		uniqueKey:   func(v *unit.Unit) string { return string(v.Code) },
		uniqueField: "code",
	}}
}

// GetByCode retrieves a unit by its code.
func (r *UnitRepo) GetByCode(ctx context.Context, code unit.Code) (*unit.Unit, error) {
	for _, v := range r.all(ctx) {
		if v.Code == code {
			u := v
			return &u, nil
		}
	}
	return nil, apperror.NewNotFound("unit", string(code))
}

// PartnerRepo implements partner.Repository.
type PartnerRepo struct {
	*catalogRepo[partner.Partner]
}

var _ partner.Repository = (*PartnerRepo)(nil)

// NewPartnerRepo creates the partner repository.
func NewPartnerRepo(s *Store) *PartnerRepo {
	return &PartnerRepo{&catalogRepo[partner.Partner]{
		store:       s,
		entityName:  "partner",
		table:       func(t *tables) map[id.ID]partner.Partner { return t.partners },
		staged:      func(st *txState) *overlay[id.ID, partner.Partner] { return &st.partners },
		base:        func(v *partner.Partner) *entity.Catalog { return &v.Catalog },
		uniqueKey:   func(v *partner.Partner) string { return v.Name },
		uniqueField: "name",
	}}
}
