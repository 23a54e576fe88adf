package memory

import (
	"context"
	"maps"

	"github.com/vsinha/cims/pkg/domain/entities"
	"github.com/vsinha/cims/pkg/domain/repositories"
)

// MaterialRepository provides in-memory material storage
type MaterialRepository struct {
	rows *table[entities.Material]
}

// NewMaterialRepository creates a new in-memory material repository
func NewMaterialRepository() *MaterialRepository {
	return &MaterialRepository{
		rows: newTable("material",
			func(m *entities.Material) string { return m.ID },
			func(m *entities.Material) *entities.Material {
				c := *m
				c.Specifications = maps.Clone(m.Specifications)
				return &c
			},
			func(m *entities.Material) string { return m.Code },
		),
	}
}

// Verify interface compliance
var _ repositories.MaterialRepository = (*MaterialRepository)(nil)

func (r *MaterialRepository) ListCodesWithPrefix(_ context.Context, prefix string) ([]string, error) {
	return r.rows.codes(prefix, func(m *entities.Material) string { return m.Code }), nil
}

func (r *MaterialRepository) CreateMaterial(_ context.Context, material *entities.Material) error {
	return r.rows.insert(material)
}

func (r *MaterialRepository) GetMaterial(_ context.Context, id string) (*entities.Material, error) {
	return r.rows.get(id)
}

func (r *MaterialRepository) GetMaterialByCode(_ context.Context, code string) (*entities.Material, error) {
	return r.rows.find(func(m *entities.Material) bool { return m.Code == code })
}

func (r *MaterialRepository) UpdateMaterial(_ context.Context, material *entities.Material) error {
	return r.rows.updateIf(material, func(stored *entities.Material) error {
		if stored.Version != material.Version-1 {
			return repositories.ErrStaleVersion
		}
		return nil
	})
}

func (r *MaterialRepository) ListMaterials(_ context.Context, filter repositories.MaterialFilter) ([]*entities.Material, int, error) {
	rows := r.rows.filter(func(m *entities.Material) bool {
		if filter.Category != "" && m.Category != filter.Category {
			return false
		}
		if filter.Status != "" && m.Status != filter.Status {
			return false
		}
		if filter.Search != "" && !containsFold(m.Code, filter.Search) && !containsFold(m.Name, filter.Search) {
			return false
		}
		return true
	})

	less := func(a, b *entities.Material) bool {
		switch filter.Sort.Field {
		case "code":
			return a.Code < b.Code
		case "name":
			return a.Name < b.Name
		case "unitPrice":
			return a.UnitPrice.LessThan(b.UnitPrice)
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	page, total := window(rows, filter.Page, ordered(less, filter.Sort.Desc))
	return page, total, nil
}

// SupplierRepository provides in-memory supplier storage
type SupplierRepository struct {
	rows *table[entities.Supplier]
}

// NewSupplierRepository creates a new in-memory supplier repository
func NewSupplierRepository() *SupplierRepository {
	return &SupplierRepository{
		rows: newTable("supplier",
			func(s *entities.Supplier) string { return s.ID },
			func(s *entities.Supplier) *entities.Supplier {
				c := *s
				c.Tags = cloneSlice(s.Tags)
				return &c
			},
			func(s *entities.Supplier) string { return s.Code },
		),
	}
}

var _ repositories.SupplierRepository = (*SupplierRepository)(nil)

func (r *SupplierRepository) ListCodesWithPrefix(_ context.Context, prefix string) ([]string, error) {
	return r.rows.codes(prefix, func(s *entities.Supplier) string { return s.Code }), nil
}

func (r *SupplierRepository) CreateSupplier(_ context.Context, supplier *entities.Supplier) error {
	return r.rows.insert(supplier)
}

func (r *SupplierRepository) GetSupplier(_ context.Context, id string) (*entities.Supplier, error) {
	return r.rows.get(id)
}

func (r *SupplierRepository) UpdateSupplier(_ context.Context, supplier *entities.Supplier) error {
	return r.rows.update(supplier)
}

func (r *SupplierRepository) DeleteSupplier(_ context.Context, id string) error {
	return r.rows.remove(id)
}

func (r *SupplierRepository) ListSuppliers(_ context.Context, filter repositories.SupplierFilter) ([]*entities.Supplier, int, error) {
	rows := r.rows.filter(func(s *entities.Supplier) bool {
		if filter.Status != "" && s.Status != filter.Status {
			return false
		}
		if filter.Search != "" && !containsFold(s.Name, filter.Search) && !containsFold(s.Code, filter.Search) &&
			!containsFold(s.ContactPerson, filter.Search) {
			return false
		}
		return true
	})

	less := func(a, b *entities.Supplier) bool {
		switch filter.Sort.Field {
		case "name":
			return a.Name < b.Name
		case "performanceScore":
			return a.PerformanceScore.LessThan(b.PerformanceScore)
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	page, total := window(rows, filter.Page, ordered(less, filter.Sort.Desc))
	return page, total, nil
}

// WarehouseRepository provides in-memory warehouse storage
type WarehouseRepository struct {
	rows *table[entities.Warehouse]
}

// NewWarehouseRepository creates a new in-memory warehouse repository
func NewWarehouseRepository() *WarehouseRepository {
	return &WarehouseRepository{
		rows: newTable("warehouse",
			func(w *entities.Warehouse) string { return w.ID },
			func(w *entities.Warehouse) *entities.Warehouse { c := *w; return &c },
			func(w *entities.Warehouse) string { return w.Code },
		),
	}
}

var _ repositories.WarehouseRepository = (*WarehouseRepository)(nil)

func (r *WarehouseRepository) ListCodesWithPrefix(_ context.Context, prefix string) ([]string, error) {
	return r.rows.codes(prefix, func(w *entities.Warehouse) string { return w.Code }), nil
}

func (r *WarehouseRepository) CreateWarehouse(_ context.Context, warehouse *entities.Warehouse) error {
	return r.rows.insert(warehouse)
}

func (r *WarehouseRepository) GetWarehouse(_ context.Context, id string) (*entities.Warehouse, error) {
	return r.rows.get(id)
}

func (r *WarehouseRepository) UpdateWarehouse(_ context.Context, warehouse *entities.Warehouse) error {
	return r.rows.update(warehouse)
}

func (r *WarehouseRepository) ListWarehouses(_ context.Context) ([]*entities.Warehouse, error) {
	rows := r.rows.filter(nil)
	sortRows(rows, func(a, b *entities.Warehouse) bool { return a.Code < b.Code })
	return rows, nil
}

// ordered flips less when desc is set
func ordered[T any](less func(a, b *T) bool, desc bool) func(a, b *T) bool {
	if !desc {
		return less
	}
	return func(a, b *T) bool { return less(b, a) }
}
