package repositories

import (
	"context"

	"github.com/vsinha/cims/pkg/domain/entities"
)

// MaterialFilter narrows a material listing
type MaterialFilter struct {
	Search   string
	Category entities.MaterialCategory
	Status   entities.MaterialStatus
	Page     Page
	Sort     Sort
}

// MaterialRepository provides access to material master data
type MaterialRepository interface {
	CodeLister
	CreateMaterial(ctx context.Context, material *entities.Material) error
	GetMaterial(ctx context.Context, id string) (*entities.Material, error)
	GetMaterialByCode(ctx context.Context, code string) (*entities.Material, error)
	// UpdateMaterial replaces the stored row only while it still holds
	// material.Version-1, and returns ErrStaleVersion otherwise
	UpdateMaterial(ctx context.Context, material *entities.Material) error
	ListMaterials(ctx context.Context, filter MaterialFilter) ([]*entities.Material, int, error)
}

// SupplierFilter narrows a supplier listing
type SupplierFilter struct {
	Search string
	Status entities.SupplierStatus
	Page   Page
	Sort   Sort
}

// SupplierRepository provides access to suppliers
type SupplierRepository interface {
	CodeLister
	CreateSupplier(ctx context.Context, supplier *entities.Supplier) error
	GetSupplier(ctx context.Context, id string) (*entities.Supplier, error)
	UpdateSupplier(ctx context.Context, supplier *entities.Supplier) error
	DeleteSupplier(ctx context.Context, id string) error
	ListSuppliers(ctx context.Context, filter SupplierFilter) ([]*entities.Supplier, int, error)
}

// WarehouseRepository provides access to stock locations
type WarehouseRepository interface {
	CodeLister
	CreateWarehouse(ctx context.Context, warehouse *entities.Warehouse) error
	GetWarehouse(ctx context.Context, id string) (*entities.Warehouse, error)
	UpdateWarehouse(ctx context.Context, warehouse *entities.Warehouse) error
	ListWarehouses(ctx context.Context) ([]*entities.Warehouse, error)
}
