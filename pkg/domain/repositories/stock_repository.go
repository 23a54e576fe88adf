package repositories

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/vsinha/cims/pkg/domain/entities"
)

// StockFilter narrows a batch listing
type StockFilter struct {
	MaterialID    string
	WarehouseID   string
	OnlyAvailable bool
	Page          Page
}

// MovementFilter narrows the stock ledger
type MovementFilter struct {
	MaterialID  string
	WarehouseID string
	ProjectID   string
	Created     DateRange
	Limit       int
}

// StockRepository provides access to stock batches and the movement ledger
type StockRepository interface {
	CreateBatch(ctx context.Context, batch *entities.StockBatch) error
	UpdateBatch(ctx context.Context, batch *entities.StockBatch) error
	GetBatch(ctx context.Context, id string) (*entities.StockBatch, error)

	// ListBatches returns batches ordered by received date, oldest first.
	ListBatches(ctx context.Context, filter StockFilter) ([]*entities.StockBatch, int, error)

	// Balance returns the available quantity of a material; an empty
	// warehouseID sums every warehouse.
	Balance(ctx context.Context, materialID, warehouseID string) (decimal.Decimal, error)

	// Balances returns the available quantity of every stocked material.
	Balances(ctx context.Context) (map[string]decimal.Decimal, error)

	RecordMovement(ctx context.Context, movement *entities.StockMovement) error

	// ListMovements returns ledger entries, newest first.
	ListMovements(ctx context.Context, filter MovementFilter) ([]*entities.StockMovement, error)
}
