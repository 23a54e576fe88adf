package memory

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/vsinha/cims/pkg/domain/entities"
	"github.com/vsinha/cims/pkg/domain/repositories"
	"github.com/vsinha/cims/pkg/domain/services"
)

// StockRepository provides in-memory batch and movement storage
type StockRepository struct {
	batches   *table[entities.StockBatch]
	movements *table[entities.StockMovement]
}

// NewStockRepository creates a new in-memory stock repository
func NewStockRepository() *StockRepository {
	return &StockRepository{
		batches: newTable("stock batch",
			func(b *entities.StockBatch) string { return b.ID },
			func(b *entities.StockBatch) *entities.StockBatch {
				c := *b
				c.ExpiryDate = cloneTime(b.ExpiryDate)
				return &c
			},
		),
		movements: newTable("stock movement",
			func(m *entities.StockMovement) string { return m.ID },
			func(m *entities.StockMovement) *entities.StockMovement { c := *m; return &c },
		),
	}
}

var _ repositories.StockRepository = (*StockRepository)(nil)

func (r *StockRepository) CreateBatch(_ context.Context, batch *entities.StockBatch) error {
	return r.batches.insert(batch)
}

func (r *StockRepository) UpdateBatch(_ context.Context, batch *entities.StockBatch) error {
	return r.batches.update(batch)
}

func (r *StockRepository) GetBatch(_ context.Context, id string) (*entities.StockBatch, error) {
	return r.batches.get(id)
}

// ListBatches returns the matching batches, oldest received first
func (r *StockRepository) ListBatches(_ context.Context, filter repositories.StockFilter) ([]*entities.StockBatch, int, error) {
	rows := r.batches.filter(func(b *entities.StockBatch) bool {
		if filter.MaterialID != "" && b.MaterialID != filter.MaterialID {
			return false
		}
		if filter.WarehouseID != "" && b.WarehouseID != filter.WarehouseID {
			return false
		}
		return !filter.OnlyAvailable || (b.Status == entities.BatchAvailable && b.Quantity.IsPositive())
	})
	services.SortFIFO(rows)
	page, total := window(rows, filter.Page, nil)
	return page, total, nil
}

func (r *StockRepository) Balance(_ context.Context, materialID, warehouseID string) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, b := range r.batches.filter(func(b *entities.StockBatch) bool {
		return b.MaterialID == materialID && b.Status == entities.BatchAvailable &&
			(warehouseID == "" || b.WarehouseID == warehouseID)
	}) {
		total = total.Add(b.Quantity)
	}
	return total, nil
}

func (r *StockRepository) Balances(_ context.Context) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal)
	for _, b := range r.batches.filter(func(b *entities.StockBatch) bool { return b.Status == entities.BatchAvailable }) {
		out[b.MaterialID] = out[b.MaterialID].Add(b.Quantity)
	}
	return out, nil
}

func (r *StockRepository) RecordMovement(_ context.Context, movement *entities.StockMovement) error {
	return r.movements.insert(movement)
}

// ListMovements returns ledger entries newest first
func (r *StockRepository) ListMovements(_ context.Context, filter repositories.MovementFilter) ([]*entities.StockMovement, error) {
	rows := r.movements.filter(func(m *entities.StockMovement) bool {
		if filter.MaterialID != "" && m.MaterialID != filter.MaterialID {
			return false
		}
		if filter.WarehouseID != "" && m.WarehouseID != filter.WarehouseID {
			return false
		}
		if filter.ProjectID != "" && m.ProjectID != filter.ProjectID {
			return false
		}
		return filter.Created.Contains(m.CreatedAt)
	})

	// insertion order breaks ties between movements recorded in the same instant
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	sortRows(rows, func(a, b *entities.StockMovement) bool { return a.CreatedAt.After(b.CreatedAt) })

	if filter.Limit > 0 && len(rows) > filter.Limit {
		rows = rows[:filter.Limit]
	}
	return rows, nil
}
