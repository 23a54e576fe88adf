package services

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/vsinha/cims/pkg/domain/entities"
)

// SortFIFO orders batches by received date, oldest first; batch number breaks ties
func SortFIFO(batches []*entities.StockBatch) {
	sort.SliceStable(batches, func(i, j int) bool {
		if !batches[i].ReceivedDate.Equal(batches[j].ReceivedDate) {
			return batches[i].ReceivedDate.Before(batches[j].ReceivedDate)
		}
		return batches[i].BatchNumber < batches[j].BatchNumber
	})
}

// AllocateFIFO plans taking quantity of a material from available batches using
// FIFO allocation. Batches are not modified; ApplyAllocation commits the plan.
func AllocateFIFO(materialID, warehouseID string, batches []*entities.StockBatch, quantity decimal.Decimal) *entities.AllocationResult {
	result := &entities.AllocationResult{
		MaterialID:      materialID,
		WarehouseID:     warehouseID,
		AllocatedQty:    decimal.Zero,
		RemainingDemand: quantity,
		AllocatedFrom:   []entities.BatchAllocation{},
	}

	var candidates []*entities.StockBatch
	for _, b := range batches {
		if b.MaterialID != materialID || b.Status != entities.BatchAvailable || !b.Quantity.IsPositive() {
			continue
		}
		if warehouseID != "" && b.WarehouseID != warehouseID {
			continue
		}
		candidates = append(candidates, b)
	}
	SortFIFO(candidates)

	remaining := quantity
	for _, b := range candidates {
		if !remaining.IsPositive() {
			break
		}
		take := decimal.Min(remaining, b.Quantity)
		result.AllocatedFrom = append(result.AllocatedFrom, entities.BatchAllocation{
			BatchID:     b.ID,
			BatchNumber: b.BatchNumber,
			Quantity:    take,
			UnitCost:    b.UnitCost,
			ExpiryDate:  b.ExpiryDate,
		})
		result.AllocatedQty = result.AllocatedQty.Add(take)
		remaining = remaining.Sub(take)
	}

	result.RemainingDemand = remaining
	return result
}

// ApplyAllocation deducts an allocation from the batches it was planned on and
// returns the batches that changed. A batch that reaches zero becomes DEPLETED.
func ApplyAllocation(batches []*entities.StockBatch, result *entities.AllocationResult) []*entities.StockBatch {
	byID := make(map[string]*entities.StockBatch, len(batches))
	for _, b := range batches {
		byID[b.ID] = b
	}

	changed := make([]*entities.StockBatch, 0, len(result.AllocatedFrom))
	for _, a := range result.AllocatedFrom {
		b, ok := byID[a.BatchID]
		if !ok {
			continue
		}
		b.Quantity = b.Quantity.Sub(a.Quantity)
		if !b.Quantity.IsPositive() {
			b.Quantity = decimal.Zero
			b.Status = entities.BatchDepleted
		}
		changed = append(changed, b)
	}
	return changed
}
