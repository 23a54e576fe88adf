package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vsinha/cims/pkg/domain/entities"
)

func testBatches() []*entities.StockBatch {
	day := func(d int) time.Time { return time.Date(2026, 1, d, 0, 0, 0, 0, time.UTC) }
	return []*entities.StockBatch{
		{ID: "b2", MaterialID: "CEMENT", WarehouseID: "W1", BatchNumber: "LOT002", Quantity: decimal.NewFromInt(30), UnitCost: decimal.NewFromInt(11), ReceivedDate: day(2), Status: entities.BatchAvailable},
		{ID: "b1", MaterialID: "CEMENT", WarehouseID: "W1", BatchNumber: "LOT001", Quantity: decimal.NewFromInt(50), UnitCost: decimal.NewFromInt(10), ReceivedDate: day(1), Status: entities.BatchAvailable},
		{ID: "b3", MaterialID: "CEMENT", WarehouseID: "W2", BatchNumber: "LOT003", Quantity: decimal.NewFromInt(40), UnitCost: decimal.NewFromInt(12), ReceivedDate: day(1), Status: entities.BatchAvailable},
		{ID: "b4", MaterialID: "CEMENT", WarehouseID: "W1", BatchNumber: "LOT004", Quantity: decimal.NewFromInt(99), UnitCost: decimal.NewFromInt(10), ReceivedDate: day(1), Status: entities.BatchQuarantine},
		{ID: "b5", MaterialID: "STEEL", WarehouseID: "W1", BatchNumber: "LOT005", Quantity: decimal.NewFromInt(99), UnitCost: decimal.NewFromInt(10), ReceivedDate: day(1), Status: entities.BatchAvailable},
	}
}

func TestAllocateFIFO(t *testing.T) {
	tests := []struct {
		name              string
		warehouse         string
		requestedQty      int64
		expectedAllocated int64
		expectedRemaining int64
		expectedBatches   []string
	}{
		{"partial_allocation", "W1", 30, 30, 0, []string{"LOT001"}},
		{"full_lot_allocation", "W1", 50, 50, 0, []string{"LOT001"}},
		{"multi_lot_allocation", "W1", 70, 70, 0, []string{"LOT001", "LOT002"}},
		{"insufficient_inventory", "W1", 200, 80, 120, []string{"LOT001", "LOT002"}},
		{"all_warehouses", "", 100, 100, 0, []string{"LOT001", "LOT003", "LOT002"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batches := testBatches()
			result := AllocateFIFO("CEMENT", tt.warehouse, batches, decimal.NewFromInt(tt.requestedQty))

			if !result.AllocatedQty.Equal(decimal.NewFromInt(tt.expectedAllocated)) {
				t.Errorf("Expected allocated %d, got %s", tt.expectedAllocated, result.AllocatedQty)
			}
			if !result.RemainingDemand.Equal(decimal.NewFromInt(tt.expectedRemaining)) {
				t.Errorf("Expected remaining %d, got %s", tt.expectedRemaining, result.RemainingDemand)
			}
			if len(result.AllocatedFrom) != len(tt.expectedBatches) {
				t.Fatalf("Expected %d batch allocations, got %d", len(tt.expectedBatches), len(result.AllocatedFrom))
			}
			for i, want := range tt.expectedBatches {
				if result.AllocatedFrom[i].BatchNumber != want {
					t.Errorf("Allocation %d: expected %s, got %s", i, want, result.AllocatedFrom[i].BatchNumber)
				}
			}
			for _, b := range batches {
				if b.ID == "b1" && !b.Quantity.Equal(decimal.NewFromInt(50)) {
					t.Errorf("AllocateFIFO must not modify batches, b1 now %s", b.Quantity)
				}
			}
		})
	}
}

func TestApplyAllocation(t *testing.T) {
	batches := testBatches()
	result := AllocateFIFO("CEMENT", "W1", batches, decimal.NewFromInt(60))
	changed := ApplyAllocation(batches, result)

	if len(changed) != 2 {
		t.Fatalf("Expected 2 changed batches, got %d", len(changed))
	}
	first, second := changed[0], changed[1]
	if first.ID != "b1" || !first.Quantity.IsZero() || first.Status != entities.BatchDepleted {
		t.Errorf("Expected b1 depleted, got %+v", first)
	}
	if second.ID != "b2" || !second.Quantity.Equal(decimal.NewFromInt(20)) || second.Status != entities.BatchAvailable {
		t.Errorf("Expected b2 with 20 left, got %+v", second)
	}
	if !result.Value().Equal(decimal.NewFromInt(610)) {
		t.Errorf("Expected allocation value 610, got %s", result.Value())
	}
}
