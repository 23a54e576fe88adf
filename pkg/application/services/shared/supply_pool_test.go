package shared

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestSupplyPool_DrawOrder(t *testing.T) {
	pool := NewSupplyPool()
	pool.AddStock("CEM", decimal.NewFromInt(50))
	pool.AddOnOrder("CEM", decimal.NewFromInt(30))

	tests := []struct {
		name       string
		demand     int64
		fromStock  int64
		fromOrders int64
		short      int64
	}{
		{"covered by stock", 40, 40, 0, 0},
		{"spills into open orders", 25, 10, 15, 0},
		{"exhausts everything", 20, 0, 15, 5},
		{"nothing left", 8, 0, 0, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := pool.Draw("CEM", decimal.NewFromInt(tt.demand))
			if !d.FromStock.Equal(decimal.NewFromInt(tt.fromStock)) {
				t.Errorf("Expected %d from stock, got %s", tt.fromStock, d.FromStock)
			}
			if !d.FromOrders.Equal(decimal.NewFromInt(tt.fromOrders)) {
				t.Errorf("Expected %d from orders, got %s", tt.fromOrders, d.FromOrders)
			}
			if !d.Short.Equal(decimal.NewFromInt(tt.short)) {
				t.Errorf("Expected shortage %d, got %s", tt.short, d.Short)
			}
		})
	}
}

func TestSupplyPool_Totals(t *testing.T) {
	pool := NewSupplyPool()
	if !pool.CoverageRatio().IsZero() {
		t.Errorf("Expected zero coverage for empty pool, got %s", pool.CoverageRatio())
	}

	pool.AddStock("STL", decimal.NewFromInt(6))
	pool.AddStock("STL", decimal.NewFromInt(-3))
	pool.Draw("STL", decimal.NewFromInt(8))

	if !pool.TotalDemand().Equal(decimal.NewFromInt(8)) {
		t.Errorf("Expected total demand 8, got %s", pool.TotalDemand())
	}
	if !pool.CoverageRatio().Equal(decimal.NewFromFloat(0.75)) {
		t.Errorf("Expected coverage 0.75, got %s", pool.CoverageRatio())
	}

	materials := pool.Materials()
	if len(materials) != 1 || materials[0] != "STL" {
		t.Errorf("Expected [STL], got %v", materials)
	}
	if pool.String() == "SupplyPool{empty}" {
		t.Error("Expected non-empty description")
	}
}
