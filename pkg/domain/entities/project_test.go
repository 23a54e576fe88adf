package entities

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestBOQItem_Usage(t *testing.T) {
	item, err := NewBOQItem("p1", "m1", "bag", decimal.NewFromInt(200), decimal.RequireFromString("9.50"))
	if err != nil {
		t.Fatalf("Expected valid BOQ item: %v", err)
	}

	tests := []struct {
		name      string
		consumed  int64
		usage     string
		critical  bool
		remaining int64
	}{
		{"unused", 0, "0", false, 200},
		{"half", 100, "50", false, 100},
		{"critical_threshold", 180, "90", true, 20},
		{"overconsumed", 220, "110", true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item.ConsumedQty = decimal.NewFromInt(tt.consumed)
			if !item.UsagePercent().Equal(decimal.RequireFromString(tt.usage)) {
				t.Errorf("UsagePercent() = %s, want %s", item.UsagePercent(), tt.usage)
			}
			if item.IsCritical() != tt.critical {
				t.Errorf("IsCritical() = %t, want %t", item.IsCritical(), tt.critical)
			}
			if !item.RemainingQty().Equal(decimal.NewFromInt(tt.remaining)) {
				t.Errorf("RemainingQty() = %s, want %d", item.RemainingQty(), tt.remaining)
			}
		})
	}

	if !item.Amount().Equal(decimal.NewFromInt(1900)) {
		t.Errorf("Amount() = %s, want 1900", item.Amount())
	}
}

func TestNewBOQItem_Validation(t *testing.T) {
	if _, err := NewBOQItem("", "m1", "bag", decimal.NewFromInt(1), decimal.Zero); err == nil {
		t.Error("Expected error for empty project")
	}
	if _, err := NewBOQItem("p1", "m1", "bag", decimal.Zero, decimal.Zero); err == nil {
		t.Error("Expected error for zero planned quantity")
	}
}

func TestProject_StatusAndBudget(t *testing.T) {
	if !ProjectPlanning.CanTransitionTo(ProjectActive) {
		t.Error("Expected PLANNING -> ACTIVE to be allowed")
	}
	if ProjectCompleted.CanTransitionTo(ProjectActive) {
		t.Error("Expected COMPLETED to be terminal")
	}

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)
	p := &Project{Name: "Tower", Location: "Site A", Status: ProjectPlanning, StartDate: start, EndDate: &end}
	if err := p.Validate(); err == nil {
		t.Error("Expected end date before start date to fail validation")
	}

	p.EndDate = nil
	p.Budget = decimal.NewFromInt(1000)
	p.Spent = decimal.NewFromInt(1250)
	if !p.OverBudget() {
		t.Error("Expected project to be over budget")
	}
	if !p.Utilization().Equal(decimal.NewFromInt(125)) {
		t.Errorf("Utilization() = %s, want 125", p.Utilization())
	}
}
