package entities

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Warehouse is a physical stock location, either a central store or a site store
type Warehouse struct {
	ID                 string          `json:"id"`
	Code               string          `json:"code"`
	Name               string          `json:"name"`
	Location           string          `json:"location"`
	Address            string          `json:"address,omitempty"`
	Capacity           decimal.Decimal `json:"capacity"`
	CurrentUtilization decimal.Decimal `json:"currentUtilization"`
	IsActive           bool            `json:"isActive"`
	ManagerID          string          `json:"managerId,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// Validate checks the invariants of a warehouse record
func (w *Warehouse) Validate() error {
	if strings.TrimSpace(w.Name) == "" {
		return fmt.Errorf("warehouse name cannot be empty")
	}
	if strings.TrimSpace(w.Location) == "" {
		return fmt.Errorf("warehouse location cannot be empty")
	}
	if w.Capacity.IsNegative() {
		return fmt.Errorf("capacity cannot be negative, got %s", w.Capacity)
	}
	return nil
}

// Utilization returns stocked quantity as a percentage of capacity
func (w *Warehouse) Utilization(stocked decimal.Decimal) decimal.Decimal {
	if !w.Capacity.IsPositive() {
		return decimal.Zero
	}
	return stocked.Div(w.Capacity).Mul(decimal.NewFromInt(100)).Round(2)
}
