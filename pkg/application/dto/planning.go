package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// PlanningResult is the outcome of netting BOQ demand against stock and open orders
type PlanningResult struct {
	GeneratedAt        time.Time           `json:"generatedAt"`
	Allocations        []PlanAllocation    `json:"allocations"`
	Shortages          []Shortage          `json:"shortages"`
	SuggestedPurchases []SuggestedPurchase `json:"suggestedPurchases"`
}

// PlanAllocation shows how one project's remaining BOQ demand for a material is covered
type PlanAllocation struct {
	ProjectID      string          `json:"projectId"`
	ProjectCode    string          `json:"projectCode"`
	MaterialID     string          `json:"materialId"`
	MaterialCode   string          `json:"materialCode"`
	Required       decimal.Decimal `json:"required"`
	FromStock      decimal.Decimal `json:"fromStock"`
	FromOpenOrders decimal.Decimal `json:"fromOpenOrders"`
}

// Shortage is demand that neither stock nor open orders cover
type Shortage struct {
	ProjectID    string          `json:"projectId"`
	ProjectCode  string          `json:"projectCode"`
	MaterialID   string          `json:"materialId"`
	MaterialCode string          `json:"materialCode"`
	MaterialName string          `json:"materialName"`
	Unit         string          `json:"unit"`
	ShortQty     decimal.Decimal `json:"shortQty"`
	NeedDate     time.Time       `json:"needDate"`
}

// SuggestedPurchase is a proposed purchase order line for one material
type SuggestedPurchase struct {
	MaterialID            string          `json:"materialId"`
	MaterialCode          string          `json:"materialCode"`
	MaterialName          string          `json:"materialName"`
	Unit                  string          `json:"unit"`
	ShortageQty           decimal.Decimal `json:"shortageQty"`
	SuggestedQty          decimal.Decimal `json:"suggestedQty"`
	UnitPrice             decimal.Decimal `json:"unitPrice"`
	EstimatedCost         decimal.Decimal `json:"estimatedCost"`
	PreferredSupplierID   string          `json:"preferredSupplierId,omitempty"`
	PreferredSupplierName string          `json:"preferredSupplierName,omitempty"`
	NeedDate              time.Time       `json:"needDate"`
}

// TotalShortage sums every shortage quantity
func (r *PlanningResult) TotalShortage() decimal.Decimal {
	total := decimal.Zero
	for _, s := range r.Shortages {
		total = total.Add(s.ShortQty)
	}
	return total
}

// EstimatedCost sums the cost of every suggested purchase
func (r *PlanningResult) EstimatedCost() decimal.Decimal {
	total := decimal.Zero
	for _, p := range r.SuggestedPurchases {
		total = total.Add(p.EstimatedCost)
	}
	return total
}
