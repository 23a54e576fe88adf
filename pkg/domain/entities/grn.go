package entities

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// GRNStatus represents the inspection state of a goods received note
type GRNStatus string

const (
	GRNPending   GRNStatus = "PENDING"
	GRNInspected GRNStatus = "INSPECTED"
	GRNApproved  GRNStatus = "APPROVED"
	GRNRejected  GRNStatus = "REJECTED"
)

// IsFinal reports whether the GRN can no longer change
func (s GRNStatus) IsFinal() bool {
	return s == GRNApproved || s == GRNRejected
}

// GRNItem is the receipt of one purchase order line
type GRNItem struct {
	POItemID    string          `json:"poItemId"`
	MaterialID  string          `json:"materialId"`
	Quantity    decimal.Decimal `json:"quantity"`
	AcceptedQty decimal.Decimal `json:"acceptedQty"`
	RejectedQty decimal.Decimal `json:"rejectedQty"`
	BatchNumber string          `json:"batchNumber,omitempty"`
	ExpiryDate  *time.Time      `json:"expiryDate,omitempty"`
}

// Validate checks that the received quantity splits exactly into accepted and rejected
func (i GRNItem) Validate() error {
	if i.POItemID == "" {
		return fmt.Errorf("purchase order item cannot be empty")
	}
	if !i.Quantity.IsPositive() {
		return fmt.Errorf("received quantity must be positive, got %s", i.Quantity)
	}
	if i.AcceptedQty.IsNegative() || i.RejectedQty.IsNegative() {
		return fmt.Errorf("accepted and rejected quantities cannot be negative")
	}
	if !i.AcceptedQty.Add(i.RejectedQty).Equal(i.Quantity) {
		return fmt.Errorf("accepted %s plus rejected %s must equal received %s", i.AcceptedQty, i.RejectedQty, i.Quantity)
	}
	return nil
}

// GoodsReceivedNote confirms the receipt of ordered materials against a purchase order
type GoodsReceivedNote struct {
	ID              string    `json:"id"`
	GRNNumber       string    `json:"grnNumber"`
	PurchaseOrderID string    `json:"poId"`
	SupplierID      string    `json:"supplierId"`
	WarehouseID     string    `json:"warehouseId"`
	ReceivedDate    time.Time `json:"receivedDate"`
	Status          GRNStatus `json:"status"`
	EvidenceURL     string    `json:"evidenceUrl,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	Items           []GRNItem `json:"items"`
	ReceivedBy      string    `json:"receivedBy"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Validate checks header and items
func (g *GoodsReceivedNote) Validate() error {
	if g.PurchaseOrderID == "" {
		return fmt.Errorf("purchase order cannot be empty")
	}
	if g.WarehouseID == "" {
		return fmt.Errorf("warehouse cannot be empty")
	}
	if len(g.Items) == 0 {
		return fmt.Errorf("GRN must have at least one item")
	}
	seen := make(map[string]bool, len(g.Items))
	for n, item := range g.Items {
		if err := item.Validate(); err != nil {
			return fmt.Errorf("item %d: %w", n+1, err)
		}
		if seen[item.POItemID] {
			return fmt.Errorf("item %d: purchase order item %s listed twice", n+1, item.POItemID)
		}
		seen[item.POItemID] = true
	}
	return nil
}

// Totals returns the received, accepted and rejected sums across items
func (g *GoodsReceivedNote) Totals() (received, accepted, rejected decimal.Decimal) {
	for _, item := range g.Items {
		received = received.Add(item.Quantity)
		accepted = accepted.Add(item.AcceptedQty)
		rejected = rejected.Add(item.RejectedQty)
	}
	return received, accepted, rejected
}
