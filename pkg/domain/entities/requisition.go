package entities

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RequisitionStatus represents the approval state of a material requisition
type RequisitionStatus string

const (
	RequisitionPending   RequisitionStatus = "PENDING"
	RequisitionApproved  RequisitionStatus = "APPROVED"
	RequisitionRejected  RequisitionStatus = "REJECTED"
	RequisitionConverted RequisitionStatus = "CONVERTED"
)

// Urgency of a requisition
type Urgency string

const (
	UrgencyLow    Urgency = "LOW"
	UrgencyMedium Urgency = "MEDIUM"
	UrgencyHigh   Urgency = "HIGH"
)

// IsValid reports whether u is a known urgency
func (u Urgency) IsValid() bool {
	return u == UrgencyLow || u == UrgencyMedium || u == UrgencyHigh
}

// RequisitionItem is one requested material
type RequisitionItem struct {
	MaterialID string          `json:"materialId"`
	Quantity   decimal.Decimal `json:"quantity"`
	Notes      string          `json:"notes,omitempty"`
}

// Requisition is a site's request for materials, later converted to a purchase order
type Requisition struct {
	ID                string            `json:"id"`
	RequisitionNumber string            `json:"requisitionNumber"`
	ProjectID         string            `json:"projectId"`
	RequestedBy       string            `json:"requestedBy"`
	Urgency           Urgency           `json:"urgency"`
	Status            RequisitionStatus `json:"status"`
	Items             []RequisitionItem `json:"items"`
	Notes             string            `json:"notes,omitempty"`
	DecisionComment   string            `json:"decisionComment,omitempty"`
	PurchaseOrderID   string            `json:"purchaseOrderId,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

// Validate checks the invariants of a requisition
func (r *Requisition) Validate() error {
	if r.ProjectID == "" {
		return fmt.Errorf("project cannot be empty")
	}
	if !r.Urgency.IsValid() {
		return fmt.Errorf("unknown urgency %q", r.Urgency)
	}
	if len(r.Items) == 0 {
		return fmt.Errorf("requisition must have at least one item")
	}
	for i, item := range r.Items {
		if item.MaterialID == "" {
			return fmt.Errorf("item %d: material cannot be empty", i+1)
		}
		if !item.Quantity.IsPositive() {
			return fmt.Errorf("item %d: quantity must be positive, got %s", i+1, item.Quantity)
		}
	}
	return nil
}
