package entities

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// POStatus represents the approval and fulfilment state of a purchase order
type POStatus string

const (
	PODraft           POStatus = "DRAFT"
	POPendingApproval POStatus = "PENDING_APPROVAL"
	POApproved        POStatus = "APPROVED"
	PORejected        POStatus = "REJECTED"
	POIssued          POStatus = "ISSUED"
	POCompleted       POStatus = "COMPLETED"
	POCancelled       POStatus = "CANCELLED"
)

var poTransitions = map[POStatus][]POStatus{
	PODraft:           {POPendingApproval, POCancelled},
	POPendingApproval: {POApproved, PORejected, POCancelled},
	POApproved:        {POIssued, POCancelled},
	PORejected:        {PODraft},
	POIssued:          {POCompleted},
}

// IsValid reports whether s is a known PO status
func (s POStatus) IsValid() bool {
	switch s {
	case PODraft, POPendingApproval, POApproved, PORejected, POIssued, POCompleted, POCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether a purchase order may move from s to next
func (s POStatus) CanTransitionTo(next POStatus) bool {
	for _, allowed := range poTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsOpen reports whether goods are still expected against an order in this state
func (s POStatus) IsOpen() bool {
	return s == POApproved || s == POIssued
}

// POAction names an entry in the approval history
type POAction string

const (
	POActionCreated   POAction = "CREATED"
	POActionUpdated   POAction = "UPDATED"
	POActionSubmitted POAction = "SUBMITTED"
	POActionApproved  POAction = "APPROVED"
	POActionRejected  POAction = "REJECTED"
	POActionIssued    POAction = "ISSUED"
	POActionCancelled POAction = "CANCELLED"
	POActionRevised   POAction = "REVISED"
	POActionCompleted POAction = "COMPLETED"
)

var actionForStatus = map[POStatus]POAction{
	PODraft:           POActionRevised,
	POPendingApproval: POActionSubmitted,
	POApproved:        POActionApproved,
	PORejected:        POActionRejected,
	POIssued:          POActionIssued,
	POCompleted:       POActionCompleted,
	POCancelled:       POActionCancelled,
}

// POAuditEntry records who moved a purchase order and why
type POAuditEntry struct {
	Action      POAction  `json:"action"`
	PerformedBy string    `json:"performedBy"`
	Role        Role      `json:"role,omitempty"`
	Comment     string    `json:"comment,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// PurchaseOrderItem is one ordered material line
type PurchaseOrderItem struct {
	ID          string          `json:"id"`
	MaterialID  string          `json:"materialId"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	ReceivedQty decimal.Decimal `json:"receivedQty"`
	Notes       string          `json:"notes,omitempty"`
}

// LineTotal returns quantity times unit price
func (i PurchaseOrderItem) LineTotal() decimal.Decimal {
	return i.Quantity.Mul(i.UnitPrice)
}

// Outstanding returns the quantity still expected, never negative
func (i PurchaseOrderItem) Outstanding() decimal.Decimal {
	rest := i.Quantity.Sub(i.ReceivedQty)
	if rest.IsNegative() {
		return decimal.Zero
	}
	return rest
}

// PurchaseOrder is an order for materials placed with a supplier
type PurchaseOrder struct {
	ID                   string              `json:"id"`
	PONumber             string              `json:"poNumber"`
	SupplierID           string              `json:"supplierId"`
	ProjectID            string              `json:"projectId,omitempty"`
	Status               POStatus            `json:"status"`
	Items                []PurchaseOrderItem `json:"items"`
	TotalAmount          decimal.Decimal     `json:"totalAmount"`
	ExpectedDeliveryDate *time.Time          `json:"expectedDeliveryDate,omitempty"`
	DeliveryAddress      string              `json:"deliveryAddress,omitempty"`
	Notes                string              `json:"notes,omitempty"`
	TermsAndConditions   string              `json:"termsAndConditions,omitempty"`
	ApprovalHistory      []POAuditEntry      `json:"approvalHistory"`
	CreatedBy            string              `json:"createdBy"`
	CreatedAt            time.Time           `json:"createdAt"`
	UpdatedAt            time.Time           `json:"updatedAt"`
}

// Validate checks the invariants of the order lines and header
func (po *PurchaseOrder) Validate() error {
	if po.SupplierID == "" {
		return fmt.Errorf("supplier cannot be empty")
	}
	if len(po.Items) == 0 {
		return fmt.Errorf("purchase order must have at least one item")
	}
	for i, item := range po.Items {
		if item.MaterialID == "" {
			return fmt.Errorf("item %d: material cannot be empty", i+1)
		}
		if !item.Quantity.IsPositive() {
			return fmt.Errorf("item %d: quantity must be positive, got %s", i+1, item.Quantity)
		}
		if !item.UnitPrice.IsPositive() {
			return fmt.Errorf("item %d: unit price must be positive, got %s", i+1, item.UnitPrice)
		}
	}
	return nil
}

// RecalculateTotal sums all line totals into TotalAmount
func (po *PurchaseOrder) RecalculateTotal() {
	total := decimal.Zero
	for _, item := range po.Items {
		total = total.Add(item.LineTotal())
	}
	po.TotalAmount = total
}

// Transition moves the order to next and appends an audit entry
func (po *PurchaseOrder) Transition(next POStatus, user *User, comment string, at time.Time) error {
	if !po.Status.CanTransitionTo(next) {
		return fmt.Errorf("cannot move purchase order %s from %s to %s", po.PONumber, po.Status, next)
	}
	po.Status = next
	po.Record(actionForStatus[next], user, comment, at)
	return nil
}

// Record appends an audit entry without changing state
func (po *PurchaseOrder) Record(action POAction, user *User, comment string, at time.Time) {
	entry := POAuditEntry{Action: action, Comment: comment, Timestamp: at}
	if user != nil {
		entry.PerformedBy = user.Name
		entry.Role = user.Role
	}
	po.ApprovalHistory = append(po.ApprovalHistory, entry)
	po.UpdatedAt = at
}

// Item returns the line with the given id
func (po *PurchaseOrder) Item(itemID string) (*PurchaseOrderItem, bool) {
	for i := range po.Items {
		if po.Items[i].ID == itemID {
			return &po.Items[i], true
		}
	}
	return nil, false
}

// FullyReceived reports whether every line has been received in full
func (po *PurchaseOrder) FullyReceived() bool {
	for _, item := range po.Items {
		if item.ReceivedQty.LessThan(item.Quantity) {
			return false
		}
	}
	return true
}

// IsOverdue reports whether an issued order is past its expected delivery date
func (po *PurchaseOrder) IsOverdue(now time.Time) bool {
	return po.Status == POIssued && po.ExpectedDeliveryDate != nil && now.After(*po.ExpectedDeliveryDate)
}
