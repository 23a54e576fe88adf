package events

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/vsinha/cims/pkg/domain/entities"
)

const (
	MaterialCreatedEvent  = "material.created"
	MaterialUpdatedEvent  = "material.updated"
	MaterialObsoleteEvent = "material.obsoleted"

	PurchaseOrderCreatedEvent   = "purchase_order.created"
	PurchaseOrderUpdatedEvent   = "purchase_order.updated"
	PurchaseOrderSubmittedEvent = "purchase_order.submitted"
	PurchaseOrderApprovedEvent  = "purchase_order.approved"
	PurchaseOrderRejectedEvent  = "purchase_order.rejected"
	PurchaseOrderIssuedEvent    = "purchase_order.issued"
	PurchaseOrderCancelledEvent = "purchase_order.cancelled"
	PurchaseOrderRevisedEvent   = "purchase_order.revised"
	PurchaseOrderCompletedEvent = "purchase_order.completed"

	RequisitionCreatedEvent   = "requisition.created"
	RequisitionApprovedEvent  = "requisition.approved"
	RequisitionRejectedEvent  = "requisition.rejected"
	RequisitionConvertedEvent = "requisition.converted"

	GRNCreatedEvent   = "grn.created"
	GRNInspectedEvent = "grn.inspected"
	GRNApprovedEvent  = "grn.approved"
	GRNRejectedEvent  = "grn.rejected"

	StockReceivedEvent    = "stock.received"
	StockIssuedEvent      = "stock.issued"
	StockAdjustedEvent    = "stock.adjusted"
	StockTransferredEvent = "stock.transferred"
	StockReturnedEvent    = "stock.returned"

	ProjectStatusChangedEvent = "project.status_changed"
	AlertRaisedEvent          = "alert.raised"
)

type MaterialChanged struct {
	Material entities.Material `json:"material"`
}

type PurchaseOrderChanged struct {
	PurchaseOrderID string            `json:"purchaseOrderId"`
	PONumber        string            `json:"poNumber"`
	SupplierID      string            `json:"supplierId"`
	Status          entities.POStatus `json:"status"`
	TotalAmount     decimal.Decimal   `json:"totalAmount"`
	PerformedBy     string            `json:"performedBy,omitempty"`
	Comment         string            `json:"comment,omitempty"`
}

type RequisitionChanged struct {
	RequisitionID     string                     `json:"requisitionId"`
	RequisitionNumber string                     `json:"requisitionNumber"`
	ProjectID         string                     `json:"projectId"`
	Status            entities.RequisitionStatus `json:"status"`
	PurchaseOrderID   string                     `json:"purchaseOrderId,omitempty"`
}

type GRNChanged struct {
	GRNID           string             `json:"grnId"`
	GRNNumber       string             `json:"grnNumber"`
	PurchaseOrderID string             `json:"purchaseOrderId"`
	Status          entities.GRNStatus `json:"status"`
	AcceptedQty     decimal.Decimal    `json:"acceptedQty"`
	RejectedQty     decimal.Decimal    `json:"rejectedQty"`
}

type StockMoved struct {
	Movements  []entities.StockMovement   `json:"movements"`
	Allocation *entities.AllocationResult `json:"allocation,omitempty"`
}

type ProjectStatusChanged struct {
	ProjectID string                 `json:"projectId"`
	From      entities.ProjectStatus `json:"from"`
	To        entities.ProjectStatus `json:"to"`
}

type AlertRaised struct {
	Alert entities.Alert `json:"alert"`
}

func NewMaterialEvent(eventType string, m *entities.Material) Event {
	return NewEvent(eventType, stream("material", m.ID), MaterialChanged{Material: *m})
}

func NewPurchaseOrderEvent(eventType string, po *entities.PurchaseOrder, performedBy, comment string) Event {
	return NewEvent(eventType, stream("purchase_order", po.ID), PurchaseOrderChanged{
		PurchaseOrderID: po.ID,
		PONumber:        po.PONumber,
		SupplierID:      po.SupplierID,
		Status:          po.Status,
		TotalAmount:     po.TotalAmount,
		PerformedBy:     performedBy,
		Comment:         comment,
	})
}

// PurchaseOrderEventFor maps a status to the event announcing it
func PurchaseOrderEventFor(status entities.POStatus) string {
	switch status {
	case entities.POPendingApproval:
		return PurchaseOrderSubmittedEvent
	case entities.POApproved:
		return PurchaseOrderApprovedEvent
	case entities.PORejected:
		return PurchaseOrderRejectedEvent
	case entities.POIssued:
		return PurchaseOrderIssuedEvent
	case entities.POCancelled:
		return PurchaseOrderCancelledEvent
	case entities.POCompleted:
		return PurchaseOrderCompletedEvent
	case entities.PODraft:
		return PurchaseOrderRevisedEvent
	}
	return PurchaseOrderUpdatedEvent
}

func NewRequisitionEvent(eventType string, r *entities.Requisition) Event {
	return NewEvent(eventType, stream("requisition", r.ID), RequisitionChanged{
		RequisitionID:     r.ID,
		RequisitionNumber: r.RequisitionNumber,
		ProjectID:         r.ProjectID,
		Status:            r.Status,
		PurchaseOrderID:   r.PurchaseOrderID,
	})
}

func NewGRNEvent(eventType string, g *entities.GoodsReceivedNote) Event {
	_, accepted, rejected := g.Totals()
	return NewEvent(eventType, stream("grn", g.ID), GRNChanged{
		GRNID:           g.ID,
		GRNNumber:       g.GRNNumber,
		PurchaseOrderID: g.PurchaseOrderID,
		Status:          g.Status,
		AcceptedQty:     accepted,
		RejectedQty:     rejected,
	})
}

func NewStockEvent(eventType, materialID string, movements []entities.StockMovement, allocation *entities.AllocationResult) Event {
	return NewEvent(eventType, stream("stock", materialID), StockMoved{Movements: movements, Allocation: allocation})
}

func NewProjectStatusEvent(projectID string, from, to entities.ProjectStatus) Event {
	return NewEvent(ProjectStatusChangedEvent, stream("project", projectID), ProjectStatusChanged{
		ProjectID: projectID,
		From:      from,
		To:        to,
	})
}

func NewAlertEvent(a *entities.Alert) Event {
	return NewEvent(AlertRaisedEvent, stream("alert", a.ID), AlertRaised{Alert: *a})
}

func stream(kind, id string) string {
	return kind + "-" + id
}

// StreamKind returns the aggregate kind encoded in a stream id
func StreamKind(streamID string) string {
	kind, _, _ := strings.Cut(streamID, "-")
	return kind
}
