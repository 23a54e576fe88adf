package repositories

import (
	"context"

	"github.com/vsinha/cims/pkg/domain/entities"
)

// PurchaseOrderFilter narrows a purchase order listing
type PurchaseOrderFilter struct {
	Statuses   []entities.POStatus
	SupplierID string
	ProjectID  string
	Created    DateRange
	Search     string
	Page       Page
	Sort       Sort
}

// PurchaseOrderRepository provides access to purchase orders and their lines
type PurchaseOrderRepository interface {
	CodeLister
	CreatePurchaseOrder(ctx context.Context, po *entities.PurchaseOrder) error
	GetPurchaseOrder(ctx context.Context, id string) (*entities.PurchaseOrder, error)
	UpdatePurchaseOrder(ctx context.Context, po *entities.PurchaseOrder) error
	DeletePurchaseOrder(ctx context.Context, id string) error
	ListPurchaseOrders(ctx context.Context, filter PurchaseOrderFilter) ([]*entities.PurchaseOrder, int, error)
}

// RequisitionFilter narrows a requisition listing
type RequisitionFilter struct {
	Status      entities.RequisitionStatus
	ProjectID   string
	RequestedBy string
	Page        Page
}

// RequisitionRepository provides access to material requisitions
type RequisitionRepository interface {
	CodeLister
	CreateRequisition(ctx context.Context, req *entities.Requisition) error
	GetRequisition(ctx context.Context, id string) (*entities.Requisition, error)
	UpdateRequisition(ctx context.Context, req *entities.Requisition) error
	ListRequisitions(ctx context.Context, filter RequisitionFilter) ([]*entities.Requisition, int, error)
}

// GRNFilter narrows a GRN listing
type GRNFilter struct {
	PurchaseOrderID string
	SupplierID      string
	Status          entities.GRNStatus
	Received        DateRange
	Page            Page
}

// GRNRepository provides access to goods received notes
type GRNRepository interface {
	CodeLister
	CreateGRN(ctx context.Context, grn *entities.GoodsReceivedNote) error
	GetGRN(ctx context.Context, id string) (*entities.GoodsReceivedNote, error)
	UpdateGRN(ctx context.Context, grn *entities.GoodsReceivedNote) error
	ListGRNs(ctx context.Context, filter GRNFilter) ([]*entities.GoodsReceivedNote, int, error)
}
