package memory

import (
	"context"
	"slices"

	"github.com/vsinha/cims/pkg/domain/entities"
	"github.com/vsinha/cims/pkg/domain/repositories"
)

// PurchaseOrderRepository provides in-memory purchase order storage
type PurchaseOrderRepository struct {
	rows *table[entities.PurchaseOrder]
}

// NewPurchaseOrderRepository creates a new in-memory purchase order repository
func NewPurchaseOrderRepository() *PurchaseOrderRepository {
	return &PurchaseOrderRepository{
		rows: newTable("purchase order",
			func(po *entities.PurchaseOrder) string { return po.ID },
			func(po *entities.PurchaseOrder) *entities.PurchaseOrder {
				c := *po
				c.Items = cloneSlice(po.Items)
				c.ApprovalHistory = cloneSlice(po.ApprovalHistory)
				c.ExpectedDeliveryDate = cloneTime(po.ExpectedDeliveryDate)
				return &c
			},
			func(po *entities.PurchaseOrder) string { return po.PONumber },
		),
	}
}

var _ repositories.PurchaseOrderRepository = (*PurchaseOrderRepository)(nil)

func (r *PurchaseOrderRepository) ListCodesWithPrefix(_ context.Context, prefix string) ([]string, error) {
	return r.rows.codes(prefix, func(po *entities.PurchaseOrder) string { return po.PONumber }), nil
}

func (r *PurchaseOrderRepository) CreatePurchaseOrder(_ context.Context, po *entities.PurchaseOrder) error {
	return r.rows.insert(po)
}

func (r *PurchaseOrderRepository) GetPurchaseOrder(_ context.Context, id string) (*entities.PurchaseOrder, error) {
	return r.rows.get(id)
}

func (r *PurchaseOrderRepository) UpdatePurchaseOrder(_ context.Context, po *entities.PurchaseOrder) error {
	return r.rows.update(po)
}

func (r *PurchaseOrderRepository) DeletePurchaseOrder(_ context.Context, id string) error {
	return r.rows.remove(id)
}

func (r *PurchaseOrderRepository) ListPurchaseOrders(_ context.Context, filter repositories.PurchaseOrderFilter) ([]*entities.PurchaseOrder, int, error) {
	rows := r.rows.filter(func(po *entities.PurchaseOrder) bool {
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, po.Status) {
			return false
		}
		if filter.SupplierID != "" && po.SupplierID != filter.SupplierID {
			return false
		}
		if filter.ProjectID != "" && po.ProjectID != filter.ProjectID {
			return false
		}
		if filter.Search != "" && !containsFold(po.PONumber, filter.Search) {
			return false
		}
		return filter.Created.Contains(po.CreatedAt)
	})

	less := func(a, b *entities.PurchaseOrder) bool {
		switch filter.Sort.Field {
		case "poNumber":
			return a.PONumber < b.PONumber
		case "totalAmount":
			return a.TotalAmount.LessThan(b.TotalAmount)
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	page, total := window(rows, filter.Page, ordered(less, filter.Sort.Desc))
	return page, total, nil
}

// RequisitionRepository provides in-memory requisition storage
type RequisitionRepository struct {
	rows *table[entities.Requisition]
}

// NewRequisitionRepository creates a new in-memory requisition repository
func NewRequisitionRepository() *RequisitionRepository {
	return &RequisitionRepository{
		rows: newTable("requisition",
			func(req *entities.Requisition) string { return req.ID },
			func(req *entities.Requisition) *entities.Requisition {
				c := *req
				c.Items = cloneSlice(req.Items)
				return &c
			},
			func(req *entities.Requisition) string { return req.RequisitionNumber },
		),
	}
}

var _ repositories.RequisitionRepository = (*RequisitionRepository)(nil)

func (r *RequisitionRepository) ListCodesWithPrefix(_ context.Context, prefix string) ([]string, error) {
	return r.rows.codes(prefix, func(req *entities.Requisition) string { return req.RequisitionNumber }), nil
}

func (r *RequisitionRepository) CreateRequisition(_ context.Context, req *entities.Requisition) error {
	return r.rows.insert(req)
}

func (r *RequisitionRepository) GetRequisition(_ context.Context, id string) (*entities.Requisition, error) {
	return r.rows.get(id)
}

func (r *RequisitionRepository) UpdateRequisition(_ context.Context, req *entities.Requisition) error {
	return r.rows.update(req)
}

func (r *RequisitionRepository) ListRequisitions(_ context.Context, filter repositories.RequisitionFilter) ([]*entities.Requisition, int, error) {
	rows := r.rows.filter(func(req *entities.Requisition) bool {
		if filter.Status != "" && req.Status != filter.Status {
			return false
		}
		if filter.ProjectID != "" && req.ProjectID != filter.ProjectID {
			return false
		}
		return filter.RequestedBy == "" || req.RequestedBy == filter.RequestedBy
	})
	page, total := window(rows, filter.Page, func(a, b *entities.Requisition) bool {
		return a.CreatedAt.After(b.CreatedAt)
	})
	return page, total, nil
}

// GRNRepository provides in-memory goods received note storage
type GRNRepository struct {
	rows *table[entities.GoodsReceivedNote]
}

// NewGRNRepository creates a new in-memory GRN repository
func NewGRNRepository() *GRNRepository {
	return &GRNRepository{
		rows: newTable("grn",
			func(g *entities.GoodsReceivedNote) string { return g.ID },
			func(g *entities.GoodsReceivedNote) *entities.GoodsReceivedNote {
				c := *g
				c.Items = make([]entities.GRNItem, len(g.Items))
				for i, item := range g.Items {
					item.ExpiryDate = cloneTime(item.ExpiryDate)
					c.Items[i] = item
				}
				return &c
			},
			func(g *entities.GoodsReceivedNote) string { return g.GRNNumber },
		),
	}
}

var _ repositories.GRNRepository = (*GRNRepository)(nil)

func (r *GRNRepository) ListCodesWithPrefix(_ context.Context, prefix string) ([]string, error) {
	return r.rows.codes(prefix, func(g *entities.GoodsReceivedNote) string { return g.GRNNumber }), nil
}

func (r *GRNRepository) CreateGRN(_ context.Context, grn *entities.GoodsReceivedNote) error {
	return r.rows.insert(grn)
}

func (r *GRNRepository) GetGRN(_ context.Context, id string) (*entities.GoodsReceivedNote, error) {
	return r.rows.get(id)
}

func (r *GRNRepository) UpdateGRN(_ context.Context, grn *entities.GoodsReceivedNote) error {
	return r.rows.update(grn)
}

func (r *GRNRepository) ListGRNs(_ context.Context, filter repositories.GRNFilter) ([]*entities.GoodsReceivedNote, int, error) {
	rows := r.rows.filter(func(g *entities.GoodsReceivedNote) bool {
		if filter.PurchaseOrderID != "" && g.PurchaseOrderID != filter.PurchaseOrderID {
			return false
		}
		if filter.SupplierID != "" && g.SupplierID != filter.SupplierID {
			return false
		}
		if filter.Status != "" && g.Status != filter.Status {
			return false
		}
		return filter.Received.Contains(g.ReceivedDate)
	})
	page, total := window(rows, filter.Page, func(a, b *entities.GoodsReceivedNote) bool {
		return a.ReceivedDate.After(b.ReceivedDate)
	})
	return page, total, nil
}
