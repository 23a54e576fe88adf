package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/vsinha/cims/pkg/domain/entities"
	"github.com/vsinha/cims/pkg/domain/repositories"
)

type purchaseOrderRepo struct{ s *Store }

var _ repositories.PurchaseOrderRepository = (*purchaseOrderRepo)(nil)

const purchaseOrderColumns = `id, po_number, supplier_id, project_id, status, items, total_amount,
	expected_delivery_date, delivery_address, notes, terms_and_conditions, approval_history,
	created_by, created_at, updated_at`

func scanPurchaseOrder(row scanner) (*entities.PurchaseOrder, error) {
	var (
		po                   entities.PurchaseOrder
		items, history       string
		expected             sql.NullInt64
		createdAt, updatedAt int64
	)
	if err := row.Scan(&po.ID, &po.PONumber, &po.SupplierID, &po.ProjectID, &po.Status, &items, &po.TotalAmount,
		&expected, &po.DeliveryAddress, &po.Notes, &po.TermsAndConditions, &history,
		&po.CreatedBy, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := fromJSON(items, &po.Items); err != nil {
		return nil, err
	}
	if err := fromJSON(history, &po.ApprovalHistory); err != nil {
		return nil, err
	}
	po.ExpectedDeliveryDate = fromNullMillis(expected)
	po.CreatedAt = fromMillis(createdAt)
	po.UpdatedAt = fromMillis(updatedAt)
	return &po, nil
}

func (r *purchaseOrderRepo) ListCodesWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	return r.s.listCodes(ctx, "purchase_orders", "po_number", prefix)
}

func (r *purchaseOrderRepo) CreatePurchaseOrder(ctx context.Context, po *entities.PurchaseOrder) error {
	defer r.s.timed("insert", "purchase_order")()

	items, err := toJSON(po.Items)
	if err != nil {
		return err
	}
	history, err := toJSON(po.ApprovalHistory)
	if err != nil {
		return err
	}
	_, err = r.s.q.ExecContext(ctx,
		`INSERT INTO purchase_orders (`+purchaseOrderColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		po.ID, po.PONumber, po.SupplierID, po.ProjectID, po.Status, items, po.TotalAmount,
		nullMillis(po.ExpectedDeliveryDate), po.DeliveryAddress, po.Notes, po.TermsAndConditions, history,
		po.CreatedBy, toMillis(po.CreatedAt), toMillis(po.UpdatedAt))
	return mapWriteError(err, "purchase order "+po.PONumber)
}

func (r *purchaseOrderRepo) GetPurchaseOrder(ctx context.Context, id string) (*entities.PurchaseOrder, error) {
	defer r.s.timed("select", "purchase_order")()

	po, err := scanPurchaseOrder(r.s.q.QueryRowContext(ctx,
		`SELECT `+purchaseOrderColumns+` FROM purchase_orders WHERE id = ?`, id))
	if err != nil {
		return nil, mapReadError(err, "purchase order "+id)
	}
	return po, nil
}

func (r *purchaseOrderRepo) UpdatePurchaseOrder(ctx context.Context, po *entities.PurchaseOrder) error {
	defer r.s.timed("update", "purchase_order")()

	items, err := toJSON(po.Items)
	if err != nil {
		return err
	}
	history, err := toJSON(po.ApprovalHistory)
	if err != nil {
		return err
	}
	res, err := r.s.q.ExecContext(ctx,
		`UPDATE purchase_orders SET po_number = ?, supplier_id = ?, project_id = ?, status = ?, items = ?,
		   total_amount = ?, expected_delivery_date = ?, delivery_address = ?, notes = ?,
		   terms_and_conditions = ?, approval_history = ?, updated_at = ?
		 WHERE id = ?`,
		po.PONumber, po.SupplierID, po.ProjectID, po.Status, items, po.TotalAmount,
		nullMillis(po.ExpectedDeliveryDate), po.DeliveryAddress, po.Notes,
		po.TermsAndConditions, history, toMillis(po.UpdatedAt), po.ID)
	if err != nil {
		return mapWriteError(err, "purchase order "+po.PONumber)
	}
	return requireAffected(res, "purchase order "+po.ID)
}

func (r *purchaseOrderRepo) DeletePurchaseOrder(ctx context.Context, id string) error {
	defer r.s.timed("delete", "purchase_order")()

	res, err := r.s.q.ExecContext(ctx, `DELETE FROM purchase_orders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete purchase order %s: %w", id, err)
	}
	return requireAffected(res, "purchase order "+id)
}

var purchaseOrderSortColumns = map[string]string{
	"poNumber":    "po_number",
	"createdAt":   "created_at",
	"totalAmount": "CAST(total_amount AS REAL)",
}

func (r *purchaseOrderRepo) ListPurchaseOrders(ctx context.Context, filter repositories.PurchaseOrderFilter) ([]*entities.PurchaseOrder, int, error) {
	defer r.s.timed("select", "purchase_order")()

	q := &query{}
	if len(filter.Statuses) > 0 {
		marks := make([]string, len(filter.Statuses))
		args := make([]any, len(filter.Statuses))
		for i, st := range filter.Statuses {
			marks[i] = "?"
			args[i] = st
		}
		q.add("status IN ("+strings.Join(marks, ", ")+")", args...)
	}
	if filter.SupplierID != "" {
		q.add("supplier_id = ?", filter.SupplierID)
	}
	if filter.ProjectID != "" {
		q.add("project_id = ?", filter.ProjectID)
	}
	if filter.Search != "" {
		q.add("po_number LIKE ?", likeArg(filter.Search))
	}
	q.dateRange("created_at", filter.Created)

	total, err := r.s.count(ctx, "purchase_orders", q)
	if err != nil {
		return nil, 0, err
	}
	out, err := collect(ctx, r.s.q, "purchase orders", scanPurchaseOrder,
		`SELECT `+purchaseOrderColumns+` FROM purchase_orders`+q.clause()+
			orderBy(filter.Sort, purchaseOrderSortColumns, "created_at")+limitClause(filter.Page),
		q.args...)
	return out, total, err
}

type requisitionRepo struct{ s *Store }

var _ repositories.RequisitionRepository = (*requisitionRepo)(nil)

const requisitionColumns = `id, requisition_number, project_id, requested_by, urgency, status, items,
	notes, decision_comment, purchase_order_id, created_at, updated_at`

func scanRequisition(row scanner) (*entities.Requisition, error) {
	var (
		req                  entities.Requisition
		items                string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&req.ID, &req.RequisitionNumber, &req.ProjectID, &req.RequestedBy, &req.Urgency,
		&req.Status, &items, &req.Notes, &req.DecisionComment, &req.PurchaseOrderID,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := fromJSON(items, &req.Items); err != nil {
		return nil, err
	}
	req.CreatedAt = fromMillis(createdAt)
	req.UpdatedAt = fromMillis(updatedAt)
	return &req, nil
}

func (r *requisitionRepo) ListCodesWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	return r.s.listCodes(ctx, "requisitions", "requisition_number", prefix)
}

func (r *requisitionRepo) CreateRequisition(ctx context.Context, req *entities.Requisition) error {
	defer r.s.timed("insert", "requisition")()

	items, err := toJSON(req.Items)
	if err != nil {
		return err
	}
	_, err = r.s.q.ExecContext(ctx,
		`INSERT INTO requisitions (`+requisitionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.RequisitionNumber, req.ProjectID, req.RequestedBy, req.Urgency, req.Status, items,
		req.Notes, req.DecisionComment, req.PurchaseOrderID, toMillis(req.CreatedAt), toMillis(req.UpdatedAt))
	return mapWriteError(err, "requisition "+req.RequisitionNumber)
}

func (r *requisitionRepo) GetRequisition(ctx context.Context, id string) (*entities.Requisition, error) {
	defer r.s.timed("select", "requisition")()

	req, err := scanRequisition(r.s.q.QueryRowContext(ctx,
		`SELECT `+requisitionColumns+` FROM requisitions WHERE id = ?`, id))
	if err != nil {
		return nil, mapReadError(err, "requisition "+id)
	}
	return req, nil
}

func (r *requisitionRepo) UpdateRequisition(ctx context.Context, req *entities.Requisition) error {
	defer r.s.timed("update", "requisition")()

	items, err := toJSON(req.Items)
	if err != nil {
		return err
	}
	res, err := r.s.q.ExecContext(ctx,
		`UPDATE requisitions SET project_id = ?, requested_by = ?, urgency = ?, status = ?, items = ?,
		   notes = ?, decision_comment = ?, purchase_order_id = ?, updated_at = ?
		 WHERE id = ?`,
		req.ProjectID, req.RequestedBy, req.Urgency, req.Status, items,
		req.Notes, req.DecisionComment, req.PurchaseOrderID, toMillis(req.UpdatedAt), req.ID)
	if err != nil {
		return mapWriteError(err, "requisition "+req.RequisitionNumber)
	}
	return requireAffected(res, "requisition "+req.ID)
}

func (r *requisitionRepo) ListRequisitions(ctx context.Context, filter repositories.RequisitionFilter) ([]*entities.Requisition, int, error) {
	defer r.s.timed("select", "requisition")()

	q := &query{}
	if filter.Status != "" {
		q.add("status = ?", filter.Status)
	}
	if filter.ProjectID != "" {
		q.add("project_id = ?", filter.ProjectID)
	}
	if filter.RequestedBy != "" {
		q.add("requested_by = ?", filter.RequestedBy)
	}

	total, err := r.s.count(ctx, "requisitions", q)
	if err != nil {
		return nil, 0, err
	}
	out, err := collect(ctx, r.s.q, "requisitions", scanRequisition,
		`SELECT `+requisitionColumns+` FROM requisitions`+q.clause()+
			` ORDER BY created_at DESC, id ASC`+limitClause(filter.Page),
		q.args...)
	return out, total, err
}

type grnRepo struct{ s *Store }

var _ repositories.GRNRepository = (*grnRepo)(nil)

const grnColumns = `id, grn_number, purchase_order_id, supplier_id, warehouse_id, received_date, status,
	evidence_url, notes, items, received_by, created_at, updated_at`

func scanGRN(row scanner) (*entities.GoodsReceivedNote, error) {
	var (
		g                              entities.GoodsReceivedNote
		items                          string
		received, createdAt, updatedAt int64
	)
	if err := row.Scan(&g.ID, &g.GRNNumber, &g.PurchaseOrderID, &g.SupplierID, &g.WarehouseID, &received,
		&g.Status, &g.EvidenceURL, &g.Notes, &items, &g.ReceivedBy, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := fromJSON(items, &g.Items); err != nil {
		return nil, err
	}
	g.ReceivedDate = fromMillis(received)
	g.CreatedAt = fromMillis(createdAt)
	g.UpdatedAt = fromMillis(updatedAt)
	return &g, nil
}

func (r *grnRepo) ListCodesWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	return r.s.listCodes(ctx, "grns", "grn_number", prefix)
}

func (r *grnRepo) CreateGRN(ctx context.Context, g *entities.GoodsReceivedNote) error {
	defer r.s.timed("insert", "grn")()

	items, err := toJSON(g.Items)
	if err != nil {
		return err
	}
	_, err = r.s.q.ExecContext(ctx,
		`INSERT INTO grns (`+grnColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.GRNNumber, g.PurchaseOrderID, g.SupplierID, g.WarehouseID, toMillis(g.ReceivedDate),
		g.Status, g.EvidenceURL, g.Notes, items, g.ReceivedBy, toMillis(g.CreatedAt), toMillis(g.UpdatedAt))
	return mapWriteError(err, "GRN "+g.GRNNumber)
}

func (r *grnRepo) GetGRN(ctx context.Context, id string) (*entities.GoodsReceivedNote, error) {
	defer r.s.timed("select", "grn")()

	g, err := scanGRN(r.s.q.QueryRowContext(ctx, `SELECT `+grnColumns+` FROM grns WHERE id = ?`, id))
	if err != nil {
		return nil, mapReadError(err, "GRN "+id)
	}
	return g, nil
}

func (r *grnRepo) UpdateGRN(ctx context.Context, g *entities.GoodsReceivedNote) error {
	defer r.s.timed("update", "grn")()

	items, err := toJSON(g.Items)
	if err != nil {
		return err
	}
	res, err := r.s.q.ExecContext(ctx,
		`UPDATE grns SET status = ?, evidence_url = ?, notes = ?, items = ?, updated_at = ? WHERE id = ?`,
		g.Status, g.EvidenceURL, g.Notes, items, toMillis(g.UpdatedAt), g.ID)
	if err != nil {
		return mapWriteError(err, "GRN "+g.GRNNumber)
	}
	return requireAffected(res, "GRN "+g.ID)
}

func (r *grnRepo) ListGRNs(ctx context.Context, filter repositories.GRNFilter) ([]*entities.GoodsReceivedNote, int, error) {
	defer r.s.timed("select", "grn")()

	q := &query{}
	if filter.PurchaseOrderID != "" {
		q.add("purchase_order_id = ?", filter.PurchaseOrderID)
	}
	if filter.SupplierID != "" {
		q.add("supplier_id = ?", filter.SupplierID)
	}
	if filter.Status != "" {
		q.add("status = ?", filter.Status)
	}
	q.dateRange("received_date", filter.Received)

	total, err := r.s.count(ctx, "grns", q)
	if err != nil {
		return nil, 0, err
	}
	out, err := collect(ctx, r.s.q, "GRNs", scanGRN,
		`SELECT `+grnColumns+` FROM grns`+q.clause()+
			` ORDER BY received_date DESC, id ASC`+limitClause(filter.Page),
		q.args...)
	return out, total, err
}
