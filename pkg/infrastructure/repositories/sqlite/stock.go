package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/vsinha/cims/pkg/domain/entities"
	"github.com/vsinha/cims/pkg/domain/repositories"
)

type stockRepo struct{ s *Store }

var _ repositories.StockRepository = (*stockRepo)(nil)

const batchColumns = `id, material_id, warehouse_id, batch_number, quantity, unit_cost, expiry_date,
	received_date, status, source_ref`

func scanBatch(row scanner) (*entities.StockBatch, error) {
	var (
		b        entities.StockBatch
		expiry   sql.NullInt64
		received int64
	)
	if err := row.Scan(&b.ID, &b.MaterialID, &b.WarehouseID, &b.BatchNumber, &b.Quantity, &b.UnitCost,
		&expiry, &received, &b.Status, &b.SourceRef); err != nil {
		return nil, err
	}
	b.ExpiryDate = fromNullMillis(expiry)
	b.ReceivedDate = fromMillis(received)
	return &b, nil
}

func (r *stockRepo) CreateBatch(ctx context.Context, b *entities.StockBatch) error {
	defer r.s.timed("insert", "stock_batch")()

	_, err := r.s.q.ExecContext(ctx,
		`INSERT INTO stock_batches (`+batchColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.MaterialID, b.WarehouseID, b.BatchNumber, b.Quantity, b.UnitCost,
		nullMillis(b.ExpiryDate), toMillis(b.ReceivedDate), b.Status, b.SourceRef)
	return mapWriteError(err, "stock batch "+b.BatchNumber)
}

func (r *stockRepo) UpdateBatch(ctx context.Context, b *entities.StockBatch) error {
	defer r.s.timed("update", "stock_batch")()

	res, err := r.s.q.ExecContext(ctx,
		`UPDATE stock_batches SET quantity = ?, unit_cost = ?, expiry_date = ?, status = ? WHERE id = ?`,
		b.Quantity, b.UnitCost, nullMillis(b.ExpiryDate), b.Status, b.ID)
	if err != nil {
		return mapWriteError(err, "stock batch "+b.BatchNumber)
	}
	return requireAffected(res, "stock batch "+b.ID)
}

func (r *stockRepo) GetBatch(ctx context.Context, id string) (*entities.StockBatch, error) {
	defer r.s.timed("select", "stock_batch")()

	b, err := scanBatch(r.s.q.QueryRowContext(ctx, `SELECT `+batchColumns+` FROM stock_batches WHERE id = ?`, id))
	if err != nil {
		return nil, mapReadError(err, "stock batch "+id)
	}
	return b, nil
}

func batchQuery(filter repositories.StockFilter) *query {
	q := &query{}
	if filter.MaterialID != "" {
		q.add("material_id = ?", filter.MaterialID)
	}
	if filter.WarehouseID != "" {
		q.add("warehouse_id = ?", filter.WarehouseID)
	}
	if filter.OnlyAvailable {
		q.add("status = ? AND CAST(quantity AS REAL) > 0", entities.BatchAvailable)
	}
	return q
}

func (r *stockRepo) ListBatches(ctx context.Context, filter repositories.StockFilter) ([]*entities.StockBatch, int, error) {
	defer r.s.timed("select", "stock_batch")()

	q := batchQuery(filter)
	total, err := r.s.count(ctx, "stock_batches", q)
	if err != nil {
		return nil, 0, err
	}
	out, err := collect(ctx, r.s.q, "stock batches", scanBatch,
		`SELECT `+batchColumns+` FROM stock_batches`+q.clause()+
			` ORDER BY received_date ASC, batch_number ASC`+limitClause(filter.Page),
		q.args...)
	return out, total, err
}

// Balance sums quantities in Go; SQLite SUM over TEXT would go through float64.
func (r *stockRepo) Balance(ctx context.Context, materialID, warehouseID string) (decimal.Decimal, error) {
	defer r.s.timed("select", "stock_batch")()

	q := &query{}
	q.add("material_id = ?", materialID)
	q.add("status = ?", entities.BatchAvailable)
	if warehouseID != "" {
		q.add("warehouse_id = ?", warehouseID)
	}

	rows, err := r.s.q.QueryContext(ctx, `SELECT quantity FROM stock_batches`+q.clause(), q.args...)
	if err != nil {
		return decimal.Zero, fmt.Errorf("stock balance: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var qty decimal.Decimal
		if err := rows.Scan(&qty); err != nil {
			return decimal.Zero, fmt.Errorf("scan stock balance: %w", err)
		}
		total = total.Add(qty)
	}
	return total, rows.Err()
}

func (r *stockRepo) Balances(ctx context.Context) (map[string]decimal.Decimal, error) {
	defer r.s.timed("select", "stock_batch")()

	rows, err := r.s.q.QueryContext(ctx,
		`SELECT material_id, quantity FROM stock_batches WHERE status = ?`, entities.BatchAvailable)
	if err != nil {
		return nil, fmt.Errorf("stock balances: %w", err)
	}
	defer rows.Close()

	out := make(map[string]decimal.Decimal)
	for rows.Next() {
		var (
			materialID string
			qty        decimal.Decimal
		)
		if err := rows.Scan(&materialID, &qty); err != nil {
			return nil, fmt.Errorf("scan stock balances: %w", err)
		}
		out[materialID] = out[materialID].Add(qty)
	}
	return out, rows.Err()
}

const movementColumns = `id, material_id, warehouse_id, project_id, type, quantity, balance_after,
	reference_number, reference_type, notes, performed_by, created_at`

func scanMovement(row scanner) (*entities.StockMovement, error) {
	var (
		m         entities.StockMovement
		createdAt int64
	)
	if err := row.Scan(&m.ID, &m.MaterialID, &m.WarehouseID, &m.ProjectID, &m.Type, &m.Quantity,
		&m.BalanceAfter, &m.ReferenceNumber, &m.ReferenceType, &m.Notes, &m.PerformedBy, &createdAt); err != nil {
		return nil, err
	}
	m.CreatedAt = fromMillis(createdAt)
	return &m, nil
}

func (r *stockRepo) RecordMovement(ctx context.Context, m *entities.StockMovement) error {
	defer r.s.timed("insert", "stock_movement")()

	// seq keeps ledger order stable between movements written in the same millisecond
	_, err := r.s.q.ExecContext(ctx,
		`INSERT INTO stock_movements (seq, `+movementColumns+`)
		 VALUES ((SELECT COALESCE(MAX(seq), 0) + 1 FROM stock_movements), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.MaterialID, m.WarehouseID, m.ProjectID, m.Type, m.Quantity, m.BalanceAfter,
		m.ReferenceNumber, m.ReferenceType, m.Notes, m.PerformedBy, toMillis(m.CreatedAt))
	return mapWriteError(err, "stock movement "+m.ID)
}

func (r *stockRepo) ListMovements(ctx context.Context, filter repositories.MovementFilter) ([]*entities.StockMovement, error) {
	defer r.s.timed("select", "stock_movement")()

	q := &query{}
	if filter.MaterialID != "" {
		q.add("material_id = ?", filter.MaterialID)
	}
	if filter.WarehouseID != "" {
		q.add("warehouse_id = ?", filter.WarehouseID)
	}
	if filter.ProjectID != "" {
		q.add("project_id = ?", filter.ProjectID)
	}
	q.dateRange("created_at", filter.Created)

	stmt := `SELECT ` + movementColumns + ` FROM stock_movements` + q.clause() + ` ORDER BY created_at DESC, seq DESC`
	if filter.Limit > 0 {
		stmt += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	return collect(ctx, r.s.q, "stock movements", scanMovement, stmt, q.args...)
}
