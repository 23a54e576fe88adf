package sqlite

import (
	"context"
	"fmt"

	"github.com/vsinha/cims/pkg/domain/entities"
	"github.com/vsinha/cims/pkg/domain/repositories"
)

type materialRepo struct{ s *Store }

var _ repositories.MaterialRepository = (*materialRepo)(nil)

const materialColumns = `id, code, name, category, unit, unit_price, min_stock, max_stock, reorder_point,
	current_stock, description, specifications, status, version, created_at, updated_at`

func scanMaterial(row scanner) (*entities.Material, error) {
	var (
		m                    entities.Material
		specs                string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&m.ID, &m.Code, &m.Name, &m.Category, &m.Unit, &m.UnitPrice, &m.MinStock, &m.MaxStock,
		&m.ReorderPoint, &m.CurrentStock, &m.Description, &specs, &m.Status, &m.Version, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := fromJSON(specs, &m.Specifications); err != nil {
		return nil, err
	}
	m.CreatedAt = fromMillis(createdAt)
	m.UpdatedAt = fromMillis(updatedAt)
	return &m, nil
}

func (r *materialRepo) ListCodesWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	return r.s.listCodes(ctx, "materials", "code", prefix)
}

func (r *materialRepo) CreateMaterial(ctx context.Context, m *entities.Material) error {
	defer r.s.timed("insert", "material")()

	specs, err := toJSON(m.Specifications)
	if err != nil {
		return err
	}
	_, err = r.s.q.ExecContext(ctx,
		`INSERT INTO materials (`+materialColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Code, m.Name, m.Category, m.Unit, m.UnitPrice, m.MinStock, m.MaxStock, m.ReorderPoint,
		m.CurrentStock, m.Description, specs, m.Status, m.Version, toMillis(m.CreatedAt), toMillis(m.UpdatedAt))
	return mapWriteError(err, "material "+m.Code)
}

func (r *materialRepo) GetMaterial(ctx context.Context, id string) (*entities.Material, error) {
	defer r.s.timed("select", "material")()

	m, err := scanMaterial(r.s.q.QueryRowContext(ctx, `SELECT `+materialColumns+` FROM materials WHERE id = ?`, id))
	if err != nil {
		return nil, mapReadError(err, "material "+id)
	}
	return m, nil
}

func (r *materialRepo) GetMaterialByCode(ctx context.Context, code string) (*entities.Material, error) {
	defer r.s.timed("select", "material")()

	m, err := scanMaterial(r.s.q.QueryRowContext(ctx, `SELECT `+materialColumns+` FROM materials WHERE code = ?`, code))
	if err != nil {
		return nil, mapReadError(err, "material "+code)
	}
	return m, nil
}

func (r *materialRepo) UpdateMaterial(ctx context.Context, m *entities.Material) error {
	defer r.s.timed("update", "material")()

	specs, err := toJSON(m.Specifications)
	if err != nil {
		return err
	}
	res, err := r.s.q.ExecContext(ctx,
		`UPDATE materials SET code = ?, name = ?, category = ?, unit = ?, unit_price = ?, min_stock = ?,
		   max_stock = ?, reorder_point = ?, current_stock = ?, description = ?, specifications = ?,
		   status = ?, version = ?, updated_at = ?
		 WHERE id = ? AND version = ?`,
		m.Code, m.Name, m.Category, m.Unit, m.UnitPrice, m.MinStock, m.MaxStock, m.ReorderPoint,
		m.CurrentStock, m.Description, specs, m.Status, m.Version, toMillis(m.UpdatedAt), m.ID, m.Version-1)
	if err != nil {
		return mapWriteError(err, "material "+m.Code)
	}
	return r.s.requireVersion(ctx, res, "materials", m.ID, "material "+m.ID)
}

var materialSortColumns = map[string]string{
	"code":      "code",
	"name":      "name",
	"createdAt": "created_at",
	"unitPrice": "CAST(unit_price AS REAL)",
}

func (r *materialRepo) ListMaterials(ctx context.Context, filter repositories.MaterialFilter) ([]*entities.Material, int, error) {
	defer r.s.timed("select", "material")()

	q := &query{}
	if filter.Search != "" {
		q.add("(code LIKE ? OR name LIKE ?)", likeArg(filter.Search), likeArg(filter.Search))
	}
	if filter.Category != "" {
		q.add("category = ?", filter.Category)
	}
	if filter.Status != "" {
		q.add("status = ?", filter.Status)
	}

	total, err := r.s.count(ctx, "materials", q)
	if err != nil {
		return nil, 0, err
	}

	out, err := collect(ctx, r.s.q, "materials", scanMaterial,
		`SELECT `+materialColumns+` FROM materials`+q.clause()+
			orderBy(filter.Sort, materialSortColumns, "created_at")+limitClause(filter.Page),
		q.args...)
	return out, total, err
}

type supplierRepo struct{ s *Store }

var _ repositories.SupplierRepository = (*supplierRepo)(nil)

const supplierColumns = `id, code, name, contact_person, email, phone, address, tax_id, status,
	performance_score, tags, created_at, updated_at`

func scanSupplier(row scanner) (*entities.Supplier, error) {
	var (
		s                    entities.Supplier
		tags                 string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&s.ID, &s.Code, &s.Name, &s.ContactPerson, &s.Email, &s.Phone, &s.Address, &s.TaxID,
		&s.Status, &s.PerformanceScore, &tags, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := fromJSON(tags, &s.Tags); err != nil {
		return nil, err
	}
	s.CreatedAt = fromMillis(createdAt)
	s.UpdatedAt = fromMillis(updatedAt)
	return &s, nil
}

func (r *supplierRepo) ListCodesWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	return r.s.listCodes(ctx, "suppliers", "code", prefix)
}

func (r *supplierRepo) CreateSupplier(ctx context.Context, s *entities.Supplier) error {
	defer r.s.timed("insert", "supplier")()

	tags, err := toJSON(s.Tags)
	if err != nil {
		return err
	}
	_, err = r.s.q.ExecContext(ctx,
		`INSERT INTO suppliers (`+supplierColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Code, s.Name, s.ContactPerson, s.Email, s.Phone, s.Address, s.TaxID, s.Status,
		s.PerformanceScore, tags, toMillis(s.CreatedAt), toMillis(s.UpdatedAt))
	return mapWriteError(err, "supplier "+s.Code)
}

func (r *supplierRepo) GetSupplier(ctx context.Context, id string) (*entities.Supplier, error) {
	defer r.s.timed("select", "supplier")()

	s, err := scanSupplier(r.s.q.QueryRowContext(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE id = ?`, id))
	if err != nil {
		return nil, mapReadError(err, "supplier "+id)
	}
	return s, nil
}

func (r *supplierRepo) UpdateSupplier(ctx context.Context, s *entities.Supplier) error {
	defer r.s.timed("update", "supplier")()

	tags, err := toJSON(s.Tags)
	if err != nil {
		return err
	}
	res, err := r.s.q.ExecContext(ctx,
		`UPDATE suppliers SET code = ?, name = ?, contact_person = ?, email = ?, phone = ?, address = ?,
		   tax_id = ?, status = ?, performance_score = ?, tags = ?, updated_at = ?
		 WHERE id = ?`,
		s.Code, s.Name, s.ContactPerson, s.Email, s.Phone, s.Address, s.TaxID, s.Status,
		s.PerformanceScore, tags, toMillis(s.UpdatedAt), s.ID)
	if err != nil {
		return mapWriteError(err, "supplier "+s.Code)
	}
	return requireAffected(res, "supplier "+s.ID)
}

func (r *supplierRepo) DeleteSupplier(ctx context.Context, id string) error {
	defer r.s.timed("delete", "supplier")()

	res, err := r.s.q.ExecContext(ctx, `DELETE FROM suppliers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete supplier %s: %w", id, err)
	}
	return requireAffected(res, "supplier "+id)
}

var supplierSortColumns = map[string]string{
	"name":             "name",
	"createdAt":        "created_at",
	"performanceScore": "CAST(performance_score AS REAL)",
}

func (r *supplierRepo) ListSuppliers(ctx context.Context, filter repositories.SupplierFilter) ([]*entities.Supplier, int, error) {
	defer r.s.timed("select", "supplier")()

	q := &query{}
	if filter.Search != "" {
		arg := likeArg(filter.Search)
		q.add("(name LIKE ? OR code LIKE ? OR contact_person LIKE ?)", arg, arg, arg)
	}
	if filter.Status != "" {
		q.add("status = ?", filter.Status)
	}

	total, err := r.s.count(ctx, "suppliers", q)
	if err != nil {
		return nil, 0, err
	}

	out, err := collect(ctx, r.s.q, "suppliers", scanSupplier,
		`SELECT `+supplierColumns+` FROM suppliers`+q.clause()+
			orderBy(filter.Sort, supplierSortColumns, "created_at")+limitClause(filter.Page),
		q.args...)
	return out, total, err
}

type warehouseRepo struct{ s *Store }

var _ repositories.WarehouseRepository = (*warehouseRepo)(nil)

const warehouseColumns = `id, code, name, location, address, capacity, current_utilization, is_active,
	manager_id, created_at, updated_at`

func scanWarehouse(row scanner) (*entities.Warehouse, error) {
	var (
		w                    entities.Warehouse
		active               int
		createdAt, updatedAt int64
	)
	if err := row.Scan(&w.ID, &w.Code, &w.Name, &w.Location, &w.Address, &w.Capacity, &w.CurrentUtilization,
		&active, &w.ManagerID, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	w.IsActive = active == 1
	w.CreatedAt = fromMillis(createdAt)
	w.UpdatedAt = fromMillis(updatedAt)
	return &w, nil
}

func (r *warehouseRepo) ListCodesWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	return r.s.listCodes(ctx, "warehouses", "code", prefix)
}

func (r *warehouseRepo) CreateWarehouse(ctx context.Context, w *entities.Warehouse) error {
	defer r.s.timed("insert", "warehouse")()

	_, err := r.s.q.ExecContext(ctx,
		`INSERT INTO warehouses (`+warehouseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.Code, w.Name, w.Location, w.Address, w.Capacity, w.CurrentUtilization, boolInt(w.IsActive),
		w.ManagerID, toMillis(w.CreatedAt), toMillis(w.UpdatedAt))
	return mapWriteError(err, "warehouse "+w.Code)
}

func (r *warehouseRepo) GetWarehouse(ctx context.Context, id string) (*entities.Warehouse, error) {
	defer r.s.timed("select", "warehouse")()

	w, err := scanWarehouse(r.s.q.QueryRowContext(ctx, `SELECT `+warehouseColumns+` FROM warehouses WHERE id = ?`, id))
	if err != nil {
		return nil, mapReadError(err, "warehouse "+id)
	}
	return w, nil
}

func (r *warehouseRepo) UpdateWarehouse(ctx context.Context, w *entities.Warehouse) error {
	defer r.s.timed("update", "warehouse")()

	res, err := r.s.q.ExecContext(ctx,
		`UPDATE warehouses SET code = ?, name = ?, location = ?, address = ?, capacity = ?,
		   current_utilization = ?, is_active = ?, manager_id = ?, updated_at = ?
		 WHERE id = ?`,
		w.Code, w.Name, w.Location, w.Address, w.Capacity, w.CurrentUtilization, boolInt(w.IsActive),
		w.ManagerID, toMillis(w.UpdatedAt), w.ID)
	if err != nil {
		return mapWriteError(err, "warehouse "+w.Code)
	}
	return requireAffected(res, "warehouse "+w.ID)
}

func (r *warehouseRepo) ListWarehouses(ctx context.Context) ([]*entities.Warehouse, error) {
	defer r.s.timed("select", "warehouse")()

	return collect(ctx, r.s.q, "warehouses", scanWarehouse,
		`SELECT `+warehouseColumns+` FROM warehouses ORDER BY code`)
}
