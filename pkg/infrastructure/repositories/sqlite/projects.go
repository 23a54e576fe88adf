package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vsinha/cims/pkg/domain/entities"
	"github.com/vsinha/cims/pkg/domain/repositories"
)

type projectRepo struct{ s *Store }

var _ repositories.ProjectRepository = (*projectRepo)(nil)

const projectColumns = `id, code, name, description, location, status, start_date, end_date, budget, spent,
	manager_id, client_name, client_contact, tags, created_at, updated_at`

func scanProject(row scanner) (*entities.Project, error) {
	var (
		p                           entities.Project
		tags                        string
		endDate                     sql.NullInt64
		start, createdAt, updatedAt int64
	)
	if err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Description, &p.Location, &p.Status, &start, &endDate,
		&p.Budget, &p.Spent, &p.ManagerID, &p.ClientName, &p.ClientContact, &tags,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := fromJSON(tags, &p.Tags); err != nil {
		return nil, err
	}
	p.StartDate = fromMillis(start)
	p.EndDate = fromNullMillis(endDate)
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	return &p, nil
}

func (r *projectRepo) ListCodesWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	return r.s.listCodes(ctx, "projects", "code", prefix)
}

func (r *projectRepo) CreateProject(ctx context.Context, p *entities.Project) error {
	defer r.s.timed("insert", "project")()

	tags, err := toJSON(p.Tags)
	if err != nil {
		return err
	}
	_, err = r.s.q.ExecContext(ctx,
		`INSERT INTO projects (`+projectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Code, p.Name, p.Description, p.Location, p.Status, toMillis(p.StartDate), nullMillis(p.EndDate),
		p.Budget, p.Spent, p.ManagerID, p.ClientName, p.ClientContact, tags,
		toMillis(p.CreatedAt), toMillis(p.UpdatedAt))
	return mapWriteError(err, "project "+p.Code)
}

func (r *projectRepo) GetProject(ctx context.Context, id string) (*entities.Project, error) {
	defer r.s.timed("select", "project")()

	p, err := scanProject(r.s.q.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
	if err != nil {
		return nil, mapReadError(err, "project "+id)
	}
	return p, nil
}

func (r *projectRepo) UpdateProject(ctx context.Context, p *entities.Project) error {
	defer r.s.timed("update", "project")()

	tags, err := toJSON(p.Tags)
	if err != nil {
		return err
	}
	res, err := r.s.q.ExecContext(ctx,
		`UPDATE projects SET code = ?, name = ?, description = ?, location = ?, status = ?, start_date = ?,
		   end_date = ?, budget = ?, spent = ?, manager_id = ?, client_name = ?, client_contact = ?,
		   tags = ?, updated_at = ?
		 WHERE id = ?`,
		p.Code, p.Name, p.Description, p.Location, p.Status, toMillis(p.StartDate), nullMillis(p.EndDate),
		p.Budget, p.Spent, p.ManagerID, p.ClientName, p.ClientContact, tags, toMillis(p.UpdatedAt), p.ID)
	if err != nil {
		return mapWriteError(err, "project "+p.Code)
	}
	return requireAffected(res, "project "+p.ID)
}

func (r *projectRepo) DeleteProject(ctx context.Context, id string) error {
	defer r.s.timed("delete", "project")()

	res, err := r.s.q.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	}
	return requireAffected(res, "project "+id)
}

var projectSortColumns = map[string]string{
	"name":      "name",
	"startDate": "start_date",
	"createdAt": "created_at",
	"budget":    "CAST(budget AS REAL)",
}

func (r *projectRepo) ListProjects(ctx context.Context, filter repositories.ProjectFilter) ([]*entities.Project, int, error) {
	defer r.s.timed("select", "project")()

	q := &query{}
	if filter.Status != "" {
		q.add("status = ?", filter.Status)
	}
	if filter.ManagerID != "" {
		q.add("manager_id = ?", filter.ManagerID)
	}
	if filter.Search != "" {
		arg := likeArg(filter.Search)
		q.add("(name LIKE ? OR code LIKE ? OR location LIKE ?)", arg, arg, arg)
	}
	q.dateRange("start_date", filter.Started)

	total, err := r.s.count(ctx, "projects", q)
	if err != nil {
		return nil, 0, err
	}
	out, err := collect(ctx, r.s.q, "projects", scanProject,
		`SELECT `+projectColumns+` FROM projects`+q.clause()+
			orderBy(filter.Sort, projectSortColumns, "created_at")+limitClause(filter.Page),
		q.args...)
	return out, total, err
}

type boqRepo struct{ s *Store }

var _ repositories.BOQRepository = (*boqRepo)(nil)

const boqColumns = `id, project_id, material_id, description, category, unit, planned_qty, consumed_qty,
	unit_rate, specifications, created_at, updated_at`

func scanBOQItem(row scanner) (*entities.BOQItem, error) {
	var (
		b                    entities.BOQItem
		createdAt, updatedAt int64
	)
	if err := row.Scan(&b.ID, &b.ProjectID, &b.MaterialID, &b.Description, &b.Category, &b.Unit,
		&b.PlannedQty, &b.ConsumedQty, &b.UnitRate, &b.Specifications, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	b.CreatedAt = fromMillis(createdAt)
	b.UpdatedAt = fromMillis(updatedAt)
	return &b, nil
}

func (r *boqRepo) CreateBOQItem(ctx context.Context, b *entities.BOQItem) error {
	defer r.s.timed("insert", "boq_item")()

	_, err := r.s.q.ExecContext(ctx,
		`INSERT INTO boq_items (`+boqColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.ProjectID, b.MaterialID, b.Description, b.Category, b.Unit, b.PlannedQty, b.ConsumedQty,
		b.UnitRate, b.Specifications, toMillis(b.CreatedAt), toMillis(b.UpdatedAt))
	return mapWriteError(err, "BOQ item for material "+b.MaterialID)
}

func (r *boqRepo) GetBOQItem(ctx context.Context, id string) (*entities.BOQItem, error) {
	defer r.s.timed("select", "boq_item")()

	b, err := scanBOQItem(r.s.q.QueryRowContext(ctx, `SELECT `+boqColumns+` FROM boq_items WHERE id = ?`, id))
	if err != nil {
		return nil, mapReadError(err, "BOQ item "+id)
	}
	return b, nil
}

func (r *boqRepo) UpdateBOQItem(ctx context.Context, b *entities.BOQItem) error {
	defer r.s.timed("update", "boq_item")()

	res, err := r.s.q.ExecContext(ctx,
		`UPDATE boq_items SET description = ?, category = ?, unit = ?, planned_qty = ?, consumed_qty = ?,
		   unit_rate = ?, specifications = ?, updated_at = ?
		 WHERE id = ?`,
		b.Description, b.Category, b.Unit, b.PlannedQty, b.ConsumedQty, b.UnitRate, b.Specifications,
		toMillis(b.UpdatedAt), b.ID)
	if err != nil {
		return mapWriteError(err, "BOQ item "+b.ID)
	}
	return requireAffected(res, "BOQ item "+b.ID)
}

func (r *boqRepo) DeleteBOQItem(ctx context.Context, id string) error {
	defer r.s.timed("delete", "boq_item")()

	res, err := r.s.q.ExecContext(ctx, `DELETE FROM boq_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete BOQ item %s: %w", id, err)
	}
	return requireAffected(res, "BOQ item "+id)
}

func (r *boqRepo) ListBOQItems(ctx context.Context, filter repositories.BOQFilter) ([]*entities.BOQItem, int, error) {
	defer r.s.timed("select", "boq_item")()

	q := &query{}
	if filter.ProjectID != "" {
		q.add("project_id = ?", filter.ProjectID)
	}
	if filter.Category != "" {
		q.add("category = ?", filter.Category)
	}
	if filter.Search != "" {
		q.add("description LIKE ?", likeArg(filter.Search))
	}

	total, err := r.s.count(ctx, "boq_items", q)
	if err != nil {
		return nil, 0, err
	}
	out, err := collect(ctx, r.s.q, "BOQ items", scanBOQItem,
		`SELECT `+boqColumns+` FROM boq_items`+q.clause()+` ORDER BY created_at ASC, id ASC`+limitClause(filter.Page),
		q.args...)
	return out, total, err
}

func (r *boqRepo) FindBOQItem(ctx context.Context, projectID, materialID string) (*entities.BOQItem, error) {
	defer r.s.timed("select", "boq_item")()

	b, err := scanBOQItem(r.s.q.QueryRowContext(ctx,
		`SELECT `+boqColumns+` FROM boq_items WHERE project_id = ? AND material_id = ?`, projectID, materialID))
	if err != nil {
		return nil, mapReadError(err, "BOQ item for material "+materialID)
	}
	return b, nil
}
