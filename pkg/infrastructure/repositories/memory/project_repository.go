package memory

import (
	"context"

	"github.com/vsinha/cims/pkg/domain/entities"
	"github.com/vsinha/cims/pkg/domain/repositories"
)

// ProjectRepository provides in-memory project storage
type ProjectRepository struct {
	rows *table[entities.Project]
}

// NewProjectRepository creates a new in-memory project repository
func NewProjectRepository() *ProjectRepository {
	return &ProjectRepository{
		rows: newTable("project",
			func(p *entities.Project) string { return p.ID },
			func(p *entities.Project) *entities.Project {
				c := *p
				c.EndDate = cloneTime(p.EndDate)
				c.Tags = cloneSlice(p.Tags)
				return &c
			},
			func(p *entities.Project) string { return p.Code },
		),
	}
}

var _ repositories.ProjectRepository = (*ProjectRepository)(nil)

func (r *ProjectRepository) ListCodesWithPrefix(_ context.Context, prefix string) ([]string, error) {
	return r.rows.codes(prefix, func(p *entities.Project) string { return p.Code }), nil
}

func (r *ProjectRepository) CreateProject(_ context.Context, project *entities.Project) error {
	return r.rows.insert(project)
}

func (r *ProjectRepository) GetProject(_ context.Context, id string) (*entities.Project, error) {
	return r.rows.get(id)
}

func (r *ProjectRepository) UpdateProject(_ context.Context, project *entities.Project) error {
	return r.rows.update(project)
}

func (r *ProjectRepository) DeleteProject(_ context.Context, id string) error {
	return r.rows.remove(id)
}

func (r *ProjectRepository) ListProjects(_ context.Context, filter repositories.ProjectFilter) ([]*entities.Project, int, error) {
	rows := r.rows.filter(func(p *entities.Project) bool {
		if filter.Status != "" && p.Status != filter.Status {
			return false
		}
		if filter.ManagerID != "" && p.ManagerID != filter.ManagerID {
			return false
		}
		if filter.Search != "" && !containsFold(p.Name, filter.Search) && !containsFold(p.Code, filter.Search) &&
			!containsFold(p.Location, filter.Search) {
			return false
		}
		return filter.Started.Contains(p.StartDate)
	})

	less := func(a, b *entities.Project) bool {
		switch filter.Sort.Field {
		case "name":
			return a.Name < b.Name
		case "startDate":
			return a.StartDate.Before(b.StartDate)
		case "budget":
			return a.Budget.LessThan(b.Budget)
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	page, total := window(rows, filter.Page, ordered(less, filter.Sort.Desc))
	return page, total, nil
}

// BOQRepository provides in-memory bill of quantities storage
type BOQRepository struct {
	rows *table[entities.BOQItem]
}

// NewBOQRepository creates a new in-memory BOQ repository
func NewBOQRepository() *BOQRepository {
	return &BOQRepository{
		rows: newTable("boq item",
			func(b *entities.BOQItem) string { return b.ID },
			func(b *entities.BOQItem) *entities.BOQItem { c := *b; return &c },
			func(b *entities.BOQItem) string { return b.ProjectID + "/" + b.MaterialID },
		),
	}
}

var _ repositories.BOQRepository = (*BOQRepository)(nil)

func (r *BOQRepository) CreateBOQItem(_ context.Context, item *entities.BOQItem) error {
	return r.rows.insert(item)
}

func (r *BOQRepository) GetBOQItem(_ context.Context, id string) (*entities.BOQItem, error) {
	return r.rows.get(id)
}

func (r *BOQRepository) UpdateBOQItem(_ context.Context, item *entities.BOQItem) error {
	return r.rows.update(item)
}

func (r *BOQRepository) DeleteBOQItem(_ context.Context, id string) error {
	return r.rows.remove(id)
}

func (r *BOQRepository) ListBOQItems(_ context.Context, filter repositories.BOQFilter) ([]*entities.BOQItem, int, error) {
	rows := r.rows.filter(func(b *entities.BOQItem) bool {
		if filter.ProjectID != "" && b.ProjectID != filter.ProjectID {
			return false
		}
		if filter.Category != "" && b.Category != filter.Category {
			return false
		}
		return filter.Search == "" || containsFold(b.Description, filter.Search)
	})
	page, total := window(rows, filter.Page, nil)
	return page, total, nil
}

func (r *BOQRepository) FindBOQItem(_ context.Context, projectID, materialID string) (*entities.BOQItem, error) {
	return r.rows.find(func(b *entities.BOQItem) bool {
		return b.ProjectID == projectID && b.MaterialID == materialID
	})
}
