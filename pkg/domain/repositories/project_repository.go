package repositories

import (
	"context"

	"github.com/vsinha/cims/pkg/domain/entities"
)

// ProjectFilter narrows a project listing
type ProjectFilter struct {
	Status    entities.ProjectStatus
	ManagerID string
	Search    string
	Started   DateRange
	Page      Page
	Sort      Sort
}

// ProjectRepository provides access to projects
type ProjectRepository interface {
	CodeLister
	CreateProject(ctx context.Context, project *entities.Project) error
	GetProject(ctx context.Context, id string) (*entities.Project, error)
	UpdateProject(ctx context.Context, project *entities.Project) error
	DeleteProject(ctx context.Context, id string) error
	ListProjects(ctx context.Context, filter ProjectFilter) ([]*entities.Project, int, error)
}

// BOQFilter narrows the BOQ lines of one project
type BOQFilter struct {
	ProjectID string
	Category  string
	Search    string
	Page      Page
}

// BOQRepository provides access to bill of quantities lines
type BOQRepository interface {
	CreateBOQItem(ctx context.Context, item *entities.BOQItem) error
	GetBOQItem(ctx context.Context, id string) (*entities.BOQItem, error)
	UpdateBOQItem(ctx context.Context, item *entities.BOQItem) error
	DeleteBOQItem(ctx context.Context, id string) error
	ListBOQItems(ctx context.Context, filter BOQFilter) ([]*entities.BOQItem, int, error)
	FindBOQItem(ctx context.Context, projectID, materialID string) (*entities.BOQItem, error)
}
