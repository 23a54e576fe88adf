package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vsinha/cims/pkg/application/dto"
	"github.com/vsinha/cims/pkg/domain/entities"
	"github.com/vsinha/cims/pkg/domain/repositories"
	"github.com/vsinha/cims/pkg/domain/services"
	"github.com/vsinha/cims/pkg/infrastructure/events"
	csvio "github.com/vsinha/cims/pkg/infrastructure/repositories/csv"
)

// ProjectInput carries the editable fields of a project
type ProjectInput struct {
	Code          string          `json:"code,omitempty"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Location      string          `json:"location"`
	StartDate     *time.Time      `json:"startDate,omitempty"`
	EndDate       *time.Time      `json:"endDate,omitempty"`
	Budget        decimal.Decimal `json:"budget"`
	ManagerID     string          `json:"managerId,omitempty"`
	ClientName    string          `json:"clientName,omitempty"`
	ClientContact string          `json:"clientContact,omitempty"`
	Tags          []string        `json:"tags,omitempty"`
}

// BOQInput carries the fields of a BOQ line. Unit and category default to
// those of the material.
type BOQInput struct {
	MaterialID     string          `json:"materialId"`
	Description    string          `json:"description,omitempty"`
	Category       string          `json:"category,omitempty"`
	Unit           string          `json:"unit,omitempty"`
	PlannedQty     decimal.Decimal `json:"plannedQty"`
	UnitRate       decimal.Decimal `json:"unitRate"`
	Specifications string          `json:"specifications,omitempty"`
}

// BOQUpdate is a partial update of a BOQ line
type BOQUpdate struct {
	Description    *string          `json:"description,omitempty"`
	Category       *string          `json:"category,omitempty"`
	Unit           *string          `json:"unit,omitempty"`
	PlannedQty     *decimal.Decimal `json:"plannedQty,omitempty"`
	ConsumedQty    *decimal.Decimal `json:"consumedQty,omitempty"`
	UnitRate       *decimal.Decimal `json:"unitRate,omitempty"`
	Specifications *string          `json:"specifications,omitempty"`
}

// ProjectService manages projects and their bills of quantities
type ProjectService struct {
	deps   Dependencies
	loader *csvio.Loader
}

// NewProjectService creates a new project service
func NewProjectService(deps Dependencies) *ProjectService {
	return &ProjectService{deps: deps.withDefaults(), loader: csvio.NewLoader()}
}

// List returns one page of projects
func (s *ProjectService) List(ctx context.Context, filter repositories.ProjectFilter) (dto.Page[*entities.Project], error) {
	filter.Page = dto.NormalizePage(filter.Page.Page, filter.Page.Limit)
	projects, total, err := s.deps.Repos.Projects.ListProjects(ctx, filter)
	if err != nil {
		return dto.Page[*entities.Project]{}, fmt.Errorf("failed to list projects: %w", err)
	}
	return dto.NewPage(projects, total, filter.Page), nil
}

// Get returns one project
func (s *ProjectService) Get(ctx context.Context, id string) (*entities.Project, error) {
	project, err := s.deps.Repos.Projects.GetProject(ctx, id)
	if err != nil {
		return nil, loadError(err, "Project")
	}
	return project, nil
}

// Create adds a project in PLANNING; the code is generated unless supplied
func (s *ProjectService) Create(ctx context.Context, actor *entities.User, in ProjectInput) (*entities.Project, error) {
	now := s.deps.now()
	project := &entities.Project{
		ID:        s.deps.NewID(),
		Code:      strings.ToUpper(strings.TrimSpace(in.Code)),
		Status:    entities.ProjectPlanning,
		Spent:     decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyProjectInput(project, in, now)
	if project.ManagerID == "" {
		project.ManagerID = actorID(actor)
	}
	if err := project.Validate(); err != nil {
		return nil, invalid("%v", err)
	}

	repo := s.deps.Repos.Projects
	if project.Code != "" {
		err := repo.CreateProject(ctx, project)
		if errors.Is(err, repositories.ErrAlreadyExists) {
			return nil, conflict("Project code %s already exists", project.Code)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create project: %w", err)
		}
	} else if _, err := s.deps.Codes.Allocate(ctx, repo, services.PrefixProject, func(code string) error {
		project.Code = code
		return repo.CreateProject(ctx, project)
	}); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	s.deps.Logger.Info("project created", zap.String("code", project.Code), zap.String("user_id", actorID(actor)))
	return project, nil
}

func applyProjectInput(project *entities.Project, in ProjectInput, now time.Time) {
	project.Name = strings.TrimSpace(in.Name)
	project.Description = in.Description
	project.Location = strings.TrimSpace(in.Location)
	project.Budget = in.Budget
	project.EndDate = in.EndDate
	project.ClientName = in.ClientName
	project.ClientContact = in.ClientContact
	project.Tags = in.Tags
	if in.ManagerID != "" {
		project.ManagerID = in.ManagerID
	}
	switch {
	case in.StartDate != nil:
		project.StartDate = in.StartDate.UTC()
	case project.StartDate.IsZero():
		project.StartDate = now
	}
}

// Update replaces the editable fields of a project
func (s *ProjectService) Update(ctx context.Context, actor *entities.User, id string, in ProjectInput) (*entities.Project, error) {
	var project *entities.Project
	err := s.deps.withLock(ctx, projectLockKey(id), func() error {
		var err error
		if project, err = s.Get(ctx, id); err != nil {
			return err
		}
		now := s.deps.now()
		applyProjectInput(project, in, now)
		if err := project.Validate(); err != nil {
			return invalid("%v", err)
		}
		project.UpdatedAt = now
		if err := s.deps.Repos.Projects.UpdateProject(ctx, project); err != nil {
			return fmt.Errorf("failed to update project %s: %w", project.Code, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.deps.Logger.Info("project updated", zap.String("code", project.Code), zap.String("user_id", actorID(actor)))
	return project, nil
}

// Delete removes a project still in PLANNING together with its BOQ
func (s *ProjectService) Delete(ctx context.Context, actor *entities.User, id string) error {
	var project *entities.Project
	err := s.deps.withLock(ctx, projectLockKey(id), func() error {
		return s.deps.inTx(ctx, func(tx Dependencies) error {
			var err error
			project, err = tx.Repos.Projects.GetProject(ctx, id)
			if err != nil {
				return loadError(err, "Project")
			}
			if project.Status != entities.ProjectPlanning {
				return newError(ErrInvalidTransition, "Only projects in PLANNING can be deleted, %s is %s", project.Code, project.Status)
			}
			items, _, err := tx.Repos.BOQ.ListBOQItems(ctx, repositories.BOQFilter{ProjectID: id})
			if err != nil {
				return fmt.Errorf("failed to list BOQ of %s: %w", project.Code, err)
			}
			for _, item := range items {
				if err := tx.Repos.BOQ.DeleteBOQItem(ctx, item.ID); err != nil {
					return fmt.Errorf("failed to delete BOQ line %s: %w", item.ID, err)
				}
			}
			if err := tx.Repos.Projects.DeleteProject(ctx, id); err != nil {
				return fmt.Errorf("failed to delete project %s: %w", project.Code, err)
			}
			return nil
		})
	})
	if err != nil {
		return err
	}
	s.deps.Logger.Info("project deleted", zap.String("code", project.Code), zap.String("user_id", actorID(actor)))
	return nil
}

// UpdateStatus moves a project through its lifecycle
func (s *ProjectService) UpdateStatus(ctx context.Context, actor *entities.User, id string, next entities.ProjectStatus) (*entities.Project, error) {
	var (
		project *entities.Project
		from    entities.ProjectStatus
	)
	err := s.deps.withLock(ctx, projectLockKey(id), func() error {
		var err error
		if project, err = s.Get(ctx, id); err != nil {
			return err
		}
		from = project.Status
		if !from.CanTransitionTo(next) {
			return newError(ErrInvalidTransition, "Cannot move project %s from %s to %s", project.Code, from, next)
		}
		project.Status = next
		project.UpdatedAt = s.deps.now()
		if err := s.deps.Repos.Projects.UpdateProject(ctx, project); err != nil {
			return fmt.Errorf("failed to update project %s: %w", project.Code, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.deps.Logger.Info("project status changed",
		zap.String("code", project.Code),
		zap.String("from", string(from)),
		zap.String("to", string(next)),
		zap.String("user_id", actorID(actor)))
	s.deps.publish(ctx, events.NewProjectStatusEvent(project.ID, from, next))
	return project, nil
}

// Stats summarizes the budget and material progress of a project
func (s *ProjectService) Stats(ctx context.Context, id string) (*dto.ProjectStats, error) {
	project, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	movements, err := s.deps.Repos.Stock.ListMovements(ctx, repositories.MovementFilter{ProjectID: id})
	if err != nil {
		return nil, fmt.Errorf("failed to list movements of %s: %w", project.Code, err)
	}
	_, pending, err := s.deps.Repos.Requisitions.ListRequisitions(ctx, repositories.RequisitionFilter{
		ProjectID: id,
		Status:    entities.RequisitionPending,
		Page:      repositories.Page{Page: 1, Limit: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count requisitions of %s: %w", project.Code, err)
	}
	items, _, err := s.deps.Repos.BOQ.ListBOQItems(ctx, repositories.BOQFilter{ProjectID: id})
	if err != nil {
		return nil, fmt.Errorf("failed to list BOQ of %s: %w", project.Code, err)
	}

	issued := 0
	for _, m := range movements {
		if m.Type == entities.MovementIssue {
			issued++
		}
	}
	planned, consumed := decimal.Zero, decimal.Zero
	for _, item := range items {
		planned = planned.Add(item.Amount())
		consumed = consumed.Add(decimal.Min(item.ConsumedQty, item.PlannedQty).Mul(item.UnitRate))
	}
	completion := decimal.Zero
	if planned.IsPositive() {
		completion = consumed.Div(planned).Mul(decimal.NewFromInt(100)).Round(2)
	}

	return &dto.ProjectStats{
		ProjectID:           project.ID,
		Budget:              project.Budget,
		Spent:               project.Spent,
		Remaining:           project.Remaining(),
		Utilization:         project.Utilization(),
		MaterialsIssued:     issued,
		PendingRequisitions: pending,
		CompletionPercent:   completion,
	}, nil
}

// ListBOQ returns one page of a project's BOQ lines
func (s *ProjectService) ListBOQ(ctx context.Context, filter repositories.BOQFilter) (dto.Page[dto.BOQLine], error) {
	if _, err := s.Get(ctx, filter.ProjectID); err != nil {
		return dto.Page[dto.BOQLine]{}, err
	}
	filter.Page = dto.NormalizePage(filter.Page.Page, filter.Page.Limit)
	items, total, err := s.deps.Repos.BOQ.ListBOQItems(ctx, filter)
	if err != nil {
		return dto.Page[dto.BOQLine]{}, fmt.Errorf("failed to list BOQ: %w", err)
	}
	lines := make([]dto.BOQLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, dto.NewBOQLine(item))
	}
	return dto.NewPage(lines, total, filter.Page), nil
}

// GetBOQ returns one BOQ line of a project
func (s *ProjectService) GetBOQ(ctx context.Context, projectID, itemID string) (dto.BOQLine, error) {
	item, err := s.boqItem(ctx, projectID, itemID)
	if err != nil {
		return dto.BOQLine{}, err
	}
	return dto.NewBOQLine(item), nil
}

// CreateBOQ adds a line to a project's BOQ; each material appears once per project
func (s *ProjectService) CreateBOQ(ctx context.Context, projectID string, in BOQInput) (dto.BOQLine, error) {
	project, err := s.Get(ctx, projectID)
	if err != nil {
		return dto.BOQLine{}, err
	}
	material, err := s.deps.Repos.Materials.GetMaterial(ctx, in.MaterialID)
	if err != nil {
		return dto.BOQLine{}, loadError(err, "Material")
	}

	unit := in.Unit
	if unit == "" {
		unit = material.Unit
	}
	item, err := entities.NewBOQItem(project.ID, material.ID, unit, in.PlannedQty, in.UnitRate)
	if err != nil {
		return dto.BOQLine{}, invalid("%v", err)
	}
	now := s.deps.now()
	item.ID = s.deps.NewID()
	item.Description = in.Description
	if item.Description == "" {
		item.Description = material.Name
	}
	item.Category = in.Category
	if item.Category == "" {
		item.Category = string(material.Category)
	}
	item.ConsumedQty = decimal.Zero
	item.Specifications = in.Specifications
	item.CreatedAt = now
	item.UpdatedAt = now

	err = s.deps.Repos.BOQ.CreateBOQItem(ctx, item)
	if errors.Is(err, repositories.ErrAlreadyExists) {
		return dto.BOQLine{}, conflict("Material %s is already in the BOQ of %s", material.Code, project.Code)
	}
	if err != nil {
		return dto.BOQLine{}, fmt.Errorf("failed to create BOQ line: %w", err)
	}
	return dto.NewBOQLine(item), nil
}

// UpdateBOQ applies a partial update to a BOQ line
func (s *ProjectService) UpdateBOQ(ctx context.Context, projectID, itemID string, in BOQUpdate) (dto.BOQLine, error) {
	item, err := s.boqItem(ctx, projectID, itemID)
	if err != nil {
		return dto.BOQLine{}, err
	}
	if in.Description != nil {
		item.Description = *in.Description
	}
	if in.Category != nil {
		item.Category = *in.Category
	}
	if in.Unit != nil {
		item.Unit = *in.Unit
	}
	if in.PlannedQty != nil {
		item.PlannedQty = *in.PlannedQty
	}
	if in.ConsumedQty != nil {
		item.ConsumedQty = *in.ConsumedQty
	}
	if in.UnitRate != nil {
		item.UnitRate = *in.UnitRate
	}
	if in.Specifications != nil {
		item.Specifications = *in.Specifications
	}
	if err := item.Validate(); err != nil {
		return dto.BOQLine{}, invalid("%v", err)
	}
	item.UpdatedAt = s.deps.now()
	if err := s.deps.Repos.BOQ.UpdateBOQItem(ctx, item); err != nil {
		return dto.BOQLine{}, fmt.Errorf("failed to update BOQ line %s: %w", item.ID, err)
	}
	return dto.NewBOQLine(item), nil
}

// DeleteBOQ removes a BOQ line
func (s *ProjectService) DeleteBOQ(ctx context.Context, projectID, itemID string) error {
	item, err := s.boqItem(ctx, projectID, itemID)
	if err != nil {
		return err
	}
	if err := s.deps.Repos.BOQ.DeleteBOQItem(ctx, item.ID); err != nil {
		return fmt.Errorf("failed to delete BOQ line %s: %w", item.ID, err)
	}
	return nil
}

// BOQSummary totals a project's BOQ by category
func (s *ProjectService) BOQSummary(ctx context.Context, projectID string) (*dto.BOQSummary, error) {
	if _, err := s.Get(ctx, projectID); err != nil {
		return nil, err
	}
	items, _, err := s.deps.Repos.BOQ.ListBOQItems(ctx, repositories.BOQFilter{ProjectID: projectID})
	if err != nil {
		return nil, fmt.Errorf("failed to list BOQ: %w", err)
	}
	summary := &dto.BOQSummary{
		ProjectID:   projectID,
		TotalItems:  len(items),
		TotalAmount: decimal.Zero,
		ByCategory:  map[string]decimal.Decimal{},
	}
	for _, item := range items {
		amount := item.Amount()
		summary.TotalAmount = summary.TotalAmount.Add(amount)
		category := item.Category
		if category == "" {
			category = string(entities.CategoryOther)
		}
		summary.ByCategory[category] = summary.ByCategory[category].Add(amount)
	}
	return summary, nil
}

// ImportBOQ adds a BOQ line for every valid CSV row, matching materials by code
func (s *ProjectService) ImportBOQ(ctx context.Context, projectID string, r io.Reader) (*dto.ImportResult, error) {
	if _, err := s.Get(ctx, projectID); err != nil {
		return nil, err
	}
	rows, rowErrors, err := s.loader.ReadBOQ(r)
	if err != nil {
		return nil, invalid("%v", err)
	}

	result := &dto.ImportResult{Errors: []dto.ImportError{}}
	for _, re := range rowErrors {
		result.Errors = append(result.Errors, dto.ImportError{Row: re.Line, Error: re.Msg})
	}
	for _, row := range rows {
		material, err := s.deps.Repos.Materials.GetMaterialByCode(ctx, row.MaterialCode)
		if isNotFound(err) {
			result.Errors = append(result.Errors, dto.ImportError{Row: row.Line, Error: "unknown material code " + row.MaterialCode})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load material %s: %w", row.MaterialCode, err)
		}
		_, err = s.CreateBOQ(ctx, projectID, BOQInput{
			MaterialID:  material.ID,
			Description: row.Description,
			Category:    row.Category,
			Unit:        row.Unit,
			PlannedQty:  row.PlannedQty,
			UnitRate:    row.UnitRate,
		})
		if err != nil {
			var appErr *Error
			if !errors.As(err, &appErr) {
				return nil, err
			}
			result.Errors = append(result.Errors, dto.ImportError{Row: row.Line, Error: appErr.Msg})
			continue
		}
		result.Imported++
	}
	result.Failed = len(result.Errors)
	sort.SliceStable(result.Errors, func(i, j int) bool { return result.Errors[i].Row < result.Errors[j].Row })
	return result, nil
}

// ExportBOQ writes a project's BOQ as CSV
func (s *ProjectService) ExportBOQ(ctx context.Context, projectID string, w io.Writer) error {
	if _, err := s.Get(ctx, projectID); err != nil {
		return err
	}
	items, _, err := s.deps.Repos.BOQ.ListBOQItems(ctx, repositories.BOQFilter{ProjectID: projectID})
	if err != nil {
		return fmt.Errorf("failed to list BOQ: %w", err)
	}
	codes := make(map[string]string, len(items))
	for _, item := range items {
		material, err := s.deps.Repos.Materials.GetMaterial(ctx, item.MaterialID)
		if err == nil {
			codes[item.MaterialID] = material.Code
		} else if !isNotFound(err) {
			return fmt.Errorf("failed to load material %s: %w", item.MaterialID, err)
		}
	}
	return s.loader.WriteBOQ(w, items, codes)
}

func (s *ProjectService) boqItem(ctx context.Context, projectID, itemID string) (*entities.BOQItem, error) {
	item, err := s.deps.Repos.BOQ.GetBOQItem(ctx, itemID)
	if err != nil {
		return nil, loadError(err, "BOQ item")
	}
	if item.ProjectID != projectID {
		return nil, notFound("BOQ item")
	}
	return item, nil
}
