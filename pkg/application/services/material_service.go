package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vsinha/cims/pkg/application/dto"
	"github.com/vsinha/cims/pkg/domain/entities"
	"github.com/vsinha/cims/pkg/domain/repositories"
	"github.com/vsinha/cims/pkg/infrastructure/events"
	csvio "github.com/vsinha/cims/pkg/infrastructure/repositories/csv"
)

// MaterialInput carries the fields of a new material
type MaterialInput struct {
	Code           string                    `json:"code,omitempty"`
	Name           string                    `json:"name"`
	Category       entities.MaterialCategory `json:"category"`
	Unit           string                    `json:"unit"`
	UnitPrice      decimal.Decimal           `json:"unitPrice"`
	MinStock       decimal.Decimal           `json:"minStock"`
	MaxStock       decimal.Decimal           `json:"maxStock"`
	ReorderPoint   decimal.Decimal           `json:"reorderPoint"`
	Description    string                    `json:"description,omitempty"`
	Specifications map[string]string         `json:"specifications,omitempty"`
	Status         entities.MaterialStatus   `json:"status,omitempty"`
}

// MaterialUpdate carries a partial update; nil fields are left unchanged.
// When Version is set it must match the stored version.
type MaterialUpdate struct {
	Name           *string                    `json:"name,omitempty"`
	Category       *entities.MaterialCategory `json:"category,omitempty"`
	Unit           *string                    `json:"unit,omitempty"`
	UnitPrice      *decimal.Decimal           `json:"unitPrice,omitempty"`
	MinStock       *decimal.Decimal           `json:"minStock,omitempty"`
	MaxStock       *decimal.Decimal           `json:"maxStock,omitempty"`
	ReorderPoint   *decimal.Decimal           `json:"reorderPoint,omitempty"`
	Description    *string                    `json:"description,omitempty"`
	Specifications map[string]string          `json:"specifications,omitempty"`
	Status         *entities.MaterialStatus   `json:"status,omitempty"`
	Version        *int                       `json:"version,omitempty"`
}

// MaterialService manages the material master
type MaterialService struct {
	deps   Dependencies
	loader *csvio.Loader
}

// NewMaterialService creates a new material service
func NewMaterialService(deps Dependencies) *MaterialService {
	return &MaterialService{deps: deps.withDefaults(), loader: csvio.NewLoader()}
}

// List returns one page of materials with their current stock
func (s *MaterialService) List(ctx context.Context, filter repositories.MaterialFilter) (dto.Page[*entities.Material], error) {
	filter.Page = dto.NormalizePage(filter.Page.Page, filter.Page.Limit)
	materials, total, err := s.deps.Repos.Materials.ListMaterials(ctx, filter)
	if err != nil {
		return dto.Page[*entities.Material]{}, fmt.Errorf("failed to list materials: %w", err)
	}
	if err := s.withStock(ctx, materials); err != nil {
		return dto.Page[*entities.Material]{}, err
	}
	return dto.NewPage(materials, total, filter.Page), nil
}

// Get returns a material with its current stock
func (s *MaterialService) Get(ctx context.Context, id string) (*entities.Material, error) {
	material, err := s.deps.Repos.Materials.GetMaterial(ctx, id)
	if err != nil {
		return nil, loadError(err, "Material")
	}
	balance, err := s.deps.Repos.Stock.Balance(ctx, id, "")
	if err != nil {
		return nil, fmt.Errorf("failed to load stock of %s: %w", material.Code, err)
	}
	material.CurrentStock = balance
	return material, nil
}

// Create adds a material; the code is generated from the category unless supplied
func (s *MaterialService) Create(ctx context.Context, actor *entities.User, in MaterialInput) (*entities.Material, error) {
	now := s.deps.now()
	material := &entities.Material{
		ID:             s.deps.NewID(),
		Code:           strings.ToUpper(strings.TrimSpace(in.Code)),
		Name:           strings.TrimSpace(in.Name),
		Category:       in.Category,
		Unit:           strings.TrimSpace(in.Unit),
		UnitPrice:      in.UnitPrice,
		MinStock:       in.MinStock,
		MaxStock:       in.MaxStock,
		ReorderPoint:   in.ReorderPoint,
		Description:    in.Description,
		Specifications: in.Specifications,
		Status:         in.Status,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if material.Category == "" {
		material.Category = entities.CategoryOther
	}
	if material.Status == "" {
		material.Status = entities.MaterialActive
	}
	if err := material.Validate(); err != nil {
		return nil, invalid("%v", err)
	}

	if err := s.insert(ctx, material); err != nil {
		return nil, err
	}

	s.deps.Logger.Info("material created",
		zap.String("code", material.Code),
		zap.String("category", string(material.Category)),
		zap.String("user_id", actorID(actor)))
	s.deps.publish(ctx, events.NewMaterialEvent(events.MaterialCreatedEvent, material))
	return material, nil
}

func (s *MaterialService) insert(ctx context.Context, material *entities.Material) error {
	repo := s.deps.Repos.Materials
	if material.Code != "" {
		err := repo.CreateMaterial(ctx, material)
		if errors.Is(err, repositories.ErrAlreadyExists) {
			return conflict("Material code %s already exists", material.Code)
		}
		if err != nil {
			return fmt.Errorf("failed to create material: %w", err)
		}
		return nil
	}

	_, err := s.deps.Codes.Allocate(ctx, repo, material.Category.CodePrefix(), func(code string) error {
		material.Code = code
		return repo.CreateMaterial(ctx, material)
	})
	if err != nil {
		return fmt.Errorf("failed to create material: %w", err)
	}
	return nil
}

// Update applies a partial update, rejecting stale versions
func (s *MaterialService) Update(ctx context.Context, actor *entities.User, id string, in MaterialUpdate) (*entities.Material, error) {
	material, err := s.deps.Repos.Materials.GetMaterial(ctx, id)
	if err != nil {
		return nil, loadError(err, "Material")
	}
	if in.Version != nil && *in.Version != material.Version {
		return nil, conflict("Material %s was modified by someone else (version %d, expected %d)",
			material.Code, material.Version, *in.Version)
	}

	if in.Name != nil {
		material.Name = strings.TrimSpace(*in.Name)
	}
	if in.Category != nil {
		material.Category = *in.Category
	}
	if in.Unit != nil {
		material.Unit = strings.TrimSpace(*in.Unit)
	}
	if in.UnitPrice != nil {
		material.UnitPrice = *in.UnitPrice
	}
	if in.MinStock != nil {
		material.MinStock = *in.MinStock
	}
	if in.MaxStock != nil {
		material.MaxStock = *in.MaxStock
	}
	if in.ReorderPoint != nil {
		material.ReorderPoint = *in.ReorderPoint
	}
	if in.Description != nil {
		material.Description = *in.Description
	}
	if in.Specifications != nil {
		material.Specifications = in.Specifications
	}
	if in.Status != nil {
		material.Status = *in.Status
	}
	if err := material.Validate(); err != nil {
		return nil, invalid("%v", err)
	}

	material.Version++
	material.UpdatedAt = s.deps.now()
	err = s.deps.Repos.Materials.UpdateMaterial(ctx, material)
	if errors.Is(err, repositories.ErrStaleVersion) {
		return nil, conflict("Material %s was modified by someone else while updating", material.Code)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update material %s: %w", material.Code, err)
	}

	s.deps.Logger.Info("material updated",
		zap.String("code", material.Code),
		zap.Int("version", material.Version),
		zap.String("user_id", actorID(actor)))
	s.deps.publish(ctx, events.NewMaterialEvent(events.MaterialUpdatedEvent, material))
	return material, nil
}

// Delete marks a material OBSOLETE. Purchase orders keep referencing it, so the
// record itself is never removed.
func (s *MaterialService) Delete(ctx context.Context, actor *entities.User, id string) error {
	material, err := s.deps.Repos.Materials.GetMaterial(ctx, id)
	if err != nil {
		return loadError(err, "Material")
	}
	if material.Status == entities.MaterialObsolete {
		return nil
	}
	material.Status = entities.MaterialObsolete
	material.Version++
	material.UpdatedAt = s.deps.now()
	err = s.deps.Repos.Materials.UpdateMaterial(ctx, material)
	if errors.Is(err, repositories.ErrStaleVersion) {
		return conflict("Material %s was modified by someone else while retiring it", material.Code)
	}
	if err != nil {
		return fmt.Errorf("failed to retire material %s: %w", material.Code, err)
	}

	s.deps.Logger.Info("material obsoleted", zap.String("code", material.Code), zap.String("user_id", actorID(actor)))
	s.deps.publish(ctx, events.NewMaterialEvent(events.MaterialObsoleteEvent, material))
	return nil
}

// Categories lists the known material categories
func (s *MaterialService) Categories() []entities.MaterialCategory {
	return entities.MaterialCategories()
}

// StockLevel compares a material's stock with its thresholds
func (s *MaterialService) StockLevel(ctx context.Context, id string) (*dto.StockLevel, error) {
	material, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.StockLevel{
		MaterialID:   material.ID,
		Code:         material.Code,
		Name:         material.Name,
		Unit:         material.Unit,
		CurrentStock: material.CurrentStock,
		ReorderPoint: material.ReorderPoint,
		MinStock:     material.MinStock,
		MaxStock:     material.MaxStock,
		IsLowStock:   material.IsLowStock(),
	}, nil
}

// LowStock returns ACTIVE materials at or below their reorder point, largest deficit first
func (s *MaterialService) LowStock(ctx context.Context) ([]dto.LowStockItem, error) {
	return lowStockItems(ctx, s.deps)
}

// Export writes every material as CSV
func (s *MaterialService) Export(ctx context.Context, w io.Writer) error {
	materials, err := s.all(ctx, "")
	if err != nil {
		return err
	}
	return s.loader.WriteMaterials(w, materials)
}

// Import creates a material for every valid CSV row; bad rows are reported, not fatal
func (s *MaterialService) Import(ctx context.Context, actor *entities.User, r io.Reader) (*dto.ImportResult, error) {
	rows, rowErrors, err := s.loader.ReadMaterials(r)
	if err != nil {
		return nil, invalid("%v", err)
	}

	result := &dto.ImportResult{Errors: []dto.ImportError{}}
	for _, re := range rowErrors {
		result.Errors = append(result.Errors, dto.ImportError{Row: re.Line, Error: re.Msg})
	}
	for _, row := range rows {
		_, err := s.Create(ctx, actor, MaterialInput{
			Code:         row.Code,
			Name:         row.Name,
			Category:     row.Category,
			Unit:         row.Unit,
			UnitPrice:    row.UnitPrice,
			MinStock:     row.MinStock,
			MaxStock:     row.MaxStock,
			ReorderPoint: row.ReorderPoint,
			Description:  row.Description,
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

	s.deps.Logger.Info("materials imported",
		zap.Int("imported", result.Imported),
		zap.Int("failed", result.Failed),
		zap.String("user_id", actorID(actor)))
	return result, nil
}

// all returns every material of a status ("" for any) with its current stock
func (s *MaterialService) all(ctx context.Context, status entities.MaterialStatus) ([]*entities.Material, error) {
	materials, _, err := s.deps.Repos.Materials.ListMaterials(ctx, repositories.MaterialFilter{
		Status: status,
		Sort:   repositories.Sort{Field: "code"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list materials: %w", err)
	}
	if err := s.withStock(ctx, materials); err != nil {
		return nil, err
	}
	return materials, nil
}

func (s *MaterialService) withStock(ctx context.Context, materials []*entities.Material) error {
	balances, err := s.deps.Repos.Stock.Balances(ctx)
	if err != nil {
		return fmt.Errorf("failed to load stock balances: %w", err)
	}
	for _, m := range materials {
		m.CurrentStock = balances[m.ID]
	}
	return nil
}
