package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vsinha/cims/pkg/application/dto"
	"github.com/vsinha/cims/pkg/application/services/shared"
	"github.com/vsinha/cims/pkg/domain/entities"
	"github.com/vsinha/cims/pkg/domain/repositories"
)

// PlanningService nets remaining BOQ demand against stock and open purchase orders
type PlanningService struct {
	deps Dependencies
}

// NewPlanningService creates a new planning service
func NewPlanningService(deps Dependencies) *PlanningService {
	return &PlanningService{deps: deps.withDefaults()}
}

// Plan computes shortages for one project, or for every ACTIVE project when
// projectID is empty. Projects starting earliest are served first.
func (s *PlanningService) Plan(ctx context.Context, projectID string) (*dto.PlanningResult, error) {
	projects, err := s.projects(ctx, projectID)
	if err != nil {
		return nil, err
	}

	pool := shared.NewSupplyPool()
	balances, err := s.deps.Repos.Stock.Balances(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stock balances: %w", err)
	}
	for materialID, qty := range balances {
		pool.AddStock(materialID, qty)
	}

	orders, _, err := s.deps.Repos.PurchaseOrders.ListPurchaseOrders(ctx, repositories.PurchaseOrderFilter{
		Statuses: []entities.POStatus{entities.POApproved, entities.POIssued, entities.POCompleted},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list purchase orders: %w", err)
	}
	for _, po := range orders {
		if !po.Status.IsOpen() {
			continue
		}
		for _, line := range po.Items {
			pool.AddOnOrder(line.MaterialID, line.Outstanding())
		}
	}

	now := s.deps.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	result := &dto.PlanningResult{
		GeneratedAt:        now,
		Allocations:        []dto.PlanAllocation{},
		Shortages:          []dto.Shortage{},
		SuggestedPurchases: []dto.SuggestedPurchase{},
	}
	materials := map[string]*entities.Material{}
	needBy := map[string]time.Time{}

	for _, project := range projects {
		items, _, err := s.deps.Repos.BOQ.ListBOQItems(ctx, repositories.BOQFilter{ProjectID: project.ID})
		if err != nil {
			return nil, fmt.Errorf("failed to list BOQ of %s: %w", project.Code, err)
		}
		needDate := today
		if project.StartDate.After(today) {
			needDate = project.StartDate
		}

		for _, item := range items {
			demand := item.RemainingQty()
			if !demand.IsPositive() {
				continue
			}
			material, err := s.material(ctx, materials, item.MaterialID)
			if err != nil {
				return nil, err
			}

			draw := pool.Draw(item.MaterialID, demand)
			result.Allocations = append(result.Allocations, dto.PlanAllocation{
				ProjectID:      project.ID,
				ProjectCode:    project.Code,
				MaterialID:     material.ID,
				MaterialCode:   material.Code,
				Required:       demand,
				FromStock:      draw.FromStock,
				FromOpenOrders: draw.FromOrders,
			})
			if !draw.Short.IsPositive() {
				continue
			}
			result.Shortages = append(result.Shortages, dto.Shortage{
				ProjectID:    project.ID,
				ProjectCode:  project.Code,
				MaterialID:   material.ID,
				MaterialCode: material.Code,
				MaterialName: material.Name,
				Unit:         material.Unit,
				ShortQty:     draw.Short,
				NeedDate:     needDate,
			})
			if earliest, ok := needBy[material.ID]; !ok || needDate.Before(earliest) {
				needBy[material.ID] = needDate
			}
		}
	}

	suppliers, err := s.preferredSuppliers(ctx, orders)
	if err != nil {
		return nil, err
	}
	for _, materialID := range pool.Materials() {
		supply := pool[materialID]
		if !supply.Unmet.IsPositive() {
			continue
		}
		material := materials[materialID]
		qty := decimal.Max(supply.Unmet, material.ReorderPoint).Ceil()
		purchase := dto.SuggestedPurchase{
			MaterialID:    material.ID,
			MaterialCode:  material.Code,
			MaterialName:  material.Name,
			Unit:          material.Unit,
			ShortageQty:   supply.Unmet,
			SuggestedQty:  qty,
			UnitPrice:     material.UnitPrice,
			EstimatedCost: qty.Mul(material.UnitPrice),
			NeedDate:      needBy[materialID],
		}
		if supplier := suppliers[materialID]; supplier != nil {
			purchase.PreferredSupplierID = supplier.ID
			purchase.PreferredSupplierName = supplier.Name
		}
		result.SuggestedPurchases = append(result.SuggestedPurchases, purchase)
	}

	s.deps.Logger.Info("planning run complete",
		zap.Int("projects", len(projects)),
		zap.Int("shortages", len(result.Shortages)),
		zap.String("coverage", pool.CoverageRatio().String()))
	return result, nil
}

func (s *PlanningService) projects(ctx context.Context, projectID string) ([]*entities.Project, error) {
	if projectID != "" {
		project, err := s.deps.Repos.Projects.GetProject(ctx, projectID)
		if err != nil {
			return nil, loadError(err, "Project")
		}
		return []*entities.Project{project}, nil
	}

	projects, _, err := s.deps.Repos.Projects.ListProjects(ctx, repositories.ProjectFilter{Status: entities.ProjectActive})
	if err != nil {
		return nil, fmt.Errorf("failed to list active projects: %w", err)
	}
	sort.SliceStable(projects, func(i, j int) bool {
		if !projects[i].StartDate.Equal(projects[j].StartDate) {
			return projects[i].StartDate.Before(projects[j].StartDate)
		}
		return projects[i].Code < projects[j].Code
	})
	return projects, nil
}

func (s *PlanningService) material(ctx context.Context, cache map[string]*entities.Material, id string) (*entities.Material, error) {
	if m, ok := cache[id]; ok {
		return m, nil
	}
	m, err := s.deps.Repos.Materials.GetMaterial(ctx, id)
	if err != nil {
		return nil, loadError(err, "Material")
	}
	cache[id] = m
	return m, nil
}

// preferredSuppliers picks, per material, the ACTIVE supplier with the best
// score among those that have been issued an order for it
func (s *PlanningService) preferredSuppliers(ctx context.Context, orders []*entities.PurchaseOrder) (map[string]*entities.Supplier, error) {
	suppliers := map[string]*entities.Supplier{}
	preferred := map[string]*entities.Supplier{}
	for _, po := range orders {
		if po.Status != entities.POIssued && po.Status != entities.POCompleted {
			continue
		}
		supplier, ok := suppliers[po.SupplierID]
		if !ok {
			var err error
			supplier, err = s.deps.Repos.Suppliers.GetSupplier(ctx, po.SupplierID)
			if err != nil && !isNotFound(err) {
				return nil, fmt.Errorf("failed to load supplier %s: %w", po.SupplierID, err)
			}
			suppliers[po.SupplierID] = supplier
		}
		if supplier == nil || supplier.Status != entities.SupplierActive {
			continue
		}
		for _, line := range po.Items {
			current := preferred[line.MaterialID]
			if current == nil || betterSupplier(supplier, current) {
				preferred[line.MaterialID] = supplier
			}
		}
	}
	return preferred, nil
}

func betterSupplier(a, b *entities.Supplier) bool {
	if !a.PerformanceScore.Equal(b.PerformanceScore) {
		return a.PerformanceScore.GreaterThan(b.PerformanceScore)
	}
	return a.Name < b.Name
}
