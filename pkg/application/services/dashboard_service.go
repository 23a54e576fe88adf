package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/cims/pkg/application/dto"
	"github.com/vsinha/cims/pkg/domain/entities"
	"github.com/vsinha/cims/pkg/domain/repositories"
)

const kpiPeriod = 30 * 24 * time.Hour

var hundred = decimal.NewFromInt(100)

// DashboardService aggregates figures for the dashboard
type DashboardService struct {
	deps      Dependencies
	suppliers *SupplierService
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(deps Dependencies, suppliers *SupplierService) *DashboardService {
	return &DashboardService{deps: deps.withDefaults(), suppliers: suppliers}
}

// Stats returns the headline counters
func (s *DashboardService) Stats(ctx context.Context) (*dto.DashboardStats, error) {
	batches, err := s.batches(ctx)
	if err != nil {
		return nil, err
	}
	value := decimal.Zero
	for _, b := range batches {
		value = value.Add(b.Value())
	}

	_, materials, err := s.deps.Repos.Materials.ListMaterials(ctx, repositories.MaterialFilter{Status: entities.MaterialActive, Page: countOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to count materials: %w", err)
	}
	low, err := lowStockItems(ctx, s.deps)
	if err != nil {
		return nil, err
	}
	_, requests, err := s.deps.Repos.Requisitions.ListRequisitions(ctx, repositories.RequisitionFilter{Status: entities.RequisitionPending, Page: countOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to count requisitions: %w", err)
	}
	_, projects, err := s.deps.Repos.Projects.ListProjects(ctx, repositories.ProjectFilter{Status: entities.ProjectActive, Page: countOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to count projects: %w", err)
	}
	_, orders, err := s.deps.Repos.PurchaseOrders.ListPurchaseOrders(ctx, repositories.PurchaseOrderFilter{
		Statuses: []entities.POStatus{entities.POPendingApproval},
		Page:     countOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count purchase orders: %w", err)
	}

	return &dto.DashboardStats{
		TotalInventoryValue: value,
		TotalMaterials:      materials,
		LowStockCount:       len(low),
		PendingRequests:     requests,
		ActiveProjects:      projects,
		PendingOrders:       orders,
		LowStockDetails:     low,
	}, nil
}

var countOnly = repositories.Page{Page: 1, Limit: 1}

// StockValueByCategory splits the inventory value by material category
func (s *DashboardService) StockValueByCategory(ctx context.Context) ([]dto.CategoryValue, error) {
	batches, err := s.batches(ctx)
	if err != nil {
		return nil, err
	}
	categories := map[string]entities.MaterialCategory{}
	values := map[entities.MaterialCategory]decimal.Decimal{}
	total := decimal.Zero
	for _, b := range batches {
		category, ok := categories[b.MaterialID]
		if !ok {
			material, err := s.deps.Repos.Materials.GetMaterial(ctx, b.MaterialID)
			if err != nil {
				return nil, loadError(err, "Material")
			}
			category = material.Category
			categories[b.MaterialID] = category
		}
		values[category] = values[category].Add(b.Value())
		total = total.Add(b.Value())
	}

	result := make([]dto.CategoryValue, 0, len(values))
	for category, value := range values {
		result = append(result, dto.CategoryValue{
			Category:   category,
			Value:      value,
			Percentage: percent(value, total),
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Value.Equal(result[j].Value) {
			return result[i].Value.GreaterThan(result[j].Value)
		}
		return result[i].Category < result[j].Category
	})
	return result, nil
}

// Activities returns the latest user activity
func (s *DashboardService) Activities(ctx context.Context, limit int) ([]dto.RecentActivity, error) {
	if limit <= 0 || limit > activityRetention {
		limit = 10
	}
	logs, err := s.deps.Repos.Activities.ListRecentActivity(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	result := make([]dto.RecentActivity, 0, len(logs))
	for _, l := range logs {
		result = append(result, dto.RecentActivity{
			ID:          l.ID,
			Action:      l.Action,
			Description: fmt.Sprintf("%s: %s", l.UserName, l.Action),
			Timestamp:   l.CreatedAt,
			User:        l.UserName,
		})
	}
	return result, nil
}

// POStats counts purchase orders by stage and totals the committed value
func (s *DashboardService) POStats(ctx context.Context) (*dto.POStats, error) {
	orders, _, err := s.deps.Repos.PurchaseOrders.ListPurchaseOrders(ctx, repositories.PurchaseOrderFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list purchase orders: %w", err)
	}
	stats := &dto.POStats{TotalOrders: len(orders), TotalValue: decimal.Zero}
	for _, po := range orders {
		switch po.Status {
		case entities.POPendingApproval:
			stats.PendingOrders++
		case entities.POCompleted:
			stats.CompletedOrders++
		}
		if po.Status != entities.POCancelled && po.Status != entities.PORejected {
			stats.TotalValue = stats.TotalValue.Add(po.TotalAmount)
		}
	}
	return stats, nil
}

// SupplierPerformance ranks suppliers by performance score
func (s *DashboardService) SupplierPerformance(ctx context.Context, limit int) ([]dto.SupplierPerformance, error) {
	suppliers, _, err := s.deps.Repos.Suppliers.ListSuppliers(ctx, repositories.SupplierFilter{
		Sort: repositories.Sort{Field: "performanceScore", Desc: true},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list suppliers: %w", err)
	}
	if limit <= 0 {
		limit = 5
	}
	if len(suppliers) > limit {
		suppliers = suppliers[:limit]
	}

	result := make([]dto.SupplierPerformance, 0, len(suppliers))
	for _, supplier := range suppliers {
		orders, err := s.suppliers.orders(ctx, supplier.ID)
		if err != nil {
			return nil, err
		}
		metrics, err := s.suppliers.metrics(ctx, supplier.ID, orders)
		if err != nil {
			return nil, err
		}
		result = append(result, dto.SupplierPerformance{
			SupplierID:         supplier.ID,
			SupplierName:       supplier.Name,
			PerformanceScore:   supplier.PerformanceScore,
			TotalOrders:        len(orders),
			OnTimeDeliveryRate: metrics.OnTimeDeliveryRate.Mul(hundred).Round(2),
		})
	}
	return result, nil
}

// ProjectBudgetUtilization reports spend against budget for live projects
func (s *DashboardService) ProjectBudgetUtilization(ctx context.Context) ([]dto.ProjectBudget, error) {
	projects, _, err := s.deps.Repos.Projects.ListProjects(ctx, repositories.ProjectFilter{Sort: repositories.Sort{Field: "name"}})
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	result := []dto.ProjectBudget{}
	for _, p := range projects {
		if p.Status == entities.ProjectCancelled {
			continue
		}
		result = append(result, dto.ProjectBudget{
			ProjectID:             p.ID,
			ProjectName:           p.Name,
			Budget:                p.Budget,
			Spent:                 p.Spent,
			Remaining:             p.Remaining(),
			UtilizationPercentage: p.Utilization(),
		})
	}
	return result, nil
}

// KPIs compares the last 30 days of activity with the 30 days before
func (s *DashboardService) KPIs(ctx context.Context) ([]dto.KPI, error) {
	now := s.deps.now()
	current := repositories.DateRange{From: now.Add(-kpiPeriod), To: now}
	previous := repositories.DateRange{From: now.Add(-2 * kpiPeriod), To: current.From}

	movements, err := s.deps.Repos.Stock.ListMovements(ctx, repositories.MovementFilter{
		Created: repositories.DateRange{From: previous.From, To: now},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list movements: %w", err)
	}
	issued := [2]decimal.Decimal{}
	received := [2]decimal.Decimal{}
	for _, m := range movements {
		period := 1
		if !m.CreatedAt.Before(current.From) {
			period = 0
		}
		switch m.Type {
		case entities.MovementIssue:
			issued[period] = issued[period].Add(m.Quantity.Abs())
		case entities.MovementReceipt:
			received[period] = received[period].Add(m.Quantity)
		}
	}

	orders, _, err := s.deps.Repos.PurchaseOrders.ListPurchaseOrders(ctx, repositories.PurchaseOrderFilter{
		Created: repositories.DateRange{From: previous.From, To: now},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list purchase orders: %w", err)
	}
	raised := [2]decimal.Decimal{decimal.Zero, decimal.Zero}
	for _, po := range orders {
		if current.Contains(po.CreatedAt) {
			raised[0] = raised[0].Add(decimal.NewFromInt(1))
		} else {
			raised[1] = raised[1].Add(decimal.NewFromInt(1))
		}
	}

	budgets, err := s.ProjectBudgetUtilization(ctx)
	if err != nil {
		return nil, err
	}
	utilization := decimal.Zero
	if len(budgets) > 0 {
		for _, b := range budgets {
			utilization = utilization.Add(b.UtilizationPercentage)
		}
		utilization = utilization.Div(decimal.NewFromInt(int64(len(budgets)))).Round(2)
	}

	return []dto.KPI{
		newKPI("Materials Issued (30d)", issued[0], issued[1]),
		newKPI("Goods Received (30d)", received[0], received[1]),
		newKPI("Purchase Orders Raised (30d)", raised[0], raised[1]),
		{Label: "Average Budget Utilization", Value: utilization, Change: decimal.Zero, ChangeType: "neutral"},
	}, nil
}

func newKPI(label string, current, previous decimal.Decimal) dto.KPI {
	kpi := dto.KPI{Label: label, Value: current, Change: decimal.Zero, ChangeType: "neutral"}
	if previous.IsPositive() {
		kpi.Change = current.Sub(previous).Div(previous).Mul(hundred).Round(2)
	} else if current.IsPositive() {
		kpi.Change = hundred
	}
	switch kpi.Change.Sign() {
	case 1:
		kpi.ChangeType = "increase"
	case -1:
		kpi.ChangeType = "decrease"
	}
	return kpi
}

func (s *DashboardService) batches(ctx context.Context) ([]*entities.StockBatch, error) {
	batches, _, err := s.deps.Repos.Stock.ListBatches(ctx, repositories.StockFilter{OnlyAvailable: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list stock: %w", err)
	}
	return batches, nil
}

func percent(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred).Round(2)
}
