package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	testhelpers "github.com/vsinha/cims/pkg/application/services/testing"
	"github.com/vsinha/cims/pkg/domain/entities"
)

func TestDashboardService(t *testing.T) {
	f := newFixture(t)
	suppliers := NewSupplierService(f.deps)
	svc := NewDashboardService(f.deps, suppliers)
	orders := NewPurchaseOrderService(f.deps)
	requisitions := NewRequisitionService(f.deps, orders)
	inventory := NewInventoryService(f.deps)

	f.MustAddBatch(f.Cement, f.Central, "C1", "70", "8", testhelpers.Epoch)
	f.MustAddBatch(f.Rebar, f.Central, "R1", "5", "700", testhelpers.Epoch)

	pending, _ := orders.Create(bg, f.StoreKeeper, cementOrder(f, "100"))
	orders.Submit(bg, f.StoreKeeper, pending.ID)
	cancelled, _ := orders.Create(bg, f.StoreKeeper, cementOrder(f, "1000"))
	orders.Cancel(bg, f.StoreKeeper, cancelled.ID, "duplicate")

	requisitions.Create(bg, f.Worker, RequisitionInput{
		ProjectID: f.Tower.ID,
		Items:     []entities.RequisitionItem{{MaterialID: f.Sand.ID, Quantity: dec("3")}},
	})
	if _, err := inventory.IssueToProject(bg, f.StoreKeeper, IssueInput{MaterialID: f.Cement.ID, ProjectID: f.Tower.ID, Quantity: dec("10")}); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	f.Clock.Advance(time.Hour)

	t.Run("stats", func(t *testing.T) {
		stats, err := svc.Stats(bg)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		// 60 x 8 + 5 x 700
		if !stats.TotalInventoryValue.Equal(dec("3980")) {
			t.Errorf("Expected inventory value 3980, got %s", stats.TotalInventoryValue)
		}
		if stats.TotalMaterials != 3 {
			t.Errorf("Expected 3 materials, got %d", stats.TotalMaterials)
		}
		// cement below 100 and sand at its zero reorder point
		if stats.LowStockCount != 2 {
			t.Errorf("Expected 2 low stock materials, got %d", stats.LowStockCount)
		}
		if stats.PendingRequests != 1 || stats.PendingOrders != 1 || stats.ActiveProjects != 1 {
			t.Errorf("Expected 1 pending request, order and active project, got %d %d %d",
				stats.PendingRequests, stats.PendingOrders, stats.ActiveProjects)
		}
	})

	t.Run("stock value by category", func(t *testing.T) {
		values, err := svc.StockValueByCategory(bg)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if len(values) != 2 {
			t.Fatalf("Expected 2 categories, got %d", len(values))
		}
		if values[0].Category != entities.CategorySteel || !values[0].Value.Equal(dec("3500")) {
			t.Errorf("Expected steel first at 3500, got %s at %s", values[0].Category, values[0].Value)
		}
		sum := values[0].Percentage.Add(values[1].Percentage)
		if sum.Sub(decimal.NewFromInt(100)).Abs().GreaterThan(dec("0.02")) {
			t.Errorf("Expected percentages to add up to 100, got %s", sum)
		}
	})

	t.Run("purchase order stats", func(t *testing.T) {
		stats, err := svc.POStats(bg)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if stats.TotalOrders != 2 || stats.PendingOrders != 1 {
			t.Errorf("Expected 2 orders with 1 pending, got %d with %d", stats.TotalOrders, stats.PendingOrders)
		}
		if !stats.TotalValue.Equal(dec("850")) {
			t.Errorf("Expected cancelled orders excluded from value 850, got %s", stats.TotalValue)
		}
	})

	t.Run("supplier ranking", func(t *testing.T) {
		ranking, err := svc.SupplierPerformance(bg, 0)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if len(ranking) != 2 || ranking[0].SupplierID != f.Supplier.ID {
			t.Fatalf("Expected BuildMart to lead, got %+v", ranking)
		}
		if ranking[0].TotalOrders != 2 {
			t.Errorf("Expected 2 orders for BuildMart, got %d", ranking[0].TotalOrders)
		}
	})

	t.Run("budget utilization", func(t *testing.T) {
		budgets, err := svc.ProjectBudgetUtilization(bg)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if len(budgets) != 2 || budgets[0].ProjectName != "Harbour Tower" {
			t.Fatalf("Expected both projects ordered by name, got %+v", budgets)
		}
		if !budgets[0].Spent.Equal(dec("80")) {
			t.Errorf("Expected 80 spent on the tower, got %s", budgets[0].Spent)
		}
	})

	t.Run("kpis", func(t *testing.T) {
		kpis, err := svc.KPIs(bg)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if len(kpis) != 4 {
			t.Fatalf("Expected 4 KPIs, got %d", len(kpis))
		}
		issued := kpis[0]
		if issued.Label != "Materials Issued (30d)" || !issued.Value.Equal(dec("10")) || issued.ChangeType != "increase" {
			t.Errorf("Expected 10 issued and increasing, got %+v", issued)
		}
		if kpis[1].ChangeType != "neutral" {
			t.Errorf("Expected no receipts to be neutral, got %s", kpis[1].ChangeType)
		}
		if !kpis[2].Value.Equal(dec("2")) {
			t.Errorf("Expected 2 orders raised, got %s", kpis[2].Value)
		}
	})
}

func TestDashboardService_Activities(t *testing.T) {
	f := newFixture(t)
	svc := NewDashboardService(f.deps, NewSupplierService(f.deps))
	auth := newAuth(f)

	auth.RecordActivity(bg, f.Manager, "GET /api/v1/materials")
	f.Clock.Advance(time.Minute)
	auth.RecordActivity(bg, f.Admin, "POST /api/v1/projects")

	activities, err := svc.Activities(bg, 0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(activities) != 2 {
		t.Fatalf("Expected 2 activities, got %d", len(activities))
	}
	if activities[0].Description != "Ada Admin: POST /api/v1/projects" {
		t.Errorf("Expected newest activity first, got %q", activities[0].Description)
	}
}
