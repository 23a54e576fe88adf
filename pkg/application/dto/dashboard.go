package dto

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/vsinha/cims/pkg/domain/entities"
)

// DashboardStats are the headline numbers of the dashboard
type DashboardStats struct {
	TotalInventoryValue decimal.Decimal `json:"totalInventoryValue"`
	TotalMaterials      int             `json:"totalMaterials"`
	LowStockCount       int             `json:"lowStockCount"`
	PendingRequests     int             `json:"pendingRequests"`
	ActiveProjects      int             `json:"activeProjects"`
	PendingOrders       int             `json:"pendingOrders"`
	LowStockDetails     []LowStockItem  `json:"lowStockDetails"`
}

// LowStockItem is a material at or below its reorder point
type LowStockItem struct {
	MaterialID   string          `json:"materialId"`
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	Unit         string          `json:"unit"`
	CurrentStock decimal.Decimal `json:"currentStock"`
	ReorderLevel decimal.Decimal `json:"reorderLevel"`
	Deficit      decimal.Decimal `json:"deficit"`
}

// CategoryValue is the stock value of one material category
type CategoryValue struct {
	Category   entities.MaterialCategory `json:"category"`
	Value      decimal.Decimal           `json:"value"`
	Percentage decimal.Decimal           `json:"percentage"`
}

// POStats summarizes purchase orders
type POStats struct {
	TotalOrders     int             `json:"totalOrders"`
	PendingOrders   int             `json:"pendingOrders"`
	CompletedOrders int             `json:"completedOrders"`
	TotalValue      decimal.Decimal `json:"totalValue"`
}

// SupplierPerformance ranks a supplier
type SupplierPerformance struct {
	SupplierID         string          `json:"supplierId"`
	SupplierName       string          `json:"supplierName"`
	PerformanceScore   decimal.Decimal `json:"performanceScore"`
	TotalOrders        int             `json:"totalOrders"`
	OnTimeDeliveryRate decimal.Decimal `json:"onTimeDeliveryRate"`
}

// ProjectBudget shows how much of a project's budget is spent
type ProjectBudget struct {
	ProjectID             string          `json:"projectId"`
	ProjectName           string          `json:"projectName"`
	Budget                decimal.Decimal `json:"budget"`
	Spent                 decimal.Decimal `json:"spent"`
	Remaining             decimal.Decimal `json:"remaining"`
	UtilizationPercentage decimal.Decimal `json:"utilizationPercentage"`
}

// KPI is one key indicator with its change over the comparison window
type KPI struct {
	Label      string          `json:"label"`
	Value      decimal.Decimal `json:"value"`
	Change     decimal.Decimal `json:"change"`
	ChangeType string          `json:"changeType"`
}

// RecentActivity is an activity log entry as shown on the dashboard
type RecentActivity struct {
	ID          string    `json:"id"`
	Action      string    `json:"action"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
	User        string    `json:"user"`
}
