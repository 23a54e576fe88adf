package dto

import (
	"github.com/shopspring/decimal"
	"github.com/vsinha/cims/pkg/domain/entities"
)

// ProjectStats summarizes budget and material progress of a project
type ProjectStats struct {
	ProjectID           string          `json:"projectId"`
	Budget              decimal.Decimal `json:"budget"`
	Spent               decimal.Decimal `json:"spent"`
	Remaining           decimal.Decimal `json:"remaining"`
	Utilization         decimal.Decimal `json:"utilization"`
	MaterialsIssued     int             `json:"materialsIssued"`
	PendingRequisitions int             `json:"pendingRequisitions"`
	CompletionPercent   decimal.Decimal `json:"completionPercent"`
}

// BOQLine is a BOQ item with its derived figures
type BOQLine struct {
	*entities.BOQItem
	Amount       decimal.Decimal `json:"amount"`
	UsagePercent decimal.Decimal `json:"usagePercent"`
	IsCritical   bool            `json:"isCritical"`
}

// NewBOQLine derives the computed fields of a BOQ item
func NewBOQLine(item *entities.BOQItem) BOQLine {
	return BOQLine{
		BOQItem:      item,
		Amount:       item.Amount(),
		UsagePercent: item.UsagePercent(),
		IsCritical:   item.IsCritical(),
	}
}

// BOQSummary totals a project's BOQ
type BOQSummary struct {
	ProjectID   string                     `json:"projectId"`
	TotalItems  int                        `json:"totalItems"`
	TotalAmount decimal.Decimal            `json:"totalAmount"`
	ByCategory  map[string]decimal.Decimal `json:"byCategory"`
}

// SupplierDetail is a supplier with its delivery metrics and open orders
type SupplierDetail struct {
	*entities.Supplier
	Metrics      entities.SupplierMetrics  `json:"metrics"`
	ActiveOrders []*entities.PurchaseOrder `json:"activeOrders"`
}
