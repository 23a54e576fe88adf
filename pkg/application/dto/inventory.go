package dto

import (
	"github.com/shopspring/decimal"
	"github.com/vsinha/cims/pkg/domain/entities"
)

// StockLevel compares a material's stock with its reorder point
type StockLevel struct {
	MaterialID   string          `json:"materialId"`
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	Unit         string          `json:"unit"`
	CurrentStock decimal.Decimal `json:"currentStock"`
	ReorderPoint decimal.Decimal `json:"reorderPoint"`
	MinStock     decimal.Decimal `json:"minStock"`
	MaxStock     decimal.Decimal `json:"maxStock"`
	IsLowStock   bool            `json:"isLowStock"`
}

// MaterialStock is the stock of one material across warehouses
type MaterialStock struct {
	Material    *entities.Material     `json:"material"`
	Total       decimal.Decimal        `json:"total"`
	Value       decimal.Decimal        `json:"value"`
	ByWarehouse []WarehouseStock       `json:"byWarehouse"`
	Batches     []*entities.StockBatch `json:"batches"`
}

// WarehouseStock is the quantity of a material held in one warehouse
type WarehouseStock struct {
	WarehouseID string          `json:"warehouseId"`
	Quantity    decimal.Decimal `json:"quantity"`
}

// WarehouseView is a warehouse with its computed utilization
type WarehouseView struct {
	*entities.Warehouse
	StockedQty decimal.Decimal `json:"stockedQty"`
}

// StockOperationResult is returned by every stock mutation
type StockOperationResult struct {
	MaterialID string                     `json:"materialId"`
	Balance    decimal.Decimal            `json:"balance"`
	Movements  []entities.StockMovement   `json:"movements"`
	Allocation *entities.AllocationResult `json:"allocation,omitempty"`
}
