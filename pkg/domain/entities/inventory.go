package entities

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// BatchStatus represents the status of a stock batch
type BatchStatus string

const (
	BatchAvailable  BatchStatus = "AVAILABLE"
	BatchDepleted   BatchStatus = "DEPLETED"
	BatchQuarantine BatchStatus = "QUARANTINE"
)

// StockBatch represents lot-controlled stock of one material in one warehouse
type StockBatch struct {
	ID           string          `json:"id"`
	MaterialID   string          `json:"materialId"`
	WarehouseID  string          `json:"warehouseId"`
	BatchNumber  string          `json:"batchNumber"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitCost     decimal.Decimal `json:"unitCost"`
	ExpiryDate   *time.Time      `json:"expiryDate,omitempty"`
	ReceivedDate time.Time       `json:"receivedDate"`
	Status       BatchStatus     `json:"status"`
	SourceRef    string          `json:"sourceRef,omitempty"`
}

// NewStockBatch creates a validated StockBatch
func NewStockBatch(materialID, warehouseID, batchNumber string, quantity, unitCost decimal.Decimal, receivedDate time.Time, expiry *time.Time) (*StockBatch, error) {
	if materialID == "" {
		return nil, fmt.Errorf("material cannot be empty")
	}
	if warehouseID == "" {
		return nil, fmt.Errorf("warehouse cannot be empty")
	}
	if batchNumber == "" {
		return nil, fmt.Errorf("batch number cannot be empty")
	}
	if !quantity.IsPositive() {
		return nil, fmt.Errorf("quantity must be positive, got %s", quantity)
	}
	if unitCost.IsNegative() {
		return nil, fmt.Errorf("unit cost cannot be negative, got %s", unitCost)
	}

	return &StockBatch{
		MaterialID:   materialID,
		WarehouseID:  warehouseID,
		BatchNumber:  batchNumber,
		Quantity:     quantity,
		UnitCost:     unitCost,
		ExpiryDate:   expiry,
		ReceivedDate: receivedDate,
		Status:       BatchAvailable,
	}, nil
}

// Value returns quantity times unit cost
func (b *StockBatch) Value() decimal.Decimal {
	return b.Quantity.Mul(b.UnitCost)
}

// ExpiresWithin reports whether the batch expires between now and now+window
func (b *StockBatch) ExpiresWithin(now time.Time, window time.Duration) bool {
	if b.ExpiryDate == nil || b.Status != BatchAvailable {
		return false
	}
	return !b.ExpiryDate.Before(now) && b.ExpiryDate.Before(now.Add(window))
}

// MovementType classifies a stock movement
type MovementType string

const (
	MovementReceipt     MovementType = "RECEIPT"
	MovementIssue       MovementType = "ISSUE"
	MovementTransferIn  MovementType = "TRANSFER_IN"
	MovementTransferOut MovementType = "TRANSFER_OUT"
	MovementAdjustment  MovementType = "ADJUSTMENT"
	MovementReturn      MovementType = "RETURN"
)

// ReferenceType names the document behind a stock movement
type ReferenceType string

const (
	RefGRN        ReferenceType = "GRN"
	RefPO         ReferenceType = "PO"
	RefIssue      ReferenceType = "ISSUE"
	RefTransfer   ReferenceType = "TRANSFER"
	RefAdjustment ReferenceType = "ADJUSTMENT"
)

// StockMovement is an immutable ledger entry; Quantity is signed
type StockMovement struct {
	ID              string          `json:"id"`
	MaterialID      string          `json:"materialId"`
	WarehouseID     string          `json:"warehouseId"`
	ProjectID       string          `json:"projectId,omitempty"`
	Type            MovementType    `json:"type"`
	Quantity        decimal.Decimal `json:"quantity"`
	BalanceAfter    decimal.Decimal `json:"balanceAfter"`
	ReferenceNumber string          `json:"referenceNumber"`
	ReferenceType   ReferenceType   `json:"referenceType"`
	Notes           string          `json:"notes,omitempty"`
	PerformedBy     string          `json:"performedBy"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// BatchAllocation is the quantity taken from one batch
type BatchAllocation struct {
	BatchID     string          `json:"batchId"`
	BatchNumber string          `json:"batchNumber"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unitCost"`
	ExpiryDate  *time.Time      `json:"expiryDate,omitempty"`
}

// AllocationResult represents the result of a FIFO allocation
type AllocationResult struct {
	MaterialID      string            `json:"materialId"`
	WarehouseID     string            `json:"warehouseId"`
	AllocatedQty    decimal.Decimal   `json:"allocatedQty"`
	RemainingDemand decimal.Decimal   `json:"remainingDemand"`
	AllocatedFrom   []BatchAllocation `json:"allocatedFrom"`
}

// Value returns the cost of the allocated quantity
func (r *AllocationResult) Value() decimal.Decimal {
	total := decimal.Zero
	for _, a := range r.AllocatedFrom {
		total = total.Add(a.Quantity.Mul(a.UnitCost))
	}
	return total
}

// Fulfilled reports whether the allocation covered the whole demand
func (r *AllocationResult) Fulfilled() bool {
	return !r.RemainingDemand.IsPositive()
}
