package services

import (
	"context"
	"fmt"
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
)

// AdjustmentType is the direction of a stock adjustment
type AdjustmentType string

const (
	AdjustIncrease AdjustmentType = "INCREASE"
	AdjustDecrease AdjustmentType = "DECREASE"
)

// StockQuery narrows a stock listing
type StockQuery struct {
	MaterialID        string
	WarehouseID       string
	BelowReorderLevel bool
	Page              repositories.Page
}

// AdjustInput corrects the stock of a material in one warehouse
type AdjustInput struct {
	MaterialID  string           `json:"materialId"`
	WarehouseID string           `json:"warehouseId"`
	Type        AdjustmentType   `json:"type"`
	Quantity    decimal.Decimal  `json:"quantity"`
	UnitCost    *decimal.Decimal `json:"unitCost,omitempty"`
	BatchNumber string           `json:"batchNumber,omitempty"`
	ExpiryDate  *time.Time       `json:"expiryDate,omitempty"`
	Reason      string           `json:"reason"`
}

// TransferInput moves stock between warehouses
type TransferInput struct {
	MaterialID      string          `json:"materialId"`
	FromWarehouseID string          `json:"fromWarehouseId"`
	ToWarehouseID   string          `json:"toWarehouseId"`
	Quantity        decimal.Decimal `json:"quantity"`
	Notes           string          `json:"notes,omitempty"`
}

// IssueInput hands stock out to a project; an empty WarehouseID draws from every warehouse
type IssueInput struct {
	MaterialID  string          `json:"materialId"`
	WarehouseID string          `json:"warehouseId,omitempty"`
	ProjectID   string          `json:"projectId"`
	Quantity    decimal.Decimal `json:"quantity"`
	Notes       string          `json:"notes,omitempty"`
}

// ReturnInput brings unused stock back from a project
type ReturnInput struct {
	MaterialID  string           `json:"materialId"`
	WarehouseID string           `json:"warehouseId"`
	ProjectID   string           `json:"projectId"`
	Quantity    decimal.Decimal  `json:"quantity"`
	UnitCost    *decimal.Decimal `json:"unitCost,omitempty"`
	Notes       string           `json:"notes,omitempty"`
}

// Receipt books accepted goods into stock
type Receipt struct {
	MaterialID      string
	WarehouseID     string
	Quantity        decimal.Decimal
	UnitCost        decimal.Decimal
	BatchNumber     string
	ExpiryDate      *time.Time
	ReceivedDate    time.Time
	ReferenceNumber string
	ReferenceType   entities.ReferenceType
	Notes           string
}

// InventoryService owns stock batches and the movement ledger. Every mutation
// of a material's stock holds the stock lock of that material and writes in
// one transaction.
type InventoryService struct {
	deps Dependencies
}

// NewInventoryService creates a new inventory service
func NewInventoryService(deps Dependencies) *InventoryService {
	return &InventoryService{deps: deps.withDefaults()}
}

// within returns the service bound to the repositories of a running transaction
func (s *InventoryService) within(tx Dependencies) *InventoryService {
	return &InventoryService{deps: tx}
}

// ListStock returns available batches, optionally only of materials below their reorder point
func (s *InventoryService) ListStock(ctx context.Context, q StockQuery) (dto.Page[*entities.StockBatch], error) {
	page := dto.NormalizePage(q.Page.Page, q.Page.Limit)
	filter := repositories.StockFilter{MaterialID: q.MaterialID, WarehouseID: q.WarehouseID, OnlyAvailable: true, Page: page}
	if !q.BelowReorderLevel {
		batches, total, err := s.deps.Repos.Stock.ListBatches(ctx, filter)
		if err != nil {
			return dto.Page[*entities.StockBatch]{}, fmt.Errorf("failed to list stock: %w", err)
		}
		return dto.NewPage(batches, total, page), nil
	}

	low, err := lowStockItems(ctx, s.deps)
	if err != nil {
		return dto.Page[*entities.StockBatch]{}, err
	}
	isLow := make(map[string]bool, len(low))
	for _, item := range low {
		isLow[item.MaterialID] = true
	}
	filter.Page = repositories.Page{}
	batches, _, err := s.deps.Repos.Stock.ListBatches(ctx, filter)
	if err != nil {
		return dto.Page[*entities.StockBatch]{}, fmt.Errorf("failed to list stock: %w", err)
	}
	matching := batches[:0]
	for _, b := range batches {
		if isLow[b.MaterialID] {
			matching = append(matching, b)
		}
	}
	start, end := page.Window(len(matching))
	return dto.NewPage(matching[start:end], len(matching), page), nil
}

// StockByMaterial returns a material's stock split by warehouse with its batches
func (s *InventoryService) StockByMaterial(ctx context.Context, materialID string) (*dto.MaterialStock, error) {
	material, err := s.deps.Repos.Materials.GetMaterial(ctx, materialID)
	if err != nil {
		return nil, loadError(err, "Material")
	}
	batches, err := s.availableBatches(ctx, materialID, "")
	if err != nil {
		return nil, err
	}

	stock := &dto.MaterialStock{
		Material:    material,
		Total:       decimal.Zero,
		Value:       decimal.Zero,
		ByWarehouse: []dto.WarehouseStock{},
		Batches:     batches,
	}
	perWarehouse := map[string]decimal.Decimal{}
	for _, b := range batches {
		stock.Total = stock.Total.Add(b.Quantity)
		stock.Value = stock.Value.Add(b.Value())
		perWarehouse[b.WarehouseID] = perWarehouse[b.WarehouseID].Add(b.Quantity)
	}
	for id, qty := range perWarehouse {
		stock.ByWarehouse = append(stock.ByWarehouse, dto.WarehouseStock{WarehouseID: id, Quantity: qty})
	}
	sort.Slice(stock.ByWarehouse, func(i, j int) bool { return stock.ByWarehouse[i].WarehouseID < stock.ByWarehouse[j].WarehouseID })
	material.CurrentStock = stock.Total
	return stock, nil
}

// Adjust increases stock with a new batch or decreases it FIFO
func (s *InventoryService) Adjust(ctx context.Context, actor *entities.User, in AdjustInput) (*dto.StockOperationResult, error) {
	if strings.TrimSpace(in.Reason) == "" {
		return nil, invalid("An adjustment reason is required")
	}
	if !in.Quantity.IsPositive() {
		return nil, invalid("Quantity must be positive, got %s", in.Quantity)
	}
	material, err := s.material(ctx, in.MaterialID)
	if err != nil {
		return nil, err
	}
	if err := s.warehouse(ctx, in.WarehouseID); err != nil {
		return nil, err
	}

	now := s.deps.now()
	reference := s.deps.reference("ADJ")
	var result *dto.StockOperationResult
	err = s.deps.withLock(ctx, stockLockKey(material.ID), func() error {
		return s.deps.inTx(ctx, func(tx Dependencies) error {
			var err error
			result, err = s.within(tx).adjust(ctx, actor, material, in, reference, now)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, events.StockAdjustedEvent, result)
}

func (s *InventoryService) adjust(ctx context.Context, actor *entities.User, material *entities.Material, in AdjustInput, reference string, now time.Time) (*dto.StockOperationResult, error) {
	switch in.Type {
	case AdjustIncrease:
		cost := material.UnitPrice
		if in.UnitCost != nil {
			cost = *in.UnitCost
		}
		batchNumber := in.BatchNumber
		if batchNumber == "" {
			batchNumber = reference
		}
		movement, err := s.receive(ctx, actor, Receipt{
			MaterialID:      material.ID,
			WarehouseID:     in.WarehouseID,
			Quantity:        in.Quantity,
			UnitCost:        cost,
			BatchNumber:     batchNumber,
			ExpiryDate:      in.ExpiryDate,
			ReceivedDate:    now,
			ReferenceNumber: reference,
			ReferenceType:   entities.RefAdjustment,
			Notes:           in.Reason,
		}, entities.MovementAdjustment)
		if err != nil {
			return nil, err
		}
		return &dto.StockOperationResult{MaterialID: material.ID, Balance: movement.BalanceAfter, Movements: []entities.StockMovement{*movement}}, nil
	case AdjustDecrease:
		allocation, movements, err := s.consume(ctx, actor, material, in.WarehouseID, in.Quantity, consumption{
			movementType:  entities.MovementAdjustment,
			reference:     reference,
			referenceType: entities.RefAdjustment,
			notes:         in.Reason,
		})
		if err != nil {
			return nil, err
		}
		return &dto.StockOperationResult{MaterialID: material.ID, Movements: movements, Allocation: allocation}, nil
	default:
		return nil, invalid("Adjustment type must be INCREASE or DECREASE, got %q", in.Type)
	}
}

// Transfer moves stock FIFO out of one warehouse and recreates the batches in
// another, keeping batch numbers, expiry dates, costs and receipt dates
func (s *InventoryService) Transfer(ctx context.Context, actor *entities.User, in TransferInput) (*dto.StockOperationResult, error) {
	if in.FromWarehouseID == in.ToWarehouseID {
		return nil, invalid("Source and destination warehouses must differ")
	}
	if !in.Quantity.IsPositive() {
		return nil, invalid("Quantity must be positive, got %s", in.Quantity)
	}
	material, err := s.material(ctx, in.MaterialID)
	if err != nil {
		return nil, err
	}
	for _, id := range []string{in.FromWarehouseID, in.ToWarehouseID} {
		if err := s.warehouse(ctx, id); err != nil {
			return nil, err
		}
	}

	reference := s.deps.reference("TRF")
	var result *dto.StockOperationResult
	err = s.deps.withLock(ctx, stockLockKey(material.ID), func() error {
		return s.deps.inTx(ctx, func(tx Dependencies) error {
			var err error
			result, err = s.within(tx).transfer(ctx, actor, material, in, reference)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, events.StockTransferredEvent, result)
}

func (s *InventoryService) transfer(ctx context.Context, actor *entities.User, material *entities.Material, in TransferInput, reference string) (*dto.StockOperationResult, error) {
	sources, err := s.availableBatches(ctx, material.ID, in.FromWarehouseID)
	if err != nil {
		return nil, err
	}
	received := make(map[string]time.Time, len(sources))
	for _, b := range sources {
		received[b.ID] = b.ReceivedDate
	}

	allocation, movements, err := s.consume(ctx, actor, material, in.FromWarehouseID, in.Quantity, consumption{
		movementType:  entities.MovementTransferOut,
		reference:     reference,
		referenceType: entities.RefTransfer,
		notes:         in.Notes,
	})
	if err != nil {
		return nil, err
	}

	for _, a := range allocation.AllocatedFrom {
		if err := s.createBatch(ctx, Receipt{
			MaterialID:   material.ID,
			WarehouseID:  in.ToWarehouseID,
			Quantity:     a.Quantity,
			UnitCost:     a.UnitCost,
			BatchNumber:  a.BatchNumber,
			ExpiryDate:   a.ExpiryDate,
			ReceivedDate: received[a.BatchID],
		}, reference); err != nil {
			return nil, err
		}
	}
	inbound, err := s.record(ctx, actor, &entities.StockMovement{
		MaterialID:      material.ID,
		WarehouseID:     in.ToWarehouseID,
		Type:            entities.MovementTransferIn,
		Quantity:        allocation.AllocatedQty,
		ReferenceNumber: reference,
		ReferenceType:   entities.RefTransfer,
		Notes:           in.Notes,
	})
	if err != nil {
		return nil, err
	}
	return &dto.StockOperationResult{MaterialID: material.ID, Movements: append(movements, *inbound), Allocation: allocation}, nil
}

// IssueToProject hands stock to a project FIFO by receipt date. Either the
// whole quantity is issued or nothing changes. The project's BOQ line for the
// material and its spend are updated.
func (s *InventoryService) IssueToProject(ctx context.Context, actor *entities.User, in IssueInput) (*dto.StockOperationResult, error) {
	if !in.Quantity.IsPositive() {
		return nil, invalid("Quantity must be positive, got %s", in.Quantity)
	}
	material, err := s.material(ctx, in.MaterialID)
	if err != nil {
		return nil, err
	}
	project, err := s.deps.Repos.Projects.GetProject(ctx, in.ProjectID)
	if err != nil {
		return nil, loadError(err, "Project")
	}
	if project.Status == entities.ProjectCompleted || project.Status == entities.ProjectCancelled {
		return nil, newError(ErrInvalidTransition, "Cannot issue materials to %s project %s", project.Status, project.Code)
	}
	if in.WarehouseID != "" {
		if err := s.warehouse(ctx, in.WarehouseID); err != nil {
			return nil, err
		}
	}

	reference := s.deps.reference("ISS")
	var result *dto.StockOperationResult
	// issues of different materials can charge the same project at once
	keys := []string{stockLockKey(material.ID), projectLockKey(project.ID)}
	err = s.deps.withLocks(ctx, keys, func() error {
		return s.deps.inTx(ctx, func(tx Dependencies) error {
			inv := s.within(tx)
			allocation, movements, err := inv.consume(ctx, actor, material, in.WarehouseID, in.Quantity, consumption{
				movementType:  entities.MovementIssue,
				projectID:     project.ID,
				reference:     reference,
				referenceType: entities.RefIssue,
				notes:         in.Notes,
			})
			if err != nil {
				return err
			}
			if err := inv.chargeProject(ctx, project, material.ID, allocation); err != nil {
				return err
			}
			result = &dto.StockOperationResult{MaterialID: material.ID, Movements: movements, Allocation: allocation}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, events.StockIssuedEvent, result)
}

// chargeProject adds an issue to the project's BOQ consumption and spend. The
// caller holds the project lock.
func (s *InventoryService) chargeProject(ctx context.Context, project *entities.Project, materialID string, allocation *entities.AllocationResult) error {
	now := s.deps.now()
	item, err := s.deps.Repos.BOQ.FindBOQItem(ctx, project.ID, materialID)
	switch {
	case err == nil:
		item.ConsumedQty = item.ConsumedQty.Add(allocation.AllocatedQty)
		item.UpdatedAt = now
		if err := s.deps.Repos.BOQ.UpdateBOQItem(ctx, item); err != nil {
			return fmt.Errorf("failed to update BOQ consumption of %s: %w", project.Code, err)
		}
	case !isNotFound(err):
		return fmt.Errorf("failed to load BOQ line of %s: %w", project.Code, err)
	}

	current, err := s.deps.Repos.Projects.GetProject(ctx, project.ID)
	if err != nil {
		return loadError(err, "Project")
	}
	current.Spent = current.Spent.Add(allocation.Value())
	current.UpdatedAt = now
	if err := s.deps.Repos.Projects.UpdateProject(ctx, current); err != nil {
		return fmt.Errorf("failed to update spend of %s: %w", project.Code, err)
	}
	return nil
}

// Return books stock coming back from a project as a new batch
func (s *InventoryService) Return(ctx context.Context, actor *entities.User, in ReturnInput) (*dto.StockOperationResult, error) {
	if !in.Quantity.IsPositive() {
		return nil, invalid("Quantity must be positive, got %s", in.Quantity)
	}
	material, err := s.material(ctx, in.MaterialID)
	if err != nil {
		return nil, err
	}
	project, err := s.deps.Repos.Projects.GetProject(ctx, in.ProjectID)
	if err != nil {
		return nil, loadError(err, "Project")
	}
	if err := s.warehouse(ctx, in.WarehouseID); err != nil {
		return nil, err
	}

	now := s.deps.now()
	reference := s.deps.reference("RET")
	cost := material.UnitPrice
	if in.UnitCost != nil {
		cost = *in.UnitCost
	}

	var result *dto.StockOperationResult
	err = s.deps.withLock(ctx, stockLockKey(material.ID), func() error {
		return s.deps.inTx(ctx, func(tx Dependencies) error {
			var err error
			result, err = s.within(tx).giveBack(ctx, actor, project, in.Quantity, Receipt{
				MaterialID:      material.ID,
				WarehouseID:     in.WarehouseID,
				Quantity:        in.Quantity,
				UnitCost:        cost,
				BatchNumber:     reference,
				ReceivedDate:    now,
				ReferenceNumber: reference,
				ReferenceType:   entities.RefIssue,
				Notes:           in.Notes,
			})
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, events.StockReturnedEvent, result)
}

func (s *InventoryService) giveBack(ctx context.Context, actor *entities.User, project *entities.Project, quantity decimal.Decimal, r Receipt) (*dto.StockOperationResult, error) {
	movement, err := s.receive(ctx, actor, r, entities.MovementReturn, withProject(project.ID))
	if err != nil {
		return nil, err
	}

	item, err := s.deps.Repos.BOQ.FindBOQItem(ctx, project.ID, r.MaterialID)
	if err == nil {
		item.ConsumedQty = decimal.Max(decimal.Zero, item.ConsumedQty.Sub(quantity))
		item.UpdatedAt = s.deps.now()
		if err := s.deps.Repos.BOQ.UpdateBOQItem(ctx, item); err != nil {
			return nil, fmt.Errorf("failed to update BOQ consumption of %s: %w", project.Code, err)
		}
	} else if !isNotFound(err) {
		return nil, fmt.Errorf("failed to load BOQ line of %s: %w", project.Code, err)
	}
	return &dto.StockOperationResult{MaterialID: r.MaterialID, Movements: []entities.StockMovement{*movement}}, nil
}

// Movements returns the ledger of a material, newest first
func (s *InventoryService) Movements(ctx context.Context, filter repositories.MovementFilter) ([]*entities.StockMovement, error) {
	if filter.MaterialID != "" {
		if _, err := s.material(ctx, filter.MaterialID); err != nil {
			return nil, err
		}
	}
	if filter.Limit <= 0 || filter.Limit > dto.MaxPageLimit {
		filter.Limit = dto.MaxPageLimit
	}
	movements, err := s.deps.Repos.Stock.ListMovements(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list movements: %w", err)
	}
	return movements, nil
}

// LowStockAlerts lists ACTIVE materials at or below their reorder point
func (s *InventoryService) LowStockAlerts(ctx context.Context) ([]dto.LowStockItem, error) {
	return lowStockItems(ctx, s.deps)
}

type consumption struct {
	movementType  entities.MovementType
	projectID     string
	reference     string
	referenceType entities.ReferenceType
	notes         string
}

// consume takes quantity FIFO from the material's batches, in one warehouse or
// all of them, and records one negative movement per warehouse touched. Nothing
// is written unless the whole quantity is available. The caller holds the lock.
func (s *InventoryService) consume(
	ctx context.Context,
	actor *entities.User,
	material *entities.Material,
	warehouseID string,
	quantity decimal.Decimal,
	c consumption,
) (*entities.AllocationResult, []entities.StockMovement, error) {
	batches, err := s.availableBatches(ctx, material.ID, warehouseID)
	if err != nil {
		return nil, nil, err
	}
	allocation := services.AllocateFIFO(material.ID, warehouseID, batches, quantity)
	if !allocation.Fulfilled() {
		return nil, nil, conflict("Insufficient stock of %s: requested %s %s, available %s",
			material.Code, quantity, material.Unit, allocation.AllocatedQty)
	}

	warehouseOf := make(map[string]string, len(batches))
	for _, b := range batches {
		warehouseOf[b.ID] = b.WarehouseID
	}
	for _, b := range services.ApplyAllocation(batches, allocation) {
		if err := s.deps.Repos.Stock.UpdateBatch(ctx, b); err != nil {
			return nil, nil, fmt.Errorf("failed to update batch %s: %w", b.BatchNumber, err)
		}
	}

	perWarehouse := map[string]decimal.Decimal{}
	var order []string
	for _, a := range allocation.AllocatedFrom {
		wh := warehouseOf[a.BatchID]
		if _, seen := perWarehouse[wh]; !seen {
			order = append(order, wh)
		}
		perWarehouse[wh] = perWarehouse[wh].Add(a.Quantity)
	}

	movements := make([]entities.StockMovement, 0, len(order))
	for _, wh := range order {
		m, err := s.record(ctx, actor, &entities.StockMovement{
			MaterialID:      material.ID,
			WarehouseID:     wh,
			ProjectID:       c.projectID,
			Type:            c.movementType,
			Quantity:        perWarehouse[wh].Neg(),
			ReferenceNumber: c.reference,
			ReferenceType:   c.referenceType,
			Notes:           c.notes,
		})
		if err != nil {
			return nil, nil, err
		}
		movements = append(movements, *m)
	}
	return allocation, movements, nil
}

type movementOption func(*entities.StockMovement)

func withProject(projectID string) movementOption {
	return func(m *entities.StockMovement) { m.ProjectID = projectID }
}

// receive creates a batch and its positive movement. The caller holds the lock.
func (s *InventoryService) receive(ctx context.Context, actor *entities.User, r Receipt, movementType entities.MovementType, opts ...movementOption) (*entities.StockMovement, error) {
	if err := s.createBatch(ctx, r, r.ReferenceNumber); err != nil {
		return nil, err
	}
	movement := &entities.StockMovement{
		MaterialID:      r.MaterialID,
		WarehouseID:     r.WarehouseID,
		Type:            movementType,
		Quantity:        r.Quantity,
		ReferenceNumber: r.ReferenceNumber,
		ReferenceType:   r.ReferenceType,
		Notes:           r.Notes,
	}
	for _, opt := range opts {
		opt(movement)
	}
	return s.record(ctx, actor, movement)
}

func (s *InventoryService) createBatch(ctx context.Context, r Receipt, source string) error {
	batch, err := entities.NewStockBatch(r.MaterialID, r.WarehouseID, r.BatchNumber, r.Quantity, r.UnitCost, r.ReceivedDate, r.ExpiryDate)
	if err != nil {
		return invalid("%v", err)
	}
	batch.ID = s.deps.NewID()
	batch.SourceRef = source
	if err := s.deps.Repos.Stock.CreateBatch(ctx, batch); err != nil {
		return fmt.Errorf("failed to create batch %s: %w", batch.BatchNumber, err)
	}
	return nil
}

// record stamps a movement with the resulting warehouse balance and stores it
func (s *InventoryService) record(ctx context.Context, actor *entities.User, m *entities.StockMovement) (*entities.StockMovement, error) {
	balance, err := s.deps.Repos.Stock.Balance(ctx, m.MaterialID, m.WarehouseID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute balance: %w", err)
	}
	m.ID = s.deps.NewID()
	m.BalanceAfter = balance
	m.PerformedBy = actorName(actor)
	m.CreatedAt = s.deps.now()
	if err := s.deps.Repos.Stock.RecordMovement(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to record %s movement: %w", m.Type, err)
	}
	return m, nil
}

// finish fills in the resulting total balance, logs and publishes the operation
func (s *InventoryService) finish(ctx context.Context, eventType string, result *dto.StockOperationResult) (*dto.StockOperationResult, error) {
	balance, err := s.deps.Repos.Stock.Balance(ctx, result.MaterialID, "")
	if err != nil {
		return nil, fmt.Errorf("failed to compute balance: %w", err)
	}
	result.Balance = balance

	s.deps.Logger.Info("stock changed",
		zap.String("event_type", eventType),
		zap.String("material_id", result.MaterialID),
		zap.String("balance", balance.String()),
		zap.Int("movements", len(result.Movements)))
	s.deps.publish(ctx, events.NewStockEvent(eventType, result.MaterialID, result.Movements, result.Allocation))
	return result, nil
}

func (s *InventoryService) availableBatches(ctx context.Context, materialID, warehouseID string) ([]*entities.StockBatch, error) {
	batches, _, err := s.deps.Repos.Stock.ListBatches(ctx, repositories.StockFilter{
		MaterialID:    materialID,
		WarehouseID:   warehouseID,
		OnlyAvailable: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list batches of %s: %w", materialID, err)
	}
	return batches, nil
}

func (s *InventoryService) material(ctx context.Context, id string) (*entities.Material, error) {
	if id == "" {
		return nil, invalid("Material is required")
	}
	material, err := s.deps.Repos.Materials.GetMaterial(ctx, id)
	if err != nil {
		return nil, loadError(err, "Material")
	}
	return material, nil
}

func (s *InventoryService) warehouse(ctx context.Context, id string) error {
	if id == "" {
		return invalid("Warehouse is required")
	}
	warehouse, err := s.deps.Repos.Warehouses.GetWarehouse(ctx, id)
	if err != nil {
		return loadError(err, "Warehouse")
	}
	if !warehouse.IsActive {
		return invalid("Warehouse %s is inactive", warehouse.Code)
	}
	return nil
}

// lowStockItems lists ACTIVE materials at or below their reorder point, largest deficit first
func lowStockItems(ctx context.Context, deps Dependencies) ([]dto.LowStockItem, error) {
	materials, _, err := deps.Repos.Materials.ListMaterials(ctx, repositories.MaterialFilter{
		Status: entities.MaterialActive,
		Sort:   repositories.Sort{Field: "code"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list materials: %w", err)
	}
	balances, err := deps.Repos.Stock.Balances(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stock balances: %w", err)
	}

	items := []dto.LowStockItem{}
	for _, m := range materials {
		m.CurrentStock = balances[m.ID]
		if !m.IsLowStock() {
			continue
		}
		items = append(items, dto.LowStockItem{
			MaterialID:   m.ID,
			Code:         m.Code,
			Name:         m.Name,
			Unit:         m.Unit,
			CurrentStock: m.CurrentStock,
			ReorderLevel: m.ReorderPoint,
			Deficit:      m.ReorderPoint.Sub(m.CurrentStock),
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Deficit.GreaterThan(items[j].Deficit)
	})
	return items, nil
}
