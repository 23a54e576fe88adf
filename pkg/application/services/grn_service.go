package services

import (
	"context"
	"fmt"
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

// GRNItemInput is the receipt of one purchase order line. When neither
// accepted nor rejected quantity is given the whole quantity is accepted.
type GRNItemInput struct {
	POItemID    string          `json:"poItemId"`
	Quantity    decimal.Decimal `json:"quantity"`
	AcceptedQty decimal.Decimal `json:"acceptedQty"`
	RejectedQty decimal.Decimal `json:"rejectedQty"`
	BatchNumber string          `json:"batchNumber,omitempty"`
	ExpiryDate  *time.Time      `json:"expiryDate,omitempty"`
}

// GRNInput carries the fields of a new goods received note
type GRNInput struct {
	PurchaseOrderID string         `json:"poId"`
	WarehouseID     string         `json:"warehouseId"`
	ReceivedDate    *time.Time     `json:"receivedDate,omitempty"`
	EvidenceURL     string         `json:"evidenceUrl,omitempty"`
	Notes           string         `json:"notes,omitempty"`
	Items           []GRNItemInput `json:"items"`
}

// GRNService records deliveries against issued purchase orders and books
// approved receipts into stock
type GRNService struct {
	deps      Dependencies
	inventory *InventoryService
	suppliers *SupplierService
	alerts    *AlertService
}

// NewGRNService creates a new GRN service
func NewGRNService(deps Dependencies, inventory *InventoryService, suppliers *SupplierService, alerts *AlertService) *GRNService {
	return &GRNService{deps: deps.withDefaults(), inventory: inventory, suppliers: suppliers, alerts: alerts}
}

// List returns one page of GRNs, most recently received first
func (s *GRNService) List(ctx context.Context, filter repositories.GRNFilter) (dto.Page[*entities.GoodsReceivedNote], error) {
	filter.Page = dto.NormalizePage(filter.Page.Page, filter.Page.Limit)
	grns, total, err := s.deps.Repos.GRNs.ListGRNs(ctx, filter)
	if err != nil {
		return dto.Page[*entities.GoodsReceivedNote]{}, fmt.Errorf("failed to list GRNs: %w", err)
	}
	return dto.NewPage(grns, total, filter.Page), nil
}

// Get returns one GRN
func (s *GRNService) Get(ctx context.Context, id string) (*entities.GoodsReceivedNote, error) {
	grn, err := s.deps.Repos.GRNs.GetGRN(ctx, id)
	if err != nil {
		return nil, loadError(err, "GRN")
	}
	return grn, nil
}

// Create records a PENDING delivery against an ISSUED purchase order
func (s *GRNService) Create(ctx context.Context, actor *entities.User, in GRNInput) (*entities.GoodsReceivedNote, error) {
	po, err := s.deps.Repos.PurchaseOrders.GetPurchaseOrder(ctx, in.PurchaseOrderID)
	if err != nil {
		return nil, loadError(err, "Purchase order")
	}
	if po.Status != entities.POIssued {
		return nil, newError(ErrInvalidTransition, "Goods can only be received against ISSUED purchase orders, %s is %s", po.PONumber, po.Status)
	}
	if _, err := s.deps.Repos.Warehouses.GetWarehouse(ctx, in.WarehouseID); err != nil {
		return nil, loadError(err, "Warehouse")
	}

	now := s.deps.now()
	grn := &entities.GoodsReceivedNote{
		ID:              s.deps.NewID(),
		PurchaseOrderID: po.ID,
		SupplierID:      po.SupplierID,
		WarehouseID:     in.WarehouseID,
		ReceivedDate:    now,
		Status:          entities.GRNPending,
		EvidenceURL:     in.EvidenceURL,
		Notes:           in.Notes,
		ReceivedBy:      actorID(actor),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if in.ReceivedDate != nil {
		grn.ReceivedDate = in.ReceivedDate.UTC()
	}
	for i, item := range in.Items {
		line, ok := po.Item(item.POItemID)
		if !ok {
			return nil, invalid("item %d: purchase order %s has no line %s", i+1, po.PONumber, item.POItemID)
		}
		accepted := item.AcceptedQty
		if accepted.IsZero() && item.RejectedQty.IsZero() {
			accepted = item.Quantity
		}
		grn.Items = append(grn.Items, entities.GRNItem{
			POItemID:    item.POItemID,
			MaterialID:  line.MaterialID,
			Quantity:    item.Quantity,
			AcceptedQty: accepted,
			RejectedQty: item.RejectedQty,
			BatchNumber: strings.TrimSpace(item.BatchNumber),
			ExpiryDate:  item.ExpiryDate,
		})
	}
	if err := grn.Validate(); err != nil {
		return nil, invalid("%v", err)
	}

	pending, err := s.pendingAccepted(ctx, po.ID, "")
	if err != nil {
		return nil, err
	}
	if err := s.checkTolerance(ctx, po, grn, pending); err != nil {
		return nil, err
	}

	repo := s.deps.Repos.GRNs
	if _, err := s.deps.Codes.Allocate(ctx, repo, services.PrefixGRN, func(code string) error {
		grn.GRNNumber = code
		return repo.CreateGRN(ctx, grn)
	}); err != nil {
		return nil, fmt.Errorf("failed to create GRN: %w", err)
	}

	s.deps.Logger.Info("GRN created",
		zap.String("grn_number", grn.GRNNumber),
		zap.String("po_number", po.PONumber),
		zap.String("user_id", actorID(actor)))
	s.deps.publish(ctx, events.NewGRNEvent(events.GRNCreatedEvent, grn))
	return grn, nil
}

// pendingAccepted sums accepted quantities per PO line over GRNs that are not
// yet approved or rejected, skipping the GRN with id except
func (s *GRNService) pendingAccepted(ctx context.Context, poID, except string) (map[string]decimal.Decimal, error) {
	grns, _, err := s.deps.Repos.GRNs.ListGRNs(ctx, repositories.GRNFilter{PurchaseOrderID: poID})
	if err != nil {
		return nil, fmt.Errorf("failed to list GRNs of purchase order %s: %w", poID, err)
	}
	pending := map[string]decimal.Decimal{}
	for _, g := range grns {
		if g.ID == except || g.Status.IsFinal() {
			continue
		}
		for _, item := range g.Items {
			pending[item.POItemID] = pending[item.POItemID].Add(item.AcceptedQty)
		}
	}
	return pending, nil
}

// checkTolerance rejects receipts that would take a line past its ordered
// quantity plus the configured tolerance
func (s *GRNService) checkTolerance(ctx context.Context, po *entities.PurchaseOrder, grn *entities.GoodsReceivedNote, pending map[string]decimal.Decimal) error {
	cfg, err := s.deps.Repos.Settings.GetSystemConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	factor := decimal.NewFromInt(1).Add(decimal.NewFromFloat(cfg.GRNTolerancePercentage).Div(decimal.NewFromInt(100)))
	for i, item := range grn.Items {
		line, _ := po.Item(item.POItemID)
		limit := line.Quantity.Mul(factor)
		total := line.ReceivedQty.Add(pending[item.POItemID]).Add(item.AcceptedQty)
		if total.GreaterThan(limit) {
			return invalid("item %d: accepting %s would bring line %s to %s, above the ordered %s plus %v%% tolerance",
				i+1, item.AcceptedQty, item.POItemID, total, line.Quantity, cfg.GRNTolerancePercentage)
		}
	}
	return nil
}

// Inspect marks a PENDING GRN as inspected
func (s *GRNService) Inspect(ctx context.Context, actor *entities.User, id, notes string) (*entities.GoodsReceivedNote, error) {
	var grn *entities.GoodsReceivedNote
	err := s.deps.withLock(ctx, grnLockKey(id), func() error {
		var err error
		if grn, err = s.Get(ctx, id); err != nil {
			return err
		}
		if grn.Status != entities.GRNPending {
			return newError(ErrInvalidTransition, "Cannot inspect GRN %s in status %s", grn.GRNNumber, grn.Status)
		}
		grn.Status = entities.GRNInspected
		if notes != "" {
			grn.Notes = notes
		}
		return s.save(ctx, grn)
	})
	if err != nil {
		return nil, err
	}
	s.deps.Logger.Info("GRN inspected", zap.String("grn_number", grn.GRNNumber), zap.String("user_id", actorID(actor)))
	s.deps.publish(ctx, events.NewGRNEvent(events.GRNInspectedEvent, grn))
	return grn, nil
}

// Reject closes a GRN without moving stock; a reason is required
func (s *GRNService) Reject(ctx context.Context, actor *entities.User, id, reason string) (*entities.GoodsReceivedNote, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, invalid("A rejection reason is required")
	}
	var grn *entities.GoodsReceivedNote
	err := s.deps.withLock(ctx, grnLockKey(id), func() error {
		var err error
		if grn, err = s.Get(ctx, id); err != nil {
			return err
		}
		if grn.Status.IsFinal() {
			return newError(ErrInvalidTransition, "GRN %s is already %s", grn.GRNNumber, grn.Status)
		}
		grn.Status = entities.GRNRejected
		grn.Notes = reason
		return s.save(ctx, grn)
	})
	if err != nil {
		return nil, err
	}
	s.deps.Logger.Info("GRN rejected", zap.String("grn_number", grn.GRNNumber), zap.String("user_id", actorID(actor)))
	s.deps.publish(ctx, events.NewGRNEvent(events.GRNRejectedEvent, grn))
	return grn, nil
}

// Approve books the accepted quantities into stock, advances the purchase
// order lines and refreshes the supplier's score
func (s *GRNService) Approve(ctx context.Context, actor *entities.User, id string) (*entities.GoodsReceivedNote, error) {
	var (
		grn      *entities.GoodsReceivedNote
		po       *entities.PurchaseOrder
		receipts []entities.StockMovement
	)
	err := s.deps.withLock(ctx, grnLockKey(id), func() error {
		var err error
		if grn, err = s.Get(ctx, id); err != nil {
			return err
		}
		if grn.Status != entities.GRNPending && grn.Status != entities.GRNInspected {
			return newError(ErrInvalidTransition, "Cannot approve GRN %s in status %s", grn.GRNNumber, grn.Status)
		}

		// other GRNs of the same order advance its lines too
		keys := []string{poLockKey(grn.PurchaseOrderID)}
		for _, item := range grn.Items {
			if item.AcceptedQty.IsPositive() {
				keys = append(keys, stockLockKey(item.MaterialID))
			}
		}
		return s.deps.withLocks(ctx, keys, func() error {
			return s.deps.inTx(ctx, func(tx Dependencies) error {
				var err error
				po, receipts, err = s.within(tx).approve(ctx, actor, grn)
				return err
			})
		})
	})
	if err != nil {
		return nil, err
	}

	for _, m := range receipts {
		s.deps.publish(ctx, events.NewStockEvent(events.StockReceivedEvent, m.MaterialID, []entities.StockMovement{m}, nil))
	}

	s.deps.Logger.Info("GRN approved",
		zap.String("grn_number", grn.GRNNumber),
		zap.String("po_number", po.PONumber),
		zap.String("po_status", string(po.Status)),
		zap.String("user_id", actorID(actor)))
	s.deps.publish(ctx, events.NewGRNEvent(events.GRNApprovedEvent, grn))
	if po.Status == entities.POCompleted {
		s.deps.publish(ctx, events.NewPurchaseOrderEvent(events.PurchaseOrderCompletedEvent, po, actorName(actor), ""))
	}

	if _, err := s.suppliers.RecomputePerformance(ctx, grn.SupplierID); err != nil {
		s.deps.Logger.Warn("failed to recompute supplier score", zap.String("supplier_id", grn.SupplierID), zap.Error(err))
	}
	if _, _, rejected := grn.Totals(); rejected.IsPositive() {
		if _, err := s.alerts.Raise(ctx, &entities.Alert{
			Type:     entities.AlertQualityIssue,
			Severity: entities.SeverityMedium,
			Title:    "Quality issue on " + grn.GRNNumber,
			Message:  fmt.Sprintf("%s units rejected on delivery against %s", rejected, po.PONumber),
			EntityID: grn.ID,
		}); err != nil {
			s.deps.Logger.Warn("failed to raise quality alert", zap.String("grn_number", grn.GRNNumber), zap.Error(err))
		}
	}
	return grn, nil
}

// within returns the service bound to the repositories of a running transaction
func (s *GRNService) within(tx Dependencies) *GRNService {
	return &GRNService{deps: tx, inventory: s.inventory.within(tx), suppliers: s.suppliers, alerts: s.alerts}
}

// approve books the receipt and advances the order. The caller holds the GRN,
// purchase order and stock locks.
func (s *GRNService) approve(ctx context.Context, actor *entities.User, grn *entities.GoodsReceivedNote) (*entities.PurchaseOrder, []entities.StockMovement, error) {
	po, err := s.deps.Repos.PurchaseOrders.GetPurchaseOrder(ctx, grn.PurchaseOrderID)
	if err != nil {
		return nil, nil, loadError(err, "Purchase order")
	}
	if po.Status != entities.POIssued {
		return nil, nil, newError(ErrInvalidTransition, "Purchase order %s is %s and can no longer receive goods", po.PONumber, po.Status)
	}
	pending, err := s.pendingAccepted(ctx, po.ID, grn.ID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.checkTolerance(ctx, po, grn, pending); err != nil {
		return nil, nil, err
	}

	var receipts []entities.StockMovement
	for i, item := range grn.Items {
		if !item.AcceptedQty.IsPositive() {
			continue
		}
		line, _ := po.Item(item.POItemID)
		batchNumber := item.BatchNumber
		if batchNumber == "" {
			batchNumber = fmt.Sprintf("%s-%d", grn.GRNNumber, i+1)
		}
		movement, err := s.inventory.receive(ctx, actor, Receipt{
			MaterialID:      item.MaterialID,
			WarehouseID:     grn.WarehouseID,
			Quantity:        item.AcceptedQty,
			UnitCost:        line.UnitPrice,
			BatchNumber:     batchNumber,
			ExpiryDate:      item.ExpiryDate,
			ReceivedDate:    grn.ReceivedDate,
			ReferenceNumber: grn.GRNNumber,
			ReferenceType:   entities.RefGRN,
			Notes:           "Received against " + po.PONumber,
		}, entities.MovementReceipt)
		if err != nil {
			return nil, nil, err
		}
		receipts = append(receipts, *movement)
		line.ReceivedQty = line.ReceivedQty.Add(item.AcceptedQty)
	}

	now := s.deps.now()
	if po.FullyReceived() {
		if err := po.Transition(entities.POCompleted, actor, "All lines received with "+grn.GRNNumber, now); err != nil {
			return nil, nil, newError(ErrInvalidTransition, "%v", err)
		}
	} else {
		po.UpdatedAt = now
	}
	if err := s.deps.Repos.PurchaseOrders.UpdatePurchaseOrder(ctx, po); err != nil {
		return nil, nil, fmt.Errorf("failed to update purchase order %s: %w", po.PONumber, err)
	}

	grn.Status = entities.GRNApproved
	if err := s.save(ctx, grn); err != nil {
		return nil, nil, err
	}
	return po, receipts, nil
}

func (s *GRNService) save(ctx context.Context, grn *entities.GoodsReceivedNote) error {
	grn.UpdatedAt = s.deps.now()
	if err := s.deps.Repos.GRNs.UpdateGRN(ctx, grn); err != nil {
		return fmt.Errorf("failed to update GRN %s: %w", grn.GRNNumber, err)
	}
	return nil
}

func grnLockKey(id string) string {
	return "grn:" + id
}
