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

// ApproverRoles may approve or reject purchase orders
var ApproverRoles = []entities.Role{entities.RoleAdmin, entities.RoleExecutive, entities.RoleProjectManager}

// POItemInput is one requested order line
type POItemInput struct {
	MaterialID string          `json:"materialId"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Notes      string          `json:"notes,omitempty"`
}

// PurchaseOrderInput carries the editable fields of a purchase order
type PurchaseOrderInput struct {
	SupplierID           string        `json:"supplierId"`
	ProjectID            string        `json:"projectId,omitempty"`
	Items                []POItemInput `json:"items"`
	ExpectedDeliveryDate *time.Time    `json:"expectedDeliveryDate,omitempty"`
	DeliveryAddress      string        `json:"deliveryAddress,omitempty"`
	Notes                string        `json:"notes,omitempty"`
	TermsAndConditions   string        `json:"termsAndConditions,omitempty"`
}

// PurchaseOrderService runs the purchase order approval workflow
type PurchaseOrderService struct {
	deps Dependencies
}

// NewPurchaseOrderService creates a new purchase order service
func NewPurchaseOrderService(deps Dependencies) *PurchaseOrderService {
	return &PurchaseOrderService{deps: deps.withDefaults()}
}

// List returns one page of purchase orders
func (s *PurchaseOrderService) List(ctx context.Context, filter repositories.PurchaseOrderFilter) (dto.Page[*entities.PurchaseOrder], error) {
	filter.Page = dto.NormalizePage(filter.Page.Page, filter.Page.Limit)
	orders, total, err := s.deps.Repos.PurchaseOrders.ListPurchaseOrders(ctx, filter)
	if err != nil {
		return dto.Page[*entities.PurchaseOrder]{}, fmt.Errorf("failed to list purchase orders: %w", err)
	}
	return dto.NewPage(orders, total, filter.Page), nil
}

// Get returns one purchase order
func (s *PurchaseOrderService) Get(ctx context.Context, id string) (*entities.PurchaseOrder, error) {
	po, err := s.deps.Repos.PurchaseOrders.GetPurchaseOrder(ctx, id)
	if err != nil {
		return nil, loadError(err, "Purchase order")
	}
	return po, nil
}

// Create raises a DRAFT purchase order with a generated PO number
func (s *PurchaseOrderService) Create(ctx context.Context, actor *entities.User, in PurchaseOrderInput) (*entities.PurchaseOrder, error) {
	now := s.deps.now()
	po := &entities.PurchaseOrder{
		ID:        s.deps.NewID(),
		Status:    entities.PODraft,
		CreatedBy: actorID(actor),
		CreatedAt: now,
	}
	if err := s.apply(ctx, po, in); err != nil {
		return nil, err
	}
	po.Record(entities.POActionCreated, actor, "", now)

	repo := s.deps.Repos.PurchaseOrders
	if _, err := s.deps.Codes.Allocate(ctx, repo, services.PrefixPurchaseOrder, func(code string) error {
		po.PONumber = code
		return repo.CreatePurchaseOrder(ctx, po)
	}); err != nil {
		return nil, fmt.Errorf("failed to create purchase order: %w", err)
	}

	s.deps.Logger.Info("purchase order created",
		zap.String("po_number", po.PONumber),
		zap.String("supplier_id", po.SupplierID),
		zap.String("total", po.TotalAmount.String()),
		zap.String("user_id", actorID(actor)))
	s.deps.publish(ctx, events.NewPurchaseOrderEvent(events.PurchaseOrderCreatedEvent, po, actorName(actor), ""))
	return po, nil
}

// Update replaces the lines and header of a DRAFT purchase order
func (s *PurchaseOrderService) Update(ctx context.Context, actor *entities.User, id string, in PurchaseOrderInput) (*entities.PurchaseOrder, error) {
	var po *entities.PurchaseOrder
	err := s.deps.withLock(ctx, poLockKey(id), func() error {
		var err error
		if po, err = s.Get(ctx, id); err != nil {
			return err
		}
		if po.Status != entities.PODraft {
			return newError(ErrInvalidTransition, "Only DRAFT purchase orders can be edited, %s is %s", po.PONumber, po.Status)
		}
		if err := s.apply(ctx, po, in); err != nil {
			return err
		}
		po.Record(entities.POActionUpdated, actor, "", s.deps.now())
		if err := s.deps.Repos.PurchaseOrders.UpdatePurchaseOrder(ctx, po); err != nil {
			return fmt.Errorf("failed to update purchase order %s: %w", po.PONumber, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.deps.publish(ctx, events.NewPurchaseOrderEvent(events.PurchaseOrderUpdatedEvent, po, actorName(actor), ""))
	return po, nil
}

// Delete removes a DRAFT purchase order
func (s *PurchaseOrderService) Delete(ctx context.Context, actor *entities.User, id string) error {
	var po *entities.PurchaseOrder
	err := s.deps.withLock(ctx, poLockKey(id), func() error {
		var err error
		if po, err = s.Get(ctx, id); err != nil {
			return err
		}
		if po.Status != entities.PODraft {
			return newError(ErrInvalidTransition, "Only DRAFT purchase orders can be deleted, %s is %s", po.PONumber, po.Status)
		}
		if err := s.deps.Repos.PurchaseOrders.DeletePurchaseOrder(ctx, id); err != nil {
			return fmt.Errorf("failed to delete purchase order %s: %w", po.PONumber, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.deps.Logger.Info("purchase order deleted", zap.String("po_number", po.PONumber), zap.String("user_id", actorID(actor)))
	return nil
}

// Submit sends a DRAFT order for approval
func (s *PurchaseOrderService) Submit(ctx context.Context, actor *entities.User, id string) (*entities.PurchaseOrder, error) {
	return s.transition(ctx, actor, id, entities.POPendingApproval, "")
}

// Approve approves or rejects an order awaiting approval
func (s *PurchaseOrderService) Approve(ctx context.Context, actor *entities.User, id string, approved bool, comments string) (*entities.PurchaseOrder, error) {
	if actor == nil || !actor.HasRole(ApproverRoles...) {
		return nil, newError(ErrForbidden, "You do not have permission to perform this action")
	}
	next := entities.PORejected
	if approved {
		next = entities.POApproved
	}
	return s.transition(ctx, actor, id, next, comments)
}

// Issue records that an approved order was sent to the supplier
func (s *PurchaseOrderService) Issue(ctx context.Context, actor *entities.User, id string) (*entities.PurchaseOrder, error) {
	return s.transition(ctx, actor, id, entities.POIssued, "")
}

// Cancel cancels an order that has not been issued
func (s *PurchaseOrderService) Cancel(ctx context.Context, actor *entities.User, id, reason string) (*entities.PurchaseOrder, error) {
	return s.transition(ctx, actor, id, entities.POCancelled, reason)
}

// Revise returns a rejected order to DRAFT
func (s *PurchaseOrderService) Revise(ctx context.Context, actor *entities.User, id string) (*entities.PurchaseOrder, error) {
	return s.transition(ctx, actor, id, entities.PODraft, "")
}

// transition moves an order under its lock, which GRN approval also takes
// before advancing the received quantities
func (s *PurchaseOrderService) transition(ctx context.Context, actor *entities.User, id string, next entities.POStatus, comment string) (*entities.PurchaseOrder, error) {
	var (
		po   *entities.PurchaseOrder
		from entities.POStatus
	)
	err := s.deps.withLock(ctx, poLockKey(id), func() error {
		var err error
		if po, err = s.Get(ctx, id); err != nil {
			return err
		}
		from = po.Status
		if err := po.Transition(next, actor, comment, s.deps.now()); err != nil {
			return newError(ErrInvalidTransition, "Cannot move purchase order %s from %s to %s", po.PONumber, from, next)
		}
		if err := s.deps.Repos.PurchaseOrders.UpdatePurchaseOrder(ctx, po); err != nil {
			return fmt.Errorf("failed to update purchase order %s: %w", po.PONumber, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.deps.Logger.Info("purchase order transitioned",
		zap.String("po_number", po.PONumber),
		zap.String("from", string(from)),
		zap.String("to", string(next)),
		zap.String("user_id", actorID(actor)))
	s.deps.publish(ctx, events.NewPurchaseOrderEvent(events.PurchaseOrderEventFor(next), po, actorName(actor), comment))
	return po, nil
}

// apply validates the input against suppliers, projects and materials and
// copies it onto po
func (s *PurchaseOrderService) apply(ctx context.Context, po *entities.PurchaseOrder, in PurchaseOrderInput) error {
	if strings.TrimSpace(in.SupplierID) == "" {
		return invalid("Supplier is required")
	}
	supplier, err := s.deps.Repos.Suppliers.GetSupplier(ctx, in.SupplierID)
	if err != nil {
		return loadError(err, "Supplier")
	}
	if !supplier.CanReceiveOrders() {
		return invalid("Supplier %s is blacklisted and cannot receive purchase orders", supplier.Name)
	}
	if in.ProjectID != "" {
		if _, err := s.deps.Repos.Projects.GetProject(ctx, in.ProjectID); err != nil {
			return loadError(err, "Project")
		}
	}

	items := make([]entities.PurchaseOrderItem, 0, len(in.Items))
	for i, line := range in.Items {
		material, err := s.deps.Repos.Materials.GetMaterial(ctx, line.MaterialID)
		if err != nil {
			return loadError(err, fmt.Sprintf("Material of item %d", i+1))
		}
		if material.Status == entities.MaterialObsolete {
			return invalid("Material %s is obsolete", material.Code)
		}
		items = append(items, entities.PurchaseOrderItem{
			ID:          s.deps.NewID(),
			MaterialID:  line.MaterialID,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			ReceivedQty: decimal.Zero,
			Notes:       line.Notes,
		})
	}

	po.SupplierID = in.SupplierID
	po.ProjectID = in.ProjectID
	po.Items = items
	po.ExpectedDeliveryDate = in.ExpectedDeliveryDate
	po.DeliveryAddress = in.DeliveryAddress
	po.Notes = in.Notes
	po.TermsAndConditions = in.TermsAndConditions
	if err := po.Validate(); err != nil {
		return invalid("%v", err)
	}
	po.RecalculateTotal()
	return nil
}
