package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/vsinha/cims/pkg/application/dto"
	"github.com/vsinha/cims/pkg/domain/entities"
	"github.com/vsinha/cims/pkg/domain/repositories"
	"github.com/vsinha/cims/pkg/domain/services"
	"github.com/vsinha/cims/pkg/infrastructure/events"
)

// RequisitionInput carries the fields of a new requisition
type RequisitionInput struct {
	ProjectID string                     `json:"projectId"`
	Urgency   entities.Urgency           `json:"urgency,omitempty"`
	Items     []entities.RequisitionItem `json:"items"`
	Notes     string                     `json:"notes,omitempty"`
}

// RequisitionService handles site requests for materials
type RequisitionService struct {
	deps   Dependencies
	orders *PurchaseOrderService
}

// NewRequisitionService creates a new requisition service; orders raises the
// purchase orders requisitions are converted into
func NewRequisitionService(deps Dependencies, orders *PurchaseOrderService) *RequisitionService {
	return &RequisitionService{deps: deps.withDefaults(), orders: orders}
}

// List returns one page of requisitions, newest first
func (s *RequisitionService) List(ctx context.Context, filter repositories.RequisitionFilter) (dto.Page[*entities.Requisition], error) {
	filter.Page = dto.NormalizePage(filter.Page.Page, filter.Page.Limit)
	reqs, total, err := s.deps.Repos.Requisitions.ListRequisitions(ctx, filter)
	if err != nil {
		return dto.Page[*entities.Requisition]{}, fmt.Errorf("failed to list requisitions: %w", err)
	}
	return dto.NewPage(reqs, total, filter.Page), nil
}

// Get returns one requisition
func (s *RequisitionService) Get(ctx context.Context, id string) (*entities.Requisition, error) {
	req, err := s.deps.Repos.Requisitions.GetRequisition(ctx, id)
	if err != nil {
		return nil, loadError(err, "Requisition")
	}
	return req, nil
}

// Create records a PENDING requisition for a project
func (s *RequisitionService) Create(ctx context.Context, actor *entities.User, in RequisitionInput) (*entities.Requisition, error) {
	now := s.deps.now()
	req := &entities.Requisition{
		ID:          s.deps.NewID(),
		ProjectID:   in.ProjectID,
		RequestedBy: actorID(actor),
		Urgency:     in.Urgency,
		Status:      entities.RequisitionPending,
		Items:       in.Items,
		Notes:       in.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.Urgency == "" {
		req.Urgency = entities.UrgencyMedium
	}
	if err := req.Validate(); err != nil {
		return nil, invalid("%v", err)
	}
	if _, err := s.deps.Repos.Projects.GetProject(ctx, req.ProjectID); err != nil {
		return nil, loadError(err, "Project")
	}
	for i, item := range req.Items {
		if _, err := s.deps.Repos.Materials.GetMaterial(ctx, item.MaterialID); err != nil {
			return nil, loadError(err, fmt.Sprintf("Material of item %d", i+1))
		}
	}

	repo := s.deps.Repos.Requisitions
	if _, err := s.deps.Codes.Allocate(ctx, repo, services.PrefixRequisition, func(code string) error {
		req.RequisitionNumber = code
		return repo.CreateRequisition(ctx, req)
	}); err != nil {
		return nil, fmt.Errorf("failed to create requisition: %w", err)
	}

	s.deps.Logger.Info("requisition created",
		zap.String("number", req.RequisitionNumber),
		zap.String("project_id", req.ProjectID),
		zap.String("urgency", string(req.Urgency)))
	s.deps.publish(ctx, events.NewRequisitionEvent(events.RequisitionCreatedEvent, req))
	return req, nil
}

// Approve accepts a PENDING requisition
func (s *RequisitionService) Approve(ctx context.Context, actor *entities.User, id, comment string) (*entities.Requisition, error) {
	return s.decide(ctx, actor, id, entities.RequisitionApproved, comment)
}

// Reject declines a PENDING requisition; a reason is required
func (s *RequisitionService) Reject(ctx context.Context, actor *entities.User, id, reason string) (*entities.Requisition, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, invalid("A rejection reason is required")
	}
	return s.decide(ctx, actor, id, entities.RequisitionRejected, reason)
}

func (s *RequisitionService) decide(ctx context.Context, actor *entities.User, id string, next entities.RequisitionStatus, comment string) (*entities.Requisition, error) {
	req, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != entities.RequisitionPending {
		return nil, newError(ErrInvalidTransition, "Requisition %s is already %s", req.RequisitionNumber, req.Status)
	}
	req.Status = next
	req.DecisionComment = comment
	req.UpdatedAt = s.deps.now()
	if err := s.deps.Repos.Requisitions.UpdateRequisition(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to update requisition %s: %w", req.RequisitionNumber, err)
	}

	eventType := events.RequisitionApprovedEvent
	if next == entities.RequisitionRejected {
		eventType = events.RequisitionRejectedEvent
	}
	s.deps.Logger.Info("requisition decided",
		zap.String("number", req.RequisitionNumber),
		zap.String("status", string(next)),
		zap.String("user_id", actorID(actor)))
	s.deps.publish(ctx, events.NewRequisitionEvent(eventType, req))
	return req, nil
}

// Convert raises a DRAFT purchase order from an APPROVED requisition, priced
// from the material master
func (s *RequisitionService) Convert(ctx context.Context, actor *entities.User, id, supplierID string) (*entities.PurchaseOrder, error) {
	req, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != entities.RequisitionApproved {
		return nil, newError(ErrInvalidTransition, "Only APPROVED requisitions can be converted, %s is %s", req.RequisitionNumber, req.Status)
	}

	in := PurchaseOrderInput{
		SupplierID: supplierID,
		ProjectID:  req.ProjectID,
		Notes:      fmt.Sprintf("Raised from requisition %s", req.RequisitionNumber),
	}
	for i, item := range req.Items {
		material, err := s.deps.Repos.Materials.GetMaterial(ctx, item.MaterialID)
		if err != nil {
			return nil, loadError(err, fmt.Sprintf("Material of item %d", i+1))
		}
		in.Items = append(in.Items, POItemInput{
			MaterialID: item.MaterialID,
			Quantity:   item.Quantity,
			UnitPrice:  material.UnitPrice,
			Notes:      item.Notes,
		})
	}

	po, err := s.orders.Create(ctx, actor, in)
	if err != nil {
		return nil, err
	}

	req.Status = entities.RequisitionConverted
	req.PurchaseOrderID = po.ID
	req.UpdatedAt = s.deps.now()
	if err := s.deps.Repos.Requisitions.UpdateRequisition(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to update requisition %s: %w", req.RequisitionNumber, err)
	}

	s.deps.Logger.Info("requisition converted",
		zap.String("number", req.RequisitionNumber),
		zap.String("po_number", po.PONumber))
	s.deps.publish(ctx, events.NewRequisitionEvent(events.RequisitionConvertedEvent, req))
	return po, nil
}
