package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vsinha/cims/pkg/application/dto"
	"github.com/vsinha/cims/pkg/domain/entities"
	"github.com/vsinha/cims/pkg/domain/repositories"
	"github.com/vsinha/cims/pkg/domain/services"
)

// SupplierInput carries the editable fields of a supplier
type SupplierInput struct {
	Code          string                  `json:"code,omitempty"`
	Name          string                  `json:"name"`
	ContactPerson string                  `json:"contactPerson"`
	Email         string                  `json:"email"`
	Phone         string                  `json:"phone"`
	Address       string                  `json:"address"`
	TaxID         string                  `json:"taxId,omitempty"`
	Status        entities.SupplierStatus `json:"status,omitempty"`
	Tags          []string                `json:"tags,omitempty"`
}

// SupplierService manages suppliers and their delivery performance
type SupplierService struct {
	deps Dependencies
}

// NewSupplierService creates a new supplier service
func NewSupplierService(deps Dependencies) *SupplierService {
	return &SupplierService{deps: deps.withDefaults()}
}

// List returns one page of suppliers
func (s *SupplierService) List(ctx context.Context, filter repositories.SupplierFilter) (dto.Page[*entities.Supplier], error) {
	filter.Page = dto.NormalizePage(filter.Page.Page, filter.Page.Limit)
	suppliers, total, err := s.deps.Repos.Suppliers.ListSuppliers(ctx, filter)
	if err != nil {
		return dto.Page[*entities.Supplier]{}, fmt.Errorf("failed to list suppliers: %w", err)
	}
	return dto.NewPage(suppliers, total, filter.Page), nil
}

// Get returns a supplier with its metrics and open orders
func (s *SupplierService) Get(ctx context.Context, id string) (*dto.SupplierDetail, error) {
	supplier, err := s.deps.Repos.Suppliers.GetSupplier(ctx, id)
	if err != nil {
		return nil, loadError(err, "Supplier")
	}
	orders, err := s.orders(ctx, id)
	if err != nil {
		return nil, err
	}
	metrics, err := s.metrics(ctx, id, orders)
	if err != nil {
		return nil, err
	}

	active := []*entities.PurchaseOrder{}
	for _, po := range orders {
		if po.Status.IsOpen() {
			active = append(active, po)
		}
	}
	return &dto.SupplierDetail{Supplier: supplier, Metrics: metrics, ActiveOrders: active}, nil
}

// Create adds a supplier; the code is generated unless supplied
func (s *SupplierService) Create(ctx context.Context, actor *entities.User, in SupplierInput) (*entities.Supplier, error) {
	now := s.deps.now()
	supplier := &entities.Supplier{
		ID:               s.deps.NewID(),
		Code:             strings.ToUpper(strings.TrimSpace(in.Code)),
		Status:           entities.SupplierActive,
		PerformanceScore: decimal.Zero,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	applySupplierInput(supplier, in)
	if err := supplier.Validate(); err != nil {
		return nil, invalid("%v", err)
	}

	repo := s.deps.Repos.Suppliers
	if supplier.Code != "" {
		err := repo.CreateSupplier(ctx, supplier)
		if errors.Is(err, repositories.ErrAlreadyExists) {
			return nil, conflict("Supplier code %s already exists", supplier.Code)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create supplier: %w", err)
		}
	} else {
		_, err := s.deps.Codes.Allocate(ctx, repo, services.PrefixSupplier, func(code string) error {
			supplier.Code = code
			return repo.CreateSupplier(ctx, supplier)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create supplier: %w", err)
		}
	}

	s.deps.Logger.Info("supplier created", zap.String("code", supplier.Code), zap.String("user_id", actorID(actor)))
	return supplier, nil
}

// Update replaces the editable fields of a supplier
func (s *SupplierService) Update(ctx context.Context, actor *entities.User, id string, in SupplierInput) (*entities.Supplier, error) {
	supplier, err := s.deps.Repos.Suppliers.GetSupplier(ctx, id)
	if err != nil {
		return nil, loadError(err, "Supplier")
	}
	applySupplierInput(supplier, in)
	if err := supplier.Validate(); err != nil {
		return nil, invalid("%v", err)
	}
	supplier.UpdatedAt = s.deps.now()
	if err := s.deps.Repos.Suppliers.UpdateSupplier(ctx, supplier); err != nil {
		return nil, fmt.Errorf("failed to update supplier %s: %w", supplier.Code, err)
	}
	s.deps.Logger.Info("supplier updated",
		zap.String("code", supplier.Code),
		zap.String("status", string(supplier.Status)),
		zap.String("user_id", actorID(actor)))
	return supplier, nil
}

func applySupplierInput(supplier *entities.Supplier, in SupplierInput) {
	supplier.Name = strings.TrimSpace(in.Name)
	supplier.ContactPerson = in.ContactPerson
	supplier.Email = strings.TrimSpace(in.Email)
	supplier.Phone = in.Phone
	supplier.Address = in.Address
	supplier.TaxID = in.TaxID
	supplier.Tags = in.Tags
	if in.Status != "" {
		supplier.Status = in.Status
	}
}

// Delete removes a supplier that has never been ordered from
func (s *SupplierService) Delete(ctx context.Context, actor *entities.User, id string) error {
	supplier, err := s.deps.Repos.Suppliers.GetSupplier(ctx, id)
	if err != nil {
		return loadError(err, "Supplier")
	}
	_, count, err := s.deps.Repos.PurchaseOrders.ListPurchaseOrders(ctx, repositories.PurchaseOrderFilter{
		SupplierID: id,
		Page:       repositories.Page{Page: 1, Limit: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to count orders of %s: %w", supplier.Code, err)
	}
	if count > 0 {
		return conflict("Cannot delete supplier %s with %d purchase orders", supplier.Code, count)
	}
	if err := s.deps.Repos.Suppliers.DeleteSupplier(ctx, id); err != nil {
		return fmt.Errorf("failed to delete supplier %s: %w", supplier.Code, err)
	}
	s.deps.Logger.Info("supplier deleted", zap.String("code", supplier.Code), zap.String("user_id", actorID(actor)))
	return nil
}

// RecomputePerformance refreshes the stored score from delivery history
func (s *SupplierService) RecomputePerformance(ctx context.Context, id string) (*entities.Supplier, error) {
	supplier, err := s.deps.Repos.Suppliers.GetSupplier(ctx, id)
	if err != nil {
		return nil, loadError(err, "Supplier")
	}
	orders, err := s.orders(ctx, id)
	if err != nil {
		return nil, err
	}
	metrics, err := s.metrics(ctx, id, orders)
	if err != nil {
		return nil, err
	}

	supplier.PerformanceScore = metrics.PerformanceScore()
	supplier.UpdatedAt = s.deps.now()
	if err := s.deps.Repos.Suppliers.UpdateSupplier(ctx, supplier); err != nil {
		return nil, fmt.Errorf("failed to update score of %s: %w", supplier.Code, err)
	}
	s.deps.Logger.Debug("supplier score recomputed",
		zap.String("code", supplier.Code),
		zap.String("score", supplier.PerformanceScore.String()))
	return supplier, nil
}

func (s *SupplierService) orders(ctx context.Context, supplierID string) ([]*entities.PurchaseOrder, error) {
	orders, _, err := s.deps.Repos.PurchaseOrders.ListPurchaseOrders(ctx, repositories.PurchaseOrderFilter{SupplierID: supplierID})
	if err != nil {
		return nil, fmt.Errorf("failed to list orders of supplier %s: %w", supplierID, err)
	}
	return orders, nil
}

// metrics derives delivery figures from approved GRNs. A receipt counts as on
// time when it arrived by the order's expected delivery date, or the order had none.
func (s *SupplierService) metrics(ctx context.Context, supplierID string, orders []*entities.PurchaseOrder) (entities.SupplierMetrics, error) {
	metrics := entities.SupplierMetrics{
		OnTimeDeliveryRate:    decimal.Zero,
		QualityAcceptanceRate: decimal.Zero,
		TotalSpend:            decimal.Zero,
	}
	byID := make(map[string]*entities.PurchaseOrder, len(orders))
	for _, po := range orders {
		byID[po.ID] = po
		switch po.Status {
		case entities.POApproved, entities.POIssued, entities.POCompleted:
			metrics.TotalSpend = metrics.TotalSpend.Add(po.TotalAmount)
		}
		if po.Status.IsOpen() {
			metrics.ActiveContracts++
		}
	}

	grns, _, err := s.deps.Repos.GRNs.ListGRNs(ctx, repositories.GRNFilter{SupplierID: supplierID, Status: entities.GRNApproved})
	if err != nil {
		return metrics, fmt.Errorf("failed to list receipts of supplier %s: %w", supplierID, err)
	}
	if len(grns) == 0 {
		return metrics, nil
	}

	onTime := 0
	received, accepted := decimal.Zero, decimal.Zero
	for _, grn := range grns {
		po := byID[grn.PurchaseOrderID]
		if po == nil || po.ExpectedDeliveryDate == nil || !grn.ReceivedDate.After(*po.ExpectedDeliveryDate) {
			onTime++
		}
		r, a, _ := grn.Totals()
		received = received.Add(r)
		accepted = accepted.Add(a)
	}
	metrics.OnTimeDeliveryRate = decimal.NewFromInt(int64(onTime)).Div(decimal.NewFromInt(int64(len(grns)))).Round(4)
	if received.IsPositive() {
		metrics.QualityAcceptanceRate = accepted.Div(received).Round(4)
	}
	return metrics, nil
}
