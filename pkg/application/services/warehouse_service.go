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

// WarehouseInput carries the fields of a new warehouse
type WarehouseInput struct {
	Code      string          `json:"code,omitempty"`
	Name      string          `json:"name"`
	Location  string          `json:"location"`
	Address   string          `json:"address,omitempty"`
	Capacity  decimal.Decimal `json:"capacity"`
	ManagerID string          `json:"managerId,omitempty"`
}

// WarehouseService manages stock locations
type WarehouseService struct {
	deps Dependencies
}

// NewWarehouseService creates a new warehouse service
func NewWarehouseService(deps Dependencies) *WarehouseService {
	return &WarehouseService{deps: deps.withDefaults()}
}

// List returns every warehouse with its current utilization
func (s *WarehouseService) List(ctx context.Context) ([]dto.WarehouseView, error) {
	warehouses, err := s.deps.Repos.Warehouses.ListWarehouses(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list warehouses: %w", err)
	}
	views := make([]dto.WarehouseView, 0, len(warehouses))
	for _, w := range warehouses {
		view, err := s.view(ctx, w)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// Get returns one warehouse with its current utilization
func (s *WarehouseService) Get(ctx context.Context, id string) (dto.WarehouseView, error) {
	warehouse, err := s.deps.Repos.Warehouses.GetWarehouse(ctx, id)
	if err != nil {
		return dto.WarehouseView{}, loadError(err, "Warehouse")
	}
	return s.view(ctx, warehouse)
}

// Create adds a warehouse; the code is generated unless supplied
func (s *WarehouseService) Create(ctx context.Context, actor *entities.User, in WarehouseInput) (*entities.Warehouse, error) {
	now := s.deps.now()
	warehouse := &entities.Warehouse{
		ID:                 s.deps.NewID(),
		Code:               strings.ToUpper(strings.TrimSpace(in.Code)),
		Name:               strings.TrimSpace(in.Name),
		Location:           strings.TrimSpace(in.Location),
		Address:            in.Address,
		Capacity:           in.Capacity,
		CurrentUtilization: decimal.Zero,
		IsActive:           true,
		ManagerID:          in.ManagerID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := warehouse.Validate(); err != nil {
		return nil, invalid("%v", err)
	}

	repo := s.deps.Repos.Warehouses
	if warehouse.Code != "" {
		err := repo.CreateWarehouse(ctx, warehouse)
		if errors.Is(err, repositories.ErrAlreadyExists) {
			return nil, conflict("Warehouse code %s already exists", warehouse.Code)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create warehouse: %w", err)
		}
	} else {
		_, err := s.deps.Codes.Allocate(ctx, repo, services.PrefixWarehouse, func(code string) error {
			warehouse.Code = code
			return repo.CreateWarehouse(ctx, warehouse)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create warehouse: %w", err)
		}
	}

	s.deps.Logger.Info("warehouse created", zap.String("code", warehouse.Code), zap.String("user_id", actorID(actor)))
	return warehouse, nil
}

// Stock returns the available batches held in a warehouse, oldest first
func (s *WarehouseService) Stock(ctx context.Context, id string, page repositories.Page) (dto.Page[*entities.StockBatch], error) {
	if _, err := s.deps.Repos.Warehouses.GetWarehouse(ctx, id); err != nil {
		return dto.Page[*entities.StockBatch]{}, loadError(err, "Warehouse")
	}
	page = dto.NormalizePage(page.Page, page.Limit)
	batches, total, err := s.deps.Repos.Stock.ListBatches(ctx, repositories.StockFilter{
		WarehouseID:   id,
		OnlyAvailable: true,
		Page:          page,
	})
	if err != nil {
		return dto.Page[*entities.StockBatch]{}, fmt.Errorf("failed to list stock of warehouse %s: %w", id, err)
	}
	return dto.NewPage(batches, total, page), nil
}

func (s *WarehouseService) view(ctx context.Context, w *entities.Warehouse) (dto.WarehouseView, error) {
	batches, _, err := s.deps.Repos.Stock.ListBatches(ctx, repositories.StockFilter{WarehouseID: w.ID, OnlyAvailable: true})
	if err != nil {
		return dto.WarehouseView{}, fmt.Errorf("failed to list stock of warehouse %s: %w", w.Code, err)
	}
	stocked := decimal.Zero
	for _, b := range batches {
		stocked = stocked.Add(b.Quantity)
	}
	w.CurrentUtilization = w.Utilization(stocked)
	return dto.WarehouseView{Warehouse: w, StockedQty: stocked}, nil
}
