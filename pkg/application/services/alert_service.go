package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vsinha/cims/pkg/domain/entities"
	"github.com/vsinha/cims/pkg/domain/repositories"
	"github.com/vsinha/cims/pkg/infrastructure/events"
)

// DefaultExpiryWindow is how far ahead the sweep looks for expiring batches
const DefaultExpiryWindow = 30 * 24 * time.Hour

// SweepReport counts the alerts a sweep raised per type
type SweepReport struct {
	Raised map[entities.AlertType]int `json:"raised"`
}

// Total returns the number of alerts raised
func (r SweepReport) Total() int {
	n := 0
	for _, c := range r.Raised {
		n += c
	}
	return n
}

// AlertService raises and manages alerts
type AlertService struct {
	deps         Dependencies
	expiryWindow time.Duration
}

// NewAlertService creates a new alert service
func NewAlertService(deps Dependencies, expiryWindow time.Duration) *AlertService {
	if expiryWindow <= 0 {
		expiryWindow = DefaultExpiryWindow
	}
	return &AlertService{deps: deps.withDefaults(), expiryWindow: expiryWindow}
}

// Raise stores an alert unless an undismissed alert of the same type already
// exists for the entity, in which case that alert is returned
func (s *AlertService) Raise(ctx context.Context, alert *entities.Alert) (*entities.Alert, error) {
	if alert.EntityID != "" {
		existing, err := s.deps.Repos.Alerts.FindOpenAlert(ctx, alert.Type, alert.EntityID)
		if err == nil {
			return existing, nil
		}
		if !isNotFound(err) {
			return nil, fmt.Errorf("failed to look up open %s alert: %w", alert.Type, err)
		}
	}

	alert.ID = s.deps.NewID()
	alert.CreatedAt = s.deps.now()
	if err := s.deps.Repos.Alerts.CreateAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("failed to create %s alert: %w", alert.Type, err)
	}
	s.deps.Logger.Info("alert raised",
		zap.String("type", string(alert.Type)),
		zap.String("severity", string(alert.Severity)),
		zap.String("entity_id", alert.EntityID))
	s.deps.publish(ctx, events.NewAlertEvent(alert))
	return alert, nil
}

// List returns alerts, undismissed only unless includeDismissed is set
func (s *AlertService) List(ctx context.Context, filter repositories.AlertFilter) ([]*entities.Alert, error) {
	alerts, err := s.deps.Repos.Alerts.ListAlerts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, nil
}

// Dismiss hides an alert; the next sweep may raise it again
func (s *AlertService) Dismiss(ctx context.Context, id string) (*entities.Alert, error) {
	return s.mark(ctx, id, func(a *entities.Alert) { a.IsDismissed = true })
}

// MarkRead flags an alert as read
func (s *AlertService) MarkRead(ctx context.Context, id string) (*entities.Alert, error) {
	return s.mark(ctx, id, func(a *entities.Alert) { a.IsRead = true })
}

func (s *AlertService) mark(ctx context.Context, id string, change func(*entities.Alert)) (*entities.Alert, error) {
	alert, err := s.deps.Repos.Alerts.GetAlert(ctx, id)
	if err != nil {
		return nil, loadError(err, "Alert")
	}
	change(alert)
	if err := s.deps.Repos.Alerts.UpdateAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("failed to update alert %s: %w", id, err)
	}
	return alert, nil
}

// Sweep scans stock, orders and projects and raises the alerts that apply
func (s *AlertService) Sweep(ctx context.Context) (SweepReport, error) {
	report := SweepReport{Raised: map[entities.AlertType]int{}}
	checks := []func(context.Context) ([]*entities.Alert, error){
		s.lowStock,
		s.expiringBatches,
		s.purchaseOrders,
		s.budgets,
	}
	for _, check := range checks {
		candidates, err := check(ctx)
		if err != nil {
			return report, err
		}
		for _, candidate := range candidates {
			alert, err := s.Raise(ctx, candidate)
			if err != nil {
				return report, err
			}
			if alert == candidate {
				report.Raised[alert.Type]++
			}
		}
	}
	s.deps.Logger.Debug("alert sweep finished", zap.Int("raised", report.Total()))
	return report, nil
}

func (s *AlertService) lowStock(ctx context.Context) ([]*entities.Alert, error) {
	items, err := lowStockItems(ctx, s.deps)
	if err != nil {
		return nil, err
	}
	alerts := make([]*entities.Alert, 0, len(items))
	for _, item := range items {
		severity := entities.SeverityHigh
		if !item.CurrentStock.IsPositive() {
			severity = entities.SeverityCritical
		}
		alerts = append(alerts, &entities.Alert{
			Type:       entities.AlertLowStock,
			Severity:   severity,
			Title:      "Low stock: " + item.Name,
			Message:    fmt.Sprintf("%s has %s %s left, reorder point is %s", item.Code, item.CurrentStock, item.Unit, item.ReorderLevel),
			EntityID:   item.MaterialID,
			MaterialID: item.MaterialID,
			ActionURL:  "/materials/" + item.MaterialID,
		})
	}
	return alerts, nil
}

func (s *AlertService) expiringBatches(ctx context.Context) ([]*entities.Alert, error) {
	batches, _, err := s.deps.Repos.Stock.ListBatches(ctx, repositories.StockFilter{OnlyAvailable: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	now := s.deps.now()
	var alerts []*entities.Alert
	for _, b := range batches {
		if !b.ExpiresWithin(now, s.expiryWindow) {
			continue
		}
		alerts = append(alerts, &entities.Alert{
			Type:       entities.AlertExpiringSoon,
			Severity:   entities.SeverityMedium,
			Title:      "Batch " + b.BatchNumber + " expiring soon",
			Message:    fmt.Sprintf("%s units expire on %s", b.Quantity, b.ExpiryDate.Format("2006-01-02")),
			EntityID:   b.ID,
			MaterialID: b.MaterialID,
			ActionURL:  "/inventory/stock/" + b.MaterialID,
		})
	}
	return alerts, nil
}

func (s *AlertService) purchaseOrders(ctx context.Context) ([]*entities.Alert, error) {
	orders, _, err := s.deps.Repos.PurchaseOrders.ListPurchaseOrders(ctx, repositories.PurchaseOrderFilter{
		Statuses: []entities.POStatus{entities.POIssued, entities.POPendingApproval},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list purchase orders: %w", err)
	}
	now := s.deps.now()
	var alerts []*entities.Alert
	for _, po := range orders {
		switch {
		case po.IsOverdue(now):
			alerts = append(alerts, &entities.Alert{
				Type:      entities.AlertOverdueDelivery,
				Severity:  entities.SeverityHigh,
				Title:     "Overdue delivery: " + po.PONumber,
				Message:   fmt.Sprintf("Delivery was expected on %s", po.ExpectedDeliveryDate.Format("2006-01-02")),
				EntityID:  po.ID,
				ProjectID: po.ProjectID,
				ActionURL: "/procurement/purchase-orders/" + po.ID,
			})
		case po.Status == entities.POPendingApproval:
			alerts = append(alerts, &entities.Alert{
				Type:      entities.AlertPendingApproval,
				Severity:  entities.SeverityLow,
				Title:     po.PONumber + " awaits approval",
				Message:   fmt.Sprintf("Purchase order worth %s is pending approval", po.TotalAmount.StringFixed(2)),
				EntityID:  po.ID,
				ProjectID: po.ProjectID,
				ActionURL: "/procurement/purchase-orders/" + po.ID,
			})
		}
	}
	return alerts, nil
}

func (s *AlertService) budgets(ctx context.Context) ([]*entities.Alert, error) {
	projects, _, err := s.deps.Repos.Projects.ListProjects(ctx, repositories.ProjectFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	var alerts []*entities.Alert
	for _, p := range projects {
		if !p.OverBudget() {
			continue
		}
		alerts = append(alerts, &entities.Alert{
			Type:      entities.AlertBudgetExceeded,
			Severity:  entities.SeverityCritical,
			Title:     "Budget exceeded: " + p.Name,
			Message:   fmt.Sprintf("Spent %s of a %s budget", p.Spent.StringFixed(2), p.Budget.StringFixed(2)),
			EntityID:  p.ID,
			ProjectID: p.ID,
			ActionURL: "/projects/" + p.ID,
		})
	}
	return alerts, nil
}
