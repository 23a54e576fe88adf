package entities

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ProjectStatus represents the lifecycle of a construction project
type ProjectStatus string

const (
	ProjectPlanning  ProjectStatus = "PLANNING"
	ProjectActive    ProjectStatus = "ACTIVE"
	ProjectOnHold    ProjectStatus = "ON_HOLD"
	ProjectCompleted ProjectStatus = "COMPLETED"
	ProjectCancelled ProjectStatus = "CANCELLED"
)

var projectTransitions = map[ProjectStatus][]ProjectStatus{
	ProjectPlanning: {ProjectActive, ProjectCancelled},
	ProjectActive:   {ProjectOnHold, ProjectCompleted, ProjectCancelled},
	ProjectOnHold:   {ProjectActive, ProjectCancelled},
}

// IsValid reports whether s is a known project status
func (s ProjectStatus) IsValid() bool {
	switch s {
	case ProjectPlanning, ProjectActive, ProjectOnHold, ProjectCompleted, ProjectCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether a project may move from s to next
func (s ProjectStatus) CanTransitionTo(next ProjectStatus) bool {
	for _, allowed := range projectTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Project is a construction site consuming materials against a budget
type Project struct {
	ID            string          `json:"id"`
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Location      string          `json:"location"`
	Status        ProjectStatus   `json:"status"`
	StartDate     time.Time       `json:"startDate"`
	EndDate       *time.Time      `json:"endDate,omitempty"`
	Budget        decimal.Decimal `json:"budget"`
	Spent         decimal.Decimal `json:"spent"`
	ManagerID     string          `json:"managerId,omitempty"`
	ClientName    string          `json:"clientName,omitempty"`
	ClientContact string          `json:"clientContact,omitempty"`
	Tags          []string        `json:"tags,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Validate checks the invariants of a project record
func (p *Project) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("project name cannot be empty")
	}
	if strings.TrimSpace(p.Location) == "" {
		return fmt.Errorf("project location cannot be empty")
	}
	if p.Budget.IsNegative() {
		return fmt.Errorf("budget cannot be negative, got %s", p.Budget)
	}
	if p.EndDate != nil && p.EndDate.Before(p.StartDate) {
		return fmt.Errorf("end date %v cannot be before start date %v", *p.EndDate, p.StartDate)
	}
	if !p.Status.IsValid() {
		return fmt.Errorf("unknown project status %q", p.Status)
	}
	return nil
}

// Remaining returns budget minus spent
func (p *Project) Remaining() decimal.Decimal {
	return p.Budget.Sub(p.Spent)
}

// OverBudget reports whether spending exceeds the budget
func (p *Project) OverBudget() bool {
	return p.Budget.IsPositive() && p.Spent.GreaterThan(p.Budget)
}

// Utilization returns spent as a percentage of budget
func (p *Project) Utilization() decimal.Decimal {
	return percentOf(p.Spent, p.Budget)
}

// CriticalUsagePercent marks BOQ lines that have consumed most of their plan
var CriticalUsagePercent = decimal.NewFromInt(90)

// BOQItem is one planned material line of a project's bill of quantities
type BOQItem struct {
	ID             string          `json:"id"`
	ProjectID      string          `json:"projectId"`
	MaterialID     string          `json:"materialId"`
	Description    string          `json:"description,omitempty"`
	Category       string          `json:"category,omitempty"`
	Unit           string          `json:"unit"`
	PlannedQty     decimal.Decimal `json:"plannedQty"`
	ConsumedQty    decimal.Decimal `json:"consumedQty"`
	UnitRate       decimal.Decimal `json:"unitRate"`
	Specifications string          `json:"specifications,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// NewBOQItem creates a validated BOQItem
func NewBOQItem(projectID, materialID, unit string, plannedQty, unitRate decimal.Decimal) (*BOQItem, error) {
	item := &BOQItem{
		ProjectID:  projectID,
		MaterialID: materialID,
		Unit:       unit,
		PlannedQty: plannedQty,
		UnitRate:   unitRate,
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}
	return item, nil
}

// Validate checks the invariants of a BOQ line
func (b *BOQItem) Validate() error {
	if b.ProjectID == "" {
		return fmt.Errorf("project cannot be empty")
	}
	if b.MaterialID == "" {
		return fmt.Errorf("material cannot be empty")
	}
	if !b.PlannedQty.IsPositive() {
		return fmt.Errorf("planned quantity must be positive, got %s", b.PlannedQty)
	}
	if b.UnitRate.IsNegative() {
		return fmt.Errorf("unit rate cannot be negative, got %s", b.UnitRate)
	}
	if b.ConsumedQty.IsNegative() {
		return fmt.Errorf("consumed quantity cannot be negative, got %s", b.ConsumedQty)
	}
	return nil
}

// Amount returns the planned value of the line
func (b *BOQItem) Amount() decimal.Decimal {
	return b.PlannedQty.Mul(b.UnitRate)
}

// RemainingQty returns planned minus consumed, never negative
func (b *BOQItem) RemainingQty() decimal.Decimal {
	rest := b.PlannedQty.Sub(b.ConsumedQty)
	if rest.IsNegative() {
		return decimal.Zero
	}
	return rest
}

// UsagePercent returns consumed as a percentage of planned, two decimals
func (b *BOQItem) UsagePercent() decimal.Decimal {
	return percentOf(b.ConsumedQty, b.PlannedQty)
}

// IsCritical reports whether usage reached the critical threshold
func (b *BOQItem) IsCritical() bool {
	return b.UsagePercent().GreaterThanOrEqual(CriticalUsagePercent)
}

func percentOf(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(decimal.NewFromInt(100)).Round(2)
}
