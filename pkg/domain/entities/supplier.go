package entities

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SupplierStatus represents whether a supplier may receive orders
type SupplierStatus string

const (
	SupplierActive      SupplierStatus = "ACTIVE"
	SupplierBlacklisted SupplierStatus = "BLACKLISTED"
	SupplierProbation   SupplierStatus = "PROBATION"
)

// IsValid reports whether s is a known supplier status
func (s SupplierStatus) IsValid() bool {
	switch s {
	case SupplierActive, SupplierBlacklisted, SupplierProbation:
		return true
	}
	return false
}

// Supplier is a vendor of materials
type Supplier struct {
	ID               string          `json:"id"`
	Code             string          `json:"code"`
	Name             string          `json:"name"`
	ContactPerson    string          `json:"contactPerson"`
	Email            string          `json:"email"`
	Phone            string          `json:"phone"`
	Address          string          `json:"address"`
	TaxID            string          `json:"taxId,omitempty"`
	Status           SupplierStatus  `json:"status"`
	PerformanceScore decimal.Decimal `json:"performanceScore"`
	Tags             []string        `json:"tags,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// Validate checks the invariants of a supplier record
func (s *Supplier) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("supplier name cannot be empty")
	}
	if s.Email != "" {
		if _, err := mail.ParseAddress(s.Email); err != nil {
			return fmt.Errorf("invalid supplier email %q", s.Email)
		}
	}
	if !s.Status.IsValid() {
		return fmt.Errorf("unknown supplier status %q", s.Status)
	}
	if s.PerformanceScore.IsNegative() || s.PerformanceScore.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("performance score must be within 0-100, got %s", s.PerformanceScore)
	}
	return nil
}

// CanReceiveOrders reports whether new purchase orders may be raised against the supplier
func (s *Supplier) CanReceiveOrders() bool {
	return s.Status != SupplierBlacklisted
}

// SupplierMetrics summarizes delivery history for a supplier
type SupplierMetrics struct {
	OnTimeDeliveryRate    decimal.Decimal `json:"onTimeDeliveryRate"`
	QualityAcceptanceRate decimal.Decimal `json:"qualityAcceptanceRate"`
	TotalSpend            decimal.Decimal `json:"totalSpend"`
	ActiveContracts       int             `json:"activeContracts"`
}

// PerformanceScore weighs on-time delivery and acceptance equally; rates are fractions in [0,1]
func (m SupplierMetrics) PerformanceScore() decimal.Decimal {
	half := decimal.NewFromFloat(0.5)
	score := m.OnTimeDeliveryRate.Mul(half).Add(m.QualityAcceptanceRate.Mul(half))
	return score.Mul(decimal.NewFromInt(100)).Round(2)
}
