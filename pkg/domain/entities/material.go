package entities

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MaterialCategory groups materials for reporting and code prefixes
type MaterialCategory string

const (
	CategoryCement     MaterialCategory = "CEMENT"
	CategorySteel      MaterialCategory = "STEEL"
	CategoryAggregate  MaterialCategory = "AGGREGATE"
	CategoryTimber     MaterialCategory = "TIMBER"
	CategoryElectrical MaterialCategory = "ELECTRICAL"
	CategoryPlumbing   MaterialCategory = "PLUMBING"
	CategoryFinishing  MaterialCategory = "FINISHING"
	CategoryHardware   MaterialCategory = "HARDWARE"
	CategorySafety     MaterialCategory = "SAFETY"
	CategoryOther      MaterialCategory = "OTHER"
)

// DefaultCodePrefix is used for categories without a dedicated prefix
const DefaultCodePrefix = "CAT"

var categoryPrefixes = map[MaterialCategory]string{
	CategoryCement:     "CEM",
	CategorySteel:      "STL",
	CategoryAggregate:  "AGG",
	CategoryTimber:     "TMB",
	CategoryElectrical: "ELC",
	CategoryPlumbing:   "PLB",
	CategoryFinishing:  "FIN",
	CategoryHardware:   "HDW",
	CategorySafety:     "SAF",
}

// MaterialCategories lists every known category in display order
func MaterialCategories() []MaterialCategory {
	return []MaterialCategory{
		CategoryCement, CategorySteel, CategoryAggregate, CategoryTimber, CategoryElectrical,
		CategoryPlumbing, CategoryFinishing, CategoryHardware, CategorySafety, CategoryOther,
	}
}

// IsValid reports whether c is a known category
func (c MaterialCategory) IsValid() bool {
	if c == CategoryOther {
		return true
	}
	_, ok := categoryPrefixes[c]
	return ok
}

// CodePrefix returns the material code prefix for the category
func (c MaterialCategory) CodePrefix() string {
	if prefix, ok := categoryPrefixes[c]; ok {
		return prefix
	}
	return DefaultCodePrefix
}

// MaterialStatus represents the lifecycle state of a material
type MaterialStatus string

const (
	MaterialActive          MaterialStatus = "ACTIVE"
	MaterialDraft           MaterialStatus = "DRAFT"
	MaterialObsolete        MaterialStatus = "OBSOLETE"
	MaterialPendingApproval MaterialStatus = "PENDING_APPROVAL"
)

// IsValid reports whether s is a known material status
func (s MaterialStatus) IsValid() bool {
	switch s {
	case MaterialActive, MaterialDraft, MaterialObsolete, MaterialPendingApproval:
		return true
	}
	return false
}

// Material is a master data record for anything that can be stocked or ordered
type Material struct {
	ID             string            `json:"id"`
	Code           string            `json:"code"`
	Name           string            `json:"name"`
	Category       MaterialCategory  `json:"category"`
	Unit           string            `json:"unit"`
	UnitPrice      decimal.Decimal   `json:"unitPrice"`
	MinStock       decimal.Decimal   `json:"minStock"`
	MaxStock       decimal.Decimal   `json:"maxStock"`
	ReorderPoint   decimal.Decimal   `json:"reorderPoint"`
	CurrentStock   decimal.Decimal   `json:"currentStock"`
	Description    string            `json:"description,omitempty"`
	Specifications map[string]string `json:"specifications,omitempty"`
	Status         MaterialStatus    `json:"status"`
	Version        int               `json:"version"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// Validate checks the invariants of a material record
func (m *Material) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("material name cannot be empty")
	}
	if strings.TrimSpace(m.Unit) == "" {
		return fmt.Errorf("material unit cannot be empty")
	}
	if !m.Category.IsValid() {
		return fmt.Errorf("unknown material category %q", m.Category)
	}
	if !m.Status.IsValid() {
		return fmt.Errorf("unknown material status %q", m.Status)
	}
	for name, v := range map[string]decimal.Decimal{
		"unit price":    m.UnitPrice,
		"min stock":     m.MinStock,
		"max stock":     m.MaxStock,
		"reorder point": m.ReorderPoint,
	} {
		if v.IsNegative() {
			return fmt.Errorf("%s cannot be negative, got %s", name, v)
		}
	}
	if m.MaxStock.IsPositive() && m.MinStock.GreaterThan(m.MaxStock) {
		return fmt.Errorf("min stock %s cannot exceed max stock %s", m.MinStock, m.MaxStock)
	}
	return nil
}

// IsLowStock reports whether the current stock has reached the reorder point
func (m *Material) IsLowStock() bool {
	return m.Status == MaterialActive && m.CurrentStock.LessThanOrEqual(m.ReorderPoint)
}
