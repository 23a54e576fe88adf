package entities

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestMaterialCategory_CodePrefix(t *testing.T) {
	tests := []struct {
		category MaterialCategory
		expected string
	}{
		{CategoryCement, "CEM"},
		{CategorySteel, "STL"},
		{CategorySafety, "SAF"},
		{CategoryOther, DefaultCodePrefix},
		{MaterialCategory("GLASS"), DefaultCodePrefix},
		{MaterialCategory(""), DefaultCodePrefix},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			if got := tt.category.CodePrefix(); got != tt.expected {
				t.Errorf("CodePrefix() = %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestMaterial_Validate(t *testing.T) {
	valid := func() Material {
		return Material{
			Name:         "Portland cement 42.5N",
			Unit:         "bag",
			Category:     CategoryCement,
			Status:       MaterialActive,
			MinStock:     decimal.NewFromInt(10),
			MaxStock:     decimal.NewFromInt(500),
			ReorderPoint: decimal.NewFromInt(50),
		}
	}

	tests := []struct {
		name    string
		mutate  func(m *Material)
		wantErr bool
	}{
		{"valid", func(m *Material) {}, false},
		{"empty_name", func(m *Material) { m.Name = " " }, true},
		{"empty_unit", func(m *Material) { m.Unit = "" }, true},
		{"unknown_category", func(m *Material) { m.Category = "GLASS" }, true},
		{"negative_price", func(m *Material) { m.UnitPrice = decimal.NewFromInt(-1) }, true},
		{"min_above_max", func(m *Material) { m.MinStock = decimal.NewFromInt(600) }, true},
		{"no_max_limit", func(m *Material) { m.MaxStock = decimal.Zero; m.MinStock = decimal.NewFromInt(600) }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := valid()
			tt.mutate(&m)
			if err := m.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %t", err, tt.wantErr)
			}
		})
	}
}

func TestMaterial_IsLowStock(t *testing.T) {
	m := Material{Status: MaterialActive, ReorderPoint: decimal.NewFromInt(50), CurrentStock: decimal.NewFromInt(50)}
	if !m.IsLowStock() {
		t.Error("Expected stock at reorder point to be low")
	}
	m.CurrentStock = decimal.NewFromInt(51)
	if m.IsLowStock() {
		t.Error("Expected stock above reorder point not to be low")
	}
	m.CurrentStock = decimal.Zero
	m.Status = MaterialObsolete
	if m.IsLowStock() {
		t.Error("Expected obsolete material never to be low stock")
	}
}
