package csv

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/vsinha/cims/pkg/domain/entities"
)

func TestReadMaterials(t *testing.T) {
	input := "code,name,category,unit,unit_price,min_stock,max_stock,reorder_point,description\n" +
		"CEM-2026-0001,OPC 53,cement,bag,8.75,100,2000,250,grade 53\n" +
		",Rebar 12mm,STEEL,kg,0.92,,,,\n" +
		"X-1,,STEEL,kg,1,1,1,1,\n" +
		"X-2,Glass,WINDOWS,sheet,1,1,1,1,\n" +
		"X-3,Sand,AGGREGATE,m3,abc,1,1,1,\n"

	rows, rowErrs, err := NewLoader().ReadMaterials(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadMaterials failed: %v", err)
	}

	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}
	if rows[0].Category != entities.CategoryCement {
		t.Errorf("Expected category CEMENT, got %s", rows[0].Category)
	}
	if !rows[0].UnitPrice.Equal(decimal.RequireFromString("8.75")) {
		t.Errorf("Expected unit price 8.75, got %s", rows[0].UnitPrice)
	}
	if rows[1].Code != "" || !rows[1].MinStock.IsZero() {
		t.Errorf("Expected empty code and zero min stock, got %q and %s", rows[1].Code, rows[1].MinStock)
	}
	if rows[1].Line != 3 {
		t.Errorf("Expected line 3, got %d", rows[1].Line)
	}

	wantLines := []int{4, 5, 6}
	if len(rowErrs) != len(wantLines) {
		t.Fatalf("Expected %d row errors, got %d: %v", len(wantLines), len(rowErrs), rowErrs)
	}
	for i, line := range wantLines {
		if rowErrs[i].Line != line {
			t.Errorf("Expected row error on line %d, got %d", line, rowErrs[i].Line)
		}
	}
}

func TestReadMaterials_HeaderErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"header only", strings.Join(MaterialHeader, ",") + "\n"},
		{"missing column", "code,name,unit\nA,B,C\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := NewLoader().ReadMaterials(strings.NewReader(tt.input)); err == nil {
				t.Error("Expected error but got none")
			}
		})
	}
}

func TestMaterials_ExportCanBeReimported(t *testing.T) {
	materials := []*entities.Material{
		{
			Code: "STL-2026-0001", Name: "Rebar, 12mm", Category: entities.CategorySteel, Unit: "kg",
			UnitPrice: decimal.RequireFromString("0.92"), MinStock: decimal.NewFromInt(500),
			MaxStock: decimal.NewFromInt(9000), ReorderPoint: decimal.NewFromInt(1000),
			Status: entities.MaterialActive, CurrentStock: decimal.NewFromInt(1200),
		},
	}

	var buf bytes.Buffer
	if err := NewLoader().WriteMaterials(&buf, materials); err != nil {
		t.Fatalf("WriteMaterials failed: %v", err)
	}

	rows, rowErrs, err := NewLoader().ReadMaterials(&buf)
	if err != nil {
		t.Fatalf("ReadMaterials failed: %v", err)
	}
	if len(rowErrs) != 0 {
		t.Fatalf("Expected no row errors, got %v", rowErrs)
	}
	if len(rows) != 1 || rows[0].Name != "Rebar, 12mm" || rows[0].Code != "STL-2026-0001" {
		t.Errorf("Unexpected rows after round trip: %+v", rows)
	}
}

func TestReadBOQ(t *testing.T) {
	input := "material_code,description,category,unit,planned_qty,unit_rate\n" +
		"cem-2026-0001,Foundation concrete,Substructure,bag,1200,8.5\n" +
		"STL-2026-0001,Columns,Frame,kg,0,1\n" +
		",Missing code,Frame,kg,10,1\n"

	rows, rowErrs, err := NewLoader().ReadBOQ(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadBOQ failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(rows))
	}
	if rows[0].MaterialCode != "CEM-2026-0001" {
		t.Errorf("Expected upper-cased code, got %s", rows[0].MaterialCode)
	}
	if !rows[0].PlannedQty.Equal(decimal.NewFromInt(1200)) {
		t.Errorf("Expected planned qty 1200, got %s", rows[0].PlannedQty)
	}
	if len(rowErrs) != 2 {
		t.Errorf("Expected 2 row errors, got %d", len(rowErrs))
	}
}

func TestWriteBOQ_UsesMaterialCodes(t *testing.T) {
	items := []*entities.BOQItem{
		{ID: "b1", MaterialID: "m1", Unit: "bag", PlannedQty: decimal.NewFromInt(10), UnitRate: decimal.NewFromInt(3)},
		{ID: "b2", MaterialID: "m2", Unit: "kg", PlannedQty: decimal.NewFromInt(1), UnitRate: decimal.NewFromInt(1)},
	}

	var buf bytes.Buffer
	if err := NewLoader().WriteBOQ(&buf, items, map[string]string{"m1": "CEM-2026-0001"}); err != nil {
		t.Fatalf("WriteBOQ failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "CEM-2026-0001,,,bag,10,3,0,30") {
		t.Errorf("Expected coded line with amount 30, got:\n%s", out)
	}
	if !strings.Contains(out, "\nm2,") {
		t.Errorf("Expected material id fallback for unknown code, got:\n%s", out)
	}
}
