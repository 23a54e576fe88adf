package services

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	testhelpers "github.com/vsinha/cims/pkg/application/services/testing"
	"github.com/vsinha/cims/pkg/domain/entities"
	"github.com/vsinha/cims/pkg/domain/repositories"
	"github.com/vsinha/cims/pkg/infrastructure/events"
)

func TestMaterialService_CreateGeneratesCategoryCodes(t *testing.T) {
	f := newFixture(t)
	svc := NewMaterialService(f.deps)

	tests := []struct {
		name     string
		category entities.MaterialCategory
		expected string
	}{
		{"cement continues existing series", entities.CategoryCement, "CEM-2026-0002"},
		{"timber starts a new series", entities.CategoryTimber, "TMB-2026-0001"},
		{"other uses the fallback prefix", entities.CategoryOther, "CAT-2026-0001"},
		{"empty category becomes other", "", "CAT-2026-0002"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := svc.Create(bg, f.Admin, MaterialInput{
				Name:     "Item " + tt.name,
				Category: tt.category,
				Unit:     "pcs",
			})
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if m.Code != tt.expected {
				t.Errorf("Expected code %s, got %s", tt.expected, m.Code)
			}
			if m.Status != entities.MaterialActive {
				t.Errorf("Expected ACTIVE status, got %s", m.Status)
			}
		})
	}

	if !f.hasEvent(t, events.MaterialCreatedEvent) {
		t.Error("Expected material.created event")
	}
}

func TestMaterialService_ConcurrentCreatesGetDistinctCodes(t *testing.T) {
	f := newFixture(t)
	svc := NewMaterialService(f.deps)

	const n = 25
	codes := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := svc.Create(bg, f.Admin, MaterialInput{Name: "Plywood", Category: entities.CategoryTimber, Unit: "sheet"})
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
				return
			}
			codes <- m.Code
		}()
	}
	wg.Wait()
	close(codes)

	seen := map[string]bool{}
	for code := range codes {
		if seen[code] {
			t.Errorf("Code %s allocated twice", code)
		}
		seen[code] = true
	}
	if len(seen) != n {
		t.Errorf("Expected %d distinct codes, got %d", n, len(seen))
	}
	if !seen["TMB-2026-0025"] {
		t.Error("Expected the series to reach TMB-2026-0025")
	}
}

func TestMaterialService_CreateValidation(t *testing.T) {
	f := newFixture(t)
	svc := NewMaterialService(f.deps)

	_, err := svc.Create(bg, f.Admin, MaterialInput{Code: f.Cement.Code, Name: "Dup", Unit: "bag"})
	expectKind(t, err, ErrConflict)

	_, err = svc.Create(bg, f.Admin, MaterialInput{Name: "No unit"})
	expectKind(t, err, ErrValidation)

	_, err = svc.Create(bg, f.Admin, MaterialInput{
		Name:     "Bad range",
		Unit:     "pcs",
		MinStock: decimal.NewFromInt(10),
		MaxStock: decimal.NewFromInt(5),
	})
	expectKind(t, err, ErrValidation)
}

func TestMaterialService_UpdateChecksVersion(t *testing.T) {
	f := newFixture(t)
	svc := NewMaterialService(f.deps)

	name := "Portland Cement 42.5"
	version := 1
	updated, err := svc.Update(bg, f.Admin, f.Cement.ID, MaterialUpdate{Name: &name, Version: &version})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("Expected version 2, got %d", updated.Version)
	}

	stale := 1
	_, err = svc.Update(bg, f.Admin, f.Cement.ID, MaterialUpdate{Name: &name, Version: &stale})
	expectKind(t, err, ErrConflict)

	_, err = svc.Update(bg, f.Admin, "missing", MaterialUpdate{Name: &name})
	expectKind(t, err, repositories.ErrNotFound)
}

func TestMaterialService_DeleteMarksObsolete(t *testing.T) {
	f := newFixture(t)
	svc := NewMaterialService(f.deps)

	if err := svc.Delete(bg, f.Admin, f.Sand.ID); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	m, err := svc.Get(bg, f.Sand.ID)
	if err != nil {
		t.Fatalf("Expected material to remain, got %v", err)
	}
	if m.Status != entities.MaterialObsolete {
		t.Errorf("Expected OBSOLETE, got %s", m.Status)
	}
}

func TestMaterialService_StockFigures(t *testing.T) {
	f := newFixture(t)
	svc := NewMaterialService(f.deps)
	f.MustAddBatch(f.Cement, f.Central, "B1", "60", "8", testhelpers.Epoch)
	f.MustAddBatch(f.Cement, f.SiteStore, "B2", "15", "8", testhelpers.Epoch)
	f.MustAddBatch(f.Rebar, f.Central, "R1", "5", "700", testhelpers.Epoch)

	level, err := svc.StockLevel(bg, f.Cement.ID)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !level.CurrentStock.Equal(decimal.NewFromInt(75)) {
		t.Errorf("Expected current stock 75, got %s", level.CurrentStock)
	}
	if !level.IsLowStock {
		t.Error("Expected cement below its reorder point of 100")
	}

	low, err := svc.LowStock(bg)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	// cement short by 25, sand at zero with reorder point zero; rebar is fine
	if len(low) != 2 {
		t.Fatalf("Expected 2 low stock materials, got %d", len(low))
	}
	if low[0].MaterialID != f.Cement.ID || !low[0].Deficit.Equal(decimal.NewFromInt(25)) {
		t.Errorf("Expected cement first with deficit 25, got %s with %s", low[0].Code, low[0].Deficit)
	}
}

func TestMaterialService_ImportAndExport(t *testing.T) {
	f := newFixture(t)
	svc := NewMaterialService(f.deps)

	input := strings.Join([]string{
		"code,name,category,unit,unit_price,min_stock,max_stock,reorder_point,description",
		",Copper Wire 2.5mm,ELECTRICAL,roll,45,1,20,5,",
		"CEM-2026-0001,Duplicate cement,CEMENT,bag,9,0,0,0,",
		",,PLUMBING,pcs,3,0,0,0,missing name",
		",PVC Pipe 4in,plumbing,length,12.5,0,0,10,",
	}, "\n")

	result, err := svc.Import(bg, f.Admin, strings.NewReader(input))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.Imported != 2 {
		t.Errorf("Expected 2 imported rows, got %d", result.Imported)
	}
	if result.Failed != 2 {
		t.Fatalf("Expected 2 failed rows, got %d: %+v", result.Failed, result.Errors)
	}
	if result.Errors[0].Row != 3 || result.Errors[1].Row != 4 {
		t.Errorf("Expected failures on rows 3 and 4, got %+v", result.Errors)
	}

	var out bytes.Buffer
	if err := svc.Export(bg, &out); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	for _, code := range []string{"ELC-2026-0001", "PLB-2026-0001", "CEM-2026-0001"} {
		if !strings.Contains(out.String(), code) {
			t.Errorf("Expected export to contain %s", code)
		}
	}
}

func TestMaterialService_UpdateLosesRaceToConcurrentWriter(t *testing.T) {
	f := newFixture(t)
	deps := f.withRepos(func(r repositories.Repositories) repositories.Repositories {
		r.Materials = &racingMaterials{MaterialRepository: r.Materials}
		return r
	})
	svc := NewMaterialService(deps)

	name := "Portland Cement 42.5"
	version := 1
	_, err := svc.Update(bg, f.Admin, f.Cement.ID, MaterialUpdate{Name: &name, Version: &version})
	expectKind(t, err, ErrConflict)

	stored, _ := f.Repos.Materials.GetMaterial(bg, f.Cement.ID)
	if stored.Name == name {
		t.Errorf("Expected the concurrent write to win, got name %s", stored.Name)
	}
	if stored.Description != "edited elsewhere" || stored.Version != 2 {
		t.Errorf("Expected the other writer's version 2, got %q at %d", stored.Description, stored.Version)
	}
}
