package services

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	testhelpers "github.com/vsinha/cims/pkg/application/services/testing"
	"github.com/vsinha/cims/pkg/domain/entities"
	"github.com/vsinha/cims/pkg/domain/repositories"
	"github.com/vsinha/cims/pkg/infrastructure/events"
)

func TestProjectService_Create(t *testing.T) {
	f := newFixture(t)
	svc := NewProjectService(f.deps)

	p, err := svc.Create(bg, f.Manager, ProjectInput{Name: "Depot Extension", Location: "North Yard", Budget: dec("12000")})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if p.Code != "PRJ-2026-0003" {
		t.Errorf("Expected PRJ-2026-0003, got %s", p.Code)
	}
	if p.Status != entities.ProjectPlanning {
		t.Errorf("Expected PLANNING, got %s", p.Status)
	}
	if p.ManagerID != f.Manager.ID {
		t.Errorf("Expected the creator as manager, got %s", p.ManagerID)
	}
	if !p.StartDate.Equal(testhelpers.Epoch) {
		t.Errorf("Expected start date to default to now, got %v", p.StartDate)
	}

	_, err = svc.Create(bg, f.Manager, ProjectInput{Name: "Nowhere"})
	expectKind(t, err, ErrValidation)

	_, err = svc.Create(bg, f.Manager, ProjectInput{Code: "prj-2026-0001", Name: "Clash", Location: "x"})
	expectKind(t, err, ErrConflict)
}

func TestProjectService_StatusAndDelete(t *testing.T) {
	f := newFixture(t)
	svc := NewProjectService(f.deps)

	tests := []struct {
		name     string
		project  *entities.Project
		next     entities.ProjectStatus
		expected error
	}{
		{"active to on hold", f.Tower, entities.ProjectOnHold, nil},
		{"on hold to planning", f.Tower, entities.ProjectPlanning, ErrInvalidTransition},
		{"planning to completed", f.Bridge, entities.ProjectCompleted, ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateStatus(bg, f.Manager, tt.project.ID, tt.next)
			if tt.expected == nil {
				if err != nil {
					t.Fatalf("Unexpected error: %v", err)
				}
				return
			}
			expectKind(t, err, tt.expected)
		})
	}
	if !f.hasEvent(t, events.ProjectStatusChangedEvent) {
		t.Error("Expected project.status_changed event")
	}

	err := svc.Delete(bg, f.Admin, f.Tower.ID)
	expectKind(t, err, ErrInvalidTransition)

	line := f.MustAddBOQ(f.Bridge, f.Sand, "10", "0")
	if err := svc.Delete(bg, f.Admin, f.Bridge.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := f.Repos.BOQ.GetBOQItem(bg, line.ID); !isNotFound(err) {
		t.Errorf("Expected BOQ line removed with the project, got %v", err)
	}
}

func TestProjectService_BOQ(t *testing.T) {
	f := newFixture(t)
	svc := NewProjectService(f.deps)

	line, err := svc.CreateBOQ(bg, f.Tower.ID, BOQInput{MaterialID: f.Cement.ID, PlannedQty: dec("400"), UnitRate: dec("8.5")})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if line.Unit != "bag" || line.Category != "CEMENT" || line.Description != f.Cement.Name {
		t.Errorf("Expected defaults from the material, got %q %q %q", line.Unit, line.Category, line.Description)
	}
	if !line.Amount.Equal(dec("3400")) {
		t.Errorf("Expected amount 3400, got %s", line.Amount)
	}

	_, err = svc.CreateBOQ(bg, f.Tower.ID, BOQInput{MaterialID: f.Cement.ID, PlannedQty: dec("1"), UnitRate: dec("1")})
	expectKind(t, err, ErrConflict)

	consumed := dec("380")
	updated, err := svc.UpdateBOQ(bg, f.Tower.ID, line.ID, BOQUpdate{ConsumedQty: &consumed})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !updated.IsCritical {
		t.Errorf("Expected a line at %s%% usage to be critical", updated.UsagePercent)
	}

	_, err = svc.GetBOQ(bg, f.Bridge.ID, line.ID)
	expectKind(t, err, repositories.ErrNotFound)

	if _, err := svc.CreateBOQ(bg, f.Tower.ID, BOQInput{MaterialID: f.Rebar.ID, PlannedQty: dec("2"), UnitRate: dec("700")}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	summary, err := svc.BOQSummary(bg, f.Tower.ID)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if summary.TotalItems != 2 || !summary.TotalAmount.Equal(dec("4800")) {
		t.Errorf("Expected 2 lines worth 4800, got %d worth %s", summary.TotalItems, summary.TotalAmount)
	}
	if !summary.ByCategory["STEEL"].Equal(dec("1400")) {
		t.Errorf("Expected 1400 of steel, got %s", summary.ByCategory["STEEL"])
	}

	if err := svc.DeleteBOQ(bg, f.Tower.ID, line.ID); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	page, _ := svc.ListBOQ(bg, repositories.BOQFilter{ProjectID: f.Tower.ID})
	if page.Meta.Total != 1 {
		t.Errorf("Expected 1 remaining line, got %d", page.Meta.Total)
	}
}

func TestProjectService_ImportExportBOQ(t *testing.T) {
	f := newFixture(t)
	svc := NewProjectService(f.deps)

	input := strings.Join([]string{
		"material_code,description,category,unit,planned_qty,unit_rate",
		"cem-2026-0001,Slab pour,,bag,250,8.5",
		"XXX-2026-0001,Unknown,,pcs,1,1",
		"STL-2026-0001,Columns,,ton,3,720",
	}, "\n")

	result, err := svc.ImportBOQ(bg, f.Tower.ID, strings.NewReader(input))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.Imported != 2 || result.Failed != 1 {
		t.Fatalf("Expected 2 imported and 1 failed, got %d and %d", result.Imported, result.Failed)
	}
	if result.Errors[0].Row != 3 {
		t.Errorf("Expected the unknown code on row 3, got row %d", result.Errors[0].Row)
	}

	var out bytes.Buffer
	if err := svc.ExportBOQ(bg, f.Tower.ID, &out); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "CEM-2026-0001,Slab pour") {
		t.Errorf("Expected export to list the cement line by code, got:\n%s", out.String())
	}
}

func TestProjectService_Stats(t *testing.T) {
	f := newFixture(t)
	svc := NewProjectService(f.deps)
	inventory := NewInventoryService(f.deps)

	f.MustAddBatch(f.Cement, f.Central, "C1", "100", "8", testhelpers.Epoch)
	f.MustAddBOQ(f.Tower, f.Cement, "200", "0")
	if _, err := inventory.IssueToProject(bg, f.StoreKeeper, IssueInput{MaterialID: f.Cement.ID, ProjectID: f.Tower.ID, Quantity: dec("50")}); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	stats, err := svc.Stats(bg, f.Tower.ID)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if stats.MaterialsIssued != 1 {
		t.Errorf("Expected 1 issue, got %d", stats.MaterialsIssued)
	}
	if !stats.Spent.Sub(f.Tower.Spent).Equal(dec("400")) {
		t.Errorf("Expected 400 spent on the issue, got %s", stats.Spent.Sub(f.Tower.Spent))
	}
	if !stats.CompletionPercent.Equal(dec("25")) {
		t.Errorf("Expected 25%% complete, got %s", stats.CompletionPercent)
	}
}

func TestProjectService_DeleteFailureKeepsBOQ(t *testing.T) {
	f := newFixture(t)
	line := f.MustAddBOQ(f.Bridge, f.Sand, "10", "0")
	deps := f.withRepos(func(r repositories.Repositories) repositories.Repositories {
		r.Projects = failingProjects{ProjectRepository: r.Projects}
		return r
	})
	svc := NewProjectService(deps)

	if err := svc.Delete(bg, f.Admin, f.Bridge.ID); !errors.Is(err, errStorage) {
		t.Fatalf("Expected the storage error, got %v", err)
	}
	if _, err := f.Repos.BOQ.GetBOQItem(bg, line.ID); err != nil {
		t.Errorf("Expected the BOQ line restored, got %v", err)
	}
	if _, err := f.Repos.Projects.GetProject(bg, f.Bridge.ID); err != nil {
		t.Errorf("Expected the project kept, got %v", err)
	}
}
