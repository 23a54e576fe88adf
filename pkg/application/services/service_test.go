package services

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	testhelpers "github.com/vsinha/cims/pkg/application/services/testing"
	"github.com/vsinha/cims/pkg/infrastructure/events"
	"github.com/vsinha/cims/pkg/infrastructure/lock"
)

type fixture struct {
	*testhelpers.Site
	deps    Dependencies
	journal *events.Journal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	site := testhelpers.BuildConstructionSite()
	journal := events.NewJournal(zap.NewNop())
	deps := Dependencies{
		Repos:  site.Repos,
		Locker: lock.NewLocalLocker(),
		Events: events.NewBus(journal, nil, zap.NewNop()),
		Now:    site.Clock.Now,
		NewID:  site.IDs.Next,
	}.withDefaults()
	return &fixture{Site: site, deps: deps, journal: journal}
}

// eventTypes returns the types of every event published so far, in order
func (f *fixture) eventTypes(t *testing.T) []string {
	t.Helper()
	f.journal.Wait()
	all := f.journal.Since(0)
	types := make([]string, 0, len(all))
	for _, e := range all {
		types = append(types, e.Type())
	}
	return types
}

func (f *fixture) hasEvent(t *testing.T, eventType string) bool {
	t.Helper()
	for _, et := range f.eventTypes(t) {
		if et == eventType {
			return true
		}
	}
	return false
}

func expectKind(t *testing.T, err, kind error) {
	t.Helper()
	if err == nil {
		t.Fatalf("Expected %v error, got nil", kind)
	}
	if !errors.Is(err, kind) {
		t.Fatalf("Expected %v error, got %v", kind, err)
	}
}

var bg = context.Background()

func TestDependencies_DefaultLocker(t *testing.T) {
	f := newFixture(t)
	deps := Dependencies{Repos: f.Repos, Now: f.Clock.Now, NewID: f.IDs.Next}.withDefaults()
	if deps.Locker == nil {
		t.Fatal("Expected a local locker by default")
	}

	svc := NewInventoryService(Dependencies{Repos: f.Repos, Now: f.Clock.Now, NewID: f.IDs.Next})
	result, err := svc.Adjust(bg, f.StoreKeeper, AdjustInput{
		MaterialID:  f.Sand.ID,
		WarehouseID: f.Central.ID,
		Type:        AdjustIncrease,
		Quantity:    dec("3"),
		Reason:      "count",
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !result.Balance.Equal(dec("3")) {
		t.Errorf("Expected balance 3, got %s", result.Balance)
	}
}

func TestDependencies_ReleaseFailureKeepsCommittedResult(t *testing.T) {
	f := newFixture(t)
	core, logs := observer.New(zap.WarnLevel)
	deps := f.deps
	deps.Locker = newLeakyLocker()
	deps.Logger = zap.New(core)
	svc := NewInventoryService(deps)

	result, err := svc.Adjust(bg, f.StoreKeeper, AdjustInput{
		MaterialID:  f.Sand.ID,
		WarehouseID: f.Central.ID,
		Type:        AdjustIncrease,
		Quantity:    dec("7"),
		Reason:      "count",
	})
	if err != nil {
		t.Fatalf("Expected the adjustment to succeed, got %v", err)
	}
	if !result.Balance.Equal(dec("7")) {
		t.Errorf("Expected balance 7, got %s", result.Balance)
	}
	if logs.FilterMessage("failed to release lock").Len() != 1 {
		t.Errorf("Expected one logged release failure, got %d", logs.FilterMessage("failed to release lock").Len())
	}
}
