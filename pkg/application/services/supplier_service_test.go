package services

import (
	"testing"

	testhelpers "github.com/vsinha/cims/pkg/application/services/testing"
	"github.com/vsinha/cims/pkg/domain/entities"
	"github.com/vsinha/cims/pkg/domain/repositories"
)

func TestSupplierService_Create(t *testing.T) {
	f := newFixture(t)
	svc := NewSupplierService(f.deps)

	supplier, err := svc.Create(bg, f.Admin, SupplierInput{Name: "Steel & Co", Email: "sales@steel.test"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if supplier.Code != "SUP-2026-0003" {
		t.Errorf("Expected SUP-2026-0003, got %s", supplier.Code)
	}
	if supplier.Status != entities.SupplierActive {
		t.Errorf("Expected ACTIVE, got %s", supplier.Status)
	}

	_, err = svc.Create(bg, f.Admin, SupplierInput{Name: "Bad Mail", Email: "not-an-email"})
	expectKind(t, err, ErrValidation)

	_, err = svc.Create(bg, f.Admin, SupplierInput{Code: "sup-2026-0001", Name: "Clash"})
	expectKind(t, err, ErrConflict)
}

func TestSupplierService_DeleteRefusedWithOrders(t *testing.T) {
	f := newFixture(t)
	svc := NewSupplierService(f.deps)
	orders := NewPurchaseOrderService(f.deps)

	if _, err := orders.Create(bg, f.StoreKeeper, cementOrder(f, "10")); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	err := svc.Delete(bg, f.Admin, f.Supplier.ID)
	expectKind(t, err, ErrConflict)

	if err := svc.Delete(bg, f.Admin, f.Blacklisted.ID); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	_, err = svc.Get(bg, f.Blacklisted.ID)
	expectKind(t, err, repositories.ErrNotFound)
}

func TestSupplierService_DetailMetrics(t *testing.T) {
	h := newGRNHarness(t)
	suppliers := NewSupplierService(h.deps)

	po := h.issuedOrder(t, "100")
	late := testhelpers.Epoch.AddDate(0, 0, -3)
	po.ExpectedDeliveryDate = &late
	h.Repos.PurchaseOrders.UpdatePurchaseOrder(bg, po)

	grn, err := h.grns.Create(bg, h.StoreKeeper, h.receipt(po, "80", "20"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := h.grns.Approve(bg, h.Manager, grn.ID); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	detail, err := suppliers.Get(bg, h.Supplier.ID)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !detail.Metrics.OnTimeDeliveryRate.IsZero() {
		t.Errorf("Expected a late delivery, got on-time rate %s", detail.Metrics.OnTimeDeliveryRate)
	}
	if !detail.Metrics.QualityAcceptanceRate.Equal(dec("0.8")) {
		t.Errorf("Expected acceptance rate 0.8, got %s", detail.Metrics.QualityAcceptanceRate)
	}
	if !detail.Metrics.TotalSpend.Equal(dec("850")) {
		t.Errorf("Expected spend 850, got %s", detail.Metrics.TotalSpend)
	}
	if detail.Metrics.ActiveContracts != 1 || len(detail.ActiveOrders) != 1 {
		t.Errorf("Expected 1 open order, got %d", detail.Metrics.ActiveContracts)
	}
	if !detail.PerformanceScore.Equal(dec("40")) {
		t.Errorf("Expected score 40, got %s", detail.PerformanceScore)
	}
}

func TestWarehouseService(t *testing.T) {
	f := newFixture(t)
	svc := NewWarehouseService(f.deps)
	f.MustAddBatch(f.Cement, f.Central, "C1", "50", "8", testhelpers.Epoch)
	f.MustAddBatch(f.Sand, f.Central, "S1", "150", "35", testhelpers.Epoch)

	view, err := svc.Get(bg, f.Central.ID)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !view.StockedQty.Equal(dec("200")) {
		t.Errorf("Expected 200 units stocked, got %s", view.StockedQty)
	}
	if !view.CurrentUtilization.Equal(dec("20")) {
		t.Errorf("Expected 20%% utilization, got %s", view.CurrentUtilization)
	}

	created, err := svc.Create(bg, f.Admin, WarehouseInput{Name: "Bridge Yard", Location: "East Bank", Capacity: dec("300")})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if created.Code != "WH-2026-0003" {
		t.Errorf("Expected WH-2026-0003, got %s", created.Code)
	}

	all, _ := svc.List(bg)
	if len(all) != 3 {
		t.Errorf("Expected 3 warehouses, got %d", len(all))
	}

	stock, err := svc.Stock(bg, f.Central.ID, repositories.Page{Page: 1, Limit: 1})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if stock.Meta.Total != 2 || len(stock.Data) != 1 {
		t.Errorf("Expected 1 of 2 batches, got %d of %d", len(stock.Data), stock.Meta.Total)
	}
}

func TestSettingsService_Update(t *testing.T) {
	f := newFixture(t)
	svc := NewSettingsService(f.deps)

	cfg, err := svc.Get(bg)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.GRNTolerancePercentage != 5 {
		t.Errorf("Expected default tolerance 5, got %v", cfg.GRNTolerancePercentage)
	}

	_, err = svc.Update(bg, f.Manager, cfg)
	expectKind(t, err, ErrForbidden)

	bad := cfg
	bad.GRNTolerancePercentage = 120
	_, err = svc.Update(bg, f.Admin, bad)
	expectKind(t, err, ErrValidation)

	cfg.BaseCurrency = "eur"
	cfg.GRNTolerancePercentage = 0
	saved, err := svc.Update(bg, f.Admin, cfg)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if saved.BaseCurrency != "EUR" {
		t.Errorf("Expected EUR, got %s", saved.BaseCurrency)
	}

	// with zero tolerance the GRN service refuses any over-receipt
	h := &grnHarness{fixture: f, orders: NewPurchaseOrderService(f.deps)}
	alerts := NewAlertService(f.deps, 0)
	h.grns = NewGRNService(f.deps, NewInventoryService(f.deps), NewSupplierService(f.deps), alerts)
	po := h.issuedOrder(t, "10")
	_, err = h.grns.Create(bg, f.StoreKeeper, h.receipt(po, "10.5", "0"))
	expectKind(t, err, ErrValidation)
}
