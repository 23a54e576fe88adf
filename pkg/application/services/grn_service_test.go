package services

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/cims/pkg/domain/entities"
	"github.com/vsinha/cims/pkg/domain/repositories"
	"github.com/vsinha/cims/pkg/infrastructure/events"
)

type grnHarness struct {
	*fixture
	orders *PurchaseOrderService
	grns   *GRNService
	alerts *AlertService
}

func newGRNHarness(t *testing.T) *grnHarness {
	t.Helper()
	f := newFixture(t)
	alerts := NewAlertService(f.deps, DefaultExpiryWindow)
	return &grnHarness{
		fixture: f,
		orders:  NewPurchaseOrderService(f.deps),
		grns:    NewGRNService(f.deps, NewInventoryService(f.deps), NewSupplierService(f.deps), alerts),
		alerts:  alerts,
	}
}

// issuedOrder walks a cement order all the way to ISSUED
func (h *grnHarness) issuedOrder(t *testing.T, qty string) *entities.PurchaseOrder {
	t.Helper()
	po, err := h.orders.Create(bg, h.StoreKeeper, cementOrder(h.fixture, qty))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := h.orders.Submit(bg, h.StoreKeeper, po.ID); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if _, err := h.orders.Approve(bg, h.Manager, po.ID, true, ""); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	po, err = h.orders.Issue(bg, h.Manager, po.ID)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	return po
}

func (h *grnHarness) receipt(po *entities.PurchaseOrder, accepted, rejected string) GRNInput {
	a, r := decimal.RequireFromString(accepted), decimal.RequireFromString(rejected)
	return GRNInput{
		PurchaseOrderID: po.ID,
		WarehouseID:     h.Central.ID,
		Items: []GRNItemInput{
			{POItemID: po.Items[0].ID, Quantity: a.Add(r), AcceptedQty: a, RejectedQty: r},
		},
	}
}

func TestGRNService_CreateRequiresIssuedOrder(t *testing.T) {
	h := newGRNHarness(t)

	po, _ := h.orders.Create(bg, h.StoreKeeper, cementOrder(h.fixture, "100"))
	h.orders.Submit(bg, h.StoreKeeper, po.ID)
	h.orders.Approve(bg, h.Manager, po.ID, true, "")

	_, err := h.grns.Create(bg, h.StoreKeeper, h.receipt(po, "10", "0"))
	expectKind(t, err, ErrInvalidTransition)

	_, err = h.grns.Create(bg, h.StoreKeeper, GRNInput{PurchaseOrderID: "missing", WarehouseID: h.Central.ID})
	expectKind(t, err, repositories.ErrNotFound)
}

func TestGRNService_CreateValidatesLines(t *testing.T) {
	h := newGRNHarness(t)
	po := h.issuedOrder(t, "100")

	tests := []struct {
		name  string
		input GRNInput
	}{
		{"unknown line", GRNInput{PurchaseOrderID: po.ID, WarehouseID: h.Central.ID, Items: []GRNItemInput{
			{POItemID: "nope", Quantity: decimal.NewFromInt(1)},
		}}},
		{"accepted plus rejected mismatch", GRNInput{PurchaseOrderID: po.ID, WarehouseID: h.Central.ID, Items: []GRNItemInput{
			{POItemID: po.Items[0].ID, Quantity: decimal.NewFromInt(10), AcceptedQty: decimal.NewFromInt(4), RejectedQty: decimal.NewFromInt(4)},
		}}},
		{"no items", GRNInput{PurchaseOrderID: po.ID, WarehouseID: h.Central.ID}},
		{"above tolerance", h.receipt(po, "106", "0")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.grns.Create(bg, h.StoreKeeper, tt.input)
			expectKind(t, err, ErrValidation)
		})
	}

	grn, err := h.grns.Create(bg, h.StoreKeeper, GRNInput{PurchaseOrderID: po.ID, WarehouseID: h.Central.ID, Items: []GRNItemInput{
		{POItemID: po.Items[0].ID, Quantity: decimal.NewFromInt(30)},
	}})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !grn.Items[0].AcceptedQty.Equal(decimal.NewFromInt(30)) {
		t.Errorf("Expected the whole quantity accepted by default, got %s", grn.Items[0].AcceptedQty)
	}
	if grn.GRNNumber != "GRN-2026-0001" {
		t.Errorf("Expected GRN-2026-0001, got %s", grn.GRNNumber)
	}
}

func TestGRNService_ApproveBooksStockAndCompletesOrder(t *testing.T) {
	h := newGRNHarness(t)
	po := h.issuedOrder(t, "100")

	first, err := h.grns.Create(bg, h.StoreKeeper, h.receipt(po, "55", "5"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := h.grns.Inspect(bg, h.StoreKeeper, first.ID, "5 torn bags"); err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	approved, err := h.grns.Approve(bg, h.Manager, first.ID)
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if approved.Status != entities.GRNApproved {
		t.Errorf("Expected APPROVED, got %s", approved.Status)
	}

	batches, _, _ := h.Repos.Stock.ListBatches(bg, repositories.StockFilter{MaterialID: h.Cement.ID})
	if len(batches) != 1 {
		t.Fatalf("Expected 1 batch, got %d", len(batches))
	}
	if batches[0].BatchNumber != "GRN-2026-0001-1" {
		t.Errorf("Expected generated batch number GRN-2026-0001-1, got %s", batches[0].BatchNumber)
	}
	if !batches[0].UnitCost.Equal(decimal.RequireFromString("8.5")) {
		t.Errorf("Expected unit cost from the order line, got %s", batches[0].UnitCost)
	}

	order, _ := h.orders.Get(bg, po.ID)
	if order.Status != entities.POIssued {
		t.Errorf("Expected order to stay ISSUED after a partial receipt, got %s", order.Status)
	}
	if !order.Items[0].ReceivedQty.Equal(decimal.NewFromInt(55)) {
		t.Errorf("Expected 55 received, got %s", order.Items[0].ReceivedQty)
	}

	alerts, _ := h.alerts.List(bg, repositories.AlertFilter{Type: entities.AlertQualityIssue})
	if len(alerts) != 1 {
		t.Errorf("Expected 1 quality alert, got %d", len(alerts))
	}

	supplier, _ := h.Repos.Suppliers.GetSupplier(bg, h.Supplier.ID)
	if !supplier.PerformanceScore.GreaterThan(decimal.NewFromInt(90)) {
		t.Errorf("Expected score above 90 after an on-time delivery, got %s", supplier.PerformanceScore)
	}

	// 55 received + 50 = 105, exactly the 5% tolerance
	second, err := h.grns.Create(bg, h.StoreKeeper, h.receipt(po, "50", "0"))
	if err != nil {
		t.Fatalf("Create within tolerance failed: %v", err)
	}
	// pending receipts count against the tolerance
	_, err = h.grns.Create(bg, h.StoreKeeper, h.receipt(po, "1", "0"))
	expectKind(t, err, ErrValidation)

	if _, err := h.grns.Approve(bg, h.Manager, second.ID); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	order, _ = h.orders.Get(bg, po.ID)
	if order.Status != entities.POCompleted {
		t.Errorf("Expected COMPLETED after full receipt, got %s", order.Status)
	}

	balance, _ := h.Repos.Stock.Balance(bg, h.Cement.ID, "")
	if !balance.Equal(decimal.NewFromInt(105)) {
		t.Errorf("Expected 105 bags in stock, got %s", balance)
	}
	if !h.hasEvent(t, events.PurchaseOrderCompletedEvent) {
		t.Error("Expected purchase_order.completed event")
	}
}

func TestGRNService_ConcurrentApprovalBooksOnce(t *testing.T) {
	h := newGRNHarness(t)
	po := h.issuedOrder(t, "100")
	grn, err := h.grns.Create(bg, h.StoreKeeper, h.receipt(po, "40", "0"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.grns.Approve(bg, h.Manager, grn.ID); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("Expected exactly one approval to succeed, got %d", successes)
	}
	balance, _ := h.Repos.Stock.Balance(bg, h.Cement.ID, "")
	if !balance.Equal(decimal.NewFromInt(40)) {
		t.Errorf("Expected 40 in stock, got %s", balance)
	}
}

func TestGRNService_Reject(t *testing.T) {
	h := newGRNHarness(t)
	po := h.issuedOrder(t, "100")
	grn, _ := h.grns.Create(bg, h.StoreKeeper, h.receipt(po, "40", "0"))

	_, err := h.grns.Reject(bg, h.Manager, grn.ID, "")
	expectKind(t, err, ErrValidation)

	rejected, err := h.grns.Reject(bg, h.Manager, grn.ID, "wrong grade")
	if err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	if rejected.Status != entities.GRNRejected {
		t.Errorf("Expected REJECTED, got %s", rejected.Status)
	}

	_, err = h.grns.Approve(bg, h.Manager, grn.ID)
	expectKind(t, err, ErrInvalidTransition)

	balance, _ := h.Repos.Stock.Balance(bg, h.Cement.ID, "")
	if !balance.IsZero() {
		t.Errorf("Expected no stock after rejection, got %s", balance)
	}
}

func TestGRNService_ApprovalsOfOneOrderKeepEveryReceipt(t *testing.T) {
	h := newGRNHarness(t)
	po := h.issuedOrder(t, "100")
	var notes []*entities.GoodsReceivedNote
	for i := 0; i < 2; i++ {
		grn, err := h.grns.Create(bg, h.StoreKeeper, h.receipt(po, "50", "0"))
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		notes = append(notes, grn)
	}

	deps := h.withRepos(func(r repositories.Repositories) repositories.Repositories {
		r.PurchaseOrders = slowOrders{PurchaseOrderRepository: r.PurchaseOrders, delay: 5 * time.Millisecond}
		return r
	})
	grns := NewGRNService(deps, NewInventoryService(deps), NewSupplierService(deps), NewAlertService(deps, DefaultExpiryWindow))

	var wg sync.WaitGroup
	errs := make(chan error, len(notes))
	for _, grn := range notes {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := grns.Approve(bg, h.Manager, id); err != nil {
				errs <- err
			}
		}(grn.ID)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Unexpected approval error: %v", err)
	}

	order, _ := h.orders.Get(bg, po.ID)
	if !order.Items[0].ReceivedQty.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected 100 received, got %s", order.Items[0].ReceivedQty)
	}
	if order.Status != entities.POCompleted {
		t.Errorf("Expected COMPLETED, got %s", order.Status)
	}
	balance, _ := h.Repos.Stock.Balance(bg, h.Cement.ID, "")
	if !balance.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected 100 in stock, got %s", balance)
	}
}

func TestGRNService_ApproveFailureBooksNothing(t *testing.T) {
	h := newGRNHarness(t)
	po := h.issuedOrder(t, "100")
	grn, err := h.grns.Create(bg, h.StoreKeeper, h.receipt(po, "60", "0"))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	deps := h.withRepos(func(r repositories.Repositories) repositories.Repositories {
		r.GRNs = failingGRNs{GRNRepository: r.GRNs}
		return r
	})
	grns := NewGRNService(deps, NewInventoryService(deps), NewSupplierService(deps), NewAlertService(deps, DefaultExpiryWindow))

	if _, err := grns.Approve(bg, h.Manager, grn.ID); !errors.Is(err, errStorage) {
		t.Fatalf("Expected the storage error, got %v", err)
	}

	balance, _ := h.Repos.Stock.Balance(bg, h.Cement.ID, "")
	if !balance.IsZero() {
		t.Errorf("Expected no stock booked, got %s", balance)
	}
	movements, _ := h.Repos.Stock.ListMovements(bg, repositories.MovementFilter{MaterialID: h.Cement.ID})
	if len(movements) != 0 {
		t.Errorf("Expected no movements, got %d", len(movements))
	}
	order, _ := h.orders.Get(bg, po.ID)
	if !order.Items[0].ReceivedQty.IsZero() || order.Status != entities.POIssued {
		t.Errorf("Expected the order untouched, got %s received in %s", order.Items[0].ReceivedQty, order.Status)
	}
	stored, _ := h.grns.Get(bg, grn.ID)
	if stored.Status != entities.GRNPending {
		t.Errorf("Expected GRN to stay PENDING, got %s", stored.Status)
	}

	// the same GRN still approves once storage recovers
	if _, err := h.grns.Approve(bg, h.Manager, grn.ID); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	balance, _ = h.Repos.Stock.Balance(bg, h.Cement.ID, "")
	if !balance.Equal(decimal.NewFromInt(60)) {
		t.Errorf("Expected 60 in stock, got %s", balance)
	}
}
