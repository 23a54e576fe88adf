package entities

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestPOStatus_Transitions(t *testing.T) {
	tests := []struct {
		from     POStatus
		to       POStatus
		expected bool
	}{
		{PODraft, POPendingApproval, true},
		{PODraft, POApproved, false},
		{POPendingApproval, POApproved, true},
		{POPendingApproval, PORejected, true},
		{POApproved, POIssued, true},
		{POApproved, POCompleted, false},
		{PORejected, PODraft, true},
		{POIssued, POCompleted, true},
		{POIssued, POCancelled, false},
		{POCompleted, PODraft, false},
		{POCancelled, PODraft, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.expected {
				t.Errorf("CanTransitionTo(%s -> %s) = %t, want %t", tt.from, tt.to, got, tt.expected)
			}
		})
	}
}

func TestPurchaseOrder_TransitionRecordsHistory(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	approver := &User{Name: "Ada", Role: RoleExecutive}
	po := &PurchaseOrder{PONumber: "PO-2026-0001", Status: POPendingApproval}

	if err := po.Transition(POApproved, approver, "within budget", at); err != nil {
		t.Fatalf("Expected approval to succeed: %v", err)
	}
	if po.Status != POApproved {
		t.Errorf("Expected status %s, got %s", POApproved, po.Status)
	}
	if len(po.ApprovalHistory) != 1 {
		t.Fatalf("Expected 1 history entry, got %d", len(po.ApprovalHistory))
	}
	entry := po.ApprovalHistory[0]
	if entry.Action != POActionApproved || entry.PerformedBy != "Ada" || entry.Role != RoleExecutive {
		t.Errorf("Unexpected history entry %+v", entry)
	}

	err := po.Transition(PODraft, approver, "", at)
	if err == nil || !strings.Contains(err.Error(), "from APPROVED to DRAFT") {
		t.Errorf("Expected invalid transition error, got %v", err)
	}
}

func TestPurchaseOrder_Validation(t *testing.T) {
	line := PurchaseOrderItem{MaterialID: "m1", Quantity: decimal.NewFromInt(10), UnitPrice: decimal.NewFromInt(5)}

	testCases := []struct {
		name        string
		po          PurchaseOrder
		expectError string
	}{
		{"valid", PurchaseOrder{SupplierID: "s1", Items: []PurchaseOrderItem{line}}, ""},
		{"no supplier", PurchaseOrder{Items: []PurchaseOrderItem{line}}, "supplier cannot be empty"},
		{"no items", PurchaseOrder{SupplierID: "s1"}, "at least one item"},
		{
			"zero quantity",
			PurchaseOrder{SupplierID: "s1", Items: []PurchaseOrderItem{{MaterialID: "m1", UnitPrice: decimal.NewFromInt(1)}}},
			"item 1: quantity must be positive, got 0",
		},
		{
			"negative price",
			PurchaseOrder{SupplierID: "s1", Items: []PurchaseOrderItem{{MaterialID: "m1", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(-1)}}},
			"item 1: unit price must be positive, got -1",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.po.Validate()
			if tc.expectError == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.expectError) {
				t.Errorf("Expected error containing %q, got %v", tc.expectError, err)
			}
		})
	}
}

func TestPurchaseOrder_TotalsAndReceipt(t *testing.T) {
	po := &PurchaseOrder{
		Status: POIssued,
		Items: []PurchaseOrderItem{
			{ID: "a", Quantity: decimal.NewFromInt(10), UnitPrice: decimal.RequireFromString("12.50")},
			{ID: "b", Quantity: decimal.NewFromInt(4), UnitPrice: decimal.NewFromInt(100)},
		},
	}
	po.RecalculateTotal()
	if !po.TotalAmount.Equal(decimal.NewFromInt(525)) {
		t.Errorf("Expected total 525, got %s", po.TotalAmount)
	}

	if po.FullyReceived() {
		t.Error("Expected order not to be fully received")
	}
	a, _ := po.Item("a")
	a.ReceivedQty = decimal.NewFromInt(10)
	b, _ := po.Item("b")
	b.ReceivedQty = decimal.NewFromInt(5)
	if !po.FullyReceived() {
		t.Error("Expected order to be fully received")
	}
	if !b.Outstanding().IsZero() {
		t.Errorf("Expected no outstanding quantity on over-received line, got %s", b.Outstanding())
	}

	due := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	po.ExpectedDeliveryDate = &due
	if !po.IsOverdue(due.Add(24 * time.Hour)) {
		t.Error("Expected issued order past delivery date to be overdue")
	}
}
