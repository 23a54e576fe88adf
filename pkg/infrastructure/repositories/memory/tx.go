package memory

import (
	"context"
	"sync"

	"github.com/vsinha/cims/pkg/domain/repositories"
)

// undoLog collects the inverse of every write made inside a transaction
type undoLog struct {
	mu    sync.Mutex
	steps []func()
}

func (l *undoLog) add(step func()) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.steps = append(l.steps, step)
	l.mu.Unlock()
}

// rollback applies the logged inverses newest first
func (l *undoLog) rollback() {
	l.mu.Lock()
	steps := l.steps
	l.steps = nil
	l.mu.Unlock()

	for i := len(steps) - 1; i >= 0; i-- {
		steps[i]()
	}
}

// store holds the concrete repositories so a transaction can re-bind them
type store struct {
	materials      *MaterialRepository
	suppliers      *SupplierRepository
	warehouses     *WarehouseRepository
	purchaseOrders *PurchaseOrderRepository
	requisitions   *RequisitionRepository
	grns           *GRNRepository
	stock          *StockRepository
	projects       *ProjectRepository
	boq            *BOQRepository
	users          *UserRepository
	activities     *ActivityRepository
	alerts         *AlertRepository
	settings       *SettingsRepository

	undo *undoLog
}

func (s *store) repositories() repositories.Repositories {
	return repositories.Repositories{
		Materials:      s.materials,
		Suppliers:      s.suppliers,
		Warehouses:     s.warehouses,
		PurchaseOrders: s.purchaseOrders,
		Requisitions:   s.requisitions,
		GRNs:           s.grns,
		Stock:          s.stock,
		Projects:       s.projects,
		BOQ:            s.boq,
		Users:          s.users,
		Activities:     s.activities,
		Alerts:         s.alerts,
		Settings:       s.settings,
		Tx:             s,
	}
}

// WithTx runs fn against views of the same rows that log their writes. When
// fn fails or panics the writes are undone in reverse order. Other callers may
// observe writes before the transaction ends; isolation comes from the
// service locks held around it.
func (s *store) WithTx(_ context.Context, fn func(repositories.Repositories) error) (err error) {
	if s.undo != nil {
		return fn(s.repositories())
	}

	undo := &undoLog{}
	scoped := &store{
		materials:      &MaterialRepository{rows: s.materials.rows.within(undo)},
		suppliers:      &SupplierRepository{rows: s.suppliers.rows.within(undo)},
		warehouses:     &WarehouseRepository{rows: s.warehouses.rows.within(undo)},
		purchaseOrders: &PurchaseOrderRepository{rows: s.purchaseOrders.rows.within(undo)},
		requisitions:   &RequisitionRepository{rows: s.requisitions.rows.within(undo)},
		grns:           &GRNRepository{rows: s.grns.rows.within(undo)},
		stock: &StockRepository{
			batches:   s.stock.batches.within(undo),
			movements: s.stock.movements.within(undo),
		},
		projects:   &ProjectRepository{rows: s.projects.rows.within(undo)},
		boq:        &BOQRepository{rows: s.boq.rows.within(undo)},
		users:      &UserRepository{rows: s.users.rows.within(undo)},
		activities: &ActivityRepository{rows: s.activities.rows.within(undo)},
		alerts:     &AlertRepository{rows: s.alerts.rows.within(undo)},
		settings:   s.settings,
		undo:       undo,
	}

	defer func() {
		if p := recover(); p != nil {
			undo.rollback()
			panic(p)
		}
		if err != nil {
			undo.rollback()
		}
	}()
	return fn(scoped.repositories())
}
