package memory

import (
	"time"

	"github.com/vsinha/cims/pkg/domain/repositories"
)

// NewRepositories creates an empty in-memory store for every repository.
// Writes made through Tx are undone when the transaction fails.
func NewRepositories() repositories.Repositories {
	s := &store{
		materials:      NewMaterialRepository(),
		suppliers:      NewSupplierRepository(),
		warehouses:     NewWarehouseRepository(),
		purchaseOrders: NewPurchaseOrderRepository(),
		requisitions:   NewRequisitionRepository(),
		grns:           NewGRNRepository(),
		stock:          NewStockRepository(),
		projects:       NewProjectRepository(),
		boq:            NewBOQRepository(),
		users:          NewUserRepository(),
		activities:     NewActivityRepository(),
		alerts:         NewAlertRepository(),
		settings:       NewSettingsRepository(),
	}
	return s.repositories()
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
