package repositories

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
	// ErrStaleVersion is returned when an update carries a version that is no
	// longer the successor of the stored one
	ErrStaleVersion = errors.New("record was modified concurrently")
)

// Page selects a window of a listing; Limit 0 returns everything
type Page struct {
	Page  int
	Limit int
}

// Offset returns the number of rows to skip
func (p Page) Offset() int {
	if p.Limit <= 0 || p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// Window applies the page to a slice length and returns the [start,end) bounds
func (p Page) Window(total int) (int, int) {
	if p.Limit <= 0 {
		return 0, total
	}
	start := p.Offset()
	if start > total {
		start = total
	}
	end := start + p.Limit
	if end > total {
		end = total
	}
	return start, end
}

// Sort orders a listing by a whitelisted field
type Sort struct {
	Field string
	Desc  bool
}

// DateRange bounds a listing by creation time; zero values are open
type DateRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t lies within the range
func (r DateRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// CodeLister lists document codes that start with a prefix
type CodeLister interface {
	ListCodesWithPrefix(ctx context.Context, prefix string) ([]string, error)
}

// Transactor runs fn against repositories whose writes commit together or
// not at all. Calling WithTx on the repositories handed to fn joins the
// running transaction.
type Transactor interface {
	WithTx(ctx context.Context, fn func(Repositories) error) error
}

// Repositories groups every repository a store provides
type Repositories struct {
	Materials      MaterialRepository
	Suppliers      SupplierRepository
	Warehouses     WarehouseRepository
	PurchaseOrders PurchaseOrderRepository
	Requisitions   RequisitionRepository
	GRNs           GRNRepository
	Stock          StockRepository
	Projects       ProjectRepository
	BOQ            BOQRepository
	Users          UserRepository
	Activities     ActivityRepository
	Alerts         AlertRepository
	Settings       SettingsRepository

	// Tx is nil for stores without transactions; writes then apply one by one
	Tx Transactor
}
