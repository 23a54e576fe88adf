package testing

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/cims/pkg/domain/entities"
	"github.com/vsinha/cims/pkg/domain/repositories"
	"github.com/vsinha/cims/pkg/infrastructure/repositories/memory"
)

// Epoch is the fixed "now" of every fixture
var Epoch = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

// Clock is a manually advanced clock
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a clock stopped at t
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

// Now returns the current fixture time
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// IDs hands out predictable identifiers
type IDs struct {
	n atomic.Int64
}

// Next returns the next identifier
func (g *IDs) Next() string {
	return fmt.Sprintf("id-%04d", g.n.Add(1))
}

// Site is a small construction company: two warehouses, three materials, a
// trusted and a blacklisted supplier, an active and a planned project
type Site struct {
	Repos repositories.Repositories
	Clock *Clock
	IDs   *IDs

	Admin       *entities.User
	Manager     *entities.User
	StoreKeeper *entities.User
	Worker      *entities.User

	Cement *entities.Material
	Rebar  *entities.Material
	Sand   *entities.Material

	Supplier    *entities.Supplier
	Blacklisted *entities.Supplier

	Central   *entities.Warehouse
	SiteStore *entities.Warehouse

	Tower  *entities.Project
	Bridge *entities.Project
}

// BuildConstructionSite creates the fixture on fresh in-memory repositories
func BuildConstructionSite() *Site {
	ctx := context.Background()
	s := &Site{
		Repos: memory.NewRepositories(),
		Clock: NewClock(Epoch),
		IDs:   &IDs{},
	}

	s.Admin = mustCreateUser(ctx, s, "Ada Admin", "admin@cims.test", entities.RoleAdmin)
	s.Manager = mustCreateUser(ctx, s, "Pat Manager", "pm@cims.test", entities.RoleProjectManager)
	s.StoreKeeper = mustCreateUser(ctx, s, "Sam Store", "store@cims.test", entities.RoleStoreKeeper)
	s.Worker = mustCreateUser(ctx, s, "Wes Worker", "worker@cims.test", entities.RoleSiteWorker)

	s.Cement = mustCreateMaterial(ctx, s, "CEM-2026-0001", "Portland Cement 50kg", entities.CategoryCement, "bag", "8.50", "100")
	s.Rebar = mustCreateMaterial(ctx, s, "STL-2026-0001", "Rebar 12mm", entities.CategorySteel, "ton", "720", "2")
	s.Sand = mustCreateMaterial(ctx, s, "AGG-2026-0001", "River Sand", entities.CategoryAggregate, "m3", "35", "0")

	s.Supplier = mustCreateSupplier(ctx, s, "SUP-2026-0001", "BuildMart", entities.SupplierActive, "80")
	s.Blacklisted = mustCreateSupplier(ctx, s, "SUP-2026-0002", "ShadyCo", entities.SupplierBlacklisted, "10")

	s.Central = mustCreateWarehouse(ctx, s, "WH-2026-0001", "Central Store", "1000")
	s.SiteStore = mustCreateWarehouse(ctx, s, "WH-2026-0002", "Tower Site Store", "200")

	s.Tower = mustCreateProject(ctx, s, "PRJ-2026-0001", "Harbour Tower", entities.ProjectActive, Epoch.AddDate(0, 0, 10), "50000")
	s.Bridge = mustCreateProject(ctx, s, "PRJ-2026-0002", "River Bridge", entities.ProjectPlanning, Epoch.AddDate(0, 2, 0), "20000")
	return s
}

// MustAddBatch stocks qty of a material in a warehouse as if received at received
func (s *Site) MustAddBatch(m *entities.Material, w *entities.Warehouse, batchNumber, qty, unitCost string, received time.Time) *entities.StockBatch {
	batch, err := entities.NewStockBatch(m.ID, w.ID, batchNumber, decimal.RequireFromString(qty), decimal.RequireFromString(unitCost), received, nil)
	if err != nil {
		panic(err)
	}
	batch.ID = s.IDs.Next()
	if err := s.Repos.Stock.CreateBatch(context.Background(), batch); err != nil {
		panic(err)
	}
	return batch
}

// MustAddBOQ plans qty of a material for a project
func (s *Site) MustAddBOQ(p *entities.Project, m *entities.Material, planned, consumed string) *entities.BOQItem {
	item, err := entities.NewBOQItem(p.ID, m.ID, m.Unit, decimal.RequireFromString(planned), m.UnitPrice)
	if err != nil {
		panic(err)
	}
	item.ID = s.IDs.Next()
	item.Category = string(m.Category)
	item.ConsumedQty = decimal.RequireFromString(consumed)
	item.CreatedAt = s.Clock.Now()
	item.UpdatedAt = item.CreatedAt
	if err := s.Repos.BOQ.CreateBOQItem(context.Background(), item); err != nil {
		panic(err)
	}
	return item
}

func mustCreateUser(ctx context.Context, s *Site, name, email string, role entities.Role) *entities.User {
	u := &entities.User{
		ID:        s.IDs.Next(),
		Name:      name,
		Email:     email,
		Role:      role,
		IsActive:  true,
		CreatedAt: Epoch,
		UpdatedAt: Epoch,
	}
	if err := s.Repos.Users.CreateUser(ctx, u); err != nil {
		panic(err)
	}
	return u
}

func mustCreateMaterial(ctx context.Context, s *Site, code, name string, category entities.MaterialCategory, unit, price, reorder string) *entities.Material {
	m := &entities.Material{
		ID:           s.IDs.Next(),
		Code:         code,
		Name:         name,
		Category:     category,
		Unit:         unit,
		UnitPrice:    decimal.RequireFromString(price),
		ReorderPoint: decimal.RequireFromString(reorder),
		Status:       entities.MaterialActive,
		Version:      1,
		CreatedAt:    Epoch,
		UpdatedAt:    Epoch,
	}
	if err := m.Validate(); err != nil {
		panic(err)
	}
	if err := s.Repos.Materials.CreateMaterial(ctx, m); err != nil {
		panic(err)
	}
	return m
}

func mustCreateSupplier(ctx context.Context, s *Site, code, name string, status entities.SupplierStatus, score string) *entities.Supplier {
	sup := &entities.Supplier{
		ID:               s.IDs.Next(),
		Code:             code,
		Name:             name,
		Email:            "sales@" + code + ".test",
		Status:           status,
		PerformanceScore: decimal.RequireFromString(score),
		CreatedAt:        Epoch,
		UpdatedAt:        Epoch,
	}
	if err := s.Repos.Suppliers.CreateSupplier(ctx, sup); err != nil {
		panic(err)
	}
	return sup
}

func mustCreateWarehouse(ctx context.Context, s *Site, code, name, capacity string) *entities.Warehouse {
	w := &entities.Warehouse{
		ID:        s.IDs.Next(),
		Code:      code,
		Name:      name,
		Location:  "Harbour District",
		Capacity:  decimal.RequireFromString(capacity),
		IsActive:  true,
		CreatedAt: Epoch,
		UpdatedAt: Epoch,
	}
	if err := s.Repos.Warehouses.CreateWarehouse(ctx, w); err != nil {
		panic(err)
	}
	return w
}

func mustCreateProject(ctx context.Context, s *Site, code, name string, status entities.ProjectStatus, start time.Time, budget string) *entities.Project {
	p := &entities.Project{
		ID:        s.IDs.Next(),
		Code:      code,
		Name:      name,
		Location:  "Harbour District",
		Status:    status,
		StartDate: start,
		Budget:    decimal.RequireFromString(budget),
		Spent:     decimal.Zero,
		CreatedAt: Epoch,
		UpdatedAt: Epoch,
	}
	if err := p.Validate(); err != nil {
		panic(err)
	}
	if err := s.Repos.Projects.CreateProject(ctx, p); err != nil {
		panic(err)
	}
	return p
}
