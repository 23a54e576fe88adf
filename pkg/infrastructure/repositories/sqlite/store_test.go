package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vsinha/cims/pkg/domain/entities"
	"github.com/vsinha/cims/pkg/domain/repositories"
	"github.com/vsinha/cims/pkg/domain/services"
	"github.com/vsinha/cims/pkg/infrastructure/lock"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testMaterial(id, code string) *entities.Material {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return &entities.Material{
		ID:             id,
		Code:           code,
		Name:           "Portland cement " + code,
		Category:       entities.CategoryCement,
		Unit:           "bag",
		UnitPrice:      decimal.RequireFromString("8.75"),
		MinStock:       decimal.NewFromInt(100),
		MaxStock:       decimal.NewFromInt(2000),
		ReorderPoint:   decimal.NewFromInt(250),
		Specifications: map[string]string{"grade": "53"},
		Status:         entities.MaterialActive,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestOpen_FileDatabaseReappliesNothing(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cims.db")

	store, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, store.Repositories().Materials.CreateMaterial(ctx, testMaterial("m1", "CEM-2026-0001")))
	require.NoError(t, store.Close())

	reopened, err := Open(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Repositories().Materials.GetMaterialByCode(ctx, "CEM-2026-0001")
	require.NoError(t, err)
	assert.Equal(t, "m1", got.ID)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(context.Background(), "  ")
	assert.Error(t, err)
}

func TestMaterialRepo_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := openTestStore(t).Repositories().Materials

	m := testMaterial("m1", "CEM-2026-0001")
	require.NoError(t, repo.CreateMaterial(ctx, m))

	got, err := repo.GetMaterial(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, m.Code, got.Code)
	assert.True(t, m.UnitPrice.Equal(got.UnitPrice))
	assert.Equal(t, "53", got.Specifications["grade"])
	assert.True(t, m.CreatedAt.Equal(got.CreatedAt))

	got.Name = "OPC 53"
	got.Version++
	require.NoError(t, repo.UpdateMaterial(ctx, got))

	again, err := repo.GetMaterial(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "OPC 53", again.Name)
	assert.Equal(t, 2, again.Version)

	_, err = repo.GetMaterial(ctx, "missing")
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	err = repo.UpdateMaterial(ctx, testMaterial("missing", "CEM-2026-0099"))
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestMaterialRepo_DuplicateCode(t *testing.T) {
	ctx := context.Background()
	repo := openTestStore(t).Repositories().Materials

	require.NoError(t, repo.CreateMaterial(ctx, testMaterial("m1", "CEM-2026-0001")))
	err := repo.CreateMaterial(ctx, testMaterial("m2", "CEM-2026-0001"))
	assert.ErrorIs(t, err, repositories.ErrAlreadyExists)
}

func TestMaterialRepo_ListFilterSortPage(t *testing.T) {
	ctx := context.Background()
	repo := openTestStore(t).Repositories().Materials

	for i, price := range []string{"30", "5", "12.5"} {
		m := testMaterial(fmt.Sprintf("m%d", i+1), fmt.Sprintf("CEM-2026-%04d", i+1))
		m.UnitPrice = decimal.RequireFromString(price)
		require.NoError(t, repo.CreateMaterial(ctx, m))
	}
	steel := testMaterial("s1", "STL-2026-0001")
	steel.Category = entities.CategorySteel
	steel.Name = "Rebar 12mm"
	require.NoError(t, repo.CreateMaterial(ctx, steel))

	tests := []struct {
		name      string
		filter    repositories.MaterialFilter
		wantTotal int
		wantIDs   []string
	}{
		{
			name:      "category",
			filter:    repositories.MaterialFilter{Category: entities.CategorySteel},
			wantTotal: 1,
			wantIDs:   []string{"s1"},
		},
		{
			name:      "search by name",
			filter:    repositories.MaterialFilter{Search: "rebar"},
			wantTotal: 1,
			wantIDs:   []string{"s1"},
		},
		{
			name: "numeric price sort",
			filter: repositories.MaterialFilter{
				Category: entities.CategoryCement,
				Sort:     repositories.Sort{Field: "unitPrice"},
			},
			wantTotal: 3,
			wantIDs:   []string{"m2", "m3", "m1"},
		},
		{
			name: "second page",
			filter: repositories.MaterialFilter{
				Sort: repositories.Sort{Field: "code", Desc: true},
				Page: repositories.Page{Page: 2, Limit: 3},
			},
			wantTotal: 4,
			wantIDs:   []string{"m1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, total, err := repo.ListMaterials(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, total)
			ids := make([]string, len(got))
			for i, m := range got {
				ids[i] = m.ID
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestPurchaseOrderRepo_RoundTripAndStatusFilter(t *testing.T) {
	ctx := context.Background()
	repo := openTestStore(t).Repositories().PurchaseOrders
	now := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	due := now.AddDate(0, 0, 14)

	po := &entities.PurchaseOrder{
		ID:         "po1",
		PONumber:   "PO-2026-0001",
		SupplierID: "sup1",
		Status:     entities.PODraft,
		Items: []entities.PurchaseOrderItem{
			{ID: "l1", MaterialID: "m1", Quantity: decimal.NewFromInt(40), UnitPrice: decimal.RequireFromString("8.75")},
		},
		TotalAmount:          decimal.NewFromInt(350),
		ExpectedDeliveryDate: &due,
		ApprovalHistory: []entities.POAuditEntry{
			{Action: "CREATED", PerformedBy: "u1", Timestamp: now},
		},
		CreatedBy: "u1",
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, repo.CreatePurchaseOrder(ctx, po))

	second := *po
	second.ID = "po2"
	second.PONumber = "PO-2026-0002"
	second.Status = entities.POApproved
	second.ExpectedDeliveryDate = nil
	require.NoError(t, repo.CreatePurchaseOrder(ctx, &second))

	got, err := repo.GetPurchaseOrder(ctx, "po1")
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.True(t, got.Items[0].Quantity.Equal(decimal.NewFromInt(40)))
	require.NotNil(t, got.ExpectedDeliveryDate)
	assert.True(t, due.Equal(*got.ExpectedDeliveryDate))
	require.Len(t, got.ApprovalHistory, 1)

	list, total, err := repo.ListPurchaseOrders(ctx, repositories.PurchaseOrderFilter{
		Statuses: []entities.POStatus{entities.POApproved, entities.POIssued},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "po2", list[0].ID)
	assert.Nil(t, list[0].ExpectedDeliveryDate)

	codes, err := repo.ListCodesWithPrefix(ctx, "PO-2026-")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"PO-2026-0001", "PO-2026-0002"}, codes)

	require.NoError(t, repo.DeletePurchaseOrder(ctx, "po1"))
	assert.ErrorIs(t, repo.DeletePurchaseOrder(ctx, "po1"), repositories.ErrNotFound)
}

func TestStockRepo_FIFOAndBalance(t *testing.T) {
	ctx := context.Background()
	repo := openTestStore(t).Repositories().Stock
	base := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	batches := []*entities.StockBatch{
		{ID: "b2", MaterialID: "m1", WarehouseID: "w1", BatchNumber: "B-002", Quantity: decimal.RequireFromString("0.1"), ReceivedDate: base.AddDate(0, 0, 2), Status: entities.BatchAvailable},
		{ID: "b1", MaterialID: "m1", WarehouseID: "w1", BatchNumber: "B-001", Quantity: decimal.RequireFromString("0.2"), ReceivedDate: base, Status: entities.BatchAvailable},
		{ID: "b3", MaterialID: "m1", WarehouseID: "w2", BatchNumber: "B-003", Quantity: decimal.NewFromInt(5), ReceivedDate: base.AddDate(0, 0, 1), Status: entities.BatchAvailable},
		{ID: "b4", MaterialID: "m1", WarehouseID: "w1", BatchNumber: "B-004", Quantity: decimal.NewFromInt(9), ReceivedDate: base, Status: entities.BatchQuarantine},
	}
	for _, b := range batches {
		require.NoError(t, repo.CreateBatch(ctx, b))
	}

	list, total, err := repo.ListBatches(ctx, repositories.StockFilter{MaterialID: "m1", OnlyAvailable: true})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, "b1", list[0].ID)
	assert.Equal(t, "b3", list[1].ID)
	assert.Equal(t, "b2", list[2].ID)

	w1, err := repo.Balance(ctx, "m1", "w1")
	require.NoError(t, err)
	assert.True(t, w1.Equal(decimal.RequireFromString("0.3")), "got %s", w1)

	all, err := repo.Balance(ctx, "m1", "")
	require.NoError(t, err)
	assert.True(t, all.Equal(decimal.RequireFromString("5.3")), "got %s", all)

	balances, err := repo.Balances(ctx)
	require.NoError(t, err)
	assert.True(t, balances["m1"].Equal(all))
}

func TestStockRepo_MovementsNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := openTestStore(t).Repositories().Stock
	at := time.Date(2026, 5, 5, 12, 0, 0, 0, time.UTC)

	for i, typ := range []entities.MovementType{entities.MovementReceipt, entities.MovementIssue, entities.MovementAdjustment} {
		require.NoError(t, repo.RecordMovement(ctx, &entities.StockMovement{
			ID:         fmt.Sprintf("mv%d", i+1),
			MaterialID: "m1",
			Type:       typ,
			Quantity:   decimal.NewFromInt(1),
			CreatedAt:  at,
		}))
	}

	got, err := repo.ListMovements(ctx, repositories.MovementFilter{MaterialID: "m1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "mv3", got[0].ID)
	assert.Equal(t, "mv2", got[1].ID)
}

func TestBOQRepo_UniqueMaterialPerProject(t *testing.T) {
	ctx := context.Background()
	repo := openTestStore(t).Repositories().BOQ

	item, err := entities.NewBOQItem("p1", "m1", "bag", decimal.NewFromInt(500), decimal.NewFromInt(9))
	require.NoError(t, err)
	item.ID = "boq1"
	require.NoError(t, repo.CreateBOQItem(ctx, item))

	dup := *item
	dup.ID = "boq2"
	assert.ErrorIs(t, repo.CreateBOQItem(ctx, &dup), repositories.ErrAlreadyExists)

	found, err := repo.FindBOQItem(ctx, "p1", "m1")
	require.NoError(t, err)
	assert.Equal(t, "boq1", found.ID)

	_, err = repo.FindBOQItem(ctx, "p1", "m2")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestUserRepo_EmailIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	repo := openTestStore(t).Repositories().Users
	now := time.Now().UTC()

	require.NoError(t, repo.CreateUser(ctx, &entities.User{
		ID: "u1", Name: "Site Admin", Email: "Admin@Example.com", PasswordHash: "x",
		Role: entities.RoleAdmin, IsActive: true, CreatedAt: now, UpdatedAt: now,
	}))

	got, err := repo.GetUserByEmail(ctx, "  ADMIN@example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)
	assert.Nil(t, got.LastLoginAt)

	err = repo.CreateUser(ctx, &entities.User{
		ID: "u2", Name: "Other", Email: "admin@example.com", PasswordHash: "x",
		Role: entities.RoleSiteWorker, CreatedAt: now, UpdatedAt: now,
	})
	assert.ErrorIs(t, err, repositories.ErrAlreadyExists)

	_, err = repo.GetUserByResetTokenHash(ctx, "")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestSettingsRepo_DefaultsThenSaved(t *testing.T) {
	ctx := context.Background()
	repo := openTestStore(t).Repositories().Settings

	cfg, err := repo.GetSystemConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, entities.DefaultSystemConfig(), cfg)

	cfg.CompanyName = "Acme Builders"
	cfg.GRNTolerancePercentage = 2.5
	require.NoError(t, repo.SaveSystemConfig(ctx, cfg))
	require.NoError(t, repo.SaveSystemConfig(ctx, cfg))

	got, err := repo.GetSystemConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestAlertRepo_OpenAlerts(t *testing.T) {
	ctx := context.Background()
	repo := openTestStore(t).Repositories().Alerts
	now := time.Now().UTC()

	require.NoError(t, repo.CreateAlert(ctx, &entities.Alert{
		ID: "a1", Type: entities.AlertLowStock, Title: "Low stock", Message: "cement", EntityID: "m1", CreatedAt: now,
	}))

	open, err := repo.FindOpenAlert(ctx, entities.AlertLowStock, "m1")
	require.NoError(t, err)
	open.IsDismissed = true
	require.NoError(t, repo.UpdateAlert(ctx, open))

	_, err = repo.FindOpenAlert(ctx, entities.AlertLowStock, "m1")
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	visible, err := repo.ListAlerts(ctx, repositories.AlertFilter{})
	require.NoError(t, err)
	assert.Empty(t, visible)

	all, err := repo.ListAlerts(ctx, repositories.AlertFilter{IncludeDismissed: true})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCodeAllocator_ConcurrentProjectsAgainstSQLite(t *testing.T) {
	ctx := context.Background()
	repo := openTestStore(t).Repositories().Projects
	clock := func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }
	allocator := services.NewCodeAllocator(lock.NewLocalLocker(), services.WithClock(clock))

	const n = 20
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		codes = make(map[string]bool)
		errs  []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			code, err := allocator.Allocate(ctx, repo, services.PrefixProject, func(code string) error {
				now := clock()
				return repo.CreateProject(ctx, &entities.Project{
					ID: fmt.Sprintf("p%d", i), Code: code, Name: "Tower " + code, Location: "Lot 7",
					Status: entities.ProjectPlanning, StartDate: now, CreatedAt: now, UpdatedAt: now,
				})
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			codes[code] = true
		}(i)
	}
	wg.Wait()

	require.Empty(t, errs)
	assert.Len(t, codes, n)
	for i := 1; i <= n; i++ {
		assert.True(t, codes[fmt.Sprintf("PRJ-2026-%04d", i)], "missing PRJ-2026-%04d", i)
	}
}

func TestMaterialRepo_UpdateRejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	repo := openTestStore(t).Repositories().Materials
	require.NoError(t, repo.CreateMaterial(ctx, testMaterial("m1", "CEM-2026-0001")))

	first, err := repo.GetMaterial(ctx, "m1")
	require.NoError(t, err)
	second, err := repo.GetMaterial(ctx, "m1")
	require.NoError(t, err)

	first.Name = "OPC 53"
	first.Version++
	require.NoError(t, repo.UpdateMaterial(ctx, first))

	second.Name = "OPC 43"
	second.Version++
	err = repo.UpdateMaterial(ctx, second)
	assert.ErrorIs(t, err, repositories.ErrStaleVersion)

	got, err := repo.GetMaterial(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "OPC 53", got.Name)
	assert.Equal(t, 2, got.Version)
}

func TestStore_WithTxRollsBackEveryWrite(t *testing.T) {
	ctx := context.Background()
	repos := openTestStore(t).Repositories()
	received := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repos.Stock.CreateBatch(ctx, &entities.StockBatch{
		ID: "b1", MaterialID: "m1", WarehouseID: "w1", BatchNumber: "B-001",
		Quantity: decimal.NewFromInt(40), ReceivedDate: received, Status: entities.BatchAvailable,
	}))

	failure := fmt.Errorf("destination unavailable")
	err := repos.Tx.WithTx(ctx, func(tx repositories.Repositories) error {
		batch, err := tx.Stock.GetBatch(ctx, "b1")
		require.NoError(t, err)
		batch.Quantity = decimal.NewFromInt(30)
		require.NoError(t, tx.Stock.UpdateBatch(ctx, batch))

		// nested calls join the running transaction
		return tx.Tx.WithTx(ctx, func(inner repositories.Repositories) error {
			require.NoError(t, inner.Stock.RecordMovement(ctx, &entities.StockMovement{
				ID: "mv1", MaterialID: "m1", WarehouseID: "w1", Type: entities.MovementTransferOut,
				Quantity: decimal.NewFromInt(-10), CreatedAt: received,
			}))
			return failure
		})
	})
	assert.ErrorIs(t, err, failure)

	balance, err := repos.Stock.Balance(ctx, "m1", "")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(40)), "got %s", balance)
	movements, err := repos.Stock.ListMovements(ctx, repositories.MovementFilter{MaterialID: "m1"})
	require.NoError(t, err)
	assert.Empty(t, movements)
}

func TestStore_WithTxCommits(t *testing.T) {
	ctx := context.Background()
	repos := openTestStore(t).Repositories()

	err := repos.Tx.WithTx(ctx, func(tx repositories.Repositories) error {
		if err := tx.Materials.CreateMaterial(ctx, testMaterial("m1", "CEM-2026-0001")); err != nil {
			return err
		}
		return tx.Materials.CreateMaterial(ctx, testMaterial("m2", "CEM-2026-0002"))
	})
	require.NoError(t, err)

	codes, err := repos.Materials.ListCodesWithPrefix(ctx, "CEM-2026-")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"CEM-2026-0001", "CEM-2026-0002"}, codes)
}
