package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vsinha/cims/pkg/domain/entities"
	"github.com/vsinha/cims/pkg/domain/repositories"
	"github.com/vsinha/cims/pkg/domain/services"
	"github.com/vsinha/cims/pkg/infrastructure/lock"
)

var errStorage = errors.New("storage unavailable")

// wrapRepos applies wrap to repos and to the repositories of every
// transaction opened through them
func wrapRepos(repos repositories.Repositories, wrap func(repositories.Repositories) repositories.Repositories) repositories.Repositories {
	wrapped := wrap(repos)
	if repos.Tx != nil {
		wrapped.Tx = wrappedTx{inner: repos.Tx, wrap: wrap}
	}
	return wrapped
}

type wrappedTx struct {
	inner repositories.Transactor
	wrap  func(repositories.Repositories) repositories.Repositories
}

func (w wrappedTx) WithTx(ctx context.Context, fn func(repositories.Repositories) error) error {
	return w.inner.WithTx(ctx, func(tx repositories.Repositories) error {
		return fn(wrapRepos(tx, w.wrap))
	})
}

// withRepos returns the fixture dependencies with wrapped repositories
func (f *fixture) withRepos(wrap func(repositories.Repositories) repositories.Repositories) Dependencies {
	deps := f.deps
	deps.Repos = wrapRepos(f.Repos, wrap)
	return deps
}

// slowOrders delays reads so that concurrent callers overlap
type slowOrders struct {
	repositories.PurchaseOrderRepository
	delay time.Duration
}

func (r slowOrders) GetPurchaseOrder(ctx context.Context, id string) (*entities.PurchaseOrder, error) {
	time.Sleep(r.delay)
	return r.PurchaseOrderRepository.GetPurchaseOrder(ctx, id)
}

// failingStock refuses new batches in one warehouse
type failingStock struct {
	repositories.StockRepository
	warehouseID string
}

func (r failingStock) CreateBatch(ctx context.Context, batch *entities.StockBatch) error {
	if batch.WarehouseID == r.warehouseID {
		return errStorage
	}
	return r.StockRepository.CreateBatch(ctx, batch)
}

// failingProjects refuses every project write
type failingProjects struct {
	repositories.ProjectRepository
}

func (failingProjects) UpdateProject(context.Context, *entities.Project) error {
	return errStorage
}

func (failingProjects) DeleteProject(context.Context, string) error {
	return errStorage
}

// failingGRNs refuses GRN updates
type failingGRNs struct {
	repositories.GRNRepository
}

func (failingGRNs) UpdateGRN(context.Context, *entities.GoodsReceivedNote) error {
	return errStorage
}

// racingMaterials lets another writer update the material right after the
// first read
type racingMaterials struct {
	repositories.MaterialRepository
	once sync.Once
}

func (r *racingMaterials) GetMaterial(ctx context.Context, id string) (*entities.Material, error) {
	m, err := r.MaterialRepository.GetMaterial(ctx, id)
	if err != nil {
		return nil, err
	}
	r.once.Do(func() {
		other := *m
		other.Description = "edited elsewhere"
		other.Version++
		if err := r.MaterialRepository.UpdateMaterial(ctx, &other); err != nil {
			panic(err)
		}
	})
	return m, nil
}

// leakyLocker hands out locks whose release reports an error after unlocking
type leakyLocker struct {
	inner services.Locker
}

type leakyLock struct {
	inner services.Lock
}

func (l leakyLock) Release(ctx context.Context) error {
	if err := l.inner.Release(ctx); err != nil {
		return err
	}
	return errors.New("lock expired before release")
}

func (l leakyLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (services.Lock, error) {
	held, err := l.inner.Obtain(ctx, key, ttl)
	if err != nil {
		return nil, err
	}
	return leakyLock{inner: held}, nil
}

func newLeakyLocker() leakyLocker {
	return leakyLocker{inner: lock.NewLocalLocker()}
}
