package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vsinha/cims/pkg/domain/entities"
	"github.com/vsinha/cims/pkg/domain/repositories"
	"github.com/vsinha/cims/pkg/domain/services"
	"github.com/vsinha/cims/pkg/infrastructure/events"
	"github.com/vsinha/cims/pkg/infrastructure/lock"
)

const defaultStockLockTTL = 10 * time.Second

// Dependencies are shared by every application service
type Dependencies struct {
	Repos  repositories.Repositories
	Codes  *services.CodeAllocator
	Locker services.Locker
	Events events.Publisher
	Logger *zap.Logger

	// Now and NewID are replaced in tests
	Now   func() time.Time
	NewID func() string

	StockLockTTL time.Duration
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	if d.Events == nil {
		d.Events = discard{}
	}
	if d.StockLockTTL <= 0 {
		d.StockLockTTL = defaultStockLockTTL
	}
	if d.Locker == nil {
		d.Locker = lock.NewLocalLocker()
	}
	if d.Codes == nil {
		d.Codes = services.NewCodeAllocator(d.Locker, services.WithClock(d.Now), services.WithLogger(d.Logger))
	}
	return d
}

func (d Dependencies) now() time.Time {
	return d.Now().UTC()
}

// publish hands an event to the bus; delivery problems never fail the operation
func (d Dependencies) publish(ctx context.Context, event events.Event) {
	if err := d.Events.Publish(ctx, event); err != nil {
		d.Logger.Warn("failed to publish event",
			zap.String("event_type", event.Type()),
			zap.String("stream", event.StreamID()),
			zap.Error(err))
	}
}

// withLock runs fn while holding the named lock. A failed release is logged,
// never returned.
func (d Dependencies) withLock(ctx context.Context, key string, fn func() error) error {
	held, err := d.Locker.Obtain(ctx, key, d.StockLockTTL)
	if err != nil {
		return fmt.Errorf("failed to lock %s: %w", key, err)
	}
	defer func() {
		if releaseErr := held.Release(ctx); releaseErr != nil {
			d.Logger.Warn("failed to release lock", zap.String("key", key), zap.Error(releaseErr))
		}
	}()
	return fn()
}

// withLocks runs fn while holding every distinct key, taken in sorted order
func (d Dependencies) withLocks(ctx context.Context, keys []string, fn func() error) error {
	sorted := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			sorted = append(sorted, k)
		}
	}
	sort.Strings(sorted)

	var run func(i int) error
	run = func(i int) error {
		if i == len(sorted) {
			return fn()
		}
		return d.withLock(ctx, sorted[i], func() error { return run(i + 1) })
	}
	return run(0)
}

// inTx runs fn with dependencies whose repositories commit together. Locks
// are taken before calling it so the commit lands while they are still held.
func (d Dependencies) inTx(ctx context.Context, fn func(tx Dependencies) error) error {
	if d.Repos.Tx == nil {
		return fn(d)
	}
	return d.Repos.Tx.WithTx(ctx, func(repos repositories.Repositories) error {
		tx := d
		tx.Repos = repos
		return fn(tx)
	})
}

// reference builds a document reference like TRF-20260301093000-ID0042. The
// suffix keeps references from the same second apart.
func (d Dependencies) reference(prefix string) string {
	suffix := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToUpper(r)
		}
		return -1
	}, d.NewID())
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	return prefix + "-" + d.now().Format("20060102150405") + "-" + suffix
}

func stockLockKey(materialID string) string {
	return "stock:" + materialID
}

func projectLockKey(projectID string) string {
	return "project:" + projectID
}

func poLockKey(poID string) string {
	return "po:" + poID
}

func actorName(user *entities.User) string {
	if user == nil {
		return ""
	}
	return user.Name
}

func actorID(user *entities.User) string {
	if user == nil {
		return ""
	}
	return user.ID
}

type discard struct{}

func (discard) Publish(context.Context, events.Event) error { return nil }
