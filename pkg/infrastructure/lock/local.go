package lock

import (
	"context"
	"sync"
	"time"

	"github.com/vsinha/cims/pkg/domain/services"
)

// LocalLocker hands out named locks within a single process
type LocalLocker struct {
	mu   sync.Mutex
	keys map[string]*localEntry
}

type localEntry struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker creates a keyed in-process locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{keys: make(map[string]*localEntry)}
}

var _ services.Locker = (*LocalLocker)(nil)

// Obtain blocks until key is free or ctx is done. The ttl is ignored; a local
// lock cannot outlive its holder.
func (l *LocalLocker) Obtain(ctx context.Context, key string, _ time.Duration) (services.Lock, error) {
	l.mu.Lock()
	entry, ok := l.keys[key]
	if !ok {
		entry = &localEntry{ch: make(chan struct{}, 1)}
		l.keys[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
		return &localLock{locker: l, key: key, entry: entry}, nil
	case <-ctx.Done():
		l.drop(key, entry)
		return nil, ctx.Err()
	}
}

func (l *LocalLocker) drop(key string, entry *localEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.keys, key)
	}
}

type localLock struct {
	locker *LocalLocker
	key    string
	entry  *localEntry
	once   sync.Once
}

func (k *localLock) Release(context.Context) error {
	k.once.Do(func() {
		<-k.entry.ch
		k.locker.drop(k.key, k.entry)
	})
	return nil
}
