package memory

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/vsinha/cims/pkg/domain/repositories"
)

// table is a mutex-guarded row store keyed by id. Rows are copied on the way in
// and out so callers never share memory with the store.
type table[T any] struct {
	*rowSet[T]
	name   string
	id     func(*T) string
	clone  func(*T) *T
	unique []func(*T) string

	// undo, when set, receives the inverse of every write
	undo *undoLog
}

type rowSet[T any] struct {
	mu    sync.RWMutex
	rows  map[string]*T
	order []string
}

func newTable[T any](name string, id func(*T) string, clone func(*T) *T, unique ...func(*T) string) *table[T] {
	return &table[T]{
		rowSet: &rowSet[T]{rows: make(map[string]*T)},
		name:   name,
		id:     id,
		clone:  clone,
		unique: unique,
	}
}

// within returns a view of the same rows whose writes are logged to undo
func (t *table[T]) within(undo *undoLog) *table[T] {
	view := *t
	view.undo = undo
	return &view
}

func (t *table[T]) conflict(row *T) error {
	rowID := t.id(row)
	for _, key := range t.unique {
		k := key(row)
		if k == "" {
			continue
		}
		for id, existing := range t.rows {
			if id != rowID && key(existing) == k {
				return fmt.Errorf("%s %s: %w", t.name, k, repositories.ErrAlreadyExists)
			}
		}
	}
	return nil
}

func (t *table[T]) insert(row *T) error {
	id := t.id(row)
	if id == "" {
		return fmt.Errorf("%s id cannot be empty", t.name)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.rows[id]; exists {
		return fmt.Errorf("%s %s: %w", t.name, id, repositories.ErrAlreadyExists)
	}
	if err := t.conflict(row); err != nil {
		return err
	}
	t.rows[id] = t.clone(row)
	t.order = append(t.order, id)
	t.undo.add(func() { t.restore(id, nil, -1) })
	return nil
}

func (t *table[T]) update(row *T) error {
	return t.updateIf(row, nil)
}

// updateIf replaces a row when check, if given, accepts the stored one
func (t *table[T]) updateIf(row *T, check func(stored *T) error) error {
	id := t.id(row)

	t.mu.Lock()
	defer t.mu.Unlock()

	previous, exists := t.rows[id]
	if !exists {
		return fmt.Errorf("%s %s: %w", t.name, id, repositories.ErrNotFound)
	}
	if check != nil {
		if err := check(previous); err != nil {
			return fmt.Errorf("%s %s: %w", t.name, id, err)
		}
	}
	if err := t.conflict(row); err != nil {
		return err
	}
	t.rows[id] = t.clone(row)
	t.undo.add(func() { t.restore(id, previous, -1) })
	return nil
}

func (t *table[T]) get(id string) (*T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	row, exists := t.rows[id]
	if !exists {
		return nil, fmt.Errorf("%s %s: %w", t.name, id, repositories.ErrNotFound)
	}
	return t.clone(row), nil
}

func (t *table[T]) remove(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.rows[id]; !exists {
		return fmt.Errorf("%s %s: %w", t.name, id, repositories.ErrNotFound)
	}
	previous := t.rows[id]
	position := t.unlink(id)
	t.undo.add(func() { t.restore(id, previous, position) })
	return nil
}

// unlink drops a row and returns its position in insertion order
func (t *table[T]) unlink(id string) int {
	delete(t.rows, id)
	for i, existing := range t.order {
		if existing == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			return i
		}
	}
	return -1
}

// restore puts back the row a write replaced. A nil row undoes an insert; a
// position at or above zero undoes a remove.
func (t *table[T]) restore(id string, row *T, position int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if row == nil {
		t.unlink(id)
		return
	}
	t.rows[id] = row
	if position < 0 {
		return
	}
	if position > len(t.order) {
		position = len(t.order)
	}
	t.order = append(t.order, "")
	copy(t.order[position+1:], t.order[position:])
	t.order[position] = id
}

// find returns the first row, in insertion order, that matches
func (t *table[T]) find(match func(*T) bool) (*T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, id := range t.order {
		if row := t.rows[id]; match(row) {
			return t.clone(row), nil
		}
	}
	return nil, fmt.Errorf("%s: %w", t.name, repositories.ErrNotFound)
}

// filter returns copies of the matching rows in insertion order
func (t *table[T]) filter(match func(*T) bool) []*T {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []*T
	for _, id := range t.order {
		if row := t.rows[id]; match == nil || match(row) {
			out = append(out, t.clone(row))
		}
	}
	return out
}

func (t *table[T]) codes(prefix string, code func(*T) string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []string
	for _, row := range t.rows {
		if c := code(row); strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// window sorts rows with less (when given) and cuts out the requested page
func window[T any](rows []*T, page repositories.Page, less func(a, b *T) bool) ([]*T, int) {
	if less != nil {
		sortRows(rows, less)
	}
	start, end := page.Window(len(rows))
	return rows[start:end], len(rows)
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

func sortRows[T any](rows []*T, less func(a, b *T) bool) {
	sort.SliceStable(rows, func(i, j int) bool { return less(rows[i], rows[j]) })
}
