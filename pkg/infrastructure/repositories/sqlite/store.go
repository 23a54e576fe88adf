// Package sqlite stores every repository in a single SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/vsinha/cims/pkg/domain/repositories"
	"github.com/vsinha/cims/pkg/infrastructure/repositories/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// QueryObserver receives the duration of each database call
type QueryObserver interface {
	ObserveQuery(operation, model string, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveQuery(string, string, time.Duration) {}

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store persists CIMS state in SQLite
type Store struct {
	db       *sql.DB
	q        querier
	inTx     bool
	observer QueryObserver
}

// Option configures a Store
type Option func(*Store)

// WithQueryObserver reports query durations to o
func WithQueryObserver(o QueryObserver) Option {
	return func(s *Store) {
		if o != nil {
			s.observer = o
		}
	}
}

// Open opens the database at path, or an in-memory database for ":memory:",
// and applies the embedded migrations.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	memory := path == ":memory:"
	dsn := ":memory:"
	pragmas := []string{"foreign_keys(1)", "busy_timeout(5000)"}
	if !memory {
		dsn = "file:" + filepath.Clean(path)
		pragmas = append(pragmas, "journal_mode(WAL)", "synchronous(NORMAL)")
	}
	// writers queue on busy_timeout at BEGIN instead of failing on lock upgrade
	dsn += "?_txlock=immediate&_pragma=" + strings.Join(pragmas, "&_pragma=")

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if memory {
		// every pooled connection to :memory: would otherwise see its own database
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s := &Store{db: db, q: db, observer: nopObserver{}}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the SQLite handle
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks the database answers
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Repositories exposes the store through the repository interfaces
func (s *Store) Repositories() repositories.Repositories {
	return s.repositories()
}

func (s *Store) repositories() repositories.Repositories {
	return repositories.Repositories{
		Materials:      &materialRepo{s},
		Suppliers:      &supplierRepo{s},
		Warehouses:     &warehouseRepo{s},
		PurchaseOrders: &purchaseOrderRepo{s},
		Requisitions:   &requisitionRepo{s},
		GRNs:           &grnRepo{s},
		Stock:          &stockRepo{s},
		Projects:       &projectRepo{s},
		BOQ:            &boqRepo{s},
		Users:          &userRepo{s},
		Activities:     &activityRepo{s},
		Alerts:         &alertRepo{s},
		Settings:       &settingsRepo{s},
		Tx:             s,
	}
}

// WithTx runs fn in a single SQLite transaction. Every repository handed to
// fn reads and writes through it; any error or panic rolls it back.
func (s *Store) WithTx(ctx context.Context, fn func(repositories.Repositories) error) (err error) {
	if s.inTx {
		return fn(s.repositories())
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = fmt.Errorf("%w (rollback: %v)", err, rbErr)
			}
			return
		}
		if err = tx.Commit(); err != nil {
			err = fmt.Errorf("commit transaction: %w", err)
		}
	}()

	scoped := &Store{db: s.db, q: tx, inTx: true, observer: s.observer}
	return fn(scoped.repositories())
}

// timed starts a query timer; call the returned func when the query is done
func (s *Store) timed(operation, model string) func() {
	start := time.Now()
	return func() { s.observer.ObserveQuery(operation, model, time.Since(start)) }
}

type scanner interface {
	Scan(dest ...any) error
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func nullMillis(value *time.Time) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*value), Valid: true}
}

func fromNullMillis(value sql.NullInt64) *time.Time {
	if !value.Valid {
		return nil
	}
	t := fromMillis(value.Int64)
	return &t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func toJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode json column: %w", err)
	}
	return string(data), nil
}

func fromJSON(data string, v any) error {
	if data == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return fmt.Errorf("decode json column: %w", err)
	}
	return nil
}

// mapWriteError turns constraint violations into repository errors
func mapWriteError(err error, what string) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", what, repositories.ErrAlreadyExists)
	}
	return fmt.Errorf("write %s: %w", what, err)
}

func mapReadError(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, repositories.ErrNotFound)
	}
	return fmt.Errorf("read %s: %w", what, err)
}

// requireVersion reports ErrStaleVersion when a versioned update matched no
// row although the row exists
func (s *Store) requireVersion(ctx context.Context, res sql.Result, table, id, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for %s: %w", what, err)
	}
	if n > 0 {
		return nil
	}
	var exists int
	err = s.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+" WHERE id = ?", id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("read %s: %w", what, err)
	}
	if exists == 0 {
		return fmt.Errorf("%s: %w", what, repositories.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, repositories.ErrStaleVersion)
}

// requireAffected reports ErrNotFound when an update or delete matched no row
func requireAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for %s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, repositories.ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

// listCodes returns the codes of a table that begin with prefix
func (s *Store) listCodes(ctx context.Context, table, column, prefix string) ([]string, error) {
	defer s.timed("select", table)()

	rows, err := s.q.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s WHERE substr(%s, 1, ?) = ?", column, table, column),
		len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("list %s codes: %w", table, err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan %s code: %w", table, err)
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// query builds a WHERE clause from optional conditions
type query struct {
	where []string
	args  []any
}

func (q *query) add(cond string, args ...any) {
	q.where = append(q.where, cond)
	q.args = append(q.args, args...)
}

func (q *query) clause() string {
	if len(q.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.where, " AND ")
}

func (q *query) dateRange(column string, r repositories.DateRange) {
	if !r.From.IsZero() {
		q.add(column+" >= ?", toMillis(r.From))
	}
	if !r.To.IsZero() {
		q.add(column+" <= ?", toMillis(r.To))
	}
}

// orderBy returns an ORDER BY clause for a whitelisted sort field
func orderBy(sort repositories.Sort, columns map[string]string, fallback string) string {
	column, ok := columns[sort.Field]
	if !ok {
		column = fallback
	}
	dir := "ASC"
	if sort.Desc {
		dir = "DESC"
	}
	return fmt.Sprintf(" ORDER BY %s %s, id ASC", column, dir)
}

func limitClause(page repositories.Page) string {
	if page.Limit <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d OFFSET %d", page.Limit, page.Offset())
}

func (s *Store) count(ctx context.Context, table string, q *query) (int, error) {
	var total int
	if err := s.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+q.clause(), q.args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return total, nil
}

func likeArg(search string) string {
	return "%" + search + "%"
}

// collect runs a query and scans every row with scan
func collect[T any](ctx context.Context, db querier, what string, scan func(scanner) (*T, error), stmt string, args ...any) ([]*T, error) {
	rows, err := db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", what, err)
	}
	defer rows.Close()

	var out []*T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", what, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", what, err)
	}
	return out, nil
}
