package memory

import (
	"context"
	"sync"

	"github.com/vsinha/cims/pkg/domain/entities"
	"github.com/vsinha/cims/pkg/domain/repositories"
)

// UserRepository provides in-memory user storage
type UserRepository struct {
	rows *table[entities.User]
}

// NewUserRepository creates a new in-memory user repository
func NewUserRepository() *UserRepository {
	return &UserRepository{
		rows: newTable("user",
			func(u *entities.User) string { return u.ID },
			func(u *entities.User) *entities.User {
				c := *u
				c.ResetTokenExpiry = cloneTime(u.ResetTokenExpiry)
				c.LastLoginAt = cloneTime(u.LastLoginAt)
				return &c
			},
			func(u *entities.User) string { return entities.NormalizeEmail(u.Email) },
		),
	}
}

var _ repositories.UserRepository = (*UserRepository)(nil)

func (r *UserRepository) CreateUser(_ context.Context, user *entities.User) error {
	return r.rows.insert(user)
}

func (r *UserRepository) GetUser(_ context.Context, id string) (*entities.User, error) {
	return r.rows.get(id)
}

func (r *UserRepository) GetUserByEmail(_ context.Context, email string) (*entities.User, error) {
	email = entities.NormalizeEmail(email)
	return r.rows.find(func(u *entities.User) bool { return entities.NormalizeEmail(u.Email) == email })
}

func (r *UserRepository) GetUserByResetTokenHash(_ context.Context, hash string) (*entities.User, error) {
	return r.rows.find(func(u *entities.User) bool { return hash != "" && u.ResetTokenHash == hash })
}

func (r *UserRepository) UpdateUser(_ context.Context, user *entities.User) error {
	return r.rows.update(user)
}

func (r *UserRepository) ListUsers(_ context.Context) ([]*entities.User, error) {
	return r.rows.filter(nil), nil
}

// ActivityRepository keeps the activity log in memory
type ActivityRepository struct {
	rows *table[entities.ActivityLog]
}

// NewActivityRepository creates a new in-memory activity log
func NewActivityRepository() *ActivityRepository {
	return &ActivityRepository{
		rows: newTable("activity",
			func(a *entities.ActivityLog) string { return a.ID },
			func(a *entities.ActivityLog) *entities.ActivityLog { c := *a; return &c },
		),
	}
}

var _ repositories.ActivityRepository = (*ActivityRepository)(nil)

func (r *ActivityRepository) RecordActivity(_ context.Context, entry *entities.ActivityLog) error {
	return r.rows.insert(entry)
}

func (r *ActivityRepository) ListRecentActivity(_ context.Context, limit int) ([]*entities.ActivityLog, error) {
	rows := r.rows.filter(nil)
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	sortRows(rows, func(a, b *entities.ActivityLog) bool { return a.CreatedAt.After(b.CreatedAt) })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// AlertRepository provides in-memory alert storage
type AlertRepository struct {
	rows *table[entities.Alert]
}

// NewAlertRepository creates a new in-memory alert repository
func NewAlertRepository() *AlertRepository {
	return &AlertRepository{
		rows: newTable("alert",
			func(a *entities.Alert) string { return a.ID },
			func(a *entities.Alert) *entities.Alert { c := *a; return &c },
		),
	}
}

var _ repositories.AlertRepository = (*AlertRepository)(nil)

func (r *AlertRepository) CreateAlert(_ context.Context, alert *entities.Alert) error {
	return r.rows.insert(alert)
}

func (r *AlertRepository) GetAlert(_ context.Context, id string) (*entities.Alert, error) {
	return r.rows.get(id)
}

func (r *AlertRepository) UpdateAlert(_ context.Context, alert *entities.Alert) error {
	return r.rows.update(alert)
}

// ListAlerts returns alerts newest first
func (r *AlertRepository) ListAlerts(_ context.Context, filter repositories.AlertFilter) ([]*entities.Alert, error) {
	rows := r.rows.filter(func(a *entities.Alert) bool {
		if a.IsDismissed && !filter.IncludeDismissed {
			return false
		}
		return filter.Type == "" || a.Type == filter.Type
	})
	sortRows(rows, func(a, b *entities.Alert) bool { return a.CreatedAt.After(b.CreatedAt) })
	return rows, nil
}

func (r *AlertRepository) FindOpenAlert(_ context.Context, alertType entities.AlertType, entityID string) (*entities.Alert, error) {
	return r.rows.find(func(a *entities.Alert) bool {
		return !a.IsDismissed && a.Type == alertType && a.EntityID == entityID
	})
}

// SettingsRepository holds the system configuration in memory
type SettingsRepository struct {
	mu     sync.RWMutex
	config entities.SystemConfig
}

// NewSettingsRepository starts from the default configuration
func NewSettingsRepository() *SettingsRepository {
	return &SettingsRepository{config: entities.DefaultSystemConfig()}
}

var _ repositories.SettingsRepository = (*SettingsRepository)(nil)

func (r *SettingsRepository) GetSystemConfig(context.Context) (entities.SystemConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config, nil
}

func (r *SettingsRepository) SaveSystemConfig(_ context.Context, cfg entities.SystemConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.config = cfg
	return nil
}
