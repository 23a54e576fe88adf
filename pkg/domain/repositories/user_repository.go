package repositories

import (
	"context"

	"github.com/vsinha/cims/pkg/domain/entities"
)

// UserRepository provides access to user accounts
type UserRepository interface {
	CreateUser(ctx context.Context, user *entities.User) error
	GetUser(ctx context.Context, id string) (*entities.User, error)
	GetUserByEmail(ctx context.Context, email string) (*entities.User, error)
	GetUserByResetTokenHash(ctx context.Context, hash string) (*entities.User, error)
	UpdateUser(ctx context.Context, user *entities.User) error
	ListUsers(ctx context.Context) ([]*entities.User, error)
}

// ActivityRepository records per-request user activity
type ActivityRepository interface {
	RecordActivity(ctx context.Context, entry *entities.ActivityLog) error
	ListRecentActivity(ctx context.Context, limit int) ([]*entities.ActivityLog, error)
}

// AlertFilter narrows an alert listing
type AlertFilter struct {
	IncludeDismissed bool
	Type             entities.AlertType
}

// AlertRepository provides access to alerts
type AlertRepository interface {
	CreateAlert(ctx context.Context, alert *entities.Alert) error
	GetAlert(ctx context.Context, id string) (*entities.Alert, error)
	UpdateAlert(ctx context.Context, alert *entities.Alert) error
	ListAlerts(ctx context.Context, filter AlertFilter) ([]*entities.Alert, error)

	// FindOpenAlert returns the undismissed alert of a type for an entity.
	FindOpenAlert(ctx context.Context, alertType entities.AlertType, entityID string) (*entities.Alert, error)
}

// SettingsRepository stores the single system configuration record
type SettingsRepository interface {
	GetSystemConfig(ctx context.Context) (entities.SystemConfig, error)
	SaveSystemConfig(ctx context.Context, cfg entities.SystemConfig) error
}
