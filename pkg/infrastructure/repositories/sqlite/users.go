package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vsinha/cims/pkg/domain/entities"
	"github.com/vsinha/cims/pkg/domain/repositories"
)

type userRepo struct{ s *Store }

var _ repositories.UserRepository = (*userRepo)(nil)

const userColumns = `id, name, email, password_hash, role, is_active, failed_login_attempts, reset_token_hash,
	reset_token_expiry, last_login_at, created_at, updated_at`

func scanUser(row scanner) (*entities.User, error) {
	var (
		u                    entities.User
		active               int
		resetExpiry, login   sql.NullInt64
		createdAt, updatedAt int64
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &active, &u.FailedLoginAttempts,
		&u.ResetTokenHash, &resetExpiry, &login, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	u.IsActive = active == 1
	u.ResetTokenExpiry = fromNullMillis(resetExpiry)
	u.LastLoginAt = fromNullMillis(login)
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return &u, nil
}

func (r *userRepo) CreateUser(ctx context.Context, u *entities.User) error {
	defer r.s.timed("insert", "user")()

	_, err := r.s.q.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, entities.NormalizeEmail(u.Email), u.PasswordHash, u.Role, boolInt(u.IsActive),
		u.FailedLoginAttempts, u.ResetTokenHash, nullMillis(u.ResetTokenExpiry), nullMillis(u.LastLoginAt),
		toMillis(u.CreatedAt), toMillis(u.UpdatedAt))
	return mapWriteError(err, "user "+u.Email)
}

func (r *userRepo) GetUser(ctx context.Context, id string) (*entities.User, error) {
	defer r.s.timed("select", "user")()

	u, err := scanUser(r.s.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return nil, mapReadError(err, "user "+id)
	}
	return u, nil
}

func (r *userRepo) GetUserByEmail(ctx context.Context, email string) (*entities.User, error) {
	defer r.s.timed("select", "user")()

	u, err := scanUser(r.s.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, entities.NormalizeEmail(email)))
	if err != nil {
		return nil, mapReadError(err, "user "+email)
	}
	return u, nil
}

func (r *userRepo) GetUserByResetTokenHash(ctx context.Context, hash string) (*entities.User, error) {
	if hash == "" {
		return nil, fmt.Errorf("reset token: %w", repositories.ErrNotFound)
	}
	defer r.s.timed("select", "user")()

	u, err := scanUser(r.s.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE reset_token_hash = ?`, hash))
	if err != nil {
		return nil, mapReadError(err, "reset token")
	}
	return u, nil
}

func (r *userRepo) UpdateUser(ctx context.Context, u *entities.User) error {
	defer r.s.timed("update", "user")()

	res, err := r.s.q.ExecContext(ctx,
		`UPDATE users SET name = ?, email = ?, password_hash = ?, role = ?, is_active = ?,
		   failed_login_attempts = ?, reset_token_hash = ?, reset_token_expiry = ?, last_login_at = ?,
		   updated_at = ?
		 WHERE id = ?`,
		u.Name, entities.NormalizeEmail(u.Email), u.PasswordHash, u.Role, boolInt(u.IsActive),
		u.FailedLoginAttempts, u.ResetTokenHash, nullMillis(u.ResetTokenExpiry), nullMillis(u.LastLoginAt),
		toMillis(u.UpdatedAt), u.ID)
	if err != nil {
		return mapWriteError(err, "user "+u.Email)
	}
	return requireAffected(res, "user "+u.ID)
}

func (r *userRepo) ListUsers(ctx context.Context) ([]*entities.User, error) {
	defer r.s.timed("select", "user")()

	return collect(ctx, r.s.q, "users", scanUser, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
}

type activityRepo struct{ s *Store }

var _ repositories.ActivityRepository = (*activityRepo)(nil)

func (r *activityRepo) RecordActivity(ctx context.Context, entry *entities.ActivityLog) error {
	defer r.s.timed("insert", "activity_log")()

	_, err := r.s.q.ExecContext(ctx,
		`INSERT INTO activity_logs (seq, id, user_id, user_name, action, created_at)
		 VALUES ((SELECT COALESCE(MAX(seq), 0) + 1 FROM activity_logs), ?, ?, ?, ?, ?)`,
		entry.ID, entry.UserID, entry.UserName, entry.Action, toMillis(entry.CreatedAt))
	return mapWriteError(err, "activity "+entry.ID)
}

func (r *activityRepo) ListRecentActivity(ctx context.Context, limit int) ([]*entities.ActivityLog, error) {
	defer r.s.timed("select", "activity_log")()

	stmt := `SELECT id, user_id, user_name, action, created_at FROM activity_logs ORDER BY created_at DESC, seq DESC`
	if limit > 0 {
		stmt += fmt.Sprintf(" LIMIT %d", limit)
	}
	return collect(ctx, r.s.q, "activity", func(row scanner) (*entities.ActivityLog, error) {
		var (
			a         entities.ActivityLog
			createdAt int64
		)
		if err := row.Scan(&a.ID, &a.UserID, &a.UserName, &a.Action, &createdAt); err != nil {
			return nil, err
		}
		a.CreatedAt = fromMillis(createdAt)
		return &a, nil
	}, stmt)
}

type alertRepo struct{ s *Store }

var _ repositories.AlertRepository = (*alertRepo)(nil)

const alertColumns = `id, type, severity, title, message, entity_id, material_id, project_id, is_read,
	is_dismissed, action_url, created_at`

func scanAlert(row scanner) (*entities.Alert, error) {
	var (
		a               entities.Alert
		read, dismissed int
		createdAt       int64
	)
	if err := row.Scan(&a.ID, &a.Type, &a.Severity, &a.Title, &a.Message, &a.EntityID, &a.MaterialID,
		&a.ProjectID, &read, &dismissed, &a.ActionURL, &createdAt); err != nil {
		return nil, err
	}
	a.IsRead = read == 1
	a.IsDismissed = dismissed == 1
	a.CreatedAt = fromMillis(createdAt)
	return &a, nil
}

func (r *alertRepo) CreateAlert(ctx context.Context, a *entities.Alert) error {
	defer r.s.timed("insert", "alert")()

	_, err := r.s.q.ExecContext(ctx,
		`INSERT INTO alerts (`+alertColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Type, a.Severity, a.Title, a.Message, a.EntityID, a.MaterialID, a.ProjectID,
		boolInt(a.IsRead), boolInt(a.IsDismissed), a.ActionURL, toMillis(a.CreatedAt))
	return mapWriteError(err, "alert "+a.ID)
}

func (r *alertRepo) GetAlert(ctx context.Context, id string) (*entities.Alert, error) {
	defer r.s.timed("select", "alert")()

	a, err := scanAlert(r.s.q.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = ?`, id))
	if err != nil {
		return nil, mapReadError(err, "alert "+id)
	}
	return a, nil
}

func (r *alertRepo) UpdateAlert(ctx context.Context, a *entities.Alert) error {
	defer r.s.timed("update", "alert")()

	res, err := r.s.q.ExecContext(ctx,
		`UPDATE alerts SET severity = ?, title = ?, message = ?, is_read = ?, is_dismissed = ?, action_url = ?
		 WHERE id = ?`,
		a.Severity, a.Title, a.Message, boolInt(a.IsRead), boolInt(a.IsDismissed), a.ActionURL, a.ID)
	if err != nil {
		return mapWriteError(err, "alert "+a.ID)
	}
	return requireAffected(res, "alert "+a.ID)
}

func (r *alertRepo) ListAlerts(ctx context.Context, filter repositories.AlertFilter) ([]*entities.Alert, error) {
	defer r.s.timed("select", "alert")()

	q := &query{}
	if !filter.IncludeDismissed {
		q.add("is_dismissed = 0")
	}
	if filter.Type != "" {
		q.add("type = ?", filter.Type)
	}
	return collect(ctx, r.s.q, "alerts", scanAlert,
		`SELECT `+alertColumns+` FROM alerts`+q.clause()+` ORDER BY created_at DESC, id ASC`, q.args...)
}

func (r *alertRepo) FindOpenAlert(ctx context.Context, alertType entities.AlertType, entityID string) (*entities.Alert, error) {
	defer r.s.timed("select", "alert")()

	a, err := scanAlert(r.s.q.QueryRowContext(ctx,
		`SELECT `+alertColumns+` FROM alerts WHERE type = ? AND entity_id = ? AND is_dismissed = 0
		 ORDER BY created_at DESC LIMIT 1`, alertType, entityID))
	if err != nil {
		return nil, mapReadError(err, fmt.Sprintf("open %s alert for %s", alertType, entityID))
	}
	return a, nil
}

type settingsRepo struct{ s *Store }

var _ repositories.SettingsRepository = (*settingsRepo)(nil)

// GetSystemConfig returns the stored settings, or the defaults before the first save
func (r *settingsRepo) GetSystemConfig(ctx context.Context) (entities.SystemConfig, error) {
	defer r.s.timed("select", "system_config")()

	var data string
	err := r.s.q.QueryRowContext(ctx, `SELECT data FROM system_config WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.DefaultSystemConfig(), nil
	}
	if err != nil {
		return entities.SystemConfig{}, fmt.Errorf("read system config: %w", err)
	}
	cfg := entities.DefaultSystemConfig()
	if err := fromJSON(data, &cfg); err != nil {
		return entities.SystemConfig{}, err
	}
	return cfg, nil
}

func (r *settingsRepo) SaveSystemConfig(ctx context.Context, cfg entities.SystemConfig) error {
	defer r.s.timed("upsert", "system_config")()

	data, err := toJSON(cfg)
	if err != nil {
		return err
	}
	_, err = r.s.q.ExecContext(ctx,
		`INSERT INTO system_config (id, data) VALUES (1, ?) ON CONFLICT(id) DO UPDATE SET data = excluded.data`, data)
	if err != nil {
		return fmt.Errorf("save system config: %w", err)
	}
	return nil
}
