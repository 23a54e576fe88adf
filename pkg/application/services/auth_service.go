package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vsinha/cims/pkg/domain/entities"
	"github.com/vsinha/cims/pkg/domain/repositories"
	"github.com/vsinha/cims/pkg/infrastructure/security"
)

const activityRetention = 100

// Mailer delivers password reset tokens
type Mailer interface {
	SendPasswordReset(ctx context.Context, user *entities.User, token string) error
}

// LogMailer writes reset tokens to the log instead of sending mail
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer creates a mailer that only logs
func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendPasswordReset(_ context.Context, user *entities.User, token string) error {
	m.logger.Info("password reset requested",
		zap.String("user_id", user.ID),
		zap.String("reset_path", "/reset-password/"+token))
	return nil
}

// RegisterInput carries the fields of a new account
type RegisterInput struct {
	Name     string        `json:"name"`
	Email    string        `json:"email"`
	Password string        `json:"password"`
	Role     entities.Role `json:"role,omitempty"`
}

// Session is a signed-in user with its tokens
type Session struct {
	User   *entities.User      `json:"user"`
	Tokens *security.TokenPair `json:"tokens"`
}

// AuthService manages accounts, sessions and password resets
type AuthService struct {
	deps     Dependencies
	tokens   *security.TokenIssuer
	hasher   *security.PasswordHasher
	mailer   Mailer
	resetTTL time.Duration
}

// NewAuthService creates a new auth service
func NewAuthService(deps Dependencies, tokens *security.TokenIssuer, hasher *security.PasswordHasher, mailer Mailer, resetTTL time.Duration) *AuthService {
	deps = deps.withDefaults()
	if mailer == nil {
		mailer = NewLogMailer(deps.Logger)
	}
	if resetTTL <= 0 {
		resetTTL = time.Hour
	}
	return &AuthService{deps: deps, tokens: tokens, hasher: hasher, mailer: mailer, resetTTL: resetTTL}
}

// Register creates an account. Only an administrator may choose a role other
// than the default; actor is nil for self-registration.
func (s *AuthService) Register(ctx context.Context, actor *entities.User, in RegisterInput) (*Session, error) {
	role := in.Role
	if role == "" {
		role = entities.DefaultRegistrationRole
	}
	if role != entities.DefaultRegistrationRole && (actor == nil || !actor.HasRole(entities.RoleAdmin)) {
		return nil, newError(ErrForbidden, "Only administrators can assign roles")
	}

	user, err := s.createUser(ctx, in.Name, in.Email, in.Password, role)
	if err != nil {
		return nil, err
	}
	return s.session(user)
}

// EnsureAdmin creates an administrator unless an account with the email exists
func (s *AuthService) EnsureAdmin(ctx context.Context, name, email, password string) (*entities.User, bool, error) {
	existing, err := s.deps.Repos.Users.GetUserByEmail(ctx, email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to look up %s: %w", email, err)
	}
	user, err := s.createUser(ctx, name, email, password, entities.RoleAdmin)
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}

func (s *AuthService) createUser(ctx context.Context, name, email, password string, role entities.Role) (*entities.User, error) {
	now := s.deps.now()
	user := &entities.User{
		ID:        s.deps.NewID(),
		Name:      strings.TrimSpace(name),
		Email:     entities.NormalizeEmail(email),
		Role:      role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := user.Validate(); err != nil {
		return nil, invalid("%v", err)
	}

	hash, err := s.hasher.Hash(password)
	if errors.Is(err, security.ErrPasswordTooWeak) {
		return nil, invalid("%v", err)
	}
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash

	if err := s.deps.Repos.Users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrAlreadyExists) {
			return nil, conflict("Email already in use")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	s.deps.Logger.Info("user registered", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

// Login checks credentials and deactivates the account after too many failures
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, invalid("Please provide email and password")
	}

	user, err := s.deps.Repos.Users.GetUserByEmail(ctx, email)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, newError(ErrUnauthorized, "Incorrect email or password")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.IsActive {
		return nil, newError(ErrForbidden, "Your account has been deactivated")
	}

	if err := s.hasher.Verify(user.PasswordHash, password); err != nil {
		return nil, s.recordFailedLogin(ctx, user)
	}

	now := s.deps.now()
	user.FailedLoginAttempts = 0
	user.LastLoginAt = &now
	user.UpdatedAt = now
	if err := s.deps.Repos.Users.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}
	return s.session(user)
}

func (s *AuthService) recordFailedLogin(ctx context.Context, user *entities.User) error {
	cfg, err := s.deps.Repos.Settings.GetSystemConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	user.FailedLoginAttempts++
	user.UpdatedAt = s.deps.now()
	locked := cfg.AutoLockAfterFailedAttempts > 0 && user.FailedLoginAttempts >= cfg.AutoLockAfterFailedAttempts
	if locked {
		user.IsActive = false
	}
	if err := s.deps.Repos.Users.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("failed to record failed login: %w", err)
	}

	if locked {
		s.deps.Logger.Warn("account locked after failed logins",
			zap.String("user_id", user.ID),
			zap.Int("attempts", user.FailedLoginAttempts))
		return newError(ErrForbidden, "Account locked after %d failed login attempts", user.FailedLoginAttempts)
	}
	return newError(ErrUnauthorized, "Incorrect email or password")
}

// Refresh exchanges a refresh token for a new token pair
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := s.tokens.Verify(refreshToken, security.RefreshToken)
	if err != nil {
		return nil, newError(ErrUnauthorized, "Invalid refresh token")
	}
	user, err := s.activeUser(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	return s.session(user)
}

// Authenticate resolves an access token to an active user
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*entities.User, error) {
	if accessToken == "" {
		return nil, newError(ErrUnauthorized, "You are not logged in! Please log in to get access.")
	}
	claims, err := s.tokens.Verify(accessToken, security.AccessToken)
	if errors.Is(err, security.ErrTokenExpired) {
		return nil, newError(ErrUnauthorized, "Your token has expired! Please log in again.")
	}
	if err != nil {
		return nil, newError(ErrUnauthorized, "Invalid token. Please log in again!")
	}
	return s.activeUser(ctx, claims.UserID)
}

func (s *AuthService) activeUser(ctx context.Context, id string) (*entities.User, error) {
	user, err := s.deps.Repos.Users.GetUser(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, newError(ErrUnauthorized, "The user belonging to this token no longer exists.")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.IsActive {
		return nil, newError(ErrForbidden, "Your account has been deactivated")
	}
	return user, nil
}

// RecordActivity appends an activity log entry for an authenticated request
func (s *AuthService) RecordActivity(ctx context.Context, user *entities.User, action string) error {
	return s.deps.Repos.Activities.RecordActivity(ctx, &entities.ActivityLog{
		ID:        s.deps.NewID(),
		UserID:    user.ID,
		UserName:  user.Name,
		Action:    action,
		CreatedAt: s.deps.now(),
	})
}

// ChangePassword replaces the password after checking the current one
func (s *AuthService) ChangePassword(ctx context.Context, user *entities.User, current, next string) (*Session, error) {
	if err := s.hasher.Verify(user.PasswordHash, current); err != nil {
		return nil, newError(ErrUnauthorized, "Your current password is wrong")
	}
	if err := s.setPassword(ctx, user, next); err != nil {
		return nil, err
	}
	return s.session(user)
}

// ForgotPassword issues a reset token. Unknown addresses succeed silently so
// that the endpoint does not reveal which accounts exist.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.deps.Repos.Users.GetUserByEmail(ctx, email)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}

	token, hash, err := security.NewResetToken()
	if err != nil {
		return err
	}
	expiry := s.deps.now().Add(s.resetTTL)
	user.ResetTokenHash = hash
	user.ResetTokenExpiry = &expiry
	user.UpdatedAt = s.deps.now()
	if err := s.deps.Repos.Users.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}
	return s.mailer.SendPasswordReset(ctx, user, token)
}

// ResetPassword sets a new password using a reset token
func (s *AuthService) ResetPassword(ctx context.Context, token, password string) (*Session, error) {
	user, err := s.deps.Repos.Users.GetUserByResetTokenHash(ctx, security.HashToken(token))
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, invalid("Token is invalid or has expired")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user.ResetTokenExpiry == nil || !s.deps.now().Before(*user.ResetTokenExpiry) {
		return nil, invalid("Token is invalid or has expired")
	}
	// a deactivated account keeps its password and gets no session
	if !user.IsActive {
		return nil, newError(ErrUnauthorized, "Your account has been deactivated")
	}

	user.ResetTokenHash = ""
	user.ResetTokenExpiry = nil
	user.FailedLoginAttempts = 0
	if err := s.setPassword(ctx, user, password); err != nil {
		return nil, err
	}
	return s.session(user)
}

func (s *AuthService) setPassword(ctx context.Context, user *entities.User, password string) error {
	hash, err := s.hasher.Hash(password)
	if errors.Is(err, security.ErrPasswordTooWeak) {
		return invalid("%v", err)
	}
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	user.UpdatedAt = s.deps.now()
	if err := s.deps.Repos.Users.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// RecentActivity returns the latest activity log entries
func (s *AuthService) RecentActivity(ctx context.Context, limit int) ([]*entities.ActivityLog, error) {
	if limit <= 0 || limit > activityRetention {
		limit = activityRetention
	}
	return s.deps.Repos.Activities.ListRecentActivity(ctx, limit)
}

func (s *AuthService) session(user *entities.User) (*Session, error) {
	pair, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Tokens: pair}, nil
}
