package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/vsinha/cims/pkg/domain/entities"
)

// SettingsService reads and updates the system configuration
type SettingsService struct {
	deps Dependencies
}

// NewSettingsService creates a new settings service
func NewSettingsService(deps Dependencies) *SettingsService {
	return &SettingsService{deps: deps.withDefaults()}
}

// Get returns the current configuration, defaults until one is saved
func (s *SettingsService) Get(ctx context.Context) (entities.SystemConfig, error) {
	cfg, err := s.deps.Repos.Settings.GetSystemConfig(ctx)
	if err != nil {
		return cfg, fmt.Errorf("failed to load settings: %w", err)
	}
	return cfg, nil
}

// Update replaces the configuration; only administrators may do so
func (s *SettingsService) Update(ctx context.Context, actor *entities.User, cfg entities.SystemConfig) (entities.SystemConfig, error) {
	if actor == nil || !actor.HasRole(entities.RoleAdmin) {
		return entities.SystemConfig{}, newError(ErrForbidden, "You do not have permission to perform this action")
	}
	cfg.CompanyName = strings.TrimSpace(cfg.CompanyName)
	cfg.BaseCurrency = strings.ToUpper(strings.TrimSpace(cfg.BaseCurrency))
	switch {
	case cfg.CompanyName == "":
		return entities.SystemConfig{}, invalid("Company name is required")
	case len(cfg.BaseCurrency) != 3:
		return entities.SystemConfig{}, invalid("Base currency must be a 3-letter code, got %q", cfg.BaseCurrency)
	case cfg.GRNTolerancePercentage < 0 || cfg.GRNTolerancePercentage > 100:
		return entities.SystemConfig{}, invalid("GRN tolerance must be within 0-100, got %v", cfg.GRNTolerancePercentage)
	case cfg.LowStockThresholdGlobal < 0:
		return entities.SystemConfig{}, invalid("Low stock threshold cannot be negative")
	case cfg.AutoLockAfterFailedAttempts < 0:
		return entities.SystemConfig{}, invalid("Auto lock attempts cannot be negative")
	case cfg.SessionTimeoutMinutes <= 0:
		return entities.SystemConfig{}, invalid("Session timeout must be positive")
	}
	if cfg.DateFormat == "" {
		cfg.DateFormat = entities.DefaultSystemConfig().DateFormat
	}

	if err := s.deps.Repos.Settings.SaveSystemConfig(ctx, cfg); err != nil {
		return entities.SystemConfig{}, fmt.Errorf("failed to save settings: %w", err)
	}
	s.deps.Logger.Info("settings updated",
		zap.String("user_id", actor.ID),
		zap.Float64("grn_tolerance", cfg.GRNTolerancePercentage),
		zap.Int("auto_lock_attempts", cfg.AutoLockAfterFailedAttempts))
	return cfg, nil
}
