package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vsinha/cims/pkg/application/services"
	domainsvc "github.com/vsinha/cims/pkg/domain/services"
	"github.com/vsinha/cims/pkg/infrastructure/config"
	"github.com/vsinha/cims/pkg/infrastructure/events"
	"github.com/vsinha/cims/pkg/infrastructure/lock"
	"github.com/vsinha/cims/pkg/infrastructure/logging"
	"github.com/vsinha/cims/pkg/infrastructure/metrics"
	"github.com/vsinha/cims/pkg/infrastructure/repositories/sqlite"
	"github.com/vsinha/cims/pkg/infrastructure/security"
)

const eventSource = "cims/api"

// app holds everything a command needs, built from one configuration
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	store   *sqlite.Store
	redis   *redis.Client
	svc     *services.Services
}

func newApp(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Env, cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, metrics: metrics.New()}

	a.store, err = sqlite.Open(ctx, cfg.Database.Path, sqlite.WithQueryObserver(a.metrics))
	if err != nil {
		a.close()
		return nil, err
	}
	logger.Info("database ready", zap.String("path", cfg.Database.Path))

	var locker domainsvc.Locker = lock.NewLocalLocker()
	var sinks []events.Publisher
	if cfg.Redis.URL != "" {
		a.redis, err = lock.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			a.close()
			return nil, err
		}
		locker = lock.NewRedisLocker(a.redis, logger)
		sinks = append(sinks, events.NewRedisPublisher(a.redis, cfg.Redis.EventsChannel, eventSource))
		logger.Info("redis locking enabled", zap.String("events_channel", cfg.Redis.EventsChannel))
	} else {
		logger.Info("redis not configured, using in-process locks")
	}

	tokens, err := security.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessExpiry, cfg.Auth.RefreshExpiry)
	if err != nil {
		a.close()
		return nil, err
	}

	journal := events.NewJournal(logger)
	journal.Subscribe(events.HandlerFunc(func(e events.Event) error {
		logger.Info("alert raised", zap.String("stream", e.StreamID()))
		return nil
	}), events.AlertRaisedEvent)

	deps := services.Dependencies{
		Repos:  a.store.Repositories(),
		Locker: locker,
		Events: events.NewBus(journal, a.metrics, logger, sinks...),
		Logger: logger,
	}
	deps.Codes = domainsvc.NewCodeAllocator(locker,
		domainsvc.WithMaxAttempts(cfg.Codes.MaxAttempts),
		domainsvc.WithLockTTL(cfg.Codes.LockTTL),
		domainsvc.WithLogger(logger))

	a.svc = services.New(deps, services.AuthOptions{
		Tokens:        tokens,
		Hasher:        security.NewPasswordHasher(cfg.Auth.BcryptCost),
		ResetTokenTTL: cfg.Auth.ResetTokenTTL,
		ExpiryWindow:  cfg.Alerts.ExpiryWindow,
	})
	return a, nil
}

// Ping checks the database and, when configured, Redis
func (a *app) Ping(ctx context.Context) error {
	if err := a.store.Ping(ctx); err != nil {
		return err
	}
	if a.redis != nil {
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

func (a *app) close() {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("shutdown cleanup failed", zap.Error(err))
	}
	_ = a.logger.Sync()
}
