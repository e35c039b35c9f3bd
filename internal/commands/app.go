package commands

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/kasa/internal/config"
	"github.com/Kerhoff/kasa/internal/gateway"
	"github.com/Kerhoff/kasa/internal/metrics"
	"github.com/Kerhoff/kasa/internal/notify"
	"github.com/Kerhoff/kasa/internal/repository"
	"github.com/Kerhoff/kasa/internal/repository/memory"
	"github.com/Kerhoff/kasa/internal/repository/postgres"
	"github.com/Kerhoff/kasa/internal/service"
	"github.com/Kerhoff/kasa/pkg/logger"
)

// app is what every command that touches the ledger needs
type app struct {
	cfg     *config.Config
	logger  *logrus.Logger
	store   *repository.Store
	seed    *config.Seed
	metrics *metrics.Metrics
	// demo approves every charge; only in-memory runs set it.
	demo    bool
	closeFn func()
}

func (a *app) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// openApp loads the configuration and opens the store. With inMemory the
// ledger lives in process memory, no database is needed and the payment
// gateway approves every charge.
func openApp(inMemory bool) (*app, error) {
	cfg, err := config.Load(!inMemory)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	l := logger.New(cfg.LogLevel, cfg.LogFormat)

	a := &app{cfg: cfg, logger: l, metrics: metrics.New(prometheus.NewRegistry())}

	if cfg.SeedFile != "" {
		if a.seed, err = config.LoadSeed(cfg.SeedFile); err != nil {
			return nil, err
		}
	}

	if inMemory {
		l.Warn("Using the in-memory store; nothing will be persisted")
		a.store = memory.New().Repositories()
		a.demo = true
		return a, nil
	}

	db, err := config.NewDatabase(cfg.DatabaseURL, l)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := db.Migrate(cfg.MigrationsPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	a.store = postgres.NewStore(db.DB)
	a.closeFn = func() { db.Close() }
	return a, nil
}

// service builds the service over the store, sending notifications to n
// in addition to the log.
func (a *app) service(n notify.Notifier) *service.Service {
	var notifier notify.Notifier = notify.NewLog(a.logger)
	if n != nil {
		notifier = notify.Multi{notifier, n}
	}

	var gw gateway.Gateway = gateway.NewOffline(a.logger)
	if a.demo {
		gw = gateway.NewDemo(a.logger)
	}
	deps := service.Deps{
		Gateway:  gateway.WithTimeout(gw, a.cfg.GatewayTimeout),
		Notifier: notifier,
		Metrics:  a.metrics,
		Workers:  a.cfg.SchedulerWorkers,
	}
	if a.seed != nil {
		deps.EventTypes = a.seed.LifecycleEvents
	}
	return service.New(a.store, a.logger, deps)
}

// applySeed loads the configured seed file into the store, if there is one
func (a *app) applySeed(ctx context.Context, svc *service.Service) error {
	if a.seed == nil {
		return nil
	}
	res, err := svc.ApplySeed(ctx, a.seed)
	if err != nil {
		return fmt.Errorf("apply seed %s: %w", a.cfg.SeedFile, err)
	}
	a.logger.WithFields(logrus.Fields{
		"owner_id":      res.Owner.ID,
		"plans_created": res.PlansCreated,
		"plans_kept":    res.PlansKept,
	}).Info("Seed applied")
	return nil
}
