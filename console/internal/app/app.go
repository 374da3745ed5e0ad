// Package app assembles the console components from a loaded configuration.
// The daemon and alarmctl share it.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/telhawk-systems/alarm-console/common/config"
	"github.com/telhawk-systems/alarm-console/common/logging"
	"github.com/telhawk-systems/alarm-console/common/messaging"
	natsclient "github.com/telhawk-systems/alarm-console/common/messaging/nats"
	"github.com/telhawk-systems/alarm-console/console/internal/alertbox"
	"github.com/telhawk-systems/alarm-console/console/internal/audit"
	"github.com/telhawk-systems/alarm-console/console/internal/countcache"
	"github.com/telhawk-systems/alarm-console/console/internal/detail"
	"github.com/telhawk-systems/alarm-console/console/internal/health"
	"github.com/telhawk-systems/alarm-console/console/internal/notify"
	"github.com/telhawk-systems/alarm-console/console/internal/store"
	"github.com/telhawk-systems/alarm-console/console/internal/synchronizer"
)

// App holds the wired components. Optional integrations that are disabled or
// unreachable are left nil and the console runs without them.
type App struct {
	Config *config.Config
	Logger *logging.Logger

	Store    *store.Client
	Health   *health.Monitor
	Alerts   *alertbox.Surface
	Counts   *countcache.Cache
	Audit    audit.Recorder
	AuditLog *audit.PostgresRepository
	Bus      *natsclient.Client
	Notifier *notify.Notifier
	Details  *detail.Loader
	List     *synchronizer.Synchronizer

	closers []func() error
}

// New connects the optional integrations and builds every component. Only an
// invalid store URL is fatal; the store itself may still be down.
func New(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	indices := store.NewIndexSet(cfg.Indices.Alarms, cfg.Indices.AlarmEvents, cfg.Indices.Events)
	client, err := store.NewClient(store.Config{
		URL:      cfg.Elasticsearch,
		Insecure: cfg.OpenSearch.Insecure,
		Timeout:  cfg.OpenSearch.Timeout,
		Indices:  indices,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create store client: %w", err)
	}

	a := &App{
		Config: cfg,
		Logger: logger,
		Store:  client,
		Alerts: alertbox.New(alertbox.WithTTL(cfg.Alerts.TransientTTL)),
		Audit:  audit.Nop{},
	}
	a.Health = health.NewMonitor(client, client.Connection(), logger)

	a.connectRedis(ctx)
	a.connectDatabase(ctx)
	a.connectNATS()

	var pub messaging.Publisher
	if a.Bus != nil {
		pub = a.Bus
	}
	a.Notifier = notify.New(pub, logger)

	var counter countcache.Counter = client
	if a.Counts.IsEnabled() {
		counter = countcache.NewCachedCounter(a.Counts, client)
	}

	a.Details = detail.New(detail.Config{
		Statuses:    cfg.Statuses,
		Tags:        cfg.Tags,
		SettleDelay: cfg.Detail.SettleDelay,
		Indices:     indices,
		KibanaURL:   cfg.Kibana,
	}, detail.Deps{
		Store:    client,
		Counter:  counter,
		Alerts:   a.Alerts,
		Audit:    a.Audit,
		Notifier: a.Notifier,
		Logger:   logger,
	})

	deps := synchronizer.Deps{
		Store:    client,
		Health:   a.Health,
		Alerts:   a.Alerts,
		Audit:    a.Audit,
		Notifier: a.Notifier,
		Logger:   logger,
	}
	if a.Counts.IsEnabled() {
		deps.Counts = a.Counts
	}
	a.List = synchronizer.New(synchronizer.Config{
		Period:          cfg.Poller.Interval,
		PageSize:        cfg.Poller.PageSize,
		MaxVisiblePages: cfg.Poller.MaxVisiblePages,
	}, deps)

	return a, nil
}

func (a *App) connectRedis(ctx context.Context) {
	if !a.Config.Redis.Enabled {
		return
	}
	rdb, err := countcache.NewClient(ctx, a.Config.Redis.URL)
	if err != nil {
		a.Logger.Warn("count cache disabled", logging.Error(err))
		return
	}
	a.Counts = countcache.New(rdb, a.Config.Redis.CountTTL, a.Logger)
	a.closers = append(a.closers, rdb.Close)
	a.Logger.Info("count cache enabled", "ttl", a.Config.Redis.CountTTL.String())
}

func (a *App) connectDatabase(ctx context.Context) {
	if !a.Config.Database.Enabled || a.Config.Database.URL == "" {
		return
	}
	if err := audit.Migrate(a.Config.Database.URL); err != nil {
		a.Logger.Warn("audit trail disabled", logging.Error(err))
		return
	}
	repo, err := audit.NewPostgresRepository(ctx, a.Config.Database.URL)
	if err != nil {
		a.Logger.Warn("audit trail disabled", logging.Error(err))
		return
	}
	a.Audit = repo
	a.AuditLog = repo
	a.closers = append(a.closers, repo.Close)
	a.Logger.Info("audit trail enabled")
}

func (a *App) connectNATS() {
	if !a.Config.NATS.Enabled {
		return
	}
	natsCfg := natsclient.DefaultConfig()
	natsCfg.URL = a.Config.NATS.URL
	natsCfg.MaxReconnects = a.Config.NATS.MaxReconnects
	if a.Config.NATS.ReconnectWait > 0 {
		natsCfg.ReconnectWait = a.Config.NATS.ReconnectWait
	}

	bus, err := natsclient.NewClient(natsCfg, a.Logger)
	if err != nil {
		a.Logger.Warn("alarm change notifications disabled", logging.Error(err))
		return
	}
	a.Bus = bus
	a.closers = append(a.closers, bus.Drain)
	a.Logger.Info("alarm change notifications enabled", "url", a.Config.NATS.URL)
}

// FollowChanges refreshes the alarm list whenever any console reports a
// change. It is a no-op without a message bus.
func (a *App) FollowChanges() (messaging.Subscription, error) {
	if a.Bus == nil {
		return nil, nil
	}
	return notify.Listen(a.Bus, func(ctx context.Context, subject string, change notify.AlarmChange) {
		a.Logger.DebugContext(ctx, "alarm changed elsewhere", "subject", subject, logging.AlarmID(change.AlarmID))
		a.List.Refresh()
	})
}

// Close releases the integrations in reverse order of connection.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
