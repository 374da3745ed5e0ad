// Package detail loads a single alarm with its per-rule event counts and the
// events behind one of its stages, and applies operator status and tag changes.
package detail

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/telhawk-systems/alarm-console/common/logging"
	"github.com/telhawk-systems/alarm-console/console/internal/alertbox"
	"github.com/telhawk-systems/alarm-console/console/internal/audit"
	"github.com/telhawk-systems/alarm-console/console/internal/countcache"
	"github.com/telhawk-systems/alarm-console/console/internal/deeplink"
	"github.com/telhawk-systems/alarm-console/console/internal/metrics"
	"github.com/telhawk-systems/alarm-console/console/internal/models"
	"github.com/telhawk-systems/alarm-console/console/internal/notify"
	"github.com/telhawk-systems/alarm-console/console/internal/paginator"
	"github.com/telhawk-systems/alarm-console/console/internal/store"
)

var (
	// ErrStillProcessing rejects a stage load while another is running.
	ErrStillProcessing = errors.New("still processing previous search")

	// ErrChangeDisabled means no values are configured for the field.
	ErrChangeDisabled = errors.New("change disabled")

	// ErrValueNotAllowed means the value is not in the configured list.
	ErrValueNotAllowed = errors.New("value not allowed")
)

const (
	msgStillProcessing = "Still processing previous search, try again later"

	// DefaultSettleDelay gives the store time to make a write visible to search.
	DefaultSettleDelay = time.Second

	// AlarmEventChunk is the page size used to walk a stage's alarm events.
	AlarmEventChunk = 1000
)

// Store is the part of the store client the loader reads and writes through.
type Store interface {
	GetAlarm(ctx context.Context, id string) (*models.Alarm, error)
	GetAlarmEventsPage(ctx context.Context, alarmID string, stage, from, size int) (*store.AlarmEventPage, error)
	GetEventsByIDs(ctx context.Context, ids []string) ([]models.Event, error)
	UpdateAlarmStatus(ctx context.Context, id, status string) error
	UpdateAlarmTag(ctx context.Context, id, tag string) error
}

// Config configures a Loader.
type Config struct {
	Statuses    []string
	Tags        []string
	SettleDelay time.Duration
	Indices     store.IndexSet
	KibanaURL   string
}

// Deps are the Loader's collaborators. Counter defaults to Store when it can
// count; Audit and Notifier are optional.
type Deps struct {
	Store    Store
	Counter  countcache.Counter
	Alerts   *alertbox.Surface
	Audit    audit.Recorder
	Notifier *notify.Notifier
	Logger   *logging.Logger

	// Now and Sleep replace the clock in tests.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// Loader builds Detail views.
type Loader struct {
	store    Store
	counter  countcache.Counter
	alerts   *alertbox.Surface
	audit    audit.Recorder
	notifier *notify.Notifier
	logger   *logging.Logger
	links    deeplink.Builder
	cfg      Config
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error

	progressLoading atomic.Bool
}

func New(cfg Config, deps Deps) *Loader {
	if cfg.SettleDelay == 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}
	if cfg.Indices.Alarms == "" {
		cfg.Indices = store.DefaultIndexSet()
	}
	if deps.Counter == nil {
		deps.Counter, _ = deps.Store.(countcache.Counter)
	}
	if deps.Alerts == nil {
		deps.Alerts = alertbox.New()
	}
	if deps.Audit == nil {
		deps.Audit = audit.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Sleep == nil {
		deps.Sleep = sleep
	}

	return &Loader{
		store:    deps.Store,
		counter:  deps.Counter,
		alerts:   deps.Alerts,
		audit:    deps.Audit,
		notifier: deps.Notifier,
		logger:   deps.Logger.Component("detail"),
		links:    deeplink.New(cfg.KibanaURL),
		cfg:      cfg,
		now:      deps.Now,
		sleep:    deps.Sleep,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Load fetches the alarm, resolves every rule's event count and loads the
// events of the first rule's stage.
func (l *Loader) Load(ctx context.Context, id string) (*Detail, error) {
	d, err := l.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(d.Rules) == 0 {
		metrics.DetailLoadsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
		return d, nil
	}

	first := d.Rules[0]
	events, err := l.LoadStageEvents(ctx, id, first.Stage, first.EventsCount)
	if err != nil {
		metrics.DetailLoadsTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		return nil, err
	}
	d.Stage = events
	metrics.DetailLoadsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	return d, nil
}

// Fetch loads the alarm and its rule counts without any events.
func (l *Loader) Fetch(ctx context.Context, id string) (*Detail, error) {
	log := l.logger.With(logging.AlarmID(id))

	alarm, err := l.store.GetAlarm(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrAlarmNotFound) {
			l.alerts.Show(fmt.Sprintf("Alarm %s not found", id), alertbox.Warning, false)
		} else {
			log.WarnContext(ctx, "failed to load alarm", logging.Error(err))
			l.alerts.Show(fmt.Sprintf("Failed to load alarm %s: %v", id, err), alertbox.Danger, false)
		}
		metrics.DetailLoadsTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		return nil, err
	}

	if err := l.ResolveEventCounts(ctx, alarm); err != nil {
		log.WarnContext(ctx, "failed to count correlated events", logging.Error(err))
		l.alerts.Show(fmt.Sprintf("Failed to count events of alarm %s: %v", id, err), alertbox.Danger, false)
		metrics.DetailLoadsTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		return nil, err
	}

	return l.build(*alarm), nil
}

// ResolveEventCounts fills EventsCount on every rule. Finished rules take their
// occurrence; the rest are counted concurrently. It returns once all counts are
// in.
func (l *Loader) ResolveEventCounts(ctx context.Context, alarm *models.Alarm) error {
	g, gctx := errgroup.WithContext(ctx)

	for i := range alarm.Rules {
		rule := &alarm.Rules[i]
		if rule.Finished() {
			rule.EventsCount = rule.Occurrence
			metrics.EventCountsTotal.WithLabelValues(metrics.SourceOccurrence).Inc()
			continue
		}
		if l.counter == nil {
			return fmt.Errorf("count stage %d: no counter configured", rule.Stage)
		}

		g.Go(func() error {
			n, err := l.counter.CountCorrelatedEvents(gctx, alarm.ID, rule.Stage)
			if err != nil {
				return fmt.Errorf("count stage %d: %w", rule.Stage, err)
			}
			rule.EventsCount = n
			return nil
		})
	}

	return g.Wait()
}

// LoadStageEvents loads up to allSize alarm events of a stage and the raw
// events they reference. Only one load runs at a time.
func (l *Loader) LoadStageEvents(ctx context.Context, alarmID string, stage, allSize int) (*StageEvents, error) {
	if !l.progressLoading.CompareAndSwap(false, true) {
		l.alerts.Show(msgStillProcessing, alertbox.Warning, false)
		return nil, ErrStillProcessing
	}
	defer l.progressLoading.Store(false)

	log := l.logger.With(logging.AlarmID(alarmID), logging.Stage(stage))
	result := &StageEvents{
		AlarmID: alarmID,
		Stage:   stage,
		Link:    l.links.CorrelationStage(l.cfg.Indices.AlarmEvents, alarmID, stage),
		Events:  []EventRow{},
	}
	if allSize <= 0 {
		return result, nil
	}

	pages := paginator.NewPaginator(func(ctx context.Context, from, size int) ([]models.AlarmEvent, int, error) {
		page, err := l.store.GetAlarmEventsPage(ctx, alarmID, stage, from, size)
		if err != nil {
			return nil, 0, err
		}
		return page.Events, page.Total, nil
	}, AlarmEventChunk)

	alarmEvents, err := pages.All(ctx, allSize)
	if err != nil {
		log.WarnContext(ctx, "failed to load alarm events", logging.Error(err))
		l.alerts.Show(fmt.Sprintf("Failed to load events of stage %d: %v", stage, err), alertbox.Danger, false)
		return nil, err
	}
	result.Total = len(alarmEvents)

	ids := make([]string, 0, len(alarmEvents))
	for _, ae := range alarmEvents {
		ids = append(ids, ae.EventID)
	}

	events, err := l.eventsByIDs(ctx, ids)
	if err != nil {
		log.WarnContext(ctx, "failed to resolve events", logging.Error(err))
		l.alerts.Show(fmt.Sprintf("Failed to load events of stage %d: %v", stage, err), alertbox.Danger, false)
		return nil, err
	}

	for _, ev := range events {
		result.Events = append(result.Events, l.eventRow(ev))
	}
	log.DebugContext(ctx, "stage events loaded", logging.Count(len(result.Events)))
	return result, nil
}

// eventsByIDs resolves ids in chunks the store accepts, keeping the order of ids.
func (l *Loader) eventsByIDs(ctx context.Context, ids []string) ([]models.Event, error) {
	byID := make(map[string]models.Event, len(ids))
	for start := 0; start < len(ids); start += store.MaxResultSize {
		end := start + store.MaxResultSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk, err := l.store.GetEventsByIDs(ctx, ids[start:end])
		if err != nil {
			return nil, err
		}
		for _, ev := range chunk {
			byID[ev.EventID] = ev
		}
	}

	out := make([]models.Event, 0, len(byID))
	seen := make(map[string]bool, len(byID))
	for _, id := range ids {
		ev, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, ev)
	}
	return out, nil
}

// ChangeStatus sets the alarm's status and returns the refreshed detail. The
// passed detail is never modified.
func (l *Loader) ChangeStatus(ctx context.Context, d *Detail, status string) (*Detail, error) {
	return l.change(ctx, d, fieldStatus, status)
}

// ChangeTag sets the alarm's tag and returns the refreshed detail.
func (l *Loader) ChangeTag(ctx context.Context, d *Detail, tag string) (*Detail, error) {
	return l.change(ctx, d, fieldTag, tag)
}
