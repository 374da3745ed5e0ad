package synchronizer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/telhawk-systems/alarm-console/common/logging"
	"github.com/telhawk-systems/alarm-console/console/internal/alertbox"
	"github.com/telhawk-systems/alarm-console/console/internal/audit"
	"github.com/telhawk-systems/alarm-console/console/internal/metrics"
	"github.com/telhawk-systems/alarm-console/console/internal/models"
	"github.com/telhawk-systems/alarm-console/console/internal/notify"
	"github.com/telhawk-systems/alarm-console/console/internal/paginator"
	"github.com/telhawk-systems/alarm-console/console/internal/store"
)

// ErrDeleteRejected is returned by ConfirmDelete when no delete could start.
var ErrDeleteRejected = errors.New("delete rejected")

// AlarmStore is the part of the store client the list needs.
type AlarmStore interface {
	ListAlarms(ctx context.Context, from, size int) (*store.AlarmPage, error)
	SearchAlarms(ctx context.Context, ids []string) ([]models.Alarm, error)
	DeleteAlarm(ctx context.Context, id string) (*store.DeleteReport, error)
}

// HealthChecker is satisfied by *health.Monitor.
type HealthChecker interface {
	Check(ctx context.Context) (bool, error)
	Status() string
}

// CountInvalidator drops cached per-rule counts of a deleted alarm.
type CountInvalidator interface {
	Invalidate(ctx context.Context, alarmID string) error
}

// Config configures the synchronizer.
type Config struct {
	Period          time.Duration
	PageSize        int
	MaxVisiblePages int
	// StepInterval is how often the countdown advances and transient alerts
	// are expired.
	StepInterval time.Duration
}

// Deps are the collaborators of a Synchronizer. Audit, Notifier and Counts
// are optional.
type Deps struct {
	Store    AlarmStore
	Health   HealthChecker
	Alerts   *alertbox.Surface
	Audit    audit.Recorder
	Notifier *notify.Notifier
	Counts   CountInvalidator
	Logger   *logging.Logger
}

// Synchronizer runs Reduce against the store on a countdown.
type Synchronizer struct {
	store     AlarmStore
	health    HealthChecker
	alerts    *alertbox.Surface
	audit     audit.Recorder
	notifier  *notify.Notifier
	counts    CountInvalidator
	logger    *logging.Logger
	pages     *paginator.Paginator[models.TableRow]
	countdown *Countdown
	step      time.Duration

	mu      sync.Mutex
	state   State
	ctx     context.Context
	running bool

	stopChan chan struct{}
	wg       sync.WaitGroup
	inflight sync.WaitGroup
}

// View is a point-in-time copy of the list for rendering.
type View struct {
	State
	Pages            int             `json:"pages"`
	Window           []int           `json:"window"`
	Countdown        int             `json:"countdown"`
	CountdownRunning bool            `json:"countdown_running"`
	Alert            *alertbox.Alert `json:"alert,omitempty"`
}

func New(cfg Config, deps Deps) *Synchronizer {
	if cfg.Period == 0 {
		cfg.Period = DefaultPeriod
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 25
	}
	if cfg.MaxVisiblePages <= 0 {
		cfg.MaxVisiblePages = 5
	}
	if cfg.StepInterval == 0 {
		cfg.StepInterval = time.Second
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

	s := &Synchronizer{
		store:     deps.Store,
		health:    deps.Health,
		alerts:    deps.Alerts,
		audit:     deps.Audit,
		notifier:  deps.Notifier,
		counts:    deps.Counts,
		logger:    deps.Logger.Component("synchronizer"),
		countdown: NewCountdown(cfg.Period),
		step:      cfg.StepInterval,
		state:     NewState(cfg.PageSize, cfg.MaxVisiblePages),
		ctx:       context.Background(),
	}
	s.pages = paginator.NewPaginator(s.listRows, cfg.PageSize)
	return s
}

// Start fetches the first page and starts the countdown loop.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("synchronizer already running")
	}
	if s.state.Stopped {
		s.mu.Unlock()
		return fmt.Errorf("synchronizer stopped")
	}
	s.running = true
	s.ctx = ctx
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "alarm list synchronizer starting", "step", s.step.String())

	s.Refresh()

	s.wg.Add(1)
	go s.run(ctx)
	return nil
}

// Stop halts the countdown loop. Fetches already in flight complete but their
// results are discarded.
func (s *Synchronizer) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("synchronizer not running")
	}
	s.running = false
	close(s.stopChan)
	s.mu.Unlock()

	s.wg.Wait()
	s.dispatch(Stopped{})
	s.logger.Info("alarm list synchronizer stopped")
	return nil
}

// Wait blocks until every fetch and delete started so far has finished.
func (s *Synchronizer) Wait() {
	s.inflight.Wait()
}

func (s *Synchronizer) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.step)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.alerts.Expire()
			if s.countdown.Step() {
				s.dispatch(Tick{})
			}
		}
	}
}

// Refresh fetches now unless a fetch or delete is already running, and
// restarts the countdown.
func (s *Synchronizer) Refresh() {
	s.countdown.Reset()
	s.dispatch(Tick{})
}

func (s *Synchronizer) SetFilter(ids []string) {
	s.dispatch(FilterSet{IDs: ids})
}

func (s *Synchronizer) ClearFilter() {
	s.dispatch(FilterCleared{})
}

func (s *Synchronizer) SelectPage(page int) {
	s.dispatch(PageSelected{Page: page})
}

func (s *Synchronizer) TogglePause() {
	s.dispatch(PauseToggled{})
}

func (s *Synchronizer) RequestDelete(id string) {
	s.dispatch(DeleteRequested{ID: id})
}

func (s *Synchronizer) CancelDelete() {
	s.dispatch(DeleteCancelled{})
}

// ConfirmDelete deletes the pending alarm and waits for the cascade to finish.
// ctx carries the operator details recorded in the audit trail.
func (s *Synchronizer) ConfirmDelete(ctx context.Context) (*store.DeleteReport, error) {
	_, effects := s.apply(DeleteConfirmed{})

	var del *DeleteEffect
	rejection := "synchronizer stopped"
	for _, eff := range effects {
		switch e := eff.(type) {
		case DeleteEffect:
			del = &e
		case AlertEffect:
			rejection = e.Message
			s.execute(eff)
		default:
			s.execute(eff)
		}
	}
	if del == nil {
		return nil, fmt.Errorf("%w: %s", ErrDeleteRejected, rejection)
	}

	s.inflight.Add(1)
	defer s.inflight.Done()
	return s.runDelete(ctx, del.ID)
}

// Snapshot returns the current list, countdown and alert.
func (s *Synchronizer) Snapshot() View {
	s.mu.Lock()
	st := s.state
	st.Rows = append([]models.TableRow(nil), s.state.Rows...)
	st.Filter = append([]string(nil), s.state.Filter...)
	s.mu.Unlock()

	v := View{
		State:            st,
		Pages:            st.Page.Pages(),
		Window:           st.Page.Window(),
		Countdown:        s.countdown.Remaining(),
		CountdownRunning: s.countdown.Running(),
	}
	if a, ok := s.alerts.Current(); ok {
		v.Alert = &a
	}
	return v
}

// Alerts is the surface the synchronizer reports to.
func (s *Synchronizer) Alerts() *alertbox.Surface {
	return s.alerts
}

// apply runs Reduce under the lock and returns the state it started from.
func (s *Synchronizer) apply(ev Event) (State, []Effect) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.state
	next, effects := Reduce(prev, ev)
	s.state = next
	s.countdown.SetPaused(next.Paused)
	s.countdown.SetFiltered(next.Filtered())
	return prev, effects
}

func (s *Synchronizer) dispatch(ev Event) State {
	prev, effects := s.apply(ev)
	for _, eff := range effects {
		s.execute(eff)
	}
	return prev
}

func (s *Synchronizer) baseContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

func (s *Synchronizer) execute(eff Effect) {
	switch e := eff.(type) {
	case AlertEffect:
		if e.Severity == alertbox.Danger {
			s.logger.Warn("alarm list alert", "message", e.Message)
		}
		s.alerts.Show(e.Message, e.Severity, e.Persistent)
	case FetchEffect:
		s.inflight.Add(1)
		go s.runFetch(s.baseContext(), e)
	case DeleteEffect:
		s.inflight.Add(1)
		go func() {
			defer s.inflight.Done()
			_, _ = s.runDelete(s.baseContext(), e.ID)
		}()
	}
}

func (s *Synchronizer) runFetch(ctx context.Context, eff FetchEffect) {
	defer s.inflight.Done()

	release := s.countdown.Hold()
	defer release()

	log := s.logger.With(logging.Seq(eff.Seq))

	if ok, err := s.health.Check(ctx); !ok {
		log.DebugContext(ctx, "skipping fetch, store unreachable", logging.Error(err))
		metrics.PollsTotal.WithLabelValues(metrics.OutcomeSkipped).Inc()
		s.dispatch(StoreUnreachable{Seq: eff.Seq, Status: s.health.Status()})
		return
	}
	s.dispatch(StoreReachable{Status: s.health.Status()})

	start := time.Now()
	rows, total, err := s.fetch(ctx, eff)
	metrics.FetchDuration.Observe(time.Since(start).Seconds())

	var prev State
	if err != nil {
		log.WarnContext(ctx, "alarm list fetch failed", logging.Error(err))
		prev = s.dispatch(FetchFailed{Seq: eff.Seq, Err: err})
	} else {
		prev = s.dispatch(FetchSucceeded{Seq: eff.Seq, Rows: rows, Total: total})
	}

	switch {
	case prev.Stopped || prev.Phase != Loading || prev.Seq != eff.Seq:
		log.DebugContext(ctx, "discarding stale fetch result")
		metrics.PollsTotal.WithLabelValues(metrics.OutcomeStale).Inc()
	case err != nil:
		metrics.PollsTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
	default:
		log.DebugContext(ctx, "alarm list refreshed", logging.Count(len(rows)))
		metrics.PollsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	}
}

func (s *Synchronizer) fetch(ctx context.Context, eff FetchEffect) ([]models.TableRow, int, error) {
	if len(eff.Filter) > 0 {
		alarms, err := s.store.SearchAlarms(ctx, eff.Filter)
		if err != nil {
			return nil, 0, err
		}
		return toRows(alarms), len(alarms), nil
	}

	rows, page, err := s.pages.Fetch(ctx, eff.Page)
	if err != nil {
		return nil, 0, err
	}
	return rows, page.TotalItems, nil
}

func (s *Synchronizer) listRows(ctx context.Context, from, size int) ([]models.TableRow, int, error) {
	page, err := s.store.ListAlarms(ctx, from, size)
	if err != nil {
		return nil, 0, err
	}
	return toRows(page.Alarms), page.Total, nil
}

func (s *Synchronizer) runDelete(ctx context.Context, id string) (*store.DeleteReport, error) {
	release := s.countdown.Hold()
	defer release()

	log := s.logger.With(logging.AlarmID(id))

	report, err := s.store.DeleteAlarm(ctx, id)

	entry := audit.NewEntry(ctx, audit.ActionDeleted, id, "", "", err)
	if aerr := s.audit.Record(ctx, entry); aerr != nil {
		log.WarnContext(ctx, "failed to record audit entry", logging.Error(aerr))
	}

	if err != nil {
		log.ErrorContext(ctx, "alarm delete failed", logging.Error(err))
		metrics.DeletesTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		s.dispatch(DeleteFailed{ID: id, Err: err})
		return report, err
	}

	log.InfoContext(ctx, "alarm deleted",
		"batches", report.Batches,
		"alarm_events", report.AlarmEvents,
		"events", report.Events,
	)
	metrics.DeletesTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()

	if s.counts != nil {
		if cerr := s.counts.Invalidate(ctx, id); cerr != nil {
			log.WarnContext(ctx, "failed to invalidate cached counts", logging.Error(cerr))
		}
	}
	s.notifier.Deleted(ctx, id, report.AlarmEvents, report.Events)
	s.dispatch(DeleteSucceeded{ID: id})
	return report, nil
}

func toRows(alarms []models.Alarm) []models.TableRow {
	rows := make([]models.TableRow, 0, len(alarms))
	for _, a := range alarms {
		rows = append(rows, models.NewTableRow(a))
	}
	return rows
}
