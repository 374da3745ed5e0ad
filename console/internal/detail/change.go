package detail

import (
	"context"
	"fmt"
	"slices"

	"github.com/telhawk-systems/alarm-console/common/logging"
	"github.com/telhawk-systems/alarm-console/console/internal/alertbox"
	"github.com/telhawk-systems/alarm-console/console/internal/audit"
	"github.com/telhawk-systems/alarm-console/console/internal/metrics"
)

type field struct {
	name    string
	action  audit.Action
	current func(d *Detail) string
	allowed func(cfg Config) []string
	update  func(l *Loader, ctx context.Context, id, value string) error
	notify  func(l *Loader, ctx context.Context, id, oldValue, newValue string)
}

var (
	fieldStatus = field{
		name:    "status",
		action:  audit.ActionStatusChanged,
		current: func(d *Detail) string { return d.Alarm.Status },
		allowed: func(cfg Config) []string { return cfg.Statuses },
		update: func(l *Loader, ctx context.Context, id, value string) error {
			return l.store.UpdateAlarmStatus(ctx, id, value)
		},
		notify: func(l *Loader, ctx context.Context, id, oldValue, newValue string) {
			l.notifier.StatusUpdated(ctx, id, oldValue, newValue)
		},
	}

	fieldTag = field{
		name:    "tag",
		action:  audit.ActionTagChanged,
		current: func(d *Detail) string { return d.Alarm.Tag },
		allowed: func(cfg Config) []string { return cfg.Tags },
		update: func(l *Loader, ctx context.Context, id, value string) error {
			return l.store.UpdateAlarmTag(ctx, id, value)
		},
		notify: func(l *Loader, ctx context.Context, id, oldValue, newValue string) {
			l.notifier.TagUpdated(ctx, id, oldValue, newValue)
		},
	}
)

func (l *Loader) change(ctx context.Context, d *Detail, f field, value string) (*Detail, error) {
	id := d.Alarm.ID
	old := f.current(d)
	log := l.logger.With(logging.AlarmID(id), "field", f.name)

	if value == old {
		return d, nil
	}

	allowed := f.allowed(l.cfg)
	if len(allowed) == 0 {
		l.alerts.Show(fmt.Sprintf("Changing the %s is disabled", f.name), alertbox.Warning, false)
		metrics.AlarmUpdatesTotal.WithLabelValues(f.name, metrics.OutcomeSkipped).Inc()
		return nil, fmt.Errorf("%s: %w", f.name, ErrChangeDisabled)
	}
	if !slices.Contains(allowed, value) {
		l.alerts.Show(fmt.Sprintf("%q is not a valid %s", value, f.name), alertbox.Warning, false)
		metrics.AlarmUpdatesTotal.WithLabelValues(f.name, metrics.OutcomeSkipped).Inc()
		return nil, fmt.Errorf("%s %q: %w", f.name, value, ErrValueNotAllowed)
	}

	err := f.update(l, ctx, id, value)
	if aerr := l.audit.Record(ctx, audit.NewEntry(ctx, f.action, id, old, value, err)); aerr != nil {
		log.WarnContext(ctx, "failed to record audit entry", logging.Error(aerr))
	}
	if err != nil {
		log.WarnContext(ctx, "alarm update failed", logging.Error(err))
		l.alerts.Show(fmt.Sprintf("Failed to change %s of alarm %s: %v", f.name, id, err), alertbox.Danger, false)
		metrics.AlarmUpdatesTotal.WithLabelValues(f.name, metrics.OutcomeFailure).Inc()
		return nil, err
	}

	metrics.AlarmUpdatesTotal.WithLabelValues(f.name, metrics.OutcomeSuccess).Inc()
	f.notify(l, ctx, id, old, value)
	log.InfoContext(ctx, "alarm updated", "old", old, "new", value)

	if err := l.sleep(ctx, l.cfg.SettleDelay); err != nil {
		return nil, err
	}

	fresh, err := l.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	fresh.Stage = d.Stage
	l.alerts.Show(fmt.Sprintf("Alarm %s %s changed to %s", id, f.name, value), alertbox.Success, false)
	return fresh, nil
}
