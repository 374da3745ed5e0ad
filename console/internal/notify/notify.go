// Package notify publishes alarm changes made through the console and lets
// other consoles react to them.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/telhawk-systems/alarm-console/common/httputil"
	"github.com/telhawk-systems/alarm-console/common/logging"
	"github.com/telhawk-systems/alarm-console/common/messaging"
	"github.com/telhawk-systems/alarm-console/common/middleware"
	"github.com/telhawk-systems/alarm-console/console/internal/metrics"
)

// AlarmChange is the payload of every console.alarms.* message.
type AlarmChange struct {
	AlarmID    string    `json:"alarm_id"`
	Field      string    `json:"field,omitempty"`
	OldValue   string    `json:"old_value,omitempty"`
	NewValue   string    `json:"new_value,omitempty"`
	Operator   string    `json:"operator,omitempty"`
	Source     string    `json:"source,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`

	// Counts of removed documents, set on deletes.
	AlarmEvents int `json:"alarm_events,omitempty"`
	Events      int `json:"events,omitempty"`
}

// Notifier publishes AlarmChange messages. A nil publisher disables it.
type Notifier struct {
	pub    messaging.Publisher
	logger *logging.Logger
}

func New(pub messaging.Publisher, logger *logging.Logger) *Notifier {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Notifier{pub: pub, logger: logger.Component("notify")}
}

// Enabled reports whether messages are actually published.
func (n *Notifier) Enabled() bool {
	return n != nil && n.pub != nil
}

func (n *Notifier) StatusUpdated(ctx context.Context, alarmID, oldValue, newValue string) {
	n.publish(ctx, messaging.SubjectAlarmStatusUpdated, AlarmChange{
		AlarmID: alarmID, Field: "status", OldValue: oldValue, NewValue: newValue,
	})
}

func (n *Notifier) TagUpdated(ctx context.Context, alarmID, oldValue, newValue string) {
	n.publish(ctx, messaging.SubjectAlarmTagUpdated, AlarmChange{
		AlarmID: alarmID, Field: "tag", OldValue: oldValue, NewValue: newValue,
	})
}

func (n *Notifier) Deleted(ctx context.Context, alarmID string, alarmEvents, events int) {
	n.publish(ctx, messaging.SubjectAlarmDeleted, AlarmChange{
		AlarmID: alarmID, AlarmEvents: alarmEvents, Events: events,
	})
}

// publish is best effort: failures are logged and counted, never returned.
func (n *Notifier) publish(ctx context.Context, subject string, change AlarmChange) {
	if !n.Enabled() {
		return
	}

	change.OccurredAt = time.Now().UTC()
	if rc := httputil.GetRequestContext(ctx); rc != nil {
		change.Operator = rc.Operator
		change.Source = rc.SourceType.String()
	}

	data, err := json.Marshal(change)
	if err != nil {
		n.logger.ErrorContext(ctx, "marshal alarm change", logging.Error(err))
		return
	}

	msg := &messaging.Message{Subject: subject, Data: data}
	if id := middleware.GetRequestID(ctx); id != "" {
		msg.Metadata = map[string]string{middleware.RequestIDHeader: id}
	}

	if err := n.pub.PublishMsg(ctx, msg); err != nil {
		metrics.NotificationsTotal.WithLabelValues(subject, metrics.OutcomeFailure).Inc()
		n.logger.WarnContext(ctx, "publish alarm change failed",
			"subject", subject,
			logging.AlarmID(change.AlarmID),
			logging.Error(err),
		)
		return
	}
	metrics.NotificationsTotal.WithLabelValues(subject, metrics.OutcomeSuccess).Inc()
}

// Listen delivers every alarm change published by any console to fn.
func Listen(sub messaging.Subscriber, fn func(ctx context.Context, subject string, change AlarmChange)) (messaging.Subscription, error) {
	return sub.Subscribe(messaging.SubjectAlarmsAll, func(ctx context.Context, msg *messaging.Message) error {
		var change AlarmChange
		if err := json.Unmarshal(msg.Data, &change); err != nil {
			return fmt.Errorf("decode alarm change on %s: %w", msg.Subject, err)
		}
		if id := msg.Metadata[middleware.RequestIDHeader]; id != "" {
			ctx = middleware.WithRequestID(ctx, id)
		}
		fn(ctx, msg.Subject, change)
		return nil
	})
}
