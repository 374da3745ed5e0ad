// Package audit records operator changes to alarms.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/telhawk-systems/alarm-console/common/httputil"
	"github.com/telhawk-systems/alarm-console/common/middleware"
)

// Action is the kind of change recorded.
type Action string

const (
	ActionStatusChanged Action = "status_changed"
	ActionTagChanged    Action = "tag_changed"
	ActionDeleted       Action = "deleted"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Entry is one audit record.
type Entry struct {
	ID        uuid.UUID `json:"id"`
	AlarmID   string    `json:"alarm_id"`
	Action    Action    `json:"action"`
	OldValue  string    `json:"old_value,omitempty"`
	NewValue  string    `json:"new_value,omitempty"`
	Operator  string    `json:"operator,omitempty"`
	Source    string    `json:"source"`
	ClientIP  string    `json:"client_ip,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Outcome   string    `json:"outcome"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Recorder persists audit entries.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// NewEntry builds an entry for alarmID, taking operator, source, client IP and
// request id from ctx when the HTTP layer put them there. err sets the outcome.
func NewEntry(ctx context.Context, action Action, alarmID, oldValue, newValue string, err error) Entry {
	e := Entry{
		ID:        uuid.New(),
		AlarmID:   alarmID,
		Action:    action,
		OldValue:  oldValue,
		NewValue:  newValue,
		Source:    httputil.SourceTypeUnknown.String(),
		RequestID: middleware.GetRequestID(ctx),
		Outcome:   OutcomeSuccess,
		CreatedAt: time.Now().UTC(),
	}
	if rc := httputil.GetRequestContext(ctx); rc != nil {
		e.Operator = rc.Operator
		e.Source = rc.SourceType.String()
		e.ClientIP = rc.IPString()
	}
	if err != nil {
		e.Outcome = OutcomeFailure
		e.Error = err.Error()
	}
	return e
}

// Nop discards entries.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }
