// Package synchronizer keeps the paginated, filterable alarm list in step with
// the store. State changes go through Reduce; the Synchronizer runs the effects
// Reduce asks for.
package synchronizer

import (
	"fmt"

	"github.com/telhawk-systems/alarm-console/console/internal/alertbox"
	"github.com/telhawk-systems/alarm-console/console/internal/models"
	"github.com/telhawk-systems/alarm-console/console/internal/paginator"
)

// Phase is what the synchronizer is waiting on.
type Phase int

const (
	Idle Phase = iota
	Loading
	Deleting
)

func (p Phase) String() string {
	switch p {
	case Loading:
		return "loading"
	case Deleting:
		return "deleting"
	default:
		return "idle"
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// State is the alarm list view.
type State struct {
	Phase Phase `json:"phase"`

	// Seq identifies the most recently issued fetch; only its result is applied.
	Seq uint64 `json:"seq"`

	// Refetch asks for one more fetch once the current operation completes.
	Refetch bool `json:"-"`
	Stopped bool `json:"stopped"`
	Paused  bool `json:"paused"`

	Filter []string          `json:"filter,omitempty"`
	Page   paginator.State   `json:"page"`
	Rows   []models.TableRow `json:"rows"`

	PendingDelete string `json:"pending_delete,omitempty"`
	DeletingID    string `json:"deleting_id,omitempty"`

	Reachable   bool   `json:"reachable"`
	StoreStatus string `json:"store_status,omitempty"`
}

// NewState returns an empty list on page 1.
func NewState(perPage, maxVisible int) State {
	return State{
		Page: paginator.New(perPage, maxVisible),
		Rows: []models.TableRow{},
	}
}

// Filtered reports whether an id filter is active.
func (s State) Filtered() bool {
	return len(s.Filter) > 0
}

// Event is an input to Reduce.
type Event interface {
	event()
}

type (
	Tick           struct{}
	FetchSucceeded struct {
		Seq   uint64
		Rows  []models.TableRow
		Total int
	}
	FetchFailed struct {
		Seq uint64
		Err error
	}
	StoreUnreachable struct {
		Seq    uint64
		Status string
	}
	StoreReachable struct {
		Status string
	}
	FilterSet struct {
		IDs []string
	}
	FilterCleared   struct{}
	PageSelected    struct{ Page int }
	PauseToggled    struct{}
	DeleteRequested struct{ ID string }
	DeleteCancelled struct{}
	DeleteConfirmed struct{}
	DeleteSucceeded struct{ ID string }
	DeleteFailed    struct {
		ID  string
		Err error
	}
	Stopped struct{}
)

func (Tick) event()             {}
func (FetchSucceeded) event()   {}
func (FetchFailed) event()      {}
func (StoreUnreachable) event() {}
func (StoreReachable) event()   {}
func (FilterSet) event()        {}
func (FilterCleared) event()    {}
func (PageSelected) event()     {}
func (PauseToggled) event()     {}
func (DeleteRequested) event()  {}
func (DeleteCancelled) event()  {}
func (DeleteConfirmed) event()  {}
func (DeleteSucceeded) event()  {}
func (DeleteFailed) event()     {}
func (Stopped) event()          {}

// Effect is work Reduce asks the runtime to do.
type Effect interface {
	effect()
}

// FetchEffect loads the alarms for Filter, or the page Page when unfiltered.
type FetchEffect struct {
	Seq    uint64
	Filter []string
	Page   paginator.State
}

// From is the offset of the requested page.
func (f FetchEffect) From() int { return f.Page.Offset() }

// Size is the requested page size.
func (f FetchEffect) Size() int { return f.Page.PerPage }

type DeleteEffect struct {
	ID string
}

type AlertEffect struct {
	Message    string
	Severity   alertbox.Severity
	Persistent bool
}

func (FetchEffect) effect()  {}
func (DeleteEffect) effect() {}
func (AlertEffect) effect()  {}

// Messages shown when a delete confirmation cannot proceed.
const (
	msgNothingToDelete = "No alarm selected for deletion"
	msgBusy            = "Still processing previous request, try again later"
)

// Reduce applies ev to s. It is pure: all I/O is expressed as effects.
func Reduce(s State, ev Event) (State, []Effect) {
	if s.Stopped {
		return s, nil
	}

	switch ev := ev.(type) {
	case Tick:
		if s.Phase != Idle {
			return s, nil
		}
		return startFetch(s)

	case FetchSucceeded:
		if s.Phase != Loading || ev.Seq != s.Seq {
			return s, nil
		}
		s.Phase = Idle
		s.Rows = ev.Rows
		if s.Rows == nil {
			s.Rows = []models.TableRow{}
		}
		s.Page = s.Page.WithTotal(ev.Total)
		return followUp(s, nil)

	case FetchFailed:
		if s.Phase != Loading || ev.Seq != s.Seq {
			return s, nil
		}
		s.Phase = Idle
		return followUp(s, []Effect{AlertEffect{
			Message:  fmt.Sprintf("Failed to load alarms: %v", ev.Err),
			Severity: alertbox.Danger,
		}})

	case StoreUnreachable:
		if s.Phase != Loading || ev.Seq != s.Seq {
			return s, nil
		}
		s.Phase = Idle
		s.Refetch = false
		s.Reachable = false
		s.StoreStatus = ev.Status
		return s, []Effect{AlertEffect{Message: ev.Status, Severity: alertbox.Danger, Persistent: true}}

	case StoreReachable:
		if s.Reachable && s.StoreStatus == ev.Status {
			return s, nil
		}
		s.Reachable = true
		s.StoreStatus = ev.Status
		return s, []Effect{AlertEffect{Message: ev.Status, Severity: alertbox.Success, Persistent: true}}

	case FilterSet:
		s.Filter = append([]string(nil), ev.IDs...)
		s.Page = s.Page.Select(1)
		return fetchOrDefer(s)

	case FilterCleared:
		s.Filter = nil
		s.Page = s.Page.Select(1)
		return fetchOrDefer(s)

	case PageSelected:
		s.Page = s.Page.Select(ev.Page)
		return fetchOrDefer(s)

	case PauseToggled:
		s.Paused = !s.Paused
		return s, nil

	case DeleteRequested:
		s.PendingDelete = ev.ID
		return s, nil

	case DeleteCancelled:
		s.PendingDelete = ""
		return s, nil

	case DeleteConfirmed:
		if s.PendingDelete == "" {
			return s, []Effect{AlertEffect{Message: msgNothingToDelete, Severity: alertbox.Warning}}
		}
		if s.Phase != Idle {
			return s, []Effect{AlertEffect{Message: msgBusy, Severity: alertbox.Warning}}
		}
		s.Phase = Deleting
		s.DeletingID = s.PendingDelete
		s.PendingDelete = ""
		return s, []Effect{DeleteEffect{ID: s.DeletingID}}

	case DeleteSucceeded:
		if s.Phase != Deleting || ev.ID != s.DeletingID {
			return s, nil
		}
		s.Phase = Idle
		s.DeletingID = ""
		s.Rows = removeRow(s.Rows, ev.ID)
		if !s.Filtered() {
			s.Page = s.Page.WithTotal(s.Page.TotalItems - 1)
		}
		return followUp(s, []Effect{AlertEffect{
			Message:  fmt.Sprintf("Alarm %s deleted", ev.ID),
			Severity: alertbox.Success,
		}})

	case DeleteFailed:
		if s.Phase != Deleting || ev.ID != s.DeletingID {
			return s, nil
		}
		s.Phase = Idle
		s.DeletingID = ""
		return followUp(s, []Effect{AlertEffect{
			Message:  fmt.Sprintf("Failed to delete alarm %s: %v", ev.ID, ev.Err),
			Severity: alertbox.Danger,
		}})

	case Stopped:
		s.Stopped = true
		s.Refetch = false
		return s, nil
	}

	return s, nil
}

func startFetch(s State) (State, []Effect) {
	s.Seq++
	s.Phase = Loading
	s.Refetch = false
	return s, []Effect{FetchEffect{
		Seq:    s.Seq,
		Filter: append([]string(nil), s.Filter...),
		Page:   s.Page,
	}}
}

// fetchOrDefer fetches now when idle, otherwise after the running operation.
func fetchOrDefer(s State) (State, []Effect) {
	if s.Phase == Idle {
		return startFetch(s)
	}
	s.Refetch = true
	return s, nil
}

// followUp appends the deferred fetch, if one was requested.
func followUp(s State, effects []Effect) (State, []Effect) {
	if !s.Refetch {
		return s, effects
	}
	s, fetch := startFetch(s)
	return s, append(effects, fetch...)
}

func removeRow(rows []models.TableRow, id string) []models.TableRow {
	out := make([]models.TableRow, 0, len(rows))
	for _, r := range rows {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}
