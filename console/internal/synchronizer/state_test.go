package synchronizer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/alarm-console/console/internal/alertbox"
	"github.com/telhawk-systems/alarm-console/console/internal/models"
)

func rows(ids ...string) []models.TableRow {
	out := make([]models.TableRow, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.TableRow{ID: id, Title: "alarm " + id})
	}
	return out
}

func loading(t *testing.T) State {
	t.Helper()
	s, effects := Reduce(NewState(25, 5), Tick{})
	require.Len(t, effects, 1)
	require.Equal(t, Loading, s.Phase)
	return s
}

func TestReduce_TickStartsFetch(t *testing.T) {
	s, effects := Reduce(NewState(25, 5), Tick{})

	assert.Equal(t, Loading, s.Phase)
	assert.Equal(t, uint64(1), s.Seq)
	require.Len(t, effects, 1)
	fetch, ok := effects[0].(FetchEffect)
	require.True(t, ok)
	assert.Equal(t, uint64(1), fetch.Seq)
	assert.Empty(t, fetch.Filter)
	assert.Equal(t, 0, fetch.From())
	assert.Equal(t, 25, fetch.Size())
}

func TestReduce_TickWhileBusyIsIgnored(t *testing.T) {
	tests := []struct {
		name  string
		phase Phase
	}{
		{"loading", Loading},
		{"deleting", Deleting},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewState(25, 5)
			s.Phase = tt.phase
			s.Seq = 4

			next, effects := Reduce(s, Tick{})
			assert.Empty(t, effects)
			assert.Equal(t, s.Seq, next.Seq)
			assert.False(t, next.Refetch, "a tick must not be queued")
		})
	}
}

func TestReduce_FetchSucceeded(t *testing.T) {
	s := loading(t)

	s, effects := Reduce(s, FetchSucceeded{Seq: 1, Rows: rows("a", "b"), Total: 60})
	assert.Empty(t, effects)
	assert.Equal(t, Idle, s.Phase)
	assert.Len(t, s.Rows, 2)
	assert.Equal(t, 60, s.Page.TotalItems)
	assert.Equal(t, 3, s.Page.Pages())
}

func TestReduce_StaleResultsDropped(t *testing.T) {
	s := loading(t)

	next, effects := Reduce(s, FetchSucceeded{Seq: 7, Rows: rows("x")})
	assert.Empty(t, effects)
	assert.Equal(t, Loading, next.Phase)
	assert.Empty(t, next.Rows)

	next, effects = Reduce(s, FetchFailed{Seq: 7, Err: errors.New("boom")})
	assert.Empty(t, effects)
	assert.Equal(t, Loading, next.Phase)

	next, effects = Reduce(s, StoreUnreachable{Seq: 7, Status: "down"})
	assert.Empty(t, effects)
	assert.Equal(t, Loading, next.Phase)
}

func TestReduce_StoppedDropsEverything(t *testing.T) {
	s := loading(t)
	s, _ = Reduce(s, Stopped{})
	require.True(t, s.Stopped)

	for _, ev := range []Event{
		FetchSucceeded{Seq: 1, Rows: rows("a")},
		Tick{},
		FilterSet{IDs: []string{"123456789"}},
		DeleteRequested{ID: "a"},
	} {
		next, effects := Reduce(s, ev)
		assert.Empty(t, effects, "%T", ev)
		assert.Equal(t, s.Seq, next.Seq)
		assert.Empty(t, next.Rows)
	}
}

func TestReduce_FetchFailedAlerts(t *testing.T) {
	s := loading(t)

	s, effects := Reduce(s, FetchFailed{Seq: 1, Err: errors.New("timeout")})
	assert.Equal(t, Idle, s.Phase)
	require.Len(t, effects, 1)
	alert := effects[0].(AlertEffect)
	assert.Equal(t, alertbox.Danger, alert.Severity)
	assert.False(t, alert.Persistent)
	assert.Contains(t, alert.Message, "timeout")
}

func TestReduce_FilterDuringFetchRefetchesOnce(t *testing.T) {
	s := loading(t)

	s, effects := Reduce(s, FilterSet{IDs: []string{"alarm-0001", "alarm-0002"}})
	assert.Empty(t, effects)
	assert.True(t, s.Refetch)

	// a second change still yields a single follow-up
	s, effects = Reduce(s, PageSelected{Page: 1})
	assert.Empty(t, effects)

	s, effects = Reduce(s, FetchSucceeded{Seq: 1, Rows: rows("a", "b", "c"), Total: 3})
	require.Len(t, effects, 1)
	fetch := effects[0].(FetchEffect)
	assert.Equal(t, uint64(2), fetch.Seq)
	assert.Equal(t, []string{"alarm-0001", "alarm-0002"}, fetch.Filter)
	assert.Equal(t, Loading, s.Phase)
	assert.False(t, s.Refetch)

	// the first fetch's late duplicate is now stale
	next, effects := Reduce(s, FetchSucceeded{Seq: 1, Rows: rows("z")})
	assert.Empty(t, effects)
	assert.Equal(t, s, next)
}

func TestReduce_FilterWhileIdleFetchesImmediately(t *testing.T) {
	s := NewState(25, 5)
	s.Page = s.Page.WithTotal(100).Select(3)

	s, effects := Reduce(s, FilterSet{IDs: []string{"alarm-0001"}})
	require.Len(t, effects, 1)
	assert.Equal(t, 1, s.Page.CurrentPage)
	assert.True(t, s.Filtered())

	s, _ = Reduce(s, FetchSucceeded{Seq: s.Seq, Rows: rows("alarm-0001"), Total: 1})
	s, effects = Reduce(s, FilterCleared{})
	require.Len(t, effects, 1)
	assert.False(t, s.Filtered())
	assert.Empty(t, effects[0].(FetchEffect).Filter)
}

func TestReduce_PageSelected(t *testing.T) {
	s := NewState(10, 5)
	s.Page = s.Page.WithTotal(45)

	s, effects := Reduce(s, PageSelected{Page: 4})
	require.Len(t, effects, 1)
	assert.Equal(t, 30, effects[0].(FetchEffect).From())

	s, _ = Reduce(s, FetchSucceeded{Seq: s.Seq, Rows: rows("a"), Total: 45})
	s, effects = Reduce(s, PageSelected{Page: 99})
	require.Len(t, effects, 1)
	assert.Equal(t, 5, s.Page.CurrentPage)
}

func TestReduce_PauseToggled(t *testing.T) {
	s, effects := Reduce(NewState(25, 5), PauseToggled{})
	assert.Empty(t, effects)
	assert.True(t, s.Paused)

	s, _ = Reduce(s, PauseToggled{})
	assert.False(t, s.Paused)
}

func TestReduce_StoreReachability(t *testing.T) {
	s := loading(t)

	s, effects := Reduce(s, StoreUnreachable{Seq: 1, Status: "Disconnected from ES es:9200: refused"})
	assert.Equal(t, Idle, s.Phase)
	assert.False(t, s.Reachable)
	require.Len(t, effects, 1)
	alert := effects[0].(AlertEffect)
	assert.Equal(t, alertbox.Danger, alert.Severity)
	assert.True(t, alert.Persistent)
	assert.Equal(t, "Disconnected from ES es:9200: refused", alert.Message)

	s, effects = Reduce(s, StoreReachable{Status: "Connected to ES es:9200"})
	assert.True(t, s.Reachable)
	require.Len(t, effects, 1)
	alert = effects[0].(AlertEffect)
	assert.Equal(t, alertbox.Success, alert.Severity)
	assert.True(t, alert.Persistent)

	_, effects = Reduce(s, StoreReachable{Status: "Connected to ES es:9200"})
	assert.Empty(t, effects, "unchanged status is not re-announced")
}

func TestReduce_DeleteFlow(t *testing.T) {
	s := loading(t)
	s, _ = Reduce(s, FetchSucceeded{Seq: 1, Rows: rows("a", "b", "c"), Total: 3})

	s, effects := Reduce(s, DeleteRequested{ID: "b"})
	assert.Empty(t, effects)
	assert.Equal(t, "b", s.PendingDelete)

	s, effects = Reduce(s, DeleteConfirmed{})
	require.Len(t, effects, 1)
	assert.Equal(t, DeleteEffect{ID: "b"}, effects[0])
	assert.Equal(t, Deleting, s.Phase)
	assert.Empty(t, s.PendingDelete)

	s, effects = Reduce(s, DeleteSucceeded{ID: "b"})
	assert.Equal(t, Idle, s.Phase)
	assert.Equal(t, rows("a", "c"), s.Rows)
	assert.Equal(t, 2, s.Page.TotalItems)
	require.Len(t, effects, 1)
	alert := effects[0].(AlertEffect)
	assert.Equal(t, alertbox.Success, alert.Severity)
	assert.False(t, alert.Persistent)
	assert.Contains(t, alert.Message, "b")
}

func TestReduce_DeleteFailedKeepsRow(t *testing.T) {
	s := loading(t)
	s, _ = Reduce(s, FetchSucceeded{Seq: 1, Rows: rows("a", "b"), Total: 2})
	s, _ = Reduce(s, DeleteRequested{ID: "a"})
	s, _ = Reduce(s, DeleteConfirmed{})

	s, effects := Reduce(s, DeleteFailed{ID: "a", Err: errors.New("bulk rejected")})
	assert.Equal(t, Idle, s.Phase)
	assert.Equal(t, rows("a", "b"), s.Rows)
	require.Len(t, effects, 1)
	alert := effects[0].(AlertEffect)
	assert.Equal(t, alertbox.Danger, alert.Severity)
	assert.Contains(t, alert.Message, "a")
	assert.Contains(t, alert.Message, "bulk rejected")
}

func TestReduce_DeleteConfirmRejected(t *testing.T) {
	t.Run("nothing pending", func(t *testing.T) {
		s, effects := Reduce(NewState(25, 5), DeleteConfirmed{})
		assert.Equal(t, Idle, s.Phase)
		require.Len(t, effects, 1)
		alert := effects[0].(AlertEffect)
		assert.Equal(t, alertbox.Warning, alert.Severity)
		assert.False(t, alert.Persistent)
	})

	t.Run("busy", func(t *testing.T) {
		s := loading(t)
		s, _ = Reduce(s, DeleteRequested{ID: "a"})

		s, effects := Reduce(s, DeleteConfirmed{})
		assert.Equal(t, Loading, s.Phase)
		assert.Equal(t, "a", s.PendingDelete)
		require.Len(t, effects, 1)
		assert.Equal(t, alertbox.Warning, effects[0].(AlertEffect).Severity)
	})

	t.Run("cancelled", func(t *testing.T) {
		s, _ := Reduce(NewState(25, 5), DeleteRequested{ID: "a"})
		s, _ = Reduce(s, DeleteCancelled{})
		assert.Empty(t, s.PendingDelete)

		_, effects := Reduce(s, DeleteConfirmed{})
		require.Len(t, effects, 1)
		assert.IsType(t, AlertEffect{}, effects[0])
	})
}

func TestReduce_FilterDuringDeleteFetchesAfterwards(t *testing.T) {
	s, _ := Reduce(NewState(25, 5), DeleteRequested{ID: "a"})
	s, _ = Reduce(s, DeleteConfirmed{})

	s, effects := Reduce(s, FilterSet{IDs: []string{"alarm-0001"}})
	assert.Empty(t, effects)

	s, effects = Reduce(s, DeleteSucceeded{ID: "a"})
	require.Len(t, effects, 2)
	assert.IsType(t, AlertEffect{}, effects[0])
	assert.IsType(t, FetchEffect{}, effects[1])
	assert.Equal(t, Loading, s.Phase)
}

func TestReduce_DeleteResultForOtherIDIgnored(t *testing.T) {
	s, _ := Reduce(NewState(25, 5), DeleteRequested{ID: "a"})
	s, _ = Reduce(s, DeleteConfirmed{})

	next, effects := Reduce(s, DeleteSucceeded{ID: "b"})
	assert.Empty(t, effects)
	assert.Equal(t, Deleting, next.Phase)
}
