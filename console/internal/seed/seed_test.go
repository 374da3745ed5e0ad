package seed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/alarm-console/console/internal/models"
	"github.com/telhawk-systems/alarm-console/console/internal/store"
)

type recordingIndexer struct {
	batches [][]store.Document
	err     error
}

func (r *recordingIndexer) IndexDocuments(_ context.Context, docs []store.Document) error {
	if r.err != nil {
		return r.err
	}
	r.batches = append(r.batches, append([]store.Document(nil), docs...))
	return nil
}

func (r *recordingIndexer) all() []store.Document {
	var out []store.Document
	for _, b := range r.batches {
		out = append(out, b...)
	}
	return out
}

func fixedNow() time.Time {
	return time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
}

func TestRunIndexesAlarmsWithTheirEvents(t *testing.T) {
	idx := &recordingIndexer{}
	r := NewRunner(Config{Alarms: 3, Stages: 3, EventsPerStage: 4, Seed: 42, Now: fixedNow}, idx, nil)

	res, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.AlarmIDs, 3)
	assert.Equal(t, res.AlarmEvents, res.Events)

	var alarms []models.AlarmSource
	alarmEvents := 0
	for _, doc := range idx.all() {
		switch doc.Index {
		case "siem_alarms":
			src, ok := doc.Body.(models.AlarmSource)
			require.True(t, ok)
			assert.Equal(t, doc.ID, src.ID)
			alarms = append(alarms, src)
		case "siem_alarm_events-2024.03.09":
			ae, ok := doc.Body.(models.AlarmEvent)
			require.True(t, ok)
			assert.Contains(t, res.AlarmIDs, ae.AlarmID)
			alarmEvents++
		case "siem_events-2024.03.09":
			_, ok := doc.Body.(models.Event)
			require.True(t, ok)
			assert.NotEmpty(t, doc.ID)
		default:
			t.Fatalf("unexpected index %q", doc.Index)
		}
	}
	require.Len(t, alarms, 3)
	assert.Equal(t, res.AlarmEvents, alarmEvents)

	for _, a := range alarms {
		require.Len(t, a.Rules, 3)
		assert.Equal(t, 1, a.Rules[0].Occurrence)
		assert.Equal(t, models.RuleFinished, a.Rules[0].Status)
		assert.Equal(t, models.RuleFinished, a.Rules[1].Status)
		assert.Equal(t, models.RuleActive, models.DeriveStatus(a.Rules[2], fixedNow()))
		assert.NotEmpty(t, a.AtTimestamp)
	}
}

func TestRunIsReproducibleWithSeed(t *testing.T) {
	run := func() []string {
		idx := &recordingIndexer{}
		res, err := NewRunner(Config{Alarms: 2, Seed: 7, Now: fixedNow}, idx, nil).Run(context.Background())
		require.NoError(t, err)
		return res.AlarmIDs
	}
	assert.Equal(t, run(), run())
}

func TestRunFlushesInBatches(t *testing.T) {
	idx := &recordingIndexer{}
	_, err := NewRunner(Config{Alarms: 5, EventsPerStage: 3, BatchSize: 4, Seed: 1, Now: fixedNow}, idx, nil).Run(context.Background())
	require.NoError(t, err)

	require.Greater(t, len(idx.batches), 1)
	for _, b := range idx.batches {
		assert.LessOrEqual(t, len(b), 4)
	}
}

func TestRunReturnsIndexError(t *testing.T) {
	idx := &recordingIndexer{err: errors.New("bulk rejected")}
	res, err := NewRunner(Config{Alarms: 1, Seed: 1, Now: fixedNow}, idx, nil).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bulk rejected")
	assert.Len(t, res.AlarmIDs, 1)
}

func TestDated(t *testing.T) {
	assert.Equal(t, "siem_events-2024.03.09", dated("siem_events-*", fixedNow()))
	assert.Equal(t, "siem_alarms", dated("siem_alarms", fixedNow()))
}
