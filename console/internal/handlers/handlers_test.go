package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/alarm-console/common/httputil"
	"github.com/telhawk-systems/alarm-console/console/internal/alertbox"
	"github.com/telhawk-systems/alarm-console/console/internal/detail"
	"github.com/telhawk-systems/alarm-console/console/internal/models"
	"github.com/telhawk-systems/alarm-console/console/internal/store"
	"github.com/telhawk-systems/alarm-console/console/internal/synchronizer"
)

type fakeList struct {
	filter    []string
	cleared   int
	page      int
	refreshed int
	pending   string
	deleteErr error
}

func (f *fakeList) Snapshot() synchronizer.View {
	return synchronizer.View{State: synchronizer.State{Filter: f.filter, PendingDelete: f.pending}}
}
func (f *fakeList) Refresh()               { f.refreshed++ }
func (f *fakeList) TogglePause()           {}
func (f *fakeList) SetFilter(ids []string) { f.filter = ids }
func (f *fakeList) ClearFilter()           { f.filter = nil; f.cleared++ }
func (f *fakeList) SelectPage(page int)    { f.page = page }
func (f *fakeList) RequestDelete(id string) {
	f.pending = id
}
func (f *fakeList) CancelDelete() { f.pending = "" }
func (f *fakeList) ConfirmDelete(ctx context.Context) (*store.DeleteReport, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	if f.pending == "" {
		return nil, fmt.Errorf("%w: nothing pending", synchronizer.ErrDeleteRejected)
	}
	return &store.DeleteReport{AlarmID: f.pending, AlarmDeleted: true}, nil
}

func do(t *testing.T, h http.HandlerFunc, pattern, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(pattern, h)

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httputil.ErrorBody {
	t.Helper()
	var body httputil.ErrorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", fmt.Errorf("get: %w", store.ErrAlarmNotFound), http.StatusNotFound, CodeNotFound},
		{"conflict", store.ErrUpdateConflict, http.StatusConflict, CodeConflict},
		{"store 409", &store.StoreError{Op: "update", Status: 409}, http.StatusConflict, CodeConflict},
		{"delete rejected", synchronizer.ErrDeleteRejected, http.StatusConflict, CodeDeleteRejected},
		{"store 503", &store.StoreError{Op: "search", Status: 503}, http.StatusServiceUnavailable, CodeStoreUnavailable},
		{"delete cascade 502", &store.DeleteError{AlarmID: "a", Err: &store.StoreError{Status: 502}}, http.StatusServiceUnavailable, CodeStoreUnavailable},
		{"still processing", detail.ErrStillProcessing, http.StatusTooManyRequests, CodeStillProcessing},
		{"disabled", detail.ErrChangeDisabled, http.StatusBadRequest, CodeChangeRejected},
		{"not allowed", detail.ErrValueNotAllowed, http.StatusBadRequest, CodeChangeRejected},
		{"other", errors.New("malformed response"), http.StatusBadGateway, CodeStoreError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := statusFor(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestAlarmsHandler_SetFilter(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  int
		filter  []string
		cleared int
	}{
		{"valid ids", `{"query":"alarm-0001, alarm-0002,alarm-0001"}`, http.StatusAccepted, []string{"alarm-0001", "alarm-0002"}, 0},
		{"blank clears", `{"query":"  "}`, http.StatusAccepted, nil, 1},
		{"short id", `{"query":"alarm-0001,abc"}`, http.StatusBadRequest, nil, 0},
		{"trailing comma", `{"query":"alarm-0001,"}`, http.StatusBadRequest, nil, 0},
		{"bad json", `{"query":`, http.StatusBadRequest, nil, 0},
		{"unknown field", `{"ids":"alarm-0001"}`, http.StatusBadRequest, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list := &fakeList{}
			h := NewAlarmsHandler(list, nil)

			rec := do(t, h.SetFilter, "PUT /api/alarms/filter", http.MethodPut, "/api/alarms/filter", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.filter, list.filter)
			assert.Equal(t, tt.cleared, list.cleared)
		})
	}
}

func TestAlarmsHandler_SelectPage(t *testing.T) {
	list := &fakeList{}
	h := NewAlarmsHandler(list, nil)

	rec := do(t, h.SelectPage, "PUT /api/alarms/page", http.MethodPut, "/api/alarms/page", `{"page":3}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 3, list.page)

	rec = do(t, h.SelectPage, "PUT /api/alarms/page", http.MethodPut, "/api/alarms/page", `{"page":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAlarmsHandler_DeleteFlow(t *testing.T) {
	list := &fakeList{}
	h := NewAlarmsHandler(list, nil)

	rec := do(t, h.ConfirmDelete, "POST /api/alarms/delete-confirm", http.MethodPost, "/api/alarms/delete-confirm", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, CodeDeleteRejected, decodeError(t, rec).Code)

	rec = do(t, h.RequestDelete, "POST /api/alarms/{id}/delete-request", http.MethodPost, "/api/alarms/alarm-0001/delete-request", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alarm-0001", list.pending)

	rec = do(t, h.ConfirmDelete, "POST /api/alarms/delete-confirm", http.MethodPost, "/api/alarms/delete-confirm", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var report store.DeleteReport
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.Equal(t, "alarm-0001", report.AlarmID)

	list.deleteErr = &store.DeleteError{AlarmID: "alarm-0001", Err: &store.StoreError{Op: "bulk", Status: 503}}
	rec = do(t, h.ConfirmDelete, "POST /api/alarms/delete-confirm", http.MethodPost, "/api/alarms/delete-confirm", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type fakeDetails struct {
	d         *detail.Detail
	loadErr   error
	changeErr error
	stageSize int
	changed   string
}

func (f *fakeDetails) Load(ctx context.Context, id string) (*detail.Detail, error) {
	return f.Fetch(ctx, id)
}

func (f *fakeDetails) Fetch(ctx context.Context, id string) (*detail.Detail, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if f.d.Alarm.ID != id {
		return nil, fmt.Errorf("%w: %s", store.ErrAlarmNotFound, id)
	}
	return f.d, nil
}

func (f *fakeDetails) LoadStageEvents(ctx context.Context, alarmID string, stage, allSize int) (*detail.StageEvents, error) {
	f.stageSize = allSize
	return &detail.StageEvents{AlarmID: alarmID, Stage: stage, Total: allSize, Events: []detail.EventRow{}}, nil
}

func (f *fakeDetails) ChangeStatus(ctx context.Context, d *detail.Detail, status string) (*detail.Detail, error) {
	if f.changeErr != nil {
		return nil, f.changeErr
	}
	f.changed = "status=" + status
	fresh := *d
	fresh.Alarm.Status = status
	return &fresh, nil
}

func (f *fakeDetails) ChangeTag(ctx context.Context, d *detail.Detail, tag string) (*detail.Detail, error) {
	if f.changeErr != nil {
		return nil, f.changeErr
	}
	f.changed = "tag=" + tag
	fresh := *d
	fresh.Alarm.Tag = tag
	return &fresh, nil
}

func sampleDetail() *detail.Detail {
	return &detail.Detail{
		Alarm: models.Alarm{ID: "alarm-123456", Status: "Open"},
		Rules: []detail.RuleView{
			{Rule: models.Rule{Stage: 1, EventsCount: 1}},
			{Rule: models.Rule{Stage: 2, EventsCount: 400}},
		},
	}
}

func TestDetailHandler_Get(t *testing.T) {
	h := NewDetailHandler(&fakeDetails{d: sampleDetail()}, nil)

	rec := do(t, h.Get, "GET /api/alarms/{id}", http.MethodGet, "/api/alarms/alarm-123456", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var d detail.Detail
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&d))
	assert.Equal(t, "alarm-123456", d.Alarm.ID)

	rec = do(t, h.Get, "GET /api/alarms/{id}", http.MethodGet, "/api/alarms/nope-nope-nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDetailHandler_StageEvents(t *testing.T) {
	details := &fakeDetails{d: sampleDetail()}
	h := NewDetailHandler(details, nil)
	pattern := "GET /api/alarms/{id}/stages/{stage}/events"

	rec := do(t, h.StageEvents, pattern, http.MethodGet, "/api/alarms/alarm-123456/stages/2/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 400, details.stageSize, "defaults to the rule's event count")

	rec = do(t, h.StageEvents, pattern, http.MethodGet, "/api/alarms/alarm-123456/stages/2/events?size=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, details.stageSize)

	rec = do(t, h.StageEvents, pattern, http.MethodGet, "/api/alarms/alarm-123456/stages/9/events", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h.StageEvents, pattern, http.MethodGet, "/api/alarms/alarm-123456/stages/x/events", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDetailHandler_Change(t *testing.T) {
	tests := []struct {
		name      string
		handler   func(h *DetailHandler) http.HandlerFunc
		body      string
		changeErr error
		status    int
		changed   string
	}{
		{"status", func(h *DetailHandler) http.HandlerFunc { return h.ChangeStatus }, `{"value":"Closed"}`, nil, http.StatusOK, "status=Closed"},
		{"tag", func(h *DetailHandler) http.HandlerFunc { return h.ChangeTag }, `{"value":"False Positive"}`, nil, http.StatusOK, "tag=False Positive"},
		{"empty value", func(h *DetailHandler) http.HandlerFunc { return h.ChangeStatus }, `{"value":""}`, nil, http.StatusBadRequest, ""},
		{"conflict", func(h *DetailHandler) http.HandlerFunc { return h.ChangeStatus }, `{"value":"Closed"}`, store.ErrUpdateConflict, http.StatusConflict, ""},
		{"not allowed", func(h *DetailHandler) http.HandlerFunc { return h.ChangeTag }, `{"value":"x"}`, detail.ErrValueNotAllowed, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			details := &fakeDetails{d: sampleDetail(), changeErr: tt.changeErr}
			h := NewDetailHandler(details, nil)

			rec := do(t, tt.handler(h), "PUT /api/alarms/{id}/x", http.MethodPut, "/api/alarms/alarm-123456/x", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.changed, details.changed)
		})
	}
}

type fakeHealth struct {
	err error
}

func (f *fakeHealth) Check(ctx context.Context) (bool, error) { return f.err == nil, f.err }
func (f *fakeHealth) Label() string                           { return "es:9200 as elastic" }
func (f *fakeHealth) Status() string {
	if f.err != nil {
		return "Disconnected from ES es:9200: " + f.err.Error()
	}
	return "Connected to ES es:9200 as elastic"
}

func TestStatusHandler(t *testing.T) {
	alerts := alertbox.New()
	alerts.Show("Connected to ES es:9200 as elastic", alertbox.Success, true)
	health := &fakeHealth{}
	h := NewStatusHandler(health, alerts)

	rec := do(t, h.Status, "GET /api/status", http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp statusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Reachable)
	assert.Equal(t, "es:9200 as elastic", resp.Store)
	require.NotNil(t, resp.Alert)

	rec = do(t, h.Readyz, "GET /readyz", http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	health.err = errors.New("connection refused")
	rec = do(t, h.Readyz, "GET /readyz", http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, h.Healthz, "GET /healthz", http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestConfigHandler(t *testing.T) {
	h := NewConfigHandler(ConsoleConfig{KibanaURL: "http://kibana:5601", Statuses: []string{"Open"}})

	rec := do(t, h.Get, "GET /api/config", http.MethodGet, "/api/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"kibana":"http://kibana:5601","statuses":["Open"],"tags":[]}`, rec.Body.String())
}
