package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/telhawk-systems/alarm-console/common/httputil"
	"github.com/telhawk-systems/alarm-console/common/logging"
	"github.com/telhawk-systems/alarm-console/console/internal/detail"
)

// DetailService is satisfied by *detail.Loader.
type DetailService interface {
	Load(ctx context.Context, id string) (*detail.Detail, error)
	Fetch(ctx context.Context, id string) (*detail.Detail, error)
	LoadStageEvents(ctx context.Context, alarmID string, stage, allSize int) (*detail.StageEvents, error)
	ChangeStatus(ctx context.Context, d *detail.Detail, status string) (*detail.Detail, error)
	ChangeTag(ctx context.Context, d *detail.Detail, tag string) (*detail.Detail, error)
}

type DetailHandler struct {
	details DetailService
	logger  *logging.Logger
}

func NewDetailHandler(details DetailService, logger *logging.Logger) *DetailHandler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &DetailHandler{details: details, logger: logger.Component("handlers")}
}

type valueRequest struct {
	Value string `json:"value"`
}

// Get returns the alarm with rule counts and the first stage's events.
func (h *DetailHandler) Get(w http.ResponseWriter, r *http.Request) {
	d, err := h.details.Load(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, d)
}

// StageEvents loads one stage's events. ?size= overrides the rule's event count.
func (h *DetailHandler) StageEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	stage, err := strconv.Atoi(r.PathValue("stage"))
	if err != nil || stage < 1 {
		httputil.WriteCodedError(w, http.StatusBadRequest, CodeInvalidRequest, "stage must be a positive number")
		return
	}

	d, err := h.details.Fetch(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	rule, ok := d.Rule(stage)
	if !ok {
		httputil.WriteCodedError(w, http.StatusNotFound, CodeNotFound, "alarm "+id+" has no stage "+strconv.Itoa(stage))
		return
	}

	size := httputil.ParseIntParam(r.URL.Query().Get("size"), rule.EventsCount)
	events, err := h.details.LoadStageEvents(r.Context(), id, stage, size)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, events)
}

func (h *DetailHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, h.details.ChangeStatus)
}

func (h *DetailHandler) ChangeTag(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, h.details.ChangeTag)
}

func (h *DetailHandler) change(w http.ResponseWriter, r *http.Request,
	apply func(ctx context.Context, d *detail.Detail, value string) (*detail.Detail, error)) {
	var req valueRequest
	if err := httputil.DecodeJSON(r, &req); err != nil || req.Value == "" {
		httputil.WriteCodedError(w, http.StatusBadRequest, CodeInvalidRequest, "value is required")
		return
	}

	d, err := h.details.Fetch(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	fresh, err := apply(r.Context(), d, req.Value)
	if err != nil {
		h.logger.WarnContext(r.Context(), "alarm change failed", logging.AlarmID(d.Alarm.ID), logging.Error(err))
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fresh)
}
