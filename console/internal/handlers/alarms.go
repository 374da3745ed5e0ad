package handlers

import (
	"context"
	"net/http"

	"github.com/telhawk-systems/alarm-console/common/httputil"
	"github.com/telhawk-systems/alarm-console/common/logging"
	"github.com/telhawk-systems/alarm-console/console/internal/searchbox"
	"github.com/telhawk-systems/alarm-console/console/internal/store"
	"github.com/telhawk-systems/alarm-console/console/internal/synchronizer"
)

// AlarmList is the synchronizer surface the list endpoints drive.
type AlarmList interface {
	Snapshot() synchronizer.View
	Refresh()
	TogglePause()
	SetFilter(ids []string)
	ClearFilter()
	SelectPage(page int)
	RequestDelete(id string)
	CancelDelete()
	ConfirmDelete(ctx context.Context) (*store.DeleteReport, error)
}

type AlarmsHandler struct {
	list   AlarmList
	logger *logging.Logger
}

func NewAlarmsHandler(list AlarmList, logger *logging.Logger) *AlarmsHandler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &AlarmsHandler{list: list, logger: logger.Component("handlers")}
}

type filterRequest struct {
	Query string `json:"query"`
}

type pageRequest struct {
	Page int `json:"page"`
}

// List returns the current alarm list view.
func (h *AlarmsHandler) List(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.list.Snapshot())
}

func (h *AlarmsHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.list.Refresh()
	httputil.WriteJSON(w, http.StatusAccepted, h.list.Snapshot())
}

func (h *AlarmsHandler) TogglePause(w http.ResponseWriter, r *http.Request) {
	h.list.TogglePause()
	httputil.WriteJSON(w, http.StatusOK, h.list.Snapshot())
}

// SetFilter parses the search box input. A blank query clears the filter.
func (h *AlarmsHandler) SetFilter(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteCodedError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid request body")
		return
	}

	box := searchbox.New(h.list.SetFilter, h.list.ClearFilter)
	box.Input(req.Query)
	if !box.Valid() {
		httputil.WriteCodedError(w, http.StatusBadRequest, CodeInvalidRequest,
			"alarm ids must be comma separated and at least 9 characters long")
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, h.list.Snapshot())
}

func (h *AlarmsHandler) ClearFilter(w http.ResponseWriter, r *http.Request) {
	h.list.ClearFilter()
	httputil.WriteJSON(w, http.StatusAccepted, h.list.Snapshot())
}

func (h *AlarmsHandler) SelectPage(w http.ResponseWriter, r *http.Request) {
	var req pageRequest
	if err := httputil.DecodeJSON(r, &req); err != nil || req.Page < 1 {
		httputil.WriteCodedError(w, http.StatusBadRequest, CodeInvalidRequest, "page must be a positive number")
		return
	}
	h.list.SelectPage(req.Page)
	httputil.WriteJSON(w, http.StatusAccepted, h.list.Snapshot())
}

func (h *AlarmsHandler) RequestDelete(w http.ResponseWriter, r *http.Request) {
	h.list.RequestDelete(r.PathValue("id"))
	httputil.WriteJSON(w, http.StatusOK, h.list.Snapshot())
}

func (h *AlarmsHandler) CancelDelete(w http.ResponseWriter, r *http.Request) {
	h.list.CancelDelete()
	httputil.WriteJSON(w, http.StatusOK, h.list.Snapshot())
}

// ConfirmDelete runs the pending delete and answers once it has finished.
func (h *AlarmsHandler) ConfirmDelete(w http.ResponseWriter, r *http.Request) {
	report, err := h.list.ConfirmDelete(r.Context())
	if err != nil {
		h.logger.WarnContext(r.Context(), "delete failed", logging.Error(err))
		writeServiceError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}
