package handlers

import (
	"context"
	"net/http"

	"github.com/telhawk-systems/alarm-console/common/httputil"
	"github.com/telhawk-systems/alarm-console/console/internal/alertbox"
)

// HealthReporter is satisfied by *health.Monitor.
type HealthReporter interface {
	Check(ctx context.Context) (bool, error)
	Label() string
	Status() string
}

type StatusHandler struct {
	health HealthReporter
	alerts *alertbox.Surface
}

func NewStatusHandler(health HealthReporter, alerts *alertbox.Surface) *StatusHandler {
	return &StatusHandler{health: health, alerts: alerts}
}

type statusResponse struct {
	Store     string          `json:"store"`
	Reachable bool            `json:"reachable"`
	Status    string          `json:"status"`
	Error     string          `json:"error,omitempty"`
	Alert     *alertbox.Alert `json:"alert,omitempty"`
}

// Status pings the store and reports the connection line and current alert.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	ok, err := h.health.Check(r.Context())
	resp := statusResponse{
		Store:     h.health.Label(),
		Reachable: ok,
		Status:    h.health.Status(),
	}
	if err != nil {
		resp.Error = err.Error()
	}
	if a, found := h.alerts.Current(); found {
		resp.Alert = &a
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *StatusHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "alarm-console"})
}

// Readyz is ready only while the store answers.
func (h *StatusHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	if ok, err := h.health.Check(r.Context()); !ok {
		msg := h.health.Status()
		if err != nil {
			msg = err.Error()
		}
		httputil.WriteCodedError(w, http.StatusServiceUnavailable, CodeStoreUnavailable, msg)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// ConsoleConfig is what the page needs to render links and change menus.
type ConsoleConfig struct {
	KibanaURL string   `json:"kibana"`
	Statuses  []string `json:"statuses"`
	Tags      []string `json:"tags"`
}

type ConfigHandler struct {
	cfg ConsoleConfig
}

func NewConfigHandler(cfg ConsoleConfig) *ConfigHandler {
	if cfg.Statuses == nil {
		cfg.Statuses = []string{}
	}
	if cfg.Tags == nil {
		cfg.Tags = []string{}
	}
	return &ConfigHandler{cfg: cfg}
}

func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.cfg)
}
