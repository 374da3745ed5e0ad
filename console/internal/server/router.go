package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/telhawk-systems/alarm-console/common/logging"
	"github.com/telhawk-systems/alarm-console/common/middleware"
	"github.com/telhawk-systems/alarm-console/console/internal/handlers"
)

// RouterConfig holds dependencies needed to configure routes
type RouterConfig struct {
	AlarmsHandler  *handlers.AlarmsHandler
	DetailHandler  *handlers.DetailHandler
	StatusHandler  *handlers.StatusHandler
	ConfigHandler  *handlers.ConfigHandler
	AllowedOrigins []string
	Logger         *logging.Logger
}

// NewRouter constructs a ServeMux with the console routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	// Alarm list
	mux.HandleFunc("GET /api/alarms", cfg.AlarmsHandler.List)
	mux.HandleFunc("POST /api/alarms/refresh", cfg.AlarmsHandler.Refresh)
	mux.HandleFunc("POST /api/alarms/pause", cfg.AlarmsHandler.TogglePause)
	mux.HandleFunc("PUT /api/alarms/filter", cfg.AlarmsHandler.SetFilter)
	mux.HandleFunc("DELETE /api/alarms/filter", cfg.AlarmsHandler.ClearFilter)
	mux.HandleFunc("PUT /api/alarms/page", cfg.AlarmsHandler.SelectPage)
	mux.HandleFunc("POST /api/alarms/{id}/delete-request", cfg.AlarmsHandler.RequestDelete)
	mux.HandleFunc("POST /api/alarms/delete-confirm", cfg.AlarmsHandler.ConfirmDelete)
	mux.HandleFunc("POST /api/alarms/delete-cancel", cfg.AlarmsHandler.CancelDelete)

	// Alarm detail
	mux.HandleFunc("GET /api/alarms/{id}", cfg.DetailHandler.Get)
	mux.HandleFunc("GET /api/alarms/{id}/stages/{stage}/events", cfg.DetailHandler.StageEvents)
	mux.HandleFunc("PUT /api/alarms/{id}/status", cfg.DetailHandler.ChangeStatus)
	mux.HandleFunc("PUT /api/alarms/{id}/tag", cfg.DetailHandler.ChangeTag)

	mux.HandleFunc("GET /api/status", cfg.StatusHandler.Status)
	mux.HandleFunc("GET /api/config", cfg.ConfigHandler.Get)

	// Health checks and metrics
	mux.HandleFunc("GET /healthz", cfg.StatusHandler.Healthz)
	mux.HandleFunc("GET /readyz", cfg.StatusHandler.Readyz)
	mux.Handle("GET /metrics", promhttp.Handler())

	cors := middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", middleware.RequestIDHeader, "X-Console-Source", "X-Console-Operator"},
	})

	return middleware.RequestID(cors(requestContext(instrument(cfg.Logger, mux))))
}
