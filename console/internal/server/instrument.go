package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/telhawk-systems/alarm-console/common/httputil"
	"github.com/telhawk-systems/alarm-console/common/logging"
	"github.com/telhawk-systems/alarm-console/console/internal/metrics"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// requestContext records who is calling for the audit trail.
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rc := httputil.NewRequestContext(r)
		next.ServeHTTP(w, r.WithContext(httputil.WithRequestContext(r.Context(), rc)))
	})
}

// instrument logs each request and records it by matched route.
func instrument(logger *logging.Logger, mux *http.ServeMux) http.Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logger.Component("http")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		_, route := mux.Handler(r)
		if route == "" {
			route = "unmatched"
		}

		mux.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())

		logger.DebugContext(r.Context(), "request",
			logging.Method(r.Method),
			logging.Path(r.URL.Path),
			logging.Status(rec.status),
			logging.Duration(elapsed.Milliseconds()),
		)
	})
}
