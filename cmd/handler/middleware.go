package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/target-san/demo-webserver/pkg/metrics"
)

// HTTPMetricsMiddleware provides HTTP request metrics instrumentation
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		endpoint := extractEndpoint(r.URL.Path)

		inFlight := metrics.HTTPRequestsInFlight.WithLabelValues(r.Method, endpoint)
		inFlight.Inc()
		defer inFlight.Dec()

		ww := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r)

		statusCode := strconv.Itoa(ww.statusCode)
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, endpoint, statusCode).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

// extractEndpoint converts URL paths to metric-friendly endpoint patterns
func extractEndpoint(path string) string {
	switch {
	case strings.HasPrefix(path, "/config/feature/"):
		return "/config/feature/{feature}"
	case path == "/run", path == "/health", path == "/config", path == "/metrics":
		return path
	default:
		return "unknown"
	}
}

// responseWrapper captures the HTTP status code
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
