package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/goshield/goshield/pkg/metrics"
)

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// MetricsMiddleware records request counts and latencies per route pattern.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, req)

		endpoint := req.Pattern
		if endpoint == "" {
			endpoint = req.URL.Path
		}
		status := strconv.Itoa(rec.status)
		metrics.RecordHTTPRequest(endpoint, req.Method, status)
		metrics.RecordHTTPRequestDuration(endpoint, req.Method, status, time.Since(start).Seconds())
	})
}
