package server

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// statusRecorder captures the response status code for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withMetrics records a counter and duration histogram per request, labeled
// by method, path, and status. No-op when instruments are not configured.
func (s *Server) withMetrics(next http.Handler) http.Handler {
	if s.instruments == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		attrs := metric.WithAttributes(
			attribute.String("method", r.Method),
			attribute.String("path", r.URL.Path),
			attribute.Int("status", rec.status),
		)
		s.instruments.RequestCount.Add(r.Context(), 1, attrs)
		s.instruments.RequestDuration.Record(r.Context(), float64(time.Since(start).Milliseconds()), attrs)
	})
}
