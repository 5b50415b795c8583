package middleware

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/pkordes/tripplanner/internal/metrics"
)

// NewMetricsHandler returns a middleware that records every request on rec,
// labelled by route pattern rather than raw path so ids do not explode the
// label space. Requests no route matched are recorded as "unmatched".
func NewMetricsHandler(rec *metrics.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := routePattern(r)
			if route == "" {
				route = "unmatched"
			}
			rec.ObserveRequest(r.Method, route, ww.Status(), time.Since(start))
		})
	}
}
