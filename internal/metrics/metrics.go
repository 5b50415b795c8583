// Package metrics owns the Prometheus collectors of the trip planner.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pkordes/tripplanner/internal/domain"
)

// Namespace prefixes every metric name.
const Namespace = "tripplanner"

// Paths a conflict can be detected on.
const (
	PathInteractive = "interactive"
	PathImport      = "import"
)

// Recorder groups the collectors. A nil *Recorder is valid and records
// nothing, so services can run without metrics in tests.
type Recorder struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	conflicts       *prometheus.CounterVec
	imports         *prometheus.CounterVec
	importedRows    prometheus.Counter
	rollbacks       *prometheus.CounterVec
	poolDuration    prometheus.Histogram
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer in
// production and a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: prometheus.BuildFQName(Namespace, "http", "requests_total"),
			Help: "HTTP requests by method, route pattern and status code",
		}, []string{"method", "route", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prometheus.BuildFQName(Namespace, "http", "request_duration_seconds"),
			Help:    "HTTP request latency by method and route pattern",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "route"}),
		conflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: prometheus.BuildFQName(Namespace, "schedule", "conflicts_total"),
			Help: "Scheduling conflicts detected, by rule and path",
		}, []string{"code", "path"}),
		imports: factory.NewCounterVec(prometheus.CounterOpts{
			Name: prometheus.BuildFQName(Namespace, "planning", "imports_total"),
			Help: "Planning imports by outcome",
		}, []string{"outcome"}),
		importedRows: factory.NewCounter(prometheus.CounterOpts{
			Name: prometheus.BuildFQName(Namespace, "planning", "inserted_activities_total"),
			Help: "Activities inserted by planning imports",
		}),
		rollbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: prometheus.BuildFQName(Namespace, "planning", "rollbacks_total"),
			Help: "Planning rollbacks by outcome",
		}, []string{"outcome"}),
		poolDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    prometheus.BuildFQName(Namespace, "pool", "derive_duration_seconds"),
			Help:    "Time spent deriving a group's resource pool, including loads",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		}),
	}
}

// ObserveRequest records one served HTTP request.
func (r *Recorder) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Conflicts counts every conflict code in cs.
func (r *Recorder) Conflicts(path string, cs []domain.Conflict) {
	if r == nil {
		return
	}
	for _, c := range cs {
		r.conflicts.WithLabelValues(string(c.Code), path).Inc()
	}
}

// ConflictReports counts every reason of every report.
func (r *Recorder) ConflictReports(path string, reports []domain.ConflictReport) {
	if r == nil {
		return
	}
	for _, rep := range reports {
		for _, code := range rep.Reasons {
			r.conflicts.WithLabelValues(string(code), path).Inc()
		}
	}
}

// Import records the outcome of an import request: "validated", "applied",
// "blocked" or "rejected".
func (r *Recorder) Import(outcome string, inserted int) {
	if r == nil {
		return
	}
	r.imports.WithLabelValues(outcome).Inc()
	if inserted > 0 {
		r.importedRows.Add(float64(inserted))
	}
}

// Rollback records the outcome of a rollback request.
func (r *Recorder) Rollback(outcome string) {
	if r == nil {
		return
	}
	r.rollbacks.WithLabelValues(outcome).Inc()
}

// ObservePool records how long a pool derivation took.
func (r *Recorder) ObservePool(elapsed time.Duration) {
	if r == nil {
		return
	}
	r.poolDuration.Observe(elapsed.Seconds())
}
