package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/tripplanner/internal/domain"
)

func TestRecorder_Conflicts(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.Conflicts(PathInteractive, []domain.Conflict{{Code: domain.ConflictCapacity}, {Code: domain.ConflictBlockedWeekday}})
	r.ConflictReports(PathImport, []domain.ConflictReport{{Reasons: []domain.ConflictCode{domain.ConflictCapacity}}})

	expected := `
# HELP tripplanner_schedule_conflicts_total Scheduling conflicts detected, by rule and path
# TYPE tripplanner_schedule_conflicts_total counter
tripplanner_schedule_conflicts_total{code="BLOCKED_WEEKDAY",path="interactive"} 1
tripplanner_schedule_conflicts_total{code="CAPACITY",path="import"} 1
tripplanner_schedule_conflicts_total{code="CAPACITY",path="interactive"} 1
`
	require.NoError(t, testutil.CollectAndCompare(r.conflicts, strings.NewReader(expected)))
}

func TestRecorder_ImportAndRollback(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.Import("applied", 3)
	r.Import("blocked", 0)
	r.Rollback("restored")

	assert.Equal(t, float64(1), testutil.ToFloat64(r.imports.WithLabelValues("applied")))
	assert.Equal(t, float64(3), testutil.ToFloat64(r.importedRows))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.rollbacks.WithLabelValues("restored")))
}

func TestRecorder_ObserveRequest(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.ObserveRequest("GET", "/groups/{groupID}", 200, 12*time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(r.requests.WithLabelValues("GET", "/groups/{groupID}", "200")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.requestDuration))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder

	assert.NotPanics(t, func() {
		r.ObserveRequest("GET", "/", 200, time.Millisecond)
		r.Conflicts(PathImport, []domain.Conflict{{Code: domain.ConflictCapacity}})
		r.Import("applied", 1)
		r.Rollback("restored")
		r.ObservePool(time.Millisecond)
	})
}
