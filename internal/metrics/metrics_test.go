package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_CommandMetrics(t *testing.T) {
	c := New()

	c.SetPendingBatches(3)
	assert.InDelta(t, 3, testutil.ToFloat64(c.pendingBatches), 0)

	c.ObserveOutcome("CONFIRMED", 250*time.Millisecond)
	c.ObserveOutcome("TIMED_OUT", 30*time.Second)
	c.ObserveOutcome("TIMED_OUT", 30*time.Second)
	c.IncStaleAcks()

	assert.InDelta(t, 1, testutil.ToFloat64(c.outcomes.WithLabelValues("CONFIRMED")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(c.outcomes.WithLabelValues("TIMED_OUT")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.staleAcks), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(c.confirmLatency))
}

func TestCollector_ConflictChecks(t *testing.T) {
	c := New()

	c.ObserveConflictCheck(0, 0, 0)
	c.ObserveConflictCheck(1, 2, 0)
	c.ObserveConflictCheck(0, 0, 1)

	assert.InDelta(t, 1, testutil.ToFloat64(c.conflictChecks.WithLabelValues("clear")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.conflictChecks.WithLabelValues("blocking")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.conflictChecks.WithLabelValues("advisory")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(c.conflictsFound.WithLabelValues("WARNING")), 0)
}

func TestCollector_ScheduleFires(t *testing.T) {
	c := New()
	c.IncScheduleFire(true)
	c.IncScheduleFire(false)
	c.IncScheduleFire(true)

	assert.InDelta(t, 2, testutil.ToFloat64(c.scheduleFires.WithLabelValues("dispatched")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.scheduleFires.WithLabelValues("failed")), 0)
}

func TestCollector_Handler(t *testing.T) {
	c := New()
	c.SetPendingBatches(1)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(string(body), "graylogic_command_batches_pending 1"))
	assert.True(t, strings.Contains(string(body), "go_goroutines"))
}

func TestCollector_IndependentInstances(t *testing.T) {
	assert.NotPanics(t, func() {
		New()
		New()
	})
}
