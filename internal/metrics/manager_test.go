package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager(t *testing.T) {
	t.Parallel()

	m, reg := NewTestManagerAndRegistry()

	m.ToolCall("log_workout", false)
	m.ToolCall("log_workout", false)
	m.ToolCall("log_workout", true)
	m.Feedback("stagnation", "pr_weight", "stagnation")
	m.SyncedRows("workouts", 3)
	m.SyncedRows("cardio", 0)
	m.CounterStagnationNotifications.Inc()
	m.ObserveIngest(20 * time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.CounterToolCalls.WithLabelValues("log_workout", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CounterToolCalls.WithLabelValues("log_workout", "error")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.CounterFeedback.WithLabelValues("stagnation")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.CounterSyncedRows.WithLabelValues("workouts")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.CounterSyncedRows, "lift_mcp_synced_rows_total"))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CounterStagnationNotifications))

	count, err := testutil.GatherAndCount(reg, "lift_mcp_ingest_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
