package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	Namespace = "lift"
	Subsystem = "mcp"
)

type Manager struct {
	// counters
	CounterToolCalls               *prometheus.CounterVec
	CounterFeedback                *prometheus.CounterVec
	CounterSyncedRows              *prometheus.CounterVec
	CounterStagnationNotifications prometheus.Counter

	// gauges
	GaugeActiveUsers prometheus.Gauge

	// histograms
	HistIngestDuration prometheus.Histogram
}

func NewTestManager() *Manager {
	return NewManager(Namespace, Subsystem, prometheus.NewRegistry())
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager(Namespace, Subsystem, reg), reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	counterToolCalls := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "tool_calls_total",
		Help:      "The total number of MCP tool calls",
	}, []string{"tool", "status"})
	counterFeedback := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "feedback_total",
		Help:      "The total number of feedback items returned, by type",
	}, []string{"type"})
	counterSyncedRows := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "synced_rows_total",
		Help:      "Rows pulled from the backend and saved locally",
	}, []string{"kind"})
	counterStagnationNotifications := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "stagnation_notifications_total",
		Help:      "The total number of stagnation nudges sent",
	})

	gaugeActiveUsers := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "active_users",
		Help:      "Users with a loaded analytics service",
	})

	histIngestDuration := factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Buckets: []float64{
				0.0001, 0.0005, 0.001, 0.005, 0.01,
				0.05, 0.1, 0.5, 1, 5, 10,
			},
			Name: "ingest_duration_seconds",
			Help: "Time spent loading a user's history into the analytics engines",
		},
	)

	return &Manager{
		CounterToolCalls:               counterToolCalls,
		CounterFeedback:                counterFeedback,
		CounterSyncedRows:              counterSyncedRows,
		CounterStagnationNotifications: counterStagnationNotifications,
		GaugeActiveUsers:               gaugeActiveUsers,
		HistIngestDuration:             histIngestDuration,
	}
}

// ObserveIngest records one history load. It matches the analytics
// ingest observer signature.
func (m *Manager) ObserveIngest(d time.Duration) {
	m.HistIngestDuration.Observe(d.Seconds())
}

// ToolCall counts a tool invocation; failed reports whether it errored
func (m *Manager) ToolCall(tool string, failed bool) {
	status := "ok"
	if failed {
		status = "error"
	}
	m.CounterToolCalls.WithLabelValues(tool, status).Inc()
}

// Feedback counts returned feedback items by type
func (m *Manager) Feedback(types ...string) {
	for _, t := range types {
		m.CounterFeedback.WithLabelValues(t).Inc()
	}
}

// SyncedRows adds saved rows of one kind
func (m *Manager) SyncedRows(kind string, n int) {
	if n > 0 {
		m.CounterSyncedRows.WithLabelValues(kind).Add(float64(n))
	}
}
