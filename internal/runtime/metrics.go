package runtime

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Routing outcome labels.
const (
	OutcomeUnrelated  = "unrelated"  // malformed address, not ours
	OutcomeDelivered  = "delivered"  // dispatched to a live binding
	OutcomeRejected   = "rejected"   // live binding refused the message
	OutcomeDeferred   = "deferred"   // binding appeared mid-call, drain owns it
	OutcomeBuffered   = "buffered"   // queued awaiting registration
	OutcomeDeclined   = "declined"   // user declined the consent prompt
	OutcomeUnresolved = "unresolved" // unknown subscriber, coordinator path
)

// Activation branch labels.
const (
	BranchRestart = "restart"
	BranchEnable  = "enable"
	BranchInstall = "install"
	BranchDrop    = "drop"
)

// RouterMetrics tracks routing and retention statistics, exposed both as
// Prometheus collectors and as a JSON-ready snapshot.
type RouterMetrics struct {
	mu     sync.RWMutex
	counts map[string]uint64

	routedTotal      *prometheus.CounterVec
	drainedTotal     prometheus.Counter
	evictedTotal     prometheus.Counter
	pendingCurrent   prometheus.Gauge
	bufferAgeSeconds prometheus.Histogram
	activationTotal  *prometheus.CounterVec

	registered bool
}

// RouterMetricsSnapshot provides a point-in-time view of routing activity.
type RouterMetricsSnapshot struct {
	Routed      map[string]uint64 `json:"routed"`
	Drained     uint64            `json:"drained"`
	Evicted     uint64            `json:"evicted"`
	Pending     int               `json:"pending"`
	CollectedAt time.Time         `json:"collected_at"`
}

// NewRouterMetrics creates the collectors but does not register them; call
// Register to expose them on a Prometheus registerer.
func NewRouterMetrics() *RouterMetrics {
	return &RouterMetrics{
		counts: make(map[string]uint64),
		routedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deferral",
			Subsystem: "router",
			Name:      "routed_total",
			Help:      "Routing decisions by outcome.",
		}, []string{"outcome"}),
		drainedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "deferral",
			Subsystem: "router",
			Name:      "drained_total",
			Help:      "Buffered messages delivered on registration.",
		}),
		evictedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "deferral",
			Subsystem: "router",
			Name:      "evicted_total",
			Help:      "Buffered messages dropped by the retention sweep.",
		}),
		pendingCurrent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "deferral",
			Subsystem: "router",
			Name:      "pending_current",
			Help:      "Messages currently buffered awaiting registration.",
		}),
		bufferAgeSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "deferral",
			Subsystem: "router",
			Name:      "buffer_age_seconds",
			Help:      "Age of buffered messages when drained.",
			Buckets:   []float64{0.1, 1, 5, 15, 60, 120, 300},
		}),
		activationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deferral",
			Subsystem: "activation",
			Name:      "total",
			Help:      "Activation coordinator outcomes by branch.",
		}, []string{"branch", "outcome"}),
	}
}

// Register exposes the collectors on the given registerer. Safe to call once;
// subsequent calls are no-ops.
func (m *RouterMetrics) Register(reg prometheus.Registerer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.registered {
		return nil
	}
	collectors := []prometheus.Collector{
		m.routedTotal,
		m.drainedTotal,
		m.evictedTotal,
		m.pendingCurrent,
		m.bufferAgeSeconds,
		m.activationTotal,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	m.registered = true
	return nil
}

// RecordRouted counts one routing decision.
func (m *RouterMetrics) RecordRouted(outcome string) {
	m.routedTotal.WithLabelValues(outcome).Inc()
	m.mu.Lock()
	m.counts[outcome]++
	m.mu.Unlock()
}

// RecordBuffered counts one buffered message.
func (m *RouterMetrics) RecordBuffered() {
	m.RecordRouted(OutcomeBuffered)
	m.pendingCurrent.Inc()
}

// RecordDrained counts messages delivered on registration, with their
// buffered ages.
func (m *RouterMetrics) RecordDrained(ages []time.Duration) {
	for _, age := range ages {
		m.bufferAgeSeconds.Observe(age.Seconds())
	}
	n := float64(len(ages))
	m.drainedTotal.Add(n)
	m.pendingCurrent.Sub(n)
	m.mu.Lock()
	m.counts["drained"] += uint64(len(ages))
	m.mu.Unlock()
}

// RecordEvicted counts messages dropped by the sweep.
func (m *RouterMetrics) RecordEvicted(n int) {
	if n <= 0 {
		return
	}
	m.evictedTotal.Add(float64(n))
	m.pendingCurrent.Sub(float64(n))
	m.mu.Lock()
	m.counts["evicted"] += uint64(n)
	m.mu.Unlock()
}

// RecordActivation counts one activation coordinator outcome.
func (m *RouterMetrics) RecordActivation(branch, outcome string) {
	m.activationTotal.WithLabelValues(branch, outcome).Inc()
}

// Snapshot reports accumulated routing activity.
func (m *RouterMetrics) Snapshot(pending int, now time.Time) RouterMetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	routed := make(map[string]uint64, len(m.counts))
	for k, v := range m.counts {
		switch k {
		case "drained", "evicted":
		default:
			routed[k] = v
		}
	}
	return RouterMetricsSnapshot{
		Routed:      routed,
		Drained:     m.counts["drained"],
		Evicted:     m.counts["evicted"],
		Pending:     pending,
		CollectedAt: now,
	}
}
