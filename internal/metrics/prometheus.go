package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus is a Recorder backed by client_golang. Collectors are
// registered lazily on first use.
type Prometheus struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	saves        *prometheus.CounterVec
	saveDuration *prometheus.HistogramVec
	rows         *prometheus.CounterVec
	blocked      *prometheus.CounterVec
	sessions     prometheus.Gauge
}

var _ Recorder = (*Prometheus)(nil)

// NewPrometheus uses prometheus.DefaultRegisterer when reg is nil and
// "labdesk" when namespace is empty.
func NewPrometheus(reg prometheus.Registerer, namespace string) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "labdesk"
	}
	return &Prometheus{reg: reg, namespace: namespace}
}

func (p *Prometheus) ensureRegistered() {
	p.once.Do(func() {
		p.saves = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "scoring",
			Name:      "saves_total",
			Help:      "Batch saves sent to the backend by kind and result (ok|error).",
		}, []string{"kind", "result"})

		p.saveDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "scoring",
			Name:      "save_duration_seconds",
			Help:      "Wall time of batch saves in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms .. ~5s
		}, []string{"kind"})

		p.rows = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "scoring",
			Name:      "rows_saved_total",
			Help:      "Score rows written by operation (upsert|delete).",
		}, []string{"op"})

		p.blocked = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "scoring",
			Name:      "saves_blocked_total",
			Help:      "Saves refused before reaching the backend, by kind and reason.",
		}, []string{"kind", "reason"})

		p.sessions = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "desk",
			Name:      "open_sessions",
			Help:      "Scoring sessions currently open.",
		})

		p.reg.MustRegister(p.saves, p.saveDuration, p.rows, p.blocked, p.sessions)
	})
}

func (p *Prometheus) RecordSave(kind string, ok bool, d time.Duration) {
	p.ensureRegistered()
	result := "ok"
	if !ok {
		result = "error"
	}
	p.saves.WithLabelValues(kind, result).Inc()
	p.saveDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (p *Prometheus) AddRows(op string, n int) {
	if n <= 0 {
		return
	}
	p.ensureRegistered()
	p.rows.WithLabelValues(op).Add(float64(n))
}

func (p *Prometheus) RecordBlocked(kind, reason string) {
	p.ensureRegistered()
	p.blocked.WithLabelValues(kind, reason).Inc()
}

func (p *Prometheus) SetOpenSessions(n int) {
	p.ensureRegistered()
	p.sessions.Set(float64(n))
}
