package broker

import (
	"github.com/jabolina/mtl/pkg/mtl/frame"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics wraps the Prometheus collectors backing both the optional
// scrape endpoint and the legacy CSV Metrics Sampler (§6). The teacher's
// declared-but-barely-used prometheus/common dependency becomes real
// instrumentation here: every forwarded message and every NACK cause
// increments a counter, and connected-peer count is a gauge maintained
// by the Handler's accept/teardown.
type Metrics struct {
	Forwarded      prometheus.Counter
	NacksByCause   *prometheus.CounterVec
	ConnectedPeers prometheus.Gauge
}

// NewMetrics builds and registers collectors against reg. Passing a
// fresh *prometheus.Registry per Broker keeps tests isolated from each
// other and from the global default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Forwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mtl",
			Subsystem: "broker",
			Name:      "messages_forwarded_total",
			Help:      "Messages successfully forwarded to a destination peer.",
		}),
		NacksByCause: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mtl",
			Subsystem: "broker",
			Name:      "nacks_total",
			Help:      "NACKs emitted, by cause.",
		}, []string{"cause"}),
		ConnectedPeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mtl",
			Subsystem: "broker",
			Name:      "connected_peers",
			Help:      "Currently connected peers.",
		}),
	}
	reg.MustRegister(m.Forwarded, m.NacksByCause, m.ConnectedPeers)
	return m
}

func (m *Metrics) forwarded() {
	if m == nil {
		return
	}
	m.Forwarded.Inc()
}

func (m *Metrics) nack(cause frame.Flag) {
	if m == nil {
		return
	}
	m.NacksByCause.WithLabelValues(cause.String()).Inc()
}

func (m *Metrics) peerConnected() {
	if m == nil {
		return
	}
	m.ConnectedPeers.Inc()
}

func (m *Metrics) peerDisconnected() {
	if m == nil {
		return
	}
	m.ConnectedPeers.Dec()
}
