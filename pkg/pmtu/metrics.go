// Prometheus instrumentation of the Manager — domain-stack wiring, not
// named by spec.md itself (§1 excludes congestion control and packet
// scheduling metrics from the core's scope, but says nothing against
// observing the core), grounded on 99souls-ariadne's pattern of
// instrumenting a long-lived service with its own private registry rather
// than the global default one.
package pmtu

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metricsRecorder owns a private prometheus.Registry so that multiple
// Manager instances (one per connection) never collide on a shared default
// registerer.
type metricsRecorder struct {
	registry *prometheus.Registry

	currentMTU          *prometheus.GaugeVec
	consecutiveFailures *prometheus.GaugeVec
	searching           *prometheus.GaugeVec
	probesSent          *prometheus.CounterVec
	probesAcked         *prometheus.CounterVec
	probesNacked        *prometheus.CounterVec
	blackholes          *prometheus.CounterVec
	unknownProbes       *prometheus.CounterVec
}

func newMetricsRecorder() *metricsRecorder {
	registry := prometheus.NewRegistry()
	r := &metricsRecorder{
		registry: registry,
		currentMTU: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pmtu_current_mtu_bytes",
			Help: "Currently active MTU for the direction.",
		}, []string{"direction"}),
		consecutiveFailures: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pmtu_consecutive_failures",
			Help: "Unacknowledged probes since the last success, per direction.",
		}, []string{"direction"}),
		searching: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pmtu_in_search_phase",
			Help: "1 while the Discovery Engine owns this direction's state.",
		}, []string{"direction"}),
		probesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pmtu_probes_sent_total",
			Help: "Probes emitted, per direction.",
		}, []string{"direction"}),
		probesAcked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pmtu_probes_acked_total",
			Help: "Probe responses applied as success, per direction.",
		}, []string{"direction"}),
		probesNacked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pmtu_probes_nacked_total",
			Help: "Probe responses applied as failure (nack or timeout), per direction.",
		}, []string{"direction"}),
		blackholes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pmtu_blackholes_total",
			Help: "Blackhole detections, per direction.",
		}, []string{"direction"}),
		unknownProbes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pmtu_unknown_probe_responses_total",
			Help: "Responses discarded because their probe id was not registered.",
		}, []string{"direction"}),
	}
	registry.MustRegister(
		r.currentMTU,
		r.consecutiveFailures,
		r.searching,
		r.probesSent,
		r.probesAcked,
		r.probesNacked,
		r.blackholes,
		r.unknownProbes,
	)
	return r
}

func (r *metricsRecorder) observe(d Direction, p PathState) {
	r.currentMTU.WithLabelValues(d.String()).Set(float64(p.CurrentMTU))
	r.consecutiveFailures.WithLabelValues(d.String()).Set(float64(p.ConsecutiveFailures))
	inSearch := 0.0
	if p.InSearchPhase {
		inSearch = 1.0
	}
	r.searching.WithLabelValues(d.String()).Set(inSearch)
}

func (r *metricsRecorder) recordProbeSent(d Direction)    { r.probesSent.WithLabelValues(d.String()).Inc() }
func (r *metricsRecorder) recordProbeAcked(d Direction)   { r.probesAcked.WithLabelValues(d.String()).Inc() }
func (r *metricsRecorder) recordProbeNacked(d Direction)  { r.probesNacked.WithLabelValues(d.String()).Inc() }
func (r *metricsRecorder) recordBlackhole(d Direction)    { r.blackholes.WithLabelValues(d.String()).Inc() }
func (r *metricsRecorder) recordUnknownProbe(d Direction) { r.unknownProbes.WithLabelValues(d.String()).Inc() }

// MetricsHandler returns an http.Handler serving this Manager's Prometheus
// metrics, suitable for mounting at /metrics by an embedding process (see
// cmd/pmtudemo).
func (m *Manager) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(m.metrics.registry, promhttp.HandlerOpts{})
}
