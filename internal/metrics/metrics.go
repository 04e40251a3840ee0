// Package metrics exposes engine activity as prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/andresuchdata/supplyengine/internal/engine/spike"
)

// Recorder owns a private registry so tests and multiple servers in one
// process do not collide on the default one.
type Recorder struct {
	registry *prometheus.Registry

	spikePasses       *prometheus.CounterVec
	spikePassDuration prometheus.Histogram
	activeSignals     prometheus.Gauge
	signalsRaised     prometheus.Counter
	signalsResolved   prometheus.Counter
	commitConflicts   *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		spikePasses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spike_passes_total",
				Help: "Spike detection passes by outcome",
			},
			[]string{"outcome"},
		),
		spikePassDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "spike_pass_duration_seconds",
				Help:    "Time taken by successful spike detection passes",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
			},
		),
		activeSignals: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "spike_active_signals",
				Help: "Spike signals active after the last pass",
			},
		),
		signalsRaised: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "spike_signals_raised_total",
				Help: "Spike signals raised or refreshed by a pass",
			},
		),
		signalsResolved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "spike_signals_resolved_total",
				Help: "Spike signals resolved after demand returned to baseline",
			},
		),
		commitConflicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "commit_conflicts_total",
				Help: "Commits rejected because their snapshot was stale",
			},
			[]string{"op"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "API request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}

	r.registry.MustRegister(
		r.spikePasses,
		r.spikePassDuration,
		r.activeSignals,
		r.signalsRaised,
		r.signalsResolved,
		r.commitConflicts,
		r.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

var _ spike.Observer = (*Recorder)(nil)

func (r *Recorder) PassCompleted(d time.Duration, res spike.PassResult) {
	r.spikePasses.WithLabelValues("ok").Inc()
	r.spikePassDuration.Observe(d.Seconds())
	r.activeSignals.Set(float64(len(res.Active)))
	r.signalsRaised.Add(float64(len(res.Raised)))
	r.signalsResolved.Add(float64(len(res.Resolved)))
}

func (r *Recorder) PassFailed(error) {
	r.spikePasses.WithLabelValues("failed").Inc()
}

func (r *Recorder) PassSkipped() {
	r.spikePasses.WithLabelValues("skipped").Inc()
}

func (r *Recorder) CommitConflict(op string) {
	r.commitConflicts.WithLabelValues(op).Inc()
}

// ObserveRequest records one API request.
func (r *Recorder) ObserveRequest(method, route string, status int, d time.Duration) {
	r.requestDuration.WithLabelValues(method, route, http.StatusText(status)).Observe(d.Seconds())
}

// Handler serves the registry in the prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
