// Package metrics exposes pipeline activity as Prometheus metrics.
package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the pipeline's Prometheus collectors. A nil *Recorder is a
// valid no-op, so callers never have to guard their observations.
type Recorder struct {
	registry    *prom.Registry
	dispatches  *prom.CounterVec
	edgeErrors  *prom.CounterVec
	runDuration prom.Histogram
	seedItems   *prom.CounterVec
	beakerSize  *prom.GaugeVec
}

// NewRecorder constructs and registers the pipeline collectors. A nil
// registry gets a fresh one.
func NewRecorder(reg *prom.Registry, pipelineName string) *Recorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	labels := prom.Labels{"pipeline": pipelineName}
	r := &Recorder{registry: reg}
	r.dispatches = prom.NewCounterVec(prom.CounterOpts{
		Namespace:   "databeakers",
		Name:        "dispatches_total",
		Help:        "Items dispatched per edge and destination beaker",
		ConstLabels: labels,
	}, []string{"edge", "destination"})
	r.edgeErrors = prom.NewCounterVec(prom.CounterOpts{
		Namespace:   "databeakers",
		Name:        "edge_errors_total",
		Help:        "Errors raised by edge functions, including routed ones",
		ConstLabels: labels,
	}, []string{"edge"})
	r.runDuration = prom.NewHistogram(prom.HistogramOpts{
		Namespace:   "databeakers",
		Name:        "run_duration_seconds",
		Help:        "Total pipeline run duration",
		ConstLabels: labels,
		Buckets:     prom.DefBuckets,
	})
	r.seedItems = prom.NewCounterVec(prom.CounterOpts{
		Namespace:   "databeakers",
		Name:        "seed_items_total",
		Help:        "Items imported per seed",
		ConstLabels: labels,
	}, []string{"seed"})
	r.beakerSize = prom.NewGaugeVec(prom.GaugeOpts{
		Namespace:   "databeakers",
		Name:        "beaker_items",
		Help:        "Current number of items per beaker",
		ConstLabels: labels,
	}, []string{"beaker"})
	reg.MustRegister(r.dispatches, r.edgeErrors, r.runDuration, r.seedItems, r.beakerSize)
	return r
}

// Registry returns the registry the collectors are registered on.
func (r *Recorder) Registry() *prom.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// CountDispatch records one item dispatched from an edge to a destination.
func (r *Recorder) CountDispatch(edge, destination string) {
	if r == nil {
		return
	}
	r.dispatches.WithLabelValues(edge, destination).Inc()
}

// CountEdgeError records an error raised by an edge function.
func (r *Recorder) CountEdgeError(edge string) {
	if r == nil {
		return
	}
	r.edgeErrors.WithLabelValues(edge).Inc()
}

// ObserveRunDuration records the wall time of a completed run.
func (r *Recorder) ObserveRunDuration(d time.Duration) {
	if r == nil {
		return
	}
	r.runDuration.Observe(d.Seconds())
}

// CountSeedItems records items imported by a seed run.
func (r *Recorder) CountSeedItems(seed string, n int) {
	if r == nil {
		return
	}
	r.seedItems.WithLabelValues(seed).Add(float64(n))
}

// SetBeakerSize records the current item count of a beaker.
func (r *Recorder) SetBeakerSize(beakerName string, n int) {
	if r == nil {
		return
	}
	r.beakerSize.WithLabelValues(beakerName).Set(float64(n))
}
