// Package metrics exposes pipeline and retrieval telemetry.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Observer captures telemetry for ingest stages and retrievals.
type Observer interface {
	ObserveStage(stage string, duration time.Duration, err error)
	ObserveIngest(outcome string)
	ObserveRetrieval(rendition string, err error)
}

// Ingest outcomes.
const (
	OutcomeArchived = "archived"
	OutcomeShared   = "shared"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// PrometheusObserver exports archive metrics to Prometheus.
type PrometheusObserver struct {
	stageDuration *prometheus.HistogramVec
	stageErrors   *prometheus.CounterVec
	ingests       *prometheus.CounterVec
	retrievals    *prometheus.CounterVec
}

// NewPrometheusObserver registers the archive collectors on reg. Registering
// twice on the same registry reuses the collectors already there.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "filearchive"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	var err error
	o := &PrometheusObserver{}
	if o.stageDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Latency of each ingest pipeline stage.",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"stage"})); err != nil {
		return nil, err
	}
	if o.stageErrors, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stage_errors_total",
		Help:      "Count of ingest pipeline stage failures.",
	}, []string{"stage"})); err != nil {
		return nil, err
	}
	if o.ingests, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingests_total",
		Help:      "Count of finished ingests by outcome.",
	}, []string{"outcome"})); err != nil {
		return nil, err
	}
	if o.retrievals, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "retrievals_total",
		Help:      "Count of retrieval lookups by rendition and result.",
	}, []string{"rendition", "result"})); err != nil {
		return nil, err
	}
	return o, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, fmt.Errorf("register archive metric: %w", err)
	}
	return c, nil
}

func (o *PrometheusObserver) ObserveStage(stage string, duration time.Duration, err error) {
	if o == nil {
		return
	}
	o.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
	if err != nil {
		o.stageErrors.WithLabelValues(stage).Inc()
	}
}

func (o *PrometheusObserver) ObserveIngest(outcome string) {
	if o == nil {
		return
	}
	o.ingests.WithLabelValues(outcome).Inc()
}

func (o *PrometheusObserver) ObserveRetrieval(rendition string, err error) {
	if o == nil {
		return
	}
	result := "found"
	if err != nil {
		result = "error"
	}
	o.retrievals.WithLabelValues(rendition, result).Inc()
}

type nopObserver struct{}

// Nop returns an Observer that records nothing.
func Nop() Observer { return nopObserver{} }

func (nopObserver) ObserveStage(string, time.Duration, error) {}

func (nopObserver) ObserveIngest(string) {}

func (nopObserver) ObserveRetrieval(string, error) {}
