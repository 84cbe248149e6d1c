// Package metrics exports upload pipeline metrics to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
)

// PrometheusObserver records upload outcomes and stage latencies.
type PrometheusObserver struct {
	uploads         *promclient.CounterVec
	stageDuration   *promclient.HistogramVec
	uploadedBytes   *promclient.CounterVec
	deletes         *promclient.CounterVec
	cleanupFailures *promclient.CounterVec
	orphans         promclient.Counter
}

// NewPrometheusObserver registers the media metrics on reg (default registerer when nil).
func NewPrometheusObserver(namespace string, reg promclient.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "media"
	}
	if reg == nil {
		reg = promclient.DefaultRegisterer
	}

	o := &PrometheusObserver{}
	var err error

	if o.uploads, err = register(reg, promclient.NewCounterVec(promclient.CounterOpts{
		Namespace: namespace,
		Name:      "uploads_total",
		Help:      "Upload requests by purpose and outcome.",
	}, []string{"purpose", "outcome"})); err != nil {
		return nil, err
	}
	if o.stageDuration, err = register(reg, promclient.NewHistogramVec(promclient.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Latency of individual upload pipeline stages.",
		Buckets:   promclient.DefBuckets,
	}, []string{"stage"})); err != nil {
		return nil, err
	}
	if o.uploadedBytes, err = register(reg, promclient.NewCounterVec(promclient.CounterOpts{
		Namespace: namespace,
		Name:      "uploaded_bytes_total",
		Help:      "Transcoded bytes written to object storage.",
	}, []string{"purpose"})); err != nil {
		return nil, err
	}
	if o.deletes, err = register(reg, promclient.NewCounterVec(promclient.CounterOpts{
		Namespace: namespace,
		Name:      "deletes_total",
		Help:      "Asset deletions by reason and outcome.",
	}, []string{"reason", "outcome"})); err != nil {
		return nil, err
	}
	if o.cleanupFailures, err = register(reg, promclient.NewCounterVec(promclient.CounterOpts{
		Namespace: namespace,
		Name:      "cleanup_failures_total",
		Help:      "Prior assets that could not be removed during replacement.",
	}, []string{"step"})); err != nil {
		return nil, err
	}
	if o.orphans, err = register(reg, promclient.NewCounter(promclient.CounterOpts{
		Namespace: namespace,
		Name:      "orphaned_objects_total",
		Help:      "Stored objects left without a registry row after a failed compensation.",
	})); err != nil {
		return nil, err
	}

	return o, nil
}

// register adds c to reg, reusing an identical collector registered earlier.
func register[T promclient.Collector](reg promclient.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are promclient.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, fmt.Errorf("register media metric: %w", err)
	}
	return c, nil
}

// RecordUpload counts a finished upload; bytes are added only on success.
func (o *PrometheusObserver) RecordUpload(purpose, outcome string, bytes int64) {
	if o == nil {
		return
	}
	o.uploads.WithLabelValues(purpose, outcome).Inc()
	if outcome == "success" && bytes > 0 {
		o.uploadedBytes.WithLabelValues(purpose).Add(float64(bytes))
	}
}

// RecordStage observes one stage latency.
func (o *PrometheusObserver) RecordStage(stage string, d time.Duration) {
	if o == nil {
		return
	}
	o.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordDelete counts an asset removal.
func (o *PrometheusObserver) RecordDelete(reason, outcome string) {
	if o == nil {
		return
	}
	o.deletes.WithLabelValues(reason, outcome).Inc()
}

// RecordCleanupFailure counts a skipped replacement step ("storage" or "registry").
func (o *PrometheusObserver) RecordCleanupFailure(step string) {
	if o == nil {
		return
	}
	o.cleanupFailures.WithLabelValues(step).Inc()
}

// RecordOrphan counts an object whose compensating delete failed.
func (o *PrometheusObserver) RecordOrphan() {
	if o == nil {
		return
	}
	o.orphans.Inc()
}
