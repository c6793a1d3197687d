// Package metrics provides Prometheus metrics collection for SchemaSmith.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for SchemaSmith.
type Collector struct {
	// Entity request metrics
	EntityRequestsTotal *prometheus.CounterVec
	MountedEntities     prometheus.Gauge

	// Publish metrics
	PublishTotal     *prometheus.CounterVec
	PublishRejected  prometheus.Counter
	PipelineDuration *prometheus.HistogramVec

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
}

// New creates a new metrics collector with all metrics registered on the
// default registry.
func New() *Collector {
	return newWith(promauto.With(prometheus.DefaultRegisterer))
}

// NewWithRegistry creates a new metrics collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	return newWith(promauto.With(reg))
}

func newWith(factory promauto.Factory) *Collector {
	return &Collector{
		EntityRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "schemasmith",
				Name:      "entity_requests_total",
				Help:      "Total requests served by synthesized entity routes",
			},
			[]string{"entity", "action", "status"},
		),
		MountedEntities: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "schemasmith",
				Name:      "mounted_entities",
				Help:      "Number of entity route groups currently mounted",
			},
		),

		PublishTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "schemasmith",
				Name:      "publish_total",
				Help:      "Total schema mutations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		PublishRejected: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "schemasmith",
				Name:      "publish_rejected_total",
				Help:      "Mutations rejected because another was in progress",
			},
		),
		PipelineDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "schemasmith",
				Name:      "pipeline_duration_seconds",
				Help:      "Build pipeline run duration in seconds",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"outcome"},
		),

		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "schemasmith",
				Name:      "config_reloads_total",
				Help:      "Total number of successful config reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "schemasmith",
				Name:      "config_reload_errors_total",
				Help:      "Total number of config reload errors",
			},
		),
	}
}

// RecordEntityRequest implements the crud recorder contract.
func (c *Collector) RecordEntityRequest(entity, action string, status int) {
	c.EntityRequestsTotal.WithLabelValues(entity, action, strconv.Itoa(status)).Inc()
}

// SetMountedEntities implements the crud recorder contract.
func (c *Collector) SetMountedEntities(n int) {
	c.MountedEntities.Set(float64(n))
}

// RecordMutation implements the publish recorder contract.
func (c *Collector) RecordMutation(operation, outcome string) {
	c.PublishTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordMutationRejected implements the publish recorder contract.
func (c *Collector) RecordMutationRejected() {
	c.PublishRejected.Inc()
}

// RecordPipelineRun implements the publish recorder contract.
func (c *Collector) RecordPipelineRun(outcome string, seconds float64) {
	c.PipelineDuration.WithLabelValues(outcome).Observe(seconds)
}
