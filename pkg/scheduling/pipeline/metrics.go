package pipeline

import (
	"time"

	"github.com/vnykmshr/taskflow/pkg/metrics"
)

// NewWithMetrics creates a pipeline from the given stages, reporting
// per-stage metrics to the default Prometheus registry.
func NewWithMetrics(name string, stages ...Stage) (*Pipeline, error) {
	return NewWithConfigAndMetrics(Config{Stages: stages}, name, metrics.Config{Enabled: true})
}

// NewWithConfigAndMetrics creates a pipeline reporting per-stage item
// counts, transform errors, and transform durations to Prometheus.
// The metric hooks run before any callbacks already set in config.
func NewWithConfigAndMetrics(config Config, name string, metricsConfig metrics.Config) (*Pipeline, error) {
	if !metricsConfig.Enabled {
		return NewWithConfig(config)
	}

	registry := metrics.DefaultRegistry
	if metricsConfig.Registry != nil {
		registry = metrics.NewRegistry(metricsConfig.Registry)
	}

	userComplete := config.OnStageComplete
	config.OnStageComplete = func(stageName string, it Item, d time.Duration) {
		registry.PipelineItems.WithLabelValues(name, stageName).Inc()
		registry.PipelineStageTime.WithLabelValues(name, stageName).Observe(d.Seconds())
		if userComplete != nil {
			userComplete(stageName, it, d)
		}
	}

	userError := config.OnError
	config.OnError = func(stageName string, err error) {
		registry.PipelineItemErrors.WithLabelValues(name, stageName).Inc()
		if userError != nil {
			userError(stageName, err)
		}
	}

	return NewWithConfig(config)
}
