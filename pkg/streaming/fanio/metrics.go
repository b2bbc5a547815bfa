package fanio

import (
	"context"

	"github.com/vnykmshr/taskflow/pkg/metrics"
	"github.com/vnykmshr/taskflow/pkg/runtime/channel"
)

// FanOutWithMetrics is FanOut with a Prometheus counter tracking how
// many items were handed to the workers, labeled by name.
func FanOutWithMetrics[I, O any](ctx context.Context, in *channel.Channel[I], workers int, fn Worker[I, O], name string, metricsConfig metrics.Config) ([]*channel.Channel[Outcome[O]], error) {
	if !metricsConfig.Enabled || fn == nil {
		return FanOut(ctx, in, workers, fn)
	}

	distributed := registryFor(metricsConfig).FanOutDistributed.WithLabelValues(name)
	counted := func(ctx context.Context, input I) (O, error) {
		distributed.Inc()
		return fn(ctx, input)
	}
	return FanOut(ctx, in, workers, counted)
}

// FanInWithMetrics is FanIn with a Prometheus counter tracking values
// forwarded to the merged sink, labeled by name.
func FanInWithMetrics[T any](ctx context.Context, name string, metricsConfig metrics.Config, ins ...*channel.Channel[T]) (*channel.Channel[T], error) {
	if !metricsConfig.Enabled {
		return FanIn(ctx, ins...)
	}

	forwarded := registryFor(metricsConfig).FanInForwarded.WithLabelValues(name)
	return fanIn(ctx, forwarded.Inc, ins)
}

func registryFor(metricsConfig metrics.Config) *metrics.Registry {
	if metricsConfig.Registry != nil {
		return metrics.NewRegistry(metricsConfig.Registry)
	}
	return metrics.DefaultRegistry
}
