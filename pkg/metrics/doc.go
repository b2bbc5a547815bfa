// Package metrics provides Prometheus instrumentation for taskflow
// components.
//
// Components accept a metrics.Config; when enabled, worker pools,
// pipelines, fan-in/fan-out and semaphores report counters, gauges and
// histograms through a shared Registry. The DefaultRegistry registers
// against prometheus.DefaultRegisterer; tests and embedders can supply
// their own Registerer to avoid collisions.
package metrics
