package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vnykmshr/taskflow/pkg/runtime/channel"
)

// Registry holds all metric instances for taskflow components.
type Registry struct {
	// Worker Pool Metrics
	TasksSubmitted        *prometheus.CounterVec
	TasksCompleted        *prometheus.CounterVec
	TasksFailed           *prometheus.CounterVec
	TaskExecutionDuration *prometheus.HistogramVec
	WorkerPoolSize        *prometheus.GaugeVec
	WorkerPoolActive      *prometheus.GaugeVec
	WorkerPoolQueued      *prometheus.GaugeVec

	// Pipeline Metrics
	PipelineItems      *prometheus.CounterVec
	PipelineItemErrors *prometheus.CounterVec
	PipelineStageTime  *prometheus.HistogramVec

	// Channel / Fan Metrics
	ChannelSends       *prometheus.CounterVec
	ChannelReceives    *prometheus.CounterVec
	ChannelBlockedOps  *prometheus.CounterVec
	FanInForwarded     *prometheus.CounterVec
	FanOutDistributed  *prometheus.CounterVec

	// Admission Control Metrics
	SemaphoreAcquired *prometheus.CounterVec
	SemaphoreDenied   *prometheus.CounterVec
	SemaphoreInUse    *prometheus.GaugeVec
	SemaphoreWaiting  *prometheus.GaugeVec

	mu          sync.Mutex
	channelSeen map[string]channelCounts
}

// channelCounts is the last observed Stats snapshot for a named channel.
type channelCounts struct {
	sends, receives, blockedSends, blockedReceives int64
}

// ObserveChannel folds a channel Stats snapshot into the channel metric
// family under the given name. Counters advance by the delta since the
// previous snapshot for that name, so repeated observation is safe.
func (r *Registry) ObserveChannel(name string, s channel.Stats) {
	cur := channelCounts{
		sends:           s.SendCount,
		receives:        s.ReceiveCount,
		blockedSends:    s.BlockedSends,
		blockedReceives: s.BlockedReceives,
	}

	r.mu.Lock()
	prev := r.channelSeen[name]
	r.channelSeen[name] = cur
	r.mu.Unlock()

	r.ChannelSends.WithLabelValues(name).Add(counterDelta(cur.sends, prev.sends))
	r.ChannelReceives.WithLabelValues(name).Add(counterDelta(cur.receives, prev.receives))
	r.ChannelBlockedOps.WithLabelValues(name, "send").Add(counterDelta(cur.blockedSends, prev.blockedSends))
	r.ChannelBlockedOps.WithLabelValues(name, "receive").Add(counterDelta(cur.blockedReceives, prev.blockedReceives))
}

// counterDelta treats a snapshot that went backwards as a new channel
// reusing the name, counting its totals from scratch.
func counterDelta(cur, prev int64) float64 {
	if cur < prev {
		return float64(cur)
	}
	return float64(cur - prev)
}

// DefaultRegistry is the default metrics registry used by taskflow components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		TasksSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taskflow",
				Subsystem: "workerpool",
				Name:      "tasks_submitted_total",
				Help:      "Total number of tasks submitted",
			},
			[]string{"pool_name"},
		),

		TasksCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taskflow",
				Subsystem: "workerpool",
				Name:      "tasks_completed_total",
				Help:      "Total number of tasks completed successfully",
			},
			[]string{"pool_name"},
		),

		TasksFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taskflow",
				Subsystem: "workerpool",
				Name:      "tasks_failed_total",
				Help:      "Total number of tasks that failed or panicked",
			},
			[]string{"pool_name"},
		),

		TaskExecutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "taskflow",
				Subsystem: "workerpool",
				Name:      "task_duration_seconds",
				Help:      "Time spent executing tasks",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"pool_name"},
		),

		WorkerPoolSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "taskflow",
				Subsystem: "workerpool",
				Name:      "size",
				Help:      "Configured worker count",
			},
			[]string{"pool_name"},
		),

		WorkerPoolActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "taskflow",
				Subsystem: "workerpool",
				Name:      "active_workers",
				Help:      "Number of workers currently executing tasks",
			},
			[]string{"pool_name"},
		),

		WorkerPoolQueued: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "taskflow",
				Subsystem: "workerpool",
				Name:      "queued_tasks",
				Help:      "Number of tasks waiting in the input channel",
			},
			[]string{"pool_name"},
		),

		PipelineItems: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taskflow",
				Subsystem: "pipeline",
				Name:      "items_processed_total",
				Help:      "Total number of items processed per stage",
			},
			[]string{"pipeline_name", "stage_name"},
		),

		PipelineItemErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taskflow",
				Subsystem: "pipeline",
				Name:      "item_errors_total",
				Help:      "Total number of item transform errors per stage",
			},
			[]string{"pipeline_name", "stage_name"},
		),

		PipelineStageTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "taskflow",
				Subsystem: "pipeline",
				Name:      "stage_duration_seconds",
				Help:      "Time spent transforming one item in a stage",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"pipeline_name", "stage_name"},
		),

		ChannelSends: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taskflow",
				Subsystem: "channel",
				Name:      "sends_total",
				Help:      "Total number of completed sends",
			},
			[]string{"channel_name"},
		),

		ChannelReceives: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taskflow",
				Subsystem: "channel",
				Name:      "receives_total",
				Help:      "Total number of completed receives",
			},
			[]string{"channel_name"},
		),

		ChannelBlockedOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taskflow",
				Subsystem: "channel",
				Name:      "blocked_operations_total",
				Help:      "Total number of sends and receives that had to block",
			},
			[]string{"channel_name", "operation"},
		),

		FanInForwarded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taskflow",
				Subsystem: "fanio",
				Name:      "fanin_forwarded_total",
				Help:      "Total number of values forwarded to a fan-in sink",
			},
			[]string{"sink_name"},
		),

		FanOutDistributed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taskflow",
				Subsystem: "fanio",
				Name:      "fanout_distributed_total",
				Help:      "Total number of values distributed to fan-out workers",
			},
			[]string{"source_name"},
		),

		SemaphoreAcquired: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taskflow",
				Subsystem: "semaphore",
				Name:      "acquired_total",
				Help:      "Total number of permits acquired",
			},
			[]string{"semaphore_name"},
		),

		SemaphoreDenied: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taskflow",
				Subsystem: "semaphore",
				Name:      "denied_total",
				Help:      "Total number of non-blocking acquires denied",
			},
			[]string{"semaphore_name"},
		),

		SemaphoreInUse: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "taskflow",
				Subsystem: "semaphore",
				Name:      "in_use",
				Help:      "Number of permits currently held",
			},
			[]string{"semaphore_name"},
		),

		SemaphoreWaiting: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "taskflow",
				Subsystem: "semaphore",
				Name:      "waiting",
				Help:      "Number of callers waiting for a permit",
			},
			[]string{"semaphore_name"},
		),

		channelSeen: make(map[string]channelCounts),
	}
}
