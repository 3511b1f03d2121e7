package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the NetsBlox Cloud topology and project services.
//
// Naming convention: namespace_subsystem_name
// - namespace: netsblox_cloud (application-level grouping)
// - subsystem: topology, room, project, redis, rate_limit, store, blob
//   (feature-level grouping)
// - name: specific metric (connections_active, events_total, etc.)
//
// Metric Types:
// - Gauge: Current state (connections, rooms, cache size)
// - Counter: Cumulative events (messages routed, invites sent, errors)
// - Histogram: Latency distributions (dispatch/store latency)

var (
	// ActiveWebSocketConnections tracks the current number of open client connections to the Topology Engine.
	ActiveWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "netsblox_cloud",
		Subsystem: "topology",
		Name:      "connections_active",
		Help:      "Current number of active client WebSocket connections",
	})

	// ActiveRooms tracks the current number of project networks with at least one occupant.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "netsblox_cloud",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active project rooms",
	})

	// RoomParticipants tracks the number of occupants in each project room.
	RoomParticipants = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "netsblox_cloud",
		Subsystem: "room",
		Name:      "participants_count",
		Help:      "Number of occupants in each project room",
	}, []string{"project_id"})

	// TopologyEvents tracks the total number of topology commands processed (CounterVec).
	TopologyEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "netsblox_cloud",
		Subsystem: "topology",
		Name:      "events_total",
		Help:      "Total topology commands processed",
	}, []string{"event_type", "status"})

	// MessageProcessingDuration tracks time spent dispatching a topology command.
	MessageProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "netsblox_cloud",
		Subsystem: "topology",
		Name:      "message_processing_seconds",
		Help:      "Time spent processing a topology command",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"event_type"})

	// MessagesRouted tracks the total number of application messages fanned out by SendMessage.
	MessagesRouted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "netsblox_cloud",
		Subsystem: "topology",
		Name:      "messages_routed_total",
		Help:      "Total application messages routed to resolved clients",
	}, []string{"status"})

	// CircuitBreakerState tracks the current state of a wrapped dependency's circuit breaker.
	// 0: Closed (Healthy), 1: Open (Failure), 2: Half-Open (Recovering)
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "netsblox_cloud",
		Subsystem: "circuit_breaker",
		Name:      "state",
		Help:      "Current state of the circuit breaker (0: Closed, 1: Open, 2: Half-Open)",
	}, []string{"service"})

	// CircuitBreakerFailures tracks the total number of requests rejected by a circuit breaker.
	CircuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "netsblox_cloud",
		Subsystem: "circuit_breaker",
		Name:      "failures_total",
		Help:      "Total requests rejected by the circuit breaker",
	}, []string{"service"})

	// RateLimitExceeded tracks the total number of requests that exceeded the rate limit.
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "netsblox_cloud",
		Subsystem: "rate_limit",
		Name:      "exceeded_total",
		Help:      "Total number of requests that exceeded the rate limit",
	}, []string{"endpoint", "reason"})

	// RateLimitRequests tracks the total number of requests checked against the rate limiter.
	RateLimitRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "netsblox_cloud",
		Subsystem: "rate_limit",
		Name:      "requests_total",
		Help:      "Total number of requests checked against the rate limiter",
	}, []string{"endpoint"})

	// RedisOperationsTotal tracks the total number of Redis operations (address cache + rate limit store).
	RedisOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "netsblox_cloud",
		Subsystem: "redis",
		Name:      "operations_total",
		Help:      "Total number of Redis operations",
	}, []string{"operation", "status"})

	// RedisOperationDuration tracks the duration of Redis operations.
	RedisOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "netsblox_cloud",
		Subsystem: "redis",
		Name:      "operation_duration_seconds",
		Help:      "Duration of Redis operations",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	// StoreOperations tracks Mongo-backed project store operations.
	StoreOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "netsblox_cloud",
		Subsystem: "store",
		Name:      "operations_total",
		Help:      "Total number of project store operations",
	}, []string{"operation", "status"})

	// StoreOperationDuration tracks the duration of project store operations.
	StoreOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "netsblox_cloud",
		Subsystem: "store",
		Name:      "operation_duration_seconds",
		Help:      "Duration of project store operations",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	// BlobOperations tracks S3-backed role blob operations.
	BlobOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "netsblox_cloud",
		Subsystem: "blob",
		Name:      "operations_total",
		Help:      "Total number of blob store operations",
	}, []string{"operation", "status"})

	// ProjectCacheSize tracks the number of entries in the bounded project metadata cache.
	ProjectCacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "netsblox_cloud",
		Subsystem: "project",
		Name:      "cache_size",
		Help:      "Current number of entries in the project metadata cache",
	})

	// ProjectCacheHits tracks cache hit/miss outcomes for the project metadata cache.
	ProjectCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "netsblox_cloud",
		Subsystem: "project",
		Name:      "cache_lookups_total",
		Help:      "Total project metadata cache lookups",
	}, []string{"outcome"})

	// InvitesSent tracks the total number of collaboration invites created.
	InvitesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "netsblox_cloud",
		Subsystem: "invites",
		Name:      "sent_total",
		Help:      "Total collaboration invites created",
	}, []string{"status"})
)

func IncConnection() {
	ActiveWebSocketConnections.Inc()
}

func DecConnection() {
	ActiveWebSocketConnections.Dec()
}
