package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	submissionsTotal    *prometheus.CounterVec
	uploadedBytes       prometheus.Counter
	moderationTotal     *prometheus.CounterVec
	publishTotal        *prometheus.CounterVec
	publishDuration     *prometheus.HistogramVec
	adminVerifyTotal    *prometheus.CounterVec
	circuitBreakerState *prometheus.GaugeVec

	realtimeConnections   prometheus.Gauge
	realtimeSubscriptions prometheus.Gauge
	realtimeEventsTotal   *prometheus.CounterVec
	realtimeDropped       prometheus.Counter
}

// NewPrometheusCollector registers the service metrics on reg. Pass
// prometheus.DefaultRegisterer to expose them on /metrics.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)

	return &PrometheusCollector{
		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reelgate_http_requests_total",
			Help: "HTTP requests by method, route and status code",
		}, []string{"method", "route", "status"}),

		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reelgate_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),

		submissionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reelgate_video_submissions_total",
			Help: "Video submissions by outcome",
		}, []string{"outcome"}),

		uploadedBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "reelgate_video_uploaded_bytes_total",
			Help: "Bytes of accepted video uploads",
		}),

		moderationTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reelgate_moderation_decisions_total",
			Help: "Moderation decisions by type",
		}, []string{"decision"}),

		publishTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reelgate_platform_operations_total",
			Help: "Video platform operations by outcome (success or error kind)",
		}, []string{"platform", "operation", "outcome"}),

		publishDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reelgate_platform_operation_duration_seconds",
			Help:    "Duration of video platform operations",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 12),
		}, []string{"platform", "operation"}),

		adminVerifyTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reelgate_admin_password_checks_total",
			Help: "Admin password checks by result",
		}, []string{"result"}),

		circuitBreakerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "reelgate_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		}, []string{"name"}),

		realtimeConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "reelgate_realtime_connections",
			Help: "Open realtime websocket connections",
		}),

		realtimeSubscriptions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "reelgate_realtime_subscriptions",
			Help: "Active document and collection subscriptions",
		}),

		realtimeEventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reelgate_realtime_events_total",
			Help: "Change events fanned out to subscribers",
		}, []string{"collection", "type"}),

		realtimeDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "reelgate_realtime_dropped_subscribers_total",
			Help: "Subscribers dropped because they could not keep up",
		}),
	}
}

func (p *PrometheusCollector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	p.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	p.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (p *PrometheusCollector) RecordSubmission(outcome string, bytes int64) {
	p.submissionsTotal.WithLabelValues(outcome).Inc()
	if bytes > 0 {
		p.uploadedBytes.Add(float64(bytes))
	}
}

func (p *PrometheusCollector) RecordModeration(decision string) {
	p.moderationTotal.WithLabelValues(decision).Inc()
}

func (p *PrometheusCollector) RecordPlatformOperation(platform, operation, outcome string, duration time.Duration) {
	p.publishTotal.WithLabelValues(platform, operation, outcome).Inc()
	p.publishDuration.WithLabelValues(platform, operation).Observe(duration.Seconds())
}

func (p *PrometheusCollector) RecordAdminVerify(valid bool) {
	result := "invalid"
	if valid {
		result = "valid"
	}
	p.adminVerifyTotal.WithLabelValues(result).Inc()
}

func (p *PrometheusCollector) SetCircuitBreakerState(name string, state int) {
	p.circuitBreakerState.WithLabelValues(name).Set(float64(state))
}

func (p *PrometheusCollector) ConnectionOpened() {
	p.realtimeConnections.Inc()
}

func (p *PrometheusCollector) ConnectionClosed() {
	p.realtimeConnections.Dec()
}

func (p *PrometheusCollector) SubscriptionAdded() {
	p.realtimeSubscriptions.Inc()
}

func (p *PrometheusCollector) SubscriptionRemoved() {
	p.realtimeSubscriptions.Dec()
}

func (p *PrometheusCollector) EventDelivered(collection, changeType string) {
	p.realtimeEventsTotal.WithLabelValues(collection, changeType).Inc()
}

func (p *PrometheusCollector) SubscriberDropped() {
	p.realtimeDropped.Inc()
}
