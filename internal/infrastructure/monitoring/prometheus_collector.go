package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"supermock/internal/core/domain"
)

type PrometheusCollector struct {
	// Counters
	queueJoinsTotal       *prometheus.CounterVec
	matchesTotal          prometheus.Counter
	matchAbortsTotal      *prometheus.CounterVec
	sessionStatusTotal    *prometheus.CounterVec
	videoLinkResultsTotal *prometheus.CounterVec
	feedbackTotal         prometheus.Counter
	eventsDispatchedTotal *prometheus.CounterVec
	hubMessagesTotal      *prometheus.CounterVec

	// Gauges
	hubConnections prometheus.Gauge
	lastSweepItems *prometheus.GaugeVec

	// Histograms
	matchLatency  prometheus.Histogram
	sweepDuration prometheus.Histogram
}

// NewPrometheusCollector registers every metric on reg.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)

	return &PrometheusCollector{
		queueJoinsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "supermock_queue_joins_total",
			Help: "Queue join requests by role and outcome",
		}, []string{"role", "outcome"}),

		matchesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "supermock_matches_total",
			Help: "Total number of sessions created by matching",
		}),

		matchAbortsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "supermock_match_aborts_total",
			Help: "Matching transactions abandoned, by reason",
		}, []string{"reason"}),

		sessionStatusTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "supermock_session_status_changes_total",
			Help: "Session status transitions by target status",
		}, []string{"status"}),

		videoLinkResultsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "supermock_video_link_results_total",
			Help: "Video link provisioning outcomes by resulting link status",
		}, []string{"status"}),

		feedbackTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "supermock_feedback_submitted_total",
			Help: "Total number of feedback submissions",
		}),

		eventsDispatchedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "supermock_events_dispatched_total",
			Help: "Dispatched domain events by type and delivery result",
		}, []string{"type", "ok"}),

		hubMessagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "supermock_hub_messages_total",
			Help: "Inbound hub messages by type",
		}, []string{"type"}),

		hubConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "supermock_hub_connections",
			Help: "Currently open hub connections",
		}),

		lastSweepItems: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "supermock_last_sweep_items",
			Help: "Items handled by the most recent sweep, by kind",
		}, []string{"kind"}),

		matchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "supermock_match_duration_seconds",
			Help:    "Duration of successful matching transactions",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),

		sweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "supermock_sweep_duration_seconds",
			Help:    "Duration of expiry and matching sweeps",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
	}
}

func (p *PrometheusCollector) QueueJoined(role domain.Role, outcome string) {
	p.queueJoinsTotal.WithLabelValues(string(role), outcome).Inc()
}

func (p *PrometheusCollector) MatchCreated(latency time.Duration) {
	p.matchesTotal.Inc()
	p.matchLatency.Observe(latency.Seconds())
}

func (p *PrometheusCollector) MatchAborted(reason string) {
	p.matchAbortsTotal.WithLabelValues(reason).Inc()
}

func (p *PrometheusCollector) SessionStatusChanged(to domain.SessionStatus) {
	p.sessionStatusTotal.WithLabelValues(string(to)).Inc()
}

func (p *PrometheusCollector) VideoLinkResult(status domain.VideoLinkStatus) {
	p.videoLinkResultsTotal.WithLabelValues(string(status)).Inc()
}

func (p *PrometheusCollector) FeedbackSubmitted() {
	p.feedbackTotal.Inc()
}

func (p *PrometheusCollector) EventDispatched(eventType domain.EventType, ok bool) {
	p.eventsDispatchedTotal.WithLabelValues(string(eventType), strconv.FormatBool(ok)).Inc()
}

func (p *PrometheusCollector) SweepCompleted(expired, matched, purged int, duration time.Duration) {
	p.sweepDuration.Observe(duration.Seconds())
	p.lastSweepItems.WithLabelValues("expired").Set(float64(expired))
	p.lastSweepItems.WithLabelValues("matched").Set(float64(matched))
	p.lastSweepItems.WithLabelValues("purged").Set(float64(purged))
}

func (p *PrometheusCollector) HubConnectionsChanged(delta int) {
	p.hubConnections.Add(float64(delta))
}

func (p *PrometheusCollector) HubMessage(messageType string) {
	p.hubMessagesTotal.WithLabelValues(messageType).Inc()
}
