package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "upsgw_"

// Trap results.
const (
	TrapAccepted  = "accepted"
	TrapRejected  = "rejected"
	TrapDropped   = "dropped"
	TrapQueueFull = "queue_full"
	TrapUndecoded = "undecoded"
)

// Notification and audible results.
const (
	ResultSent     = "sent"
	ResultFailed   = "failed"
	ResultSkipped  = "skipped"
	ResultCooldown = "cooldown"
	PatternPlayed  = "played"
	PatternDropped = "dropped"
	PatternMuted   = "muted"
)

var (
	registerOnce sync.Once

	trapsReceived       *prometheus.CounterVec
	eventsClassified    *prometheus.CounterVec
	notificationsTotal  *prometheus.CounterVec
	notificationLatency *prometheus.HistogramVec
	activeAlarms        prometheus.Gauge
	audiblePatterns     *prometheus.CounterVec
)

// Init registers the gateway collectors with reg, or the default registry
// when reg is nil. Helpers are no-ops until Init has run.
func Init(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		trapsReceived = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "traps_received_total",
				Help: "Inbound trap notifications by result",
			},
			[]string{"result"},
		)
		eventsClassified = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "events_classified_total",
				Help: "Classified events by role and severity",
			},
			[]string{"role", "severity"},
		)
		notificationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notifications_total",
				Help: "Notification attempts by channel and result",
			},
			[]string{"channel", "result"},
		)
		notificationLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "notification_latency_seconds",
				Help:    "Notification delivery latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"channel"},
		)
		activeAlarms = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "active_alarms",
				Help: "Alarms currently active",
			},
		)
		audiblePatterns = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "audible_patterns_total",
				Help: "Audible alert patterns by result",
			},
			[]string{"result"},
		)

		reg.MustRegister(
			trapsReceived,
			eventsClassified,
			notificationsTotal,
			notificationLatency,
			activeAlarms,
			audiblePatterns,
		)
	})
}

func IncTrap(result string) {
	if result == "" {
		result = "unknown"
	}
	if trapsReceived != nil {
		trapsReceived.WithLabelValues(result).Inc()
	}
}

func IncClassified(role, severity string) {
	if eventsClassified != nil {
		eventsClassified.WithLabelValues(role, severity).Inc()
	}
}

// ObserveNotification records a delivery attempt; latency is only observed
// for attempts that reached the transport.
func ObserveNotification(channel, result string, duration time.Duration) {
	if result == "" {
		result = ResultSent
	}
	if notificationsTotal != nil {
		notificationsTotal.WithLabelValues(channel, result).Inc()
	}
	if notificationLatency != nil && duration > 0 {
		notificationLatency.WithLabelValues(channel).Observe(duration.Seconds())
	}
}

func SetActiveAlarms(n int) {
	if activeAlarms != nil {
		activeAlarms.Set(float64(n))
	}
}

func IncAudiblePattern(result string) {
	if audiblePatterns != nil {
		audiblePatterns.WithLabelValues(result).Inc()
	}
}
