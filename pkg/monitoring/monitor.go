package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	SessionsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interview_sessions_started_total",
			Help: "Interview sessions created, by interview type",
		},
		[]string{"type"},
	)

	SessionTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interview_call_transitions_total",
			Help: "Call state transitions",
		},
		[]string{"from", "to"},
	)

	FeedbackOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interview_feedback_reports_total",
			Help: "Feedback reports by interview type and parse outcome",
		},
		[]string{"type", "outcome"},
	)

	FeedbackDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "interview_feedback_duration_seconds",
			Help:    "Time spent producing a feedback report",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 90},
		},
		[]string{"type"},
	)

	PersistenceFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "interview_persistence_failures_total",
			Help: "Failed attempts to write session results",
		},
	)

	VoiceConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "interview_voice_connections",
			Help: "Open browser voice bridge sockets on this instance",
		},
	)

	VoiceEventCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "interview_voice_messages_total",
			Help: "Voice bridge messages by type and direction",
		},
		[]string{"type", "direction"},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			SessionsStarted,
			SessionTransitions,
			FeedbackOutcomes,
			FeedbackDuration,
			PersistenceFailures,
			VoiceConnections,
			VoiceEventCounter,
		)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
