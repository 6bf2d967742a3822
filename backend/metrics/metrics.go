package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cleanstreet",
		Subsystem: "api",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests, labeled by route, method and status code.",
	}, []string{"route", "method", "code"})

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cleanstreet",
		Subsystem: "api",
		Name:      "http_request_duration_seconds",
		Help:      "Time to serve an HTTP request, labeled by route and method.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"route", "method"})

	// NotificationsTotal counts notification deliveries by kind and result
	// (sent, skipped, retry, failed, dropped).
	NotificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cleanstreet",
		Subsystem: "notify",
		Name:      "notifications_total",
		Help:      "Total number of notifications handled, labeled by kind and result.",
	}, []string{"kind", "result"})

	// RabbitMQConnected is 1 when the notification publisher or subscriber is connected.
	RabbitMQConnected = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "cleanstreet",
		Subsystem: "notify",
		Name:      "rabbitmq_connected",
		Help:      "Whether the RabbitMQ client is currently connected (best-effort).",
	}, []string{"role"})

	WorkerInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cleanstreet",
		Subsystem: "notify",
		Name:      "worker_in_flight",
		Help:      "Current number of notifications being processed by worker goroutines.",
	})

	ProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cleanstreet",
		Subsystem: "notify",
		Name:      "rabbitmq_processed_total",
		Help:      "Total number of RabbitMQ deliveries processed by the email sender, labeled by result.",
	}, []string{"result"})

	AckErrorTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cleanstreet",
		Subsystem: "notify",
		Name:      "rabbitmq_ack_error_total",
		Help:      "Total number of RabbitMQ ack and nack errors.",
	})

	StatsCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cleanstreet",
		Subsystem: "cache",
		Name:      "stats_lookups_total",
		Help:      "Dashboard statistics cache lookups, labeled by result (hit, miss, error).",
	}, []string{"result"})
)

// Register registers all metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDurationSeconds,
			NotificationsTotal,
			RabbitMQConnected,
			WorkerInFlight,
			ProcessedTotal,
			AckErrorTotal,
			StatsCacheTotal,
		)
	})
}

// Middleware records request counts and latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequestsTotal.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPRequestDurationSeconds.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the Prometheus scrape endpoint.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
