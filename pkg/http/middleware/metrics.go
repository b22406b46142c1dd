package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	applogger "PowerLedger/pkg/logger"
)

type httpMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
	size     *prometheus.HistogramVec
}

var (
	httpMetricsOnce sync.Once
	httpCollectors  *httpMetrics
)

func requestMetrics() *httpMetrics {
	httpMetricsOnce.Do(func() {
		labels := []string{"route", "method", "class"}
		httpCollectors = &httpMetrics{
			requests: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "powerledger_http_requests_total",
				Help: "HTTP requests by route template and status class.",
			}, labels),
			duration: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "powerledger_http_request_duration_seconds",
				Help:    "HTTP request latency.",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			}, labels),
			inFlight: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "powerledger_http_in_flight_requests",
				Help: "Requests being served.",
			}),
			size: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "powerledger_http_response_size_bytes",
				Help:    "Response body size. Backup downloads land in the top buckets.",
				Buckets: prometheus.ExponentialBuckets(256, 4, 10),
			}, labels),
		}
	})
	return httpCollectors
}

// Metrics records request metrics labelled by the Echo route template.
// Requests to skipPath are not measured. 5xx responses are logged as errors
// and requests at or above slowThreshold as warnings.
func Metrics(l *applogger.Logger, slowThreshold time.Duration, skipPath string) echo.MiddlewareFunc {
	m := requestMetrics()

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().URL.Path == skipPath {
				return next(c)
			}

			m.inFlight.Inc()
			defer m.inFlight.Dec()
			start := time.Now()

			if err := next(c); err != nil {
				c.Error(err)
			}

			route, method := c.Path(), c.Request().Method
			res := c.Response()
			class := strconv.Itoa(res.Status/100) + "xx"
			took := time.Since(start)

			m.requests.WithLabelValues(route, method, class).Inc()
			m.duration.WithLabelValues(route, method, class).Observe(took.Seconds())
			m.size.WithLabelValues(route, method, class).Observe(float64(res.Size))

			if l == nil {
				return nil
			}
			fields := []applogger.Field{
				applogger.String("route", route),
				applogger.String("method", method),
				applogger.Int("status", res.Status),
				applogger.Duration("duration_ms", took),
			}
			switch {
			case res.Status >= 500:
				l.Error("http request failed", fields...)
			case slowThreshold > 0 && took >= slowThreshold:
				l.Warn("http request slow", fields...)
			}
			return nil
		}
	}
}
