package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics счётчики сервиса; каждый экземпляр держит собственный registry,
// чтобы тестовые серверы не конфликтовали при регистрации
type Metrics struct {
	registry *prometheus.Registry

	OrdersPlaced    prometheus.Counter
	OrderRejections *prometheus.CounterVec
	StockConflicts  prometheus.Counter
	Requests        *prometheus.CounterVec
	LatencyMS       *prometheus.HistogramVec
}

func New(service string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		OrdersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lavka",
			Subsystem: service,
			Name:      "orders_placed_total",
			Help:      "Total number of successfully placed orders.",
		}),
		OrderRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lavka",
			Subsystem: service,
			Name:      "order_rejections_total",
			Help:      "Total number of rejected order placements.",
		}, []string{"reason"}),
		StockConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lavka",
			Subsystem: service,
			Name:      "stock_conflicts_total",
			Help:      "Total number of placements lost to a concurrent stock write.",
		}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lavka",
			Subsystem: service,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"handler", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lavka",
			Subsystem: service,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"handler"}),
	}
	m.registry.MustRegister(m.OrdersPlaced, m.OrderRejections, m.StockConflicts, m.Requests, m.LatencyMS)
	return m
}

// GinMiddleware считает запросы и задержку по маршруту
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.Requests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		m.LatencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
	}
}

// Handler отдаёт метрики этого экземпляра
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
