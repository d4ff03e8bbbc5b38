package sandbox

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics uses its own registry so several sandboxes can live in one process.
type Metrics struct {
	registry    *prometheus.Registry
	submissions *prometheus.CounterVec
	completions *prometheus.CounterVec
	rejections  *prometheus.CounterVec
	requests    *prometheus.CounterVec
	points      *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sandbox_job_submissions_total",
			Help: "Generation jobs accepted, by target type.",
		}, []string{"target_type"}),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sandbox_job_status_complete_total",
			Help: "Jobs first observed complete by a status query, by target type.",
		}, []string{"target_type"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sandbox_rejections_total",
			Help: "Requests rejected, by error code.",
		}, []string{"code"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sandbox_http_requests_total",
			Help: "HTTP requests, by route and status.",
		}, []string{"route", "status"}),
		points: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sandbox_points_spent_total",
			Help: "Points deducted, by target type.",
		}, []string{"target_type"}),
	}
	m.registry.MustRegister(m.submissions, m.completions, m.rejections, m.requests, m.points)
	return m
}

func (m *Metrics) jobSubmitted(target string, cost int) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(target).Inc()
	m.points.WithLabelValues(target).Add(float64(cost))
}

func (m *Metrics) jobComplete(target string) {
	if m == nil {
		return
	}
	m.completions.WithLabelValues(target).Inc()
}

func (m *Metrics) rejected(code string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(code).Inc()
}

// middleware counts requests by route template.
func (m *Metrics) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if m == nil {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
