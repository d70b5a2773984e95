package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes prometheus counters for the box and ledger domains.
type Metrics struct {
	BoxesPurchased *prometheus.CounterVec
	BoxesOpened    prometheus.Counter
	BoxesExpired   prometheus.Counter
	LedgerEntries  *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New registers the domain metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		BoxesPurchased: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fantasybox_boxes_purchased_total",
			Help: "Box purchases by credit tier.",
		}, []string{"tier"}),
		BoxesOpened: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fantasybox_boxes_opened_total",
			Help: "Boxes opened with a reward bound.",
		}),
		BoxesExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fantasybox_boxes_expired_total",
			Help: "Boxes transitioned to EXPIRED by reaper or lazy check.",
		}),
		LedgerEntries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fantasybox_ledger_entries_total",
			Help: "Credit ledger entries by kind.",
		}, []string{"kind"}),
		httpRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fantasybox_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fantasybox_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

// RecordPurchase increments the purchase counter for a tier.
func (m *Metrics) RecordPurchase(tier int) {
	if m == nil {
		return
	}
	m.BoxesPurchased.WithLabelValues(strconv.Itoa(tier)).Inc()
}

// RecordOpen increments the opened counter.
func (m *Metrics) RecordOpen() {
	if m == nil {
		return
	}
	m.BoxesOpened.Inc()
}

// RecordExpired adds expired transitions.
func (m *Metrics) RecordExpired(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.BoxesExpired.Add(float64(count))
}

// RecordLedgerEntry increments the ledger entry counter for a kind.
func (m *Metrics) RecordLedgerEntry(kind string) {
	if m == nil {
		return
	}
	m.LedgerEntries.WithLabelValues(kind).Inc()
}

// GinMiddleware records request counts and latency per route.
func GinMiddleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		m.httpRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}
