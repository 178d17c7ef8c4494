package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/petalpost/petalpost/internal/api/dto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "petalpost"

// Collector owns the process metrics on a private registry. A nil
// *Collector records nothing, which keeps handlers usable without one.
type Collector struct {
	registry *prometheus.Registry

	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	BillingRuns         *prometheus.CounterVec
	BillingOutcomes     *prometheus.CounterVec
	InvoiceEmails       *prometheus.CounterVec
	Notifications       *prometheus.CounterVec
	FailedChecks        *prometheus.CounterVec
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"method", "route", "status_code"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		BillingRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "runs_total",
			Help:      "Scheduler runs by mode",
		}, []string{"mode"}),
		BillingOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "subscription_outcomes_total",
			Help:      "Per-subscription scheduler outcomes",
		}, []string{"outcome"}),
		InvoiceEmails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "invoice_emails_total",
			Help:      "Invoice emails sent by the scheduler, by status",
		}, []string{"status"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payfast",
			Name:      "notifications_total",
			Help:      "Gateway payment notifications by decision",
		}, []string{"decision"}),
		FailedChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payfast",
			Name:      "failed_checks_total",
			Help:      "Verification checks failed by gateway notifications",
		}, []string{"check"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.HTTPRequests,
		c.HTTPRequestDuration,
		c.BillingRuns,
		c.BillingOutcomes,
		c.InvoiceEmails,
		c.Notifications,
		c.FailedChecks,
	)
	return c
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the private registry, mainly for tests
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveRequest records one served request. route is the matched route
// template so that ids do not explode the label space.
func (c *Collector) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveBillingRun records a finished scheduler run
func (c *Collector) ObserveBillingRun(run *dto.BillingRunResponse) {
	if c == nil || run == nil {
		return
	}
	c.BillingRuns.WithLabelValues(string(run.Mode)).Inc()
	for _, r := range run.Results {
		c.BillingOutcomes.WithLabelValues(string(r.Outcome)).Inc()
		if r.EmailStatus != "" {
			c.InvoiceEmails.WithLabelValues(string(r.EmailStatus)).Inc()
		}
	}
}

// ObserveNotification records the reconciler's decision on one notification
func (c *Collector) ObserveNotification(result *dto.ITNResult) {
	if c == nil || result == nil {
		return
	}
	c.Notifications.WithLabelValues(string(result.Decision)).Inc()
	for _, check := range result.FailedChecks {
		c.FailedChecks.WithLabelValues(string(check)).Inc()
	}
}
