// Package metrics collects Prometheus metrics for the ledger, the
// generation flow and the HTTP layer, and exposes them for scraping.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for logins and generations.
const (
	OutcomeSuccess      = "success"
	OutcomeUnauthorized = "unauthorized"
	OutcomeNoCredits    = "insufficient_credits"
	OutcomeProviderErr  = "provider_error"
	OutcomeInvalid      = "invalid_request"
	OutcomeStoreErr     = "store_error"
)

// Recorder is what services and middleware report to.
type Recorder interface {
	RecordLogin(outcome string)
	RecordAccountCreated()
	RecordGeneration(outcome string)
	RecordCreditsDebited(n int64)
	RecordCreditsRefunded(n int64)
	RecordCreditsGranted(n int64)
	RecordProviderLatency(d time.Duration)
	RecordHTTPStatus(statusCode int)
}

// Collector is the Prometheus-backed Recorder.
type Collector struct {
	logins          *prometheus.CounterVec
	accountsCreated prometheus.Counter
	generations     *prometheus.CounterVec
	creditsDebited  prometheus.Counter
	creditsRefunded prometheus.Counter
	creditsGranted  prometheus.Counter
	providerLatency prometheus.Histogram
	httpStatus      *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fluxgate_logins_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		accountsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fluxgate_accounts_created_total",
			Help: "Accounts created.",
		}),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fluxgate_generations_total",
			Help: "Image generation requests by outcome.",
		}, []string{"outcome"}),
		creditsDebited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fluxgate_credits_debited_total",
			Help: "Credits taken from balances.",
		}),
		creditsRefunded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fluxgate_credits_refunded_total",
			Help: "Credits returned after a failed generation.",
		}),
		creditsGranted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fluxgate_credits_granted_total",
			Help: "Credits added by top-ups.",
		}),
		providerLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fluxgate_provider_latency_seconds",
			Help:    "Latency of image provider calls.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fluxgate_http_status_total",
			Help: "HTTP responses by status code.",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.logins,
		c.accountsCreated,
		c.generations,
		c.creditsDebited,
		c.creditsRefunded,
		c.creditsGranted,
		c.providerLatency,
		c.httpStatus,
	)

	return c
}

func (c *Collector) RecordLogin(outcome string) {
	c.logins.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordAccountCreated() {
	c.accountsCreated.Inc()
}

func (c *Collector) RecordGeneration(outcome string) {
	c.generations.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordCreditsDebited(n int64) {
	c.creditsDebited.Add(float64(n))
}

func (c *Collector) RecordCreditsRefunded(n int64) {
	c.creditsRefunded.Add(float64(n))
}

func (c *Collector) RecordCreditsGranted(n int64) {
	c.creditsGranted.Add(float64(n))
}

func (c *Collector) RecordProviderLatency(d time.Duration) {
	c.providerLatency.Observe(d.Seconds())
}

func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything. Tests and tools that do not scrape use it.
type Nop struct{}

func (Nop) RecordLogin(string)                  {}
func (Nop) RecordAccountCreated()               {}
func (Nop) RecordGeneration(string)             {}
func (Nop) RecordCreditsDebited(int64)          {}
func (Nop) RecordCreditsRefunded(int64)         {}
func (Nop) RecordCreditsGranted(int64)          {}
func (Nop) RecordProviderLatency(time.Duration) {}
func (Nop) RecordHTTPStatus(int)                {}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
