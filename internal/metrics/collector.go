// Package metrics provides Prometheus metrics for go-headless-selenium.
//
// The collector is optional: a nil *Collector records nothing, so the
// library runs without observability wired. Callers that want scraping pair
// a Collector with a Server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Phase labels the launch stages a session goes through.
type Phase string

const (
	PhaseDisplay  Phase = "display"
	PhaseSelenium Phase = "selenium"
	PhaseClient   Phase = "client"
)

// Collector holds all Prometheus metrics for session provisioning.
type Collector struct {
	sessionsStarted prometheus.Counter
	sessionsActive  prometheus.Gauge

	launchAttempts    *prometheus.CounterVec
	startupFailures   *prometheus.CounterVec
	displayCollisions prometheus.Counter
	portCollisions    prometheus.Counter
	clientRetries     prometheus.Counter

	launchDuration *prometheus.HistogramVec
}

// NewCollector creates a collector registered on the default registerer.
func NewCollector() *Collector {
	return NewCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector registered on a custom
// registry. Useful for testing and for hosting several collectors in one
// process.
func NewCollectorWithRegistry(registry prometheus.Registerer) *Collector {
	c := &Collector{
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "headless_sessions_started_total",
			Help: "Sessions that reached a connected client",
		}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "headless_sessions_active",
			Help: "Sessions currently inside their scope",
		}),
		launchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "headless_launch_attempts_total",
			Help: "Launch attempts by phase, including collision retries",
		}, []string{"phase"}),
		startupFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "headless_startup_failures_total",
			Help: "Terminal launch failures by phase",
		}, []string{"phase"}),
		displayCollisions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "headless_display_collisions_total",
			Help: "Display identifiers found already active",
		}),
		portCollisions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "headless_port_collisions_total",
			Help: "Ports found already bound by another Selenium server",
		}),
		clientRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "headless_client_connect_retries_total",
			Help: "Client connect attempts that failed and were retried",
		}),
		launchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "headless_launch_duration_seconds",
			Help:    "Time from launch start to readiness, by phase",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"phase"}),
	}

	registry.MustRegister(
		c.sessionsStarted,
		c.sessionsActive,
		c.launchAttempts,
		c.startupFailures,
		c.displayCollisions,
		c.portCollisions,
		c.clientRetries,
		c.launchDuration,
	)

	return c
}

// SessionStarted records a session reaching a connected client.
func (c *Collector) SessionStarted() {
	if c == nil {
		return
	}
	c.sessionsStarted.Inc()
	c.sessionsActive.Inc()
}

// SessionClosed records a session leaving its scope.
func (c *Collector) SessionClosed() {
	if c == nil {
		return
	}
	c.sessionsActive.Dec()
}

// LaunchAttempt records one launch attempt for a phase.
func (c *Collector) LaunchAttempt(phase Phase) {
	if c == nil {
		return
	}
	c.launchAttempts.WithLabelValues(string(phase)).Inc()
}

// StartupFailure records a terminal launch failure for a phase.
func (c *Collector) StartupFailure(phase Phase) {
	if c == nil {
		return
	}
	c.startupFailures.WithLabelValues(string(phase)).Inc()
}

// DisplayCollision records a recovered display collision.
func (c *Collector) DisplayCollision() {
	if c == nil {
		return
	}
	c.displayCollisions.Inc()
}

// PortCollision records a recovered port collision.
func (c *Collector) PortCollision() {
	if c == nil {
		return
	}
	c.portCollisions.Inc()
}

// ClientRetry records a failed client connect attempt that will be retried.
func (c *Collector) ClientRetry() {
	if c == nil {
		return
	}
	c.clientRetries.Inc()
}

// ObserveLaunchDuration records how long a phase took to become ready.
func (c *Collector) ObserveLaunchDuration(phase Phase, seconds float64) {
	if c == nil {
		return
	}
	c.launchDuration.WithLabelValues(string(phase)).Observe(seconds)
}
