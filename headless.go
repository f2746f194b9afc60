// Package headless provisions throwaway Selenium sessions on virtual
// displays.
//
// Each session owns three resources acquired in order: an Xvfb display
// server on a randomly chosen display, a Selenium server bound to that
// display on a randomly chosen port, and a WebDriver client connected to
// that server. Collisions with displays or ports already in use elsewhere
// on the host are retried with fresh random picks. Teardown runs in reverse
// acquisition order and always kills and reaps every child process, so no
// Xvfb or JVM survives the session that started it.
package headless

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/selspawn/go-headless-selenium/internal/alloc"
	"github.com/selspawn/go-headless-selenium/internal/config"
	"github.com/selspawn/go-headless-selenium/internal/launcher"
	"github.com/selspawn/go-headless-selenium/internal/logging"
	"github.com/selspawn/go-headless-selenium/internal/metrics"
	"github.com/selspawn/go-headless-selenium/internal/preflight"
	"github.com/selspawn/go-headless-selenium/internal/stats"
)

// Config holds all tunables. See LoadConfig for the environment mapping.
type Config = config.Config

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config { return *config.Default() }

// LoadConfig reads configuration from the environment (HEADLESS_* variables
// plus SELENIUM_SERVER_JAR) on top of the defaults.
func LoadConfig() (Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return Config{}, err
	}
	return *cfg, nil
}

// ValidateConfig rejects impossible ranges and zero retry budgets.
func ValidateConfig(cfg Config) error { return config.Validate(&cfg) }

// NewMetricsCollector creates a Prometheus collector on the default
// registry. Pass it to Options.Metrics; a nil collector disables metrics.
func NewMetricsCollector() *metrics.Collector { return metrics.NewCollector() }

// NewStatsRecorder creates an in-process launch latency recorder.
func NewStatsRecorder() *stats.Recorder { return stats.NewRecorder() }

// Client is a connected browser automation client.
type Client interface {
	// Open navigates the browser to a path relative to the session base URL.
	Open(path string) error

	// Close ends the browser session.
	Close() error
}

// ClientFactory connects a client to a running Selenium server. hubAddr is
// host:port. The factory is called once per connect attempt.
type ClientFactory func(hubAddr, browser, baseURL string) (Client, error)

// Options configures an Orchestrator. The zero value works: defaults are
// filled in, metrics and stats stay disabled, and the stock WebDriver
// client is used.
type Options struct {
	Config  Config
	Logger  *slog.Logger
	Metrics *metrics.Collector
	Stats   *stats.Recorder

	// NewClient overrides the WebDriver client, mainly for tests.
	NewClient ClientFactory

	// Display pins the session to one display instead of random picks. A
	// collision on a pinned display fails the session rather than silently
	// landing somewhere else.
	Display string
}

// Session is a live display + Selenium server + client triple. It is valid
// only inside the WithSession callback.
type Session struct {
	Client

	display  *launcher.DisplayServer
	selenium *launcher.SeleniumServer
}

// Display returns the X display this session renders to.
func (s *Session) Display() string { return s.display.Display() }

// Port returns the Selenium server port.
func (s *Session) Port() int { return s.selenium.Port() }

// Orchestrator provisions sessions.
type Orchestrator struct {
	cfg       Config
	logger    *slog.Logger
	metrics   *metrics.Collector
	stats     *stats.Recorder
	displays  *launcher.Displays
	selenium  *launcher.Selenium
	newClient ClientFactory
	display   string
}

// New creates an Orchestrator. Zero-value Options fields get defaults.
func New(opts Options) *Orchestrator {
	cfg := opts.Config
	if cfg == (Config{}) {
		cfg = *config.Default()
	}
	if cfg.ClientRetries < 1 {
		cfg.ClientRetries = config.Default().ClientRetries
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewLogger(cfg.LogFormat, cfg.LogLevel)
	}

	newClient := opts.NewClient
	if newClient == nil {
		newClient = newWebDriverClient
	}

	a := alloc.New(cfg.DisplayMax, cfg.PortMin, cfg.PortMax)

	return &Orchestrator{
		cfg:     cfg,
		logger:  logger,
		metrics: opts.Metrics,
		stats:   opts.Stats,
		displays: launcher.NewDisplays(launcher.DisplayConfig{
			XvfbPath:     cfg.XvfbPath,
			StartupGrace: cfg.StartupGrace,
			MaxAttempts:  cfg.MaxAttempts,
		}, a, logger, opts.Metrics, opts.Stats),
		selenium: launcher.NewSelenium(launcher.SeleniumConfig{
			JarPath:     cfg.ServerJar,
			JavaPath:    cfg.JavaPath,
			MaxAttempts: cfg.MaxAttempts,
		}, a, logger, opts.Metrics, opts.Stats),
		newClient: newClient,
		display:   opts.Display,
	}
}

// Preflight verifies the host can actually run sessions: the Xvfb and JVM
// binaries exist, the server jar is readable, and descriptor limits leave
// headroom. Optional; Launch errors surface the same problems later, with
// less context.
func (o *Orchestrator) Preflight() error {
	result := preflight.RunAll(&o.cfg)
	for _, check := range result.Checks {
		o.logger.Info("preflight_check",
			"name", check.Name,
			"passed", check.Passed,
			"detail", check.Message,
		)
	}
	return result.Err()
}

// ServeMetrics starts a Prometheus scrape endpoint on cfg.MetricsAddr. The
// caller owns the returned server and shuts it down.
func (o *Orchestrator) ServeMetrics() (*metrics.Server, error) {
	if o.cfg.MetricsAddr == "" {
		return nil, fmt.Errorf("headless: metrics address not configured")
	}
	srv := metrics.NewServer(o.cfg.MetricsAddr, o.logger)
	if err := srv.Start(); err != nil {
		return nil, err
	}
	return srv, nil
}

// LaunchStats returns per-phase launch latency percentiles, if a stats
// recorder was wired.
func (o *Orchestrator) LaunchStats() map[stats.Phase]stats.PhaseSummary {
	return o.stats.Summary()
}

// WithSession acquires a display server, a Selenium server bound to it, and
// a connected client, runs fn with the triple, and tears everything down in
// reverse order. Teardown runs no matter how fn exits, panics included.
// fn's error comes back unwrapped so callers can inspect it.
func (o *Orchestrator) WithSession(ctx context.Context, baseURL string, fn func(*Session) error) error {
	display, err := o.displays.Launch(o.display)
	if err != nil {
		return err
	}
	defer display.Release()

	server, err := o.selenium.Launch(display.Display())
	if err != nil {
		return err
	}
	defer server.Release()

	client, err := o.startClient(ctx, server, baseURL)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			o.logger.Warn("client_close_failed", "error", err)
		}
	}()

	o.metrics.SessionStarted()
	defer o.metrics.SessionClosed()
	o.logger.Info("session_up",
		"display", display.Display(),
		"port", server.Port(),
	)

	return fn(&Session{Client: client, display: display, selenium: server})
}

// startClient connects a client to the server, retrying with a fixed
// backoff. Selenium announces its listener slightly before it can actually
// serve a session, so the first attempt or two routinely fail.
func (o *Orchestrator) startClient(ctx context.Context, server *launcher.SeleniumServer, baseURL string) (Client, error) {
	hubAddr := fmt.Sprintf("127.0.0.1:%d", server.Port())
	started := time.Now()

	var last error
	for attempt := 1; attempt <= o.cfg.ClientRetries; attempt++ {
		o.metrics.LaunchAttempt(metrics.PhaseClient)
		client, err := o.newClient(hubAddr, o.cfg.Browser, baseURL)
		if err == nil {
			elapsed := time.Since(started)
			o.stats.Record(stats.PhaseClient, elapsed)
			o.metrics.ObserveLaunchDuration(metrics.PhaseClient, elapsed.Seconds())
			return client, nil
		}
		last = err
		o.logger.Info("client_start_retry",
			"attempt", attempt,
			"hub", hubAddr,
			"error", err,
		)
		o.metrics.ClientRetry()

		if attempt == o.cfg.ClientRetries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(o.cfg.ClientBackoff):
		}
	}

	o.metrics.StartupFailure(metrics.PhaseClient)
	return nil, &launcher.RetryExhaustedError{
		Name:     "selenium client",
		Attempts: o.cfg.ClientRetries,
		Last:     last,
	}
}
