package launcher

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/selspawn/go-headless-selenium/internal/alloc"
	"github.com/selspawn/go-headless-selenium/internal/config"
	"github.com/selspawn/go-headless-selenium/internal/logging"
	"github.com/selspawn/go-headless-selenium/internal/metrics"
	"github.com/selspawn/go-headless-selenium/internal/mux"
	"github.com/selspawn/go-headless-selenium/internal/proc"
	"github.com/selspawn/go-headless-selenium/internal/stats"
)

// Readiness protocol markers, read from the merged stdout/stderr of the
// Selenium server. Selenium takes an age to start, and the only reliable
// signal is its own log output.
const (
	readyMarker         = "Started SocketListener on"
	portCollisionMarker = "Selenium is already running on port"
)

// SeleniumConfig holds settings for the automation server launcher.
type SeleniumConfig struct {
	// JarPath is the Selenium server jar. Empty means the configuration
	// is incomplete; Launch fails with a ConfigError.
	JarPath string

	// JavaPath is the JVM binary.
	JavaPath string

	// MaxAttempts bounds port collision retries.
	MaxAttempts int
}

// Selenium launches automation server processes bound to a display.
type Selenium struct {
	cfg     SeleniumConfig
	alloc   *alloc.Allocator
	logger  *slog.Logger
	metrics *metrics.Collector
	stats   *stats.Recorder
}

// NewSelenium creates an automation server launcher. metrics and stats may
// be nil.
func NewSelenium(cfg SeleniumConfig, a *alloc.Allocator, logger *slog.Logger, m *metrics.Collector, s *stats.Recorder) *Selenium {
	if cfg.JavaPath == "" {
		cfg.JavaPath = "java"
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 10
	}
	return &Selenium{cfg: cfg, alloc: a, logger: logger, metrics: m, stats: s}
}

// SeleniumServer is a running automation server bound to a port and a
// display.
type SeleniumServer struct {
	port    int
	display string
	proc    *proc.Process
}

// Port returns the TCP port the server is listening on.
func (s *SeleniumServer) Port() int { return s.port }

// Display returns the display the server's browsers will render to.
func (s *SeleniumServer) Display() string { return s.display }

// Pid returns the server's process id.
func (s *SeleniumServer) Pid() int { return s.proc.Pid() }

// Release terminates and reaps the server. Idempotent.
func (s *SeleniumServer) Release() { s.proc.Release() }

// Launch starts an automation server targeting the given display. The
// display binding travels through the process environment (the jar reads
// DISPLAY, not a flag). Ports are allocator-chosen; a "already running on
// port" collision retries with a fresh port up to the ceiling.
func (l *Selenium) Launch(display string) (*SeleniumServer, error) {
	if l.cfg.JarPath == "" {
		return nil, &ConfigError{Missing: config.EnvServerJar}
	}

	started := time.Now()
	var last error

	for attempt := 1; attempt <= l.cfg.MaxAttempts; attempt++ {
		port := l.alloc.Port()
		l.metrics.LaunchAttempt(metrics.PhaseSelenium)
		l.logger.Info("selenium_starting",
			"display", display,
			"port", port,
			"attempt", attempt,
		)

		env := append(os.Environ(), "DISPLAY="+display)
		p, err := proc.Spawn(l.logger, "selenium", env,
			l.cfg.JavaPath, "-jar", l.cfg.JarPath, "-port", strconv.Itoa(port))
		if err != nil {
			return nil, err
		}

		server, cerr, err := l.awaitReady(p, display, port)
		if err != nil {
			p.Release()
			return nil, err
		}
		if server != nil {
			elapsed := time.Since(started)
			l.stats.Record(stats.PhaseSelenium, elapsed)
			l.metrics.ObserveLaunchDuration(metrics.PhaseSelenium, elapsed.Seconds())
			return server, nil
		}

		// Port collision. The process has already fully exited; retry on
		// a fresh port.
		l.metrics.PortCollision()
		last = cerr
	}

	l.metrics.StartupFailure(metrics.PhaseSelenium)
	return nil, &RetryExhaustedError{Name: "selenium server", Attempts: l.cfg.MaxAttempts, Last: last}
}

// awaitReady scans the merged output of a freshly spawned server until it
// either reports readiness, reports a port collision, or closes all output.
//
// Returns exactly one of:
//   - server != nil: ready; a background relay owns the remaining output
//   - cerr != nil: port collision; the process has exited and been reaped
//   - err != nil: startup failure; caller releases the process
func (l *Selenium) awaitReady(p *proc.Process, display string, port int) (server *SeleniumServer, cerr *CollisionError, err error) {
	m := mux.New(l.logger,
		mux.Stream{Name: "stdout", R: p.Stdout()},
		mux.Stream{Name: "stderr", R: p.Stderr()},
	)
	relay := logging.NewRelay("selenium :"+strconv.Itoa(port), l.logger)

	var seen []string
	for {
		line, ok := m.ReadLine()
		if !ok {
			// All output closed without a ready signal.
			code := p.Wait()
			return nil, nil, &StartupError{Name: "selenium", ExitCode: code, Output: seen}
		}
		l.logger.Debug("selenium_output", "port", port, "line", line)
		seen = append(seen, line)

		if strings.Contains(line, readyMarker) {
			relay.GoLines(m)
			l.logger.Info("selenium_listening",
				"display", display,
				"port", port,
				"pid", p.Pid(),
			)
			return &SeleniumServer{port: port, display: display, proc: p}, nil, nil
		}

		if strings.Contains(line, portCollisionMarker) {
			l.logger.Info("selenium_port_collision", "port", port, "line", line)
			relay.GoLines(m)
			p.Wait()
			p.Release()
			return nil, &CollisionError{Resource: "port", Value: strconv.Itoa(port), Line: line}, nil
		}
	}
}
