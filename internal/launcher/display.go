package launcher

import (
	"bufio"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/selspawn/go-headless-selenium/internal/alloc"
	"github.com/selspawn/go-headless-selenium/internal/logging"
	"github.com/selspawn/go-headless-selenium/internal/metrics"
	"github.com/selspawn/go-headless-selenium/internal/proc"
	"github.com/selspawn/go-headless-selenium/internal/stats"
)

// displayCollisionMarker is what Xvfb prints on stderr when the display
// number is taken.
const displayCollisionMarker = "Server is already active"

// DisplayConfig holds settings for the display server launcher.
type DisplayConfig struct {
	// XvfbPath is the display server binary.
	XvfbPath string

	// StartupGrace is how long to wait for an immediate crash to surface
	// before trusting the process.
	StartupGrace time.Duration

	// MaxAttempts bounds collision retries when the display is
	// allocator-chosen. An explicit display is never retried.
	MaxAttempts int
}

// Displays launches virtual display server processes.
type Displays struct {
	cfg     DisplayConfig
	alloc   *alloc.Allocator
	logger  *slog.Logger
	metrics *metrics.Collector
	stats   *stats.Recorder
}

// NewDisplays creates a display server launcher. metrics and stats may be
// nil.
func NewDisplays(cfg DisplayConfig, a *alloc.Allocator, logger *slog.Logger, m *metrics.Collector, s *stats.Recorder) *Displays {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 10
	}
	return &Displays{cfg: cfg, alloc: a, logger: logger, metrics: m, stats: s}
}

// DisplayServer is a running display server owned by whichever scope
// acquired it.
type DisplayServer struct {
	display string
	proc    *proc.Process
}

// Display returns the display identifier the server is bound to.
func (d *DisplayServer) Display() string { return d.display }

// Pid returns the server's process id.
func (d *DisplayServer) Pid() int { return d.proc.Pid() }

// Release terminates and reaps the server. Idempotent.
func (d *DisplayServer) Release() { d.proc.Release() }

// Launch starts a display server. With explicit == "", displays are
// allocator-chosen and "already active" collisions retry with a fresh
// identifier, up to the ceiling. An explicit display is attempted exactly
// once: a collision on it is a terminal startup failure, never a silent
// substitution.
func (l *Displays) Launch(explicit string) (*DisplayServer, error) {
	attempts := l.cfg.MaxAttempts
	if explicit != "" {
		attempts = 1
	}

	started := time.Now()
	var last error

	for attempt := 1; attempt <= attempts; attempt++ {
		display := explicit
		if display == "" {
			display = l.alloc.Display()
		}
		l.metrics.LaunchAttempt(metrics.PhaseDisplay)

		// Streams are captured inside Spawn, before anything else can
		// happen, so no startup diagnostics are lost.
		p, err := proc.Spawn(l.logger, "xvfb", nil, l.cfg.XvfbPath, display, "-ac")
		if err != nil {
			return nil, err
		}

		// Give things time to crash.
		time.Sleep(l.cfg.StartupGrace)

		if !p.Exited() {
			l.logger.Info("display_server_up",
				"display", display,
				"pid", p.Pid(),
				"attempt", attempt,
			)
			relay := logging.NewRelay("xvfb "+display, l.logger)
			relay.Go(p.Stdout())
			relay.Go(p.Stderr())
			elapsed := time.Since(started)
			l.stats.Record(stats.PhaseDisplay, elapsed)
			l.metrics.ObserveLaunchDuration(metrics.PhaseDisplay, elapsed.Seconds())
			return &DisplayServer{display: display, proc: p}, nil
		}

		// Crashed inside the grace period: drain its output, then decide
		// whether this is a collision or a real failure.
		stderrLines := readAllLines(p.Stderr())
		stdoutLines := readAllLines(p.Stdout())
		code := p.Wait()
		p.Release()

		if line, ok := findMarker(stderrLines, displayCollisionMarker); ok {
			cerr := &CollisionError{Resource: "display", Value: display, Line: line}
			if explicit != "" {
				l.metrics.StartupFailure(metrics.PhaseDisplay)
				return nil, &StartupError{
					Name:     "xvfb",
					ExitCode: code,
					Output:   stderrLines,
					Cause:    cerr,
				}
			}
			l.logger.Info("display_collision",
				"display", display,
				"attempt", attempt,
				"line", line,
			)
			l.metrics.DisplayCollision()
			last = cerr
			continue
		}

		l.metrics.StartupFailure(metrics.PhaseDisplay)
		return nil, &StartupError{
			Name:     "xvfb",
			ExitCode: code,
			Output:   append(stderrLines, stdoutLines...),
		}
	}

	l.metrics.StartupFailure(metrics.PhaseDisplay)
	return nil, &RetryExhaustedError{Name: "display server", Attempts: attempts, Last: last}
}

// readAllLines drains a stream of a dead process. The writer is gone, so
// the read terminates at the pipe's buffered contents.
func readAllLines(r io.Reader) []string {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, logging.MaxLineLength), logging.MaxLineLength)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

// findMarker returns the first line containing marker.
func findMarker(lines []string, marker string) (string, bool) {
	for _, line := range lines {
		if strings.Contains(line, marker) {
			return line, true
		}
	}
	return "", false
}
