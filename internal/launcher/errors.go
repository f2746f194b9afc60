// Package launcher starts the virtual display server and the Selenium
// automation server, retrying resource collisions with freshly allocated
// displays and ports.
package launcher

import (
	"fmt"
	"strings"
)

// ConfigError reports a missing required environment artifact. Fatal, never
// retried.
type ConfigError struct {
	Missing string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("launcher: environment variable %s is not set", e.Missing)
}

// CollisionError reports a display or port found already in use. Recovered
// locally by retrying with a newly allocated resource, up to the ceiling.
type CollisionError struct {
	Resource string // "display" or "port"
	Value    string
	Line     string // the output line that identified the collision
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("launcher: %s %s already in use", e.Resource, e.Value)
}

// StartupError reports a child process that exited unexpectedly or closed
// its output before signaling readiness. Fatal for that launch.
type StartupError struct {
	Name     string
	ExitCode int
	Output   []string
	Cause    error // set when the failure was itself a collision (explicit display)
}

func (e *StartupError) Error() string {
	msg := fmt.Sprintf("launcher: %s failed to start (exit code %d)", e.Name, e.ExitCode)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if len(e.Output) > 0 {
		msg += "\n" + strings.Join(e.Output, "\n")
	}
	return msg
}

func (e *StartupError) Unwrap() error {
	return e.Cause
}

// RetryExhaustedError reports that the retry ceiling was reached. Fatal,
// carrying the last known cause.
type RetryExhaustedError struct {
	Name     string
	Attempts int
	Last     error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("launcher: giving up on %s after %d attempts: %v", e.Name, e.Attempts, e.Last)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.Last
}
