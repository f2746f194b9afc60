// Package preflight provides startup validation checks.
package preflight

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/selspawn/go-headless-selenium/internal/config"
)

// Check represents the result of a single preflight check.
type Check struct {
	Name    string // Name of the check
	Passed  bool   // Whether the check passed
	Warning bool   // True if it's a warning (non-fatal)
	Message string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}
	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

// Err returns nil when every check passed, otherwise an error listing the
// failures.
func (r *Result) Err() error {
	if r.Passed {
		return nil
	}
	var failed []string
	for _, c := range r.Checks {
		if !c.Passed {
			failed = append(failed, c.Name+": "+c.Message)
		}
	}
	return fmt.Errorf("preflight failed: %s", strings.Join(failed, "; "))
}

// RunAll executes all preflight checks against a configuration.
func RunAll(cfg *config.Config) *Result {
	result := &Result{
		Checks: make([]Check, 0, 4),
		Passed: true,
	}

	for _, check := range []Check{
		checkXvfb(cfg.XvfbPath),
		checkJava(cfg.JavaPath),
		checkServerJar(cfg.ServerJar),
		checkFileDescriptors(),
	} {
		result.Checks = append(result.Checks, check)
		if !check.Passed {
			result.Passed = false
		}
	}

	return result
}

// checkXvfb verifies the display server binary is present and executable.
func checkXvfb(path string) Check {
	resolved, err := exec.LookPath(path)
	if err != nil {
		return Check{
			Name:    "xvfb",
			Passed:  false,
			Message: fmt.Sprintf("not found at %s: %v", path, err),
		}
	}
	return Check{
		Name:    "xvfb",
		Passed:  true,
		Message: "found at " + resolved,
	}
}

// checkJava verifies the JVM runs and extracts its version. java prints
// version information to stderr.
func checkJava(path string) Check {
	cmd := exec.Command(path, "-version")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return Check{
			Name:    "java",
			Passed:  false,
			Message: fmt.Sprintf("not runnable at %s: %v", path, err),
		}
	}

	version := "unknown"
	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		// `openjdk version "21.0.2" 2024-01-16`
		if i := strings.Index(lines[0], `"`); i >= 0 {
			rest := lines[0][i+1:]
			if j := strings.Index(rest, `"`); j >= 0 {
				version = rest[:j]
			}
		}
	}

	return Check{
		Name:    "java",
		Passed:  true,
		Message: fmt.Sprintf("found at %s (version %s)", path, version),
	}
}

// checkServerJar verifies the Selenium server jar is readable. An unset jar
// is a warning here, not a failure: it only becomes fatal when a session is
// actually requested.
func checkServerJar(path string) Check {
	if path == "" {
		return Check{
			Name:    "selenium_jar",
			Passed:  true,
			Warning: true,
			Message: config.EnvServerJar + " is not set",
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return Check{
			Name:    "selenium_jar",
			Passed:  false,
			Message: fmt.Sprintf("not readable at %s: %v", path, err),
		}
	}
	if info.IsDir() {
		return Check{
			Name:    "selenium_jar",
			Passed:  false,
			Message: path + " is a directory",
		}
	}

	return Check{
		Name:    "selenium_jar",
		Passed:  true,
		Message: fmt.Sprintf("found at %s (%d bytes)", path, info.Size()),
	}
}

// checkFileDescriptors verifies headroom for the pipes each session opens.
// Every session holds two processes with two capture pipes each, plus the
// WebDriver's HTTP connections.
func checkFileDescriptors() Check {
	var limit syscall.Rlimit
	syscall.Getrlimit(syscall.RLIMIT_NOFILE, &limit)

	const required = 256
	actual := int(limit.Cur)

	return Check{
		Name:    "file_descriptors",
		Passed:  actual >= required,
		Message: fmt.Sprintf("ulimit -n %d (need %d)", actual, required),
	}
}
