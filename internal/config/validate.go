package config

import (
	"errors"
	"fmt"
)

// ValidationError describes one invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors and inconsistencies.
// The server jar is deliberately not checked here; see EnvServerJar.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.XvfbPath == "" {
		errs = append(errs, ValidationError{Field: "xvfb_path", Message: "must not be empty"})
	}
	if cfg.JavaPath == "" {
		errs = append(errs, ValidationError{Field: "java_path", Message: "must not be empty"})
	}
	if cfg.Browser == "" {
		errs = append(errs, ValidationError{Field: "browser", Message: "must not be empty"})
	}

	if cfg.DisplayMax < 1 {
		errs = append(errs, ValidationError{Field: "display_max", Message: "must be at least 1"})
	}
	if cfg.PortMin < 1 || cfg.PortMin > 65535 {
		errs = append(errs, ValidationError{Field: "port_min", Message: "must be a valid port"})
	}
	if cfg.PortMax < 1 || cfg.PortMax > 65535 {
		errs = append(errs, ValidationError{Field: "port_max", Message: "must be a valid port"})
	}
	if cfg.PortMin >= cfg.PortMax {
		errs = append(errs, ValidationError{
			Field:   "port_min",
			Message: fmt.Sprintf("must be below port_max (got %d >= %d)", cfg.PortMin, cfg.PortMax),
		})
	}

	if cfg.StartupGrace < 0 {
		errs = append(errs, ValidationError{Field: "startup_grace", Message: "must not be negative"})
	}
	if cfg.MaxAttempts < 1 {
		errs = append(errs, ValidationError{Field: "max_attempts", Message: "must be at least 1"})
	}
	if cfg.ClientRetries < 1 {
		errs = append(errs, ValidationError{Field: "client_retries", Message: "must be at least 1"})
	}
	if cfg.ClientBackoff < 0 {
		errs = append(errs, ValidationError{Field: "client_backoff", Message: "must not be negative"})
	}

	return errors.Join(errs...)
}
