// Package config provides configuration for go-headless-selenium.
//
// Everything is environment-driven: settings live under the HEADLESS_ prefix
// (HEADLESS_XVFB_PATH, HEADLESS_STARTUP_GRACE, ...), except the Selenium
// server jar which keeps its conventional SELENIUM_SERVER_JAR name.
package config

import (
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvServerJar is the environment variable naming the Selenium server jar.
// Its absence is a configuration error surfaced when the automation server
// is launched, never at load time.
const EnvServerJar = "SELENIUM_SERVER_JAR"

// envPrefix is the envconfig prefix for all other settings.
const envPrefix = "headless"

// Config holds all settings for launching sessions.
type Config struct {
	// ServerJar is the path to the Selenium server jar, read from
	// SELENIUM_SERVER_JAR (not the HEADLESS_ prefix).
	ServerJar string `ignored:"true"`

	// Binaries.
	XvfbPath string `split_words:"true" default:"Xvfb"`
	JavaPath string `split_words:"true" default:"java"`

	// Browser is the browser the WebDriver client asks Selenium to launch.
	Browser string `default:"firefox"`

	// Allocation ranges.
	DisplayMax int `split_words:"true" default:"400"`
	PortMin    int `split_words:"true" default:"1025"`
	PortMax    int `split_words:"true" default:"65535"`

	// StartupGrace is how long the display launcher waits for an immediate
	// crash to surface before trusting the process.
	StartupGrace time.Duration `split_words:"true" default:"500ms"`

	// MaxAttempts bounds collision retries per launcher.
	MaxAttempts int `split_words:"true" default:"10"`

	// Client connect retry policy.
	ClientRetries int           `split_words:"true" default:"10"`
	ClientBackoff time.Duration `split_words:"true" default:"2s"`

	// Observability.
	MetricsAddr string `split_words:"true"`
	LogFormat   string `split_words:"true" default:"json"`
	LogLevel    string `split_words:"true" default:"info"`
}

// Default returns a Config with the documented defaults and no environment
// applied. Mostly useful in tests.
func Default() *Config {
	return &Config{
		XvfbPath:      "Xvfb",
		JavaPath:      "java",
		Browser:       "firefox",
		DisplayMax:    400,
		PortMin:       1025,
		PortMax:       65535,
		StartupGrace:  500 * time.Millisecond,
		MaxAttempts:   10,
		ClientRetries: 10,
		ClientBackoff: 2 * time.Second,
		LogFormat:     "json",
		LogLevel:      "info",
	}
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, err
	}
	cfg.ServerJar = os.Getenv(EnvServerJar)
	return &cfg, nil
}
