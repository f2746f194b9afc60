package preflight

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/selspawn/go-headless-selenium/internal/config"
)

func TestCheckXvfb(t *testing.T) {
	// sh is always present; it stands in for any executable binary.
	check := checkXvfb("sh")
	if !check.Passed {
		t.Errorf("sh should pass: %s", check.Message)
	}

	check = checkXvfb("/nonexistent/Xvfb")
	if check.Passed {
		t.Error("missing binary should fail")
	}
}

func TestCheckJavaParsesVersion(t *testing.T) {
	dir := t.TempDir()
	java := filepath.Join(dir, "java")
	script := `#!/bin/sh
echo 'openjdk version "21.0.2" 2024-01-16' >&2
`
	if err := os.WriteFile(java, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	check := checkJava(java)
	if !check.Passed {
		t.Fatalf("fake java should pass: %s", check.Message)
	}
	if !strings.Contains(check.Message, "21.0.2") {
		t.Errorf("version not extracted: %s", check.Message)
	}
}

func TestCheckJavaMissing(t *testing.T) {
	check := checkJava("/nonexistent/java")
	if check.Passed {
		t.Error("missing java should fail")
	}
}

func TestCheckServerJar(t *testing.T) {
	check := checkServerJar("")
	if !check.Passed || !check.Warning {
		t.Errorf("unset jar should warn, not fail: %+v", check)
	}

	check = checkServerJar("/nonexistent/server.jar")
	if check.Passed {
		t.Error("missing jar should fail")
	}

	dir := t.TempDir()
	jar := filepath.Join(dir, "server.jar")
	if err := os.WriteFile(jar, []byte("PK"), 0o644); err != nil {
		t.Fatal(err)
	}
	check = checkServerJar(jar)
	if !check.Passed {
		t.Errorf("existing jar should pass: %s", check.Message)
	}

	check = checkServerJar(dir)
	if check.Passed {
		t.Error("directory should fail")
	}
}

func TestRunAll(t *testing.T) {
	cfg := config.Default()
	cfg.XvfbPath = "sh"
	cfg.JavaPath = "/nonexistent/java"

	result := RunAll(cfg)
	if result.Passed {
		t.Error("result should fail with a missing JVM")
	}
	if err := result.Err(); err == nil || !strings.Contains(err.Error(), "java") {
		t.Errorf("Err should name the failed check: %v", err)
	}

	var names []string
	for _, c := range result.Checks {
		names = append(names, c.Name)
	}
	for _, want := range []string{"xvfb", "java", "selenium_jar", "file_descriptors"} {
		found := false
		for _, n := range names {
			if n == want {
				found = true
			}
		}
		if !found {
			t.Errorf("check %q missing from %v", want, names)
		}
	}
}
