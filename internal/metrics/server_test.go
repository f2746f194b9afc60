package metrics

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func scrape(t *testing.T, addr string) map[string]*dto.MetricFamily {
	t.Helper()

	resp, err := http.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("scrape status = %d", resp.StatusCode)
	}

	families := make(map[string]*dto.MetricFamily)
	decoder := expfmt.NewDecoder(resp.Body, expfmt.NewFormat(expfmt.TypeTextPlain))
	for {
		var mf dto.MetricFamily
		if err := decoder.Decode(&mf); err == io.EOF {
			break
		} else if err != nil {
			t.Fatalf("decode: %v", err)
		}
		families[mf.GetName()] = &mf
	}
	return families
}

func TestServerExposesCollectorMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	c := NewCollectorWithRegistry(registry)

	srv := NewServerWithGatherer("127.0.0.1:0", registry, testLogger())
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	c.SessionStarted()
	c.DisplayCollision()
	c.LaunchAttempt(PhaseSelenium)

	families := scrape(t, srv.Addr())

	mf, ok := families["headless_sessions_started_total"]
	if !ok {
		t.Fatal("sessions started counter not exported")
	}
	if got := mf.GetMetric()[0].GetCounter().GetValue(); got != 1 {
		t.Errorf("sessions started = %v, want 1", got)
	}

	mf, ok = families["headless_launch_attempts_total"]
	if !ok {
		t.Fatal("launch attempts counter not exported")
	}
	m := mf.GetMetric()[0]
	if got := m.GetLabel()[0].GetValue(); got != "selenium" {
		t.Errorf("phase label = %q, want selenium", got)
	}
	if got := m.GetCounter().GetValue(); got != 1 {
		t.Errorf("selenium attempts = %v, want 1", got)
	}

	if _, ok := families["headless_display_collisions_total"]; !ok {
		t.Error("display collisions counter not exported")
	}
}

func TestServerHealthEndpoints(t *testing.T) {
	srv := NewServerWithGatherer("127.0.0.1:0", prometheus.NewRegistry(), testLogger())
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	for _, path := range []string{"/health", "/healthz", "/ready", "/readyz"} {
		resp, err := http.Get("http://" + srv.Addr() + path)
		if err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, resp.StatusCode)
		}
	}
}
