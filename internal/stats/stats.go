// Package stats keeps in-process launch latency percentiles. Prometheus
// histograms answer "how is the fleet doing"; this answers "how did this
// process do" without a scrape round trip.
package stats

import (
	"sync"
	"time"

	"github.com/influxdata/tdigest"
)

// Phase identifies which launch stage a sample belongs to.
type Phase string

const (
	PhaseDisplay  Phase = "display"
	PhaseSelenium Phase = "selenium"
	PhaseClient   Phase = "client"
)

// phaseDigest accumulates samples for one phase.
type phaseDigest struct {
	digest *tdigest.TDigest
	count  int64
	max    float64
}

// Recorder accumulates launch durations per phase. A nil Recorder records
// nothing, so callers never need to check before recording.
type Recorder struct {
	mu     sync.Mutex
	phases map[Phase]*phaseDigest
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{phases: make(map[Phase]*phaseDigest)}
}

// Record adds one launch duration sample for a phase.
func (r *Recorder) Record(phase Phase, d time.Duration) {
	if r == nil {
		return
	}
	seconds := d.Seconds()

	r.mu.Lock()
	defer r.mu.Unlock()

	pd := r.phases[phase]
	if pd == nil {
		// ~100 centroids, ~10KB
		pd = &phaseDigest{digest: tdigest.NewWithCompression(100)}
		r.phases[phase] = pd
	}
	pd.digest.Add(seconds, 1)
	pd.count++
	if seconds > pd.max {
		pd.max = seconds
	}
}

// PhaseSummary is a point-in-time percentile view of one phase, in seconds.
type PhaseSummary struct {
	Count int64
	P50   float64
	P95   float64
	P99   float64
	Max   float64
}

// Summary returns per-phase percentiles for every phase with samples.
func (r *Recorder) Summary() map[Phase]PhaseSummary {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[Phase]PhaseSummary, len(r.phases))
	for phase, pd := range r.phases {
		out[phase] = PhaseSummary{
			Count: pd.count,
			P50:   pd.digest.Quantile(0.50),
			P95:   pd.digest.Quantile(0.95),
			P99:   pd.digest.Quantile(0.99),
			Max:   pd.max,
		}
	}
	return out
}
