package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/holdings-cli/internal/model"
	"github.com/sells-group/holdings-cli/internal/store"
)

// scanLimit caps how many recent runs one collection reads.
const scanLimit = 500

// MetricsSnapshot holds a point-in-time view of ingest health.
type MetricsSnapshot struct {
	// Runs started within the lookback window.
	RunsTotal    int     `json:"runs_total"`
	RunsComplete int     `json:"runs_complete"`
	RunsFailed   int     `json:"runs_failed"`
	RunsRunning  int     `json:"runs_running"`
	FailRate     float64 `json:"fail_rate"`

	// Totals over completed runs in the window.
	InvestorsProcessed int     `json:"investors_processed"`
	InvestorsSkipped   int     `json:"investors_skipped"`
	QuartersWritten    int     `json:"quarters_written"`
	QuartersSkipped    int     `json:"quarters_skipped"`
	Warnings           int     `json:"warnings"`
	SkipRate           float64 `json:"skip_rate"`

	// Most recent completed run, in or out of the window.
	LastSuccess *time.Time `json:"last_success,omitempty"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// RunLister is the slice of store.RunStore the collector reads.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
}

// Collector gathers metrics from the run log.
type Collector struct {
	runs RunLister
	now  func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(runs RunLister) *Collector {
	return &Collector{runs: runs, now: time.Now}
}

// Collect gathers a snapshot of run metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	// Newest first, so the window ends at the first older run.
	runs, err := c.runs.ListRuns(ctx, store.RunFilter{Limit: scanLimit})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	for _, r := range runs {
		if r.StartedAt.Before(cutoff) {
			break
		}
		snap.RunsTotal++
		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
			snap.InvestorsProcessed += r.Stats.InvestorsProcessed
			snap.InvestorsSkipped += r.Stats.InvestorsSkipped
			snap.QuartersWritten += r.Stats.QuartersWritten
			snap.QuartersSkipped += r.Stats.QuartersSkipped
			snap.Warnings += len(r.Warnings)
		case model.RunStatusFailed:
			snap.RunsFailed++
		case model.RunStatusRunning:
			snap.RunsRunning++
		}
	}

	if finished := snap.RunsComplete + snap.RunsFailed; finished > 0 {
		snap.FailRate = float64(snap.RunsFailed) / float64(finished)
	}
	if attempted := snap.InvestorsProcessed + snap.InvestorsSkipped; attempted > 0 {
		snap.SkipRate = float64(snap.InvestorsSkipped) / float64(attempted)
	}

	last, err := c.runs.ListRuns(ctx, store.RunFilter{Status: model.RunStatusComplete, Limit: 1})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: last complete run")
	}
	if len(last) > 0 {
		t := last[0].StartedAt
		if last[0].CompletedAt != nil {
			t = *last[0].CompletedAt
		}
		snap.LastSuccess = &t
	}

	return snap, nil
}
