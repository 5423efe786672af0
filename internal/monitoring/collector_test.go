package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/holdings-cli/internal/model"
	"github.com/sells-group/holdings-cli/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

// mockRuns serves runs newest first, like the real stores.
type mockRuns struct {
	runs    []model.Run
	listErr error
}

func (m *mockRuns) ListRuns(_ context.Context, filter store.RunFilter) ([]model.Run, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []model.Run
	for _, r := range m.runs {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		out = append(out, r)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func run(status model.RunStatus, ago time.Duration, stats model.RunStats) model.Run {
	started := fixedNow.Add(-ago)
	r := model.Run{ID: string(status) + ago.String(), Status: status, StartedAt: started, Stats: stats}
	if status != model.RunStatusRunning {
		done := started.Add(10 * time.Minute)
		r.CompletedAt = &done
	}
	return r
}

func newTestCollector(runs RunLister) *Collector {
	c := NewCollector(runs)
	c.now = func() time.Time { return fixedNow }
	return c
}

func TestCollector_Collect(t *testing.T) {
	runs := &mockRuns{runs: []model.Run{
		run(model.RunStatusRunning, time.Hour, model.RunStats{}),
		run(model.RunStatusComplete, 2*time.Hour, model.RunStats{InvestorsProcessed: 8, InvestorsSkipped: 2, QuartersWritten: 5, QuartersSkipped: 1}),
		run(model.RunStatusFailed, 5*time.Hour, model.RunStats{}),
		run(model.RunStatusComplete, 10*time.Hour, model.RunStats{InvestorsProcessed: 10, QuartersWritten: 3}),
		// Outside the 24h window.
		run(model.RunStatusFailed, 30*time.Hour, model.RunStats{}),
	}}
	runs.runs[1].Warnings = []model.Warning{{InvestorID: "berkshire", Message: "odd"}}

	snap, err := newTestCollector(runs).Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 4, snap.RunsTotal)
	assert.Equal(t, 2, snap.RunsComplete)
	assert.Equal(t, 1, snap.RunsFailed)
	assert.Equal(t, 1, snap.RunsRunning)
	assert.InDelta(t, 1.0/3.0, snap.FailRate, 1e-9)
	assert.Equal(t, 18, snap.InvestorsProcessed)
	assert.Equal(t, 2, snap.InvestorsSkipped)
	assert.Equal(t, 8, snap.QuartersWritten)
	assert.Equal(t, 1, snap.Warnings)
	assert.InDelta(t, 0.1, snap.SkipRate, 1e-9)
	require.NotNil(t, snap.LastSuccess)
	assert.Equal(t, fixedNow.Add(-2*time.Hour+10*time.Minute), *snap.LastSuccess)
	assert.Equal(t, 24, snap.LookbackHours)
	assert.Equal(t, fixedNow, snap.CollectedAt)
}

func TestCollector_Empty(t *testing.T) {
	snap, err := newTestCollector(&mockRuns{}).Collect(context.Background(), 24)
	require.NoError(t, err)
	assert.Zero(t, snap.RunsTotal)
	assert.Zero(t, snap.FailRate)
	assert.Zero(t, snap.SkipRate)
	assert.Nil(t, snap.LastSuccess)
}

func TestCollector_LastSuccessOutsideWindow(t *testing.T) {
	runs := &mockRuns{runs: []model.Run{
		run(model.RunStatusFailed, time.Hour, model.RunStats{}),
		run(model.RunStatusComplete, 72*time.Hour, model.RunStats{InvestorsProcessed: 4}),
	}}
	snap, err := newTestCollector(runs).Collect(context.Background(), 24)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.RunsTotal)
	assert.Zero(t, snap.InvestorsProcessed)
	require.NotNil(t, snap.LastSuccess)
	assert.True(t, snap.LastSuccess.Before(fixedNow.Add(-48*time.Hour)))
}

func TestCollector_ListError(t *testing.T) {
	_, err := newTestCollector(&mockRuns{listErr: errors.New("db down")}).Collect(context.Background(), 24)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}
