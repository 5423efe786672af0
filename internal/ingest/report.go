package ingest

import (
	"cmp"
	"fmt"
	"slices"
	"sync"

	"github.com/sells-group/holdings-cli/internal/config"
	"github.com/sells-group/holdings-cli/internal/model"
)

// Report accumulates the outcome of one ingest run. Fields are safe to read
// once Run has returned.
type Report struct {
	Stats    model.RunStats
	Skips    []model.SkipEntry
	Warnings []model.Warning

	mu sync.Mutex
}

func (r *Report) update(fn func(s *model.RunStats)) {
	r.mu.Lock()
	fn(&r.Stats)
	r.mu.Unlock()
}

func (r *Report) skip(investor string, q model.QuarterKey, stage model.Stage, err error) {
	entry := model.SkipEntry{InvestorID: investor, Stage: stage, Reason: err.Error()}
	if !q.IsZero() {
		entry.Quarter = q.String()
	}
	r.mu.Lock()
	r.Skips = append(r.Skips, entry)
	if q.IsZero() {
		r.Stats.InvestorsSkipped++
	} else {
		r.Stats.QuartersSkipped++
	}
	r.mu.Unlock()
}

func (r *Report) warn(investor string, q model.QuarterKey, msg string) {
	r.mu.Lock()
	r.Warnings = append(r.Warnings, model.Warning{InvestorID: investor, Quarter: q.String(), Message: msg})
	r.mu.Unlock()
}

// sort orders skips and warnings by investor, then quarter.
func (r *Report) sort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	slices.SortStableFunc(r.Skips, func(a, b model.SkipEntry) int {
		if c := cmp.Compare(a.InvestorID, b.InvestorID); c != 0 {
			return c
		}
		return cmp.Compare(a.Quarter, b.Quarter)
	})
	slices.SortStableFunc(r.Warnings, func(a, b model.Warning) int {
		if c := cmp.Compare(a.InvestorID, b.InvestorID); c != 0 {
			return c
		}
		return cmp.Compare(a.Quarter, b.Quarter)
	})
}

// Plausibility compares a snapshot total against the investor's configured
// approximate assets. It returns a warning message when the ratio falls
// outside [1/factor, factor], which usually means a thousands versus
// whole-dollar scaling error. factor <= 1 or a missing approximation disables
// the check.
func Plausibility(inv config.Investor, total int64, factor float64) (string, bool) {
	if factor <= 1 || inv.ApproxAUM <= 0 || total <= 0 {
		return "", false
	}
	ratio := float64(total) / float64(inv.ApproxAUM)
	if ratio <= factor && ratio >= 1/factor {
		return "", false
	}
	hint := "values look already whole dollars; consider the whole-dollar allow-list"
	if ratio < 1 {
		hint = "values look like thousands read as whole dollars"
	}
	return fmt.Sprintf("total value $%d is %.4gx approx_aum $%d: %s", total, ratio, inv.ApproxAUM, hint), true
}
