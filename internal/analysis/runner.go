package analysis

import (
	"context"
	"errors"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/holdings-cli/internal/model"
	"github.com/sells-group/holdings-cli/internal/snapshot"
)

// ErrNoBoundary means fewer than two stored quarters exist to compare.
var ErrNoBoundary = errors.New("analysis: fewer than two quarters available")

// loadConcurrency bounds parallel snapshot loads.
const loadConcurrency = 8

// LatestBoundary returns the two most recent distinct quarters stored for any
// of the investors. An empty investor list means every stored investor.
func LatestBoundary(ctx context.Context, r snapshot.Reader, investors []string) (prev, curr model.QuarterKey, err error) {
	investors, err = resolveInvestors(ctx, r, investors)
	if err != nil {
		return prev, curr, err
	}

	var all []model.QuarterKey
	for _, id := range investors {
		qs, err := r.Quarters(ctx, id)
		if err != nil {
			return prev, curr, eris.Wrapf(err, "analysis: quarters for %s", id)
		}
		all = append(all, qs...)
	}
	return lastTwo(all)
}

// InvestorBoundary returns an investor's two most recent stored quarters.
func InvestorBoundary(ctx context.Context, r snapshot.Reader, investor string) (prev, curr model.QuarterKey, err error) {
	qs, err := r.Quarters(ctx, investor)
	if err != nil {
		return prev, curr, eris.Wrapf(err, "analysis: quarters for %s", investor)
	}
	return lastTwo(qs)
}

func lastTwo(qs []model.QuarterKey) (prev, curr model.QuarterKey, err error) {
	qs = lo.Uniq(qs)
	if len(qs) < 2 {
		return prev, curr, ErrNoBoundary
	}
	model.SortQuarters(qs)
	return qs[len(qs)-2], qs[len(qs)-1], nil
}

// InvestorChanges diffs one investor's snapshots for prev and curr.
func InvestorChanges(ctx context.Context, r snapshot.Reader, investor string, prev, curr model.QuarterKey, th Thresholds) (*model.ChangeSet, error) {
	before, err := r.Load(ctx, investor, prev)
	if err != nil {
		return nil, err
	}
	after, err := r.Load(ctx, investor, curr)
	if err != nil {
		return nil, err
	}
	return DetectChanges(before, after, th)
}

// CompareQuarters builds change sets for every investor holding snapshots for
// both quarters. Investors missing either snapshot are left out.
func CompareQuarters(ctx context.Context, r snapshot.Reader, investors []string, prev, curr model.QuarterKey, th Thresholds) ([]*model.ChangeSet, error) {
	if !prev.Before(curr) {
		return nil, eris.Errorf("analysis: %s is not before %s", prev, curr)
	}
	investors, err := resolveInvestors(ctx, r, investors)
	if err != nil {
		return nil, err
	}
	log := zap.L().With(zap.String("component", "analysis"), zap.String("boundary", prev.String()+".."+curr.String()))

	var (
		mu   sync.Mutex
		sets = make(map[string]*model.ChangeSet, len(investors))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(loadConcurrency)
	for _, id := range investors {
		g.Go(func() error {
			set, err := InvestorChanges(gctx, r, id, prev, curr, th)
			if errors.Is(err, model.ErrNotFound) {
				log.Debug("investor lacks a snapshot for the boundary", zap.String("investor", id))
				return nil
			}
			if err != nil {
				return eris.Wrapf(err, "analysis: changes for %s", id)
			}
			mu.Lock()
			sets[id] = set
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Input order, not completion order.
	out := make([]*model.ChangeSet, 0, len(sets))
	for _, id := range investors {
		if s, ok := sets[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// TrendForQuarters aggregates trends across the prev..curr boundary.
func TrendForQuarters(ctx context.Context, r snapshot.Reader, investors []string, prev, curr model.QuarterKey, th Thresholds, opt TrendOptions) (*model.TrendReport, error) {
	sets, err := CompareQuarters(ctx, r, investors, prev, curr, th)
	if err != nil {
		return nil, err
	}
	report := AggregateTrends(sets, opt)
	report.PreviousQuarter = prev
	report.CurrentQuarter = curr
	return report, nil
}

// RunLatest aggregates trends across the most recent stored boundary.
func RunLatest(ctx context.Context, r snapshot.Reader, investors []string, th Thresholds, opt TrendOptions) (*model.TrendReport, error) {
	prev, curr, err := LatestBoundary(ctx, r, investors)
	if err != nil {
		return nil, err
	}
	return TrendForQuarters(ctx, r, investors, prev, curr, th, opt)
}

func resolveInvestors(ctx context.Context, r snapshot.Reader, investors []string) ([]string, error) {
	if len(investors) > 0 {
		return lo.Uniq(investors), nil
	}
	ids, err := r.Investors(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "analysis: list investors")
	}
	return ids, nil
}
