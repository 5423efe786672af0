// Package analysis derives position changes between two snapshots of one
// investor and ranks securities moved by several investors at once.
package analysis

import (
	"cmp"
	"slices"

	"github.com/rotisserie/eris"

	"github.com/sells-group/holdings-cli/internal/model"
)

// Thresholds flag large moves. Values are whole US dollars.
type Thresholds struct {
	MajorMove          int64
	SignificantValue   int64
	SignificantPercent float64
}

// DefaultThresholds returns $1B major, $100M or 10% significant.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MajorMove:          1_000_000_000,
		SignificantValue:   100_000_000,
		SignificantPercent: 10,
	}
}

// Holding is the per-security total of a snapshot.
type Holding struct {
	SecurityID string
	IssuerName string
	Shares     int64
	Value      int64
}

// AggregateBySecurity sums positions sharing a security id. Filers often split
// one security across sub-records; totals do not depend on record order. The
// first issuer name seen is kept.
func AggregateBySecurity(positions []model.Position) map[string]Holding {
	out := make(map[string]Holding, len(positions))
	for _, p := range positions {
		h, ok := out[p.SecurityID]
		if !ok {
			h = Holding{SecurityID: p.SecurityID, IssuerName: p.IssuerName}
		}
		h.Shares += p.Shares
		h.Value += p.Value
		out[p.SecurityID] = h
	}
	return out
}

// DetectChanges diffs two snapshots of the same investor. prev must be from an
// earlier quarter than curr.
func DetectChanges(prev, curr *model.Snapshot, th Thresholds) (*model.ChangeSet, error) {
	if prev == nil || curr == nil {
		return nil, eris.New("analysis: both snapshots are required")
	}
	if prev.InvestorID != curr.InvestorID {
		return nil, eris.Errorf("analysis: snapshots belong to %s and %s", prev.InvestorID, curr.InvestorID)
	}
	if !prev.Quarter.Before(curr.Quarter) {
		return nil, eris.Errorf("analysis: %s is not before %s", prev.Quarter, curr.Quarter)
	}

	before := AggregateBySecurity(prev.Positions)
	after := AggregateBySecurity(curr.Positions)

	var changes []model.PortfolioChange
	for id, c := range after {
		p, held := before[id]
		if !held {
			changes = append(changes, opened(c, th))
			continue
		}
		if ch, keep := compare(p, c, th); keep {
			changes = append(changes, ch)
		}
	}
	for id, p := range before {
		if _, held := after[id]; !held {
			changes = append(changes, closed(p, th))
		}
	}
	SortChanges(changes)

	set := &model.ChangeSet{
		InvestorID:      curr.InvestorID,
		PreviousQuarter: prev.Quarter,
		CurrentQuarter:  curr.Quarter,
		Changes:         changes,
	}
	if set.Changes == nil {
		set.Changes = []model.PortfolioChange{}
	}
	set.Summary = summarize(changes, prev.TotalValue, curr.TotalValue)
	return set, nil
}

func opened(c Holding, th Thresholds) model.PortfolioChange {
	return model.PortfolioChange{
		SecurityID:    c.SecurityID,
		IssuerName:    c.IssuerName,
		ChangeType:    model.ChangeNew,
		CurrentShares: c.Shares,
		CurrentValue:  c.Value,
		ShareDelta:    c.Shares,
		ValueDelta:    c.Value,
		PercentDelta:  100,
		IsMajorMove:   abs(c.Value) > th.MajorMove,
		IsSignificant: abs(c.Value) > th.SignificantValue,
	}
}

func closed(p Holding, th Thresholds) model.PortfolioChange {
	return model.PortfolioChange{
		SecurityID:     p.SecurityID,
		IssuerName:     p.IssuerName,
		ChangeType:     model.ChangeSold,
		PreviousShares: p.Shares,
		PreviousValue:  p.Value,
		ShareDelta:     -p.Shares,
		ValueDelta:     -p.Value,
		PercentDelta:   -100,
		IsMajorMove:    abs(p.Value) > th.MajorMove,
		IsSignificant:  abs(p.Value) > th.SignificantValue,
	}
}

// compare diffs a security held in both quarters. Unchanged share counts are
// kept only when the value move alone is major or significant.
func compare(p, c Holding, th Thresholds) (model.PortfolioChange, bool) {
	shareDelta := c.Shares - p.Shares
	valueDelta := c.Value - p.Value

	var pct float64
	if p.Shares != 0 {
		pct = float64(shareDelta) / float64(p.Shares) * 100
	}

	kind := model.ChangeUnchanged
	switch {
	case shareDelta > 0:
		kind = model.ChangeIncreased
	case shareDelta < 0:
		kind = model.ChangeDecreased
	}

	major := abs(valueDelta) > th.MajorMove
	significant := absf(pct) > th.SignificantPercent || abs(valueDelta) > th.SignificantValue
	if kind == model.ChangeUnchanged && !major && !significant {
		return model.PortfolioChange{}, false
	}

	issuer := c.IssuerName
	if issuer == "" {
		issuer = p.IssuerName
	}
	return model.PortfolioChange{
		SecurityID:     c.SecurityID,
		IssuerName:     issuer,
		ChangeType:     kind,
		PreviousShares: p.Shares,
		CurrentShares:  c.Shares,
		PreviousValue:  p.Value,
		CurrentValue:   c.Value,
		ShareDelta:     shareDelta,
		ValueDelta:     valueDelta,
		PercentDelta:   pct,
		IsMajorMove:    major,
		IsSignificant:  significant,
	}, true
}

// SortChanges orders major moves first, then by absolute value delta
// descending, then by security id.
func SortChanges(changes []model.PortfolioChange) {
	slices.SortFunc(changes, func(a, b model.PortfolioChange) int {
		if a.IsMajorMove != b.IsMajorMove {
			if a.IsMajorMove {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(abs(b.ValueDelta), abs(a.ValueDelta)); c != 0 {
			return c
		}
		return cmp.Compare(a.SecurityID, b.SecurityID)
	})
}

func summarize(changes []model.PortfolioChange, prevTotal, currTotal int64) model.ChangeSummary {
	s := model.ChangeSummary{
		PreviousValue:   prevTotal,
		CurrentValue:    currTotal,
		TotalValueDelta: currTotal - prevTotal,
	}
	for _, c := range changes {
		switch c.ChangeType {
		case model.ChangeNew:
			s.NewPositions++
		case model.ChangeSold:
			s.SoldPositions++
		case model.ChangeIncreased:
			s.Increased++
		case model.ChangeDecreased:
			s.Decreased++
		}
		if c.IsMajorMove {
			s.MajorMoves++
		}
	}
	return s
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
