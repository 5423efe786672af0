package analysis

import (
	"cmp"
	"slices"

	"github.com/samber/lo"

	"github.com/sells-group/holdings-cli/internal/model"
)

// TrendOptions filters and weighs trending securities.
type TrendOptions struct {
	MinInvestors  int
	MinValueDelta int64
	MajorMove     int64
}

// DefaultTrendOptions returns two investors, $100M aggregate, $1B major.
func DefaultTrendOptions() TrendOptions {
	return TrendOptions{
		MinInvestors:  2,
		MinValueDelta: 100_000_000,
		MajorMove:     1_000_000_000,
	}
}

// Score weights.
const (
	weightInvestor    = 10
	weightMajorMove   = 20
	weightNewPosition = 15
	weightBillion     = 5
)

// AggregateTrends groups the changes of many investors across one quarter
// boundary by security and ranks the groups that clear both thresholds.
// Unchanged share counts still participate but lean neither way.
func AggregateTrends(sets []*model.ChangeSet, opt TrendOptions) *model.TrendReport {
	report := &model.TrendReport{Securities: []model.TrendingSecurity{}}

	groups := make(map[string]*model.TrendingSecurity)
	active := make(map[string]bool)
	for _, set := range sets {
		if set == nil {
			continue
		}
		if report.CurrentQuarter.IsZero() {
			report.PreviousQuarter = set.PreviousQuarter
			report.CurrentQuarter = set.CurrentQuarter
		}
		for _, c := range set.Changes {
			active[set.InvestorID] = true

			g, ok := groups[c.SecurityID]
			if !ok {
				g = &model.TrendingSecurity{SecurityID: c.SecurityID, IssuerName: c.IssuerName}
				groups[c.SecurityID] = g
			}
			g.Participants = append(g.Participants, model.Participant{
				InvestorID:   set.InvestorID,
				ChangeType:   c.ChangeType,
				ShareDelta:   c.ShareDelta,
				ValueDelta:   c.ValueDelta,
				PercentDelta: c.PercentDelta,
				CurrentValue: c.CurrentValue,
				IsMajorMove:  abs(c.ValueDelta) > opt.MajorMove,
			})
			g.AggregateValueDelta += abs(c.ValueDelta)
			g.NetValueDelta += c.ValueDelta
			g.NetShareDelta += c.ShareDelta
		}
	}

	for _, g := range groups {
		g.TotalInvestorCount = len(lo.UniqBy(g.Participants, func(p model.Participant) string { return p.InvestorID }))
		if g.TotalInvestorCount < opt.MinInvestors || g.AggregateValueDelta < opt.MinValueDelta {
			continue
		}
		score(g)
		slices.SortFunc(g.Participants, func(a, b model.Participant) int {
			return cmp.Compare(a.InvestorID, b.InvestorID)
		})
		report.Securities = append(report.Securities, *g)
	}

	slices.SortFunc(report.Securities, func(a, b model.TrendingSecurity) int {
		if c := cmp.Compare(b.TrendingScore, a.TrendingScore); c != 0 {
			return c
		}
		return cmp.Compare(a.SecurityID, b.SecurityID)
	})

	report.Summary = model.TrendSummary{
		TotalSecurities: len(report.Securities),
		Bullish:         lo.CountBy(report.Securities, func(s model.TrendingSecurity) bool { return s.Sentiment == model.SentimentBullish }),
		Bearish:         lo.CountBy(report.Securities, func(s model.TrendingSecurity) bool { return s.Sentiment == model.SentimentBearish }),
		Mixed:           lo.CountBy(report.Securities, func(s model.TrendingSecurity) bool { return s.Sentiment == model.SentimentMixed }),
		ActiveInvestors: len(active),
	}
	return report
}

// score sets the trending score and sentiment of a group.
func score(g *model.TrendingSecurity) {
	major := lo.CountBy(g.Participants, func(p model.Participant) bool { return p.IsMajorMove })
	opened := lo.CountBy(g.Participants, func(p model.Participant) bool { return p.ChangeType == model.ChangeNew })
	up := lo.CountBy(g.Participants, func(p model.Participant) bool { return p.ChangeType.Bullish() })
	down := lo.CountBy(g.Participants, func(p model.Participant) bool { return p.ChangeType.Bearish() })

	g.TrendingScore = float64(weightInvestor*g.TotalInvestorCount+weightMajorMove*major+weightNewPosition*opened) +
		weightBillion*float64(g.AggregateValueDelta)/1e9

	switch {
	case up > 2*down:
		g.Sentiment = model.SentimentBullish
	case down > 2*up:
		g.Sentiment = model.SentimentBearish
	default:
		g.Sentiment = model.SentimentMixed
	}
}
