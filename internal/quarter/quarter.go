// Package quarter assigns filings to calendar quarters and picks the single
// filing that represents each quarter.
package quarter

import (
	"strings"

	"github.com/sells-group/holdings-cli/internal/model"
)

// Winner is the filing chosen for one quarter.
type Winner struct {
	Quarter model.QuarterKey   `json:"quarter"`
	Filing  model.FilingRecord `json:"filing"`
}

// KeyFor returns the quarter a filing belongs to. The filing date decides,
// not the reporting period. The second return is false when the filing date
// is missing.
func KeyFor(rec model.FilingRecord) (model.QuarterKey, bool) {
	if rec.FilingDate.IsZero() {
		return model.QuarterKey{}, false
	}
	return model.QuarterOf(rec.FilingDate), true
}

// SelectWinners keeps one filing per quarter: highest form priority, then
// latest filing date, then greatest accession id. The result does not depend
// on input order, and re-running on its own output returns the same winners.
func SelectWinners(recs []model.FilingRecord) map[model.QuarterKey]model.FilingRecord {
	out := make(map[model.QuarterKey]model.FilingRecord)
	for _, rec := range recs {
		if !rec.FormType.Eligible() {
			continue
		}
		key, ok := KeyFor(rec)
		if !ok {
			continue
		}
		if cur, exists := out[key]; !exists || beats(rec, cur) {
			out[key] = rec
		}
	}
	return out
}

// Winners returns SelectWinners as a slice ordered by ascending quarter.
func Winners(recs []model.FilingRecord) []Winner {
	byQuarter := SelectWinners(recs)
	keys := make([]model.QuarterKey, 0, len(byQuarter))
	for k := range byQuarter {
		keys = append(keys, k)
	}
	model.SortQuarters(keys)

	out := make([]Winner, len(keys))
	for i, k := range keys {
		out[i] = Winner{Quarter: k, Filing: byQuarter[k]}
	}
	return out
}

// Limit keeps the latest n winners of an ascending list. n <= 0 keeps all.
func Limit(ws []Winner, n int) []Winner {
	if n <= 0 || len(ws) <= n {
		return ws
	}
	return ws[len(ws)-n:]
}

func beats(a, b model.FilingRecord) bool {
	if pa, pb := a.FormType.Priority(), b.FormType.Priority(); pa != pb {
		return pa > pb
	}
	if c := a.FilingDate.Compare(b.FilingDate); c != 0 {
		return c > 0
	}
	return strings.Compare(a.AccessionID, b.AccessionID) > 0
}
