package quarter

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/holdings-cli/internal/model"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func filing(form model.FormType, filed time.Time, acc string) model.FilingRecord {
	return model.FilingRecord{FormType: form, FilingDate: filed, AccessionID: acc}
}

func TestKeyFor_UsesFilingDate(t *testing.T) {
	t.Parallel()
	rec := filing(model.Form13F, day(2024, 2, 14), "a")
	rec.ReportingPeriod = day(2023, 12, 31)

	key, ok := KeyFor(rec)
	require.True(t, ok)
	assert.Equal(t, model.QuarterKey{Year: 2024, Quarter: 1}, key)

	_, ok = KeyFor(model.FilingRecord{FormType: model.Form13F})
	assert.False(t, ok)
}

func TestSelectWinners_PriorityBeatsRecency(t *testing.T) {
	t.Parallel()
	recs := []model.FilingRecord{
		filing(model.FormNPORTMonthly, day(2024, 3, 28), "0000000000-24-000003"),
		filing(model.Form13F, day(2024, 2, 14), "0000000000-24-000001"),
		filing(model.FormNPORTQuarter, day(2024, 3, 1), "0000000000-24-000002"),
	}
	w := SelectWinners(recs)
	require.Len(t, w, 1)
	assert.Equal(t, "0000000000-24-000001", w[model.QuarterKey{Year: 2024, Quarter: 1}].AccessionID)
}

func TestSelectWinners_LatestWithinPriority(t *testing.T) {
	t.Parallel()
	recs := []model.FilingRecord{
		filing(model.FormNPORTMonthly, day(2024, 7, 29), "0000000000-24-000010"),
		filing(model.FormNPORTMonthly, day(2024, 9, 27), "0000000000-24-000012"),
		filing(model.FormNPORTMonthly, day(2024, 8, 28), "0000000000-24-000011"),
	}
	w := SelectWinners(recs)
	assert.Equal(t, "0000000000-24-000012", w[model.QuarterKey{Year: 2024, Quarter: 3}].AccessionID)
}

func TestSelectWinners_AccessionBreaksTies(t *testing.T) {
	t.Parallel()
	a := filing(model.Form13F, day(2024, 5, 15), "0000950123-24-005000")
	b := filing(model.Form13F, day(2024, 5, 15), "0000950123-24-006000")

	assert.Equal(t, b, SelectWinners([]model.FilingRecord{a, b})[model.QuarterKey{Year: 2024, Quarter: 2}])
	assert.Equal(t, b, SelectWinners([]model.FilingRecord{b, a})[model.QuarterKey{Year: 2024, Quarter: 2}])
}

func TestSelectWinners_SkipsIneligibleAndUndated(t *testing.T) {
	t.Parallel()
	recs := []model.FilingRecord{
		filing(model.Form13FAmendment, day(2024, 5, 30), "amend"),
		filing(model.Form13F, time.Time{}, "undated"),
	}
	assert.Empty(t, SelectWinners(recs))
}

func TestSelectWinners_IdempotentAndOrderIndependent(t *testing.T) {
	t.Parallel()
	var recs []model.FilingRecord
	forms := []model.FormType{model.Form13F, model.FormNPORTMonthly, model.FormNPORTQuarter, model.Form13FAmendment}
	r := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 60; i++ {
		filed := day(2022, 1, 1).AddDate(0, 0, r.IntN(900))
		recs = append(recs, filing(forms[r.IntN(len(forms))], filed, filed.Format("20060102")+"-"+string(rune('a'+i%26))))
	}

	want := SelectWinners(recs)

	shuffled := append([]model.FilingRecord(nil), recs...)
	r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	assert.Equal(t, want, SelectWinners(shuffled))

	var again []model.FilingRecord
	for _, rec := range want {
		again = append(again, rec)
	}
	assert.Equal(t, want, SelectWinners(again))
}

func TestWinnersAndLimit(t *testing.T) {
	t.Parallel()
	recs := []model.FilingRecord{
		filing(model.Form13F, day(2024, 11, 14), "d"),
		filing(model.Form13F, day(2024, 2, 14), "a"),
		filing(model.Form13F, day(2024, 8, 14), "c"),
		filing(model.Form13F, day(2024, 5, 15), "b"),
	}
	ws := Winners(recs)
	require.Len(t, ws, 4)
	for i, acc := range []string{"a", "b", "c", "d"} {
		assert.Equal(t, acc, ws[i].Filing.AccessionID)
	}

	latest := Limit(ws, 2)
	require.Len(t, latest, 2)
	assert.Equal(t, model.QuarterKey{Year: 2024, Quarter: 3}, latest[0].Quarter)
	assert.Equal(t, model.QuarterKey{Year: 2024, Quarter: 4}, latest[1].Quarter)

	assert.Len(t, Limit(ws, 0), 4)
	assert.Len(t, Limit(ws, 10), 4)
}
