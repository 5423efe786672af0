package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/sells-group/holdings-cli/internal/ingest"
	"github.com/sells-group/holdings-cli/internal/model"
	"github.com/sells-group/holdings-cli/internal/monitoring"
)

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatReport(out io.Writer, rep *ingest.Report) {
	s := rep.Stats
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Investors processed:\t%d\n", s.InvestorsProcessed)
	_, _ = fmt.Fprintf(w, "Investors skipped:\t%d\n", s.InvestorsSkipped)
	_, _ = fmt.Fprintf(w, "Quarters written:\t%d\n", s.QuartersWritten)
	_, _ = fmt.Fprintf(w, "Quarters unchanged:\t%d\n", s.QuartersUnchanged)
	_, _ = fmt.Fprintf(w, "Quarters skipped:\t%d\n", s.QuartersSkipped)
	_, _ = fmt.Fprintf(w, "Quarters empty:\t%d\n", s.QuartersEmpty)
	_, _ = fmt.Fprintf(w, "Records dropped:\t%d\n", s.RecordsDropped)
	_ = w.Flush()

	if len(rep.Skips) > 0 {
		_, _ = fmt.Fprintln(out)
		formatSkips(out, rep.Skips)
	}
	if len(rep.Warnings) > 0 {
		_, _ = fmt.Fprintln(out)
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "INVESTOR\tQUARTER\tWARNING")
		_, _ = fmt.Fprintln(w, "--------\t-------\t-------")
		for _, wn := range rep.Warnings {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", wn.InvestorID, wn.Quarter, truncate(wn.Message, 100))
		}
		_ = w.Flush()
	}
}

func formatSkips(out io.Writer, skips []model.SkipEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "INVESTOR\tQUARTER\tSTAGE\tREASON")
	_, _ = fmt.Fprintln(w, "--------\t-------\t-----\t------")
	for _, sk := range skips {
		q := sk.Quarter
		if q == "" {
			q = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", sk.InvestorID, q, sk.Stage, truncate(sk.Reason, 80))
	}
	_ = w.Flush()
}

func formatCheck(out io.Writer, results []ingest.CheckResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "INVESTOR\tLATEST FILING\tFORM\tFILED\tSTORED\tNEW")
	_, _ = fmt.Fprintln(w, "--------\t-------------\t----\t-----\t------\t---")
	for _, r := range results {
		if r.Error != "" {
			_, _ = fmt.Fprintf(w, "%s\terror: %s\t\t\t\t\n", r.InvestorID, truncate(r.Error, 60))
			continue
		}
		latest, form, filed := "-", "-", "-"
		if r.Latest != nil {
			latest = r.Latest.Quarter.String()
			form = string(r.Latest.Filing.FormType)
			filed = r.Latest.Filing.FilingDate.Format(time.DateOnly)
		}
		stored := "-"
		if !r.StoredQuarter.IsZero() {
			stored = r.StoredQuarter.String()
		}
		isNew := ""
		if r.NewFiling {
			isNew = "yes"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", r.InvestorID, latest, form, filed, stored, isNew)
	}
	_ = w.Flush()
}

func formatChanges(out io.Writer, set *model.ChangeSet, limit int) {
	sm := set.Summary
	_, _ = fmt.Fprintf(out, "%s: %s -> %s  value %s -> %s (%s)\n", set.InvestorID,
		set.PreviousQuarter, set.CurrentQuarter,
		dollars(sm.PreviousValue), dollars(sm.CurrentValue), signedDollars(sm.TotalValueDelta))
	_, _ = fmt.Fprintf(out, "new %d  sold %d  increased %d  decreased %d  major %d\n\n",
		sm.NewPositions, sm.SoldPositions, sm.Increased, sm.Decreased, sm.MajorMoves)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SECURITY\tISSUER\tCHANGE\tSHARES\tVALUE\tDELTA\tPCT\tFLAGS")
	_, _ = fmt.Fprintln(w, "--------\t------\t------\t------\t-----\t-----\t---\t-----")
	for i, c := range set.Changes {
		if limit > 0 && i >= limit {
			break
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%+.1f%%\t%s\n",
			c.SecurityID,
			truncate(c.IssuerName, 30),
			c.ChangeType,
			c.CurrentShares,
			dollars(c.CurrentValue),
			signedDollars(c.ValueDelta),
			c.PercentDelta,
			changeFlags(c),
		)
	}
	_ = w.Flush()
}

func changeFlags(c model.PortfolioChange) string {
	var flags []string
	if c.IsMajorMove {
		flags = append(flags, "major")
	}
	if c.IsSignificant {
		flags = append(flags, "significant")
	}
	return strings.Join(flags, ",")
}

func formatTrending(out io.Writer, report *model.TrendReport, limit int) {
	sm := report.Summary
	_, _ = fmt.Fprintf(out, "%s -> %s  securities %d  bullish %d  bearish %d  mixed %d  active investors %d\n\n",
		report.PreviousQuarter, report.CurrentQuarter,
		sm.TotalSecurities, sm.Bullish, sm.Bearish, sm.Mixed, sm.ActiveInvestors)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RANK\tSECURITY\tISSUER\tINVESTORS\tNET DELTA\tAGGREGATE\tSCORE\tSENTIMENT")
	_, _ = fmt.Fprintln(w, "----\t--------\t------\t---------\t---------\t---------\t-----\t---------")
	for i, sec := range report.Securities {
		if limit > 0 && i >= limit {
			break
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\t%.1f\t%s\n",
			i+1,
			sec.SecurityID,
			truncate(sec.IssuerName, 30),
			sec.TotalInvestorCount,
			signedDollars(sec.NetValueDelta),
			dollars(sec.AggregateValueDelta),
			sec.TrendingScore,
			sec.Sentiment,
		)
	}
	_ = w.Flush()
}

func formatRuns(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTATUS\tSTARTED\tDURATION\tWRITTEN\tSKIPPED\tWARNINGS\tERROR")
	_, _ = fmt.Fprintln(w, "--\t------\t-------\t--------\t-------\t-------\t--------\t-----")

	for _, r := range runs {
		dur := "-"
		if r.CompletedAt != nil {
			dur = r.CompletedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		skipped := r.Stats.InvestorsSkipped + r.Stats.QuartersSkipped
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.ID[:min(8, len(r.ID))],
			r.Status,
			r.StartedAt.Format("2006-01-02 15:04"),
			dur,
			r.Stats.QuartersWritten,
			skipped,
			len(r.Warnings),
			truncate(r.Error, 60),
		)
	}
	_ = w.Flush()
}

func formatMonitor(out io.Writer, snap *monitoring.MetricsSnapshot, alerts []monitoring.Alert) {
	last := "never"
	if snap.LastSuccess != nil {
		last = snap.LastSuccess.Format("2006-01-02 15:04")
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Window:\t%dh\n", snap.LookbackHours)
	_, _ = fmt.Fprintf(w, "Runs:\t%d (%d complete, %d failed, %d running)\n",
		snap.RunsTotal, snap.RunsComplete, snap.RunsFailed, snap.RunsRunning)
	_, _ = fmt.Fprintf(w, "Failure rate:\t%.1f%%\n", snap.FailRate*100)
	_, _ = fmt.Fprintf(w, "Investor skip rate:\t%.1f%%\n", snap.SkipRate*100)
	_, _ = fmt.Fprintf(w, "Quarters written:\t%d\n", snap.QuartersWritten)
	_, _ = fmt.Fprintf(w, "Last success:\t%s\n", last)
	_ = w.Flush()

	if len(alerts) == 0 {
		_, _ = fmt.Fprintln(out, "\nNo alerts.")
		return
	}
	_, _ = fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SEVERITY\tTYPE\tMESSAGE")
	_, _ = fmt.Fprintln(w, "--------\t----\t-------")
	for _, a := range alerts {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", a.Severity, a.Type, a.Message)
	}
	_ = w.Flush()
}

// InvestorRow is one line of the investors listing.
type InvestorRow struct {
	Slug     string           `json:"slug"`
	CIK      model.CIK        `json:"cik"`
	Name     string           `json:"name"`
	Quarters int              `json:"quarters"`
	Latest   model.QuarterKey `json:"latest,omitzero"`
}

func formatInvestors(out io.Writer, rows []InvestorRow) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SLUG\tCIK\tNAME\tQUARTERS\tLATEST")
	_, _ = fmt.Fprintln(w, "----\t---\t----\t--------\t------")
	for _, r := range rows {
		latest := "-"
		if !r.Latest.IsZero() {
			latest = r.Latest.String()
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", r.Slug, r.CIK, truncate(r.Name, 40), r.Quarters, latest)
	}
	_ = w.Flush()
}

// dollars renders whole dollars with a K/M/B suffix.
func dollars(v int64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	var s string
	switch {
	case v >= 1_000_000_000:
		s = fmt.Sprintf("$%.2fB", float64(v)/1e9)
	case v >= 1_000_000:
		s = fmt.Sprintf("$%.2fM", float64(v)/1e6)
	case v >= 1_000:
		s = fmt.Sprintf("$%.1fK", float64(v)/1e3)
	default:
		s = fmt.Sprintf("$%d", v)
	}
	if neg {
		return "-" + s
	}
	return s
}

func signedDollars(v int64) string {
	if v > 0 {
		return "+" + dollars(v)
	}
	return dollars(v)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
