// Package edgar locates holdings filings on SEC EDGAR and resolves the
// document that carries each filing's holdings table.
package edgar

import (
	"bytes"
	"context"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/holdings-cli/internal/fetcher"
	"github.com/sells-group/holdings-cli/internal/model"
)

const dateLayout = "2006-01-02"

// LocatorOptions configures endpoint roots.
type LocatorOptions struct {
	SubmissionsBaseURL string // https://data.sec.gov/submissions
	BrowseBaseURL      string // https://www.sec.gov/cgi-bin/browse-edgar
}

// Locator lists an entity's holdings filings.
type Locator struct {
	fetcher fetcher.Fetcher
	opts    LocatorOptions
}

// NewLocator creates a Locator.
func NewLocator(f fetcher.Fetcher, opts LocatorOptions) *Locator {
	if opts.SubmissionsBaseURL == "" {
		opts.SubmissionsBaseURL = "https://data.sec.gov/submissions"
	}
	if opts.BrowseBaseURL == "" {
		opts.BrowseBaseURL = "https://www.sec.gov/cgi-bin/browse-edgar"
	}
	opts.SubmissionsBaseURL = strings.TrimRight(opts.SubmissionsBaseURL, "/")
	return &Locator{fetcher: f, opts: opts}
}

type submissionsResponse struct {
	CIK     string `json:"cik"`
	Name    string `json:"name"`
	Filings struct {
		Recent filingList       `json:"recent"`
		Files  []submissionPage `json:"files"`
	} `json:"filings"`
}

type submissionPage struct {
	Name        string `json:"name"`
	FilingCount int    `json:"filingCount"`
	FilingFrom  string `json:"filingFrom"`
	FilingTo    string `json:"filingTo"`
}

// filingList is EDGAR's column-oriented filing table. The inline "recent"
// block and each historical page share this shape.
type filingList struct {
	AccessionNumber []string `json:"accessionNumber"`
	FilingDate      []string `json:"filingDate"`
	ReportDate      []string `json:"reportDate"`
	PeriodOfReport  []string `json:"periodOfReport"`
	Form            []string `json:"form"`
	PrimaryDoc      []string `json:"primaryDocument"`
}

// Locate returns the entity's eligible 13F-HR and NPORT filings, newest
// first, deduplicated by accession id.
func (l *Locator) Locate(ctx context.Context, cik model.CIK) ([]model.FilingRecord, error) {
	if cik.IsSeries() {
		return l.locateSeries(ctx, cik)
	}

	log := zap.L().With(zap.String("component", "edgar.locator"), zap.String("cik", cik.String()))

	indexURL := l.opts.SubmissionsBaseURL + "/CIK" + cik.String() + ".json"
	sub, err := fetchJSON[submissionsResponse](ctx, l.fetcher, indexURL)
	if err != nil {
		return nil, eris.Wrapf(err, "locator: submissions for %s", cik)
	}

	filer := cik.Trimmed()
	records := sub.Filings.Recent.records(filer)

	for _, page := range sub.Filings.Files {
		if page.Name == "" {
			continue
		}
		pageURL := l.opts.SubmissionsBaseURL + "/" + page.Name
		list, err := fetchJSON[filingList](ctx, l.fetcher, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn("skipping historical submissions page",
				zap.String("page", page.Name),
				zap.Error(err),
			)
			continue
		}
		records = append(records, list.records(filer)...)
	}

	out := dedupe(records)
	log.Debug("located filings", zap.Int("count", len(out)), zap.Int("pages", len(sub.Filings.Files)))
	return out, nil
}

// records converts the column arrays into filing records, dropping forms
// outside the holdings families and amendments. Columns of unequal length are
// tolerated.
func (fl *filingList) records(filerCIK string) []model.FilingRecord {
	var out []model.FilingRecord
	for i := range fl.AccessionNumber {
		form, ok := model.ParseFormType(safeIndex(fl.Form, i))
		if !ok || !form.Eligible() {
			continue
		}
		filed, err := time.Parse(dateLayout, safeIndex(fl.FilingDate, i))
		if err != nil {
			continue
		}
		period := safeIndex(fl.ReportDate, i)
		if period == "" {
			period = safeIndex(fl.PeriodOfReport, i)
		}
		rec := model.FilingRecord{
			FormType:        form,
			FilingDate:      filed,
			AccessionID:     strings.TrimSpace(fl.AccessionNumber[i]),
			PrimaryDocument: safeIndex(fl.PrimaryDoc, i),
			FilerCIK:        filerCIK,
		}
		if p, err := time.Parse(dateLayout, period); err == nil {
			rec.ReportingPeriod = p
		}
		out = append(out, rec)
	}
	return out
}

// locateSeries reads the browse-edgar Atom feed for a fund series. Series
// filings live under the registrant's CIK, which is taken from each entry's
// archive link.
func (l *Locator) locateSeries(ctx context.Context, series model.CIK) ([]model.FilingRecord, error) {
	q := url.Values{}
	q.Set("action", "getcompany")
	q.Set("CIK", series.String())
	q.Set("type", "NPORT")
	q.Set("dateb", "")
	q.Set("owner", "include")
	q.Set("count", "100")
	q.Set("output", "atom")
	feedURL := l.opts.BrowseBaseURL + "?" + q.Encode()

	body, err := fetcher.ReadAll(ctx, l.fetcher, feedURL, 0)
	if err != nil {
		return nil, eris.Wrapf(err, "locator: series feed for %s", series)
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrapf(err, "locator: parse series feed for %s", series)
	}

	var records []model.FilingRecord
	for _, item := range feed.Items {
		if rec, ok := seriesRecord(item); ok {
			records = append(records, rec)
		}
	}
	return dedupe(records), nil
}

func seriesRecord(item *gofeed.Item) (model.FilingRecord, bool) {
	var form model.FormType
	for _, c := range item.Categories {
		if f, ok := model.ParseFormType(c); ok && f.Eligible() {
			form = f
			break
		}
	}
	if fields := strings.Fields(item.Title); form == "" && len(fields) > 0 {
		if f, ok := model.ParseFormType(fields[0]); ok && f.Eligible() {
			form = f
		}
	}
	if form == "" {
		return model.FilingRecord{}, false
	}

	acc := accessionFromText(item.GUID)
	if acc == "" {
		acc = accessionFromText(item.Link)
	}
	filer := filerFromLink(item.Link)
	if acc == "" || filer == "" {
		return model.FilingRecord{}, false
	}

	var filed time.Time
	switch {
	case item.PublishedParsed != nil:
		filed = *item.PublishedParsed
	case item.UpdatedParsed != nil:
		filed = *item.UpdatedParsed
	default:
		return model.FilingRecord{}, false
	}

	return model.FilingRecord{
		FormType:    form,
		FilingDate:  time.Date(filed.Year(), filed.Month(), filed.Day(), 0, 0, 0, 0, time.UTC),
		AccessionID: acc,
		FilerCIK:    filer,
	}, true
}

// dedupe drops repeated accession ids and sorts newest first.
func dedupe(records []model.FilingRecord) []model.FilingRecord {
	seen := make(map[string]bool, len(records))
	out := records[:0]
	for _, r := range records {
		if r.AccessionID == "" || seen[r.AccessionID] {
			continue
		}
		seen[r.AccessionID] = true
		out = append(out, r)
	}
	slices.SortStableFunc(out, func(a, b model.FilingRecord) int {
		return b.FilingDate.Compare(a.FilingDate)
	})
	return out
}

func fetchJSON[T any](ctx context.Context, f fetcher.Fetcher, rawURL string) (*T, error) {
	body, err := f.Download(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck
	return fetcher.DecodeJSONObject[T](body)
}

// safeIndex returns the string at index i, or empty string if out of bounds.
func safeIndex(s []string, i int) string {
	if i < len(s) {
		return strings.TrimSpace(s[i])
	}
	return ""
}
