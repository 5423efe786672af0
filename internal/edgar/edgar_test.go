package edgar

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/holdings-cli/internal/fetcher"
	"github.com/sells-group/holdings-cli/internal/model"
	"github.com/sells-group/holdings-cli/internal/resilience"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// fakeEDGAR serves fixed bodies by path and records every request.
type fakeEDGAR struct {
	mu       sync.Mutex
	routes   map[string]string
	statuses map[string]int
	hits     []string
	srv      *httptest.Server
}

func newFakeEDGAR(t *testing.T) *fakeEDGAR {
	t.Helper()
	f := &fakeEDGAR{routes: map[string]string{}, statuses: map[string]int{}}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		key := r.URL.Path
		if r.URL.RawQuery != "" {
			key += "?" + r.URL.RawQuery
		}
		f.hits = append(f.hits, key)
		body, ok := f.routes[r.URL.Path]
		status := f.statuses[r.URL.Path]
		f.mu.Unlock()

		if status != 0 {
			w.WriteHeader(status)
			return
		}
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeEDGAR) requested(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, h := range f.hits {
		if h == path {
			n++
		}
	}
	return n
}

func testFetcher() *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:    "Test ops@example.com",
		Timeout:      5 * time.Second,
		RequestDelay: time.Millisecond,
	})
}

const recentSubmissions = `{
  "cik": "1067983",
  "name": "BERKSHIRE HATHAWAY INC",
  "filings": {
    "recent": {
      "accessionNumber": ["0000950123-24-011775", "0000950123-24-008740", "0000950123-24-005000", "0001193125-24-000001", "0000950123-24-002000"],
      "filingDate":      ["2024-11-14", "2024-08-14", "2024-05-15", "2024-05-01", "2024-02-14"],
      "reportDate":      ["2024-09-30", "2024-06-30", "2024-03-31", "", "2023-12-31"],
      "form":            ["13F-HR", "13F-HR", "13F-HR/A", "10-Q", "13F-HR"],
      "primaryDocument": ["xslForm13F_X02/primary_doc.xml", "primary_doc.xml"]
    },
    "files": [
      {"name": "CIK0001067983-submissions-001.json", "filingCount": 3, "filingFrom": "2001-01-01", "filingTo": "2024-02-14"}
    ]
  }
}`

const pagedSubmissions = `{
  "accessionNumber": ["0000950123-24-002000", "0000950123-23-009999", "0000950123-23-001111"],
  "filingDate":      ["2024-02-14", "2023-11-14", "2023-02-14"],
  "form":            ["13F-HR", "13F-HR", "SC 13G"]
}`

func TestLocator_MergesRecentAndPagedFilings(t *testing.T) {
	fe := newFakeEDGAR(t)
	fe.routes["/submissions/CIK0001067983.json"] = recentSubmissions
	fe.routes["/submissions/CIK0001067983-submissions-001.json"] = pagedSubmissions

	loc := NewLocator(testFetcher(), LocatorOptions{SubmissionsBaseURL: fe.srv.URL + "/submissions"})
	recs, err := loc.Locate(context.Background(), "0001067983")
	require.NoError(t, err)

	var accs []string
	for _, r := range recs {
		accs = append(accs, r.AccessionID)
	}
	assert.Equal(t, []string{
		"0000950123-24-011775",
		"0000950123-24-008740",
		"0000950123-24-002000",
		"0000950123-23-009999",
	}, accs, "amendments, other forms and the overlapping page entry are dropped")

	assert.Equal(t, model.Form13F, recs[0].FormType)
	assert.Equal(t, "1067983", recs[0].FilerCIK)
	assert.Equal(t, "xslForm13F_X02/primary_doc.xml", recs[0].PrimaryDocument)
	assert.Equal(t, time.Date(2024, 9, 30, 0, 0, 0, 0, time.UTC), recs[0].ReportingPeriod)
	assert.True(t, recs[3].ReportingPeriod.IsZero())
}

func TestLocator_FailedHistoricalPageIsSkipped(t *testing.T) {
	fe := newFakeEDGAR(t)
	fe.routes["/submissions/CIK0001067983.json"] = recentSubmissions

	loc := NewLocator(testFetcher(), LocatorOptions{SubmissionsBaseURL: fe.srv.URL + "/submissions"})
	recs, err := loc.Locate(context.Background(), "0001067983")
	require.NoError(t, err)
	assert.Len(t, recs, 3)
}

func TestLocator_SubmissionsFailure(t *testing.T) {
	fe := newFakeEDGAR(t)
	fe.statuses["/submissions/CIK0000000001.json"] = http.StatusForbidden

	loc := NewLocator(testFetcher(), LocatorOptions{SubmissionsBaseURL: fe.srv.URL + "/submissions"})
	_, err := loc.Locate(context.Background(), "0000000001")
	require.Error(t, err)
	assert.True(t, model.IsTransportError(err))
	assert.Equal(t, 1, fe.requested("/submissions/CIK0000000001.json"), "locator does not retry")
}

const seriesFeed = `<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom">
<title>VANGUARD INDEX FUNDS</title>
<entry>
<category label="form type" scheme="https://www.sec.gov/" term="NPORT-P"/>
<id>urn:tag:sec.gov,2008:accession-number=0001752724-24-194142</id>
<link href="https://www.sec.gov/Archives/edgar/data/36405/000175272424194142/0001752724-24-194142-index.htm" rel="alternate" type="text/html"/>
<title>NPORT-P  - Monthly Portfolio Investments Report on Form N-PORT (Public) </title>
<updated>2024-08-28T16:05:13-04:00</updated>
</entry>
<entry>
<category label="form type" scheme="https://www.sec.gov/" term="NPORT-EX"/>
<id>urn:tag:sec.gov,2008:accession-number=0001752724-24-194100</id>
<link href="https://www.sec.gov/Archives/edgar/data/36405/000175272424194100/0001752724-24-194100-index.htm" rel="alternate" type="text/html"/>
<title>NPORT-EX  - Portfolio holdings exhibit </title>
<updated>2024-08-27T16:05:13-04:00</updated>
</entry>
</feed>`

func TestLocator_SeriesFeed(t *testing.T) {
	fe := newFakeEDGAR(t)
	fe.routes["/cgi-bin/browse-edgar"] = seriesFeed

	loc := NewLocator(testFetcher(), LocatorOptions{BrowseBaseURL: fe.srv.URL + "/cgi-bin/browse-edgar"})
	recs, err := loc.Locate(context.Background(), "S000002839")
	require.NoError(t, err)
	require.Len(t, recs, 1)

	assert.Equal(t, model.FormNPORTMonthly, recs[0].FormType)
	assert.Equal(t, "0001752724-24-194142", recs[0].AccessionID)
	assert.Equal(t, "36405", recs[0].FilerCIK)
	assert.Equal(t, time.Date(2024, 8, 28, 0, 0, 0, 0, time.UTC), recs[0].FilingDate)
}

func TestStripNamespaces(t *testing.T) {
	in := `<?xml version="1.0"?>
<ns1:informationTable xmlns:ns1="http://www.sec.gov/edgar/document/thirteenf/informationtable" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
<ns1:infoTable><ns1:nameOfIssuer>AT&amp;T INC: COM</ns1:nameOfIssuer></ns1:infoTable>
</ns1:informationTable>`

	out := string(StripNamespaces([]byte(in)))
	assert.Contains(t, out, "<informationTable>")
	assert.Contains(t, out, "<infoTable><nameOfIssuer>AT&amp;T INC: COM</nameOfIssuer></infoTable>")
	assert.Contains(t, out, "</informationTable>")
	assert.NotContains(t, out, "xmlns:ns1")
	assert.Contains(t, out, `<?xml version="1.0"?>`)
}

func TestAccessionFromText(t *testing.T) {
	assert.Equal(t, "0001752724-24-194142", accessionFromText("urn:tag:sec.gov,2008:accession-number=0001752724-24-194142"))
	assert.Equal(t, "0001752724-24-194142", accessionFromText("https://www.sec.gov/Archives/edgar/data/36405/000175272424194142/"))
	assert.Empty(t, accessionFromText("nothing here"))
	assert.Equal(t, "36405", filerFromLink("https://www.sec.gov/Archives/edgar/data/0036405/000175272424194142/x.htm"))
}

// tableValidator accepts documents mentioning the expected root element.
type tableValidator struct{}

func (tableValidator) Validate(family model.FormFamily, doc []byte) error {
	root := "<informationTable"
	if family == model.FamilyNPORT {
		root = "<invstOrSecs"
	}
	if bytes.Contains(doc, []byte(root)) {
		return nil
	}
	return &model.SchemaMismatchError{Family: family, Source: "test", Reason: "missing " + root}
}

const archives = "/Archives/edgar/data"

func newTestResolver(fe *fakeEDGAR) *Resolver {
	return NewResolver(testFetcher(), tableValidator{}, ResolverOptions{
		ArchivesBaseURL: fe.srv.URL + archives,
		Retry:           resilience.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond},
	})
}

var rec13F = model.FilingRecord{
	FormType:    model.Form13F,
	FilingDate:  time.Date(2024, 11, 14, 0, 0, 0, 0, time.UTC),
	AccessionID: "0000950123-24-011775",
	FilerCIK:    "1067983",
}

const dir13F = archives + "/1067983/000095012324011775/"

func TestResolver_FirstTemplateWins(t *testing.T) {
	fe := newFakeEDGAR(t)
	fe.routes[dir13F+"0000950123-24-011775.xml"] = `<informationTable><infoTable/></informationTable>`

	doc, err := newTestResolver(fe).Resolve(context.Background(), "0001067983", rec13F)
	require.NoError(t, err)
	assert.Equal(t, "accession-xml", doc.Strategy)
}

func TestResolver_FallsThroughMismatchToFullText(t *testing.T) {
	fe := newFakeEDGAR(t)
	fe.routes[dir13F+"0000950123-24-011775.xml"] = `<edgarSubmission><headerData/></edgarSubmission>`
	fe.routes[dir13F+"0000950123-24-011775.txt"] = "<SEC-DOCUMENT>\n<XML>\n<ns1:informationTable xmlns:ns1=\"x\"><ns1:infoTable/></ns1:informationTable>\n</XML>"

	doc, err := newTestResolver(fe).Resolve(context.Background(), "0001067983", rec13F)
	require.NoError(t, err)
	assert.Equal(t, "full-text", doc.Strategy)
	assert.Contains(t, string(doc.Body), "<informationTable><infoTable/></informationTable>")
}

func TestResolver_RetriesTransientWithinTemplate(t *testing.T) {
	fe := newFakeEDGAR(t)
	fe.statuses[dir13F+"0000950123-24-011775.xml"] = http.StatusServiceUnavailable
	fe.routes[dir13F+"0000950123-24-011775.txt"] = `<informationTable></informationTable>`

	doc, err := newTestResolver(fe).Resolve(context.Background(), "0001067983", rec13F)
	require.NoError(t, err)
	assert.Equal(t, "full-text", doc.Strategy)
	assert.Equal(t, 2, fe.requested(dir13F+"0000950123-24-011775.xml"), "transient failures are retried up to the budget")
	assert.Equal(t, 1, fe.requested(dir13F+"0000950123-24-011775.txt"))
}

func TestResolver_IndexScrapeFallback(t *testing.T) {
	fe := newFakeEDGAR(t)
	fe.routes[dir13F] = `<html><body><table>
<tr><td><a href="` + dir13F + `xslForm13F_X02/50240.xml">50240.html</a></td></tr>
<tr><td><a href="` + dir13F + `primary_doc.xml">primary_doc.xml</a></td></tr>
<tr><td><a href="50240.xml">INFORMATION TABLE</a></td></tr>
</table></body></html>`
	fe.routes[dir13F+"50240.xml"] = `<informationTable><infoTable/></informationTable>`
	fe.routes[dir13F+"primary_doc.xml"] = `<edgarSubmission/>`

	doc, err := newTestResolver(fe).Resolve(context.Background(), "0001067983", rec13F)
	require.NoError(t, err)
	assert.Equal(t, "index-scrape", doc.Strategy)
	assert.Equal(t, fe.srv.URL+dir13F+"50240.xml", doc.URL)
	assert.Zero(t, fe.requested(dir13F+"xslForm13F_X02/50240.xml"))
	assert.Equal(t, 1, fe.requested(dir13F+"primary_doc.xml"), "already-tried templates are not refetched")
}

func TestResolver_AllCandidatesFail(t *testing.T) {
	fe := newFakeEDGAR(t)
	fe.routes[dir13F+"primary_doc.xml"] = `<edgarSubmission/>`

	_, err := newTestResolver(fe).Resolve(context.Background(), "0001067983", rec13F)
	require.Error(t, err)
	assert.True(t, model.IsSchemaMismatch(err))
}

func TestResolver_AllUnreachableIsTransportError(t *testing.T) {
	fe := newFakeEDGAR(t)

	_, err := newTestResolver(fe).Resolve(context.Background(), "0001067983", rec13F)
	require.Error(t, err)
	assert.True(t, model.IsTransportError(err))
	assert.False(t, model.IsSchemaMismatch(err))
}

func TestResolver_NPORTPrimaryDoc(t *testing.T) {
	fe := newFakeEDGAR(t)
	rec := model.FilingRecord{
		FormType:    model.FormNPORTQuarter,
		AccessionID: "0001752724-24-194142",
		FilerCIK:    "36405",
	}
	dir := archives + "/36405/000175272424194142/"
	fe.routes[dir+"primary_doc.xml"] = `<edgarSubmission xmlns="http://www.sec.gov/edgar/nport"><formData><invstOrSecs/></formData></edgarSubmission>`

	doc, err := newTestResolver(fe).Resolve(context.Background(), "S000002839", rec)
	require.NoError(t, err)
	assert.Equal(t, "named:primary_doc.xml", doc.Strategy)
}

func TestListedPrimaryDocument(t *testing.T) {
	s := ListedPrimaryDocument()
	u, ok := s.URL("d/", model.FilingRecord{PrimaryDocument: "xslFormNPORT-P_X01/primary_doc.xml"})
	assert.True(t, ok)
	assert.Equal(t, "d/primary_doc.xml", u)

	_, ok = s.URL("d/", model.FilingRecord{PrimaryDocument: "filing.htm"})
	assert.False(t, ok)
	_, ok = s.URL("d/", model.FilingRecord{})
	assert.False(t, ok)
}
