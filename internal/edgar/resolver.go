package edgar

import (
	"bytes"
	"context"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/holdings-cli/internal/fetcher"
	"github.com/sells-group/holdings-cli/internal/model"
	"github.com/sells-group/holdings-cli/internal/resilience"
)

// maxDocumentBytes caps a single filing document download.
const maxDocumentBytes = 256 << 20

// Validator checks that a namespace-stripped document carries the expected
// holdings grammar. It returns a *model.SchemaMismatchError otherwise.
type Validator interface {
	Validate(family model.FormFamily, doc []byte) error
}

// Strategy builds one candidate document URL for a filing.
type Strategy interface {
	Name() string
	// URL returns the candidate inside the filing directory dir, or false
	// when the strategy does not apply to rec.
	URL(dir string, rec model.FilingRecord) (string, bool)
}

type templateStrategy struct {
	name  string
	build func(dir string, rec model.FilingRecord) (string, bool)
}

func (s templateStrategy) Name() string { return s.name }

func (s templateStrategy) URL(dir string, rec model.FilingRecord) (string, bool) {
	return s.build(dir, rec)
}

// AccessionXML is {accession}.xml.
func AccessionXML() Strategy {
	return templateStrategy{"accession-xml", func(dir string, rec model.FilingRecord) (string, bool) {
		return dir + rec.AccessionID + ".xml", true
	}}
}

// PrimaryDocXML is the generic primary_doc.xml.
func PrimaryDocXML() Strategy {
	return NamedFile("primary_doc.xml")
}

// FullSubmissionText is the {accession}.txt full submission, which embeds
// every document of the filing.
func FullSubmissionText() Strategy {
	return templateStrategy{"full-text", func(dir string, rec model.FilingRecord) (string, bool) {
		return dir + rec.AccessionID + ".txt", true
	}}
}

// NamedFile is a fixed file name inside the filing directory.
func NamedFile(name string) Strategy {
	return templateStrategy{"named:" + name, func(dir string, _ model.FilingRecord) (string, bool) {
		return dir + name, true
	}}
}

// ListedPrimaryDocument uses the primary document named in the submissions
// index when it is raw XML. Rendered xsl variants are mapped to the raw file.
func ListedPrimaryDocument() Strategy {
	return templateStrategy{"listed-primary", func(dir string, rec model.FilingRecord) (string, bool) {
		name := path.Base(rec.PrimaryDocument)
		if name == "." || name == "/" || !strings.EqualFold(path.Ext(name), ".xml") {
			return "", false
		}
		return dir + name, true
	}}
}

// DefaultStrategies returns the ordered URL conventions tried for a family.
func DefaultStrategies(family model.FormFamily) []Strategy {
	if family == model.Family13F {
		return []Strategy{
			AccessionXML(),
			FullSubmissionText(),
			NamedFile("infotable.xml"),
			NamedFile("form13fInfoTable.xml"),
			PrimaryDocXML(),
			ListedPrimaryDocument(),
		}
	}
	return []Strategy{
		PrimaryDocXML(),
		AccessionXML(),
		FullSubmissionText(),
		ListedPrimaryDocument(),
	}
}

// Document is a resolved, namespace-stripped filing document.
type Document struct {
	URL      string
	Strategy string
	Body     []byte
}

// ResolverOptions configures a Resolver.
type ResolverOptions struct {
	ArchivesBaseURL string
	Retry           resilience.RetryConfig
	// Strategies overrides DefaultStrategies per family when set.
	Strategies map[model.FormFamily][]Strategy
}

// Resolver finds the document containing a filing's holdings table.
type Resolver struct {
	fetcher   fetcher.Fetcher
	validator Validator
	opts      ResolverOptions
}

// NewResolver creates a Resolver.
func NewResolver(f fetcher.Fetcher, v Validator, opts ResolverOptions) *Resolver {
	if opts.ArchivesBaseURL == "" {
		opts.ArchivesBaseURL = "https://www.sec.gov/Archives/edgar/data"
	}
	if opts.Strategies == nil {
		opts.Strategies = map[model.FormFamily][]Strategy{
			model.Family13F:   DefaultStrategies(model.Family13F),
			model.FamilyNPORT: DefaultStrategies(model.FamilyNPORT),
		}
	}
	return &Resolver{fetcher: f, validator: v, opts: opts}
}

// attempt outcome for one candidate URL.
type attempt struct {
	url     string
	fetched bool
	err     error
}

// Resolve tries each strategy in order, then falls back to scraping the
// filing's directory index. Transport failures and documents that do not
// validate both fall through to the next candidate.
func (r *Resolver) Resolve(ctx context.Context, cik model.CIK, rec model.FilingRecord) (*Document, error) {
	family := rec.FormType.Family()
	dir := filingDir(r.opts.ArchivesBaseURL, cik, rec)
	log := zap.L().With(
		zap.String("component", "edgar.resolver"),
		zap.String("cik", cik.String()),
		zap.String("accession", rec.AccessionID),
	)

	tried := make(map[string]bool)
	var attempts []attempt

	for _, s := range r.opts.Strategies[family] {
		u, ok := s.URL(dir, rec)
		if !ok || tried[u] {
			continue
		}
		tried[u] = true

		doc, a := r.try(ctx, family, u)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if doc != nil {
			doc.Strategy = s.Name()
			log.Debug("resolved document", zap.String("strategy", s.Name()), zap.String("url", u))
			return doc, nil
		}
		attempts = append(attempts, a)
		log.Debug("candidate rejected", zap.String("strategy", s.Name()), zap.Error(a.err))
	}

	links, err := r.indexLinks(ctx, dir, rec, family)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		attempts = append(attempts, attempt{url: dir, err: err})
	}
	for _, u := range links {
		if tried[u] {
			continue
		}
		tried[u] = true

		doc, a := r.try(ctx, family, u)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if doc != nil {
			doc.Strategy = "index-scrape"
			log.Info("resolved document from directory index", zap.String("url", u))
			return doc, nil
		}
		attempts = append(attempts, a)
	}

	return nil, resolveFailure(family, dir, attempts)
}

func (r *Resolver) try(ctx context.Context, family model.FormFamily, u string) (*Document, attempt) {
	cfg := r.opts.Retry
	cfg.OnRetry = resilience.RetryLogger("edgar.resolver", u)

	body, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]byte, error) {
		return fetcher.ReadAll(ctx, r.fetcher, u, maxDocumentBytes)
	})
	if err != nil {
		return nil, attempt{url: u, err: err}
	}

	body = StripNamespaces(body)
	if err := r.validator.Validate(family, body); err != nil {
		return nil, attempt{url: u, fetched: true, err: err}
	}
	return &Document{URL: u, Body: body}, attempt{url: u, fetched: true}
}

// indexLinks fetches the filing's directory listing and returns candidate
// document URLs, strongest matches first.
func (r *Resolver) indexLinks(ctx context.Context, dir string, rec model.FilingRecord, family model.FormFamily) ([]string, error) {
	page, err := fetcher.ReadAll(ctx, r.fetcher, dir, 0)
	if err != nil {
		indexPage := dir + rec.AccessionID + "-index.htm"
		var idxErr error
		page, idxErr = fetcher.ReadAll(ctx, r.fetcher, indexPage, 0)
		if idxErr != nil {
			return nil, eris.Wrap(err, "resolver: fetch directory index")
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, eris.Wrap(err, "resolver: parse directory index")
	}
	base, err := url.Parse(dir)
	if err != nil {
		return nil, eris.Wrap(err, "resolver: parse directory url")
	}

	var strong, weak []string
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		p := strings.ToLower(abs.Path)
		if strings.Contains(p, "/xsl") || !strings.HasPrefix(abs.String(), dir) {
			return
		}
		u := abs.String()
		if seen[u] {
			return
		}

		text := strings.ToLower(a.Text())
		ext := path.Ext(p)
		switch {
		case strings.Contains(text, "information") || strings.Contains(p, "infotable") || strings.Contains(p, "informationtable"):
			if ext == ".xml" || ext == ".txt" {
				seen[u] = true
				strong = append(strong, u)
			}
		case ext == ".xml":
			seen[u] = true
			weak = append(weak, u)
		case family == model.Family13F && ext == ".txt":
			seen[u] = true
			weak = append(weak, u)
		}
	})

	return append(strong, weak...), nil
}

func resolveFailure(family model.FormFamily, dir string, attempts []attempt) error {
	var lastFetch, lastTransport error
	for _, a := range attempts {
		if a.fetched {
			lastFetch = a.err
		} else {
			lastTransport = a.err
		}
	}
	if lastFetch == nil && lastTransport != nil {
		return eris.Wrapf(lastTransport, "resolver: %d candidates unreachable in %s", len(attempts), dir)
	}
	reason := "no candidate document validated"
	if lastFetch != nil {
		reason += ": " + lastFetch.Error()
	}
	return &model.SchemaMismatchError{Family: family, Source: dir, Reason: reason}
}
