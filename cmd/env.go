package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/holdings-cli/internal/analysis"
	"github.com/sells-group/holdings-cli/internal/config"
	"github.com/sells-group/holdings-cli/internal/edgar"
	"github.com/sells-group/holdings-cli/internal/fetcher"
	"github.com/sells-group/holdings-cli/internal/holdings"
	"github.com/sells-group/holdings-cli/internal/ingest"
	"github.com/sells-group/holdings-cli/internal/resilience"
	"github.com/sells-group/holdings-cli/internal/snapshot"
	"github.com/sells-group/holdings-cli/internal/store"
)

func initStore(ctx context.Context) (store.RunStore, error) {
	var (
		st  store.RunStore
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "holdings.db"
		}
		st, err = store.NewSQLite(dsn)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// loadInvestors reads the investor table and narrows it to slugs when given.
func loadInvestors(slugs []string) ([]config.Investor, error) {
	all, err := config.LoadInvestors(cfg.Ingest.InvestorsFile)
	if err != nil {
		return nil, err
	}
	return config.SelectInvestors(all, slugs)
}

func investorSlugs(invs []config.Investor) []string {
	out := make([]string, len(invs))
	for i, inv := range invs {
		out[i] = inv.Slug
	}
	return out
}

func newFileStore() *snapshot.FileStore {
	return snapshot.NewFileStore(cfg.Store.SnapshotDir)
}

// newEngine wires the fetcher, EDGAR client, parser and normalizer into an
// ingest engine writing to the snapshot directory.
func newEngine() (*ingest.Engine, error) {
	allow, err := config.LoadAllowList(cfg.Ingest.WholeDollarFile)
	if err != nil {
		return nil, err
	}

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:    cfg.EDGAR.UserAgent,
		Timeout:      cfg.EDGAR.Timeout(),
		RequestDelay: cfg.EDGAR.RequestDelay(),
	})
	parser := holdings.NewParser()
	locator := edgar.NewLocator(f, edgar.LocatorOptions{
		SubmissionsBaseURL: cfg.EDGAR.SubmissionsBaseURL,
		BrowseBaseURL:      cfg.EDGAR.BrowseBaseURL,
	})
	resolver := edgar.NewResolver(f, parser, edgar.ResolverOptions{
		ArchivesBaseURL: cfg.EDGAR.ArchivesBaseURL,
		Retry:           resilience.FromRetryConfig(cfg.EDGAR.MaxRetries+1, cfg.EDGAR.RetryBackoffMs),
	})

	return ingest.NewEngine(locator, resolver, parser, holdings.NewNormalizer(allow), newFileStore(), ingest.Options{
		Concurrency:        cfg.Ingest.Concurrency,
		QuarterConcurrency: cfg.Ingest.QuarterConcurrency,
		MaxQuarters:        cfg.Ingest.MaxQuarters,
		PlausibilityFactor: cfg.Ingest.PlausibilityFactor,
	}), nil
}

func thresholds() analysis.Thresholds {
	th := analysis.DefaultThresholds()
	a := cfg.Analysis
	if a.MajorMoveThreshold > 0 {
		th.MajorMove = a.MajorMoveThreshold
	}
	if a.SignificantValueThreshold > 0 {
		th.SignificantValue = a.SignificantValueThreshold
	}
	if a.SignificantPercent > 0 {
		th.SignificantPercent = a.SignificantPercent
	}
	return th
}

func trendOptions() analysis.TrendOptions {
	opt := analysis.DefaultTrendOptions()
	a := cfg.Analysis
	if a.MinInvestors > 0 {
		opt.MinInvestors = a.MinInvestors
	}
	if a.MinValueDelta > 0 {
		opt.MinValueDelta = a.MinValueDelta
	}
	if a.MajorMoveThreshold > 0 {
		opt.MajorMove = a.MajorMoveThreshold
	}
	return opt
}
