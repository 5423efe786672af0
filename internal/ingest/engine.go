// Package ingest runs the filing pipeline for configured investors: locate,
// pick one filing per quarter, resolve, parse, normalize and write snapshots.
package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/holdings-cli/internal/config"
	"github.com/sells-group/holdings-cli/internal/edgar"
	"github.com/sells-group/holdings-cli/internal/holdings"
	"github.com/sells-group/holdings-cli/internal/model"
	"github.com/sells-group/holdings-cli/internal/quarter"
	"github.com/sells-group/holdings-cli/internal/snapshot"
)

// Locator lists an entity's candidate filings.
type Locator interface {
	Locate(ctx context.Context, cik model.CIK) ([]model.FilingRecord, error)
}

// Resolver fetches the holdings document of a filing.
type Resolver interface {
	Resolve(ctx context.Context, cik model.CIK, rec model.FilingRecord) (*edgar.Document, error)
}

// Parser extracts raw records from a resolved document.
type Parser interface {
	Parse(ctx context.Context, family model.FormFamily, doc []byte) (*holdings.ParsedDocument, error)
}

// Options tunes an Engine.
type Options struct {
	Concurrency        int
	QuarterConcurrency int
	MaxQuarters        int
	PlausibilityFactor float64
}

// Engine orchestrates ingest runs.
type Engine struct {
	locator    Locator
	resolver   Resolver
	parser     Parser
	normalizer *holdings.Normalizer
	store      snapshot.Store
	opts       Options
}

// NewEngine creates a new ingest engine.
func NewEngine(l Locator, r Resolver, p Parser, n *holdings.Normalizer, st snapshot.Store, opts Options) *Engine {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.QuarterConcurrency < 1 {
		opts.QuarterConcurrency = 1
	}
	return &Engine{
		locator:    l,
		resolver:   r,
		parser:     p,
		normalizer: n,
		store:      st,
		opts:       opts,
	}
}

// RunOpts configures a single run.
type RunOpts struct {
	Force       bool // rewrite quarters already stored from the same filing
	MaxQuarters int  // overrides Options.MaxQuarters when > 0
}

// Run ingests every investor. Failures are recorded per investor or quarter
// and never stop the run; only context cancellation does, in which case the
// partial report is returned with the context error.
func (e *Engine) Run(ctx context.Context, investors []config.Investor, opts RunOpts) (*Report, error) {
	log := zap.L().With(zap.String("component", "ingest.engine"))
	rep := &Report{}

	if len(investors) == 0 {
		log.Info("no investors selected")
		return rep, nil
	}

	maxQ := e.opts.MaxQuarters
	if opts.MaxQuarters > 0 {
		maxQ = opts.MaxQuarters
	}

	log.Info("starting ingest",
		zap.Int("investors", len(investors)),
		zap.Int("concurrency", e.opts.Concurrency),
		zap.Int("max_quarters", maxQ),
		zap.Bool("force", opts.Force),
	)
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)
	for _, inv := range investors {
		g.Go(func() error {
			e.ingestInvestor(gctx, inv, maxQ, opts.Force, rep)
			return nil // don't abort the run on individual failure
		})
	}
	_ = g.Wait()
	rep.sort()

	log.Info("ingest complete",
		zap.Int("processed", rep.Stats.InvestorsProcessed),
		zap.Int("investors_skipped", rep.Stats.InvestorsSkipped),
		zap.Int("written", rep.Stats.QuartersWritten),
		zap.Int("unchanged", rep.Stats.QuartersUnchanged),
		zap.Int("quarters_skipped", rep.Stats.QuartersSkipped),
		zap.Int("empty", rep.Stats.QuartersEmpty),
		zap.Int("dropped_records", rep.Stats.RecordsDropped),
		zap.Duration("elapsed", time.Since(start)),
	)

	if err := ctx.Err(); err != nil {
		return rep, err
	}
	return rep, nil
}

func (e *Engine) ingestInvestor(ctx context.Context, inv config.Investor, maxQ int, force bool, rep *Report) {
	if ctx.Err() != nil {
		return
	}
	log := zap.L().With(
		zap.String("component", "ingest.engine"),
		zap.String("investor", inv.Slug),
		zap.String("cik", inv.CIK.String()),
	)

	recs, err := e.locator.Locate(ctx, inv.CIK)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Warn("skipping investor: locate failed", zap.Error(err))
		rep.skip(inv.Slug, model.QuarterKey{}, model.StageLocate, err)
		return
	}

	winners := quarter.Limit(quarter.Winners(recs), maxQ)
	log.Debug("selected quarters", zap.Int("filings", len(recs)), zap.Int("quarters", len(winners)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.QuarterConcurrency)
	for _, w := range winners {
		g.Go(func() error {
			e.ingestQuarter(gctx, inv, w, force, rep, log.With(zap.String("quarter", w.Quarter.String())))
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() == nil {
		rep.update(func(s *model.RunStats) { s.InvestorsProcessed++ })
	}
}

func (e *Engine) ingestQuarter(ctx context.Context, inv config.Investor, w quarter.Winner, force bool, rep *Report, log *zap.Logger) {
	if ctx.Err() != nil {
		return
	}

	if !force {
		existing, err := e.store.Load(ctx, inv.Slug, w.Quarter)
		if err == nil && existing.AccessionID == w.Filing.AccessionID {
			log.Debug("already stored", zap.String("accession", w.Filing.AccessionID))
			rep.update(func(s *model.RunStats) { s.QuartersUnchanged++ })
			return
		}
		if err != nil && !errors.Is(err, model.ErrNotFound) {
			log.Warn("could not read stored snapshot; rewriting", zap.Error(err))
		}
	}

	doc, err := e.resolver.Resolve(ctx, inv.CIK, w.Filing)
	if err != nil {
		e.skipQuarter(ctx, rep, log, inv, w, model.StageResolve, err)
		return
	}

	parsed, err := e.parser.Parse(ctx, w.Filing.FormType.Family(), doc.Body)
	if err != nil {
		e.skipQuarter(ctx, rep, log, inv, w, model.StageParse, err)
		return
	}

	res := e.normalizer.NormalizeAll(parsed.Records, w.Filing.FormType, inv.CIK)
	rep.update(func(s *model.RunStats) { s.RecordsDropped += res.Dropped })
	if res.Dropped > 0 {
		log.Debug("dropped records", zap.Int("dropped", res.Dropped), zap.Any("reasons", res.Reasons))
	}

	snap := snapshot.Build(snapshot.Meta{
		InvestorID:  inv.Slug,
		CIK:         inv.CIK,
		Quarter:     w.Quarter,
		Filing:      w.Filing,
		AsOfDate:    parsed.AsOfDate,
		DocumentURL: doc.URL,
		Dropped:     res.Dropped,
	}, res.Positions)

	if len(res.Positions) == 0 {
		empty := &model.EmptyResultError{AccessionID: w.Filing.AccessionID, Dropped: res.Dropped}
		log.Warn("filing has no valid positions", zap.Error(empty))
		rep.warn(inv.Slug, w.Quarter, empty.Error())
		rep.update(func(s *model.RunStats) { s.QuartersEmpty++ })
	}

	if msg, bad := Plausibility(inv, snap.TotalValue, e.opts.PlausibilityFactor); bad {
		log.Warn("implausible total value", zap.String("detail", msg))
		rep.warn(inv.Slug, w.Quarter, msg)
	}

	if err := e.store.Write(ctx, snap); err != nil {
		e.skipQuarter(ctx, rep, log, inv, w, model.StageWrite, eris.Wrap(err, "ingest: write snapshot"))
		return
	}

	rep.update(func(s *model.RunStats) { s.QuartersWritten++ })
	log.Info("snapshot written",
		zap.String("accession", w.Filing.AccessionID),
		zap.String("form", string(w.Filing.FormType)),
		zap.String("strategy", doc.Strategy),
		zap.Int("positions", snap.PositionCount),
		zap.Int64("total_value", snap.TotalValue),
	)
}

func (e *Engine) skipQuarter(ctx context.Context, rep *Report, log *zap.Logger, inv config.Investor, w quarter.Winner, stage model.Stage, err error) {
	if ctx.Err() != nil {
		return
	}
	log.Warn("skipping quarter",
		zap.String("stage", string(stage)),
		zap.String("accession", w.Filing.AccessionID),
		zap.Error(err),
	)
	rep.skip(inv.Slug, w.Quarter, stage, err)
}

// CheckResult compares an investor's newest filing with what is stored.
type CheckResult struct {
	InvestorID      string           `json:"investor_id"`
	Latest          *quarter.Winner  `json:"latest,omitempty"`
	StoredQuarter   model.QuarterKey `json:"stored_quarter,omitzero"`
	StoredAccession string           `json:"stored_accession,omitempty"`
	NewFiling       bool             `json:"new_filing"`
	Error           string           `json:"error,omitempty"`
}

// Check reports, per investor, whether EDGAR has a winning filing that is not
// yet stored: a later quarter, or a better filing for the latest stored one.
func (e *Engine) Check(ctx context.Context, investors []config.Investor) ([]CheckResult, error) {
	results := make([]CheckResult, len(investors))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)
	for i, inv := range investors {
		g.Go(func() error {
			results[i] = e.checkInvestor(gctx, inv)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

func (e *Engine) checkInvestor(ctx context.Context, inv config.Investor) CheckResult {
	res := CheckResult{InvestorID: inv.Slug}

	recs, err := e.locator.Locate(ctx, inv.CIK)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	winners := quarter.Winners(recs)
	if len(winners) == 0 {
		return res
	}
	latest := winners[len(winners)-1]
	res.Latest = &latest

	stored, err := e.store.Quarters(ctx, inv.Slug)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	if len(stored) == 0 {
		res.NewFiling = true
		return res
	}
	res.StoredQuarter = stored[len(stored)-1]

	switch res.StoredQuarter.Compare(latest.Quarter) {
	case -1:
		res.NewFiling = true
	case 0:
		snap, err := e.store.Load(ctx, inv.Slug, res.StoredQuarter)
		if err != nil {
			res.Error = err.Error()
			return res
		}
		res.StoredAccession = snap.AccessionID
		res.NewFiling = snap.AccessionID != latest.Filing.AccessionID
	}
	return res
}
