// Package snapshot builds, stores and caches per-investor quarterly holdings
// snapshots.
package snapshot

import (
	"context"
	"time"

	"github.com/sells-group/holdings-cli/internal/model"
)

// Meta is the filing provenance of a snapshot.
type Meta struct {
	InvestorID  string
	CIK         model.CIK
	Quarter     model.QuarterKey
	Filing      model.FilingRecord
	AsOfDate    time.Time
	DocumentURL string
	Dropped     int
}

// Build assembles a snapshot: positions ordered by value, totals computed.
func Build(meta Meta, positions []model.Position) *model.Snapshot {
	ps := append([]model.Position(nil), positions...)
	model.SortPositions(ps)

	var total int64
	for _, p := range ps {
		total += p.Value
	}
	if ps == nil {
		ps = []model.Position{}
	}

	return &model.Snapshot{
		InvestorID:      meta.InvestorID,
		CIK:             meta.CIK,
		Quarter:         meta.Quarter,
		SourceFormType:  meta.Filing.FormType,
		FilingDate:      meta.Filing.FilingDate,
		ReportingPeriod: meta.Filing.ReportingPeriod,
		AsOfDate:        meta.AsOfDate,
		AccessionID:     meta.Filing.AccessionID,
		DocumentURL:     meta.DocumentURL,
		Positions:       ps,
		TotalValue:      total,
		PositionCount:   len(ps),
		DroppedRecords:  meta.Dropped,
		GeneratedAt:     time.Now().UTC(),
	}
}

// Reader loads stored snapshots.
type Reader interface {
	Load(ctx context.Context, investorID string, q model.QuarterKey) (*model.Snapshot, error)
	// Quarters lists an investor's stored quarters, ascending.
	Quarters(ctx context.Context, investorID string) ([]model.QuarterKey, error)
	Investors(ctx context.Context) ([]string, error)
}

// Writer persists snapshots.
type Writer interface {
	Write(ctx context.Context, snap *model.Snapshot) error
}

// Store is a Reader that can also write.
type Store interface {
	Reader
	Writer
}
