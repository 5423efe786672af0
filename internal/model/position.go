package model

import (
	"cmp"
	"slices"
	"time"

	"github.com/rotisserie/eris"
)

// InstrumentType classifies a holding.
type InstrumentType string

const (
	InstrumentEquity        InstrumentType = "EQUITY"
	InstrumentCall          InstrumentType = "CALL"
	InstrumentPut           InstrumentType = "PUT"
	InstrumentOptionUnknown InstrumentType = "OPTION_UNKNOWN"
)

// RawPosition is one holdings record exactly as parsed, all fields strings.
type RawPosition struct {
	IssuerName    string
	TitleOfClass  string
	CUSIP         string
	ISIN          string
	Ticker        string
	OtherID       string
	Shares        string
	ShareType     string // SH or PRN for 13F, units for NPORT
	Value         string
	PutCall       string
	AssetCategory string
}

// Position is a normalized holding. Value is whole US dollars.
type Position struct {
	IssuerName   string         `json:"issuer_name"`
	SecurityID   string         `json:"security_id"`
	TitleOfClass string         `json:"title_of_class,omitempty"`
	Shares       int64          `json:"shares"`
	Value        int64          `json:"value"`
	Instrument   InstrumentType `json:"instrument"`
}

// Snapshot is the persisted holdings record for one investor and quarter.
type Snapshot struct {
	InvestorID      string     `json:"investor_id"`
	CIK             CIK        `json:"cik"`
	Quarter         QuarterKey `json:"quarter"`
	SourceFormType  FormType   `json:"source_form_type"`
	FilingDate      time.Time  `json:"filing_date"`
	ReportingPeriod time.Time  `json:"reporting_period,omitzero"`
	AsOfDate        time.Time  `json:"as_of_date,omitzero"`
	AccessionID     string     `json:"accession_id"`
	DocumentURL     string     `json:"document_url,omitempty"`
	Positions       []Position `json:"positions"`
	TotalValue      int64      `json:"total_value"`
	PositionCount   int        `json:"position_count"`
	DroppedRecords  int        `json:"dropped_records"`
	GeneratedAt     time.Time  `json:"generated_at"`
}

// SortPositions orders positions by descending value, ties by security id.
func SortPositions(ps []Position) {
	slices.SortStableFunc(ps, func(a, b Position) int {
		if c := cmp.Compare(b.Value, a.Value); c != 0 {
			return c
		}
		return cmp.Compare(a.SecurityID, b.SecurityID)
	})
}

// Validate checks the snapshot's structural invariants.
func (s *Snapshot) Validate() error {
	if s.InvestorID == "" {
		return eris.New("snapshot: missing investor id")
	}
	if s.Quarter.IsZero() {
		return eris.New("snapshot: missing quarter")
	}
	var total int64
	for i, p := range s.Positions {
		if p.Shares <= 0 || p.Value <= 0 {
			return eris.Errorf("snapshot: position %d (%s) is not positive", i, p.SecurityID)
		}
		if len(p.SecurityID) != 9 {
			return eris.Errorf("snapshot: position %d has invalid security id %q", i, p.SecurityID)
		}
		if i > 0 && s.Positions[i-1].Value < p.Value {
			return eris.Errorf("snapshot: positions not ordered by value at %d", i)
		}
		total += p.Value
	}
	if total != s.TotalValue {
		return eris.Errorf("snapshot: total value %d does not match position sum %d", s.TotalValue, total)
	}
	if s.PositionCount != len(s.Positions) {
		return eris.Errorf("snapshot: position count %d does not match %d positions", s.PositionCount, len(s.Positions))
	}
	return nil
}
