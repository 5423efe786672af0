package model

import (
	"strings"
	"time"
)

// FormType is an EDGAR form type relevant to holdings ingestion.
type FormType string

const (
	Form13F          FormType = "13F-HR"
	Form13FAmendment FormType = "13F-HR/A"
	FormNPORTMonthly FormType = "NPORT-P"
	FormNPORTQuarter FormType = "NPORT-PX"
)

// FormFamily groups form types sharing a document grammar.
type FormFamily string

const (
	Family13F   FormFamily = "13F"
	FamilyNPORT FormFamily = "NPORT"
)

// ParseFormType maps a raw submissions form string to a FormType. The second
// return is false for forms outside the two holdings families.
func ParseFormType(raw string) (FormType, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "13F-HR":
		return Form13F, true
	case "13F-HR/A":
		return Form13FAmendment, true
	case "NPORT-P":
		return FormNPORTMonthly, true
	case "NPORT-PX":
		return FormNPORTQuarter, true
	default:
		return "", false
	}
}

// Family returns the document grammar family for the form.
func (f FormType) Family() FormFamily {
	if f == Form13F || f == Form13FAmendment {
		return Family13F
	}
	return FamilyNPORT
}

// Eligible reports whether filings of this type may become a quarter's
// snapshot. Amendments are excluded.
func (f FormType) Eligible() bool {
	return f.Priority() > 0
}

// Priority ranks forms for winner selection; higher wins. Zero means the form
// never wins.
func (f FormType) Priority() int {
	switch f {
	case Form13F:
		return 3
	case FormNPORTQuarter:
		return 2
	case FormNPORTMonthly:
		return 1
	default:
		return 0
	}
}

// FilingRecord is one candidate filing produced by the locator.
type FilingRecord struct {
	FormType        FormType  `json:"form_type"`
	FilingDate      time.Time `json:"filing_date"`
	ReportingPeriod time.Time `json:"reporting_period,omitzero"`
	AccessionID     string    `json:"accession_id"`
	PrimaryDocument string    `json:"primary_document,omitempty"`
	// FilerCIK is the unpadded CIK whose archive directory holds the
	// filing. It differs from the investor id for fund series.
	FilerCIK string `json:"filer_cik,omitempty"`
}

// AccessionNoDashes returns the accession id in its archive-path form.
func (r FilingRecord) AccessionNoDashes() string {
	return strings.ReplaceAll(r.AccessionID, "-", "")
}
