// Package holdings parses filing documents into raw holdings records and
// normalizes those records into canonical positions.
package holdings

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/holdings-cli/internal/fetcher"
	"github.com/sells-group/holdings-cli/internal/model"
)

// ParsedDocument is the parser output for one filing document.
type ParsedDocument struct {
	Family  model.FormFamily
	Records []model.RawPosition
	// AsOfDate is the NPORT reporting-period date. Zero for 13F.
	AsOfDate time.Time
}

// Parser reads 13F information tables and NPORT submissions. It expects
// documents with namespace prefixes already stripped.
type Parser struct{}

// NewParser creates a Parser.
func NewParser() *Parser { return &Parser{} }

var (
	tableOpen     = []byte("<informationTable")
	tableClose    = []byte("</informationTable>")
	nportRoot     = []byte("<edgarSubmission")
	nportHoldings = []byte("<invstOrSecs")
)

// Validate reports whether doc carries the holdings grammar of family.
func (p *Parser) Validate(family model.FormFamily, doc []byte) error {
	switch family {
	case model.Family13F:
		if _, ok := informationTable(doc); !ok {
			return mismatch(family, "informationTable element not found")
		}
	case model.FamilyNPORT:
		if !bytes.Contains(doc, nportRoot) {
			return mismatch(family, "edgarSubmission root not found")
		}
		if !bytes.Contains(doc, nportHoldings) {
			return mismatch(family, "invstOrSecs element not found")
		}
	default:
		return mismatch(family, "unknown form family")
	}
	return nil
}

// Parse extracts raw holdings records. Field values are passed through as
// strings; interpretation belongs to the Normalizer.
func (p *Parser) Parse(ctx context.Context, family model.FormFamily, doc []byte) (*ParsedDocument, error) {
	if err := p.Validate(family, doc); err != nil {
		return nil, err
	}
	if family == model.Family13F {
		return parse13F(ctx, doc)
	}
	return parseNPORT(ctx, doc)
}

// infoTable is one 13F holdings row.
type infoTable struct {
	NameOfIssuer string `xml:"nameOfIssuer"`
	TitleOfClass string `xml:"titleOfClass"`
	CUSIP        string `xml:"cusip"`
	Value        string `xml:"value"`
	Shares       string `xml:"shrsOrPrnAmt>sshPrnamt"`
	ShareType    string `xml:"shrsOrPrnAmt>sshPrnamtType"`
	PutCall      string `xml:"putCall"`
}

func parse13F(ctx context.Context, doc []byte) (*ParsedDocument, error) {
	region, _ := informationTable(doc)
	if prolog := xmlProlog(doc); prolog != nil && !bytes.HasPrefix(region, prolog) {
		region = append(append([]byte{}, prolog...), region...)
	}
	rows, err := fetcher.CollectXML[infoTable](ctx, bytes.NewReader(region), "infoTable")
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &model.SchemaMismatchError{Family: model.Family13F, Source: "informationTable", Reason: err.Error()}
	}

	out := &ParsedDocument{Family: model.Family13F, Records: make([]model.RawPosition, 0, len(rows))}
	for _, r := range rows {
		out.Records = append(out.Records, model.RawPosition{
			IssuerName:   r.NameOfIssuer,
			TitleOfClass: r.TitleOfClass,
			CUSIP:        r.CUSIP,
			Shares:       r.Shares,
			ShareType:    r.ShareType,
			Value:        r.Value,
			PutCall:      r.PutCall,
		})
	}
	return out, nil
}

// informationTable returns the table element region of a 13F document. Full
// text submissions embed it among other documents; an unterminated table runs
// to the end of the input.
func informationTable(doc []byte) ([]byte, bool) {
	start := bytes.Index(doc, tableOpen)
	for start >= 0 {
		// Reject longer element names sharing the prefix.
		next := start + len(tableOpen)
		if next >= len(doc) || isNameEnd(doc[next]) {
			break
		}
		rel := bytes.Index(doc[next:], tableOpen)
		if rel < 0 {
			return nil, false
		}
		start = next + rel
	}
	if start < 0 {
		return nil, false
	}
	end := bytes.Index(doc[start:], tableClose)
	if end < 0 {
		return doc[start:], true
	}
	return doc[start : start+end+len(tableClose)], true
}

// xmlProlog returns the leading <?xml ...?> declaration so a sliced table
// keeps its declared charset.
func xmlProlog(doc []byte) []byte {
	trimmed := bytes.TrimLeft(doc, " \t\r\n\ufeff")
	if !bytes.HasPrefix(trimmed, []byte("<?xml")) {
		return nil
	}
	end := bytes.Index(trimmed, []byte("?>"))
	if end < 0 {
		return nil
	}
	return trimmed[:end+2]
}

func isNameEnd(b byte) bool {
	return b == '>' || b == '/' || b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

type nportIdentifier struct {
	Desc  string `xml:"otherDesc,attr"`
	Value string `xml:"value,attr"`
}

// invstOrSec is one NPORT holding.
type invstOrSec struct {
	Name        string `xml:"name"`
	Title       string `xml:"title"`
	CUSIP       string `xml:"cusip"`
	Identifiers struct {
		ISIN   nportIdentifier   `xml:"isin"`
		Ticker nportIdentifier   `xml:"ticker"`
		Other  []nportIdentifier `xml:"other"`
	} `xml:"identifiers"`
	Balance   string `xml:"balance"`
	Units     string `xml:"units"`
	ValUSD    string `xml:"valUSD"`
	AssetCat  string `xml:"assetCat"`
	PutOrCall string `xml:"derivativeInfo>optionSwaptionWarrantDeriv>putOrCall"`
}

type genInfo struct {
	RepPdDate string `xml:"repPdDate"`
	RepPdEnd  string `xml:"repPdEnd"`
}

func parseNPORT(ctx context.Context, doc []byte) (*ParsedDocument, error) {
	rows, err := fetcher.CollectXML[invstOrSec](ctx, bytes.NewReader(doc), "invstOrSec")
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &model.SchemaMismatchError{Family: model.FamilyNPORT, Source: "invstOrSecs", Reason: err.Error()}
	}

	out := &ParsedDocument{Family: model.FamilyNPORT, Records: make([]model.RawPosition, 0, len(rows))}
	for _, r := range rows {
		rec := model.RawPosition{
			IssuerName:    r.Name,
			TitleOfClass:  r.Title,
			CUSIP:         r.CUSIP,
			ISIN:          r.Identifiers.ISIN.Value,
			Ticker:        r.Identifiers.Ticker.Value,
			Shares:        r.Balance,
			ShareType:     r.Units,
			Value:         r.ValUSD,
			PutCall:       r.PutOrCall,
			AssetCategory: r.AssetCat,
		}
		if len(r.Identifiers.Other) > 0 {
			rec.OtherID = r.Identifiers.Other[0].Value
		}
		out.Records = append(out.Records, rec)
	}

	infos, err := fetcher.CollectXML[genInfo](ctx, bytes.NewReader(doc), "genInfo")
	if err == nil && len(infos) > 0 {
		out.AsOfDate = parseReportDate(infos[0].RepPdDate, infos[0].RepPdEnd)
	}
	return out, nil
}

func parseReportDate(candidates ...string) time.Time {
	for _, c := range candidates {
		if t, err := time.Parse("2006-01-02", strings.TrimSpace(c)); err == nil {
			return t
		}
	}
	return time.Time{}
}

func mismatch(family model.FormFamily, reason string) error {
	return eris.Wrap(&model.SchemaMismatchError{Family: family, Source: "document", Reason: reason}, "parser: validate")
}
