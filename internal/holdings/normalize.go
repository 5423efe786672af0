package holdings

import (
	"errors"
	"hash/fnv"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sells-group/holdings-cli/internal/model"
)

// securityIDLen is the length of a CUSIP and of every placeholder id.
const securityIDLen = 9

// WholeDollarFilers reports filers whose 13F values are already whole dollars
// rather than thousands.
type WholeDollarFilers interface {
	Contains(cik model.CIK) bool
}

// Normalizer converts raw records into canonical positions.
type Normalizer struct {
	wholeDollar WholeDollarFilers
}

// NewNormalizer creates a Normalizer. wholeDollar may be nil.
func NewNormalizer(wholeDollar WholeDollarFilers) *Normalizer {
	return &Normalizer{wholeDollar: wholeDollar}
}

// Result is the outcome of normalizing one document.
type Result struct {
	Positions []model.Position
	Dropped   int
	// Reasons counts drops by offending field.
	Reasons map[string]int
}

// Normalize converts one raw record. Rejections are *model.NormalizationError.
func (n *Normalizer) Normalize(raw model.RawPosition, form model.FormType, cik model.CIK) (model.Position, error) {
	name := CleanIssuerName(raw.IssuerName)

	shares, err := parseWhole(raw.Shares, 1)
	if err != nil {
		return model.Position{}, &model.NormalizationError{Field: "shares", Value: raw.Shares, Reason: err.Error()}
	}
	if shares <= 0 {
		return model.Position{}, &model.NormalizationError{Field: "shares", Value: raw.Shares, Reason: "must be positive"}
	}

	value, err := parseWhole(raw.Value, n.valueScale(form, cik))
	if err != nil {
		return model.Position{}, &model.NormalizationError{Field: "value", Value: raw.Value, Reason: err.Error()}
	}
	if value <= 0 {
		return model.Position{}, &model.NormalizationError{Field: "value", Value: raw.Value, Reason: "must be positive"}
	}

	id, ok := CleanCUSIP(raw.CUSIP)
	if !ok {
		id, ok = cusipFromISIN(raw.ISIN)
	}
	if !ok {
		if name == "" {
			return model.Position{}, &model.NormalizationError{Field: "cusip", Value: raw.CUSIP, Reason: "no identifier and no issuer name"}
		}
		id = PlaceholderID(name)
	}

	return model.Position{
		IssuerName:   name,
		SecurityID:   id,
		TitleOfClass: collapseSpace(raw.TitleOfClass),
		Shares:       shares,
		Value:        value,
		Instrument:   ClassifyInstrument(raw.PutCall, raw.TitleOfClass),
	}, nil
}

// NormalizeAll converts every record, dropping and counting rejects.
func (n *Normalizer) NormalizeAll(raws []model.RawPosition, form model.FormType, cik model.CIK) *Result {
	log := zap.L().With(zap.String("component", "holdings.normalizer"), zap.String("cik", cik.String()))

	res := &Result{Positions: make([]model.Position, 0, len(raws)), Reasons: make(map[string]int)}
	for i, raw := range raws {
		pos, err := n.Normalize(raw, form, cik)
		if err != nil {
			res.Dropped++
			field := "unknown"
			var ne *model.NormalizationError
			if errors.As(err, &ne) {
				field = ne.Field
			}
			res.Reasons[field]++
			log.Debug("dropped record", zap.Int("index", i), zap.Error(err))
			continue
		}
		res.Positions = append(res.Positions, pos)
	}
	return res
}

func (n *Normalizer) valueScale(form model.FormType, cik model.CIK) int64 {
	if form.Family() != model.Family13F {
		return 1
	}
	if n.wholeDollar != nil && n.wholeDollar.Contains(cik) {
		return 1
	}
	return 1000
}

var maxWhole = decimal.NewFromInt(math.MaxInt64)

// parseWhole parses a formatted number, multiplies by scale and rounds half
// away from zero to a whole unit.
func parseWhole(s string, scale int64) (int64, error) {
	cleaned := strings.Map(func(r rune) rune {
		if r == ',' || r == '$' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if cleaned == "" {
		return 0, strconv.ErrSyntax
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, strconv.ErrSyntax
	}
	d = d.Mul(decimal.NewFromInt(scale)).Round(0)
	if d.Abs().GreaterThan(maxWhole) {
		return 0, strconv.ErrRange
	}
	return d.IntPart(), nil
}

// CleanCUSIP strips non-alphanumerics and uppercases. Ids of nine or more
// characters are truncated; six to eight characters are right-padded with
// zeros. Shorter or all-zero ids are invalid.
func CleanCUSIP(raw string) (string, bool) {
	id := alnumUpper(raw)
	if len(id) < 6 || strings.Trim(id, "0") == "" {
		return "", false
	}
	if len(id) >= securityIDLen {
		return id[:securityIDLen], true
	}
	return id + strings.Repeat("0", securityIDLen-len(id)), true
}

// cusipFromISIN recovers the embedded CUSIP of a US or Canadian ISIN.
func cusipFromISIN(raw string) (string, bool) {
	isin := alnumUpper(raw)
	if len(isin) != 12 || (!strings.HasPrefix(isin, "US") && !strings.HasPrefix(isin, "CA")) {
		return "", false
	}
	return CleanCUSIP(isin[2:11])
}

// PlaceholderID derives a deterministic nine-character id from an issuer
// name: six characters of the name without legal suffixes, padded with X,
// followed by a base-36 checksum of the whole stripped name.
func PlaceholderID(issuer string) string {
	var b strings.Builder
	for _, tok := range strings.Fields(strings.ToUpper(issuer)) {
		tok = alnumUpper(tok)
		if tok == "" || placeholderDrop[tok] {
			continue
		}
		b.WriteString(tok)
	}
	stem := b.String()
	if stem == "" {
		stem = alnumUpper(issuer)
	}

	prefix := stem
	if len(prefix) > 6 {
		prefix = prefix[:6]
	}
	prefix += strings.Repeat("X", 6-len(prefix))

	h := fnv.New32a()
	_, _ = h.Write([]byte(stem))
	sum := strconv.FormatUint(uint64(h.Sum32()%(36*36*36)), 36)
	sum = strings.Repeat("0", 3-len(sum)) + sum
	return prefix + strings.ToUpper(sum)
}

// placeholderDrop lists legal-form tokens ignored when deriving placeholders.
var placeholderDrop = map[string]bool{
	"INC": true, "INCORPORATED": true, "CORP": true, "CORPORATION": true,
	"LTD": true, "LIMITED": true, "LLC": true, "LP": true, "CO": true,
	"PLC": true, "THE": true,
}

// issuerSuffixes maps legal-form spellings to their canonical form.
var issuerSuffixes = map[string]string{
	"INC": "Inc", "INC.": "Inc", "INCORPORATED": "Inc",
	"CORP": "Corp", "CORP.": "Corp", "CORPORATION": "Corp",
	"LTD": "Ltd", "LTD.": "Ltd", "LIMITED": "Ltd",
	"LLC": "LLC", "L.L.C.": "LLC",
	"LP": "LP", "L.P.": "LP",
}

// CleanIssuerName collapses whitespace and canonicalizes legal suffixes.
// Other tokens keep their original spelling.
func CleanIssuerName(raw string) string {
	tokens := strings.Fields(raw)
	for i, tok := range tokens {
		if canon, ok := issuerSuffixes[strings.ToUpper(tok)]; ok {
			tokens[i] = canon
		}
	}
	return strings.Join(tokens, " ")
}

// ClassifyInstrument uses the explicit put/call indicator, then the title of
// class, and defaults to equity.
func ClassifyInstrument(putCall, titleOfClass string) model.InstrumentType {
	switch strings.ToLower(strings.TrimSpace(putCall)) {
	case "put", "p":
		return model.InstrumentPut
	case "call", "c":
		return model.InstrumentCall
	}

	option := false
	for _, tok := range strings.FieldsFunc(strings.ToLower(titleOfClass), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		switch tok {
		case "put", "puts":
			return model.InstrumentPut
		case "call", "calls":
			return model.InstrumentCall
		case "option", "options", "opt":
			option = true
		}
	}
	if option {
		return model.InstrumentOptionUnknown
	}
	return model.InstrumentEquity
}

func alnumUpper(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			return r
		default:
			return -1
		}
	}, s)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
