package config

import (
	"os"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/holdings-cli/internal/model"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Investor is one configured filer whose holdings are tracked.
type Investor struct {
	Slug      string    `yaml:"slug" json:"slug"`
	CIK       model.CIK `yaml:"cik" json:"cik"`
	Name      string    `yaml:"name" json:"name"`
	ApproxAUM int64     `yaml:"approx_aum" json:"approx_aum,omitempty"`
}

type investorsFile struct {
	Investors []Investor `yaml:"investors"`
}

// LoadInvestors reads and validates the investor table at path.
func LoadInvestors(path string) ([]Investor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read investors file %s", path)
	}
	return ParseInvestors(data)
}

// ParseInvestors decodes an investor table. Slugs and CIKs must be unique;
// CIKs are canonicalized.
func ParseInvestors(data []byte) ([]Investor, error) {
	var f investorsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "config: parse investors")
	}

	seenSlug := make(map[string]bool, len(f.Investors))
	seenCIK := make(map[model.CIK]string, len(f.Investors))
	out := make([]Investor, 0, len(f.Investors))
	for i, inv := range f.Investors {
		inv.Slug = strings.TrimSpace(inv.Slug)
		if !slugPattern.MatchString(inv.Slug) {
			return nil, eris.Errorf("config: investor %d has invalid slug %q", i, inv.Slug)
		}
		if seenSlug[inv.Slug] {
			return nil, eris.Errorf("config: duplicate investor slug %q", inv.Slug)
		}
		cik, err := model.ParseCIK(string(inv.CIK))
		if err != nil {
			return nil, eris.Wrapf(err, "config: investor %s", inv.Slug)
		}
		if other, ok := seenCIK[cik]; ok {
			return nil, eris.Errorf("config: investors %s and %s share cik %s", other, inv.Slug, cik)
		}
		if inv.ApproxAUM < 0 {
			return nil, eris.Errorf("config: investor %s has negative approx_aum", inv.Slug)
		}
		inv.CIK = cik
		inv.Name = strings.TrimSpace(inv.Name)
		seenSlug[inv.Slug] = true
		seenCIK[cik] = inv.Slug
		out = append(out, inv)
	}
	return out, nil
}

// SelectInvestors returns the investors whose slugs are listed, in table
// order. An empty list selects everyone.
func SelectInvestors(all []Investor, slugs []string) ([]Investor, error) {
	if len(slugs) == 0 {
		return all, nil
	}
	want := make(map[string]bool, len(slugs))
	for _, s := range slugs {
		want[strings.TrimSpace(s)] = true
	}
	var out []Investor
	for _, inv := range all {
		if want[inv.Slug] {
			out = append(out, inv)
			delete(want, inv.Slug)
		}
	}
	for s := range want {
		return nil, eris.Errorf("config: unknown investor %q", s)
	}
	return out, nil
}

// AllowList is the set of filers whose 13F values are already whole dollars.
type AllowList struct {
	ciks map[model.CIK]string
}

type allowListFile struct {
	WholeDollar []struct {
		CIK  string `yaml:"cik"`
		Note string `yaml:"note"`
	} `yaml:"whole_dollar"`
}

// LoadAllowList reads the whole-dollar allow-list. A missing file yields an
// empty list.
func LoadAllowList(path string) (*AllowList, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewAllowList(), nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "config: read allow-list %s", path)
	}
	return ParseAllowList(data)
}

// ParseAllowList decodes and validates an allow-list document.
func ParseAllowList(data []byte) (*AllowList, error) {
	var f allowListFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "config: parse allow-list")
	}
	al := NewAllowList()
	for i, e := range f.WholeDollar {
		cik, err := model.ParseCIK(e.CIK)
		if err != nil {
			return nil, eris.Wrapf(err, "config: allow-list entry %d", i)
		}
		if _, dup := al.ciks[cik]; dup {
			return nil, eris.Errorf("config: duplicate allow-list cik %s", cik)
		}
		al.ciks[cik] = e.Note
	}
	return al, nil
}

// NewAllowList returns an allow-list containing ciks.
func NewAllowList(ciks ...model.CIK) *AllowList {
	al := &AllowList{ciks: make(map[model.CIK]string, len(ciks))}
	for _, c := range ciks {
		al.ciks[c] = ""
	}
	return al
}

// Contains reports whether cik reports 13F values in whole dollars.
func (a *AllowList) Contains(cik model.CIK) bool {
	if a == nil {
		return false
	}
	_, ok := a.ciks[cik]
	return ok
}

// Len returns the number of allow-listed filers.
func (a *AllowList) Len() int {
	if a == nil {
		return 0
	}
	return len(a.ciks)
}
