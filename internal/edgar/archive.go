package edgar

import (
	"regexp"
	"strings"

	"github.com/sells-group/holdings-cli/internal/model"
)

var (
	accessionDashed  = regexp.MustCompile(`\d{10}-\d{2}-\d{6}`)
	accessionPath    = regexp.MustCompile(`/data/(\d+)/(\d{18})(?:/|$)`)
	namespacePrefix  = regexp.MustCompile(`(</?)[A-Za-z_][\w.-]*:([A-Za-z_][\w.-]*)`)
	namespaceDeclare = regexp.MustCompile(`\s+xmlns:[A-Za-z_][\w.-]*\s*=\s*("[^"]*"|'[^']*')`)
)

// accessionFromText finds a dashed accession id in an Atom id or archive
// URL. Undashed 18-digit path segments are re-dashed.
func accessionFromText(s string) string {
	if m := accessionDashed.FindString(s); m != "" {
		return m
	}
	if m := accessionPath.FindStringSubmatch(s); m != nil {
		raw := m[2]
		return raw[:10] + "-" + raw[10:12] + "-" + raw[12:]
	}
	return ""
}

// filerFromLink extracts the archive-directory CIK from a filing URL.
func filerFromLink(s string) string {
	if m := accessionPath.FindStringSubmatch(s); m != nil {
		return strings.TrimLeft(m[1], "0")
	}
	return ""
}

// filingDir returns the archive directory URL for a filing, with a trailing
// slash.
func filingDir(archivesBase string, cik model.CIK, rec model.FilingRecord) string {
	filer := rec.FilerCIK
	if filer == "" {
		filer = cik.Trimmed()
	}
	return strings.TrimRight(archivesBase, "/") + "/" + filer + "/" + rec.AccessionNoDashes() + "/"
}

// StripNamespaces removes element-name prefixes (ns1:infoTable becomes
// infoTable) and the matching xmlns:prefix declarations. Attribute values
// and text are untouched; the default namespace declaration is kept.
func StripNamespaces(doc []byte) []byte {
	out := namespaceDeclare.ReplaceAll(doc, nil)
	return namespacePrefix.ReplaceAll(out, []byte("$1$2"))
}
