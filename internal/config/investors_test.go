package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/holdings-cli/internal/model"
)

const investorsYAML = `
investors:
  - slug: buffett
    cik: "1067983"
    name: Berkshire Hathaway
    approx_aum: 300000000000
  - slug: vanguard-500
    cik: s000002839
    name: Vanguard 500 Index Fund
  - slug: gates
    cik: "0001166559"
    name: "  Bill & Melinda Gates Foundation Trust "
`

func TestParseInvestors(t *testing.T) {
	invs, err := ParseInvestors([]byte(investorsYAML))
	require.NoError(t, err)
	require.Len(t, invs, 3)

	assert.Equal(t, model.CIK("0001067983"), invs[0].CIK)
	assert.Equal(t, int64(300_000_000_000), invs[0].ApproxAUM)
	assert.Equal(t, model.CIK("S000002839"), invs[1].CIK)
	assert.Equal(t, "Bill & Melinda Gates Foundation Trust", invs[2].Name)
}

func TestParseInvestors_Rejects(t *testing.T) {
	tests := map[string]string{
		"duplicate slug": `
investors:
  - {slug: a, cik: "1"}
  - {slug: a, cik: "2"}`,
		"duplicate cik": `
investors:
  - {slug: a, cik: "1"}
  - {slug: b, cik: "0000000001"}`,
		"bad cik":  `investors: [{slug: a, cik: "x1"}]`,
		"bad slug": `investors: [{slug: "Has Space", cik: "1"}]`,
		"bad yaml": `investors: [`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseInvestors([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadInvestors_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "investors.yaml")
	require.NoError(t, os.WriteFile(path, []byte(investorsYAML), 0o644))

	invs, err := LoadInvestors(path)
	require.NoError(t, err)
	assert.Len(t, invs, 3)

	_, err = LoadInvestors(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSelectInvestors(t *testing.T) {
	invs, err := ParseInvestors([]byte(investorsYAML))
	require.NoError(t, err)

	all, err := SelectInvestors(invs, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	some, err := SelectInvestors(invs, []string{"gates", "buffett"})
	require.NoError(t, err)
	require.Len(t, some, 2)
	assert.Equal(t, "buffett", some[0].Slug)

	_, err = SelectInvestors(invs, []string{"nobody"})
	assert.ErrorContains(t, err, "unknown investor")
}

func TestAllowList(t *testing.T) {
	doc := `
whole_dollar:
  - cik: "1536411"
    note: reports values in dollars since 2019
  - cik: "0001649339"
`
	al, err := ParseAllowList([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, 2, al.Len())
	assert.True(t, al.Contains("0001536411"))
	assert.False(t, al.Contains("0001067983"))

	_, err = ParseAllowList([]byte("whole_dollar:\n  - cik: \"1\"\n  - cik: \"0001\"\n"))
	assert.ErrorContains(t, err, "duplicate")

	var nilList *AllowList
	assert.False(t, nilList.Contains("0000000001"))
}

func TestLoadAllowList_MissingFileIsEmpty(t *testing.T) {
	al, err := LoadAllowList(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 0, al.Len())
}
