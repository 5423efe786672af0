package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/holdings-cli/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{"ingest", "check", "changes", "trending", "status", "investors", "monitor", "serve"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "holdings-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestIngestCommand_Flags(t *testing.T) {
	for _, name := range []string{"investors", "force", "max-quarters"} {
		assert.NotNil(t, ingestCmd.Flags().Lookup(name), "ingest should have --%s flag", name)
	}
	assert.Equal(t, "false", ingestCmd.Flags().Lookup("force").DefValue)
}

func TestTrendingCommand_Flags(t *testing.T) {
	flag := trendingCmd.Flags().Lookup("min-investors")
	require.NotNil(t, flag)
	assert.Equal(t, "2", flag.DefValue)

	flag = trendingCmd.Flags().Lookup("min-value")
	require.NotNil(t, flag)
	assert.Equal(t, "100000000", flag.DefValue)
}

func TestChangesCommand_RequiresInvestor(t *testing.T) {
	assert.Error(t, changesCmd.Args(changesCmd, nil))
	assert.NoError(t, changesCmd.Args(changesCmd, []string{"berkshire"}))
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestParseBoundary(t *testing.T) {
	tests := []struct {
		name       string
		prev, curr string
		wantPrev   model.QuarterKey
		wantCurr   model.QuarterKey
		wantErr    bool
	}{
		{name: "neither"},
		{name: "curr only", curr: "2024-Q1", wantPrev: model.QuarterKey{Year: 2023, Quarter: 4}, wantCurr: model.QuarterKey{Year: 2024, Quarter: 1}},
		{name: "both", prev: "2023-Q2", curr: "2024-Q1", wantPrev: model.QuarterKey{Year: 2023, Quarter: 2}, wantCurr: model.QuarterKey{Year: 2024, Quarter: 1}},
		{name: "prev only", prev: "2023-Q2", wantErr: true},
		{name: "reversed", prev: "2024-Q2", curr: "2024-Q1", wantErr: true},
		{name: "bad quarter", curr: "2024-Q9", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev, curr, err := parseBoundary(tt.prev, tt.curr)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPrev, prev)
			assert.Equal(t, tt.wantCurr, curr)
		})
	}
}
