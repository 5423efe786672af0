package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/holdings-cli/internal/model"
)

var q3 = model.QuarterKey{Year: 2024, Quarter: 3}

func sampleSnapshot(investor string, q model.QuarterKey) *model.Snapshot {
	return Build(Meta{
		InvestorID: investor,
		CIK:        "0001067983",
		Quarter:    q,
		Filing: model.FilingRecord{
			FormType:    model.Form13F,
			FilingDate:  time.Date(2024, 8, 14, 0, 0, 0, 0, time.UTC),
			AccessionID: "0000950123-24-008740",
		},
		Dropped: 2,
	}, []model.Position{
		{IssuerName: "B", SecurityID: "BBBBBBBBB", Shares: 10, Value: 500, Instrument: model.InstrumentEquity},
		{IssuerName: "A", SecurityID: "AAAAAAAAA", Shares: 10, Value: 500, Instrument: model.InstrumentEquity},
		{IssuerName: "C", SecurityID: "CCCCCCCCC", Shares: 1, Value: 900, Instrument: model.InstrumentCall},
	})
}

func TestBuild(t *testing.T) {
	snap := sampleSnapshot("berkshire", q3)

	require.NoError(t, snap.Validate())
	assert.Equal(t, int64(1900), snap.TotalValue)
	assert.Equal(t, 3, snap.PositionCount)
	assert.Equal(t, 2, snap.DroppedRecords)
	assert.Equal(t, []string{"CCCCCCCCC", "AAAAAAAAA", "BBBBBBBBB"},
		[]string{snap.Positions[0].SecurityID, snap.Positions[1].SecurityID, snap.Positions[2].SecurityID})
	assert.Equal(t, model.Form13F, snap.SourceFormType)
	assert.False(t, snap.GeneratedAt.IsZero())
}

func TestBuild_Empty(t *testing.T) {
	snap := Build(Meta{InvestorID: "x", Quarter: q3}, nil)
	require.NoError(t, snap.Validate())
	assert.NotNil(t, snap.Positions)
	assert.Zero(t, snap.TotalValue)
}

func TestFileStore_WriteLoad(t *testing.T) {
	ctx := context.Background()
	st := NewFileStore(t.TempDir())
	snap := sampleSnapshot("berkshire", q3)

	require.NoError(t, st.Write(ctx, snap))
	assert.FileExists(t, filepath.Join(st.Root(), "berkshire", "2024-Q3.json"))
	assert.True(t, st.Exists("berkshire", q3))

	got, err := st.Load(ctx, "berkshire", q3)
	require.NoError(t, err)
	assert.Equal(t, snap.Positions, got.Positions)
	assert.Equal(t, snap.Quarter, got.Quarter)
	assert.Equal(t, snap.FilingDate, got.FilingDate)
	assert.Equal(t, snap.AccessionID, got.AccessionID)
	assert.Equal(t, snap.TotalValue, got.TotalValue)

	entries, err := os.ReadDir(filepath.Join(st.Root(), "berkshire"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestFileStore_Overwrite(t *testing.T) {
	ctx := context.Background()
	st := NewFileStore(t.TempDir())
	require.NoError(t, st.Write(ctx, sampleSnapshot("berkshire", q3)))

	replacement := Build(Meta{InvestorID: "berkshire", Quarter: q3}, []model.Position{
		{IssuerName: "Z", SecurityID: "ZZZZZZZZZ", Shares: 1, Value: 1},
	})
	require.NoError(t, st.Write(ctx, replacement))

	got, err := st.Load(ctx, "berkshire", q3)
	require.NoError(t, err)
	assert.Equal(t, 1, got.PositionCount)
}

func TestFileStore_RejectsInvalid(t *testing.T) {
	st := NewFileStore(t.TempDir())
	bad := sampleSnapshot("berkshire", q3)
	bad.TotalValue++
	assert.Error(t, st.Write(context.Background(), bad))
	assert.False(t, st.Exists("berkshire", q3))

	escape := sampleSnapshot("../etc", q3)
	assert.Error(t, st.Write(context.Background(), escape))
}

func TestFileStore_LoadMissing(t *testing.T) {
	_, err := NewFileStore(t.TempDir()).Load(context.Background(), "nobody", q3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestFileStore_ReadsStayInsideRoot(t *testing.T) {
	ctx := context.Background()
	parent := t.TempDir()
	st := NewFileStore(filepath.Join(parent, "store"))

	outside := NewFileStore(parent)
	require.NoError(t, outside.Write(ctx, sampleSnapshot("leak", q3)))
	require.NoError(t, os.Rename(filepath.Join(parent, "leak", q3.String()+".json"), filepath.Join(parent, q3.String()+".json")))

	for _, id := range []string{"..", ".", "", "../leak", `..\leak`, "a/b"} {
		_, err := st.Load(ctx, id, q3)
		require.Error(t, err, id)
		assert.False(t, errors.Is(err, model.ErrNotFound), id)
		assert.Contains(t, err.Error(), "invalid investor id", id)

		quarters, err := st.Quarters(ctx, id)
		require.Error(t, err, id)
		assert.Empty(t, quarters, id)

		assert.False(t, st.Exists(id, q3), id)
	}
}

func TestFileStore_Listings(t *testing.T) {
	ctx := context.Background()
	st := NewFileStore(t.TempDir())

	quarters, err := st.Quarters(ctx, "berkshire")
	require.NoError(t, err)
	assert.Empty(t, quarters)

	for _, q := range []model.QuarterKey{{Year: 2024, Quarter: 3}, {Year: 2023, Quarter: 4}, {Year: 2024, Quarter: 1}} {
		require.NoError(t, st.Write(ctx, sampleSnapshot("berkshire", q)))
	}
	require.NoError(t, st.Write(ctx, sampleSnapshot("appaloosa", q3)))
	require.NoError(t, os.WriteFile(filepath.Join(st.Root(), "berkshire", "notes.json"), []byte("{}"), 0o644))

	quarters, err = st.Quarters(ctx, "berkshire")
	require.NoError(t, err)
	assert.Equal(t, []model.QuarterKey{{Year: 2023, Quarter: 4}, {Year: 2024, Quarter: 1}, {Year: 2024, Quarter: 3}}, quarters)

	investors, err := st.Investors(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"appaloosa", "berkshire"}, investors)
}

// countingReader counts Load calls on the wrapped reader.
type countingReader struct {
	Reader
	loads atomic.Int32
}

func (c *countingReader) Load(ctx context.Context, id string, q model.QuarterKey) (*model.Snapshot, error) {
	c.loads.Add(1)
	return c.Reader.Load(ctx, id, q)
}

func TestCachedReader_TTL(t *testing.T) {
	ctx := context.Background()
	st := NewFileStore(t.TempDir())
	require.NoError(t, st.Write(ctx, sampleSnapshot("berkshire", q3)))

	inner := &countingReader{Reader: st}
	cache := NewCachedReader(inner, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		_, err := cache.Load(ctx, "berkshire", q3)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), inner.loads.Load())

	now = now.Add(2 * time.Minute)
	_, err := cache.Load(ctx, "berkshire", q3)
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.loads.Load(), "expired entry is reloaded")

	cache.Purge()
	assert.Zero(t, cache.Len())
}

func TestCachedReader_MissNotCached(t *testing.T) {
	inner := &countingReader{Reader: NewFileStore(t.TempDir())}
	cache := NewCachedReader(inner, 0)

	for i := 0; i < 2; i++ {
		_, err := cache.Load(context.Background(), "nobody", q3)
		assert.ErrorIs(t, err, model.ErrNotFound)
	}
	assert.Equal(t, int32(2), inner.loads.Load())
	assert.Zero(t, cache.Len())
}

func TestCachedReader_Concurrent(t *testing.T) {
	ctx := context.Background()
	st := NewFileStore(t.TempDir())
	require.NoError(t, st.Write(ctx, sampleSnapshot("berkshire", q3)))
	cache := NewCachedReader(st, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := cache.Load(ctx, "berkshire", q3)
			assert.NoError(t, err)
			assert.Equal(t, 3, snap.PositionCount)
		}()
	}
	wg.Wait()

	cache.Invalidate("berkshire", q3)
	assert.Zero(t, cache.Len())
}
