package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/holdings-cli/internal/model"
)

const fileExt = ".json"

// FileStore keeps snapshots as {root}/{investor}/{YYYY-Qn}.json.
type FileStore struct {
	root string
}

// NewFileStore creates a FileStore rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{root: dir}
}

// Root returns the store directory.
func (s *FileStore) Root() string { return s.root }

// investorDir maps an investor id to its directory. Ids that would escape
// the root or name the root itself are rejected.
func (s *FileStore) investorDir(investorID string) (string, error) {
	if investorID == "" || investorID == "." || investorID == ".." || strings.ContainsAny(investorID, `/\`) {
		return "", eris.Errorf("snapshot: invalid investor id %q", investorID)
	}
	return filepath.Join(s.root, investorID), nil
}

func (s *FileStore) path(investorID string, q model.QuarterKey) (string, error) {
	dir, err := s.investorDir(investorID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, q.String()+fileExt), nil
}

// Write validates and stores snap. The file is replaced atomically; readers
// see either the previous snapshot or the new one, never a partial file.
func (s *FileStore) Write(ctx context.Context, snap *model.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := snap.Validate(); err != nil {
		return err
	}
	dst, err := s.path(snap.InvestorID, snap.Quarter)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return eris.Wrap(err, "snapshot: marshal")
	}

	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "snapshot: create dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+snap.Quarter.String()+"-*.tmp")
	if err != nil {
		return eris.Wrap(err, "snapshot: create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return eris.Wrap(err, "snapshot: write temp file")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return eris.Wrap(err, "snapshot: sync temp file")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "snapshot: close temp file")
	}

	if err := os.Rename(tmpName, dst); err != nil {
		return eris.Wrapf(err, "snapshot: rename to %s", dst)
	}
	return nil
}

// Load reads one snapshot. A missing file returns model.ErrNotFound.
func (s *FileStore) Load(ctx context.Context, investorID string, q model.QuarterKey) (*model.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.path(investorID, q)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrapf(model.ErrNotFound, "snapshot: %s %s", investorID, q)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "snapshot: read %s", p)
	}

	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, eris.Wrapf(err, "snapshot: decode %s", p)
	}
	return &snap, nil
}

// Exists reports whether a snapshot is stored for the investor and quarter.
func (s *FileStore) Exists(investorID string, q model.QuarterKey) bool {
	p, err := s.path(investorID, q)
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

// Quarters lists stored quarters for an investor, ascending. Files that are
// not named as a quarter are ignored.
func (s *FileStore) Quarters(ctx context.Context, investorID string) ([]model.QuarterKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := s.investorDir(investorID)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "snapshot: list %s", investorID)
	}

	var out []model.QuarterKey
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		q, err := model.ParseQuarterKey(strings.TrimSuffix(name, fileExt))
		if err != nil {
			continue
		}
		out = append(out, q)
	}
	model.SortQuarters(out)
	return out, nil
}

// Investors lists investor directories in the store, sorted.
func (s *FileStore) Investors(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "snapshot: list investors")
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}
