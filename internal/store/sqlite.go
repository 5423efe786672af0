package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/holdings-cli/internal/model"
)

// SQLiteStore implements RunStore using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	status       TEXT NOT NULL DEFAULT 'running',
	stats        TEXT,
	warnings     TEXT,
	error        TEXT,
	started_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at DATETIME
);

CREATE TABLE IF NOT EXISTS run_skips (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	investor_id TEXT NOT NULL,
	quarter     TEXT NOT NULL DEFAULT '',
	stage       TEXT NOT NULL,
	reason      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_run_skips_run_id ON run_skips(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) StartRun(ctx context.Context) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, started_at) VALUES (?, ?, ?)`,
		id, string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return &model.Run{ID: id, Status: model.RunStatusRunning, StartedAt: now}, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, result RunResult) error {
	statsJSON, err := json.Marshal(result.Stats)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal stats")
	}
	warningsJSON, err := json.Marshal(result.Warnings)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal warnings")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin finish run")
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`UPDATE runs SET status = ?, stats = ?, warnings = ?, completed_at = ? WHERE id = ?`,
		string(model.RunStatusComplete), string(statsJSON), string(warningsJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	if err := checkRowsAffected(res, "run", runID); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_skips (run_id, investor_id, quarter, stage, reason) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare skip insert")
	}
	defer stmt.Close()
	for _, sk := range result.Skips {
		if _, err := stmt.ExecContext(ctx, runID, sk.InvestorID, sk.Quarter, string(sk.Stage), sk.Reason); err != nil {
			return eris.Wrapf(err, "sqlite: insert skip for run %s", runID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit finish run")
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, runErr error) error {
	msg := "unknown error"
	if runErr != nil {
		msg = runErr.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, completed_at = ? WHERE id = ?`,
		string(model.RunStatusFailed), msg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, stats, warnings, error, started_at, completed_at FROM runs WHERE id = ?`,
		runID,
	)
	r, err := scanRun(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	if r.Skips, err = s.ListSkips(ctx, runID); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, status, stats, warnings, error, started_at, completed_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC, rowid DESC LIMIT ?`
	args = append(args, listLimit(filter))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: list runs")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) ListSkips(ctx context.Context, runID string) ([]model.SkipEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT investor_id, quarter, stage, reason FROM run_skips WHERE run_id = ? ORDER BY rowid`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list skips %s", runID)
	}
	defer rows.Close()

	var out []model.SkipEntry
	for rows.Next() {
		var sk model.SkipEntry
		if err := rows.Scan(&sk.InvestorID, &sk.Quarter, &sk.Stage, &sk.Reason); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan skip")
		}
		out = append(out, sk)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list skips iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(model.ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var statsJSON, warningsJSON, errMsg sql.NullString
	var completed sql.NullTime

	err := row.Scan(&r.ID, &r.Status, &statsJSON, &warningsJSON, &errMsg, &r.StartedAt, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan run")
	}

	if statsJSON.Valid {
		if err := json.Unmarshal([]byte(statsJSON.String), &r.Stats); err != nil {
			return nil, eris.Wrap(err, "unmarshal stats")
		}
	}
	if warningsJSON.Valid {
		if err := json.Unmarshal([]byte(warningsJSON.String), &r.Warnings); err != nil {
			return nil, eris.Wrap(err, "unmarshal warnings")
		}
	}
	r.Error = errMsg.String
	if completed.Valid {
		t := completed.Time
		r.CompletedAt = &t
	}
	return &r, nil
}
