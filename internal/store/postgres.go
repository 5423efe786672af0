package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/holdings-cli/internal/db"
	"github.com/sells-group/holdings-cli/internal/model"
)

// PostgresStore implements RunStore using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 4
	pgxCfg.MinConns = 1
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	status       TEXT NOT NULL DEFAULT 'running',
	stats        JSONB,
	warnings     JSONB,
	error        TEXT,
	started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS run_skips (
	id          BIGSERIAL PRIMARY KEY,
	run_id      TEXT NOT NULL REFERENCES runs(id),
	investor_id TEXT NOT NULL,
	quarter     TEXT NOT NULL DEFAULT '',
	stage       TEXT NOT NULL,
	reason      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_run_skips_run_id ON run_skips(run_id);
`

// runColumns never yields NULL so rows scan into plain values.
const runColumns = `id, status, COALESCE(stats, 'null'), COALESCE(warnings, 'null'), COALESCE(error, ''),
	started_at, completed_at IS NOT NULL, COALESCE(completed_at, started_at)`

var skipColumns = []string{"run_id", "investor_id", "quarter", "stage", "reason"}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) StartRun(ctx context.Context) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, status, started_at) VALUES ($1, $2, $3)`,
		id, string(model.RunStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return &model.Run{ID: id, Status: model.RunStatusRunning, StartedAt: now}, nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, runID string, result RunResult) error {
	statsJSON, err := json.Marshal(result.Stats)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal stats")
	}
	warningsJSON, err := json.Marshal(result.Warnings)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal warnings")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin finish run")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx,
		`UPDATE runs SET status = $1, stats = $2, warnings = $3, completed_at = $4 WHERE id = $5`,
		string(model.RunStatusComplete), statsJSON, warningsJSON, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(model.ErrNotFound, "run %s", runID)
	}

	_, err = db.CopyFrom(ctx, tx, "run_skips", skipColumns, result.Skips, func(sk model.SkipEntry) []any {
		return []any{runID, sk.InvestorID, sk.Quarter, string(sk.Stage), sk.Reason}
	})
	if err != nil {
		return eris.Wrapf(err, "postgres: insert skips for run %s", runID)
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit finish run")
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, runErr error) error {
	msg := "unknown error"
	if runErr != nil {
		msg = runErr.Error()
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, error = $2, completed_at = $3 WHERE id = $4`,
		string(model.RunStatusFailed), msg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(model.ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT " + runColumns + " FROM runs WHERE id = $1",
		runID,
	)
	r, err := scanPostgresRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(model.ErrNotFound, "postgres: get run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	if r.Skips, err = s.ListSkips(ctx, runID); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := "SELECT " + runColumns + " FROM runs WHERE true"
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY started_at DESC LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPostgresRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) ListSkips(ctx context.Context, runID string) ([]model.SkipEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT investor_id, quarter, stage, reason FROM run_skips WHERE run_id = $1 ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list skips %s", runID)
	}
	defer rows.Close()

	var out []model.SkipEntry
	for rows.Next() {
		var sk model.SkipEntry
		var stage string
		if err := rows.Scan(&sk.InvestorID, &sk.Quarter, &stage, &sk.Reason); err != nil {
			return nil, eris.Wrap(err, "postgres: scan skip")
		}
		sk.Stage = model.Stage(stage)
		out = append(out, sk)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list skips iterate")
}

func scanPostgresRun(row pgx.Row) (*model.Run, error) {
	var r model.Run
	var status string
	var statsJSON, warningsJSON []byte
	var completed bool
	var completedAt time.Time

	if err := row.Scan(&r.ID, &status, &statsJSON, &warningsJSON, &r.Error, &r.StartedAt, &completed, &completedAt); err != nil {
		return nil, err
	}
	r.Status = model.RunStatus(status)
	if err := json.Unmarshal(statsJSON, &r.Stats); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal stats")
	}
	if err := json.Unmarshal(warningsJSON, &r.Warnings); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal warnings")
	}
	if completed {
		r.CompletedAt = &completedAt
	}
	return &r, nil
}
