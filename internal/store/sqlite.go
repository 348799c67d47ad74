// Package store records pipeline runs and per-record fetch outcomes in
// SQLite, giving `runs` and `serve` a durable history to inspect.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/priorart-cli/internal/model"
)

// RunStore persists runs using modernc.org/sqlite.
type RunStore struct {
	db *sql.DB
}

// Open opens (or creates) the run store at the given path and configures
// WAL mode.
func Open(dsn string) (*RunStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "store: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "store: exec %s", pragma)
		}
	}
	return &RunStore{db: db}, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	summary    TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS record_outcomes (
	id            TEXT PRIMARY KEY,
	run_id        TEXT NOT NULL REFERENCES runs(id),
	patent_number TEXT NOT NULL,
	status        TEXT NOT NULL,
	backend       TEXT,
	attempts      INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_record_outcomes_run_id ON record_outcomes(run_id);
CREATE INDEX IF NOT EXISTS idx_record_outcomes_patent ON record_outcomes(patent_number);
`

func (s *RunStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "store: migrate")
}

func (s *RunStore) Close() error {
	return s.db.Close()
}

// CreateRun inserts a new running run of the given kind.
func (s *RunStore) CreateRun(ctx context.Context, kind model.RunKind) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, kind, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, string(kind), string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: insert run")
	}

	return &model.Run{
		ID:        id,
		Kind:      kind,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// CompleteRun finalizes a run with its status and summary.
func (s *RunStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary *model.RunSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "store: marshal summary")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, summary = ?, updated_at = ? WHERE id = ?`,
		string(status), string(summaryJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "store: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

// RecordOutcomes stores the per-record fetch results for a run.
func (s *RunStore) RecordOutcomes(ctx context.Context, runID string, outcomes []model.RecordOutcome) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "store: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, o := range outcomes {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO record_outcomes (id, run_id, patent_number, status, backend, attempts) VALUES (?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), runID, o.PatentNumber, string(o.Status), o.Backend, o.Attempts,
		)
		if err != nil {
			return eris.Wrapf(err, "store: insert outcome %s", o.PatentNumber)
		}
	}
	return eris.Wrap(tx.Commit(), "store: commit outcomes")
}

// RunFilter narrows ListRuns.
type RunFilter struct {
	Kind   model.RunKind
	Status model.RunStatus
	Limit  int
}

// ListRuns returns runs newest first.
func (s *RunStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, kind, status, summary, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(filter.Kind))
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "store: list runs iterate")
}

// GetRun returns one run by id.
func (s *RunStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, kind, status, summary, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

// GetOutcomes returns the per-record outcomes for a run.
func (s *RunStore) GetOutcomes(ctx context.Context, runID string) ([]model.RecordOutcome, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, patent_number, status, backend, attempts FROM record_outcomes WHERE run_id = ? ORDER BY patent_number`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "store: outcomes for %s", runID)
	}
	defer rows.Close()

	var out []model.RecordOutcome
	for rows.Next() {
		var o model.RecordOutcome
		var backend sql.NullString
		if err := rows.Scan(&o.RunID, &o.PatentNumber, &o.Status, &backend, &o.Attempts); err != nil {
			return nil, eris.Wrap(err, "store: scan outcome")
		}
		o.Backend = backend.String
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "store: outcomes iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var summaryJSON sql.NullString

	err := row.Scan(&r.ID, &r.Kind, &r.Status, &summaryJSON, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: scan run")
	}

	if summaryJSON.Valid && summaryJSON.String != "" && summaryJSON.String != "null" {
		r.Summary = &model.RunSummary{}
		if err := json.Unmarshal([]byte(summaryJSON.String), r.Summary); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal summary")
		}
	}
	return &r, nil
}
