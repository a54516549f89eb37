package report

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	script      TEXT NOT NULL,
	driver      TEXT NOT NULL,
	started     TEXT NOT NULL,
	duration_ns INTEGER NOT NULL,
	passed      INTEGER NOT NULL,
	error       TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS steps (
	run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq        INTEGER NOT NULL,
	line       INTEGER NOT NULL,
	command    TEXT NOT NULL,
	passed     INTEGER NOT NULL,
	status     TEXT NOT NULL,
	error      TEXT NOT NULL DEFAULT '',
	received   TEXT NOT NULL DEFAULT '',
	elapsed_ns INTEGER NOT NULL,
	PRIMARY KEY (run_id, seq)
);
CREATE INDEX IF NOT EXISTS runs_started ON runs(started);
`

// timeLayout sorts lexically in UTC.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore keeps run history in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path and applies the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Record stores run and its steps in one transaction.
func (s *SQLiteStore) Record(ctx context.Context, run *Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, script, driver, started, duration_ns, passed, error) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Script, run.Driver, run.Started.UTC().Format(timeLayout), int64(run.Duration), boolInt(run.Passed), run.Error)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, st := range run.Steps {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO steps (run_id, seq, line, command, passed, status, error, received, elapsed_ns) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, i, st.Line, st.Command, boolInt(st.Passed), st.Status, st.Error, st.Received, int64(st.Elapsed))
		if err != nil {
			return fmt.Errorf("insert step %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// Recent returns up to limit runs, newest first, without their steps.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, script, driver, started, duration_ns, passed, error FROM runs ORDER BY started DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r       Run
			started string
			dur     int64
			passed  int
		)
		if err := rows.Scan(&r.ID, &r.Script, &r.Driver, &started, &dur, &passed, &r.Error); err != nil {
			return nil, err
		}
		r.Started, err = time.Parse(timeLayout, started)
		if err != nil {
			return nil, fmt.Errorf("run %s: bad timestamp %q: %w", r.ID, started, err)
		}
		r.Duration = time.Duration(dur)
		r.Passed = passed != 0
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Steps returns the steps of one run in execution order.
func (s *SQLiteStore) Steps(ctx context.Context, runID string) ([]Step, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT line, command, passed, status, error, received, elapsed_ns FROM steps WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []Step
	for rows.Next() {
		var (
			st      Step
			passed  int
			elapsed int64
		)
		if err := rows.Scan(&st.Line, &st.Command, &passed, &st.Status, &st.Error, &st.Received, &elapsed); err != nil {
			return nil, err
		}
		st.Passed = passed != 0
		st.Elapsed = time.Duration(elapsed)
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
