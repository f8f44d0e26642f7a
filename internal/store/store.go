// Package store persists operational history (answer-key uploads and
// grading runs) in SQLite.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/kmehra/gradelens/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS context_builds (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_file TEXT NOT NULL,
		questions INTEGER NOT NULL,
		total_marks INTEGER NOT NULL,
		built_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS grading_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_file TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		students INTEGER NOT NULL DEFAULT 0,
		report_path TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		started_at DATETIME NOT NULL,
		finished_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordContextBuild stores a successful answer-key upload.
func (s *Store) RecordContextBuild(sourceFile string, questions, totalMarks int) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO context_builds (source_file, questions, total_marks, built_at) VALUES (?, ?, ?, ?)`,
		sourceFile, questions, totalMarks, time.Now(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// LatestContextBuild returns the most recent context build, or nil if no
// key has ever been uploaded.
func (s *Store) LatestContextBuild() (*model.ContextBuild, error) {
	var cb model.ContextBuild
	err := s.db.QueryRow(
		`SELECT id, source_file, questions, total_marks, built_at
		 FROM context_builds ORDER BY id DESC LIMIT 1`,
	).Scan(&cb.ID, &cb.SourceFile, &cb.Questions, &cb.TotalMarks, &cb.BuiltAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cb, nil
}

// StartRun records a new grading run in pending state.
func (s *Store) StartRun(sourceFile, reportPath string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO grading_runs (source_file, status, report_path, started_at) VALUES (?, 'pending', ?, ?)`,
		sourceFile, reportPath, time.Now(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// FinishRun marks a run as done with its final student count.
func (s *Store) FinishRun(id int64, students int) error {
	_, err := s.db.Exec(
		`UPDATE grading_runs SET status = 'done', students = ?, finished_at = ? WHERE id = ?`,
		students, time.Now(), id,
	)
	return err
}

// FailRun marks a run as failed with the error text.
func (s *Store) FailRun(id int64, errText string) error {
	_, err := s.db.Exec(
		`UPDATE grading_runs SET status = 'failed', error = ?, finished_at = ? WHERE id = ?`,
		errText, time.Now(), id,
	)
	return err
}

// GetRun returns a grading run by ID.
func (s *Store) GetRun(id int64) (model.GradingRun, error) {
	var r model.GradingRun
	err := s.db.QueryRow(
		`SELECT id, source_file, status, students, report_path, error, started_at, finished_at
		 FROM grading_runs WHERE id = ?`, id,
	).Scan(&r.ID, &r.SourceFile, &r.Status, &r.Students, &r.ReportPath, &r.Error, &r.StartedAt, &r.FinishedAt)
	return r, err
}

// ListRuns returns all grading runs, newest first.
func (s *Store) ListRuns() ([]model.GradingRun, error) {
	rows, err := s.db.Query(
		`SELECT id, source_file, status, students, report_path, error, started_at, finished_at
		 FROM grading_runs ORDER BY id DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var runs []model.GradingRun
	for rows.Next() {
		var r model.GradingRun
		if err := rows.Scan(&r.ID, &r.SourceFile, &r.Status, &r.Students, &r.ReportPath, &r.Error, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// SetMetadata upserts a key-value pair in the metadata table.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?`,
		key, value, value,
	)
	return err
}

// GetMetadata returns the value for a metadata key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}
