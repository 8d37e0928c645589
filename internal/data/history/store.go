// Package history persists built matrices in SQLite so earlier runs can be
// listed and reloaded.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"depmatrix/internal/core/errors"
	"depmatrix/internal/core/ports"
	"depmatrix/internal/engine/matrix"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	driverName     = "sqlite"
	maxAttempts    = 5
	defaultProject = "default"
)

// Store implements ports.RunStore.
type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
	now  func() time.Time
}

var _ ports.RunStore = (*Store)(nil)

func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, errors.New(errors.CodeInvalidInput, "history path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, errors.Newf(errors.CodeInvalidInput, "history path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory %q: %w", dir, err)
		}
	}

	// busy_timeout + WAL reduce lock conflicts while watch mode saves runs.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite history %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite history %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{path: cleanPath, db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func projectKey(project string) string {
	if p := strings.TrimSpace(project); p != "" {
		return p
	}
	return defaultProject
}

// timestampLayout keeps every fraction digit so ts_utc sorts as text in
// time order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SaveRun stores every matrix of one build under a new run id. matrices
// must be ordered by depth with the deepest last.
func (s *Store) SaveRun(ctx context.Context, project string, matrices []*matrix.Matrix) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	summary := ports.RunSummary{
		ID:        id,
		Project:   projectKey(project),
		CreatedAt: s.now().UTC(),
		MaxDepth:  len(matrices),
	}
	if n := len(matrices); n > 0 {
		summary.Modules = matrices[n-1].Size()
		summary.Edges = len(matrices[n-1].Dependencies)
	}

	payloads := make([][]byte, len(matrices))
	for i, m := range matrices {
		data, err := json.Marshal(m)
		if err != nil {
			return "", errors.Wrap(err, errors.CodeInternal, fmt.Sprintf("encode depth %d matrix", m.Depth))
		}
		payloads[i] = data
	}

	err := s.withRetry("save run", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, `
INSERT INTO runs (id, project_key, ts_utc, max_depth, module_count, edge_count)
VALUES (?, ?, ?, ?, ?, ?)`,
			summary.ID,
			summary.Project,
			summary.CreatedAt.Format(timestampLayout),
			summary.MaxDepth,
			summary.Modules,
			summary.Edges,
		); err != nil {
			return err
		}
		for i, m := range matrices {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO matrices (run_id, depth, size, total, payload) VALUES (?, ?, ?, ?, ?)`,
				id, m.Depth, m.Size(), m.Total(), string(payloads[i]),
			); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// ListRuns returns the newest runs of project first. A non-positive limit
// returns every run.
func (s *Store) ListRuns(ctx context.Context, project string, limit int) ([]ports.RunSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
SELECT id, project_key, ts_utc, max_depth, module_count, edge_count
FROM runs
WHERE project_key = ?
ORDER BY ts_utc DESC, id ASC`
	args := []any{projectKey(project)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows *sql.Rows
	err := s.withRetry("list runs", func() error {
		var qErr error
		rows, qErr = s.db.QueryContext(ctx, query, args...)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]ports.RunSummary, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (ports.RunSummary, error) {
	var (
		run   ports.RunSummary
		tsRaw string
	)
	if err := row.Scan(&run.ID, &run.Project, &tsRaw, &run.MaxDepth, &run.Modules, &run.Edges); err != nil {
		return run, err
	}
	ts, err := time.Parse(time.RFC3339Nano, tsRaw)
	if err != nil {
		return run, fmt.Errorf("parse run timestamp %q: %w", tsRaw, err)
	}
	run.CreatedAt = ts.UTC()
	return run, nil
}

// LoadRun returns a run and its matrices ordered by depth.
func (s *Store) LoadRun(ctx context.Context, runID string) (ports.RunSummary, []*matrix.Matrix, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, err := scanRun(s.db.QueryRowContext(ctx, `
SELECT id, project_key, ts_utc, max_depth, module_count, edge_count FROM runs WHERE id = ?`, runID))
	if stderrors.Is(err, sql.ErrNoRows) {
		return run, nil, errors.Newf(errors.CodeNotFound, "run %q not found", runID)
	}
	if err != nil {
		return run, nil, fmt.Errorf("load run %q: %w", runID, err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM matrices WHERE run_id = ? ORDER BY depth ASC`, runID)
	if err != nil {
		return run, nil, fmt.Errorf("load matrices of run %q: %w", runID, err)
	}
	defer rows.Close()

	matrices := make([]*matrix.Matrix, 0, run.MaxDepth)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return run, nil, fmt.Errorf("scan matrix row: %w", err)
		}
		m, err := matrix.Decode([]byte(payload))
		if err != nil {
			return run, nil, errors.AddContext(err, errors.CtxOperation, "load run "+runID)
		}
		matrices = append(matrices, m)
	}
	if err := rows.Err(); err != nil {
		return run, nil, fmt.Errorf("iterate matrix rows: %w", err)
	}
	return run, matrices, nil
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

// IsCorruptError reports whether err looks like a damaged database file.
func IsCorruptError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "malformed") || strings.Contains(msg, "not a database") || stderrors.Is(err, os.ErrInvalid)
}
