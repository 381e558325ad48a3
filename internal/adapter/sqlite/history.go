// Package sqlite persists deployment history in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"siteup"
	"siteup/pkg/sdk/defaults"

	_ "modernc.org/sqlite"
)

type HistoryStore struct {
	db *sql.DB
}

func Open(path string) (*HistoryStore, error) {
	if err := defaults.EnsureDataRoot(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set history db journal mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set history db busy timeout: %w", err)
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS deployments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	target TEXT NOT NULL,
	success INTEGER NOT NULL,
	endpoint TEXT NOT NULL DEFAULT '',
	failure TEXT NOT NULL DEFAULT '',
	phase TEXT NOT NULL DEFAULT '',
	started_at TEXT NOT NULL,
	finished_at TEXT NOT NULL
)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize deployments schema: %w", err)
	}

	return &HistoryStore{db: db}, nil
}

func (s *HistoryStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *HistoryStore) Record(ctx context.Context, rec siteup.HistoryRecord) error {
	if strings.TrimSpace(rec.Target) == "" {
		return fmt.Errorf("history record target is required")
	}

	successInt := 0
	if rec.Success {
		successInt = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deployments (target, success, endpoint, failure, phase, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Target,
		successInt,
		rec.Endpoint,
		rec.Failure,
		rec.Phase,
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
		rec.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record deployment: %w", err)
	}
	return nil
}

// List returns the most recent deployments, newest first. An empty target
// lists all targets.
func (s *HistoryStore) List(ctx context.Context, target string, limit int) ([]siteup.HistoryRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, target, success, endpoint, failure, phase, started_at, finished_at
FROM deployments`
	args := []any{}
	if target != "" {
		query += ` WHERE target = ?`
		args = append(args, target)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}
	defer rows.Close()

	out := make([]siteup.HistoryRecord, 0)
	for rows.Next() {
		var rec siteup.HistoryRecord
		var successInt int
		var startedAt, finishedAt string
		if err := rows.Scan(&rec.ID, &rec.Target, &successInt, &rec.Endpoint, &rec.Failure, &rec.Phase, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan deployment row: %w", err)
		}
		rec.Success = successInt != 0
		if rec.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, fmt.Errorf("parse started_at %q: %w", startedAt, err)
		}
		if rec.FinishedAt, err = time.Parse(time.RFC3339Nano, finishedAt); err != nil {
			return nil, fmt.Errorf("parse finished_at %q: %w", finishedAt, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deployment rows: %w", err)
	}
	return out, nil
}
