package research

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// RunRecord is one finished research run as stored in history.
type RunRecord struct {
	ID         int64  `json:"id"`
	Topic      string `json:"topic"`
	Report     string `json:"report"`
	Videos     int    `json:"videos"`
	Chunks     int    `json:"chunks"`
	Iterations int    `json:"iterations"`
	CreatedAt  string `json:"created_at"`
}

// History persists completed research runs in SQLite. Only finished
// reports are written; in-flight session state is never persisted.
type History struct {
	db *sql.DB
}

// OpenHistory opens (or creates) the history database at path. An
// empty path defaults to ~/.go_tube/research.db.
func OpenHistory(path string) (*History, error) {
	if path == "" {
		path = filepath.Join(os.Getenv("HOME"), ".go_tube", "research.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("history: mkdir %s: %w", filepath.Dir(path), err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS research_runs (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		topic      TEXT NOT NULL,
		report     TEXT NOT NULL,
		videos     INTEGER NOT NULL,
		chunks     INTEGER NOT NULL,
		iterations INTEGER NOT NULL,
		created_at TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: init schema: %w", err)
	}
	return &History{db: db}, nil
}

// Close closes the underlying database.
func (h *History) Close() error {
	return h.db.Close()
}

// SaveRun records a completed research run and returns its id.
func (h *History) SaveRun(ctx context.Context, res *Result) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	row, err := h.db.ExecContext(ctx,
		`INSERT INTO research_runs (topic, report, videos, chunks, iterations, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		res.Topic, res.Report, res.VideosIndexed, res.ChunksIndexed, res.Iterations, now,
	)
	if err != nil {
		return 0, fmt.Errorf("history: insert run: %w", err)
	}
	id, _ := row.LastInsertId()
	return id, nil
}

// ListRuns returns stored runs, newest first, optionally filtered by a
// topic substring.
func (h *History) ListRuns(ctx context.Context, limit int, topicFilter string) ([]RunRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var (
		rows *sql.Rows
		err  error
	)
	if topicFilter != "" {
		rows, err = h.db.QueryContext(ctx,
			`SELECT id, topic, report, videos, chunks, iterations, created_at
			 FROM research_runs WHERE topic LIKE ? ORDER BY id DESC LIMIT ?`,
			"%"+topicFilter+"%", limit,
		)
	} else {
		rows, err = h.db.QueryContext(ctx,
			`SELECT id, topic, report, videos, chunks, iterations, created_at
			 FROM research_runs ORDER BY id DESC LIMIT ?`,
			limit,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("history: list runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.ID, &r.Topic, &r.Report, &r.Videos, &r.Chunks, &r.Iterations, &r.CreatedAt); err != nil {
			continue
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns one stored run by id.
func (h *History) GetRun(ctx context.Context, id int64) (*RunRecord, error) {
	var r RunRecord
	err := h.db.QueryRowContext(ctx,
		`SELECT id, topic, report, videos, chunks, iterations, created_at
		 FROM research_runs WHERE id = ?`, id,
	).Scan(&r.ID, &r.Topic, &r.Report, &r.Videos, &r.Chunks, &r.Iterations, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("history: run %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("history: get run %d: %w", id, err)
	}
	return &r, nil
}
