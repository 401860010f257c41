// Package history keeps a SQLite log of dispatched requests and the status
// they came back with. Entries are never replayed as responses.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/abdul-hamid-achik/fetchforge/packages/forge"
)

const schema = `
CREATE TABLE IF NOT EXISTS requests (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	sent_at     INTEGER NOT NULL,
	file        TEXT    NOT NULL DEFAULT '',
	name        TEXT    NOT NULL,
	method      TEXT    NOT NULL,
	url         TEXT    NOT NULL,
	headers     TEXT    NOT NULL DEFAULT '{}',
	body        BLOB,
	status      INTEGER NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	error       TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS requests_sent_at ON requests (sent_at);
`

// DefaultPath is where the CLI keeps its history unless configured otherwise.
func DefaultPath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "fetchforge", "history.db"), nil
}

// Entry is one logged dispatch.
type Entry struct {
	ID       int64
	SentAt   time.Time
	File     string
	Name     string
	Method   string
	URL      string
	Headers  http.Header
	Body     []byte
	Status   int
	Duration time.Duration
	Error    string
}

// NewEntry describes req and, when the request was sent, its outcome. A
// multipart body is not stored.
func NewEntry(file, name string, req *forge.Request, resp *forge.Response, sendErr error) Entry {
	e := Entry{
		SentAt:  time.Now(),
		File:    file,
		Name:    name,
		Method:  req.Method,
		URL:     req.URL.String(),
		Headers: req.Header,
		Body:    req.Body,
	}
	if resp != nil {
		e.Status = resp.StatusCode
		e.Duration = resp.Duration
	}
	if sendErr != nil {
		e.Error = sendErr.Error()
	}
	return e
}

// Store is a request log backed by SQLite.
type Store struct {
	db *sql.DB
}

// Open opens or creates the log at dsn, a file path optionally prefixed with
// sqlite:// or sqlite:. Missing parent directories are created.
func Open(ctx context.Context, dsn string) (*Store, error) {
	path := strings.TrimSpace(dsn)
	path = strings.TrimPrefix(path, "sqlite://")
	path = strings.TrimPrefix(path, "sqlite:")
	if path == "" {
		return nil, errors.New("history: empty database path")
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("history: creating directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("history: failed to open database: %w", err)
	}
	// An in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record appends e to the log and returns its id.
func (s *Store) Record(ctx context.Context, e Entry) (int64, error) {
	headers, err := json.Marshal(e.Headers)
	if err != nil {
		return 0, fmt.Errorf("history: encoding headers: %w", err)
	}
	if e.SentAt.IsZero() {
		e.SentAt = time.Now()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO requests (sent_at, file, name, method, url, headers, body, status, duration_ms, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SentAt.UnixMilli(), e.File, e.Name, e.Method, e.URL, string(headers), e.Body,
		e.Status, e.Duration.Milliseconds(), e.Error,
	)
	if err != nil {
		return 0, fmt.Errorf("history: insert failed: %w", err)
	}
	return res.LastInsertId()
}

// List returns up to limit entries, newest first. A limit below one returns
// every entry.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT id, sent_at, file, name, method, url, headers, body, status, duration_ms, error
		FROM requests ORDER BY sent_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: query failed: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			sentAt     int64
			headers    string
			durationMs int64
		)
		if err := rows.Scan(&e.ID, &sentAt, &e.File, &e.Name, &e.Method, &e.URL, &headers, &e.Body,
			&e.Status, &durationMs, &e.Error); err != nil {
			return nil, fmt.Errorf("history: failed to scan row: %w", err)
		}
		e.SentAt = time.UnixMilli(sentAt)
		e.Duration = time.Duration(durationMs) * time.Millisecond
		if err := json.Unmarshal([]byte(headers), &e.Headers); err != nil {
			return nil, fmt.Errorf("history: decoding headers of entry %d: %w", e.ID, err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: row iteration error: %w", err)
	}
	return entries, nil
}

// Clear deletes every entry and returns how many there were.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM requests`)
	if err != nil {
		return 0, fmt.Errorf("history: delete failed: %w", err)
	}
	return res.RowsAffected()
}
