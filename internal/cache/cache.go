// Package cache keeps the logs of finished task attempts in a local sqlite
// database so reopening them does not hit the server again.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/terakael/flowrs/pkg/logging"
)

// Key identifies the log of one attempt on one server.
type Key struct {
	Server  string
	JobID   string
	RunID   string
	TaskID  string
	Attempt int
}

// LogCache stores log text by Key.
type LogCache struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the cache database at path.
func Open(ctx context.Context, path string) (*LogCache, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("creating cache dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open log cache: %w", err)
	}
	// One connection keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to log cache: %w", err)
	}

	c := &LogCache{db: db, now: time.Now}
	if err := c.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

func (c *LogCache) ensureSchema(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS task_logs (
			server TEXT NOT NULL,
			job_id TEXT NOT NULL,
			run_id TEXT NOT NULL,
			task_id TEXT NOT NULL,
			attempt INTEGER NOT NULL,
			content TEXT NOT NULL,
			stored_at INTEGER NOT NULL,
			PRIMARY KEY (server, job_id, run_id, task_id, attempt)
		)`)
	if err != nil {
		return fmt.Errorf("failed to initialize log cache schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (c *LogCache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Get returns the cached log for k.
func (c *LogCache) Get(ctx context.Context, k Key) (string, bool, error) {
	var content string
	err := c.db.QueryRowContext(ctx, `
		SELECT content FROM task_logs
		WHERE server = ? AND job_id = ? AND run_id = ? AND task_id = ? AND attempt = ?`,
		k.Server, k.JobID, k.RunID, k.TaskID, k.Attempt,
	).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading cached log: %w", err)
	}
	return content, true, nil
}

// Put stores content for k, replacing any earlier entry.
func (c *LogCache) Put(ctx context.Context, k Key, content string) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO task_logs (server, job_id, run_id, task_id, attempt, content, stored_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (server, job_id, run_id, task_id, attempt)
		DO UPDATE SET content = excluded.content, stored_at = excluded.stored_at`,
		k.Server, k.JobID, k.RunID, k.TaskID, k.Attempt, content, c.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("storing cached log: %w", err)
	}
	return nil
}

// Prune deletes entries older than maxAge and returns how many went.
func (c *LogCache) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := c.now().Add(-maxAge).Unix()
	res, err := c.db.ExecContext(ctx, `DELETE FROM task_logs WHERE stored_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning log cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning log cache: %w", err)
	}
	if n > 0 {
		logging.Debug("LogCache", "pruned %d cached logs older than %s", n, maxAge)
	}
	return n, nil
}
