package transcript

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/m-mizutani/goerr/v2"
	_ "modernc.org/sqlite"

	"github.com/boristopalov/sciworld/pkg/core"
)

// fixed width so timestamps sort as text
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore is a Repository backed by a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

var _ Repository = (*SQLiteStore)(nil)

func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, goerr.New("empty db path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, goerr.Wrap(err, "failed to create db dir", goerr.Value("path", path))
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite", goerr.Value("path", path))
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return goerr.Wrap(err, "failed to set pragma", goerr.Value("pragma", p))
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS episodes (
			id TEXT PRIMARY KEY,
			task TEXT NOT NULL,
			variation INTEGER NOT NULL,
			style TEXT NOT NULL,
			steps INTEGER NOT NULL,
			complete INTEGER NOT NULL,
			score REAL NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			episode_id TEXT NOT NULL REFERENCES episodes(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			PRIMARY KEY (episode_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_episodes_task ON episodes(task, variation);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return goerr.Wrap(err, "failed to init schema")
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Save(ctx context.Context, rec *Record) error {
	if rec == nil || rec.ID == "" {
		return goerr.New("record id is required")
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `INSERT INTO episodes (id, task, variation, style, steps, complete, score, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			task = excluded.task,
			variation = excluded.variation,
			style = excluded.style,
			steps = excluded.steps,
			complete = excluded.complete,
			score = excluded.score,
			updated_at = excluded.updated_at`,
		rec.ID, rec.Task, rec.Variation, rec.Style, rec.Steps, boolInt(rec.Complete), rec.Score,
		rec.CreatedAt.Format(timeLayout), rec.UpdatedAt.Format(timeLayout))
	if err != nil {
		return goerr.Wrap(err, "failed to upsert episode", goerr.Value("id", rec.ID))
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE episode_id = ?`, rec.ID); err != nil {
		return goerr.Wrap(err, "failed to clear messages", goerr.Value("id", rec.ID))
	}
	for i, m := range rec.Messages {
		if _, err := tx.ExecContext(ctx, `INSERT INTO messages (episode_id, seq, role, content) VALUES (?, ?, ?, ?)`,
			rec.ID, i, string(m.Role), m.Content); err != nil {
			return goerr.Wrap(err, "failed to insert message", goerr.Value("id", rec.ID), goerr.Value("seq", i))
		}
	}

	if err := tx.Commit(); err != nil {
		return goerr.Wrap(err, "failed to commit", goerr.Value("id", rec.ID))
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, task, variation, style, steps, complete, score, created_at, updated_at
		FROM episodes WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load episode", goerr.Value("id", id))
	}

	rows, err := s.db.QueryContext(ctx, `SELECT role, content FROM messages WHERE episode_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load messages", goerr.Value("id", id))
	}
	defer rows.Close()

	rec.Messages = make([]core.Message, 0)
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, goerr.Wrap(err, "failed to scan message", goerr.Value("id", id))
		}
		rec.Messages = append(rec.Messages, core.NewMessage(core.Role(role), content))
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate messages", goerr.Value("id", id))
	}
	return rec, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, task, variation, style, steps, complete, score, created_at, updated_at
		FROM episodes ORDER BY created_at, id`)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list episodes")
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan episode")
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		rec                  Record
		complete             int
		createdAt, updatedAt string
	)
	if err := row.Scan(&rec.ID, &rec.Task, &rec.Variation, &rec.Style, &rec.Steps, &complete, &rec.Score, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	rec.Complete = complete != 0
	rec.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	rec.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return &rec, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
