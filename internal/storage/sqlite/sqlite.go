package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/FranksOps/jobsweep/internal/storage"
	_ "modernc.org/sqlite"
)

// ensure sqliteBackend implements storage.Backend and storage.Querier
var (
	_ storage.Backend = (*sqliteBackend)(nil)
	_ storage.Querier = (*sqliteBackend)(nil)
)

type sqliteBackend struct {
	db *sql.DB
}

// Backend is the concrete type returned by New.
type Backend interface {
	storage.Backend
	storage.Querier
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	object_key TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	finding_count INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS findings (
	run_id TEXT NOT NULL REFERENCES runs(id),
	position INTEGER NOT NULL,
	source_query TEXT NOT NULL,
	found_keyword TEXT NOT NULL,
	job_title TEXT NOT NULL,
	link TEXT NOT NULL,
	snippet TEXT NOT NULL,
	retrieved_at DATETIME NOT NULL,
	PRIMARY KEY (run_id, position)
);
CREATE INDEX IF NOT EXISTS findings_link_idx ON findings(link);
`

// New creates a new SQLite-backed archive of findings.
func New(dsn string) (Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Save(ctx context.Context, batch *storage.Batch) (string, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, object_key, created_at, finding_count) VALUES (?, ?, ?, ?)`,
		batch.RunID, batch.Key, batch.CreatedAt.UTC(), len(batch.Findings),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO findings (
		run_id, position, source_query, found_keyword, job_title, link, snippet, retrieved_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, f := range batch.Findings {
		_, err := stmt.ExecContext(ctx,
			batch.RunID, i, f.SourceQuery, f.FoundKeyword, f.JobTitle, f.Link, f.Snippet, f.RetrievedAt.UTC(),
		)
		if err != nil {
			return "", fmt.Errorf("insert finding %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	return "sqlite:runs/" + batch.RunID, nil
}

func (b *sqliteBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Finding, error) {
	query := `SELECT source_query, found_keyword, job_title, link, snippet, retrieved_at FROM findings WHERE 1=1`
	args := []any{}

	if filter.Link != "" {
		query += ` AND link = ?`
		args = append(args, filter.Link)
	}
	if filter.Keyword != "" {
		query += ` AND found_keyword = ?`
		args = append(args, filter.Keyword)
	}
	if filter.Query != "" {
		query += ` AND source_query = ?`
		args = append(args, filter.Query)
	}
	if filter.Since != nil {
		query += ` AND retrieved_at >= ?`
		args = append(args, filter.Since.UTC())
	}

	query += ` ORDER BY retrieved_at DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	} else if filter.Offset > 0 {
		// SQLite requires a LIMIT before OFFSET
		query += ` LIMIT -1`
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query findings: %w", err)
	}
	defer rows.Close()

	var results []*storage.Finding
	for rows.Next() {
		var f storage.Finding
		var retrievedAt time.Time
		if err := rows.Scan(&f.SourceQuery, &f.FoundKeyword, &f.JobTitle, &f.Link, &f.Snippet, &retrievedAt); err != nil {
			return nil, fmt.Errorf("scan finding: %w", err)
		}
		f.RetrievedAt = retrievedAt.UTC()
		results = append(results, &f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate findings: %w", err)
	}

	return results, nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
