package postgres

import (
	"context"
	"fmt"

	"github.com/FranksOps/jobsweep/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ensure postgresBackend implements storage.Backend and storage.Querier
var (
	_ storage.Backend = (*postgresBackend)(nil)
	_ storage.Querier = (*postgresBackend)(nil)
)

type postgresBackend struct {
	pool *pgxpool.Pool
}

// Backend is the concrete type returned by New.
type Backend interface {
	storage.Backend
	storage.Querier
}

const schema = `
CREATE TABLE IF NOT EXISTS sweep_runs (
	id TEXT PRIMARY KEY,
	object_key TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	finding_count INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS sweep_findings (
	run_id TEXT NOT NULL REFERENCES sweep_runs(id),
	position INTEGER NOT NULL,
	source_query TEXT NOT NULL,
	found_keyword TEXT NOT NULL,
	job_title TEXT NOT NULL,
	link TEXT NOT NULL,
	snippet TEXT NOT NULL,
	retrieved_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (run_id, position)
);
CREATE INDEX IF NOT EXISTS sweep_findings_link_idx ON sweep_findings(link);
`

// New creates a new Postgres-backed archive of findings.
func New(ctx context.Context, dsn string) (Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply postgres schema: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Save(ctx context.Context, batch *storage.Batch) (string, error) {
	err := pgx.BeginFunc(ctx, b.pool, func(tx pgx.Tx) error {
		q := &pgx.Batch{}
		q.Queue(
			`INSERT INTO sweep_runs (id, object_key, created_at, finding_count) VALUES ($1, $2, $3, $4)`,
			batch.RunID, batch.Key, batch.CreatedAt, len(batch.Findings),
		)
		for i, f := range batch.Findings {
			q.Queue(`
			INSERT INTO sweep_findings (
				run_id, position, source_query, found_keyword, job_title, link, snippet, retrieved_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				batch.RunID, i, f.SourceQuery, f.FoundKeyword, f.JobTitle, f.Link, f.Snippet, f.RetrievedAt,
			)
		}
		return tx.SendBatch(ctx, q).Close()
	})
	if err != nil {
		return "", fmt.Errorf("save run %s: %w", batch.RunID, err)
	}

	return "postgres:sweep_runs/" + batch.RunID, nil
}

func (b *postgresBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Finding, error) {
	query := `SELECT source_query, found_keyword, job_title, link, snippet, retrieved_at FROM sweep_findings WHERE 1=1`
	args := []any{}
	paramCount := 1

	if filter.Link != "" {
		query += fmt.Sprintf(` AND link = $%d`, paramCount)
		args = append(args, filter.Link)
		paramCount++
	}
	if filter.Keyword != "" {
		query += fmt.Sprintf(` AND found_keyword = $%d`, paramCount)
		args = append(args, filter.Keyword)
		paramCount++
	}
	if filter.Query != "" {
		query += fmt.Sprintf(` AND source_query = $%d`, paramCount)
		args = append(args, filter.Query)
		paramCount++
	}
	if filter.Since != nil {
		query += fmt.Sprintf(` AND retrieved_at >= $%d`, paramCount)
		args = append(args, *filter.Since)
		paramCount++
	}

	query += ` ORDER BY retrieved_at DESC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, paramCount)
		args = append(args, filter.Limit)
		paramCount++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, paramCount)
		args = append(args, filter.Offset)
	}

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query findings: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*storage.Finding, error) {
		var f storage.Finding
		err := row.Scan(&f.SourceQuery, &f.FoundKeyword, &f.JobTitle, &f.Link, &f.Snippet, &f.RetrievedAt)
		f.RetrievedAt = f.RetrievedAt.UTC()
		return &f, err
	})
	if err != nil {
		return nil, fmt.Errorf("collect findings: %w", err)
	}

	return results, nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
