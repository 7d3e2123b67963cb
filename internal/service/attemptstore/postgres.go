package attemptstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createAttemptsTableSQL = `
CREATE TABLE IF NOT EXISTS mapping_attempts (
	domain TEXT PRIMARY KEY,
	attempt_id TEXT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	ended_at TIMESTAMPTZ NOT NULL,
	status TEXT NOT NULL,
	node_count INTEGER NOT NULL,
	edge_count INTEGER NOT NULL,
	error_text TEXT NOT NULL DEFAULT '',
	blob_sha256 TEXT NOT NULL DEFAULT ''
)`

// Postgres persists the attempt ledger for multi-instance deployments
// where several cortexd processes need to see a shared attempt history.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to dsn and ensures the mapping_attempts table exists.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, fmt.Errorf("attemptstore: postgres dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres attempt store: %w", err)
	}
	if _, err := pool.Exec(ctx, createAttemptsTableSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create mapping_attempts table: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Record upserts the latest attempt row for a.Domain.
func (p *Postgres) Record(ctx context.Context, a Attempt) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO mapping_attempts (domain, attempt_id, started_at, ended_at, status, node_count, edge_count, error_text, blob_sha256)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (domain) DO UPDATE SET
			attempt_id = excluded.attempt_id,
			started_at = excluded.started_at,
			ended_at = excluded.ended_at,
			status = excluded.status,
			node_count = excluded.node_count,
			edge_count = excluded.edge_count,
			error_text = excluded.error_text,
			blob_sha256 = excluded.blob_sha256
	`,
		a.Domain, a.AttemptID, a.StartedAt, a.EndedAt,
		string(a.Status), a.NodeCount, a.EdgeCount, a.ErrorText, a.BlobSHA256,
	)
	if err != nil {
		return fmt.Errorf("record mapping attempt: %w", err)
	}
	return nil
}

// LastAttempt reads the stored row for domain, if any.
func (p *Postgres) LastAttempt(ctx context.Context, domain string) (Attempt, bool, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT attempt_id, started_at, ended_at, status, node_count, edge_count, error_text, blob_sha256
		FROM mapping_attempts WHERE domain = $1
	`, domain)

	a := Attempt{Domain: domain}
	var status string
	if err := row.Scan(&a.AttemptID, &a.StartedAt, &a.EndedAt, &status, &a.NodeCount, &a.EdgeCount, &a.ErrorText, &a.BlobSHA256); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Attempt{}, false, nil
		}
		return Attempt{}, false, fmt.Errorf("load mapping attempt: %w", err)
	}
	a.Status = Status(status)
	return a, true, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
