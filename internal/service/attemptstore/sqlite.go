package attemptstore

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS mapping_attempts (
	domain TEXT PRIMARY KEY,
	attempt_id TEXT NOT NULL,
	started_at INTEGER NOT NULL,
	ended_at INTEGER NOT NULL,
	status TEXT NOT NULL,
	node_count INTEGER NOT NULL,
	edge_count INTEGER NOT NULL,
	error_text TEXT NOT NULL DEFAULT '',
	blob_sha256 TEXT NOT NULL DEFAULT ''
)`

// SQLite persists the attempt ledger to a local database file, the
// default backend (spec's attemptstore.backend default is "sqlite"):
// durable across restarts without requiring an external Postgres
// instance for the common single-node deployment.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the sqlite file at dsn and ensures
// the mapping_attempts table exists.
func NewSQLite(dsn string) (*SQLite, error) {
	if dsn == "" {
		return nil, fmt.Errorf("attemptstore: sqlite dsn is required")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite attempt store: %w", err)
	}
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create mapping_attempts table: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Record upserts the latest attempt row for a.Domain.
func (s *SQLite) Record(ctx context.Context, a Attempt) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mapping_attempts (domain, attempt_id, started_at, ended_at, status, node_count, edge_count, error_text, blob_sha256)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(domain) DO UPDATE SET
			attempt_id=excluded.attempt_id,
			started_at=excluded.started_at,
			ended_at=excluded.ended_at,
			status=excluded.status,
			node_count=excluded.node_count,
			edge_count=excluded.edge_count,
			error_text=excluded.error_text,
			blob_sha256=excluded.blob_sha256
	`,
		a.Domain, a.AttemptID, a.StartedAt.UnixMilli(), a.EndedAt.UnixMilli(),
		string(a.Status), a.NodeCount, a.EdgeCount, a.ErrorText, a.BlobSHA256,
	)
	if err != nil {
		return fmt.Errorf("record mapping attempt: %w", err)
	}
	return nil
}

// LastAttempt reads the stored row for domain, if any.
func (s *SQLite) LastAttempt(ctx context.Context, domain string) (Attempt, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT attempt_id, started_at, ended_at, status, node_count, edge_count, error_text, blob_sha256
		FROM mapping_attempts WHERE domain = ?
	`, domain)

	var (
		attemptID, status, errText, blobSHA string
		startedMs, endedMs                  int64
		nodeCount, edgeCount                uint32
	)
	if err := row.Scan(&attemptID, &startedMs, &endedMs, &status, &nodeCount, &edgeCount, &errText, &blobSHA); err != nil {
		if err == sql.ErrNoRows {
			return Attempt{}, false, nil
		}
		return Attempt{}, false, fmt.Errorf("load mapping attempt: %w", err)
	}

	return Attempt{
		Domain:     domain,
		AttemptID:  attemptID,
		StartedAt:  msToTime(startedMs),
		EndedAt:    msToTime(endedMs),
		Status:     Status(status),
		NodeCount:  nodeCount,
		EdgeCount:  edgeCount,
		ErrorText:  errText,
		BlobSHA256: blobSHA,
	}, true, nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite attempt store: %w", err)
	}
	return nil
}
