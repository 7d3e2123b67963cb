// Package attemptstore persists a ledger of mapping attempts (per-domain
// status, timings, and counters) independent of the Map Cache itself,
// so "when did we last map example.com, and how did it go" survives a
// service restart even though the cached Map bytes may not.
package attemptstore

import (
	"context"
	"time"
)

// Status mirrors the Mapping state machine's terminal states.
type Status string

const (
	StatusSealed        Status = "sealed"
	StatusPartialSealed Status = "partial_sealed"
	StatusFailed        Status = "failed"
)

// Attempt is one row of the ledger.
type Attempt struct {
	Domain    string
	AttemptID string
	StartedAt time.Time
	EndedAt   time.Time
	Status    Status
	NodeCount uint32
	EdgeCount uint32
	ErrorText string
	// BlobSHA256 is the hex digest of the sealed map bytes persisted to
	// blobstore, empty when nothing was persisted (failed attempts, or
	// no blob store configured).
	BlobSHA256 string
}

// Store persists and retrieves mapping attempt rows.
type Store interface {
	Record(ctx context.Context, a Attempt) error
	LastAttempt(ctx context.Context, domain string) (Attempt, bool, error)
	Close() error
}

func msToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
