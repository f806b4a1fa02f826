// Package store provides optional persistence: a SQLite log of every
// upstream query and a Parquet archive of tick snapshots. Neither is read back
// by the dashboard itself.
package store

import (
	"context"
	"time"

	"marketpulse/internal/market"
	"marketpulse/internal/query"
)

// QueryRecord is one logged upstream call.
type QueryRecord struct {
	ID        int64
	Kind      string
	Ident     string
	StartedAt time.Time
	Duration  time.Duration
	OK        bool
	Error     string
}

// QueryLog persists query outcomes and lists the most recent ones.
type QueryLog interface {
	query.Recorder

	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]QueryRecord, error)

	Close() error
}

// TickArchive buffers tick snapshots and writes them out in batches.
type TickArchive interface {
	// Append buffers every instrument of evt.
	Append(evt market.TickEvent)

	// Flush writes the buffered rows and returns the file written, or "" when
	// nothing was buffered.
	Flush() (string, error)
}
