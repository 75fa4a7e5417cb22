package ledger

import (
	"context"
	"time"
)

// Retry policy for append races. Conflicts are retried here so callers
// never see an ordering race unless every attempt loses.
const (
	maxAppendAttempts = 3
	appendBackoffBase = 10 * time.Millisecond
)

// Store is the append-only ledger. Append is the only mutator and is
// linearizable: concurrent appends serialize so sequence numbers are
// gapless and each entry chains to the previous content hash. Reads are
// snapshot-isolated and never block appends.
type Store interface {
	// Append marshals payload, assigns the next sequence number, chains
	// the hashes and persists the entry.
	Append(ctx context.Context, entryType EntryType, payload any) (*Entry, error)

	// ReadFrom returns entries with sequence >= fromSequence in ascending
	// order. A limit <= 0 means no limit. Restartable: callers page by
	// passing the last seen sequence + 1.
	ReadFrom(ctx context.Context, fromSequence uint64, limit int) ([]Entry, error)

	// Head returns the highest sequence number, 0 for an empty ledger.
	Head(ctx context.Context) (uint64, error)
}
