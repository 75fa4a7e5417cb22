package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps the ledger in process memory. Used by tests and by
// the explicit "memory" storage driver; it is never a fallback for a
// failed database connection.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemoryStore creates an empty in-memory ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append implements Store. The critical section covers only the
// sequence assignment and hash computation.
func (s *MemoryStore) Append(ctx context.Context, entryType EntryType, payload any) (*Entry, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ledger payload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	previousHash := GenesisHash
	if n := len(s.entries); n > 0 {
		previousHash = s.entries[n-1].ContentHash
	}

	entry := Entry{
		Sequence:     uint64(len(s.entries)) + 1,
		Type:         entryType,
		Payload:      json.RawMessage(raw),
		PreviousHash: previousHash,
		RecordedAt:   time.Now().UTC(),
	}
	entry.ContentHash = computeContentHash(entry.Sequence, entry.Type, entry.Payload, entry.PreviousHash, entry.RecordedAt)

	s.entries = append(s.entries, entry)
	return &entry, nil
}

// ReadFrom implements Store. Returns copies so callers cannot mutate
// ledger history.
func (s *MemoryStore) ReadFrom(ctx context.Context, fromSequence uint64, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if fromSequence < 1 {
		fromSequence = 1
	}
	if fromSequence > uint64(len(s.entries)) {
		return nil, nil
	}

	slice := s.entries[fromSequence-1:]
	if limit > 0 && limit < len(slice) {
		slice = slice[:limit]
	}

	out := make([]Entry, len(slice))
	copy(out, slice)
	return out, nil
}

// Head implements Store.
func (s *MemoryStore) Head(ctx context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.entries)), nil
}
