package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// computeContentHash hashes the canonical encoding of an entry. The
// previous hash is part of the input, which is what chains entries
// together: rewriting any entry invalidates every hash after it.
func computeContentHash(sequence uint64, entryType EntryType, payload []byte, previousHash string, recordedAt time.Time) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%s|%s|%s|%d", sequence, entryType, payload, previousHash, recordedAt.UTC().UnixNano())
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyChain checks a contiguous run of entries: sequence numbers must
// be gapless and ascending, each previous hash must match the prior
// content hash, and every content hash must match a recomputation from
// the entry's own fields.
func VerifyChain(entries []Entry) error {
	for i, e := range entries {
		if i > 0 {
			prev := entries[i-1]
			if e.Sequence != prev.Sequence+1 {
				return fmt.Errorf("sequence gap: %d follows %d", e.Sequence, prev.Sequence)
			}
			if e.PreviousHash != prev.ContentHash {
				return fmt.Errorf("broken chain at sequence %d: previous hash mismatch", e.Sequence)
			}
		} else if e.Sequence == 1 && e.PreviousHash != GenesisHash {
			return fmt.Errorf("entry 1 does not reference the genesis hash")
		}
		want := computeContentHash(e.Sequence, e.Type, e.Payload, e.PreviousHash, e.RecordedAt)
		if e.ContentHash != want {
			return fmt.Errorf("content hash mismatch at sequence %d", e.Sequence)
		}
	}
	return nil
}
