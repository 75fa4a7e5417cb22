package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type testPayload struct {
	Label string `json:"label"`
}

func TestAppendAssignsGaplessSequence(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		entry, err := store.Append(ctx, EntryBatchIssued, testPayload{Label: fmt.Sprintf("e%d", i)})
		require.NoError(t, err)
		assert.Equal(t, uint64(i), entry.Sequence)
	}

	head, err := store.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), head)
}

func TestAppendChainsHashes(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first, err := store.Append(ctx, EntryBatchIssued, testPayload{Label: "first"})
	require.NoError(t, err)
	assert.Equal(t, GenesisHash, first.PreviousHash)

	second, err := store.Append(ctx, EntryCreditsPurchased, testPayload{Label: "second"})
	require.NoError(t, err)
	assert.Equal(t, first.ContentHash, second.PreviousHash)

	entries, err := store.ReadFrom(ctx, 1, 0)
	require.NoError(t, err)
	require.NoError(t, VerifyChain(entries))
}

func TestConcurrentAppendsStayGapless(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	const writers = 50
	var g errgroup.Group
	for i := 0; i < writers; i++ {
		i := i
		g.Go(func() error {
			_, err := store.Append(ctx, EntryCreditsPurchased, testPayload{Label: fmt.Sprintf("w%d", i)})
			return err
		})
	}
	require.NoError(t, g.Wait())

	entries, err := store.ReadFrom(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, entries, writers)
	require.NoError(t, VerifyChain(entries))

	for i, entry := range entries {
		assert.Equal(t, uint64(i+1), entry.Sequence)
	}
}

func TestReadFromIsRestartable(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := store.Append(ctx, EntryBatchIssued, testPayload{Label: fmt.Sprintf("e%d", i)})
		require.NoError(t, err)
	}

	var collected []Entry
	from := uint64(1)
	for {
		page, err := store.ReadFrom(ctx, from, 3)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		collected = append(collected, page...)
		from = page[len(page)-1].Sequence + 1
	}

	require.Len(t, collected, 10)
	require.NoError(t, VerifyChain(collected))

	tail, err := store.ReadFrom(ctx, 8, 0)
	require.NoError(t, err)
	require.Len(t, tail, 3)
	assert.Equal(t, uint64(8), tail[0].Sequence)
}

func TestVerifyChainDetectsTampering(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := store.Append(ctx, EntryCreditsRetired, testPayload{Label: fmt.Sprintf("e%d", i)})
		require.NoError(t, err)
	}

	entries, err := store.ReadFrom(ctx, 1, 0)
	require.NoError(t, err)

	// Rewrite the payload of an early entry without recomputing hashes.
	entries[1].Payload = json.RawMessage(`{"label":"forged"}`)
	assert.Error(t, VerifyChain(entries))

	// A gap in the sequence is also rejected.
	fresh, err := store.ReadFrom(ctx, 1, 0)
	require.NoError(t, err)
	gapped := []Entry{fresh[0], fresh[2], fresh[3]}
	assert.Error(t, VerifyChain(gapped))
}

func TestReadFromCopiesEntries(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Append(ctx, EntryBatchIssued, testPayload{Label: "original"})
	require.NoError(t, err)

	entries, err := store.ReadFrom(ctx, 1, 0)
	require.NoError(t, err)
	entries[0].ContentHash = "mutated"

	again, err := store.ReadFrom(ctx, 1, 0)
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", again[0].ContentHash)
}
