package ledgercsv

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/01phanto/EcoLedger/internal/ledger"
)

func TestWriteProducesOneRowPerEntry(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemoryStore()

	type payload struct {
		Label string `json:"label"`
	}
	_, err := store.Append(ctx, ledger.EntryBatchIssued, payload{Label: "a"})
	require.NoError(t, err)
	_, err = store.Append(ctx, ledger.EntryCreditsRetired, payload{Label: "b"})
	require.NoError(t, err)

	entries, err := store.ReadFrom(ctx, 1, 0)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, entries))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, Header, rows[0])
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, string(ledger.EntryBatchIssued), rows[1][1])
	assert.Equal(t, entries[0].ContentHash, rows[1][3])
	assert.Equal(t, ledger.GenesisHash, rows[1][4])
	assert.JSONEq(t, `{"label":"a"}`, rows[1][5])

	// Row 2 links back to row 1.
	assert.Equal(t, entries[0].ContentHash, rows[2][4])
}

func TestWriteEmptyLedgerEmitsHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, nil))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, Header, rows[0])
}
