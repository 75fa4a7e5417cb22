package ledgercsv

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/01phanto/EcoLedger/internal/ledger"
)

// Header is the column layout of an audit export.
var Header = []string{"sequence", "type", "recorded_at", "content_hash", "previous_hash", "payload"}

// Write streams ledger entries as CSV for audit download. The payload
// column carries the canonical JSON encoding unchanged so exported rows
// can be re-hashed by an external verifier.
func Write(w io.Writer, entries []ledger.Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, entry := range entries {
		record := []string{
			strconv.FormatUint(entry.Sequence, 10),
			string(entry.Type),
			entry.RecordedAt.UTC().Format(time.RFC3339Nano),
			entry.ContentHash,
			entry.PreviousHash,
			string(entry.Payload),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
