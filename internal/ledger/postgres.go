package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/01phanto/EcoLedger/internal/apperrors"
)

// PostgresStore persists the ledger in an append-only table. Gapless
// sequencing is enforced by a unique constraint on the sequence column;
// losing the append race surfaces as a unique violation which is retried
// with backoff inside Append.
type PostgresStore struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewPostgresStore creates a postgres-backed ledger store.
func NewPostgresStore(db *sqlx.DB, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

// Append implements Store.
func (s *PostgresStore) Append(ctx context.Context, entryType EntryType, payload any) (*Entry, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ledger payload: %w", err)
	}

	backoff := appendBackoffBase
	var lastErr error
	for attempt := 0; attempt < maxAppendAttempts; attempt++ {
		entry, err := s.tryAppend(ctx, entryType, raw)
		if err == nil {
			return entry, nil
		}
		if !errors.Is(err, apperrors.ErrConcurrencyConflict) {
			return nil, err
		}
		lastErr = err
		s.logger.Debug("ledger append lost sequence race, retrying",
			zap.Int("attempt", attempt+1))
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff *= 2
	}
	return nil, lastErr
}

func (s *PostgresStore) tryAppend(ctx context.Context, entryType EntryType, raw []byte) (*Entry, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	entry, err := appendInTx(ctx, tx, entryType, raw)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStorageUnavailable, err)
	}
	return entry, nil
}

// AppendTx appends one entry inside the caller's transaction. Commit
// and rollback stay with the caller, so the entry becomes durable only
// together with the rest of the transaction's writes. A lost sequence
// race surfaces as ErrConcurrencyConflict; the caller must roll back
// and retry the whole transaction.
func AppendTx(ctx context.Context, tx *sqlx.Tx, entryType EntryType, payload any) (*Entry, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ledger payload: %w", err)
	}
	return appendInTx(ctx, tx, entryType, raw)
}

func appendInTx(ctx context.Context, tx *sqlx.Tx, entryType EntryType, raw []byte) (*Entry, error) {
	var head struct {
		Sequence    uint64 `db:"sequence"`
		ContentHash string `db:"content_hash"`
	}
	err := tx.GetContext(ctx, &head,
		`SELECT sequence, content_hash FROM ledger_entries ORDER BY sequence DESC LIMIT 1`)
	previousHash := GenesisHash
	sequence := uint64(1)
	switch {
	case err == nil:
		previousHash = head.ContentHash
		sequence = head.Sequence + 1
	case errors.Is(err, sql.ErrNoRows):
		// empty ledger
	default:
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStorageUnavailable, err)
	}

	entry := Entry{
		Sequence:     sequence,
		Type:         entryType,
		Payload:      json.RawMessage(raw),
		PreviousHash: previousHash,
		RecordedAt:   time.Now().UTC(),
	}
	entry.ContentHash = computeContentHash(entry.Sequence, entry.Type, entry.Payload, entry.PreviousHash, entry.RecordedAt)

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO ledger_entries (sequence, entry_type, payload, content_hash, previous_hash, recorded_at)
		VALUES (:sequence, :entry_type, :payload, :content_hash, :previous_hash, :recorded_at)`,
		entry)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, apperrors.Conflict(apperrors.ErrConcurrencyConflict, "ledger sequence %d taken", sequence)
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStorageUnavailable, err)
	}
	return &entry, nil
}

// ReadFrom implements Store.
func (s *PostgresStore) ReadFrom(ctx context.Context, fromSequence uint64, limit int) ([]Entry, error) {
	if fromSequence < 1 {
		fromSequence = 1
	}
	query := `SELECT sequence, entry_type, payload, content_hash, previous_hash, recorded_at
		FROM ledger_entries WHERE sequence >= $1 ORDER BY sequence ASC`
	args := []interface{}{fromSequence}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	var entries []Entry
	if err := s.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStorageUnavailable, err)
	}
	return entries, nil
}

// Head implements Store.
func (s *PostgresStore) Head(ctx context.Context) (uint64, error) {
	var head sql.NullInt64
	if err := s.db.GetContext(ctx, &head, `SELECT MAX(sequence) FROM ledger_entries`); err != nil {
		return 0, fmt.Errorf("%w: %v", apperrors.ErrStorageUnavailable, err)
	}
	if !head.Valid {
		return 0, nil
	}
	return uint64(head.Int64), nil
}
