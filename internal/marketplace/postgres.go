package marketplace

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/01phanto/EcoLedger/internal/apperrors"
	"github.com/01phanto/EcoLedger/internal/ledger"
)

const (
	settleAttempts    = 3
	settleBackoffBase = 10 * time.Millisecond
)

type postgresRepository struct {
	db *sqlx.DB
}

var _ Settler = (*postgresRepository)(nil)

// NewPostgresRepository creates a postgres-backed marketplace repository.
func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func storageErr(err error) error {
	return fmt.Errorf("%w: %v", apperrors.ErrStorageUnavailable, err)
}

func (r *postgresRepository) CreateBatch(ctx context.Context, batch *CreditBatch) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO credit_batches (id, project_id, total_issued, unit_price, issued_at)
		VALUES (:id, :project_id, :total_issued, :unit_price, :issued_at)`,
		batch)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return apperrors.Conflict(apperrors.ErrAlreadyIssued, "project %s", batch.ProjectID)
		}
		return storageErr(err)
	}
	return nil
}

func (r *postgresRepository) GetBatch(ctx context.Context, id uuid.UUID) (*CreditBatch, error) {
	var batch CreditBatch
	err := r.db.GetContext(ctx, &batch, `SELECT * FROM credit_batches WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("credit batch", id)
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return &batch, nil
}

func (r *postgresRepository) GetBatchByProject(ctx context.Context, projectID uuid.UUID) (*CreditBatch, error) {
	var batch CreditBatch
	err := r.db.GetContext(ctx, &batch, `SELECT * FROM credit_batches WHERE project_id = $1`, projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("credit batch for project", projectID)
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return &batch, nil
}

func (r *postgresRepository) DeleteBatch(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM credit_batches WHERE id = $1`, id); err != nil {
		return storageErr(err)
	}
	return nil
}

func (r *postgresRepository) CreateListing(ctx context.Context, listing *Listing) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO listings (id, batch_id, project_id, seller_id, source_purchase_id,
			quantity_listed, quantity_available, unit_price, created_at)
		VALUES (:id, :batch_id, :project_id, :seller_id, :source_purchase_id,
			:quantity_listed, :quantity_available, :unit_price, :created_at)`,
		listing)
	if err != nil {
		return storageErr(err)
	}
	return nil
}

func (r *postgresRepository) GetListing(ctx context.Context, id uuid.UUID) (*Listing, error) {
	var listing Listing
	err := r.db.GetContext(ctx, &listing, `SELECT * FROM listings WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("listing", id)
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return &listing, nil
}

func (r *postgresRepository) ListListings(ctx context.Context, onlyOpen bool) ([]*Listing, error) {
	query := `SELECT * FROM listings`
	if onlyOpen {
		query += ` WHERE quantity_available > 0`
	}
	query += ` ORDER BY created_at ASC`

	var listings []*Listing
	if err := r.db.SelectContext(ctx, &listings, query); err != nil {
		return nil, storageErr(err)
	}
	return listings, nil
}

// DecrementListing is a single-statement compare-and-decrement. The
// WHERE clause guarantees availability never goes negative regardless of
// how many settlements race on the row.
func (r *postgresRepository) DecrementListing(ctx context.Context, id uuid.UUID, quantity decimal.Decimal) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE listings SET quantity_available = quantity_available - $2
		WHERE id = $1 AND quantity_available >= $2`,
		id, quantity)
	if err != nil {
		return storageErr(err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return storageErr(err)
	}
	if rows == 0 {
		if _, err := r.GetListing(ctx, id); err != nil {
			return err
		}
		return apperrors.Conflict(apperrors.ErrInsufficientSupply,
			"listing %s cannot cover %s", id, quantity)
	}
	return nil
}

func (r *postgresRepository) RestoreListing(ctx context.Context, id uuid.UUID, quantity decimal.Decimal) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE listings SET quantity_available = quantity_available + $2 WHERE id = $1`,
		id, quantity)
	if err != nil {
		return storageErr(err)
	}
	return nil
}

func (r *postgresRepository) DeleteListing(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM listings WHERE id = $1`, id); err != nil {
		return storageErr(err)
	}
	return nil
}

func (r *postgresRepository) SumPrimaryListed(ctx context.Context, batchID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := r.db.GetContext(ctx, &sum, `
		SELECT SUM(quantity_listed) FROM listings
		WHERE batch_id = $1 AND source_purchase_id IS NULL`,
		batchID)
	if err != nil {
		return decimal.Zero, storageErr(err)
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}

func (r *postgresRepository) CreatePurchase(ctx context.Context, purchase *Purchase) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO purchases (id, listing_id, batch_id, project_id, buyer_id,
			quantity, unit_price, total_cost, unlisted_quantity, status, created_at, updated_at)
		VALUES (:id, :listing_id, :batch_id, :project_id, :buyer_id,
			:quantity, :unit_price, :total_cost, :unlisted_quantity, :status, :created_at, :updated_at)`,
		purchase)
	if err != nil {
		return storageErr(err)
	}
	return nil
}

func (r *postgresRepository) GetPurchase(ctx context.Context, id uuid.UUID) (*Purchase, error) {
	var purchase Purchase
	err := r.db.GetContext(ctx, &purchase, `SELECT * FROM purchases WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("purchase", id)
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return &purchase, nil
}

func (r *postgresRepository) UpdatePurchase(ctx context.Context, purchase *Purchase) error {
	_, err := r.db.NamedExecContext(ctx, `
		UPDATE purchases SET
			unlisted_quantity = :unlisted_quantity,
			status = :status,
			updated_at = NOW()
		WHERE id = :id`,
		purchase)
	if err != nil {
		return storageErr(err)
	}
	return nil
}

func (r *postgresRepository) DeletePurchase(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM purchases WHERE id = $1`, id); err != nil {
		return storageErr(err)
	}
	return nil
}

func (r *postgresRepository) ListPurchasesByBuyer(ctx context.Context, buyerID string) ([]*Purchase, error) {
	var purchases []*Purchase
	err := r.db.SelectContext(ctx, &purchases,
		`SELECT * FROM purchases WHERE buyer_id = $1 ORDER BY created_at ASC`, buyerID)
	if err != nil {
		return nil, storageErr(err)
	}
	return purchases, nil
}

func (r *postgresRepository) ListPurchasesByListing(ctx context.Context, listingID uuid.UUID) ([]*Purchase, error) {
	var purchases []*Purchase
	err := r.db.SelectContext(ctx, &purchases,
		`SELECT * FROM purchases WHERE listing_id = $1 ORDER BY created_at ASC`, listingID)
	if err != nil {
		return nil, storageErr(err)
	}
	return purchases, nil
}

// SettlePurchase implements Settler. The listing row is locked, the
// decrement, purchase insert and ledger append all run in one
// transaction. A lost ledger sequence race rolls the whole transaction
// back and retries with backoff.
func (r *postgresRepository) SettlePurchase(ctx context.Context, listingID uuid.UUID, buyerID string, quantity decimal.Decimal) (*Purchase, error) {
	backoff := settleBackoffBase
	var lastErr error
	for attempt := 0; attempt < settleAttempts; attempt++ {
		purchase, err := r.trySettle(ctx, listingID, buyerID, quantity)
		if err == nil {
			return purchase, nil
		}
		if !errors.Is(err, apperrors.ErrConcurrencyConflict) {
			return nil, err
		}
		lastErr = err
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff *= 2
	}
	return nil, lastErr
}

func (r *postgresRepository) trySettle(ctx context.Context, listingID uuid.UUID, buyerID string, quantity decimal.Decimal) (*Purchase, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, storageErr(err)
	}
	defer tx.Rollback()

	var listing Listing
	err = tx.GetContext(ctx, &listing, `SELECT * FROM listings WHERE id = $1 FOR UPDATE`, listingID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("listing", listingID)
	}
	if err != nil {
		return nil, storageErr(err)
	}
	if listing.Closed() {
		return nil, apperrors.Conflict(apperrors.ErrInsufficientSupply, "listing %s is closed", listingID)
	}
	if listing.QuantityAvailable.LessThan(quantity) {
		return nil, apperrors.Conflict(apperrors.ErrInsufficientSupply,
			"listing %s cannot cover %s", listingID, quantity)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE listings SET quantity_available = quantity_available - $2 WHERE id = $1`,
		listingID, quantity)
	if err != nil {
		return nil, storageErr(err)
	}

	now := time.Now().UTC()
	purchase := &Purchase{
		ID:               uuid.New(),
		ListingID:        listing.ID,
		BatchID:          listing.BatchID,
		ProjectID:        listing.ProjectID,
		BuyerID:          buyerID,
		Quantity:         quantity,
		UnitPrice:        listing.UnitPrice,
		TotalCost:        quantity.Mul(listing.UnitPrice),
		UnlistedQuantity: quantity,
		Status:           HoldingActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO purchases (id, listing_id, batch_id, project_id, buyer_id,
			quantity, unit_price, total_cost, unlisted_quantity, status, created_at, updated_at)
		VALUES (:id, :listing_id, :batch_id, :project_id, :buyer_id,
			:quantity, :unit_price, :total_cost, :unlisted_quantity, :status, :created_at, :updated_at)`,
		purchase)
	if err != nil {
		return nil, storageErr(err)
	}

	_, err = ledger.AppendTx(ctx, tx, ledger.EntryCreditsPurchased, ledger.CreditsPurchasedPayload{
		PurchaseID: purchase.ID,
		ListingID:  listing.ID,
		BatchID:    listing.BatchID,
		ProjectID:  listing.ProjectID,
		BuyerID:    buyerID,
		Quantity:   quantity,
		UnitPrice:  purchase.UnitPrice,
		TotalCost:  purchase.TotalCost,
		Resale:     listing.Resale(),
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr(err)
	}
	return purchase, nil
}
