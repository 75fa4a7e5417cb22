package marketplace

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository is the snapshot store for batches, listings and purchases.
// The ledger remains the source of truth; these tables are the current
// state cache, always reconstructable by replaying the log.
type Repository interface {
	// CreateBatch inserts a batch. The project id is unique: a second
	// insert for the same project fails with ErrAlreadyIssued, which is
	// what makes issuance idempotent under concurrent retries.
	CreateBatch(ctx context.Context, batch *CreditBatch) error
	GetBatch(ctx context.Context, id uuid.UUID) (*CreditBatch, error)
	GetBatchByProject(ctx context.Context, projectID uuid.UUID) (*CreditBatch, error)
	// DeleteBatch removes a batch. Compensation only: used to unwind a
	// partially applied issuance, never as a business operation.
	DeleteBatch(ctx context.Context, id uuid.UUID) error

	CreateListing(ctx context.Context, listing *Listing) error
	GetListing(ctx context.Context, id uuid.UUID) (*Listing, error)
	// ListListings returns all listings, or only those still open when
	// onlyOpen is set.
	ListListings(ctx context.Context, onlyOpen bool) ([]*Listing, error)
	// DecrementListing atomically reduces availability by quantity. It
	// fails with ErrInsufficientSupply when availability is short and
	// performs no partial decrement.
	DecrementListing(ctx context.Context, id uuid.UUID, quantity decimal.Decimal) error
	// RestoreListing adds quantity back. Compensation only.
	RestoreListing(ctx context.Context, id uuid.UUID, quantity decimal.Decimal) error
	// DeleteListing removes a listing. Compensation only.
	DeleteListing(ctx context.Context, id uuid.UUID) error
	// SumPrimaryListed returns the total originally listed quantity
	// across the batch's primary (non-resale) listings.
	SumPrimaryListed(ctx context.Context, batchID uuid.UUID) (decimal.Decimal, error)

	CreatePurchase(ctx context.Context, purchase *Purchase) error
	GetPurchase(ctx context.Context, id uuid.UUID) (*Purchase, error)
	UpdatePurchase(ctx context.Context, purchase *Purchase) error
	// DeletePurchase removes a purchase. Compensation only.
	DeletePurchase(ctx context.Context, id uuid.UUID) error
	ListPurchasesByBuyer(ctx context.Context, buyerID string) ([]*Purchase, error)
	ListPurchasesByListing(ctx context.Context, listingID uuid.UUID) ([]*Purchase, error)
}

// Settler is implemented by repositories that can settle a purchase in
// a single transaction: the availability decrement, the purchase row
// and the ledger entry commit or roll back together, so a crash can
// never leave a decrement without its purchase and ledger entry. The
// service prefers this path and falls back to compensation when the
// repository cannot offer it.
type Settler interface {
	SettlePurchase(ctx context.Context, listingID uuid.UUID, buyerID string, quantity decimal.Decimal) (*Purchase, error)
}
