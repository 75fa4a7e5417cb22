package marketplace

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/01phanto/EcoLedger/internal/apperrors"
	"github.com/01phanto/EcoLedger/internal/ledger"
	"github.com/01phanto/EcoLedger/pkg/syncutil"
)

// Service executes marketplace operations. Purchase is the one
// operation requiring mutual exclusion, scoped per listing so purchases
// against different listings run fully in parallel.
type Service struct {
	repo         Repository
	store        ledger.Store
	logger       *zap.Logger
	listingLocks *syncutil.KeyedMutex
}

// NewService creates a marketplace service.
func NewService(repo Repository, store ledger.Store, logger *zap.Logger) *Service {
	return &Service{
		repo:         repo,
		store:        store,
		logger:       logger,
		listingLocks: syncutil.NewKeyedMutex(),
	}
}

// Purchase settles a buy against a listing: decrement availability,
// record the purchase, append the ledger entry. All three happen or
// none do. Repositories implementing Settler run the three steps in
// one transaction; otherwise failures after the decrement are
// compensated before returning.
func (s *Service) Purchase(ctx context.Context, listingID uuid.UUID, buyerID string, quantity decimal.Decimal) (*Purchase, error) {
	if buyerID == "" {
		return nil, apperrors.Invalid("buyer id is required")
	}
	if !quantity.IsPositive() {
		return nil, apperrors.Invalid("quantity must be positive, got %s", quantity)
	}

	unlock := s.listingLocks.Lock(listingID)
	defer unlock()

	if settler, ok := s.repo.(Settler); ok {
		purchase, err := settler.SettlePurchase(ctx, listingID, buyerID, quantity)
		if err != nil {
			return nil, err
		}
		s.logPurchase(purchase)
		return purchase, nil
	}

	listing, err := s.repo.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.Closed() {
		return nil, apperrors.Conflict(apperrors.ErrInsufficientSupply, "listing %s is closed", listingID)
	}

	// Price is the listing's price at call time, fixed for the whole
	// purchase.
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

	if err := s.repo.DecrementListing(ctx, listingID, quantity); err != nil {
		return nil, err
	}

	if err := s.repo.CreatePurchase(ctx, purchase); err != nil {
		s.compensate(ctx, listingID, quantity, uuid.Nil)
		return nil, err
	}

	_, err = s.store.Append(ctx, ledger.EntryCreditsPurchased, ledger.CreditsPurchasedPayload{
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
		s.compensate(ctx, listingID, quantity, purchase.ID)
		return nil, err
	}

	s.logPurchase(purchase)
	return purchase, nil
}

func (s *Service) logPurchase(purchase *Purchase) {
	s.logger.Info("purchase settled",
		zap.String("purchase_id", purchase.ID.String()),
		zap.String("listing_id", purchase.ListingID.String()),
		zap.String("buyer_id", purchase.BuyerID),
		zap.String("quantity", purchase.Quantity.String()),
		zap.String("total_cost", purchase.TotalCost.String()))
}

// compensate unwinds a partially applied purchase. Failures here are
// logged at error level; the snapshot worker's full replay will surface
// any divergence between snapshot and ledger.
func (s *Service) compensate(ctx context.Context, listingID uuid.UUID, quantity decimal.Decimal, purchaseID uuid.UUID) {
	if purchaseID != uuid.Nil {
		if err := s.repo.DeletePurchase(ctx, purchaseID); err != nil {
			s.logger.Error("failed to unwind purchase record", zap.Error(err),
				zap.String("purchase_id", purchaseID.String()))
		}
	}
	if err := s.repo.RestoreListing(ctx, listingID, quantity); err != nil {
		s.logger.Error("failed to restore listing quantity", zap.Error(err),
			zap.String("listing_id", listingID.String()))
	}
}

// PostListing creates a primary listing for a batch. The new quantity
// plus everything already listed for the batch may not exceed the
// batch's total issuance.
func (s *Service) PostListing(ctx context.Context, batchID uuid.UUID, sellerID string, quantity, unitPrice decimal.Decimal) (*Listing, error) {
	if quantity.IsNegative() {
		return nil, apperrors.Invalid("quantity must not be negative, got %s", quantity)
	}
	if !unitPrice.IsPositive() {
		return nil, apperrors.Invalid("unit price must be positive, got %s", unitPrice)
	}

	batch, err := s.repo.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	listed, err := s.repo.SumPrimaryListed(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if listed.Add(quantity).GreaterThan(batch.TotalIssued) {
		return nil, apperrors.Conflict(apperrors.ErrInsufficientSupply,
			"batch %s issued %s, %s already listed, cannot list %s more",
			batchID, batch.TotalIssued, listed, quantity)
	}

	listing := &Listing{
		ID:                uuid.New(),
		BatchID:           batch.ID,
		ProjectID:         batch.ProjectID,
		SellerID:          sellerID,
		QuantityListed:    quantity,
		QuantityAvailable: quantity,
		UnitPrice:         unitPrice,
		CreatedAt:         time.Now().UTC(),
	}
	if err := s.repo.CreateListing(ctx, listing); err != nil {
		return nil, err
	}
	return listing, nil
}

// ListListings returns listings, optionally only those still open.
func (s *Service) ListListings(ctx context.Context, onlyOpen bool) ([]*Listing, error) {
	return s.repo.ListListings(ctx, onlyOpen)
}

// GetListing returns one listing by id.
func (s *Service) GetListing(ctx context.Context, id uuid.UUID) (*Listing, error) {
	return s.repo.GetListing(ctx, id)
}

// GetPurchase returns one purchase by id.
func (s *Service) GetPurchase(ctx context.Context, id uuid.UUID) (*Purchase, error) {
	return s.repo.GetPurchase(ctx, id)
}

// ListPurchases returns a buyer's purchases.
func (s *Service) ListPurchases(ctx context.Context, buyerID string) ([]*Purchase, error) {
	if buyerID == "" {
		return nil, apperrors.Invalid("buyer id is required")
	}
	return s.repo.ListPurchasesByBuyer(ctx, buyerID)
}
