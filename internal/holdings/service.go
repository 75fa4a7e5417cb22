package holdings

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/01phanto/EcoLedger/internal/apperrors"
	"github.com/01phanto/EcoLedger/internal/ledger"
	"github.com/01phanto/EcoLedger/internal/marketplace"
	"github.com/01phanto/EcoLedger/pkg/syncutil"
)

// Service lets a holder permanently retire credits or post a secondary
// resale offer. Operations on the same purchase serialize on a
// per-purchase lock; different purchases proceed in parallel.
type Service struct {
	repo          marketplace.Repository
	store         ledger.Store
	logger        *zap.Logger
	purchaseLocks *syncutil.KeyedMutex
}

// NewService creates a holdings service.
func NewService(repo marketplace.Repository, store ledger.Store, logger *zap.Logger) *Service {
	return &Service{
		repo:          repo,
		store:         store,
		logger:        logger,
		purchaseLocks: syncutil.NewKeyedMutex(),
	}
}

// Retire permanently removes a holding from circulation. Terminal: no
// operation ever transitions out of RETIRED. The full holding must be
// unlisted; credits already offered for resale cannot be retired.
func (s *Service) Retire(ctx context.Context, purchaseID uuid.UUID, holderID string) (*marketplace.Purchase, error) {
	if holderID == "" {
		return nil, apperrors.Invalid("holder id is required")
	}

	unlock := s.purchaseLocks.Lock(purchaseID)
	defer unlock()

	purchase, err := s.repo.GetPurchase(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	if purchase.BuyerID != holderID {
		return nil, apperrors.Conflict(apperrors.ErrNotHolder, "purchase %s", purchaseID)
	}
	if purchase.Status != marketplace.HoldingActive {
		return nil, apperrors.Conflict(apperrors.ErrHoldingNotActive,
			"purchase %s is %s", purchaseID, purchase.Status)
	}
	if !purchase.UnlistedQuantity.Equal(purchase.Quantity) {
		return nil, apperrors.Conflict(apperrors.ErrHoldingNotActive,
			"purchase %s has quantity offered for resale", purchaseID)
	}

	purchase.Status = marketplace.HoldingRetired
	purchase.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdatePurchase(ctx, purchase); err != nil {
		return nil, err
	}

	_, err = s.store.Append(ctx, ledger.EntryCreditsRetired, ledger.CreditsRetiredPayload{
		PurchaseID: purchase.ID,
		BatchID:    purchase.BatchID,
		ProjectID:  purchase.ProjectID,
		HolderID:   holderID,
		Quantity:   purchase.Quantity,
	})
	if err != nil {
		purchase.Status = marketplace.HoldingActive
		if revertErr := s.repo.UpdatePurchase(ctx, purchase); revertErr != nil {
			s.logger.Error("failed to revert retirement after append failure",
				zap.String("purchase_id", purchaseID.String()), zap.Error(revertErr))
		}
		return nil, err
	}

	s.logger.Info("holding retired",
		zap.String("purchase_id", purchaseID.String()),
		zap.String("holder_id", holderID),
		zap.String("quantity", purchase.Quantity.String()))
	return purchase, nil
}

// PostTradeOffer re-lists a sub-quantity of a holding as a secondary
// marketplace listing. The purchase's unlisted quantity tracks what can
// still be offered, so the same slice can never be listed twice. A
// holding fully covered by offers moves to RESOLD.
func (s *Service) PostTradeOffer(ctx context.Context, purchaseID uuid.UUID, holderID string, askQuantity, askPrice decimal.Decimal) (*marketplace.Listing, error) {
	if holderID == "" {
		return nil, apperrors.Invalid("holder id is required")
	}
	if !askQuantity.IsPositive() {
		return nil, apperrors.Invalid("ask quantity must be positive, got %s", askQuantity)
	}
	if !askPrice.IsPositive() {
		return nil, apperrors.Invalid("ask price must be positive, got %s", askPrice)
	}

	unlock := s.purchaseLocks.Lock(purchaseID)
	defer unlock()

	purchase, err := s.repo.GetPurchase(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	if purchase.BuyerID != holderID {
		return nil, apperrors.Conflict(apperrors.ErrNotHolder, "purchase %s", purchaseID)
	}
	if purchase.Status != marketplace.HoldingActive {
		return nil, apperrors.Conflict(apperrors.ErrHoldingNotActive,
			"purchase %s is %s", purchaseID, purchase.Status)
	}
	if askQuantity.GreaterThan(purchase.UnlistedQuantity) {
		return nil, apperrors.Conflict(apperrors.ErrInsufficientSupply,
			"purchase %s has %s unlisted, cannot offer %s",
			purchaseID, purchase.UnlistedQuantity, askQuantity)
	}

	sourceID := purchase.ID
	listing := &marketplace.Listing{
		ID:                uuid.New(),
		BatchID:           purchase.BatchID,
		ProjectID:         purchase.ProjectID,
		SellerID:          holderID,
		SourcePurchaseID:  &sourceID,
		QuantityListed:    askQuantity,
		QuantityAvailable: askQuantity,
		UnitPrice:         askPrice,
		CreatedAt:         time.Now().UTC(),
	}
	if err := s.repo.CreateListing(ctx, listing); err != nil {
		return nil, err
	}

	previousUnlisted := purchase.UnlistedQuantity
	previousStatus := purchase.Status
	purchase.UnlistedQuantity = purchase.UnlistedQuantity.Sub(askQuantity)
	if purchase.UnlistedQuantity.IsZero() {
		purchase.Status = marketplace.HoldingResold
	}
	purchase.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdatePurchase(ctx, purchase); err != nil {
		s.unwindOffer(ctx, listing.ID, nil)
		return nil, err
	}

	_, err = s.store.Append(ctx, ledger.EntryTradeOfferPosted, ledger.TradeOfferPostedPayload{
		ListingID:  listing.ID,
		PurchaseID: purchase.ID,
		BatchID:    purchase.BatchID,
		ProjectID:  purchase.ProjectID,
		SellerID:   holderID,
		Quantity:   askQuantity,
		AskPrice:   askPrice,
	})
	if err != nil {
		purchase.UnlistedQuantity = previousUnlisted
		purchase.Status = previousStatus
		s.unwindOffer(ctx, listing.ID, purchase)
		return nil, err
	}

	s.logger.Info("trade offer posted",
		zap.String("purchase_id", purchaseID.String()),
		zap.String("listing_id", listing.ID.String()),
		zap.String("quantity", askQuantity.String()),
		zap.String("ask_price", askPrice.String()))
	return listing, nil
}

func (s *Service) unwindOffer(ctx context.Context, listingID uuid.UUID, purchase *marketplace.Purchase) {
	if err := s.repo.DeleteListing(ctx, listingID); err != nil {
		s.logger.Error("failed to unwind trade-offer listing", zap.Error(err),
			zap.String("listing_id", listingID.String()))
	}
	if purchase != nil {
		if err := s.repo.UpdatePurchase(ctx, purchase); err != nil {
			s.logger.Error("failed to revert purchase after append failure", zap.Error(err),
				zap.String("purchase_id", purchase.ID.String()))
		}
	}
}
