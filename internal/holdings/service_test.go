package holdings

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/01phanto/EcoLedger/internal/apperrors"
	"github.com/01phanto/EcoLedger/internal/ledger"
	"github.com/01phanto/EcoLedger/internal/marketplace"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestHoldings(t *testing.T) (*Service, marketplace.Repository, ledger.Store) {
	t.Helper()
	repo := marketplace.NewMemoryRepository()
	store := ledger.NewMemoryStore()
	return NewService(repo, store, zap.NewNop()), repo, store
}

// seedPurchase creates an active holding of the given quantity for buyer-1.
func seedPurchase(t *testing.T, repo marketplace.Repository, quantity string) *marketplace.Purchase {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	purchase := &marketplace.Purchase{
		ID:               uuid.New(),
		ListingID:        uuid.New(),
		BatchID:          uuid.New(),
		ProjectID:        uuid.New(),
		BuyerID:          "buyer-1",
		Quantity:         dec(quantity),
		UnitPrice:        dec("17.10"),
		TotalCost:        dec(quantity).Mul(dec("17.10")),
		UnlistedQuantity: dec(quantity),
		Status:           marketplace.HoldingActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, repo.CreatePurchase(ctx, purchase))
	return purchase
}

func TestRetireIsTerminal(t *testing.T) {
	svc, repo, store := newTestHoldings(t)
	ctx := context.Background()
	purchase := seedPurchase(t, repo, "0.50")

	retired, err := svc.Retire(ctx, purchase.ID, "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, marketplace.HoldingRetired, retired.Status)

	// No operation transitions out of RETIRED.
	_, err = svc.Retire(ctx, purchase.ID, "buyer-1")
	assert.ErrorIs(t, err, apperrors.ErrHoldingNotActive)

	_, err = svc.PostTradeOffer(ctx, purchase.ID, "buyer-1", dec("0.10"), dec("20"))
	assert.ErrorIs(t, err, apperrors.ErrHoldingNotActive)

	entries, err := store.ReadFrom(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ledger.EntryCreditsRetired, entries[0].Type)

	var payload ledger.CreditsRetiredPayload
	require.NoError(t, entries[0].DecodePayload(&payload))
	assert.Equal(t, purchase.ID, payload.PurchaseID)
	assert.Equal(t, "buyer-1", payload.HolderID)
	assert.True(t, payload.Quantity.Equal(dec("0.50")))
}

func TestRetireRejectsWrongHolder(t *testing.T) {
	svc, repo, store := newTestHoldings(t)
	ctx := context.Background()
	purchase := seedPurchase(t, repo, "0.50")

	_, err := svc.Retire(ctx, purchase.ID, "someone-else")
	assert.ErrorIs(t, err, apperrors.ErrNotHolder)

	unchanged, err := repo.GetPurchase(ctx, purchase.ID)
	require.NoError(t, err)
	assert.Equal(t, marketplace.HoldingActive, unchanged.Status)

	head, err := store.Head(ctx)
	require.NoError(t, err)
	assert.Zero(t, head)
}

func TestRetireRequiresHolderID(t *testing.T) {
	svc, repo, _ := newTestHoldings(t)
	purchase := seedPurchase(t, repo, "0.50")

	_, err := svc.Retire(context.Background(), purchase.ID, "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestRetireUnknownPurchase(t *testing.T) {
	svc, _, _ := newTestHoldings(t)

	_, err := svc.Retire(context.Background(), uuid.New(), "buyer-1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRetireBlockedWhileOffered(t *testing.T) {
	svc, repo, _ := newTestHoldings(t)
	ctx := context.Background()
	purchase := seedPurchase(t, repo, "1.00")

	_, err := svc.PostTradeOffer(ctx, purchase.ID, "buyer-1", dec("0.25"), dec("20"))
	require.NoError(t, err)

	// Part of the holding is on the market, so retirement is refused.
	_, err = svc.Retire(ctx, purchase.ID, "buyer-1")
	assert.ErrorIs(t, err, apperrors.ErrHoldingNotActive)
}

func TestPostTradeOfferCreatesResaleListing(t *testing.T) {
	svc, repo, store := newTestHoldings(t)
	ctx := context.Background()
	purchase := seedPurchase(t, repo, "1.00")

	listing, err := svc.PostTradeOffer(ctx, purchase.ID, "buyer-1", dec("0.40"), dec("21.50"))
	require.NoError(t, err)

	assert.Equal(t, purchase.BatchID, listing.BatchID)
	assert.Equal(t, "buyer-1", listing.SellerID)
	require.NotNil(t, listing.SourcePurchaseID)
	assert.Equal(t, purchase.ID, *listing.SourcePurchaseID)
	assert.True(t, listing.Resale())
	assert.True(t, listing.QuantityAvailable.Equal(dec("0.40")))
	assert.True(t, listing.UnitPrice.Equal(dec("21.50")))

	updated, err := repo.GetPurchase(ctx, purchase.ID)
	require.NoError(t, err)
	assert.Equal(t, "0.60", updated.UnlistedQuantity.StringFixed(2))
	assert.Equal(t, marketplace.HoldingActive, updated.Status)

	entries, err := store.ReadFrom(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ledger.EntryTradeOfferPosted, entries[0].Type)
}

func TestPostTradeOfferCannotListSameSliceTwice(t *testing.T) {
	svc, repo, _ := newTestHoldings(t)
	ctx := context.Background()
	purchase := seedPurchase(t, repo, "1.00")

	_, err := svc.PostTradeOffer(ctx, purchase.ID, "buyer-1", dec("0.70"), dec("20"))
	require.NoError(t, err)

	// 0.30 remain unlisted: offering 0.40 would double-list.
	_, err = svc.PostTradeOffer(ctx, purchase.ID, "buyer-1", dec("0.40"), dec("20"))
	assert.ErrorIs(t, err, apperrors.ErrInsufficientSupply)

	_, err = svc.PostTradeOffer(ctx, purchase.ID, "buyer-1", dec("0.30"), dec("20"))
	require.NoError(t, err)

	resold, err := repo.GetPurchase(ctx, purchase.ID)
	require.NoError(t, err)
	assert.True(t, resold.UnlistedQuantity.IsZero())
	assert.Equal(t, marketplace.HoldingResold, resold.Status)
}

func TestPostTradeOfferFullQuantityMovesToResold(t *testing.T) {
	svc, repo, _ := newTestHoldings(t)
	ctx := context.Background()
	purchase := seedPurchase(t, repo, "0.50")

	_, err := svc.PostTradeOffer(ctx, purchase.ID, "buyer-1", dec("0.50"), dec("19"))
	require.NoError(t, err)

	resold, err := repo.GetPurchase(ctx, purchase.ID)
	require.NoError(t, err)
	assert.Equal(t, marketplace.HoldingResold, resold.Status)

	// A resold holding accepts no further offers.
	_, err = svc.PostTradeOffer(ctx, purchase.ID, "buyer-1", dec("0.10"), dec("19"))
	assert.ErrorIs(t, err, apperrors.ErrHoldingNotActive)
}

func TestPostTradeOfferValidation(t *testing.T) {
	svc, repo, _ := newTestHoldings(t)
	ctx := context.Background()
	purchase := seedPurchase(t, repo, "1.00")

	_, err := svc.PostTradeOffer(ctx, purchase.ID, "buyer-1", dec("0"), dec("20"))
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.PostTradeOffer(ctx, purchase.ID, "buyer-1", dec("0.10"), dec("-1"))
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.PostTradeOffer(ctx, purchase.ID, "", dec("0.10"), dec("20"))
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.PostTradeOffer(ctx, purchase.ID, "someone-else", dec("0.10"), dec("20"))
	assert.ErrorIs(t, err, apperrors.ErrNotHolder)
}
