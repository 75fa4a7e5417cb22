package portfolio

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/01phanto/EcoLedger/internal/ledger"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// buildScenario appends a representative event history: issuance, a
// primary sale, a retirement, a trade offer, and a resale purchase.
func buildScenario(t *testing.T) (ledger.Store, uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	store := ledger.NewMemoryStore()

	projectID := uuid.New()
	batchID := uuid.New()
	listingID := uuid.New()
	alicePurchase := uuid.New()
	bobPurchase := uuid.New()
	offerListing := uuid.New()

	record := func(entryType ledger.EntryType, payload any) {
		_, err := store.Append(ctx, entryType, payload)
		require.NoError(t, err)
	}

	record(ledger.EntryBatchIssued, ledger.BatchIssuedPayload{
		BatchID:     batchID,
		ProjectID:   projectID,
		ListingID:   listingID,
		TotalIssued: dec("10.00"),
		UnitPrice:   dec("17.10"),
	})
	record(ledger.EntryCreditsPurchased, ledger.CreditsPurchasedPayload{
		PurchaseID: alicePurchase,
		ListingID:  listingID,
		BatchID:    batchID,
		ProjectID:  projectID,
		BuyerID:    "alice",
		Quantity:   dec("4.00"),
		UnitPrice:  dec("17.10"),
		TotalCost:  dec("68.40"),
	})
	record(ledger.EntryCreditsRetired, ledger.CreditsRetiredPayload{
		PurchaseID: alicePurchase,
		BatchID:    batchID,
		ProjectID:  projectID,
		HolderID:   "alice",
		Quantity:   dec("1.00"),
	})
	record(ledger.EntryTradeOfferPosted, ledger.TradeOfferPostedPayload{
		ListingID:  offerListing,
		PurchaseID: alicePurchase,
		BatchID:    batchID,
		ProjectID:  projectID,
		SellerID:   "alice",
		Quantity:   dec("2.00"),
		AskPrice:   dec("20.00"),
	})
	record(ledger.EntryCreditsPurchased, ledger.CreditsPurchasedPayload{
		PurchaseID: bobPurchase,
		ListingID:  offerListing,
		BatchID:    batchID,
		ProjectID:  projectID,
		BuyerID:    "bob",
		Quantity:   dec("2.00"),
		UnitPrice:  dec("20.00"),
		TotalCost:  dec("40.00"),
		Resale:     true,
	})

	return store, projectID
}

func TestProjectorFoldsScenario(t *testing.T) {
	store, projectID := buildScenario(t)
	entries, err := store.ReadFrom(context.Background(), 1, 0)
	require.NoError(t, err)

	projector := NewProjector()
	require.NoError(t, projector.Rebuild(entries))

	balances := projector.ProjectBalances(projectID)
	assert.Equal(t, "10.00", balances.TotalIssued.StringFixed(2))
	assert.Equal(t, "4.00", balances.TotalSold.StringFixed(2))
	assert.Equal(t, "1.00", balances.TotalRetired.StringFixed(2))
	// Resale does not count against issued supply.
	assert.Equal(t, "6.00", balances.AvailableRemaining.StringFixed(2))

	alice := projector.Portfolio("alice")
	// 4 bought, 1 retired, 2 offered away.
	assert.Equal(t, "1.00", alice.ActiveHoldings.StringFixed(2))
	assert.Equal(t, "1.00", alice.RetiredHoldings.StringFixed(2))
	assert.Equal(t, "68.40", alice.TotalSpent.StringFixed(2))

	bob := projector.Portfolio("bob")
	assert.Equal(t, "2.00", bob.ActiveHoldings.StringFixed(2))
	assert.Equal(t, "0.00", bob.RetiredHoldings.StringFixed(2))
	assert.Equal(t, "40.00", bob.TotalSpent.StringFixed(2))
}

func TestIncrementalApplyMatchesRebuildAtEveryPrefix(t *testing.T) {
	store, projectID := buildScenario(t)
	entries, err := store.ReadFrom(context.Background(), 1, 0)
	require.NoError(t, err)

	incremental := NewProjector()
	for i, entry := range entries {
		require.NoError(t, incremental.Apply(entry))

		cold := NewProjector()
		require.NoError(t, cold.Rebuild(entries[:i+1]))

		assert.Equal(t, cold.LastSequence(), incremental.LastSequence())
		assert.Equal(t, cold.ProjectBalances(projectID), incremental.ProjectBalances(projectID))
		for _, holder := range []string{"alice", "bob"} {
			assert.Equal(t, cold.Portfolio(holder), incremental.Portfolio(holder),
				"holder %s diverged after %d entries", holder, i+1)
		}
	}
}

func TestApplyRejectsOutOfOrderEntries(t *testing.T) {
	store, _ := buildScenario(t)
	entries, err := store.ReadFrom(context.Background(), 1, 0)
	require.NoError(t, err)

	projector := NewProjector()
	assert.Error(t, projector.Apply(entries[1]))

	require.NoError(t, projector.Apply(entries[0]))
	assert.Error(t, projector.Apply(entries[0]))
	assert.Error(t, projector.Apply(entries[2]))
}

func TestUnknownLookupsReportZeroes(t *testing.T) {
	projector := NewProjector()

	balances := projector.ProjectBalances(uuid.New())
	assert.True(t, balances.TotalIssued.IsZero())
	assert.True(t, balances.AvailableRemaining.IsZero())

	portfolio := projector.Portfolio("nobody")
	assert.True(t, portfolio.ActiveHoldings.IsZero())
	assert.True(t, portfolio.TotalSpent.IsZero())
}

func TestServiceRefreshesBeforeReads(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemoryStore()
	svc := NewService(store)

	projectID := uuid.New()
	balances, err := svc.GetProjectBalances(ctx, projectID)
	require.NoError(t, err)
	assert.True(t, balances.TotalIssued.IsZero())

	_, err = store.Append(ctx, ledger.EntryBatchIssued, ledger.BatchIssuedPayload{
		BatchID:     uuid.New(),
		ProjectID:   projectID,
		ListingID:   uuid.New(),
		TotalIssued: dec("3.00"),
		UnitPrice:   dec("15.00"),
	})
	require.NoError(t, err)

	// The appended entry is folded in on the next query.
	balances, err = svc.GetProjectBalances(ctx, projectID)
	require.NoError(t, err)
	assert.Equal(t, "3.00", balances.TotalIssued.StringFixed(2))
}
