package issuance

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/01phanto/EcoLedger/internal/apperrors"
	"github.com/01phanto/EcoLedger/internal/ledger"
	"github.com/01phanto/EcoLedger/internal/marketplace"
	"github.com/01phanto/EcoLedger/internal/projects"
)

func newTestService() (*Service, marketplace.Repository, ledger.Store) {
	repo := marketplace.NewMemoryRepository()
	store := ledger.NewMemoryStore()
	svc := NewService(repo, store, DefaultParams(), zap.NewNop())
	return svc, repo, store
}

func approvedProject(claimed int) *projects.Project {
	return &projects.Project{
		ID:               uuid.New(),
		OrganizationName: "Green Roots",
		DisplayName:      "Mangrove Restoration",
		ClaimedTreeCount: claimed,
		Status:           projects.StatusApproved,
	}
}

func withVerification(p *projects.Project, detected int, finalScore float64) *projects.Project {
	p.DetectedTreeCount = &detected
	p.FinalScore = &finalScore
	return p
}

func TestIssueComputesCreditsAndPrice(t *testing.T) {
	svc, repo, store := newTestService()
	ctx := context.Background()

	// 90 detected trees at score 85: 90*12.3*0.85/1000 = 0.94095 -> 0.94
	// credits priced at 15*(0.8+0.85*0.4) = 17.10.
	project := withVerification(approvedProject(100), 90, 85)
	batch, err := svc.IssueBatch(ctx, project)
	require.NoError(t, err)

	assert.Equal(t, "0.94", batch.TotalIssued.StringFixed(2))
	assert.Equal(t, "17.10", batch.UnitPrice.StringFixed(2))

	listings, err := repo.ListListings(ctx, true)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.True(t, listings[0].QuantityAvailable.Equal(batch.TotalIssued))
	assert.True(t, listings[0].UnitPrice.Equal(batch.UnitPrice))
	assert.Equal(t, "Green Roots", listings[0].SellerID)

	entries, err := store.ReadFrom(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ledger.EntryBatchIssued, entries[0].Type)

	var payload ledger.BatchIssuedPayload
	require.NoError(t, entries[0].DecodePayload(&payload))
	assert.Equal(t, batch.ID, payload.BatchID)
	assert.Equal(t, project.ID, payload.ProjectID)
	assert.Equal(t, "0.94", payload.TotalIssued.StringFixed(2))
}

func TestIssueDefaultsWithoutVerification(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	// No verification: claimed count and the default score of 70 apply.
	// 100*12.3*0.7/1000 = 0.861 -> 0.86, price 15*(0.8+0.7*0.4) = 16.20.
	batch, err := svc.IssueBatch(ctx, approvedProject(100))
	require.NoError(t, err)

	assert.Equal(t, "0.86", batch.TotalIssued.StringFixed(2))
	assert.Equal(t, "16.20", batch.UnitPrice.StringFixed(2))
}

func TestIssueClampsQuality(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	// Scores above 100 clamp to quality 1.0.
	batch, err := svc.IssueBatch(ctx, withVerification(approvedProject(100), 100, 150))
	require.NoError(t, err)
	assert.Equal(t, "1.23", batch.TotalIssued.StringFixed(2))
	assert.Equal(t, "18.00", batch.UnitPrice.StringFixed(2))
}

func TestIssueRequiresApprovedProject(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	project := approvedProject(100)
	project.Status = projects.StatusUnderReview

	_, err := svc.IssueBatch(ctx, project)
	assert.ErrorIs(t, err, apperrors.ErrInvalidProjectState)
}

func TestIssueIsIdempotentPerProject(t *testing.T) {
	svc, _, store := newTestService()
	ctx := context.Background()

	project := withVerification(approvedProject(100), 90, 85)
	first, err := svc.IssueBatch(ctx, project)
	require.NoError(t, err)

	second, err := svc.IssueBatch(ctx, project)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyIssued)
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID)

	entries, err := store.ReadFrom(ctx, 1, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestConcurrentIssuanceCreatesOneBatch(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	project := withVerification(approvedProject(100), 90, 85)

	var g errgroup.Group
	results := make([]error, 10)
	for i := 0; i < 10; i++ {
		i := i
		g.Go(func() error {
			_, err := svc.IssueBatch(ctx, project)
			results[i] = err
			return nil
		})
	}
	require.NoError(t, g.Wait())

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, apperrors.ErrAlreadyIssued)
		}
	}
	assert.Equal(t, 1, successes)

	batch, err := repo.GetBatchByProject(ctx, project.ID)
	require.NoError(t, err)
	assert.NotNil(t, batch)
}

func TestIssueZeroTreesCreatesClosedListing(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	batch, err := svc.IssueBatch(ctx, withVerification(approvedProject(1), 0, 85))
	require.NoError(t, err)
	assert.True(t, batch.TotalIssued.IsZero())

	open, err := repo.ListListings(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, open)

	all, err := repo.ListListings(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Closed())
}

func TestParamsFromConfigMatchDefaults(t *testing.T) {
	params := DefaultParams()
	assert.True(t, params.CO2KgPerTreeYear.Equal(decimal.RequireFromString("12.3")))
	assert.True(t, params.BasePrice.Equal(decimal.RequireFromString("15.00")))
}
