package issuance

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/01phanto/EcoLedger/internal/apperrors"
	"github.com/01phanto/EcoLedger/internal/config"
	"github.com/01phanto/EcoLedger/internal/ledger"
	"github.com/01phanto/EcoLedger/internal/marketplace"
	"github.com/01phanto/EcoLedger/internal/projects"
)

// Params are the issuance constants as exact decimals. They come from
// configuration; the defaults match the published methodology.
type Params struct {
	CO2KgPerTreeYear  decimal.Decimal
	BasePrice         decimal.Decimal
	PriceFloorFactor  decimal.Decimal
	PriceSpanFactor   decimal.Decimal
	DefaultFinalScore decimal.Decimal
}

// ParamsFromConfig converts the issuance configuration section.
func ParamsFromConfig(cfg config.IssuanceConfig) Params {
	return Params{
		CO2KgPerTreeYear:  decimal.NewFromFloat(cfg.CO2KgPerTreeYear),
		BasePrice:         decimal.NewFromFloat(cfg.BasePrice),
		PriceFloorFactor:  decimal.NewFromFloat(cfg.PriceFloorFactor),
		PriceSpanFactor:   decimal.NewFromFloat(cfg.PriceSpanFactor),
		DefaultFinalScore: decimal.NewFromFloat(cfg.DefaultFinalScore),
	}
}

// DefaultParams returns the standard constants: 12.3 kg CO2 per tree
// per year, $15 base price scaled 0.8x-1.2x by quality, default score
// 70 when no verification exists.
func DefaultParams() Params {
	return Params{
		CO2KgPerTreeYear:  decimal.RequireFromString("12.3"),
		BasePrice:         decimal.RequireFromString("15.00"),
		PriceFloorFactor:  decimal.RequireFromString("0.8"),
		PriceSpanFactor:   decimal.RequireFromString("0.4"),
		DefaultFinalScore: decimal.RequireFromString("70"),
	}
}

// Service converts an approved project into an issued credit batch with
// an initial full-quantity listing, recording the issuance on the
// ledger. Idempotent per project: the batch table's project uniqueness
// is the idempotency key, no locking involved.
type Service struct {
	repo   marketplace.Repository
	store  ledger.Store
	params Params
	logger *zap.Logger
}

// NewService creates an issuance service.
func NewService(repo marketplace.Repository, store ledger.Store, params Params, logger *zap.Logger) *Service {
	return &Service{repo: repo, store: store, params: params, logger: logger}
}

// Issue implements projects.Issuer via IssueBatch.
func (s *Service) Issue(ctx context.Context, project *projects.Project) error {
	_, err := s.IssueBatch(ctx, project)
	return err
}

// IssueBatch issues credits for an approved project. Re-invoking for an
// already-issued project fails with ErrAlreadyIssued and returns the
// existing batch, so issuance is safe to retry after partial failures.
func (s *Service) IssueBatch(ctx context.Context, project *projects.Project) (*marketplace.CreditBatch, error) {
	if project.Status != projects.StatusApproved {
		return nil, apperrors.Conflict(apperrors.ErrInvalidProjectState,
			"cannot issue credits for project in state %s", project.Status)
	}
	if existing, err := s.repo.GetBatchByProject(ctx, project.ID); err == nil {
		return existing, apperrors.Conflict(apperrors.ErrAlreadyIssued, "project %s", project.ID)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	totalIssued, unitPrice := s.compute(project)

	batch := &marketplace.CreditBatch{
		ID:          uuid.New(),
		ProjectID:   project.ID,
		TotalIssued: totalIssued,
		UnitPrice:   unitPrice,
		IssuedAt:    time.Now().UTC(),
	}
	if err := s.repo.CreateBatch(ctx, batch); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyIssued) {
			// Lost the race to a concurrent approval retry.
			if existing, getErr := s.repo.GetBatchByProject(ctx, project.ID); getErr == nil {
				return existing, err
			}
		}
		return nil, err
	}

	// Initial listing for the full issued quantity. A zero-quantity
	// batch still gets a listing; it is born closed.
	listing := &marketplace.Listing{
		ID:                uuid.New(),
		BatchID:           batch.ID,
		ProjectID:         project.ID,
		SellerID:          project.OrganizationName,
		QuantityListed:    totalIssued,
		QuantityAvailable: totalIssued,
		UnitPrice:         unitPrice,
		CreatedAt:         time.Now().UTC(),
	}
	if err := s.repo.CreateListing(ctx, listing); err != nil {
		s.unwind(ctx, batch.ID, uuid.Nil)
		return nil, err
	}

	_, err := s.store.Append(ctx, ledger.EntryBatchIssued, ledger.BatchIssuedPayload{
		BatchID:     batch.ID,
		ProjectID:   project.ID,
		ListingID:   listing.ID,
		TotalIssued: totalIssued,
		UnitPrice:   unitPrice,
	})
	if err != nil {
		s.unwind(ctx, batch.ID, listing.ID)
		return nil, err
	}

	s.logger.Info("credit batch issued",
		zap.String("project_id", project.ID.String()),
		zap.String("batch_id", batch.ID.String()),
		zap.String("total_issued", totalIssued.String()),
		zap.String("unit_price", unitPrice.String()))
	return batch, nil
}

// compute applies the issuance formula:
//
//	effectiveTrees = detected ?? claimed
//	quality        = clamp((finalScore ?? default)/100, 0, 1)
//	totalIssued    = round2(effectiveTrees * kgPerTree * quality / 1000)
//	unitPrice      = round2(base * (floor + quality * span))
func (s *Service) compute(project *projects.Project) (totalIssued, unitPrice decimal.Decimal) {
	effectiveTrees := decimal.NewFromInt(int64(project.ClaimedTreeCount))
	if project.DetectedTreeCount != nil {
		effectiveTrees = decimal.NewFromInt(int64(*project.DetectedTreeCount))
	}

	score := s.params.DefaultFinalScore
	if project.FinalScore != nil {
		score = decimal.NewFromFloat(*project.FinalScore)
	}
	quality := score.Div(decimal.NewFromInt(100))
	if quality.IsNegative() {
		quality = decimal.Zero
	}
	if quality.GreaterThan(decimal.NewFromInt(1)) {
		quality = decimal.NewFromInt(1)
	}

	co2Tons := effectiveTrees.Mul(s.params.CO2KgPerTreeYear).Mul(quality).Div(decimal.NewFromInt(1000))
	totalIssued = co2Tons.Round(2)
	unitPrice = s.params.BasePrice.Mul(s.params.PriceFloorFactor.Add(quality.Mul(s.params.PriceSpanFactor))).Round(2)
	return totalIssued, unitPrice
}

// unwind removes the partially created batch and listing so a retry
// starts clean. The ledger was not touched yet when this runs.
func (s *Service) unwind(ctx context.Context, batchID, listingID uuid.UUID) {
	if listingID != uuid.Nil {
		if err := s.repo.DeleteListing(ctx, listingID); err != nil {
			s.logger.Error("failed to unwind issuance listing", zap.Error(err))
		}
	}
	if err := s.repo.DeleteBatch(ctx, batchID); err != nil {
		s.logger.Error("failed to unwind credit batch", zap.Error(err))
	}
}
