package portfolio

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/01phanto/EcoLedger/internal/ledger"
)

// Service maintains an incrementally updated projection over the ledger
// and serves balance queries from it. Refresh pulls any entries
// appended since the last fold; queries refresh first so reads always
// reflect the full ledger.
type Service struct {
	store ledger.Store

	mu        sync.Mutex
	projector *Projector
}

// NewService creates a portfolio service over a ledger store.
func NewService(store ledger.Store) *Service {
	return &Service{store: store, projector: NewProjector()}
}

// Refresh applies entries appended since the last fold.
func (s *Service) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

func (s *Service) refreshLocked(ctx context.Context) error {
	entries, err := s.store.ReadFrom(ctx, s.projector.LastSequence()+1, 0)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := s.projector.Apply(entry); err != nil {
			return err
		}
	}
	return nil
}

// GetPortfolio returns the holder's current balances.
func (s *Service) GetPortfolio(ctx context.Context, holderID string) (HolderPortfolio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.refreshLocked(ctx); err != nil {
		return HolderPortfolio{}, err
	}
	return s.projector.Portfolio(holderID), nil
}

// GetProjectBalances returns the project's current issuance totals.
func (s *Service) GetProjectBalances(ctx context.Context, projectID uuid.UUID) (ProjectBalances, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.refreshLocked(ctx); err != nil {
		return ProjectBalances{}, err
	}
	return s.projector.ProjectBalances(projectID), nil
}

// Snapshot runs fn against the refreshed projector. Used by the stats
// aggregator to read several balances consistently.
func (s *Service) Snapshot(ctx context.Context, fn func(p *Projector)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.refreshLocked(ctx); err != nil {
		return err
	}
	fn(s.projector)
	return nil
}
