package stats

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/01phanto/EcoLedger/internal/ledger"
	"github.com/01phanto/EcoLedger/internal/marketplace"
	"github.com/01phanto/EcoLedger/internal/portfolio"
	"github.com/01phanto/EcoLedger/internal/projects"
)

// DashboardStats is the aggregate view rendered by dashboards.
type DashboardStats struct {
	TotalProjects     int             `json:"total_projects"`
	ApprovedProjects  int             `json:"approved_projects"`
	PendingProjects   int             `json:"pending_projects"`
	TotalTrees        int             `json:"total_trees"`
	TotalCredits      decimal.Decimal `json:"total_credits"`
	AvailableCredits  decimal.Decimal `json:"available_credits"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	TotalTransactions uint64          `json:"total_transactions"`
	AvgProjectScore   float64         `json:"avg_project_score"`
}

// Service aggregates dashboard statistics from the project records, the
// marketplace snapshot and the ledger projection.
type Service struct {
	projects  projects.Repository
	market    marketplace.Repository
	balances  *portfolio.Service
	store     ledger.Store
}

// NewService creates a stats service.
func NewService(projectRepo projects.Repository, marketRepo marketplace.Repository, balances *portfolio.Service, store ledger.Store) *Service {
	return &Service{projects: projectRepo, market: marketRepo, balances: balances, store: store}
}

// Dashboard computes the aggregate stats.
func (s *Service) Dashboard(ctx context.Context) (*DashboardStats, error) {
	allProjects, err := s.projects.List(ctx, projects.Filter{})
	if err != nil {
		return nil, err
	}

	stats := &DashboardStats{
		TotalCredits:     decimal.Zero,
		AvailableCredits: decimal.Zero,
		TotalRevenue:     decimal.Zero,
	}
	stats.TotalProjects = len(allProjects)

	var scoreSum float64
	var scored int
	for _, project := range allProjects {
		switch project.Status {
		case projects.StatusApproved:
			stats.ApprovedProjects++
			if project.DetectedTreeCount != nil {
				stats.TotalTrees += *project.DetectedTreeCount
			} else {
				stats.TotalTrees += project.ClaimedTreeCount
			}
			if project.FinalScore != nil {
				scoreSum += *project.FinalScore
				scored++
			}
		case projects.StatusSubmitted, projects.StatusUnderReview:
			stats.PendingProjects++
		}
	}
	if scored > 0 {
		stats.AvgProjectScore = scoreSum / float64(scored)
	}

	err = s.balances.Snapshot(ctx, func(p *portfolio.Projector) {
		for _, id := range p.ProjectIDs() {
			balances := p.ProjectBalances(id)
			stats.TotalCredits = stats.TotalCredits.Add(balances.TotalIssued)
		}
	})
	if err != nil {
		return nil, err
	}

	open, err := s.market.ListListings(ctx, true)
	if err != nil {
		return nil, err
	}
	for _, listing := range open {
		stats.AvailableCredits = stats.AvailableCredits.Add(listing.QuantityAvailable)
	}

	// Revenue and transaction count come from the ledger itself.
	entries, err := s.store.ReadFrom(ctx, 1, 0)
	if err != nil {
		return nil, err
	}
	stats.TotalTransactions = uint64(len(entries))
	for _, entry := range entries {
		if entry.Type != ledger.EntryCreditsPurchased {
			continue
		}
		var payload ledger.CreditsPurchasedPayload
		if err := entry.DecodePayload(&payload); err != nil {
			return nil, err
		}
		stats.TotalRevenue = stats.TotalRevenue.Add(payload.TotalCost)
	}

	return stats, nil
}
